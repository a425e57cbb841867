package api

import (
	"github.com/pbtracker/pbtracker-server/internal/service"
)

// Services groups the business services used by the API server.
type Services struct {
	Auth    *service.AuthService
	Runs    *service.RunService
	Views   *service.ViewService
	Search  *service.SearchService
	Catalog *service.CatalogService
}
