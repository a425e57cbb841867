package providers

import (
	"github.com/samber/do/v2"

	"github.com/pbtracker/pbtracker-server/internal/auth"
	"github.com/pbtracker/pbtracker-server/internal/config"
	"github.com/pbtracker/pbtracker-server/internal/logger"
	"github.com/pbtracker/pbtracker-server/internal/service"
	"github.com/pbtracker/pbtracker-server/internal/submission"
	"github.com/pbtracker/pbtracker-server/internal/validation"
)

// ProvideValidator provides the struct and field validator.
func ProvideValidator(_ do.Injector) (*validation.Validator, error) {
	return validation.New(), nil
}

// ProvideAuthService provides the user and token service.
func ProvideAuthService(i do.Injector) (*service.AuthService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	tokenService := do.MustInvoke[*auth.TokenService](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewAuthService(storeHandle.Store, tokenService, log.Logger), nil
}

// ProvideViewService provides the runner view service.
func ProvideViewService(i do.Injector) (*service.ViewService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	cacheHandle := do.MustInvoke[*ViewCacheHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewViewService(storeHandle.Store, cacheHandle.ViewCache, log.Logger), nil
}

// ProvideCatalogService provides the catalog service.
func ProvideCatalogService(i do.Injector) (*service.CatalogService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	views := do.MustInvoke[*service.ViewService](i)
	searchService := do.MustInvoke[*service.SearchService](i)
	check := do.MustInvoke[*validation.Validator](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewCatalogService(storeHandle.Store, views, searchService, check, log.Logger), nil
}

// RunServiceHandle wraps the run service with shutdown capability.
type RunServiceHandle struct {
	*service.RunService
}

// Shutdown implements do.Shutdownable.
func (h *RunServiceHandle) Shutdown() error {
	h.Close()
	return nil
}

// ProvideRunService provides the run submission service. Committed runs are
// broadcast on the SSE manager.
func ProvideRunService(i do.Injector) (*RunServiceHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	views := do.MustInvoke[*service.ViewService](i)
	searchService := do.MustInvoke[*service.SearchService](i)
	check := do.MustInvoke[*validation.Validator](i)
	log := do.MustInvoke[*logger.Logger](i)

	svc := service.NewRunService(
		storeHandle.Store,
		submission.NewValidator(storeHandle.Store, check),
		views,
		searchService,
		sseHandle.Manager,
		cfg.Submit,
		log.Logger,
	)

	return &RunServiceHandle{RunService: svc}, nil
}
