package api

import (
	"bytes"
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/pbtracker/pbtracker-server/internal/domain"
	"github.com/pbtracker/pbtracker-server/internal/search"
	"github.com/pbtracker/pbtracker-server/internal/service"
)

func (s *Server) registerCatalogRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listCategories",
		Method:      http.MethodGet,
		Path:        "/api/v1/categories",
		Summary:     "List categories",
		Description: "Returns every game with its category names, for submit form autocomplete",
		Tags:        []string{"Catalog"},
	}, s.handleListCategories)

	huma.Register(s.api, huma.Operation{
		OperationID: "listGames",
		Method:      http.MethodGet,
		Path:        "/api/v1/games",
		Summary:     "List games",
		Description: "Returns the catalog with categories and best known times",
		Tags:        []string{"Catalog"},
	}, s.handleListGames)

	huma.Register(s.api, huma.Operation{
		OperationID: "searchGames",
		Method:      http.MethodGet,
		Path:        "/api/v1/games/search",
		Summary:     "Search games",
		Description: "Typo tolerant game search by game or category name",
		Tags:        []string{"Catalog"},
	}, s.handleSearchGames)

	huma.Register(s.api, huma.Operation{
		OperationID: "importCatalog",
		Method:      http.MethodPost,
		Path:        "/api/v1/catalog/import",
		Summary:     "Import catalog",
		Description: "Merges a YAML catalog file into the catalog. Moderators only",
		Tags:        []string{"Catalog"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleImportCatalog)
}

// === DTOs ===

// CategoriesResponse maps game display names to category display names.
type CategoriesResponse struct {
	Games map[string][]string `json:"games" doc:"Game name to category names"`
}

// CategoriesOutput wraps the categories map for Huma.
type CategoriesOutput struct {
	Body CategoriesResponse
}

// GamesResponse lists the catalog.
type GamesResponse struct {
	Games []*domain.Game `json:"games" doc:"Games ordered by name"`
}

// GamesOutput wraps the games list for Huma.
type GamesOutput struct {
	Body GamesResponse
}

// SearchGamesInput contains search parameters.
type SearchGamesInput struct {
	Query string `query:"q" doc:"Search text; empty lists games by code"`
	Limit int    `query:"limit" minimum:"0" maximum:"100" doc:"Maximum hits, default 10"`
}

// SearchGamesOutput wraps search results for Huma.
type SearchGamesOutput struct {
	Body *search.SearchResult
}

// ImportCatalogInput carries a YAML catalog file.
type ImportCatalogInput struct {
	RawBody []byte `contentType:"application/yaml"`
}

// ImportCatalogOutput wraps the import report for Huma.
type ImportCatalogOutput struct {
	Body *service.ImportReport
}

// === Handlers ===

func (s *Server) handleListCategories(ctx context.Context, _ *struct{}) (*CategoriesOutput, error) {
	games, err := s.services.Views.Categories(ctx)
	if err != nil {
		return nil, err
	}
	return &CategoriesOutput{Body: CategoriesResponse{Games: games}}, nil
}

func (s *Server) handleListGames(ctx context.Context, _ *struct{}) (*GamesOutput, error) {
	games, err := s.services.Catalog.ListGames(ctx)
	if err != nil {
		return nil, err
	}
	if games == nil {
		games = []*domain.Game{}
	}
	return &GamesOutput{Body: GamesResponse{Games: games}}, nil
}

func (s *Server) handleSearchGames(ctx context.Context, input *SearchGamesInput) (*SearchGamesOutput, error) {
	result, err := s.services.Search.Search(ctx, input.Query, input.Limit)
	if err != nil {
		return nil, err
	}
	return &SearchGamesOutput{Body: result}, nil
}

func (s *Server) handleImportCatalog(ctx context.Context, input *ImportCatalogInput) (*ImportCatalogOutput, error) {
	user, err := RequireModerator(ctx)
	if err != nil {
		return nil, err
	}

	report, err := s.services.Catalog.Import(ctx, bytes.NewReader(input.RawBody))
	if err != nil {
		return nil, err
	}

	s.logger.Info("catalog imported over HTTP", "user_id", user.ID, "games", report.Games)
	return &ImportCatalogOutput{Body: report}, nil
}
