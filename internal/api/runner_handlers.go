package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/pbtracker/pbtracker-server/internal/service"
)

// viewAllQuery is the q value that switches a runner page to every run.
const viewAllQuery = "view-all"

func (s *Server) registerRunnerRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "getRunner",
		Method:      http.MethodGet,
		Path:        "/api/v1/runners/{username}",
		Summary:     "Get runner page",
		Description: "Returns a runner's personal bests, or every run with q=view-all",
		Tags:        []string{"Runners"},
	}, s.handleGetRunner)
}

// GetRunnerInput contains parameters for a runner page.
type GetRunnerInput struct {
	Username string `path:"username" doc:"Runner name, in any spelling that folds to the same code"`
	Q        string `query:"q" doc:"view-all lists every run instead of personal bests"`
}

// RunnerOutput wraps a runner page for Huma.
type RunnerOutput struct {
	Body *service.RunnerPage
}

func (s *Server) handleGetRunner(ctx context.Context, input *GetRunnerInput) (*RunnerOutput, error) {
	page, err := s.services.Views.RunnerPage(ctx, input.Username, input.Q == viewAllQuery)
	if err != nil {
		return nil, err
	}
	return &RunnerOutput{Body: page}, nil
}
