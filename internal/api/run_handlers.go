package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/pbtracker/pbtracker-server/internal/domain"
	"github.com/pbtracker/pbtracker-server/internal/service"
	"github.com/pbtracker/pbtracker-server/internal/submission"
)

func (s *Server) registerRunRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "getSubmitForm",
		Method:      http.MethodGet,
		Path:        "/api/v1/submit",
		Summary:     "Prefill submit form",
		Description: "Returns the submit form's initial state: the run being edited, or the game, category and version of the runner's last run",
		Tags:        []string{"Runs"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleGetSubmitForm)

	huma.Register(s.api, huma.Operation{
		OperationID:   "createRun",
		Method:        http.MethodPost,
		Path:          "/api/v1/runs",
		Summary:       "Submit run",
		Description:   "Validates and records a new run. A rejected submission returns every field error and the corrected draft",
		Tags:          []string{"Runs"},
		DefaultStatus: http.StatusCreated,
		Security:      []map[string][]string{{"bearer": {}}},
	}, s.handleCreateRun)

	huma.Register(s.api, huma.Operation{
		OperationID: "validateRun",
		Method:      http.MethodPost,
		Path:        "/api/v1/runs/validate",
		Summary:     "Validate run",
		Description: "Validates a submission without recording it",
		Tags:        []string{"Runs"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleValidateRun)

	huma.Register(s.api, huma.Operation{
		OperationID: "getRun",
		Method:      http.MethodGet,
		Path:        "/api/v1/runs/{id}",
		Summary:     "Get run",
		Description: "Returns a run by ID",
		Tags:        []string{"Runs"},
	}, s.handleGetRun)

	huma.Register(s.api, huma.Operation{
		OperationID: "updateRun",
		Method:      http.MethodPut,
		Path:        "/api/v1/runs/{id}",
		Summary:     "Edit run",
		Description: "Validates and applies an edit. Only the runner and moderators may edit a run",
		Tags:        []string{"Runs"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleUpdateRun)
}

// === DTOs ===

// RunRequest is a submission as typed into the form. Every field is
// optional at the transport level; missing values are reported as field
// errors with the rest of the form.
type RunRequest struct {
	Game      string `json:"game,omitempty" doc:"Game name"`
	Category  string `json:"category,omitempty" doc:"Category name"`
	Time      string `json:"time,omitempty" doc:"Run time, e.g. 1:02:03 or 1h 2m 3s"`
	Date      string `json:"date,omitempty" doc:"Completion date, MM/DD/YYYY"`
	Video     string `json:"video,omitempty" doc:"Video URL"`
	Version   string `json:"version,omitempty" doc:"Game version"`
	Notes     string `json:"notes,omitempty" doc:"Notes, up to 140 characters"`
	BestKnown bool   `json:"bkt,omitempty" doc:"Claims the best known time for the category"`
}

func (r RunRequest) input() submission.Input {
	return submission.Input{
		Game:      r.Game,
		Category:  r.Category,
		Time:      r.Time,
		Date:      r.Date,
		Video:     r.Video,
		Version:   r.Version,
		Notes:     r.Notes,
		BestKnown: r.BestKnown,
	}
}

// RunResponse is a recorded run with the catalog effects of the write.
type RunResponse struct {
	Run             *domain.Run `json:"run" doc:"The stored run"`
	Location        string      `json:"location" doc:"Runner page to show next"`
	GameCreated     bool        `json:"game_created" doc:"The submission added the game to the catalog"`
	CategoryCreated bool        `json:"category_created" doc:"The submission added the category to the catalog"`
	RecordSet       bool        `json:"record_set" doc:"The run is now the category's best known time"`
	PreviousSeconds *int        `json:"previous_seconds,omitempty" doc:"The best known time the run replaced"`
}

func newRunResponse(result *service.SubmitResult) RunResponse {
	resp := RunResponse{
		Run:      result.Run,
		Location: result.Location,
	}
	if o := result.Outcome; o != nil {
		resp.GameCreated = o.GameCreated
		resp.CategoryCreated = o.CategoryCreated
		resp.RecordSet = o.RecordSet
		resp.PreviousSeconds = o.PreviousSeconds
	}
	return resp
}

// SubmitFormInput contains parameters for the submit form.
type SubmitFormInput struct {
	Edit string `query:"edit" doc:"ID of the run to edit"`
}

// SubmitFormOutput wraps the prefill for Huma.
type SubmitFormOutput struct {
	Body service.Prefill
}

// CreateRunInput wraps a new submission for Huma.
type CreateRunInput struct {
	Body RunRequest
}

// CreateRunOutput wraps a recorded run for Huma.
type CreateRunOutput struct {
	Location string `header:"Location"`
	Body     RunResponse
}

// ValidateRunInput wraps a submission to check.
type ValidateRunInput struct {
	Edit string `query:"edit" doc:"ID of the run being edited"`
	Body RunRequest
}

// ValidateRunOutput wraps a validation result for Huma.
type ValidateRunOutput struct {
	Body submission.Result
}

// GetRunInput contains parameters for getting a run.
type GetRunInput struct {
	ID string `path:"id" doc:"Run ID"`
}

// RunOutput wraps a run for Huma.
type RunOutput struct {
	Body *domain.Run
}

// UpdateRunInput wraps an edit for Huma.
type UpdateRunInput struct {
	ID   string `path:"id" doc:"Run ID"`
	Body RunRequest
}

// UpdateRunOutput wraps an edited run for Huma.
type UpdateRunOutput struct {
	Body RunResponse
}

// === Handlers ===

func (s *Server) handleGetSubmitForm(ctx context.Context, input *SubmitFormInput) (*SubmitFormOutput, error) {
	user, err := RequireUser(ctx)
	if err != nil {
		return nil, err
	}

	prefill, err := s.services.Runs.Prefill(ctx, user, input.Edit)
	if err != nil {
		return nil, err
	}

	return &SubmitFormOutput{Body: *prefill}, nil
}

func (s *Server) handleCreateRun(ctx context.Context, input *CreateRunInput) (*CreateRunOutput, error) {
	user, err := RequireUser(ctx)
	if err != nil {
		return nil, err
	}

	result, err := s.services.Runs.Submit(ctx, user, "", input.Body.input())
	if err != nil {
		return nil, err
	}

	return &CreateRunOutput{
		Location: result.Location,
		Body:     newRunResponse(result),
	}, nil
}

func (s *Server) handleValidateRun(ctx context.Context, input *ValidateRunInput) (*ValidateRunOutput, error) {
	user, err := RequireUser(ctx)
	if err != nil {
		return nil, err
	}

	result, err := s.services.Runs.Validate(ctx, user, input.Edit, input.Body.input())
	if err != nil {
		return nil, err
	}

	return &ValidateRunOutput{Body: result}, nil
}

func (s *Server) handleGetRun(ctx context.Context, input *GetRunInput) (*RunOutput, error) {
	run, err := s.services.Runs.GetRun(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	return &RunOutput{Body: run}, nil
}

func (s *Server) handleUpdateRun(ctx context.Context, input *UpdateRunInput) (*UpdateRunOutput, error) {
	user, err := RequireUser(ctx)
	if err != nil {
		return nil, err
	}

	result, err := s.services.Runs.Submit(ctx, user, input.ID, input.Body.input())
	if err != nil {
		return nil, err
	}

	return &UpdateRunOutput{Body: newRunResponse(result)}, nil
}
