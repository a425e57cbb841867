package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pbtracker/pbtracker-server/internal/catalog"
	"github.com/pbtracker/pbtracker-server/internal/config"
	"github.com/pbtracker/pbtracker-server/internal/domain"
	domainerrors "github.com/pbtracker/pbtracker-server/internal/errors"
	"github.com/pbtracker/pbtracker-server/internal/id"
	"github.com/pbtracker/pbtracker-server/internal/normalize"
	"github.com/pbtracker/pbtracker-server/internal/ratelimit"
	"github.com/pbtracker/pbtracker-server/internal/sse"
	"github.com/pbtracker/pbtracker-server/internal/store"
	"github.com/pbtracker/pbtracker-server/internal/submission"
	"github.com/pbtracker/pbtracker-server/internal/timefmt"
)

// Rejection is the detail payload of a rejected submission: every field
// problem plus the corrected draft to redisplay.
type Rejection struct {
	Errors map[submission.Field]submission.FieldError `json:"errors"`
	Draft  submission.Draft                           `json:"draft"`
}

// SubmitResult is a committed submission.
type SubmitResult struct {
	Run     *domain.Run
	Created bool
	Outcome *store.RecordOutcome
	// Location is the runner page the form redirects to.
	Location string
}

// Prefill is the initial state of the submit form.
type Prefill struct {
	RunID     string `json:"run_id,omitempty"`
	Game      string `json:"game"`
	Category  string `json:"category"`
	Time      string `json:"time"`
	Date      string `json:"date"`
	Video     string `json:"video"`
	Version   string `json:"version"`
	Notes     string `json:"notes"`
	BestKnown bool   `json:"bkt"`
	// SetDateToToday asks the form to fill today's date in the browser's
	// timezone.
	SetDateToToday bool `json:"set_date_to_today"`
}

// RunService coordinates run submissions: it validates against the catalog,
// persists the run together with the catalog and record updates, and keeps
// the derived views in step.
//
// Submissions to the same game category are serialized by a per-category
// lock held from validation to commit. The store additionally refuses a
// commit whose catalog assumptions no longer hold, in which case the
// submission is validated again against the new state.
type RunService struct {
	store       store.Store
	validator   *submission.Validator
	views       *ViewService
	search      *SearchService
	events      EventEmitter
	limiter     *ratelimit.KeyedRateLimiter
	locks       *catalog.KeyedMutex
	maxAttempts int
	logger      *slog.Logger
}

// NewRunService creates a new run service. events may be nil.
func NewRunService(
	store store.Store,
	validator *submission.Validator,
	views *ViewService,
	search *SearchService,
	events EventEmitter,
	cfg config.SubmitConfig,
	logger *slog.Logger,
) *RunService {
	if events == nil {
		events = discardEmitter{}
	}
	return &RunService{
		store:       store,
		validator:   validator,
		views:       views,
		search:      search,
		events:      events,
		limiter:     ratelimit.PerMinute(cfg.RateLimitPerMinute, cfg.RateLimitBurst),
		locks:       catalog.NewKeyedMutex(),
		maxAttempts: max(cfg.MaxAttempts, 1),
		logger:      logger,
	}
}

// Close stops the rate limiter's background sweep.
func (s *RunService) Close() {
	s.limiter.Stop()
}

// RunnerLocation is the runner page showing every run of username.
func RunnerLocation(username string) string {
	return "/runner/" + normalize.Code(username) + "?q=view-all"
}

// GetRun returns a run by ID.
func (s *RunService) GetRun(ctx context.Context, runID string) (*domain.Run, error) {
	run, err := s.store.GetRun(ctx, runID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domainerrors.NotFound("run not found")
		}
		return nil, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

// loadEditable returns the run user may edit. A missing run and a run the
// user may not edit are indistinguishable to the caller.
func (s *RunService) loadEditable(ctx context.Context, user *domain.User, runID string) (*domain.Run, error) {
	run, err := s.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !user.CanEdit(run) {
		s.logger.Info("edit refused", "run_id", runID, "user_id", user.ID)
		return nil, domainerrors.NotFound("run not found")
	}
	return run, nil
}

// Prefill returns the submit form's initial state. With a run ID it is that
// run; otherwise the game, category and version of the user's last run.
func (s *RunService) Prefill(ctx context.Context, user *domain.User, runID string) (*Prefill, error) {
	if runID != "" {
		run, err := s.loadEditable(ctx, user, runID)
		if err != nil {
			return nil, err
		}
		return &Prefill{
			RunID:     run.ID,
			Game:      run.Game,
			Category:  run.Category,
			Time:      timefmt.FormatDuration(run.Seconds),
			Date:      timefmt.FormatDate(run.Date),
			Video:     run.Video,
			Version:   run.Version,
			Notes:     run.Notes,
			BestKnown: run.IsBestKnown,
		}, nil
	}

	p := &Prefill{SetDateToToday: true}
	last, err := s.store.GetLastRunForUser(ctx, user.Username)
	switch {
	case errors.Is(err, store.ErrNotFound):
	case err != nil:
		return nil, fmt.Errorf("last run: %w", err)
	default:
		p.Game = last.Game
		p.Category = last.Category
		p.Version = last.Version
	}
	return p, nil
}

// Validate checks a submission without writing anything.
func (s *RunService) Validate(ctx context.Context, user *domain.User, runID string, in submission.Input) (submission.Result, error) {
	if runID != "" {
		run, err := s.loadEditable(ctx, user, runID)
		if err != nil {
			return submission.Result{}, err
		}
		in.Editing = run
	}
	res, err := s.validator.Validate(ctx, in)
	if err != nil {
		return submission.Result{}, fmt.Errorf("validate: %w", err)
	}
	return res, nil
}

// Submit validates and stores a run. An empty runID creates a new run,
// otherwise that run is edited. A submission with field problems returns a
// Rejected error whose details are a Rejection; nothing is written.
func (s *RunService) Submit(ctx context.Context, user *domain.User, runID string, in submission.Input) (*SubmitResult, error) {
	if !s.limiter.Allow(user.ID) {
		return nil, domainerrors.RateLimited("too many submissions, slow down")
	}

	var existing *domain.Run
	if runID != "" {
		run, err := s.loadEditable(ctx, user, runID)
		if err != nil {
			return nil, err
		}
		existing = run
	}

	target := domain.CategoryKey{
		GameCode:     normalize.Code(strings.TrimSpace(in.Game)),
		CategoryCode: normalize.Code(strings.TrimSpace(in.Category)),
	}

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		keys := []domain.CategoryKey{target}
		if existing != nil {
			keys = append(keys, existing.Key())
		}
		unlock := s.locks.Lock(keys...)

		res, err := s.commit(ctx, user, existing, in)
		unlock()

		var moved *runMovedError
		switch {
		case err == nil:
			return res, nil
		case errors.As(err, &moved):
			// A concurrent edit moved the run; lock its new category and retry.
			existing = moved.current
		case errors.Is(err, store.ErrCatalogChanged):
			s.logger.Info("catalog changed during submission, validating again",
				"attempt", attempt,
				"category", target.String(),
				"user_id", user.ID)
		default:
			return nil, err
		}
	}

	return nil, domainerrors.Conflict("the catalog changed while saving, please submit again")
}

// runMovedError reports that the run being edited is no longer filed under
// the category that was locked.
type runMovedError struct {
	current *domain.Run
}

func (e *runMovedError) Error() string {
	return "run " + e.current.ID + " moved to " + e.current.Key().String()
}

// commit runs one validate-and-persist attempt. The caller holds the locks.
func (s *RunService) commit(ctx context.Context, user *domain.User, existing *domain.Run, in submission.Input) (*SubmitResult, error) {
	if existing != nil {
		current, err := s.GetRun(ctx, existing.ID)
		if err != nil {
			return nil, err
		}
		if current.Key() != existing.Key() {
			return nil, &runMovedError{current: current}
		}
		existing = current
		in.Editing = current
	}

	res, err := s.validator.Validate(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("validate: %w", err)
	}
	if !res.Valid {
		return nil, domainerrors.Rejected("submission rejected", Rejection{Errors: res.Errors, Draft: res.Draft})
	}

	run, err := buildRun(user, existing, res.Draft)
	if err != nil {
		return nil, err
	}

	var outcome *store.RecordOutcome
	if existing == nil {
		outcome, err = s.store.CreateRun(ctx, run)
	} else {
		s.views.Invalidate(existing.Username)
		outcome, err = s.store.UpdateRun(ctx, run)
	}
	if err != nil {
		if errors.Is(err, store.ErrCatalogChanged) {
			return nil, err
		}
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "save run")
	}

	s.afterCommit(ctx, run, existing == nil, outcome)

	return &SubmitResult{
		Run:      run,
		Created:  existing == nil,
		Outcome:  outcome,
		Location: RunnerLocation(run.Username),
	}, nil
}

// buildRun applies a valid draft to a new run or a copy of the edited one.
func buildRun(user *domain.User, existing *domain.Run, d submission.Draft) (*domain.Run, error) {
	var run domain.Run
	if existing == nil {
		runID, err := id.NewRunID()
		if err != nil {
			return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "generate run id")
		}
		run.ID = runID
		run.Username = user.Username
		run.InitTimestamps()
	} else {
		run = *existing
		run.Touch()
	}

	run.Game = d.Game
	run.GameCode = d.GameCode
	run.Category = d.Category
	run.CategoryCode = d.CategoryCode
	run.Seconds = d.Seconds
	run.Date = d.Date
	run.Video = d.Video
	run.Version = d.Version
	run.Notes = d.Notes
	run.IsBestKnown = d.BestKnown
	return &run, nil
}

// afterCommit brings the derived views, the search index and connected
// clients up to date. Failures here are logged: the run is already stored
// and every view can be rebuilt from the store.
func (s *RunService) afterCommit(ctx context.Context, run *domain.Run, created bool, outcome *store.RecordOutcome) {
	if _, _, err := s.views.Refresh(ctx, run.Username); err != nil {
		s.logger.Error("runner views refresh failed", "runner", run.Username, "error", err)
		s.views.Invalidate(run.Username)
	}

	if outcome.GameCreated || outcome.CategoryCreated {
		s.views.InvalidateCategories()
		if s.search != nil {
			if err := s.search.IndexGame(ctx, run.GameCode); err != nil {
				s.logger.Warn("search index update failed", "game_code", run.GameCode, "error", err)
			}
		}
	}

	if outcome.GameCreated {
		s.events.Emit(sse.NewGameCreatedEvent(run.GameCode, run.Game))
	}
	if created {
		s.events.Emit(sse.NewRunCreatedEvent(run))
	} else {
		s.events.Emit(sse.NewRunUpdatedEvent(run))
	}
	if outcome.RecordSet {
		s.events.Emit(sse.NewRecordSetEvent(run, outcome.PreviousSeconds))
	}

	s.logger.Info("run saved",
		"run_id", run.ID,
		"runner", run.Username,
		"category", run.Key().String(),
		"seconds", run.Seconds,
		"created", created,
		"record_set", outcome.RecordSet,
		"game_created", outcome.GameCreated)
}
