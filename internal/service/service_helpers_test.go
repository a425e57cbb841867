package service

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pbtracker/pbtracker-server/internal/auth"
	"github.com/pbtracker/pbtracker-server/internal/config"
	"github.com/pbtracker/pbtracker-server/internal/domain"
	domainerrors "github.com/pbtracker/pbtracker-server/internal/errors"
	"github.com/pbtracker/pbtracker-server/internal/search"
	"github.com/pbtracker/pbtracker-server/internal/sse"
	"github.com/pbtracker/pbtracker-server/internal/store"
	"github.com/pbtracker/pbtracker-server/internal/store/sqlite"
	"github.com/pbtracker/pbtracker-server/internal/submission"
	"github.com/pbtracker/pbtracker-server/internal/validation"
)

type recordingEmitter struct {
	mu     sync.Mutex
	events []sse.Event
}

func (r *recordingEmitter) Emit(e sse.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recordingEmitter) types() []sse.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]sse.EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

func (r *recordingEmitter) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

type testEnv struct {
	db      *sqlite.Store
	cache   *store.ViewCache
	runs    *RunService
	views   *ViewService
	search  *SearchService
	catalog *CatalogService
	auth    *AuthService
	events  *recordingEmitter
}

func testSubmitConfig() config.SubmitConfig {
	return config.SubmitConfig{RateLimitPerMinute: 6000, RateLimitBurst: 1000, MaxAttempts: 3}
}

func newTestEnv(t *testing.T) *testEnv {
	return newTestEnvWith(t, testSubmitConfig(), nil)
}

// newTestEnvWith builds the services over a fresh database. wrap, when set,
// decorates the store seen by the run and view services.
func newTestEnvWith(t *testing.T, cfg config.SubmitConfig, wrap func(store.Store) store.Store) *testEnv {
	t.Helper()
	ctx := context.Background()
	logger := slog.New(slog.DiscardHandler)

	db, err := sqlite.Open(ctx, filepath.Join(t.TempDir(), "test.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	cache, err := store.OpenViewCache("", logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })

	index, err := search.NewGameIndex(search.Options{Logger: logger})
	require.NoError(t, err)
	t.Cleanup(func() { _ = index.Close() })

	key, err := auth.LoadOrGenerateKey(t.TempDir())
	require.NoError(t, err)
	tokens, err := auth.NewTokenService(key, time.Hour)
	require.NoError(t, err)

	var runStore store.Store = db
	if wrap != nil {
		runStore = wrap(db)
	}

	check := validation.New()
	events := &recordingEmitter{}
	views := NewViewService(runStore, cache, logger)
	searchSvc := NewSearchService(index, db, logger)
	runs := NewRunService(runStore, submission.NewValidator(runStore, check), views, searchSvc, events, cfg, logger)
	t.Cleanup(runs.Close)

	return &testEnv{
		db:      db,
		cache:   cache,
		runs:    runs,
		views:   views,
		search:  searchSvc,
		catalog: NewCatalogService(db, views, searchSvc, check, logger),
		auth:    NewAuthService(db, tokens, logger),
		events:  events,
	}
}

func (e *testEnv) user(t *testing.T, name string, isMod bool) *domain.User {
	t.Helper()
	u, err := e.auth.CreateUser(context.Background(), name, isMod)
	require.NoError(t, err)
	return u
}

func (e *testEnv) submit(t *testing.T, u *domain.User, in submission.Input) *SubmitResult {
	t.Helper()
	res, err := e.runs.Submit(context.Background(), u, "", in)
	require.NoError(t, err)
	return res
}

func (e *testEnv) record(t *testing.T, gameCode, categoryCode string) (*int, string) {
	t.Helper()
	g, err := e.db.GetGame(context.Background(), gameCode)
	require.NoError(t, err)
	for _, c := range g.Categories {
		if c.Code == categoryCode {
			return c.BestKnownSeconds, c.BestKnownRunner
		}
	}
	t.Fatalf("category %s/%s not found", gameCode, categoryCode)
	return nil, ""
}

// rejection extracts the field errors and draft from a rejected submission.
func rejection(t *testing.T, err error) Rejection {
	t.Helper()
	require.Error(t, err)
	require.ErrorIs(t, err, domainerrors.ErrRejected)

	var de *domainerrors.Error
	require.ErrorAs(t, err, &de)
	rej, ok := de.Details.(Rejection)
	require.True(t, ok, "details are %T", de.Details)
	return rej
}

func input(game, category, time string, claim bool) submission.Input {
	return submission.Input{Game: game, Category: category, Time: time, Date: "01/01/2020", BestKnown: claim}
}
