package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pbtracker/pbtracker-server/internal/config"
	"github.com/pbtracker/pbtracker-server/internal/domain"
	domainerrors "github.com/pbtracker/pbtracker-server/internal/errors"
	"github.com/pbtracker/pbtracker-server/internal/sse"
	"github.com/pbtracker/pbtracker-server/internal/store"
	"github.com/pbtracker/pbtracker-server/internal/submission"
)

func TestSubmit_FirstRunCreatesCatalogAndRecord(t *testing.T) {
	env := newTestEnv(t)
	alice := env.user(t, "Alice", false)

	res := env.submit(t, alice, input("Super Game", "Any%", "1:02:03", false))

	assert.True(t, res.Created)
	assert.Equal(t, "/runner/alice?q=view-all", res.Location)
	assert.True(t, strings.HasPrefix(res.Run.ID, "run-"))
	assert.Equal(t, 3723, res.Run.Seconds)
	assert.True(t, res.Run.IsBestKnown)
	assert.True(t, res.Outcome.GameCreated)
	assert.True(t, res.Outcome.CategoryCreated)
	assert.True(t, res.Outcome.RecordSet)
	assert.Nil(t, res.Outcome.PreviousSeconds)

	seconds, runner := env.record(t, "supergame", "any")
	require.NotNil(t, seconds)
	assert.Equal(t, 3723, *seconds)
	assert.Equal(t, "Alice", runner)

	assert.Equal(t, []sse.EventType{sse.EventGameCreated, sse.EventRunCreated, sse.EventRecordSet}, env.events.types())

	cats, err := env.views.Categories(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string][]string{"Super Game": {"Any%"}}, cats)

	found, err := env.search.Search(context.Background(), "super", 5)
	require.NoError(t, err)
	require.Len(t, found.Hits, 1)
	assert.Equal(t, "supergame", found.Hits[0].Code)
}

func TestSubmit_ClaimedSlowerIsRejectedAndWritesNothing(t *testing.T) {
	env := newTestEnv(t)
	alice := env.user(t, "alice", false)
	bob := env.user(t, "bob", false)
	env.submit(t, alice, input("Super Game", "Any%", "3700", false))
	env.events.reset()

	_, err := env.runs.Submit(context.Background(), bob, "", input("Super Game", "Any%", "3750", true))
	rej := rejection(t, err)

	assert.Equal(t, submission.BestKnownTimeViolation, rej.Errors[submission.FieldBestKnown].Kind)
	assert.False(t, rej.Draft.BestKnown)

	runs, err := env.db.ListRunsForRunner(context.Background(), "bob")
	require.NoError(t, err)
	assert.Empty(t, runs)
	assert.Empty(t, env.events.types())

	seconds, _ := env.record(t, "supergame", "any")
	assert.Equal(t, 3700, *seconds)
}

func TestSubmit_UnclaimedFasterThenResubmitted(t *testing.T) {
	env := newTestEnv(t)
	alice := env.user(t, "alice", false)
	bob := env.user(t, "bob", false)
	env.submit(t, alice, input("Super Game", "Any%", "3700", false))

	in := input("super game", "Any%", "3600", false)
	_, err := env.runs.Submit(context.Background(), bob, "", in)
	rej := rejection(t, err)
	assert.Equal(t, submission.BestKnownTimeViolation, rej.Errors[submission.FieldBestKnown].Kind)
	assert.Equal(t, submission.NameCollision, rej.Errors[submission.FieldGame].Kind)
	assert.True(t, rej.Draft.BestKnown)
	assert.Equal(t, "Super Game", rej.Draft.Game)

	// Resubmit exactly what the draft suggests.
	in.Game = rej.Draft.Game
	in.Time = rej.Draft.Time
	in.BestKnown = rej.Draft.BestKnown
	res := env.submit(t, bob, in)

	assert.True(t, res.Outcome.RecordSet)
	require.NotNil(t, res.Outcome.PreviousSeconds)
	assert.Equal(t, 3700, *res.Outcome.PreviousSeconds)

	seconds, runner := env.record(t, "supergame", "any")
	assert.Equal(t, 3600, *seconds)
	assert.Equal(t, "bob", runner)
}

func TestSubmit_EditWithLongNotesLeavesRunUnchanged(t *testing.T) {
	env := newTestEnv(t)
	alice := env.user(t, "alice", false)
	created := env.submit(t, alice, input("Super Game", "Any%", "1:02:03", false))

	in := input("Super Game", "Any%", "1:02:03", true)
	in.Notes = strings.Repeat("n", 141)
	_, err := env.runs.Submit(context.Background(), alice, created.Run.ID, in)
	rej := rejection(t, err)

	assert.Len(t, rej.Errors, 1)
	assert.Equal(t, submission.NotesTooLong, rej.Errors[submission.FieldNotes].Kind)
	assert.Equal(t, created.Run.ID, rej.Draft.RunID)
	assert.Equal(t, "1:02:03", rej.Draft.Time)

	stored, err := env.runs.GetRun(context.Background(), created.Run.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.Notes)
	assert.True(t, created.Run.UpdatedAt.Equal(stored.UpdatedAt))
}

func TestSubmit_EditPermissions(t *testing.T) {
	env := newTestEnv(t)
	alice := env.user(t, "alice", false)
	mallory := env.user(t, "mallory", false)
	mod := env.user(t, "mod", true)
	created := env.submit(t, alice, input("Super Game", "Any%", "1:02:03", false))

	edit := input("Super Game", "Any%", "1:02:03", true)
	edit.Notes = "fixed splits"

	_, err := env.runs.Submit(context.Background(), mallory, created.Run.ID, edit)
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)

	_, err = env.runs.Submit(context.Background(), alice, "run-missing", edit)
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)

	res, err := env.runs.Submit(context.Background(), mod, created.Run.ID, edit)
	require.NoError(t, err)
	assert.False(t, res.Created)
	assert.Equal(t, "alice", res.Run.Username)
	assert.Equal(t, "fixed splits", res.Run.Notes)
	assert.Equal(t, "/runner/alice?q=view-all", res.Location)
}

func TestSubmit_RecordHolderEditIsCatalogNoOp(t *testing.T) {
	env := newTestEnv(t)
	alice := env.user(t, "alice", false)
	created := env.submit(t, alice, input("Super Game", "Any%", "1:02:03", false))
	env.events.reset()

	edit := input("Super Game", "Any%", "1:02:03", true)
	edit.Video = "https://youtu.be/abc"
	res, err := env.runs.Submit(context.Background(), alice, created.Run.ID, edit)
	require.NoError(t, err)

	assert.False(t, res.Outcome.RecordSet)
	assert.True(t, res.Run.IsBestKnown)
	assert.Equal(t, []sse.EventType{sse.EventRunUpdated}, env.events.types())

	seconds, runner := env.record(t, "supergame", "any")
	assert.Equal(t, 3723, *seconds)
	assert.Equal(t, "alice", runner)
}

func TestSubmit_RecordHolderCannotDropFlag(t *testing.T) {
	env := newTestEnv(t)
	alice := env.user(t, "alice", false)
	created := env.submit(t, alice, input("Super Game", "Any%", "1:02:03", false))
	require.True(t, created.Run.IsBestKnown)

	_, err := env.runs.Submit(context.Background(), alice, created.Run.ID, input("Super Game", "Any%", "1:02:03", false))
	rej := rejection(t, err)
	assert.Equal(t, submission.BestKnownTimeViolation, rej.Errors[submission.FieldBestKnown].Kind)
	assert.True(t, rej.Draft.BestKnown)

	stored, err := env.runs.GetRun(context.Background(), created.Run.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsBestKnown)
}

func TestSubmit_EditNeverRollsBackRecord(t *testing.T) {
	env := newTestEnv(t)
	alice := env.user(t, "alice", false)
	created := env.submit(t, alice, input("Super Game", "Any%", "1:00:00", false))

	_, err := env.runs.Submit(context.Background(), alice, created.Run.ID, input("Super Game", "Any%", "1:10:00", false))
	require.NoError(t, err)

	seconds, _ := env.record(t, "supergame", "any")
	assert.Equal(t, 3600, *seconds)
}

func TestSubmit_EditMovesRunToAnotherCategory(t *testing.T) {
	env := newTestEnv(t)
	alice := env.user(t, "alice", false)
	created := env.submit(t, alice, input("Super Game", "Any%", "1:00:00", false))

	res, err := env.runs.Submit(context.Background(), alice, created.Run.ID, input("Super Game", "100%", "2:00:00", false))
	require.NoError(t, err)
	assert.True(t, res.Outcome.CategoryCreated)
	assert.Equal(t, "100", res.Run.CategoryCode)

	cats, err := env.views.Categories(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Any%", "100%"}, cats["Super Game"])
}

func TestSubmit_RateLimited(t *testing.T) {
	env := newTestEnvWith(t, config.SubmitConfig{RateLimitPerMinute: 1, RateLimitBurst: 1, MaxAttempts: 1}, nil)
	alice := env.user(t, "alice", false)

	env.submit(t, alice, input("Super Game", "Any%", "1:00:00", false))
	_, err := env.runs.Submit(context.Background(), alice, "", input("Super Game", "Any%", "59:00", true))
	assert.ErrorIs(t, err, domainerrors.ErrRateLimited)

	// Limits are per runner.
	bob := env.user(t, "bob", false)
	env.submit(t, bob, input("Super Game", "Any%", "1:05:00", false))
}

// racingStore changes the catalog behind the run service's back right before
// its first write.
type racingStore struct {
	store.Store
	once   sync.Once
	inject func()
}

func (r *racingStore) CreateRun(ctx context.Context, run *domain.Run) (*store.RecordOutcome, error) {
	r.once.Do(r.inject)
	return r.Store.CreateRun(ctx, run)
}

func TestSubmit_RevalidatesWhenRecordChangesConcurrently(t *testing.T) {
	faster := 3500
	env := newTestEnvWith(t, testSubmitConfig(), func(s store.Store) store.Store {
		return &racingStore{Store: s, inject: func() {
			_, err := s.ImportGame(context.Background(), &domain.Game{
				Code: "supergame", Name: "Super Game",
				Categories: []domain.CategoryInfo{{Code: "any", Name: "Any%", BestKnownSeconds: &faster, BestKnownRunner: "carol"}},
			})
			require.NoError(t, err)
		}}
	})
	bob := env.user(t, "bob", false)

	// Seed the record without going through the racing CreateRun.
	_, err := env.db.CreateRun(context.Background(), &domain.Run{
		Entity:   domain.Entity{ID: "run-seed"},
		Username: "alice", Game: "Super Game", GameCode: "supergame",
		Category: "Any%", CategoryCode: "any", Seconds: 3700,
	})
	require.NoError(t, err)

	_, err = env.runs.Submit(context.Background(), bob, "", input("Super Game", "Any%", "3600", true))
	rej := rejection(t, err)
	assert.Equal(t, submission.BestKnownTimeViolation, rej.Errors[submission.FieldBestKnown].Kind)
	assert.False(t, rej.Draft.BestKnown)

	seconds, runner := env.record(t, "supergame", "any")
	assert.Equal(t, 3500, *seconds)
	assert.Equal(t, "carol", runner)
}

func TestSubmit_RevalidatesWhenGameCreatedConcurrently(t *testing.T) {
	env := newTestEnvWith(t, testSubmitConfig(), func(s store.Store) store.Store {
		return &racingStore{Store: s, inject: func() {
			_, err := s.ImportGame(context.Background(), &domain.Game{Code: "supergame", Name: "SUPER game"})
			require.NoError(t, err)
		}}
	})
	bob := env.user(t, "bob", false)

	_, err := env.runs.Submit(context.Background(), bob, "", input("Super Game", "Any%", "3600", false))
	rej := rejection(t, err)
	assert.Equal(t, submission.NameCollision, rej.Errors[submission.FieldGame].Kind)
	assert.Equal(t, "SUPER game", rej.Draft.Game)
}

func TestSubmit_ConcurrentClaimsKeepRecordConsistent(t *testing.T) {
	env := newTestEnv(t)
	seed := env.user(t, "seed", false)
	env.submit(t, seed, input("Super Game", "Any%", "4000", false))

	const runners = 8
	users := make([]*domain.User, runners)
	for i := range users {
		users[i] = env.user(t, fmt.Sprintf("runner%d", i), false)
	}

	var wg sync.WaitGroup
	results := make([]*SubmitResult, runners)
	for i := range runners {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := env.runs.Submit(context.Background(), users[i], "", input("Super Game", "Any%", fmt.Sprint(3900-i*10), true))
			if err == nil {
				results[i] = res
			}
		}()
	}
	wg.Wait()

	fastest := 4000
	accepted := 0
	for _, res := range results {
		if res == nil {
			continue
		}
		accepted++
		assert.True(t, res.Run.IsBestKnown)
		fastest = min(fastest, res.Run.Seconds)
	}
	require.Positive(t, accepted)

	seconds, _ := env.record(t, "supergame", "any")
	assert.Equal(t, fastest, *seconds)
	// The fastest claim can never lose.
	assert.NotNil(t, results[runners-1])
}

func TestPrefill(t *testing.T) {
	env := newTestEnv(t)
	alice := env.user(t, "alice", false)
	bob := env.user(t, "bob", false)

	p, err := env.runs.Prefill(context.Background(), alice, "")
	require.NoError(t, err)
	assert.Equal(t, &Prefill{SetDateToToday: true}, p)

	in := input("Super Game", "Any%", "62:03", false)
	in.Version = "JP 1.0"
	in.Notes = "first try"
	created := env.submit(t, alice, in)

	p, err = env.runs.Prefill(context.Background(), alice, "")
	require.NoError(t, err)
	assert.Equal(t, &Prefill{Game: "Super Game", Category: "Any%", Version: "JP 1.0", SetDateToToday: true}, p)

	p, err = env.runs.Prefill(context.Background(), alice, created.Run.ID)
	require.NoError(t, err)
	assert.Equal(t, created.Run.ID, p.RunID)
	assert.Equal(t, "1:02:03", p.Time)
	assert.Equal(t, "01/01/2020", p.Date)
	assert.Equal(t, "first try", p.Notes)
	assert.True(t, p.BestKnown)
	assert.False(t, p.SetDateToToday)

	_, err = env.runs.Prefill(context.Background(), bob, created.Run.ID)
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)
}

func TestValidate_WritesNothing(t *testing.T) {
	env := newTestEnv(t)
	alice := env.user(t, "alice", false)

	res, err := env.runs.Validate(context.Background(), alice, "", input("Super Game", "Any%", "1:00:00", false))
	require.NoError(t, err)
	assert.True(t, res.Valid)

	_, err = env.db.GetGame(context.Background(), "supergame")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestRunnerLocation(t *testing.T) {
	assert.Equal(t, "/runner/mrbean?q=view-all", RunnerLocation("Mr. Bean"))
}
