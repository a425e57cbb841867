package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/pbtracker/pbtracker-server/internal/domain"
)

func TestCheckpoint_Empty(t *testing.T) {
	s := newTestStore(t)

	got, err := s.Checkpoint(context.Background())
	if err != nil {
		t.Fatalf("Checkpoint: %v", err)
	}
	if !got.IsZero() {
		t.Errorf("expected zero time for empty database, got %v", got)
	}
}

func TestCheckpoint_LatestWrite(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	registered := time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)
	if err := s.CreateUser(ctx, &domain.User{ID: "user-1", Username: "alice", CreatedAt: registered}); err != nil {
		t.Fatalf("create user: %v", err)
	}

	got, err := s.Checkpoint(ctx)
	if err != nil {
		t.Fatalf("Checkpoint: %v", err)
	}
	if !got.Equal(registered) {
		t.Errorf("expected %v, got %v", registered, got)
	}

	// An edit far in the future wins over the game created alongside the run.
	edited := time.Date(2099, 12, 25, 12, 0, 0, 0, time.UTC)
	run := makeTestRun("run-1", "alice", "Portal", "portal", "Any%", "any", 600)
	run.UpdatedAt = edited
	if _, err := s.CreateRun(ctx, run); err != nil {
		t.Fatalf("create run: %v", err)
	}

	got, err = s.Checkpoint(ctx)
	if err != nil {
		t.Fatalf("Checkpoint: %v", err)
	}
	if !got.Equal(edited) {
		t.Errorf("expected %v, got %v", edited, got)
	}
}
