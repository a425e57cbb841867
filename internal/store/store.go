// Package store defines the persistence contracts for pbtracker and the
// badger-backed cache of derived runner views.
package store

import (
	"context"

	"github.com/pbtracker/pbtracker-server/internal/domain"
)

// Store is the authoritative persistence layer: users, the game catalog and runs.
type Store interface {
	Close() error

	// Users
	CreateUser(ctx context.Context, user *domain.User) error
	GetUser(ctx context.Context, id string) (*domain.User, error)
	GetUserByUsername(ctx context.Context, username string) (*domain.User, error)

	// Catalog
	GetGame(ctx context.Context, code string) (*domain.Game, error)
	ListGames(ctx context.Context) ([]*domain.Game, error)
	ImportGame(ctx context.Context, game *domain.Game) (*RecordOutcome, error)

	// Runs
	GetRun(ctx context.Context, id string) (*domain.Run, error)
	GetLastRunForUser(ctx context.Context, username string) (*domain.Run, error)
	ListRunsForRunner(ctx context.Context, username string) ([]*domain.Run, error)
	CreateRun(ctx context.Context, run *domain.Run) (*RecordOutcome, error)
	UpdateRun(ctx context.Context, run *domain.Run) (*RecordOutcome, error)
}

// RecordOutcome reports the catalog side effects of a committed write.
type RecordOutcome struct {
	GameCreated     bool
	CategoryCreated bool
	// RecordSet is true when the run became the category's best known time.
	RecordSet bool
	// PreviousSeconds is the record the run displaced, if any.
	PreviousSeconds *int
}
