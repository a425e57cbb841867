// Package catalog looks up games and categories by normalized code.
package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/pbtracker/pbtracker-server/internal/domain"
	"github.com/pbtracker/pbtracker-server/internal/store"
)

// Source loads catalog entries. store implementations satisfy it.
type Source interface {
	GetGame(ctx context.Context, code string) (*domain.Game, error)
}

// FindGame returns the catalog entry for code, or nil when the game is not
// in the catalog. A blank code never matches.
func FindGame(ctx context.Context, src Source, code string) (*domain.Game, error) {
	if code == "" {
		return nil, nil
	}
	game, err := src.GetGame(ctx, code)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find game %s: %w", code, err)
	}
	return game, nil
}

// FindCategory returns the first category of game with code, or nil.
// game may be nil.
func FindCategory(game *domain.Game, code string) *domain.CategoryInfo {
	if game == nil || code == "" {
		return nil
	}
	for i := range game.Categories {
		if game.Categories[i].Code == code {
			return &game.Categories[i]
		}
	}
	return nil
}
