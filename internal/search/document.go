// Package search provides game name search for submit form autocomplete using Bleve.
package search

import (
	"github.com/pbtracker/pbtracker-server/internal/domain"
)

// GameDocument is what the index stores per catalog game.
// The document ID is the game code, so re-indexing a game replaces it.
type GameDocument struct {
	Code       string
	Name       string
	Categories []string
	UpdatedAt  int64 // Unix millis
}

// NewGameDocument builds the index document for a catalog game.
func NewGameDocument(g *domain.Game, updatedAtMillis int64) *GameDocument {
	names := make([]string, 0, len(g.Categories))
	for _, c := range g.Categories {
		names = append(names, c.Name)
	}
	return &GameDocument{
		Code:       g.Code,
		Name:       g.Name,
		Categories: names,
		UpdatedAt:  updatedAtMillis,
	}
}

// ToMap converts the document to a map whose keys match the index mapping.
func (d *GameDocument) ToMap() map[string]any {
	return map[string]any{
		"code":           d.Code,
		"name":           d.Name,
		"categories":     d.Categories,
		"category_count": len(d.Categories),
		"updated_at":     d.UpdatedAt,
	}
}
