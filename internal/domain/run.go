// Package domain contains the runs, runners and game catalog tracked by pbtracker.
package domain

import "time"

// MaxNotesLength is the longest accepted run note, in characters.
const MaxNotesLength = 140

// Run is one timed completion of a game category by a runner.
// Video, Version and Notes are empty when absent. Username never changes
// after creation.
type Run struct {
	Entity
	Username     string     `json:"username"`
	Game         string     `json:"game"`
	GameCode     string     `json:"game_code"`
	Category     string     `json:"category"`
	CategoryCode string     `json:"category_code"`
	Seconds      int        `json:"seconds"`
	Date         *time.Time `json:"date,omitempty"`
	Video        string     `json:"video,omitempty"`
	Version      string     `json:"version,omitempty"`
	Notes        string     `json:"notes,omitempty"`
	IsBestKnown  bool       `json:"is_best_known"`
}

// Key returns the catalog key the run is filed under.
func (r *Run) Key() CategoryKey {
	return CategoryKey{GameCode: r.GameCode, CategoryCode: r.CategoryCode}
}

// CategoryKey identifies a category within a game by normalized codes.
type CategoryKey struct {
	GameCode     string
	CategoryCode string
}

func (k CategoryKey) String() string {
	return k.GameCode + "/" + k.CategoryCode
}
