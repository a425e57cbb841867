package domain

import "time"

// PersonalBest is a runner's fastest run in one game category.
type PersonalBest struct {
	Game         string     `json:"game"`
	GameCode     string     `json:"game_code"`
	Category     string     `json:"category"`
	CategoryCode string     `json:"category_code"`
	RunID        string     `json:"run_id"`
	Seconds      int        `json:"seconds"`
	Date         *time.Time `json:"date,omitempty"`
	Video        string     `json:"video,omitempty"`
	IsBestKnown  bool       `json:"is_best_known"`
	NumRuns      int        `json:"num_runs"`
}

// RunSummary is one line of a runner's full run list.
type RunSummary struct {
	RunID       string     `json:"run_id"`
	Game        string     `json:"game"`
	Category    string     `json:"category"`
	Seconds     int        `json:"seconds"`
	Date        *time.Time `json:"date,omitempty"`
	Video       string     `json:"video,omitempty"`
	Version     string     `json:"version,omitempty"`
	Notes       string     `json:"notes,omitempty"`
	IsBestKnown bool       `json:"is_best_known"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Summary projects a run into its run-list line.
func (r *Run) Summary() RunSummary {
	return RunSummary{
		RunID:       r.ID,
		Game:        r.Game,
		Category:    r.Category,
		Seconds:     r.Seconds,
		Date:        r.Date,
		Video:       r.Video,
		Version:     r.Version,
		Notes:       r.Notes,
		IsBestKnown: r.IsBestKnown,
		CreatedAt:   r.CreatedAt,
	}
}
