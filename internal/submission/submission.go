// Package submission validates run submissions against the game catalog.
//
// Every rule runs on every submission and the results are merged, so a
// rejected form comes back with all of its problems at once together with a
// corrected draft: canonical display names, the canonical time, and the
// best known flag the catalog implies. Resubmitting the draft usually
// succeeds.
package submission

import (
	"time"

	"github.com/pbtracker/pbtracker-server/internal/domain"
)

// Field names a form field.
type Field string

// Form fields.
const (
	FieldGame      Field = "game"
	FieldCategory  Field = "category"
	FieldTime      Field = "time"
	FieldDate      Field = "date"
	FieldBestKnown Field = "bkt"
	FieldNotes     Field = "notes"
	FieldVideo     Field = "video"
	FieldVersion   Field = "version"
)

// ErrorKind classifies a field error.
type ErrorKind string

// Field error kinds.
const (
	BlankField             ErrorKind = "blank_field"
	InvalidCharacters      ErrorKind = "invalid_characters"
	NameCollision          ErrorKind = "name_collision"
	UnparseableTime        ErrorKind = "unparseable_time"
	UnparseableDate        ErrorKind = "unparseable_date"
	BestKnownTimeViolation ErrorKind = "best_known_time_violation"
	NotesTooLong           ErrorKind = "notes_too_long"
	InvalidURL             ErrorKind = "invalid_url"
	TooLong                ErrorKind = "too_long"
)

// FieldError is one problem with one field.
type FieldError struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

// Input is a raw submission as typed into the form.
type Input struct {
	Game      string
	Category  string
	Time      string
	Date      string
	Video     string
	Version   string
	Notes     string
	BestKnown bool

	// Editing is the stored run being edited, nil for a new run.
	Editing *domain.Run
}

// Draft is the normalized form state returned with every result.
type Draft struct {
	RunID         string     `json:"run_id,omitempty"`
	Game          string     `json:"game"`
	GameCode      string     `json:"game_code"`
	GameFound     bool       `json:"game_found"`
	Category      string     `json:"category"`
	CategoryCode  string     `json:"category_code"`
	CategoryFound bool       `json:"category_found"`
	Time          string     `json:"time"`
	Seconds       int        `json:"seconds"` // -1 when the time did not parse
	DateText      string     `json:"date"`
	Date          *time.Time `json:"-"`
	Video         string     `json:"video,omitempty"`
	Version       string     `json:"version,omitempty"`
	Notes         string     `json:"notes,omitempty"`
	BestKnown     bool       `json:"bkt"`
}

// Result is the outcome of validating one submission.
type Result struct {
	Valid  bool                 `json:"valid"`
	Errors map[Field]FieldError `json:"errors,omitempty"`
	Draft  Draft                `json:"draft"`
}

// Key returns the catalog key the draft would be filed under.
func (d *Draft) Key() domain.CategoryKey {
	return domain.CategoryKey{GameCode: d.GameCode, CategoryCode: d.CategoryCode}
}
