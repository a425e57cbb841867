package submission

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/pbtracker/pbtracker-server/internal/catalog"
	"github.com/pbtracker/pbtracker-server/internal/domain"
	"github.com/pbtracker/pbtracker-server/internal/normalize"
	"github.com/pbtracker/pbtracker-server/internal/timefmt"
)

// Length limits for optional fields.
const (
	MaxVideoLength   = 500
	MaxVersionLength = 100
)

const recordHint = " (if best known time is incorrect, you can update best known time after submission)"

// Checker validates a single value against a validator tag and returns a
// problem description, or "" when the value passes.
type Checker interface {
	Check(value any, tag string) string
}

// facts are derived once from the input and shared by every rule. Names are
// trimmed for coding and storage, but compared with the catalog as typed.
type facts struct {
	in Input

	game         string
	gameCode     string
	entry        *domain.Game
	category     string
	categoryCode string
	info         *domain.CategoryInfo

	seconds int
	timeErr error
	date    *time.Time
	dateErr error

	video   string
	version string
}

func gather(in Input, entry *domain.Game) facts {
	f := facts{
		in:       in,
		game:     strings.TrimSpace(in.Game),
		category: strings.TrimSpace(in.Category),
		entry:    entry,
		video:    strings.TrimSpace(in.Video),
		version:  strings.TrimSpace(in.Version),
	}
	f.gameCode = normalize.Code(f.game)
	f.categoryCode = normalize.Code(f.category)
	f.info = catalog.FindCategory(entry, f.categoryCode)
	f.seconds, f.timeErr = timefmt.ParseDuration(in.Time)
	f.date, f.dateErr = timefmt.ParseDate(in.Date)
	return f
}

// outcome is one rule's verdict: an optional error for its field and an
// optional correction to the draft.
type outcome struct {
	field Field
	err   *FieldError
	patch func(*Draft)
}

func fail(field Field, kind ErrorKind, format string, args ...any) outcome {
	return outcome{field: field, err: &FieldError{Kind: kind, Message: fmt.Sprintf(format, args...)}}
}

type rule func(f facts, check Checker) outcome

var rules = []rule{
	gameRule,
	categoryRule,
	timeRule,
	dateRule,
	bestKnownRule,
	notesRule,
	videoRule,
	versionRule,
}

func gameRule(f facts, _ Checker) outcome {
	switch {
	case f.gameCode == "":
		return fail(FieldGame, BlankField, "Game cannot be blank")
	case f.entry != nil && f.entry.Name != f.in.Game:
		o := fail(FieldGame, NameCollision,
			"Game already exists under [%s] (case sensitive). Hit submit again to confirm.", f.entry.Name)
		name := f.entry.Name
		o.patch = func(d *Draft) { d.Game = name }
		return o
	case !normalize.ValidName(f.game):
		return fail(FieldGame, InvalidCharacters,
			"Game name must not use any 'funny' characters and can be up to %d characters long", normalize.MaxNameLength)
	}
	return outcome{field: FieldGame}
}

func categoryRule(f facts, _ Checker) outcome {
	switch {
	case f.categoryCode == "":
		return fail(FieldCategory, BlankField, "Category cannot be blank")
	case f.info != nil && f.info.Name != f.in.Category:
		o := fail(FieldCategory, NameCollision,
			"Category already exists under [%s] (case sensitive). Hit submit again to confirm.", f.info.Name)
		name := f.info.Name
		o.patch = func(d *Draft) { d.Category = name }
		return o
	case f.info == nil && !normalize.ValidName(f.category):
		// Names already in the catalog are accepted as they are.
		return fail(FieldCategory, InvalidCharacters,
			"Category must not use any 'funny' characters and can be up to %d characters long", normalize.MaxNameLength)
	}
	return outcome{field: FieldCategory}
}

func timeRule(f facts, _ Checker) outcome {
	if f.timeErr != nil {
		o := fail(FieldTime, UnparseableTime, "Invalid time: %v", f.timeErr)
		o.patch = func(d *Draft) { d.Seconds = -1 }
		return o
	}
	canonical := timefmt.FormatDuration(f.seconds)
	seconds := f.seconds
	return outcome{field: FieldTime, patch: func(d *Draft) {
		d.Time = canonical
		d.Seconds = seconds
	}}
}

func dateRule(f facts, _ Checker) outcome {
	if f.dateErr != nil {
		return fail(FieldDate, UnparseableDate, "Invalid date: %v", f.dateErr)
	}
	date := f.date
	return outcome{field: FieldDate, patch: func(d *Draft) { d.Date = date }}
}

// bestKnownRule checks the claim against the category record. It needs a
// parsed time and a recorded best known time; otherwise there is nothing
// to compare.
func bestKnownRule(f facts, _ Checker) outcome {
	if f.timeErr != nil || f.info == nil || !f.info.HasRecord() {
		return outcome{field: FieldBestKnown}
	}
	record := *f.info.BestKnownSeconds

	switch {
	case f.in.BestKnown && f.seconds >= record:
		if f.seconds == record && f.holdsRecord() {
			return outcome{field: FieldBestKnown}
		}
		o := fail(FieldBestKnown, BestKnownTimeViolation,
			"This time does not beat current best known time of %s by %s"+recordHint,
			timefmt.FormatDuration(record), f.info.BestKnownRunner)
		o.patch = func(d *Draft) { d.BestKnown = false }
		return o
	case !f.in.BestKnown && f.seconds == record && f.holdsRecord():
		o := fail(FieldBestKnown, BestKnownTimeViolation,
			"This run holds the best known time of %s and must stay flagged", timefmt.FormatDuration(record))
		o.patch = func(d *Draft) { d.BestKnown = true }
		return o
	case !f.in.BestKnown && f.seconds < record:
		o := fail(FieldBestKnown, BestKnownTimeViolation,
			"This time beats the current best known time of %s by %s"+recordHint,
			timefmt.FormatDuration(record), f.info.BestKnownRunner)
		o.patch = func(d *Draft) { d.BestKnown = true }
		return o
	}
	return outcome{field: FieldBestKnown}
}

// holdsRecord reports whether the run being edited is the one that set the
// record of the category it is filed under.
func (f facts) holdsRecord() bool {
	run := f.in.Editing
	if run == nil || !run.IsBestKnown || run.GameCode != f.gameCode || run.CategoryCode != f.categoryCode {
		return false
	}
	return f.info.HeldBy(run.Username, run.Seconds)
}

func notesRule(f facts, _ Checker) outcome {
	if utf8.RuneCountInString(f.in.Notes) > domain.MaxNotesLength {
		return fail(FieldNotes, NotesTooLong, "Notes must be at most %d characters", domain.MaxNotesLength)
	}
	return outcome{field: FieldNotes}
}

func videoRule(f facts, check Checker) outcome {
	if f.video == "" || check == nil {
		return outcome{field: FieldVideo}
	}
	if problem := check.Check(f.video, fmt.Sprintf("http_url,max=%d", MaxVideoLength)); problem != "" {
		return fail(FieldVideo, InvalidURL, "Video %s", problem)
	}
	return outcome{field: FieldVideo}
}

func versionRule(f facts, check Checker) outcome {
	if f.version == "" || check == nil {
		return outcome{field: FieldVersion}
	}
	if problem := check.Check(f.version, fmt.Sprintf("max=%d", MaxVersionLength)); problem != "" {
		return fail(FieldVersion, TooLong, "Version %s", problem)
	}
	return outcome{field: FieldVersion}
}
