package submission

import (
	"context"
	"strings"

	"github.com/pbtracker/pbtracker-server/internal/catalog"
	"github.com/pbtracker/pbtracker-server/internal/domain"
	"github.com/pbtracker/pbtracker-server/internal/normalize"
	"github.com/pbtracker/pbtracker-server/internal/timefmt"
)

// Validator validates submissions against the live catalog.
type Validator struct {
	catalog catalog.Source
	check   Checker
}

// NewValidator creates a validator reading the catalog from src. check
// covers the video and version fields; nil skips them.
func NewValidator(src catalog.Source, check Checker) *Validator {
	return &Validator{catalog: src, check: check}
}

// Validate looks up the submitted game and evaluates every rule. The error
// is only ever a catalog read failure; field problems are in the Result.
func (v *Validator) Validate(ctx context.Context, in Input) (Result, error) {
	entry, err := catalog.FindGame(ctx, v.catalog, normalize.Code(strings.TrimSpace(in.Game)))
	if err != nil {
		return Result{}, err
	}
	return Evaluate(in, entry, v.check), nil
}

// Evaluate runs every rule against a known catalog state. entry is the
// catalog entry for the submitted game, or nil if there is none.
func Evaluate(in Input, entry *domain.Game, check Checker) Result {
	f := gather(in, entry)

	draft := Draft{
		Game:          f.game,
		GameCode:      f.gameCode,
		GameFound:     entry != nil,
		Category:      f.category,
		CategoryCode:  f.categoryCode,
		CategoryFound: f.info != nil,
		Time:          strings.TrimSpace(in.Time),
		DateText:      strings.TrimSpace(in.Date),
		Video:         f.video,
		Version:       f.version,
		Notes:         in.Notes,
		BestKnown:     in.BestKnown,
	}
	if in.Editing != nil {
		draft.RunID = in.Editing.ID
	}

	errs := make(map[Field]FieldError)
	for _, r := range rules {
		o := r(f, check)
		if o.patch != nil {
			o.patch(&draft)
		}
		if o.err != nil {
			errs[o.field] = *o.err
		}
	}

	if draft.Date != nil {
		draft.DateText = timefmt.FormatDate(draft.Date)
	}

	res := Result{Valid: len(errs) == 0, Draft: draft}
	if !res.Valid {
		res.Errors = errs
	}
	return res
}
