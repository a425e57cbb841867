package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pbtracker/pbtracker-server/internal/domain"
	"github.com/pbtracker/pbtracker-server/internal/store"
)

// runColumns must match the scan order in scanRun.
const runColumns = `id, username, game_code, game, category_code, category, seconds,
	run_date, video, version, notes, is_bkt, created_at, updated_at`

func scanRun(scanner interface{ Scan(dest ...any) error }) (*domain.Run, error) {
	var (
		r                    domain.Run
		runDate              sql.NullString
		video, version       sql.NullString
		notes                sql.NullString
		isBKT                int
		createdAt, updatedAt string
	)
	err := scanner.Scan(
		&r.ID, &r.Username, &r.GameCode, &r.Game, &r.CategoryCode, &r.Category, &r.Seconds,
		&runDate, &video, &version, &notes, &isBKT, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if r.Date, err = parseNullableDate(runDate); err != nil {
		return nil, err
	}
	if r.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if r.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	r.Video = video.String
	r.Version = version.String
	r.Notes = notes.String
	r.IsBestKnown = isBKT != 0
	return &r, nil
}

// GetRun retrieves a run by ID. Returns store.ErrRunNotFound when absent.
func (s *Store) GetRun(ctx context.Context, id string) (*domain.Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrRunNotFound
	}
	return r, err
}

// GetLastRunForUser returns the runner's most recently submitted run.
// Returns store.ErrRunNotFound when the runner has none.
func (s *Store) GetLastRunForUser(ctx context.Context, username string) (*domain.Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+runColumns+` FROM runs WHERE username = ?
		ORDER BY created_at DESC, rowid DESC LIMIT 1`, username)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrRunNotFound
	}
	return r, err
}

// ListRunsForRunner returns every run of a runner, newest first.
func (s *Store) ListRunsForRunner(ctx context.Context, username string) ([]*domain.Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+runColumns+` FROM runs WHERE username = ?
		ORDER BY created_at DESC, rowid DESC`, username)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*domain.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// CreateRun inserts a run together with its catalog side effects in one
// transaction. run.IsBestKnown is set when the run fills an empty record.
// Returns store.ErrCatalogChanged when the catalog no longer matches what
// the run was validated against.
func (s *Store) CreateRun(ctx context.Context, run *domain.Run) (*store.RecordOutcome, error) {
	var out *store.RecordOutcome
	err := withTx(ctx, s.db, func(ctx context.Context, tx dbtx) error {
		var err error
		if out, err = s.reconcileCatalog(ctx, tx, run); err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO runs (`+runColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			run.ID, run.Username, run.GameCode, run.Game, run.CategoryCode, run.Category, run.Seconds,
			nullDate(run.Date), nullString(run.Video), nullString(run.Version), nullString(run.Notes),
			boolToInt(run.IsBestKnown), formatTime(run.CreatedAt), formatTime(run.UpdatedAt))
		if isUniqueViolation(err) {
			return store.ErrAlreadyExists
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateRun rewrites every mutable field of an existing run with the same
// catalog handling as CreateRun. The owner never changes.
func (s *Store) UpdateRun(ctx context.Context, run *domain.Run) (*store.RecordOutcome, error) {
	var out *store.RecordOutcome
	err := withTx(ctx, s.db, func(ctx context.Context, tx dbtx) error {
		var err error
		if out, err = s.reconcileCatalog(ctx, tx, run); err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx, `
			UPDATE runs SET game_code = ?, game = ?, category_code = ?, category = ?, seconds = ?,
				run_date = ?, video = ?, version = ?, notes = ?, is_bkt = ?, updated_at = ?
			WHERE id = ?`,
			run.GameCode, run.Game, run.CategoryCode, run.Category, run.Seconds,
			nullDate(run.Date), nullString(run.Video), nullString(run.Version), nullString(run.Notes),
			boolToInt(run.IsBestKnown), formatTime(run.UpdatedAt), run.ID)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return store.ErrRunNotFound
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// reconcileCatalog creates missing catalog rows and applies the record
// compare-and-set for run.
//
// A claimed run must strictly beat the record; the only tolerated miss is
// the record holder re-submitting the exact record time. An unclaimed run
// takes an empty record and must not be faster than an existing one.
func (s *Store) reconcileCatalog(ctx context.Context, tx dbtx, run *domain.Run) (*store.RecordOutcome, error) {
	out := &store.RecordOutcome{}

	var err error
	if out.GameCreated, err = s.ensureGame(ctx, tx, run.GameCode, run.Game); err != nil {
		return nil, err
	}
	if out.CategoryCreated, err = ensureCategory(ctx, tx, run.GameCode, run.CategoryCode, run.Category); err != nil {
		return nil, err
	}

	prev, prevRunner, err := currentRecord(ctx, tx, run.GameCode, run.CategoryCode)
	if err != nil {
		return nil, fmt.Errorf("read record: %w", err)
	}

	set, err := casRecord(ctx, tx, run.GameCode, run.CategoryCode, run.Seconds, run.Username, run.IsBestKnown)
	if err != nil {
		return nil, err
	}
	if set {
		run.IsBestKnown = true
		out.RecordSet = true
		out.PreviousSeconds = prev
		return out, nil
	}

	// The record exists and was not replaced.
	switch {
	case run.IsBestKnown && *prev == run.Seconds && prevRunner == run.Username:
		return out, nil
	case run.IsBestKnown:
		return nil, store.ErrCatalogChanged.WithCause(
			fmt.Errorf("record for %s is now %d seconds", run.Key(), *prev))
	case run.Seconds < *prev:
		return nil, store.ErrCatalogChanged.WithCause(
			fmt.Errorf("run beats the %d second record for %s without claiming it", *prev, run.Key()))
	default:
		return out, nil
	}
}
