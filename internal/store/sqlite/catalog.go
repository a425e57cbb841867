package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pbtracker/pbtracker-server/internal/domain"
	"github.com/pbtracker/pbtracker-server/internal/store"
)

// GetGame returns the catalog entry for a game code with its categories in
// submission order. Returns store.ErrGameNotFound when absent.
func (s *Store) GetGame(ctx context.Context, code string) (*domain.Game, error) {
	return getGame(ctx, s.db, code)
}

func getGame(ctx context.Context, q dbtx, code string) (*domain.Game, error) {
	game := &domain.Game{Code: code}
	err := q.QueryRowContext(ctx, `SELECT name FROM games WHERE code = ?`, code).Scan(&game.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrGameNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := q.QueryContext(ctx, `
		SELECT code, name, bk_seconds, bk_runner
		FROM categories WHERE game_code = ? ORDER BY position`, code)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		info, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		game.Categories = append(game.Categories, info)
	}
	return game, rows.Err()
}

// scanCategory scans code, name, bk_seconds, bk_runner after any leading
// destinations.
func scanCategory(scanner interface{ Scan(dest ...any) error }, lead ...any) (domain.CategoryInfo, error) {
	var (
		info     domain.CategoryInfo
		bkSecs   sql.NullInt64
		bkRunner sql.NullString
	)
	if err := scanner.Scan(append(lead, &info.Code, &info.Name, &bkSecs, &bkRunner)...); err != nil {
		return info, err
	}
	if bkSecs.Valid {
		secs := int(bkSecs.Int64)
		info.BestKnownSeconds = &secs
		info.BestKnownRunner = bkRunner.String
	}
	return info, nil
}

// ListGames returns the whole catalog ordered by game name.
func (s *Store) ListGames(ctx context.Context) ([]*domain.Game, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT code, name FROM games ORDER BY name COLLATE NOCASE, code`)
	if err != nil {
		return nil, err
	}
	var games []*domain.Game
	byCode := make(map[string]*domain.Game)
	for rows.Next() {
		g := &domain.Game{}
		if err := rows.Scan(&g.Code, &g.Name); err != nil {
			rows.Close()
			return nil, err
		}
		games = append(games, g)
		byCode[g.Code] = g
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	catRows, err := s.db.QueryContext(ctx, `
		SELECT game_code, code, name, bk_seconds, bk_runner
		FROM categories ORDER BY game_code, position`)
	if err != nil {
		return nil, err
	}
	defer catRows.Close()

	for catRows.Next() {
		var gameCode string
		info, err := scanCategory(catRows, &gameCode)
		if err != nil {
			return nil, err
		}
		if g, ok := byCode[gameCode]; ok {
			g.Categories = append(g.Categories, info)
		}
	}
	return games, catRows.Err()
}

// ImportGame merges a curated game into the catalog. Existing categories
// keep their names; a supplied record only lands if it beats the stored one.
func (s *Store) ImportGame(ctx context.Context, game *domain.Game) (*store.RecordOutcome, error) {
	out := &store.RecordOutcome{}
	err := withTx(ctx, s.db, func(ctx context.Context, tx dbtx) error {
		created, err := s.ensureGame(ctx, tx, game.Code, game.Name)
		if err != nil {
			return err
		}
		out.GameCreated = created

		for _, c := range game.Categories {
			created, err := ensureCategory(ctx, tx, game.Code, c.Code, c.Name)
			if err != nil {
				return err
			}
			out.CategoryCreated = out.CategoryCreated || created

			if c.BestKnownSeconds == nil {
				continue
			}
			set, err := casRecord(ctx, tx, game.Code, c.Code, *c.BestKnownSeconds, c.BestKnownRunner, true)
			if err != nil {
				return err
			}
			out.RecordSet = out.RecordSet || set
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ensureGame creates the game row if missing. An existing row under another
// display name means the catalog moved since validation.
func (s *Store) ensureGame(ctx context.Context, tx dbtx, code, name string) (bool, error) {
	res, err := tx.ExecContext(ctx, `
		INSERT INTO games (code, name, created_at) VALUES (?, ?, ?)
		ON CONFLICT (code) DO NOTHING`, code, name, formatTime(s.now()))
	if err != nil {
		return false, fmt.Errorf("insert game: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return true, nil
	}

	var existing string
	if err := tx.QueryRowContext(ctx, `SELECT name FROM games WHERE code = ?`, code).Scan(&existing); err != nil {
		return false, err
	}
	if existing != name {
		return false, store.ErrCatalogChanged.WithCause(fmt.Errorf("game %s is named %q", code, existing))
	}
	return false, nil
}

// ensureCategory appends the category to its game if missing, with the same
// display-name check as ensureGame.
func ensureCategory(ctx context.Context, tx dbtx, gameCode, code, name string) (bool, error) {
	res, err := tx.ExecContext(ctx, `
		INSERT INTO categories (game_code, code, name, position)
		SELECT ?, ?, ?, COALESCE(MAX(position) + 1, 0) FROM categories WHERE game_code = ?
		ON CONFLICT (game_code, code) DO NOTHING`, gameCode, code, name, gameCode)
	if err != nil {
		return false, fmt.Errorf("insert category: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return true, nil
	}

	var existing string
	err = tx.QueryRowContext(ctx,
		`SELECT name FROM categories WHERE game_code = ? AND code = ?`, gameCode, code).Scan(&existing)
	if err != nil {
		return false, err
	}
	if existing != name {
		return false, store.ErrCatalogChanged.WithCause(fmt.Errorf("category %s/%s is named %q", gameCode, code, existing))
	}
	return false, nil
}

// casRecord lowers the category record to seconds. Without a claim it only
// fills an empty record. It reports whether the record changed.
func casRecord(ctx context.Context, tx dbtx, gameCode, code string, seconds int, runner string, claim bool) (bool, error) {
	query := `UPDATE categories SET bk_seconds = ?, bk_runner = ?
		WHERE game_code = ? AND code = ? AND bk_seconds IS NULL`
	args := []any{seconds, runner, gameCode, code}
	if claim {
		query = `UPDATE categories SET bk_seconds = ?, bk_runner = ?
			WHERE game_code = ? AND code = ? AND (bk_seconds IS NULL OR bk_seconds > ?)`
		args = append(args, seconds)
	}

	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("update record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// currentRecord reads the record inside the transaction.
func currentRecord(ctx context.Context, tx dbtx, gameCode, code string) (seconds *int, runner string, err error) {
	var (
		bkSecs   sql.NullInt64
		bkRunner sql.NullString
	)
	err = tx.QueryRowContext(ctx,
		`SELECT bk_seconds, bk_runner FROM categories WHERE game_code = ? AND code = ?`,
		gameCode, code).Scan(&bkSecs, &bkRunner)
	if err != nil {
		return nil, "", err
	}
	if !bkSecs.Valid {
		return nil, "", nil
	}
	secs := int(bkSecs.Int64)
	return &secs, bkRunner.String, nil
}
