package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Checkpoint returns the time of the most recent write: a run submitted or
// edited, a game added or a runner registered. An empty database returns
// the zero time.
func (s *Store) Checkpoint(ctx context.Context) (time.Time, error) {
	var latest sql.NullString

	err := s.db.QueryRowContext(ctx, `
		SELECT MAX(ts) FROM (
			SELECT MAX(updated_at) AS ts FROM runs
			UNION ALL
			SELECT MAX(created_at) FROM games
			UNION ALL
			SELECT MAX(created_at) FROM users
		)`).Scan(&latest)
	if err != nil {
		return time.Time{}, fmt.Errorf("query checkpoint: %w", err)
	}

	if !latest.Valid || latest.String == "" {
		return time.Time{}, nil
	}

	t, err := parseTime(latest.String)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse checkpoint time: %w", err)
	}

	return t, nil
}
