package store

import (
	"context"
	"fmt"
	"time"

	"cptracker/internal/platform"
)

func (s *Store) ListAllHandles(ctx context.Context) ([]Handle, error) {
	rows, err := s.db.Pool.Query(ctx,
		`SELECT user_id, platform, handle, last_fetched FROM handles ORDER BY user_id, platform`)
	if err != nil {
		return nil, fmt.Errorf("list handles: %w", err)
	}
	defer rows.Close()

	return scanHandles(rows)
}

func (s *Store) ListHandlesByUser(ctx context.Context, userID int64) ([]Handle, error) {
	rows, err := s.db.Pool.Query(ctx,
		`SELECT user_id, platform, handle, last_fetched FROM handles WHERE user_id = $1 ORDER BY platform`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("list handles for user %d: %w", userID, err)
	}
	defer rows.Close()

	return scanHandles(rows)
}

func (s *Store) HandleExists(ctx context.Context, userID int64, p platform.Platform) (bool, error) {
	var exists bool
	err := s.db.Pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM handles WHERE user_id = $1 AND platform = $2)`,
		userID, p.String()).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("handle exists: %w", err)
	}
	return exists, nil
}

func (s *Store) InsertHandle(ctx context.Context, h Handle) error {
	_, err := s.db.Pool.Exec(ctx,
		`INSERT INTO handles (user_id, platform, handle) VALUES ($1, $2, $3)`,
		h.UserID, h.Platform.String(), h.Handle)
	if err != nil {
		return fmt.Errorf("insert handle: %w", err)
	}
	return nil
}

// DeleteHandle reports whether a row was actually removed.
func (s *Store) DeleteHandle(ctx context.Context, userID int64, p platform.Platform) (bool, error) {
	tag, err := s.db.Pool.Exec(ctx,
		`DELETE FROM handles WHERE user_id = $1 AND platform = $2`,
		userID, p.String())
	if err != nil {
		return false, fmt.Errorf("delete handle: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Store) StampHandleFetched(ctx context.Context, userID int64, p platform.Platform, at time.Time) error {
	_, err := s.db.Pool.Exec(ctx,
		`UPDATE handles SET last_fetched = $3 WHERE user_id = $1 AND platform = $2`,
		userID, p.String(), at)
	if err != nil {
		return fmt.Errorf("stamp handle: %w", err)
	}
	return nil
}

type pgxRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanHandles(rows pgxRows) ([]Handle, error) {
	var out []Handle
	for rows.Next() {
		var h Handle
		var p string
		if err := rows.Scan(&h.UserID, &p, &h.Handle, &h.LastFetched); err != nil {
			return nil, fmt.Errorf("scan handle: %w", err)
		}
		h.Platform = platform.Platform(p)
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
