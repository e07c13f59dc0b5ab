package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"cptracker/internal/platform"
)

// GetRating returns nil when the user has no snapshot yet.
func (s *Store) GetRating(ctx context.Context, userID int64) (*RatingSnapshot, error) {
	var r RatingSnapshot
	err := s.db.Pool.QueryRow(ctx,
		`SELECT user_id, cf_rating, at_rating, nk_rating, unified_rating, updated_at
		 FROM rating_snapshots WHERE user_id = $1`,
		userID).Scan(&r.UserID, &r.CFRating, &r.ATRating, &r.NKRating, &r.UnifiedRating, &r.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get rating: %w", err)
	}
	return &r, nil
}

// UpsertPlatformRating writes one platform's rating field plus the derived
// unified rating. Only the caller's own column is touched, so two platforms
// syncing back to back never clobber each other's fields. The column name
// comes from the closed platform dispatch table, never from input.
func (s *Store) UpsertPlatformRating(ctx context.Context, userID int64, p platform.Platform, rating, unified int) error {
	col := p.RatingColumn()
	sql := fmt.Sprintf(
		`INSERT INTO rating_snapshots (user_id, %s, unified_rating, updated_at)
		 VALUES ($1, $2, $3, now())
		 ON CONFLICT (user_id) DO UPDATE
		 SET %s = $2, unified_rating = $3, updated_at = now()`, col, col)

	if _, err := s.db.Pool.Exec(ctx, sql, userID, rating, unified); err != nil {
		return fmt.Errorf("upsert %s rating: %w", p, err)
	}
	return nil
}
