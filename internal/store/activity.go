package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"cptracker/internal/db"
)

// activityUpsertSQL merges one platform's count into a day row. The jsonb
// concatenation only replaces the keys present in the incoming breakdown, so
// other platforms' counts survive, and the total is recomputed from the
// merged map in the same statement - a concurrent writer for another
// platform cannot lose this update.
const activityUpsertSQL = `
INSERT INTO activity_days (user_id, day, breakdown, total)
VALUES ($1, $2, $3::jsonb, $4)
ON CONFLICT (user_id, day) DO UPDATE SET
    breakdown = activity_days.breakdown || excluded.breakdown,
    total = (
        SELECT COALESCE(SUM(v.value::int), 0)
        FROM jsonb_each_text(activity_days.breakdown || excluded.breakdown) AS v
    )`

// DeleteActivityBefore purges a user's days older than the cutoff date.
func (s *Store) DeleteActivityBefore(ctx context.Context, userID int64, cutoff time.Time) error {
	_, err := s.db.Pool.Exec(ctx,
		`DELETE FROM activity_days WHERE user_id = $1 AND day < $2`,
		userID, cutoff)
	if err != nil {
		return fmt.Errorf("purge activity: %w", err)
	}
	return nil
}

// UpsertActivityDays persists touched day rows in one batch round trip.
// Each row's breakdown must contain only the writing platform's key.
func (s *Store) UpsertActivityDays(ctx context.Context, days []ActivityDay) error {
	stmts := make([]db.Stmt, 0, len(days))
	for _, d := range days {
		breakdown, err := json.Marshal(d.Breakdown)
		if err != nil {
			return fmt.Errorf("encode breakdown: %w", err)
		}
		total := 0
		for _, c := range d.Breakdown {
			total += c
		}
		stmts = append(stmts, db.Stmt{
			SQL:  activityUpsertSQL,
			Args: []interface{}{d.UserID, d.Date, breakdown, total},
		})
	}

	if _, err := s.db.SendBatch(ctx, stmts); err != nil {
		return fmt.Errorf("upsert activity days: %w", err)
	}
	return nil
}

// GetActivityDay loads one day row; nil when absent.
func (s *Store) GetActivityDay(ctx context.Context, userID int64, day time.Time) (*ActivityDay, error) {
	var d ActivityDay
	var raw []byte
	err := s.db.Pool.QueryRow(ctx,
		`SELECT user_id, day, breakdown, total FROM activity_days WHERE user_id = $1 AND day = $2`,
		userID, day).Scan(&d.UserID, &d.Date, &raw, &d.Total)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get activity day: %w", err)
	}
	if err := json.Unmarshal(raw, &d.Breakdown); err != nil {
		return nil, fmt.Errorf("decode breakdown: %w", err)
	}
	return &d, nil
}
