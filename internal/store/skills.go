package store

import (
	"context"
	"fmt"

	"cptracker/internal/db"
)

// ReplaceSkills swaps a user's entire skill radar in one transaction: the
// old rows and the new rows never coexist, and a failed insert rolls the
// delete back so no reader observes a half-written radar.
func (s *Store) ReplaceSkills(ctx context.Context, userID int64, tags []SkillTag) error {
	tx, err := s.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin skills tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM skill_tags WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("delete skills: %w", err)
	}

	stmts := make([]db.Stmt, 0, len(tags))
	for _, t := range tags {
		stmts = append(stmts, db.Stmt{
			SQL:  `INSERT INTO skill_tags (user_id, tag, solved_count, rating) VALUES ($1, $2, $3, $4)`,
			Args: []interface{}{userID, t.Tag, t.SolvedCount, t.Rating},
		})
	}
	if _, err := db.SendBatchTx(ctx, tx, stmts); err != nil {
		return fmt.Errorf("insert skills: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit skills tx: %w", err)
	}
	return nil
}

// ListSkills returns the user's current radar, largest spokes first.
func (s *Store) ListSkills(ctx context.Context, userID int64) ([]SkillTag, error) {
	rows, err := s.db.Pool.Query(ctx,
		`SELECT user_id, tag, solved_count, rating FROM skill_tags
		 WHERE user_id = $1 ORDER BY solved_count DESC, tag`, userID)
	if err != nil {
		return nil, fmt.Errorf("list skills: %w", err)
	}
	defer rows.Close()

	var out []SkillTag
	for rows.Next() {
		var t SkillTag
		if err := rows.Scan(&t.UserID, &t.Tag, &t.SolvedCount, &t.Rating); err != nil {
			return nil, fmt.Errorf("scan skill: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
