package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// Stmt is one statement queued into a batch round trip.
type Stmt struct {
	SQL  string
	Args []interface{}
}

// SendBatch executes all statements in a single round trip.
// Returns the total number of rows affected and the first error encountered.
func (d *DB) SendBatch(ctx context.Context, stmts []Stmt) (int, error) {
	if len(stmts) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	for _, s := range stmts {
		batch.Queue(s.SQL, s.Args...)
	}

	br := d.Pool.SendBatch(ctx, batch)
	defer br.Close()

	affected := 0
	for i := range stmts {
		tag, err := br.Exec()
		if err != nil {
			return affected, fmt.Errorf("batch statement %d failed: %w", i, err)
		}
		affected += int(tag.RowsAffected())
	}

	return affected, nil
}

// SendBatchTx is SendBatch inside an existing transaction.
func SendBatchTx(ctx context.Context, tx pgx.Tx, stmts []Stmt) (int, error) {
	if len(stmts) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	for _, s := range stmts {
		batch.Queue(s.SQL, s.Args...)
	}

	br := tx.SendBatch(ctx, batch)
	defer br.Close()

	affected := 0
	for i := range stmts {
		tag, err := br.Exec()
		if err != nil {
			return affected, fmt.Errorf("batch statement %d failed: %w", i, err)
		}
		affected += int(tag.RowsAffected())
	}

	return affected, nil
}
