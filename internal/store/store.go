// Package store persists the four keyed collections on Postgres via pgx.
package store

import (
	"cptracker/internal/db"
)

type Store struct {
	db *db.DB
}

func New(database *db.DB) *Store {
	return &Store{db: database}
}
