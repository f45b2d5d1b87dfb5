// Package store holds the relational persistence for all core entities.
// Queries run over database/sql against sqlite; aggregates are loaded fully on
// each read so computed costs always reflect current state.
package store

import "database/sql"

// Store gives the handlers and the scheduler access to persisted entities.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}
