package pgstore

import (
	"context"
	"fmt"
	"stall-ticket/common/contract"
)

// Store keeps the three tabs of the ticketing sheet: slots, tickets and
// app_state. All methods speak in whole rows; nothing here depends on
// row ordering.
type Store struct {
	Db contract.DbConn
}

func New(db contract.DbConn) *Store {
	return &Store{Db: db}
}

const createSlotsTable = `CREATE TABLE IF NOT EXISTS slots (
	date TEXT NOT NULL,
	slot_start TEXT NOT NULL,
	slot_end TEXT NOT NULL,
	cap INT NOT NULL,
	issued INT NOT NULL DEFAULT 0,
	open BOOLEAN NOT NULL DEFAULT TRUE,
	code TEXT NOT NULL,
	PRIMARY KEY (date, slot_start, slot_end)
)`

const createTicketsTable = `CREATE TABLE IF NOT EXISTS tickets (
	ticket_id TEXT NOT NULL,
	issued_at TIMESTAMP NOT NULL,
	date TEXT NOT NULL,
	slot_start TEXT NOT NULL,
	slot_end TEXT NOT NULL,
	expires_at TIMESTAMP NOT NULL,
	method TEXT NOT NULL DEFAULT 'walkup',
	status TEXT NOT NULL DEFAULT 'valid',
	PRIMARY KEY (date, ticket_id)
)`

const createAppStateTable = `CREATE TABLE IF NOT EXISTS app_state (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
)`

// Migrate creates missing tabs and never rewrites existing ones. A genuinely
// incompatible schema fails loudly on the first query instead of being
// silently cleared.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range []string{createSlotsTable, createTicketsTable, createAppStateTable} {
		if _, err := s.Db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	return nil
}
