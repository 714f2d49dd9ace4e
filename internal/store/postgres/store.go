// Package postgres records round history for later inspection.
//
// Expected schema:
//
//	CREATE TABLE rounds (
//	    id           UUID PRIMARY KEY,
//	    target_at    TIMESTAMPTZ NOT NULL,
//	    prefix       TEXT NOT NULL DEFAULT '',
//	    node_count   INT NOT NULL,
//	    started_at   TIMESTAMPTZ NOT NULL,
//	    completed_at TIMESTAMPTZ NOT NULL
//	);
//
//	CREATE TABLE round_results (
//	    id          UUID PRIMARY KEY,
//	    round_id    UUID NOT NULL REFERENCES rounds(id),
//	    node_host   TEXT NOT NULL,
//	    node_port   INT NOT NULL,
//	    status      TEXT NOT NULL,
//	    detail      TEXT NOT NULL DEFAULT '',
//	    received_at TIMESTAMPTZ
//	);
package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/djlord-it/camsync/internal/domain"
)

// Store implements broadcaster.Store using PostgreSQL.
type Store struct {
	db        *sql.DB
	opTimeout time.Duration
}

// New creates a new PostgreSQL store with the given database connection.
func New(db *sql.DB, opTimeout time.Duration) *Store {
	if opTimeout <= 0 {
		opTimeout = 5 * time.Second
	}
	return &Store{db: db, opTimeout: opTimeout}
}

// InsertRound inserts a round record.
func (s *Store) InsertRound(ctx context.Context, round domain.FleetRound) error {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	_, err := s.db.ExecContext(ctx, queryInsertRound,
		round.ID,
		round.TargetAt,
		round.Prefix,
		len(round.Nodes),
		round.StartedAt,
		round.CompletedAt,
	)
	return err
}

// InsertRoundResult inserts one node's outcome for a round.
func (s *Store) InsertRoundResult(ctx context.Context, roundID uuid.UUID, node domain.NodeAddress, result domain.RoundResult) error {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	receivedAt := sql.NullTime{Time: result.ReceivedAt, Valid: !result.ReceivedAt.IsZero()}

	_, err := s.db.ExecContext(ctx, queryInsertRoundResult,
		uuid.New(),
		roundID,
		node.Host,
		node.Port,
		string(result.Status),
		result.Detail,
		receivedAt,
	)
	return err
}
