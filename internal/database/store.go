// Package database persists room-state snapshots to Postgres. Writes are
// best-effort and asynchronous: a nil pool disables persistence and a slow
// database never blocks the game loop.
package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

const writeTimeout = 5 * time.Second

// Store writes room documents to the room_snapshots table.
type Store struct {
	pool *pgxpool.Pool
	log  *logrus.Entry
}

// NewStore creates a store. pool may be nil to disable persistence.
func NewStore(pool *pgxpool.Pool, log *logrus.Entry) *Store {
	return &Store{pool: pool, log: log}
}

// Enabled reports whether a connection pool is configured.
func (s *Store) Enabled() bool { return s != nil && s.pool != nil }

// Connect opens a pgx pool from a connection string, verifying with a ping.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return pool, nil
}

// SaveSnapshotAsync upserts the room document under the given stage
// ("initial" at deal time, "final" at game over) on a separate goroutine.
func (s *Store) SaveSnapshotAsync(roomID uuid.UUID, stage string, doc any) {
	if !s.Enabled() {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		defer cancel()
		if err := s.saveSnapshot(ctx, roomID, stage, doc); err != nil {
			s.log.WithFields(logrus.Fields{
				"room_id": roomID,
				"stage":   stage,
			}).WithError(err).Error("store: failed persisting room snapshot")
		}
	}()
}

func (s *Store) saveSnapshot(ctx context.Context, roomID uuid.UUID, stage string, doc any) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal room snapshot: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO room_snapshots (room_id, stage, state, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (room_id, stage)
		DO UPDATE SET state = EXCLUDED.state, updated_at = now()`,
		roomID, stage, raw)
	if err != nil {
		return fmt.Errorf("upsert room snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot reads a room document back, or nil when none is stored.
func (s *Store) LoadSnapshot(ctx context.Context, roomID uuid.UUID, stage string) (json.RawMessage, error) {
	if !s.Enabled() {
		return nil, nil
	}
	var raw json.RawMessage
	err := s.pool.QueryRow(ctx,
		`SELECT state FROM room_snapshots WHERE room_id = $1 AND stage = $2`,
		roomID, stage).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("select room snapshot: %w", err)
	}
	return raw, nil
}
