// Package eventlog implements the append-only domain event stream (§3, I5,
// I6, P6). It is the audit ledger, not a replay source for behavior: the
// core never derives its own behavior from replaying events (§9).
package eventlog

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
)

// Event is one immutable record on a stream.
type Event struct {
	ID        int64
	StreamID  string
	Type      string
	Data      map[string]any
	Metadata  map[string]any
	CreatedAt time.Time
}

// Store appends and reads events. It never exposes an update or delete.
// tx is an opaque handle (a store.Tx in practice); PostgresStore expects a
// pgx.Tx, MemoryStore ignores it.
type Store interface {
	// Append writes one event within tx so it lands in the same
	// transaction as the state mutation it describes.
	Append(ctx context.Context, tx any, streamID, eventType string, data, metadata map[string]any) (*Event, error)
	// ListByStream returns a stream's events in monotonic id order.
	ListByStream(ctx context.Context, streamID string) ([]*Event, error)
}

// PostgresStore is the Store backed by Postgres via pgx.
type PostgresStore struct {
	pool Queryer
}

// Queryer is the subset of pgxpool.Pool used for reads outside a transaction.
type Queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func NewPostgresStore(pool Queryer) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Append(ctx context.Context, txAny any, streamID, eventType string, data, metadata map[string]any) (*Event, error) {
	tx, ok := txAny.(pgx.Tx)
	if !ok {
		return nil, fmt.Errorf("eventlog: postgres store requires a pgx.Tx")
	}

	dataJSON, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	metaJSON, err := json.Marshal(metadata)
	if err != nil {
		return nil, err
	}

	var ev Event
	ev.StreamID = streamID
	ev.Type = eventType
	ev.Data = data
	ev.Metadata = metadata

	row := tx.QueryRow(ctx, `
		INSERT INTO events (stream_id, type, data, metadata, created_at)
		VALUES ($1, $2, $3, $4, now())
		RETURNING id, created_at
	`, streamID, eventType, dataJSON, metaJSON)

	if err := row.Scan(&ev.ID, &ev.CreatedAt); err != nil {
		return nil, err
	}
	return &ev, nil
}

func (s *PostgresStore) ListByStream(ctx context.Context, streamID string) ([]*Event, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, stream_id, type, data, metadata, created_at
		FROM events WHERE stream_id = $1 ORDER BY id ASC
	`, streamID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Event
	for rows.Next() {
		var ev Event
		var dataJSON, metaJSON []byte
		if err := rows.Scan(&ev.ID, &ev.StreamID, &ev.Type, &dataJSON, &metaJSON, &ev.CreatedAt); err != nil {
			return nil, err
		}
		if len(dataJSON) > 0 {
			_ = json.Unmarshal(dataJSON, &ev.Data)
		}
		if len(metaJSON) > 0 {
			_ = json.Unmarshal(metaJSON, &ev.Metadata)
		}
		out = append(out, &ev)
	}
	return out, rows.Err()
}

// TaskStream returns the stream_id for a task, e.g. "task:42".
func TaskStream(taskID int64) string {
	return "task:" + strconv.FormatInt(taskID, 10)
}

// AgentStream returns the stream_id for an agent, e.g. "agent:<id>".
func AgentStream(agentID string) string {
	return "agent:" + agentID
}
