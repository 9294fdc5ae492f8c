package core

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

// RunLogEntry is one record of the append-only job run log.
type RunLogEntry struct {
	ID        int
	Message   string
	Level     string
	Meta      map[string]any
	Timestamp time.Time
}

// RunLogStore appends job run records. Every run writes exactly one terminal
// record regardless of success or failure.
type RunLogStore interface {
	// Append inserts a run record. Errors are returned for observability but
	// callers must treat them as non-fatal: a logging failure never fails a job.
	Append(ctx context.Context, level, message string, meta map[string]any) error
	// Recent returns the newest entries, most recent first.
	Recent(ctx context.Context, limit int) ([]RunLogEntry, error)
}

type runLogStore struct {
	pool *pgxpool.Pool
}

// NewRunLogStore constructs a RunLogStore backed by PostgreSQL.
func NewRunLogStore(pool *pgxpool.Pool) RunLogStore {
	return &runLogStore{pool: pool}
}

func (s *runLogStore) Append(ctx context.Context, level, message string, meta map[string]any) error {
	if meta == nil {
		meta = map[string]any{}
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		metaJSON = []byte("{}")
	}
	_, err = s.pool.Exec(ctx,
		"INSERT INTO function_logs (message, level, meta) VALUES ($1, $2, $3)",
		message, level, metaJSON)
	return err
}

func (s *runLogStore) Recent(ctx context.Context, limit int) ([]RunLogEntry, error) {
	if limit < 1 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, message, level, meta, created_at
		FROM function_logs
		ORDER BY id DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunLogEntry
	for rows.Next() {
		var e RunLogEntry
		var meta []byte
		if err := rows.Scan(&e.ID, &e.Message, &e.Level, &meta, &e.Timestamp); err != nil {
			return nil, err
		}
		_ = json.Unmarshal(meta, &e.Meta)
		out = append(out, e)
	}
	return out, rows.Err()
}

// logRun writes one terminal run record, swallowing any store failure.
func logRun(ctx context.Context, store RunLogStore, log *logrus.Logger, level, message string, meta map[string]any) {
	if store == nil {
		return
	}
	if err := store.Append(ctx, level, message, meta); err != nil {
		log.WithError(err).Warn("failed to append run log record")
	}
}
