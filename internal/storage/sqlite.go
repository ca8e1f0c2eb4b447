package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/claude/repcam/internal/counter"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SQLiteStore keeps session checkpoints in a local SQLite file, for
// single-host deployments without PostgreSQL.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLiteStore opens (or creates) the checkpoint database at dir/checkpoints.db.
func OpenSQLiteStore(dir string) (*SQLiteStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating state dir %s: %w", dir, err)
	}

	dbPath := filepath.Join(dir, "checkpoints.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening checkpoint db: %w", err)
	}
	// One writer at a time; SQLite serializes anyway and this avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS session_checkpoints (
		session_id  TEXT PRIMARY KEY,
		rep_count   INTEGER NOT NULL,
		stage       TEXT NOT NULL,
		running     INTEGER NOT NULL,
		last_rep_at INTEGER,
		updated_at  INTEGER NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating checkpoint table: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// SaveCheckpoint upserts the latest checkpoint of a session.
func (s *SQLiteStore) SaveCheckpoint(ctx context.Context, id uuid.UUID, cp counter.Checkpoint) error {
	var lastRep sql.NullInt64
	if cp.LastRep != nil {
		lastRep = sql.NullInt64{Int64: cp.LastRep.UnixNano(), Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO session_checkpoints
		 (session_id, rep_count, stage, running, last_rep_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		id.String(), cp.Count, string(normalizeStage(cp.Stage)), cp.Running, lastRep, time.Now().UnixNano())
	if err != nil {
		return fmt.Errorf("saving checkpoint %s: %w", id, err)
	}
	return nil
}

// LoadCheckpoint returns the stored checkpoint of a session, if any.
func (s *SQLiteStore) LoadCheckpoint(ctx context.Context, id uuid.UUID) (counter.Checkpoint, bool, error) {
	var (
		cp      counter.Checkpoint
		stage   string
		lastRep sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT rep_count, stage, running, last_rep_at FROM session_checkpoints WHERE session_id = ?`,
		id.String()).Scan(&cp.Count, &stage, &cp.Running, &lastRep)
	if errors.Is(err, sql.ErrNoRows) {
		return counter.Checkpoint{}, false, nil
	}
	if err != nil {
		return counter.Checkpoint{}, false, fmt.Errorf("loading checkpoint %s: %w", id, err)
	}
	cp.Stage = normalizeStage(counter.Stage(stage))
	if lastRep.Valid {
		t := time.Unix(0, lastRep.Int64)
		cp.LastRep = &t
	}
	return cp, true, nil
}

// DeleteCheckpoint removes a session's checkpoint.
func (s *SQLiteStore) DeleteCheckpoint(ctx context.Context, id uuid.UUID) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM session_checkpoints WHERE session_id = ?`, id.String()); err != nil {
		return fmt.Errorf("deleting checkpoint %s: %w", id, err)
	}
	return nil
}

// PurgeCheckpoints removes checkpoints not updated since before.
func (s *SQLiteStore) PurgeCheckpoints(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM session_checkpoints WHERE updated_at < ?`, before.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("purging checkpoints: %w", err)
	}
	return res.RowsAffected()
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
