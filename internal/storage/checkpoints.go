package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/claude/repcam/internal/counter"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// SaveCheckpoint upserts the latest checkpoint of a session.
func (db *DB) SaveCheckpoint(ctx context.Context, id uuid.UUID, cp counter.Checkpoint) error {
	_, err := db.Pool.Exec(ctx,
		`INSERT INTO session_checkpoints (session_id, rep_count, stage, running, last_rep_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, NOW())
		 ON CONFLICT (session_id) DO UPDATE SET
			rep_count = EXCLUDED.rep_count,
			stage = EXCLUDED.stage,
			running = EXCLUDED.running,
			last_rep_at = EXCLUDED.last_rep_at,
			updated_at = NOW()`,
		id, cp.Count, string(normalizeStage(cp.Stage)), cp.Running, cp.LastRep)
	if err != nil {
		return fmt.Errorf("saving checkpoint %s: %w", id, err)
	}
	return nil
}

// LoadCheckpoint returns the stored checkpoint of a session, if any.
func (db *DB) LoadCheckpoint(ctx context.Context, id uuid.UUID) (counter.Checkpoint, bool, error) {
	var (
		cp    counter.Checkpoint
		stage string
	)
	err := db.Pool.QueryRow(ctx,
		`SELECT rep_count, stage, running, last_rep_at
		 FROM session_checkpoints
		 WHERE session_id = $1`,
		id).Scan(&cp.Count, &stage, &cp.Running, &cp.LastRep)
	if errors.Is(err, pgx.ErrNoRows) {
		return counter.Checkpoint{}, false, nil
	}
	if err != nil {
		return counter.Checkpoint{}, false, fmt.Errorf("loading checkpoint %s: %w", id, err)
	}
	cp.Stage = normalizeStage(counter.Stage(stage))
	return cp, true, nil
}

// DeleteCheckpoint removes a session's checkpoint.
func (db *DB) DeleteCheckpoint(ctx context.Context, id uuid.UUID) error {
	if _, err := db.Pool.Exec(ctx, `DELETE FROM session_checkpoints WHERE session_id = $1`, id); err != nil {
		return fmt.Errorf("deleting checkpoint %s: %w", id, err)
	}
	return nil
}

// PurgeCheckpoints removes checkpoints not updated since before.
func (db *DB) PurgeCheckpoints(ctx context.Context, before time.Time) (int64, error) {
	tag, err := db.Pool.Exec(ctx, `DELETE FROM session_checkpoints WHERE updated_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("purging checkpoints: %w", err)
	}
	return tag.RowsAffected(), nil
}

func normalizeStage(s counter.Stage) counter.Stage {
	switch s {
	case counter.StageDown, counter.StageUp:
		return s
	}
	return counter.StageUnset
}
