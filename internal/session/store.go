package session

import (
	"context"
	"sync"
	"time"

	"github.com/claude/repcam/internal/counter"
	"github.com/google/uuid"
)

// CheckpointStore keeps the latest counter checkpoint of each live session so
// a dropped connection or a restart can resume the count.
type CheckpointStore interface {
	SaveCheckpoint(ctx context.Context, id uuid.UUID, cp counter.Checkpoint) error
	// LoadCheckpoint reports found=false when the session has no checkpoint.
	LoadCheckpoint(ctx context.Context, id uuid.UUID) (cp counter.Checkpoint, found bool, err error)
	DeleteCheckpoint(ctx context.Context, id uuid.UUID) error
	// PurgeCheckpoints removes checkpoints last saved before the cutoff.
	PurgeCheckpoints(ctx context.Context, before time.Time) (int64, error)
}

// MemoryStore is an in-process CheckpointStore. It survives reconnects but
// not restarts.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[uuid.UUID]memoryEntry
}

type memoryEntry struct {
	cp      counter.Checkpoint
	savedAt time.Time
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[uuid.UUID]memoryEntry)}
}

func (m *MemoryStore) SaveCheckpoint(_ context.Context, id uuid.UUID, cp counter.Checkpoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[id] = memoryEntry{cp: cp, savedAt: time.Now()}
	return nil
}

func (m *MemoryStore) LoadCheckpoint(_ context.Context, id uuid.UUID) (counter.Checkpoint, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	return e.cp, ok, nil
}

func (m *MemoryStore) DeleteCheckpoint(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, id)
	return nil
}

func (m *MemoryStore) PurgeCheckpoints(_ context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, e := range m.entries {
		if e.savedAt.Before(before) {
			delete(m.entries, id)
			n++
		}
	}
	return n, nil
}
