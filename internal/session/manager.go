package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/claude/repcam/internal/counter"
	"github.com/claude/repcam/internal/pose"
	"github.com/google/uuid"
)

// ErrNotFound is returned when a session id is unknown.
var ErrNotFound = errors.New("session not found")

// Options configures a Manager.
type Options struct {
	Counter  counter.Config
	Detector pose.Detector
	// Store defaults to an in-memory store.
	Store CheckpointStore
	// IdleTimeout evicts sessions with no frames or commands; zero disables it.
	IdleTimeout time.Duration
	// CheckpointTTL purges stored checkpoints older than this; zero disables it.
	CheckpointTTL time.Duration
	Log           *slog.Logger
}

// Manager owns the live sessions.
type Manager struct {
	opts  Options
	store CheckpointStore
	log   *slog.Logger

	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session
}

// NewManager validates the counter configuration and returns a Manager.
func NewManager(opts Options) (*Manager, error) {
	if err := opts.Counter.Validate(); err != nil {
		return nil, fmt.Errorf("counter config: %w", err)
	}
	if opts.Store == nil {
		opts.Store = NewMemoryStore()
	}
	if opts.Log == nil {
		opts.Log = slog.Default()
	}
	return &Manager{
		opts:     opts,
		store:    opts.Store,
		log:      opts.Log,
		sessions: make(map[uuid.UUID]*Session),
	}, nil
}

// Create starts a new session with a fresh id.
func (m *Manager) Create(ctx context.Context) (*Session, error) {
	s, _, err := m.Open(ctx, uuid.New())
	return s, err
}

// Open returns the live session with the given id, restores it from its
// checkpoint, or creates it. restored reports whether a checkpoint was used.
func (m *Manager) Open(ctx context.Context, id uuid.UUID) (s *Session, restored bool, err error) {
	if s, err := m.Get(id); err == nil {
		s.touch()
		return s, false, nil
	}

	cp, found, err := m.store.LoadCheckpoint(ctx, id)
	if err != nil {
		// A broken store must not block counting; start fresh.
		m.log.Warn("loading checkpoint failed", "session", id, "error", err)
		found = false
	}

	c, err := counter.New(m.opts.Counter)
	if err != nil {
		return nil, false, err
	}
	if found {
		c.Restore(cp)
	}
	fresh := newSession(id, c, m.opts.Detector)

	m.mu.Lock()
	if existing, ok := m.sessions[id]; ok {
		m.mu.Unlock()
		existing.touch()
		return existing, false, nil
	}
	m.sessions[id] = fresh
	m.mu.Unlock()

	if found {
		m.log.Info("session restored", "session", id, "count", cp.Count, "stage", cp.Stage)
	} else {
		m.log.Info("session created", "session", id)
	}
	return fresh, found, nil
}

// Get returns a live session.
func (m *Manager) Get(id uuid.UUID) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

// List returns all live sessions, oldest first.
func (m *Manager) List() []Info {
	m.mu.RLock()
	out := make([]Info, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s.Info())
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// Remove ends a session and deletes its checkpoint. Connections still holding
// the session see it as closed and stop.
func (m *Manager) Remove(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if ok {
		s.closed.Store(true)
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	if err := m.store.DeleteCheckpoint(ctx, id); err != nil {
		return fmt.Errorf("deleting checkpoint: %w", err)
	}
	if !ok {
		return ErrNotFound
	}
	m.log.Info("session removed", "session", id)
	return nil
}

// Persist saves the session checkpoint if count, stage or running changed
// since the last save. Store errors are logged, never returned: the counter
// keeps its state in memory regardless. Removed sessions are not saved.
func (m *Manager) Persist(ctx context.Context, s *Session) {
	if s.Closed() {
		return
	}
	cp, changed := s.checkpointIfChanged()
	if !changed {
		return
	}
	if err := m.store.SaveCheckpoint(ctx, s.id, cp); err != nil {
		m.log.Warn("saving checkpoint failed", "session", s.id, "error", err)
	}
}

// Run evicts idle sessions and purges stale checkpoints until ctx is done.
func (m *Manager) Run(ctx context.Context) {
	interval := time.Minute
	if t := m.opts.IdleTimeout / 2; t > 0 && t < interval {
		interval = t
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			m.sweep(ctx, now)
		}
	}
}

func (m *Manager) sweep(ctx context.Context, now time.Time) {
	if m.opts.IdleTimeout > 0 {
		cutoff := now.Add(-m.opts.IdleTimeout)
		var idle []*Session

		m.mu.Lock()
		for id, s := range m.sessions {
			if s.Attached() == 0 && s.LastActive().Before(cutoff) {
				idle = append(idle, s)
				delete(m.sessions, id)
			}
		}
		m.mu.Unlock()

		for _, s := range idle {
			// Always save on eviction so Open can resume it.
			if err := m.store.SaveCheckpoint(ctx, s.id, s.counter.Checkpoint()); err != nil {
				m.log.Warn("saving checkpoint on eviction failed", "session", s.id, "error", err)
			}
			m.log.Info("idle session evicted", "session", s.id, "last_active", s.LastActive())
		}
	}

	if m.opts.CheckpointTTL > 0 {
		n, err := m.store.PurgeCheckpoints(ctx, now.Add(-m.opts.CheckpointTTL))
		if err != nil {
			m.log.Warn("purging checkpoints failed", "error", err)
		} else if n > 0 {
			m.log.Info("stale checkpoints purged", "count", n)
		}
	}
}
