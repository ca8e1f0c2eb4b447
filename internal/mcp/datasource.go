package mcp

import (
	"context"
	"fmt"

	"github.com/claude/repcam/internal/session"
	"github.com/google/uuid"
)

// DataSource abstracts the session layer for MCP tools. Both ManagerSource
// (in-process) and HTTPClient (remote via REST API) satisfy this interface.
type DataSource interface {
	ListSessions(ctx context.Context) ([]session.Info, error)
	GetSession(ctx context.Context, id string) (*session.Info, error)
	ControlSession(ctx context.Context, id string, cmd session.Command) (*session.Update, error)
}

// ManagerSource serves MCP tools straight from a session.Manager.
type ManagerSource struct {
	sessions *session.Manager
}

// Compile-time checks.
var (
	_ DataSource = (*ManagerSource)(nil)
	_ DataSource = (*HTTPClient)(nil)
)

// NewManagerSource wraps m.
func NewManagerSource(m *session.Manager) *ManagerSource {
	return &ManagerSource{sessions: m}
}

func (s *ManagerSource) ListSessions(_ context.Context) ([]session.Info, error) {
	return s.sessions.List(), nil
}

func (s *ManagerSource) GetSession(_ context.Context, id string) (*session.Info, error) {
	sess, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	info := sess.Info()
	return &info, nil
}

func (s *ManagerSource) ControlSession(ctx context.Context, id string, cmd session.Command) (*session.Update, error) {
	sess, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	u, err := sess.Apply(cmd)
	if err != nil {
		return nil, err
	}
	s.sessions.Persist(ctx, sess)
	return &u, nil
}

func (s *ManagerSource) lookup(id string) (*session.Session, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("invalid session id %q", id)
	}
	return s.sessions.Get(uid)
}
