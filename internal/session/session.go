package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/claude/repcam/internal/counter"
	"github.com/claude/repcam/internal/pose"
	"github.com/google/uuid"
)

// ErrNoDetector is returned for image frames when no pose detector is configured.
var ErrNoDetector = errors.New("no pose detector configured")

// Update is the per-frame (or per-command) output sent to clients.
type Update struct {
	Session  string        `json:"session"`
	Count    int           `json:"count"`
	Stage    counter.Stage `json:"stage"`
	Running  bool          `json:"running"`
	Detected bool          `json:"detected"`
	Angle    *float64      `json:"angle,omitempty"`
	Smoothed float64       `json:"smoothed"`
	Image    []byte        `json:"image,omitempty"`
}

// Info summarizes a session for listings.
type Info struct {
	ID         string           `json:"id"`
	CreatedAt  time.Time        `json:"created_at"`
	LastActive time.Time        `json:"last_active"`
	Frames     uint64           `json:"frames"`
	State      counter.Snapshot `json:"state"`
}

// Session is one live counting session: a rep counter plus the detector used
// for its image frames.
type Session struct {
	id        uuid.UUID
	createdAt time.Time
	counter   *counter.Counter
	detector  pose.Detector

	frameSeq   atomic.Uint64
	lastActive atomic.Int64 // unix nanos
	attached   atomic.Int32
	closed     atomic.Bool

	mu       sync.Mutex // guards lastSave
	lastSave counter.Checkpoint
}

func newSession(id uuid.UUID, c *counter.Counter, det pose.Detector) *Session {
	s := &Session{id: id, createdAt: time.Now(), counter: c, detector: det}
	s.touch()
	s.lastSave = c.Checkpoint()
	return s
}

// ID returns the session id.
func (s *Session) ID() uuid.UUID { return s.id }

// Counter returns the session's rep counter.
func (s *Session) Counter() *counter.Counter { return s.counter }

// HandlePose evaluates one frame's joints. Nil joints mean no pose was
// detected and the frame is skipped.
func (s *Session) HandlePose(j *pose.Joints) Update {
	s.touch()
	s.frameSeq.Add(1)
	if j == nil {
		return s.update(s.counter.Skip(), nil)
	}
	angle := pose.HingeAngle(*j)
	return s.update(s.counter.Observe(angle), &angle)
}

// HandleImage runs the detector on an encoded frame and evaluates the result.
// On detector failure the frame is dropped and the counter is untouched. The
// detector is shared between sessions, so a cancelled ctx does not abort a
// detection in flight; the detector's own timeout bounds it.
func (s *Session) HandleImage(ctx context.Context, data []byte) (Update, error) {
	if s.detector == nil {
		return Update{}, ErrNoDetector
	}
	s.touch()
	seq := s.frameSeq.Add(1)

	det, err := s.detector.Detect(context.WithoutCancel(ctx), pose.Frame{Seq: seq, Timestamp: time.Now(), Data: data})
	if err != nil {
		return s.update(s.counter.Snapshot(), nil), fmt.Errorf("detecting pose: %w", err)
	}

	var u Update
	if det.Joints == nil {
		u = s.update(s.counter.Skip(), nil)
	} else {
		angle := pose.HingeAngle(*det.Joints)
		u = s.update(s.counter.Observe(angle), &angle)
	}
	u.Image = det.Image
	return u, nil
}

// Apply executes a control command.
func (s *Session) Apply(cmd Command) (Update, error) {
	s.touch()
	var snap counter.Snapshot
	switch cmd {
	case CommandStart:
		snap = s.counter.Start()
	case CommandStop:
		snap = s.counter.Stop()
	case CommandReset:
		snap = s.counter.Reset()
	default:
		return Update{}, fmt.Errorf("unknown command %q", cmd)
	}
	return s.update(snap, nil), nil
}

// Snapshot returns the session's current output without processing a frame.
func (s *Session) Snapshot() Update {
	return s.update(s.counter.Snapshot(), nil)
}

// Info returns a listing summary.
func (s *Session) Info() Info {
	return Info{
		ID:         s.id.String(),
		CreatedAt:  s.createdAt,
		LastActive: s.LastActive(),
		Frames:     s.frameSeq.Load(),
		State:      s.counter.Snapshot(),
	}
}

// Attach records a client connection streaming into the session. Attached
// sessions are never evicted as idle.
func (s *Session) Attach() {
	s.attached.Add(1)
	s.touch()
}

// Detach undoes Attach. The idle timer restarts from the disconnect.
func (s *Session) Detach() {
	s.attached.Add(-1)
	s.touch()
}

// Attached returns the number of connected clients.
func (s *Session) Attached() int {
	return int(s.attached.Load())
}

// Closed reports whether the session was removed. Connections holding a
// closed session must stop feeding it.
func (s *Session) Closed() bool {
	return s.closed.Load()
}

// LastActive returns when the session last saw a frame or command.
func (s *Session) LastActive() time.Time {
	return time.Unix(0, s.lastActive.Load())
}

func (s *Session) touch() {
	s.lastActive.Store(time.Now().UnixNano())
}

// checkpointIfChanged returns the current checkpoint and whether it differs
// from the last one handed out.
func (s *Session) checkpointIfChanged() (counter.Checkpoint, bool) {
	cp := s.counter.Checkpoint()
	s.mu.Lock()
	defer s.mu.Unlock()
	if sameCheckpoint(cp, s.lastSave) {
		return cp, false
	}
	s.lastSave = cp
	return cp, true
}

func sameCheckpoint(a, b counter.Checkpoint) bool {
	if a.Count != b.Count || a.Stage != b.Stage || a.Running != b.Running {
		return false
	}
	if (a.LastRep == nil) != (b.LastRep == nil) {
		return false
	}
	return a.LastRep == nil || a.LastRep.Equal(*b.LastRep)
}

func (s *Session) update(snap counter.Snapshot, angle *float64) Update {
	return Update{
		Session:  s.id.String(),
		Count:    snap.Count,
		Stage:    snap.Stage,
		Running:  snap.Running,
		Detected: angle != nil,
		Angle:    angle,
		Smoothed: snap.Smoothed,
	}
}
