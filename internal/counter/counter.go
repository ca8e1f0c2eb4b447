// Package counter turns a stream of knee angles into a squat repetition count.
//
// A Counter keeps a two-state machine with a hysteresis band: the smoothed
// angle must fall below the flexion threshold (DOWN) and then rise above the
// extension threshold (UP) for a rep to count, and two counted reps must be
// further apart than the debounce interval. Angles inside the band never
// change state.
package counter

import (
	"sync"
	"time"
)

// Stage is the state of the rep state machine.
type Stage string

const (
	StageUnset Stage = "UNSET"
	StageDown  Stage = "DOWN"
	StageUp    Stage = "UP"
)

// Snapshot is a consistent copy of a counter's state.
type Snapshot struct {
	Count    int        `json:"count"`
	Stage    Stage      `json:"stage"`
	Running  bool       `json:"running"`
	LastRep  *time.Time `json:"last_rep,omitempty"`
	Smoothed float64    `json:"smoothed"`
	Samples  int        `json:"samples"`
	Skipped  uint64     `json:"skipped"`
}

// Checkpoint is the part of the state that survives a reconnect or restart.
// The smoothing window is not part of it.
type Checkpoint struct {
	Count   int
	Stage   Stage
	Running bool
	LastRep *time.Time
}

// Option configures a Counter.
type Option func(*Counter)

// WithClock replaces time.Now, for replaying recorded streams and tests.
func WithClock(now func() time.Time) Option {
	return func(c *Counter) { c.now = now }
}

// Counter is the per-session rep state machine. All methods are safe for
// concurrent use; each one holds the lock for its whole transition, so a
// Reset can never observe or produce a half-applied frame.
type Counter struct {
	cfg Config
	now func() time.Time

	mu       sync.Mutex
	window   *Window
	count    int
	stage    Stage
	running  bool
	lastRep  time.Time
	hasRep   bool
	smoothed float64
	skipped  uint64
}

// New validates cfg and returns a stopped counter in its initial state.
func New(cfg Config, opts ...Option) (*Counter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := &Counter{
		cfg:    cfg,
		now:    time.Now,
		window: NewWindow(cfg.WindowSize),
		stage:  StageUnset,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Config returns the counter's configuration.
func (c *Counter) Config() Config { return c.cfg }

// Observe feeds one raw knee angle. While the counter is stopped the sample
// is ignored and the window is left untouched.
func (c *Counter) Observe(angle float64) Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return c.snapshotLocked()
	}

	c.window.Push(angle)
	c.smoothed = c.window.Mean()

	switch {
	case c.smoothed < c.cfg.FlexionThreshold:
		c.stage = StageDown
	case c.smoothed > c.cfg.ExtensionThreshold:
		if c.stage != StageDown {
			break
		}
		now := c.now()
		// A rep completed inside the debounce interval leaves the stage at
		// DOWN, so it still counts once the interval has passed.
		if c.hasRep && now.Sub(c.lastRep) <= c.cfg.Debounce {
			break
		}
		c.count++
		c.lastRep = now
		c.hasRep = true
		c.stage = StageUp
	}

	return c.snapshotLocked()
}

// Skip records a frame without a detected pose. The window and state machine
// are not touched, so a skipped frame is indistinguishable from no frame.
func (c *Counter) Skip() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.skipped++
	return c.snapshotLocked()
}

// Start enables evaluation of observed angles.
func (c *Counter) Start() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.running = true
	return c.snapshotLocked()
}

// Stop pauses evaluation; observed angles are ignored until Start.
func (c *Counter) Stop() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.running = false
	return c.snapshotLocked()
}

// Reset returns the counter to {0, UNSET, no last rep}, clears the window and
// stops evaluation.
func (c *Counter) Reset() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.count = 0
	c.stage = StageUnset
	c.lastRep = time.Time{}
	c.hasRep = false
	c.smoothed = 0
	c.skipped = 0
	c.running = false
	c.window.Clear()
	return c.snapshotLocked()
}

// Restore reinstates a checkpoint and clears the window.
func (c *Counter) Restore(cp Checkpoint) Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.count = max(cp.Count, 0)
	switch cp.Stage {
	case StageDown, StageUp:
		c.stage = cp.Stage
	default:
		c.stage = StageUnset
	}
	c.running = cp.Running
	c.hasRep = cp.LastRep != nil
	c.lastRep = time.Time{}
	if cp.LastRep != nil {
		c.lastRep = *cp.LastRep
	}
	c.smoothed = 0
	c.window.Clear()
	return c.snapshotLocked()
}

// Snapshot returns the current state.
func (c *Counter) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Checkpoint returns the persistable part of the current state.
func (c *Counter) Checkpoint() Checkpoint {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := Checkpoint{Count: c.count, Stage: c.stage, Running: c.running}
	if c.hasRep {
		t := c.lastRep
		cp.LastRep = &t
	}
	return cp
}

// WindowValues returns the smoothing window contents, oldest first.
func (c *Counter) WindowValues() []float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.window.Values()
}

func (c *Counter) snapshotLocked() Snapshot {
	s := Snapshot{
		Count:    c.count,
		Stage:    c.stage,
		Running:  c.running,
		Smoothed: c.smoothed,
		Samples:  c.window.Len(),
		Skipped:  c.skipped,
	}
	if c.hasRep {
		t := c.lastRep
		s.LastRep = &t
	}
	return s
}
