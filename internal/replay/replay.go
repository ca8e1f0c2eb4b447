// Package replay drives a rep counter from a recorded pose log so thresholds
// can be tuned offline.
//
// A log is JSON Lines, one frame per line:
//
//	{"t": 0.125, "joints": {"hip": {"x": 0.5, "y": 0.3}, "knee": {...}, "ankle": {...}}}
//	{"t": 0.250, "joints": null}
//
// t is seconds since the start of the recording and drives the counter's
// clock, so debounce behaves exactly as it did live.
package replay

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/claude/repcam/internal/counter"
	"github.com/claude/repcam/internal/pose"
)

// maxLineSize bounds a single log line.
const maxLineSize = 1 << 20

// Record is one line of a pose log.
type Record struct {
	T      float64      `json:"t"`
	Joints *pose.Joints `json:"joints"`
}

// Rep describes one counted repetition.
type Rep struct {
	Count int     `json:"count"`
	At    float64 `json:"t"`
	Angle float64 `json:"smoothed_angle"`
}

// Stats tracks replay progress.
type Stats struct {
	Frames    int              `json:"frames"`
	Skipped   int              `json:"skipped"`
	Malformed int              `json:"malformed"`
	Reps      []Rep            `json:"reps"`
	Final     counter.Snapshot `json:"final"`
}

// Replayer feeds pose logs through a fresh counter.
type Replayer struct {
	cfg counter.Config
	log *slog.Logger
}

// New validates cfg and returns a Replayer.
func New(cfg counter.Config, log *slog.Logger) (*Replayer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("counter config: %w", err)
	}
	return &Replayer{cfg: cfg, log: log}, nil
}

// Replay reads r to the end and returns what the counter saw. Malformed lines
// are logged and counted, not fatal.
func (rp *Replayer) Replay(ctx context.Context, r io.Reader) (*Stats, error) {
	epoch := time.Unix(0, 0).UTC()
	now := epoch
	c, err := counter.New(rp.cfg, counter.WithClock(func() time.Time { return now }))
	if err != nil {
		return nil, err
	}
	c.Start()

	stats := &Stats{}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	line := 0
	for scanner.Scan() {
		line++
		if line%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return stats, err
			}
		}

		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(raw, &rec); err != nil {
			stats.Malformed++
			rp.log.Warn("skipping malformed line", "line", line, "error", err)
			continue
		}

		now = epoch.Add(time.Duration(rec.T * float64(time.Second)))
		stats.Frames++

		before := c.Snapshot().Count
		var snap counter.Snapshot
		if rec.Joints == nil {
			stats.Skipped++
			snap = c.Skip()
		} else {
			snap = c.Observe(pose.HingeAngle(*rec.Joints))
		}

		if snap.Count > before {
			rep := Rep{Count: snap.Count, At: rec.T, Angle: snap.Smoothed}
			stats.Reps = append(stats.Reps, rep)
			rp.log.Info("rep counted", "count", rep.Count, "t", rep.At, "smoothed_angle", rep.Angle)
		}
	}
	if err := scanner.Err(); err != nil {
		return stats, fmt.Errorf("reading pose log at line %d: %w", line+1, err)
	}

	stats.Final = c.Snapshot()
	return stats, nil
}
