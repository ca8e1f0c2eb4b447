package pose

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// maxMessageSize bounds a single framed message from the detector process.
const maxMessageSize = 32 << 20

// SubprocessConfig configures a SubprocessDetector.
type SubprocessConfig struct {
	Command       string
	Args          []string
	Side          Side
	MinVisibility float64
	Timeout       time.Duration
	// Annotate asks the process to return the frame with the skeleton drawn.
	Annotate bool
}

// detectRequest is written to the process stdin.
type detectRequest struct {
	Seq       uint64 `msgpack:"seq"`
	FrameData []byte `msgpack:"frame_data"`
	Annotate  bool   `msgpack:"annotate"`
}

// detectResponse is read from the process stdout. Landmarks are
// [x, y, z, visibility] rows in MediaPipe order, or nil when no pose was found.
type detectResponse struct {
	Seq       uint64      `msgpack:"seq"`
	Landmarks [][]float64 `msgpack:"landmarks"`
	Image     []byte      `msgpack:"image"`
	Error     string      `msgpack:"error"`
}

// SubprocessDetector runs an external pose-estimation process and talks to
// it over stdin/stdout using length-prefixed msgpack messages (4-byte
// big-endian length, then the payload). Requests are serialized; the process
// is started on first use and restarted after any protocol failure.
type SubprocessDetector struct {
	cfg SubprocessConfig
	log *slog.Logger

	mu     sync.Mutex
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Reader
	exited chan struct{}
	seq    uint64
}

// NewSubprocessDetector validates cfg and returns a detector. The process is
// not started until the first Detect call.
func NewSubprocessDetector(cfg SubprocessConfig, log *slog.Logger) (*SubprocessDetector, error) {
	if cfg.Command == "" {
		return nil, fmt.Errorf("detector command is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Second
	}
	if cfg.Side == "" {
		cfg.Side = SideRight
	}
	return &SubprocessDetector{cfg: cfg, log: log}, nil
}

// Detect sends one frame to the process and waits for its landmarks.
func (d *SubprocessDetector) Detect(ctx context.Context, f Frame) (Detection, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.cmd == nil {
		if err := d.startLocked(); err != nil {
			return Detection{}, err
		}
	}

	d.seq++
	req := detectRequest{Seq: d.seq, FrameData: f.Data, Annotate: d.cfg.Annotate}

	ctx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
	defer cancel()

	type result struct {
		resp detectResponse
		err  error
	}
	done := make(chan result, 1)
	stdin, stdout := d.stdin, d.stdout
	go func() {
		var r result
		if err := writeMessage(stdin, req); err != nil {
			r.err = fmt.Errorf("writing request: %w", err)
		} else if err := readMessage(stdout, &r.resp); err != nil {
			r.err = fmt.Errorf("reading response: %w", err)
		}
		done <- r
	}()

	var r result
	select {
	case r = <-done:
	case <-ctx.Done():
		d.stopLocked()
		return Detection{}, fmt.Errorf("detector frame %d: %w", f.Seq, ctx.Err())
	}

	if r.err != nil {
		d.stopLocked()
		return Detection{}, fmt.Errorf("detector frame %d: %w", f.Seq, r.err)
	}
	if r.resp.Seq != req.Seq {
		d.stopLocked()
		return Detection{}, fmt.Errorf("detector out of sync: sent seq %d, got %d", req.Seq, r.resp.Seq)
	}
	if r.resp.Error != "" {
		return Detection{}, fmt.Errorf("detector: %s", r.resp.Error)
	}

	det := Detection{Image: r.resp.Image}
	if r.resp.Landmarks != nil {
		det.Joints = SelectJoints(toLandmarks(r.resp.Landmarks), d.cfg.Side, d.cfg.MinVisibility)
	}
	return det, nil
}

// Close terminates the process if it is running.
func (d *SubprocessDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopLocked()
	return nil
}

func (d *SubprocessDetector) startLocked() error {
	cmd := exec.Command(d.cfg.Command, d.cfg.Args...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("creating stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("creating stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("creating stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting detector %s: %w", d.cfg.Command, err)
	}
	d.log.Info("detector process started", "command", d.cfg.Command, "pid", cmd.Process.Pid)

	exited := make(chan struct{})
	go d.logStderr(stderr)
	go func() {
		err := cmd.Wait()
		d.log.Info("detector process exited", "pid", cmd.Process.Pid, "error", err)
		close(exited)
	}()

	d.cmd = cmd
	d.stdin = stdin
	d.stdout = bufio.NewReader(stdout)
	d.exited = exited
	return nil
}

func (d *SubprocessDetector) stopLocked() {
	if d.cmd == nil {
		return
	}
	d.stdin.Close()
	if err := d.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		d.log.Debug("killing detector process", "error", err)
	}
	select {
	case <-d.exited:
	case <-time.After(5 * time.Second):
		d.log.Warn("detector process did not exit after kill", "pid", d.cmd.Process.Pid)
	}
	d.cmd, d.stdin, d.stdout, d.exited = nil, nil, nil, nil
}

func (d *SubprocessDetector) logStderr(r io.Reader) {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		d.log.Warn("detector stderr", "line", sc.Text())
	}
}

func toLandmarks(rows [][]float64) []Landmark {
	lms := make([]Landmark, len(rows))
	for i, row := range rows {
		if len(row) >= 2 {
			lms[i].X, lms[i].Y = row[0], row[1]
		}
		if len(row) >= 4 {
			lms[i].Visibility = row[3]
		}
	}
	return lms
}

func writeMessage(w io.Writer, v any) error {
	payload, err := msgpack.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshaling: %w", err)
	}
	var prefix [4]byte
	binary.BigEndian.PutUint32(prefix[:], uint32(len(payload)))
	if _, err := w.Write(prefix[:]); err != nil {
		return err
	}
	_, err = w.Write(payload)
	return err
}

func readMessage(r io.Reader, v any) error {
	var prefix [4]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		return err
	}
	n := binary.BigEndian.Uint32(prefix[:])
	if n > maxMessageSize {
		return fmt.Errorf("message of %d bytes exceeds limit", n)
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return err
	}
	return msgpack.Unmarshal(payload, v)
}
