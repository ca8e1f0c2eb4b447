package counter

import "gonum.org/v1/gonum/stat"

// Window is a fixed-capacity ring of the most recent angle samples. Push is
// O(1) and evicts the oldest sample once the ring is full.
type Window struct {
	values []float64
	next   int
	count  int
}

// NewWindow returns an empty window holding at most size samples.
func NewWindow(size int) *Window {
	if size < 1 {
		size = 1
	}
	return &Window{values: make([]float64, size)}
}

// Push appends v, evicting the oldest sample when full.
func (w *Window) Push(v float64) {
	w.values[w.next] = v
	w.next = (w.next + 1) % len(w.values)
	if w.count < len(w.values) {
		w.count++
	}
}

// Mean returns the average of the current contents, or 0 when empty.
func (w *Window) Mean() float64 {
	if w.count == 0 {
		return 0
	}
	// Before the ring wraps the live samples are values[:count]; afterwards
	// every slot is live. Order does not matter for the mean.
	return stat.Mean(w.values[:w.count], nil)
}

// Len returns the number of samples held.
func (w *Window) Len() int { return w.count }

// Cap returns the window capacity.
func (w *Window) Cap() int { return len(w.values) }

// Values returns the samples oldest first.
func (w *Window) Values() []float64 {
	out := make([]float64, 0, w.count)
	start := 0
	if w.count == len(w.values) {
		start = w.next
	}
	for i := 0; i < w.count; i++ {
		out = append(out, w.values[(start+i)%len(w.values)])
	}
	return out
}

// Clear empties the window.
func (w *Window) Clear() {
	w.next, w.count = 0, 0
	clear(w.values)
}
