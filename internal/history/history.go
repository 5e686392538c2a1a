// Package history implements the bounded rolling window of (time, value)
// samples kept per metric per sensor (component G). Grounded on spec.md
// §4.G and envsrv.Envmon's ringo.CircleF64/ringo.CircleTime pairing.
package history

import (
	"sync"
	"time"

	"github.com/brandondube/ringo"
)

// DefaultDepth is HISTORY_DEPTH_HOURS from spec.md §3.
const DefaultDepth = 24 * time.Hour

// Sample is one retained (time, value) point; Value is the raw reading
// scale, ×10 for temperature/humidity per spec.md §3.
type Sample struct {
	Time  time.Time
	Value int32
}

// History is a bounded, time-ordered ring of Samples for one metric of
// one sensor. It is safe for concurrent use: append and snapshot each
// take the mutex and release it before any caller-visible work (JSON
// encoding, comparisons) happens, so a slow reader never blocks a writer.
type History struct {
	mu       sync.Mutex
	values   ringo.CircleF64
	times    ringo.CircleTime
	depth    time.Duration
	truncate time.Time
}

// New builds a History capped at capacity samples. Each Snapshot also
// leaves out samples older than depth before its to bound (depth <= 0,
// or a zero to, skips this and relies on capacity and Truncate alone).
func New(capacity int, depth time.Duration) *History {
	h := &History{depth: depth}
	h.values.Init(capacity)
	h.times.Init(capacity)
	return h
}

// Append adds one sample. Invariant: time must be >= the time of the
// previous append (spec.md §3's "strictly non-decreasing time"); callers
// violating this get silently out-of-order data back from Snapshot,
// mirroring the source's unchecked linked-list append.
func (h *History) Append(at time.Time, value int32) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.times.Append(at)
	h.values.Append(float64(value))
}

// Truncate marks samples older than before as excluded from future
// Snapshots. ringo's fixed-capacity ring already bounds memory without
// an explicit walk-from-head free pass (the source's motivation for a
// distinct truncate step); Truncate here only records the cutoff, applied
// lazily by Snapshot, since the ring has no operation to drop interior
// elements outright.
func (h *History) Truncate(before time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if before.After(h.truncate) {
		h.truncate = before
	}
}

// Snapshot copies samples with from <= time <= to under the mutex and
// returns, so JSON formatting of the result never blocks Append.
func (h *History) Snapshot(from, to time.Time) []Sample {
	h.mu.Lock()
	times := h.times.Contiguous()
	values := h.values.Contiguous()
	depth := h.depth
	truncated := h.truncate
	h.mu.Unlock()

	cutoff := truncated
	if depth > 0 {
		if dc := to.Add(-depth); dc.After(cutoff) {
			cutoff = dc
		}
	}

	out := make([]Sample, 0, len(times))
	for i, t := range times {
		if t.IsZero() {
			continue
		}
		if !from.IsZero() && t.Before(from) {
			continue
		}
		if !to.IsZero() && t.After(to) {
			continue
		}
		if !cutoff.IsZero() && t.Before(cutoff) {
			continue
		}
		out = append(out, Sample{Time: t, Value: int32(values[i])})
	}
	return out
}

// Latest returns the most recently appended sample and whether one exists.
func (h *History) Latest() (Sample, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	t := h.times.Head()
	if t.IsZero() {
		return Sample{}, false
	}
	return Sample{Time: t, Value: int32(h.values.Head())}, true
}
