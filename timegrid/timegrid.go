package timegrid

import (
	"fmt"
	"sort"
	"time"
)

// Grid is the common epoch grid of one processing run. Every per-epoch
// quantity in the pipeline (usability flags, clock estimates, observations)
// is addressed by an index into this grid.
type Grid struct {
	Start    time.Time
	Sampling time.Duration
	Count    int
}

// New builds a grid of count epochs starting at start, spaced by sampling.
func New(start time.Time, sampling time.Duration, count int) (*Grid, error) {
	if sampling <= 0 {
		return nil, fmt.Errorf("timegrid: sampling must be positive, got %v", sampling)
	}
	if count <= 0 {
		return nil, fmt.Errorf("timegrid: count must be positive, got %d", count)
	}
	return &Grid{Start: start, Sampling: sampling, Count: count}, nil
}

// Time returns the timestamp of epoch idx.
func (g *Grid) Time(idx int) time.Time {
	return g.Start.Add(time.Duration(idx) * g.Sampling)
}

// End returns the timestamp of the last epoch.
func (g *Grid) End() time.Time {
	return g.Time(g.Count - 1)
}

// Duration is the total span covered by the grid.
func (g *Grid) Duration() time.Duration {
	return time.Duration(g.Count-1) * g.Sampling
}

// Index maps a timestamp to the nearest epoch index, or -1 if t falls
// outside the grid by more than half a sampling interval.
func (g *Grid) Index(t time.Time) int {
	d := t.Sub(g.Start)
	idx := int((d + g.Sampling/2) / g.Sampling)
	if idx < 0 || idx >= g.Count {
		return -1
	}
	off := t.Sub(g.Time(idx))
	if off < -g.Sampling/2 || off > g.Sampling/2 {
		return -1
	}
	return idx
}

// Times returns all epoch timestamps in order.
func (g *Grid) Times() []time.Time {
	ts := make([]time.Time, g.Count)
	for i := range ts {
		ts[i] = g.Time(i)
	}
	return ts
}

// MedianSampling estimates the sampling interval of an irregular epoch
// sequence as the median of consecutive differences. Receivers record at
// this nominal rate even when individual epochs are missing, so the median
// is robust against gaps.
func MedianSampling(times []time.Time) time.Duration {
	if len(times) < 2 {
		return 0
	}
	diffs := make([]time.Duration, 0, len(times)-1)
	for i := 1; i < len(times); i++ {
		diffs = append(diffs, times[i].Sub(times[i-1]))
	}
	sort.Slice(diffs, func(i, j int) bool { return diffs[i] < diffs[j] })
	return diffs[len(diffs)/2]
}
