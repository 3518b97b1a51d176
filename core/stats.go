package core

import "sync"

// RunCounts is a plain bundle of per-run counters.
type RunCounts struct {
	StationsSelected int
	StationsDisabled int
	TransmittersDown int
	TracksFormed     int
	TracksRemoved    int
	SlipsDetected    int
	SlipsRepaired    int
	EpochsDisabled   int
	ObsDisabled      int
}

// RunStats accumulates counters for one preprocessing run.
// It is concurrency-safe and can be fed from multiple workers.
type RunStats struct {
	mu     sync.Mutex
	counts RunCounts
}

// NewRunStats creates a RunStats with all counters at zero.
func NewRunStats() *RunStats {
	return &RunStats{}
}

// Add applies a delta snapshot under one lock acquisition.
func (s *RunStats) Add(delta RunCounts) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts.StationsSelected += delta.StationsSelected
	s.counts.StationsDisabled += delta.StationsDisabled
	s.counts.TransmittersDown += delta.TransmittersDown
	s.counts.TracksFormed += delta.TracksFormed
	s.counts.TracksRemoved += delta.TracksRemoved
	s.counts.SlipsDetected += delta.SlipsDetected
	s.counts.SlipsRepaired += delta.SlipsRepaired
	s.counts.EpochsDisabled += delta.EpochsDisabled
	s.counts.ObsDisabled += delta.ObsDisabled
}

// Snapshot returns a copy of the current counters.
func (s *RunStats) Snapshot() RunCounts {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts
}
