package core

import (
	"context"
	"fmt"

	"github.com/signalsfoundry/gnss-preprocessor/internal/gnssio"
	"github.com/signalsfoundry/gnss-preprocessor/internal/logging"
	"github.com/signalsfoundry/gnss-preprocessor/internal/parallel"
)

// BuildReceiverFunc attempts to initialize and preprocess one candidate data
// source of a logical station. A nil receiver with a nil error means the
// source exists but did not survive preprocessing (or its file is absent) and
// the next alternative should be tried.
type BuildReceiverFunc func(ctx context.Context, name string) (*Receiver, error)

// Selection is the network-wide outcome of alternative selection. Chosen is
// index-aligned with the station list and holds the 1-based index of the
// alternative that was kept, or 0 when no alternative was usable. Every
// worker holds the full Chosen vector, but Receivers is populated only for
// the stations of its own shard.
type Selection struct {
	Chosen    []int
	Receivers []*Receiver
}

// SelectAlternatives walks this worker's shard of the station list. For each
// station the candidate sources are tried in priority order until one yields
// a usable receiver; the winning alternative index (plus one) goes into a
// shared vector that is summed across workers after a barrier, so afterwards
// every worker knows which alternative every station resolved to. Shards are
// disjoint, so the sum is a gather.
//
// Build errors demote the alternative and move on to the next one; they never
// abort the run.
func SelectAlternatives(ctx context.Context, comm *parallel.Comm, stations []gnssio.StationEntry, build BuildReceiverFunc, log logging.Logger) (*Selection, error) {
	if build == nil {
		return nil, fmt.Errorf("selector: build function is required")
	}
	if log == nil {
		log = logging.Noop()
	}

	sel := &Selection{
		Chosen:    make([]int, len(stations)),
		Receivers: make([]*Receiver, len(stations)),
	}

	local := make([]float64, len(stations))
	for i, st := range stations {
		if !comm.Mine(i) {
			continue
		}
		slog := logging.WithStation(log, st.Name())
		for j, alt := range st.Alternatives {
			r, err := build(ctx, alt)
			if err != nil {
				slog.Warn(ctx, "station alternative failed",
					logging.String("alternative", alt),
					logging.String("error", err.Error()))
				continue
			}
			if r == nil {
				continue
			}
			sel.Receivers[i] = r
			local[i] = float64(j + 1)
			if j > 0 {
				slog.Info(ctx, "station fell back to alternative",
					logging.String("alternative", alt),
					logging.Int("priority", j))
			}
			break
		}
		if sel.Receivers[i] == nil {
			slog.Warn(ctx, "no usable alternative for station",
				logging.Int("alternatives", len(st.Alternatives)))
		}
	}

	global := comm.AllReduceSum(local)
	for i, v := range global {
		sel.Chosen[i] = int(v)
	}
	return sel, nil
}

// Truncate drops stations beyond the first maxCount usable ones, preserving
// station-list order. A non-positive maxCount keeps everything. Every worker
// must call it with the same maxCount so the surviving set is consistent
// across shards.
func (s *Selection) Truncate(maxCount int) {
	if maxCount <= 0 {
		return
	}
	kept := 0
	for i := range s.Chosen {
		if s.Chosen[i] == 0 {
			continue
		}
		kept++
		if kept > maxCount {
			s.Chosen[i] = 0
			if r := s.Receivers[i]; r != nil {
				r.Disable("station count limit")
				s.Receivers[i] = nil
			}
		}
	}
}

// UsableCount is the number of stations that resolved to some alternative.
func (s *Selection) UsableCount() int {
	n := 0
	for _, c := range s.Chosen {
		if c > 0 {
			n++
		}
	}
	return n
}
