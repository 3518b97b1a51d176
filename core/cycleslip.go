package core

import "math"

// CycleSlipConfig collects the detector and repairer tuning knobs.
type CycleSlipConfig struct {
	// MinObsCount drops sub-tracks that fall below this length after a split.
	MinObsCount int
	// DenoisingLambda is the regularization weight of the total-variation
	// denoising step.
	DenoisingLambda float64
	// TECWindowSize is the moving-window length of the smoothness test in
	// epochs; zero disables the smoothness stage.
	TECWindowSize int
	// TECSigmaFactor scales the local moving standard deviation into the
	// slip-candidate threshold.
	TECSigmaFactor float64
	// RepairTolerance is the maximum distance from an integer cycle count,
	// in cycles, for a repair to be accepted.
	RepairTolerance float64
}

// DefaultCycleSlipConfig mirrors the conventional preprocessing defaults.
func DefaultCycleSlipConfig() CycleSlipConfig {
	return CycleSlipConfig{
		MinObsCount:     60,
		DenoisingLambda: 5,
		TECWindowSize:   15,
		TECSigmaFactor:  3.5,
		RepairTolerance: 0.25,
	}
}

// geometryFreeSeries forms the geometry-free (TEC-like) dual-frequency phase
// combination of one track, in metres. Geometric range cancels, leaving
// ionosphere and ambiguities; a cycle slip shows up as a step.
func geometryFreeSeries(r *Receiver, track *Track, a, b SignalType) ([]float64, []int) {
	var series []float64
	var epochs []int
	for idEpoch := track.StartEpoch; idEpoch <= track.EndEpoch; idEpoch++ {
		o := r.Observation(idEpoch, track.IdTrans)
		if o == nil {
			continue
		}
		va, oka := o.Value(a)
		vb, okb := o.Value(b)
		if !oka || !okb {
			continue
		}
		series = append(series, va-vb)
		epochs = append(epochs, idEpoch)
	}
	return series, epochs
}

// DetectCycleSlips runs the per-track slip detection on every track of the
// receiver: total-variation denoising of the geometry-free combination, a
// moving-window smoothness test, and recursive splitting at every epoch
// whose denoised step exceeds the local threshold. Sub-tracks shorter than
// the configured minimum are removed. Returns the number of split points.
func DetectCycleSlips(r *Receiver, cfg CycleSlipConfig) int {
	if !r.Usable() {
		return 0
	}
	slips := 0
	// The track list mutates while splitting, so iterate over a snapshot;
	// replacement sub-tracks are appended to the work list for re-checking.
	work := append([]*Track{}, r.Tracks...)
	for len(work) > 0 {
		track := work[0]
		work = work[1:]

		splitEpoch, ok := findSlip(r, track, cfg)
		if !ok {
			continue
		}
		slips++

		left := &Track{IdTrans: track.IdTrans, PRN: track.PRN, StartEpoch: track.StartEpoch, EndEpoch: splitEpoch - 1, Types: track.Types}
		right := &Track{IdTrans: track.IdTrans, PRN: track.PRN, StartEpoch: splitEpoch, EndEpoch: track.EndEpoch, Types: track.Types}

		var keep []*Track
		for _, sub := range []*Track{left, right} {
			if usableCount(r, sub) >= cfg.MinObsCount {
				keep = append(keep, sub)
				work = append(work, sub)
			}
		}
		r.replaceTrack(track, keep...)
		for _, sub := range []*Track{left, right} {
			if usableCount(r, sub) < cfg.MinObsCount {
				disableSpan(r, sub)
			}
		}
	}
	return slips
}

// findSlip locates the most significant slip candidate in one track, or
// reports none. The returned epoch is the first epoch after the step.
func findSlip(r *Receiver, track *Track, cfg CycleSlipConfig) (int, bool) {
	series, epochs := geometryFreeSeries(r, track, L1, L2)
	if len(series) < 3 {
		return 0, false
	}

	denoised := TotalVariationDenoise(series, cfg.DenoisingLambda)

	residual := make([]float64, len(series))
	for i := range series {
		residual[i] = series[i] - denoised[i]
	}

	// Threshold per sample: the smoothness test scales the local noise
	// level; with the window disabled only the raw step size counts,
	// gated by the smallest step a dual-frequency slip can produce.
	minStep := math.Abs(BandL1.Wavelength() - BandL2.Wavelength())
	var movingStd []float64
	if cfg.TECWindowSize > 0 {
		movingStd = MovingStdDev(residual, cfg.TECWindowSize)
	}

	bestIdx := -1
	bestStep := 0.0
	for i := 1; i < len(denoised); i++ {
		step := math.Abs(denoised[i] - denoised[i-1])
		if step < 0.75*minStep {
			continue
		}
		if movingStd != nil {
			threshold := cfg.TECSigmaFactor * movingStd[i]
			if threshold > 0 && step < threshold {
				continue
			}
		}
		if step > bestStep {
			bestStep = step
			bestIdx = i
		}
	}
	if bestIdx < 0 {
		return 0, false
	}
	return epochs[bestIdx], true
}

func usableCount(r *Receiver, track *Track) int {
	n := 0
	for idEpoch := track.StartEpoch; idEpoch <= track.EndEpoch; idEpoch++ {
		if o := r.Observation(idEpoch, track.IdTrans); o != nil && o.HasAll(track.Types) {
			n++
		}
	}
	return n
}

func disableSpan(r *Receiver, track *Track) {
	for idEpoch := track.StartEpoch; idEpoch <= track.EndEpoch; idEpoch++ {
		if idEpoch < 0 || idEpoch >= len(r.obs) {
			continue
		}
		if track.IdTrans < len(r.obs[idEpoch]) {
			r.obs[idEpoch][track.IdTrans].Disable()
		}
	}
}

// RepairCycleSlips tries to re-merge adjacent sub-tracks of the same
// transmitter that were split by the detector. For every phase type the
// integer-cycle jump across the boundary is estimated from the
// same-frequency residual series; when every estimate is within tolerance of
// an integer, the correction is applied to all phase observations after the
// boundary and the tracks are merged. Unresolvable boundaries stay split.
// Returns the number of repaired boundaries.
func RepairCycleSlips(r *Receiver, eqn *ObservationEquationList, cfg CycleSlipConfig) int {
	if !r.Usable() {
		return 0
	}
	repaired := 0

	for idTrans := 0; idTrans < r.TransmitterCount(); idTrans++ {
		for {
			tracks := r.TracksOf(idTrans)
			merged := false
			for i := 0; i+1 < len(tracks); i++ {
				prev, next := tracks[i], tracks[i+1]
				if prev.EndEpoch+1 != next.StartEpoch {
					continue // a real data gap, not a detector split
				}
				if repairBoundary(r, eqn, prev, next, cfg) {
					prev.EndEpoch = next.EndEpoch
					r.dropTrackEntry(next)
					repaired++
					merged = true
					break
				}
			}
			if !merged {
				break
			}
		}
	}
	return repaired
}

// repairBoundary estimates and applies the integer jump across one split.
func repairBoundary(r *Receiver, eqn *ObservationEquationList, prev, next *Track, cfg CycleSlipConfig) bool {
	const spanEpochs = 10

	type correction struct {
		t      SignalType
		cycles float64
	}
	var corrections []correction
	evaluated := 0

	for _, t := range []SignalType{L1, L2, L5} {
		before, okB := meanPhaseResidual(r, eqn, prev, t, prev.EndEpoch-spanEpochs+1, prev.EndEpoch)
		after, okA := meanPhaseResidual(r, eqn, next, t, next.StartEpoch, next.StartEpoch+spanEpochs-1)
		if !okB && !okA {
			continue // type not observed on this track
		}
		if !okB || !okA {
			return false
		}
		jump := (after - before) / t.Band.Wavelength()
		n := math.Round(jump)
		if math.Abs(jump-n) > cfg.RepairTolerance {
			return false // not an integer jump: genuine discontinuity, split stands
		}
		evaluated++
		if n != 0 {
			corrections = append(corrections, correction{t: t, cycles: n})
		}
	}
	if evaluated == 0 {
		return false
	}

	for _, c := range corrections {
		delta := -c.cycles * c.t.Band.Wavelength()
		for idEpoch := next.StartEpoch; idEpoch <= next.EndEpoch; idEpoch++ {
			if o := r.Observation(idEpoch, next.IdTrans); o != nil {
				o.AddValue(c.t, delta)
			}
			// Keep the equation residuals in sync so chained boundary
			// repairs on the same arc see corrected levels.
			if e := eqn.At(idEpoch, next.IdTrans); e != nil {
				for i, et := range e.Types {
					if et == c.t {
						e.Residuals[i] += delta
					}
				}
			}
		}
	}
	return true
}

// meanPhaseResidual averages the phase residual of one type over an epoch
// span of a track. The residual removes geometry and clocks, so its level is
// the ambiguity: constant within an arc, shifted by a slip.
func meanPhaseResidual(r *Receiver, eqn *ObservationEquationList, track *Track, t SignalType, lo, hi int) (float64, bool) {
	if lo < track.StartEpoch {
		lo = track.StartEpoch
	}
	if hi > track.EndEpoch {
		hi = track.EndEpoch
	}
	sum, n := 0.0, 0
	for idEpoch := lo; idEpoch <= hi; idEpoch++ {
		e := eqn.At(idEpoch, track.IdTrans)
		if e == nil {
			continue
		}
		v, ok := e.Residual(t)
		if !ok {
			continue
		}
		sum += v
		n++
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

// dropTrackEntry removes a track from the list without touching its
// observations (used when merging repaired sub-tracks).
func (r *Receiver) dropTrackEntry(track *Track) {
	for i, t := range r.Tracks {
		if t == track {
			r.Tracks = append(r.Tracks[:i], r.Tracks[i+1:]...)
			return
		}
	}
}
