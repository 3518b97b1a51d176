package core

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// ApplyElevationCutoff disables every observation whose line of sight lies
// below the cutoff elevation (radians). Operates in place on the receiver.
// Returns the number of observations disabled.
func ApplyElevationCutoff(r *Receiver, eqn *ObservationEquationList, cutoff float64) int {
	if !r.Usable() {
		return 0
	}
	disabled := 0
	for idEpoch := 0; idEpoch < r.Grid.Count; idEpoch++ {
		for _, e := range eqn.AtEpoch(idEpoch) {
			if e.Elevation >= cutoff {
				continue
			}
			if o := r.Observation(idEpoch, e.IdTrans); o != nil {
				o.Disable()
				disabled++
			}
		}
	}
	return disabled
}

// RemoveLowElevationTracks drops tracks whose elevation never exceeds the
// minimum excursion (radians). A track that stays near the horizon for its
// whole arc is dominated by multipath and atmosphere and carries no
// estimable signal. Returns the number of tracks removed.
func RemoveLowElevationTracks(r *Receiver, eqn *ObservationEquationList, minimum float64) int {
	if !r.Usable() {
		return 0
	}
	removed := 0
	for _, track := range append([]*Track{}, r.Tracks...) {
		maxEl := -math.Pi / 2
		for idEpoch := track.StartEpoch; idEpoch <= track.EndEpoch; idEpoch++ {
			if e := eqn.At(idEpoch, track.IdTrans); e != nil && e.Elevation > maxEl {
				maxEl = e.Elevation
			}
		}
		if maxEl < minimum {
			r.removeTrack(track)
			removed++
		}
	}
	return removed
}

// TrackOutlierDetection fits the expected smooth behaviour of each phase
// residual series per track (linear trend) and disables epochs whose
// standardized residual exceeds huber*sigma0, using the same smooth
// downweighting as the clock estimator to compute sigma0. Returns the number
// of observations disabled.
func TrackOutlierDetection(r *Receiver, eqn *ObservationEquationList, cfg RobustConfig) int {
	if !r.Usable() {
		return 0
	}
	disabled := 0
	for _, track := range r.Tracks {
		for _, t := range track.Types {
			if t.Component != Phase {
				continue
			}
			disabled += trackTypeOutliers(r, eqn, track, t, cfg)
		}
	}
	return disabled
}

func trackTypeOutliers(r *Receiver, eqn *ObservationEquationList, track *Track, t SignalType, cfg RobustConfig) int {
	var xs, ys []float64
	var epochs []int
	for idEpoch := track.StartEpoch; idEpoch <= track.EndEpoch; idEpoch++ {
		e := eqn.At(idEpoch, track.IdTrans)
		if e == nil {
			continue
		}
		v, ok := e.Residual(t)
		if !ok {
			continue
		}
		xs = append(xs, float64(idEpoch))
		ys = append(ys, v)
		epochs = append(epochs, idEpoch)
	}
	if len(ys) < 4 {
		return 0
	}

	// Expected behaviour within an arc is a slow drift: a linear fit
	// absorbs ambiguity level and ionospheric trend, the rest is noise.
	alpha, beta := stat.LinearRegression(xs, ys, nil, false)

	res := make([]float64, len(ys))
	for i := range ys {
		res[i] = ys[i] - (alpha + beta*xs[i])
	}
	sigma0 := stat.StdDev(res, nil)
	if sigma0 == 0 || math.IsNaN(sigma0) {
		return 0
	}

	disabled := 0
	for i, v := range res {
		if math.Abs(v)/sigma0 <= cfg.Huber {
			continue
		}
		if o := r.Observation(epochs[i], track.IdTrans); o != nil {
			o.Disable()
			disabled++
		}
	}
	return disabled
}
