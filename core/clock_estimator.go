package core

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// RobustConfig bundles the iterative-reweighting parameters shared by the
// clock estimator and the outlier filters.
type RobustConfig struct {
	// Huber is the threshold in units of sigma0 beyond which residuals are
	// downweighted.
	Huber float64
	// HuberPower shapes the downweighting: w = (huber/|v/sigma0|)^power.
	HuberPower float64
}

// DefaultRobustConfig matches the conventional preprocessing defaults.
func DefaultRobustConfig() RobustConfig {
	return RobustConfig{Huber: 2.5, HuberPower: 1.5}
}

const (
	clockSolveMaxIter    = 10
	clockSolveMinTrans   = 4
	weightConvergenceTol = 1e-3
)

// EstimateInitialClocks performs a per-epoch, code-only point-positioning
// solve for the receiver clock offset. Residuals beyond huber*sigma0 are
// smoothly downweighted, not rejected. Epochs whose solved position deviates
// from the nominal position by more than maxPositionDiff metres are disabled
// as gross-outlier epochs. Clock offsets are fresh: any previous estimate is
// discarded before solving.
//
// When estimatePosition is true the mean position shift over all solved
// epochs is committed to the receiver's nominal position afterwards.
func EstimateInitialClocks(r *Receiver, transmitters []*Transmitter, reduce ModelReduction, cfg RobustConfig, maxPositionDiff float64, estimatePosition bool) error {
	if !r.Usable() {
		return nil
	}
	for i := range r.Clock {
		r.Clock[i] = 0
	}

	eqn := BuildObservationEquations(r, transmitters, reduce, KindRange)

	var meanShift Vec3
	solved := 0

	for idEpoch := 0; idEpoch < r.Grid.Count; idEpoch++ {
		if !r.UsableEpoch(idEpoch) {
			continue
		}
		shift, clock, err := solveEpochCode(eqn.AtEpoch(idEpoch), cfg)
		if err != nil {
			r.DisableEpoch(idEpoch)
			continue
		}
		if shift.Norm() > maxPositionDiff {
			r.DisableEpoch(idEpoch)
			continue
		}
		r.Clock[idEpoch] = clock
		meanShift = meanShift.Add(shift)
		solved++
	}

	if solved == 0 {
		return fmt.Errorf("no epoch with solvable code clock")
	}
	if estimatePosition {
		r.ApproxPos = r.ApproxPos.Add(meanShift.Scale(1 / float64(solved)))
	}
	return nil
}

// solveEpochCode runs the iteratively reweighted least-squares solve of one
// epoch: three position components plus the clock, from code residuals only.
func solveEpochCode(eqns []*ObservationEquation, cfg RobustConfig) (shift Vec3, clock float64, err error) {
	type row struct {
		e     *ObservationEquation
		l     float64
		sigma float64
	}
	var rows []row
	transSeen := map[int]bool{}
	for _, e := range eqns {
		for i, t := range e.Types {
			if t.Component != Range {
				continue
			}
			rows = append(rows, row{e: e, l: e.Residuals[i], sigma: e.Sigmas[i]})
			transSeen[e.IdTrans] = true
		}
	}
	if len(transSeen) < clockSolveMinTrans {
		return Vec3{}, 0, fmt.Errorf("only %d usable transmitters", len(transSeen))
	}

	n := len(rows)
	const m = 4
	if n < m {
		return Vec3{}, 0, fmt.Errorf("underdetermined epoch: %d code observations", n)
	}

	weights := make([]float64, n)
	for i := range weights {
		weights[i] = 1
	}

	var x mat.VecDense
	for iter := 0; iter < clockSolveMaxIter; iter++ {
		a := mat.NewDense(n, m, nil)
		b := mat.NewVecDense(n, nil)
		for i, rw := range rows {
			// Scale each row by sqrt(weight)/sigma so the plain
			// least-squares solve realizes the weighted problem.
			s := math.Sqrt(weights[i]) / rw.sigma
			a.Set(i, 0, -rw.e.Direction.X*s)
			a.Set(i, 1, -rw.e.Direction.Y*s)
			a.Set(i, 2, -rw.e.Direction.Z*s)
			a.Set(i, 3, s)
			b.SetVec(i, rw.l*s)
		}
		if err := x.SolveVec(a, b); err != nil {
			return Vec3{}, 0, fmt.Errorf("epoch solve: %w", err)
		}

		// Posterior residuals and sigma0.
		var vtwv float64
		res := make([]float64, n)
		for i, rw := range rows {
			pred := -rw.e.Direction.X*x.AtVec(0) - rw.e.Direction.Y*x.AtVec(1) - rw.e.Direction.Z*x.AtVec(2) + x.AtVec(3)
			res[i] = (rw.l - pred) / rw.sigma
			vtwv += weights[i] * res[i] * res[i]
		}
		sigma0 := math.Sqrt(vtwv / float64(n-m))
		if sigma0 == 0 || math.IsNaN(sigma0) {
			break
		}

		maxChange := 0.0
		for i := range rows {
			z := math.Abs(res[i]) / sigma0
			w := 1.0
			if z > cfg.Huber {
				w = math.Pow(cfg.Huber/z, cfg.HuberPower)
			}
			if change := math.Abs(w - weights[i]); change > maxChange {
				maxChange = change
			}
			weights[i] = w
		}
		if maxChange < weightConvergenceTol {
			break
		}
	}

	shift = Vec3{X: x.AtVec(0), Y: x.AtVec(1), Z: x.AtVec(2)}
	clock = x.AtVec(3)
	if math.IsNaN(shift.Norm()) || math.IsNaN(clock) {
		return Vec3{}, 0, fmt.Errorf("epoch solve diverged")
	}
	return shift, clock, nil
}

// DisableGrossCodeOutlierEpochs is the looser second pass of the
// clock-estimator residual test, catching bad code fixes that survived the
// initial estimate. An epoch is disabled when any code residual against the
// committed clock exceeds huber/factor formal sigmas, or when the re-solved
// position moves beyond maxPositionDiff/factor metres. factor in (0,1]
// loosens both limits relative to the initial estimate; a single gross
// residual masked by the robust solve still trips the first gate. Returns
// the number of epochs disabled.
func DisableGrossCodeOutlierEpochs(r *Receiver, eqn *ObservationEquationList, cfg RobustConfig, maxPositionDiff, factor float64) int {
	if !r.Usable() {
		return 0
	}
	if factor <= 0 || factor > 1 {
		factor = 1
	}
	shiftLimit := maxPositionDiff / factor
	residualLimit := cfg.Huber / factor
	disabled := 0
	for idEpoch := 0; idEpoch < r.Grid.Count; idEpoch++ {
		if !r.UsableEpoch(idEpoch) {
			continue
		}
		// Equations whose observation was disabled by an earlier filter no
		// longer count against the epoch.
		var eqns []*ObservationEquation
		for _, e := range eqn.AtEpoch(idEpoch) {
			if r.Observation(idEpoch, e.IdTrans) != nil {
				eqns = append(eqns, e)
			}
		}
		if len(eqns) == 0 {
			continue
		}
		if maxCodeResidual(eqns) > residualLimit {
			r.DisableEpoch(idEpoch)
			disabled++
			continue
		}
		shift, _, err := solveEpochCode(eqns, cfg)
		if err != nil {
			continue // too few observations is not a gross outlier
		}
		if shift.Norm() > shiftLimit {
			r.DisableEpoch(idEpoch)
			disabled++
		}
	}
	return disabled
}

// maxCodeResidual is the largest code residual in units of its formal sigma.
func maxCodeResidual(eqns []*ObservationEquation) float64 {
	worst := 0.0
	for _, e := range eqns {
		for i, t := range e.Types {
			if t.Component != Range || e.Sigmas[i] <= 0 {
				continue
			}
			if z := math.Abs(e.Residuals[i]) / e.Sigmas[i]; z > worst {
				worst = z
			}
		}
	}
	return worst
}
