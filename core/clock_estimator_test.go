package core

import (
	"math"
	"testing"
)

func TestEstimateInitialClocksRecoversClock(t *testing.T) {
	grid := newTestGrid(t, 20)
	trans := newTestConstellation()
	r := newTestReceiver(t, grid, len(trans))

	clockTrue := func(idEpoch int) float64 { return 12.5 + 0.25*float64(idEpoch) }
	synthesizeObservations(t, r, trans, clockTrue, nil)

	err := EstimateInitialClocks(r, trans, SaastamoinenReduction, DefaultRobustConfig(), 100, false)
	if err != nil {
		t.Fatalf("EstimateInitialClocks: %v", err)
	}

	for idEpoch := 0; idEpoch < grid.Count; idEpoch++ {
		if !r.UsableEpoch(idEpoch) {
			t.Fatalf("epoch %d disabled on clean data", idEpoch)
		}
		if !almostEqual(r.Clock[idEpoch], clockTrue(idEpoch), 1e-4) {
			t.Fatalf("clock[%d] = %.6f, want %.6f", idEpoch, r.Clock[idEpoch], clockTrue(idEpoch))
		}
	}
}

func TestEstimateInitialClocksDownweightsOutlier(t *testing.T) {
	grid := newTestGrid(t, 10)
	trans := newTestConstellation()
	r := newTestReceiver(t, grid, len(trans))

	const clockTrue = 7.0
	synthesizeObservations(t, r, trans, func(int) float64 { return clockTrue }, nil)

	// Corrupt one code observation per epoch by 30 m. With five
	// transmitters the Huber reweighting must hold the clock estimate close
	// to the truth anyway.
	for idEpoch := 0; idEpoch < grid.Count; idEpoch++ {
		if o := r.Observation(idEpoch, 2); o != nil {
			o.AddValue(C1, 30)
			o.AddValue(C2, 30)
		}
	}

	err := EstimateInitialClocks(r, trans, SaastamoinenReduction, DefaultRobustConfig(), 100, false)
	if err != nil {
		t.Fatalf("EstimateInitialClocks: %v", err)
	}
	for idEpoch := 0; idEpoch < grid.Count; idEpoch++ {
		if !r.UsableEpoch(idEpoch) {
			continue
		}
		if math.Abs(r.Clock[idEpoch]-clockTrue) > 5 {
			t.Fatalf("clock[%d] = %.3f, want near %.1f despite outlier", idEpoch, r.Clock[idEpoch], clockTrue)
		}
	}
}

func TestEstimateInitialClocksDisablesDivergentEpoch(t *testing.T) {
	grid := newTestGrid(t, 10)
	trans := newTestConstellation()
	r := newTestReceiver(t, grid, len(trans))

	synthesizeObservations(t, r, trans, func(int) float64 { return 3 }, nil)

	// Wreck every code observation of one epoch consistently so the solved
	// position runs away instead of being absorbed as single-satellite noise.
	const bad = 4
	offsets := []float64{900, -700, 550, -820, 640}
	for idTrans := range trans {
		if o := r.Observation(bad, idTrans); o != nil {
			o.AddValue(C1, offsets[idTrans])
			o.AddValue(C2, offsets[idTrans])
		}
	}

	err := EstimateInitialClocks(r, trans, SaastamoinenReduction, DefaultRobustConfig(), 100, false)
	if err != nil {
		t.Fatalf("EstimateInitialClocks: %v", err)
	}
	if r.UsableEpoch(bad) {
		t.Fatalf("epoch %d with divergent position still usable", bad)
	}
	for idEpoch := 0; idEpoch < grid.Count; idEpoch++ {
		if idEpoch != bad && !r.UsableEpoch(idEpoch) {
			t.Fatalf("clean epoch %d disabled", idEpoch)
		}
	}
}

func TestDisableGrossCodeOutlierEpochs(t *testing.T) {
	grid := newTestGrid(t, 10)
	trans := newTestConstellation()
	r := newTestReceiver(t, grid, len(trans))

	synthesizeObservations(t, r, trans, func(int) float64 { return 3 }, nil)
	if err := EstimateInitialClocks(r, trans, SaastamoinenReduction, DefaultRobustConfig(), 100, false); err != nil {
		t.Fatalf("EstimateInitialClocks: %v", err)
	}

	// Shift the whole epoch's code consistently after the clock solve, so
	// only the looser second screening pass can catch it.
	const bad = 6
	offsets := []float64{400, -380, 300, -410, 350}
	for idTrans := range trans {
		if o := r.Observation(bad, idTrans); o != nil {
			o.AddValue(C1, offsets[idTrans])
			o.AddValue(C2, offsets[idTrans])
		}
	}

	eqn := BuildObservationEquations(r, trans, SaastamoinenReduction, KindRange)
	disabled := DisableGrossCodeOutlierEpochs(r, eqn, DefaultRobustConfig(), 100, 0.5)

	if disabled != 1 {
		t.Fatalf("disabled %d epochs, want 1", disabled)
	}
	if r.UsableEpoch(bad) {
		t.Fatalf("gross-outlier epoch %d still usable", bad)
	}
}

func TestDisableGrossCodeOutlierEpochsSingleResidual(t *testing.T) {
	grid := newTestGrid(t, 10)
	trans := newTestConstellation()
	r := newTestReceiver(t, grid, len(trans))

	synthesizeObservations(t, r, trans, func(int) float64 { return 3 }, nil)

	// One code observation ten formal sigmas off amid otherwise clean data.
	// The robust solve absorbs it into clock and position without tripping
	// the position gate, so only the residual screen can drop the epoch.
	const bad = 5
	if o := r.Observation(bad, 0); o != nil {
		o.AddValue(C1, 10)
	}

	if err := EstimateInitialClocks(r, trans, SaastamoinenReduction, DefaultRobustConfig(), 100, false); err != nil {
		t.Fatalf("EstimateInitialClocks: %v", err)
	}
	if !r.UsableEpoch(bad) {
		t.Fatalf("epoch %d disabled already by the initial estimate", bad)
	}

	eqn := BuildObservationEquations(r, trans, SaastamoinenReduction, KindRange)
	disabled := DisableGrossCodeOutlierEpochs(r, eqn, DefaultRobustConfig(), 100, 0.5)

	if disabled != 1 {
		t.Fatalf("disabled %d epochs, want 1", disabled)
	}
	if r.UsableEpoch(bad) {
		t.Fatalf("epoch %d with the gross residual still usable", bad)
	}
	for idEpoch := 0; idEpoch < grid.Count; idEpoch++ {
		if idEpoch != bad && !r.UsableEpoch(idEpoch) {
			t.Fatalf("clean epoch %d disabled", idEpoch)
		}
	}
}

func TestEstimateInitialClocksFailsWithoutGeometry(t *testing.T) {
	grid := newTestGrid(t, 5)
	trans := newTestConstellation()[:3] // below the minimum transmitter count
	r := newTestReceiver(t, grid, len(trans))

	synthesizeObservations(t, r, trans, func(int) float64 { return 0 }, nil)

	if err := EstimateInitialClocks(r, trans, SaastamoinenReduction, DefaultRobustConfig(), 100, false); err == nil {
		t.Fatal("expected error with only three transmitters")
	}
}
