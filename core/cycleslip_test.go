package core

import (
	"testing"
)

func testCycleSlipConfig() CycleSlipConfig {
	cfg := DefaultCycleSlipConfig()
	cfg.MinObsCount = 20
	// Noise-free synthetic series need far less smoothing than field data.
	cfg.DenoisingLambda = 1
	return cfg
}

// slipReceiver builds one clean 120-epoch arc against a single transmitter
// and injects an integer L1 jump of the given size at splitEpoch.
func slipReceiver(t *testing.T, cycles float64, splitEpoch int) (*Receiver, []*Transmitter) {
	t.Helper()
	grid := newTestGrid(t, 120)
	trans := []*Transmitter{NewTransmitterWithEphemeris("G07", &StaticEphemeris{Pos: Vec3{X: 26.5e6}})}
	r := newTestReceiver(t, grid, 1)

	synthesizeObservations(t, r, trans, func(int) float64 { return 0 }, func(idTrans int, st SignalType) float64 {
		switch st {
		case L1:
			return 100
		case L2:
			return -40
		default:
			return 0
		}
	})
	for idEpoch := splitEpoch; idEpoch < grid.Count; idEpoch++ {
		r.Observation(idEpoch, 0).AddValue(L1, cycles*BandL1.Wavelength())
	}

	r.CreateTracks(trans, testCycleSlipConfig().MinObsCount, []SignalType{C1, C2, L1, L2})
	if len(r.Tracks) != 1 {
		t.Fatalf("setup: got %d tracks, want 1", len(r.Tracks))
	}
	return r, trans
}

func TestDetectCycleSlipsSplitsAtJump(t *testing.T) {
	r, _ := slipReceiver(t, 3, 60)

	slips := DetectCycleSlips(r, testCycleSlipConfig())

	if slips != 1 {
		t.Fatalf("detected %d slips, want 1", slips)
	}
	if len(r.Tracks) != 2 {
		t.Fatalf("got %d tracks after split, want 2", len(r.Tracks))
	}
	if r.Tracks[0].EndEpoch != 59 || r.Tracks[1].StartEpoch != 60 {
		t.Errorf("split at [%d, %d], want [59, 60]", r.Tracks[0].EndEpoch, r.Tracks[1].StartEpoch)
	}
}

func TestDetectCycleSlipsLeavesCleanTrack(t *testing.T) {
	grid := newTestGrid(t, 120)
	trans := []*Transmitter{NewTransmitterWithEphemeris("G07", &StaticEphemeris{Pos: Vec3{X: 26.5e6}})}
	r := newTestReceiver(t, grid, 1)
	synthesizeObservations(t, r, trans, func(int) float64 { return 0 }, func(int, SignalType) float64 { return 42 })
	r.CreateTracks(trans, testCycleSlipConfig().MinObsCount, []SignalType{C1, C2, L1, L2})

	if slips := DetectCycleSlips(r, testCycleSlipConfig()); slips != 0 {
		t.Fatalf("detected %d slips on a clean arc, want 0", slips)
	}
	if len(r.Tracks) != 1 {
		t.Fatalf("clean track was split")
	}
}

func TestDetectCycleSlipsDropsShortRemainder(t *testing.T) {
	// Slip close to the arc end: the right-hand fragment is too short to
	// stand alone and must be removed, not kept as a runt track.
	r, _ := slipReceiver(t, 4, 110)

	DetectCycleSlips(r, testCycleSlipConfig())

	if len(r.Tracks) != 1 {
		t.Fatalf("got %d tracks, want 1", len(r.Tracks))
	}
	if r.Tracks[0].EndEpoch != 109 {
		t.Errorf("surviving track ends at %d, want 109", r.Tracks[0].EndEpoch)
	}
	for idEpoch := 110; idEpoch < 120; idEpoch++ {
		if r.Observation(idEpoch, 0) != nil {
			t.Fatalf("observation at dropped epoch %d still usable", idEpoch)
		}
	}
}

func TestRepairCycleSlipsMergesIntegerJump(t *testing.T) {
	r, trans := slipReceiver(t, 3, 60)
	cfg := testCycleSlipConfig()

	if slips := DetectCycleSlips(r, cfg); slips != 1 {
		t.Fatalf("detected %d slips, want 1", slips)
	}

	eqn := BuildObservationEquations(r, trans, SaastamoinenReduction, KindRange|KindPhase)
	repaired := RepairCycleSlips(r, eqn, cfg)

	if repaired != 1 {
		t.Fatalf("repaired %d boundaries, want 1", repaired)
	}
	if len(r.Tracks) != 1 {
		t.Fatalf("got %d tracks after repair, want 1", len(r.Tracks))
	}
	if r.Tracks[0].StartEpoch != 0 || r.Tracks[0].EndEpoch != 119 {
		t.Errorf("merged track = %v, want [0:119]", r.Tracks[0])
	}

	// After the correction the geometry-free combination must be level
	// across the old boundary again.
	before, _ := r.Observation(59, 0).Value(L1)
	after, _ := r.Observation(60, 0).Value(L1)
	if !almostEqual(after-before, 0, 1e-6) {
		t.Errorf("L1 step across repaired boundary = %.9f, want 0", after-before)
	}
}

func TestRepairCycleSlipsKeepsFractionalJumpSplit(t *testing.T) {
	r, trans := slipReceiver(t, 2.5, 60)
	cfg := testCycleSlipConfig()

	if slips := DetectCycleSlips(r, cfg); slips != 1 {
		t.Fatalf("detected %d slips, want 1", slips)
	}

	eqn := BuildObservationEquations(r, trans, SaastamoinenReduction, KindRange|KindPhase)
	if repaired := RepairCycleSlips(r, eqn, cfg); repaired != 0 {
		t.Fatalf("repaired %d boundaries for a non-integer jump, want 0", repaired)
	}
	if len(r.Tracks) != 2 {
		t.Fatalf("got %d tracks, want the split to stand", len(r.Tracks))
	}
}
