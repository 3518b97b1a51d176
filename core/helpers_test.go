package core

import (
	"math"
	"testing"
	"time"

	"github.com/signalsfoundry/gnss-preprocessor/timegrid"
)

var testStart = time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)

func newTestGrid(t *testing.T, count int) *timegrid.Grid {
	t.Helper()
	grid, err := timegrid.New(testStart, 30*time.Second, count)
	if err != nil {
		t.Fatalf("timegrid.New: %v", err)
	}
	return grid
}

func newTestReceiver(t *testing.T, grid *timegrid.Grid, transmitterCount int) *Receiver {
	t.Helper()
	r, err := NewReceiver("TEST", nil, grid, transmitterCount)
	if err != nil {
		t.Fatalf("NewReceiver: %v", err)
	}
	r.ApproxPos = Vec3{X: EarthRadius}
	return r
}

// newTestConstellation returns static transmitters with good geometry above a
// receiver sitting at (EarthRadius, 0, 0).
func newTestConstellation() []*Transmitter {
	positions := []Vec3{
		{X: 26.5e6, Y: 0, Z: 0},
		{X: 20e6, Y: 15e6, Z: 0},
		{X: 20e6, Y: -15e6, Z: 0},
		{X: 20e6, Y: 0, Z: 15e6},
		{X: 20e6, Y: 0, Z: -15e6},
	}
	prns := []string{"G01", "G02", "G03", "G04", "G05"}
	out := make([]*Transmitter, len(positions))
	for i, p := range positions {
		out[i] = NewTransmitterWithEphemeris(prns[i], &StaticEphemeris{Pos: p})
	}
	return out
}

// synthesizeObservations fills the receiver with noise-free dual-frequency
// observations consistent with the static constellation, a per-epoch clock
// offset (metres), and integer phase ambiguities per transmitter.
func synthesizeObservations(t *testing.T, r *Receiver, transmitters []*Transmitter, clock func(idEpoch int) float64, ambiguity func(idTrans int, st SignalType) float64) {
	t.Helper()
	for idEpoch := 0; idEpoch < r.Grid.Count; idEpoch++ {
		epochTime := r.Grid.Time(idEpoch)
		recvPos := r.Position(idEpoch).Add(r.Offset[idEpoch])
		for idTrans, tr := range transmitters {
			transPos, err := tr.Position(epochTime)
			if err != nil {
				t.Fatalf("transmitter position: %v", err)
			}
			elevation := Elevation(recvPos, transPos)
			tropo := SaastamoinenReduction(r, tr, idEpoch, C1, elevation)
			rho := GeometricRange(transPos, recvPos)
			base := rho + clock(idEpoch) - tr.ClockOffset(epochTime) + tropo

			types := []SignalType{C1, C2, L1, L2}
			values := make([]float64, len(types))
			for i, st := range types {
				values[i] = base
				if st.Component == Phase && ambiguity != nil {
					values[i] += ambiguity(idTrans, st) * st.Band.Wavelength()
				}
			}
			r.SetObservation(idEpoch, idTrans, NewObservation(types, values, []float64{1, 1, 0.01, 0.01}))
		}
	}
	r.DisableEmptyEpochs()
}

func almostEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}
