package core

import (
	"math"
	"testing"
)

func TestSignalBiasSetAndLookup(t *testing.T) {
	var b SignalBias
	b.Set(C1, 1.5)
	b.Set(L1, -0.3)
	b.Set(C1, 2.5) // replace

	if got := b.Bias(C1); got != 2.5 {
		t.Fatalf("Bias(C1) = %v, want 2.5", got)
	}
	if got := b.Bias(L1); got != -0.3 {
		t.Fatalf("Bias(L1) = %v, want -0.3", got)
	}
	if got := b.Bias(C5); got != 0 {
		t.Fatalf("Bias(C5) = %v, want 0 for unset type", got)
	}
}

func TestSignalBiasWrapPhases(t *testing.T) {
	var b SignalBias
	lambda := BandL1.Wavelength()
	b.Set(L1, 7*lambda+0.01)
	b.Set(C1, 7*lambda+0.01) // code bias must not be wrapped

	b.WrapPhases()

	if got := b.Bias(L1); !almostEqual(got, 0.01, 1e-9) {
		t.Fatalf("wrapped L1 bias = %v, want 0.01", got)
	}
	if got := b.Bias(C1); !almostEqual(got, 7*lambda+0.01, 1e-12) {
		t.Fatalf("code bias changed by WrapPhases: %v", got)
	}
	if got := b.Bias(L1); math.Abs(got) > lambda/2 {
		t.Fatalf("wrapped bias %v outside [-lambda/2, lambda/2]", got)
	}
}

func TestSignalBiasWrapPhasesIdempotent(t *testing.T) {
	var b SignalBias
	b.Set(L1, 3.7)
	b.Set(L2, -2.2)

	b.WrapPhases()
	first := b.Clone()
	b.WrapPhases()

	for i, tp := range b.Types {
		if b.Values[i] != first.Values[i] {
			t.Fatalf("%v changed on second wrap: %v != %v", tp, b.Values[i], first.Values[i])
		}
	}
}

func TestSignalBiasCloneIsIndependent(t *testing.T) {
	var b SignalBias
	b.Set(C1, 1)
	c := b.Clone()
	c.Set(C1, 9)
	if b.Bias(C1) != 1 {
		t.Fatalf("clone mutation leaked into original")
	}
}
