package core

import "math"

// SignalBias maps signal types to instrumental bias values in metres for one
// receiver or transmitter. It lives for the whole processing run and is
// persisted when results are reported.
type SignalBias struct {
	Types  []SignalType
	Values []float64
}

// Bias returns the bias for the given type, or zero when none is stored.
func (b *SignalBias) Bias(t SignalType) float64 {
	for i, bt := range b.Types {
		if bt == t {
			return b.Values[i]
		}
	}
	return 0
}

// Set stores or replaces the bias for the given type.
func (b *SignalBias) Set(t SignalType, v float64) {
	for i, bt := range b.Types {
		if bt == t {
			b.Values[i] = v
			return
		}
	}
	b.Types = append(b.Types, t)
	b.Values = append(b.Values, v)
}

// WrapPhases reduces every phase bias into [-lambda/2, +lambda/2] of its
// carrier wavelength. Phase biases are only determined up to an integer
// number of cycles, so the wrapped representative is the canonical one.
// Wrapping is idempotent: applying it twice yields the same values.
func (b *SignalBias) WrapPhases() {
	for i, t := range b.Types {
		if t.Component != Phase {
			continue
		}
		b.Values[i] = math.Remainder(b.Values[i], t.Band.Wavelength())
	}
}

// Clone returns an independent copy.
func (b *SignalBias) Clone() SignalBias {
	out := SignalBias{
		Types:  make([]SignalType, len(b.Types)),
		Values: make([]float64, len(b.Values)),
	}
	copy(out.Types, b.Types)
	copy(out.Values, b.Values)
	return out
}
