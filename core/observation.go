package core

// Observation holds one epoch's measured values for a single
// receiver-transmitter pair: code ranges and carrier phases per signal type,
// each with its formal accuracy. Phases are stored in metres.
type Observation struct {
	types  []SignalType
	values []float64
	sigmas []float64
	usable bool
}

// NewObservation builds an observation from parallel type/value/sigma slices.
func NewObservation(types []SignalType, values, sigmas []float64) *Observation {
	o := &Observation{usable: true}
	for i, t := range types {
		sigma := 1.0
		if i < len(sigmas) && sigmas[i] > 0 {
			sigma = sigmas[i]
		}
		o.types = append(o.types, t)
		o.values = append(o.values, values[i])
		o.sigmas = append(o.sigmas, sigma)
	}
	return o
}

// Usable reports whether the observation is still eligible for processing.
func (o *Observation) Usable() bool {
	return o != nil && o.usable && len(o.types) > 0
}

// Disable marks the observation unusable. There is no way back: epoch
// usability is monotonic within one preprocessing pass.
func (o *Observation) Disable() {
	if o != nil {
		o.usable = false
	}
}

// Types returns the observed signal types.
func (o *Observation) Types() []SignalType { return o.types }

// Value returns the measured value for the given type.
func (o *Observation) Value(t SignalType) (float64, bool) {
	for i, ot := range o.types {
		if ot == t {
			return o.values[i], true
		}
	}
	return 0, false
}

// Sigma returns the formal accuracy for the given type.
func (o *Observation) Sigma(t SignalType) (float64, bool) {
	for i, ot := range o.types {
		if ot == t {
			return o.sigmas[i], true
		}
	}
	return 0, false
}

// AddValue adds delta to the measurement of the given type. Used by the
// cycle-slip repairer to apply integer phase corrections.
func (o *Observation) AddValue(t SignalType, delta float64) {
	for i, ot := range o.types {
		if ot == t {
			o.values[i] += delta
			return
		}
	}
}

// HasAll reports whether every requested type is present.
func (o *Observation) HasAll(types []SignalType) bool {
	if o == nil {
		return false
	}
	for _, t := range types {
		if _, ok := o.Value(t); !ok {
			return false
		}
	}
	return true
}

// Filter removes observables rejected by the mask, returning the number of
// remaining types.
func (o *Observation) Filter(mask TypeMask) int {
	var types []SignalType
	var values, sigmas []float64
	for i, t := range o.types {
		if !mask.Admits(t) {
			continue
		}
		types = append(types, t)
		values = append(values, o.values[i])
		sigmas = append(sigmas, o.sigmas[i])
	}
	o.types, o.values, o.sigmas = types, values, sigmas
	return len(types)
}
