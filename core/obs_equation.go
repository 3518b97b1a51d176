package core

import (
	"math"
	"time"
)

// ModelReduction removes modeled effects (troposphere, relativistic
// corrections, phase-center offsets, ...) from a raw measurement. It returns
// the modeled contribution in metres, which the equation builder subtracts
// from the observed value. The pipeline treats it as an external
// collaborator and only requires that it is a pure function of its inputs.
type ModelReduction func(r *Receiver, tr *Transmitter, idEpoch int, t SignalType, elevation float64) float64

// SaastamoinenReduction is a minimal tropospheric model: a 2.3 m zenith
// hydrostatic delay mapped with 1/sin(el). Enough for preprocessing, where
// residual model errors are absorbed by the robust estimators.
func SaastamoinenReduction(r *Receiver, tr *Transmitter, idEpoch int, t SignalType, elevation float64) float64 {
	const zenithDelay = 2.3
	sinEl := math.Sin(elevation)
	if sinEl < 0.05 {
		sinEl = 0.05
	}
	return zenithDelay / sinEl
}

// ObservationEquation is the linearized model of one (receiver, transmitter,
// epoch) triple: reduced residuals per signal type plus the partial
// derivatives with respect to receiver position and clock. It is ephemeral,
// recomputed whenever the underlying clock or position estimate changes.
type ObservationEquation struct {
	IdEpoch int
	IdTrans int

	Elevation float64
	Azimuth   float64

	// Direction is the unit line-of-sight vector from receiver to
	// transmitter. The position partials are its negation; the clock
	// partial is one.
	Direction Vec3

	Types     []SignalType
	Residuals []float64 // observed minus computed, metres
	Sigmas    []float64
}

// Residual returns the reduced residual for the given type.
func (e *ObservationEquation) Residual(t SignalType) (float64, bool) {
	for i, et := range e.Types {
		if et == t {
			return e.Residuals[i], true
		}
	}
	return 0, false
}

// ObservationEquationList holds the equations of one receiver against all
// transmitters, indexed by epoch and transmitter.
type ObservationEquationList struct {
	eqn [][]*ObservationEquation
}

// At returns the equation for (epoch, transmitter), or nil.
func (l *ObservationEquationList) At(idEpoch, idTrans int) *ObservationEquation {
	if l == nil || idEpoch < 0 || idEpoch >= len(l.eqn) {
		return nil
	}
	if idTrans < 0 || idTrans >= len(l.eqn[idEpoch]) {
		return nil
	}
	return l.eqn[idEpoch][idTrans]
}

// AtEpoch returns all non-nil equations of one epoch.
func (l *ObservationEquationList) AtEpoch(idEpoch int) []*ObservationEquation {
	var out []*ObservationEquation
	if l == nil || idEpoch < 0 || idEpoch >= len(l.eqn) {
		return out
	}
	for _, e := range l.eqn[idEpoch] {
		if e != nil {
			out = append(out, e)
		}
	}
	return out
}

// BuildObservationEquations linearizes every usable (epoch, transmitter)
// observation of the receiver against the current orbit, clock, and model
// state. Light time is resolved with two fixed-point iterations; the
// geometric range includes the Sagnac correction.
func BuildObservationEquations(r *Receiver, transmitters []*Transmitter, reduce ModelReduction, kinds ObservationKind) *ObservationEquationList {
	list := &ObservationEquationList{eqn: make([][]*ObservationEquation, r.Grid.Count)}
	if !r.Usable() {
		return list
	}

	for idEpoch := 0; idEpoch < r.Grid.Count; idEpoch++ {
		list.eqn[idEpoch] = make([]*ObservationEquation, len(transmitters))
		if !r.UsableEpoch(idEpoch) {
			continue
		}
		epochTime := r.Grid.Time(idEpoch)
		recvPos := r.Position(idEpoch).Add(r.Offset[idEpoch])

		for idTrans, trans := range transmitters {
			if !trans.Usable() {
				continue
			}
			o := r.Observation(idEpoch, idTrans)
			if o == nil {
				continue
			}

			transPos, err := trans.Position(epochTime)
			if err != nil {
				continue
			}
			// Light-time iteration: evaluate the orbit at emission time.
			for iter := 0; iter < 2; iter++ {
				tau := transPos.DistanceTo(recvPos) / CLight
				emitted := epochTime.Add(-time.Duration(tau * float64(time.Second)))
				p, err := trans.Position(emitted)
				if err != nil {
					break
				}
				transPos = p
			}

			elevation, azimuth := ElevationAzimuth(recvPos, transPos)
			rho := GeometricRange(transPos, recvPos)
			direction := transPos.Sub(recvPos).Unit()

			eq := &ObservationEquation{
				IdEpoch:   idEpoch,
				IdTrans:   idTrans,
				Elevation: elevation,
				Azimuth:   azimuth,
				Direction: direction,
			}

			for _, t := range o.Types() {
				if !kinds.Has(t.Component) {
					continue
				}
				obs, _ := o.Value(t)
				sigma, _ := o.Sigma(t)

				computed := rho + r.Clock[idEpoch] - trans.ClockOffset(epochTime)
				if reduce != nil {
					computed += reduce(r, trans, idEpoch, t, elevation)
				}
				computed += r.Bias.Bias(t) + trans.Bias.Bias(t)

				eq.Types = append(eq.Types, t)
				eq.Residuals = append(eq.Residuals, obs-computed)
				eq.Sigmas = append(eq.Sigmas, sigma)
			}

			if len(eq.Types) > 0 {
				list.eqn[idEpoch][idTrans] = eq
			}
		}
	}
	return list
}
