package core

import (
	"fmt"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"

	"github.com/signalsfoundry/gnss-preprocessor/model"
)

// Ephemeris yields a transmitter's ECEF position at a given time.
type Ephemeris interface {
	PositionECEF(t time.Time) (Vec3, error)
}

// SGP4Ephemeris propagates a TLE with SGP4 and rotates the result into ECEF.
type SGP4Ephemeris struct {
	sat satellite.Satellite
}

// NewSGP4Ephemeris constructs an ephemeris from TLE lines.
func NewSGP4Ephemeris(line1, line2 string) (*SGP4Ephemeris, error) {
	if line1 == "" || line2 == "" {
		return nil, fmt.Errorf("empty TLE")
	}
	sat := satellite.TLEToSat(line1, line2, satellite.GravityWGS72)
	return &SGP4Ephemeris{sat: sat}, nil
}

// PositionECEF propagates to t. go-satellite works in kilometres; positions
// are returned in metres.
func (e *SGP4Ephemeris) PositionECEF(t time.Time) (Vec3, error) {
	year, month, day := t.Date()
	hour, min, sec := t.Clock()

	posECI, _ := satellite.Propagate(e.sat, year, int(month), day, hour, min, sec)
	jd := satellite.JDay(year, int(month), day, hour, min, sec)
	gmst := satellite.ThetaG_JD(jd)
	posECEF := satellite.ECIToECEF(posECI, gmst)

	const kmToM = 1000.0
	return Vec3{X: posECEF.X * kmToM, Y: posECEF.Y * kmToM, Z: posECEF.Z * kmToM}, nil
}

// StaticEphemeris pins a transmitter to a fixed position. Useful in tests
// and for synthetic scenarios.
type StaticEphemeris struct {
	Pos Vec3
}

// PositionECEF returns the fixed position.
func (e *StaticEphemeris) PositionECEF(time.Time) (Vec3, error) {
	return e.Pos, nil
}

// Transmitter is one GNSS space vehicle as seen by the receiver pipeline:
// identity, externally supplied orbit and clock, a usability flag, and its
// signal-bias container. The pipeline treats it as read-only except for
// disablement and bias bookkeeping.
type Transmitter struct {
	PRN string

	eph        Ephemeris
	clockEpoch time.Time
	clockOff   float64 // s
	clockDrift float64 // s/s

	Bias SignalBias

	disabled      bool
	disableReason string
}

// NewTransmitter builds a transmitter from its definition. TLE-sourced
// definitions get an SGP4 ephemeris; a definition without an orbit source
// yields an error.
func NewTransmitter(def *model.SatelliteDefinition, clockEpoch time.Time) (*Transmitter, error) {
	if def.PRN == "" {
		return nil, fmt.Errorf("satellite definition without PRN")
	}
	if def.Source != model.EphemerisSourceTLE {
		return nil, fmt.Errorf("%s: unsupported ephemeris source", def.PRN)
	}
	eph, err := NewSGP4Ephemeris(def.TLE1, def.TLE2)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", def.PRN, err)
	}
	return &Transmitter{
		PRN:        def.PRN,
		eph:        eph,
		clockEpoch: clockEpoch,
		clockOff:   def.ClockOffset,
		clockDrift: def.ClockDrift,
	}, nil
}

// NewTransmitterWithEphemeris builds a transmitter around an arbitrary
// ephemeris. Used by tests and synthetic scenarios.
func NewTransmitterWithEphemeris(prn string, eph Ephemeris) *Transmitter {
	return &Transmitter{PRN: prn, eph: eph}
}

// Position returns the ECEF position at time t.
func (tr *Transmitter) Position(t time.Time) (Vec3, error) {
	return tr.eph.PositionECEF(t)
}

// ClockOffset returns the transmitter clock offset at t in metres.
func (tr *Transmitter) ClockOffset(t time.Time) float64 {
	dt := t.Sub(tr.clockEpoch).Seconds()
	return CLight * (tr.clockOff + tr.clockDrift*dt)
}

// Usable reports whether the transmitter participates in processing.
func (tr *Transmitter) Usable() bool { return tr != nil && !tr.disabled }

// Disable removes the transmitter from processing for the rest of the run.
func (tr *Transmitter) Disable(reason string) {
	if tr.disabled {
		return
	}
	tr.disabled = true
	tr.disableReason = reason
}

// DisableReason returns why the transmitter was disabled, if it was.
func (tr *Transmitter) DisableReason() string { return tr.disableReason }
