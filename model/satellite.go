package model

// EphemerisSource indicates how a transmitter's orbit is determined.
type EphemerisSource int

const (
	EphemerisSourceUnknown EphemerisSource = iota
	EphemerisSourceTLE                     // TLE-based SGP4 propagation
)

// SatelliteDefinition describes one GNSS transmitter: its PRN identity, the
// orbit source, and a linear clock model relative to system time.
type SatelliteDefinition struct {
	PRN  string
	Name string

	Source EphemerisSource
	TLE1   string
	TLE2   string

	// Clock polynomial in seconds: offset + drift * (t - epoch).
	ClockOffset float64
	ClockDrift  float64
}
