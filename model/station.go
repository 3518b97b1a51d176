package model

import (
	"fmt"
	"time"
)

// BandPattern describes one frequency band of an antenna definition: the
// phase-center offset in the local north/east/up frame and the formal
// accuracy terms used to weight observations.
type BandPattern struct {
	FrequencyHz float64
	// Phase-center offset in metres, north/east/up.
	OffsetNEU [3]float64
	// Accuracy model sigma(el) = SigmaZenith + SigmaElevation/sin(el).
	SigmaZenith    float64
	SigmaElevation float64
}

// AntennaDefinition is a named antenna model with per-band patterns.
type AntennaDefinition struct {
	Name     string
	Radome   string
	Patterns []BandPattern
}

// Pattern returns the pattern whose frequency matches f exactly.
func (d *AntennaDefinition) Pattern(f float64) (*BandPattern, bool) {
	for i := range d.Patterns {
		if d.Patterns[i].FrequencyHz == f {
			return &d.Patterns[i], true
		}
	}
	return nil, false
}

// NearestPattern returns the pattern with the smallest frequency distance
// to f, or nil when the definition has no patterns at all.
func (d *AntennaDefinition) NearestPattern(f float64) *BandPattern {
	var best *BandPattern
	bestDiff := 0.0
	for i := range d.Patterns {
		diff := d.Patterns[i].FrequencyHz - f
		if diff < 0 {
			diff = -diff
		}
		if best == nil || diff < bestDiff {
			best = &d.Patterns[i]
			bestDiff = diff
		}
	}
	return best
}

// ReceiverDefinition lists the signal types a receiver model observes, as
// two-character observable codes ("C1", "L2", ...).
type ReceiverDefinition struct {
	Name  string
	Types []string
}

// AntennaRecord is one entry of a station's antenna history: the antenna
// mounted during [TimeStart, TimeEnd).
type AntennaRecord struct {
	AntennaName string
	Radome      string
	Serial      string
	TimeStart   time.Time
	TimeEnd     time.Time
	// Mount offset from the station reference point, north/east/up metres.
	OffsetNEU [3]float64

	// Resolved against the definition registry during initialization.
	Definition *AntennaDefinition
	Accuracy   *AntennaDefinition
}

// Covers reports whether the record is valid at time t.
func (r *AntennaRecord) Covers(t time.Time) bool {
	return !t.Before(r.TimeStart) && (r.TimeEnd.IsZero() || t.Before(r.TimeEnd))
}

func (r *AntennaRecord) String() string {
	return fmt.Sprintf("%s/%s (%s - %s)", r.AntennaName, r.Radome,
		r.TimeStart.Format("2006-01-02"), endString(r.TimeEnd))
}

func endString(t time.Time) string {
	if t.IsZero() {
		return "open"
	}
	return t.Format("2006-01-02")
}

// ReceiverRecord is one entry of a station's receiver-hardware history.
type ReceiverRecord struct {
	ReceiverName string
	Serial       string
	TimeStart    time.Time
	TimeEnd      time.Time

	Definition *ReceiverDefinition
}

// Covers reports whether the record is valid at time t.
func (r *ReceiverRecord) Covers(t time.Time) bool {
	return !t.Before(r.TimeStart) && (r.TimeEnd.IsZero() || t.Before(r.TimeEnd))
}

// StationInfo carries the metadata of one ground station: marker identity,
// approximate position, and the antenna/receiver histories as sorted
// interval tables.
type StationInfo struct {
	MarkerName   string
	MarkerNumber string
	Comment      string

	// Approximate antenna reference position, ECEF metres.
	ApproxPosition [3]float64

	Antennas  []AntennaRecord
	Receivers []ReceiverRecord
}

// FindAntenna returns the antenna record covering time t, or nil when the
// history has a gap there. Records are assumed sorted by TimeStart.
func (s *StationInfo) FindAntenna(t time.Time) *AntennaRecord {
	for i := range s.Antennas {
		if s.Antennas[i].Covers(t) {
			return &s.Antennas[i]
		}
	}
	return nil
}

// FindReceiver returns the receiver record covering time t, or nil.
func (s *StationInfo) FindReceiver(t time.Time) *ReceiverRecord {
	for i := range s.Receivers {
		if s.Receivers[i].Covers(t) {
			return &s.Receivers[i]
		}
	}
	return nil
}
