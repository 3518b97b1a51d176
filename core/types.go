package core

import (
	"fmt"
	"sort"
	"strings"
)

// Band identifies a GNSS carrier frequency band.
type Band int

const (
	BandL1 Band = iota
	BandL2
	BandL5
)

// Frequency returns the carrier frequency of the band in Hz.
func (b Band) Frequency() float64 {
	switch b {
	case BandL1:
		return 1575.42e6
	case BandL2:
		return 1227.60e6
	case BandL5:
		return 1176.45e6
	default:
		return 0
	}
}

// Wavelength returns the carrier wavelength of the band in metres.
func (b Band) Wavelength() float64 {
	f := b.Frequency()
	if f == 0 {
		return 0
	}
	return CLight / f
}

func (b Band) String() string {
	switch b {
	case BandL1:
		return "1"
	case BandL2:
		return "2"
	case BandL5:
		return "5"
	default:
		return "?"
	}
}

// Component distinguishes code (pseudorange) from carrier-phase measurements.
type Component int

const (
	Range Component = iota
	Phase
)

func (c Component) String() string {
	if c == Phase {
		return "L"
	}
	return "C"
}

// SignalType identifies one observable: a measurement component on a band,
// e.g. C1 (L1 pseudorange) or L2 (L2 carrier phase).
type SignalType struct {
	Component Component
	Band      Band
}

// Common observables.
var (
	C1 = SignalType{Range, BandL1}
	C2 = SignalType{Range, BandL2}
	C5 = SignalType{Range, BandL5}
	L1 = SignalType{Phase, BandL1}
	L2 = SignalType{Phase, BandL2}
	L5 = SignalType{Phase, BandL5}
)

func (t SignalType) String() string {
	return t.Component.String() + t.Band.String()
}

// ParseSignalType parses the two-character observable code used in
// configuration files and type masks ("C1", "L5", ...).
func ParseSignalType(s string) (SignalType, error) {
	if len(s) != 2 {
		return SignalType{}, fmt.Errorf("invalid signal type %q", s)
	}
	var c Component
	switch s[0] {
	case 'C':
		c = Range
	case 'L':
		c = Phase
	default:
		return SignalType{}, fmt.Errorf("invalid signal component in %q", s)
	}
	var b Band
	switch s[1] {
	case '1':
		b = BandL1
	case '2':
		b = BandL2
	case '5':
		b = BandL5
	default:
		return SignalType{}, fmt.Errorf("invalid signal band in %q", s)
	}
	return SignalType{Component: c, Band: b}, nil
}

// TypesString renders a signal-type set as a stable, sorted list
// ("C1C2L1L2"), used in diagnostic file names.
func TypesString(types []SignalType) string {
	strs := make([]string, len(types))
	for i, t := range types {
		strs[i] = t.String()
	}
	sort.Strings(strs)
	return strings.Join(strs, "")
}

// TypeMask filters observables by explicit use/ignore lists. An empty use
// list admits everything not ignored.
type TypeMask struct {
	Use    []SignalType
	Ignore []SignalType
}

// Admits reports whether the observable passes the mask.
func (m TypeMask) Admits(t SignalType) bool {
	for _, ig := range m.Ignore {
		if ig == t {
			return false
		}
	}
	if len(m.Use) == 0 {
		return true
	}
	for _, u := range m.Use {
		if u == t {
			return true
		}
	}
	return false
}

// ObservationKind is a bit mask selecting which measurement components an
// operation should consider.
type ObservationKind int

const (
	KindRange ObservationKind = 1 << iota
	KindPhase
)

// Has reports whether the mask includes the given component.
func (k ObservationKind) Has(c Component) bool {
	if c == Range {
		return k&KindRange != 0
	}
	return k&KindPhase != 0
}
