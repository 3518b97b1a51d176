package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSignalType(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want SignalType
	}{
		{"C1", C1},
		{"C2", C2},
		{"C5", C5},
		{"L1", L1},
		{"L2", L2},
		{"L5", L5},
	} {
		got, err := ParseSignalType(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
		assert.Equal(t, tc.in, got.String())
	}

	for _, bad := range []string{"", "C", "X1", "C9", "L12"} {
		_, err := ParseSignalType(bad)
		assert.Error(t, err, bad)
	}
}

func TestBandWavelength(t *testing.T) {
	assert.InDelta(t, 0.1903, BandL1.Wavelength(), 1e-4)
	assert.InDelta(t, 0.2442, BandL2.Wavelength(), 1e-4)
	assert.InDelta(t, 0.2548, BandL5.Wavelength(), 1e-4)
}

func TestTypesStringIsSorted(t *testing.T) {
	assert.Equal(t, "C1C2L1L2", TypesString([]SignalType{L2, C1, L1, C2}))
}

func TestTypeMask(t *testing.T) {
	empty := TypeMask{}
	assert.True(t, empty.Admits(C1))
	assert.True(t, empty.Admits(L5))

	masked := TypeMask{Use: []SignalType{C1, L1}, Ignore: []SignalType{L1}}
	assert.True(t, masked.Admits(C1))
	assert.False(t, masked.Admits(L1), "ignore wins over use")
	assert.False(t, masked.Admits(C2))
}

func TestObservationKind(t *testing.T) {
	assert.True(t, KindRange.Has(Range))
	assert.False(t, KindRange.Has(Phase))
	both := KindRange | KindPhase
	assert.True(t, both.Has(Range))
	assert.True(t, both.Has(Phase))
}
