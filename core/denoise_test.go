package core

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTotalVariationDenoiseConstant(t *testing.T) {
	y := []float64{3, 3, 3, 3, 3, 3}
	x := TotalVariationDenoise(y, 2)
	for i, v := range x {
		assert.InDelta(t, 3.0, v, 1e-12, "sample %d", i)
	}
}

func TestTotalVariationDenoiseFlattensNoise(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	y := make([]float64, 200)
	for i := range y {
		y[i] = 10 + 0.05*rng.NormFloat64()
	}

	x := TotalVariationDenoise(y, 5)

	// With lambda far above the noise scale the solution collapses to a
	// single level near the mean.
	var mean float64
	for _, v := range y {
		mean += v
	}
	mean /= float64(len(y))
	for i, v := range x {
		require.InDelta(t, mean, v, 0.02, "sample %d", i)
	}
}

func TestTotalVariationDenoisePreservesStep(t *testing.T) {
	const n = 120
	const step = 4.0
	y := make([]float64, n)
	for i := range y {
		if i >= n/2 {
			y[i] = step
		}
	}

	x := TotalVariationDenoise(y, 5)

	// The recovered step is shrunk by the regularization but stays at the
	// right location: one large jump between n/2-1 and n/2, nothing
	// comparable elsewhere.
	jumpAt := math.Abs(x[n/2] - x[n/2-1])
	require.Greater(t, jumpAt, step/2)
	for i := 1; i < n; i++ {
		if i == n/2 {
			continue
		}
		assert.Less(t, math.Abs(x[i]-x[i-1]), jumpAt/10, "spurious jump at %d", i)
	}
}

func TestTotalVariationDenoiseZeroLambdaIsIdentity(t *testing.T) {
	y := []float64{1, -2, 3, -4}
	x := TotalVariationDenoise(y, 0)
	assert.Equal(t, y, x)
}

func TestMovingStdDev(t *testing.T) {
	x := []float64{0, 0, 0, 0, 10, 0, 0, 0, 0}
	out := MovingStdDev(x, 3)
	require.Len(t, out, len(x))

	// Windows touching the spike see a large deviation, distant windows none.
	assert.Greater(t, out[4], 1.0)
	assert.Equal(t, 0.0, out[0])
	assert.Equal(t, 0.0, out[len(out)-1])
}

func TestMovingStdDevDegenerateWindow(t *testing.T) {
	out := MovingStdDev([]float64{1, 2, 3}, 1)
	for _, v := range out {
		assert.Equal(t, 0.0, v)
	}
}
