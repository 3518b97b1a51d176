package core

import "gonum.org/v1/gonum/stat"

// TotalVariationDenoise solves the 1-D total-variation problem
//
//	min_x 1/2 * sum (x_i - y_i)^2 + lambda * sum |x_{i+1} - x_i|
//
// with Condat's direct non-iterative algorithm. The solution suppresses
// zero-mean noise while preserving step discontinuities, which is exactly
// the shape of a cycle slip in a phase-combination series.
func TotalVariationDenoise(y []float64, lambda float64) []float64 {
	n := len(y)
	x := make([]float64, n)
	if n == 0 {
		return x
	}
	if lambda <= 0 || n == 1 {
		copy(x, y)
		return x
	}

	k, k0, kMinus, kPlus := 0, 0, 0, 0
	vMin := y[0] - lambda
	vMax := y[0] + lambda
	uMin := lambda
	uMax := -lambda

	for {
		if k == n-1 {
			switch {
			case uMin < 0:
				// The lower bound is violated at the end: commit a
				// negative jump and restart after it.
				for i := k0; i <= kMinus; i++ {
					x[i] = vMin
				}
				kMinus++
				k, k0 = kMinus, kMinus
				vMin = y[k]
				uMin = lambda
				uMax = y[k] + lambda - vMax
			case uMax > 0:
				for i := k0; i <= kPlus; i++ {
					x[i] = vMax
				}
				kPlus++
				k, k0 = kPlus, kPlus
				vMax = y[k]
				uMax = -lambda
				uMin = y[k] - lambda - vMin
			default:
				v := vMin + uMin/float64(k-k0+1)
				for i := k0; i < n; i++ {
					x[i] = v
				}
				return x
			}
			if k == n-1 {
				x[k] = vMin + uMin
				return x
			}
			continue
		}

		switch {
		case y[k+1]+uMin < vMin-lambda:
			// Negative jump is certain: flush the current segment.
			for i := k0; i <= kMinus; i++ {
				x[i] = vMin
			}
			kMinus++
			k, k0, kPlus = kMinus, kMinus, kMinus
			vMin = y[k]
			vMax = y[k] + 2*lambda
			uMin = lambda
			uMax = -lambda
		case y[k+1]+uMax > vMax+lambda:
			// Positive jump is certain.
			for i := k0; i <= kPlus; i++ {
				x[i] = vMax
			}
			kPlus++
			k, k0, kMinus = kPlus, kPlus, kPlus
			vMin = y[k] - 2*lambda
			vMax = y[k]
			uMin = lambda
			uMax = -lambda
		default:
			k++
			uMin += y[k] - vMin
			uMax += y[k] - vMax
			if uMin >= lambda {
				vMin += (uMin - lambda) / float64(k-k0+1)
				uMin = lambda
				kMinus = k
			}
			if uMax <= -lambda {
				vMax += (uMax + lambda) / float64(k-k0+1)
				uMax = -lambda
				kPlus = k
			}
		}
	}
}

// MovingStdDev computes the standard deviation of x over a centered window
// of the given size, clipped at the series edges. A window smaller than two
// yields zeros.
func MovingStdDev(x []float64, window int) []float64 {
	out := make([]float64, len(x))
	if window < 2 {
		return out
	}
	half := window / 2
	for i := range x {
		lo := i - half
		if lo < 0 {
			lo = 0
		}
		hi := lo + window
		if hi > len(x) {
			hi = len(x)
			lo = hi - window
			if lo < 0 {
				lo = 0
			}
		}
		if hi-lo < 2 {
			continue
		}
		out[i] = stat.StdDev(x[lo:hi], nil)
	}
	return out
}
