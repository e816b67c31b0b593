package frame

import "math"

// Series helpers for per-instrument computations where the window
// rolls over the instrument's own observations rather than the shared
// calendar axis.

// RollMean returns the trailing mean of xs per position. A position is
// NaN unless all window observations ending at it are present.
func RollMean(xs []float64, window int) []float64 {
	return rollSeries(xs, window, func(sum, sumSq float64, n int) float64 {
		return sum / float64(n)
	})
}

// RollStd returns the trailing sample standard deviation (N-1
// denominator), same NaN rule as RollMean.
func RollStd(xs []float64, window int) []float64 {
	return rollSeries(xs, window, func(sum, sumSq float64, n int) float64 {
		if n < 2 {
			return math.NaN()
		}
		mean := sum / float64(n)
		v := (sumSq - float64(n)*mean*mean) / float64(n-1)
		if v < 0 {
			v = 0
		}
		return math.Sqrt(v)
	})
}

func rollSeries(xs []float64, window int, agg func(sum, sumSq float64, n int) float64) []float64 {
	out := make([]float64, len(xs))
	for i := range out {
		out[i] = math.NaN()
	}
	if window <= 0 {
		return out
	}
	for i := window - 1; i < len(xs); i++ {
		sum, sumSq := 0.0, 0.0
		ok := true
		for k := i - window + 1; k <= i; k++ {
			v := xs[k]
			if math.IsNaN(v) {
				ok = false
				break
			}
			sum += v
			sumSq += v * v
		}
		if ok {
			out[i] = agg(sum, sumSq, window)
		}
	}
	return out
}

// FFillSeries propagates the last valid value forward.
func FFillSeries(xs []float64) []float64 {
	out := make([]float64, len(xs))
	last := math.NaN()
	for i, v := range xs {
		if math.IsNaN(v) {
			out[i] = last
		} else {
			out[i] = v
			last = v
		}
	}
	return out
}
