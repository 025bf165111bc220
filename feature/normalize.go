package feature

import (
	"github.com/ieee0824/las-go/internal/mathutil"
	"gonum.org/v1/gonum/floats"
)

// SubtractMean removes the per-dimension utterance mean in place.
func SubtractMean(m mathutil.Mat) {
	if len(m) == 0 {
		return
	}
	mean := make([]float64, len(m[0]))
	for _, row := range m {
		floats.Add(mean, row)
	}
	floats.Scale(1/float64(len(m)), mean)
	for _, row := range m {
		floats.Sub(row, mean)
	}
}

// Delta computes regression coefficients over +-window frames,
// d[t] = sum_n n*(c[t+n]-c[t-n]) / (2*sum_n n^2), repeating the edge
// frames at the boundaries.
func Delta(m mathutil.Mat, window int) mathutil.Mat {
	if len(m) == 0 {
		return nil
	}
	last := len(m) - 1
	denom := 0.0
	for n := 1; n <= window; n++ {
		denom += float64(2 * n * n)
	}
	out := mathutil.NewMat(len(m), len(m[0]))
	for t, row := range out {
		for n := 1; n <= window; n++ {
			w := float64(n) / denom
			floats.AddScaled(row, w, m[min(t+n, last)])
			floats.AddScaled(row, -w, m[max(t-n, 0)])
		}
	}
	return out
}

// AppendDeltas concatenates the delta and, if deltaDelta is set, the
// delta-delta columns onto m.
func AppendDeltas(m mathutil.Mat, deltaDelta bool) mathutil.Mat {
	d1 := Delta(m, 2)
	out := mathutil.ConcatCols(m, d1)
	if deltaDelta {
		out = mathutil.ConcatCols(out, Delta(d1, 2))
	}
	return out
}
