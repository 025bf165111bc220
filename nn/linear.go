// Package nn implements the forward pass of the recurrent and projection
// layers the listener and speller are built from. Weights are row-major
// flat slices so that they gob-encode directly and feed BLAS unchanged.
package nn

import (
	"math"
	"math/rand"

	"github.com/ieee0824/las-go/internal/blas"
	"github.com/ieee0824/las-go/internal/mathutil"
	"github.com/pkg/errors"
)

// ErrDimensionMismatch is returned when an input does not match a layer's shape.
var ErrDimensionMismatch = errors.New("dimension mismatch")

// Linear is an affine layer y = x*W^T + b.
type Linear struct {
	W   []float64 // [Out x In] row-major
	B   []float64 // [Out]
	In  int
	Out int
}

// NewLinear creates a Linear layer with Xavier-uniform weights and zero bias.
func NewLinear(in, out int, rng *rand.Rand) *Linear {
	l := &Linear{
		W:   make([]float64, out*in),
		B:   make([]float64, out),
		In:  in,
		Out: out,
	}
	xavier(l.W, in, out, rng)
	return l
}

// Forward applies the layer to every row of x.
func (l *Linear) Forward(x mathutil.Mat) (mathutil.Mat, error) {
	if err := checkCols(x, l.In, "linear input"); err != nil {
		return nil, err
	}
	n := len(x)
	out := make([]float64, n*l.Out)
	for i := 0; i < n; i++ {
		copy(out[i*l.Out:(i+1)*l.Out], l.B)
	}
	blas.Dgemm(false, true, n, l.Out, l.In, 1.0, mathutil.Flatten(x), l.In, l.W, l.In, 1.0, out, l.Out)
	return mathutil.Unflatten(out, n, l.Out), nil
}

// ForwardVec applies the layer to a single vector.
func (l *Linear) ForwardVec(x mathutil.Vec) (mathutil.Vec, error) {
	if len(x) != l.In {
		return nil, errors.Wrapf(ErrDimensionMismatch, "linear input has %d features, want %d", len(x), l.In)
	}
	y := make(mathutil.Vec, l.Out)
	copy(y, l.B)
	blas.Dgemv(l.Out, l.In, 1.0, l.W, l.In, x, 1.0, y)
	return y, nil
}

// LeakyReLU applies max(x, slope*x) element-wise in place.
func LeakyReLU(m mathutil.Mat, slope float64) mathutil.Mat {
	for _, row := range m {
		for j, v := range row {
			if v < 0 {
				row[j] = slope * v
			}
		}
	}
	return m
}

// DefaultLeakySlope matches the usual negative slope of 0.01.
const DefaultLeakySlope = 0.01

func checkCols(x mathutil.Mat, want int, what string) error {
	for i, row := range x {
		if len(row) != want {
			return errors.Wrapf(ErrDimensionMismatch, "%s row %d has %d features, want %d", what, i, len(row), want)
		}
	}
	return nil
}

func xavier(w []float64, in, out int, rng *rand.Rand) {
	limit := math.Sqrt(6.0 / float64(in+out))
	for i := range w {
		w[i] = (rng.Float64()*2 - 1) * limit
	}
}

func uniform(w []float64, limit float64, rng *rand.Rand) {
	for i := range w {
		w[i] = (rng.Float64()*2 - 1) * limit
	}
}

func sigmoid(x float64) float64 { return 1.0 / (1.0 + math.Exp(-x)) }
