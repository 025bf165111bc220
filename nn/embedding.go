package nn

import (
	"math/rand"

	"github.com/ieee0824/las-go/internal/mathutil"
	"github.com/pkg/errors"
)

// Embedding maps token ids to dense rows of Table.
type Embedding struct {
	Table []float64 // [N x Dim] row-major
	N     int
	Dim   int
}

// NewEmbedding creates an n x dim table drawn from N(0, 1).
func NewEmbedding(n, dim int, rng *rand.Rand) *Embedding {
	e := &Embedding{Table: make([]float64, n*dim), N: n, Dim: dim}
	for i := range e.Table {
		e.Table[i] = rng.NormFloat64()
	}
	return e
}

// Lookup returns one row per id. The rows are copies.
func (e *Embedding) Lookup(ids []int) (mathutil.Mat, error) {
	out := mathutil.NewMat(len(ids), e.Dim)
	for i, id := range ids {
		if id < 0 || id >= e.N {
			return nil, errors.Wrapf(ErrDimensionMismatch, "token id %d outside embedding of size %d", id, e.N)
		}
		copy(out[i], e.Table[id*e.Dim:(id+1)*e.Dim])
	}
	return out, nil
}

// Tied returns a Linear layer whose weight shares storage with the table,
// projecting Dim features onto N scores.
func (e *Embedding) Tied(bias []float64) *Linear {
	if bias == nil {
		bias = make([]float64, e.N)
	}
	return &Linear{W: e.Table, B: bias, In: e.Dim, Out: e.N}
}
