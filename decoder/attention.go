package decoder

import (
	"math"
	"math/rand"

	"github.com/ieee0824/las-go/internal/mathutil"
	"github.com/ieee0824/las-go/nn"
	"github.com/pkg/errors"
)

// MaskPenalty is subtracted from the energy of padded frames.
const MaskPenalty = 1e4

// Context is the result of attending once over a batch.
type Context struct {
	Vectors mathutil.Mat // [B][context dim]
	Weights [][]float64  // [B][T], averaged over heads
}

// Attention attends over one bound memory.
type Attention interface {
	Attend(query mathutil.Mat) (Context, error)
}

// Attender binds a memory, doing any per-utterance precomputation once.
type Attender interface {
	Bind(mem Memory) (Attention, error)
	ContextDim() int
}

// MaskedSoftmax turns raw energies into attention weights over valid frames:
// energy*mask - (1-mask)*MaskPenalty, minus the row maximum, exponentiated,
// multiplied by the mask and normalised by its sum.
func MaskedSoftmax(energy, mask []float64) []float64 {
	w := make([]float64, len(energy))
	emax := math.Inf(-1)
	for t, e := range energy {
		w[t] = e*mask[t] - (1-mask[t])*MaskPenalty
		if w[t] > emax {
			emax = w[t]
		}
	}
	sum := 0.0
	for t := range w {
		w[t] = math.Exp(w[t]-emax) * mask[t]
		sum += w[t]
	}
	if sum > 0 {
		for t := range w {
			w[t] /= sum
		}
	}
	return w
}

// DotAttention projects keys and the query into the decoder space and
// attends with a single head. The context has the value width.
type DotAttention struct {
	KeyProj   *nn.Linear // KeyDim -> DecoderDim
	QueryProj *nn.Linear // DecoderDim -> DecoderDim
	ValueDim  int
}

// NewDotAttention creates a single-head attention.
func NewDotAttention(cfg Config, rng *rand.Rand) *DotAttention {
	return &DotAttention{
		KeyProj:   nn.NewLinear(cfg.KeyDim, cfg.DecoderDim, rng),
		QueryProj: nn.NewLinear(cfg.DecoderDim, cfg.DecoderDim, rng),
		ValueDim:  cfg.ValueDim,
	}
}

// ContextDim returns the value width.
func (a *DotAttention) ContextDim() int { return a.ValueDim }

// Bind projects the keys of mem once.
func (a *DotAttention) Bind(mem Memory) (Attention, error) {
	if err := mem.Validate(a.KeyProj.In, a.ValueDim); err != nil {
		return nil, err
	}
	keys := make([]mathutil.Mat, mem.Batch())
	for b := range keys {
		k, err := a.KeyProj.Forward(mem.Keys[b])
		if err != nil {
			return nil, errors.Wrapf(err, "project keys of element %d", b)
		}
		keys[b] = k
	}
	return &boundDot{a: a, keys: keys, values: mem.Values, mask: mem.Mask()}, nil
}

type boundDot struct {
	a      *DotAttention
	keys   []mathutil.Mat
	values []mathutil.Mat
	mask   [][]float64
}

func (d *boundDot) Attend(h mathutil.Mat) (Context, error) {
	if len(h) != len(d.keys) {
		return Context{}, errors.Wrapf(ErrDimensionMismatch, "query batch %d, memory batch %d", len(h), len(d.keys))
	}
	q, err := d.a.QueryProj.Forward(h)
	if err != nil {
		return Context{}, errors.Wrap(err, "project query")
	}
	out := Context{Vectors: mathutil.NewMat(len(h), d.a.ValueDim), Weights: make([][]float64, len(h))}
	for b := range h {
		energy := make([]float64, len(d.keys[b]))
		for t, k := range d.keys[b] {
			energy[t] = mathutil.DotVec(k, q[b])
		}
		w := MaskedSoftmax(energy, d.mask[b])
		for t, v := range d.values[b] {
			mathutil.AxpyVec(out.Vectors[b], w[t], v)
		}
		out.Weights[b] = w
	}
	return out, nil
}

// MultiHeadAttention projects the query into NumHeads key-sized slices,
// attends with each head independently over the matching slice of the keys
// and values, concatenates the head contexts and projects them back to the
// decoder width.
type MultiHeadAttention struct {
	QueryProj *nn.Linear // DecoderDim -> NumHeads*KeyDim
	Wo        *nn.Linear // NumHeads*ValueDim -> DecoderDim
	NumHeads  int
	KeyDim    int
	ValueDim  int
}

// NewMultiHeadAttention creates a multi-head attention.
func NewMultiHeadAttention(cfg Config, rng *rand.Rand) *MultiHeadAttention {
	return &MultiHeadAttention{
		QueryProj: nn.NewLinear(cfg.DecoderDim, cfg.NumHeads*cfg.KeyDim, rng),
		Wo:        nn.NewLinear(cfg.NumHeads*cfg.ValueDim, cfg.DecoderDim, rng),
		NumHeads:  cfg.NumHeads,
		KeyDim:    cfg.KeyDim,
		ValueDim:  cfg.ValueDim,
	}
}

// ContextDim returns the decoder width.
func (a *MultiHeadAttention) ContextDim() int { return a.Wo.Out }

// Bind checks mem against the head layout.
func (a *MultiHeadAttention) Bind(mem Memory) (Attention, error) {
	if err := mem.Validate(a.NumHeads*a.KeyDim, a.NumHeads*a.ValueDim); err != nil {
		return nil, err
	}
	return &boundMulti{a: a, mem: mem, mask: mem.Mask()}, nil
}

type boundMulti struct {
	a    *MultiHeadAttention
	mem  Memory
	mask [][]float64
}

func (m *boundMulti) Attend(h mathutil.Mat) (Context, error) {
	a := m.a
	if len(h) != m.mem.Batch() {
		return Context{}, errors.Wrapf(ErrDimensionMismatch, "query batch %d, memory batch %d", len(h), m.mem.Batch())
	}
	q, err := a.QueryProj.Forward(h)
	if err != nil {
		return Context{}, errors.Wrap(err, "project query")
	}
	heads := mathutil.NewMat(len(h), a.NumHeads*a.ValueDim)
	weights := make([][]float64, len(h))
	for b := range h {
		keys, values := m.mem.Keys[b], m.mem.Values[b]
		weights[b] = make([]float64, len(keys))
		for hd := 0; hd < a.NumHeads; hd++ {
			qh := q[b][hd*a.KeyDim : (hd+1)*a.KeyDim]
			energy := make([]float64, len(keys))
			for t, k := range keys {
				energy[t] = mathutil.DotVec(k[hd*a.KeyDim:(hd+1)*a.KeyDim], qh)
			}
			w := MaskedSoftmax(energy, m.mask[b])
			ctx := heads[b][hd*a.ValueDim : (hd+1)*a.ValueDim]
			for t, v := range values {
				mathutil.AxpyVec(ctx, w[t], v[hd*a.ValueDim:(hd+1)*a.ValueDim])
				weights[b][t] += w[t] / float64(a.NumHeads)
			}
		}
	}
	ctx, err := a.Wo.Forward(heads)
	if err != nil {
		return Context{}, errors.Wrap(err, "project heads")
	}
	return Context{Vectors: ctx, Weights: weights}, nil
}
