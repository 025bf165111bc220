package nn

import (
	"math"
	"math/rand"

	"github.com/ieee0824/las-go/internal/blas"
	"github.com/ieee0824/las-go/internal/mathutil"
	"github.com/pkg/errors"
)

// LSTMState is the hidden and cell state of a batch, one row per element.
type LSTMState struct {
	H mathutil.Mat
	C mathutil.Mat
}

// Clone returns a deep copy of s.
func (s LSTMState) Clone() LSTMState {
	return LSTMState{H: mathutil.CloneMat(s.H), C: mathutil.CloneMat(s.C)}
}

// LSTMCell computes one LSTM step. Gates are stacked in the order input,
// forget, cell, output along the 4*Hidden axis.
type LSTMCell struct {
	Wi     []float64 // [4H x In]
	Wh     []float64 // [4H x H]
	B      []float64 // [4H]
	In     int
	Hidden int
}

// NewLSTMCell creates a cell with weights drawn from U(-1/sqrt(H), 1/sqrt(H)).
func NewLSTMCell(in, hidden int, rng *rand.Rand) *LSTMCell {
	c := &LSTMCell{
		Wi:     make([]float64, 4*hidden*in),
		Wh:     make([]float64, 4*hidden*hidden),
		B:      make([]float64, 4*hidden),
		In:     in,
		Hidden: hidden,
	}
	limit := 1.0 / math.Sqrt(float64(hidden))
	uniform(c.Wi, limit, rng)
	uniform(c.Wh, limit, rng)
	uniform(c.B, limit, rng)
	return c
}

// Step advances the batch state s by one input row per element.
func (c *LSTMCell) Step(x mathutil.Mat, s LSTMState) (LSTMState, error) {
	if err := checkCols(x, c.In, "lstm input"); err != nil {
		return LSTMState{}, err
	}
	n := len(x)
	if len(s.H) != n || len(s.C) != n {
		return LSTMState{}, errors.Wrapf(ErrDimensionMismatch, "lstm state has batch %d, input has %d", len(s.H), n)
	}
	if err := checkCols(s.H, c.Hidden, "lstm hidden state"); err != nil {
		return LSTMState{}, err
	}
	h4 := 4 * c.Hidden
	gates := make([]float64, n*h4)
	for i := 0; i < n; i++ {
		copy(gates[i*h4:(i+1)*h4], c.B)
	}
	blas.Dgemm(false, true, n, h4, c.In, 1.0, mathutil.Flatten(x), c.In, c.Wi, c.In, 1.0, gates, h4)
	blas.Dgemm(false, true, n, h4, c.Hidden, 1.0, mathutil.Flatten(s.H), c.Hidden, c.Wh, c.Hidden, 1.0, gates, h4)

	next := LSTMState{H: mathutil.NewMat(n, c.Hidden), C: mathutil.NewMat(n, c.Hidden)}
	for b := 0; b < n; b++ {
		g := gates[b*h4 : (b+1)*h4]
		for j := 0; j < c.Hidden; j++ {
			ig := sigmoid(g[j])
			fg := sigmoid(g[c.Hidden+j])
			cg := math.Tanh(g[2*c.Hidden+j])
			og := sigmoid(g[3*c.Hidden+j])
			cell := fg*s.C[b][j] + ig*cg
			next.C[b][j] = cell
			next.H[b][j] = og * math.Tanh(cell)
		}
	}
	return next, nil
}

// Cell is an LSTMCell with a learned initial state.
type Cell struct {
	LSTMCell
	H0 mathutil.Vec
	C0 mathutil.Vec
}

// NewCell creates a Cell whose initial state starts at zero.
func NewCell(in, hidden int, rng *rand.Rand) *Cell {
	return &Cell{
		LSTMCell: *NewLSTMCell(in, hidden, rng),
		H0:       mathutil.NewVec(hidden),
		C0:       mathutil.NewVec(hidden),
	}
}

// InitialState broadcasts the learned initial state to a batch of n.
func (c *Cell) InitialState(n int) LSTMState {
	s := LSTMState{H: mathutil.NewMat(n, c.Hidden), C: mathutil.NewMat(n, c.Hidden)}
	for i := 0; i < n; i++ {
		copy(s.H[i], c.H0)
		copy(s.C[i], c.C0)
	}
	return s
}

// Run feeds the rows of xs through the cell in order, or in reverse when
// reverse is set, starting from the learned initial state. Output row t is
// the hidden state after consuming xs[t].
func (c *Cell) Run(xs mathutil.Mat, reverse bool) (mathutil.Mat, error) {
	out := mathutil.NewMat(len(xs), c.Hidden)
	s := c.InitialState(1)
	for k := range xs {
		t := k
		if reverse {
			t = len(xs) - 1 - k
		}
		var err error
		s, err = c.Step(mathutil.Mat{xs[t]}, s)
		if err != nil {
			return nil, errors.Wrapf(err, "frame %d", t)
		}
		copy(out[t], s.H[0])
	}
	return out, nil
}

// BiLSTM runs a forward and a backward Cell over a sequence and
// concatenates their outputs frame by frame.
type BiLSTM struct {
	Fwd *Cell
	Bwd *Cell
}

// NewBiLSTM creates a bidirectional layer with 2*hidden output features.
func NewBiLSTM(in, hidden int, rng *rand.Rand) *BiLSTM {
	return &BiLSTM{Fwd: NewCell(in, hidden, rng), Bwd: NewCell(in, hidden, rng)}
}

// OutDim returns the number of output features per frame.
func (l *BiLSTM) OutDim() int { return 2 * l.Fwd.Hidden }

// Forward returns [fwd_t | bwd_t] for every frame t of xs.
func (l *BiLSTM) Forward(xs mathutil.Mat) (mathutil.Mat, error) {
	f, err := l.Fwd.Run(xs, false)
	if err != nil {
		return nil, errors.Wrap(err, "forward direction")
	}
	b, err := l.Bwd.Run(xs, true)
	if err != nil {
		return nil, errors.Wrap(err, "backward direction")
	}
	return mathutil.ConcatCols(f, b), nil
}

// Final returns [fwd_last | bwd_first], the summary of a whole sequence.
func (l *BiLSTM) Final(out mathutil.Mat) mathutil.Vec {
	h := l.Fwd.Hidden
	v := make(mathutil.Vec, 2*h)
	if len(out) == 0 {
		return v
	}
	copy(v[:h], out[len(out)-1][:h])
	copy(v[h:], out[0][h:])
	return v
}
