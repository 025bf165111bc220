package decoder

import (
	"math/rand"

	"github.com/ieee0824/las-go/internal/mathutil"
	"github.com/ieee0824/las-go/nn"
	"github.com/pkg/errors"
)

// Decoder is the attention speller. Its output layer shares its weight with
// the embedding table, so only the output bias is stored separately.
type Decoder struct {
	Config    Config
	VocabSize int // characters excluding end of sequence

	Embedding *nn.Embedding // [VocabSize+1 x DecoderDim]
	Cells     []*nn.Cell
	Dot       *DotAttention       // set when NumHeads == 1
	MultiHead *MultiHeadAttention // set when NumHeads > 1
	Hidden    *nn.Linear          // DecoderDim+context -> DecoderDim
	OutBias   []float64           // [VocabSize+1]

	rng *rand.Rand
}

// New creates a speller for vocabSize characters plus end of sequence.
func New(cfg Config, vocabSize int, rng *rand.Rand) (*Decoder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if vocabSize < 1 {
		return nil, errors.Errorf("vocabulary size must be positive, got %d", vocabSize)
	}
	d := &Decoder{
		Config:    cfg,
		VocabSize: vocabSize,
		Embedding: nn.NewEmbedding(vocabSize+1, cfg.DecoderDim, rng),
		Hidden:    nn.NewLinear(cfg.DecoderDim+cfg.contextDim(), cfg.DecoderDim, rng),
		OutBias:   make([]float64, vocabSize+1),
		rng:       rng,
	}
	in := cfg.DecoderDim + cfg.contextDim()
	for i := 0; i < cfg.NumLayers; i++ {
		d.Cells = append(d.Cells, nn.NewCell(in, cfg.DecoderDim, rng))
		in = cfg.DecoderDim
	}
	if cfg.NumHeads == 1 {
		d.Dot = NewDotAttention(cfg, rng)
	} else {
		d.MultiHead = NewMultiHeadAttention(cfg, rng)
	}
	return d, nil
}

// SetRand replaces the source used for Gumbel sampling and teacher forcing.
func (d *Decoder) SetRand(rng *rand.Rand) { d.rng = rng }

func (d *Decoder) random() *rand.Rand {
	if d.rng == nil {
		d.rng = rand.New(rand.NewSource(1))
	}
	return d.rng
}

// StartID is the id fed at the first step, shared with end of sequence.
func (d *Decoder) StartID() int { return d.VocabSize }

// Attender returns the configured attention.
func (d *Decoder) Attender() Attender {
	if d.MultiHead != nil {
		return d.MultiHead
	}
	return d.Dot
}

// Output returns the vocabulary projection tied to the embedding table.
func (d *Decoder) Output() *nn.Linear { return d.Embedding.Tied(d.OutBias) }

// InitialStates returns the learned initial state of every layer for a batch of n.
func (d *Decoder) InitialStates(n int) []nn.LSTMState {
	states := make([]nn.LSTMState, len(d.Cells))
	for i, c := range d.Cells {
		states[i] = c.InitialState(n)
	}
	return states
}

// StepInput is the recurrent state entering one decoding step.
type StepInput struct {
	Prev    []int          // [B] previous token ids
	Context mathutil.Mat   // [B][context dim] previous attention context
	States  []nn.LSTMState // one per layer
}

// StepOutput is the result of one decoding step.
type StepOutput struct {
	Logits    mathutil.Mat // [B][VocabSize+1] unnormalised scores
	Generated []int        // [B] Gumbel-max samples from Logits
	Context   mathutil.Mat // [B][context dim]
	Weights   [][]float64  // [B][T] attention weights
	States    []nn.LSTMState
}

// Step embeds the previous tokens, runs the stacked cells on [embedding |
// context], attends with the top hidden state, and projects [hidden | new
// context] onto the vocabulary.
func (d *Decoder) Step(att Attention, in StepInput) (StepOutput, error) {
	if len(in.States) != len(d.Cells) {
		return StepOutput{}, errors.Wrapf(ErrDimensionMismatch, "got %d layer states, want %d", len(in.States), len(d.Cells))
	}
	if len(in.Context) != len(in.Prev) {
		return StepOutput{}, errors.Wrapf(ErrDimensionMismatch, "context batch %d, token batch %d", len(in.Context), len(in.Prev))
	}
	emb, err := d.Embedding.Lookup(in.Prev)
	if err != nil {
		return StepOutput{}, err
	}
	h := mathutil.ConcatCols(emb, in.Context)
	states := make([]nn.LSTMState, len(d.Cells))
	for i, c := range d.Cells {
		s, err := c.Step(h, in.States[i])
		if err != nil {
			return StepOutput{}, errors.Wrapf(err, "layer %d", i)
		}
		states[i] = s
		h = s.H
	}
	ctx, err := att.Attend(h)
	if err != nil {
		return StepOutput{}, errors.Wrap(err, "attend")
	}
	hidden, err := d.Hidden.Forward(mathutil.ConcatCols(h, ctx.Vectors))
	if err != nil {
		return StepOutput{}, errors.Wrap(err, "character projection")
	}
	logits, err := d.Output().Forward(nn.LeakyReLU(hidden, nn.DefaultLeakySlope))
	if err != nil {
		return StepOutput{}, errors.Wrap(err, "output projection")
	}
	return StepOutput{
		Logits:    logits,
		Generated: GumbelArgmax(logits, d.random()),
		Context:   ctx.Vectors,
		Weights:   ctx.Weights,
		States:    states,
	}, nil
}
