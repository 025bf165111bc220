package decoder

import (
	"github.com/pkg/errors"
)

// Mode selects where the input of each step after the first comes from.
type Mode int

const (
	// ModeTrain feeds the ground truth with probability TeacherForceRate,
	// drawn independently per element and step, and the previous sample otherwise.
	ModeTrain Mode = iota
	// ModeEval always feeds the previous sample.
	ModeEval
	// ModeForced always feeds the ground truth. Validation loss uses it.
	ModeForced
)

func (m Mode) String() string {
	switch m {
	case ModeTrain:
		return "train"
	case ModeEval:
		return "eval"
	case ModeForced:
		return "forced"
	}
	return "unknown"
}

// Batch is a padded batch of target sequences.
type Batch struct {
	Targets [][]int // [L][B], each sequence terminated by the end-of-sequence id
	Lengths []int   // [B] valid target positions, end of sequence included
}

// Steps returns the padded target length L.
func (b Batch) Steps() int { return len(b.Targets) }

// DecodeOptions controls one Decode call.
type DecodeOptions struct {
	Mode   Mode
	Future int // extra steps fed only with own samples after the targets run out
}

// Output holds every step of a decoding run.
type Output struct {
	Logits    [][][]float64 // [L+Future][B][VocabSize+1]
	Generated [][]int       // [L+Future][B]
	Attention [][][]float64 // [L+Future][B][T]
}

// Decode runs the speller over a batch. Step 0 is fed the start id; step
// i < L is fed Targets[i-1] or the sample of step i-1 according to the mode;
// the Future steps that follow are fed their own samples.
func (d *Decoder) Decode(batch Batch, mem Memory, opts DecodeOptions) (*Output, error) {
	steps := batch.Steps()
	if steps == 0 && opts.Future == 0 {
		return nil, ErrEmptyBatch
	}
	n := mem.Batch()
	for i, row := range batch.Targets {
		if len(row) != n {
			return nil, errors.Wrapf(ErrDimensionMismatch, "target step %d has batch %d, memory has %d", i, len(row), n)
		}
	}
	att, err := d.Attender().Bind(mem)
	if err != nil {
		return nil, errors.Wrap(err, "bind memory")
	}
	in, err := d.initialInput(att, n)
	if err != nil {
		return nil, err
	}

	rng := d.random()
	force := d.Config.TeacherForceRate
	out := &Output{}
	for i := 0; i < steps+opts.Future; i++ {
		if i > 0 {
			prev := out.Generated[i-1]
			in.Prev = make([]int, n)
			for b := 0; b < n; b++ {
				switch {
				case i >= steps || opts.Mode == ModeEval:
					in.Prev[b] = prev[b]
				case opts.Mode == ModeForced || force >= 1:
					in.Prev[b] = batch.Targets[i-1][b]
				case rng.Float64() < force:
					in.Prev[b] = batch.Targets[i-1][b]
				default:
					in.Prev[b] = prev[b]
				}
			}
		}
		so, err := d.Step(att, in)
		if err != nil {
			return nil, errors.Wrapf(err, "step %d", i)
		}
		out.Logits = append(out.Logits, so.Logits)
		out.Generated = append(out.Generated, so.Generated)
		out.Attention = append(out.Attention, so.Weights)
		in.Context, in.States = so.Context, so.States
	}
	return out, nil
}

// initialInput prepares step 0: start ids, learned initial states and the
// context attended with the top layer's initial hidden state.
func (d *Decoder) initialInput(att Attention, n int) (StepInput, error) {
	states := d.InitialStates(n)
	ctx, err := att.Attend(states[len(states)-1].H)
	if err != nil {
		return StepInput{}, errors.Wrap(err, "initial context")
	}
	prev := make([]int, n)
	for b := range prev {
		prev[b] = d.StartID()
	}
	return StepInput{Prev: prev, Context: ctx.Vectors, States: states}, nil
}

// Generate decodes free-running from the start id, feeding back its own
// samples for at most maxLen steps (GeneratorLength when maxLen <= 0). It
// returns each element's ids up to, not including, its first end of
// sequence, and stops early once every element has ended.
func (d *Decoder) Generate(mem Memory, maxLen int) ([][]int, error) {
	if maxLen <= 0 {
		maxLen = d.Config.GeneratorLength
	}
	n := mem.Batch()
	att, err := d.Attender().Bind(mem)
	if err != nil {
		return nil, errors.Wrap(err, "bind memory")
	}
	in, err := d.initialInput(att, n)
	if err != nil {
		return nil, err
	}
	seqs := make([][]int, n)
	done := make([]bool, n)
	remaining := n
	for i := 0; i < maxLen && remaining > 0; i++ {
		so, err := d.Step(att, in)
		if err != nil {
			return nil, errors.Wrapf(err, "step %d", i)
		}
		for b, id := range so.Generated {
			if done[b] {
				continue
			}
			if id == d.StartID() {
				done[b] = true
				remaining--
				continue
			}
			seqs[b] = append(seqs[b], id)
		}
		in = StepInput{Prev: so.Generated, Context: so.Context, States: so.States}
	}
	return seqs, nil
}
