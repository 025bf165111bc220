package las

import (
	"io"

	"github.com/ieee0824/las-go/decoder"
	"github.com/ieee0824/las-go/train"
)

// UpdateFunc applies one optimisation step from the forward pass of a
// training batch. Gradient computation lives outside this package.
type UpdateFunc func(m *Model, out *decoder.Output, targets decoder.Batch, stats decoder.LossStats) error

// Learner adapts a Model to the training loop.
type Learner struct {
	Model  *Model
	Update UpdateFunc
}

var _ train.Learner = (*Learner)(nil)

// TrainStep decodes with teacher forcing and sampling, scores the result
// and hands both to Update.
func (l *Learner) TrainStep(b train.Batch) (decoder.LossStats, error) {
	out, targets, err := l.Model.Forward(b.Utterances, b.Texts, decoder.DecodeOptions{Mode: decoder.ModeTrain})
	if err != nil {
		return decoder.LossStats{}, err
	}
	stats, err := decoder.SequenceCrossEntropy(out.Logits, targets)
	if err != nil {
		return decoder.LossStats{}, err
	}
	if l.Update != nil {
		if err := l.Update(l.Model, out, targets, stats); err != nil {
			return decoder.LossStats{}, err
		}
	}
	return stats, nil
}

// EvalStep scores b with ground-truth inputs at every step.
func (l *Learner) EvalStep(b train.Batch) (decoder.LossStats, error) {
	return l.Model.Loss(b.Utterances, b.Texts, decoder.ModeForced)
}

// Save writes the model checkpoint.
func (l *Learner) Save(w io.Writer) error {
	return l.Model.Save(w)
}
