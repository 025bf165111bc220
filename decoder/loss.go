package decoder

import (
	"math"

	"github.com/ieee0824/las-go/internal/mathutil"
	"github.com/pkg/errors"
)

// LossStats accumulates the negative log-likelihood of the valid target positions.
type LossStats struct {
	NLL    float64 // summed over valid positions
	Tokens int     // valid positions
	Batch  int     // sequences
}

// Loss is the summed NLL divided by the batch size.
func (s LossStats) Loss() float64 {
	if s.Batch == 0 {
		return 0
	}
	return s.NLL / float64(s.Batch)
}

// Perplexity is exp of the mean NLL per valid position.
func (s LossStats) Perplexity() float64 {
	if s.Tokens == 0 {
		return math.Inf(1)
	}
	return math.Exp(s.NLL / float64(s.Tokens))
}

// SequenceCrossEntropy scores logits [L][B][V] against targets [L][B].
// Positions at or beyond Lengths[b] are ignored; extra logit steps, such as
// future steps, are ignored too.
func SequenceCrossEntropy(logits [][][]float64, batch Batch) (LossStats, error) {
	steps := batch.Steps()
	if len(logits) < steps {
		return LossStats{}, errors.Wrapf(ErrDimensionMismatch, "%d logit steps for %d targets", len(logits), steps)
	}
	stats := LossStats{Batch: len(batch.Lengths)}
	lsm := []float64{}
	for t := 0; t < steps; t++ {
		if len(logits[t]) != len(batch.Lengths) || len(batch.Targets[t]) != len(batch.Lengths) {
			return LossStats{}, errors.Wrapf(ErrDimensionMismatch, "step %d batch sizes differ", t)
		}
		for b, n := range batch.Lengths {
			if t >= n {
				continue
			}
			row := logits[t][b]
			y := batch.Targets[t][b]
			if y < 0 || y >= len(row) {
				return LossStats{}, errors.Wrapf(ErrDimensionMismatch, "target %d outside %d classes", y, len(row))
			}
			if cap(lsm) < len(row) {
				lsm = make([]float64, len(row))
			}
			lsm = lsm[:len(row)]
			mathutil.LogSoftmax(lsm, row)
			stats.NLL -= lsm[y]
			stats.Tokens++
		}
	}
	return stats, nil
}

// Add merges the statistics of another batch.
func (s *LossStats) Add(o LossStats) {
	s.NLL += o.NLL
	s.Tokens += o.Tokens
	s.Batch += o.Batch
}
