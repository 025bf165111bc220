// Package scoring computes character and mixed error rates of recognizer
// transcripts and writes the evaluation artifacts of a save directory.
package scoring

import (
	"fmt"
	"io"
	"strings"

	"github.com/ieee0824/las-go/lexicon"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

var (
	// ErrLengthMismatch is returned when hypotheses and references are not aligned.
	ErrLengthMismatch = errors.New("hypothesis and reference counts differ")
	// ErrBeamMismatch is returned when a beam file does not hold the same
	// number of candidates for every reference.
	ErrBeamMismatch = errors.New("beam rows do not tile the references")
)

// ComputeCER scores hyps against refs after script-aware re-spacing. Every
// Chinese character and every English word counts as one unit. The
// vocabulary covers the reference units, the space token and the
// hypothesis units.
func ComputeCER(hyps, refs []string) (norm []float64, raw []int, err error) {
	if len(hyps) != len(refs) {
		return nil, nil, errors.Wrapf(ErrLengthMismatch, "%d hypotheses, %d references", len(hyps), len(refs))
	}
	vocab := ReferenceVocabulary(refs)
	vocab.AddLines(hyps)
	m, err := lexicon.BuildSymbolMap(vocab)
	if err != nil {
		return nil, nil, err
	}
	return (&Evaluator{Map: m}).Score(hyps, refs)
}

// ReferenceVocabulary collects the units of refs followed by the space token.
func ReferenceVocabulary(refs []string) *lexicon.Vocabulary {
	v := lexicon.NewVocabulary()
	v.AddLines(refs)
	v.AddSpace()
	return v
}

// Evaluator scores unit sequences remapped through a fixed symbol map.
type Evaluator struct {
	Map *lexicon.SymbolMap
	// Log, if set, receives one "hyp\tref\tdistance" line per pair.
	Log io.Writer
}

// Score returns the normalised and raw distances of every pair.
func (e *Evaluator) Score(hyps, refs []string) ([]float64, []int, error) {
	if len(hyps) != len(refs) {
		return nil, nil, errors.Wrapf(ErrLengthMismatch, "%d hypotheses, %d references", len(hyps), len(refs))
	}
	norm := make([]float64, len(hyps))
	raw := make([]int, len(hyps))
	for i := range hyps {
		h, err := e.Map.Map(lexicon.Units(hyps[i]))
		if err != nil {
			return nil, nil, errors.Wrapf(err, "hypothesis %d", i)
		}
		r, err := e.Map.Map(lexicon.Units(refs[i]))
		if err != nil {
			return nil, nil, errors.Wrapf(err, "reference %d", i)
		}
		raw[i] = lexicon.EditDistance(h, r)
		norm[i] = normalise(raw[i], len(r))
		if err := logPair(e.Log, hyps[i], refs[i], raw[i]); err != nil {
			return nil, nil, err
		}
	}
	return norm, raw, nil
}

// CharEvaluator scores raw rune sequences, spaces included.
type CharEvaluator struct {
	Log io.Writer
}

// Score returns the normalised and raw distances of every pair.
func (e *CharEvaluator) Score(hyps, refs []string) ([]float64, []int, error) {
	if len(hyps) != len(refs) {
		return nil, nil, errors.Wrapf(ErrLengthMismatch, "%d hypotheses, %d references", len(hyps), len(refs))
	}
	norm := make([]float64, len(hyps))
	raw := make([]int, len(hyps))
	for i := range hyps {
		r := []rune(refs[i])
		raw[i] = lexicon.EditDistance([]rune(hyps[i]), r)
		norm[i] = normalise(raw[i], len(r))
		if err := logPair(e.Log, hyps[i], refs[i], raw[i]); err != nil {
			return nil, nil, err
		}
	}
	return norm, raw, nil
}

// normalise divides by the reference length. An empty reference reports
// the raw distance.
func normalise(raw, refLen int) float64 {
	if refLen == 0 {
		return float64(raw)
	}
	return float64(raw) / float64(refLen)
}

func logPair(w io.Writer, hyp, ref string, dist int) error {
	if w == nil {
		return nil
	}
	_, err := fmt.Fprintf(w, "%s\t%s\t%d\n", oneLine(hyp), oneLine(ref), dist)
	return errors.Wrap(err, "write distance log")
}

func oneLine(s string) string {
	return strings.NewReplacer("\t", " ", "\n", " ").Replace(s)
}

// Mean is the average rate, zero for no values.
func Mean(norm []float64) float64 {
	if len(norm) == 0 {
		return 0
	}
	return stat.Mean(norm, nil)
}

// TopK returns, for each group of beams consecutive values, the minimum
// and the index of its first occurrence.
func TopK(norm []float64, beams int) ([]float64, []int, error) {
	if beams <= 0 || len(norm)%beams != 0 {
		return nil, nil, errors.Wrapf(ErrBeamMismatch, "%d values in groups of %d", len(norm), beams)
	}
	n := len(norm) / beams
	mins := make([]float64, n)
	idxs := make([]int, n)
	for u := 0; u < n; u++ {
		row := norm[u*beams : (u+1)*beams]
		best := floats.MinIdx(row)
		mins[u], idxs[u] = row[best], best
	}
	return mins, idxs, nil
}
