package corpus

import (
	"encoding/csv"
	"io"
	"os"

	"github.com/pkg/errors"
)

// Hypothesis is one row of a submission CSV.
type Hypothesis struct {
	ID   string
	Text string
}

// BeamSet holds the candidate transcripts produced for one utterance.
type BeamSet struct {
	ID         string
	Hypotheses []string
}

// ReadHypothesesCSV reads "id,text" rows. Extra columns are ignored.
func ReadHypothesesCSV(r io.Reader) ([]Hypothesis, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	var out []Hypothesis
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, errors.Wrap(err, "read hypothesis csv")
		}
		if len(rec) < 2 {
			line, _ := cr.FieldPos(0)
			return nil, errors.Errorf("line %d: expected id,text, got %d fields", line, len(rec))
		}
		out = append(out, Hypothesis{ID: rec[0], Text: rec[1]})
	}
}

// ReadHypothesesFile reads a submission CSV from path.
func ReadHypothesesFile(path string) ([]Hypothesis, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %q", path)
	}
	defer f.Close()
	hs, err := ReadHypothesesCSV(f)
	return hs, errors.Wrapf(err, "%q", path)
}

// WriteHypothesesCSV writes "id,text" rows.
func WriteHypothesesCSV(w io.Writer, hyps []Hypothesis) error {
	cw := csv.NewWriter(w)
	for _, h := range hyps {
		if err := cw.Write([]string{h.ID, h.Text}); err != nil {
			return errors.Wrap(err, "write hypothesis csv")
		}
	}
	cw.Flush()
	return errors.Wrap(cw.Error(), "flush hypothesis csv")
}

// WriteHypothesesFile writes a submission CSV to path.
func WriteHypothesesFile(path string, hyps []Hypothesis) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create %q", path)
	}
	if err := WriteHypothesesCSV(f, hyps); err != nil {
		f.Close()
		return errors.Wrapf(err, "%q", path)
	}
	return errors.Wrapf(f.Close(), "close %q", path)
}

// HypothesisTexts returns the text column.
func HypothesisTexts(hyps []Hypothesis) []string {
	out := make([]string, len(hyps))
	for i, h := range hyps {
		out[i] = h.Text
	}
	return out
}

// BeamWidth counts the leading rows sharing the first row's id.
func BeamWidth(hyps []Hypothesis) int {
	n := 0
	for _, h := range hyps {
		if h.ID != hyps[0].ID {
			break
		}
		n++
	}
	return n
}

// GroupBeams groups rows by id in order of first appearance.
func GroupBeams(hyps []Hypothesis) []BeamSet {
	var groups []BeamSet
	pos := make(map[string]int)
	for _, h := range hyps {
		i, ok := pos[h.ID]
		if !ok {
			i = len(groups)
			pos[h.ID] = i
			groups = append(groups, BeamSet{ID: h.ID})
		}
		groups[i].Hypotheses = append(groups[i].Hypotheses, h.Text)
	}
	return groups
}
