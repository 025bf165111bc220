package rerank

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ieee0824/las-go/corpus"
	"github.com/ieee0824/las-go/language"
	"github.com/janpfeifer/must"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapScorer map[string]float64

func (m mapScorer) Loss(s string) (float64, error) {
	l, ok := m[s]
	if !ok {
		return 0, errors.Errorf("no loss for %q", s)
	}
	return l, nil
}

func TestRerank(t *testing.T) {
	groups := []corpus.BeamSet{
		{ID: "10", Hypotheses: []string{"c", "d"}},
		{ID: "2", Hypotheses: []string{"a", "b", "e"}},
		{ID: "3", Hypotheses: []string{"x", ""}},
	}
	scorer := mapScorer{"a": 2.5, "b": 1.0, "e": 1.0, "c": 0.5, "d": 3}
	var results, report bytes.Buffer
	r := &Reranker{Scorer: scorer, Results: &results, Report: &report}

	ranked, err := r.Run(groups)
	require.NoError(t, err)
	require.Len(t, ranked, 3)

	assert.Equal(t, "2", ranked[0].ID)
	assert.Equal(t, []string{"b", "e", "a"}, ranked[0].Candidates, "stable on equal loss")
	assert.Equal(t, []float64{1, 1, 2.5}, ranked[0].Losses)

	assert.Equal(t, "3", ranked[1].ID)
	assert.False(t, ranked[1].Scored())
	assert.Equal(t, "x", ranked[1].Best())

	assert.Equal(t, "10", ranked[2].ID, "numeric order")
	assert.Equal(t, "c", ranked[2].Best())

	assert.Equal(t, "2,b\n3,x\n10,c\n", report.String())
	assert.Equal(t, "b\nc\n", results.String())
}

func TestRerank_MergesNumericIDs(t *testing.T) {
	groups := []corpus.BeamSet{
		{ID: "1", Hypotheses: []string{"a"}},
		{ID: "01", Hypotheses: []string{"b"}},
	}
	r := &Reranker{Scorer: mapScorer{"a": 2, "b": 1}}
	ranked := must.M1(r.Run(groups))
	require.Len(t, ranked, 1)
	assert.Equal(t, []string{"b", "a"}, ranked[0].Candidates)
}

func TestRerank_LexicalIDs(t *testing.T) {
	groups := []corpus.BeamSet{
		{ID: "utt-b", Hypotheses: []string{"a"}},
		{ID: "utt-a", Hypotheses: []string{"b"}},
	}
	r := &Reranker{Scorer: mapScorer{"a": 1, "b": 1}}
	ranked := must.M1(r.Run(groups))
	assert.Equal(t, "utt-a", ranked[0].ID)
	assert.Equal(t, "utt-b", ranked[1].ID)
}

func TestRerank_ScorerError(t *testing.T) {
	r := &Reranker{Scorer: mapScorer{}}
	_, err := r.Run([]corpus.BeamSet{{ID: "1", Hypotheses: []string{"zzz"}}})
	assert.Error(t, err)
}

func TestLMScorer(t *testing.T) {
	b := language.NewBuilder(2)
	b.AddSentence([]string{"我", "要", "go", "home"})
	b.AddSentence([]string{"我", "要", "吃", "饭"})
	var buf bytes.Buffer
	require.NoError(t, b.WriteARPA(&buf))
	lm := must.M1(language.LoadARPA(strings.NewReader(buf.String())))

	s := LMScorer{Model: lm, Dataset: language.SEAME}
	good := must.M1(s.Loss("我要go home"))
	bad := must.M1(s.Loss("home go要我"))
	assert.Less(t, good, bad)

	r := &Reranker{Scorer: s}
	ranked := must.M1(r.Run([]corpus.BeamSet{{ID: "1", Hypotheses: []string{"home go要我", "我要go home"}}}))
	assert.Equal(t, "我要go home", ranked[0].Best())
}

func TestOpenResults(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "submission.csv")
	for _, line := range []string{"first\n", "second\n"} {
		f := must.M1(OpenResults(csvPath))
		_, err := f.WriteString(line)
		require.NoError(t, err)
		require.NoError(t, f.Close())
	}
	data := must.M1(os.ReadFile(filepath.Join(dir, "result.txt")))
	assert.Equal(t, "first\nsecond\n", string(data))
}
