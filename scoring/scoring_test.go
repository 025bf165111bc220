package scoring

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/ieee0824/las-go/corpus"
	"github.com/ieee0824/las-go/internal/artifact"
	"github.com/ieee0824/las-go/lexicon"
	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeCER(t *testing.T) {
	tests := []struct {
		name string
		hyp  string
		ref  string
		raw  int
		norm float64
	}{
		{"english substitution", "你好 word", "你好 world", 1, 1.0 / 3},
		{"unspaced hypothesis", "你好word", "你好 world", 1, 1.0 / 3},
		{"exact", "我们go shopping", "我们 go shopping", 0, 0},
		{"chinese deletion", "你 world", "你好 world", 1, 1.0 / 3},
		{"empty hypothesis", "", "你好", 2, 1},
		{"empty reference", "hi", "", 1, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			norm, raw, err := ComputeCER([]string{tt.hyp}, []string{tt.ref})
			require.NoError(t, err)
			assert.Equal(t, []int{tt.raw}, raw)
			assert.InDelta(t, tt.norm, norm[0], 1e-12)
		})
	}
}

func TestComputeCER_Idempotent(t *testing.T) {
	hyps := []string{"我要 go meting", "今天 lanch", "ok lah"}
	refs := []string{"我要 go meeting", "今天 lunch", "ok la"}
	n1, r1 := must.M2(ComputeCER(hyps, refs))
	n2, r2 := must.M2(ComputeCER(hyps, refs))
	assert.Equal(t, n1, n2)
	assert.Equal(t, r1, r2)
}

func TestComputeCER_LengthMismatch(t *testing.T) {
	_, _, err := ComputeCER([]string{"a"}, nil)
	assert.ErrorIs(t, err, ErrLengthMismatch)
}

func TestEvaluatorLog(t *testing.T) {
	refs := []string{"你好 world"}
	m := must.M1(lexicon.BuildSymbolMap(ReferenceVocabulary(refs)))
	var log bytes.Buffer
	e := &Evaluator{Map: m, Log: &log}
	_, raw := must.M2(e.Score([]string{"你好"}, refs))
	assert.Equal(t, []int{1}, raw)
	assert.Equal(t, "你好\t你好 world\t1\n", log.String())

	_, _, err := e.Score([]string{"unknown"}, refs)
	assert.ErrorIs(t, err, lexicon.ErrUnknownToken)
}

func TestCharEvaluator(t *testing.T) {
	var log bytes.Buffer
	e := &CharEvaluator{Log: &log}
	norm, raw := must.M2(e.Score([]string{"kumusta ka", "oo"}, []string{"kumusta po", "oo"}))
	assert.Equal(t, []int{2, 0}, raw)
	assert.InDelta(t, 0.2, norm[0], 1e-12)
	assert.Equal(t, "kumusta ka\tkumusta po\t2\noo\too\t0\n", log.String())
}

func TestTopK(t *testing.T) {
	mins, idxs := must.M2(TopK([]float64{0.3, 0.1, 0.4, 0.2, 0.5}, 5))
	assert.Equal(t, []float64{0.1}, mins)
	assert.Equal(t, []int{1}, idxs)

	mins, idxs = must.M2(TopK([]float64{0.2, 0.2, 0.5, 0.1}, 2))
	assert.Equal(t, []float64{0.2, 0.1}, mins)
	assert.Equal(t, []int{0, 1}, idxs, "first minimum wins")

	_, _, err := TopK([]float64{1, 2, 3}, 2)
	assert.ErrorIs(t, err, ErrBeamMismatch)
	_, _, err = TopK(nil, 0)
	assert.ErrorIs(t, err, ErrBeamMismatch)
}

func TestMean(t *testing.T) {
	assert.Zero(t, Mean(nil))
	assert.InDelta(t, 0.5, Mean([]float64{0, 1}), 1e-12)
}

type upperSpeller struct{}

func (upperSpeller) Correct(w string) string { return w + "!" }

func TestCorrect(t *testing.T) {
	english := lexicon.NewVocabulary("go", "meeting", "lunch")
	speller := lexicon.SpellerFromLines([]string{"go meeting lunch"})
	lines := []string{"我要 go meting", "今天 lanch", "", "你好"}

	corr := must.M1(Correct(lines, english, speller, lexicon.DefaultCorrector(), 2, false))
	assert.Equal(t, []string{"我要 go meeting", "今天 lunch", "", "你好"}, corr[Autoc])
	assert.Equal(t, []string{"我要 go meeting", "今天 lunch", "", "你好"}, corr[Prox])
	assert.Equal(t, []string{"我要 go meeting", "今天 lunch", "", "你好"}, corr[AutocProx])

	// A speller suggestion outside the reference words falls back to the closest word.
	corr = must.M1(Correct([]string{"meting go"}, english, upperSpeller{}, lexicon.DefaultCorrector(), 1, false))
	assert.Equal(t, []string{"meting! go"}, corr[Autoc])
	assert.Equal(t, []string{"meeting go"}, corr[AutocProx])
}

func merConfig(dir string) MERConfig {
	return MERConfig{
		SaveDir:    dir,
		References: []string{"我要go meeting", "今天 lunch"},
		Hypotheses: []string{"我要 go meting", "今天lanch"},
		Speller:    lexicon.SpellerFromLines([]string{"go meeting lunch"}),
		Workers:    2,
	}
}

func TestRunMER(t *testing.T) {
	dir := t.TempDir()
	report, err := RunMER(merConfig(dir))
	require.NoError(t, err)
	assert.NotEmpty(t, report.RunID)
	require.Len(t, report.Variants, 3)
	for i, v := range Variants {
		assert.Equal(t, v, report.Variants[i].Variant)
		assert.Equal(t, []int{0, 0}, report.Variants[i].Raw)
		assert.Zero(t, report.Variants[i].Mean)
	}

	assert.Equal(t, []string{"我要 go meeting", "今天 lunch"}, must.M1(corpus.ReadLines(filepath.Join(dir, artifact.SpacedRefs))))
	assert.Equal(t, []string{"我要 go meting", "今天 lanch"}, must.M1(corpus.ReadLines(filepath.Join(dir, artifact.SpacedHyps))))
	for _, name := range []string{
		artifact.AutocHyps, artifact.ProxHyps, artifact.AutocProxHyps,
		"prox_mer_log.txt", "prox_mer.npy", "prox_dist.npy",
		"autoc_prox_mer_log.txt", "autoc_prox_mer.npy", "autoc_prox_dist.npy",
		"autoc_mer_log.txt", "autoc_mer.npy", "autoc_dist.npy",
	} {
		assert.FileExists(t, filepath.Join(dir, name))
	}
	scores := must.M1(artifact.LoadFile(filepath.Join(dir, "prox_mer.npy")))
	assert.Equal(t, []int{2}, scores.Shape)
}

func TestRunMER_ReusesCachedCorrections(t *testing.T) {
	dir := t.TempDir()
	_ = must.M1(RunMER(merConfig(dir)))

	uncorrected := []string{"我要 go meting", "今天 lanch"}
	require.NoError(t, corpus.WriteLines(filepath.Join(dir, artifact.ProxHyps), uncorrected))
	report := must.M1(RunMER(merConfig(dir)))
	prox := report.Variants[0]
	require.Equal(t, Prox, prox.Variant)
	assert.Equal(t, []int{1, 1}, prox.Raw)
	assert.InDelta(t, (1.0/4+1.0/3)/2, prox.Mean, 1e-12)

	// Removing one cached file regenerates all of them.
	require.NoError(t, os.Remove(filepath.Join(dir, artifact.AutocHyps)))
	report = must.M1(RunMER(merConfig(dir)))
	assert.Equal(t, []int{0, 0}, report.Variants[0].Raw)
}

func TestRunMER_Errors(t *testing.T) {
	cfg := merConfig(t.TempDir())
	cfg.Hypotheses = cfg.Hypotheses[:1]
	_, err := RunMER(cfg)
	assert.ErrorIs(t, err, ErrLengthMismatch)

	cfg = merConfig(t.TempDir())
	cfg.Speller = nil
	_, err = RunMER(cfg)
	assert.Error(t, err)
}

func TestRunTopK(t *testing.T) {
	dir := t.TempDir()
	cfg := TopKConfig{
		SaveDir:    dir,
		References: []string{"abcd", "xy"},
		Beams: []corpus.Hypothesis{
			{ID: "1", Text: "abce"}, {ID: "1", Text: "abcd"}, {ID: "1", Text: "a"},
			{ID: "2", Text: "x"}, {ID: "2", Text: "zz"}, {ID: "2", Text: "x"},
		},
	}
	report := must.M1(RunTopK(cfg))
	assert.Equal(t, 3, report.Width)
	assert.Equal(t, []float64{0, 0.5}, report.MinCERs)
	assert.Equal(t, []int{1, 0}, report.MinIdxs)
	assert.InDelta(t, 0.25, report.Mean, 1e-12)

	cer := must.M1(artifact.LoadFile(filepath.Join(dir, artifact.TestCER)))
	assert.Equal(t, []int{2, 3}, cer.Shape)
	assert.Equal(t, []float64{0.25, 0, 0.75, 0.5, 1, 0.5}, cer.Data)
	dist := must.M1(artifact.LoadFile(filepath.Join(dir, artifact.TestDist)))
	assert.Equal(t, []float64{1, 0, 3, 1, 2, 1}, dist.Data)
	idxs := must.M1(artifact.LoadFile(filepath.Join(dir, artifact.MinIdxs)))
	assert.Equal(t, []float64{1, 0}, idxs.Data)
	assert.FileExists(t, filepath.Join(dir, artifact.CERLog))

	cfg.References = cfg.References[:1]
	_, err := RunTopK(cfg)
	assert.ErrorIs(t, err, ErrBeamMismatch)
}

func TestRunMER_SpellerFromUnspacedReferences(t *testing.T) {
	refs := []string{"我要go去shopping了"}
	report := must.M1(RunMER(MERConfig{
		SaveDir:    t.TempDir(),
		References: refs,
		Hypotheses: []string{"我要go去shoping了"},
		Speller:    lexicon.SpellerFromLines(refs),
		Workers:    1,
	}))
	autoc := report.Variants[2]
	require.Equal(t, Autoc, autoc.Variant)
	assert.Equal(t, []int{0}, autoc.Raw)
}
