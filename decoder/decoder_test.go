package decoder

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/ieee0824/las-go/internal/mathutil"
	"github.com/ieee0824/las-go/nn"
	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testVocab = 5

func testConfig(heads int) Config {
	return Config{
		DecoderDim:       4,
		KeyDim:           3,
		ValueDim:         3,
		NumHeads:         heads,
		NumLayers:        2,
		TeacherForceRate: 0.9,
		GeneratorLength:  12,
		Device:           "cpu",
	}
}

func randMat(rng *rand.Rand, rows, cols int) mathutil.Mat {
	m := mathutil.NewMat(rows, cols)
	for i := range m {
		for j := range m[i] {
			m[i][j] = rng.NormFloat64()
		}
	}
	return m
}

func testMemory(cfg Config, lengths []int, frames int, seed int64) Memory {
	rng := rand.New(rand.NewSource(seed))
	mem := Memory{Lengths: lengths}
	for range lengths {
		mem.Keys = append(mem.Keys, randMat(rng, frames, cfg.NumHeads*cfg.KeyDim))
		mem.Values = append(mem.Values, randMat(rng, frames, cfg.NumHeads*cfg.ValueDim))
	}
	return mem
}

func testBatch() Batch {
	// two sequences: [1 2 EOS] and [3 EOS pad]
	return Batch{
		Targets: [][]int{{1, 3}, {2, testVocab}, {testVocab, testVocab}},
		Lengths: []int{3, 2},
	}
}

func newTestDecoder(t *testing.T, heads int) *Decoder {
	t.Helper()
	return must.M1(New(testConfig(heads), testVocab, rand.New(rand.NewSource(42))))
}

func TestMaskedSoftmax(t *testing.T) {
	w := MaskedSoftmax([]float64{1, 2, 3e4, -5}, []float64{1, 1, 0, 0})
	assert.InDelta(t, 1.0, w[0]+w[1], 1e-12)
	assert.Zero(t, w[2])
	assert.Zero(t, w[3])
	assert.InDelta(t, math.Exp(1)/(math.Exp(1)+math.Exp(2)), w[0], 1e-12)

	big := MaskedSoftmax([]float64{1e6, 1e6 + 1}, []float64{1, 1})
	assert.False(t, math.IsNaN(big[0]) || math.IsNaN(big[1]))
	assert.InDelta(t, 1.0, big[0]+big[1], 1e-12)
}

func TestMultiHeadAttentionMatchesPerHeadSoftmax(t *testing.T) {
	cfg := Config{DecoderDim: 4, KeyDim: 2, ValueDim: 2, NumHeads: 2}
	a := &MultiHeadAttention{
		QueryProj: &nn.Linear{W: identity(4), B: make([]float64, 4), In: 4, Out: 4},
		Wo:        &nn.Linear{W: identity(4), B: make([]float64, 4), In: 4, Out: 4},
		NumHeads:  2,
		KeyDim:    2,
		ValueDim:  2,
	}
	mem := testMemory(cfg, []int{3}, 4, 3)
	att := must.M1(a.Bind(mem))
	query := mathutil.Mat{{0.5, -1, 2, 0.25}}
	ctx := must.M1(att.Attend(query))

	for hd := 0; hd < 2; hd++ {
		energy := make([]float64, 4)
		for f := 0; f < 4; f++ {
			energy[f] = mathutil.DotVec(mem.Keys[0][f][hd*2:hd*2+2], query[0][hd*2:hd*2+2])
		}
		w := make([]float64, 3)
		mathutil.Softmax(w, energy[:3])
		want := make([]float64, 2)
		for f := 0; f < 3; f++ {
			mathutil.AxpyVec(want, w[f], mem.Values[0][f][hd*2:hd*2+2])
		}
		assert.InDeltaSlice(t, want, ctx.Vectors[0][hd*2:hd*2+2], 1e-9, "head %d", hd)
	}
	assert.Zero(t, ctx.Weights[0][3])
}

func identity(n int) []float64 {
	w := make([]float64, n*n)
	for i := 0; i < n; i++ {
		w[i*n+i] = 1
	}
	return w
}

func TestAttentionIgnoresPadding(t *testing.T) {
	for _, heads := range []int{1, 2} {
		d := newTestDecoder(t, heads)
		cfg := d.Config
		mem := testMemory(cfg, []int{4, 2}, 4, 1)
		out1 := must.M1(d.Decode(testBatch(), mem, DecodeOptions{Mode: ModeForced}))

		// Scribble over the padded frames of the second element.
		for f := 2; f < 4; f++ {
			for j := range mem.Keys[1][f] {
				mem.Keys[1][f][j] = 1e3
			}
			for j := range mem.Values[1][f] {
				mem.Values[1][f][j] = -1e3
			}
		}
		out2 := must.M1(d.Decode(testBatch(), mem, DecodeOptions{Mode: ModeForced}))
		for s := range out1.Logits {
			assert.InDeltaSlice(t, out1.Logits[s][1], out2.Logits[s][1], 1e-9, "heads=%d step %d", heads, s)
			assert.Zero(t, out2.Attention[s][1][2])
			assert.Zero(t, out2.Attention[s][1][3])
		}
	}
}

func TestGumbelArgmax(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	ids := GumbelArgmax(mathutil.Mat{{0, 100, 0}, {50, -50, 0}}, rng)
	assert.Equal(t, []int{1, 0}, ids)

	logits := mathutil.Mat{{math.Log(0.8), math.Log(0.2)}}
	const draws = 20000
	zeros := 0
	for i := 0; i < draws; i++ {
		if GumbelArgmax(logits, rng)[0] == 0 {
			zeros++
		}
	}
	assert.InDelta(t, 0.8, float64(zeros)/draws, 0.02)
}

func TestDecodeShapes(t *testing.T) {
	d := newTestDecoder(t, 2)
	mem := testMemory(d.Config, []int{4, 3}, 4, 2)
	out, err := d.Decode(testBatch(), mem, DecodeOptions{Mode: ModeTrain, Future: 2})
	require.NoError(t, err)
	require.Len(t, out.Logits, 5)
	require.Len(t, out.Generated, 5)
	for s := range out.Logits {
		require.Len(t, out.Logits[s], 2)
		assert.Len(t, out.Logits[s][0], testVocab+1)
		assert.Len(t, out.Attention[s][0], 4)
		for _, id := range out.Generated[s] {
			assert.True(t, id >= 0 && id <= testVocab)
		}
	}
}

func TestFullTeacherForcingIgnoresSeed(t *testing.T) {
	mem := testMemory(testConfig(2), []int{4, 3}, 4, 9)
	run := func(mode Mode, seed int64) *Output {
		d := newTestDecoder(t, 2)
		d.Config.TeacherForceRate = 1.0
		d.SetRand(rand.New(rand.NewSource(seed)))
		return must.M1(d.Decode(testBatch(), mem, DecodeOptions{Mode: mode}))
	}
	a, b, forced := run(ModeTrain, 1), run(ModeTrain, 2), run(ModeForced, 3)
	for s := range a.Logits {
		for e := range a.Logits[s] {
			assert.InDeltaSlice(t, a.Logits[s][e], b.Logits[s][e], 1e-12)
			assert.InDeltaSlice(t, a.Logits[s][e], forced.Logits[s][e], 1e-12)
		}
	}
}

func TestFirstStepIndependentOfMode(t *testing.T) {
	mem := testMemory(testConfig(1), []int{4, 4}, 4, 4)
	var first [][]float64
	for _, mode := range []Mode{ModeTrain, ModeEval, ModeForced} {
		d := newTestDecoder(t, 1)
		out := must.M1(d.Decode(testBatch(), mem, DecodeOptions{Mode: mode}))
		if first == nil {
			first = out.Logits[0]
			continue
		}
		for e := range first {
			assert.InDeltaSlice(t, first[e], out.Logits[0][e], 1e-12, "mode %s", mode)
		}
	}
}

// TestDecodeFeedsOwnSamples replays a decode step by step: eval mode and
// the future steps must feed the previous step's samples back in.
func TestDecodeFeedsOwnSamples(t *testing.T) {
	for _, mode := range []Mode{ModeEval, ModeForced} {
		d := newTestDecoder(t, 2)
		mem := testMemory(d.Config, []int{4, 3}, 4, 11)
		batch := testBatch()
		out := must.M1(d.Decode(batch, mem, DecodeOptions{Mode: mode, Future: 2}))
		require.Len(t, out.Logits, batch.Steps()+2)

		att := must.M1(d.Attender().Bind(mem))
		in := must.M1(d.initialInput(att, 2))
		for i := range out.Logits {
			if i > 0 {
				in.Prev = out.Generated[i-1]
				if mode == ModeForced && i < batch.Steps() {
					in.Prev = batch.Targets[i-1]
				}
			}
			so := must.M1(d.Step(att, in))
			for e := range so.Logits {
				assert.InDeltaSlice(t, so.Logits[e], out.Logits[i][e], 1e-12, "mode %s step %d", mode, i)
			}
			in.Context, in.States = so.Context, so.States
		}
	}
}

func TestDecodeErrors(t *testing.T) {
	d := newTestDecoder(t, 2)
	mem := testMemory(d.Config, []int{4, 3}, 4, 2)

	_, err := d.Decode(Batch{}, mem, DecodeOptions{})
	assert.True(t, errors.Is(err, ErrEmptyBatch))

	bad := testMemory(d.Config, []int{4, 0}, 4, 2)
	_, err = d.Decode(testBatch(), bad, DecodeOptions{})
	assert.True(t, errors.Is(err, ErrEmptyMemory))

	tooLong := testMemory(d.Config, []int{5, 3}, 4, 2)
	_, err = d.Decode(testBatch(), tooLong, DecodeOptions{})
	assert.True(t, errors.Is(err, ErrDimensionMismatch))

	narrow := testMemory(Config{NumHeads: 2, KeyDim: 2, ValueDim: 3}, []int{4, 3}, 4, 2)
	_, err = d.Decode(testBatch(), narrow, DecodeOptions{})
	assert.True(t, errors.Is(err, ErrDimensionMismatch))

	wrongBatch := Batch{Targets: [][]int{{1}}, Lengths: []int{1}}
	_, err = d.Decode(wrongBatch, mem, DecodeOptions{})
	assert.True(t, errors.Is(err, ErrDimensionMismatch))
}

func TestDecodeFutureOnly(t *testing.T) {
	d := newTestDecoder(t, 1)
	mem := testMemory(d.Config, []int{2}, 3, 8)
	out, err := d.Decode(Batch{}, mem, DecodeOptions{Future: 3})
	require.NoError(t, err)
	assert.Len(t, out.Generated, 3)
}

func TestGenerate(t *testing.T) {
	d := newTestDecoder(t, 2)
	mem := testMemory(d.Config, []int{4, 2, 3}, 4, 6)
	seqs, err := d.Generate(mem, 0)
	require.NoError(t, err)
	require.Len(t, seqs, 3)
	for _, s := range seqs {
		assert.LessOrEqual(t, len(s), d.Config.GeneratorLength)
		assert.NotContains(t, s, d.StartID())
	}
	short, err := d.Generate(mem, 1)
	require.NoError(t, err)
	for _, s := range short {
		assert.LessOrEqual(t, len(s), 1)
	}
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
	assert.NoError(t, SingleHeadConfig().Validate())

	bad := []func(*Config){
		func(c *Config) { c.Device = "cuda:0" },
		func(c *Config) { c.NumHeads = 0 },
		func(c *Config) { c.KeyDim = 0 },
		func(c *Config) { c.TeacherForceRate = 1.5 },
		func(c *Config) { c.NumLayers = 0 },
		func(c *Config) { c.GeneratorLength = 0 },
	}
	for i, mutate := range bad {
		c := DefaultConfig()
		mutate(&c)
		assert.Error(t, c.Validate(), "case %d", i)
	}
	_, err := New(DefaultConfig(), 0, rand.New(rand.NewSource(1)))
	assert.Error(t, err)
}

func TestStepRejectsWrongStates(t *testing.T) {
	d := newTestDecoder(t, 2)
	att := must.M1(d.Attender().Bind(testMemory(d.Config, []int{4}, 4, 1)))
	_, err := d.Step(att, StepInput{
		Prev:    []int{0},
		Context: mathutil.NewMat(1, d.Config.DecoderDim),
		States:  d.InitialStates(1)[:1],
	})
	assert.True(t, errors.Is(err, ErrDimensionMismatch))
}

func TestSequenceCrossEntropy(t *testing.T) {
	b := Batch{Targets: [][]int{{0, 1}, {2, 3}}, Lengths: []int{2, 1}}
	logits := [][][]float64{
		{{0, 0, 0, 0}, {0, 0, 0, 0}},
		{{0, 0, 0, 0}, {10, 10, 10, 10}},
	}
	stats, err := SequenceCrossEntropy(logits, b)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Tokens)
	assert.InDelta(t, 3*math.Log(4)/2, stats.Loss(), 1e-12)
	assert.InDelta(t, 4.0, stats.Perplexity(), 1e-9)

	var total LossStats
	total.Add(stats)
	total.Add(stats)
	assert.InDelta(t, stats.Loss(), total.Loss(), 1e-12)

	_, err = SequenceCrossEntropy(logits[:1], b)
	assert.True(t, errors.Is(err, ErrDimensionMismatch))
}
