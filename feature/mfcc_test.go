package feature

import (
	"math"
	"testing"

	"github.com/ieee0824/las-go/internal/mathutil"
	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sine(n int, freq float64) []float64 {
	samples := make([]float64, n)
	for i := range samples {
		samples[i] = math.Sin(2 * math.Pi * freq * float64(i) / 16000)
	}
	return samples
}

func TestPreEmphasize(t *testing.T) {
	out := PreEmphasize([]float64{1, 2, 3, 4}, 0.97)
	assert.InDeltaSlice(t, []float64{1, 1.03, 1.06, 1.09}, out, 1e-12)
	assert.Nil(t, PreEmphasize(nil, 0.97))
}

func TestNumFrames(t *testing.T) {
	assert.Equal(t, 8, NumFrames(100, 25, 10))
	assert.Equal(t, 1, NumFrames(25, 25, 10))
	assert.Equal(t, 0, NumFrames(24, 25, 10))
}

func TestHamming(t *testing.T) {
	w := Hamming(11)
	assert.InDelta(t, 0.08, w[0], 1e-12)
	assert.InDelta(t, 0.08, w[10], 1e-12)
	assert.InDelta(t, 1.0, w[5], 1e-12)
}

func TestPowerSpectrum(t *testing.T) {
	// An impulse under the window's unit peak has a flat spectrum.
	frame := make([]float64, 15)
	frame[7] = 1
	ps := PowerSpectrum(frame, 16)
	require.Len(t, ps, 9)
	for _, v := range ps {
		assert.InDelta(t, 1.0/16, v, 1e-12)
	}
}

func TestMelFilterbank(t *testing.T) {
	fb := NewMelFilterbank(26, 512, 16000, 0, 8000)
	assert.Equal(t, 26, fb.Len())

	flat := make([]float64, 257)
	for i := range flat {
		flat[i] = 1
	}
	energies := fb.Apply(flat)
	require.Len(t, energies, 26)
	// Higher filters span more bins and collect more energy.
	assert.Greater(t, energies[25], energies[0])

	silent := fb.Apply(make([]float64, 257))
	assert.InDelta(t, math.Log(1e-30), silent[3], 1e-9)
}

func TestDCT(t *testing.T) {
	input := make([]float64, 26)
	for i := range input {
		input[i] = 1
	}
	c := DCT(input, 13)
	require.Len(t, c, 13)
	assert.InDelta(t, 26.0, c[0], 1e-10)
	for k := 1; k < 13; k++ {
		assert.InDelta(t, 0, c[k], 1e-10, "c[%d]", k)
	}
}

func TestDelta(t *testing.T) {
	ramp := mathutil.NewMat(10, 1)
	for i := range ramp {
		ramp[i][0] = float64(i)
	}
	d := Delta(ramp, 2)
	require.Len(t, d, 10)
	for i := 2; i < 8; i++ {
		assert.InDelta(t, 1.0, d[i][0], 1e-12)
	}
	// Edge frames are repeated: (1*(1-0) + 2*(2-0)) / 10.
	assert.InDelta(t, 0.5, d[0][0], 1e-12)

	assert.Len(t, AppendDeltas(ramp, true)[0], 3)
	assert.Len(t, AppendDeltas(ramp, false)[0], 2)
}

func TestSubtractMean(t *testing.T) {
	m := mathutil.Mat{{1, 10}, {3, 20}}
	SubtractMean(m)
	assert.Equal(t, mathutil.Mat{{-1, -5}, {1, 5}}, m)
}

func TestExtract(t *testing.T) {
	cfg := DefaultConfig()
	require.Equal(t, 39, cfg.Dim())

	feats := must.M1(Extract(sine(16000, 440), cfg))
	require.Len(t, feats, 1+(16000-400)/160)
	for i, row := range feats {
		require.Len(t, row, 39)
		for j, v := range row {
			require.False(t, math.IsNaN(v) || math.IsInf(v, 0), "feats[%d][%d] = %v", i, j, v)
		}
	}
	// Mean normalization zeroes every static coefficient's average.
	for d := 0; d < cfg.NumCepstra; d++ {
		sum := 0.0
		for _, row := range feats {
			sum += row[d]
		}
		assert.InDelta(t, 0, sum/float64(len(feats)), 1e-9)
	}
}

func TestExtractorReuse(t *testing.T) {
	e := must.M1(NewExtractor(DefaultConfig()))
	a := must.M1(e.Extract(sine(4000, 300)))
	_ = must.M1(e.Extract(sine(8000, 1200)))
	b := must.M1(e.Extract(sine(4000, 300)))
	assert.Equal(t, a, b)
}

func TestExtractErrors(t *testing.T) {
	_, err := Extract(nil, DefaultConfig())
	assert.Error(t, err)
	_, err = Extract(make([]float64, 399), DefaultConfig())
	assert.Error(t, err)

	bad := []func(*Config){
		func(c *Config) { c.FFTSize = 256 },
		func(c *Config) { c.NumCepstra = 30 },
		func(c *Config) { c.HighFreq = 9000 },
		func(c *Config) { c.UseDelta = false },
		func(c *Config) { c.FrameShiftMs = 0 },
	}
	for i, mutate := range bad {
		cfg := DefaultConfig()
		mutate(&cfg)
		_, err := NewExtractor(cfg)
		assert.Error(t, err, "case %d", i)
	}
}
