// Package feature computes the MFCC frames the listener consumes.
package feature

import (
	"github.com/ieee0824/las-go/internal/mathutil"
	"github.com/pkg/errors"
)

// Config holds the MFCC front-end parameters.
type Config struct {
	SampleRate    int
	FrameLenMs    float64
	FrameShiftMs  float64
	PreEmphCoeff  float64
	NumMelFilters int
	NumCepstra    int
	LowFreq       float64
	HighFreq      float64
	FFTSize       int
	CepLifter     int
	UseDelta      bool
	UseDeltaDelta bool
	UseCMN        bool
}

// DefaultConfig returns 13 cepstra with deltas and delta-deltas over 25 ms
// frames every 10 ms, 39 dimensions in total.
func DefaultConfig() Config {
	return Config{
		SampleRate:    16000,
		FrameLenMs:    25,
		FrameShiftMs:  10,
		PreEmphCoeff:  0.97,
		NumMelFilters: 26,
		NumCepstra:    13,
		LowFreq:       0,
		HighFreq:      8000,
		FFTSize:       512,
		CepLifter:     22,
		UseDelta:      true,
		UseDeltaDelta: true,
		UseCMN:        true,
	}
}

// Dim returns the width of one feature frame.
func (c Config) Dim() int {
	switch {
	case c.UseDelta && c.UseDeltaDelta:
		return 3 * c.NumCepstra
	case c.UseDelta:
		return 2 * c.NumCepstra
	}
	return c.NumCepstra
}

func (c Config) frameLen() int   { return int(c.FrameLenMs * float64(c.SampleRate) / 1000) }
func (c Config) frameShift() int { return int(c.FrameShiftMs * float64(c.SampleRate) / 1000) }

// Validate checks that the configuration describes a usable front end.
func (c Config) Validate() error {
	switch {
	case c.SampleRate <= 0:
		return errors.Errorf("sample rate must be positive, got %d", c.SampleRate)
	case c.frameLen() <= 0 || c.frameShift() <= 0:
		return errors.Errorf("frame length %gms and shift %gms must cover at least one sample", c.FrameLenMs, c.FrameShiftMs)
	case c.FFTSize < c.frameLen() || c.FFTSize%2 != 0:
		return errors.Errorf("FFT size %d must be even and at least the frame length %d", c.FFTSize, c.frameLen())
	case c.NumMelFilters <= 0 || c.NumCepstra <= 0 || c.NumCepstra > c.NumMelFilters:
		return errors.Errorf("need 0 < cepstra (%d) <= mel filters (%d)", c.NumCepstra, c.NumMelFilters)
	case c.HighFreq <= c.LowFreq || c.HighFreq > float64(c.SampleRate)/2:
		return errors.Errorf("frequency band [%g, %g] is outside the Nyquist range", c.LowFreq, c.HighFreq)
	case c.UseDeltaDelta && !c.UseDelta:
		return errors.New("delta-deltas require deltas")
	}
	return nil
}

// Extractor turns raw samples into feature frames. It reuses scratch
// buffers between calls and is not safe for concurrent use; create one per
// goroutine.
type Extractor struct {
	cfg     Config
	spectra *spectrum
	mel     *MelFilterbank
	cep     *cepstrum
	buf     []float64
}

// NewExtractor validates cfg and precomputes the filterbank and cosine
// tables.
func NewExtractor(cfg Config) (*Extractor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Extractor{
		cfg:     cfg,
		spectra: newSpectrum(cfg.frameLen(), cfg.FFTSize),
		mel:     NewMelFilterbank(cfg.NumMelFilters, cfg.FFTSize, cfg.SampleRate, cfg.LowFreq, cfg.HighFreq),
		cep:     newCepstrum(cfg.NumCepstra, cfg.NumMelFilters, cfg.CepLifter),
		buf:     make([]float64, cfg.NumMelFilters),
	}, nil
}

// Config returns the extractor's configuration.
func (e *Extractor) Config() Config { return e.cfg }

// Extract returns a (frames, Dim) matrix for the samples.
func (e *Extractor) Extract(samples []float64) (mathutil.Mat, error) {
	frameLen, shift := e.cfg.frameLen(), e.cfg.frameShift()
	n := NumFrames(len(samples), frameLen, shift)
	if n == 0 {
		return nil, errors.Errorf("%d samples are too short for one %d-sample frame", len(samples), frameLen)
	}
	emph := PreEmphasize(samples, e.cfg.PreEmphCoeff)
	out := mathutil.NewMat(n, e.cfg.NumCepstra)
	for t, row := range out {
		start := t * shift
		power := e.spectra.compute(emph[start : start+frameLen])
		e.mel.applyInto(e.buf, power)
		e.cep.applyInto(row, e.buf)
	}
	if e.cfg.UseCMN {
		SubtractMean(out)
	}
	if e.cfg.UseDelta {
		out = AppendDeltas(out, e.cfg.UseDeltaDelta)
	}
	return out, nil
}

// Extract is a one-shot helper around NewExtractor.
func Extract(samples []float64, cfg Config) (mathutil.Mat, error) {
	e, err := NewExtractor(cfg)
	if err != nil {
		return nil, err
	}
	return e.Extract(samples)
}
