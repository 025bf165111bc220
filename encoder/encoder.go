// Package encoder implements the pyramidal bidirectional LSTM listener
// that turns acoustic feature frames into attention keys and values.
package encoder

import (
	"math/rand"

	"github.com/ieee0824/las-go/decoder"
	"github.com/ieee0824/las-go/internal/mathutil"
	"github.com/ieee0824/las-go/nn"
	"github.com/pkg/errors"
)

// ErrTooShort is returned for an utterance that pooling would reduce to nothing.
var ErrTooShort = errors.New("utterance too short for pyramidal pooling")

// InputDim is the default feature width: 13 MFCCs with deltas and delta-deltas.
const InputDim = 39

// Config holds listener hyperparameters.
type Config struct {
	InputDim   int
	EncoderDim int // hidden size of each direction
	Pyramids   int // pooled layers after the first
	KeyDim     int // per head
	ValueDim   int // per head
	NumHeads   int
}

// DefaultConfig returns the listener paired with decoder.DefaultConfig.
func DefaultConfig() Config {
	return Config{InputDim: InputDim, EncoderDim: 512, Pyramids: 3, KeyDim: 64, ValueDim: 64, NumHeads: 4}
}

// SingleHeadConfig returns the listener paired with decoder.SingleHeadConfig.
func SingleHeadConfig() Config {
	return Config{InputDim: InputDim, EncoderDim: 256, Pyramids: 3, KeyDim: 128, ValueDim: 128, NumHeads: 1}
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	if c.InputDim <= 0 || c.EncoderDim <= 0 || c.KeyDim <= 0 || c.ValueDim <= 0 {
		return errors.Errorf("dimensions must be positive: input=%d encoder=%d key=%d value=%d", c.InputDim, c.EncoderDim, c.KeyDim, c.ValueDim)
	}
	if c.NumHeads < 1 || c.Pyramids < 0 {
		return errors.Errorf("invalid heads=%d pyramids=%d", c.NumHeads, c.Pyramids)
	}
	return nil
}

// MinFrames is the shortest utterance that survives every pooling layer.
func (c Config) MinFrames() int { return 1 << c.Pyramids }

// Listener is the encoder.
type Listener struct {
	Config    Config
	Layers    []*nn.BiLSTM // Layers[0] reads features, the rest read pooled frames
	KeyProj   *nn.Linear
	ValueProj *nn.Linear
}

// New creates a listener.
func New(cfg Config, rng *rand.Rand) (*Listener, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	l := &Listener{Config: cfg}
	l.Layers = append(l.Layers, nn.NewBiLSTM(cfg.InputDim, cfg.EncoderDim, rng))
	for i := 0; i < cfg.Pyramids; i++ {
		l.Layers = append(l.Layers, nn.NewBiLSTM(4*cfg.EncoderDim, cfg.EncoderDim, rng))
	}
	l.KeyProj = nn.NewLinear(2*cfg.EncoderDim, cfg.NumHeads*cfg.KeyDim, rng)
	l.ValueProj = nn.NewLinear(2*cfg.EncoderDim, cfg.NumHeads*cfg.ValueDim, rng)
	return l, nil
}

// Pool halves the frame rate: a trailing odd frame is dropped and each
// remaining pair of frames is concatenated.
func Pool(frames mathutil.Mat) mathutil.Mat {
	n := len(frames) / 2
	out := make(mathutil.Mat, n)
	for i := 0; i < n; i++ {
		row := make(mathutil.Vec, 0, 2*len(frames[2*i]))
		row = append(row, frames[2*i]...)
		out[i] = append(row, frames[2*i+1]...)
	}
	return out
}

// EncodeOne returns the top-layer outputs of one utterance.
func (l *Listener) EncodeOne(frames mathutil.Mat) (mathutil.Mat, error) {
	if len(frames) < l.Config.MinFrames() {
		return nil, errors.Wrapf(ErrTooShort, "%d frames, need at least %d", len(frames), l.Config.MinFrames())
	}
	h := frames
	for i, layer := range l.Layers {
		if i > 0 {
			h = Pool(h)
		}
		var err error
		h, err = layer.Forward(h)
		if err != nil {
			return nil, errors.Wrapf(err, "listener layer %d", i)
		}
	}
	return h, nil
}

// Encode runs every utterance through the listener and projects the result
// into keys and values padded to the longest output.
func (l *Listener) Encode(utterances []mathutil.Mat) (decoder.Memory, error) {
	var mem decoder.Memory
	maxLen := 0
	for i, u := range utterances {
		h, err := l.EncodeOne(u)
		if err != nil {
			return decoder.Memory{}, errors.Wrapf(err, "utterance %d", i)
		}
		k, err := l.KeyProj.Forward(h)
		if err != nil {
			return decoder.Memory{}, errors.Wrapf(err, "utterance %d keys", i)
		}
		v, err := l.ValueProj.Forward(h)
		if err != nil {
			return decoder.Memory{}, errors.Wrapf(err, "utterance %d values", i)
		}
		mem.Keys = append(mem.Keys, k)
		mem.Values = append(mem.Values, v)
		mem.Lengths = append(mem.Lengths, len(h))
		maxLen = max(maxLen, len(h))
	}
	for i := range mem.Keys {
		mem.Keys[i] = pad(mem.Keys[i], maxLen, l.KeyProj.Out)
		mem.Values[i] = pad(mem.Values[i], maxLen, l.ValueProj.Out)
	}
	return mem, nil
}

func pad(m mathutil.Mat, rows, cols int) mathutil.Mat {
	for len(m) < rows {
		m = append(m, make(mathutil.Vec, cols))
	}
	return m
}
