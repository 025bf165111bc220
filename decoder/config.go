// Package decoder implements the attention speller of a Listen, Attend and
// Spell recognizer: one decoding step, the teacher-forced decoding loop,
// free-running generation and the sequence loss.
package decoder

import "github.com/pkg/errors"

// Config holds speller hyperparameters.
type Config struct {
	DecoderDim       int     // LSTM hidden size and embedding size
	KeyDim           int     // per-head key size produced by the listener
	ValueDim         int     // per-head value size produced by the listener
	NumHeads         int     // 1 selects projected dot attention, >1 multi-head attention
	NumLayers        int     // stacked LSTM cells
	TeacherForceRate float64 // probability of feeding ground truth during training
	GeneratorLength  int     // maximum generated length
	Device           string  // only "cpu" is supported
}

// DefaultConfig returns the multi-head configuration used for code-switched
// Mandarin/English.
func DefaultConfig() Config {
	return Config{
		DecoderDim:       256,
		KeyDim:           64,
		ValueDim:         64,
		NumHeads:         4,
		NumLayers:        3,
		TeacherForceRate: 0.9,
		GeneratorLength:  250,
		Device:           "cpu",
	}
}

// SingleHeadConfig returns the single-head configuration used for Tagalog.
func SingleHeadConfig() Config {
	return Config{
		DecoderDim:       512,
		KeyDim:           128,
		ValueDim:         128,
		NumHeads:         1,
		NumLayers:        3,
		TeacherForceRate: 0.9,
		GeneratorLength:  250,
		Device:           "cpu",
	}
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	switch {
	case c.Device != "" && c.Device != "cpu":
		return errors.Errorf("unsupported device %q", c.Device)
	case c.DecoderDim <= 0 || c.KeyDim <= 0 || c.ValueDim <= 0:
		return errors.Errorf("dimensions must be positive: decoder=%d key=%d value=%d", c.DecoderDim, c.KeyDim, c.ValueDim)
	case c.NumHeads < 1:
		return errors.Errorf("num heads must be at least 1, got %d", c.NumHeads)
	case c.NumLayers < 1:
		return errors.Errorf("num layers must be at least 1, got %d", c.NumLayers)
	case c.TeacherForceRate < 0 || c.TeacherForceRate > 1:
		return errors.Errorf("teacher force rate %g outside [0, 1]", c.TeacherForceRate)
	case c.GeneratorLength < 1:
		return errors.Errorf("generator length must be positive, got %d", c.GeneratorLength)
	}
	return nil
}

// contextDim is the size of the attention context fed back into the first cell.
func (c Config) contextDim() int {
	if c.NumHeads == 1 {
		return c.ValueDim
	}
	return c.DecoderDim
}
