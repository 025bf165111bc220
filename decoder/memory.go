package decoder

import (
	"github.com/ieee0824/las-go/internal/mathutil"
	"github.com/ieee0824/las-go/nn"
	"github.com/pkg/errors"
)

var (
	// ErrDimensionMismatch is returned when memory, states or targets disagree in shape.
	ErrDimensionMismatch = nn.ErrDimensionMismatch
	// ErrEmptyMemory is returned when an utterance has no valid encoder frame.
	ErrEmptyMemory = errors.New("encoder memory has no valid positions")
	// ErrEmptyBatch is returned when there is nothing to decode.
	ErrEmptyBatch = errors.New("empty decoding batch")
)

// Memory is the listener output for a batch: for every element, T padded
// key and value frames and the number of leading frames that are valid.
type Memory struct {
	Keys    []mathutil.Mat // [B][T][heads*KeyDim]
	Values  []mathutil.Mat // [B][T][heads*ValueDim]
	Lengths []int          // [B], 1 <= Lengths[b] <= T
}

// Batch returns the number of utterances.
func (m Memory) Batch() int { return len(m.Keys) }

// Frames returns the padded length T.
func (m Memory) Frames() int {
	if len(m.Keys) == 0 {
		return 0
	}
	return len(m.Keys[0])
}

// Validate checks that keys and values have the widths expected by an
// attention over the given per-frame sizes and that every length is usable.
func (m Memory) Validate(keyWidth, valueWidth int) error {
	b := len(m.Keys)
	if b == 0 {
		return ErrEmptyBatch
	}
	if len(m.Values) != b || len(m.Lengths) != b {
		return errors.Wrapf(ErrDimensionMismatch, "memory batch sizes differ: keys=%d values=%d lengths=%d", b, len(m.Values), len(m.Lengths))
	}
	t := m.Frames()
	for i := 0; i < b; i++ {
		if len(m.Keys[i]) != t || len(m.Values[i]) != t {
			return errors.Wrapf(ErrDimensionMismatch, "element %d has %d key and %d value frames, want %d", i, len(m.Keys[i]), len(m.Values[i]), t)
		}
		if m.Lengths[i] < 1 {
			return errors.Wrapf(ErrEmptyMemory, "element %d", i)
		}
		if m.Lengths[i] > t {
			return errors.Wrapf(ErrDimensionMismatch, "element %d length %d exceeds %d frames", i, m.Lengths[i], t)
		}
		for f := 0; f < t; f++ {
			if len(m.Keys[i][f]) != keyWidth || len(m.Values[i][f]) != valueWidth {
				return errors.Wrapf(ErrDimensionMismatch, "element %d frame %d has key width %d and value width %d, want %d and %d",
					i, f, len(m.Keys[i][f]), len(m.Values[i][f]), keyWidth, valueWidth)
			}
		}
	}
	return nil
}

// Mask returns 1 for valid frames and 0 for padding.
func (m Memory) Mask() [][]float64 {
	t := m.Frames()
	mask := make([][]float64, len(m.Lengths))
	for i, n := range m.Lengths {
		mask[i] = make([]float64, t)
		for f := 0; f < n && f < t; f++ {
			mask[i][f] = 1
		}
	}
	return mask
}
