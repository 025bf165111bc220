// Package audio reads and writes the 16 kHz mono PCM recordings of the
// SEAME and Tagalog corpora and cuts conversation recordings into
// utterance segments.
package audio

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// SampleRate is the only rate the corpora are distributed at.
const SampleRate = 16000

// Clip is a mono recording with samples normalized to [-1, 1).
type Clip struct {
	Rate    int
	Samples []float64
}

// Duration returns the clip length in seconds.
func (c *Clip) Duration() float64 {
	if c.Rate == 0 {
		return 0
	}
	return float64(len(c.Samples)) / float64(c.Rate)
}

// Slice returns the part of the clip between start and end seconds.
// Bounds past the end of the clip are clamped.
func (c *Clip) Slice(start, end float64) (*Clip, error) {
	if start < 0 || end < start {
		return nil, errors.Errorf("invalid slice [%g, %g]", start, end)
	}
	from := min(int(math.Round(start*float64(c.Rate))), len(c.Samples))
	to := min(int(math.Round(end*float64(c.Rate))), len(c.Samples))
	out := make([]float64, to-from)
	copy(out, c.Samples[from:to])
	return &Clip{Rate: c.Rate, Samples: out}, nil
}

// ReadWAV decodes a 16-bit PCM mono 16 kHz WAV stream. Chunks other than
// "fmt " and "data" are skipped.
func ReadWAV(r io.ReadSeeker) (*Clip, error) {
	var riff struct {
		ID   [4]byte
		Size uint32
		Wave [4]byte
	}
	if err := binary.Read(r, binary.LittleEndian, &riff); err != nil {
		return nil, errors.Wrap(err, "read RIFF header")
	}
	if string(riff.ID[:]) != "RIFF" || string(riff.Wave[:]) != "WAVE" {
		return nil, errors.New("not a RIFF/WAVE stream")
	}

	var clip *Clip
	haveFmt := false
	for clip == nil {
		var chunk struct {
			ID   [4]byte
			Size uint32
		}
		if err := binary.Read(r, binary.LittleEndian, &chunk); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				break
			}
			return nil, errors.Wrap(err, "read chunk header")
		}
		switch string(chunk.ID[:]) {
		case "fmt ":
			if err := readFormat(r, chunk.Size); err != nil {
				return nil, err
			}
			haveFmt = true
		case "data":
			if !haveFmt {
				return nil, errors.New("data chunk before fmt chunk")
			}
			raw := make([]int16, chunk.Size/2)
			if err := binary.Read(r, binary.LittleEndian, raw); err != nil {
				return nil, errors.Wrap(err, "read PCM data")
			}
			clip = &Clip{Rate: SampleRate, Samples: make([]float64, len(raw))}
			for i, s := range raw {
				clip.Samples[i] = float64(s) / 32768
			}
		default:
			skip := int64(chunk.Size) + int64(chunk.Size%2)
			if _, err := r.Seek(skip, io.SeekCurrent); err != nil {
				return nil, errors.Wrapf(err, "skip chunk %q", chunk.ID[:])
			}
		}
	}
	if !haveFmt {
		return nil, errors.New("missing fmt chunk")
	}
	if clip == nil {
		return nil, errors.New("missing data chunk")
	}
	return clip, nil
}

func readFormat(r io.ReadSeeker, size uint32) error {
	var f struct {
		Format        uint16
		Channels      uint16
		Rate          uint32
		ByteRate      uint32
		BlockAlign    uint16
		BitsPerSample uint16
	}
	if size < 16 {
		return errors.Errorf("fmt chunk too short: %d bytes", size)
	}
	if err := binary.Read(r, binary.LittleEndian, &f); err != nil {
		return errors.Wrap(err, "read fmt chunk")
	}
	switch {
	case f.Format != 1:
		return errors.Errorf("unsupported audio format %d, want PCM", f.Format)
	case f.Channels != 1:
		return errors.Errorf("unsupported channel count %d, want mono", f.Channels)
	case f.Rate != SampleRate:
		return errors.Errorf("unsupported sample rate %d, want %d", f.Rate, SampleRate)
	case f.BitsPerSample != 16:
		return errors.Errorf("unsupported bits per sample %d, want 16", f.BitsPerSample)
	}
	if extra := int64(size) - 16 + int64(size%2); extra > 0 {
		if _, err := r.Seek(extra, io.SeekCurrent); err != nil {
			return errors.Wrap(err, "skip fmt extension")
		}
	}
	return nil
}

// ReadWAVFile reads the WAV file at path.
func ReadWAVFile(path string) (*Clip, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	clip, err := ReadWAV(bytes.NewReader(data))
	return clip, errors.Wrapf(err, "read %s", path)
}

// WriteWAV encodes the clip as 16-bit PCM mono. Samples are clipped to
// the int16 range.
func WriteWAV(w io.Writer, c *Clip) error {
	dataSize := uint32(2 * len(c.Samples))
	header := struct {
		ID            [4]byte
		Size          uint32
		Wave          [4]byte
		FmtID         [4]byte
		FmtSize       uint32
		Format        uint16
		Channels      uint16
		Rate          uint32
		ByteRate      uint32
		BlockAlign    uint16
		BitsPerSample uint16
		DataID        [4]byte
		DataSize      uint32
	}{
		ID: [4]byte{'R', 'I', 'F', 'F'}, Size: 36 + dataSize, Wave: [4]byte{'W', 'A', 'V', 'E'},
		FmtID: [4]byte{'f', 'm', 't', ' '}, FmtSize: 16, Format: 1, Channels: 1,
		Rate: uint32(c.Rate), ByteRate: uint32(2 * c.Rate), BlockAlign: 2, BitsPerSample: 16,
		DataID: [4]byte{'d', 'a', 't', 'a'}, DataSize: dataSize,
	}
	pcm := make([]int16, len(c.Samples))
	for i, s := range c.Samples {
		pcm[i] = int16(max(min(math.Round(s*32768), math.MaxInt16), math.MinInt16))
	}
	if err := binary.Write(w, binary.LittleEndian, &header); err != nil {
		return errors.Wrap(err, "write WAV header")
	}
	return errors.Wrap(binary.Write(w, binary.LittleEndian, pcm), "write PCM data")
}

// WriteWAVFile writes the clip to path through a temporary file.
func WriteWAVFile(path string, c *Clip) error {
	f, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp*")
	if err != nil {
		return errors.Wrap(err, "create temp file")
	}
	tmp := f.Name()
	if err := WriteWAV(f, c); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return errors.Wrap(err, "close temp file")
	}
	return errors.Wrap(os.Rename(tmp, path), "rename WAV file")
}
