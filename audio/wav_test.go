package audio

import (
	"bytes"
	"encoding/binary"
	"math"
	"path/filepath"
	"strings"
	"testing"

	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildWAV constructs a minimal WAV stream with an extra LIST chunk before
// the data.
func buildWAV(rate uint32, bits, channels uint16, samples []int16) []byte {
	var buf bytes.Buffer
	dataSize := uint32(2 * len(samples))
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+8+3+1+dataSize))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1))
	binary.Write(&buf, binary.LittleEndian, channels)
	binary.Write(&buf, binary.LittleEndian, rate)
	binary.Write(&buf, binary.LittleEndian, rate*uint32(channels)*uint32(bits)/8)
	binary.Write(&buf, binary.LittleEndian, channels*bits/8)
	binary.Write(&buf, binary.LittleEndian, bits)
	buf.WriteString("LIST")
	binary.Write(&buf, binary.LittleEndian, uint32(3))
	buf.WriteString("abc\x00")
	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, dataSize)
	binary.Write(&buf, binary.LittleEndian, samples)
	return buf.Bytes()
}

func TestReadWAV(t *testing.T) {
	raw := make([]int16, 100)
	for i := range raw {
		raw[i] = int16(16000 * math.Sin(2*math.Pi*440*float64(i)/SampleRate))
	}
	clip, err := ReadWAV(bytes.NewReader(buildWAV(SampleRate, 16, 1, raw)))
	require.NoError(t, err)
	assert.Equal(t, SampleRate, clip.Rate)
	require.Len(t, clip.Samples, len(raw))
	for i, s := range raw {
		assert.InDelta(t, float64(s)/32768, clip.Samples[i], 1e-12)
	}
	assert.InDelta(t, 100.0/SampleRate, clip.Duration(), 1e-12)
}

func TestReadWAV_Rejects(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"not riff", []byte("NOT_RIFF_DATA_HERE_EXTRA")},
		{"44.1 kHz", buildWAV(44100, 16, 1, []int16{0, 0})},
		{"stereo", buildWAV(SampleRate, 16, 2, []int16{0, 0})},
		{"8 bit", buildWAV(SampleRate, 8, 1, []int16{0, 0})},
		{"no data", []byte("RIFF\x04\x00\x00\x00WAVE")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadWAV(bytes.NewReader(tt.data))
			assert.Error(t, err)
		})
	}
}

func TestWriteWAVRoundTrip(t *testing.T) {
	clip := &Clip{Rate: SampleRate, Samples: []float64{0, 0.5, -0.5, 2, -2}}
	path := filepath.Join(t.TempDir(), "x.wav")
	require.NoError(t, WriteWAVFile(path, clip))

	got := must.M1(ReadWAVFile(path))
	want := []float64{0, 0.5, -0.5, float64(math.MaxInt16) / 32768, -1}
	assert.InDeltaSlice(t, want, got.Samples, 1e-12)
}

func TestSlice(t *testing.T) {
	clip := &Clip{Rate: 10, Samples: []float64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}}
	s := must.M1(clip.Slice(0.2, 0.5))
	assert.Equal(t, []float64{2, 3, 4}, s.Samples)

	s = must.M1(clip.Slice(0.8, 3))
	assert.Equal(t, []float64{8, 9}, s.Samples)

	_, err := clip.Slice(0.5, 0.2)
	assert.Error(t, err)
}

func TestParseSegment(t *testing.T) {
	seg := must.M1(ParseSegment("rec_a_01_12p5_14p25"))
	assert.Equal(t, Segment{ID: "rec_a_01_12p5_14p25", Recording: "rec_a_01", Start: 12.5, End: 14.25}, seg)

	for _, bad := range []string{"rec", "rec_1", "rec_x_2", "rec_3_2", "_1_2"} {
		_, err := ParseSegment(bad)
		assert.Error(t, err, bad)
	}
}

func TestReadSegments(t *testing.T) {
	conv := "a_0_1 magandang umaga\nb_1p5_2 salamat\n\na_1_2p5 po\n"
	recs, segs, err := ReadSegments(strings.NewReader(conv))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, recs)
	require.Len(t, segs["a"], 2)
	assert.Equal(t, 2.5, segs["a"][1].End)

	clips := must.M1(Cut(&Clip{Rate: 2, Samples: []float64{1, 2, 3, 4, 5}}, segs["a"]))
	assert.Equal(t, []float64{1, 2}, clips[0].Samples)
	assert.Equal(t, []float64{3, 4, 5}, clips[1].Samples)

	_, _, err = ReadSegments(strings.NewReader("bad\n"))
	assert.Error(t, err)
}
