package audio

import (
	"bufio"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Segment is one utterance of a conversation recording, named
// "<recording>_<start>_<end>" with 'p' standing for the decimal point,
// e.g. "conv01_12p5_14p25".
type Segment struct {
	ID         string
	Recording  string
	Start, End float64
}

// ParseSegment splits a segment id into its recording and time bounds.
func ParseSegment(id string) (Segment, error) {
	endSep := strings.LastIndexByte(id, '_')
	if endSep <= 0 {
		return Segment{}, errors.Errorf("segment id %q: missing end time", id)
	}
	startSep := strings.LastIndexByte(id[:endSep], '_')
	if startSep <= 0 {
		return Segment{}, errors.Errorf("segment id %q: missing start time", id)
	}
	start, err := parseTime(id[startSep+1 : endSep])
	if err != nil {
		return Segment{}, errors.Wrapf(err, "segment id %q", id)
	}
	end, err := parseTime(id[endSep+1:])
	if err != nil {
		return Segment{}, errors.Wrapf(err, "segment id %q", id)
	}
	if end < start {
		return Segment{}, errors.Errorf("segment id %q: end %g before start %g", id, end, start)
	}
	return Segment{ID: id, Recording: id[:startSep], Start: start, End: end}, nil
}

func parseTime(s string) (float64, error) {
	return strconv.ParseFloat(strings.ReplaceAll(s, "p", "."), 64)
}

// ReadSegments parses a conversation transcript, one "<segment id> <text>"
// per line, and groups the segments by recording in first-seen order.
func ReadSegments(r io.Reader) (recordings []string, segments map[string][]Segment, err error) {
	segments = make(map[string][]Segment)
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for lineNum := 1; sc.Scan(); lineNum++ {
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		seg, err := ParseSegment(fields[0])
		if err != nil {
			return nil, nil, errors.Wrapf(err, "line %d", lineNum)
		}
		if _, ok := segments[seg.Recording]; !ok {
			recordings = append(recordings, seg.Recording)
		}
		segments[seg.Recording] = append(segments[seg.Recording], seg)
	}
	return recordings, segments, errors.Wrap(sc.Err(), "read segments")
}

// ReadSegmentsFile reads the conversation transcript at path.
func ReadSegmentsFile(path string) ([]string, map[string][]Segment, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()
	return ReadSegments(f)
}

// Cut slices every segment out of the recording.
func Cut(rec *Clip, segs []Segment) ([]*Clip, error) {
	out := make([]*Clip, len(segs))
	for i, seg := range segs {
		c, err := rec.Slice(seg.Start, seg.End)
		if err != nil {
			return nil, errors.Wrapf(err, "segment %s", seg.ID)
		}
		out[i] = c
	}
	return out, nil
}
