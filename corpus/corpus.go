// Package corpus reads and writes the text files exchanged between the
// recognizer, the evaluator and the reranker.
package corpus

import (
	"bufio"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/text/unicode/norm"
)

// Transcript is one reference or hypothesis utterance.
type Transcript struct {
	ID   string
	Text string
}

// LoadTranscripts reads one utterance per line. A line is either
// "id<TAB>text" or bare text, in which case the id is the 1-based line
// number. Blank lines are kept as empty utterances so that line numbers
// stay aligned with the audio list.
func LoadTranscripts(r io.Reader) ([]Transcript, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)
	var out []Transcript
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimRight(scanner.Text(), "\r\n")
		id, text, ok := strings.Cut(line, "\t")
		if !ok {
			id, text = strconv.Itoa(lineNum), line
		}
		out = append(out, Transcript{ID: strings.TrimSpace(id), Text: Normalize(text)})
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "line %d", lineNum)
	}
	return out, nil
}

// LoadTranscriptsFile reads transcripts from path.
func LoadTranscriptsFile(path string) ([]Transcript, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open transcripts %q", path)
	}
	defer f.Close()
	ts, err := LoadTranscripts(f)
	return ts, errors.Wrapf(err, "read transcripts %q", path)
}

// Texts returns the text of every transcript.
func Texts(ts []Transcript) []string {
	out := make([]string, len(ts))
	for i, t := range ts {
		out[i] = t.Text
	}
	return out
}

// ReadLines returns the lines of path with surrounding whitespace trimmed.
func ReadLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %q", path)
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)
	var lines []string
	for scanner.Scan() {
		lines = append(lines, strings.TrimSpace(scanner.Text()))
	}
	return lines, errors.Wrapf(scanner.Err(), "read %q", path)
}

// WriteLines writes each line followed by a newline to path, replacing any existing file.
func WriteLines(path string, lines []string) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create %q", path)
	}
	w := bufio.NewWriter(f)
	for _, l := range lines {
		w.WriteString(l)
		w.WriteByte('\n')
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return errors.Wrapf(err, "write %q", path)
	}
	return errors.Wrapf(f.Close(), "close %q", path)
}

// Exists reports whether every path names an existing file.
func Exists(paths ...string) bool {
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			return false
		}
	}
	return true
}

// Normalize applies NFKC, which folds full-width Latin letters and digits to
// ASCII, then collapses whitespace runs to one space.
func Normalize(s string) string {
	return strings.Join(strings.Fields(norm.NFKC.String(s)), " ")
}
