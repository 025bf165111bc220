package language

import (
	"bufio"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// LoadARPA reads a language model in ARPA format.
// Log probabilities in ARPA files are base-10; they are converted to natural log.
func LoadARPA(r io.Reader) (*NGramModel, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)
	model := NewNGramModel(1)

	for scanner.Scan() {
		if strings.TrimSpace(scanner.Text()) == "\\data\\" {
			break
		}
	}

	maxOrder := 0
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "ngram ") {
			parts := strings.SplitN(line[6:], "=", 2)
			if len(parts) == 2 {
				order, err := strconv.Atoi(strings.TrimSpace(parts[0]))
				if err != nil {
					return nil, errors.Wrapf(err, "parse header %q", line)
				}
				maxOrder = max(maxOrder, order)
			}
			continue
		}
		break
	}
	if maxOrder < 1 || maxOrder > 3 {
		return nil, errors.Errorf("unsupported n-gram order %d", maxOrder)
	}
	model.Order = maxOrder

	for {
		line := strings.TrimSpace(scanner.Text())
		if line == "\\end\\" {
			break
		}
		if strings.HasPrefix(line, "\\") && strings.HasSuffix(line, "-grams:") {
			order, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(line, "\\"), "-grams:"))
			if err != nil {
				return nil, errors.Wrapf(err, "parse section %q", line)
			}
			for scanner.Scan() {
				entry := strings.TrimSpace(scanner.Text())
				if entry == "" {
					continue
				}
				if strings.HasPrefix(entry, "\\") {
					break
				}
				if err := parseNGramLine(model, order, entry); err != nil {
					return nil, errors.Wrapf(err, "parse n-gram line %q", entry)
				}
			}
			continue
		}
		if !scanner.Scan() {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "read ARPA")
	}
	return model, nil
}

// LoadARPAFile reads an ARPA model from path.
func LoadARPAFile(path string) (*NGramModel, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open language model %q", path)
	}
	defer f.Close()
	m, err := LoadARPA(f)
	if err != nil {
		return nil, errors.Wrapf(err, "%q", path)
	}
	return m, nil
}

func parseNGramLine(model *NGramModel, order int, line string) error {
	fields := strings.Fields(line)
	if len(fields) < order+1 {
		return errors.Errorf("too few fields for %d-gram", order)
	}
	logProb, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return errors.Wrap(err, "parse log prob")
	}
	words := fields[1 : order+1]

	var logBackoff float64
	if len(fields) > order+1 {
		bo, err := strconv.ParseFloat(fields[order+1], 64)
		if err != nil {
			return errors.Wrap(err, "parse backoff")
		}
		logBackoff = bo * math.Ln10
	}
	entry := ngramEntry{LogProb: logProb * math.Ln10, LogBackoff: logBackoff}

	switch order {
	case 1:
		model.Unigrams[words[0]] = entry
	case 2:
		model.Bigrams[[2]string{words[0], words[1]}] = entry
	case 3:
		model.Trigrams[[3]string{words[0], words[1], words[2]}] = entry
	default:
		return errors.Errorf("unsupported %d-gram section", order)
	}
	return nil
}
