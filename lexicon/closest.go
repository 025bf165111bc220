package lexicon

import (
	"math"
	"unicode/utf8"
)

// Corrector maps out-of-vocabulary words to their nearest vocabulary entry.
type Corrector struct {
	// Threshold is the whole-word distance above which split corrections are tried.
	Threshold int
	// SubThreshold bounds the distance of the first half of a split.
	SubThreshold int
}

// DefaultCorrector returns a Corrector with thresholds 5 and 2.
func DefaultCorrector() Corrector {
	return Corrector{Threshold: 5, SubThreshold: 2}
}

// ClosestWord returns the vocabulary word nearest to word by edit distance.
//
// Ties go to the candidate whose rune length is closer to word, then to the
// one sharing a longer prefix with word; remaining ties keep the earlier
// vocabulary entry. When even the best whole-word match is farther than
// Threshold, every split point of word is tried and the pair "a b" is
// returned if its summed distance beats the whole-word match.
// An empty vocabulary returns word unchanged.
func (c Corrector) ClosestWord(word string, vocab *Vocabulary) string {
	words := vocab.Words()
	if len(words) == 0 {
		return word
	}
	wlen := utf8.RuneCountInString(word)

	best := word
	bestDist := math.MaxInt
	bestLenGap, bestPrefix := 0, 0
	for _, cand := range words {
		d := Distance(word, cand)
		gap := abs(utf8.RuneCountInString(cand) - wlen)
		switch {
		case d < bestDist:
		case d == bestDist && gap < bestLenGap:
		case d == bestDist && gap == bestLenGap && commonPrefixLen(word, cand) > bestPrefix:
		default:
			continue
		}
		best, bestDist, bestLenGap, bestPrefix = cand, d, gap, commonPrefixLen(word, cand)
	}
	if bestDist <= c.Threshold {
		return best
	}

	runes := []rune(word)
	for i := 1; i < len(runes); i++ {
		first, d1 := nearest(string(runes[:i]), words)
		if d1 > c.SubThreshold {
			continue
		}
		second, d2 := nearest(string(runes[i:]), words)
		if d1+d2 < bestDist {
			best, bestDist = first+" "+second, d1+d2
		}
	}
	return best
}

// nearest returns the first minimum-distance vocabulary word, stopping at an exact match.
func nearest(part string, words []string) (string, int) {
	best, bestDist := part, math.MaxInt
	for _, w := range words {
		if w == part {
			return w, 0
		}
		if d := Distance(part, w); d < bestDist {
			best, bestDist = w, d
		}
	}
	return best, bestDist
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
