package lexicon

import (
	"sort"
	"strings"
)

// Speller proposes a spelling correction for a single word.
type Speller interface {
	Correct(word string) string
}

// FrequencySpeller corrects words to the most frequent known word within
// two edits. Known words are returned unchanged.
type FrequencySpeller struct {
	counts   map[string]int
	alphabet []rune
}

// NewFrequencySpeller builds a speller from word counts. The edit alphabet
// is every rune seen in the counted words.
func NewFrequencySpeller(counts map[string]int) *FrequencySpeller {
	s := &FrequencySpeller{counts: make(map[string]int, len(counts))}
	seen := make(map[rune]bool)
	for w, c := range counts {
		if c <= 0 {
			continue
		}
		s.counts[w] = c
		for _, r := range w {
			if !seen[r] {
				seen[r] = true
				s.alphabet = append(s.alphabet, r)
			}
		}
	}
	sort.Slice(s.alphabet, func(i, j int) bool { return s.alphabet[i] < s.alphabet[j] })
	return s
}

// SpellerFromLines counts the lowercased non-Chinese words of lines.
func SpellerFromLines(lines []string) *FrequencySpeller {
	counts := make(map[string]int)
	for _, l := range lines {
		for _, w := range EnglishWords(l) {
			counts[strings.ToLower(w)]++
		}
	}
	return NewFrequencySpeller(counts)
}

// Known reports whether word was counted.
func (s *FrequencySpeller) Known(word string) bool {
	return s.counts[word] > 0
}

// Correct returns word if known, else the most frequent known word at edit
// distance one, then two. Frequency ties resolve lexicographically.
func (s *FrequencySpeller) Correct(word string) string {
	if word == "" || s.Known(word) {
		return word
	}
	lower := strings.ToLower(word)
	if s.Known(lower) {
		return lower
	}
	e1 := s.edits1(lower)
	if best, ok := s.pick(e1); ok {
		return best
	}
	cands := make(map[string]struct{})
	for e := range e1 {
		for e2 := range s.edits1(e) {
			if s.Known(e2) {
				cands[e2] = struct{}{}
			}
		}
	}
	if best, ok := s.pick(cands); ok {
		return best
	}
	return word
}

func (s *FrequencySpeller) pick(cands map[string]struct{}) (string, bool) {
	best, bestCount := "", 0
	for c := range cands {
		n := s.counts[c]
		if n > bestCount || (n == bestCount && n > 0 && c < best) {
			best, bestCount = c, n
		}
	}
	return best, bestCount > 0
}

// edits1 returns every string one deletion, transposition, replacement or
// insertion away from word.
func (s *FrequencySpeller) edits1(word string) map[string]struct{} {
	r := []rune(word)
	out := make(map[string]struct{}, len(r)*(2*len(s.alphabet)+2))
	for i := 0; i <= len(r); i++ {
		left, right := r[:i], r[i:]
		if len(right) > 0 {
			out[string(left)+string(right[1:])] = struct{}{}
		}
		if len(right) > 1 {
			out[string(left)+string(right[1])+string(right[0])+string(right[2:])] = struct{}{}
		}
		for _, c := range s.alphabet {
			if len(right) > 0 {
				out[string(left)+string(c)+string(right[1:])] = struct{}{}
			}
			out[string(left)+string(c)+string(right)] = struct{}{}
		}
	}
	return out
}
