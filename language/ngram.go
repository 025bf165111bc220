// Package language scores token sequences with back-off n-gram models.
package language

import (
	"math"
	"strings"

	"github.com/ieee0824/las-go/lexicon"
)

const (
	SentenceStart = "<s>"
	SentenceEnd   = "</s>"
	Unknown       = "<unk>"
)

// DefaultOOVLogProb is the natural-log probability of a word missing from
// the unigram table when the model has no <unk> entry.
var DefaultOOVLogProb = -7 * math.Ln10

// NGramModel represents an n-gram language model.
type NGramModel struct {
	Order    int // 1 to 3
	Unigrams map[string]ngramEntry
	Bigrams  map[[2]string]ngramEntry
	Trigrams map[[3]string]ngramEntry

	// OOVLogProb is used for words with neither a unigram nor <unk>.
	OOVLogProb float64
}

type ngramEntry struct {
	LogProb    float64
	LogBackoff float64
}

// NewNGramModel creates an empty n-gram model.
func NewNGramModel(order int) *NGramModel {
	return &NGramModel{
		Order:      order,
		Unigrams:   make(map[string]ngramEntry),
		Bigrams:    make(map[[2]string]ngramEntry),
		Trigrams:   make(map[[3]string]ngramEntry),
		OOVLogProb: DefaultOOVLogProb,
	}
}

// LogProb returns the natural-log probability of word given its history,
// backing off to shorter histories when the exact n-gram is missing.
func (m *NGramModel) LogProb(history []string, word string) float64 {
	if m.Order >= 3 && len(history) >= 2 {
		h1, h2 := history[len(history)-2], history[len(history)-1]
		if e, ok := m.Trigrams[[3]string{h1, h2, word}]; ok {
			return e.LogProb
		}
		if e, ok := m.Bigrams[[2]string{h1, h2}]; ok {
			return e.LogBackoff + m.logProbBigram(h2, word)
		}
		return m.logProbBigram(h2, word)
	}
	if m.Order >= 2 && len(history) >= 1 {
		return m.logProbBigram(history[len(history)-1], word)
	}
	return m.logProbUnigram(word)
}

func (m *NGramModel) logProbBigram(prev, word string) float64 {
	if e, ok := m.Bigrams[[2]string{prev, word}]; ok {
		return e.LogProb
	}
	if e, ok := m.Unigrams[prev]; ok {
		return e.LogBackoff + m.logProbUnigram(word)
	}
	return m.logProbUnigram(word)
}

func (m *NGramModel) logProbUnigram(word string) float64 {
	if e, ok := m.Unigrams[word]; ok {
		return e.LogProb
	}
	if e, ok := m.Unigrams[Unknown]; ok {
		return e.LogProb
	}
	return m.OOVLogProb
}

// SentenceLogProb returns the total log probability of words, bracketed by
// <s> and </s>.
func (m *NGramModel) SentenceLogProb(words []string) float64 {
	total := 0.0
	history := make([]string, 1, len(words)+1)
	history[0] = SentenceStart
	for _, w := range words {
		total += m.LogProb(history, w)
		history = append(history, w)
	}
	return total + m.LogProb(history, SentenceEnd)
}

// CrossEntropy is the mean negative log probability per predicted token,
// the closing </s> included.
func (m *NGramModel) CrossEntropy(words []string) float64 {
	return -m.SentenceLogProb(words) / float64(len(words)+1)
}

// Perplexity is exp(CrossEntropy(words)).
func (m *NGramModel) Perplexity(words []string) float64 {
	return math.Exp(m.CrossEntropy(words))
}

// Vocab returns all words in the unigram vocabulary.
func (m *NGramModel) Vocab() []string {
	words := make([]string, 0, len(m.Unigrams))
	for w := range m.Unigrams {
		words = append(words, w)
	}
	return words
}

// ScriptCounts counts the vocabulary entries written in Chinese script and
// the remaining ones. Sentence markers are counted as non-Chinese.
func (m *NGramModel) ScriptCounts() (chinese, other int) {
	for w := range m.Unigrams {
		if lexicon.IsChineseToken(w) {
			chinese++
		} else {
			other++
		}
	}
	return chinese, other
}

// Dataset names the corpus a transcript came from.
type Dataset string

const (
	SEAME   Dataset = "seame"
	Tagalog Dataset = "tagalog"
)

// Tokens converts a recognizer transcript into language model tokens.
// Code-switched SEAME text splits Chinese into single characters and keeps
// English words whole. Other datasets split on whitespace.
func Tokens(sentence string, dataset Dataset) []string {
	if dataset == SEAME {
		return lexicon.Units(sentence)
	}
	return strings.Fields(sentence)
}
