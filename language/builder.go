package language

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"sort"

	"github.com/pkg/errors"
)

// Builder accumulates sentences and builds a Witten-Bell smoothed n-gram
// language model.
type Builder struct {
	order     int
	sentences int
	unigrams  map[string]int
	bigrams   map[[2]string]int
	trigrams  map[[3]string]int
}

// NewBuilder creates a new N-gram builder.
// order is clamped to 2 (bigram) or 3 (trigram).
func NewBuilder(order int) *Builder {
	order = min(max(order, 2), 3)
	return &Builder{
		order:    order,
		unigrams: make(map[string]int),
		bigrams:  make(map[[2]string]int),
		trigrams: make(map[[3]string]int),
	}
}

// Order returns the n-gram order being built.
func (b *Builder) Order() int { return b.order }

// Sentences returns the number of sentences added so far.
func (b *Builder) Sentences() int { return b.sentences }

// AddSentence adds a tokenized sentence. <s> and </s> are added automatically.
func (b *Builder) AddSentence(words []string) {
	if len(words) == 0 {
		return
	}
	seq := make([]string, 0, len(words)+2)
	seq = append(seq, SentenceStart)
	seq = append(seq, words...)
	seq = append(seq, SentenceEnd)

	for i := range seq {
		b.unigrams[seq[i]]++
		if i >= 1 {
			b.bigrams[[2]string{seq[i-1], seq[i]}]++
		}
		if b.order >= 3 && i >= 2 {
			b.trigrams[[3]string{seq[i-2], seq[i-1], seq[i]}]++
		}
	}
	b.sentences++
}

// wbContext holds the Witten-Bell statistics of one history: the token
// count N, distinct followers T, and the probability mass of its followers
// under the discounted and the lower-order distributions.
type wbContext struct {
	n, t      int
	seenMass  float64
	lowerMass float64
}

// backoff is the log10 weight that renormalises the lower-order
// distribution over the unseen followers.
func (c *wbContext) backoff() float64 {
	if c == nil || c.lowerMass >= 1 {
		return 0
	}
	return math.Log10((1 - c.seenMass) / (1 - c.lowerMass))
}

// WriteARPA writes the model in ARPA format (log10 probabilities) to w.
func (b *Builder) WriteARPA(w io.Writer) error {
	uniTotal := 0
	for _, c := range b.unigrams {
		uniTotal += c
	}
	if uniTotal == 0 {
		return errors.New("no sentences added")
	}
	uniProb := func(word string) float64 {
		return float64(b.unigrams[word]) / float64(uniTotal)
	}

	bi := make(map[string]*wbContext)
	for key, c := range b.bigrams {
		ctx := bi[key[0]]
		if ctx == nil {
			ctx = &wbContext{}
			bi[key[0]] = ctx
		}
		ctx.n += c
		ctx.t++
	}
	biProb := func(key [2]string) float64 {
		ctx := bi[key[0]]
		return float64(b.bigrams[key]) / float64(ctx.n+ctx.t)
	}
	for key := range b.bigrams {
		ctx := bi[key[0]]
		ctx.seenMass += biProb(key)
		ctx.lowerMass += uniProb(key[1])
	}

	tri := make(map[[2]string]*wbContext)
	for key, c := range b.trigrams {
		h := [2]string{key[0], key[1]}
		ctx := tri[h]
		if ctx == nil {
			ctx = &wbContext{}
			tri[h] = ctx
		}
		ctx.n += c
		ctx.t++
	}
	for key, c := range b.trigrams {
		h := [2]string{key[0], key[1]}
		ctx := tri[h]
		ctx.seenMass += float64(c) / float64(ctx.n+ctx.t)
		if _, ok := b.bigrams[[2]string{key[1], key[2]}]; ok {
			ctx.lowerMass += biProb([2]string{key[1], key[2]})
		} else {
			ctx.lowerMass += uniProb(key[2])
		}
	}

	unis := make([]string, 0, len(b.unigrams))
	for word := range b.unigrams {
		unis = append(unis, word)
	}
	sort.Strings(unis)

	bis := make([][2]string, 0, len(b.bigrams))
	for key := range b.bigrams {
		bis = append(bis, key)
	}
	sort.Slice(bis, func(i, j int) bool {
		if bis[i][0] != bis[j][0] {
			return bis[i][0] < bis[j][0]
		}
		return bis[i][1] < bis[j][1]
	})

	tris := make([][3]string, 0, len(b.trigrams))
	for key := range b.trigrams {
		tris = append(tris, key)
	}
	sort.Slice(tris, func(i, j int) bool {
		for k := 0; k < 3; k++ {
			if tris[i][k] != tris[j][k] {
				return tris[i][k] < tris[j][k]
			}
		}
		return false
	})

	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, "\\data\\")
	fmt.Fprintf(bw, "ngram 1=%d\n", len(unis))
	fmt.Fprintf(bw, "ngram 2=%d\n", len(bis))
	if len(tris) > 0 {
		fmt.Fprintf(bw, "ngram 3=%d\n", len(tris))
	}
	fmt.Fprintln(bw)

	fmt.Fprintln(bw, "\\1-grams:")
	for _, word := range unis {
		lp := math.Log10(uniProb(word))
		if bo := bi[word].backoff(); bo != 0 {
			fmt.Fprintf(bw, "%.6f\t%s\t%.6f\n", lp, word, bo)
		} else {
			fmt.Fprintf(bw, "%.6f\t%s\n", lp, word)
		}
	}
	fmt.Fprintln(bw)

	fmt.Fprintln(bw, "\\2-grams:")
	for _, key := range bis {
		lp := math.Log10(biProb(key))
		if bo := tri[key].backoff(); bo != 0 {
			fmt.Fprintf(bw, "%.6f\t%s %s\t%.6f\n", lp, key[0], key[1], bo)
		} else {
			fmt.Fprintf(bw, "%.6f\t%s %s\n", lp, key[0], key[1])
		}
	}
	fmt.Fprintln(bw)

	if len(tris) > 0 {
		fmt.Fprintln(bw, "\\3-grams:")
		for _, key := range tris {
			ctx := tri[[2]string{key[0], key[1]}]
			lp := math.Log10(float64(b.trigrams[key]) / float64(ctx.n+ctx.t))
			fmt.Fprintf(bw, "%.6f\t%s %s %s\n", lp, key[0], key[1], key[2])
		}
		fmt.Fprintln(bw)
	}

	fmt.Fprintln(bw, "\\end\\")
	return errors.Wrap(bw.Flush(), "write ARPA")
}
