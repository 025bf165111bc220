package lexicon

import (
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// Charset is the model vocabulary: a bijection between characters and ids
// 0..Size()-1. The extra id Size() marks end of sequence and doubles as the
// start symbol fed to the decoder. Build one with BuildCharset or
// NewCharset; the index is immutable afterwards and safe for concurrent
// lookups.
type Charset struct {
	Chars []string
	ids   map[string]int
}

// BuildCharset collects every character of lines and sorts them so that ids
// do not depend on corpus order.
func BuildCharset(lines []string) *Charset {
	seen := make(map[string]bool)
	var chars []string
	for _, l := range lines {
		for _, r := range l {
			s := string(r)
			if !seen[s] {
				seen[s] = true
				chars = append(chars, s)
			}
		}
	}
	sort.Strings(chars)
	return NewCharset(chars)
}

// NewCharset wraps an existing ordered character list, e.g. one restored
// from a checkpoint.
func NewCharset(chars []string) *Charset {
	c := &Charset{Chars: chars}
	c.index()
	return c
}

func (c *Charset) index() {
	c.ids = make(map[string]int, len(c.Chars))
	for i, ch := range c.Chars {
		c.ids[ch] = i
	}
}

// Size returns the number of characters, excluding end of sequence.
func (c *Charset) Size() int { return len(c.Chars) }

// EOS returns the end-of-sequence id.
func (c *Charset) EOS() int { return len(c.Chars) }

// ID returns the id of ch.
func (c *Charset) ID(ch string) (int, bool) {
	id, ok := c.ids[ch]
	return id, ok
}

// Encode maps text to ids without the end-of-sequence marker.
func (c *Charset) Encode(text string) ([]int, error) {
	ids := make([]int, 0, len(text))
	for _, r := range text {
		id, ok := c.ID(string(r))
		if !ok {
			return nil, errors.Wrapf(ErrUnknownToken, "character %q", r)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Decode maps ids back to text, stopping at the first end-of-sequence id.
// Ids out of range are skipped.
func (c *Charset) Decode(ids []int) string {
	var b strings.Builder
	for _, id := range ids {
		if id == c.EOS() {
			break
		}
		if id < 0 || id >= len(c.Chars) {
			continue
		}
		b.WriteString(c.Chars[id])
	}
	return b.String()
}
