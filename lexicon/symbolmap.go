package lexicon

import (
	"strings"
	"unicode/utf8"

	"github.com/pkg/errors"
)

// ErrUnknownToken is returned when a token has no assigned symbol.
var ErrUnknownToken = errors.New("token not in symbol map")

// ErrSymbolSpaceExhausted is returned when the private use area runs out.
var ErrSymbolSpaceExhausted = errors.New("no free private use code points left")

// First code point handed out to non-Chinese tokens. The BMP private use
// area never collides with real transcript text.
const (
	firstSymbol rune = 0xE000
	lastSymbol  rune = 0x10FFFD
)

// SymbolMap assigns every token a single rune so that edit distances count
// one operation per token. Chinese tokens map to themselves.
type SymbolMap struct {
	toSymbol map[string]rune
	toToken  map[rune]string
}

// BuildSymbolMap allocates symbols for every token of v in insertion order.
// Allocated code points skip any rune that is itself a vocabulary token.
func BuildSymbolMap(v *Vocabulary) (*SymbolMap, error) {
	m := &SymbolMap{
		toSymbol: make(map[string]rune, v.Len()),
		toToken:  make(map[rune]string, v.Len()),
	}
	next := firstSymbol
	for _, w := range v.Words() {
		if IsChineseToken(w) && utf8.RuneCountInString(w) == 1 {
			r, _ := utf8.DecodeRuneInString(w)
			m.toSymbol[w] = r
			m.toToken[r] = w
			continue
		}
		for ; next <= lastSymbol; next++ {
			if next >= 0xF900 && next < 0x0F0000 {
				// Step over CJK compatibility and the astral planes to the supplementary PUA.
				next = 0x0F0000
			}
			if !v.Contains(string(next)) {
				break
			}
		}
		if next > lastSymbol {
			return nil, errors.Wrapf(ErrSymbolSpaceExhausted, "allocating symbol for %q", w)
		}
		m.toSymbol[w] = next
		m.toToken[next] = w
		next++
	}
	return m, nil
}

// Len returns the number of mapped tokens.
func (m *SymbolMap) Len() int { return len(m.toSymbol) }

// Symbol returns the symbol assigned to tok.
func (m *SymbolMap) Symbol(tok string) (rune, bool) {
	r, ok := m.toSymbol[tok]
	return r, ok
}

// Token returns the token a symbol was assigned to.
func (m *SymbolMap) Token(sym rune) (string, bool) {
	t, ok := m.toToken[sym]
	return t, ok
}

// Map converts tokens to their symbols.
func (m *SymbolMap) Map(units []string) ([]rune, error) {
	out := make([]rune, len(units))
	for i, u := range units {
		r, ok := m.toSymbol[u]
		if !ok {
			return nil, errors.Wrapf(ErrUnknownToken, "%q", u)
		}
		out[i] = r
	}
	return out, nil
}

// MapLine converts the units of line to symbols joined by single spaces.
func (m *SymbolMap) MapLine(line string) (string, error) {
	syms, err := m.Map(Units(line))
	if err != nil {
		return "", err
	}
	parts := make([]string, len(syms))
	for i, r := range syms {
		parts[i] = string(r)
	}
	return strings.Join(parts, " "), nil
}
