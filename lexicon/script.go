package lexicon

import (
	"strings"
	"unicode"
)

// chineseRanges lists the inclusive code-point ranges treated as Chinese script.
var chineseRanges = [...][2]rune{
	{11904, 12031},   // CJK radicals supplement, Kangxi radicals
	{12352, 12543},   // Hiragana, Katakana
	{13056, 19903},   // CJK compatibility, extension A
	{19968, 40959},   // CJK unified ideographs
	{63744, 64255},   // CJK compatibility ideographs
	{65072, 65103},   // CJK compatibility forms
	{194560, 195103}, // CJK compatibility ideographs supplement
}

// IsChinese reports whether r falls in one of the Chinese code-point ranges.
func IsChinese(r rune) bool {
	for _, rg := range chineseRanges {
		if r >= rg[0] && r <= rg[1] {
			return true
		}
	}
	return false
}

// IsChineseToken reports whether tok starts with a Chinese rune.
// Tokens never mix scripts, so the first rune decides.
func IsChineseToken(tok string) bool {
	for _, r := range tok {
		return IsChinese(r)
	}
	return false
}

// Respace inserts a single space at every boundary between a Chinese and a
// non-Chinese rune. Latin runs are left intact and existing whitespace is
// not doubled.
//
//	Respace("你catdog好") == "你 catdog 好"
func Respace(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 8)
	prev := rune(-1)
	for _, r := range s {
		if prev >= 0 && IsChinese(r) != IsChinese(prev) && !unicode.IsSpace(r) && !unicode.IsSpace(prev) {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
		prev = r
	}
	return b.String()
}

// Units returns the tokens of s: every Chinese character on its own and
// every whitespace-delimited non-Chinese word whole.
func Units(s string) []string {
	var units []string
	for _, w := range strings.FieldsFunc(Respace(s), unicode.IsSpace) {
		if IsChineseToken(w) {
			for _, r := range w {
				units = append(units, string(r))
			}
			continue
		}
		units = append(units, w)
	}
	return units
}

// EnglishWords returns the non-Chinese words of s. Chinese characters act
// as word separators.
func EnglishWords(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool { return IsChinese(r) || unicode.IsSpace(r) })
}
