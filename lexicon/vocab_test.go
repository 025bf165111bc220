package lexicon

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVocabularyOrder(t *testing.T) {
	v := NewVocabulary("cat", "dog", "cat")
	v.AddUnits("你dog好")
	assert.Equal(t, []string{"cat", "dog", "你", "好"}, v.Words())
	assert.Equal(t, 2, v.Index("你"))
	assert.Equal(t, -1, v.Index("bird"))
	assert.True(t, v.Contains("好"))
}

func TestVocabularyClone(t *testing.T) {
	v := NewVocabulary("a")
	c := v.Clone()
	c.Add("b")
	assert.Equal(t, 1, v.Len())
	assert.Equal(t, 2, c.Len())
	assert.False(t, v.Contains("b"))
}

func TestSymbolMapBijection(t *testing.T) {
	v := NewVocabulary("你", "好", "cat", "dog")
	v.AddSpace()
	m, err := BuildSymbolMap(v)
	require.NoError(t, err)
	require.Equal(t, v.Len(), m.Len())

	seen := make(map[rune]string)
	for _, w := range v.Words() {
		sym, ok := m.Symbol(w)
		require.True(t, ok, "no symbol for %q", w)
		if prev, dup := seen[sym]; dup {
			t.Fatalf("symbol %U shared by %q and %q", sym, prev, w)
		}
		seen[sym] = w
		back, ok := m.Token(sym)
		require.True(t, ok)
		assert.Equal(t, w, back)
	}

	ni, _ := m.Symbol("你")
	assert.Equal(t, '你', ni)
	hao, _ := m.Symbol("好")
	assert.Equal(t, '好', hao)
	for _, w := range []string{"cat", "dog", Space} {
		sym, _ := m.Symbol(w)
		assert.NotEqual(t, '你', sym)
		assert.NotEqual(t, '好', sym)
		assert.False(t, v.Contains(string(sym)), "symbol for %q collides with a vocabulary token", w)
	}
}

func TestSymbolMapSkipsVocabularyRunes(t *testing.T) {
	// A token that is itself the first private use code point must not be reused.
	v := NewVocabulary(string(rune(0xE000)), "word")
	m, err := BuildSymbolMap(v)
	require.NoError(t, err)
	a, _ := m.Symbol(string(rune(0xE000)))
	b, _ := m.Symbol("word")
	assert.NotEqual(t, a, b)
	assert.NotEqual(t, rune(0xE000), b)
}

func TestSymbolMapUnknown(t *testing.T) {
	m, err := BuildSymbolMap(NewVocabulary("cat"))
	require.NoError(t, err)
	_, err = m.Map([]string{"cat", "dog"})
	assert.True(t, errors.Is(err, ErrUnknownToken))

	line, err := m.MapLine("cat cat")
	require.NoError(t, err)
	sym, _ := m.Symbol("cat")
	assert.Equal(t, string(sym)+" "+string(sym), line)
}

func TestCharset(t *testing.T) {
	c := BuildCharset([]string{"ba", "ab c"})
	assert.Equal(t, []string{" ", "a", "b", "c"}, c.Chars)
	assert.Equal(t, 4, c.EOS())

	ids, err := c.Encode("cab")
	require.NoError(t, err)
	assert.Equal(t, []int{3, 1, 2}, ids)
	assert.Equal(t, "cab", c.Decode(append(ids, c.EOS(), 1)))

	_, err = c.Encode("z")
	assert.True(t, errors.Is(err, ErrUnknownToken))

	restored := NewCharset(c.Chars)
	id, ok := restored.ID("b")
	assert.True(t, ok)
	assert.Equal(t, 2, id)
}

func TestCharsetConcurrentLookups(t *testing.T) {
	c := NewCharset([]string{"a", "b", "我"})
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ids, err := c.Encode("ab我ba")
			assert.NoError(t, err)
			assert.Equal(t, []int{0, 1, 2, 1, 0}, ids)
		}()
	}
	wg.Wait()

	// A charset not built by a constructor has no index and knows nothing.
	_, ok := (&Charset{Chars: []string{"a"}}).ID("a")
	assert.False(t, ok)
}
