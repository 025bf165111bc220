package lexicon

// Space is the distinguished space token added to evaluation vocabularies.
const Space = " "

// Vocabulary is an ordered set of tokens. Iteration follows insertion order.
type Vocabulary struct {
	words []string
	index map[string]int
}

// NewVocabulary creates a vocabulary holding words in the given order.
// Duplicates are dropped.
func NewVocabulary(words ...string) *Vocabulary {
	v := &Vocabulary{index: make(map[string]int, len(words))}
	for _, w := range words {
		v.Add(w)
	}
	return v
}

// Add appends w unless it is already present. It reports whether w was new.
func (v *Vocabulary) Add(w string) bool {
	if _, ok := v.index[w]; ok {
		return false
	}
	v.index[w] = len(v.words)
	v.words = append(v.words, w)
	return true
}

// AddSpace adds the space token.
func (v *Vocabulary) AddSpace() { v.Add(Space) }

// AddUnits adds the tokens of line as returned by Units.
func (v *Vocabulary) AddUnits(line string) {
	for _, u := range Units(line) {
		v.Add(u)
	}
}

// AddLines adds the tokens of every line.
func (v *Vocabulary) AddLines(lines []string) {
	for _, l := range lines {
		v.AddUnits(l)
	}
}

// Contains reports whether w is in the vocabulary.
func (v *Vocabulary) Contains(w string) bool {
	_, ok := v.index[w]
	return ok
}

// Index returns the insertion position of w, or -1.
func (v *Vocabulary) Index(w string) int {
	if i, ok := v.index[w]; ok {
		return i
	}
	return -1
}

// Words returns the tokens in insertion order. The slice must not be modified.
func (v *Vocabulary) Words() []string { return v.words }

// Len returns the number of tokens.
func (v *Vocabulary) Len() int { return len(v.words) }

// Clone returns an independent copy that can be augmented without touching v.
func (v *Vocabulary) Clone() *Vocabulary {
	c := &Vocabulary{
		words: make([]string, len(v.words)),
		index: make(map[string]int, len(v.index)),
	}
	copy(c.words, v.words)
	for w, i := range v.index {
		c.index[w] = i
	}
	return c
}
