package lexicon

import "testing"

func TestFrequencySpeller(t *testing.T) {
	s := NewFrequencySpeller(map[string]int{
		"the":      50,
		"then":     5,
		"speech":   3,
		"spelling": 2,
		"zero":     0,
	})
	tests := []struct {
		in, want string
	}{
		{"the", "the"},
		{"teh", "the"},
		{"thn", "the"},
		{"speach", "speech"},
		{"spellin", "spelling"},
		{"spelinng", "spelling"},
		{"SPEECH", "speech"},
		{"qqqqqq", "qqqqqq"},
		{"zero", "zero"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := s.Correct(tt.in); got != tt.want {
			t.Errorf("Correct(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSpellerFromLines(t *testing.T) {
	s := SpellerFromLines([]string{"我要go去shopping", "Go home"})
	if !s.Known("go") || !s.Known("home") || !s.Known("shopping") {
		t.Error("SpellerFromLines missed a word")
	}
	if s.Known("我") {
		t.Error("SpellerFromLines counted a Chinese character")
	}
	var _ Speller = s

	glued := SpellerFromLines([]string{"我要go去shopping了"})
	if got := glued.Correct("shoping"); got != "shopping" {
		t.Errorf("Correct(%q) = %q, want %q", "shoping", got, "shopping")
	}
	if glued.Known("goshopping") {
		t.Error("SpellerFromLines joined words across a Chinese character")
	}
}
