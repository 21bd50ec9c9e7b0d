package phonetic_test

import (
	"testing"

	"github.com/MrWong99/synergy/internal/tools/phonetic"
)

var staff = []string{"John Doe", "Jane Smith", "Peter Jones", "Mary Garcia", "James Brown"}

func TestMatcher_Exact(t *testing.T) {
	t.Parallel()

	m := phonetic.New()
	got, conf, ok := m.Match("  PETER jones ", staff)
	if !ok || got != "Peter Jones" || conf != 1 {
		t.Errorf("Match: got (%q, %f, %v), want (Peter Jones, 1, true)", got, conf, ok)
	}
}

func TestMatcher_Misspelt(t *testing.T) {
	t.Parallel()

	m := phonetic.New()
	tests := []struct {
		in   string
		want string
	}{
		{"Peter Jonez", "Peter Jones"},
		{"Mary Garsia", "Mary Garcia"},
		{"James Browne", "James Brown"},
	}
	for _, tt := range tests {
		got, conf, ok := m.Match(tt.in, staff)
		if !ok {
			t.Errorf("Match(%q): matched=false, want %q", tt.in, tt.want)
			continue
		}
		if got != tt.want {
			t.Errorf("Match(%q): got %q, want %q", tt.in, got, tt.want)
		}
		if conf < 0.85 || conf > 1 {
			t.Errorf("Match(%q): confidence %f out of range", tt.in, conf)
		}
	}
}

func TestMatcher_NoMatch(t *testing.T) {
	t.Parallel()

	m := phonetic.New()
	for _, in := range []string{"Alice Cooper", "Zed", "Peter", "Jones"} {
		if got, conf, ok := m.Match(in, staff); ok {
			t.Errorf("Match(%q): got (%q, %f), want no match", in, got, conf)
		}
	}
}

func TestMatcher_Empty(t *testing.T) {
	t.Parallel()

	m := phonetic.New()
	if _, _, ok := m.Match("", staff); ok {
		t.Error("empty input matched")
	}
	if _, _, ok := m.Match("John Doe", nil); ok {
		t.Error("matched against no candidates")
	}
}

func TestMatcher_Thresholds(t *testing.T) {
	t.Parallel()

	strict := phonetic.New(phonetic.WithPhoneticThreshold(1.01), phonetic.WithFuzzyThreshold(1.01))
	if _, _, ok := strict.Match("Peter Jonez", staff); ok {
		t.Error("strict matcher accepted a misspelling")
	}
	if got, _, ok := strict.Match("peter jones", staff); !ok || got != "Peter Jones" {
		t.Error("strict matcher rejected an exact match")
	}
}
