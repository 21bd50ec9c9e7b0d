// Package phonetic resolves spoken or misspelt person names against a list of
// known names using Double Metaphone encoding combined with Jaro-Winkler
// similarity.
//
// Names arrive from speech recognition, so "Peter Jonez" or "Mary Garsia"
// must still resolve while a different person sharing only a surname must
// not. The matcher therefore compares whole names, never single tokens:
//
//  1. An exact case-insensitive match always wins with confidence 1.
//  2. A candidate with the same number of name parts whose parts all sound
//     alike (overlapping Double Metaphone codes, position by position) is
//     accepted at the phonetic threshold (default 0.85).
//  3. Otherwise a candidate is accepted only at the stricter fuzzy
//     threshold (default 0.92).
//
// Phonetic candidates are preferred over fuzzy ones; within a class the
// highest Jaro-Winkler score wins.
package phonetic

import (
	"strings"

	"github.com/antzucaro/matchr"
)

const (
	defaultPhoneticThreshold = 0.85
	defaultFuzzyThreshold    = 0.92
)

// Option is a functional option for configuring a [Matcher].
type Option func(*Matcher)

// WithPhoneticThreshold sets the minimum Jaro-Winkler score for a candidate
// whose name parts all sound alike. Default: 0.85.
func WithPhoneticThreshold(threshold float64) Option {
	return func(m *Matcher) {
		m.phoneticThreshold = threshold
	}
}

// WithFuzzyThreshold sets the minimum Jaro-Winkler score for a candidate
// without phonetic agreement. Default: 0.92.
func WithFuzzyThreshold(threshold float64) Option {
	return func(m *Matcher) {
		m.fuzzyThreshold = threshold
	}
}

// Matcher is a phonetic name matcher. It is read-only after construction and
// safe for concurrent use.
type Matcher struct {
	phoneticThreshold float64
	fuzzyThreshold    float64
}

// New returns a new [Matcher] configured with the supplied options.
func New(opts ...Option) *Matcher {
	m := &Matcher{
		phoneticThreshold: defaultPhoneticThreshold,
		fuzzyThreshold:    defaultFuzzyThreshold,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Match returns the candidate that best matches name. When matched is false,
// best is empty and confidence is 0.
func (m *Matcher) Match(name string, candidates []string) (best string, confidence float64, matched bool) {
	input := strings.ToLower(strings.TrimSpace(name))
	if input == "" || len(candidates) == 0 {
		return "", 0, false
	}
	inputTokens := strings.Fields(input)

	type candidate struct {
		name     string
		score    float64
		phonetic bool
	}
	var top candidate

	for _, c := range candidates {
		lower := strings.ToLower(strings.TrimSpace(c))
		if lower == "" {
			continue
		}
		if lower == input {
			return c, 1, true
		}
		tokens := strings.Fields(lower)

		score := matchr.JaroWinkler(input, lower, false)
		if s := matchr.JaroWinkler(strings.Join(inputTokens, ""), strings.Join(tokens, ""), false); s > score {
			score = s
		}

		if soundsAlike(inputTokens, tokens) {
			if score >= m.phoneticThreshold && (!top.phonetic || score > top.score) {
				top = candidate{name: c, score: score, phonetic: true}
			}
		} else if !top.phonetic && score >= m.fuzzyThreshold && score > top.score {
			top = candidate{name: c, score: score}
		}
	}

	if top.name == "" {
		return "", 0, false
	}
	return top.name, top.score, true
}

// soundsAlike reports whether a and b have the same number of parts and every
// part pair shares at least one Double Metaphone code.
func soundsAlike(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !codesOverlap(codes(a[i]), codes(b[i])) {
			return false
		}
	}
	return true
}

// codes returns the non-empty Double Metaphone codes of word.
func codes(word string) map[string]struct{} {
	out := make(map[string]struct{}, 2)
	p, s := matchr.DoubleMetaphone(word)
	if p != "" {
		out[p] = struct{}{}
	}
	if s != "" {
		out[s] = struct{}{}
	}
	return out
}

// codesOverlap returns true if the two code sets share at least one code.
func codesOverlap(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for code := range a {
		if _, ok := b[code]; ok {
			return true
		}
	}
	return false
}
