package command

import (
	"strings"
	"unicode"

	"github.com/antzucaro/matchr"
)

// DefaultFuzzyThreshold is the Jaro-Winkler similarity required for a fuzzy
// match when the phonetic codes of input and phrase differ.
const DefaultFuzzyThreshold = 0.85

// phoneticThreshold is the relaxed similarity required when the Double
// Metaphone code of the input equals the phrase's.
const phoneticThreshold = 0.70

// fuzzyIndex ranks phrases by Jaro-Winkler similarity on the whole utterance.
// Phrases whose Double Metaphone code matches the input's are accepted at a
// lower similarity. Metaphone is only defined for Latin script, so Cyrillic
// phrases always take the plain similarity path.
type fuzzyIndex struct {
	threshold float64
	phrases   []string
	codes     [][2]string
}

func newFuzzyIndex(threshold float64) *fuzzyIndex {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultFuzzyThreshold
	}
	return &fuzzyIndex{threshold: threshold}
}

func (f *fuzzyIndex) build(lowered []string) {
	f.phrases = lowered
	f.codes = make([][2]string, len(lowered))
	for i, p := range lowered {
		f.codes[i] = metaphone(p)
	}
}

// match returns the index of the best phrase and its similarity, or -1. Ties
// keep the earlier phrase.
func (f *fuzzyIndex) match(lower string) (int, float64) {
	input := strings.Join(strings.Fields(lower), " ")
	if input == "" {
		return -1, 0
	}
	inCodes := metaphone(input)

	best, bestScore, bestPhonetic := -1, 0.0, false
	for i, phrase := range f.phrases {
		if phrase == "" {
			continue
		}
		score := matchr.JaroWinkler(input, phrase, false)
		if s := matchr.JaroWinkler(compact(input), compact(phrase), false); s > score {
			score = s
		}
		phonetic := codesEqual(inCodes, f.codes[i])

		switch {
		case phonetic && score >= phoneticThreshold:
			if !bestPhonetic || score > bestScore {
				best, bestScore, bestPhonetic = i, score, true
			}
		case !bestPhonetic && score >= f.threshold && score > bestScore:
			best, bestScore = i, score
		}
	}
	return best, bestScore
}

// metaphone returns the Double Metaphone codes of s with spaces removed, or
// empty codes when s is not plain ASCII.
func metaphone(s string) [2]string {
	for _, r := range s {
		if r > unicode.MaxASCII {
			return [2]string{}
		}
	}
	p, a := matchr.DoubleMetaphone(compact(s))
	return [2]string{p, a}
}

func codesEqual(a, b [2]string) bool {
	if a[0] == "" || b[0] == "" {
		return false
	}
	return a[0] == b[0] || (a[1] != "" && a[1] == b[1])
}

func compact(s string) string {
	return strings.ReplaceAll(s, " ", "")
}
