package whisper

import "strings"

// annotationPairs are the delimiters whisper uses for non-speech annotations
// such as "[BLANK_AUDIO]", "(music)" or "*coughs*".
var annotationPairs = [][2]rune{{'[', ']'}, {'(', ')'}, {'*', '*'}}

// cleanText removes non-speech annotations and collapses whitespace. An
// utterance that contained only annotations becomes the empty string.
func cleanText(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	var closing rune
	for _, r := range s {
		if closing != 0 {
			if r == closing {
				closing = 0
			}
			continue
		}
		if c, ok := opener(r); ok {
			closing = c
			continue
		}
		b.WriteRune(r)
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

func opener(r rune) (rune, bool) {
	for _, p := range annotationPairs {
		if p[0] == r {
			return p[1], true
		}
	}
	return 0, false
}
