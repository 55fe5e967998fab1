package whisper

import "testing"

func TestCleanText(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", " нажми пробел ", "нажми пробел"},
		{"blank audio", "[BLANK_AUDIO]", ""},
		{"parenthesised", "громче (музыка)", "громче"},
		{"asterisks", "*coughs* volume up", "volume up"},
		{"inner whitespace", "next   \n track", "next track"},
		{"unterminated", "pause [noise", "pause"},
		{"empty", "", ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := cleanText(tc.in); got != tc.want {
				t.Errorf("cleanText(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}
