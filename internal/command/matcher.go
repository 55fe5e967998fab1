package command

import (
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"unicode"
)

// Option is a functional option for [New].
type Option func(*Matcher)

// WithPatterns replaces the default table. The slice is copied.
func WithPatterns(patterns []Pattern) Option {
	return func(m *Matcher) {
		m.patterns = append([]Pattern(nil), patterns...)
	}
}

// WithFuzzy enables the phonetic fallback for utterances no pattern phrase
// occurs in. threshold is the minimum Jaro-Winkler similarity in (0, 1].
func WithFuzzy(threshold float64) Option {
	return func(m *Matcher) {
		m.fuzzy = newFuzzyIndex(threshold)
	}
}

// Matcher classifies utterances against an ordered pattern table. Match may
// be called from one goroutine at a time; Stats and ResetStats are safe for
// concurrent use.
type Matcher struct {
	patterns []Pattern
	lowered  []string
	fuzzy    *fuzzyIndex

	mu      sync.Mutex
	stats   Stats
	confSum float64
}

// New returns a Matcher over the default table unless WithPatterns is given.
func New(opts ...Option) *Matcher {
	m := &Matcher{patterns: defaultPatterns}
	for _, opt := range opts {
		opt(m)
	}
	m.lowered = make([]string, len(m.patterns))
	for i, p := range m.patterns {
		m.lowered[i] = strings.ToLower(p.Phrase)
	}
	if m.fuzzy != nil {
		m.fuzzy.build(m.lowered)
	}
	return m
}

// Patterns returns a copy of the table in match order.
func (m *Matcher) Patterns() []Pattern {
	return append([]Pattern(nil), m.patterns...)
}

// Match returns the command for text. The first pattern whose phrase is a
// substring of the lowercased text wins. When nothing matches and fuzzy
// matching is enabled, the most similar phrase above the threshold is used.
// It reports false for unknown utterances.
func (m *Matcher) Match(text string, confidence float64) (Command, bool) {
	lower := strings.ToLower(text)

	idx, at := -1, -1
	for i, phrase := range m.lowered {
		if phrase == "" {
			continue
		}
		if pos := strings.Index(lower, phrase); pos >= 0 {
			idx, at = i, pos
			break
		}
	}

	var (
		fuzzy bool
		score = 1.0
	)
	if idx < 0 && m.fuzzy != nil {
		idx, score = m.fuzzy.match(lower)
		fuzzy = idx >= 0
	}

	m.mu.Lock()
	m.stats.Total++
	m.confSum += confidence
	m.stats.AverageConfidence = m.confSum / float64(m.stats.Total)
	if idx < 0 {
		m.stats.Unknown++
	} else {
		m.stats.Recognized++
		if fuzzy {
			m.stats.Fuzzy++
		}
	}
	m.mu.Unlock()

	if idx < 0 {
		slog.Warn("unknown command", "text", text, "confidence", confidence)
		return Command{}, false
	}

	p := m.patterns[idx]
	cmd := Command{
		Type:       p.Type,
		Action:     p.Action,
		Token:      p.Token,
		Confidence: confidence * score,
		Text:       text,
		Phrase:     p.Phrase,
		Fuzzy:      fuzzy,
	}
	if at >= 0 {
		cmd.Param = numberAfter(lower[at+len(m.lowered[idx]):])
	} else {
		cmd.Param = numberAfter(lower)
	}
	slog.Info("command recognized",
		"text", text,
		"token", cmd.Token,
		"type", cmd.Type.String(),
		"param", cmd.Param,
		"fuzzy", fuzzy,
		"confidence", cmd.Confidence)
	return cmd, true
}

// Stats returns a snapshot of the matcher statistics.
func (m *Matcher) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}

// ResetStats zeroes the statistics.
func (m *Matcher) ResetStats() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats = Stats{}
	m.confSum = 0
}

// numberAfter returns the first whole-word integer in s, or 0.
func numberAfter(s string) int {
	for _, field := range strings.FieldsFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || (unicode.IsPunct(r) && r != '-')
	}) {
		if n, err := strconv.Atoi(field); err == nil {
			return n
		}
	}
	return 0
}
