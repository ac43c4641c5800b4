// Package match scans passage text for configured keyword occurrences.
package match

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/quarryhq/quarry/pkg/quarry/internalerr"
)

// Keyword is one configured search term. Topic is the grouping label the
// keyword reports under; it defaults to the literal but may differ, so two
// literals can never collide on the same topic-per-keyword slot.
type Keyword struct {
	Literal    string
	Normalized string
	Topic      string
}

// Set holds the validated keywords in their configured order.
type Set struct {
	keywords []Keyword
}

// NewSet builds a Set where each literal is its own topic.
func NewSet(literals []string) (*Set, error) {
	kws := make([]Keyword, len(literals))
	for i, lit := range literals {
		kws[i] = Keyword{Literal: lit, Topic: lit}
	}
	return NewSetKeywords(kws)
}

// NewSetKeywords builds a Set from explicit keyword records, validating the
// configuration before any scanning can start: empty literals and the same
// literal mapped twice are rejected.
func NewSetKeywords(kws []Keyword) (*Set, error) {
	if len(kws) == 0 {
		return nil, fmt.Errorf("%w: no keywords configured", internalerr.ErrInvalidConfig)
	}

	seen := make(map[string]string, len(kws))
	out := make([]Keyword, len(kws))
	for i, kw := range kws {
		norm := Normalize(kw.Literal)
		if norm == "" {
			return nil, fmt.Errorf("%w: keyword %d has an empty literal", internalerr.ErrInvalidConfig, i)
		}
		topic := strings.TrimSpace(kw.Topic)
		if topic == "" {
			topic = strings.TrimSpace(kw.Literal)
		}
		if prev, ok := seen[norm]; ok {
			return nil, fmt.Errorf("%w: literal %q configured for topics %q and %q",
				internalerr.ErrInvalidConfig, kw.Literal, prev, topic)
		}
		seen[norm] = topic
		out[i] = Keyword{Literal: kw.Literal, Normalized: norm, Topic: topic}
	}
	return &Set{keywords: out}, nil
}

// Keywords returns the keywords in configured order.
func (s *Set) Keywords() []Keyword {
	out := make([]Keyword, len(s.keywords))
	copy(out, s.keywords)
	return out
}

// Topics returns the distinct topic labels in first-seen configured order.
func (s *Set) Topics() []string {
	seen := make(map[string]struct{}, len(s.keywords))
	var out []string
	for _, kw := range s.keywords {
		if _, ok := seen[kw.Topic]; ok {
			continue
		}
		seen[kw.Topic] = struct{}{}
		out = append(out, kw.Topic)
	}
	return out
}

// Match returns the keywords whose normalized form occurs in text as a
// whole-word, case-insensitive match, in configured order. Substring
// keywords fire independently: a span mentioning "Donald Trump" matches
// both "Donald Trump" and "Trump".
func (s *Set) Match(text string) []Keyword {
	norm := Normalize(text)
	if norm == "" {
		return nil
	}
	var out []Keyword
	for _, kw := range s.keywords {
		if containsWord(norm, kw.Normalized) {
			out = append(out, kw)
		}
	}
	return out
}

// Normalize lowercases, folds curly apostrophes to ASCII, and collapses
// whitespace runs to single spaces so multi-word keywords match across
// line breaks.
func Normalize(text string) string {
	var sb strings.Builder
	sb.Grow(len(text))
	space := false
	for _, r := range text {
		if unicode.IsSpace(r) {
			space = true
			continue
		}
		if space {
			if sb.Len() > 0 {
				sb.WriteByte(' ')
			}
			space = false
		}
		if r == '’' || r == '‘' {
			r = '\''
		}
		sb.WriteRune(unicode.ToLower(r))
	}
	return sb.String()
}

// containsWord reports whether needle occurs in haystack bounded by
// non-word characters. Apostrophes count as boundaries, so "trump"
// matches inside "trump's" but not inside "trumpery".
func containsWord(haystack, needle string) bool {
	if needle == "" {
		return false
	}
	for from := 0; ; {
		idx := strings.Index(haystack[from:], needle)
		if idx < 0 {
			return false
		}
		start := from + idx
		end := start + len(needle)
		if boundaryBefore(haystack, start) && boundaryAfter(haystack, end) {
			return true
		}
		from = start + 1
	}
}

func boundaryBefore(s string, idx int) bool {
	if idx == 0 {
		return true
	}
	r := lastRune(s[:idx])
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}

func boundaryAfter(s string, idx int) bool {
	if idx >= len(s) {
		return true
	}
	var r rune
	for _, c := range s[idx:] {
		r = c
		break
	}
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}

func lastRune(s string) rune {
	var r rune
	for _, c := range s {
		r = c
	}
	return r
}
