// Package finding turns matched passage spans into report findings.
package finding

import (
	"context"
	"crypto/rand"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/oklog/ulid/v2"

	"github.com/quarryhq/quarry/pkg/quarry/match"
	"github.com/quarryhq/quarry/pkg/quarry/segment"
)

// Meta identifies the source document a finding was extracted from.
type Meta struct {
	Title string
	URL   string
}

// Summarizer produces a short natural-language summary for a verbatim quote.
// Implementations may be nondeterministic (an LLM) or fully local; the
// builder never depends on which.
type Summarizer interface {
	Summarize(ctx context.Context, quote, topic string, meta Meta) (string, error)
}

// Finding is one extracted (quote, summary, source) triple under a topic.
// Quote is always a verbatim substring of the source document's raw text;
// any paraphrase lives in Summary only.
type Finding struct {
	ID          string
	Topic       string
	SourceTitle string
	SourceURL   string
	Summary     string
	Quote       string
	Span        segment.Span
}

// Builder constructs findings from matched spans. It is safe for use from
// concurrent per-document workers.
type Builder struct {
	summarizer  Summarizer
	mu          sync.Mutex
	entropy     *ulid.MonotonicEntropy
	fallbackLen int
}

// DefaultFallbackLen bounds the fallback summary when summarization fails.
const DefaultFallbackLen = 200

// NewBuilder creates a builder around the given summarizer. A nil summarizer
// is allowed; every summary then uses the deterministic fallback.
func NewBuilder(s Summarizer, fallbackLen int) *Builder {
	if fallbackLen <= 0 {
		fallbackLen = DefaultFallbackLen
	}
	return &Builder{
		summarizer:  s,
		entropy:     ulid.Monotonic(rand.Reader, 0),
		fallbackLen: fallbackLen,
	}
}

// Build produces a finding for one (span, keyword) match. The quote is the
// minimal sentence of the span containing the match, trimmed only at span
// edges; characters are never altered. A summarization failure downgrades
// to the fallback summary, never to a dropped finding.
func (b *Builder) Build(ctx context.Context, span segment.Span, kw match.Keyword, meta Meta) Finding {
	quote := minimalQuote(span.Text, kw)

	summary := ""
	if b.summarizer != nil {
		if s, err := b.summarizer.Summarize(ctx, quote, kw.Topic, meta); err == nil {
			summary = strings.TrimSpace(s)
		}
	}
	if summary == "" {
		summary = b.fallbackSummary(quote)
	}

	return Finding{
		ID:          b.newID(),
		Topic:       kw.Topic,
		SourceTitle: meta.Title,
		SourceURL:   meta.URL,
		Summary:     summary,
		Quote:       quote,
		Span:        span,
	}
}

// newID serializes access to the monotonic entropy source.
func (b *Builder) newID() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return ulid.MustNew(ulid.Now(), b.entropy).String()
}

// minimalQuote narrows a span to the first sentence that still matches the
// keyword, falling back to the whole span when no single sentence does
// (e.g. a match bridging a sentence boundary after whitespace collapsing).
func minimalQuote(text string, kw match.Keyword) string {
	for _, sentence := range splitSentences(text) {
		if match.Normalize(sentence) == "" {
			continue
		}
		if containsKeyword(sentence, kw) {
			return strings.TrimSpace(sentence)
		}
	}
	return strings.TrimSpace(text)
}

func containsKeyword(sentence string, kw match.Keyword) bool {
	set, err := match.NewSetKeywords([]match.Keyword{kw})
	if err != nil {
		return false
	}
	return len(set.Match(sentence)) > 0
}

// splitSentences partitions text on sentence-ending punctuation followed by
// whitespace. Unlike the segmenter it has no sizing policy; it only serves
// quote narrowing.
func splitSentences(text string) []string {
	var out []string
	start := 0
	i := 0
	for i < len(text) {
		r, size := utf8.DecodeRuneInString(text[i:])
		if r == '.' || r == '!' || r == '?' {
			j := i + size
			for j < len(text) {
				q, qs := utf8.DecodeRuneInString(text[j:])
				if q == '"' || q == '\'' || q == ')' || q == ']' || q == '”' || q == '’' {
					j += qs
					continue
				}
				break
			}
			if j >= len(text) {
				break
			}
			if w, _ := utf8.DecodeRuneInString(text[j:]); unicode.IsSpace(w) {
				out = append(out, text[start:j])
				start = j
			}
			i = j
			continue
		}
		i += size
	}
	if start < len(text) {
		out = append(out, text[start:])
	}
	return out
}

// fallbackSummary truncates the quote to the configured rune budget. The
// result is deterministic for a given quote.
func (b *Builder) fallbackSummary(quote string) string {
	quote = strings.TrimSpace(quote)
	if utf8.RuneCountInString(quote) <= b.fallbackLen {
		return quote
	}
	runes := []rune(quote)
	cut := b.fallbackLen
	// Prefer ending on a word boundary.
	for i := cut - 1; i > cut/2; i-- {
		if unicode.IsSpace(runes[i]) {
			cut = i
			break
		}
	}
	return strings.TrimSpace(string(runes[:cut])) + "…"
}
