package finding

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/quarryhq/quarry/pkg/quarry/match"
	"github.com/quarryhq/quarry/pkg/quarry/segment"
)

type stubSummarizer struct {
	summary string
	err     error
	calls   int
}

func (s *stubSummarizer) Summarize(ctx context.Context, quote, topic string, meta Meta) (string, error) {
	s.calls++
	return s.summary, s.err
}

func keywordFor(t *testing.T, literal string) match.Keyword {
	t.Helper()
	set, err := match.NewSet([]string{literal})
	if err != nil {
		t.Fatal(err)
	}
	return set.Keywords()[0]
}

func spanOf(text string) segment.Span {
	return segment.Span{DocID: "doc-1", Start: 0, End: len(text), Text: text}
}

func TestBuildQuoteIsVerbatimSubstring(t *testing.T) {
	text := "Unrelated opening sentence here. I saw Donald Trump at that time. Closing sentence follows."
	b := NewBuilder(&stubSummarizer{summary: "A sighting is described."}, 0)

	f := b.Build(context.Background(), spanOf(text), keywordFor(t, "Donald Trump"), Meta{Title: "Transcript", URL: "https://example.com/t.pdf"})

	if !strings.Contains(text, f.Quote) {
		t.Fatalf("quote %q is not a substring of the span text", f.Quote)
	}
	if f.Quote != "I saw Donald Trump at that time." {
		t.Errorf("quote should be the minimal matching sentence, got %q", f.Quote)
	}
	if f.Summary != "A sighting is described." {
		t.Errorf("summary = %q", f.Summary)
	}
	if f.SourceTitle != "Transcript" || f.SourceURL != "https://example.com/t.pdf" {
		t.Errorf("source metadata not propagated: %+v", f)
	}
	if f.Topic != "Donald Trump" {
		t.Errorf("topic = %q", f.Topic)
	}
	if len(f.ID) != 26 {
		t.Errorf("finding ID should be a 26-char ULID, got %q", f.ID)
	}
}

func TestBuildFallbackOnSummarizerError(t *testing.T) {
	text := "The filing names Trump in paragraph four."
	b := NewBuilder(&stubSummarizer{err: errors.New("model unavailable")}, 0)

	f := b.Build(context.Background(), spanOf(text), keywordFor(t, "Trump"), Meta{Title: "Filing"})

	if f.Summary == "" {
		t.Fatal("summarizer failure must not drop the finding or leave an empty summary")
	}
	if f.Summary != f.Quote {
		t.Errorf("short quote should be its own fallback summary, got %q", f.Summary)
	}
}

func TestBuildFallbackTruncatesLongQuotes(t *testing.T) {
	long := "Trump " + strings.Repeat("and the committee deliberated at length ", 20)
	b := NewBuilder(nil, 50)

	f := b.Build(context.Background(), spanOf(long), keywordFor(t, "Trump"), Meta{})

	if len([]rune(f.Summary)) > 51 {
		t.Errorf("fallback summary exceeds budget: %d runes", len([]rune(f.Summary)))
	}
	if !strings.HasSuffix(f.Summary, "…") {
		t.Errorf("truncated fallback should end with an ellipsis, got %q", f.Summary)
	}
	// Deterministic: same input, same fallback.
	again := b.Build(context.Background(), spanOf(long), keywordFor(t, "Trump"), Meta{})
	if again.Summary != f.Summary {
		t.Error("fallback summary must be deterministic")
	}
}

func TestBuildWholeSpanWhenNoSentenceMatches(t *testing.T) {
	// The keyword bridges a line break, so no single sentence matches after
	// normalization splits differently; the whole span becomes the quote.
	text := "Donald\nTrump was seen"
	b := NewBuilder(nil, 0)

	f := b.Build(context.Background(), spanOf(text), keywordFor(t, "Donald Trump"), Meta{})
	if f.Quote != strings.TrimSpace(text) {
		t.Errorf("quote = %q", f.Quote)
	}
}

func TestBuildQuoteKeepsApostrophes(t *testing.T) {
	text := "First sentence is irrelevant. Trump’s counsel filed a motion. Last sentence."
	b := NewBuilder(nil, 0)

	f := b.Build(context.Background(), spanOf(text), keywordFor(t, "Trump"), Meta{})
	if f.Quote != "Trump’s counsel filed a motion." {
		t.Errorf("quote = %q", f.Quote)
	}
}

func TestBuilderUniqueIDs(t *testing.T) {
	b := NewBuilder(nil, 0)
	span := spanOf("Trump appears here.")
	kw := keywordFor(t, "Trump")

	seen := make(map[string]struct{})
	for i := 0; i < 50; i++ {
		f := b.Build(context.Background(), span, kw, Meta{})
		if _, dup := seen[f.ID]; dup {
			t.Fatalf("duplicate finding ID %q", f.ID)
		}
		seen[f.ID] = struct{}{}
	}
}
