package summarize

import (
	"context"
	"math"
	"regexp"
	"strings"

	"github.com/quarryhq/quarry/pkg/quarry/finding"
)

// Extractive is an offline summarizer that selects the highest-scoring
// sentence of the quote by word frequency, with keyword tokens up-weighted.
// It is deterministic, so repeat runs produce identical reports.
type Extractive struct {
	tokenPattern *regexp.Regexp
	sentPattern  *regexp.Regexp
	stopwords    map[string]struct{}
}

// NewExtractive creates the frequency-based summarizer.
func NewExtractive() *Extractive {
	return &Extractive{
		tokenPattern: regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`),
		sentPattern:  regexp.MustCompile(`(?m)(?U)([^.!?]+[.!?]+)`),
		stopwords:    defaultStopwords(),
	}
}

// Summarize implements finding.Summarizer. The topic tokens score double so
// the selected sentence stays on subject.
func (e *Extractive) Summarize(ctx context.Context, quote, topic string, meta finding.Meta) (string, error) {
	sentences := e.sentPattern.FindAllString(quote, -1)
	if len(sentences) == 0 {
		return strings.TrimSpace(quote), nil
	}
	if len(sentences) == 1 {
		return strings.TrimSpace(sentences[0]), nil
	}

	topicTokens := make(map[string]struct{})
	for _, tok := range e.tokens(topic) {
		topicTokens[tok] = struct{}{}
	}

	freq := map[string]float64{}
	for _, sent := range sentences {
		for _, tok := range e.tokens(sent) {
			if _, ok := e.stopwords[tok]; ok {
				continue
			}
			freq[tok]++
		}
	}
	maxF := 0.0
	for _, v := range freq {
		if v > maxF {
			maxF = v
		}
	}
	if maxF > 0 {
		for k, v := range freq {
			freq[k] = v / maxF
		}
	}

	best, bestScore := 0, math.Inf(-1)
	for i, sent := range sentences {
		toks := e.tokens(sent)
		score := 0.0
		for _, tok := range toks {
			if v, ok := freq[tok]; ok {
				score += v
			}
			if _, ok := topicTokens[tok]; ok {
				score += 2
			}
		}
		if n := float64(len(toks)); n > 0 {
			score /= math.Sqrt(n)
		}
		if score > bestScore {
			best, bestScore = i, score
		}
	}
	return strings.TrimSpace(sentences[best]), nil
}

func (e *Extractive) tokens(text string) []string {
	return e.tokenPattern.FindAllString(strings.ToLower(text), -1)
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for",
		"to", "of", "in", "on", "at", "by", "with", "as", "is", "are",
		"was", "were", "be", "been", "being", "it", "this", "that",
		"these", "those", "from", "up", "down", "over", "under", "than",
		"so", "such", "into", "about", "between", "through", "during",
		"before", "after", "out", "off", "own", "same", "too", "very",
		"can", "will", "just", "now", "he", "she", "they", "we", "i",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
