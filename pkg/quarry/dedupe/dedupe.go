// Package dedupe collapses findings that re-state the same passage.
//
// Near-duplicate corpora are common: a transcript and its "-cft" variant, or
// a report and its executive-summary companion, yield line-identical quotes.
// Those stay in the output because their sources differ; only an exact
// re-ingestion (same source title, same quote) is collapsed.
package dedupe

import (
	"strings"

	"github.com/agext/levenshtein"

	"github.com/quarryhq/quarry/pkg/quarry/finding"
)

// DefaultThreshold is the similarity at or above which two same-topic quotes
// count as near-duplicates.
const DefaultThreshold = 0.95

// Deduplicator filters an ordered finding stream. It is advisory: it never
// fails, and applying it to its own output changes nothing.
type Deduplicator struct {
	threshold float64
}

// New creates a deduplicator. Thresholds outside (0, 1] fall back to the
// default.
func New(threshold float64) *Deduplicator {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultThreshold
	}
	return &Deduplicator{threshold: threshold}
}

// Result reports what the filter did.
type Result struct {
	Findings       []finding.Finding
	Collapsed      int // exact re-ingestions dropped
	NearDuplicates int // same-topic near-duplicates kept (differing sources)
}

// Apply filters findings in scan order. The first instance of an exact
// (topic, source title, normalized quote) triple wins; later instances are
// dropped silently. Near-duplicates under the same topic from different
// sources are counted but kept.
func (d *Deduplicator) Apply(in []finding.Finding) Result {
	res := Result{Findings: make([]finding.Finding, 0, len(in))}
	seen := make(map[string]struct{}, len(in))
	byTopic := make(map[string][]string)

	for _, f := range in {
		quote := normalizeWhitespace(f.Quote)
		key := f.Topic + "\x00" + f.SourceTitle + "\x00" + quote
		if _, dup := seen[key]; dup {
			res.Collapsed++
			continue
		}
		seen[key] = struct{}{}

		for _, prior := range byTopic[f.Topic] {
			if d.sameQuote(prior, quote) {
				res.NearDuplicates++
				break
			}
		}
		byTopic[f.Topic] = append(byTopic[f.Topic], quote)
		res.Findings = append(res.Findings, f)
	}
	return res
}

// sameQuote reports whether two whitespace-normalized quotes describe the
// same passage: byte-equal, or edit-distance similarity at the threshold.
func (d *Deduplicator) sameQuote(a, b string) bool {
	if a == b {
		return true
	}
	return levenshtein.Similarity(a, b, nil) >= d.threshold
}

func normalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
