// Package topic groups surviving findings under their configured topics.
package topic

import (
	"github.com/quarryhq/quarry/pkg/quarry/finding"
	"github.com/quarryhq/quarry/pkg/quarry/match"
)

// Group is one topic and its findings, both in stable first-seen order.
type Group struct {
	Topic    string
	Findings []finding.Finding
}

// Config controls aggregation limits. Zero values mean unlimited.
type Config struct {
	PerTopicCap int  // max findings per topic
	TotalCap    int  // max findings overall
	OmitEmpty   bool // drop topics with zero findings instead of listing them
}

// Aggregator builds the ordered topic → findings mapping.
type Aggregator struct {
	cfg Config
}

// New creates an aggregator with the given limits.
func New(cfg Config) *Aggregator {
	return &Aggregator{cfg: cfg}
}

// Result is the aggregated report body plus truncation accounting.
// Truncation is a reported metric, never silent loss.
type Result struct {
	Groups    []Group
	Total     int // findings surviving the caps
	Truncated int // findings dropped by the caps
}

// Aggregate groups findings by topic. Topic order follows the first-seen
// configured keyword order; finding order within a topic follows scan order.
// Caps drop last-seen findings first, deterministically.
func (a *Aggregator) Aggregate(keywords []match.Keyword, findings []finding.Finding) Result {
	order := topicOrder(keywords)
	byTopic := make(map[string][]finding.Finding, len(order))
	for _, f := range findings {
		byTopic[f.Topic] = append(byTopic[f.Topic], f)
	}

	var res Result
	budget := a.cfg.TotalCap
	for _, topic := range order {
		group := byTopic[topic]
		kept := len(group)

		if a.cfg.PerTopicCap > 0 && kept > a.cfg.PerTopicCap {
			kept = a.cfg.PerTopicCap
		}
		if a.cfg.TotalCap > 0 && kept > budget {
			kept = budget
		}

		res.Truncated += len(group) - kept
		group = group[:kept]
		if a.cfg.TotalCap > 0 {
			budget -= kept
		}

		if len(group) == 0 && a.cfg.OmitEmpty {
			continue
		}
		res.Groups = append(res.Groups, Group{Topic: topic, Findings: group})
		res.Total += len(group)
	}

	// Findings under unconfigured topics cannot happen in a normal run, but
	// accounting must still not lose them silently.
	known := make(map[string]struct{}, len(order))
	for _, topic := range order {
		known[topic] = struct{}{}
	}
	for topic, group := range byTopic {
		if _, ok := known[topic]; !ok {
			res.Truncated += len(group)
		}
	}

	return res
}

func topicOrder(keywords []match.Keyword) []string {
	seen := make(map[string]struct{}, len(keywords))
	var order []string
	for _, kw := range keywords {
		if _, ok := seen[kw.Topic]; ok {
			continue
		}
		seen[kw.Topic] = struct{}{}
		order = append(order, kw.Topic)
	}
	return order
}
