package topic

import (
	"fmt"
	"testing"

	"github.com/quarryhq/quarry/pkg/quarry/finding"
	"github.com/quarryhq/quarry/pkg/quarry/match"
)

func keywords(t *testing.T, literals ...string) []match.Keyword {
	t.Helper()
	set, err := match.NewSet(literals)
	if err != nil {
		t.Fatal(err)
	}
	return set.Keywords()
}

func mkFindings(topic string, n int) []finding.Finding {
	out := make([]finding.Finding, n)
	for i := range out {
		out[i] = finding.Finding{
			Topic: topic,
			Quote: fmt.Sprintf("%s quote %d", topic, i),
		}
	}
	return out
}

func TestAggregateTopicOrderIsConfiguredOrder(t *testing.T) {
	kws := keywords(t, "Zebra", "Alpha", "Mango")
	var all []finding.Finding
	all = append(all, mkFindings("Mango", 1)...)
	all = append(all, mkFindings("Zebra", 1)...)
	all = append(all, mkFindings("Alpha", 1)...)

	res := New(Config{}).Aggregate(kws, all)
	want := []string{"Zebra", "Alpha", "Mango"}
	if len(res.Groups) != len(want) {
		t.Fatalf("got %d groups, want %d", len(res.Groups), len(want))
	}
	for i, g := range res.Groups {
		if g.Topic != want[i] {
			t.Errorf("group %d = %q, want %q (configured order, not alphabetical)", i, g.Topic, want[i])
		}
	}
}

func TestAggregateFindingOrderIsScanOrder(t *testing.T) {
	kws := keywords(t, "Trump")
	all := mkFindings("Trump", 4)

	res := New(Config{}).Aggregate(kws, all)
	got := res.Groups[0].Findings
	for i := range got {
		if got[i].Quote != all[i].Quote {
			t.Fatalf("finding %d out of order: %q", i, got[i].Quote)
		}
	}
}

func TestAggregateEmptyTopicListedByDefault(t *testing.T) {
	kws := keywords(t, "Trump", "Ghislaine")
	all := mkFindings("Trump", 2)

	res := New(Config{}).Aggregate(kws, all)
	if len(res.Groups) != 2 {
		t.Fatalf("zero-match topic should still appear, got %d groups", len(res.Groups))
	}
	if res.Groups[1].Topic != "Ghislaine" || len(res.Groups[1].Findings) != 0 {
		t.Errorf("second group should be the empty topic, got %+v", res.Groups[1])
	}
	if res.Total != 2 {
		t.Errorf("empty topic must not affect Total, got %d", res.Total)
	}
}

func TestAggregateOmitEmptyTopics(t *testing.T) {
	kws := keywords(t, "Trump", "Ghislaine")
	all := mkFindings("Trump", 1)

	res := New(Config{OmitEmpty: true}).Aggregate(kws, all)
	if len(res.Groups) != 1 {
		t.Fatalf("empty topic should be omitted, got %d groups", len(res.Groups))
	}
}

func TestAggregatePerTopicCap(t *testing.T) {
	kws := keywords(t, "Trump")
	all := mkFindings("Trump", 5)

	res := New(Config{PerTopicCap: 3}).Aggregate(kws, all)
	got := res.Groups[0].Findings
	if len(got) != 3 {
		t.Fatalf("per-topic cap not applied, got %d", len(got))
	}
	// Last-seen dropped first: the survivors are the first three.
	for i := range got {
		if got[i].Quote != all[i].Quote {
			t.Errorf("cap must drop last-seen first, position %d has %q", i, got[i].Quote)
		}
	}
	if res.Truncated != 2 {
		t.Errorf("Truncated = %d, want 2", res.Truncated)
	}
	if res.Total != 3 {
		t.Errorf("Total = %d, want 3", res.Total)
	}
}

func TestAggregateTotalCapAcrossTopics(t *testing.T) {
	kws := keywords(t, "Trump", "Epstein")
	var all []finding.Finding
	all = append(all, mkFindings("Trump", 3)...)
	all = append(all, mkFindings("Epstein", 3)...)

	res := New(Config{TotalCap: 4}).Aggregate(kws, all)
	if res.Total != 4 {
		t.Fatalf("Total = %d, want 4", res.Total)
	}
	if res.Truncated != 2 {
		t.Errorf("Truncated = %d, want 2", res.Truncated)
	}
	if len(res.Groups[0].Findings) != 3 || len(res.Groups[1].Findings) != 1 {
		t.Errorf("earlier topics have priority: got %d/%d",
			len(res.Groups[0].Findings), len(res.Groups[1].Findings))
	}
}

func TestAggregateDeterministic(t *testing.T) {
	kws := keywords(t, "Trump", "Epstein")
	var all []finding.Finding
	all = append(all, mkFindings("Epstein", 2)...)
	all = append(all, mkFindings("Trump", 2)...)

	a := New(Config{PerTopicCap: 1})
	first := a.Aggregate(kws, all)
	second := a.Aggregate(kws, all)

	if len(first.Groups) != len(second.Groups) {
		t.Fatal("re-running aggregation changed the group count")
	}
	for i := range first.Groups {
		if first.Groups[i].Topic != second.Groups[i].Topic {
			t.Fatal("re-running aggregation changed topic order")
		}
		for j := range first.Groups[i].Findings {
			if first.Groups[i].Findings[j].Quote != second.Groups[i].Findings[j].Quote {
				t.Fatal("re-running aggregation changed finding order")
			}
		}
	}
}
