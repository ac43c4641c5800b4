package dedupe

import (
	"reflect"
	"testing"

	"github.com/quarryhq/quarry/pkg/quarry/finding"
)

func mk(topic, title, quote string) finding.Finding {
	return finding.Finding{Topic: topic, SourceTitle: title, SourceURL: "https://example.com/" + title, Quote: quote}
}

func TestApplyCollapsesExactReingestion(t *testing.T) {
	d := New(0)
	in := []finding.Finding{
		mk("Trump", "Transcript", "I saw Donald Trump at that time."),
		mk("Trump", "Transcript", "I saw Donald Trump at that time."),
	}

	res := d.Apply(in)
	if len(res.Findings) != 1 {
		t.Fatalf("expected 1 surviving finding, got %d", len(res.Findings))
	}
	if res.Collapsed != 1 {
		t.Errorf("Collapsed = %d, want 1", res.Collapsed)
	}
	if res.Findings[0].SourceTitle != "Transcript" {
		t.Error("first-encountered instance should win")
	}
}

func TestApplyKeepsDuplicatesFromDifferentSources(t *testing.T) {
	d := New(0)
	in := []finding.Finding{
		mk("Trump", "Transcript", "I saw Donald Trump at that time."),
		mk("Trump", "Transcript-cft", "I saw Donald Trump at that time."),
	}

	res := d.Apply(in)
	if len(res.Findings) != 2 {
		t.Fatalf("identical quotes from distinct sources must both survive, got %d", len(res.Findings))
	}
	if res.NearDuplicates != 1 {
		t.Errorf("NearDuplicates = %d, want 1", res.NearDuplicates)
	}
}

func TestApplyWhitespaceNormalizedEquality(t *testing.T) {
	d := New(0)
	in := []finding.Finding{
		mk("Trump", "Transcript", "I saw  Donald Trump\nat that time."),
		mk("Trump", "Transcript", "I saw Donald Trump at that time."),
	}

	res := d.Apply(in)
	if len(res.Findings) != 1 {
		t.Fatalf("whitespace variants of the same source quote should collapse, got %d", len(res.Findings))
	}
}

func TestApplyNearDuplicateDetection(t *testing.T) {
	d := New(0.9)
	in := []finding.Finding{
		mk("Trump", "Report", "The committee interviewed Donald Trump about the disclosures in March."),
		mk("Trump", "Summary", "The committee interviewed Donald Trump about the disclosures in March of"),
	}

	res := d.Apply(in)
	if len(res.Findings) != 2 {
		t.Fatalf("near-duplicates from distinct sources are kept, got %d", len(res.Findings))
	}
	if res.NearDuplicates != 1 {
		t.Errorf("NearDuplicates = %d, want 1", res.NearDuplicates)
	}
}

func TestApplyDifferentTopicsNeverInteract(t *testing.T) {
	d := New(0)
	in := []finding.Finding{
		mk("Donald Trump", "Transcript", "I saw Donald Trump at that time."),
		mk("Trump", "Transcript", "I saw Donald Trump at that time."),
	}

	res := d.Apply(in)
	if len(res.Findings) != 2 {
		t.Fatalf("same quote under distinct topics must survive twice, got %d", len(res.Findings))
	}
	if res.NearDuplicates != 0 {
		t.Errorf("cross-topic quotes are not near-duplicates, got %d", res.NearDuplicates)
	}
}

func TestApplyIdempotent(t *testing.T) {
	d := New(0)
	in := []finding.Finding{
		mk("Trump", "Transcript", "I saw Donald Trump at that time."),
		mk("Trump", "Transcript", "I saw Donald Trump at that time."),
		mk("Trump", "Transcript-cft", "I saw Donald Trump at that time."),
		mk("Epstein", "Filing", "The filing references Epstein repeatedly."),
	}

	first := d.Apply(in)
	second := d.Apply(first.Findings)

	if !reflect.DeepEqual(first.Findings, second.Findings) {
		t.Error("applying the deduplicator to its own output must change nothing")
	}
	if second.Collapsed != 0 {
		t.Errorf("second pass collapsed %d findings", second.Collapsed)
	}
}

func TestApplyPreservesScanOrder(t *testing.T) {
	d := New(0)
	in := []finding.Finding{
		mk("Trump", "A", "First quote about Trump."),
		mk("Trump", "B", "Second unrelated quote, also about Trump."),
		mk("Trump", "C", "A third, clearly different quote naming Trump."),
	}

	res := d.Apply(in)
	for i, f := range res.Findings {
		if f.SourceTitle != in[i].SourceTitle {
			t.Fatalf("order disturbed at %d: got %q", i, f.SourceTitle)
		}
	}
}

func TestApplyEmptyInput(t *testing.T) {
	d := New(0)
	res := d.Apply(nil)
	if len(res.Findings) != 0 || res.Collapsed != 0 || res.NearDuplicates != 0 {
		t.Errorf("empty input should produce an empty result, got %+v", res)
	}
}
