// Package report renders a completed run as Markdown.
package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/quarryhq/quarry/pkg/quarry"
)

// Renderer formats reports. The zero value is usable.
type Renderer struct {
	// TimeFormat overrides the timestamp layout in the header.
	TimeFormat string
}

// Markdown renders the report. Quotes are emitted verbatim inside
// blockquotes; the counters from the run appear in the footer so skipped
// documents and truncated findings stay visible.
func (r *Renderer) Markdown(rep quarry.Report) string {
	layout := r.TimeFormat
	if layout == "" {
		layout = time.RFC3339
	}

	var b strings.Builder

	fmt.Fprintf(&b, "# Finding Report\n\n")
	fmt.Fprintf(&b, "Generated: %s\n\n", rep.GeneratedAt.Format(layout))
	if rep.Source != "" {
		fmt.Fprintf(&b, "Source: %s\n\n", rep.Source)
	}
	if len(rep.Keywords) > 0 {
		fmt.Fprintf(&b, "Keywords: %s\n\n", strings.Join(rep.Keywords, ", "))
	}
	fmt.Fprintf(&b, "Total findings: %d\n\n", rep.TotalFindings)

	for _, group := range rep.Topics {
		fmt.Fprintf(&b, "## Topic: %s\n\n", group.Topic)
		if len(group.Findings) == 0 {
			fmt.Fprintf(&b, "No findings.\n\n")
			continue
		}
		for _, f := range group.Findings {
			if f.SourceURL != "" {
				fmt.Fprintf(&b, "### Source: [%s](%s)\n\n", f.SourceTitle, f.SourceURL)
			} else {
				fmt.Fprintf(&b, "### Source: %s\n\n", f.SourceTitle)
			}
			fmt.Fprintf(&b, "**Summary**: %s\n\n", f.Summary)
			for _, line := range strings.Split(f.Quote, "\n") {
				fmt.Fprintf(&b, "> %s\n", line)
			}
			b.WriteString("\n")
		}
	}

	b.WriteString("---\n\n")
	fmt.Fprintf(&b, "Documents processed: %d, skipped: %d.\n", rep.DocsProcessed, rep.DocsSkipped)
	if rep.FindingsTruncated > 0 {
		fmt.Fprintf(&b, "Findings truncated: %d.\n", rep.FindingsTruncated)
	}
	if rep.DuplicatesCollapsed > 0 {
		fmt.Fprintf(&b, "Duplicates collapsed: %d.\n", rep.DuplicatesCollapsed)
	}
	if rep.NearDuplicates > 0 {
		fmt.Fprintf(&b, "Near-duplicate quotes kept: %d.\n", rep.NearDuplicates)
	}

	return b.String()
}
