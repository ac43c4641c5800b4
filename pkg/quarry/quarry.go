// Package quarry is the finding extraction and aggregation engine: it scans
// a document corpus for keyword-relevant passages and produces a
// topic-ordered report of (summary, verbatim quote, source) findings.
package quarry

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/quarryhq/quarry/pkg/quarry/dedupe"
	"github.com/quarryhq/quarry/pkg/quarry/finding"
	"github.com/quarryhq/quarry/pkg/quarry/internalerr"
	"github.com/quarryhq/quarry/pkg/quarry/match"
	"github.com/quarryhq/quarry/pkg/quarry/segment"
	"github.com/quarryhq/quarry/pkg/quarry/store"
	"github.com/quarryhq/quarry/pkg/quarry/topic"
)

// Document is one loaded corpus document. Loading (and PDF-to-text
// extraction) happens outside the engine; the engine only sees raw text
// plus a stable source identity.
type Document struct {
	ID    string
	Title string
	URL   string
	Text  string
}

// Options configures an Engine instance.
type Options struct {
	// Summarizer produces the one-line summary per finding. Optional; when
	// nil (or on any summarizer error) the deterministic fallback applies.
	Summarizer finding.Summarizer

	// Segment is the passage sizing policy. Zero fields use defaults.
	Segment segment.Policy

	// DedupeThreshold is the near-duplicate similarity threshold; values
	// outside (0, 1] use dedupe.DefaultThreshold.
	DedupeThreshold float64

	// PerTopicCap / TotalCap bound the report size. Zero means unlimited.
	PerTopicCap int
	TotalCap    int

	// OmitEmptyTopics drops zero-match topics from the report instead of
	// listing them with an empty findings list.
	OmitEmptyTopics bool

	// Workers bounds the per-document fan-out. Zero means GOMAXPROCS.
	Workers int

	// FallbackLen bounds the fallback summary in runes.
	FallbackLen int

	// Source labels the report header (e.g. the corpus directory URL).
	Source string

	// Store, when set, receives per-document manifest entries and the run
	// summary. Bookkeeping failures are logged, never fatal.
	Store store.Store

	Logger *slog.Logger
}

// Engine runs the scatter-gather extraction pipeline.
type Engine struct {
	seg     *segment.Segmenter
	builder *finding.Builder
	dedup   *dedupe.Deduplicator
	agg     *topic.Aggregator
	workers int
	source  string
	store   store.Store
	logger  *slog.Logger

	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

// New creates an Engine with the given dependencies.
func New(opts Options) *Engine {
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Engine{
		seg:     segment.New(opts.Segment),
		builder: finding.NewBuilder(opts.Summarizer, opts.FallbackLen),
		dedup:   dedupe.New(opts.DedupeThreshold),
		agg: topic.New(topic.Config{
			PerTopicCap: opts.PerTopicCap,
			TotalCap:    opts.TotalCap,
			OmitEmpty:   opts.OmitEmptyTopics,
		}),
		workers: workers,
		source:  opts.Source,
		store:   opts.Store,
		logger:  logger,
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
}

// Report is the aggregated output of one run. Counters make data loss
// observable: skipped documents and truncated findings are counted, never
// silently dropped.
type Report struct {
	RunID       string
	GeneratedAt time.Time
	Source      string
	Keywords    []string
	Topics      []topic.Group

	TotalFindings       int
	DocsProcessed       int
	DocsSkipped         int
	FindingsTruncated   int
	DuplicatesCollapsed int
	NearDuplicates      int
}

type docResult struct {
	processed bool
	skipped   bool
	findings  []finding.Finding
}

// Run scans the corpus. Per-document work fans out across workers;
// deduplication and aggregation run single-threaded over the gathered,
// scan-ordered stream, so output ordering is deterministic.
//
// Only configuration errors are fatal. Cancellation stops dispatching new
// documents but keeps findings from documents that already completed; the
// partial report is returned alongside the error.
func Run(ctx context.Context, opts Options, docs []Document, keywords []match.Keyword) (Report, error) {
	return New(opts).Run(ctx, docs, keywords)
}

// Run implements the pipeline described on the package type.
func (e *Engine) Run(ctx context.Context, docs []Document, keywords []match.Keyword) (Report, error) {
	set, err := match.NewSetKeywords(keywords)
	if err != nil {
		return Report{}, fmt.Errorf("validate keywords: %w", err)
	}

	rep := Report{
		RunID:       e.newRunID(),
		GeneratedAt: time.Now(),
		Source:      e.source,
	}
	for _, kw := range set.Keywords() {
		rep.Keywords = append(rep.Keywords, kw.Literal)
	}

	results := e.scatter(ctx, docs, set)

	// Gather in scan order.
	var all []finding.Finding
	for i, res := range results {
		switch {
		case res.skipped:
			rep.DocsSkipped++
			e.recordManifest(ctx, rep.RunID, docs[i], store.StatusSkipped, "empty document text")
		case res.processed:
			rep.DocsProcessed++
			all = append(all, res.findings...)
			e.recordManifest(ctx, rep.RunID, docs[i], store.StatusSuccess, "")
		}
	}

	dres := e.dedup.Apply(all)
	rep.DuplicatesCollapsed = dres.Collapsed
	rep.NearDuplicates = dres.NearDuplicates

	ares := e.agg.Aggregate(set.Keywords(), dres.Findings)
	rep.Topics = ares.Groups
	rep.TotalFindings = ares.Total
	rep.FindingsTruncated = ares.Truncated

	e.saveRun(ctx, rep)

	if ctxErr := ctx.Err(); ctxErr != nil {
		return rep, fmt.Errorf("%w: %v", internalerr.ErrCancelled, ctxErr)
	}
	return rep, nil
}

// scatter fans documents out over the worker pool. Each slot in the result
// slice belongs to exactly one worker, so no locking is needed; cancellation
// is checked between documents.
func (e *Engine) scatter(ctx context.Context, docs []Document, set *match.Set) []docResult {
	results := make([]docResult, len(docs))

	workers := e.workers
	if workers > len(docs) {
		workers = len(docs)
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				results[idx] = e.scanDocument(ctx, docs[idx], set)
			}
		}()
	}

dispatch:
	for i := range docs {
		select {
		case <-ctx.Done():
			e.logger.Warn("run cancelled, stopping dispatch", "remaining", len(docs)-i)
			break dispatch
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()

	return results
}

// scanDocument is the pure per-document stage: segment, match, build.
func (e *Engine) scanDocument(ctx context.Context, doc Document, set *match.Set) docResult {
	if strings.TrimSpace(doc.Text) == "" {
		return docResult{skipped: true}
	}

	docID := doc.ID
	if docID == "" {
		docID = doc.URL
	}
	meta := finding.Meta{Title: doc.Title, URL: doc.URL}

	var out []finding.Finding
	for _, span := range e.seg.Segment(docID, doc.Text) {
		for _, kw := range set.Match(span.Text) {
			out = append(out, e.builder.Build(ctx, span, kw, meta))
		}
	}
	return docResult{processed: true, findings: out}
}

func (e *Engine) recordManifest(ctx context.Context, runID string, doc Document, status store.Status, msg string) {
	if e.store == nil {
		return
	}
	entry := store.ManifestEntry{
		RunID:     runID,
		URL:       doc.URL,
		Title:     doc.Title,
		Status:    status,
		Error:     msg,
		CreatedAt: time.Now(),
	}
	// Bookkeeping must survive cancellation of the run context.
	if err := e.store.AppendManifest(context.WithoutCancel(ctx), entry); err != nil {
		e.logger.Warn("manifest write failed", "url", doc.URL, "err", err)
	}
}

func (e *Engine) saveRun(ctx context.Context, rep Report) {
	if e.store == nil {
		return
	}
	summary := store.RunSummary{
		ID:                rep.RunID,
		StartedAt:         rep.GeneratedAt,
		Source:            rep.Source,
		Keywords:          rep.Keywords,
		DocsProcessed:     rep.DocsProcessed,
		DocsSkipped:       rep.DocsSkipped,
		TotalFindings:     rep.TotalFindings,
		FindingsTruncated: rep.FindingsTruncated,
	}
	if err := e.store.SaveRun(context.WithoutCancel(ctx), summary); err != nil {
		e.logger.Warn("run summary write failed", "run", rep.RunID, "err", err)
	}
}

func (e *Engine) newRunID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return ulid.MustNew(ulid.Now(), e.entropy).String()
}
