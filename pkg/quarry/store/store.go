// Package store persists run bookkeeping: per-document manifest entries,
// crawl checkpoints for resumable corpus collection, and run summaries.
// The extraction engine itself never requires a store; findings live only
// in the rendered report.
package store

import (
	"context"
	"time"
)

// Status is the manifest outcome for one document.
type Status string

const (
	StatusSuccess Status = "SUCCESS"
	StatusFailed  Status = "FAILED"
	StatusSkipped Status = "SKIPPED"
)

// ManifestEntry records what happened to one source document during a run.
type ManifestEntry struct {
	RunID     string
	URL       string
	Title     string
	Status    Status
	Error     string
	CreatedAt time.Time
}

// Checkpoint captures a crawl's frontier so an interrupted collection can
// resume. Keyed by the start URL.
type Checkpoint struct {
	StartURL string
	Visited  []string
	Pending  []string
	SavedAt  time.Time
}

// RunSummary is the persisted accounting for one extraction run.
type RunSummary struct {
	ID                string
	StartedAt         time.Time
	Source            string
	Keywords          []string
	DocsProcessed     int
	DocsSkipped       int
	TotalFindings     int
	FindingsTruncated int
}

// Store is the persistence interface for run bookkeeping.
type Store interface {
	Close() error

	// Manifest
	AppendManifest(ctx context.Context, e ManifestEntry) error
	ManifestByRun(ctx context.Context, runID string) ([]ManifestEntry, error)

	// Checkpoints
	SaveCheckpoint(ctx context.Context, c Checkpoint) error
	LoadCheckpoint(ctx context.Context, startURL string) (Checkpoint, bool, error)
	ClearCheckpoint(ctx context.Context, startURL string) error

	// Runs
	SaveRun(ctx context.Context, r RunSummary) error
	GetRun(ctx context.Context, id string) (RunSummary, bool, error)
}
