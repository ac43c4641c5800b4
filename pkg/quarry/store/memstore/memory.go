// Package memstore is an in-memory store.Store, used in tests and for runs
// that do not need persistence.
package memstore

import (
	"context"
	"sync"

	"github.com/quarryhq/quarry/pkg/quarry/store"
)

// Store is an in-memory implementation of store.Store.
type Store struct {
	mu          sync.RWMutex
	manifest    map[string][]store.ManifestEntry
	checkpoints map[string]store.Checkpoint
	runs        map[string]store.RunSummary
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		manifest:    make(map[string][]store.ManifestEntry),
		checkpoints: make(map[string]store.Checkpoint),
		runs:        make(map[string]store.RunSummary),
	}
}

// Close implements store.Store.
func (s *Store) Close() error { return nil }

// AppendManifest records one document outcome.
func (s *Store) AppendManifest(ctx context.Context, e store.ManifestEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.manifest[e.RunID] = append(s.manifest[e.RunID], e)
	return nil
}

// ManifestByRun returns entries for a run in append order.
func (s *Store) ManifestByRun(ctx context.Context, runID string) ([]store.ManifestEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := s.manifest[runID]
	out := make([]store.ManifestEntry, len(entries))
	copy(out, entries)
	return out, nil
}

// SaveCheckpoint replaces the checkpoint for a start URL.
func (s *Store) SaveCheckpoint(ctx context.Context, c store.Checkpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkpoints[c.StartURL] = copyCheckpoint(c)
	return nil
}

// LoadCheckpoint returns the checkpoint for a start URL if one exists.
func (s *Store) LoadCheckpoint(ctx context.Context, startURL string) (store.Checkpoint, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if c, ok := s.checkpoints[startURL]; ok {
		return copyCheckpoint(c), true, nil
	}
	return store.Checkpoint{}, false, nil
}

// ClearCheckpoint removes a checkpoint after a completed crawl.
func (s *Store) ClearCheckpoint(ctx context.Context, startURL string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.checkpoints, startURL)
	return nil
}

// SaveRun upserts a run summary.
func (s *Store) SaveRun(ctx context.Context, r store.RunSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r.Keywords = copyStrings(r.Keywords)
	s.runs[r.ID] = r
	return nil
}

// GetRun returns a run summary by ID.
func (s *Store) GetRun(ctx context.Context, id string) (store.RunSummary, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if r, ok := s.runs[id]; ok {
		r.Keywords = copyStrings(r.Keywords)
		return r, true, nil
	}
	return store.RunSummary{}, false, nil
}

func copyCheckpoint(c store.Checkpoint) store.Checkpoint {
	c.Visited = copyStrings(c.Visited)
	c.Pending = copyStrings(c.Pending)
	return c
}

func copyStrings(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	return out
}
