// Package crawl collects a document corpus from a web directory. The crawl
// is breadth-first and strictly scoped: only URLs under the start URL are
// followed, so the collector never ascends to parent paths or other hosts.
package crawl

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/quarryhq/quarry/pkg/quarry"
	"github.com/quarryhq/quarry/pkg/quarry/store"
)

// TextExtractor converts a downloaded non-HTML document (typically a PDF)
// to plain text. Without one, non-HTML documents are recorded as skipped.
type TextExtractor interface {
	Extract(ctx context.Context, contentType string, body []byte) (string, error)
}

// Options configures a Collector.
type Options struct {
	// StartURL defines both the crawl entry point and the scope boundary.
	StartURL string

	// HTTPClient defaults to http.DefaultClient.
	HTTPClient *http.Client

	// Extractor handles non-HTML content types. Optional.
	Extractor TextExtractor

	// Store persists checkpoints and per-URL manifest entries. Optional.
	Store store.Store

	// RunID labels manifest entries. Optional.
	RunID string

	// MaxDocs stops the crawl after collecting this many documents.
	// Zero means unlimited.
	MaxDocs int

	// RequestTimeout bounds each HTTP request. Defaults to 10s.
	RequestTimeout time.Duration

	// Retries is the number of extra attempts per URL on transient
	// failures. Defaults to 2.
	Retries int

	// Delay is the pause between page fetches.
	Delay time.Duration

	// MaxBodyBytes caps how much of a response body is read. Defaults to
	// 16 MiB.
	MaxBodyBytes int64

	Logger *slog.Logger
}

// Collector walks the scope and returns the documents it finds.
type Collector struct {
	opts   Options
	scope  string
	client *http.Client
	logger *slog.Logger
}

// checkpointEvery is how many processed URLs pass between checkpoint saves.
const checkpointEvery = 25

// New validates the options and builds a collector.
func New(opts Options) (*Collector, error) {
	u, err := url.Parse(opts.StartURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid start URL %q", opts.StartURL)
	}
	scope := opts.StartURL
	if !strings.HasSuffix(scope, "/") {
		scope += "/"
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 10 * time.Second
	}
	if opts.Retries < 0 {
		opts.Retries = 0
	} else if opts.Retries == 0 {
		opts.Retries = 2
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 16 << 20
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Collector{opts: opts, scope: scope, client: opts.HTTPClient, logger: logger}, nil
}

// Run performs the crawl. An interrupted run leaves a checkpoint behind;
// the next Run with the same start URL resumes from it. The checkpoint is
// cleared once the frontier is exhausted.
func (c *Collector) Run(ctx context.Context) ([]quarry.Document, error) {
	visited := map[string]bool{c.opts.StartURL: true}
	queue := []string{c.opts.StartURL}

	if cp, ok, err := c.loadCheckpoint(ctx); err != nil {
		c.logger.Warn("checkpoint load failed, starting fresh", "err", err)
	} else if ok {
		c.logger.Info("resuming from checkpoint",
			"visited", len(cp.Visited), "pending", len(cp.Pending))
		visited = make(map[string]bool, len(cp.Visited))
		for _, u := range cp.Visited {
			visited[u] = true
		}
		queue = append([]string(nil), cp.Pending...)
	}

	var docs []quarry.Document
	processed := 0
	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			c.saveCheckpoint(ctx, visited, queue)
			return docs, fmt.Errorf("crawl interrupted: %w", err)
		}
		if c.opts.MaxDocs > 0 && len(docs) >= c.opts.MaxDocs {
			break
		}

		current := queue[0]
		queue = queue[1:]
		processed++

		if c.opts.Delay > 0 {
			select {
			case <-time.After(c.opts.Delay):
			case <-ctx.Done():
			}
		}

		doc, links, err := c.fetch(ctx, current)
		switch {
		case err != nil:
			c.logger.Warn("fetch failed", "url", current, "err", err)
			c.manifest(ctx, current, "", store.StatusFailed, err.Error())
		case doc != nil:
			docs = append(docs, *doc)
			c.manifest(ctx, current, doc.Title, store.StatusSuccess, "")
		default:
			c.manifest(ctx, current, "", store.StatusSkipped, "no text extractor for content type")
		}

		for _, link := range links {
			if !visited[link] && c.inScope(link) {
				visited[link] = true
				queue = append(queue, link)
			}
		}

		if processed%checkpointEvery == 0 {
			c.saveCheckpoint(ctx, visited, queue)
		}
	}

	c.clearCheckpoint(ctx)
	return docs, nil
}

// fetch retrieves one URL. HTML pages come back as a document plus their
// outgoing links; other content types go through the extractor.
func (c *Collector) fetch(ctx context.Context, rawURL string) (*quarry.Document, []string, error) {
	body, contentType, err := c.get(ctx, rawURL)
	if err != nil {
		return nil, nil, err
	}

	if strings.Contains(contentType, "text/html") {
		title, text, links := parsePage(rawURL, body)
		if title == "" {
			title = titleFromURL(rawURL)
		}
		return &quarry.Document{ID: rawURL, Title: title, URL: rawURL, Text: text}, links, nil
	}

	if c.opts.Extractor == nil {
		return nil, nil, nil
	}
	text, err := c.opts.Extractor.Extract(ctx, contentType, body)
	if err != nil {
		return nil, nil, fmt.Errorf("extract text: %w", err)
	}
	return &quarry.Document{ID: rawURL, Title: titleFromURL(rawURL), URL: rawURL, Text: text}, nil, nil
}

// get performs the HTTP request with a per-request timeout and retries on
// transient failures (network errors and 5xx responses).
func (c *Collector) get(ctx context.Context, rawURL string) ([]byte, string, error) {
	var lastErr error
	for attempt := 0; attempt <= c.opts.Retries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt) * 500 * time.Millisecond
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, "", ctx.Err()
			}
		}

		body, contentType, retryable, err := c.getOnce(ctx, rawURL)
		if err == nil {
			return body, contentType, nil
		}
		lastErr = err
		if !retryable {
			break
		}
	}
	return nil, "", lastErr
}

func (c *Collector) getOnce(ctx context.Context, rawURL string) (body []byte, contentType string, retryable bool, err error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.opts.RequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", false, err
	}
	req.Header.Set("User-Agent", "quarry-collector/1.0")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, "", true, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return nil, "", true, fmt.Errorf("server error: %s", resp.Status)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, "", false, fmt.Errorf("unexpected status: %s", resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.opts.MaxBodyBytes))
	if err != nil {
		return nil, "", true, fmt.Errorf("read body: %w", err)
	}
	return data, strings.ToLower(resp.Header.Get("Content-Type")), false, nil
}

func (c *Collector) inScope(rawURL string) bool {
	return strings.HasPrefix(rawURL, c.scope)
}

func (c *Collector) loadCheckpoint(ctx context.Context) (store.Checkpoint, bool, error) {
	if c.opts.Store == nil {
		return store.Checkpoint{}, false, nil
	}
	return c.opts.Store.LoadCheckpoint(ctx, c.opts.StartURL)
}

func (c *Collector) saveCheckpoint(ctx context.Context, visited map[string]bool, queue []string) {
	if c.opts.Store == nil {
		return
	}
	cp := store.Checkpoint{
		StartURL: c.opts.StartURL,
		Visited:  make([]string, 0, len(visited)),
		Pending:  append([]string(nil), queue...),
		SavedAt:  time.Now(),
	}
	for u := range visited {
		cp.Visited = append(cp.Visited, u)
	}
	if err := c.opts.Store.SaveCheckpoint(context.WithoutCancel(ctx), cp); err != nil {
		c.logger.Warn("checkpoint save failed", "err", err)
	}
}

func (c *Collector) clearCheckpoint(ctx context.Context) {
	if c.opts.Store == nil {
		return
	}
	if err := c.opts.Store.ClearCheckpoint(context.WithoutCancel(ctx), c.opts.StartURL); err != nil {
		c.logger.Warn("checkpoint clear failed", "err", err)
	}
}

func (c *Collector) manifest(ctx context.Context, url, title string, status store.Status, msg string) {
	if c.opts.Store == nil {
		return
	}
	entry := store.ManifestEntry{
		RunID:     c.opts.RunID,
		URL:       url,
		Title:     title,
		Status:    status,
		Error:     msg,
		CreatedAt: time.Now(),
	}
	if err := c.opts.Store.AppendManifest(context.WithoutCancel(ctx), entry); err != nil {
		c.logger.Warn("manifest write failed", "url", url, "err", err)
	}
}

func titleFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	base := path.Base(u.Path)
	if base == "" || base == "/" || base == "." {
		return u.Host
	}
	if unescaped, err := url.PathUnescape(base); err == nil {
		base = unescaped
	}
	return base
}
