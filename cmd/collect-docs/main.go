package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/quarryhq/quarry/internal/crawl"
	"github.com/quarryhq/quarry/internal/logger"
	"github.com/quarryhq/quarry/pkg/quarry"
	"github.com/quarryhq/quarry/pkg/quarry/store/sqlite"
)

func main() {
	_ = godotenv.Load()

	var (
		startURL = flag.String("url", "", "Start URL defining the crawl scope (required)")
		outPath  = flag.String("out", "docs.jsonl", "Output JSONL file")
		dbPath   = flag.String("db", "", "SQLite database for checkpoints and the manifest (optional)")
		maxDocs  = flag.Int("max", 0, "Stop after collecting this many documents (0 = unlimited)")
		delay    = flag.Duration("delay", 0, "Pause between page fetches")
	)
	flag.Parse()

	if *startURL == "" {
		log.Fatal("--url required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slogger := logger.New("collect-docs")

	opts := crawl.Options{
		StartURL: *startURL,
		MaxDocs:  *maxDocs,
		Delay:    *delay,
		Logger:   slogger,
	}
	if *dbPath != "" {
		st, err := sqlite.Open(ctx, *dbPath)
		if err != nil {
			log.Fatal("Failed to open database: ", err)
		}
		defer st.Close()
		opts.Store = st
	}

	collector, err := crawl.New(opts)
	if err != nil {
		log.Fatal("Failed to create collector: ", err)
	}

	started := time.Now()
	docs, crawlErr := collector.Run(ctx)
	if crawlErr != nil {
		// A partial corpus is still worth keeping; the checkpoint lets the
		// next invocation resume where this one stopped.
		slogger.Warn("crawl did not complete", "err", crawlErr)
	}

	if err := writeDocs(*outPath, docs); err != nil {
		log.Fatal("Failed to write documents: ", err)
	}

	slogger.Info("collection finished",
		"documents", len(docs),
		"out", *outPath,
		"elapsed", time.Since(started).Round(time.Millisecond))

	if crawlErr != nil {
		os.Exit(1)
	}
}

func writeDocs(path string, docs []quarry.Document) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(f)
	for _, d := range docs {
		rec := struct {
			ID    string `json:"id"`
			Title string `json:"title"`
			URL   string `json:"url"`
			Text  string `json:"text"`
		}{d.ID, d.Title, d.URL, d.Text}
		if err := enc.Encode(rec); err != nil {
			f.Close()
			return err
		}
	}
	return f.Close()
}
