package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/quarryhq/quarry/internal/logger"
	"github.com/quarryhq/quarry/internal/summarize"
	"github.com/quarryhq/quarry/pkg/quarry"
	"github.com/quarryhq/quarry/pkg/quarry/config"
	"github.com/quarryhq/quarry/pkg/quarry/finding"
	"github.com/quarryhq/quarry/pkg/quarry/report"
	"github.com/quarryhq/quarry/pkg/quarry/store/sqlite"
)

type docRecord struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	URL   string `json:"url"`
	Text  string `json:"text"`
}

func main() {
	_ = godotenv.Load()

	var (
		configPath = flag.String("config", "", "Run configuration YAML (required)")
		docsPath   = flag.String("docs", "", "Input documents JSONL (required)")
		outPath    = flag.String("out", "", "Output Markdown file (default stdout)")
		dbPath     = flag.String("db", "", "SQLite bookkeeping database (optional)")
		useGemini  = flag.Bool("gemini", false, "Summarize with the Gemini API instead of the extractive fallback")
	)
	flag.Parse()

	if *configPath == "" {
		log.Fatal("--config required")
	}
	if *docsPath == "" {
		log.Fatal("--docs required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slogger := logger.New("quarry-scan")

	comp, err := (&config.Loader{RunPath: *configPath}).Load()
	if err != nil {
		log.Fatal("Failed to load configuration: ", err)
	}

	docs, err := loadDocs(*docsPath)
	if err != nil {
		log.Fatal("Failed to load documents: ", err)
	}
	slogger.Info("documents loaded", "count", len(docs), "path", *docsPath)

	var summarizer finding.Summarizer
	if *useGemini {
		gem, err := summarize.NewGemini(ctx, "")
		if err != nil {
			log.Fatal("Failed to create Gemini summarizer: ", err)
		}
		defer gem.Close()
		summarizer = gem
	} else {
		summarizer = summarize.NewExtractive()
	}

	opts := quarry.Options{
		Summarizer:      summarizer,
		Segment:         comp.Segment,
		DedupeThreshold: comp.Run.Dedupe.Threshold,
		PerTopicCap:     comp.Run.Report.PerTopicCap,
		TotalCap:        comp.Run.Report.TotalCap,
		OmitEmptyTopics: comp.Run.Report.OmitEmptyTopics,
		Workers:         comp.Run.Workers,
		Source:          comp.Run.Source,
		Logger:          slogger,
	}

	if *dbPath != "" {
		st, err := sqlite.Open(ctx, *dbPath)
		if err != nil {
			log.Fatal("Failed to open database: ", err)
		}
		defer st.Close()
		opts.Store = st
	}

	rep, runErr := quarry.Run(ctx, opts, docs, comp.Keywords)
	if runErr != nil {
		// A cancelled run still produced a partial report worth writing.
		slogger.Warn("run did not complete", "err", runErr)
	}

	out := (&report.Renderer{}).Markdown(rep)
	if *outPath == "" {
		fmt.Print(out)
	} else if err := os.WriteFile(*outPath, []byte(out), 0o644); err != nil {
		log.Fatal("Failed to write report: ", err)
	}

	slogger.Info("run finished",
		"run", rep.RunID,
		"processed", rep.DocsProcessed,
		"skipped", rep.DocsSkipped,
		"findings", rep.TotalFindings,
		"truncated", rep.FindingsTruncated)

	if runErr != nil {
		os.Exit(1)
	}
}

// loadDocs reads one JSON document per line. Blank lines are ignored.
func loadDocs(path string) ([]quarry.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var docs []quarry.Document
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 1024*1024), 16*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var rec docRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, line, err)
		}
		docs = append(docs, quarry.Document{
			ID:    rec.ID,
			Title: rec.Title,
			URL:   rec.URL,
			Text:  rec.Text,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return docs, nil
}
