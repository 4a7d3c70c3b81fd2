package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/sondeo/sondeo/internal/config"
	"github.com/sondeo/sondeo/internal/corpuscache"
	"github.com/sondeo/sondeo/internal/documents"
	"github.com/sondeo/sondeo/internal/merge"
	"github.com/sondeo/sondeo/internal/normalize"
	"github.com/sondeo/sondeo/internal/retriever"
	"github.com/sondeo/sondeo/internal/spimi"
	"github.com/sondeo/sondeo/internal/telemetry"
)

var textCmd = &cobra.Command{
	Use:   "text",
	Short: "Build and search text corpora",
}

var (
	textBuildCorpusCSV string
	textBuildDocCol    int
	textBuildTextCol   int
	textBuildOut       string
	textBuildName      string
	textBuildHasHeader bool
)

var textBuildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build a text index from a CSV corpus (SPIMI + external merge)",
	RunE:  runTextBuild,
}

var (
	textSearchOut    string
	textSearchName   string
	textSearchQuery  string
	textSearchK      int
	textSearchCached bool
)

var textSearchCmd = &cobra.Command{
	Use:   "search",
	Short: "Run a top-k query against a built text index",
	RunE:  runTextSearch,
}

func init() {
	textBuildCmd.Flags().StringVar(&textBuildCorpusCSV, "corpus", "", "path to a CSV file of documents (required)")
	textBuildCmd.Flags().IntVar(&textBuildDocCol, "doc-col", 0, "0-based CSV column holding the document id")
	textBuildCmd.Flags().IntVar(&textBuildTextCol, "text-col", 1, "0-based CSV column holding the document text")
	textBuildCmd.Flags().StringVar(&textBuildOut, "out", "", "output directory for index artifacts (required)")
	textBuildCmd.Flags().StringVar(&textBuildName, "corpus-name", "", "logical corpus name for metrics/cache keys (defaults to --out's base name)")
	textBuildCmd.Flags().BoolVar(&textBuildHasHeader, "header", true, "treat the CSV's first row as a header and skip it")
	_ = textBuildCmd.MarkFlagRequired("corpus")
	_ = textBuildCmd.MarkFlagRequired("out")

	textSearchCmd.Flags().StringVar(&textSearchOut, "out", "", "index artifact directory produced by 'text build' (required)")
	textSearchCmd.Flags().StringVar(&textSearchName, "corpus", "", "logical corpus name (defaults to --out's base name)")
	textSearchCmd.Flags().StringVar(&textSearchQuery, "q", "", "query text (required)")
	textSearchCmd.Flags().IntVar(&textSearchK, "k", 10, "number of results to return")
	textSearchCmd.Flags().BoolVar(&textSearchCached, "cache", true, "reuse a BadgerDB corpus cache keyed by artifact content hash")
	_ = textSearchCmd.MarkFlagRequired("out")
	_ = textSearchCmd.MarkFlagRequired("q")

	textCmd.AddCommand(textBuildCmd)
	textCmd.AddCommand(textSearchCmd)
}

func runTextBuild(cmd *cobra.Command, _ []string) error {
	_, span := telemetry.Tracer().Start(cmd.Context(), "text.build",
		oteltrace.WithAttributes(attribute.String("corpus.csv", textBuildCorpusCSV)))
	defer span.End()

	corpusName := textBuildName
	if corpusName == "" {
		corpusName = filepath.Base(textBuildOut)
	}
	runID := uuid.NewString()
	start := time.Now()

	cfg, err := config.Load(configPath)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	norm, err := normalize.New(normalize.Language(cfg.Text.Language))
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	if err := os.MkdirAll(textBuildOut, 0o755); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("sondeo: creating output directory: %w", err)
	}
	blockDir := filepath.Join(textBuildOut, "blocks")
	if err := os.RemoveAll(blockDir); err != nil {
		return fmt.Errorf("sondeo: clearing stale block directory: %w", err)
	}
	if err := os.MkdirAll(blockDir, 0o755); err != nil {
		return fmt.Errorf("sondeo: creating block directory: %w", err)
	}

	var trigger spimi.FlushTrigger = spimi.MemoryBudget{BudgetBytes: cfg.Text.MemoryBudgetBytes}
	if cfg.Text.FlushDocCount > 0 {
		trigger = spimi.DocCount{N: cfg.Text.FlushDocCount}
	} else {
		slog.Debug("spimi flush trigger", "memory_budget", humanize.Bytes(uint64(cfg.Text.MemoryBudgetBytes)))
	}
	builder := spimi.NewBuilder(corpusName, blockDir, norm, trigger)

	documentsPath := filepath.Join(textBuildOut, "documents.jsonl")
	docWriter, err := documents.CreateWriter(documentsPath)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	n, err := ingestCSV(textBuildCorpusCSV, textBuildDocCol, textBuildTextCol, textBuildHasHeader, func(docID, text string) error {
		if err := builder.Add(docID, text); err != nil {
			return err
		}
		return docWriter.Write(documents.Record{DocID: docID, Text: text})
	})
	if closeErr := docWriter.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	blockPaths, err := builder.Close()
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	dictionaryPath := filepath.Join(textBuildOut, "dictionary.txt")
	postingsPath := filepath.Join(textBuildOut, "postings.jsonl")
	normsPath := filepath.Join(textBuildOut, "norms.json")

	result, err := merge.Run(corpusName, blockPaths, n, dictionaryPath, postingsPath, normsPath)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	if err := os.RemoveAll(blockDir); err != nil {
		slog.Warn("failed to clean up temporary block directory", "dir", blockDir, "error", err)
	}

	elapsed := time.Since(start)
	span.SetAttributes(
		attribute.Int("build.documents", result.Docs),
		attribute.Int("build.terms", result.Terms),
	)
	span.SetStatus(codes.Ok, "")

	slog.Info("text build complete",
		"run_id", runID,
		"corpus", corpusName,
		"documents", result.Docs,
		"terms", result.Terms,
		"elapsed", elapsed,
	)
	fmt.Printf("built %s: %s documents, %s terms in %s\n", corpusName, humanize.Comma(int64(result.Docs)), humanize.Comma(int64(result.Terms)), elapsed.Round(time.Millisecond))
	return nil
}

func runTextSearch(cmd *cobra.Command, _ []string) error {
	_, span := telemetry.Tracer().Start(cmd.Context(), "text.search",
		oteltrace.WithAttributes(attribute.String("query", textSearchQuery)))
	defer span.End()

	corpusName := textSearchName
	if corpusName == "" {
		corpusName = filepath.Base(textSearchOut)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	norm, err := normalize.New(normalize.Language(cfg.Text.Language))
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	var cache *corpuscache.Cache
	if textSearchCached && cfg.Cache.TTLHours > 0 {
		cache, err = corpuscache.Open(filepath.Join(textSearchOut, ".cache"), cfg.TTL(), slog.Default())
		if err != nil {
			slog.Warn("corpus cache unavailable, continuing without it", "error", err)
			cache = nil
		} else {
			defer cache.Close()
		}
	}

	r, err := retriever.Open(
		corpusName,
		filepath.Join(textSearchOut, "dictionary.txt"),
		filepath.Join(textSearchOut, "postings.jsonl"),
		filepath.Join(textSearchOut, "norms.json"),
		filepath.Join(textSearchOut, "documents.jsonl"),
		norm,
		cache,
	)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	hits, err := r.Search(textSearchQuery, textSearchK)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	span.SetAttributes(attribute.Int("results", len(hits)))
	span.SetStatus(codes.Ok, "")

	if len(hits) == 0 {
		fmt.Println("no results")
		return nil
	}
	for i, h := range hits {
		fmt.Printf("%2d. %-20s score=%.4f  %s\n", i+1, h.DocID, h.Score, h.Snippet)
	}
	return nil
}

// ingestCSV streams rows from path through add, returning the number of
// documents ingested (a skipped header row is not counted). CSV parsing
// itself is intentionally minimal: the trigger surface only needs to pull a
// document id and text column out of each row. A row lacking either column,
// or a CSV syntax error, stops ingestion with an error; such rows are not
// skipped.
func ingestCSV(path string, docCol, textCol int, hasHeader bool, add func(docID, text string) error) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("sondeo: opening corpus CSV: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	n := 0
	first := true
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return n, fmt.Errorf("sondeo: reading corpus CSV: %w", err)
		}
		if first {
			first = false
			if hasHeader {
				continue
			}
		}
		if docCol >= len(record) || textCol >= len(record) {
			return n, fmt.Errorf("sondeo: row %d has only %d columns, need doc-col=%d and text-col=%d", n+1, len(record), docCol, textCol)
		}
		docID := record[docCol]
		if docID == "" {
			docID = strconv.Itoa(n)
		}
		if err := add(docID, record[textCol]); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}
