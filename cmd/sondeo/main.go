// Command sondeo builds and queries multimodal (text and image) retrieval
// corpora: SPIMI/external-merge TF-IDF indexing for text, bag-of-visual-
// words TF-IDF indexing for images, both served through cosine-similarity
// top-k search.
//
// Usage:
//
//	sondeo text build --corpus reviews.csv --doc-col 0 --text-col 1 --out ./out/reviews
//	sondeo text search --out ./out/reviews --corpus reviews --q "great service" --k 5
//	sondeo image build --images ./photos --out ./out/photos --k 500 --sample 5000
//	sondeo image search --out ./out/photos --corpus photos --image ./query.jpg --k 5
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/sondeo/sondeo/internal/telemetry"
)

var (
	configPath   string
	traceEnabled bool
)

var rootCmd = &cobra.Command{
	Use:           "sondeo",
	Short:         "Multimodal retrieval: TF-IDF text search and bag-of-visual-words image search",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a sondeo.yaml config file (defaults embedded if unset)")
	rootCmd.PersistentFlags().BoolVar(&traceEnabled, "trace", false, "emit OpenTelemetry spans to stderr")

	rootCmd.AddCommand(textCmd)
	rootCmd.AddCommand(imageCmd)
}

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})))

	// Tracing is set up after flag parsing so that --trace takes effect.
	var shutdown func(context.Context) error
	rootCmd.PersistentPreRunE = func(*cobra.Command, []string) (err error) {
		shutdown, err = telemetry.Setup(traceEnabled)
		return err
	}
	defer func() {
		if shutdown == nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(ctx); err != nil {
			slog.Warn("telemetry shutdown failed", "error", err)
		}
	}()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
