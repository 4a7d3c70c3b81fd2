package main

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/mat"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/sondeo/sondeo/internal/config"
	"github.com/sondeo/sondeo/internal/descriptors"
	"github.com/sondeo/sondeo/internal/ierrors"
	"github.com/sondeo/sondeo/internal/imageindex"
	"github.com/sondeo/sondeo/internal/imageretriever"
	"github.com/sondeo/sondeo/internal/indexfile"
	"github.com/sondeo/sondeo/internal/telemetry"
	"github.com/sondeo/sondeo/internal/vocabulary"
)

var imageCmd = &cobra.Command{
	Use:   "image",
	Short: "Build and search image corpora (bag-of-visual-words)",
}

var (
	imageBuildDir  string
	imageBuildOut  string
	imageBuildK    int
	imageBuildSamp int
	imageBuildName string
)

var imageBuildCmd = &cobra.Command{
	Use:   "build",
	Short: "Train a visual vocabulary and build a bag-of-visual-words index over a directory of images",
	RunE:  runImageBuild,
}

var (
	imageSearchOut    string
	imageSearchName   string
	imageSearchFile   string
	imageSearchK      int
	imageSearchMethod string
)

var imageSearchCmd = &cobra.Command{
	Use:   "search",
	Short: "Run an image-by-example query against a built image index",
	RunE:  runImageSearch,
}

func init() {
	imageBuildCmd.Flags().StringVar(&imageBuildDir, "images", "", "directory of image files (required)")
	imageBuildCmd.Flags().StringVar(&imageBuildOut, "out", "", "output directory for index artifacts (required)")
	imageBuildCmd.Flags().IntVar(&imageBuildK, "k", 0, "visual vocabulary size (defaults to config image.k)")
	imageBuildCmd.Flags().IntVar(&imageBuildSamp, "sample", 0, "number of descriptor rows sampled for k-means training (defaults to config image.sample_size)")
	imageBuildCmd.Flags().StringVar(&imageBuildName, "corpus-name", "", "logical corpus name for metrics/cache keys (defaults to --out's base name)")
	_ = imageBuildCmd.MarkFlagRequired("images")
	_ = imageBuildCmd.MarkFlagRequired("out")

	imageSearchCmd.Flags().StringVar(&imageSearchOut, "out", "", "index artifact directory produced by 'image build' (required)")
	imageSearchCmd.Flags().StringVar(&imageSearchName, "corpus", "", "logical corpus name (defaults to --out's base name)")
	imageSearchCmd.Flags().StringVar(&imageSearchFile, "image", "", "query image file (required)")
	imageSearchCmd.Flags().IntVar(&imageSearchK, "k", 10, "number of results to return")
	imageSearchCmd.Flags().StringVar(&imageSearchMethod, "method", "inverted", "retrieval method: sequential|inverted")
	_ = imageSearchCmd.MarkFlagRequired("out")
	_ = imageSearchCmd.MarkFlagRequired("image")

	imageCmd.AddCommand(imageBuildCmd)
	imageCmd.AddCommand(imageSearchCmd)
}

func runImageBuild(cmd *cobra.Command, _ []string) error {
	_, span := telemetry.Tracer().Start(cmd.Context(), "image.build",
		oteltrace.WithAttributes(attribute.String("images.dir", imageBuildDir)))
	defer span.End()

	corpusName := imageBuildName
	if corpusName == "" {
		corpusName = filepath.Base(imageBuildOut)
	}
	runID := uuid.NewString()
	start := time.Now()

	cfg, err := config.Load(configPath)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	k := imageBuildK
	if k <= 0 {
		k = cfg.Image.K
	}
	sampleSize := imageBuildSamp
	if sampleSize <= 0 {
		sampleSize = cfg.Image.SampleSize
	}

	imageIDs, err := listImageIDs(imageBuildDir)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	if len(imageIDs) == 0 {
		err := fmt.Errorf("sondeo: no images found under %s", imageBuildDir)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	src := descriptors.New(imageBuildDir)

	if err := os.MkdirAll(imageBuildOut, 0o755); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("sondeo: creating output directory: %w", err)
	}

	rows, dims, samples, err := sampleDescriptors(src, imageIDs, sampleSize)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	slog.Info("sampled descriptors for vocabulary training",
		"run_id", runID, "corpus", corpusName, "rows", rows, "dims", dims,
		"memory_estimate", humanize.Bytes(uint64(rows*dims*8)))

	codebookPath := filepath.Join(imageBuildOut, "codebook")
	cb, err := vocabulary.TrainOrLoad(codebookPath, samples, vocabulary.TrainOptions{
		K:             k,
		BatchSize:     cfg.Image.BatchSize,
		MaxIterations: cfg.Image.MaxIterations,
		Seed:          1,
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	result, histograms, inverted, idf, norms, err := imageindex.Build(corpusName, imageIDs, src, cb)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	if err := imageindex.SaveHistograms(filepath.Join(imageBuildOut, "histograms"), histograms); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	if err := imageindex.SaveInvertedIndex(filepath.Join(imageBuildOut, "inverted_index"), inverted); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	if err := imageindex.SaveIDF(filepath.Join(imageBuildOut, "idf_weights"), idf); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	if err := indexfile.WriteNorms(filepath.Join(imageBuildOut, "norms.json"), norms); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	elapsed := time.Since(start)
	span.SetAttributes(
		attribute.Int("build.images", result.Images),
		attribute.Int("build.words", result.Words),
	)
	span.SetStatus(codes.Ok, "")

	slog.Info("image build complete",
		"run_id", runID, "corpus", corpusName,
		"images", result.Images, "words", result.Words, "elapsed", elapsed)
	fmt.Printf("built %s: %s images, %s visual words in %s\n",
		corpusName, humanize.Comma(int64(result.Images)), humanize.Comma(int64(result.Words)), elapsed.Round(time.Millisecond))
	return nil
}

func runImageSearch(cmd *cobra.Command, _ []string) error {
	_, span := telemetry.Tracer().Start(cmd.Context(), "image.search",
		oteltrace.WithAttributes(attribute.String("image", imageSearchFile)))
	defer span.End()

	corpusName := imageSearchName
	if corpusName == "" {
		corpusName = filepath.Base(imageSearchOut)
	}

	r, err := imageretriever.Open(
		corpusName,
		filepath.Join(imageSearchOut, "codebook"),
		filepath.Join(imageSearchOut, "histograms"),
		filepath.Join(imageSearchOut, "inverted_index"),
		filepath.Join(imageSearchOut, "idf_weights"),
		filepath.Join(imageSearchOut, "norms.json"),
	)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	dir, file := filepath.Split(imageSearchFile)
	src := descriptors.New(dir)
	desc, err := src.Descriptors(strings.TrimSuffix(file, filepath.Ext(file)))
	if err != nil {
		if !errors.Is(err, ierrors.ErrInput) {
			span.SetStatus(codes.Error, err.Error())
			return err
		}
		// An unreadable query image yields an empty result.
		slog.Warn("query image could not be decoded", "image", imageSearchFile, "error", err)
		desc = nil
	}

	method := imageretriever.Method(strings.ToLower(imageSearchMethod))
	hits, err := r.Search(desc, imageSearchK, method)
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
		fmt.Printf("%2d. %-20s score=%.4f\n", i+1, h.ImageID, h.Score)
	}
	return nil
}

// listImageIDs enumerates supported image files directly under dir,
// returning their IDs (filename without extension).
func listImageIDs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("sondeo: reading image directory: %w", err)
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		switch ext {
		case ".jpg", ".jpeg", ".png", ".gif":
			ids = append(ids, strings.TrimSuffix(e.Name(), filepath.Ext(e.Name())))
		}
	}
	return ids, nil
}

// sampleDescriptors draws up to sampleSize descriptor rows across imageIDs
// (concatenate until the budget is reached, shuffling image order first)
// for k-means training. Returns the row and column count alongside the
// assembled matrix for logging.
func sampleDescriptors(src imageindex.DescriptorSource, imageIDs []string, sampleSize int) (rows, dims int, samples *mat.Dense, err error) {
	order := make([]string, len(imageIDs))
	copy(order, imageIDs)
	rng := rand.New(rand.NewSource(1))
	rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })

	var collected [][]float64
	dims = -1
	for _, id := range order {
		if len(collected) >= sampleSize {
			break
		}
		d, derr := src.Descriptors(id)
		if derr != nil {
			if !errors.Is(derr, ierrors.ErrInput) {
				return 0, 0, nil, derr
			}
			slog.Warn("skipping unreadable image in vocabulary sample", "image", id, "error", derr)
			continue
		}
		if d == nil {
			continue
		}
		n, cols := d.Dims()
		if dims == -1 {
			dims = cols
		}
		row := make([]float64, cols)
		for i := 0; i < n && len(collected) < sampleSize; i++ {
			mat.Row(row, i, d)
			cp := make([]float64, cols)
			copy(cp, row)
			collected = append(collected, cp)
		}
	}
	if dims == -1 {
		return 0, 0, nil, fmt.Errorf("sondeo: no descriptors extracted from any image")
	}

	m := mat.NewDense(len(collected), dims, nil)
	for i, r := range collected {
		m.SetRow(i, r)
	}
	return len(collected), dims, m, nil
}
