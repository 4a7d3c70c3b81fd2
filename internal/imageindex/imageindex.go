// Package imageindex implements the offline image indexer (C7): assign each
// image's local descriptors to visual words, build per-image TF-IDF
// histograms, an inverted index over visual words, and norms.
package imageindex

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/sondeo/sondeo/internal/ierrors"
	"github.com/sondeo/sondeo/internal/indexfile"
	"github.com/sondeo/sondeo/internal/metrics"
	"github.com/sondeo/sondeo/internal/vocabulary"
)

// Histogram is a sparse visual-word → term-frequency map for one image.
// Only words with tf>0 are present, so the entries always sum to at most 1.
type Histogram map[int]float64

// InvertedEntry is one (imageId, weight) pair within an inverted list.
type InvertedEntry struct {
	ImageID string
	Weight  float64
}

// DescriptorSource supplies the N×D descriptor matrix for one image. It is
// an opaque local-descriptor extractor collaborator: nil or a zero-row
// matrix means "no descriptors found."
type DescriptorSource interface {
	Descriptors(imageID string) (*mat.Dense, error)
}

// Result summarizes a completed image build.
type Result struct {
	Images int
	Words  int
}

// histogramFor assigns every descriptor row to its nearest centroid and
// returns the resulting term-frequency histogram.
func histogramFor(cb *vocabulary.Codebook, descriptors *mat.Dense) Histogram {
	h := make(Histogram)
	if descriptors == nil {
		return h
	}
	n, d := descriptors.Dims()
	if n == 0 {
		return h
	}
	row := make([]float64, d)
	counts := make(map[int]int, n)
	for i := 0; i < n; i++ {
		mat.Row(row, i, descriptors)
		idx := cb.Nearest(row)
		counts[idx]++
	}
	for word, c := range counts {
		h[word] = float64(c) / float64(n)
	}
	return h
}

// Build runs the two-pass image indexing algorithm over imageIDs, reading
// descriptors from src, and returns the four in-memory artifacts to
// persist: per-image histograms, the inverted index, IDF weights, and norms.
func Build(corpus string, imageIDs []string, src DescriptorSource, cb *vocabulary.Codebook) (Result, map[string]Histogram, map[int][]InvertedEntry, []float64, indexfile.Norms, error) {
	histograms := make(map[string]Histogram, len(imageIDs))
	df := make([]int, cb.K)

	for _, id := range imageIDs {
		descriptors, err := src.Descriptors(id)
		if err != nil {
			if !errors.Is(err, ierrors.ErrInput) {
				return Result{}, nil, nil, nil, nil, fmt.Errorf("imageindex.Build(%s): %w", id, err)
			}
			// An unreadable image is logged and indexed with an empty histogram.
			slog.Warn("imageindex: skipping unreadable image", "image", id, "error", err)
			descriptors = nil
		}
		h := histogramFor(cb, descriptors)
		histograms[id] = h
		for word := range h {
			df[word]++
		}
	}

	n := float64(len(imageIDs))
	idf := make([]float64, cb.K)
	for w, dfw := range df {
		idf[w] = math.Log(n / float64(dfw+1))
	}

	inverted := make(map[int][]InvertedEntry)
	norms := make(indexfile.Norms, len(histograms))
	wordCount := 0
	for id, h := range histograms {
		var normSq float64
		for word, tf := range h {
			w := tf * idf[word]
			normSq += w * w
			inverted[word] = append(inverted[word], InvertedEntry{ImageID: id, Weight: w})
		}
		norms[id] = math.Sqrt(normSq)
	}
	for word, entries := range inverted {
		sort.Slice(entries, func(i, j int) bool { return entries[i].ImageID < entries[j].ImageID })
		inverted[word] = entries
		wordCount++
	}

	metrics.BuildDocumentsTotal.WithLabelValues(corpus, "image").Add(n)
	return Result{Images: len(imageIDs), Words: wordCount}, histograms, inverted, idf, norms, nil
}

// SaveHistograms gob-encodes histograms to path.
func SaveHistograms(path string, histograms map[string]Histogram) error {
	return saveGob(path, histograms)
}

// LoadHistograms loads a histogram set previously written by SaveHistograms.
func LoadHistograms(path string) (map[string]Histogram, error) {
	var h map[string]Histogram
	if err := loadGob(path, &h); err != nil {
		return nil, err
	}
	return h, nil
}

// SaveInvertedIndex gob-encodes the inverted index to path.
func SaveInvertedIndex(path string, inverted map[int][]InvertedEntry) error {
	return saveGob(path, inverted)
}

// LoadInvertedIndex loads an inverted index previously written by
// SaveInvertedIndex.
func LoadInvertedIndex(path string) (map[int][]InvertedEntry, error) {
	var inv map[int][]InvertedEntry
	if err := loadGob(path, &inv); err != nil {
		return nil, err
	}
	return inv, nil
}

// SaveIDF gob-encodes the per-visual-word IDF weights to path.
func SaveIDF(path string, idf []float64) error {
	return saveGob(path, idf)
}

// LoadIDF loads IDF weights previously written by SaveIDF.
func LoadIDF(path string) ([]float64, error) {
	var idf []float64
	if err := loadGob(path, &idf); err != nil {
		return nil, err
	}
	return idf, nil
}

func saveGob(path string, v interface{}) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return ierrors.IO(fmt.Sprintf("imageindex.save(%s)", path), err)
	}
	return ierrors.IO(fmt.Sprintf("imageindex.save(%s)", path), os.WriteFile(path, buf.Bytes(), 0o644))
}

func loadGob(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return ierrors.MissingArtifact(fmt.Sprintf("imageindex.load(%s)", path), err)
		}
		return ierrors.IO(fmt.Sprintf("imageindex.load(%s)", path), err)
	}
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(v); err != nil {
		return ierrors.CorruptIndex(fmt.Sprintf("imageindex.load(%s)", path), err)
	}
	return nil
}
