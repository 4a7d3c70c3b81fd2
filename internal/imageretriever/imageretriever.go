// Package imageretriever implements the image-side query path (C8): mirror
// of the text retriever for BoVW vectors, with both a brute-force
// sequential mode and an inverted-list mode.
package imageretriever

import (
	"math"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/sondeo/sondeo/internal/imageindex"
	"github.com/sondeo/sondeo/internal/indexfile"
	"github.com/sondeo/sondeo/internal/metrics"
	"github.com/sondeo/sondeo/internal/topk"
	"github.com/sondeo/sondeo/internal/vocabulary"
)

// epsilon is the inverted-mode score floor below which a candidate is
// discarded.
const epsilon = 1e-3

// Method selects the retrieval strategy.
type Method string

const (
	Sequential Method = "sequential"
	Inverted   Method = "inverted"
)

// Hit is one ranked image result.
type Hit struct {
	ImageID string
	Score   float64
}

// Retriever is an opaque, per-corpus value owning the loaded codebook,
// histograms, inverted index, IDF weights, and norms for one image corpus —
// no process-wide singleton, matching internal/retriever's design.
type Retriever struct {
	corpus     string
	codebook   *vocabulary.Codebook
	histograms map[string]imageindex.Histogram
	inverted   map[int][]imageindex.InvertedEntry
	idf        []float64
	norms      indexfile.Norms
}

// Open loads all four image artifacts plus the codebook for corpus.
func Open(corpus, codebookPath, histogramsPath, invertedPath, idfPath, normsPath string) (*Retriever, error) {
	cb, err := vocabulary.Load(codebookPath)
	if err != nil {
		return nil, err
	}
	histograms, err := imageindex.LoadHistograms(histogramsPath)
	if err != nil {
		return nil, err
	}
	inverted, err := imageindex.LoadInvertedIndex(invertedPath)
	if err != nil {
		return nil, err
	}
	idf, err := imageindex.LoadIDF(idfPath)
	if err != nil {
		return nil, err
	}
	norms, err := indexfile.LoadNorms(normsPath)
	if err != nil {
		return nil, err
	}
	return &Retriever{
		corpus:     corpus,
		codebook:   cb,
		histograms: histograms,
		inverted:   inverted,
		idf:        idf,
		norms:      norms,
	}, nil
}

// queryVector assigns descriptors to visual words, builds the TF histogram,
// and multiplies by the stored IDF — the same pipeline as the build side's
// per-image pass, applied to the query image.
func (r *Retriever) queryVector(descriptors *mat.Dense) (map[int]float64, float64) {
	vec := make(map[int]float64)
	if descriptors == nil {
		return vec, 0
	}
	n, d := descriptors.Dims()
	if n == 0 {
		return vec, 0
	}
	counts := make(map[int]int, n)
	row := make([]float64, d)
	for i := 0; i < n; i++ {
		mat.Row(row, i, descriptors)
		idx := r.codebook.Nearest(row)
		counts[idx]++
	}
	var normSq float64
	for word, c := range counts {
		tf := float64(c) / float64(n)
		w := tf * r.idf[word]
		vec[word] = w
		normSq += w * w
	}
	return vec, math.Sqrt(normSq)
}

// Search runs an image-by-example query against the corpus.
func (r *Retriever) Search(descriptors *mat.Dense, k int, method Method) ([]Hit, error) {
	start := time.Now()
	defer func() {
		metrics.QueryLatency.WithLabelValues(r.corpus, "image").Observe(time.Since(start).Seconds())
	}()

	qvec, qnorm := r.queryVector(descriptors)
	if qnorm == 0 {
		return nil, nil
	}

	var hits []Hit
	switch method {
	case Inverted:
		hits = r.searchInverted(qvec, qnorm, k)
	default:
		hits = r.searchSequential(qvec, qnorm, k)
	}
	for _, h := range hits {
		metrics.QueryTopKScore.Observe(h.Score)
	}
	return hits, nil
}

func (r *Retriever) searchSequential(qvec map[int]float64, qnorm float64, k int) []Hit {
	sel := topk.NewSelector(k)
	for imageID, hist := range r.histograms {
		dnorm, ok := r.norms[imageID]
		if !ok || dnorm == 0 {
			continue
		}
		var dot float64
		for word, qw := range qvec {
			tf, ok := hist[word]
			if !ok {
				continue
			}
			dot += qw * (tf * r.idf[word])
		}
		score := clamp01(dot / (qnorm * dnorm))
		sel.Offer(topk.Result{ID: imageID, Score: score})
	}
	return toHits(sel.Results())
}

func (r *Retriever) searchInverted(qvec map[int]float64, qnorm float64, k int) []Hit {
	scores := make(map[string]float64)
	for word, qw := range qvec {
		if qw <= 0 {
			continue
		}
		for _, entry := range r.inverted[word] {
			scores[entry.ImageID] += qw * entry.Weight
		}
	}

	sel := topk.NewSelector(k)
	for imageID, raw := range scores {
		dnorm, ok := r.norms[imageID]
		if !ok || dnorm == 0 {
			continue
		}
		score := clamp01(raw / (qnorm * dnorm))
		if score < epsilon {
			continue
		}
		sel.Offer(topk.Result{ID: imageID, Score: score})
	}
	return toHits(sel.Results())
}

func toHits(results []topk.Result) []Hit {
	hits := make([]Hit, len(results))
	for i, res := range results {
		hits[i] = Hit{ImageID: res.ID, Score: res.Score}
	}
	return hits
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
