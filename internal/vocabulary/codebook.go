// Package vocabulary implements the visual vocabulary trainer (C6): mini-
// batch k-means over a sample of local image descriptors, producing a
// persisted codebook of K centroids.
package vocabulary

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"math"
	"math/rand"
	"os"

	"gonum.org/v1/gonum/mat"

	"github.com/sondeo/sondeo/internal/ierrors"
)

// Codebook is the trained visual vocabulary: K centroids in D-dimensional
// descriptor space. The codebook size K is fixed once trained; rebuilding
// an image index with a different K requires retraining the codebook from
// scratch rather than resizing it in place.
type Codebook struct {
	K int
	D int

	// centroids is K*D floats, row-major: centroid i occupies
	// centroids[i*D : i*D+D].
	centroids []float64
}

// Centroid returns a view of the i-th centroid. The caller must not mutate
// the returned slice.
func (c *Codebook) Centroid(i int) []float64 {
	return c.centroids[i*c.D : i*c.D+c.D]
}

// Nearest returns the index of the centroid closest to v by squared
// Euclidean distance.
func (c *Codebook) Nearest(v []float64) int {
	best := 0
	bestDist := math.Inf(1)
	for i := 0; i < c.K; i++ {
		d := squaredDistance(c.Centroid(i), v)
		if d < bestDist {
			bestDist = d
			best = i
		}
	}
	return best
}

func squaredDistance(a, b []float64) float64 {
	var sum float64
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		diff := a[i] - b[i]
		sum += diff * diff
	}
	return sum
}

// TrainOptions configures mini-batch k-means.
type TrainOptions struct {
	K             int
	BatchSize     int
	MaxIterations int
	Seed          int64
}

// Train runs mini-batch k-means (Sculley, 2010) over samples, an N×D matrix
// of stacked descriptor rows from a uniformly random sample of images.
// Initial centroids are K distinct rows drawn uniformly at
// random from samples; each iteration draws a batch of BatchSize rows
// (with replacement), assigns each to its nearest centroid, and updates
// that centroid with a per-centroid decaying learning rate 1/count.
func Train(samples *mat.Dense, opts TrainOptions) (*Codebook, error) {
	n, d := samples.Dims()
	if opts.K <= 0 {
		return nil, ierrors.Config("vocabulary.Train", fmt.Errorf("K must be > 0, got %d", opts.K))
	}
	if n < opts.K {
		return nil, ierrors.Input("vocabulary.Train", fmt.Errorf("need at least K=%d samples, got %d", opts.K, n))
	}

	rng := rand.New(rand.NewSource(opts.Seed))

	centroids := make([]float64, opts.K*d)
	for i, idx := range rng.Perm(n)[:opts.K] {
		copy(centroids[i*d:i*d+d], mat.Row(nil, idx, samples))
	}
	cb := &Codebook{K: opts.K, D: d, centroids: centroids}

	counts := make([]int, opts.K)
	batch := make([]float64, d)
	for iter := 0; iter < opts.MaxIterations; iter++ {
		for b := 0; b < opts.BatchSize; b++ {
			row := rng.Intn(n)
			mat.Row(batch, row, samples)
			idx := cb.Nearest(batch)
			counts[idx]++
			eta := 1.0 / float64(counts[idx])
			centroid := cb.Centroid(idx)
			for j := range centroid {
				centroid[j] += eta * (batch[j] - centroid[j])
			}
		}
	}
	return cb, nil
}

// wireCodebook is the gob-encoded on-disk shape.
type wireCodebook struct {
	K         int
	D         int
	Centroids []float64
}

// Save persists the codebook to path.
func (c *Codebook) Save(path string) error {
	var buf bytes.Buffer
	w := wireCodebook{K: c.K, D: c.D, Centroids: c.centroids}
	if err := gob.NewEncoder(&buf).Encode(w); err != nil {
		return ierrors.IO("Codebook.Save", err)
	}
	return ierrors.IO("Codebook.Save", os.WriteFile(path, buf.Bytes(), 0o644))
}

// Load reads a codebook previously written by Save.
func Load(path string) (*Codebook, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ierrors.MissingArtifact("vocabulary.Load", err)
		}
		return nil, ierrors.IO("vocabulary.Load", err)
	}
	var w wireCodebook
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&w); err != nil {
		return nil, ierrors.CorruptIndex("vocabulary.Load", err)
	}
	return &Codebook{K: w.K, D: w.D, centroids: w.Centroids}, nil
}

// Exists reports whether a codebook file is already present at path, so
// TrainOrLoad can skip training idempotently.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// TrainOrLoad loads the codebook at path if it already exists; otherwise it
// trains one from samples and persists it.
func TrainOrLoad(path string, samples *mat.Dense, opts TrainOptions) (*Codebook, error) {
	if Exists(path) {
		return Load(path)
	}
	cb, err := Train(samples, opts)
	if err != nil {
		return nil, err
	}
	if err := cb.Save(path); err != nil {
		return nil, err
	}
	return cb, nil
}
