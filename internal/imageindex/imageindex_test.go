package imageindex

import (
	"path/filepath"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/sondeo/sondeo/internal/vocabulary"
)

type fakeSource struct {
	descriptors map[string]*mat.Dense
}

func (f fakeSource) Descriptors(imageID string) (*mat.Dense, error) {
	return f.descriptors[imageID], nil
}

func testCodebook(t *testing.T) *vocabulary.Codebook {
	t.Helper()
	samples := mat.NewDense(4, 2, []float64{0, 0, 0, 10, 10, 0, 10, 10})
	cb, err := vocabulary.Train(samples, vocabulary.TrainOptions{K: 4, BatchSize: 8, MaxIterations: 10, Seed: 1})
	if err != nil {
		t.Fatalf("vocabulary.Train: %v", err)
	}
	return cb
}

func TestBuildProducesHistogramsAndInvertedIndex(t *testing.T) {
	cb := testCodebook(t)
	src := fakeSource{descriptors: map[string]*mat.Dense{
		"img1": mat.NewDense(2, 2, []float64{0.1, 0.1, 0.2, 0.1}),
		"img2": mat.NewDense(1, 2, []float64{10.1, 10.1}),
		"img3": nil,
	}}

	result, histograms, inverted, idf, norms, err := Build("demo", []string{"img1", "img2", "img3"}, src, cb)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if result.Images != 3 {
		t.Fatalf("Images = %d, want 3", result.Images)
	}
	if len(histograms) != 3 {
		t.Fatalf("len(histograms) = %d, want 3", len(histograms))
	}
	if len(histograms["img3"]) != 0 {
		t.Fatalf("expected img3 (no descriptors) to have an empty histogram")
	}
	if _, ok := norms["img3"]; ok && norms["img3"] != 0 {
		t.Fatalf("expected img3 norm to be zero, got %v", norms["img3"])
	}
	if len(idf) != cb.K {
		t.Fatalf("len(idf) = %d, want %d", len(idf), cb.K)
	}

	found := false
	for _, entries := range inverted {
		for _, e := range entries {
			if e.ImageID == "img1" {
				found = true
			}
		}
	}
	if !found {
		t.Fatalf("expected img1 to appear in at least one inverted list")
	}
}

func TestArtifactRoundTrip(t *testing.T) {
	cb := testCodebook(t)
	src := fakeSource{descriptors: map[string]*mat.Dense{
		"img1": mat.NewDense(1, 2, []float64{0.1, 0.1}),
	}}
	_, histograms, inverted, idf, _, err := Build("demo", []string{"img1"}, src, cb)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	dir := t.TempDir()
	hPath := filepath.Join(dir, "histograms")
	iPath := filepath.Join(dir, "inverted_index")
	idfPath := filepath.Join(dir, "idf_weights")

	if err := SaveHistograms(hPath, histograms); err != nil {
		t.Fatalf("SaveHistograms: %v", err)
	}
	if err := SaveInvertedIndex(iPath, inverted); err != nil {
		t.Fatalf("SaveInvertedIndex: %v", err)
	}
	if err := SaveIDF(idfPath, idf); err != nil {
		t.Fatalf("SaveIDF: %v", err)
	}

	gotH, err := LoadHistograms(hPath)
	if err != nil {
		t.Fatalf("LoadHistograms: %v", err)
	}
	if len(gotH) != len(histograms) {
		t.Fatalf("LoadHistograms len = %d, want %d", len(gotH), len(histograms))
	}

	gotI, err := LoadInvertedIndex(iPath)
	if err != nil {
		t.Fatalf("LoadInvertedIndex: %v", err)
	}
	if len(gotI) != len(inverted) {
		t.Fatalf("LoadInvertedIndex len = %d, want %d", len(gotI), len(inverted))
	}

	gotIDF, err := LoadIDF(idfPath)
	if err != nil {
		t.Fatalf("LoadIDF: %v", err)
	}
	if len(gotIDF) != len(idf) {
		t.Fatalf("LoadIDF len = %d, want %d", len(gotIDF), len(idf))
	}
}
