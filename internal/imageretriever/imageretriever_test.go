package imageretriever

import (
	"path/filepath"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/sondeo/sondeo/internal/imageindex"
	"github.com/sondeo/sondeo/internal/indexfile"
	"github.com/sondeo/sondeo/internal/vocabulary"
)

type fakeSource struct {
	descriptors map[string]*mat.Dense
}

func (f fakeSource) Descriptors(imageID string) (*mat.Dense, error) {
	return f.descriptors[imageID], nil
}

func buildFixture(t *testing.T) (dir string, cb *vocabulary.Codebook, descriptors map[string]*mat.Dense) {
	t.Helper()
	dir = t.TempDir()

	samples := mat.NewDense(4, 2, []float64{0, 0, 0, 10, 10, 0, 10, 10})
	cb, err := vocabulary.Train(samples, vocabulary.TrainOptions{K: 4, BatchSize: 8, MaxIterations: 10, Seed: 1})
	if err != nil {
		t.Fatalf("vocabulary.Train: %v", err)
	}
	codebookPath := filepath.Join(dir, "codebook")
	if err := cb.Save(codebookPath); err != nil {
		t.Fatalf("cb.Save: %v", err)
	}

	// Three images, each on its own visual word, so the smoothed IDF
	// ln(N/(df+1)) = ln(3/2) is positive; with only two images it would be
	// ln(2/2) = 0 and every weight would vanish.
	descriptors = map[string]*mat.Dense{
		"img1": mat.NewDense(2, 2, []float64{0.1, 0.1, 0.2, 0.1}),
		"img2": mat.NewDense(2, 2, []float64{10.1, 10.1, 10.2, 10.1}),
		"img3": mat.NewDense(2, 2, []float64{0.1, 10.1, 0.2, 10.1}),
	}
	src := fakeSource{descriptors: descriptors}

	_, histograms, inverted, idf, norms, err := imageindex.Build("demo", []string{"img1", "img2", "img3"}, src, cb)
	if err != nil {
		t.Fatalf("imageindex.Build: %v", err)
	}

	hPath := filepath.Join(dir, "histograms")
	iPath := filepath.Join(dir, "inverted_index")
	idfPath := filepath.Join(dir, "idf_weights")
	normsPath := filepath.Join(dir, "norms.json")
	if err := imageindex.SaveHistograms(hPath, histograms); err != nil {
		t.Fatalf("SaveHistograms: %v", err)
	}
	if err := imageindex.SaveInvertedIndex(iPath, inverted); err != nil {
		t.Fatalf("SaveInvertedIndex: %v", err)
	}
	if err := imageindex.SaveIDF(idfPath, idf); err != nil {
		t.Fatalf("SaveIDF: %v", err)
	}
	if err := indexfile.WriteNorms(normsPath, norms); err != nil {
		t.Fatalf("WriteNorms: %v", err)
	}

	return dir, cb, descriptors
}

func TestSearchSequentialAndInvertedAgreeOnTopHit(t *testing.T) {
	dir, _, descriptors := buildFixture(t)

	r, err := Open("demo",
		filepath.Join(dir, "codebook"),
		filepath.Join(dir, "histograms"),
		filepath.Join(dir, "inverted_index"),
		filepath.Join(dir, "idf_weights"),
		filepath.Join(dir, "norms.json"),
	)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	seqHits, err := r.Search(descriptors["img1"], 5, Sequential)
	if err != nil {
		t.Fatalf("Search (sequential): %v", err)
	}
	if len(seqHits) == 0 || seqHits[0].ImageID != "img1" {
		t.Fatalf("sequential top hit = %+v, want img1 first", seqHits)
	}

	invHits, err := r.Search(descriptors["img1"], 5, Inverted)
	if err != nil {
		t.Fatalf("Search (inverted): %v", err)
	}
	if len(invHits) == 0 || invHits[0].ImageID != "img1" {
		t.Fatalf("inverted top hit = %+v, want img1 first", invHits)
	}

	if seqHits[0].Score < 0.99 {
		t.Fatalf("expected near-1.0 score for identical image, got %v", seqHits[0].Score)
	}
}

func TestSearchNilDescriptorsReturnsEmpty(t *testing.T) {
	dir, _, _ := buildFixture(t)
	r, err := Open("demo",
		filepath.Join(dir, "codebook"),
		filepath.Join(dir, "histograms"),
		filepath.Join(dir, "inverted_index"),
		filepath.Join(dir, "idf_weights"),
		filepath.Join(dir, "norms.json"),
	)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	hits, err := r.Search(nil, 5, Sequential)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 0 {
		t.Fatalf("expected empty result for nil descriptors, got %+v", hits)
	}
}
