package retriever

import (
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/sondeo/sondeo/internal/documents"
	"github.com/sondeo/sondeo/internal/merge"
	"github.com/sondeo/sondeo/internal/normalize"
	"github.com/sondeo/sondeo/internal/spimi"
)

func buildFixture(t *testing.T, docs map[string]string) (dictPath, postingsPath, normsPath, documentsPath string) {
	t.Helper()
	dir := t.TempDir()
	norm, err := normalize.New(normalize.English)
	if err != nil {
		t.Fatalf("normalize.New: %v", err)
	}

	blockDir := filepath.Join(dir, "blocks")
	if err := os.MkdirAll(blockDir, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	b := spimi.NewBuilder("fixture", blockDir, norm, spimi.MemoryBudget{BudgetBytes: 10 * 1024 * 1024})

	ids := sortedKeys(docs)
	for _, id := range ids {
		if err := b.Add(id, docs[id]); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}
	blocks, err := b.Close()
	if err != nil {
		t.Fatalf("Close: %v", err)
	}

	dictPath = filepath.Join(dir, "dictionary.txt")
	postingsPath = filepath.Join(dir, "postings.jsonl")
	normsPath = filepath.Join(dir, "norms.json")
	if _, err := merge.Run("fixture", blocks, len(docs), dictPath, postingsPath, normsPath); err != nil {
		t.Fatalf("merge.Run: %v", err)
	}

	documentsPath = filepath.Join(dir, "documents.jsonl")
	dw, err := documents.CreateWriter(documentsPath)
	if err != nil {
		t.Fatalf("CreateWriter: %v", err)
	}
	for _, id := range ids {
		if err := dw.Write(documents.Record{DocID: id, Text: docs[id]}); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	if err := dw.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	return dictPath, postingsPath, normsPath, documentsPath
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func TestSearchRanksByRelevance(t *testing.T) {
	docs := map[string]string{
		"d1": "the quick brown fox",
		"d2": "quick brown dogs",
		"d3": "lazy fox",
	}
	dictPath, postingsPath, normsPath, documentsPath := buildFixture(t, docs)

	norm, err := normalize.New(normalize.English)
	if err != nil {
		t.Fatalf("normalize.New: %v", err)
	}
	r, err := Open("fixture", dictPath, postingsPath, normsPath, documentsPath, norm, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	hits, err := r.Search("quick fox", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) == 0 {
		t.Fatalf("expected at least one hit")
	}
	if hits[0].DocID != "d1" {
		t.Fatalf("top hit = %s, want d1", hits[0].DocID)
	}
	for i := 1; i < len(hits); i++ {
		if hits[i].Score > hits[i-1].Score {
			t.Fatalf("scores not sorted descending: %+v", hits)
		}
	}
}

func TestSearchUnknownTermReturnsEmpty(t *testing.T) {
	docs := map[string]string{
		"d1": "the quick brown fox",
		"d2": "quick brown dogs",
		"d3": "lazy fox",
	}
	dictPath, postingsPath, normsPath, documentsPath := buildFixture(t, docs)
	norm, err := normalize.New(normalize.English)
	if err != nil {
		t.Fatalf("normalize.New: %v", err)
	}
	r, err := Open("fixture", dictPath, postingsPath, normsPath, documentsPath, norm, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	hits, err := r.Search("xyz", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 0 {
		t.Fatalf("expected empty result for unknown term, got %+v", hits)
	}
}

func TestSearchEmptyQueryReturnsEmpty(t *testing.T) {
	docs := map[string]string{"d1": "the quick brown fox"}
	dictPath, postingsPath, normsPath, documentsPath := buildFixture(t, docs)
	norm, err := normalize.New(normalize.English)
	if err != nil {
		t.Fatalf("normalize.New: %v", err)
	}
	r, err := Open("fixture", dictPath, postingsPath, normsPath, documentsPath, norm, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	hits, err := r.Search("the and of", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 0 {
		t.Fatalf("expected empty result for all-stopword query, got %+v", hits)
	}
}

func TestSearchZeroKReturnsEmpty(t *testing.T) {
	docs := map[string]string{"d1": "apple banana", "d2": "apple cherry"}
	dictPath, postingsPath, normsPath, documentsPath := buildFixture(t, docs)
	norm, err := normalize.New(normalize.English)
	if err != nil {
		t.Fatalf("normalize.New: %v", err)
	}
	r, err := Open("fixture", dictPath, postingsPath, normsPath, documentsPath, norm, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	hits, err := r.Search("apple", 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 0 {
		t.Fatalf("expected empty result for k=0, got %+v", hits)
	}
}
