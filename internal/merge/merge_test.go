package merge

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/sondeo/sondeo/internal/indexfile"
)

func writeBlock(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestRunMergesTwoBlocks(t *testing.T) {
	dir := t.TempDir()
	b0 := writeBlock(t, dir, "block_0000.txt", "apple:d1,2\nbanana:d1,1\n")
	b1 := writeBlock(t, dir, "block_0001.txt", "apple:d2,3\ncherry:d2,1\n")

	dictPath := filepath.Join(dir, "dictionary.txt")
	postingsPath := filepath.Join(dir, "postings.jsonl")
	normsPath := filepath.Join(dir, "norms.json")

	result, err := Run("test", []string{b0, b1}, 2, dictPath, postingsPath, normsPath)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Terms != 3 {
		t.Fatalf("Terms = %d, want 3", result.Terms)
	}

	dict, err := indexfile.LoadDictionary(dictPath)
	if err != nil {
		t.Fatalf("LoadDictionary: %v", err)
	}
	wantTerms := []string{"apple", "banana", "cherry"}
	got := dict.Entries()
	if len(got) != 3 {
		t.Fatalf("len(entries) = %d, want 3", len(got))
	}
	for i, term := range wantTerms {
		if got[i].Term != term {
			t.Fatalf("entries[%d].Term = %q, want %q", i, got[i].Term, term)
		}
	}

	appleEntry, _ := dict.Lookup("apple")
	if appleEntry.DF != 2 {
		t.Fatalf("df(apple) = %d, want 2", appleEntry.DF)
	}
	bananaEntry, _ := dict.Lookup("banana")
	if bananaEntry.DF != 1 {
		t.Fatalf("df(banana) = %d, want 1", bananaEntry.DF)
	}
	cherryEntry, _ := dict.Lookup("cherry")
	if cherryEntry.DF != 1 {
		t.Fatalf("df(cherry) = %d, want 1", cherryEntry.DF)
	}

	pr, err := indexfile.OpenPostingsReader(postingsPath)
	if err != nil {
		t.Fatalf("OpenPostingsReader: %v", err)
	}
	defer pr.Close()

	rec, err := pr.ReadAt(appleEntry.Offset)
	if err != nil {
		t.Fatalf("ReadAt: %v", err)
	}
	if len(rec.Postings) != 2 || rec.Postings[0].DocID != "d1" || rec.Postings[1].DocID != "d2" {
		t.Fatalf("apple postings = %+v, want [d1 d2] ordered by docId", rec.Postings)
	}

	idf := math.Log(2.0 / 2.0) // N=2, df=2 -> idf = 0
	wantW1 := (1 + math.Log(2)) * idf
	if math.Abs(rec.Postings[0].Weight-wantW1) > 1e-9 {
		t.Fatalf("apple weight for d1 = %v, want %v", rec.Postings[0].Weight, wantW1)
	}

	norms, err := indexfile.LoadNorms(normsPath)
	if err != nil {
		t.Fatalf("LoadNorms: %v", err)
	}
	if _, ok := norms["d1"]; !ok {
		t.Fatalf("expected norm entry for d1")
	}
	if _, ok := norms["d2"]; !ok {
		t.Fatalf("expected norm entry for d2")
	}
}

func TestRunEmptyBlockListIsBuildError(t *testing.T) {
	dir := t.TempDir()
	_, err := Run("test", nil, 0, filepath.Join(dir, "dictionary.txt"), filepath.Join(dir, "postings.jsonl"), filepath.Join(dir, "norms.json"))
	if err == nil {
		t.Fatalf("expected error for empty block list")
	}
}

func TestRunSkipsMalformedBlockLine(t *testing.T) {
	dir := t.TempDir()
	b0 := writeBlock(t, dir, "block_0000.txt", "apple:d1,2\nnotaline\nbanana:d1,1\n")

	dictPath := filepath.Join(dir, "dictionary.txt")
	postingsPath := filepath.Join(dir, "postings.jsonl")
	normsPath := filepath.Join(dir, "norms.json")

	result, err := Run("test", []string{b0}, 1, dictPath, postingsPath, normsPath)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Terms != 2 {
		t.Fatalf("Terms = %d, want 2 (malformed line skipped)", result.Terms)
	}
}
