package documents

import (
	"path/filepath"
	"testing"
)

func TestStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "documents.jsonl")

	w, err := CreateWriter(path)
	if err != nil {
		t.Fatalf("CreateWriter: %v", err)
	}
	recs := []Record{
		{DocID: "d1", Text: "apple banana", Extra: map[string]interface{}{"title": "Fruit one"}},
		{DocID: "d2", Text: "cherry", Extra: map[string]interface{}{"title": "Fruit two"}},
	}
	for _, r := range recs {
		if err := w.Write(r); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	s := Open(path)
	got, ok, err := s.Get("d2")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok {
		t.Fatalf("expected d2 to be found")
	}
	if got.Text != "cherry" {
		t.Fatalf("Text = %q, want %q", got.Text, "cherry")
	}
	if got.Extra["title"] != "Fruit two" {
		t.Fatalf("Extra[title] = %v, want %q", got.Extra["title"], "Fruit two")
	}

	n, err := s.Len()
	if err != nil {
		t.Fatalf("Len: %v", err)
	}
	if n != 2 {
		t.Fatalf("Len = %d, want 2", n)
	}
}

func TestStoreGetMissingReturnsNotFound(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "documents.jsonl")

	w, err := CreateWriter(path)
	if err != nil {
		t.Fatalf("CreateWriter: %v", err)
	}
	if err := w.Write(Record{DocID: "d1", Text: "apple"}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	s := Open(path)
	_, ok, err := s.Get("missing")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok {
		t.Fatalf("expected missing docId to report ok=false")
	}
}

func TestStoreOpenMissingFileIsArtifactError(t *testing.T) {
	dir := t.TempDir()
	s := Open(filepath.Join(dir, "nope.jsonl"))
	_, _, err := s.Get("d1")
	if err == nil {
		t.Fatalf("expected error for missing documents file")
	}
}
