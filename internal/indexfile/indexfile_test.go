package indexfile

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDictionaryRoundTrip(t *testing.T) {
	entries := []DictEntry{
		{Term: "banana", Offset: 10, DF: 1},
		{Term: "apple", Offset: 0, DF: 2},
		{Term: "cherry", Offset: 20, DF: 1},
	}
	dict, err := NewDictionary(entries)
	if err != nil {
		t.Fatalf("NewDictionary: %v", err)
	}
	got := dict.Entries()
	want := []string{"apple", "banana", "cherry"}
	for i, term := range want {
		if got[i].Term != term {
			t.Fatalf("Entries()[%d].Term = %q, want %q", i, got[i].Term, term)
		}
	}

	path := filepath.Join(t.TempDir(), "dictionary.txt")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := WriteDictionary(f, dict.Entries()); err != nil {
		t.Fatalf("WriteDictionary: %v", err)
	}
	f.Close()

	loaded, err := LoadDictionary(path)
	if err != nil {
		t.Fatalf("LoadDictionary: %v", err)
	}
	if loaded.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", loaded.Len())
	}
	e, ok := loaded.Lookup("banana")
	if !ok || e.Offset != 10 || e.DF != 1 {
		t.Fatalf("Lookup(banana) = %+v, %v", e, ok)
	}
}

func TestLoadDictionaryRejectsOutOfOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dictionary.txt")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	f.WriteString("banana|0|1\napple|5|1\n")
	f.Close()

	if _, err := LoadDictionary(path); err == nil {
		t.Fatalf("expected error for out-of-order dictionary")
	}
}

func TestPostingsRecordRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "postings.jsonl")
	w, err := OpenPostingsWriter(path)
	if err != nil {
		t.Fatalf("OpenPostingsWriter: %v", err)
	}
	off1, err := w.WriteRecord(PostingsRecord{Term: "apple", Postings: []Posting{{DocID: "d1", Weight: 1.5}, {DocID: "d2", Weight: 0.7}}})
	if err != nil {
		t.Fatalf("WriteRecord: %v", err)
	}
	off2, err := w.WriteRecord(PostingsRecord{Term: "banana", Postings: []Posting{{DocID: "d1", Weight: 2.0}}})
	if err != nil {
		t.Fatalf("WriteRecord: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	r, err := OpenPostingsReader(path)
	if err != nil {
		t.Fatalf("OpenPostingsReader: %v", err)
	}
	defer r.Close()

	rec1, err := r.ReadAt(off1)
	if err != nil {
		t.Fatalf("ReadAt(off1): %v", err)
	}
	if rec1.Term != "apple" || len(rec1.Postings) != 2 || rec1.Postings[1].DocID != "d2" {
		t.Fatalf("rec1 = %+v", rec1)
	}

	rec2, err := r.ReadAt(off2)
	if err != nil {
		t.Fatalf("ReadAt(off2): %v", err)
	}
	if rec2.Term != "banana" || rec2.Postings[0].Weight != 2.0 {
		t.Fatalf("rec2 = %+v", rec2)
	}
}

func TestNormsRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "norms.json")
	norms := Norms{"d1": 1.5, "d2": 0.0}
	if err := WriteNorms(path, norms); err != nil {
		t.Fatalf("WriteNorms: %v", err)
	}
	loaded, err := LoadNorms(path)
	if err != nil {
		t.Fatalf("LoadNorms: %v", err)
	}
	if loaded["d1"] != 1.5 || loaded["d2"] != 0.0 {
		t.Fatalf("loaded = %+v", loaded)
	}
}
