// Package documents implements the offset-addressable record store (C5):
// a line-delimited documents.jsonl file mapping docId to the original text
// plus passthrough fields, for snippet and result assembly at query time.
package documents

import (
	"bufio"
	"encoding/json"
	"os"
	"sync"

	"github.com/sondeo/sondeo/internal/ierrors"
)

// Record is one document as persisted in documents.jsonl: a required docId
// and text field plus arbitrary passthrough fields (e.g. title).
type Record struct {
	DocID string                 `json:"docId"`
	Text  string                 `json:"text"`
	Extra map[string]interface{} `json:"-"`
}

// MarshalJSON flattens Extra alongside docId/text so passthrough fields
// round-trip without a nested wrapper object.
func (r Record) MarshalJSON() ([]byte, error) {
	m := make(map[string]interface{}, len(r.Extra)+2)
	for k, v := range r.Extra {
		m[k] = v
	}
	m["docId"] = r.DocID
	m["text"] = r.Text
	return json.Marshal(m)
}

// UnmarshalJSON reads docId/text into their named fields and everything
// else into Extra.
func (r *Record) UnmarshalJSON(data []byte) error {
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	docID, _ := m["docId"].(string)
	text, _ := m["text"].(string)
	delete(m, "docId")
	delete(m, "text")
	r.DocID = docID
	r.Text = text
	r.Extra = m
	return nil
}

// Writer appends Records to a documents.jsonl file, one JSON object per
// line.
type Writer struct {
	f  *os.File
	bw *bufio.Writer
}

// CreateWriter creates (or truncates) path for writing.
func CreateWriter(path string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, ierrors.IO("documents.CreateWriter", err)
	}
	return &Writer{f: f, bw: bufio.NewWriter(f)}, nil
}

// Write appends rec as one JSON line.
func (w *Writer) Write(rec Record) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return ierrors.Input("documents.Write", err)
	}
	b = append(b, '\n')
	if _, err := w.bw.Write(b); err != nil {
		return ierrors.IO("documents.Write", err)
	}
	return nil
}

// Close flushes and closes the underlying file.
func (w *Writer) Close() error {
	if err := w.bw.Flush(); err != nil {
		return ierrors.IO("documents.Close", err)
	}
	return ierrors.IO("documents.Close", w.f.Close())
}

// Store provides docId-addressable reads over documents.jsonl. It owns an
// in-memory docId → byte-offset table built lazily on first access and
// cached for the lifetime of the Store value — one Store per corpus, no
// process-wide singleton, so several corpora can be open for reads at once
// without sharing mutable state.
type Store struct {
	path string

	mu      sync.RWMutex
	offsets map[string]int64 // docId -> byte offset of its line
	loaded  bool
}

// Open returns a Store over path. The file is not read until the first
// Get call.
func Open(path string) *Store {
	return &Store{path: path}
}

// ensureIndex builds the offset table on first use.
func (s *Store) ensureIndex() error {
	s.mu.RLock()
	if s.loaded {
		s.mu.RUnlock()
		return nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loaded {
		return nil
	}

	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return ierrors.MissingArtifact("documents.Store", err)
		}
		return ierrors.IO("documents.Store", err)
	}
	defer f.Close()

	offsets := make(map[string]int64)
	var offset int64
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		var peek struct {
			DocID string `json:"docId"`
		}
		if err := json.Unmarshal(line, &peek); err != nil {
			return ierrors.CorruptIndex("documents.Store", err)
		}
		offsets[peek.DocID] = offset
		offset += int64(len(line)) + 1 // +1 for the newline the scanner strips
	}
	if err := scanner.Err(); err != nil {
		return ierrors.IO("documents.Store", err)
	}

	s.offsets = offsets
	s.loaded = true
	return nil
}

// Get returns the record for docID, or ok=false if it is not present. It
// never returns a partially populated Record.
func (s *Store) Get(docID string) (Record, bool, error) {
	if err := s.ensureIndex(); err != nil {
		return Record{}, false, err
	}

	s.mu.RLock()
	offset, ok := s.offsets[docID]
	s.mu.RUnlock()
	if !ok {
		return Record{}, false, nil
	}

	f, err := os.Open(s.path)
	if err != nil {
		return Record{}, false, ierrors.IO("documents.Get", err)
	}
	defer f.Close()
	if _, err := f.Seek(offset, 0); err != nil {
		return Record{}, false, ierrors.IO("documents.Get", err)
	}
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	if !scanner.Scan() {
		return Record{}, false, ierrors.CorruptIndex("documents.Get", scanner.Err())
	}
	var rec Record
	if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
		return Record{}, false, ierrors.CorruptIndex("documents.Get", err)
	}
	return rec, true, nil
}

// Len reports the number of indexed documents (forces the lazy index to
// load).
func (s *Store) Len() (int, error) {
	if err := s.ensureIndex(); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.offsets), nil
}
