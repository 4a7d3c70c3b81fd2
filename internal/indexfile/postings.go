package indexfile

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/sondeo/sondeo/internal/ierrors"
)

// Posting is a single (docId, weight) pair within a postings record.
type Posting struct {
	DocID  string
	Weight float64
}

// PostingsRecord is one self-delimited line of postings.jsonl.
type PostingsRecord struct {
	Term     string
	Postings []Posting
}

// wireRecord is the JSON wire shape: {"term": "...", "postings": [[docId,
// weight], ...]}.
type wireRecord struct {
	Term     string   `json:"term"`
	Postings [][2]any `json:"postings"`
}

// MarshalRecord encodes rec as one JSON line (without trailing newline).
func MarshalRecord(rec PostingsRecord) ([]byte, error) {
	pairs := make([][2]any, len(rec.Postings))
	for i, p := range rec.Postings {
		pairs[i] = [2]any{p.DocID, p.Weight}
	}
	b, err := json.Marshal(wireRecord{Term: rec.Term, Postings: pairs})
	if err != nil {
		return nil, ierrors.IO("MarshalRecord", err)
	}
	return b, nil
}

// UnmarshalRecord decodes one JSON line into a PostingsRecord.
func UnmarshalRecord(line []byte) (PostingsRecord, error) {
	var wr struct {
		Term     string            `json:"term"`
		Postings []json.RawMessage `json:"postings"`
	}
	if err := json.Unmarshal(line, &wr); err != nil {
		return PostingsRecord{}, ierrors.CorruptIndex("UnmarshalRecord", err)
	}
	postings := make([]Posting, 0, len(wr.Postings))
	for _, raw := range wr.Postings {
		var pair [2]json.RawMessage
		if err := json.Unmarshal(raw, &pair); err != nil {
			return PostingsRecord{}, ierrors.CorruptIndex("UnmarshalRecord", err)
		}
		var docID string
		var weight float64
		if err := json.Unmarshal(pair[0], &docID); err != nil {
			return PostingsRecord{}, ierrors.CorruptIndex("UnmarshalRecord", err)
		}
		if err := json.Unmarshal(pair[1], &weight); err != nil {
			return PostingsRecord{}, ierrors.CorruptIndex("UnmarshalRecord", err)
		}
		postings = append(postings, Posting{DocID: docID, Weight: weight})
	}
	return PostingsRecord{Term: wr.Term, Postings: postings}, nil
}

// PostingsWriter appends self-delimited records to postings.jsonl and
// tracks the byte offset of each write, for the dictionary to reference.
type PostingsWriter struct {
	f      *os.File
	offset int64
}

// OpenPostingsWriter creates (or truncates) path for writing.
func OpenPostingsWriter(path string) (*PostingsWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, ierrors.IO("OpenPostingsWriter", err)
	}
	return &PostingsWriter{f: f}, nil
}

// WriteRecord appends rec and returns the byte offset it was written at.
func (w *PostingsWriter) WriteRecord(rec PostingsRecord) (int64, error) {
	b, err := MarshalRecord(rec)
	if err != nil {
		return 0, err
	}
	b = append(b, '\n')
	offset := w.offset
	n, err := w.f.Write(b)
	if err != nil {
		return 0, ierrors.IO("WriteRecord", err)
	}
	w.offset += int64(n)
	return offset, nil
}

// Close flushes and closes the underlying file.
func (w *PostingsWriter) Close() error {
	if err := w.f.Sync(); err != nil {
		return ierrors.IO("PostingsWriter.Close", err)
	}
	return ierrors.IO("PostingsWriter.Close", w.f.Close())
}

// PostingsReader reads self-delimited records at caller-supplied byte
// offsets, one seek+read per term.
type PostingsReader struct {
	f *os.File
}

// OpenPostingsReader opens path for random-access reads.
func OpenPostingsReader(path string) (*PostingsReader, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ierrors.MissingArtifact("OpenPostingsReader", err)
		}
		return nil, ierrors.IO("OpenPostingsReader", err)
	}
	return &PostingsReader{f: f}, nil
}

// ReadAt seeks to offset and reads exactly one self-delimited record.
func (r *PostingsReader) ReadAt(offset int64) (PostingsRecord, error) {
	if _, err := r.f.Seek(offset, io.SeekStart); err != nil {
		return PostingsRecord{}, ierrors.CorruptIndex("PostingsReader.ReadAt", fmt.Errorf("seek to %d: %w", offset, err))
	}
	br := newLineReader(r.f)
	line, err := br.ReadLine()
	if err != nil {
		return PostingsRecord{}, ierrors.CorruptIndex("PostingsReader.ReadAt", fmt.Errorf("offset %d: %w", offset, err))
	}
	return UnmarshalRecord(line)
}

// Close closes the underlying file.
func (r *PostingsReader) Close() error {
	return ierrors.IO("PostingsReader.Close", r.f.Close())
}

// lineReader reads a single '\n'-delimited line starting at the current
// file offset, without assuming anything about what follows it.
type lineReader struct {
	f *os.File
}

func newLineReader(f *os.File) *lineReader { return &lineReader{f: f} }

func (r *lineReader) ReadLine() ([]byte, error) {
	var line []byte
	buf := make([]byte, 1)
	for {
		n, err := r.f.Read(buf)
		if n == 1 {
			if buf[0] == '\n' {
				return line, nil
			}
			line = append(line, buf[0])
		}
		if err != nil {
			if err == io.EOF && len(line) > 0 {
				return line, nil
			}
			return nil, err
		}
	}
}
