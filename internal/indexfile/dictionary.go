// Package indexfile defines the on-disk formats shared by the merge step
// (writer) and the retrievers (reader): dictionary.txt, postings.jsonl, and
// norms.json.
package indexfile

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/sondeo/sondeo/internal/ierrors"
)

// DictEntry is one row of dictionary.txt: a term, the byte offset of its
// postings record in postings.jsonl, and its document frequency.
type DictEntry struct {
	Term   string
	Offset int64
	DF     int
}

// Dictionary is the full in-memory dictionary, sorted lexicographically by
// term.
type Dictionary struct {
	entries []DictEntry
	byTerm  map[string]DictEntry
}

// NewDictionary builds a Dictionary from entries, sorting a defensive copy
// and validating strict increase by term. Callers may build entries either
// by streaming merged terms in order or by buffering and sorting
// defensively; both paths land here.
func NewDictionary(entries []DictEntry) (*Dictionary, error) {
	sorted := make([]DictEntry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Term < sorted[j].Term })

	byTerm := make(map[string]DictEntry, len(sorted))
	for i, e := range sorted {
		if i > 0 && sorted[i-1].Term == e.Term {
			return nil, ierrors.CorruptIndex("NewDictionary", fmt.Errorf("duplicate term %q", e.Term))
		}
		byTerm[e.Term] = e
	}
	return &Dictionary{entries: sorted, byTerm: byTerm}, nil
}

// Lookup returns the entry for term and whether it was present.
func (d *Dictionary) Lookup(term string) (DictEntry, bool) {
	e, ok := d.byTerm[term]
	return e, ok
}

// Len returns the number of distinct terms.
func (d *Dictionary) Len() int { return len(d.entries) }

// Entries returns the dictionary in sorted order. Callers must not mutate
// the returned slice.
func (d *Dictionary) Entries() []DictEntry { return d.entries }

// WriteDictionary writes entries (assumed already sorted) to w in the
// "term|offset|df\n" line format.
func WriteDictionary(w io.Writer, entries []DictEntry) error {
	bw := bufio.NewWriter(w)
	for _, e := range entries {
		if _, err := fmt.Fprintf(bw, "%s|%d|%d\n", e.Term, e.Offset, e.DF); err != nil {
			return ierrors.IO("WriteDictionary", err)
		}
	}
	return ierrors.IO("WriteDictionary", bw.Flush())
}

// LoadDictionary reads dictionary.txt from path and validates that terms
// are strictly increasing, so a corrupted or hand-edited file is rejected
// rather than silently producing wrong lookups.
func LoadDictionary(path string) (*Dictionary, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ierrors.MissingArtifact("LoadDictionary", err)
		}
		return nil, ierrors.IO("LoadDictionary", err)
	}
	defer f.Close()

	var entries []DictEntry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if line == "" {
			continue
		}
		e, err := parseDictLine(line)
		if err != nil {
			return nil, ierrors.CorruptIndex("LoadDictionary", fmt.Errorf("line %d: %w", lineNo, err))
		}
		if len(entries) > 0 && entries[len(entries)-1].Term >= e.Term {
			return nil, ierrors.CorruptIndex("LoadDictionary", fmt.Errorf("line %d: term %q out of order", lineNo, e.Term))
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, ierrors.IO("LoadDictionary", err)
	}

	byTerm := make(map[string]DictEntry, len(entries))
	for _, e := range entries {
		byTerm[e.Term] = e
	}
	return &Dictionary{entries: entries, byTerm: byTerm}, nil
}

func parseDictLine(line string) (DictEntry, error) {
	parts := strings.SplitN(line, "|", 3)
	if len(parts) != 3 {
		return DictEntry{}, fmt.Errorf("malformed dictionary line %q", line)
	}
	offset, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return DictEntry{}, fmt.Errorf("bad offset in %q: %w", line, err)
	}
	df, err := strconv.Atoi(parts[2])
	if err != nil {
		return DictEntry{}, fmt.Errorf("bad df in %q: %w", line, err)
	}
	return DictEntry{Term: parts[0], Offset: offset, DF: df}, nil
}
