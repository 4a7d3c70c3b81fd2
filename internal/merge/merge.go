// Package merge implements the external k-way merge of SPIMI blocks into a
// single term-sorted dictionary, a postings file, and a per-document norms
// file.
package merge

import (
	"bufio"
	"container/heap"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sondeo/sondeo/internal/ierrors"
	"github.com/sondeo/sondeo/internal/indexfile"
	"github.com/sondeo/sondeo/internal/metrics"
)

// blockReader holds one block file's line-buffered reader plus its current
// parsed front line (term, postings), so the heap can compare fronts
// without re-parsing.
type blockReader struct {
	id      int
	f       *os.File
	scanner *bufio.Scanner
	term    string
	raw     string // "docId,freq;docId,freq;…" for the current term
	done    bool
}

func openBlockReader(id int, path string) (*blockReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, ierrors.IO("merge.openBlockReader", err)
	}
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	br := &blockReader{id: id, f: f, scanner: scanner}
	if err := br.advance(); err != nil {
		f.Close()
		return nil, err
	}
	return br, nil
}

// advance reads the next well-formed "term:postings" line, skipping
// malformed lines with a diagnostic rather than aborting the whole merge.
func (br *blockReader) advance() error {
	for br.scanner.Scan() {
		line := br.scanner.Text()
		if line == "" {
			continue
		}
		idx := strings.IndexByte(line, ':')
		if idx < 0 {
			slog.Warn("merge: skipping malformed block line", "block", br.id, "line", line)
			continue
		}
		br.term = line[:idx]
		br.raw = line[idx+1:]
		return nil
	}
	if err := br.scanner.Err(); err != nil {
		return ierrors.IO("merge.advance", err)
	}
	br.done = true
	return nil
}

func (br *blockReader) close() error {
	return ierrors.IO("merge.blockReader.close", br.f.Close())
}

// heapItem is the min-heap element keyed by (term, blockId) for
// deterministic tie-breaking across blocks that both front the same term.
type heapItem struct {
	term    string
	blockID int
}

type frontHeap []heapItem

func (h frontHeap) Len() int { return len(h) }
func (h frontHeap) Less(i, j int) bool {
	if h[i].term != h[j].term {
		return h[i].term < h[j].term
	}
	return h[i].blockID < h[j].blockID
}
func (h frontHeap) Swap(i, j int)        { h[i], h[j] = h[j], h[i] }
func (h *frontHeap) Push(x interface{}) { *h = append(*h, x.(heapItem)) }
func (h *frontHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// Result summarizes a completed merge, returned to the caller as the
// build command's success summary.
type Result struct {
	Terms int
	Docs  int
}

// Run merges the blocks at blockPaths (already in block-order, e.g. from
// spimi.Builder.Close) into dictionaryPath, postingsPath, and normsPath.
// totalDocs is N, the total document count, used for IDF.
func Run(corpus string, blockPaths []string, totalDocs int, dictionaryPath, postingsPath, normsPath string) (Result, error) {
	start := time.Now()
	defer func() {
		metrics.MergeDuration.WithLabelValues(corpus).Observe(time.Since(start).Seconds())
	}()

	if len(blockPaths) == 0 {
		return Result{}, ierrors.Input("merge.Run", fmt.Errorf("no blocks to merge"))
	}

	readers := make([]*blockReader, len(blockPaths))
	g := new(errgroup.Group)
	for i, path := range blockPaths {
		i, path := i, path
		g.Go(func() error {
			br, err := openBlockReader(i, path)
			if err != nil {
				return err
			}
			readers[i] = br
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		for _, br := range readers {
			if br != nil {
				br.close()
			}
		}
		return Result{}, err
	}
	defer func() {
		for _, br := range readers {
			br.close()
		}
	}()

	h := &frontHeap{}
	heap.Init(h)
	for _, br := range readers {
		if !br.done {
			heap.Push(h, heapItem{term: br.term, blockID: br.id})
		}
	}

	pw, err := indexfile.OpenPostingsWriter(postingsPath)
	if err != nil {
		return Result{}, err
	}
	defer pw.Close()

	var dictEntries []indexfile.DictEntry
	norms := make(indexfile.Norms)
	termCount := 0

	for h.Len() > 0 {
		term := (*h)[0].term
		accum := make(map[string]int)

		for h.Len() > 0 && (*h)[0].term == term {
			item := heap.Pop(h).(heapItem)
			br := readers[item.blockID]
			for _, pair := range strings.Split(br.raw, ";") {
				if pair == "" {
					continue
				}
				docID, freq, ok := parsePosting(pair)
				if !ok {
					slog.Warn("merge: skipping malformed posting", "block", br.id, "term", term, "pair", pair)
					continue
				}
				accum[docID] += freq
			}
			if err := br.advance(); err != nil {
				return Result{}, err
			}
			if !br.done {
				heap.Push(h, heapItem{term: br.term, blockID: br.id})
			}
		}

		df := len(accum)
		if df == 0 {
			continue
		}
		idf := math.Log(float64(totalDocs) / float64(df))

		docIDs := make([]string, 0, len(accum))
		for d := range accum {
			docIDs = append(docIDs, d)
		}
		sort.Strings(docIDs)

		postings := make([]indexfile.Posting, 0, len(docIDs))
		for _, d := range docIDs {
			tf := accum[d]
			w := (1 + math.Log(float64(tf))) * idf
			postings = append(postings, indexfile.Posting{DocID: d, Weight: w})
			norms[d] += w * w
		}

		offset, err := pw.WriteRecord(indexfile.PostingsRecord{Term: term, Postings: postings})
		if err != nil {
			return Result{}, err
		}
		dictEntries = append(dictEntries, indexfile.DictEntry{Term: term, Offset: offset, DF: df})
		termCount++
	}

	dictFile, err := os.Create(dictionaryPath)
	if err != nil {
		return Result{}, ierrors.IO("merge.Run", err)
	}
	// The heap drains terms in non-decreasing order, so dictEntries is
	// already sorted; WriteDictionary does not re-sort.
	if err := indexfile.WriteDictionary(dictFile, dictEntries); err != nil {
		dictFile.Close()
		return Result{}, err
	}
	if err := dictFile.Close(); err != nil {
		return Result{}, ierrors.IO("merge.Run", err)
	}

	for d, sumSq := range norms {
		norms[d] = math.Sqrt(sumSq)
	}
	if err := indexfile.WriteNorms(normsPath, norms); err != nil {
		return Result{}, err
	}

	return Result{Terms: termCount, Docs: len(norms)}, nil
}

func parsePosting(pair string) (docID string, freq int, ok bool) {
	idx := strings.LastIndexByte(pair, ',')
	if idx < 0 {
		return "", 0, false
	}
	f, err := strconv.Atoi(pair[idx+1:])
	if err != nil {
		return "", 0, false
	}
	return pair[:idx], f, true
}

// BlockFilePaths lists block files under dir in the lexical order that
// preserves block numbering.
func BlockFilePaths(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, ierrors.IO("merge.BlockFilePaths", err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	paths := make([]string, len(names))
	for i, n := range names {
		paths[i] = filepath.Join(dir, n)
	}
	return paths, nil
}
