// Package spimi implements the single-pass in-memory indexing block
// builder: it streams (docId, text) pairs, accumulates an in-memory
// term → docId → tf mapping, and flushes term-sorted blocks to disk when a
// configured threshold is exceeded.
package spimi

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/sondeo/sondeo/internal/ierrors"
	"github.com/sondeo/sondeo/internal/metrics"
	"github.com/sondeo/sondeo/internal/normalize"
)

// perEntryOverhead approximates the fixed bookkeeping cost of one
// (term, docId, freq) triple in the in-memory map, on top of the raw string
// bytes. A cheap fixed counter is used here instead of reflection-based
// size introspection, which would dominate the cost it's meant to bound.
const perEntryOverhead = 48

// FlushTrigger decides when the builder flushes the in-memory index to a
// block file. A memory budget and a fixed doc-count both satisfy this
// interface, so the builder does not care which is configured.
type FlushTrigger interface {
	// ShouldFlush reports whether the builder should flush now, given the
	// documents ingested and estimated bytes held since the last flush.
	ShouldFlush(docsSinceFlush int, bytesSinceFlush int) bool
}

// MemoryBudget flushes once the estimated in-memory footprint reaches
// BudgetBytes.
type MemoryBudget struct{ BudgetBytes int }

func (m MemoryBudget) ShouldFlush(_ int, bytesSinceFlush int) bool {
	return bytesSinceFlush >= m.BudgetBytes
}

// DocCount flushes once N documents have been ingested since the last
// flush.
type DocCount struct{ N int }

func (d DocCount) ShouldFlush(docsSinceFlush int, _ int) bool {
	return docsSinceFlush >= d.N
}

// Builder accumulates a single corpus's partial index in memory and writes
// term-sorted block files to blockDir as the configured FlushTrigger fires.
type Builder struct {
	norm    *normalize.Normalizer
	trigger FlushTrigger
	corpus  string
	blockDir string

	partial        map[string]map[string]int // term -> docId -> tf
	docsSinceFlush int
	bytesSinceFlush int
	blockNum       int
	blockPaths     []string
}

// NewBuilder creates a Builder writing blocks under blockDir, which must
// already exist and be empty: a rebuild overwrites prior outputs atomically
// at the granularity of the output directory, so callers clear blockDir
// themselves before calling NewBuilder rather than have it do so silently.
func NewBuilder(corpus, blockDir string, norm *normalize.Normalizer, trigger FlushTrigger) *Builder {
	return &Builder{
		norm:     norm,
		trigger:  trigger,
		corpus:   corpus,
		blockDir: blockDir,
		partial:  make(map[string]map[string]int),
	}
}

// Add folds one document's normalized term counts into the in-memory
// index, flushing first if the configured trigger fires.
func (b *Builder) Add(docID, text string) error {
	if b.trigger.ShouldFlush(b.docsSinceFlush, b.bytesSinceFlush) && len(b.partial) > 0 {
		if err := b.Flush(); err != nil {
			return err
		}
	}

	tokens := b.norm.Tokens(text)
	seen := make(map[string]int, len(tokens))
	for _, tok := range tokens {
		seen[tok]++
	}
	for term, tf := range seen {
		docs, ok := b.partial[term]
		if !ok {
			docs = make(map[string]int)
			b.partial[term] = docs
			b.bytesSinceFlush += len(term)
		}
		if _, existed := docs[docID]; !existed {
			b.bytesSinceFlush += len(docID) + perEntryOverhead
		}
		docs[docID] += tf
	}
	b.docsSinceFlush++
	metrics.BuildDocumentsTotal.WithLabelValues(b.corpus, "text").Inc()
	return nil
}

// Flush sorts the in-memory index by term and writes it as the next block
// file, then resets in-memory state. A no-op when nothing is pending.
func (b *Builder) Flush() error {
	if len(b.partial) == 0 {
		return nil
	}

	terms := make([]string, 0, len(b.partial))
	for term := range b.partial {
		terms = append(terms, term)
	}
	sort.Strings(terms)

	path := filepath.Join(b.blockDir, fmt.Sprintf("block_%04d.txt", b.blockNum))
	f, err := os.Create(path)
	if err != nil {
		return ierrors.IO("spimi.Flush", err)
	}
	bw := bufio.NewWriter(f)
	for _, term := range terms {
		docs := b.partial[term]
		docIDs := make([]string, 0, len(docs))
		for d := range docs {
			docIDs = append(docIDs, d)
		}
		sort.Strings(docIDs)

		fmt.Fprint(bw, term, ":")
		for i, d := range docIDs {
			if i > 0 {
				fmt.Fprint(bw, ";")
			}
			fmt.Fprintf(bw, "%s,%d", d, docs[d])
		}
		fmt.Fprint(bw, "\n")
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return ierrors.IO("spimi.Flush", err)
	}
	if err := f.Close(); err != nil {
		return ierrors.IO("spimi.Flush", err)
	}

	b.blockPaths = append(b.blockPaths, path)
	metrics.BlocksFlushedTotal.WithLabelValues(b.corpus).Inc()
	slog.Debug("spimi: flushed block", "corpus", b.corpus, "block", path, "terms", len(terms), "docs", b.docsSinceFlush)

	b.partial = make(map[string]map[string]int)
	b.docsSinceFlush = 0
	b.bytesSinceFlush = 0
	b.blockNum++
	return nil
}

// Close flushes any remaining in-memory state unconditionally, including
// the single-block case, and returns the paths of every block written, in
// lexical (and therefore block-order-preserving) order.
func (b *Builder) Close() ([]string, error) {
	if err := b.Flush(); err != nil {
		return nil, err
	}
	return b.blockPaths, nil
}
