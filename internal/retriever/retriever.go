// Package retriever implements the text-side cosine-similarity query path
// (C4): normalize the query, probe the dictionary for touched terms, read
// only the postings records a query needs, score, and return the top-k
// documents with snippets.
package retriever

import (
	"fmt"
	"math"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/sondeo/sondeo/internal/corpuscache"
	"github.com/sondeo/sondeo/internal/documents"
	"github.com/sondeo/sondeo/internal/ierrors"
	"github.com/sondeo/sondeo/internal/indexfile"
	"github.com/sondeo/sondeo/internal/metrics"
	"github.com/sondeo/sondeo/internal/normalize"
	"github.com/sondeo/sondeo/internal/topk"
)

const snippetWindow = 40

// Hit is one ranked query result.
type Hit struct {
	DocID   string
	Score   float64
	Extra   map[string]interface{}
	Snippet string
}

// Retriever is an opaque, per-corpus value owning the loaded dictionary,
// norms, and document store for one corpus. There is no process-wide
// cache: callers construct one Retriever per corpus and keep it around for
// as long as they want the in-memory structures warm, so multiple corpora
// can be served concurrently without one evicting another's state.
type Retriever struct {
	corpus       string
	norm         *normalize.Normalizer
	dict         *indexfile.Dictionary
	norms        indexfile.Norms
	postingsPath string
	docs         *documents.Store
}

// Open loads the dictionary and norms for corpus from dictionaryPath and
// normsPath (as written by merge.Run) and wires up the document store. If cache is non-nil, a
// previously cached parse of the dictionary/norms is reused when the
// content hash of the two files matches; otherwise they are parsed fresh
// and the result is stored back into the cache.
func Open(corpus, dictionaryPath, postingsPath, normsPath, documentsPath string, norm *normalize.Normalizer, cache *corpuscache.Cache) (*Retriever, error) {
	dictBytes, normsBytes, err := readArtifactBytes(dictionaryPath, normsPath)
	if err != nil {
		return nil, err
	}

	var dict *indexfile.Dictionary
	var norms indexfile.Norms

	if cache != nil {
		hash := corpuscache.ContentHash(dictBytes, normsBytes)
		if entry, ok, err := cache.Get(corpus, hash); err == nil && ok {
			dict, err = indexfile.NewDictionary(entry.Dict)
			if err != nil {
				return nil, err
			}
			norms = entry.Norms
		} else {
			dict, norms, err = loadDictAndNorms(dictionaryPath, normsPath)
			if err != nil {
				return nil, err
			}
			_ = cache.Put(corpus, hash, corpuscache.Entry{Dict: dict.Entries(), Norms: norms})
		}
	} else {
		dict, norms, err = loadDictAndNorms(dictionaryPath, normsPath)
		if err != nil {
			return nil, err
		}
	}

	return &Retriever{
		corpus:       corpus,
		norm:         norm,
		dict:         dict,
		norms:        norms,
		postingsPath: postingsPath,
		docs:         documents.Open(documentsPath),
	}, nil
}

func readArtifactBytes(dictionaryPath, normsPath string) ([]byte, []byte, error) {
	d, err := readFile(dictionaryPath)
	if err != nil {
		return nil, nil, err
	}
	n, err := readFile(normsPath)
	if err != nil {
		return nil, nil, err
	}
	return d, n, nil
}

func loadDictAndNorms(dictionaryPath, normsPath string) (*indexfile.Dictionary, indexfile.Norms, error) {
	dict, err := indexfile.LoadDictionary(dictionaryPath)
	if err != nil {
		return nil, nil, err
	}
	norms, err := indexfile.LoadNorms(normsPath)
	if err != nil {
		return nil, nil, err
	}
	return dict, norms, nil
}

// touchedTerm is one query term with its dictionary entry, used to drive
// offset-sorted sequential reads of the postings file.
type touchedTerm struct {
	term   string
	weight float64
	entry  indexfile.DictEntry
}

// Search runs a query against the corpus and returns up to k ranked hits.
func (r *Retriever) Search(query string, k int) ([]Hit, error) {
	start := time.Now()
	defer func() {
		metrics.QueryLatency.WithLabelValues(r.corpus, "text").Observe(time.Since(start).Seconds())
	}()

	tokens := r.norm.Tokens(query)
	if len(tokens) == 0 {
		return nil, nil
	}

	qtf := make(map[string]int, len(tokens))
	for _, tok := range tokens {
		qtf[tok]++
	}

	n := float64(len(r.norms))
	var touched []touchedTerm
	for term, count := range qtf {
		entry, ok := r.dict.Lookup(term)
		if !ok {
			continue
		}
		idf := 0.0
		if entry.DF > 0 {
			idf = math.Log(n / float64(entry.DF))
		}
		w := (1 + math.Log(float64(count))) * idf
		touched = append(touched, touchedTerm{term: term, weight: w, entry: entry})
	}
	if len(touched) == 0 {
		return nil, nil
	}

	var qnormSq float64
	for _, t := range touched {
		qnormSq += t.weight * t.weight
	}
	qnorm := math.Sqrt(qnormSq)
	if qnorm == 0 {
		return nil, nil
	}

	sort.Slice(touched, func(i, j int) bool { return touched[i].entry.Offset < touched[j].entry.Offset })

	pr, err := indexfile.OpenPostingsReader(r.postingsPath)
	if err != nil {
		return nil, err
	}
	defer pr.Close()

	scores := make(map[string]float64)
	for _, t := range touched {
		rec, err := pr.ReadAt(t.entry.Offset)
		if err != nil {
			return nil, err
		}
		qw := t.weight / qnorm
		for _, p := range rec.Postings {
			scores[p.DocID] += qw * p.Weight
		}
	}

	sel := topk.NewSelector(k)
	for docID, raw := range scores {
		dnorm, ok := r.norms[docID]
		if !ok || dnorm == 0 {
			continue
		}
		score := raw / dnorm
		score = clamp01(score)
		sel.Offer(topk.Result{ID: docID, Score: score})
	}

	results := sel.Results()
	hits := make([]Hit, 0, len(results))
	for _, res := range results {
		rec, ok, err := r.docs.Get(res.ID)
		if err != nil {
			return nil, err
		}
		hit := Hit{DocID: res.ID, Score: res.Score}
		if ok {
			hit.Extra = rec.Extra
			hit.Snippet = snippet(rec.Text, qtf)
		}
		metrics.QueryTopKScore.Observe(res.Score)
		hits = append(hits, hit)
	}
	return hits, nil
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

// snippet finds the first word containing any query term as a
// case-insensitive substring, and returns a ±W-word window around it;
// it falls back to the first W words when no query term matches.
func snippet(text string, qtf map[string]int) string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return ""
	}

	idx := -1
outer:
	for i, w := range words {
		lw := strings.ToLower(w)
		for term := range qtf {
			if strings.Contains(lw, term) {
				idx = i
				break outer
			}
		}
	}

	if idx < 0 {
		end := snippetWindow
		if end > len(words) {
			end = len(words)
		}
		return strings.Join(words[:end], " ")
	}

	lo := idx - snippetWindow
	if lo < 0 {
		lo = 0
	}
	hi := idx + snippetWindow
	if hi > len(words) {
		hi = len(words)
	}
	return strings.Join(words[lo:hi], " ")
}

func readFile(path string) ([]byte, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, ierrors.IO(fmt.Sprintf("retriever.readFile(%s)", path), err)
	}
	return b, nil
}
