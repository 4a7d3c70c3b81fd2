// Package corpuscache persists parsed per-corpus artifacts (dictionary and
// norms) across process restarts, keyed by a content hash of the corpus so a
// rebuild automatically invalidates stale entries without an explicit API.
package corpuscache

import (
	"bytes"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/sondeo/sondeo/internal/ierrors"
	"github.com/sondeo/sondeo/internal/indexfile"
	"github.com/sondeo/sondeo/internal/metrics"
)

// keyPrefix namespaces cache keys by storage format version, so a future
// change to Entry's shape cannot collide with entries written by an older
// binary.
const keyPrefix = "sondeo/corpus/v1/"

// Entry is the parsed artifact set cached for one corpus: the dictionary
// entries (sufficient to reconstruct a Dictionary) and the document norms.
type Entry struct {
	Dict  []indexfile.DictEntry
	Norms indexfile.Norms
}

var errMiss = errors.New("corpuscache: miss")

// Cache wraps a BadgerDB instance for storing Entry values. Open creates the
// instance under its own directory and Close closes it, so each Cache owns
// exactly one BadgerDB handle.
type Cache struct {
	db     *badger.DB
	ttl    time.Duration
	logger *slog.Logger
}

// Open opens (creating if absent) a BadgerDB instance at dir and wraps it in
// a Cache with the given TTL. Pass ttl<=0 to disable expiry.
func Open(dir string, ttl time.Duration, logger *slog.Logger) (*Cache, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, ierrors.IO("corpuscache.Open", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{db: db, ttl: ttl, logger: logger}, nil
}

// Close closes the underlying BadgerDB instance.
func (c *Cache) Close() error {
	return ierrors.IO("corpuscache.Close", c.db.Close())
}

// Get retrieves the cached Entry for corpusHash. A cache miss (absent or
// TTL-expired key) returns ok=false with a nil error; a storage or decode
// failure returns ok=false with a non-nil error.
// corpus is the human-readable corpus name, used only for metrics labels.
func (c *Cache) Get(corpus, corpusHash string) (Entry, bool, error) {
	key := []byte(keyPrefix + corpusHash)

	var raw []byte
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return errMiss
		}
		if err != nil {
			return fmt.Errorf("get: %w", err)
		}
		raw, err = item.ValueCopy(nil)
		return err
	})

	if errors.Is(err, errMiss) {
		metrics.CacheMissTotal.WithLabelValues(corpus).Inc()
		c.logger.Debug("corpuscache: miss", "corpus", corpus, "hash", shortHash(corpusHash))
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, ierrors.IO("corpuscache.Get", err)
	}

	var entry Entry
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&entry); err != nil {
		return Entry{}, false, ierrors.CorruptIndex("corpuscache.Get", err)
	}
	metrics.CacheHitTotal.WithLabelValues(corpus).Inc()
	c.logger.Debug("corpuscache: hit", "corpus", corpus, "hash", shortHash(corpusHash))
	return entry, true, nil
}

// Put stores entry under corpusHash with the cache's configured TTL.
// corpus is the human-readable corpus name, used only for log fields.
func (c *Cache) Put(corpus, corpusHash string, entry Entry) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(entry); err != nil {
		return ierrors.Input("corpuscache.Put", err)
	}

	key := []byte(keyPrefix + corpusHash)
	err := c.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry(key, buf.Bytes())
		if c.ttl > 0 {
			e = e.WithTTL(c.ttl)
		}
		return txn.SetEntry(e)
	})
	if err != nil {
		return ierrors.IO("corpuscache.Put", err)
	}
	c.logger.Debug("corpuscache: saved", "corpus", corpus, "hash", shortHash(corpusHash), "terms", len(entry.Dict))
	return nil
}

func shortHash(h string) string {
	if len(h) > 8 {
		return h[:8] + "..."
	}
	return h
}

// ContentHash computes a deterministic hex SHA256 digest over the byte
// contents of a corpus's source artifacts (e.g. dictionary.txt followed by
// norms.json), so any change to the built index invalidates cached entries
// without an explicit invalidation API.
func ContentHash(parts ...[]byte) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write(p)
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
