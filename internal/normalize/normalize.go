// Package normalize implements the deterministic text-normalization
// pipeline shared by the SPIMI block builder and the query path: fold to
// lowercase, strip characters outside the accent-preserving alphanumeric
// set, collapse whitespace, drop stopwords, and stem.
package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/sondeo/sondeo/internal/ierrors"
)

// Language selects the stopword set and stemmer. Supported: "spanish"
// (the default) and "english".
type Language string

const (
	Spanish Language = "spanish"
	English Language = "english"
)

// Normalizer is a stateless, thread-safe token-stream producer for one
// configured language. Construct once per language and reuse across
// documents and queries.
type Normalizer struct {
	lang      Language
	stopwords map[string]struct{}
}

// New builds a Normalizer for lang. An unsupported language returns a
// *ierrors.Error with ierrors.KindConfig.
func New(lang Language) (*Normalizer, error) {
	var sw map[string]struct{}
	switch lang {
	case Spanish:
		sw = spanishStopwords
	case English:
		sw = englishStopwords
	default:
		return nil, ierrors.Config("normalize.New", errUnknownLanguage(lang))
	}
	return &Normalizer{lang: lang, stopwords: sw}, nil
}

// Tokens runs the full C1 pipeline over s and returns the ordered sequence
// of normalized tokens. Empty input yields an empty, non-nil slice.
func (n *Normalizer) Tokens(s string) []string {
	folded := strings.ToLower(norm.NFC.String(s))
	filtered := filterAlphanumericAccented(folded)
	fields := strings.Fields(filtered)

	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if _, stop := n.stopwords[f]; stop {
			continue
		}
		stemmed, err := stem(f, n.lang)
		if err != nil {
			// The stemmer only fails for an unsupported language, which New
			// already rejects; skip defensively rather than propagate.
			continue
		}
		tokens = append(tokens, stemmed)
	}
	return tokens
}

// filterAlphanumericAccented replaces every maximal run of characters
// outside [a-z 0-9 á é í ó ú ñ ü] with a single space.
func filterAlphanumericAccented(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prevSpace := false
	for _, r := range s {
		if isAllowed(r) {
			b.WriteRune(r)
			prevSpace = false
			continue
		}
		if !prevSpace {
			b.WriteRune(' ')
			prevSpace = true
		}
	}
	return b.String()
}

func isAllowed(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z':
		return true
	case r >= '0' && r <= '9':
		return true
	}
	switch r {
	case 'á', 'é', 'í', 'ó', 'ú', 'ñ', 'ü':
		return true
	}
	return unicode.IsSpace(r)
}

type errUnknownLanguage Language

func (e errUnknownLanguage) Error() string {
	return "unknown stemmer language: " + string(e)
}
