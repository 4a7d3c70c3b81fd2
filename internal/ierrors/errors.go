// Package ierrors defines the typed error taxonomy shared by the text and
// image retrieval pipelines: InputError, MissingArtifact, CorruptIndex,
// IOError, and ConfigError.
package ierrors

import (
	"errors"
	"fmt"
)

// Kind classifies an error for callers that branch on error category
// (e.g. deciding whether a build should skip a record or abort).
type Kind string

const (
	// KindInput marks a malformed corpus row, non-UTF-8 text, or
	// unreadable image bytes. Build-time occurrences are logged and the
	// offending record is skipped; query-time occurrences yield an empty
	// result.
	KindInput Kind = "input"

	// KindMissingArtifact marks a required on-disk artifact (dictionary,
	// postings, norms, codebook, …) that does not exist for the requested
	// corpus. Always terminal.
	KindMissingArtifact Kind = "missing_artifact"

	// KindCorruptIndex marks an internally inconsistent index: an offset
	// past EOF, a postings record that fails to parse, or a df claim that
	// does not match the actual posting count. Always terminal; the index
	// must be rebuilt.
	KindCorruptIndex Kind = "corrupt_index"

	// KindIO marks a filesystem or disk failure. Fatal for builds;
	// returned to the caller for queries.
	KindIO Kind = "io"

	// KindConfig marks an invalid configuration: unknown stemmer language,
	// K <= 0, k <= 0, batch size <= 0.
	KindConfig Kind = "config"
)

// Error is the concrete error type carried through the pipeline. Op names
// the failing operation (e.g. "spimi.Flush", "merge.Run") for diagnostics.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error with the same Kind, so callers can
// write errors.Is(err, ierrors.ErrCorruptIndex) style checks against the
// Kind sentinels below.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Kind == t.Kind
	}
	return false
}

// Sentinels usable with errors.Is(err, ierrors.ErrX) by constructing a bare
// *Error carrying only the Kind to compare against.
var (
	ErrInput           = &Error{Kind: KindInput}
	ErrMissingArtifact = &Error{Kind: KindMissingArtifact}
	ErrCorruptIndex    = &Error{Kind: KindCorruptIndex}
	ErrIO              = &Error{Kind: KindIO}
	ErrConfig          = &Error{Kind: KindConfig}
)

// New constructs an *Error of the given kind wrapping err, or returns nil
// if err is nil — so callers can write "return ierrors.IO(op, f.Close())"
// directly without an intermediate nil check.
func New(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// Input is a convenience constructor for KindInput.
func Input(op string, err error) error { return New(KindInput, op, err) }

// MissingArtifact is a convenience constructor for KindMissingArtifact.
func MissingArtifact(op string, err error) error { return New(KindMissingArtifact, op, err) }

// CorruptIndex is a convenience constructor for KindCorruptIndex.
func CorruptIndex(op string, err error) error { return New(KindCorruptIndex, op, err) }

// IO is a convenience constructor for KindIO.
func IO(op string, err error) error { return New(KindIO, op, err) }

// Config is a convenience constructor for KindConfig.
func Config(op string, err error) error { return New(KindConfig, op, err) }
