package ierrors

import (
	"errors"
	"testing"
)

func TestErrorIsMatchesByKind(t *testing.T) {
	err := CorruptIndex("merge.Run", errors.New("offset past EOF"))

	if !errors.Is(err, ErrCorruptIndex) {
		t.Fatalf("expected errors.Is to match ErrCorruptIndex, got %v", err)
	}
	if errors.Is(err, ErrIO) {
		t.Fatalf("did not expect errors.Is to match ErrIO")
	}
}

func TestErrorUnwrap(t *testing.T) {
	inner := errors.New("disk full")
	err := IO("spimi.Flush", inner)

	if !errors.Is(err, inner) {
		t.Fatalf("expected Unwrap to expose the inner error")
	}
}

func TestConstructorsPassThroughNil(t *testing.T) {
	if err := IO("documents.Close", nil); err != nil {
		t.Fatalf("IO(op, nil) = %v, want nil", err)
	}
	if err := CorruptIndex("merge.Run", nil); err != nil {
		t.Fatalf("CorruptIndex(op, nil) = %v, want nil", err)
	}
}

func TestErrorMessageIncludesOpAndKind(t *testing.T) {
	err := Config("vocabulary.Train", errors.New("K must be > 0"))
	want := "vocabulary.Train: config: K must be > 0"
	if err.Error() != want {
		t.Fatalf("Error() = %q, want %q", err.Error(), want)
	}
}
