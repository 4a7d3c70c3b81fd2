package indexfile

import (
	"encoding/json"
	"os"

	"github.com/sondeo/sondeo/internal/ierrors"
)

// Norms is a docId → L2-norm map. Text-side norms are computed from weights
// that use the raw ln(N/df) IDF; image-side norms from weights that use
// ln(N/(df+1)). These are distinct
// files with distinct semantics and must never be mixed, so the two
// callers each keep their own path.
type Norms map[string]float64

// WriteNorms writes norms as a JSON object to path.
func WriteNorms(path string, norms Norms) error {
	b, err := json.Marshal(norms)
	if err != nil {
		return ierrors.IO("WriteNorms", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return ierrors.IO("WriteNorms", err)
	}
	return nil
}

// LoadNorms reads norms.json from path.
func LoadNorms(path string) (Norms, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ierrors.MissingArtifact("LoadNorms", err)
		}
		return nil, ierrors.IO("LoadNorms", err)
	}
	var norms Norms
	if err := json.Unmarshal(b, &norms); err != nil {
		return nil, ierrors.CorruptIndex("LoadNorms", err)
	}
	return norms, nil
}
