package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "spanish", cfg.Text.Language)
	assert.Equal(t, 1000, cfg.Image.K)
}

func TestLoadOverridesLayerOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sondeo.yaml")
	require.NoError(t, os.WriteFile(path, []byte("text:\n  language: english\nimage:\n  k: 256\n  sample_size: 500\n  batch_size: 128\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "english", cfg.Text.Language)
	assert.Equal(t, 256, cfg.Image.K)
	// Untouched sections keep their embedded default.
	assert.Equal(t, 10485760, cfg.Text.MemoryBudgetBytes)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestValidateRejectsUnknownLanguage(t *testing.T) {
	cfg := Default()
	cfg.Text.Language = "klingon"
	require.Error(t, cfg.Validate())
}

func TestValidateRejectsNonPositiveK(t *testing.T) {
	cfg := Default()
	cfg.Image.K = 0
	require.Error(t, cfg.Validate())
}
