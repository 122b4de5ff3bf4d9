package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()

	t.Run("partial file keeps defaults", func(t *testing.T) {
		path := filepath.Join(dir, "partial.toml")
		require.NoError(t, os.WriteFile(path, []byte("[generation]\ntemperature = 0.2\ntop_k = 10\n\n[generation.gpu]\nenabled = true\nlayers = -1\n"), 0o644))

		cfg, err := LoadFile(path)
		require.NoError(t, err)

		assert.Equal(t, 0.2, cfg.Generation.Temperature)
		assert.Equal(t, 10, cfg.Generation.TopK)
		assert.True(t, cfg.Generation.GPU.Enabled)
		assert.Equal(t, -1, cfg.Generation.GPU.Layers)
		assert.Equal(t, DefaultGeneration().ModelPath, cfg.Generation.ModelPath)
		assert.Equal(t, 2048, cfg.Generation.ContextSize)
	})

	t.Run("unknown keys are rejected", func(t *testing.T) {
		path := filepath.Join(dir, "typo.toml")
		require.NoError(t, os.WriteFile(path, []byte("[generation]\ntemprature = 0.2\n"), 0o644))

		_, err := LoadFile(path)
		assert.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadFile(filepath.Join(dir, "nope.toml"))
		assert.ErrorIs(t, err, os.ErrNotExist)
	})
}

func TestApplyGenerationEnv(t *testing.T) {
	t.Setenv("LLM_TEMPERATURE", "0.5")
	t.Setenv("LLM_MAX_TOKENS", "64")
	t.Setenv("LLM_USE_GPU", "true")
	t.Setenv("LLM_TOP_K", "not-a-number")

	g := applyGenerationEnv(DefaultGeneration())

	assert.Equal(t, 0.5, g.Temperature)
	assert.Equal(t, 64, g.MaxTokens)
	assert.True(t, g.GPU.Enabled)
	assert.Equal(t, 40, g.TopK)
}
