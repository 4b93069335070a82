package scaffold

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyluth/auditor/internal/config"
	"github.com/dyluth/auditor/internal/dataset"
)

func TestInitialize(t *testing.T) {
	dir := t.TempDir()

	require.NoError(t, CheckExisting(dir))

	created, err := Initialize(dir, false)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"audit.yml",
		filepath.Join("datasets", "requirements.yml"),
		filepath.Join("datasets", "implementation.yml"),
	}, created)

	cfg, err := config.Load(filepath.Join(dir, "audit.yml"))
	require.NoError(t, err)
	assert.Equal(t, "xai", cfg.Provider.Name)
	assert.Equal(t, 40, cfg.Orchestrator.MaxTurns)

	d1, err := dataset.Load(filepath.Join(dir, "datasets", "requirements.yml"))
	require.NoError(t, err)
	assert.Len(t, d1, 2)

	d2, err := dataset.Load(filepath.Join(dir, "datasets", "implementation.yml"))
	require.NoError(t, err)
	require.Len(t, d2, 1)
	assert.Contains(t, d2[0].Content, "password.length < 12")

	var out bytes.Buffer
	PrintSuccess(&out, created)
	assert.Contains(t, out.String(), "✓ audit.yml")
	assert.Contains(t, out.String(), "auditor run --run my-audit")
}

func TestCheckExisting(t *testing.T) {
	t.Run("single file", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "audit.yml"), []byte("version: \"1.0\"\n"), 0o644))

		err := CheckExisting(dir)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Found existing: audit.yml")
		assert.Contains(t, err.Error(), "auditor init --force")
	})

	t.Run("multiple files", func(t *testing.T) {
		dir := t.TempDir()
		_, err := Initialize(dir, false)
		require.NoError(t, err)

		err = CheckExisting(dir)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Found existing files:")
		assert.Contains(t, err.Error(), "  - audit.yml")
	})
}

func TestInitialize_ForceOverwrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "audit.yml")
	require.NoError(t, os.WriteFile(path, []byte("provider: {name: nonsense}\n"), 0o644))

	_, err := Initialize(dir, true)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "name: xai")
}
