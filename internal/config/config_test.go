package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fenlang/fen/internal/db"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fen.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	t.Parallel()
	cfg, err := Load(filepath.Join(t.TempDir(), "fen.toml"))
	require.NoError(t, err)
	assert.Equal(t, "out", cfg.OutputDir)
	assert.Equal(t, []string{"c"}, cfg.Targets)
	assert.Empty(t, cfg.CachePath)
	assert.False(t, cfg.Parallel)
}

func TestLoad_FullFile(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, `
output_dir = "gen"
targets = ["c", "rust"]
cache_path = ".fen-cache.db"
parallel = true
c_headers = true
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "gen", cfg.OutputDir)
	assert.Equal(t, []string{"c", "rust"}, cfg.Targets)
	assert.Equal(t, ".fen-cache.db", cfg.CachePath)
	assert.True(t, cfg.Parallel)
	assert.True(t, cfg.CHeaders)
}

func TestLoad_UnknownKeyRejected(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, `outputdir = "gen"`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown key")
}

func TestResolveTargets(t *testing.T) {
	t.Parallel()
	got, err := ResolveTargets([]string{"c", "rust", "python"})
	require.NoError(t, err)
	assert.Equal(t, []db.Target{db.TargetC, db.TargetRust, db.TargetPython}, got)

	_, err = ResolveTargets([]string{"go"})
	assert.Error(t, err)
}
