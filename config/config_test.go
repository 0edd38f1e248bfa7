package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/psharp-go/psharp/config"
)

func TestLoadWithNoPathReturnsDefaults(t *testing.T) {
	cfg, err := config.NewLoader().Load("")
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)
}

func TestLoadTOMLFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "psharp.toml")
	writeFile(t, path, `
strategy = "dfs"
seed = 42
iterations = 7
`)

	cfg, err := config.NewLoader().Load(path)
	require.NoError(t, err)
	assert.Equal(t, "dfs", cfg.Strategy)
	assert.Equal(t, uint64(42), cfg.Seed)
	assert.Equal(t, 7, cfg.Iterations)
	// Untouched fields keep their default values.
	assert.Equal(t, config.Default().MaxSteps, cfg.MaxSteps)
}

func TestLoadYAMLFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "psharp.yaml")
	writeFile(t, path, "strategy: pct\nseed: 99\n")

	cfg, err := config.NewLoader().Load(path)
	require.NoError(t, err)
	assert.Equal(t, "pct", cfg.Strategy)
	assert.Equal(t, uint64(99), cfg.Seed)
}

func TestLoadRejectsUnrecognizedExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "psharp.ini")
	writeFile(t, path, "strategy=dfs\n")

	_, err := config.NewLoader().Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsMissingFile(t *testing.T) {
	_, err := config.NewLoader().Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestEnvOverridesTakePrecedenceOverFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "psharp.toml")
	writeFile(t, path, "strategy = \"dfs\"\nseed = 1\n")

	t.Setenv("PSHARP_STRATEGY", "random")
	t.Setenv("PSHARP_SEED", "777")
	t.Setenv("PSHARP_WATCH", "true")

	cfg, err := config.NewLoader().Load(path)
	require.NoError(t, err)
	assert.Equal(t, "random", cfg.Strategy)
	assert.Equal(t, uint64(777), cfg.Seed)
	assert.True(t, cfg.Watch)
}

func TestEnvOverrideRejectsUncoercibleValue(t *testing.T) {
	t.Setenv("PSHARP_SEED", "not-a-number")
	_, err := config.NewLoader().Load("")
	assert.Error(t, err)
}

func writeFile(t *testing.T, path, contents string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
}
