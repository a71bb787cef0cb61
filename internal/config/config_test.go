package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := Default()
	require.Equal(t, ":8080", cfg.Server.Addr)
	require.Equal(t, "sqlite", cfg.Store.Dialect)
	require.Equal(t, "coding-agent", cfg.DefaultExecutor)
}

func TestInitWritesConfigFile(t *testing.T) {
	dir := t.TempDir()
	cwd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	defer os.Chdir(cwd)

	require.NoError(t, Init(false))
	_, err = os.Stat(filepath.Join(OrcDir, ConfigFileName))
	require.NoError(t, err, "config file not written")

	require.Error(t, Init(false), "Init should refuse overwriting an existing config without force")
	require.NoError(t, Init(true), "Init(force=true) should overwrite")
}

func TestLoadFallsBackToDefaultsWithoutConfigFile(t *testing.T) {
	dir := t.TempDir()
	cwd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	defer os.Chdir(cwd)

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 10, cfg.Server.MaxPortAttempts)
}

func TestLoadReadsProjectConfigFile(t *testing.T) {
	dir := t.TempDir()
	cwd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	defer os.Chdir(cwd)

	require.NoError(t, os.MkdirAll(OrcDir, 0o755))
	content := "server:\n  addr: \":9090\"\nstore:\n  dialect: postgres\n"
	require.NoError(t, os.WriteFile(filepath.Join(OrcDir, ConfigFileName), []byte(content), 0o644))

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.Server.Addr)
	require.Equal(t, "postgres", cfg.Store.Dialect)
}
