package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	cfg := Default("Acme Holdings", "1737523")
	cfg.Oracle.Command = []string{"python3", "oracle.py", "--model", "large"}
	cfg.Oracle.Timeout = 90 * time.Second
	cfg.Metrics.Textfile = "logs/proforma.prom"

	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, Save(path, cfg))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}

func TestDefaults(t *testing.T) {
	cfg := Default("Acme Holdings", "1737523")

	assert.Equal(t, "Acme Holdings", cfg.Filer.Name)
	assert.Equal(t, "1737523", cfg.Filer.CIK)
	assert.Empty(t, cfg.Oracle.Command)
	assert.Equal(t, 2*time.Minute, cfg.Oracle.Timeout)
	assert.Equal(t, uint32(3), cfg.Oracle.Breaker.MaxFailures)
	assert.Equal(t, time.Minute, cfg.Oracle.Breaker.OpenTimeout)
	assert.Equal(t, 32, cfg.Engine.MaxDepth)
	assert.Equal(t, 4, cfg.Batch.Concurrency)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.True(t, cfg.Git.AutoCommit)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, []byte("filer:\n  name: Globex\noracle:\n  timeout: 45s\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "Globex", cfg.Filer.Name)
	assert.Equal(t, 45*time.Second, cfg.Oracle.Timeout)
	assert.Equal(t, uint32(3), cfg.Oracle.Breaker.MaxFailures)
	assert.Equal(t, 4, cfg.Batch.Concurrency)
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, Save(path, Default("Acme Holdings", "1737523")))

	t.Setenv("PROFORMA_ORACLE_COMMAND", "python3,oracle.py")
	t.Setenv("PROFORMA_ORACLE_TIMEOUT", "5s")
	t.Setenv("PROFORMA_ORACLE_BREAKER_MAX_FAILURES", "7")
	t.Setenv("PROFORMA_BATCH_CONCURRENCY", "16")
	t.Setenv("PROFORMA_LOG_LEVEL", "debug")
	t.Setenv("PROFORMA_GIT_AUTO_COMMIT", "false")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"python3", "oracle.py"}, cfg.Oracle.Command)
	assert.Equal(t, 5*time.Second, cfg.Oracle.Timeout)
	assert.Equal(t, uint32(7), cfg.Oracle.Breaker.MaxFailures)
	assert.Equal(t, 16, cfg.Batch.Concurrency)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.False(t, cfg.Git.AutoCommit)
	assert.Equal(t, "Acme Holdings", cfg.Filer.Name, "unset variables leave the file's values")
}

func TestLoad_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, []byte("log:\n  format: xml\n"), 0o644))

	_, err := Load(path)
	assert.ErrorContains(t, err, "invalid config")

	t.Setenv("PROFORMA_BATCH_CONCURRENCY", "many")
	_, err = LoadOrDefault(filepath.Join(t.TempDir(), FileName))
	assert.ErrorContains(t, err, "reading environment")
}

func TestLoadNotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nonexistent.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadOrDefault_Missing(t *testing.T) {
	t.Setenv("PROFORMA_ENGINE_MAX_DEPTH", "8")

	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), FileName))
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Engine.MaxDepth)
	assert.Equal(t, 4, cfg.Batch.Concurrency)
}

func TestYAMLFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, Save(path, Default("Acme Holdings", "1737523")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	contents := string(data)

	assert.Contains(t, contents, "name: Acme Holdings")
	assert.Contains(t, contents, `cik: "1737523"`)
	assert.Contains(t, contents, "timeout: 2m0s")
	assert.Contains(t, contents, "max_failures: 3")
	assert.Contains(t, contents, "auto_commit: true")
	assert.NotContains(t, contents, "replay_file")
}
