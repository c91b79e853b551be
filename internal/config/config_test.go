package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, "./data/weconnect.db", cfg.DB)
	assert.Equal(t, "deepl", cfg.Provider.Name)
	assert.Equal(t, 2*time.Second, cfg.Provider.PollInterval)
	assert.Equal(t, 3, cfg.Provider.RateLimitRetries)
	assert.InDelta(t, 5.0, cfg.Provider.RequestsPerSecond, 1e-9)
	assert.Equal(t, 3, cfg.Orchestrator.BatchSize)
	assert.Equal(t, 2*time.Second, cfg.Orchestrator.BatchDelay)
	assert.GreaterOrEqual(t, cfg.Provider.DocumentTimeout, cfg.Orchestrator.DocumentTimeout,
		"the orchestrator deadline governs document waits by default")
	assert.InDelta(t, 0.7, cfg.Orchestrator.OverrideThreshold, 1e-9)
	assert.Equal(t, "http://localhost:8080", cfg.Orchestrator.ReviewBaseURL)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, int64(32<<20), cfg.Server.MaxUploadBytes)
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("WECONNECT_PROVIDER_API_KEY", "secret:fx")
	t.Setenv("WECONNECT_ORCHESTRATOR_BATCH_SIZE", "5")
	t.Setenv("WECONNECT_ORCHESTRATOR_BATCH_DELAY", "500ms")
	t.Setenv("WECONNECT_REVIEW_BASE_URL", "https://review.example.com/")

	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, "secret:fx", cfg.Provider.APIKey)
	assert.Equal(t, 5, cfg.Orchestrator.BatchSize)
	assert.Equal(t, 500*time.Millisecond, cfg.Orchestrator.BatchDelay)
	assert.Equal(t, "https://review.example.com", cfg.Orchestrator.ReviewBaseURL)
	assert.NoError(t, cfg.RequireCredentials())
}

func TestLoad_DotEnvAndFlags(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("WECONNECT_DB=/var/lib/weconnect/from-env.db\nWECONNECT_LOG_FORMAT=json\n"), 0o644))
	t.Cleanup(func() {
		os.Unsetenv("WECONNECT_DB")
		os.Unsetenv("WECONNECT_LOG_FORMAT")
	})

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("db", "", "")
	flags.String("log-format", "text", "")
	require.NoError(t, flags.Parse([]string{"--db", "/tmp/from-flag.db"}))

	cfg, err := Load(envFile, flags)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/from-flag.db", cfg.DB, "a changed flag wins over the environment")
	assert.Equal(t, "json", cfg.LogFormat, "an unchanged flag does not shadow the environment")
}

func TestLoad_MissingDotEnvIsIgnored(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.env"), nil)
	assert.NoError(t, err)
}

func TestLoad_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "weconnect.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
provider:
  name: google
  credentials: /etc/weconnect/sa.json
orchestrator:
  batch_size: 2
  document_timeout: 5m
`), 0o644))

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("config", "", "")
	require.NoError(t, flags.Parse([]string{"--config", path}))

	cfg, err := Load("", flags)
	require.NoError(t, err)
	assert.Equal(t, "google", cfg.Provider.Name)
	assert.Equal(t, "/etc/weconnect/sa.json", cfg.Provider.Credentials)
	assert.Equal(t, 2, cfg.Orchestrator.BatchSize)
	assert.Equal(t, 5*time.Minute, cfg.Orchestrator.DocumentTimeout)
	assert.NoError(t, cfg.RequireCredentials())
}

func TestLoad_Invalid(t *testing.T) {
	t.Setenv("WECONNECT_PROVIDER_NAME", "babelfish")
	t.Setenv("WECONNECT_ORCHESTRATOR_OVERRIDE_THRESHOLD", "1.5")

	_, err := Load("", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "babelfish")
	assert.Contains(t, err.Error(), "override_threshold")
}

func TestRequireCredentials(t *testing.T) {
	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Error(t, cfg.RequireCredentials())
}
