package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test helper: run the test from an empty working directory so no stray
// .env file is picked up
func chdirTemp(t *testing.T) string {
	dir := t.TempDir()
	t.Chdir(dir)
	return dir
}

func TestLoadConfigFile_NoFile(t *testing.T) {
	cfg, err := LoadConfigFile(filepath.Join(t.TempDir(), "oppfeed.yaml"))
	require.NoError(t, err)
	assert.Nil(t, cfg, "Should return nil when config file doesn't exist")
}

func TestLoadConfigFile_ValidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "oppfeed.yaml")
	configContent := `data_dir: "/srv/oppfeed"
sources:
  type: "sqlite"
  dsn: "/srv/oppfeed/metadata.db"
metadata:
  dsn: "/srv/oppfeed/metadata.db"
fetch:
  timeout: 45s
  user_agent: "test-agent"
api:
  listen_addr: ":9090"
log:
  level: "debug"
`
	require.NoError(t, os.WriteFile(path, []byte(configContent), 0o600))

	cfg, err := LoadConfigFile(path)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "/srv/oppfeed", cfg.DataDir)
	assert.Equal(t, SourcesSQLite, cfg.Sources.Type)
	assert.Equal(t, "/srv/oppfeed/metadata.db", cfg.Sources.DSN)
	assert.Equal(t, "/srv/oppfeed/metadata.db", cfg.Metadata.DSN)
	assert.Equal(t, 45*time.Second, cfg.Fetch.Timeout)
	assert.Equal(t, "test-agent", cfg.Fetch.UserAgent)
	assert.Equal(t, ":9090", cfg.API.ListenAddr)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadConfigFile_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "oppfeed.yaml")
	invalidContent := `sources:
  - this is invalid yaml because sources should be an object not a list
`
	require.NoError(t, os.WriteFile(path, []byte(invalidContent), 0o600))

	cfg, err := LoadConfigFile(path)
	assert.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "failed to parse config file")
}

func TestLoadConfigFile_PartialConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "oppfeed.yaml")
	require.NoError(t, os.WriteFile(path, []byte("data_dir: \"./other\"\n"), 0o600))

	cfg, err := LoadConfigFile(path)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "./other", cfg.DataDir)
	assert.Equal(t, SourcesFile, cfg.Sources.Type, "unspecified fields keep their defaults")
	assert.Equal(t, 30*time.Second, cfg.Fetch.Timeout)
	assert.Equal(t, "", cfg.Metadata.DSN)
}

func TestLoad_Defaults(t *testing.T) {
	dir := chdirTemp(t)

	cfg, err := Load(filepath.Join(dir, "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)
	path := filepath.Join(dir, "oppfeed.yaml")
	require.NoError(t, os.WriteFile(path, []byte("data_dir: from-file\nfetch:\n  timeout: 10s\n"), 0o600))

	t.Setenv("OPPFEED_DATA_DIR", "from-env")
	t.Setenv("OPPFEED_FETCH_TIMEOUT", "5s")
	t.Setenv("OPPFEED_METADATA_DSN", "ledger.db")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.DataDir)
	assert.Equal(t, 5*time.Second, cfg.Fetch.Timeout)
	assert.Equal(t, "ledger.db", cfg.Metadata.DSN)
}

func TestLoad_DotEnv(t *testing.T) {
	dir := chdirTemp(t)
	// Setenv restores the previous value on cleanup; the variable must be
	// unset for .env to apply.
	t.Setenv("OPPFEED_LISTEN_ADDR", "")
	os.Unsetenv("OPPFEED_LISTEN_ADDR")
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("OPPFEED_LISTEN_ADDR=0.0.0.0:7000\n"), 0o600))

	cfg, err := Load(filepath.Join(dir, "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:7000", cfg.API.ListenAddr)
}

func TestLoad_InvalidEnvDuration(t *testing.T) {
	dir := chdirTemp(t)
	t.Setenv("OPPFEED_FETCH_TIMEOUT", "soon")

	_, err := Load(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OPPFEED_FETCH_TIMEOUT")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"defaults are valid", func(*Config) {}, ""},
		{"empty data dir", func(c *Config) { c.DataDir = "" }, "data_dir"},
		{"unknown sources type", func(c *Config) { c.Sources.Type = "postgres" }, "sources.type"},
		{"sqlite without dsn", func(c *Config) { c.Sources.Type = SourcesSQLite }, "sources.dsn"},
		{"zero timeout", func(c *Config) { c.Fetch.Timeout = 0 }, "fetch.timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}
