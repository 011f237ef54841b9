package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 2, cfg.Server.Workers)
	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0:8000", cfg.Server.Addr())
	assert.Equal(t, 10*time.Second, cfg.PDS.Timeout.Std())
	require.NoError(t, cfg.Validate())
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  host: 127.0.0.1
  port: 9000
  workers: 4
  static_root: /srv/orion/static
  session_ttl: 2h
database:
  path: /srv/orion/orion.db
pds:
  hostname: https://pds.example.com
  timeout: 15s
logging:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr())
	assert.Equal(t, 4, cfg.Server.Workers)
	assert.Equal(t, 2*time.Hour, cfg.Server.SessionTTL.Std())
	assert.Equal(t, "https://pds.example.com", cfg.PDS.Hostname)
	assert.Equal(t, 15*time.Second, cfg.PDS.Timeout.Std())
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadMissingExplicitFileErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadInvalidDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("pds:\n  timeout: soon\n"), 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidationRejectsBadPort(t *testing.T) {
	cfg := Default()
	cfg.Server.Port = 0
	assert.Error(t, cfg.Validate())
}

func TestSecretsEnvAndEnvironmentOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("pds:\n  hostname: https://pds.example.com\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "secrets.env"),
		[]byte("PDS_ADMIN_PASSWORD=from-secrets\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-secrets", cfg.PDS.AdminPassword)

	// Process environment wins over secrets.env.
	t.Setenv("PDS_ADMIN_PASSWORD", "from-env")
	cfg, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.PDS.AdminPassword)
}

func TestDurationYAMLRoundTrip(t *testing.T) {
	d := Duration(90 * time.Second)
	out, err := d.MarshalYAML()
	require.NoError(t, err)
	assert.Equal(t, "1m30s", out)
}
