package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommandSubcommands(t *testing.T) {
	root := newRootCmd()

	want := []string{"migrate", "collectstatic", "serve", "bootstrap", "createuser", "version", "completion"}
	for _, name := range want {
		found := false
		for _, sub := range root.Commands() {
			if sub.Name() == name {
				found = true
				break
			}
		}
		assert.True(t, found, "missing subcommand %s", name)
	}
}

func TestBootstrapAlias(t *testing.T) {
	root := newRootCmd()
	cmd, _, err := root.Find([]string{"up"})
	require.NoError(t, err)
	assert.Equal(t, "bootstrap", cmd.Name())
}

func writeTestConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
database:
  path: orion.db
pds:
  hostname: https://pds.example.com
logging:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLogFlagOverridesConfigLevel(t *testing.T) {
	path := writeTestConfig(t)

	// An explicit --log wins over the config file, even at the default value.
	root := newRootCmd()
	require.NoError(t, root.ParseFlags([]string{"--config", path, "--log", "info"}))
	cfg, err := resolveConfig(root)
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.Logging.Level)

	// Without the flag the config file's level stands.
	root = newRootCmd()
	require.NoError(t, root.ParseFlags([]string{"--config", path}))
	cfg, err = resolveConfig(root)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestRootShowsHelp(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{})
	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "Orion")
}
