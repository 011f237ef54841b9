package staticfiles

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func readManifest(t *testing.T, root string) map[string]string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(root, ManifestName))
	require.NoError(t, err)
	manifest := map[string]string{}
	require.NoError(t, json.Unmarshal(data, &manifest))
	return manifest
}

func TestCollectCopiesAndHashes(t *testing.T) {
	source := t.TempDir()
	root := t.TempDir()
	writeFile(t, filepath.Join(source, "css", "app.css"), "body { color: red }")
	writeFile(t, filepath.Join(source, "logo.svg"), "<svg/>")

	result, err := Collect(root, []string{source})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Collected)
	assert.Zero(t, result.Skipped)

	// Originals are copied verbatim.
	content, err := os.ReadFile(filepath.Join(root, "css", "app.css"))
	require.NoError(t, err)
	assert.Equal(t, "body { color: red }", string(content))

	// Hashed variants exist and are recorded in the manifest.
	manifest := readManifest(t, root)
	hashed, ok := manifest["css/app.css"]
	require.True(t, ok)
	assert.Regexp(t, `^css/app\.[0-9a-f]{8}\.css$`, hashed)
	_, err = os.Stat(filepath.Join(root, filepath.FromSlash(hashed)))
	assert.NoError(t, err)
}

func TestCollectIsIdempotent(t *testing.T) {
	source := t.TempDir()
	root := t.TempDir()
	writeFile(t, filepath.Join(source, "app.js"), "console.log(1)")

	first, err := Collect(root, []string{source})
	require.NoError(t, err)
	assert.Equal(t, 1, first.Collected)

	second, err := Collect(root, []string{source})
	require.NoError(t, err)
	assert.Zero(t, second.Collected)
	assert.Equal(t, 1, second.Skipped)
}

func TestCollectChangedFileRecollected(t *testing.T) {
	source := t.TempDir()
	root := t.TempDir()
	writeFile(t, filepath.Join(source, "app.js"), "v1")

	_, err := Collect(root, []string{source})
	require.NoError(t, err)
	old := readManifest(t, root)["app.js"]

	writeFile(t, filepath.Join(source, "app.js"), "v2")
	result, err := Collect(root, []string{source})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Collected)

	updated := readManifest(t, root)["app.js"]
	assert.NotEqual(t, old, updated, "content change must produce a new hashed name")
}

func TestCollectLaterSourcesWin(t *testing.T) {
	first := t.TempDir()
	second := t.TempDir()
	root := t.TempDir()
	writeFile(t, filepath.Join(first, "app.css"), "from-first")
	writeFile(t, filepath.Join(second, "app.css"), "from-second")

	_, err := Collect(root, []string{first, second})
	require.NoError(t, err)

	content, err := os.ReadFile(filepath.Join(root, "app.css"))
	require.NoError(t, err)
	assert.Equal(t, "from-second", string(content))
}

func TestCollectMissingSourceSkipped(t *testing.T) {
	source := t.TempDir()
	root := t.TempDir()
	writeFile(t, filepath.Join(source, "app.css"), "x")

	result, err := Collect(root, []string{filepath.Join(source, "does-not-exist"), source})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Collected)
}

func TestCollectRequiresRoot(t *testing.T) {
	_, err := Collect("", nil)
	assert.Error(t, err)
}
