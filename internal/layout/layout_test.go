package layout

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFingerprintStableAcrossSpellings(t *testing.T) {
	dir := t.TempDir()

	abs, err := Fingerprint(dir)
	require.NoError(t, err)
	assert.Len(t, abs, fingerprintLen)

	// Relative spelling of the same location.
	wd, err := os.Getwd()
	require.NoError(t, err)
	rel, err := filepath.Rel(wd, dir)
	require.NoError(t, err)

	relFp, err := Fingerprint(rel)
	require.NoError(t, err)
	assert.Equal(t, abs, relFp)

	// Redundant path elements.
	dotted, err := Fingerprint(filepath.Join(dir, "sub", ".."))
	require.NoError(t, err)
	assert.Equal(t, abs, dotted)

	// Trailing separator.
	trailing, err := Fingerprint(dir + string(os.PathSeparator))
	require.NoError(t, err)
	assert.Equal(t, abs, trailing)
}

func TestFingerprintDistinctRoots(t *testing.T) {
	seen := make(map[string]string)
	for i := 0; i < 500; i++ {
		p := filepath.Join("/repos", fmt.Sprintf("project-%d", i))
		fp, err := Fingerprint(p)
		require.NoError(t, err)
		if prev, ok := seen[fp]; ok {
			t.Fatalf("fingerprint collision: %q and %q both map to %s", prev, p, fp)
		}
		seen[fp] = p
	}
}

func TestFingerprintInvalidPath(t *testing.T) {
	_, err := Fingerprint("")
	assert.ErrorIs(t, err, ErrInvalidPath)

	_, err = Fingerprint("   ")
	assert.ErrorIs(t, err, ErrInvalidPath)
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("chunk")
	require.NoError(t, err)
	assert.Equal(t, ModeChunk, m)

	m, err = ParseMode("file")
	require.NoError(t, err)
	assert.Equal(t, ModeFile, m)

	_, err = ParseMode("paragraph")
	assert.Error(t, err)
}

func TestResolveLayout(t *testing.T) {
	repo := t.TempDir()
	fp, err := Fingerprint(repo)
	require.NoError(t, err)

	l, err := Resolve("processed", repo, ModeChunk)
	require.NoError(t, err)
	assert.Equal(t, fp, l.Fingerprint)
	assert.Equal(t, filepath.Join("processed", fp, "chunk", "index"), l.IndexDir)
	assert.Equal(t, filepath.Join("processed", fp, "chunk", "summary-cache"), l.SummaryDir)
	assert.Equal(t, filepath.Join(l.IndexDir, IndexMarker), l.IndexPath())

	// Same inputs, same layout.
	again, err := Resolve("processed", repo, ModeChunk)
	require.NoError(t, err)
	assert.Equal(t, l, again)

	// Different mode, different layout.
	fileMode, err := Resolve("processed", repo, ModeFile)
	require.NoError(t, err)
	assert.NotEqual(t, l.IndexDir, fileMode.IndexDir)
	assert.True(t, strings.Contains(fileMode.IndexDir, string(ModeFile)))
}

func TestIsIndexed(t *testing.T) {
	root := t.TempDir()
	repo := t.TempDir()

	l, err := Resolve(root, repo, ModeChunk)
	require.NoError(t, err)

	// Fresh identity: nothing on disk.
	assert.False(t, IsIndexed(l))

	// Directory without the marker is not an index.
	require.NoError(t, os.MkdirAll(l.IndexDir, 0o755))
	assert.False(t, IsIndexed(l))

	// Marker present: indexed.
	require.NoError(t, os.WriteFile(l.IndexPath(), []byte("db"), 0o644))
	assert.True(t, IsIndexed(l))
}
