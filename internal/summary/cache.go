// Package summary caches per-file LLM summaries on disk and wraps the
// LLM call with a lookup-or-generate-or-fall-back policy.
package summary

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"

	"repomind/internal/layout"
)

// cacheSuffix is appended to each source file's relative path to form
// its cache entry.
const cacheSuffix = ".txt"

// Cache stores one plain-text summary per source file, mirroring the
// repository's relative tree under the summary-cache directory for the
// active (repository, mode) layout. All cache IO is best-effort: read
// failures behave as misses and write failures are swallowed, both
// logged, so caching can never abort a pipeline run.
type Cache struct {
	repoRoot string
	dir      string
}

// NewCache creates a cache rooted at the summary-cache directory of the
// given layout, for files under repoRoot. The root is pinned to its
// absolute spelling so cache keys resolve even when the repository was
// named by a relative path.
func NewCache(repoRoot string, l layout.Layout) *Cache {
	if abs, err := filepath.Abs(repoRoot); err == nil {
		repoRoot = abs
	}
	return &Cache{repoRoot: repoRoot, dir: l.SummaryDir}
}

// entryPath derives the cache location for a source file: its path
// relative to the repository root, with the cache suffix appended,
// rooted under the summary-cache directory.
func (c *Cache) entryPath(filePath string) (string, error) {
	rel, err := filepath.Rel(c.repoRoot, filePath)
	if err != nil {
		return "", err
	}
	return filepath.Join(c.dir, rel+cacheSuffix), nil
}

// Get returns the cached summary for a file, trimmed of surrounding
// whitespace, or ok=false if no usable entry exists.
func (c *Cache) Get(filePath string) (string, bool) {
	path, err := c.entryPath(filePath)
	if err != nil {
		log.Warn("summary cache key derivation failed", "file", filePath, "err", err)
		return "", false
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn("summary cache read failed", "file", filePath, "err", err)
		}
		return "", false
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", false
	}
	return text, true
}

// Put writes a summary verbatim to the file's cache location, creating
// any missing parent directories first.
func (c *Cache) Put(filePath, text string) {
	path, err := c.entryPath(filePath)
	if err != nil {
		log.Warn("summary cache key derivation failed", "file", filePath, "err", err)
		return
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		log.Warn("summary cache mkdir failed", "file", filePath, "err", err)
		return
	}
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		log.Warn("summary cache write failed", "file", filePath, "err", err)
	}
}
