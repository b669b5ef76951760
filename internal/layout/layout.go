// Package layout derives the on-disk cache locations for a processed
// repository: a short fingerprint of the repository root, the directory
// holding its vector index, and the directory holding its per-file
// summary cache.
package layout

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrInvalidPath indicates a repository root that cannot be canonicalized.
var ErrInvalidPath = errors.New("invalid repository path")

// fingerprintLen is the number of hex characters kept from the digest.
const fingerprintLen = 8

// IndexMarker is the file whose presence inside the index directory marks
// a completed index build.
const IndexMarker = "index.db"

// Mode selects the granularity at which a repository is processed before
// indexing.
type Mode string

const (
	// ModeChunk embeds fixed-size overlapping chunks of each file.
	ModeChunk Mode = "chunk"
	// ModeFile embeds one LLM summary per file, retaining the original
	// content for answer context.
	ModeFile Mode = "file"
)

// ParseMode validates a granularity string.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeChunk, ModeFile:
		return Mode(s), nil
	}
	return "", fmt.Errorf("unknown granularity %q (want %q or %q)", s, ModeChunk, ModeFile)
}

// Fingerprint returns a short stable identifier for a repository root.
// The path is canonicalized to an absolute form with forward slashes, so
// different spellings of the same location yield the same fingerprint.
func Fingerprint(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("%w: empty path", ErrInvalidPath)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidPath, err)
	}
	normalized := filepath.ToSlash(abs)
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])[:fingerprintLen], nil
}

// Layout holds the resolved cache directories for one (repository, mode)
// pair. Resolution never touches the filesystem beyond path
// canonicalization; callers create directories at write time.
type Layout struct {
	Fingerprint string
	Mode        Mode
	IndexDir    string
	SummaryDir  string
}

// Resolve maps (processedRoot, repoRoot, mode) to its cache layout.
// The mapping is pure: the same inputs always yield the same paths, and
// distinct repositories or modes never collide.
func Resolve(processedRoot, repoRoot string, mode Mode) (Layout, error) {
	fp, err := Fingerprint(repoRoot)
	if err != nil {
		return Layout{}, err
	}
	base := filepath.Join(processedRoot, fp, string(mode))
	return Layout{
		Fingerprint: fp,
		Mode:        mode,
		IndexDir:    filepath.Join(base, "index"),
		SummaryDir:  filepath.Join(base, "summary-cache"),
	}, nil
}

// IndexPath returns the location of the index marker file.
func (l Layout) IndexPath() string {
	return filepath.Join(l.IndexDir, IndexMarker)
}

// IsIndexed reports whether a completed vector index exists for this
// layout: the index directory is present and contains the marker file.
func IsIndexed(l Layout) bool {
	if info, err := os.Stat(l.IndexDir); err != nil || !info.IsDir() {
		return false
	}
	info, err := os.Stat(l.IndexPath())
	return err == nil && !info.IsDir()
}
