// Package loader discovers and reads source files under a repository
// root, applying an extension allow-list and a path-substring skip-list.
package loader

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
)

// Document is a source file held in memory between loading and
// processing. It is never persisted.
type Document struct {
	Path    string
	RelPath string
	Ext     string
	Content string
}

// DefaultExtensions are the source file types considered for indexing.
var DefaultExtensions = []string{".py", ".js", ".java", ".cpp", ".c", ".h", ".txt", ".md"}

// DefaultSkips exclude version-control internals, dependency trees, and
// build leftovers. A path containing any of these substrings is skipped.
var DefaultSkips = []string{"__pycache__", ".git", "node_modules", ".log"}

// Load walks the tree rooted at root and returns every readable,
// non-empty file whose extension is in exts and whose path contains no
// skip substring. Unreadable files are logged and skipped; the walk
// continues past them.
func Load(root string, exts, skips []string) ([]Document, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	allowed := make(map[string]bool, len(exts))
	for _, e := range exts {
		allowed[e] = true
	}

	var docs []Document
	err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			log.Warn("walk error, skipping", "path", path, "err", err)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		slashPath := filepath.ToSlash(path)
		if d.IsDir() {
			if path != absRoot && containsAny(slashPath, skips) {
				return filepath.SkipDir
			}
			return nil
		}
		if containsAny(slashPath, skips) {
			return nil
		}
		ext := filepath.Ext(path)
		if !allowed[ext] {
			return nil
		}

		content, err := os.ReadFile(path)
		if err != nil {
			log.Warn("skipping unreadable file", "path", path, "err", err)
			return nil
		}
		text := string(content)
		if strings.TrimSpace(text) == "" {
			return nil
		}

		rel, err := filepath.Rel(absRoot, path)
		if err != nil {
			rel = path
		}
		docs = append(docs, Document{
			Path:    path,
			RelPath: filepath.ToSlash(rel),
			Ext:     ext,
			Content: text,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info("loaded source files", "root", absRoot, "count", len(docs))
	return docs, nil
}

func containsAny(path string, subs []string) bool {
	for _, s := range subs {
		if strings.Contains(path, s) {
			return true
		}
	}
	return false
}
