// Package splitter implements recursive character splitting: text is
// split on the first applicable separator from a language-aware list,
// oversized pieces are split again on later separators, and the pieces
// are merged back into chunks of bounded size with a configured overlap.
package splitter

import (
	"path/filepath"
	"strings"
)

// Splitter divides text into overlapping chunks. Output is deterministic
// for identical input and parameters; chunks appear in source order and
// each chunk is a contiguous (whitespace-trimmed) slice of the input.
type Splitter struct {
	chunkSize    int
	chunkOverlap int
	separators   []string
}

var defaultSeparators = []string{"\n\n", "\n", " ", ""}

// Separator preferences per language, tried most-structural first.
var languageSeparators = map[string][]string{
	".py": {"\nclass ", "\ndef ", "\n\tdef ", "\n\n", "\n", " ", ""},
	".js": {"\nfunction ", "\nconst ", "\nlet ", "\nvar ", "\nclass ", "\nif ", "\nfor ",
		"\nwhile ", "\nswitch ", "\ncase ", "\ndefault ", "\n\n", "\n", " ", ""},
	".java": {"\nclass ", "\npublic ", "\nprotected ", "\nprivate ", "\nstatic ", "\nif ",
		"\nfor ", "\nwhile ", "\nswitch ", "\ncase ", "\n\n", "\n", " ", ""},
	".cpp": {"\nclass ", "\nvoid ", "\nint ", "\nfloat ", "\ndouble ", "\nif ", "\nfor ",
		"\nwhile ", "\nswitch ", "\ncase ", "\n\n", "\n", " ", ""},
}

func init() {
	languageSeparators[".c"] = languageSeparators[".cpp"]
	languageSeparators[".h"] = languageSeparators[".cpp"]
}

// New creates a splitter with explicit separators. The list must end
// with the empty separator so any text can be split.
func New(chunkSize, chunkOverlap int, separators []string) *Splitter {
	if len(separators) == 0 {
		separators = defaultSeparators
	}
	return &Splitter{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
		separators:   separators,
	}
}

// ForFile creates a splitter whose separators match the file's language,
// chosen by extension, falling back to plain-text separators.
func ForFile(path string, chunkSize, chunkOverlap int) *Splitter {
	seps, ok := languageSeparators[strings.ToLower(filepath.Ext(path))]
	if !ok {
		seps = defaultSeparators
	}
	return New(chunkSize, chunkOverlap, seps)
}

// Split divides text into chunks of at most the configured size, with
// consecutive chunks overlapping by up to the configured overlap.
func (s *Splitter) Split(text string) []string {
	return s.split(text, s.separators)
}

func (s *Splitter) split(text string, separators []string) []string {
	// Pick the first separator that occurs in the text; the trailing
	// empty separator always matches.
	sep := separators[len(separators)-1]
	var rest []string
	for i, cand := range separators {
		if cand == "" || strings.Contains(text, cand) {
			sep = cand
			rest = separators[i+1:]
			break
		}
	}

	var chunks, pending []string
	for _, piece := range splitKeep(text, sep) {
		if len(piece) < s.chunkSize {
			pending = append(pending, piece)
			continue
		}
		if len(pending) > 0 {
			chunks = append(chunks, s.merge(pending)...)
			pending = nil
		}
		if len(rest) == 0 {
			chunks = appendChunk(chunks, piece)
		} else {
			chunks = append(chunks, s.split(piece, rest)...)
		}
	}
	if len(pending) > 0 {
		chunks = append(chunks, s.merge(pending)...)
	}
	return chunks
}

// splitKeep splits text on sep, keeping the separator attached to the
// start of the following piece so no characters are lost.
func splitKeep(text, sep string) []string {
	if sep == "" {
		return strings.Split(text, "")
	}
	parts := strings.Split(text, sep)
	out := make([]string, 0, len(parts))
	for i, p := range parts {
		if i > 0 {
			p = sep + p
		}
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// merge greedily packs pieces into chunks of at most chunkSize bytes,
// carrying a tail of up to chunkOverlap bytes into the next chunk.
func (s *Splitter) merge(pieces []string) []string {
	var chunks []string
	var window []string
	total := 0
	for _, p := range pieces {
		if total+len(p) > s.chunkSize && len(window) > 0 {
			chunks = appendChunk(chunks, strings.Join(window, ""))
			for total > s.chunkOverlap || (total+len(p) > s.chunkSize && total > 0) {
				total -= len(window[0])
				window = window[1:]
			}
		}
		window = append(window, p)
		total += len(p)
	}
	return appendChunk(chunks, strings.Join(window, ""))
}

func appendChunk(chunks []string, text string) []string {
	if trimmed := strings.TrimSpace(text); trimmed != "" {
		chunks = append(chunks, trimmed)
	}
	return chunks
}
