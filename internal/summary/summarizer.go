package summary

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/log"

	"repomind/internal/llm"
)

// fallbackLimit is the maximum number of bytes kept when the LLM is
// unavailable and the raw content stands in for a summary.
const fallbackLimit = 500

// truncationMarker is appended when fallback content was cut short.
const truncationMarker = "..."

const summaryPrompt = `Please provide a concise but comprehensive summary of the following code file.
Focus on the main functionality, key classes/functions, and important implementation details.

File: %s

Code:
%s

Summary:`

// Summarizer produces one summary per source file, consulting the cache
// before calling the LLM and degrading to truncated content when the
// LLM fails.
type Summarizer struct {
	cache *Cache
	chat  llm.Client
}

// NewSummarizer wires a cache and a chat client together.
func NewSummarizer(cache *Cache, chat llm.Client) *Summarizer {
	return &Summarizer{cache: cache, chat: chat}
}

// Summarize returns a summary for the file's content. The result is
// always non-empty for non-empty content and never an error:
//  1. A cached entry wins outright, with no LLM call.
//  2. Otherwise the LLM is invoked; its trimmed response is cached and
//     returned.
//  3. If the LLM fails, the first 500 bytes of the content (with a
//     truncation marker when cut) are cached and returned instead. The
//     fallback is cached too, so a failed call is not retried on every
//     later access.
func (s *Summarizer) Summarize(content, filePath string) string {
	if cached, ok := s.cache.Get(filePath); ok {
		log.Debug("using cached summary", "file", filePath)
		return cached
	}

	log.Info("generating summary", "file", filePath)
	prompt := fmt.Sprintf(summaryPrompt, filePath, content)
	response, err := s.chat.Generate([]llm.Message{{Role: "user", Content: prompt}})
	if err != nil {
		log.Warn("summarization failed, falling back to truncated content", "file", filePath, "err", err)
		fallback := Truncate(content)
		s.cache.Put(filePath, fallback)
		return fallback
	}

	text := strings.TrimSpace(response)
	s.cache.Put(filePath, text)
	return text
}

// Truncate returns the first 500 bytes of content, appending the
// truncation marker only when content was actually cut. The cut backs
// off to a rune boundary so the cached fallback stays valid UTF-8.
func Truncate(content string) string {
	if len(content) <= fallbackLimit {
		return content
	}
	cut := fallbackLimit
	for cut > 0 && !utf8.RuneStart(content[cut]) {
		cut--
	}
	return content[:cut] + truncationMarker
}
