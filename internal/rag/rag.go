// Package rag assembles the answer context from retrieved units and
// builds the question-answering conversation for the LLM.
package rag

import (
	"strings"

	"repomind/internal/layout"
	"repomind/internal/llm"
	"repomind/internal/store"
)

const systemPrompt = `You are a code analysis expert. Answer questions based on the following code context.

Code Context:
%CONTEXT%

Please provide a detailed answer including:
1. Direct answer to the question
2. Relevant code examples
3. Implementation details
4. Improvement suggestions (if applicable)`

// BuildContext merges retrieved units into one context string. In file
// granularity each unit's original full content is substituted for its
// summary: the summary is only an embedding key, not the answer context.
func BuildContext(results []store.SearchResult, mode layout.Mode) string {
	parts := make([]string, 0, len(results))
	for _, r := range results {
		if mode == layout.ModeFile && r.Unit.Original != "" {
			parts = append(parts, r.Unit.Original)
		} else {
			parts = append(parts, r.Unit.Content)
		}
	}
	return strings.Join(parts, "\n\n")
}

// BuildMessages constructs the conversation for answering a question
// over the retrieved context.
func BuildMessages(results []store.SearchResult, mode layout.Mode, question string) []llm.Message {
	context := BuildContext(results, mode)
	return []llm.Message{
		{Role: "system", Content: strings.Replace(systemPrompt, "%CONTEXT%", context, 1)},
		{Role: "user", Content: question},
	}
}

// Sources lists the contributing source paths in retrieval order.
func Sources(results []store.SearchResult) []string {
	sources := make([]string, 0, len(results))
	for _, r := range results {
		sources = append(sources, r.Unit.Source)
	}
	return sources
}
