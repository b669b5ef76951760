package pipeline

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"repomind/internal/layout"
	"repomind/internal/llm"
)

// fakeEmbedder derives a deterministic vector from the text bytes, so
// identical texts are nearest neighbors of each other.
type fakeEmbedder struct {
	batches int
}

func (f *fakeEmbedder) Embed(texts []string) ([][]float32, error) {
	f.batches++
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v := make([]float32, 8)
		for j := 0; j < len(t); j++ {
			v[j%8] += float32(t[j])
		}
		out[i] = v
	}
	return out, nil
}

func (f *fakeEmbedder) EmbedSingle(text string) ([]float32, error) {
	vecs, err := f.Embed([]string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// fakeChat records every conversation and replies with a fixed answer.
type fakeChat struct {
	conversations [][]llm.Message
	reply         string
	err           error
}

func (f *fakeChat) Generate(messages []llm.Message) (string, error) {
	f.conversations = append(f.conversations, messages)
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func writeRepo(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return root
}

func newTestPipeline(t *testing.T, mode layout.Mode) (*Pipeline, *fakeEmbedder, *fakeChat) {
	t.Helper()
	p := New(Config{
		ProcessedRoot: t.TempDir(),
		Mode:          mode,
		ChunkSize:     120,
		ChunkOverlap:  30,
		TopK:          3,
	})
	emb := &fakeEmbedder{}
	chat := &fakeChat{reply: "The repository parses things."}
	p.embedder = emb
	p.chat = chat
	return p, emb, chat
}

func TestRunBuildsIndexAndAnswers(t *testing.T) {
	repo := writeRepo(t, map[string]string{
		"parser.py": "def parse(data):\n    return data.split()\n",
		"docs.md":   "# parser\nSplits incoming data into fields.\n",
	})
	p, emb, _ := newTestPipeline(t, layout.ModeChunk)
	defer p.Close()

	require.NoError(t, p.Run(repo))
	assert.Equal(t, StateReady, p.State())
	assert.Greater(t, emb.batches, 0)

	lay, err := layout.Resolve(p.cfg.ProcessedRoot, repo, layout.ModeChunk)
	require.NoError(t, err)
	assert.True(t, layout.IsIndexed(lay))

	ans, err := p.Ask("def parse(data):\n    return data.split()")
	require.NoError(t, err)
	assert.Equal(t, "The repository parses things.", ans.Answer)
	assert.Equal(t, len(ans.Sources), ans.NumSources)
	require.NotEmpty(t, ans.Sources)
	assert.True(t, strings.HasSuffix(ans.Sources[0], "parser.py"))
	assert.Equal(t, StateReady, p.State())
}

func TestRunReusesExistingIndex(t *testing.T) {
	repo := writeRepo(t, map[string]string{"a.py": "x = 1\n"})
	p, _, _ := newTestPipeline(t, layout.ModeChunk)
	require.NoError(t, p.Run(repo))
	processedRoot := p.cfg.ProcessedRoot
	require.NoError(t, p.Close())

	// Second session over the same (repository, mode): no embedding
	// work, straight to ready.
	p2 := New(Config{ProcessedRoot: processedRoot, Mode: layout.ModeChunk})
	emb2 := &fakeEmbedder{}
	chat2 := &fakeChat{reply: "answer"}
	p2.embedder = emb2
	p2.chat = chat2
	defer p2.Close()

	require.NoError(t, p2.Run(repo))
	assert.Equal(t, StateReady, p2.State())
	assert.Equal(t, 0, emb2.batches, "reuse must not re-embed")

	ans, err := p2.Ask("x = 1")
	require.NoError(t, err)
	assert.Equal(t, "answer", ans.Answer)
}

func TestRunRebuildsCorruptIndex(t *testing.T) {
	repo := writeRepo(t, map[string]string{"a.py": "x = 1\n"})
	p, emb, _ := newTestPipeline(t, layout.ModeChunk)
	defer p.Close()

	// Plant a marker file that is not a usable database.
	lay, err := layout.Resolve(p.cfg.ProcessedRoot, repo, layout.ModeChunk)
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(lay.IndexDir, 0o755))
	require.NoError(t, os.WriteFile(lay.IndexPath(), []byte("not a database"), 0o644))

	require.NoError(t, p.Run(repo))
	assert.Equal(t, StateReady, p.State())
	assert.Greater(t, emb.batches, 0, "corrupt index must trigger a rebuild")
}

func TestRunNoFilesIsFatal(t *testing.T) {
	p, _, _ := newTestPipeline(t, layout.ModeChunk)
	defer p.Close()

	err := p.Run(t.TempDir())
	assert.ErrorIs(t, err, ErrNoFiles)
	assert.Equal(t, StateFailed, p.State())
}

func TestRunInvalidPathIsFatal(t *testing.T) {
	p, _, _ := newTestPipeline(t, layout.ModeChunk)
	defer p.Close()

	err := p.Run("")
	assert.ErrorIs(t, err, layout.ErrInvalidPath)
	assert.Equal(t, StateFailed, p.State())
}

func TestAskBeforeRun(t *testing.T) {
	p, _, _ := newTestPipeline(t, layout.ModeChunk)
	defer p.Close()

	_, err := p.Ask("anything")
	assert.ErrorIs(t, err, ErrNotReady)
}

func TestFileModeAnswersWithOriginalContent(t *testing.T) {
	original := "def hidden_logic():\n    return 42\n"
	repo := writeRepo(t, map[string]string{"logic.py": original})
	p, _, chat := newTestPipeline(t, layout.ModeFile)
	defer p.Close()
	chat.reply = "A module with hidden logic."

	require.NoError(t, p.Run(repo))

	ans, err := p.Ask("A module with hidden logic.")
	require.NoError(t, err)
	require.NotEmpty(t, ans.Sources)

	// The last conversation is the question; its context must carry the
	// original file content, not the embedding-key summary.
	last := chat.conversations[len(chat.conversations)-1]
	require.NotEmpty(t, last)
	assert.Contains(t, last[0].Content, original)
}

func TestFileModeRelativeRootReusesSummaryCache(t *testing.T) {
	repo := writeRepo(t, map[string]string{"a.py": "print(1)\n"})
	wd, err := os.Getwd()
	require.NoError(t, err)
	rel, err := filepath.Rel(wd, repo)
	require.NoError(t, err)

	p, _, chat := newTestPipeline(t, layout.ModeFile)
	chat.reply = "Prints one."
	require.NoError(t, p.Run(rel))
	require.NotEmpty(t, chat.conversations, "first build must summarize")
	require.NoError(t, p.Close())

	// Force the build path again; the summaries must come from the
	// cache written under the relative-root layout.
	lay, err := layout.Resolve(p.cfg.ProcessedRoot, rel, layout.ModeFile)
	require.NoError(t, err)
	require.NoError(t, os.RemoveAll(lay.IndexDir))

	p2 := New(Config{ProcessedRoot: p.cfg.ProcessedRoot, Mode: layout.ModeFile})
	p2.embedder = &fakeEmbedder{}
	chat2 := &fakeChat{reply: "Prints one."}
	p2.chat = chat2
	defer p2.Close()

	require.NoError(t, p2.Run(rel))
	assert.Empty(t, chat2.conversations, "rebuild must not re-summarize cached files")
}

func TestFileModeSummaryFallbackStillBuilds(t *testing.T) {
	repo := writeRepo(t, map[string]string{"a.py": "print(1)"})
	p, _, chat := newTestPipeline(t, layout.ModeFile)
	defer p.Close()

	// Summarization fails; the pipeline degrades to truncated content
	// instead of aborting.
	chat.err = errors.New("llm unavailable")
	require.NoError(t, p.Run(repo))
	assert.Equal(t, StateReady, p.State())

	// The fallback was cached under the summary-cache layout.
	lay, err := layout.Resolve(p.cfg.ProcessedRoot, repo, layout.ModeFile)
	require.NoError(t, err)
	data, err := os.ReadFile(filepath.Join(lay.SummaryDir, "a.py.txt"))
	require.NoError(t, err)
	assert.Equal(t, "print(1)", string(data))
}
