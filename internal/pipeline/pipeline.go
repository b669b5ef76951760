// Package pipeline sequences the end-to-end flow: discover source
// files, process them at the configured granularity, build or reuse the
// persistent vector index, and answer questions over it. Everything is
// single-threaded and blocking; one repository is processed end-to-end
// before a question can be answered.
package pipeline

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/charmbracelet/log"

	"repomind/internal/embedder"
	"repomind/internal/layout"
	"repomind/internal/llm"
	"repomind/internal/loader"
	"repomind/internal/rag"
	"repomind/internal/splitter"
	"repomind/internal/store"
	"repomind/internal/summary"
)

// ErrNoFiles indicates a from-scratch run found nothing to index.
var ErrNoFiles = errors.New("no source files found")

// ErrNotReady indicates Ask was called before Run reached Ready.
var ErrNotReady = errors.New("pipeline not ready")

const embedBatchSize = 32

// State tracks pipeline progress.
type State int

const (
	StateUninitialized State = iota
	StateCheckingCache
	StateLoadingAndBuilding
	StateLoadingExisting
	StateReady
	StateAnswering
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateCheckingCache:
		return "checking-cache"
	case StateLoadingAndBuilding:
		return "loading-and-building"
	case StateLoadingExisting:
		return "loading-existing"
	case StateReady:
		return "ready"
	case StateAnswering:
		return "answering"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// IndexStatus is the outcome of probing for a previously built index.
type IndexStatus int

const (
	// NotIndexed means no prior run exists for this (repository, mode).
	NotIndexed IndexStatus = iota
	// IndexedAndLoadable means the existing index opened cleanly.
	IndexedAndLoadable
	// IndexedButCorrupt means the marker exists but the index is
	// unusable; the caller falls back to a from-scratch build.
	IndexedButCorrupt
)

// Config holds the pipeline configuration.
type Config struct {
	ProcessedRoot string
	Mode          layout.Mode
	ChunkSize     int
	ChunkOverlap  int
	TopK          int
	Extensions    []string
	Skips         []string
	OllamaURL     string
	EmbedModel    string
	ChatModel     string
}

func (c *Config) applyDefaults() {
	if c.ProcessedRoot == "" {
		c.ProcessedRoot = "processed_repos"
	}
	if c.Mode == "" {
		c.Mode = layout.ModeChunk
	}
	if c.ChunkSize <= 0 {
		c.ChunkSize = 500
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		c.ChunkOverlap = 200
	}
	if c.TopK <= 0 {
		c.TopK = 5
	}
	if len(c.Extensions) == 0 {
		c.Extensions = loader.DefaultExtensions
	}
	if len(c.Skips) == 0 {
		c.Skips = loader.DefaultSkips
	}
}

// Answer is the result of one question.
type Answer struct {
	Question   string
	Answer     string
	Sources    []string
	NumSources int
}

// Pipeline is the session object owning the service handles for one
// repository run. Create with New, drive with Run then Ask, release
// with Close.
type Pipeline struct {
	cfg      Config
	state    State
	repoRoot string
	lay      layout.Layout

	embedder embedder.Client
	chat     llm.Client
	st       store.Store
}

// New creates a pipeline with Ollama-backed embedding and chat clients.
func New(cfg Config) *Pipeline {
	cfg.applyDefaults()
	return &Pipeline{
		cfg:      cfg,
		state:    StateUninitialized,
		embedder: embedder.NewOllamaEmbedder(cfg.OllamaURL, cfg.EmbedModel),
		chat:     llm.NewOllamaChat(cfg.OllamaURL, cfg.ChatModel),
	}
}

// State returns the current pipeline state.
func (p *Pipeline) State() State { return p.state }

// Run prepares the pipeline for the repository at repoRoot: it reuses a
// previously built index when one exists and is loadable, and otherwise
// processes the repository from scratch.
func (p *Pipeline) Run(repoRoot string) error {
	p.state = StateCheckingCache
	lay, err := layout.Resolve(p.cfg.ProcessedRoot, repoRoot, p.cfg.Mode)
	if err != nil {
		p.state = StateFailed
		return err
	}
	// Loaded file paths are absolute and summary cache keys are derived
	// relative to the root, so pin the absolute spelling once.
	absRoot, err := filepath.Abs(repoRoot)
	if err != nil {
		p.state = StateFailed
		return fmt.Errorf("%w: %v", layout.ErrInvalidPath, err)
	}
	p.repoRoot = absRoot
	p.lay = lay
	log.Info("checking cache", "fingerprint", lay.Fingerprint, "mode", lay.Mode, "index", lay.IndexDir)

	switch status, st := p.probe(); status {
	case IndexedAndLoadable:
		p.state = StateLoadingExisting
		p.st = st
		log.Info("reusing existing index", "fingerprint", lay.Fingerprint, "mode", lay.Mode)
		p.state = StateReady
		return nil
	case IndexedButCorrupt:
		log.Warn("existing index unusable, rebuilding from scratch", "index", lay.IndexPath())
	}

	p.state = StateLoadingAndBuilding
	if err := p.build(); err != nil {
		p.state = StateFailed
		return err
	}
	p.state = StateReady
	return nil
}

// probe decides between the three load-or-build outcomes. A returned
// store is open only for IndexedAndLoadable.
func (p *Pipeline) probe() (IndexStatus, store.Store) {
	if !layout.IsIndexed(p.lay) {
		return NotIndexed, nil
	}
	st, err := store.Open(p.lay.IndexPath())
	if err != nil {
		log.Warn("failed to open existing index", "path", p.lay.IndexPath(), "err", err)
		return IndexedButCorrupt, nil
	}
	n, err := st.Count()
	if err != nil || n == 0 {
		st.Close()
		return IndexedButCorrupt, nil
	}
	return IndexedAndLoadable, st
}

// build runs the from-scratch path: load, process, embed, persist.
func (p *Pipeline) build() error {
	docs, err := loader.Load(p.repoRoot, p.cfg.Extensions, p.cfg.Skips)
	if err != nil {
		return fmt.Errorf("load source files: %w", err)
	}
	if len(docs) == 0 {
		return fmt.Errorf("%w under %s", ErrNoFiles, p.repoRoot)
	}

	units := p.process(docs)
	log.Info("processed documents", "mode", p.cfg.Mode, "files", len(docs), "units", len(units))

	texts := make([]string, len(units))
	for i, u := range units {
		texts[i] = u.Content
	}
	embeddings, err := p.embedBatched(texts)
	if err != nil {
		return fmt.Errorf("embed units: %w", err)
	}

	st, err := store.Create(p.lay.IndexPath(), len(embeddings[0]))
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	if err := st.InsertUnits(units, embeddings); err != nil {
		st.Close()
		return fmt.Errorf("persist units: %w", err)
	}
	if err := st.SetMeta(store.MetaEmbeddingModel, p.cfg.EmbedModel); err != nil {
		st.Close()
		return fmt.Errorf("record meta: %w", err)
	}
	if err := st.SetMeta(store.MetaGranularity, string(p.cfg.Mode)); err != nil {
		st.Close()
		return fmt.Errorf("record meta: %w", err)
	}

	p.st = st
	log.Info("index built", "units", len(units), "path", p.lay.IndexPath())
	return nil
}

// process transforms documents into embeddable units per mode. Chunk
// granularity splits each file; file granularity summarizes it (with
// caching) and retains the original content for answer context.
func (p *Pipeline) process(docs []loader.Document) []store.Unit {
	var units []store.Unit
	if p.cfg.Mode == layout.ModeFile {
		summarizer := summary.NewSummarizer(summary.NewCache(p.repoRoot, p.lay), p.chat)
		for _, doc := range docs {
			units = append(units, store.Unit{
				Source:   doc.Path,
				Ext:      doc.Ext,
				Seq:      0,
				Content:  summarizer.Summarize(doc.Content, doc.Path),
				Original: doc.Content,
			})
		}
		return units
	}

	for _, doc := range docs {
		sp := splitter.ForFile(doc.Path, p.cfg.ChunkSize, p.cfg.ChunkOverlap)
		for i, chunk := range sp.Split(doc.Content) {
			units = append(units, store.Unit{
				Source:  doc.Path,
				Ext:     doc.Ext,
				Seq:     i,
				Content: chunk,
			})
		}
	}
	return units
}

func (p *Pipeline) embedBatched(texts []string) ([][]float32, error) {
	all := make([][]float32, 0, len(texts))
	for i := 0; i < len(texts); i += embedBatchSize {
		end := min(i+embedBatchSize, len(texts))
		embs, err := p.embedder.Embed(texts[i:end])
		if err != nil {
			return nil, err
		}
		all = append(all, embs...)
	}
	return all, nil
}

// Retrieve returns the top-k units most similar to the query, without
// invoking the LLM.
func (p *Pipeline) Retrieve(query string) ([]store.SearchResult, error) {
	if p.state != StateReady {
		return nil, fmt.Errorf("%w: state %s", ErrNotReady, p.state)
	}
	vec, err := p.embedder.EmbedSingle(query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return p.st.Search(vec, p.cfg.TopK)
}

// Ask answers a question over the prepared index: embed, retrieve
// top-k, assemble context per mode, and invoke the LLM.
func (p *Pipeline) Ask(question string) (*Answer, error) {
	if p.state != StateReady {
		return nil, fmt.Errorf("%w: state %s", ErrNotReady, p.state)
	}
	p.state = StateAnswering
	defer func() {
		if p.state == StateAnswering {
			p.state = StateReady
		}
	}()

	vec, err := p.embedder.EmbedSingle(question)
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}
	results, err := p.st.Search(vec, p.cfg.TopK)
	if err != nil {
		return nil, fmt.Errorf("search index: %w", err)
	}

	answer, err := p.chat.Generate(rag.BuildMessages(results, p.cfg.Mode, question))
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}

	return &Answer{
		Question:   question,
		Answer:     answer,
		Sources:    rag.Sources(results),
		NumSources: len(results),
	}, nil
}

// Close releases the index handle. The pipeline is unusable afterwards.
func (p *Pipeline) Close() error {
	p.state = StateUninitialized
	if p.st != nil {
		st := p.st
		p.st = nil
		return st.Close()
	}
	return nil
}
