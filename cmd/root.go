package cmd

import (
	"os"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"repomind/internal/layout"
	"repomind/internal/pipeline"
)

var (
	flagProcessedRoot string
	flagMode          string
	flagOllama        string
	flagModel         string
	flagChatModel     string
	flagK             int
	flagChunkSize     int
	flagChunkOverlap  int
	flagVerbose       bool
)

var rootCmd = &cobra.Command{
	Use:           "repomind",
	Short:         "Ask questions about a code repository using a cached vector index",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if flagVerbose {
			log.SetLevel(log.DebugLevel)
		}
	},
}

func Execute() {
	// Best-effort, same as the usual dotenv convention: a missing .env
	// is not an error.
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		log.Error(err.Error())
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagProcessedRoot, "processed-root", envOr("REPOMIND_PROCESSED_ROOT", "processed_repos"), "root directory for per-repository caches")
	pf.StringVar(&flagMode, "mode", envOr("REPOMIND_MODE", "chunk"), "processing granularity: chunk or file")
	pf.StringVar(&flagOllama, "ollama", envOr("OLLAMA_URL", "http://localhost:11434"), "ollama base URL")
	pf.StringVar(&flagModel, "model", envOr("REPOMIND_EMBED_MODEL", "nomic-embed-text"), "embedding model")
	pf.StringVar(&flagChatModel, "chat-model", envOr("REPOMIND_CHAT_MODEL", "qwen3:8b"), "generative model for summaries and answers")
	pf.IntVar(&flagK, "k", 5, "number of units retrieved per question")
	pf.IntVar(&flagChunkSize, "chunk-size", 500, "chunk size in bytes (chunk mode)")
	pf.IntVar(&flagChunkOverlap, "chunk-overlap", 200, "chunk overlap in bytes (chunk mode)")
	pf.BoolVar(&flagVerbose, "verbose", false, "enable debug logging")
}

// pipelineConfig assembles the pipeline configuration from flags.
func pipelineConfig() (pipeline.Config, error) {
	mode, err := layout.ParseMode(flagMode)
	if err != nil {
		return pipeline.Config{}, err
	}
	return pipeline.Config{
		ProcessedRoot: flagProcessedRoot,
		Mode:          mode,
		ChunkSize:     flagChunkSize,
		ChunkOverlap:  flagChunkOverlap,
		TopK:          flagK,
		OllamaURL:     flagOllama,
		EmbedModel:    flagModel,
		ChatModel:     flagChatModel,
	}, nil
}
