package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"repomind/internal/pipeline"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp <path>",
	Short: "Start an MCP server answering questions about a repository",
	Args:  cobra.ExactArgs(1),
	RunE:  runMCP,
}

func runMCP(cmd *cobra.Command, args []string) error {
	cfg, err := pipelineConfig()
	if err != nil {
		return err
	}
	p := pipeline.New(cfg)
	defer p.Close()

	// Build or reuse the index up front so every tool call hits a
	// ready pipeline.
	if err := p.Run(args[0]); err != nil {
		return err
	}

	s := mcpserver.NewMCPServer("repomind", "1.0.0", mcpserver.WithToolCapabilities(false))
	s.AddTool(askRepositoryTool(), makeAskHandler(p))
	s.AddTool(searchRepositoryTool(), makeSearchHandler(p))

	return mcpserver.ServeStdio(s)
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

var readOnlyAnnotation = mcp.ToolAnnotation{
	ReadOnlyHint:    mcp.ToBoolPtr(true),
	DestructiveHint: mcp.ToBoolPtr(false),
	IdempotentHint:  mcp.ToBoolPtr(true),
	OpenWorldHint:   mcp.ToBoolPtr(false),
}

func askRepositoryTool() mcp.Tool {
	return mcp.NewTool("ask_repository",
		mcp.WithDescription("Answer a natural-language question about the indexed repository using retrieved code context and an LLM."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
		mcp.WithString("question",
			mcp.Required(),
			mcp.Description("The question to answer about the repository"),
		),
	)
}

func searchRepositoryTool() mcp.Tool {
	return mcp.NewTool("search_repository",
		mcp.WithDescription("Semantically search the indexed repository and return the most similar units with their source paths."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Natural language or keyword query"),
		),
	)
}

func makeAskHandler(p *pipeline.Pipeline) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		question := req.GetString("question", "")
		if question == "" {
			return mcp.NewToolResultError("question is required"), nil
		}
		answer, err := p.Ask(question)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("ask failed: %v", err)), nil
		}

		var b strings.Builder
		b.WriteString(answer.Answer)
		if len(answer.Sources) > 0 {
			b.WriteString("\n\nSources:\n")
			for _, s := range answer.Sources {
				fmt.Fprintf(&b, "- %s\n", s)
			}
		}
		return mcp.NewToolResultText(b.String()), nil
	}
}

func makeSearchHandler(p *pipeline.Pipeline) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query := req.GetString("query", "")
		if query == "" {
			return mcp.NewToolResultError("query is required"), nil
		}
		results, err := p.Retrieve(query)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
		}
		if len(results) == 0 {
			return mcp.NewToolResultText("No matching units found."), nil
		}

		var b strings.Builder
		for i, r := range results {
			fmt.Fprintf(&b, "--- Result %d: %s #%d (distance %.4f) ---\n", i+1, r.Unit.Source, r.Unit.Seq, r.Distance)
			b.WriteString(r.Unit.Content)
			b.WriteString("\n\n")
		}
		return mcp.NewToolResultText(b.String()), nil
	}
}
