package cmd

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"repomind/internal/pipeline"
)

var askCmd = &cobra.Command{
	Use:   "ask <path> <question>",
	Short: "Ask a one-off question about a repository",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := pipelineConfig()
		if err != nil {
			return err
		}
		p := pipeline.New(cfg)
		defer p.Close()

		if err := p.Run(args[0]); err != nil {
			return err
		}

		question := strings.Join(args[1:], " ")
		answer, err := p.Ask(question)
		if err != nil {
			return err
		}

		fmt.Println(renderAnswer(answer))
		return nil
	},
}

// renderAnswer formats the answer as markdown with its contributing
// sources appended, degrading to plain text when rendering fails.
func renderAnswer(a *pipeline.Answer) string {
	body := a.Answer
	if rendered, err := glamour.Render(a.Answer, "auto"); err == nil {
		body = rendered
	}
	if len(a.Sources) == 0 {
		return body
	}
	return body + "\n" + sourceStyle.Render("Sources ("+fmt.Sprint(a.NumSources)+"):\n  "+strings.Join(a.Sources, "\n  "))
}

func init() {
	rootCmd.AddCommand(askCmd)
}
