package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"repomind/internal/pipeline"
)

var indexCmd = &cobra.Command{
	Use:   "index <path>",
	Short: "Build (or reuse) the vector index for a repository",
	Args:  cobra.ExactArgs(1),
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
		fmt.Printf("Index ready for %s (%s granularity)\n", args[0], cfg.Mode)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(indexCmd)
}
