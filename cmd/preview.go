package cmd

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/job-digest/job-digest/internal/pipeline"
)

var previewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Render the digest from built-in sample jobs",
	Run: func(cmd *cobra.Command, _ []string) {
		logger, config := setup()

		if output, _ := cmd.Flags().GetString("output"); output != "" {
			config.OutputFile = output
		}

		if _, err := runOnce(context.Background(), config, pipeline.ModePreview, logger); err != nil {
			logger.Fatal("preview failed", zap.Error(err))
		}
	},
}

func init() {
	rootCmd.AddCommand(previewCmd)

	previewCmd.Flags().StringP("output", "o", "", "file the preview is written to")
}
