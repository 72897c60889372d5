package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/job-digest/job-digest/internal/jobs"
	"github.com/job-digest/job-digest/internal/logger"
	"github.com/job-digest/job-digest/internal/pipeline"
)

const (
	PromptExit            = "Exit"
	PromptReportByCompany = "Report by companies"
	PromptJobsToFile      = "Dump jobs to file"
)

var errExit = errors.New("exit requested")

var reviewPrompt = promptui.Select{
	Label: "Review the digest jobs",
	Items: []string{PromptReportByCompany, PromptJobsToFile, PromptExit},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Search, score and email today's digest",
	Run: func(cmd *cobra.Command, _ []string) {
		mode := pipeline.ModeFull
		if viper.GetBool("dry-run") {
			mode = pipeline.ModeDryRun
		}
		run(cmd, mode)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().Bool("dry-run", false, "search and score but write the digest to the output file instead of emailing it")
	runCmd.Flags().StringP("output", "o", "", "file the digest is written to when it is not emailed")
	runCmd.Flags().BoolP("review", "r", false, "interactively review the digest jobs after the run")

	viper.BindPFlag("dry-run", runCmd.Flags().Lookup("dry-run"))
	viper.BindPFlag("output-file", runCmd.Flags().Lookup("output"))
}

// setup creates the logger and the validated config shared by all commands.
func setup() (*zap.Logger, *Config) {
	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"), zap.String("app", app))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(config, "", "  ")
	logger.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	return logger, config
}

// run is the main command for the cli.
func run(cmd *cobra.Command, mode pipeline.Mode) {
	ctx := context.Background()
	logger, config := setup()

	logger.Info("starting the job-digest", zap.String("version", version), zap.String("mode", string(mode)))

	summary, err := runOnce(ctx, config, mode, logger)
	if err != nil {
		logger.Fatal("run failed", zap.Error(err))
	}

	review, _ := cmd.Flags().GetBool("review")
	if !review || len(summary.Jobs) == 0 {
		return
	}

	for {
		_, action, err := reviewPrompt.Run()
		if err != nil {
			logger.Fatal("exiting", zap.Error(err))
		}

		if err := handleAction(action, logger, summary.Jobs); err != nil {
			if errors.Is(err, errExit) {
				return
			}
			logger.Fatal("exiting", zap.Error(err))
		}
	}
}

// runOnce builds a fresh pipeline, runs it and logs the summary.
func runOnce(ctx context.Context, config *Config, mode pipeline.Mode, logger *zap.Logger) (pipeline.Summary, error) {
	started := time.Now()

	runner, cleanup, err := buildRunner(ctx, config, mode, logger)
	if err != nil {
		return pipeline.Summary{}, fmt.Errorf("building pipeline: %w", err)
	}
	defer cleanup()

	summary, err := runner.Run(ctx, mode)
	if err != nil {
		return summary, err
	}

	logSummary(logger, summary, time.Since(started))
	return summary, nil
}

func handleAction(action string, logger *zap.Logger, list []jobs.Job) error {
	switch action {
	case PromptExit:
		logger.Info("exiting", zap.String("reason", "review finished"))
		return errExit
	case PromptReportByCompany:
		pretty, _ := json.MarshalIndent(jobs.ReportByCompany(list), "", "  ")
		logger.Info(string(pretty), zap.Int("jobs count", len(list)))
		return nil
	case PromptJobsToFile:
		filename, err := jobs.DumpToTmpFile(list)
		if err != nil {
			return fmt.Errorf("dump jobs to file: %w", err)
		}
		logger.Info("dumping jobs to file", zap.String("filename", filename))
		return nil
	default:
		return fmt.Errorf("invalid action: %s", action)
	}
}
