package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/job-digest/job-digest/internal/seen"
)

const (
	PromptYes = "Yes"
	PromptNo  = "No"
)

var seenCmd = &cobra.Command{
	Use:   "seen",
	Short: "Inspect and maintain the store of already reported jobs",
}

var seenListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print fingerprints and first-seen dates, oldest first",
	Run: func(cmd *cobra.Command, _ []string) {
		withStore(func(ctx context.Context, store seen.Store, _ *Config, logger *zap.Logger) error {
			entries, err := store.Load(ctx)
			if err != nil {
				return err
			}
			for _, e := range entries.Sorted() {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", e.Fingerprint, e.Date)
			}
			logger.Info("seen store listed", zap.String("backend", store.Name()), zap.Int("entries", len(entries)))
			return nil
		})
	},
}

var seenPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Drop entries older than the retention window",
	Run: func(_ *cobra.Command, _ []string) {
		withStore(func(ctx context.Context, store seen.Store, config *Config, logger *zap.Logger) error {
			entries, err := store.Load(ctx)
			if err != nil {
				return err
			}
			cutoff := seen.Cutoff(time.Now(), config.Seen.RetentionDays)
			pruned := entries.Prune(cutoff)
			if err := store.Save(ctx, entries); err != nil {
				return err
			}
			logger.Info("seen store pruned",
				zap.String("cutoff", cutoff),
				zap.Int("pruned", len(pruned)),
				zap.Int("left", len(entries)),
			)
			return nil
		})
	},
}

var seenResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Forget every reported job",
	Run: func(cmd *cobra.Command, _ []string) {
		yes, _ := cmd.Flags().GetBool("yes")
		withStore(func(ctx context.Context, store seen.Store, _ *Config, logger *zap.Logger) error {
			if !yes {
				prompt := promptui.Select{
					Label: fmt.Sprintf("Reset the %s seen store?", store.Name()),
					Items: []string{PromptNo, PromptYes},
				}
				_, answer, err := prompt.Run()
				if err != nil {
					return err
				}
				if answer != PromptYes {
					logger.Info("exiting", zap.String("reason", "got no from prompt"))
					return nil
				}
			}

			if err := store.Save(ctx, seen.Entries{}); err != nil {
				return err
			}
			logger.Info("seen store reset", zap.String("backend", store.Name()))
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(seenCmd)
	seenCmd.AddCommand(seenListCmd, seenPruneCmd, seenResetCmd)

	seenResetCmd.Flags().BoolP("yes", "y", false, "do not ask for confirmation")
}

func withStore(fn func(ctx context.Context, store seen.Store, config *Config, logger *zap.Logger) error) {
	ctx := context.Background()
	logger, config := setup()

	store, cleanup, err := buildStore(ctx, config)
	if err != nil {
		logger.Fatal("opening seen store", zap.Error(err))
	}
	defer cleanup()

	if err := fn(ctx, store, config, logger); err != nil {
		logger.Fatal("seen store command failed", zap.Error(err))
	}
}
