package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/job-digest/job-digest/internal/logger"
	"github.com/job-digest/job-digest/internal/pipeline"
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run the digest on a cron schedule until interrupted",
	Run: func(cmd *cobra.Command, _ []string) {
		log, config := setup()

		mode := pipeline.ModeFull
		if dryRun, _ := cmd.Flags().GetBool("dry-run"); dryRun {
			mode = pipeline.ModeDryRun
		}
		now, _ := cmd.Flags().GetBool("now")

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := schedule(ctx, config, mode, now, log); err != nil {
			log.Fatal("scheduler failed", zap.Error(err))
		}
	},
}

func init() {
	rootCmd.AddCommand(scheduleCmd)

	scheduleCmd.Flags().Bool("dry-run", false, "write digests to the output file instead of emailing them")
	scheduleCmd.Flags().Bool("now", false, "also run once immediately on start")
}

func schedule(ctx context.Context, config *Config, mode pipeline.Mode, now bool, log *zap.Logger) error {
	loc := time.Local
	if config.Schedule.Timezone != "" {
		var err error
		if loc, err = time.LoadLocation(config.Schedule.Timezone); err != nil {
			return err
		}
	}

	cronLogger := logger.CronLogger(logger.Component(log, "scheduler"))
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(cronLogger),
		cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
	)

	job := func() {
		if _, err := runOnce(ctx, config, mode, log); err != nil {
			log.Error("scheduled run failed", zap.Error(err))
		}
	}

	spec, err := cron.ParseStandard(config.Schedule.Cron)
	if err != nil {
		return err
	}
	id := c.Schedule(spec, cron.FuncJob(job))

	if now {
		c.Entry(id).WrappedJob.Run()
	}

	c.Start()
	log.Info("scheduler started",
		zap.String("cron", config.Schedule.Cron),
		zap.String("timezone", loc.String()),
		zap.Time("next_run", spec.Next(time.Now().In(loc))),
	)

	<-ctx.Done()
	log.Info("stopping scheduler, waiting for a running job")
	<-c.Stop().Done()
	return nil
}
