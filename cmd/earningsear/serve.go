package main

import (
	"github.com/spf13/cobra"

	"github.com/ternarybob/earningsear/internal/app"
	"github.com/ternarybob/earningsear/internal/common"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the scheduled watch jobs",
	Long: `Registers every [[scheduler.jobs]] entry and runs them on their cron
schedules until interrupted, or until every job has completed.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	common.PrintBanner(config, logger)

	ctx, stop := signalContext()
	defer stop()

	application, err := app.New(ctx, config, logger)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to initialize application")
		return err
	}
	defer func() {
		if err := application.Close(); err != nil {
			logger.Warn().Err(err).Msg("Failed to close application")
		}
	}()

	if err := application.ScheduleJobs(); err != nil {
		return err
	}

	if application.MetricsServer != nil {
		application.MetricsServer.Start()
	}

	if err := application.SchedulerService.Start(ctx); err != nil {
		return err
	}

	logger.Info().
		Int("jobs", len(config.Scheduler.Jobs)).
		Msg("Watcher ready - Press Ctrl+C to stop")

	select {
	case <-ctx.Done():
		logger.Info().Msg("Interrupt signal received")
	case <-application.SchedulerService.Done():
		logger.Info().Msg("All watch jobs completed")
	}

	for name, status := range application.SchedulerService.GetAllJobStatuses() {
		logger.Info().
			Str("job", name).
			Int("runs", status.Runs).
			Bool("completed", status.Completed).
			Str("last_error", status.LastError).
			Msg("Job summary")
	}

	logger.Info().Msg("Watcher stopped")
	return nil
}
