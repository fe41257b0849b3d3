package main

import (
	"github.com/spf13/cobra"

	"github.com/ternarybob/earningsear/internal/app"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the earnings workflow once",
	Long: `Runs one locate, extract, analyze and notify cycle. The site config comes
from --site, from the stored config for --ticker, or from SITE_CONFIG in the
environment. The run result is printed as JSON.`,
	Args: cobra.NoArgs,
	RunE: runOnce,
}

var (
	runSite    string
	runTicker  string
	runQuarter int
	runYear    int
)

func init() {
	runCmd.Flags().StringVar(&runSite, "site", "", "Site config file (JSON or hjson)")
	runCmd.Flags().StringVar(&runTicker, "ticker", "", "Load the stored site config for this ticker")
	runCmd.Flags().IntVar(&runQuarter, "quarter", 0, "Fiscal quarter (overrides the site config)")
	runCmd.Flags().IntVar(&runYear, "year", 0, "Fiscal year (overrides the site config)")
}

func runOnce(cmd *cobra.Command, args []string) error {
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

	site, err := application.LoadSite(ctx, runSite, runTicker, runQuarter, runYear)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to load site config")
		return err
	}

	result := application.RunSite(ctx, site)
	if err := writeJSON(cmd.OutOrStdout(), result); err != nil {
		return err
	}
	return result.Err()
}
