package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ternarybob/earningsear/internal/common"
	"github.com/ternarybob/earningsear/internal/interfaces"
	"github.com/ternarybob/earningsear/internal/models"
	"github.com/ternarybob/earningsear/internal/storage"
)

var configsCmd = &cobra.Command{
	Use:   "configs",
	Short: "Manage stored site configs",
	Long:  `Stores site configs by ticker so scheduled jobs and "run --ticker" can load them.`,
}

var configsPutTicker string

var configsPutCmd = &cobra.Command{
	Use:   "put <file>",
	Short: "Store a site config file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read site config %s: %w", args[0], err)
		}
		return withSiteConfigs(func(ctx context.Context, store interfaces.SiteConfigStorage) error {
			record, err := putSiteConfig(ctx, store, data, configsPutTicker)
			if err != nil {
				return err
			}
			logger.Info().Str("ticker", record.Ticker).Str("file", args[0]).Msg("Site config stored")
			return nil
		})
	},
}

var configsGetCmd = &cobra.Command{
	Use:   "get <ticker>",
	Short: "Print a stored site config",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSiteConfigs(func(ctx context.Context, store interfaces.SiteConfigStorage) error {
			record, err := store.GetSiteConfig(ctx, args[0])
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), record.Config)
		})
	},
}

var configsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored site configs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSiteConfigs(func(ctx context.Context, store interfaces.SiteConfigStorage) error {
			records, err := store.ListSiteConfigs(ctx)
			if err != nil {
				return err
			}
			return printSiteConfigs(cmd.OutOrStdout(), records)
		})
	},
}

var configsDeleteCmd = &cobra.Command{
	Use:   "delete <ticker>",
	Short: "Delete a stored site config",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSiteConfigs(func(ctx context.Context, store interfaces.SiteConfigStorage) error {
			if err := store.DeleteSiteConfig(ctx, args[0]); err != nil {
				return err
			}
			logger.Info().Str("ticker", args[0]).Msg("Site config deleted")
			return nil
		})
	},
}

func init() {
	configsPutCmd.Flags().StringVar(&configsPutTicker, "ticker", "", "Store under this ticker instead of the document's ticker")
	configsCmd.AddCommand(configsPutCmd, configsGetCmd, configsListCmd, configsDeleteCmd)
}

// withSiteConfigs opens storage only, without the LLM and notifier stack.
func withSiteConfigs(fn func(ctx context.Context, store interfaces.SiteConfigStorage) error) error {
	ctx, stop := signalContext()
	defer stop()

	manager, err := storage.NewStorageManager(ctx, logger, config)
	if err != nil {
		return err
	}
	defer func() {
		if err := manager.Close(); err != nil {
			logger.Warn().Err(err).Msg("Failed to close storage")
		}
	}()
	return fn(ctx, manager.SiteConfigStorage())
}

// putSiteConfig normalizes a site document to strict JSON and stores it.
// Quarter and year may be absent; jobs and the run command supply them.
func putSiteConfig(ctx context.Context, store interfaces.SiteConfigStorage, data []byte, ticker string) (*models.SiteConfigRecord, error) {
	normalized, err := common.NormalizeSiteJSON(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidConfig, err)
	}

	var site models.WorkflowConfig
	if err := json.Unmarshal(normalized, &site); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidConfig, err)
	}
	if ticker == "" {
		ticker = site.Ticker
	}

	record := &models.SiteConfigRecord{
		Ticker: ticker,
		Config: json.RawMessage(normalized),
	}
	if err := store.PutSiteConfig(ctx, record); err != nil {
		return nil, err
	}
	return record, nil
}

func printSiteConfigs(w io.Writer, records []*models.SiteConfigRecord) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TICKER\tBASE URL\tUPDATED")
	for _, record := range records {
		var site struct {
			BaseURL string `json:"base_url"`
		}
		_ = json.Unmarshal(record.Config, &site)
		fmt.Fprintf(tw, "%s\t%s\t%s\n", record.Ticker, site.BaseURL, record.UpdatedAt.Format(time.RFC3339))
	}
	return tw.Flush()
}
