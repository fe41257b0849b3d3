package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ternarybob/earningsear/internal/models"
	"github.com/ternarybob/earningsear/internal/storage"
)

var messagesCmd = &cobra.Command{
	Use:   "messages",
	Short: "List sent earnings digests",
	Args:  cobra.NoArgs,
	RunE:  runMessages,
}

var (
	messagesTicker string
	messagesLimit  int
	messagesJSON   bool
)

func init() {
	messagesCmd.Flags().StringVar(&messagesTicker, "ticker", "", "Only messages for this ticker")
	messagesCmd.Flags().IntVar(&messagesLimit, "limit", 20, "Maximum messages to list (0 for all)")
	messagesCmd.Flags().BoolVar(&messagesJSON, "json", false, "Print full messages as JSON")
}

func runMessages(cmd *cobra.Command, args []string) error {
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

	messages, err := manager.MessageStorage().ListMessages(ctx, messagesTicker, messagesLimit)
	if err != nil {
		return err
	}

	if messagesJSON {
		return writeJSON(cmd.OutOrStdout(), messages)
	}
	return printMessages(cmd.OutOrStdout(), messages)
}

// printMessages writes one row per message with the digest header line.
func printMessages(w io.Writer, messages []*models.StoredMessage) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SENT\tTICKER\tPERIOD\tID\tHEADLINE")
	for _, m := range messages {
		headline, _, _ := strings.Cut(m.Message, "\n")
		fmt.Fprintf(tw, "%s\t%s\tQ%d %d\t%s\t%s\n",
			m.Timestamp.Format(time.RFC3339), m.Ticker, m.Quarter, m.Year, m.MessageID, headline)
	}
	return tw.Flush()
}
