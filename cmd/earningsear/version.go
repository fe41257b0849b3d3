package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ternarybob/earningsear/internal/common"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "EarningsEar version %s\n", common.GetFullVersion())
	},
}
