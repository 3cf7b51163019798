package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon status",
	Long: `Query the wiresentry daemon for its overall status.

Shows: version, uptime, capture counters, window occupancy by protocol,
enrichment backlog, sink, tracked attacks and registered modules.`,
	Run: func(cmd *cobra.Command, args []string) {
		st, err := newClient().DaemonStatus(context.Background())
		if err != nil {
			exitWithError("failed to query daemon status", err)
		}
		out, err := json.MarshalIndent(st, "", "  ")
		if err != nil {
			exitWithError("failed to format result", err)
		}
		fmt.Println(string(out))
	},
}
