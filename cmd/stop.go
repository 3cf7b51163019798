package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// stopCmd represents the stop command
var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the wiresentry daemon",
	Long: `Stop the wiresentry daemon gracefully.

This command sends daemon_shutdown to the running daemon via Unix Domain Socket.
The daemon finishes the in-flight detector run, closes the sink and exits.`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := newClient().Shutdown(context.Background()); err != nil {
			exitWithError("failed to stop daemon", err)
		}
		fmt.Println("Daemon is shutting down.")
	},
}
