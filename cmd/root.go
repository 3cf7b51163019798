// Package cmd implements CLI commands using cobra framework.
package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"firestige.xyz/wiresentry/internal/command"
	"firestige.xyz/wiresentry/internal/daemon"
)

var (
	// Global flags
	configFile string
	socketPath string
	timeout    time.Duration
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "wiresentry",
	Short: "WireSentry - host-based network intrusion detection",
	Long: `WireSentry watches traffic on one network interface and reports
suspicious activity such as ARP spoofing and sequential TCP port scans.

Captured packets are decoded into a bounded window, detector modules scan
the window on their own schedule, and new attacks are persisted and handed
to handler modules (log, email, webhook, kafka).

Local control: CLI via Unix Domain Socket`,
	Version:       daemon.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. A daemon startup failure is returned as
// *daemon.ExitError.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "/etc/wiresentry/config.yml",
		"config file path")
	rootCmd.PersistentFlags().StringVarP(&socketPath, "socket", "s", "/var/run/wiresentry.sock",
		"daemon socket path")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Second,
		"control request timeout")

	rootCmd.AddCommand(daemonCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(moduleCmd)
	rootCmd.AddCommand(attacksCmd)
	rootCmd.AddCommand(validateCmd)
}

func newClient() *command.UDSClient {
	return command.NewUDSClient(socketPath, timeout)
}

// exitWithError prints error message and exits with code 1
func exitWithError(msg string, err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s: %v\n", msg, err)
	} else {
		fmt.Fprintf(os.Stderr, "Error: %s\n", msg)
	}
	os.Exit(1)
}
