package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"firestige.xyz/wiresentry/internal/config"
	"firestige.xyz/wiresentry/internal/daemon"
)

// daemonCmd represents the daemon command
var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the wiresentry daemon in foreground",
	Long: `Run the wiresentry daemon process in foreground.

The daemon will:
  1. Load configuration (file, WIRESENTRY_* environment, flags)
  2. Initialize logging, PID file and metrics
  3. Open the persistence sink and the capture device
  4. Load detector and handler modules
  5. Start capture, enrichment and the detector scheduler
  6. Serve the control socket until SIGTERM, SIGINT or "wiresentry stop"

Exit codes: 2 device not found, 3 device open failure, 4 capture start failure.

Examples:
  wiresentry daemon -i eth0
  wiresentry daemon --source file --file capture.pcap`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDaemon(cmd.Flags())
	},
}

// daemonFlags maps daemon flags to configuration keys.
var daemonFlags = map[string]string{
	"device":      "capture.device",
	"promiscuous": "capture.promiscuous",
	"bpf":         "capture.bpf_filter",
	"source":      "capture.source",
	"file":        "capture.file",
	"pidfile":     "control.pid_file",
	"manifest":    "plugins.manifest",
	"log-level":   "log.level",
}

func init() {
	f := daemonCmd.Flags()
	f.StringP("device", "i", "", "network interface to capture on")
	f.Bool("promiscuous", true, "capture in promiscuous mode")
	f.String("bpf", "", "BPF filter expression")
	f.String("source", "pcap", "capture source: pcap, afpacket or file")
	f.String("file", "", "pcap file to replay with --source file")
	f.StringP("pidfile", "p", "/var/run/wiresentry.pid", "PID file path")
	f.String("manifest", "", "module manifest (default: built-in module set)")
	f.String("log-level", "info", "log level: debug, info, warn or error")
}

// loadConfig reads the config file, if present, with flags layered on top.
func loadConfig(flags *pflag.FlagSet) (*config.GlobalConfig, string, error) {
	v := config.New()
	if err := bindFlags(v, flags); err != nil {
		return nil, "", err
	}

	path := configFile
	if _, err := os.Stat(path); err != nil {
		if !rootCmd.PersistentFlags().Changed("config") && os.IsNotExist(err) {
			path = ""
		} else {
			return nil, "", fmt.Errorf("config file %s: %w", path, err)
		}
	}

	cfg, err := config.LoadWith(v, path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	if err := v.BindPFlag(config.Key("control.socket"), rootCmd.PersistentFlags().Lookup("socket")); err != nil {
		return err
	}
	for name, key := range daemonFlags {
		fl := flags.Lookup(name)
		if fl == nil {
			continue
		}
		if err := v.BindPFlag(config.Key(key), fl); err != nil {
			return fmt.Errorf("bind flag --%s: %w", name, err)
		}
	}
	return nil
}

func runDaemon(flags *pflag.FlagSet) error {
	cfg, path, err := loadConfig(flags)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	d := daemon.New(cfg, path)
	if err := d.Start(); err != nil {
		return err
	}
	return d.Run()
}
