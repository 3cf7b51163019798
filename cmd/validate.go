package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"firestige.xyz/wiresentry/internal/config"
	"firestige.xyz/wiresentry/internal/loader"
	"firestige.xyz/wiresentry/pkg/plugin"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration and module manifest",
	Long: `Validate the configuration file and the module manifest it points at
without starting capture. Every enabled module is built and initialised
with its options, then discarded.

Examples:
  wiresentry validate -c /etc/wiresentry/config.yml`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := runValidate(configFile); err != nil {
			fmt.Fprintf(os.Stderr, "INVALID: %v\n", err)
			os.Exit(1)
		}
	},
}

func runValidate(path string) error {
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	manifest, err := loader.Read(cfg.Plugins.Manifest)
	if err != nil {
		return err
	}

	var detectors, handlers int
	for _, e := range manifest.Modules {
		if !e.IsEnabled() {
			continue
		}
		m, err := loader.Build(e)
		if err != nil {
			return err
		}
		loader.Close(m)
		if _, ok := m.(plugin.Detector); ok {
			detectors++
		} else {
			handlers++
		}
	}

	fmt.Printf("VALID: source %q, sink %q, %d detector(s), %d handler(s)\n",
		cfg.Capture.Source, cfg.Sink.Type, detectors, handlers)
	return nil
}
