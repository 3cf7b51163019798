package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"firestige.xyz/wiresentry/internal/command"
	"firestige.xyz/wiresentry/internal/loader"
)

// moduleCmd represents the module command group
var moduleCmd = &cobra.Command{
	Use:   "module",
	Short: "Manage detector and handler modules",
	Long: `Manage detector and handler modules on the running daemon.

Subcommands:
  list        - List registered modules and available kinds
  register    - Build and register a module
  unregister  - Remove a module by ID`,
}

var moduleListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered modules",
	Run: func(cmd *cobra.Command, args []string) {
		res, err := newClient().ModuleList(context.Background())
		if err != nil {
			exitWithError("failed to list modules", err)
		}
		printModules(res)
	},
}

var moduleRegisterCmd = &cobra.Command{
	Use:   "register <detector|handler> <kind>",
	Short: "Register a module",
	Long: `Build a module from a registered kind and add it to the daemon.

Options come from --set key=value pairs and/or a YAML file of options;
--set wins on conflicts.

Examples:
  wiresentry module register detector portscan --set min_sequence=40
  wiresentry module register handler webhook -f webhook.yml`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		opts, err := moduleOptions(moduleOptionsFile, moduleSet)
		if err != nil {
			exitWithError("invalid options", err)
		}
		res, err := newClient().ModuleRegister(context.Background(), command.ModuleRegisterParams{
			Type:    args[0],
			Kind:    args[1],
			Options: opts,
		})
		if err != nil {
			exitWithError("failed to register module", err)
		}
		fmt.Printf("Registered %s %s\n", res.Type, res.ID)
	},
}

var moduleUnregisterCmd = &cobra.Command{
	Use:   "unregister <id>",
	Short: "Remove a module",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		res, err := newClient().ModuleUnregister(context.Background(), args[0])
		if err != nil {
			exitWithError("failed to unregister module", err)
		}
		fmt.Printf("Unregistered %s %s\n", res.Type, res.ID)
	},
}

var (
	moduleOptionsFile string
	moduleSet         map[string]string
)

func init() {
	moduleRegisterCmd.Flags().StringVarP(&moduleOptionsFile, "file", "f", "", "YAML file of module options")
	moduleRegisterCmd.Flags().StringToStringVar(&moduleSet, "set", nil, "module option key=value (repeatable)")

	moduleCmd.AddCommand(moduleListCmd)
	moduleCmd.AddCommand(moduleRegisterCmd)
	moduleCmd.AddCommand(moduleUnregisterCmd)
}

// moduleOptions merges a YAML options file with --set pairs.
func moduleOptions(path string, set map[string]string) (map[string]any, error) {
	opts := make(map[string]any)
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, &opts); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	for k, v := range set {
		opts[k] = v
	}
	if len(opts) == 0 {
		return nil, nil
	}
	return opts, nil
}

func printModules(res *command.ModuleListResult) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TYPE\tID\tNAME\tVERSION\tFREQUENCY\tNEXT RUN")
	for _, d := range res.Detectors {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%ds\t%s\n", loader.TypeDetector, d.ID, d.Metadata.Name,
			d.Metadata.Version, d.Frequency, d.NextRun.Format("15:04:05"))
	}
	for _, h := range res.Handlers {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t-\t-\n", loader.TypeHandler, h.ID, h.Metadata.Name, h.Metadata.Version)
	}
	w.Flush()

	fmt.Printf("\nAvailable detectors: %s\n", strings.Join(res.Available.Detectors, ", "))
	fmt.Printf("Available handlers:  %s\n", strings.Join(res.Available.Handlers, ", "))
}
