package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var attacksJSON bool

var attacksCmd = &cobra.Command{
	Use:   "attacks",
	Short: "List attacks detected since the daemon started",
	Run: func(cmd *cobra.Command, args []string) {
		res, err := newClient().AttackList(context.Background())
		if err != nil {
			exitWithError("failed to list attacks", err)
		}

		if attacksJSON {
			out, err := json.MarshalIndent(res, "", "  ")
			if err != nil {
				exitWithError("failed to format result", err)
			}
			fmt.Println(string(out))
			return
		}

		if res.Count == 0 {
			fmt.Println("No attacks detected.")
			return
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "TYPE\tATTACKER\tVICTIM\tPACKETS\tFIRST SEEN\tLAST SEEN\tSIGNATURE")
		for _, a := range res.Attacks {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\t%s\n", a.Type, a.Attacker, a.Victim, a.Packets,
				a.FirstSeen.Format(time.DateTime), a.LastSeen.Format(time.DateTime), a.Signature)
		}
		w.Flush()
	},
}

func init() {
	attacksCmd.Flags().BoolVar(&attacksJSON, "json", false, "print raw JSON")
}
