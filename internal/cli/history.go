package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/lucasnoah/coordcard/internal/statefile"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List decisions recorded with next --log",
	Args:  exactArgs(0),
	RunE: func(cmd *cobra.Command, args []string) error {
		conversation, _ := cmd.Flags().GetString("conversation")
		limit, _ := cmd.Flags().GetInt("limit")
		asJSON, _ := cmd.Flags().GetBool("json")

		d, cleanup, err := openDB(cmd)
		if err != nil {
			return err
		}
		defer cleanup()

		decisions, err := d.ListDecisions(conversation, limit)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if asJSON {
			data, err := statefile.Marshal(decisions)
			if err != nil {
				return err
			}
			_, err = out.Write(data)
			return err
		}

		if len(decisions) == 0 {
			fmt.Fprintln(out, "No decisions logged.")
			return nil
		}
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "TIME\tCONVERSATION\tRHO\tSUM\tTRIGGER\tLEVEL\tACTION")
		for _, dec := range decisions {
			fmt.Fprintf(w, "%s\t%s\t%d/%d/%d\t%d\t%s\t%d\t%s\n",
				dec.CreatedAt, dec.Conversation, dec.R, dec.H, dec.O, dec.RhoSum, dec.Trigger, dec.Level, dec.Action)
		}
		return w.Flush()
	},
}

func init() {
	historyCmd.Flags().String("conversation", "", "Only show this conversation")
	historyCmd.Flags().Int("limit", 20, "Show at most this many recent decisions (0 for all)")
	historyCmd.Flags().Bool("json", false, "Print decisions as JSON")
}
