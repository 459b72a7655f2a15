package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lucasnoah/coordcard/internal/engine"
	"github.com/lucasnoah/coordcard/internal/statefile"
)

var initStateCmd = &cobra.Command{
	Use:   "init-state",
	Short: "Print or write the initial coordination state",
	Args:  exactArgs(0),
	RunE: func(cmd *cobra.Command, args []string) error {
		out, _ := cmd.Flags().GetString("out")
		st := engine.InitState()

		if out != "" {
			if err := statefile.Save(out, st); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote initial state to %s\n", out)
			return nil
		}

		data, err := statefile.Marshal(st)
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}

func init() {
	initStateCmd.Flags().String("out", "", "Write the state document to this file instead of stdout")
}
