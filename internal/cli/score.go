package cli

import (
	"github.com/spf13/cobra"

	"github.com/lucasnoah/coordcard/internal/score"
	"github.com/lucasnoah/coordcard/internal/statefile"
)

var scoreCmd = &cobra.Command{
	Use:   "score <text>",
	Short: "Score an observation with the RHO heuristics",
	Long: `Score one observation on repetition (R), heat (H) and optionality loss (O).

The heuristics are simple pattern matches; --R/--H/--O override individual
components.`,
	Args: exactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()
		manual := &score.Manual{}
		if flags.Changed("R") {
			v, _ := flags.GetInt("R")
			manual.R = &v
		}
		if flags.Changed("H") {
			v, _ := flags.GetInt("H")
			manual.H = &v
		}
		if flags.Changed("O") {
			v, _ := flags.GetInt("O")
			manual.O = &v
		}

		data, err := statefile.Marshal(score.ScoreObservation(args[0], score.Options{Manual: manual}))
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}

func init() {
	addScoreFlags(scoreCmd)
}
