package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lucasnoah/coordcard/internal/card"
)

var validateCmd = &cobra.Command{
	Use:   "validate <card-file>",
	Short: "Validate a coordination card (JSON or YAML)",
	Long: `Validate a card against the schema for its version ("0.2" selects the
v0.2 schema, anything else v0.1).

Prints OK and exits 0, or prints FAIL followed by one "path: message" line per
problem and exits 1. A valid card may also get "warning: path: message" lines
for things the engine tolerates, such as a choreography step with no template
(it runs as repair.pause).`,
	Args: exactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := card.ReadFile(args[0])
		if err != nil {
			return err
		}

		res := card.Validate(raw)
		out := cmd.OutOrStdout()
		if res.OK {
			fmt.Fprintln(out, "OK")
			for _, w := range res.Warnings {
				fmt.Fprintf(out, "warning: %s\n", w.Error())
			}
			return nil
		}

		logger.Debug("card failed validation", zap.String("path", args[0]), zap.Int("errors", len(res.Errors)))
		fmt.Fprintln(out, "FAIL")
		for _, e := range res.Errors {
			fmt.Fprintln(out, e.Error())
		}
		return &ExitError{Code: exitFailure}
	},
}
