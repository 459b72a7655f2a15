package cli

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lucasnoah/coordcard/internal/card"
	"github.com/lucasnoah/coordcard/internal/db"
	"github.com/lucasnoah/coordcard/internal/engine"
	"github.com/lucasnoah/coordcard/internal/score"
	"github.com/lucasnoah/coordcard/internal/statefile"
)

var nextCmd = &cobra.Command{
	Use:   "next",
	Short: "Compute the next repair step for one observation",
	Long: `Run one cycle of the escalation engine.

The card is validated first. Scores come from --R/--H/--O (clamped to 0..3) or,
with --text, from the heuristic scorer; any of --R/--H/--O given alongside
--text override that component. The result, including the state to pass in
next time, is printed as JSON.`,
	Args: exactArgs(0),
	RunE: func(cmd *cobra.Command, args []string) error {
		cardPath, _ := cmd.Flags().GetString("card")
		statePath, _ := cmd.Flags().GetString("state")
		write, _ := cmd.Flags().GetBool("write")
		logDecision, _ := cmd.Flags().GetBool("log")
		conversation, _ := cmd.Flags().GetString("conversation")

		if cardPath == "" {
			cardPath = cfg.Defaults.Card
		}
		if cardPath == "" || statePath == "" {
			return usageError(cmd, errors.New("--card and --state are required"))
		}
		sc, err := scoreFromFlags(cmd)
		if err != nil {
			return err
		}

		raw, err := card.ReadFile(cardPath)
		if err != nil {
			return err
		}
		if res := card.Validate(raw); !res.OK {
			errOut := cmd.ErrOrStderr()
			fmt.Fprintln(errOut, "Card failed validation.")
			for _, e := range res.Errors {
				fmt.Fprintln(errOut, e.Error())
			}
			return &ExitError{Code: exitFailure}
		}
		c, err := card.Parse(raw)
		if err != nil {
			return err
		}

		st, err := statefile.Load(statePath)
		if err != nil {
			return err
		}

		res := engine.NextStep(c, st, sc)
		logger.Debug("next step",
			zap.String("card", cardPath),
			zap.Int("rhoSum", res.Why.RhoSum),
			zap.String("trigger", string(res.Why.TriggerFired)),
			zap.String("action", string(res.Action)),
		)

		data, err := statefile.Marshal(res)
		if err != nil {
			return err
		}
		if _, err := cmd.OutOrStdout().Write(data); err != nil {
			return err
		}

		if write {
			if err := statefile.Save(statePath, res.State); err != nil {
				return err
			}
		}

		if logDecision {
			if conversation == "" {
				conversation = strings.TrimSuffix(filepath.Base(statePath), filepath.Ext(statePath))
			}
			d, cleanup, err := openDB(cmd)
			if err != nil {
				return fmt.Errorf("open decision log: %w", err)
			}
			defer cleanup()
			id, err := d.LogDecision(db.Decision{
				Conversation: conversation,
				CardID:       c.ID,
				R:            sc.R,
				H:            sc.H,
				O:            sc.O,
				RhoSum:       res.Why.RhoSum,
				Action:       string(res.Action),
				Trigger:      string(res.Why.TriggerFired),
				Level:        res.Why.EscalationLevel,
				Summary:      res.Why.Summary,
			})
			if err != nil {
				return err
			}
			logger.Info("decision logged", zap.String("id", id), zap.String("conversation", conversation))
		}
		return nil
	},
}

// scoreFromFlags builds the observation score from --text and --R/--H/--O.
func scoreFromFlags(cmd *cobra.Command) (score.Result, error) {
	flags := cmd.Flags()
	manual := &score.Manual{}
	given := 0
	for _, f := range []struct {
		name string
		dst  **int
	}{{"R", &manual.R}, {"H", &manual.H}, {"O", &manual.O}} {
		if !flags.Changed(f.name) {
			continue
		}
		v, err := flags.GetInt(f.name)
		if err != nil {
			return score.Result{}, usageError(cmd, err)
		}
		*f.dst = &v
		given++
	}

	if flags.Changed("text") {
		text, _ := flags.GetString("text")
		return score.ScoreObservation(text, score.Options{Manual: manual}), nil
	}
	if given < 3 {
		return score.Result{}, usageError(cmd, errors.New("--R, --H and --O are required unless --text is given"))
	}
	return score.FromManual(*manual.R, *manual.H, *manual.O), nil
}

func addScoreFlags(cmd *cobra.Command) {
	cmd.Flags().Int("R", 0, "Repetition score (0-3)")
	cmd.Flags().Int("H", 0, "Heat score (0-3)")
	cmd.Flags().Int("O", 0, "Optionality-loss score (0-3)")
}

func init() {
	nextCmd.Flags().String("card", "", "Path to the coordination card, JSON or YAML (default: defaults.card from the config file)")
	nextCmd.Flags().String("state", "", "Path to the state document")
	addScoreFlags(nextCmd)
	nextCmd.Flags().String("text", "", "Score this observation text with the heuristic scorer")
	nextCmd.Flags().Bool("write", false, "Write the new state back to --state")
	nextCmd.Flags().Bool("log", false, "Record the decision in the decision log")
	nextCmd.Flags().String("conversation", "", "Conversation id for --log (default: state file name)")
}
