package cli

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/lucasnoah/coordcard/internal/analytics"
	"github.com/lucasnoah/coordcard/internal/statefile"
)

var analyticsCmd = &cobra.Command{
	Use:   "analytics",
	Short: "Query decision log analytics",
}

// runAnalytics opens the decision log, resolves --since and hands the query
// result either to the JSON encoder or to the table printer.
func runAnalytics[T any](query func(analytics.DB, string) ([]T, error), header string, row func(T) string) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		sinceFlag, _ := cmd.Flags().GetString("since")
		asJSON, _ := cmd.Flags().GetBool("json")

		since, err := analytics.ParseSince(sinceFlag, time.Now())
		if err != nil {
			return usageError(cmd, err)
		}

		d, cleanup, err := openDB(cmd)
		if err != nil {
			return err
		}
		defer cleanup()

		results, err := query(d, since)
		if err != nil {
			return err
		}
		return printAnalytics(cmd.OutOrStdout(), asJSON, results, header, row)
	}
}

func printAnalytics[T any](out io.Writer, asJSON bool, results []T, header string, row func(T) string) error {
	if asJSON {
		if results == nil {
			results = []T{}
		}
		data, err := statefile.Marshal(results)
		if err != nil {
			return err
		}
		_, err = out.Write(data)
		return err
	}
	if len(results) == 0 {
		fmt.Fprintln(out, "No decisions logged.")
		return nil
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, header)
	for _, r := range results {
		fmt.Fprintln(w, row(r))
	}
	return w.Flush()
}

var analyticsActionsCmd = &cobra.Command{
	Use:   "actions",
	Short: "Distribution of chosen actions",
	Args:  exactArgs(0),
	RunE: runAnalytics(analytics.QueryActionCounts, "ACTION\tCOUNT\tPCT",
		func(r analytics.ActionCount) string {
			return fmt.Sprintf("%s\t%d\t%.1f%%", r.Action, r.Count, r.Pct)
		}),
}

var analyticsTriggersCmd = &cobra.Command{
	Use:   "triggers",
	Short: "How often each trigger fired",
	Args:  exactArgs(0),
	RunE: runAnalytics(analytics.QueryTriggerRates, "TRIGGER\tCOUNT\tPCT\tAVG LEVEL",
		func(r analytics.TriggerRate) string {
			return fmt.Sprintf("%s\t%d\t%.1f%%\t%.1f", r.Trigger, r.Count, r.Pct, r.AvgLevel)
		}),
}

var analyticsConversationsCmd = &cobra.Command{
	Use:   "conversations",
	Short: "Per-conversation repair rate, peak level and RHO sums",
	Args:  exactArgs(0),
	RunE: runAnalytics(analytics.QueryConversationSummaries, "CONVERSATION\tDECISIONS\tREPAIR\tMAX LEVEL\tAVG SUM\tP50\tP95\tLAST",
		func(r analytics.ConversationSummary) string {
			return fmt.Sprintf("%s\t%d\t%.1f%%\t%d\t%.1f\t%.1f\t%.1f\t%s",
				r.Conversation, r.Decisions, r.RepairPct, r.MaxLevel, r.AvgRhoSum, r.P50RhoSum, r.P95RhoSum, r.LastAt)
		}),
}

var analyticsPeakLevelsCmd = &cobra.Command{
	Use:   "peak-levels",
	Short: "How many conversations peaked at each escalation level",
	Args:  exactArgs(0),
	RunE: runAnalytics(analytics.QueryPeakLevels, "LEVEL\tCONVERSATIONS\tPCT",
		func(r analytics.PeakLevelDist) string {
			return fmt.Sprintf("%d\t%d\t%.1f%%", r.Level, r.Conversations, r.Pct)
		}),
}

func init() {
	for _, c := range []*cobra.Command{analyticsActionsCmd, analyticsTriggersCmd, analyticsConversationsCmd, analyticsPeakLevelsCmd} {
		c.Flags().String("since", "", "Only include decisions since a duration (24h), day count (7d) or timestamp")
		c.Flags().Bool("json", false, "Print results as JSON")
		analyticsCmd.AddCommand(c)
	}
}
