package cmd

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abhisek/codequiz/internal/ui/theme"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recent generation runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		s, err := openEventStore(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		runs, err := s.RunRepo().ListRuns(cmd.Context(), limit)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(runs) == 0 {
			fmt.Fprintln(out, "No runs recorded yet.")
			return nil
		}

		fmt.Fprintf(out, "%-36s  %-19s  %-8s  %9s  %8s  %5s  %6s  %8s  %s\n",
			"Run", "Started", "Status", "Accepted", "Rejected", "Calls", "Failed", "Secs", "Per type")
		fmt.Fprintln(out, strings.Repeat("─", 130))
		for _, r := range runs {
			status := theme.Good.Render(fmt.Sprintf("%-8s", "complete"))
			if !r.Complete {
				status = theme.Warn.Render(fmt.Sprintf("%-8s", "short"))
			}
			fmt.Fprintf(out, "%-36s  %-19s  %s  %4d/%-4d  %8d  %5d  %6d  %8.1f  %s\n",
				r.ID,
				r.StartedAt.Local().Format("2006-01-02 15:04:05"),
				status,
				r.Accepted, r.Target,
				r.Rejected, r.Calls, r.Failed,
				r.Duration().Seconds(),
				perTypeSummary(r.PerType),
			)
		}
		return nil
	},
}

func perTypeSummary(perType map[string]int) string {
	parts := make([]string, 0, len(perType))
	for _, t := range slices.Sorted(maps.Keys(perType)) {
		parts = append(parts, fmt.Sprintf("%s=%d", t, perType[t]))
	}
	return strings.Join(parts, " ")
}

func init() {
	runsCmd.Flags().IntP("limit", "n", 20, "Number of runs to show")
}
