package cli

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cohortfit/cohortfit/internal/stats"
	"github.com/cohortfit/cohortfit/internal/store"
)

var groupsCmd = &cobra.Command{
	Use:   "groups",
	Short: "List groups with raw conversion counts",
	Long: `List stored groups with unit counts, conversion counts, and a
Wilson interval on the raw conversion share.

The raw share ignores censoring, so young cohorts read low; fit a
model for time-adjusted numbers.`,
	Args: cobra.NoArgs,
	RunE: runGroups,
}

func init() {
	rootCmd.AddCommand(groupsCmd)
}

func runGroups(cmd *cobra.Command, args []string) error {
	return withStore(func(s store.Store) error {
		groupStats, err := s.GroupStats(context.Background())
		if err != nil {
			return fmt.Errorf("failed to get group stats: %w", err)
		}

		if len(groupStats) == 0 {
			fmt.Println("No events yet.")
			fmt.Println()
			fmt.Println("Record units with 'cohortfit add' or seed a demo cohort with 'cohortfit simulate'.")
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "GROUP\tUNITS\tCONVERSIONS\tRAW RATE\t95% CI\tOLDEST")

		for _, g := range groupStats {
			rate := float64(g.Conversions) / float64(g.Units)
			lo, hi := stats.WilsonInterval(g.Conversions, g.Units, 0.95)
			fmt.Fprintf(w, "%s\t%d\t%d\t%s\t[%s, %s]\t%s\n",
				g.Group, g.Units, g.Conversions,
				formatPercent(rate), formatPercent(lo), formatPercent(hi),
				g.Oldest.Format("2006-01-02"),
			)
		}

		return w.Flush()
	})
}
