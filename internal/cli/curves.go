package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cohortfit/cohortfit/cohort"
	"github.com/cohortfit/cohortfit/export"
	"github.com/cohortfit/cohortfit/internal/store"
)

func init() {
	rootCmd.AddCommand(newCurvesCmd())
}

func newCurvesCmd() *cobra.Command {
	var (
		mf     modelFlags
		cf     cohortFlags
		tMax   float64
		groups []string
	)

	cmd := &cobra.Command{
		Use:   "curves [group]",
		Short: "Print conversion curves as a table",
		Long: `Print per-group conversion curves over integer horizons, the
nonparametric Kaplan-Meier estimate next to the fitted parametric
curve. Where the two disagree badly, the chosen family does not
describe the data.

With a group argument only that group's events are fit; the default
fits every group jointly. --ci adds interval columns for both
estimates, which makes the parametric fit sample its posterior.

Examples:
  cohortfit curves --family weibull
  cohortfit curves paid --family gamma --ci 0.8
  cohortfit curves --family weibull --t-max 30`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(func(s store.Store) error {
				arrays, err := loadArrays(s, &cf, groupArg(args))
				if err != nil {
					return err
				}

				gm, err := mf.buildParametric(arrays)
				if err != nil {
					return err
				}
				gkm, err := cohort.FitGroupsKM(arrays)
				if err != nil {
					return err
				}

				// Same groups, grid, and level on both sides, so the
				// tables line up row for row.
				opts := export.Options{
					TMax:   tMax,
					Level:  mf.ciLevel,
					Groups: groups,
				}
				if opts.TMax == 0 {
					opts.TMax = gm.MaxDuration()
				}
				model, err := export.Build(gm, opts)
				if err != nil {
					return err
				}
				km, err := export.Build(gkm, opts)
				if err != nil {
					return err
				}
				return printCurves(cmd, km, model)
			})
		},
	}

	mf.registerParametric(cmd)
	cf.register(cmd)
	cmd.Flags().Float64Var(&tMax, "t-max", 0, "last horizon (0 = longest observed duration)")
	cmd.Flags().StringSliceVar(&groups, "groups", nil, "restrict output to these groups")

	return cmd
}

func printCurves(cmd *cobra.Command, km, model *export.Table) error {
	if len(km.Rows) != len(model.Rows) {
		return fmt.Errorf("estimate tables differ in size: %d vs %d rows", len(km.Rows), len(model.Rows))
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	if model.HasCI {
		level := model.Level * 100
		fmt.Fprintf(w, "GROUP\tT\tKAPLAN-MEIER\t%.0f%% CI\tMODEL\t%.0f%% CI\n", level, level)
	} else {
		fmt.Fprintln(w, "GROUP\tT\tKAPLAN-MEIER\tMODEL")
	}

	for i, kr := range km.Rows {
		mr := model.Rows[i]
		if model.HasCI {
			fmt.Fprintf(w, "%s\t%.0f\t%s\t[%s, %s]\t%s\t[%s, %s]\n",
				kr.Group, kr.T,
				formatPercent(kr.Value), formatPercent(kr.Lo), formatPercent(kr.Hi),
				formatPercent(mr.Value), formatPercent(mr.Lo), formatPercent(mr.Hi))
		} else {
			fmt.Fprintf(w, "%s\t%.0f\t%s\t%s\n", kr.Group, kr.T, formatPercent(kr.Value), formatPercent(mr.Value))
		}
	}

	return w.Flush()
}
