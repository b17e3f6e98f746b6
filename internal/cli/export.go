package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cohortfit/cohortfit/export"
	"github.com/cohortfit/cohortfit/internal/store"
)

func init() {
	rootCmd.AddCommand(newExportCmd())
}

func newExportCmd() *cobra.Command {
	var (
		mf     modelFlags
		cf     cohortFlags
		format string
		out    string
		tMax   float64
		steps  int
		groups []string
	)

	cmd := &cobra.Command{
		Use:   "export [group]",
		Short: "Export conversion curves as CSV or JSON",
		Long: `Export per-group conversion curves in long format, one row per
group and horizon, ready for plotting.

Examples:
  cohortfit export --km --format csv > curves.csv
  cohortfit export paid --family weibull --ci 0.8 --format json --out curves.json
  cohortfit export --km --t-max 30 --steps 120`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "csv" && format != "json" {
				return fmt.Errorf("invalid format: must be 'csv' or 'json'")
			}

			return withStore(func(s store.Store) error {
				arrays, err := loadArrays(s, &cf, groupArg(args))
				if err != nil {
					return err
				}

				m, err := mf.build(arrays)
				if err != nil {
					return err
				}

				table, err := export.Build(m, export.Options{
					TMax:   tMax,
					Steps:  steps,
					Level:  mf.ciLevel,
					Groups: groups,
				})
				if err != nil {
					return err
				}

				dst := os.Stdout
				if out != "" {
					f, err := os.Create(out)
					if err != nil {
						return fmt.Errorf("failed to create output file: %w", err)
					}
					defer f.Close()
					dst = f
				}

				if format == "csv" {
					return table.WriteCSV(dst)
				}
				return table.WriteJSON(dst)
			})
		},
	}

	mf.register(cmd)
	cf.register(cmd)
	cmd.Flags().StringVarP(&format, "format", "f", "csv", "output format (csv or json)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default: stdout)")
	cmd.Flags().Float64Var(&tMax, "t-max", 0, "last horizon (0 = longest observed duration)")
	cmd.Flags().IntVar(&steps, "steps", 0, "grid points from 0 to the last horizon (0 = one per whole time unit)")
	cmd.Flags().StringSliceVar(&groups, "groups", nil, "restrict output to these groups")

	return cmd
}
