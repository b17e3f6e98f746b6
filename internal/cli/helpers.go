package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/cohortfit/cohortfit/cohort"
	"github.com/cohortfit/cohortfit/dist"
	"github.com/cohortfit/cohortfit/export"
	"github.com/cohortfit/cohortfit/internal/store"
	"github.com/cohortfit/cohortfit/regress"
)

// withStore opens the configured backend, executes the function, and
// handles cleanup. --mysql wins over --db when both are set.
func withStore(fn func(store.Store) error) error {
	var (
		s   store.Store
		err error
	)
	if mysqlDSN != "" {
		s, err = store.OpenMySQL(mysqlDSN)
	} else {
		s, err = store.Open(dbPath)
	}
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer s.Close()

	return fn(s)
}

// loadUnits reads stored events into cohort units. An empty group
// loads every event.
func loadUnits(s store.Store, group string) ([]cohort.Unit, error) {
	events, err := s.ListEvents(context.Background(), group)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}

	units := make([]cohort.Unit, len(events))
	for i, e := range events {
		units[i] = cohort.Unit{Group: e.Group, Created: e.CreatedAt}
		if e.ConvertedAt != nil {
			units[i].Converted = *e.ConvertedAt
		}
	}
	return units, nil
}

// cohortFlags are the array-building flags shared by the modeling
// commands.
type cohortFlags struct {
	now       string
	timescale string
	minSize   int
	maxGroups int
}

func (f *cohortFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.now, "now", "", "censoring cutoff as RFC3339 (default: wall clock)")
	cmd.Flags().StringVar(&f.timescale, "timescale", "", "duration unit: years, days, hours, minutes, seconds (default: inferred)")
	cmd.Flags().IntVar(&f.minSize, "min-group-size", 0, "drop groups smaller than this")
	cmd.Flags().IntVar(&f.maxGroups, "max-groups", 0, "keep only the N largest groups")
}

func (f *cohortFlags) buildOptions() (cohort.BuildOptions, error) {
	opts := cohort.BuildOptions{
		MinGroupSize: f.minSize,
		MaxGroups:    f.maxGroups,
	}
	if f.now != "" {
		t, err := time.Parse(time.RFC3339, f.now)
		if err != nil {
			return opts, fmt.Errorf("invalid --now: %w", err)
		}
		opts.Now = t
	}
	if f.timescale != "" {
		scale, err := cohort.ParseTimescale(f.timescale)
		if err != nil {
			return opts, err
		}
		opts.Scale = scale
	}
	return opts, nil
}

// groupArg interprets the optional positional group argument of the
// modeling commands. Both no argument and "all" mean every group.
func groupArg(args []string) string {
	if len(args) == 0 || args[0] == "all" {
		return ""
	}
	return args[0]
}

// loadArrays is the events-to-arrays pipeline behind the modeling
// commands. An empty group loads every event.
func loadArrays(s store.Store, f *cohortFlags, group string) (cohort.Arrays, error) {
	units, err := loadUnits(s, group)
	if err != nil {
		return cohort.Arrays{}, err
	}
	opts, err := f.buildOptions()
	if err != nil {
		return cohort.Arrays{}, err
	}
	return cohort.BuildArrays(units, opts)
}

// modelFlags select which curve model the curves and export commands
// build: a parametric fit or the Kaplan-Meier estimate.
type modelFlags struct {
	family  string
	flavor  string
	useKM   bool
	ciLevel float64
	seed    uint64
	quiet   bool
}

func (f *modelFlags) register(cmd *cobra.Command) {
	f.registerParametric(cmd)
	cmd.Flags().BoolVar(&f.useKM, "km", false, "use the nonparametric Kaplan-Meier estimate")
}

func (f *modelFlags) registerParametric(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.family, "family", "", "distribution family (prompts when omitted)")
	cmd.Flags().StringVar(&f.flavor, "flavor", "logistic", "conversion coupling: logistic or linear")
	cmd.Flags().Float64Var(&f.ciLevel, "ci", 0, "interval level in (0, 1); parametric fits sample the posterior to support it")
	cmd.Flags().Uint64Var(&f.seed, "seed", 0, "random seed (0 = clock)")
	cmd.Flags().BoolVar(&f.quiet, "quiet", false, "suppress progress output")
}

func (f *modelFlags) build(a cohort.Arrays) (export.Model, error) {
	if f.useKM {
		return cohort.FitGroupsKM(a)
	}
	return f.buildParametric(a)
}

func (f *modelFlags) buildParametric(a cohort.Arrays) (*cohort.GroupModel, error) {
	name := f.family
	if name == "" {
		n, err := promptFamily()
		if err != nil {
			return nil, err
		}
		name = n
	}
	fam, err := dist.ParseFamily(name)
	if err != nil {
		return nil, err
	}
	flav, err := regress.ParseFlavor(f.flavor)
	if err != nil {
		return nil, err
	}

	opts := regress.Options{
		Posterior: f.ciLevel > 0,
		Flavor:    flav,
		Seed:      f.seed,
	}
	finish := func() {}
	if !f.quiet {
		opts.Progress, finish = newProgressHook()
	}

	gm, err := cohort.FitGroups(fam, a, opts)
	finish()
	if err != nil {
		return nil, err
	}
	return gm, nil
}
