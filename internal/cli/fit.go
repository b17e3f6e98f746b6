package cli

import (
	"fmt"
	"math"
	"os"
	"sync"
	"text/tabwriter"

	"github.com/manifoldco/promptui"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/cohortfit/cohortfit/cohort"
	"github.com/cohortfit/cohortfit/dist"
	"github.com/cohortfit/cohortfit/internal/store"
	"github.com/cohortfit/cohortfit/regress"
)

// fitConfig mirrors the fit flags for --config files. Explicit flags
// win over config values.
type fitConfig struct {
	Family        string `yaml:"family"`
	Flavor        string `yaml:"flavor"`
	Posterior     bool   `yaml:"posterior"`
	Restarts      int    `yaml:"restarts"`
	MaxIterations int    `yaml:"max_iterations"`
	Walkers       int    `yaml:"walkers"`
	BurnIn        int    `yaml:"burn_in"`
	Steps         int    `yaml:"steps"`
	Seed          uint64 `yaml:"seed"`
	Timescale     string `yaml:"timescale"`
	MinGroupSize  int    `yaml:"min_group_size"`
	MaxGroups     int    `yaml:"max_groups"`
}

func init() {
	rootCmd.AddCommand(newFitCmd())
}

func newFitCmd() *cobra.Command {
	var (
		family     string
		flavor     string
		posterior  bool
		restarts   int
		maxIter    int
		walkers    int
		burnIn     int
		steps      int
		seed       uint64
		ciLevel    float64
		noPrior    bool
		quiet      bool
		configPath string
		cf         cohortFlags
	)

	cmd := &cobra.Command{
		Use:   "fit [group]",
		Short: "Fit a parametric conversion model",
		Long: `Fit a parametric conversion model to the stored events.

Each group gets its own conversion rate and eventual conversion share;
the distribution shape is shared across groups. With a group argument
only that group's events are fit. --ci adds credible intervals to the
table, which implies sampling the posterior.

Examples:
  cohortfit fit --family weibull
  cohortfit fit paid --family gamma --ci 0.8 --seed 42
  cohortfit fit --config fit.yaml`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath != "" {
				cfg, err := loadFitConfig(configPath)
				if err != nil {
					return err
				}
				flags := cmd.Flags()
				if !flags.Changed("family") && cfg.Family != "" {
					family = cfg.Family
				}
				if !flags.Changed("flavor") && cfg.Flavor != "" {
					flavor = cfg.Flavor
				}
				if !flags.Changed("posterior") && cfg.Posterior {
					posterior = true
				}
				if !flags.Changed("restarts") && cfg.Restarts != 0 {
					restarts = cfg.Restarts
				}
				if !flags.Changed("max-iterations") && cfg.MaxIterations != 0 {
					maxIter = cfg.MaxIterations
				}
				if !flags.Changed("walkers") && cfg.Walkers != 0 {
					walkers = cfg.Walkers
				}
				if !flags.Changed("burn-in") && cfg.BurnIn != 0 {
					burnIn = cfg.BurnIn
				}
				if !flags.Changed("steps") && cfg.Steps != 0 {
					steps = cfg.Steps
				}
				if !flags.Changed("seed") && cfg.Seed != 0 {
					seed = cfg.Seed
				}
				if !flags.Changed("timescale") && cfg.Timescale != "" {
					cf.timescale = cfg.Timescale
				}
				if !flags.Changed("min-group-size") && cfg.MinGroupSize != 0 {
					cf.minSize = cfg.MinGroupSize
				}
				if !flags.Changed("max-groups") && cfg.MaxGroups != 0 {
					cf.maxGroups = cfg.MaxGroups
				}
			}

			if family == "" {
				f, err := promptFamily()
				if err != nil {
					return err
				}
				family = f
			}
			fam, err := dist.ParseFamily(family)
			if err != nil {
				return err
			}
			flav, err := regress.ParseFlavor(flavor)
			if err != nil {
				return err
			}

			return withStore(func(s store.Store) error {
				arrays, err := loadArrays(s, &cf, groupArg(args))
				if err != nil {
					return err
				}

				opts := regress.Options{
					Posterior:     posterior || ciLevel > 0,
					Restarts:      restarts,
					MaxIterations: maxIter,
					Walkers:       walkers,
					BurnIn:        burnIn,
					Steps:         steps,
					Seed:          seed,
					NoPrior:       noPrior,
					Flavor:        flav,
				}
				finish := func() {}
				if !quiet {
					opts.Progress, finish = newProgressHook()
				}

				gm, err := cohort.FitGroups(fam, arrays, opts)
				finish()
				if err != nil {
					return err
				}

				return printFit(cmd, gm, arrays, ciLevel)
			})
		},
	}

	cmd.Flags().StringVarP(&family, "family", "f", "", "distribution family: exponential, weibull, gamma, generalized-gamma (prompts when omitted)")
	cmd.Flags().StringVar(&flavor, "flavor", "logistic", "conversion coupling: logistic or linear")
	cmd.Flags().BoolVar(&posterior, "posterior", false, "sample the posterior after the point fit")
	cmd.Flags().IntVar(&restarts, "restarts", 0, "optimizer restarts (0 = default)")
	cmd.Flags().IntVar(&maxIter, "max-iterations", 0, "per-restart iteration cap (0 = default)")
	cmd.Flags().IntVar(&walkers, "walkers", 0, "MCMC walkers (0 = default)")
	cmd.Flags().IntVar(&burnIn, "burn-in", 0, "discarded MCMC steps per walker (0 = default)")
	cmd.Flags().IntVar(&steps, "steps", 0, "retained MCMC steps per walker (0 = default)")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "random seed (0 = clock)")
	cmd.Flags().Float64Var(&ciLevel, "ci", 0, "credible interval level in (0, 1) for the table (implies --posterior)")
	cmd.Flags().BoolVar(&noPrior, "no-prior", false, "fit without the hierarchical prior")
	cmd.Flags().BoolVar(&quiet, "quiet", false, "suppress progress output")
	cmd.Flags().StringVar(&configPath, "config", "", "YAML file with fit settings")
	cf.register(cmd)

	return cmd
}

func loadFitConfig(path string) (fitConfig, error) {
	var cfg fitConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg, nil
}

func promptFamily() (string, error) {
	families := dist.Families()
	items := make([]string, len(families))
	for i, f := range families {
		items[i] = f.String()
	}

	prompt := promptui.Select{
		Label: "Distribution family",
		Items: items,
		Size:  len(items),
	}

	_, name, err := prompt.Run()
	if err != nil {
		if err == promptui.ErrInterrupt {
			os.Exit(0)
		}
		return "", err
	}
	return name, nil
}

// newProgressHook renders fit progress on stderr. The sampling phase
// reports from multiple goroutines, so all state sits behind a mutex.
func newProgressHook() (hook func(phase string, done, total int), finish func()) {
	var (
		mu  sync.Mutex
		bar *progressbar.ProgressBar
		cur string
	)

	hook = func(phase string, done, total int) {
		mu.Lock()
		defer mu.Unlock()
		if phase != cur {
			if bar != nil {
				_ = bar.Finish()
			}
			cur = phase
			desc := phase
			switch phase {
			case regress.PhaseMAP:
				desc = "optimizing"
			case regress.PhaseSample:
				desc = "sampling"
			}
			if total > 0 {
				bar = progressbar.Default(int64(total), desc)
			} else {
				bar = progressbar.Default(-1, desc)
			}
		}
		if total > 0 {
			_ = bar.Set(done)
		} else {
			_ = bar.Add(1)
		}
	}

	finish = func() {
		mu.Lock()
		defer mu.Unlock()
		if bar != nil {
			_ = bar.Finish()
			bar = nil
		}
	}

	return hook, finish
}

func printFit(cmd *cobra.Command, gm *cohort.GroupModel, a cohort.Arrays, ciLevel float64) error {
	m := gm.Model()
	c := m.Coeffs()
	groups := gm.Groups()

	fmt.Printf("Fitted %s model (%s coupling): %d groups, %d units\n",
		m.Family(), m.Flavor(), len(groups), a.Len())
	if n := m.DroppedZeroDuration(); n > 0 {
		fmt.Printf("Dropped %d zero-duration conversions\n", n)
	}
	fmt.Printf("Timescale: %s\n", gm.Scale())
	fmt.Printf("Shape: k=%.4g p=%.4g\n", c.K, c.P)
	if m.HasPosterior() {
		fmt.Printf("Posterior draws: %d\n", m.PosteriorSize())
	}
	fmt.Println()

	counts := make([]int, len(groups))
	conv := make([]int, len(groups))
	for i, g := range a.G {
		counts[g]++
		if a.B[i] {
			conv[g]++
		}
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	if ciLevel > 0 {
		fmt.Fprintf(w, "GROUP\tUNITS\tCONVERTED\tRATE\tEVENTUAL\t%.0f%% CI\n", ciLevel*100)
	} else {
		fmt.Fprintln(w, "GROUP\tUNITS\tCONVERTED\tRATE\tEVENTUAL")
	}

	for j, g := range groups {
		rate := math.Exp(c.A + c.Alpha[j])
		if ciLevel > 0 {
			est, lo, hi, err := gm.EstimateCI(g, math.Inf(1), ciLevel)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "%s\t%d\t%d\t%.4g\t%s\t[%s, %s]\n",
				g, counts[j], conv[j], rate,
				formatPercent(est), formatPercent(lo), formatPercent(hi))
		} else {
			est, err := gm.Estimate(g, math.Inf(1))
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "%s\t%d\t%d\t%.4g\t%s\n",
				g, counts[j], conv[j], rate, formatPercent(est))
		}
	}

	return w.Flush()
}

func formatPercent(rate float64) string {
	if rate == 0 {
		return "0%"
	}
	return fmt.Sprintf("%.2f%%", rate*100)
}
