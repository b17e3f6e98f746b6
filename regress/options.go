package regress

import (
	"fmt"
	"strings"
)

// Flavor selects how the eventual-conversion term enters the
// likelihood.
type Flavor int

const (
	// Logistic passes x·β + b through a sigmoid, keeping the eventual
	// conversion probability in (0, 1). This is the default.
	Logistic Flavor = iota

	// Linear uses x·β + b directly with a squared-error coupling. The
	// betas become purely additive and easier to read, at some cost
	// in accuracy.
	Linear
)

func (f Flavor) String() string {
	if f == Linear {
		return "linear"
	}
	return "logistic"
}

// ParseFlavor converts a flavor name as accepted on the command line.
// The empty string parses as Logistic.
func ParseFlavor(s string) (Flavor, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "logistic":
		return Logistic, nil
	case "linear":
		return Linear, nil
	}
	return 0, fmt.Errorf("unknown flavor %q", s)
}

// Progress phases reported to Options.Progress.
const (
	PhaseMAP    = "map"
	PhaseSample = "sample"
)

// Options configures a fit. The zero value asks for a MAP-only
// logistic fit with the defaults documented on each field.
type Options struct {
	// Posterior turns on the MCMC phase after the MAP phase, enabling
	// PredictCI and Sample on the fitted model.
	Posterior bool

	// Restarts is the number of optimizer starts for the MAP phase.
	// The first start is deterministic, later ones perturb it.
	// 0 means 3.
	Restarts int

	// MaxIterations caps each restart's major optimizer iterations; a
	// restart that exhausts the budget counts as failed. 0 means
	// 10000.
	MaxIterations int

	// Walkers is the MCMC ensemble size. 0 means 5x the parameter
	// count. Values below 2x the parameter count are raised to that
	// floor.
	Walkers int

	// BurnIn is the number of discarded steps per walker. 0 means
	// 100; a negative value means no burn-in.
	BurnIn int

	// Steps is the number of retained steps per walker. 0 sizes the
	// ensemble for roughly 2000 posterior draws in total.
	Steps int

	// Seed seeds the fit's private random generator. 0 draws a seed
	// from the clock, making the fit non-reproducible.
	Seed uint64

	// NoPrior drops the hierarchical prior on the coefficient
	// vectors, reducing MAP estimation to plain maximum likelihood.
	NoPrior bool

	// Flavor selects the conversion term. The zero value is Logistic.
	Flavor Flavor

	// Progress, when set, receives progress updates: one call per
	// objective evaluation during PhaseMAP (total is 0, the count is
	// open-ended) and one call per target evaluation during
	// PhaseSample (total is the expected number). PhaseSample calls
	// arrive from multiple goroutines, so the callback must be safe
	// for concurrent use.
	Progress func(phase string, done, total int)
}

const (
	defaultRestarts      = 3
	defaultMaxIterations = 10000
	defaultBurnIn        = 100
	defaultTotalDraws    = 2000
	walkersPerParam      = 5

	restartScale     = 0.1
	walkerCloudScale = 1e-3

	gradientThreshold = 1e-5
)

func (o Options) restarts() int {
	if o.Restarts <= 0 {
		return defaultRestarts
	}
	return o.Restarts
}

func (o Options) maxIterations() int {
	if o.MaxIterations <= 0 {
		return defaultMaxIterations
	}
	return o.MaxIterations
}

// mcmcShape resolves the ensemble geometry for a model of the given
// parameter count.
func (o Options) mcmcShape(dim int) (walkers, burnIn, steps int) {
	walkers = o.Walkers
	if walkers <= 0 {
		walkers = walkersPerParam * dim
	}
	if floor := 2 * dim; walkers < floor {
		walkers = floor
	}
	burnIn = o.BurnIn
	switch {
	case burnIn == 0:
		burnIn = defaultBurnIn
	case burnIn < 0:
		burnIn = 0
	}
	steps = o.Steps
	if steps <= 0 {
		steps = (defaultTotalDraws + walkers - 1) / walkers
	}
	return walkers, burnIn, steps
}
