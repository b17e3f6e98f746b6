package regress

import (
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/optimize"

	"github.com/cohortfit/cohortfit/dist"
	"github.com/cohortfit/cohortfit/mcmc"
)

// Fit estimates a conversion model for the given family over
// right-censored observations. It always computes the MAP point by
// quasi-Newton optimization; with opts.Posterior it follows up with
// ensemble MCMC around the MAP so that credible intervals become
// available. Identical inputs and a nonzero opts.Seed give identical
// models.
func Fit(family dist.Family, obs Observations, opts Options) (*Model, error) {
	if err := obs.Validate(); err != nil {
		return nil, err
	}
	obs, dropped := dropZeroDurationConversions(obs)
	if obs.Len() == 0 {
		return nil, &InvalidObservationError{Row: -1, Reason: "every observation is a zero-duration conversion"}
	}

	o := newObjective(family, obs, opts)

	seed := opts.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	rng := rand.New(rand.NewSource(seed))

	if opts.Progress != nil {
		var evals int
		o.evals = func() {
			evals++
			opts.Progress(PhaseMAP, evals, 0)
		}
	}

	problem := optimize.Problem{
		Func: func(x []float64) float64 { return -o.logLike(x) },
		Grad: func(grad, x []float64) {
			o.score(grad, x)
			floats.Scale(-1, grad)
		},
	}
	settings := &optimize.Settings{
		GradientThreshold: gradientThreshold,
		MajorIterations:   opts.maxIterations(),
	}

	// Non-convex objective: run every start and keep the best
	// converged optimum. Failed starts are discarded, only total
	// exhaustion is an error.
	attempts := opts.restarts()
	var xhat []float64
	bestF := math.Inf(1)
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		x0 := o.start()
		if attempt > 0 {
			for i := range x0 {
				x0[i] += restartScale * rng.NormFloat64()
			}
			o.pinFixed(x0)
		}
		method := &optimize.BFGS{Linesearcher: &optimize.MoreThuente{}}
		result, err := optimize.Minimize(problem, x0, settings, method)
		if err == nil {
			err = result.Status.Err()
		}
		if err == nil && (math.IsNaN(result.F) || math.IsInf(result.F, 0)) {
			err = fmt.Errorf("objective at optimum is %v", result.F)
		}
		if err != nil {
			lastErr = err
			continue
		}
		if result.F < bestF {
			bestF = result.F
			xhat = append(xhat[:0], result.X...)
		}
	}
	if xhat == nil {
		return nil, &FitDidNotConvergeError{Restarts: attempts, Last: lastErr}
	}
	o.pinFixed(xhat)

	m := &Model{
		family:  family,
		flavor:  opts.Flavor,
		nf:      o.nf,
		mapX:    xhat,
		dropped: dropped,
	}
	if !opts.Posterior {
		return m, nil
	}

	walkers, burnIn, steps := opts.mcmcShape(o.dim())
	initial := make([][]float64, walkers)
	for w := range initial {
		x := append([]float64(nil), xhat...)
		for i := range x {
			x[i] += walkerCloudScale * rng.NormFloat64()
		}
		o.pinFixed(x)
		initial[w] = x
	}

	// The sampler shares the objective across goroutines, so it gets a
	// copy without the single-threaded eval hook.
	so := *o
	so.evals = nil
	logProb := mcmc.LogProb(so.logLike)
	if opts.Progress != nil {
		total := walkers * (burnIn + steps)
		var done atomic.Int64
		inner := so.logLike
		logProb = func(x []float64) float64 {
			if n := int(done.Add(1)); n <= total {
				opts.Progress(PhaseSample, n, total)
			}
			return inner(x)
		}
	}

	sampler := &mcmc.Ensemble{Seed: rng.Uint64()}
	samples, err := sampler.Sample(logProb, initial, burnIn, steps)
	if err != nil {
		return nil, fmt.Errorf("failed to sample posterior: %w", err)
	}
	for _, s := range samples {
		o.pinFixed(s)
	}
	m.samples = samples
	return m, nil
}
