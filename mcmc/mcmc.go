// Package mcmc draws posterior samples by running an ensemble of
// independent Metropolis-Hastings chains, one per walker, in
// parallel. Each walker carries its own random stream derived from
// the ensemble seed, so results do not depend on how the walkers are
// scheduled across goroutines.
package mcmc

import (
	"errors"
	"fmt"
	"math"
	"runtime"
	"time"

	"golang.org/x/exp/rand"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/samplemv"
)

// LogProb is an unnormalized log-density. It must be safe for
// concurrent calls.
type LogProb func(x []float64) float64

// LogProb makes the function usable as a sampling target.
func (f LogProb) LogProb(x []float64) float64 { return f(x) }

// walkerSeedStride spaces per-walker seeds; any odd 64-bit constant
// works, this one is 2^64 divided by the golden ratio.
const walkerSeedStride = 0x9e3779b97f4a7c15

// Ensemble samples a log-density with one isotropic-normal random
// walk per walker.
type Ensemble struct {
	// ProposalStd is the per-coordinate standard deviation of the
	// random-walk proposal. Zero means 0.05, which suits targets
	// already localized by an optimizer.
	ProposalStd float64

	// Seed fixes the ensemble's randomness. Zero seeds from the
	// clock.
	Seed uint64

	// Workers caps the walkers sampling concurrently. Zero means
	// GOMAXPROCS.
	Workers int
}

// Sample runs every chain from its initial point, discards burnIn
// draws, then records steps draws per walker. The result has
// len(initial)*steps rows grouped by walker: row w*steps+s is draw s
// of walker w.
func (e *Ensemble) Sample(logProb LogProb, initial [][]float64, burnIn, steps int) ([][]float64, error) {
	if len(initial) == 0 {
		return nil, errors.New("mcmc: no walkers")
	}
	dim := len(initial[0])
	if dim == 0 {
		return nil, errors.New("mcmc: zero-dimensional walkers")
	}
	for w, x := range initial {
		if len(x) != dim {
			return nil, fmt.Errorf("mcmc: walker %d has %d dimensions, walker 0 has %d", w, len(x), dim)
		}
		if lp := logProb(x); math.IsNaN(lp) || math.IsInf(lp, 0) {
			return nil, fmt.Errorf("mcmc: walker %d starts at log-probability %v", w, lp)
		}
	}
	if steps < 1 {
		return nil, fmt.Errorf("mcmc: steps must be positive, got %d", steps)
	}
	if burnIn < 0 {
		return nil, fmt.Errorf("mcmc: burn-in must not be negative, got %d", burnIn)
	}
	std := e.ProposalStd
	if std == 0 {
		std = 0.05
	}
	if std < 0 || math.IsNaN(std) {
		return nil, fmt.Errorf("mcmc: proposal standard deviation must be positive, got %v", std)
	}
	seed := e.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	workers := e.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	out := make([][]float64, len(initial)*steps)

	var g errgroup.Group
	g.SetLimit(workers)
	for w := range initial {
		w := w
		g.Go(func() error {
			src := rand.NewSource(seed + uint64(w+1)*walkerSeedStride)

			sigma := mat.NewSymDense(dim, nil)
			for i := 0; i < dim; i++ {
				sigma.SetSym(i, i, std*std)
			}
			proposal, ok := samplemv.NewProposalNormal(sigma, src)
			if !ok {
				return errors.New("mcmc: proposal covariance is not positive definite")
			}

			mh := samplemv.MetropolisHastingser{
				Initial:  initial[w],
				Target:   logProb,
				Proposal: proposal,
				Src:      src,
				BurnIn:   burnIn,
			}
			batch := mat.NewDense(steps, dim, nil)
			mh.Sample(batch)

			for s := 0; s < steps; s++ {
				out[w*steps+s] = mat.Row(nil, s, batch)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
