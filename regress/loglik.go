package regress

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/cohortfit/cohortfit/dist"
)

// Unconstrained parameter vector layout, shared by the MAP optimizer
// and the MCMC sampler:
//
//	x[0]        log k   (pinned when the family fixes k)
//	x[1]        log p   (pinned when the family fixes p)
//	x[2]        log σ_α (prior scale for the rate coefficients)
//	x[3]        log σ_β (prior scale for the conversion coefficients)
//	x[4]        a       (rate intercept)
//	x[5]        b       (conversion intercept)
//	x[6:6+d]    α       (rate coefficients)
//	x[6+d:6+2d] β       (conversion coefficients)
//
// Per unit i, the rate is λ_i = exp(x_i·α + a) and, under the logistic
// flavor, the eventual conversion probability is c_i = σ(x_i·β + b).
// Slots pinned by the family keep their positions so the layout is
// identical across families.
const numScalarParams = 6

// objective evaluates the log-posterior and its gradient over a fixed
// observation set. It is read-only after construction apart from the
// optional evals hook, which must not be set while the objective is
// shared between goroutines.
type objective struct {
	x [][]float64
	b []float64 // converted flags as 0/1
	t []float64
	w []float64

	nf int

	fixK, fixP     float64
	kFixed, pFixed bool

	flavor Flavor
	prior  bool

	evals func() // called once per logLike evaluation, may be nil
}

func newObjective(family dist.Family, obs Observations, opts Options) *objective {
	o := &objective{
		x:      obs.X,
		b:      make([]float64, obs.Len()),
		t:      obs.T,
		w:      obs.Weights,
		nf:     obs.NumFeatures(),
		flavor: opts.Flavor,
		prior:  !opts.NoPrior,
	}
	for i, conv := range obs.Converted {
		if conv {
			o.b[i] = 1
		}
	}
	if o.w == nil {
		o.w = make([]float64, obs.Len())
		for i := range o.w {
			o.w[i] = 1
		}
	}
	o.fixK, o.kFixed = family.FixedK()
	o.fixP, o.pFixed = family.FixedP()
	return o
}

func (o *objective) dim() int { return numScalarParams + 2*o.nf }

// shapes maps the unconstrained vector to the constrained (k, p) pair.
func (o *objective) shapes(x []float64) (k, p float64) {
	k, p = o.fixK, o.fixP
	if !o.kFixed {
		k = math.Exp(x[0])
	}
	if !o.pFixed {
		p = math.Exp(x[1])
	}
	return k, p
}

// start returns the deterministic first optimizer start: zeros apart
// from the shape slots, which sit at log k = +1 and log p = -1 when
// free. The generalized gamma is sensitive to the starting point.
func (o *objective) start() []float64 {
	x0 := make([]float64, o.dim())
	x0[0] = 1
	x0[1] = -1
	o.pinFixed(x0)
	return x0
}

// pinFixed writes the family's fixed shape values into their slots.
func (o *objective) pinFixed(x []float64) {
	if o.kFixed {
		x[0] = math.Log(o.fixK)
	}
	if o.pFixed {
		x[1] = math.Log(o.fixP)
	}
}

func (o *objective) alpha(x []float64) []float64 {
	return x[numScalarParams : numScalarParams+o.nf]
}

func (o *objective) beta(x []float64) []float64 {
	return x[numScalarParams+o.nf : numScalarParams+2*o.nf]
}

// logLike returns the log-posterior at x: the censoring-aware data
// likelihood plus, unless disabled, the hierarchical prior. A NaN
// total collapses to -Inf so the optimizer and sampler treat the point
// as simply bad rather than poisoning their state.
func (o *objective) logLike(x []float64) float64 {
	if o.evals != nil {
		o.evals()
	}
	k, p := o.shapes(x)
	alpha, beta := o.alpha(x), o.beta(x)
	a, b := x[4], x[5]

	var ll float64
	for i := range o.t {
		v := floats.Dot(o.x[i], alpha) + a
		u := floats.Dot(o.x[i], beta) + b
		d := dist.Params{K: k, P: p, Rate: math.Exp(v)}

		var li float64
		if o.b[i] != 0 {
			li = o.observedTerm(u, d, o.t[i])
		} else {
			li = o.censoredTerm(u, d, o.t[i])
		}
		ll += o.w[i] * li
	}

	if o.prior {
		ll += logPrior(x[2], alpha)
		ll += logPrior(x[3], beta)
	}
	if math.IsNaN(ll) {
		return math.Inf(-1)
	}
	return ll
}

// observedTerm is the log-likelihood of a unit that converted at t:
// the conversion term times the event density.
func (o *objective) observedTerm(u float64, d dist.Params, t float64) float64 {
	logPDF := d.LogPDF(t)
	if o.flavor == Linear {
		r := 1 - u
		return -r*r + logPDF
	}
	// log σ(u) = -log(1 + exp(-u))
	return -softplus(-u) + logPDF
}

// censoredTerm is the log-likelihood of a unit censored at t: either
// it never converts, or it converts after t. Under the logistic
// flavor,
//
//	log((1-c) + c·S(t)) = logaddexp(-u, log S(t)) - log(1 + exp(-u))
//
// which evaluates both additive terms in log space and stays finite
// for any u.
func (o *objective) censoredTerm(u float64, d dist.Params, t float64) float64 {
	if o.flavor == Linear {
		cf := u * d.CDF(t)
		return -cf * cf
	}
	return logaddexp(-u, d.LogSurvival(t)) - softplus(-u)
}

// logPrior is the hierarchical prior on one coefficient vector: the
// weights are Normal(0, σ) and σ² is inv-gamma(1, 1), with σ carried
// in log space.
func logPrior(logSigma float64, w []float64) float64 {
	inv2 := math.Exp(-2 * logSigma)
	return -4*logSigma - inv2 - 0.5*floats.Dot(w, w)*inv2 - float64(len(w))*logSigma
}

// softplus returns log(1 + exp(v)) without overflowing for large v.
func softplus(v float64) float64 {
	if v > 35 {
		return v
	}
	return math.Log1p(math.Exp(v))
}

// logaddexp returns log(exp(a) + exp(b)).
func logaddexp(a, b float64) float64 {
	if a < b {
		a, b = b, a
	}
	if math.IsInf(a, -1) {
		return a
	}
	return a + math.Log1p(math.Exp(b-a))
}

// sigmoid returns 1/(1+exp(-v)), computed from the side that avoids
// overflow.
func sigmoid(v float64) float64 {
	if v >= 0 {
		return 1 / (1 + math.Exp(-v))
	}
	e := math.Exp(v)
	return e / (1 + e)
}
