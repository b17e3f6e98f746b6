package regress

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mathext"
)

// score writes the analytic gradient of logLike at x into grad. Every
// term is differentiated in closed form except ∂P(k,z)/∂k, which has
// no closed form and falls back to a central difference in k.
func (o *objective) score(grad, x []float64) {
	for i := range grad {
		grad[i] = 0
	}
	k, p := o.shapes(x)
	alpha, beta := o.alpha(x), o.beta(x)
	a, b := x[4], x[5]
	digK := mathext.Digamma(k)
	lgK, _ := math.Lgamma(k)

	for i := range o.t {
		xi := o.x[i]
		v := floats.Dot(xi, alpha) + a
		u := floats.Dot(xi, beta) + b

		var du, dv, dtk, dtp float64
		if o.b[i] != 0 {
			du, dv, dtk, dtp = o.observedScore(u, v, k, p, digK, o.t[i])
		} else {
			du, dv, dtk, dtp = o.censoredScore(u, v, k, p, lgK, o.t[i])
		}

		wi := o.w[i]
		grad[0] += wi * dtk
		grad[1] += wi * dtp
		grad[4] += wi * dv
		grad[5] += wi * du
		for j, xij := range xi {
			grad[numScalarParams+j] += wi * dv * xij
			grad[numScalarParams+o.nf+j] += wi * du * xij
		}
	}

	if o.prior {
		addPriorScore(grad, x[2], 2, numScalarParams, alpha)
		addPriorScore(grad, x[3], 3, numScalarParams+o.nf, beta)
	}
	if o.kFixed {
		grad[0] = 0
	}
	if o.pFixed {
		grad[1] = 0
	}
}

// observedScore returns the per-unit partials for a converted unit:
// with z = (tλ)^p and lz = log z,
//
//	∂/∂u  log σ(u)                    = σ(-u)
//	∂/∂v  [kp·v - z]                  = p(k - z)
//	∂/∂θk k·[lz - ψ(k)]
//	∂/∂θp 1 + (k - z)·lz
func (o *objective) observedScore(u, v, k, p, digK, t float64) (du, dv, dtk, dtp float64) {
	lz := p * (math.Log(t) + v)
	z := math.Exp(lz)

	if o.flavor == Linear {
		du = 2 * (1 - u)
	} else {
		du = sigmoid(-u)
	}
	dv = p * (k - z)
	dtk = k * (lz - digK)
	dtp = 1 + (k-z)*lz
	return du, dv, dtk, dtp
}

// censoredScore returns the per-unit partials for a censored unit.
// The shared density factor z^k e^{-z}/Γ(k) is kept in log space and
// zeroed at z = 0 and z = ∞, where its true limit is zero; computing
// it naively there turns 0·∞ into NaN.
func (o *objective) censoredScore(u, v, k, p, lgK, t float64) (du, dv, dtk, dtp float64) {
	lz := math.Inf(-1)
	if t > 0 {
		lz = p * (math.Log(t) + v)
	}
	z := math.Exp(lz)

	if o.flavor == Linear {
		cdf := regLowerGamma(k, z)
		scale := -2 * u * u * cdf
		du = -2 * u * cdf * cdf
		if z > 0 && !math.IsInf(z, 1) {
			gz := math.Exp(k*lz - z - lgK)
			dv = scale * p * gz
			dtp = scale * lz * gz
		}
		if !o.kFixed {
			dtk = scale * k * dPdk(k, z)
		}
		return du, dv, dtk, dtp
	}

	logS := math.Log(regUpperGamma(k, z))
	logD := logaddexp(-u, logS)
	du = sigmoid(-u) - math.Exp(-u-logD)
	if z > 0 && !math.IsInf(z, 1) {
		gz := math.Exp(k*lz - z - lgK - logD)
		dv = -p * gz
		dtp = -lz * gz
	}
	if !o.kFixed {
		dtk = -k * dPdk(k, z) * math.Exp(-logD)
	}
	return du, dv, dtk, dtp
}

// dPdk approximates ∂P(k,z)/∂k by central difference. Outside (0, ∞)
// the regularized incomplete gamma is flat in k.
func dPdk(k, z float64) float64 {
	if z <= 0 || math.IsInf(z, 1) {
		return 0
	}
	h := 1e-6 * k
	return (mathext.GammaIncReg(k+h, z) - mathext.GammaIncReg(k-h, z)) / (2 * h)
}

func regLowerGamma(k, z float64) float64 {
	if z <= 0 {
		return 0
	}
	if math.IsInf(z, 1) {
		return 1
	}
	return mathext.GammaIncReg(k, z)
}

func regUpperGamma(k, z float64) float64 {
	if z <= 0 {
		return 1
	}
	if math.IsInf(z, 1) {
		return 0
	}
	return mathext.GammaIncRegComp(k, z)
}

// addPriorScore accumulates the gradient of logPrior over one
// coefficient block: sigmaIdx addresses log σ, off the first weight.
func addPriorScore(grad []float64, logSigma float64, sigmaIdx, off int, w []float64) {
	inv2 := math.Exp(-2 * logSigma)
	grad[sigmaIdx] += -4 - float64(len(w)) + (2+floats.Dot(w, w))*inv2
	for j, wj := range w {
		grad[off+j] -= wj * inv2
	}
}
