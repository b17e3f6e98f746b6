// Package dist defines the time-to-event distribution families used by
// the conversion regression: exponential, Weibull, gamma, and the
// generalized gamma that subsumes all three.
//
// Params carries a concrete parameter set and exposes the log-density,
// log-CDF, and log-survival functions the likelihood is built from. The
// survival complement is evaluated through the upper regularized
// incomplete gamma function rather than as 1-CDF, so it stays accurate
// deep in the tail.
package dist

import (
	"math"

	"gonum.org/v1/gonum/mathext"
)

// Params is a concrete generalized-gamma parameter set. The density is
//
//	f(t) = p λ^(kp) t^(kp-1) exp(-(tλ)^p) / Γ(k)
//
// and the CDF is F(t) = P(k, (tλ)^p), with P the lower regularized
// incomplete gamma function. K = P = 1 gives the exponential
// distribution, K = 1 the Weibull, and P = 1 the gamma.
//
// All parameters must be strictly positive. The functions assume this
// is enforced upstream and do not validate.
type Params struct {
	K    float64 // first shape
	P    float64 // second shape
	Rate float64 // λ
}

// z returns (tλ)^p for t > 0.
func (d Params) z(t float64) float64 {
	return math.Pow(t*d.Rate, d.P)
}

// LogPDF returns the log of the event-time density at t. At t = 0 the
// density is zero, finite, or unbounded depending on the sign of kp-1;
// the corresponding log (-Inf, finite, +Inf) is returned rather than
// NaN, and the same care is taken when the rate has overflowed.
func (d Params) LogPDF(t float64) float64 {
	kp := d.K * d.P
	lg, _ := math.Lgamma(d.K)
	if t <= 0 {
		switch {
		case kp < 1:
			return math.Inf(1)
		case kp > 1:
			return math.Inf(-1)
		}
		return math.Log(d.P) + kp*math.Log(d.Rate) - lg
	}
	z := d.z(t)
	if math.IsInf(z, 1) {
		return math.Inf(-1)
	}
	return math.Log(d.P) + kp*math.Log(d.Rate) - lg + (kp-1)*math.Log(t) - z
}

// CDF returns P(T ≤ t).
func (d Params) CDF(t float64) float64 {
	if t <= 0 {
		return 0
	}
	z := d.z(t)
	if math.IsInf(z, 1) {
		return 1
	}
	return mathext.GammaIncReg(d.K, z)
}

// LogCDF returns log P(T ≤ t).
func (d Params) LogCDF(t float64) float64 {
	return math.Log(d.CDF(t))
}

// Survival returns P(T > t).
func (d Params) Survival(t float64) float64 {
	if t <= 0 {
		return 1
	}
	z := d.z(t)
	if math.IsInf(z, 1) {
		return 0
	}
	return mathext.GammaIncRegComp(d.K, z)
}

// LogSurvival returns log P(T > t).
func (d Params) LogSurvival(t float64) float64 {
	return math.Log(d.Survival(t))
}

// Quantile returns the time t at which CDF(t) = q. It returns NaN for
// q outside [0, 1].
func (d Params) Quantile(q float64) float64 {
	if q < 0 || q > 1 {
		return math.NaN()
	}
	return math.Pow(mathext.GammaIncRegInv(d.K, q), 1/d.P) / d.Rate
}
