// Package km estimates conversion fractions nonparametrically with
// the Kaplan-Meier product-limit estimator. It serves as the
// assumption-free baseline next to the parametric families in
// regress: no eventual-conversion term, no shape parameters, just the
// empirical step curve with Greenwood confidence bands.
package km

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/cohortfit/cohortfit/regress"
)

const clipEps = 1e-9

// Model is a fitted product-limit curve. Read-only after Fit.
type Model struct {
	ts []float64 // step times, ts[0] = 0
	ss []float64 // survival after each step
	vs []float64 // Greenwood variance of log(-log s)
}

// Fit estimates the curve from aligned durations and conversion
// flags. Censored units enter the risk set without producing a step.
func Fit(durations []float64, converted []bool) (*Model, error) {
	return FitWeighted(durations, converted, nil)
}

// FitWeighted is Fit with a per-unit weight, e.g. a count for a
// pre-aggregated row. Nil weights mean every unit counts once.
func FitWeighted(durations []float64, converted []bool, weights []float64) (*Model, error) {
	if len(durations) == 0 {
		return nil, &regress.InvalidObservationError{Row: -1, Reason: "empty observation set"}
	}
	if len(durations) != len(converted) {
		return nil, &regress.InvalidObservationError{Row: -1, Reason: "durations and converted flags differ in length"}
	}
	if weights != nil && len(weights) != len(durations) {
		return nil, &regress.InvalidObservationError{Row: -1, Reason: "durations and weights differ in length"}
	}
	for i, t := range durations {
		if math.IsNaN(t) || math.IsInf(t, 0) || t < 0 {
			return nil, &regress.InvalidObservationError{Row: i, Reason: "duration is not a finite non-negative number"}
		}
	}

	type unit struct {
		t    float64
		w    float64
		conv bool
	}
	units := make([]unit, len(durations))
	total := 0.0
	for i := range units {
		w := 1.0
		if weights != nil {
			w = weights[i]
			if math.IsNaN(w) || math.IsInf(w, 0) || w < 0 {
				return nil, &regress.InvalidObservationError{Row: i, Reason: "weight is not a finite non-negative number"}
			}
		}
		units[i] = unit{durations[i], w, converted[i]}
		total += w
	}
	if total == 0 {
		return nil, &regress.InvalidObservationError{Row: -1, Reason: "all weights are zero"}
	}

	// Ties resolve censored-first, so a censored unit at t is not at
	// risk for an event at the same t.
	sort.Slice(units, func(i, j int) bool {
		if units[i].t != units[j].t {
			return units[i].t < units[j].t
		}
		return !units[i].conv && units[j].conv
	})

	m := &Model{
		ts: []float64{0},
		ss: []float64{1},
		vs: []float64{0},
	}
	atRisk := total
	s := 1.0
	varSum := 0.0
	for _, u := range units {
		if u.conv && u.w > 0 {
			s *= 1 - u.w/atRisk
			if rest := atRisk - u.w; rest > 0 {
				varSum += u.w / (atRisk * rest)
			} else {
				varSum = math.Inf(1)
			}
		}

		m.ts = append(m.ts, u.t)
		m.ss = append(m.ss, s)
		if varSum > 0 {
			l := math.Log(clip(s))
			m.vs = append(m.vs, varSum/(l*l))
		} else {
			m.vs = append(m.vs, 0)
		}
		atRisk -= u.w
	}
	return m, nil
}

func clip(s float64) float64 {
	return math.Min(math.Max(s, clipEps), 1-clipEps)
}

// step returns the index of the last step at or before t.
func (m *Model) step(t float64) int {
	if t < 0 {
		return 0
	}
	return sort.Search(len(m.ts), func(i int) bool { return m.ts[i] > t }) - 1
}

// Estimate returns the fraction converted by t. Beyond the last
// observed duration the curve stays flat at its final value.
func (m *Model) Estimate(t float64) float64 {
	return 1 - m.ss[m.step(t)]
}

// MaxDuration returns the largest observed duration; past it,
// Estimate is extrapolating a plateau.
func (m *Model) MaxDuration() float64 {
	return m.ts[len(m.ts)-1]
}

// EstimateCI returns the conversion estimate at t bracketed by a
// log-log Greenwood confidence interval at the given level, with
// lo <= est <= hi.
func (m *Model) EstimateCI(t, level float64) (est, lo, hi float64, err error) {
	if !(level > 0 && level < 1) {
		return 0, 0, 0, &regress.InvalidObservationError{Row: -1, Reason: "confidence level must lie in (0, 1)"}
	}
	j := m.step(t)
	est = 1 - m.ss[j]

	// The band is symmetric on the log(-log s) scale, which keeps it
	// inside [0, 1] without truncation.
	sc := clip(m.ss[j])
	base := math.Log(-math.Log(sc))
	sd := math.Sqrt(m.vs[j])
	zLo := distuv.UnitNormal.Quantile((1 - level) / 2)
	zHi := distuv.UnitNormal.Quantile((1 + level) / 2)
	lo = 1 - math.Exp(-math.Exp(base+zLo*sd))
	hi = 1 - math.Exp(-math.Exp(base+zHi*sd))

	lo = math.Min(lo, est)
	hi = math.Max(hi, est)
	return est, lo, hi, nil
}
