package stats

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// WilsonInterval calculates the Wilson score confidence interval for a
// binomial proportion. It behaves better for small samples than the
// normal approximation, which matters for fresh cohorts.
func WilsonInterval(successes, trials int, confidence float64) (lower, upper float64) {
	if trials == 0 {
		return 0, 0
	}

	z := distuv.UnitNormal.Quantile((1 + confidence) / 2)
	p := float64(successes) / float64(trials)
	n := float64(trials)

	denominator := 1 + z*z/n
	center := (p + z*z/(2*n)) / denominator
	spread := (z / denominator) * math.Sqrt(p*(1-p)/n+z*z/(4*n*n))

	lower = math.Max(0, center-spread)
	upper = math.Min(1, center+spread)
	return lower, upper
}
