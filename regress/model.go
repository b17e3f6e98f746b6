package regress

import (
	"fmt"
	"math"
	"sort"
	"time"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/cohortfit/cohortfit/dist"
)

// Model is a fitted conversion model. Predictions answer "what
// fraction of units with covariates x has converted by time t": the
// eventual-conversion probability times the event-time CDF. The
// zero value is not usable; obtain models from Fit.
type Model struct {
	family  dist.Family
	flavor  Flavor
	nf      int
	mapX    []float64
	samples [][]float64
	dropped int
}

// Coeffs holds the MAP estimate on the natural scale.
type Coeffs struct {
	K, P       float64 // event-time shapes
	SigmaAlpha float64 // prior scale of the rate coefficients
	SigmaBeta  float64 // prior scale of the conversion coefficients
	A, B       float64 // rate and conversion intercepts
	Alpha      []float64
	Beta       []float64
}

// Interval is a point estimate bracketed by an equal-tailed credible
// interval, Lo <= Estimate <= Hi up to sampling noise.
type Interval struct {
	Estimate float64
	Lo       float64
	Hi       float64
}

func (m *Model) Family() dist.Family { return m.family }
func (m *Model) Flavor() Flavor      { return m.flavor }
func (m *Model) NumFeatures() int    { return m.nf }

// HasPosterior reports whether the model carries posterior draws and
// the CI methods are available.
func (m *Model) HasPosterior() bool { return len(m.samples) > 0 }

// PosteriorSize returns the number of posterior draws, zero for a
// MAP-only fit.
func (m *Model) PosteriorSize() int { return len(m.samples) }

// DroppedZeroDuration returns how many converted observations with
// a zero duration were discarded before fitting.
func (m *Model) DroppedZeroDuration() int { return m.dropped }

// Params returns a copy of the MAP estimate in the unconstrained
// parameterization used during fitting.
func (m *Model) Params() []float64 {
	return append([]float64(nil), m.mapX...)
}

// Coeffs returns the MAP estimate on the natural scale.
func (m *Model) Coeffs() Coeffs {
	x := m.mapX
	return Coeffs{
		K:          math.Exp(x[0]),
		P:          math.Exp(x[1]),
		SigmaAlpha: math.Exp(x[2]),
		SigmaBeta:  math.Exp(x[3]),
		A:          x[4],
		B:          x[5],
		Alpha:      append([]float64(nil), x[numScalarParams:numScalarParams+m.nf]...),
		Beta:       append([]float64(nil), x[numScalarParams+m.nf:]...),
	}
}

// evalParams computes the conversion probability by time t under one
// parameter vector.
func (m *Model) evalParams(px, x []float64, t float64) float64 {
	k := math.Exp(px[0])
	p := math.Exp(px[1])
	v := floats.Dot(x, px[numScalarParams:numScalarParams+m.nf]) + px[4]
	u := floats.Dot(x, px[numScalarParams+m.nf:]) + px[5]

	var c float64
	if m.flavor == Linear {
		c = u
	} else {
		c = sigmoid(u)
	}
	d := dist.Params{K: k, P: p, Rate: math.Exp(v)}
	return c * d.CDF(t)
}

func (m *Model) checkFeatures(x []float64) {
	if len(x) != m.nf {
		panic("regress: feature vector length mismatch")
	}
}

// Predict returns the MAP probability that a unit with covariates x
// converts within t. Predict(x, math.Inf(1)) is the eventual
// conversion probability. It panics when len(x) differs from the
// model's feature count.
func (m *Model) Predict(x []float64, t float64) float64 {
	m.checkFeatures(x)
	return m.evalParams(m.mapX, x, t)
}

// PredictCurve evaluates Predict over a shared covariate vector and
// many horizons.
func (m *Model) PredictCurve(x []float64, ts []float64) []float64 {
	m.checkFeatures(x)
	out := make([]float64, len(ts))
	for i, t := range ts {
		out[i] = m.evalParams(m.mapX, x, t)
	}
	return out
}

// PredictEach evaluates Predict pairwise over rows of X and entries
// of ts, which must have equal length.
func (m *Model) PredictEach(X [][]float64, ts []float64) []float64 {
	if len(X) != len(ts) {
		panic("regress: mismatched observation and horizon counts")
	}
	out := make([]float64, len(ts))
	for i := range ts {
		m.checkFeatures(X[i])
		out[i] = m.evalParams(m.mapX, X[i], ts[i])
	}
	return out
}

// PredictGrid evaluates Predict over every combination of a covariate
// row and a horizon. The result has len(X) rows and len(ts) columns.
func (m *Model) PredictGrid(X [][]float64, ts []float64) [][]float64 {
	out := make([][]float64, len(X))
	for i, x := range X {
		out[i] = m.PredictCurve(x, ts)
	}
	return out
}

// PredictCI returns the posterior mean conversion probability by t
// together with an equal-tailed credible interval at the given level,
// e.g. level 0.8 brackets the central 80% of the posterior. It fails
// with ErrNoPosteriorSample on a MAP-only model.
func (m *Model) PredictCI(x []float64, t, level float64) (Interval, error) {
	m.checkFeatures(x)
	if !m.HasPosterior() {
		return Interval{}, ErrNoPosteriorSample
	}
	if err := checkLevel(level); err != nil {
		return Interval{}, err
	}
	return m.interval(x, t, level), nil
}

// PredictCurveCI is the credible-interval analog of PredictCurve.
func (m *Model) PredictCurveCI(x []float64, ts []float64, level float64) ([]Interval, error) {
	m.checkFeatures(x)
	if !m.HasPosterior() {
		return nil, ErrNoPosteriorSample
	}
	if err := checkLevel(level); err != nil {
		return nil, err
	}
	out := make([]Interval, len(ts))
	for i, t := range ts {
		out[i] = m.interval(x, t, level)
	}
	return out, nil
}

// PredictGridCI is the credible-interval analog of PredictGrid.
func (m *Model) PredictGridCI(X [][]float64, ts []float64, level float64) ([][]Interval, error) {
	out := make([][]Interval, len(X))
	for i, x := range X {
		row, err := m.PredictCurveCI(x, ts, level)
		if err != nil {
			return nil, err
		}
		out[i] = row
	}
	return out, nil
}

func checkLevel(level float64) error {
	if !(level > 0 && level < 1) {
		return fmt.Errorf("confidence level must lie in (0, 1), got %g", level)
	}
	return nil
}

func (m *Model) interval(x []float64, t, level float64) Interval {
	vals := make([]float64, len(m.samples))
	for i, s := range m.samples {
		vals[i] = m.evalParams(s, x, t)
	}
	est := stat.Mean(vals, nil)
	sort.Float64s(vals)
	return Interval{
		Estimate: est,
		Lo:       stat.Quantile((1-level)/2, stat.Empirical, vals, nil),
		Hi:       stat.Quantile((1+level)/2, stat.Empirical, vals, nil),
	}
}

// Sample draws n hypothetical futures for a unit with covariates x
// that is still unconverted at time now. Each draw reports whether the
// unit ever converts and, if so, at what time; non-converters get a
// +Inf time. Passing a nil src seeds from the clock.
func (m *Model) Sample(x []float64, now float64, n int, src rand.Source) (converted []bool, times []float64) {
	m.checkFeatures(x)
	if src == nil {
		src = rand.NewSource(uint64(time.Now().UnixNano()))
	}
	rng := rand.New(src)

	px := m.mapX
	k := math.Exp(px[0])
	p := math.Exp(px[1])
	v := floats.Dot(x, px[numScalarParams:numScalarParams+m.nf]) + px[4]
	u := floats.Dot(x, px[numScalarParams+m.nf:]) + px[5]
	var c float64
	if m.flavor == Linear {
		c = u
	} else {
		c = sigmoid(u)
	}
	d := dist.Params{K: k, P: p, Rate: math.Exp(v)}
	cdfNow := c * d.CDF(now)

	converted = make([]bool, n)
	times = make([]float64, n)
	for i := 0; i < n; i++ {
		// Map a uniform draw into the part of the conversion
		// distribution not yet ruled out at now.
		adjusted := cdfNow + (1-cdfNow)*rng.Float64()
		if adjusted < c {
			converted[i] = true
			times[i] = d.Quantile(adjusted / c)
		} else {
			times[i] = math.Inf(1)
		}
	}
	return converted, times
}
