package dist_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/cohortfit/cohortfit/dist"
)

var paramGrid = []dist.Params{
	{K: 1, P: 1, Rate: 0.1},
	{K: 1, P: 1.5, Rate: 0.3},
	{K: 2.5, P: 1, Rate: 0.05},
	{K: 0.7, P: 2.2, Rate: 1.3},
	{K: 3.1, P: 0.6, Rate: 0.8},
}

var timeGrid = []float64{1e-6, 0.01, 0.1, 0.5, 1, 2, 5, 10, 50, 200}

func TestCDFSurvivalComplement(t *testing.T) {
	for _, d := range paramGrid {
		for _, tt := range timeGrid {
			got := math.Exp(d.LogCDF(tt)) + math.Exp(d.LogSurvival(tt))
			assert.InDelta(t, 1.0, got, 1e-6, "params %+v t=%v", d, tt)
		}
	}
}

func TestSurvivalMonotone(t *testing.T) {
	for _, d := range paramGrid {
		prev := math.Inf(1)
		for _, tt := range timeGrid {
			ls := d.LogSurvival(tt)
			assert.LessOrEqual(t, ls, prev, "params %+v t=%v", d, tt)
			prev = ls
		}
	}
}

func TestBoundaryValues(t *testing.T) {
	d := dist.Params{K: 2, P: 1.5, Rate: 0.2}

	assert.Equal(t, 0.0, d.CDF(0))
	assert.True(t, math.IsInf(d.LogCDF(0), -1))
	assert.Equal(t, 0.0, d.LogSurvival(0))
	assert.Equal(t, 1.0, d.Survival(0))

	// Density at t = 0 depends on the sign of kp-1.
	assert.True(t, math.IsInf(d.LogPDF(0), -1), "kp > 1 has no mass at zero")
	assert.True(t, math.IsInf(dist.Params{K: 0.4, P: 1, Rate: 1}.LogPDF(0), 1))
	exp := dist.Params{K: 1, P: 1, Rate: 2}
	assert.InDelta(t, math.Log(2), exp.LogPDF(0), 1e-12, "exponential density at zero is λ")

	// An overflowed rate must not produce NaN.
	huge := dist.Params{K: 1, P: 2, Rate: math.Inf(1)}
	assert.False(t, math.IsNaN(huge.LogPDF(3)))
	assert.Equal(t, 1.0, huge.CDF(3))
	assert.Equal(t, 0.0, huge.Survival(3))
}

func TestExponentialClosedForm(t *testing.T) {
	lambda := 0.37
	d := dist.Params{K: 1, P: 1, Rate: lambda}
	for _, tt := range timeGrid {
		assert.InDelta(t, math.Log(lambda)-lambda*tt, d.LogPDF(tt), 1e-10)
		assert.InDelta(t, -lambda*tt, d.LogSurvival(tt), 1e-10)
	}
}

func TestWeibullMatchesReference(t *testing.T) {
	lambda, p := 0.25, 1.8
	d := dist.Params{K: 1, P: p, Rate: lambda}
	ref := distuv.Weibull{K: p, Lambda: 1 / lambda}
	for _, tt := range timeGrid {
		assert.InDelta(t, ref.LogProb(tt), d.LogPDF(tt), 1e-8, "t=%v", tt)
		assert.InDelta(t, ref.Survival(tt), d.Survival(tt), 1e-10, "t=%v", tt)
	}
}

func TestGammaMatchesReference(t *testing.T) {
	lambda, k := 0.6, 2.4
	d := dist.Params{K: k, P: 1, Rate: lambda}
	ref := distuv.Gamma{Alpha: k, Beta: lambda}
	for _, tt := range timeGrid {
		assert.InDelta(t, ref.LogProb(tt), d.LogPDF(tt), 1e-8, "t=%v", tt)
		assert.InDelta(t, ref.CDF(tt), d.CDF(tt), 1e-10, "t=%v", tt)
	}
}

func TestShapesConvergeToExponential(t *testing.T) {
	lambda := 0.15
	exp := dist.Params{K: 1, P: 1, Rate: lambda}
	near := dist.Params{K: 1 + 1e-7, P: 1 - 1e-7, Rate: lambda}
	for _, tt := range timeGrid {
		assert.InDelta(t, exp.LogPDF(tt), near.LogPDF(tt), 1e-4, "t=%v", tt)
		assert.InDelta(t, exp.LogSurvival(tt), near.LogSurvival(tt), 1e-4, "t=%v", tt)
	}
}

func TestQuantileInvertsCDF(t *testing.T) {
	for _, d := range paramGrid {
		for _, q := range []float64{0.01, 0.1, 0.5, 0.9, 0.99} {
			tt := d.Quantile(q)
			assert.InDelta(t, q, d.CDF(tt), 1e-8, "params %+v q=%v", d, q)
		}
	}
	assert.True(t, math.IsNaN(dist.Params{K: 1, P: 1, Rate: 1}.Quantile(1.5)))
}

func TestParseFamily(t *testing.T) {
	cases := map[string]dist.Family{
		"exponential":       dist.Exponential,
		"Weibull":           dist.Weibull,
		"gamma":             dist.Gamma,
		"generalized-gamma": dist.GeneralizedGamma,
		"generalized_gamma": dist.GeneralizedGamma,
	}
	for in, want := range cases {
		got, err := dist.ParseFamily(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := dist.ParseFamily("lognormal")
	assert.Error(t, err)

	for _, f := range dist.Families() {
		parsed, err := dist.ParseFamily(f.String())
		require.NoError(t, err)
		assert.Equal(t, f, parsed)
	}
}

func TestFreeShapes(t *testing.T) {
	assert.Equal(t, 0, dist.Exponential.FreeShapes())
	assert.Equal(t, 1, dist.Weibull.FreeShapes())
	assert.Equal(t, 1, dist.Gamma.FreeShapes())
	assert.Equal(t, 2, dist.GeneralizedGamma.FreeShapes())

	k, ok := dist.Weibull.FixedK()
	require.True(t, ok)
	assert.Equal(t, 1.0, k)
	_, ok = dist.Weibull.FixedP()
	assert.False(t, ok)
}
