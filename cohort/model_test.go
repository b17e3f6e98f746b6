package cohort_test

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cohortfit/cohortfit/cohort"
	"github.com/cohortfit/cohortfit/dist"
	"github.com/cohortfit/cohortfit/km"
	"github.com/cohortfit/cohortfit/regress"
)

// twoGroupArrays builds a deterministic cohort where group "fast"
// converts about twice as often as "slow" within the window.
func twoGroupArrays(t *testing.T) cohort.Arrays {
	t.Helper()
	var units []cohort.Unit
	for i := 0; i < 60; i++ {
		d := time.Duration(0)
		if i%2 == 0 {
			d = time.Duration(i+1) * time.Hour
		}
		units = append(units, unitAt("fast", d))

		d = 0
		if i%4 == 0 {
			d = time.Duration(2*i+1) * time.Hour
		}
		units = append(units, unitAt("slow", d))
	}
	a, err := cohort.BuildArrays(units, cohort.BuildOptions{Now: base.Add(150 * time.Hour)})
	require.NoError(t, err)
	require.Equal(t, []string{"fast", "slow"}, a.Groups)
	return a
}

func TestFitGroups(t *testing.T) {
	a := twoGroupArrays(t)
	g, err := cohort.FitGroups(dist.Exponential, a, regress.Options{Seed: 13, Restarts: 1})
	require.NoError(t, err)

	assert.Equal(t, []string{"fast", "slow"}, g.Groups())
	assert.Equal(t, a.Scale, g.Scale())
	assert.Greater(t, g.MaxDuration(), 0.0)

	// The group wrapper must agree with the one-hot regression it
	// wraps.
	fast, err := g.Estimate("fast", 3)
	require.NoError(t, err)
	assert.Equal(t, g.Model().Predict([]float64{1, 0}, 3), fast)

	slow, err := g.Estimate("slow", math.Inf(1))
	require.NoError(t, err)
	fastEventual, err := g.Estimate("fast", math.Inf(1))
	require.NoError(t, err)
	assert.Greater(t, fastEventual, slow)

	curve, err := g.Curve("fast", []float64{1, 2, 3})
	require.NoError(t, err)
	require.Len(t, curve, 3)
	assert.LessOrEqual(t, curve[0], curve[2])

	_, err = g.Estimate("missing", 1)
	assert.ErrorIs(t, err, cohort.ErrUnknownGroup)
}

func TestFitGroupsCIRequiresPosterior(t *testing.T) {
	a := twoGroupArrays(t)
	g, err := cohort.FitGroups(dist.Exponential, a, regress.Options{Seed: 13, Restarts: 1})
	require.NoError(t, err)

	_, _, _, err = g.EstimateCI("fast", 3, 0.8)
	assert.ErrorIs(t, err, regress.ErrNoPosteriorSample)
	_, err = g.CurveCI("fast", []float64{1, 2}, 0.8)
	assert.ErrorIs(t, err, regress.ErrNoPosteriorSample)
}

func TestFitGroupsWithPosterior(t *testing.T) {
	a := twoGroupArrays(t)
	g, err := cohort.FitGroups(dist.Exponential, a, regress.Options{
		Posterior: true,
		Seed:      29,
		Restarts:  1,
		Walkers:   20,
		BurnIn:    20,
		Steps:     10,
	})
	require.NoError(t, err)

	est, lo, hi, err := g.EstimateCI("fast", 3, 0.8)
	require.NoError(t, err)
	assert.LessOrEqual(t, lo, est)
	assert.GreaterOrEqual(t, hi, est)

	ivs, err := g.CurveCI("fast", []float64{1, 3}, 0.8)
	require.NoError(t, err)
	require.Len(t, ivs, 2)
	assert.LessOrEqual(t, ivs[0].Estimate, ivs[1].Estimate)
}

func TestFitGroupsKM(t *testing.T) {
	a := twoGroupArrays(t)
	g, err := cohort.FitGroupsKM(a)
	require.NoError(t, err)

	assert.Equal(t, []string{"fast", "slow"}, g.Groups())
	assert.Equal(t, a.Scale, g.Scale())

	// Each curve must match a direct fit on that group's slice.
	var ts []float64
	var bs []bool
	for i, gi := range a.G {
		if a.Groups[gi] == "fast" {
			ts = append(ts, a.T[i])
			bs = append(bs, a.B[i])
		}
	}
	direct, err := km.Fit(ts, bs)
	require.NoError(t, err)

	for _, horizon := range []float64{0.5, 1, 2, 5} {
		got, err := g.Estimate("fast", horizon)
		require.NoError(t, err)
		assert.Equal(t, direct.Estimate(horizon), got)
	}

	est, lo, hi, err := g.EstimateCI("fast", 2, 0.8)
	require.NoError(t, err)
	assert.LessOrEqual(t, lo, est)
	assert.GreaterOrEqual(t, hi, est)

	_, err = g.Estimate("missing", 1)
	assert.ErrorIs(t, err, cohort.ErrUnknownGroup)

	curve, err := g.Curve("slow", []float64{1, 2, 4})
	require.NoError(t, err)
	require.Len(t, curve, 3)
	assert.LessOrEqual(t, curve[0], curve[2])
}
