package km_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cohortfit/cohortfit/km"
	"github.com/cohortfit/cohortfit/regress"
)

func handCurve(t *testing.T) *km.Model {
	t.Helper()
	m, err := km.Fit(
		[]float64{1, 2, 3, 4, 5},
		[]bool{true, true, false, true, false},
	)
	require.NoError(t, err)
	return m
}

func TestEstimateHandComputed(t *testing.T) {
	m := handCurve(t)

	// Events at 1, 2, 4 with risk sets 5, 4, 2:
	// s = 4/5, then 4/5 * 3/4 = 3/5, then 3/5 * 1/2 = 3/10.
	cases := []struct{ at, want float64 }{
		{0, 0},
		{0.5, 0},
		{1, 0.2},
		{1.5, 0.2},
		{2, 0.4},
		{3, 0.4},
		{4, 0.7},
		{5, 0.7},
	}
	for _, c := range cases {
		assert.InDelta(t, c.want, m.Estimate(c.at), 1e-12, "t=%v", c.at)
	}
}

func TestEstimatePlateausBeyondLastDuration(t *testing.T) {
	m := handCurve(t)
	last := m.Estimate(m.MaxDuration())
	assert.Equal(t, 5.0, m.MaxDuration())
	assert.Equal(t, last, m.Estimate(100))
	assert.Equal(t, last, m.Estimate(math.Inf(1)))
	assert.False(t, math.IsNaN(m.Estimate(1e9)))
}

func TestEstimateBeforeEntryIsZero(t *testing.T) {
	m := handCurve(t)
	assert.Zero(t, m.Estimate(-3))
}

func TestEstimateCIBrackets(t *testing.T) {
	m := handCurve(t)

	for _, at := range []float64{0, 1, 2.5, 4, 7} {
		est, lo, hi, err := m.EstimateCI(at, 0.8)
		require.NoError(t, err)
		assert.Equal(t, m.Estimate(at), est, "t=%v", at)
		assert.LessOrEqual(t, lo, est, "t=%v", at)
		assert.GreaterOrEqual(t, hi, est, "t=%v", at)
		assert.GreaterOrEqual(t, lo, 0.0, "t=%v", at)
		assert.LessOrEqual(t, hi, 1.0, "t=%v", at)
	}

	_, lo80, hi80, err := m.EstimateCI(2, 0.8)
	require.NoError(t, err)
	_, lo95, hi95, err := m.EstimateCI(2, 0.95)
	require.NoError(t, err)
	assert.Less(t, lo95, lo80)
	assert.Greater(t, hi95, hi80)
}

func TestEstimateCIRejectsBadLevel(t *testing.T) {
	m := handCurve(t)
	for _, level := range []float64{0, 1, -1, 2, math.NaN()} {
		_, _, _, err := m.EstimateCI(1, level)
		assert.Error(t, err, "level %v", level)
	}
}

func TestTerminalEventReachesOne(t *testing.T) {
	// A censored unit tied with an event resolves censored-first, so
	// the final event sees a risk set of one and the curve hits 1.
	m, err := km.Fit([]float64{2, 2}, []bool{false, true})
	require.NoError(t, err)
	assert.Equal(t, 1.0, m.Estimate(2))

	est, lo, hi, err := m.EstimateCI(2, 0.8)
	require.NoError(t, err)
	assert.Equal(t, 1.0, est)
	assert.False(t, math.IsNaN(lo))
	assert.False(t, math.IsNaN(hi))
	assert.Equal(t, 1.0, hi)
}

func TestFitWeightedMatchesRepetition(t *testing.T) {
	weighted, err := km.FitWeighted(
		[]float64{1, 2, 3},
		[]bool{true, true, false},
		[]float64{2, 1, 3},
	)
	require.NoError(t, err)

	expanded, err := km.Fit(
		[]float64{1, 1, 2, 3, 3, 3},
		[]bool{true, true, true, false, false, false},
	)
	require.NoError(t, err)

	for _, at := range []float64{0, 1, 2, 2.5, 3, 10} {
		assert.InDelta(t, expanded.Estimate(at), weighted.Estimate(at), 1e-12, "t=%v", at)
	}

	wantEst, wantLo, wantHi, err := expanded.EstimateCI(2, 0.9)
	require.NoError(t, err)
	est, lo, hi, err := weighted.EstimateCI(2, 0.9)
	require.NoError(t, err)
	assert.InDelta(t, wantEst, est, 1e-12)
	assert.InDelta(t, wantLo, lo, 1e-12)
	assert.InDelta(t, wantHi, hi, 1e-12)
}

func TestFitWeightedRejectsBadWeights(t *testing.T) {
	var ie *regress.InvalidObservationError

	_, err := km.FitWeighted([]float64{1, 2}, []bool{true, false}, []float64{1})
	require.ErrorAs(t, err, &ie)

	_, err = km.FitWeighted([]float64{1}, []bool{true}, []float64{-1})
	require.ErrorAs(t, err, &ie)

	_, err = km.FitWeighted([]float64{1}, []bool{true}, []float64{0})
	require.ErrorAs(t, err, &ie)
}

func TestFitRejectsInvalidInputs(t *testing.T) {
	var ie *regress.InvalidObservationError

	_, err := km.Fit(nil, nil)
	require.ErrorAs(t, err, &ie)

	_, err = km.Fit([]float64{1, 2}, []bool{true})
	require.ErrorAs(t, err, &ie)

	_, err = km.Fit([]float64{1, -2}, []bool{true, false})
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, 1, ie.Row)

	_, err = km.Fit([]float64{math.NaN()}, []bool{true})
	require.ErrorAs(t, err, &ie)
}

func TestCensoredOnlyCohortStaysFlat(t *testing.T) {
	m, err := km.Fit([]float64{1, 2, 3}, []bool{false, false, false})
	require.NoError(t, err)
	for _, at := range []float64{0, 1, 2, 3, 10} {
		assert.Zero(t, m.Estimate(at))
	}
}
