package cohort_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cohortfit/cohortfit/cohort"
	"github.com/cohortfit/cohortfit/regress"
)

var base = time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)

// unitAt builds a unit created at base; converted after d when d > 0.
func unitAt(group string, d time.Duration) cohort.Unit {
	u := cohort.Unit{Group: group, Created: base}
	if d > 0 {
		u.Converted = base.Add(d)
	}
	return u
}

func TestTimescaleParseRoundTrip(t *testing.T) {
	for _, s := range []cohort.Timescale{
		cohort.Auto, cohort.Years, cohort.Days, cohort.Hours, cohort.Minutes, cohort.Seconds,
	} {
		got, err := cohort.ParseTimescale(s.String())
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}
	_, err := cohort.ParseTimescale("fortnights")
	assert.Error(t, err)
}

func TestInferTimescale(t *testing.T) {
	cases := []struct {
		longest time.Duration
		want    cohort.Timescale
	}{
		{500 * time.Millisecond, cohort.Seconds},
		{45 * time.Second, cohort.Seconds},
		{90 * time.Second, cohort.Minutes},
		{3 * time.Hour, cohort.Hours},
		{36 * time.Hour, cohort.Days},
		{400 * 24 * time.Hour, cohort.Years},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, cohort.InferTimescale(c.longest), "longest=%v", c.longest)
	}
}

func TestTimescaleConvert(t *testing.T) {
	assert.InDelta(t, 1.5, cohort.Days.Convert(36*time.Hour), 1e-12)
	assert.InDelta(t, 90, cohort.Seconds.Convert(90*time.Second), 1e-12)
	assert.InDelta(t, 0.5, cohort.Minutes.Convert(30*time.Second), 1e-12)
}

func TestBuildArrays(t *testing.T) {
	units := []cohort.Unit{
		unitAt("b", 12*time.Hour),
		unitAt("a", 0),
		unitAt("a", 36*time.Hour),
		unitAt("b", 0),
		unitAt("b", 6*time.Hour),
	}
	a, err := cohort.BuildArrays(units, cohort.BuildOptions{Now: base.Add(48 * time.Hour)})
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b"}, a.Groups)
	assert.Equal(t, cohort.Days, a.Scale)
	assert.Equal(t, []int{1, 0, 0, 1, 1}, a.G)
	assert.Equal(t, []bool{true, false, true, false, true}, a.B)

	// Conversions keep their own duration, censored units run to the
	// cutoff.
	require.Len(t, a.T, 5)
	assert.InDelta(t, 0.5, a.T[0], 1e-12)
	assert.InDelta(t, 2.0, a.T[1], 1e-12)
	assert.InDelta(t, 1.5, a.T[2], 1e-12)
}

func TestBuildArraysPerUnitCutoff(t *testing.T) {
	u := unitAt("a", 0)
	u.Now = base.Add(10 * time.Hour)
	units := []cohort.Unit{u, unitAt("a", 2*time.Hour)}

	a, err := cohort.BuildArrays(units, cohort.BuildOptions{
		Now:   base.Add(100 * time.Hour),
		Scale: cohort.Hours,
	})
	require.NoError(t, err)
	assert.Equal(t, cohort.Hours, a.Scale)
	assert.InDelta(t, 10, a.T[0], 1e-12)
	assert.InDelta(t, 2, a.T[1], 1e-12)
}

func TestBuildArraysGroupSelection(t *testing.T) {
	var units []cohort.Unit
	add := func(group string, n int) {
		for i := 0; i < n; i++ {
			units = append(units, unitAt(group, time.Duration(i+1)*time.Hour))
		}
	}
	add("tiny", 1)
	add("small", 3)
	add("mid", 5)
	add("big", 8)

	a, err := cohort.BuildArrays(units, cohort.BuildOptions{
		Now:          base.Add(24 * time.Hour),
		MinGroupSize: 2,
		MaxGroups:    2,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"big", "mid"}, a.Groups)
	assert.Equal(t, 13, a.Len())

	all, err := cohort.BuildArrays(units, cohort.BuildOptions{Now: base.Add(24 * time.Hour)})
	require.NoError(t, err)
	assert.Equal(t, []string{"big", "mid", "small", "tiny"}, all.Groups)
	assert.Equal(t, 17, all.Len())
}

func TestBuildArraysErrors(t *testing.T) {
	var ie *regress.InvalidObservationError

	_, err := cohort.BuildArrays(nil, cohort.BuildOptions{})
	require.ErrorAs(t, err, &ie)

	// Conversion before creation.
	u := cohort.Unit{Group: "a", Created: base, Converted: base.Add(-time.Hour)}
	_, err = cohort.BuildArrays([]cohort.Unit{u}, cohort.BuildOptions{})
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, 0, ie.Row)

	_, err = cohort.BuildArrays([]cohort.Unit{{Group: "a"}}, cohort.BuildOptions{})
	require.ErrorAs(t, err, &ie)

	_, err = cohort.BuildArrays(
		[]cohort.Unit{unitAt("a", time.Hour)},
		cohort.BuildOptions{Now: base.Add(2 * time.Hour), MinGroupSize: 5},
	)
	require.ErrorAs(t, err, &ie)
}

func TestDesignOneHot(t *testing.T) {
	units := []cohort.Unit{
		unitAt("x", time.Hour),
		unitAt("y", 0),
	}
	a, err := cohort.BuildArrays(units, cohort.BuildOptions{Now: base.Add(4 * time.Hour)})
	require.NoError(t, err)

	X := a.Design()
	require.Len(t, X, 2)
	assert.Equal(t, []float64{1, 0}, X[0])
	assert.Equal(t, []float64{0, 1}, X[1])

	obs := a.Observations()
	assert.Equal(t, X, obs.X)
	assert.Equal(t, a.B, obs.Converted)
	assert.Equal(t, a.T, obs.T)
}
