package regress

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDropZeroDurationConversions(t *testing.T) {
	obs := Observations{
		X:         [][]float64{{1}, {2}, {3}, {4}},
		Converted: []bool{true, false, true, true},
		T:         []float64{0, 0, 2, 0},
		Weights:   []float64{1, 2, 3, 4},
	}

	kept, dropped := dropZeroDurationConversions(obs)
	assert.Equal(t, 2, dropped)
	require.Equal(t, 2, kept.Len())

	// The censored zero-duration row stays, the converted ones go.
	assert.Equal(t, [][]float64{{2}, {3}}, kept.X)
	assert.Equal(t, []bool{false, true}, kept.Converted)
	assert.Equal(t, []float64{0, 2}, kept.T)
	assert.Equal(t, []float64{2, 3}, kept.Weights)
}

func TestDropZeroDurationKeepsCleanSetUntouched(t *testing.T) {
	obs := Observations{
		X:         [][]float64{{1}, {2}},
		Converted: []bool{true, false},
		T:         []float64{1, 2},
	}
	kept, dropped := dropZeroDurationConversions(obs)
	assert.Zero(t, dropped)
	assert.Equal(t, obs, kept)
}

func TestValidateReportsFirstViolation(t *testing.T) {
	obs := Observations{
		X:         [][]float64{{1}, {2}, {3}},
		Converted: []bool{true, false, true},
		T:         []float64{1, -2, -3},
	}
	err := obs.Validate()
	var ie *InvalidObservationError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, 1, ie.Row)
	assert.Contains(t, err.Error(), "duration")
}
