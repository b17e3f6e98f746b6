package regress

import (
	"fmt"
	"math"
)

// Observations holds the aligned input arrays for a fit, one entry per
// unit. Every unit is observed from its own t = 0: T is the time from
// entry to conversion for converted units, and from entry to the
// observation cutoff for censored ones.
type Observations struct {
	// X is the design matrix, one covariate row per unit. All rows
	// must have the same length. One-hot rows encode group
	// membership.
	X [][]float64

	// Converted marks units whose conversion happened inside the
	// observed window.
	Converted []bool

	// T is each unit's duration, in whatever time unit the caller
	// works in. Must be finite and non-negative.
	T []float64

	// Weights optionally scales each unit's likelihood contribution,
	// e.g. counts for pre-aggregated rows. Nil means every unit
	// counts once.
	Weights []float64
}

// Len returns the number of units.
func (o Observations) Len() int { return len(o.T) }

// NumFeatures returns the covariate row width, or 0 for an empty set.
func (o Observations) NumFeatures() int {
	if len(o.X) == 0 {
		return 0
	}
	return len(o.X[0])
}

// Validate checks the caller contract: non-empty set, aligned array
// lengths, rectangular X with at least one column, finite non-negative
// durations and weights, finite covariates. It returns an
// *InvalidObservationError describing the first violation found.
func (o Observations) Validate() error {
	n := o.Len()
	if n == 0 {
		return &InvalidObservationError{Row: -1, Reason: "empty observation set"}
	}
	if len(o.X) != n || len(o.Converted) != n {
		return &InvalidObservationError{Row: -1, Reason: fmt.Sprintf(
			"misaligned arrays: %d covariate rows, %d converted flags, %d durations",
			len(o.X), len(o.Converted), n)}
	}
	if o.Weights != nil && len(o.Weights) != n {
		return &InvalidObservationError{Row: -1, Reason: fmt.Sprintf(
			"misaligned arrays: %d weights, %d durations", len(o.Weights), n)}
	}

	nf := len(o.X[0])
	if nf == 0 {
		return &InvalidObservationError{Row: 0, Reason: "empty covariate row"}
	}
	for i, row := range o.X {
		if len(row) != nf {
			return &InvalidObservationError{Row: i, Reason: fmt.Sprintf(
				"covariate row has %d features, want %d", len(row), nf)}
		}
		for _, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return &InvalidObservationError{Row: i, Reason: "covariate is not finite"}
			}
		}
	}

	for i, t := range o.T {
		if math.IsNaN(t) || math.IsInf(t, 0) || t < 0 {
			return &InvalidObservationError{Row: i, Reason: fmt.Sprintf(
				"duration %v is not a finite non-negative number", t)}
		}
	}
	if o.Weights != nil {
		for i, w := range o.Weights {
			if math.IsNaN(w) || math.IsInf(w, 0) || w < 0 {
				return &InvalidObservationError{Row: i, Reason: fmt.Sprintf(
					"weight %v is not a finite non-negative number", w)}
			}
		}
	}
	return nil
}

// dropZeroDurationConversions removes converted units with T == 0.
// They carry no density mass under any of the families, so keeping
// them would pin the likelihood at -Inf. Censored zero-duration units
// stay: they contribute nothing but are harmless.
func dropZeroDurationConversions(o Observations) (Observations, int) {
	dropped := 0
	for i := range o.T {
		if o.Converted[i] && o.T[i] == 0 {
			dropped++
		}
	}
	if dropped == 0 {
		return o, 0
	}

	n := o.Len() - dropped
	out := Observations{
		X:         make([][]float64, 0, n),
		Converted: make([]bool, 0, n),
		T:         make([]float64, 0, n),
	}
	if o.Weights != nil {
		out.Weights = make([]float64, 0, n)
	}
	for i := range o.T {
		if o.Converted[i] && o.T[i] == 0 {
			continue
		}
		out.X = append(out.X, o.X[i])
		out.Converted = append(out.Converted, o.Converted[i])
		out.T = append(out.T, o.T[i])
		if o.Weights != nil {
			out.Weights = append(out.Weights, o.Weights[i])
		}
	}
	return out, dropped
}
