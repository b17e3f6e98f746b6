package regress

import (
	"errors"
	"fmt"
)

// ErrNoPosteriorSample is returned when a credible interval or a
// posterior draw is requested from a model that was fit without
// posterior sampling.
var ErrNoPosteriorSample = errors.New("model was fit without posterior sampling")

// InvalidObservationError reports malformed input data: negative
// durations, ragged covariate rows, negative weights, or an empty
// observation set. It is returned before any numerical work starts.
type InvalidObservationError struct {
	Row    int // offending row, -1 when the whole set is at fault
	Reason string
}

func (e *InvalidObservationError) Error() string {
	if e.Row < 0 {
		return fmt.Sprintf("invalid observations: %s", e.Reason)
	}
	return fmt.Sprintf("invalid observation at row %d: %s", e.Row, e.Reason)
}

// FitDidNotConvergeError reports that every optimizer restart failed.
// Last carries the failure from the final restart.
type FitDidNotConvergeError struct {
	Restarts int
	Last     error
}

func (e *FitDidNotConvergeError) Error() string {
	if e.Last == nil {
		return fmt.Sprintf("fit did not converge after %d restarts", e.Restarts)
	}
	return fmt.Sprintf("fit did not converge after %d restarts: %v", e.Restarts, e.Last)
}

func (e *FitDidNotConvergeError) Unwrap() error { return e.Last }
