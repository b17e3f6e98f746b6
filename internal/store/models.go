package store

import "time"

// Event is one unit of a cohort: when it was created and, if it has
// converted, when that happened.
type Event struct {
	ID          int64
	Group       string
	CreatedAt   time.Time
	ConvertedAt *time.Time // nil while the unit has not converted
}

type GroupStats struct {
	Group       string
	Units       int
	Conversions int
	Oldest      time.Time
}
