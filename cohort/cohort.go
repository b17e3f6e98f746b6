// Package cohort turns raw per-unit records into the numerical arrays
// the fitters consume: it selects groups, resolves censoring times
// against an observation cutoff, and rescales durations to a readable
// time unit. It also wraps the fitters with a per-group interface so
// callers ask about "signup-2026-03" rather than one-hot vectors.
package cohort

import (
	"fmt"
	"sort"
	"time"

	"github.com/cohortfit/cohortfit/regress"
)

// Unit is one raw cohort record.
type Unit struct {
	Group string

	// Created is when the unit entered its cohort. Required.
	Created time.Time

	// Converted is when the conversion event happened. The zero value
	// means the unit has not converted.
	Converted time.Time

	// Now optionally overrides the observation cutoff for this unit.
	// The zero value uses the cutoff from BuildOptions.
	Now time.Time
}

// Timescale is the unit durations are expressed in.
type Timescale int

const (
	// Auto picks the largest unit not exceeding the longest duration
	// in the data.
	Auto Timescale = iota
	Years
	Days
	Hours
	Minutes
	Seconds
)

const (
	daySpan = 24 * time.Hour
	// Julian year, 365.25 days.
	yearSpan = 8766 * time.Hour
)

func (s Timescale) String() string {
	switch s {
	case Auto:
		return "auto"
	case Years:
		return "years"
	case Days:
		return "days"
	case Hours:
		return "hours"
	case Minutes:
		return "minutes"
	case Seconds:
		return "seconds"
	}
	return fmt.Sprintf("Timescale(%d)", int(s))
}

// ParseTimescale maps a name like "days" back to its Timescale.
func ParseTimescale(name string) (Timescale, error) {
	for _, s := range []Timescale{Auto, Years, Days, Hours, Minutes, Seconds} {
		if s.String() == name {
			return s, nil
		}
	}
	return Auto, fmt.Errorf("unknown timescale %q", name)
}

func (s Timescale) span() time.Duration {
	switch s {
	case Years:
		return yearSpan
	case Days:
		return daySpan
	case Hours:
		return time.Hour
	case Minutes:
		return time.Minute
	case Seconds:
		return time.Second
	}
	panic("cohort: no span for " + s.String())
}

// Convert expresses d in this timescale. It panics on Auto, which
// only exists as a BuildOptions value.
func (s Timescale) Convert(d time.Duration) float64 {
	return d.Seconds() / s.span().Seconds()
}

// InferTimescale returns the largest unit that does not exceed the
// longest observed duration, so curves plot with small readable
// numbers.
func InferTimescale(longest time.Duration) Timescale {
	for _, s := range []Timescale{Years, Days, Hours, Minutes} {
		if longest >= s.span() {
			return s
		}
	}
	return Seconds
}

// BuildOptions configures BuildArrays. The zero value keeps every
// group, uses the current time as cutoff, and infers the timescale.
type BuildOptions struct {
	// Now is the observation cutoff for units that have not converted
	// and carry no per-unit cutoff. Zero means time.Now().
	Now time.Time

	// Scale fixes the duration unit. Auto infers it from the data.
	Scale Timescale

	// MinGroupSize drops groups with fewer units than this.
	MinGroupSize int

	// MaxGroups keeps only the most populous groups. 0 keeps all.
	MaxGroups int
}

// Arrays is the numerical form of a cohort, aligned per unit.
type Arrays struct {
	// Groups are the selected group names, sorted lexicographically.
	Groups []string

	G []int     // index into Groups
	B []bool    // converted flags
	T []float64 // durations in Scale units

	Scale Timescale
}

func (a Arrays) Len() int { return len(a.T) }

// BuildArrays converts raw units to fit-ready arrays. Units whose
// group falls below the size threshold or outside the top groups are
// dropped; a unit that converts before it is created is an error.
func BuildArrays(units []Unit, opts BuildOptions) (Arrays, error) {
	if len(units) == 0 {
		return Arrays{}, &regress.InvalidObservationError{Row: -1, Reason: "empty cohort"}
	}
	cutoff := opts.Now
	if cutoff.IsZero() {
		cutoff = time.Now()
	}

	type rec struct {
		group string
		conv  bool
		d     time.Duration
	}
	recs := make([]rec, 0, len(units))
	counts := make(map[string]int)
	for i, u := range units {
		if u.Created.IsZero() {
			return Arrays{}, &regress.InvalidObservationError{Row: i, Reason: "missing creation time"}
		}
		r := rec{group: u.Group, conv: !u.Converted.IsZero()}
		if r.conv {
			r.d = u.Converted.Sub(u.Created)
		} else {
			end := u.Now
			if end.IsZero() {
				end = cutoff
			}
			r.d = end.Sub(u.Created)
		}
		if r.d < 0 {
			return Arrays{}, &regress.InvalidObservationError{Row: i, Reason: "observation ends before it starts"}
		}
		recs = append(recs, r)
		counts[u.Group]++
	}

	selected := selectGroups(counts, opts.MinGroupSize, opts.MaxGroups)
	if len(selected) == 0 {
		return Arrays{}, &regress.InvalidObservationError{Row: -1, Reason: "no group satisfies the size threshold"}
	}
	index := make(map[string]int, len(selected))
	for j, g := range selected {
		index[g] = j
	}

	a := Arrays{Groups: selected}
	var ds []time.Duration
	var longest time.Duration
	for _, r := range recs {
		j, ok := index[r.group]
		if !ok {
			continue
		}
		a.G = append(a.G, j)
		a.B = append(a.B, r.conv)
		ds = append(ds, r.d)
		if r.d > longest {
			longest = r.d
		}
	}

	a.Scale = opts.Scale
	if a.Scale == Auto {
		a.Scale = InferTimescale(longest)
	}
	a.T = make([]float64, len(ds))
	for i, d := range ds {
		a.T[i] = a.Scale.Convert(d)
	}
	return a, nil
}

// selectGroups applies the size threshold, then the top-n cut by
// count, and returns the survivors sorted by name.
func selectGroups(counts map[string]int, minSize, maxGroups int) []string {
	names := make([]string, 0, len(counts))
	for g, c := range counts {
		if c >= minSize {
			names = append(names, g)
		}
	}
	if maxGroups > 0 && len(names) > maxGroups {
		sort.Slice(names, func(i, j int) bool {
			if counts[names[i]] != counts[names[j]] {
				return counts[names[i]] > counts[names[j]]
			}
			return names[i] < names[j]
		})
		names = names[:maxGroups]
	}
	sort.Strings(names)
	return names
}

// OneHot returns a basis vector of the given width with slot index
// set.
func OneHot(index, width int) []float64 {
	x := make([]float64, width)
	x[index] = 1
	return x
}

// Design expands the group indices into a one-hot design matrix.
func (a Arrays) Design() [][]float64 {
	X := make([][]float64, len(a.G))
	for i, g := range a.G {
		X[i] = OneHot(g, len(a.Groups))
	}
	return X
}

// Observations adapts the arrays to the regression fitter's input.
func (a Arrays) Observations() regress.Observations {
	return regress.Observations{X: a.Design(), Converted: a.B, T: a.T}
}
