// Package export renders fitted conversion curves as long-format
// tables, one row per group and integer horizon, for databases and BI
// tools.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
)

// Model is any fitted per-group conversion model. Both the parametric
// group regression and the Kaplan-Meier wrapper satisfy it.
type Model interface {
	Groups() []string
	Estimate(group string, t float64) (float64, error)
	EstimateCI(group string, t, level float64) (est, lo, hi float64, err error)
	MaxDuration() float64
}

// Row is one curve point. Lo and Hi are only meaningful when the
// containing table carries intervals.
type Row struct {
	Group string
	T     float64
	Value float64
	Lo    float64
	Hi    float64
}

// Table is a rendered set of curves.
type Table struct {
	Rows  []Row
	HasCI bool
	Level float64
}

// Options configures Build. The zero value renders every group up to
// the model's longest duration, one row per whole time unit, without
// intervals.
type Options struct {
	// TMax is the last horizon. 0 uses the model's longest duration.
	TMax float64

	// Steps is the number of grid points. 0 places one point per whole
	// time unit.
	Steps int

	// Level, when nonzero, adds interval bounds at that level. The
	// model must support them.
	Level float64

	// Groups restricts the output. Nil renders all of the model's
	// groups; names not in the model are an error.
	Groups []string
}

// Grid returns n evenly spaced horizons from 0 to tMax inclusive.
// n <= 0 means one horizon per whole time unit: 0, 1, ..., floor(tMax).
func Grid(tMax float64, n int) []float64 {
	if n <= 0 {
		n = 1
		if tMax > 0 {
			n = int(math.Floor(tMax)) + 1
		}
		ts := make([]float64, n)
		for i := range ts {
			ts[i] = float64(i)
		}
		return ts
	}
	ts := make([]float64, n)
	if n > 1 {
		step := tMax / float64(n-1)
		for i := range ts {
			ts[i] = float64(i) * step
		}
	}
	return ts
}

// Curve renders one group's rows over the given horizons. A nonzero
// level brackets each row with the model's interval bounds.
func Curve(m Model, group string, ts []float64, level float64) ([]Row, error) {
	rows := make([]Row, 0, len(ts))
	for _, t := range ts {
		row := Row{Group: group, T: t}
		if level != 0 {
			est, lo, hi, err := m.EstimateCI(group, t, level)
			if err != nil {
				return nil, err
			}
			row.Value, row.Lo, row.Hi = est, lo, hi
		} else {
			est, err := m.Estimate(group, t)
			if err != nil {
				return nil, err
			}
			row.Value = est
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// Build evaluates the model over the horizon grid for the selected
// groups.
func Build(m Model, opts Options) (*Table, error) {
	groups := opts.Groups
	known := m.Groups()
	if groups == nil {
		groups = known
	} else {
		have := make(map[string]bool, len(known))
		for _, g := range known {
			have[g] = true
		}
		for _, g := range groups {
			if !have[g] {
				return nil, fmt.Errorf("group %q is not part of the model", g)
			}
		}
	}

	tMax := opts.TMax
	if tMax == 0 {
		tMax = m.MaxDuration()
	}
	ts := Grid(tMax, opts.Steps)

	table := &Table{HasCI: opts.Level != 0, Level: opts.Level}
	for _, g := range groups {
		rows, err := Curve(m, g, ts, opts.Level)
		if err != nil {
			return nil, err
		}
		table.Rows = append(table.Rows, rows...)
	}
	return table, nil
}

// WriteCSV writes the table with a header row.
func (t *Table) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)

	header := []string{"group", "t", "prediction_value"}
	if t.HasCI {
		header = append(header, "ci_low", "ci_high")
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, r := range t.Rows {
		rec := []string{r.Group, num(r.T), num(r.Value)}
		if t.HasCI {
			rec = append(rec, num(r.Lo), num(r.Hi))
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("failed to write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

type jsonRow struct {
	Group string  `json:"group"`
	T     float64 `json:"t"`
	Value float64 `json:"prediction_value"`
}

type jsonRowCI struct {
	jsonRow
	Lo float64 `json:"ci_low"`
	Hi float64 `json:"ci_high"`
}

// WriteJSON writes the table as an indented JSON array.
func (t *Table) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	if !t.HasCI {
		rows := make([]jsonRow, len(t.Rows))
		for i, r := range t.Rows {
			rows[i] = jsonRow{Group: r.Group, T: r.T, Value: r.Value}
		}
		return enc.Encode(rows)
	}
	rows := make([]jsonRowCI, len(t.Rows))
	for i, r := range t.Rows {
		rows[i] = jsonRowCI{
			jsonRow: jsonRow{Group: r.Group, T: r.T, Value: r.Value},
			Lo:      r.Lo,
			Hi:      r.Hi,
		}
	}
	return enc.Encode(rows)
}
