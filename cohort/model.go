package cohort

import (
	"errors"
	"fmt"

	"github.com/cohortfit/cohortfit/dist"
	"github.com/cohortfit/cohortfit/km"
	"github.com/cohortfit/cohortfit/regress"
)

// ErrUnknownGroup is returned when a prediction names a group the
// model was not fit on.
var ErrUnknownGroup = errors.New("unknown group")

// GroupModel is one parametric regression fit over all groups at
// once, with group membership one-hot encoded. Groups share shape
// parameters and the prior, so small groups borrow strength from
// large ones.
type GroupModel struct {
	model *regress.Model
	names []string
	index map[string]int
	scale Timescale
	maxT  float64
}

// FitGroups fits a single regression of the given family over the
// one-hot design implied by the arrays.
func FitGroups(family dist.Family, a Arrays, opts regress.Options) (*GroupModel, error) {
	model, err := regress.Fit(family, a.Observations(), opts)
	if err != nil {
		return nil, err
	}
	g := &GroupModel{
		model: model,
		names: append([]string(nil), a.Groups...),
		index: make(map[string]int, len(a.Groups)),
		scale: a.Scale,
	}
	for j, name := range g.names {
		g.index[name] = j
	}
	for _, t := range a.T {
		if t > g.maxT {
			g.maxT = t
		}
	}
	return g, nil
}

// Groups returns the group names the model knows, sorted.
func (g *GroupModel) Groups() []string {
	return append([]string(nil), g.names...)
}

// Scale returns the timescale the model's durations are expressed in.
func (g *GroupModel) Scale() Timescale { return g.scale }

// MaxDuration returns the longest duration seen during the fit, in
// Scale units.
func (g *GroupModel) MaxDuration() float64 { return g.maxT }

// Model exposes the underlying regression, e.g. for Coeffs.
func (g *GroupModel) Model() *regress.Model { return g.model }

func (g *GroupModel) row(group string) ([]float64, error) {
	j, ok := g.index[group]
	if !ok {
		return nil, fmt.Errorf("%q: %w", group, ErrUnknownGroup)
	}
	return OneHot(j, len(g.names)), nil
}

// Estimate returns the probability that a unit of the group converts
// within t.
func (g *GroupModel) Estimate(group string, t float64) (float64, error) {
	x, err := g.row(group)
	if err != nil {
		return 0, err
	}
	return g.model.Predict(x, t), nil
}

// Curve evaluates Estimate over many horizons.
func (g *GroupModel) Curve(group string, ts []float64) ([]float64, error) {
	x, err := g.row(group)
	if err != nil {
		return nil, err
	}
	return g.model.PredictCurve(x, ts), nil
}

// EstimateCI returns the posterior mean and credible bounds for the
// group at t. It requires a fit with Options.Posterior.
func (g *GroupModel) EstimateCI(group string, t, level float64) (est, lo, hi float64, err error) {
	x, err := g.row(group)
	if err != nil {
		return 0, 0, 0, err
	}
	iv, err := g.model.PredictCI(x, t, level)
	if err != nil {
		return 0, 0, 0, err
	}
	return iv.Estimate, iv.Lo, iv.Hi, nil
}

// CurveCI evaluates EstimateCI over many horizons.
func (g *GroupModel) CurveCI(group string, ts []float64, level float64) ([]regress.Interval, error) {
	x, err := g.row(group)
	if err != nil {
		return nil, err
	}
	return g.model.PredictCurveCI(x, ts, level)
}

// GroupKM holds one independent Kaplan-Meier curve per group. Groups
// share nothing; a group's curve is exactly its own empirical data.
type GroupKM struct {
	curves map[string]*km.Model
	names  []string
	scale  Timescale
	maxT   float64
}

// FitGroupsKM fits a product-limit curve for every group in the
// arrays.
func FitGroupsKM(a Arrays) (*GroupKM, error) {
	byGroup := make(map[string]struct {
		ts []float64
		bs []bool
	})
	for i, gi := range a.G {
		name := a.Groups[gi]
		e := byGroup[name]
		e.ts = append(e.ts, a.T[i])
		e.bs = append(e.bs, a.B[i])
		byGroup[name] = e
	}

	g := &GroupKM{
		curves: make(map[string]*km.Model, len(a.Groups)),
		scale:  a.Scale,
	}
	for _, name := range a.Groups {
		e, ok := byGroup[name]
		if !ok {
			continue
		}
		curve, err := km.Fit(e.ts, e.bs)
		if err != nil {
			return nil, fmt.Errorf("group %q: %w", name, err)
		}
		g.curves[name] = curve
		g.names = append(g.names, name)
		if max := curve.MaxDuration(); max > g.maxT {
			g.maxT = max
		}
	}
	if len(g.names) == 0 {
		return nil, &regress.InvalidObservationError{Row: -1, Reason: "no units in any group"}
	}
	return g, nil
}

// Groups returns the group names with fitted curves, sorted.
func (g *GroupKM) Groups() []string {
	return append([]string(nil), g.names...)
}

// Scale returns the timescale the curves' durations are expressed in.
func (g *GroupKM) Scale() Timescale { return g.scale }

// MaxDuration returns the longest duration across all curves, in
// Scale units.
func (g *GroupKM) MaxDuration() float64 { return g.maxT }

func (g *GroupKM) curve(group string) (*km.Model, error) {
	c, ok := g.curves[group]
	if !ok {
		return nil, fmt.Errorf("%q: %w", group, ErrUnknownGroup)
	}
	return c, nil
}

// Estimate returns the fraction of the group converted by t.
func (g *GroupKM) Estimate(group string, t float64) (float64, error) {
	c, err := g.curve(group)
	if err != nil {
		return 0, err
	}
	return c.Estimate(t), nil
}

// Curve evaluates Estimate over many horizons.
func (g *GroupKM) Curve(group string, ts []float64) ([]float64, error) {
	c, err := g.curve(group)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(ts))
	for i, t := range ts {
		out[i] = c.Estimate(t)
	}
	return out, nil
}

// EstimateCI returns the estimate with its Greenwood confidence
// bounds.
func (g *GroupKM) EstimateCI(group string, t, level float64) (est, lo, hi float64, err error) {
	c, err := g.curve(group)
	if err != nil {
		return 0, 0, 0, err
	}
	return c.EstimateCI(t, level)
}
