package dist

import (
	"fmt"
	"strings"
)

// Family identifies one of the supported time-to-event distribution
// families. All four are parameterizations of the generalized gamma:
// the smaller families pin one or both shape parameters.
type Family int

const (
	Exponential Family = iota // k = 1, p = 1
	Weibull                   // k = 1
	Gamma                     // p = 1
	GeneralizedGamma          // k and p both free
)

// Families lists the supported families in display order.
func Families() []Family {
	return []Family{Exponential, Weibull, Gamma, GeneralizedGamma}
}

func (f Family) String() string {
	switch f {
	case Exponential:
		return "exponential"
	case Weibull:
		return "weibull"
	case Gamma:
		return "gamma"
	case GeneralizedGamma:
		return "generalized-gamma"
	}
	return fmt.Sprintf("Family(%d)", int(f))
}

// ParseFamily converts a family name as accepted on the command line.
func ParseFamily(s string) (Family, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "exponential":
		return Exponential, nil
	case "weibull":
		return Weibull, nil
	case "gamma":
		return Gamma, nil
	case "generalized-gamma", "generalized_gamma", "gengamma":
		return GeneralizedGamma, nil
	}
	return 0, fmt.Errorf("unknown distribution family %q", s)
}

// FixedK returns the k value the family pins, if any.
func (f Family) FixedK() (float64, bool) {
	switch f {
	case Exponential, Weibull:
		return 1, true
	}
	return 0, false
}

// FixedP returns the p value the family pins, if any.
func (f Family) FixedP() (float64, bool) {
	switch f {
	case Exponential, Gamma:
		return 1, true
	}
	return 0, false
}

// FreeShapes returns how many shape parameters the family leaves free.
func (f Family) FreeShapes() int {
	n := 2
	if _, ok := f.FixedK(); ok {
		n--
	}
	if _, ok := f.FixedP(); ok {
		n--
	}
	return n
}
