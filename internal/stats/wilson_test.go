package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWilsonInterval(t *testing.T) {
	// Reference values for 30/100 at 95%.
	lo, hi := WilsonInterval(30, 100, 0.95)
	assert.InDelta(t, 0.2189, lo, 5e-4)
	assert.InDelta(t, 0.3958, hi, 5e-4)

	// No successes: the interval starts at zero but stays open above.
	lo, hi = WilsonInterval(0, 50, 0.95)
	assert.InDelta(t, 0.0, lo, 1e-9)
	assert.Greater(t, hi, 0.0)

	// All successes mirror that at one.
	lo, hi = WilsonInterval(50, 50, 0.95)
	assert.Less(t, lo, 1.0)
	assert.InDelta(t, 1.0, hi, 1e-9)
}

func TestWilsonIntervalNoData(t *testing.T) {
	lo, hi := WilsonInterval(0, 0, 0.95)
	assert.Zero(t, lo)
	assert.Zero(t, hi)
}

func TestWilsonIntervalNarrowsWithData(t *testing.T) {
	smallLo, smallHi := WilsonInterval(3, 10, 0.95)
	bigLo, bigHi := WilsonInterval(300, 1000, 0.95)
	assert.Less(t, bigHi-bigLo, smallHi-smallLo)
}
