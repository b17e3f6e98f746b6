package cli

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cohortfit/cohortfit/cohort"
)

func TestBuildOptionsParsesFlags(t *testing.T) {
	f := cohortFlags{
		now:       "2026-03-01T12:00:00Z",
		timescale: "days",
		minSize:   5,
		maxGroups: 2,
	}

	opts, err := f.buildOptions()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), opts.Now)
	assert.Equal(t, cohort.Days, opts.Scale)
	assert.Equal(t, 5, opts.MinGroupSize)
	assert.Equal(t, 2, opts.MaxGroups)
}

func TestBuildOptionsRejectsBadInput(t *testing.T) {
	_, err := (&cohortFlags{now: "yesterday"}).buildOptions()
	assert.Error(t, err)

	_, err = (&cohortFlags{timescale: "fortnights"}).buildOptions()
	assert.Error(t, err)
}

func TestGroupArg(t *testing.T) {
	assert.Equal(t, "", groupArg(nil))
	assert.Equal(t, "", groupArg([]string{"all"}))
	assert.Equal(t, "paid", groupArg([]string{"paid"}))
}

func TestLoadFitConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fit.yaml")
	require.NoError(t, os.WriteFile(path, []byte("family: gamma\nposterior: true\nwalkers: 32\nseed: 7\n"), 0o644))

	cfg, err := loadFitConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "gamma", cfg.Family)
	assert.True(t, cfg.Posterior)
	assert.Equal(t, 32, cfg.Walkers)
	assert.Equal(t, uint64(7), cfg.Seed)

	_, err = loadFitConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestFormatPercent(t *testing.T) {
	assert.Equal(t, "0%", formatPercent(0))
	assert.Equal(t, "37.50%", formatPercent(0.375))
}
