package stats_test

import (
	"testing"

	"github.com/devpulse/devpulse/internal/stats"
	"github.com/stretchr/testify/require"
)

func TestMean(t *testing.T) {
	require.InDelta(t, 10.0/7.0, stats.Mean([]int{5, 0, 0, 3, 0, 0, 2}), 1e-9)
	require.Equal(t, 0.0, stats.Mean(nil))
	require.Equal(t, 4.0, stats.Mean([]int{4}))
}

func TestStdDevPopIncludesZeroDays(t *testing.T) {
	values := []int{5, 0, 0, 3, 0, 0, 2}
	mean := stats.Mean(values)
	require.InDelta(t, 1.8406, stats.StdDevPop(values, mean), 1e-4)

	// Dropping the zero days would tell a very different story.
	nonZero := []int{5, 3, 2}
	require.Greater(t, stats.Mean(nonZero), mean)
}

func TestStdDevPopUniformSeries(t *testing.T) {
	values := []int{4, 4, 4, 4}
	require.Equal(t, 0.0, stats.StdDevPop(values, stats.Mean(values)))
	require.Equal(t, 0.0, stats.StdDevPop(nil, 0))
}
