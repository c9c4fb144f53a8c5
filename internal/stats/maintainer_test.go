package stats_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/devpulse/devpulse/internal/stats"
	"github.com/stretchr/testify/require"
)

type stubScorer struct {
	scores map[string]int // keyed by date
	calls  []string       // "scope/date/keyword"
	err    error
}

func (s *stubScorer) DayScore(_ context.Context, scope, date, keyword string) (int, error) {
	s.calls = append(s.calls, scope+"/"+date+"/"+keyword)
	if s.err != nil {
		return 0, s.err
	}
	return s.scores[date], nil
}

type stubWriter struct {
	keyword    string
	mean       float64
	stdDev     float64
	windowDays int
	writes     int
	err        error
}

func (w *stubWriter) UpsertKeywordWindow(_ context.Context, keyword string, mean, stdDev float64, windowDays int, _ time.Time) error {
	w.keyword = keyword
	w.mean = mean
	w.stdDev = stdDev
	w.windowDays = windowDays
	w.writes++
	return w.err
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRecomputeCoversFullWindow(t *testing.T) {
	scorer := &stubScorer{scores: map[string]int{}}
	writer := &stubWriter{}
	m := stats.NewMaintainer(scorer, writer, discard())

	require.NoError(t, m.Recompute(context.Background(), "rust"))

	// Every day of the window is read for every source, including days with
	// no counts at all.
	require.Len(t, scorer.calls, stats.WindowDays*len(stats.Sources))
	require.Equal(t, 1, writer.writes)
	require.Equal(t, "rust", writer.keyword)
	require.Equal(t, stats.WindowDays, writer.windowDays)
	require.Equal(t, 0.0, writer.mean)
	require.Equal(t, 0.0, writer.stdDev)
}

func TestRecomputeSumsSourcesPerDay(t *testing.T) {
	// Every source reports 1 on every day, so each daily total is the source
	// count and the series is flat.
	scorer := &stubScorer{scores: map[string]int{}}
	writer := &stubWriter{}

	uniform := &uniformScorer{value: 1, inner: scorer}
	m := stats.NewMaintainer(uniform, writer, discard())

	require.NoError(t, m.Recompute(context.Background(), "go"))
	require.InDelta(t, float64(len(stats.Sources)), writer.mean, 1e-9)
	require.InDelta(t, 0.0, writer.stdDev, 1e-9)
}

type uniformScorer struct {
	value int
	inner *stubScorer
}

func (u *uniformScorer) DayScore(ctx context.Context, scope, date, keyword string) (int, error) {
	_, err := u.inner.DayScore(ctx, scope, date, keyword)
	return u.value, err
}

func TestRecomputeLowercasesKeyword(t *testing.T) {
	scorer := &stubScorer{scores: map[string]int{}}
	writer := &stubWriter{}
	m := stats.NewMaintainer(scorer, writer, discard())

	require.NoError(t, m.Recompute(context.Background(), "  RuSt  "))
	require.Equal(t, "rust", writer.keyword)
	for _, call := range scorer.calls {
		require.Contains(t, call, "/rust")
	}
}

func TestRecomputeSkipsEmptyKeyword(t *testing.T) {
	scorer := &stubScorer{scores: map[string]int{}}
	writer := &stubWriter{}
	m := stats.NewMaintainer(scorer, writer, discard())

	require.NoError(t, m.Recompute(context.Background(), "   "))
	require.Empty(t, scorer.calls)
	require.Zero(t, writer.writes)
}

func TestRecomputePropagatesReadError(t *testing.T) {
	scorer := &stubScorer{err: errors.New("redis down")}
	writer := &stubWriter{}
	m := stats.NewMaintainer(scorer, writer, discard())

	err := m.Recompute(context.Background(), "rust")
	require.Error(t, err)
	require.Zero(t, writer.writes)
}

func TestRecomputePropagatesWriteError(t *testing.T) {
	scorer := &stubScorer{scores: map[string]int{}}
	writer := &stubWriter{err: errors.New("es down")}
	m := stats.NewMaintainer(scorer, writer, discard())

	require.Error(t, m.Recompute(context.Background(), "rust"))
}
