package ranking_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/devpulse/devpulse/internal/models"
	"github.com/devpulse/devpulse/internal/ranking"
	"github.com/devpulse/devpulse/internal/redisstore"
	"github.com/stretchr/testify/require"
)

type stubCounts struct {
	top        []redisstore.KeywordCount
	yesterday  map[string]int
	requestedN int
	err        error
}

func (s *stubCounts) TopKeywords(_ context.Context, _, _ string, n int) ([]redisstore.KeywordCount, error) {
	s.requestedN = n
	if s.err != nil {
		return nil, s.err
	}
	return s.top, nil
}

func (s *stubCounts) KeywordScores(_ context.Context, _, _ string, kws []string) (map[string]int, error) {
	out := make(map[string]int, len(kws))
	for _, kw := range kws {
		out[kw] = s.yesterday[kw]
	}
	return out, nil
}

type stubCache struct {
	stats  map[string]models.KeywordStat
	writes map[string]models.KeywordStat
}

func (s *stubCache) CachedStat(_ context.Context, _, keyword string) (*models.KeywordStat, error) {
	if stat, ok := s.stats[keyword]; ok {
		return &stat, nil
	}
	return nil, nil
}

func (s *stubCache) CacheStat(_ context.Context, _, keyword string, stat models.KeywordStat, _ time.Duration) error {
	if s.writes == nil {
		s.writes = map[string]models.KeywordStat{}
	}
	s.writes[keyword] = stat
	return nil
}

type stubDurable struct {
	stats   map[string]models.KeywordStat
	fetches int
	asked   []string
}

func (s *stubDurable) GetKeywordStats(_ context.Context, kws []string) (map[string]models.KeywordStat, error) {
	s.fetches++
	s.asked = append(s.asked, kws...)
	out := make(map[string]models.KeywordStat)
	for _, kw := range kws {
		if stat, ok := s.stats[kw]; ok {
			out[kw] = stat
		}
	}
	return out, nil
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRankOrdersByScoreAndTruncates(t *testing.T) {
	counts := &stubCounts{
		top: []redisstore.KeywordCount{
			{Keyword: "java", Count: 5},
			{Keyword: "rust", Count: 50},
			{Keyword: "go", Count: 10},
		},
		yesterday: map[string]int{"java": 5, "rust": 0, "go": 9},
	}
	cache := &stubCache{}
	durable := &stubDurable{}

	e := ranking.New(counts, cache, durable, discard())
	entries, err := e.Rank(context.Background(), "all", 2)
	require.NoError(t, err)

	require.Len(t, entries, 2)
	require.Equal(t, "rust", entries[0].Keyword)
	require.Equal(t, "go", entries[1].Keyword)
	require.Greater(t, entries[0].Score, entries[1].Score)
	require.Equal(t, models.BadgeNew, entries[0].Badge)
	require.Equal(t, 50, entries[0].TodayCount)
	require.Equal(t, 0, entries[0].YesterdayCount)
}

func TestRankConsidersCandidateFloor(t *testing.T) {
	counts := &stubCounts{
		top: []redisstore.KeywordCount{{Keyword: "rust", Count: 3}},
	}
	e := ranking.New(counts, &stubCache{}, &stubDurable{}, discard())

	_, err := e.Rank(context.Background(), "all", 5)
	require.NoError(t, err)
	require.Equal(t, 20, counts.requestedN)
}

func TestRankEmptyDay(t *testing.T) {
	e := ranking.New(&stubCounts{}, &stubCache{}, &stubDurable{}, discard())

	entries, err := e.Rank(context.Background(), "all", 10)
	require.NoError(t, err)
	require.NotNil(t, entries)
	require.Empty(t, entries)
}

func TestRankStatsAreCacheAside(t *testing.T) {
	counts := &stubCounts{
		top: []redisstore.KeywordCount{
			{Keyword: "cached", Count: 4},
			{Keyword: "durable", Count: 4},
			{Keyword: "unknown", Count: 4},
		},
	}
	cache := &stubCache{
		stats: map[string]models.KeywordStat{
			"cached": {Mean: 2, StdDev: 1, Count: 10},
		},
	}
	durable := &stubDurable{
		stats: map[string]models.KeywordStat{
			"durable": {Mean: 3, StdDev: 2, Count: 20},
		},
	}

	e := ranking.New(counts, cache, durable, discard())
	_, err := e.Rank(context.Background(), "all", 10)
	require.NoError(t, err)

	// One bulk fetch for the misses only; the cached keyword never hits the
	// durable store.
	require.Equal(t, 1, durable.fetches)
	require.NotContains(t, durable.asked, "cached")
	require.Contains(t, durable.asked, "durable")
	require.Contains(t, durable.asked, "unknown")

	// Misses are written back, including the synthesized default for the
	// keyword with no record anywhere.
	require.Equal(t, models.KeywordStat{Mean: 3, StdDev: 2, Count: 20}, cache.writes["durable"])
	require.Equal(t, models.KeywordStat{Mean: 0, StdDev: 1, Count: 1}, cache.writes["unknown"])
	require.NotContains(t, cache.writes, "cached")
}

func TestRankPropagatesCountError(t *testing.T) {
	counts := &stubCounts{err: errors.New("redis down")}
	e := ranking.New(counts, &stubCache{}, &stubDurable{}, discard())

	_, err := e.Rank(context.Background(), "all", 10)
	require.Error(t, err)
}
