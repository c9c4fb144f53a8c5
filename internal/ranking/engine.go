package ranking

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/devpulse/devpulse/internal/models"
	"github.com/devpulse/devpulse/internal/redisstore"
)

// candidateFloor is the minimum number of today's keywords considered before
// truncation, so small limits still rank against a reasonable field.
const candidateFloor = 20

// DefaultCacheTTL is how long resolved stats stay cached. The expiry doubles
// as the recompute trigger.
const DefaultCacheTTL = 6 * time.Hour

// CountReader is the slice of the coordination store the read path uses.
type CountReader interface {
	TopKeywords(ctx context.Context, scope, date string, n int) ([]redisstore.KeywordCount, error)
	KeywordScores(ctx context.Context, scope, date string, kws []string) (map[string]int, error)
}

// StatCache is the short-TTL cache side of stat resolution.
type StatCache interface {
	CachedStat(ctx context.Context, scope, keyword string) (*models.KeywordStat, error)
	CacheStat(ctx context.Context, scope, keyword string, stat models.KeywordStat, ttl time.Duration) error
}

// StatReader is the durable side of stat resolution.
type StatReader interface {
	GetKeywordStats(ctx context.Context, kws []string) (map[string]models.KeywordStat, error)
}

// Engine answers "what is trending right now" for a source scope.
type Engine struct {
	counts   CountReader
	cache    StatCache
	durable  StatReader
	cacheTTL time.Duration
	log      *slog.Logger

	now func() time.Time
}

// New wires a ranking engine.
func New(counts CountReader, cache StatCache, durable StatReader, log *slog.Logger) *Engine {
	return &Engine{
		counts:   counts,
		cache:    cache,
		durable:  durable,
		cacheTTL: DefaultCacheTTL,
		log:      log,
		now:      time.Now,
	}
}

// Rank returns at most limit entries ordered by descending score. Ties are
// allowed; order among equal scores is unspecified.
func (e *Engine) Rank(ctx context.Context, scope string, limit int) ([]models.RankingEntry, error) {
	if limit <= 0 {
		limit = 10
	}

	now := e.now()
	today := models.BucketDate(now)
	yesterday := models.BucketDate(now.AddDate(0, 0, -1))

	n := limit
	if n < candidateFloor {
		n = candidateFloor
	}

	top, err := e.counts.TopKeywords(ctx, scope, today, n)
	if err != nil {
		return nil, err
	}
	if len(top) == 0 {
		return []models.RankingEntry{}, nil
	}

	kws := make([]string, len(top))
	for i, kc := range top {
		kws[i] = kc.Keyword
	}

	// Only yesterday's scores for exactly these keywords, never a second
	// full-day scan.
	yesterdayCounts, err := e.counts.KeywordScores(ctx, scope, yesterday, kws)
	if err != nil {
		return nil, err
	}

	stats := e.resolveStats(ctx, scope, kws)

	entries := make([]models.RankingEntry, 0, len(top))
	for _, kc := range top {
		stat := stats[kc.Keyword]
		score := Score(kc.Count, yesterdayCounts[kc.Keyword], stat.Mean, stat.StdDev)
		entries = append(entries, models.RankingEntry{
			Keyword:        kc.Keyword,
			TodayCount:     kc.Count,
			YesterdayCount: yesterdayCounts[kc.Keyword],
			Score:          score,
			Badge:          BadgeFor(yesterdayCounts[kc.Keyword], score),
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Score > entries[j].Score
	})
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// resolveStats is cache-aside: check the short-TTL cache per keyword, bulk
// multi-get the durable documents for all misses in one round trip, then
// repopulate the cache. Keywords with no record anywhere default to
// {mean 0, std 1, count 1} so novel keywords are neither divided by zero nor
// over-weighted.
func (e *Engine) resolveStats(ctx context.Context, scope string, kws []string) map[string]models.KeywordStat {
	out := make(map[string]models.KeywordStat, len(kws))
	var missed []string

	for _, kw := range kws {
		stat, err := e.cache.CachedStat(ctx, scope, kw)
		if err != nil {
			e.log.Warn("stat cache read failed", slog.String("keyword", kw), slog.Any("err", err))
		}
		if stat != nil {
			out[kw] = *stat
			continue
		}
		missed = append(missed, kw)
	}

	if len(missed) > 0 {
		durable, err := e.durable.GetKeywordStats(ctx, missed)
		if err != nil {
			e.log.Warn("durable stat fetch failed", slog.Any("err", err))
			durable = map[string]models.KeywordStat{}
		}
		for _, kw := range missed {
			stat, ok := durable[kw]
			if !ok {
				stat = models.KeywordStat{Mean: 0, StdDev: 1, Count: 1}
			}
			out[kw] = stat
			if err := e.cache.CacheStat(ctx, scope, kw, stat, e.cacheTTL); err != nil {
				e.log.Warn("stat cache write failed", slog.String("keyword", kw), slog.Any("err", err))
			}
		}
	}

	return out
}
