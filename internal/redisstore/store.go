// Package redisstore wraps the Redis coordination store. Every mutation goes
// through an atomic primitive (SET NX, ZINCRBY, Lua compare-and-delete); the
// rest of the system never does read-modify-write against shared keys.
package redisstore

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/devpulse/devpulse/internal/models"
)

const (
	lockPrefix      = "lock:"
	seenPrefix      = "seen:"
	countPrefix     = "keyword_count:"
	statCachePrefix = "keyword_stats:"
)

// Store is the Redis-backed coordination store.
type Store struct {
	rdb *redis.Client
	log *slog.Logger
}

// New connects a store to the given Redis address.
func New(addr, password string, db int, log *slog.Logger) *Store {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &Store{rdb: rdb, log: log}
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.rdb.Close()
}

// Lease is a held distributed lock. Token is unique per acquisition; Fence is
// a monotonically increasing version that survives across holders.
type Lease struct {
	key   string
	store *Store

	Token string
	Fence int64
}

// Release is compare-and-delete: the lock is removed only when it still
// carries this lease's token, so a holder that outlived its TTL cannot free
// the next holder's lock.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

func (l *Lease) Release(ctx context.Context) error {
	res, err := releaseScript.Run(ctx, l.store.rdb, []string{l.key}, l.Token).Int()
	if err != nil {
		return fmt.Errorf("release lock %s: %w", l.key, err)
	}
	if res == 0 {
		l.store.log.Warn("lock already expired at release", slog.String("key", l.key))
	}
	return nil
}

// AcquireLock takes the named lock for ttl. Returns (nil, nil) when another
// holder has it; that is control flow, not an error.
func (s *Store) AcquireLock(ctx context.Context, name string, ttl time.Duration) (*Lease, error) {
	key := lockPrefix + name
	token := uuid.NewString()

	ok, err := s.rdb.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, nil
	}

	fence, err := s.rdb.Incr(ctx, key+":fence").Result()
	if err != nil {
		// The lock itself is held; a missing fence only loses the version.
		s.log.Warn("fence increment failed", slog.String("key", key), slog.Any("err", err))
	}

	return &Lease{key: key, store: s, Token: token, Fence: fence}, nil
}

// MarkSeen records a dedup fingerprint. Returns true when this caller is the
// first to see it within the retention window.
func (s *Store) MarkSeen(ctx context.Context, fingerprint string, ttl time.Duration) (bool, error) {
	ok, err := s.rdb.SetNX(ctx, seenPrefix+fingerprint, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("mark seen: %w", err)
	}
	return ok, nil
}

func countKey(scope, date string) string {
	return countPrefix + scope + ":" + date
}

// IncrKeywordCounts bumps the per-source and all-sources sorted sets for one
// post's keywords, then anchors both sets' expiry to the bucket date.
// Pipelined; each ZINCRBY is atomic on the server.
func (s *Store) IncrKeywordCounts(ctx context.Context, source, date string, kws []string, expireAt time.Time, fallbackTTL time.Duration) error {
	srcKey := countKey(source, date)
	allKey := countKey("all", date)

	pipe := s.rdb.Pipeline()
	for _, kw := range kws {
		pipe.ZIncrBy(ctx, srcKey, 1, kw)
		pipe.ZIncrBy(ctx, allKey, 1, kw)
	}
	if expireAt.IsZero() {
		pipe.Expire(ctx, srcKey, fallbackTTL)
		pipe.Expire(ctx, allKey, fallbackTTL)
	} else {
		pipe.ExpireAt(ctx, srcKey, expireAt)
		pipe.ExpireAt(ctx, allKey, expireAt)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("incr keyword counts %s: %w", srcKey, err)
	}
	return nil
}

// KeywordCount pairs a keyword with its count for one day.
type KeywordCount struct {
	Keyword string
	Count   int
}

// TopKeywords returns the n highest-scored keywords for scope and date,
// descending.
func (s *Store) TopKeywords(ctx context.Context, scope, date string, n int) ([]KeywordCount, error) {
	tuples, err := s.rdb.ZRevRangeWithScores(ctx, countKey(scope, date), 0, int64(n)-1).Result()
	if err != nil {
		return nil, fmt.Errorf("top keywords %s: %w", countKey(scope, date), err)
	}
	out := make([]KeywordCount, 0, len(tuples))
	for _, t := range tuples {
		kw, ok := t.Member.(string)
		if !ok {
			continue
		}
		out = append(out, KeywordCount{Keyword: kw, Count: int(t.Score)})
	}
	return out, nil
}

// KeywordScores fetches the counts of exactly the given keywords for scope
// and date in one round trip. Absent keywords map to 0.
func (s *Store) KeywordScores(ctx context.Context, scope, date string, kws []string) (map[string]int, error) {
	if len(kws) == 0 {
		return map[string]int{}, nil
	}
	scores, err := s.rdb.ZMScore(ctx, countKey(scope, date), kws...).Result()
	if err != nil {
		return nil, fmt.Errorf("keyword scores %s: %w", countKey(scope, date), err)
	}
	out := make(map[string]int, len(kws))
	for i, kw := range kws {
		out[kw] = int(scores[i])
	}
	return out, nil
}

// DayScore returns one keyword's count for a single scope and date; absent
// counts are zero.
func (s *Store) DayScore(ctx context.Context, scope, date, keyword string) (int, error) {
	score, err := s.rdb.ZScore(ctx, countKey(scope, date), keyword).Result()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("day score %s: %w", countKey(scope, date), err)
	}
	return int(score), nil
}

func statCacheKey(scope, keyword string) string {
	return statCachePrefix + scope + ":" + keyword
}

// CachedStat reads the short-TTL stat cache. Returns (nil, nil) on miss.
func (s *Store) CachedStat(ctx context.Context, scope, keyword string) (*models.KeywordStat, error) {
	vals, err := s.rdb.HMGet(ctx, statCacheKey(scope, keyword), "mean", "std", "count").Result()
	if err != nil {
		return nil, fmt.Errorf("stat cache read: %w", err)
	}
	if vals[0] == nil || vals[1] == nil || vals[2] == nil {
		return nil, nil
	}

	mean, err1 := strconv.ParseFloat(fmt.Sprint(vals[0]), 64)
	std, err2 := strconv.ParseFloat(fmt.Sprint(vals[1]), 64)
	count, err3 := strconv.ParseInt(fmt.Sprint(vals[2]), 10, 64)
	if err1 != nil || err2 != nil || err3 != nil {
		return nil, nil
	}

	return &models.KeywordStat{Mean: mean, StdDev: std, Count: count}, nil
}

// CacheStat populates the stat cache. Last writer wins; the values are
// derived facts, so concurrent rankers overwriting each other is harmless.
// The TTL expiry of this key is what triggers the next recompute.
func (s *Store) CacheStat(ctx context.Context, scope, keyword string, stat models.KeywordStat, ttl time.Duration) error {
	key := statCacheKey(scope, keyword)
	pipe := s.rdb.Pipeline()
	pipe.HSet(ctx, key,
		"mean", strconv.FormatFloat(stat.Mean, 'f', -1, 64),
		"std", strconv.FormatFloat(stat.StdDev, 'f', -1, 64),
		"count", strconv.FormatInt(stat.Count, 10),
	)
	pipe.Expire(ctx, key, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("stat cache write: %w", err)
	}
	return nil
}

// ExpiredStatKeywords subscribes to keyspace expiry notifications and emits
// the keyword of every expired stat-cache key. Requires
// notify-keyspace-events to include Ex on the server. The channel closes when
// ctx is done.
func (s *Store) ExpiredStatKeywords(ctx context.Context) <-chan string {
	sub := s.rdb.PSubscribe(ctx, "__keyevent@*__:expired")
	out := make(chan string)

	go func() {
		defer close(out)
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				kw, ok := StatKeywordFromKey(msg.Payload)
				if !ok {
					continue
				}
				select {
				case out <- kw:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out
}

// GetValue reads a plain string key, e.g. a stored OAuth refresh token.
// Returns "" when absent.
func (s *Store) GetValue(ctx context.Context, key string) (string, error) {
	v, err := s.rdb.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get %s: %w", key, err)
	}
	return v, nil
}
