package config_test

import (
	"testing"
	"time"

	"github.com/devpulse/devpulse/internal/config"
	"github.com/stretchr/testify/require"
)

func TestLoadCrawlerDefaults(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "")
	t.Setenv("KAFKA_TOPIC", "")
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("CRAWL_INTERVAL", "")
	t.Setenv("CRAWL_LOCK_TTL", "")

	cfg, err := config.LoadCrawler()
	require.NoError(t, err)

	require.Len(t, cfg.Brokers, 1)
	require.Equal(t, "kafka:9092", cfg.Brokers[0])
	require.Equal(t, "raw-posts", cfg.Topic)
	require.Equal(t, "redis:6379", cfg.RedisAddr)
	require.Equal(t, 5*time.Minute, cfg.Interval)
	require.Equal(t, 4*time.Minute, cfg.LockTTL)
	require.Equal(t, 10, cfg.FetchCount)
	require.Equal(t, 3, cfg.FetchAttempts)
	// Dedup retention must cover the backfill horizon, not just redelivery.
	require.Equal(t, 4464*time.Hour, cfg.DedupTTL)
}

func TestLoadCrawlerOverrides(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "broker-a:29092, broker-b:29093")
	t.Setenv("KAFKA_TOPIC", "custom-posts")
	t.Setenv("CRAWL_INTERVAL", "10m")
	t.Setenv("CRAWL_LOCK_TTL", "8m")
	t.Setenv("CRAWL_FETCH_COUNT", "25")
	t.Setenv("CRAWL_DEDUP_TTL", "24h")

	cfg, err := config.LoadCrawler()
	require.NoError(t, err)

	require.Equal(t, []string{"broker-a:29092", "broker-b:29093"}, cfg.Brokers)
	require.Equal(t, "custom-posts", cfg.Topic)
	require.Equal(t, 10*time.Minute, cfg.Interval)
	require.Equal(t, 8*time.Minute, cfg.LockTTL)
	require.Equal(t, 25, cfg.FetchCount)
	require.Equal(t, 24*time.Hour, cfg.DedupTTL)
}

func TestLoadCrawlerRejectsLockTTLAboveInterval(t *testing.T) {
	t.Setenv("CRAWL_INTERVAL", "5m")
	t.Setenv("CRAWL_LOCK_TTL", "5m")

	_, err := config.LoadCrawler()
	require.Error(t, err)
}

func TestLoadWorkerDefaults(t *testing.T) {
	t.Setenv("KAFKA_GROUP_DB", "")
	t.Setenv("KAFKA_GROUP_ES", "")
	t.Setenv("KAFKA_GROUP_COUNTING", "")
	t.Setenv("ES_POSTS_INDEX", "")
	t.Setenv("ES_STATS_INDEX", "")

	cfg, err := config.LoadWorker()
	require.NoError(t, err)

	require.Equal(t, "raw-posts-db", cfg.GroupDB)
	require.Equal(t, "raw-posts-es", cfg.GroupES)
	require.Equal(t, "raw-posts-redis", cfg.GroupCounting)
	require.Equal(t, "raw-posts", cfg.PostsIndex)
	require.Equal(t, "keyword-stats", cfg.StatsIndex)
}

func TestLoadWorkerRejectsSharedGroups(t *testing.T) {
	t.Setenv("KAFKA_GROUP_DB", "same-group")
	t.Setenv("KAFKA_GROUP_ES", "same-group")

	_, err := config.LoadWorker()
	require.Error(t, err)
}

func TestLoadAPI(t *testing.T) {
	t.Setenv("API_BIND_ADDR", ":9090")
	t.Setenv("API_DEFAULT_LIMIT", "15")
	t.Setenv("API_MAX_LIMIT", "50")

	cfg, err := config.LoadAPI()
	require.NoError(t, err)

	require.Equal(t, ":9090", cfg.BindAddr)
	require.Equal(t, 15, cfg.DefaultLimit)
	require.Equal(t, 50, cfg.MaxLimit)
}

func TestLoadAPIRejectsDefaultAboveMax(t *testing.T) {
	t.Setenv("API_DEFAULT_LIMIT", "200")
	t.Setenv("API_MAX_LIMIT", "100")

	_, err := config.LoadAPI()
	require.Error(t, err)
}

func TestLoadRetentionDefaults(t *testing.T) {
	t.Setenv("RETENTION_INTERVAL", "")
	t.Setenv("RETENTION_MAX_AGE", "")
	t.Setenv("RETENTION_BATCH_SIZE", "")

	cfg, err := config.LoadRetention()
	require.NoError(t, err)

	require.Equal(t, 24*time.Hour, cfg.Interval)
	require.Equal(t, 4320*time.Hour, cfg.MaxAge)
	require.Equal(t, 500, cfg.BatchSize)
}

func TestLoadBackfillDefaults(t *testing.T) {
	t.Setenv("BACKFILL_MONTHS", "")
	t.Setenv("CRAWL_DEDUP_TTL", "")

	cfg, err := config.LoadBackfill()
	require.NoError(t, err)
	require.Equal(t, 6, cfg.Months)
	require.GreaterOrEqual(t, cfg.DedupTTL, time.Duration(cfg.Months)*31*24*time.Hour)
}

func TestLoadBackfillClampsDedupTTLToHorizon(t *testing.T) {
	t.Setenv("BACKFILL_MONTHS", "12")
	t.Setenv("CRAWL_DEDUP_TTL", "48h")

	cfg, err := config.LoadBackfill()
	require.NoError(t, err)
	require.Equal(t, 12*31*24*time.Hour, cfg.DedupTTL)
}
