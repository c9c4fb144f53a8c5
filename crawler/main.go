package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/devpulse/devpulse/internal/bus"
	"github.com/devpulse/devpulse/internal/config"
	"github.com/devpulse/devpulse/internal/crawl"
	"github.com/devpulse/devpulse/internal/ingest"
	"github.com/devpulse/devpulse/internal/keywords"
	"github.com/devpulse/devpulse/internal/logger"
	"github.com/devpulse/devpulse/internal/redisstore"
)

func main() {
	log := logger.New("crawler")
	cfg, err := config.LoadCrawler()
	if err != nil {
		log.Error("load config", slog.Any("err", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	store := redisstore.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, log)
	defer store.Close()

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := store.Ping(pingCtx); err != nil {
		log.Error("connect redis", slog.Any("err", err))
		os.Exit(1)
	}

	writer := bus.NewWriter(cfg.Brokers, cfg.Topic)
	defer writer.Close()

	sources := buildSources(cfg, store, log)
	extractor := keywords.NewHeuristic(8, 2)

	orch := ingest.New(sources, storeLocker{store}, store, extractor, writer, ingest.Config{
		Interval:      cfg.Interval,
		InitialDelay:  cfg.InitialDelay,
		LockTTL:       cfg.LockTTL,
		FetchCount:    cfg.FetchCount,
		FetchAttempts: cfg.FetchAttempts,
		FetchBackoff:  cfg.FetchBackoff,
		DedupTTL:      cfg.DedupTTL,
	}, log)

	log.Info("crawler started",
		slog.Duration("interval", cfg.Interval),
		slog.Int("sources", len(sources)),
		slog.String("topic", cfg.Topic),
	)

	orch.Run(ctx)
	log.Info("shutdown signal received")
}

func buildSources(cfg *config.Crawler, store *redisstore.Store, log *slog.Logger) []crawl.Source {
	sources := []crawl.Source{
		crawl.NewHackerNews(log),
		crawl.NewDevto(log),
		crawl.NewGitHubTrending(log),
	}

	if cfg.RedditClientID != "" && cfg.RedditSecret != "" {
		tokens := &crawl.RefreshTokenSource{
			Creds:        store,
			ClientID:     cfg.RedditClientID,
			ClientSecret: cfg.RedditSecret,
			UserAgent:    "DevPulseOAuthClient/1.0 by u/" + cfg.RedditUsername,
		}
		sources = append(sources, crawl.NewReddit(tokens, log))
	} else {
		log.Warn("reddit credentials missing, source disabled")
	}

	return sources
}

// storeLocker narrows the redis store to the orchestrator's lock interface.
type storeLocker struct {
	store *redisstore.Store
}

func (s storeLocker) AcquireLock(ctx context.Context, name string, ttl time.Duration) (ingest.Lease, error) {
	lease, err := s.store.AcquireLock(ctx, name, ttl)
	if err != nil || lease == nil {
		return nil, err
	}
	return lease, nil
}
