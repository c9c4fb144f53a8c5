package main

import (
	"context"
	"errors"
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

// BackfillLockName guards against two backfill runs racing each other.
const BackfillLockName = "backfill"

func main() {
	log := logger.New("backfill")
	cfg, err := config.LoadBackfill()
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

	lease, err := store.AcquireLock(ctx, BackfillLockName, cfg.LockTTL)
	if err != nil {
		log.Error("acquire backfill lock", slog.Any("err", err))
		os.Exit(1)
	}
	if lease == nil {
		log.Info("skip backfill: another run holds the lock")
		return
	}
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := lease.Release(releaseCtx); err != nil {
			log.Warn("release backfill lock", slog.Any("err", err))
		}
	}()

	writer := bus.NewWriter(cfg.Brokers, cfg.Topic)
	defer writer.Close()

	sources := buildSources(cfg, store, log)
	extractor := keywords.NewHeuristic(8, 2)

	orch := ingest.New(sources, nil, store, extractor, writer, ingest.Config{
		FetchBackoff: cfg.FetchBackoff,
		DedupTTL:     cfg.DedupTTL,
	}, log)

	end := time.Now()
	start := end.AddDate(0, -cfg.Months, 0)
	log.Info("backfill starting",
		slog.Time("start", start),
		slog.Time("end", end),
		slog.Int("sources", len(sources)),
	)

	total := 0
	for _, source := range sources {
		if ctx.Err() != nil {
			break
		}

		posts, err := source.FetchRange(ctx, start, end)
		if errors.Is(err, crawl.ErrRangeUnsupported) {
			log.Info("source has no historical feed", slog.String("source", source.Name()))
			continue
		}
		if err != nil {
			log.Error("fetch range", slog.String("source", source.Name()), slog.Any("err", err))
			continue
		}

		published := orch.Ingest(ctx, posts)
		total += published
		log.Info("source backfilled",
			slog.String("source", source.Name()),
			slog.Int("fetched", len(posts)),
			slog.Int("published", published),
		)
	}

	log.Info("backfill finished", slog.Int("published", total))
}

func buildSources(cfg *config.Backfill, store *redisstore.Store, log *slog.Logger) []crawl.Source {
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
