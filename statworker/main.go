package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/devpulse/devpulse/internal/config"
	"github.com/devpulse/devpulse/internal/elasticsearch"
	"github.com/devpulse/devpulse/internal/logger"
	"github.com/devpulse/devpulse/internal/redisstore"
	"github.com/devpulse/devpulse/internal/stats"
)

func main() {
	log := logger.New("statworker")
	cfg, err := config.LoadStatWorker()
	if err != nil {
		log.Error("load config", slog.Any("err", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	esClient, err := elasticsearch.New(cfg.ElasticsearchAddr, cfg.PostsIndex, cfg.StatsIndex, log)
	if err != nil {
		log.Error("init elasticsearch", slog.Any("err", err))
		os.Exit(1)
	}

	store := redisstore.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, log)
	defer store.Close()

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := store.Ping(pingCtx); err != nil {
		log.Error("connect redis", slog.Any("err", err))
		os.Exit(1)
	}

	maintainer := stats.NewMaintainer(store, esClient, log)
	expired := store.ExpiredStatKeywords(ctx)

	log.Info("statworker started, waiting for stat cache expiries")

	for keyword := range expired {
		recomputeCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		if err := maintainer.Recompute(recomputeCtx, keyword); err != nil {
			// Best effort: the stale stat stays in place until the next
			// expiry trigger.
			log.Error("recompute failed", slog.String("keyword", keyword), slog.Any("err", err))
		}
		cancel()
	}

	log.Info("shutdown signal received")
}
