package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/devpulse/devpulse/internal/bus"
	"github.com/devpulse/devpulse/internal/config"
	"github.com/devpulse/devpulse/internal/consumer"
	"github.com/devpulse/devpulse/internal/elasticsearch"
	"github.com/devpulse/devpulse/internal/logger"
	"github.com/devpulse/devpulse/internal/postgres"
	"github.com/devpulse/devpulse/internal/redisstore"
)

func main() {
	log := logger.New("worker")
	cfg, err := config.LoadWorker()
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

	initCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	db, err := postgres.New(initCtx, cfg.PostgresDSN, log)
	cancel()
	if err != nil {
		log.Error("init postgres", slog.Any("err", err))
		os.Exit(1)
	}
	defer db.Close()

	// Three independent consumer groups over the same topic; each sees every
	// message regardless of the others' progress.
	consumers := []struct {
		group   string
		handler consumer.Handler
	}{
		{cfg.GroupDB, consumer.NewPersistence(db, log)},
		{cfg.GroupES, consumer.NewIndexing(esClient, log)},
		{cfg.GroupCounting, consumer.NewCounting(store, log)},
	}

	log.Info("worker started",
		slog.String("topic", cfg.Topic),
		slog.Int("consumers", len(consumers)),
	)

	var wg sync.WaitGroup
	for _, c := range consumers {
		reader := bus.NewReader(cfg.Brokers, cfg.Topic, c.group)
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer reader.Close()
			consumer.Run(ctx, reader, c.handler, log)
		}()
	}

	wg.Wait()
	log.Info("all consumers stopped")
}
