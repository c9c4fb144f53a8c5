// Package ingest runs the scheduled fetch-dedup-publish cycle.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/devpulse/devpulse/internal/bus"
	"github.com/devpulse/devpulse/internal/crawl"
	"github.com/devpulse/devpulse/internal/dedupe"
	"github.com/devpulse/devpulse/internal/identity"
	"github.com/devpulse/devpulse/internal/keywords"
	"github.com/devpulse/devpulse/internal/models"
)

// CrawlLockName is the lease guarding concurrent orchestrator ticks across
// process instances.
const CrawlLockName = "crawlAll"

// Lease is a held crawl lock.
type Lease interface {
	Release(ctx context.Context) error
}

// Locker hands out the crawl lease. A nil lease with nil error means another
// holder has it.
type Locker interface {
	AcquireLock(ctx context.Context, name string, ttl time.Duration) (Lease, error)
}

// SeenMarker is the dedup primitive: first caller within the window wins.
type SeenMarker interface {
	MarkSeen(ctx context.Context, fingerprint string, ttl time.Duration) (bool, error)
}

// Config bounds a crawl cycle.
type Config struct {
	Interval      time.Duration
	InitialDelay  time.Duration
	LockTTL       time.Duration
	FetchCount    int
	FetchAttempts int
	FetchBackoff  time.Duration
	DedupTTL      time.Duration
}

// Orchestrator coordinates per-source fetches and publishes the survivors.
type Orchestrator struct {
	sources   []crawl.Source
	locker    Locker
	seen      SeenMarker
	local     *dedupe.Window
	extractor keywords.Extractor
	publisher bus.Publisher
	cfg       Config
	log       *slog.Logger
}

// New wires an orchestrator.
func New(sources []crawl.Source, locker Locker, seen SeenMarker, extractor keywords.Extractor, publisher bus.Publisher, cfg Config, log *slog.Logger) *Orchestrator {
	if cfg.FetchAttempts <= 0 {
		cfg.FetchAttempts = 3
	}
	if cfg.FetchBackoff <= 0 {
		cfg.FetchBackoff = time.Second
	}
	return &Orchestrator{
		sources:   sources,
		locker:    locker,
		seen:      seen,
		local:     dedupe.NewWindow(20_000, cfg.DedupTTL),
		extractor: extractor,
		publisher: publisher,
		cfg:       cfg,
		log:       log,
	}
}

// Run blocks until ctx is done, crawling on every tick after an initial
// delay.
func (o *Orchestrator) Run(ctx context.Context) {
	select {
	case <-ctx.Done():
		return
	case <-time.After(o.cfg.InitialDelay):
	}

	o.Tick(ctx)

	ticker := time.NewTicker(o.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.Tick(ctx)
		}
	}
}

// Tick runs one crawl cycle: take the lease or skip, then fan out one task
// per source and wait for all of them. A source failing only costs that
// source's posts.
func (o *Orchestrator) Tick(ctx context.Context) {
	lease, err := o.locker.AcquireLock(ctx, CrawlLockName, o.cfg.LockTTL)
	if err != nil {
		o.log.Error("acquire crawl lock", slog.Any("err", err))
		return
	}
	if lease == nil {
		o.log.Info("skip crawl: another instance holds the lock")
		return
	}
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := lease.Release(releaseCtx); err != nil {
			o.log.Warn("release crawl lock", slog.Any("err", err))
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(len(o.sources))
	for _, src := range o.sources {
		g.Go(func() error {
			if err := o.crawlSource(gctx, src); err != nil {
				o.log.Error("crawl failed", slog.String("source", src.Name()), slog.Any("err", err))
			}
			// Failures are contained per source.
			return nil
		})
	}
	_ = g.Wait()
}

func (o *Orchestrator) crawlSource(ctx context.Context, src crawl.Source) error {
	posts, err := o.fetchWithRetry(ctx, src)
	if err != nil {
		return err
	}

	published := o.Ingest(ctx, posts)
	o.log.Info("crawl done",
		slog.String("source", src.Name()),
		slog.Int("fetched", len(posts)),
		slog.Int("published", published),
	)
	return nil
}

func (o *Orchestrator) fetchWithRetry(ctx context.Context, src crawl.Source) ([]models.Post, error) {
	var lastErr error
	for attempt := 1; attempt <= o.cfg.FetchAttempts; attempt++ {
		posts, err := src.FetchRecent(ctx, o.cfg.FetchCount)
		if err == nil {
			return posts, nil
		}
		lastErr = err

		if attempt < o.cfg.FetchAttempts {
			// Linear backoff: 1x, 2x, 3x ...
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(o.cfg.FetchBackoff * time.Duration(attempt)):
			}
		}
	}
	return nil, fmt.Errorf("fetch %s after %d attempts: %w", src.Name(), o.cfg.FetchAttempts, lastErr)
}

// Ingest pushes posts through dedup, enrichment and publish, returning how
// many made it onto the bus. The backfill job reuses this path unchanged.
func (o *Orchestrator) Ingest(ctx context.Context, posts []models.Post) int {
	published := 0
	for _, post := range posts {
		if post.Title == "" {
			continue
		}

		fp := identity.Fingerprint(post.Source, post.URL, post.Title)
		if o.local.Seen(fp) {
			continue
		}

		won, err := o.seen.MarkSeen(ctx, fp, o.cfg.DedupTTL)
		if err != nil {
			// Unknown dedup state: skip rather than risk a duplicate publish.
			o.log.Warn("dedup check failed", slog.String("source", post.Source), slog.Any("err", err))
			continue
		}
		if !won {
			continue
		}
		o.local.Mark(fp)

		kws, err := o.extractor.Extract(ctx, post.Title)
		if err != nil {
			o.log.Warn("keyword extraction failed",
				slog.String("title", post.Title),
				slog.Any("err", err),
			)
		}
		post.Keywords = kws
		post.DateKST = models.Today()

		payload, err := json.Marshal(post)
		if err != nil {
			o.log.Error("marshal post", slog.Any("err", err))
			continue
		}

		key := identity.Key(post.URL, post.Title)
		if err := o.publisher.Publish(ctx, key, payload); err != nil {
			o.log.Error("publish failed",
				slog.String("source", post.Source),
				slog.String("url", post.URL),
				slog.Any("err", err),
			)
			continue
		}
		published++
	}
	return published
}
