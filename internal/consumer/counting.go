package consumer

import (
	"context"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/devpulse/devpulse/internal/keywords"
	"github.com/devpulse/devpulse/internal/models"
)

// CountRetainDays controls when a day bucket expires: at the start of
// bucketDate+3 in the reference timezone.
const CountRetainDays = 3

// FallbackCountTTL applies when a message carries an unparseable bucket date.
const FallbackCountTTL = 48 * time.Hour

// CountIncrementer is the slice of the coordination store this consumer
// writes through.
type CountIncrementer interface {
	IncrKeywordCounts(ctx context.Context, source, date string, kws []string, expireAt time.Time, fallbackTTL time.Duration) error
}

// Counting bumps the per-day keyword sorted sets.
type Counting struct {
	store CountIncrementer
	log   *slog.Logger
}

func NewCounting(store CountIncrementer, log *slog.Logger) *Counting {
	return &Counting{store: store, log: log}
}

func (c *Counting) Name() string { return "counting" }

func (c *Counting) Handle(ctx context.Context, msg kafka.Message) error {
	p, err := parsePost(msg.Value)
	if err != nil {
		return err
	}

	kws := normalizeAll(p.Keywords)
	if len(kws) == 0 {
		c.log.Debug("no keywords to count",
			slog.String("source", p.Source),
			slog.String("title", p.Title),
		)
		return nil
	}

	date := p.bucketDate()
	// Expiry anchors to the logical day so late or backfilled messages still
	// age out on schedule.
	expireAt, ok := models.BucketExpiry(date, CountRetainDays)
	if !ok {
		expireAt = time.Time{}
	}

	if err := c.store.IncrKeywordCounts(ctx, p.Source, date, kws, expireAt, FallbackCountTTL); err != nil {
		return err
	}

	c.log.Debug("counted keywords",
		slog.String("source", p.Source),
		slog.String("date", date),
		slog.Int("keywords", len(kws)),
	)
	return nil
}

func normalizeAll(raw []string) []string {
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		if kw := keywords.Normalize(r); kw != "" {
			out = append(out, kw)
		}
	}
	return out
}
