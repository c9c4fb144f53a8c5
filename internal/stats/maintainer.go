package stats

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/devpulse/devpulse/internal/models"
)

// WindowDays is the rolling window length.
const WindowDays = 7

// Sources enumerates the crawled sources summed into daily totals.
var Sources = []string{"github", "hackernews", "reddit", "devto"}

// DayScorer is the slice of the coordination store the recompute reads from.
type DayScorer interface {
	DayScore(ctx context.Context, scope, date, keyword string) (int, error)
}

// WindowWriter is the slice of the search engine the recompute writes to.
type WindowWriter interface {
	UpsertKeywordWindow(ctx context.Context, keyword string, mean, stdDev float64, windowDays int, now time.Time) error
}

// Maintainer recomputes a keyword's 7-day mean and standard deviation from
// the daily count buckets and upserts the result into the durable stat
// document. Stateless; safe to run concurrently for different keywords.
type Maintainer struct {
	counts  DayScorer
	durable WindowWriter
	log     *slog.Logger

	now func() time.Time
}

func NewMaintainer(counts DayScorer, durable WindowWriter, log *slog.Logger) *Maintainer {
	return &Maintainer{counts: counts, durable: durable, log: log, now: time.Now}
}

// Recompute rebuilds the window for one keyword. Days with no counts
// contribute an explicit zero; omitting them would bias the mean upward.
func (m *Maintainer) Recompute(ctx context.Context, rawKeyword string) error {
	keyword := strings.ToLower(strings.TrimSpace(rawKeyword))
	if keyword == "" {
		m.log.Warn("empty keyword on recompute")
		return nil
	}

	now := m.now()
	dailyTotals := make([]int, 0, WindowDays)
	for i := WindowDays - 1; i >= 0; i-- {
		date := models.BucketDate(now.AddDate(0, 0, -i))
		sum := 0
		for _, source := range Sources {
			score, err := m.counts.DayScore(ctx, source, date, keyword)
			if err != nil {
				return err
			}
			sum += score
		}
		dailyTotals = append(dailyTotals, sum)
	}

	mean := Mean(dailyTotals)
	stdDev := StdDevPop(dailyTotals, mean)

	if err := m.durable.UpsertKeywordWindow(ctx, keyword, mean, stdDev, WindowDays, now); err != nil {
		return err
	}

	m.log.Info("keyword window updated",
		slog.String("keyword", keyword),
		slog.Float64("mean", mean),
		slog.Float64("std_dev", stdDev),
	)
	return nil
}
