// Package crawl holds the per-source adapters that pull recent posts from
// external providers. Each adapter tags its own source name and leaves
// keywords empty; enrichment happens on the publish path.
package crawl

import (
	"context"
	"errors"
	"time"

	"github.com/devpulse/devpulse/internal/models"
)

// Source is the capability every adapter implements. FetchRecent serves the
// scheduled crawl, FetchRange serves historical backfill.
type Source interface {
	Name() string
	FetchRecent(ctx context.Context, limit int) ([]models.Post, error)
	FetchRange(ctx context.Context, start, end time.Time) ([]models.Post, error)
}

// ErrRangeUnsupported marks sources that have no historical feed.
var ErrRangeUnsupported = errors.New("source has no date-range feed")
