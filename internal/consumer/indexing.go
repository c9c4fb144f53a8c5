package consumer

import (
	"context"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/devpulse/devpulse/internal/identity"
	"github.com/devpulse/devpulse/internal/keywords"
	"github.com/devpulse/devpulse/internal/models"
)

// PostIndexer is the slice of the search engine this consumer writes through.
type PostIndexer interface {
	IndexPost(ctx context.Context, id string, doc models.PostDocument) error
	BumpKeywordCounters(ctx context.Context, keyword, source string, now time.Time) error
}

// Indexing upserts each post into the search index under its deterministic
// id and bumps the per-keyword stat counters.
type Indexing struct {
	es  PostIndexer
	log *slog.Logger
}

func NewIndexing(es PostIndexer, log *slog.Logger) *Indexing {
	return &Indexing{es: es, log: log}
}

func (c *Indexing) Name() string { return "indexing" }

func (c *Indexing) Handle(ctx context.Context, msg kafka.Message) error {
	p, err := parsePost(msg.Value)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	doc := models.PostDocument{
		Source:    p.Source,
		Title:     p.Title,
		URL:       p.URL,
		CreatedAt: resolveOccurredAt(p, now).UnixMilli(),
		DateKST:   p.bucketDate(),
		Keywords:  p.Keywords,
	}

	id := identity.DocumentID(p.Source, p.URL, p.Title)
	if err := c.es.IndexPost(ctx, id, doc); err != nil {
		return err
	}

	for _, raw := range p.Keywords {
		kw := keywords.Normalize(raw)
		if kw == "" {
			continue
		}
		if err := c.es.BumpKeywordCounters(ctx, kw, p.Source, now); err != nil {
			// Counter drift is recoverable; the document write is what must
			// not be lost.
			c.log.Warn("bump keyword counters failed",
				slog.String("keyword", kw),
				slog.Any("err", err),
			)
		}
	}

	c.log.Debug("indexed post", slog.String("id", id), slog.String("title", p.Title))
	return nil
}
