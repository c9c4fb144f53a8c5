package consumer

import (
	"context"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/devpulse/devpulse/internal/identity"
	"github.com/devpulse/devpulse/internal/models"
)

// PostInserter is the slice of the row store this consumer writes through.
type PostInserter interface {
	InsertPost(ctx context.Context, docID string, p models.Post, occurredAt time.Time) error
}

// Persistence appends each post as a durable row.
type Persistence struct {
	db  PostInserter
	log *slog.Logger
}

func NewPersistence(db PostInserter, log *slog.Logger) *Persistence {
	return &Persistence{db: db, log: log}
}

func (c *Persistence) Name() string { return "persistence" }

func (c *Persistence) Handle(ctx context.Context, msg kafka.Message) error {
	p, err := parsePost(msg.Value)
	if err != nil {
		return err
	}

	occurredAt := resolveOccurredAt(p, time.Now().UTC())
	docID := identity.DocumentID(p.Source, p.URL, p.Title)

	if err := c.db.InsertPost(ctx, docID, p.toPost(), occurredAt); err != nil {
		return err
	}

	c.log.Debug("persisted post",
		slog.String("doc_id", docID),
		slog.String("source", p.Source),
	)
	return nil
}
