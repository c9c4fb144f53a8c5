package consumer

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

// retryDelay paces in-place retries of a failed message.
var retryDelay = time.Second

// Handler processes one message. Returning an error wrapping ErrMalformed
// drops the message; any other error is retried in place until it clears.
type Handler interface {
	Name() string
	Handle(ctx context.Context, msg kafka.Message) error
}

// MessageSource is the slice of kafka.Reader the loop depends on.
type MessageSource interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Run drives one consumer loop until ctx is done. Commits are cumulative:
// committing a later offset marks every earlier one consumed too. The loop
// therefore never fetches past a message that has not been handled; a
// transient failure blocks its partition and is retried with a delay instead
// of being skipped.
func Run(ctx context.Context, reader MessageSource, h Handler, log *slog.Logger) {
	log = log.With(slog.String("consumer", h.Name()))
	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				log.Info("context canceled, stopping")
				return
			}
			log.Error("fetch message", slog.Any("err", err))
			continue
		}

		if !handleUntilDone(ctx, h, msg, log) {
			return
		}

		if err := reader.CommitMessages(ctx, msg); err != nil {
			log.Error("commit message", slog.Any("err", err))
		}
	}
}

// handleUntilDone processes msg until it either succeeds or proves
// malformed. Returns false when ctx ended before that happened.
func handleUntilDone(ctx context.Context, h Handler, msg kafka.Message, log *slog.Logger) bool {
	for {
		err := h.Handle(ctx, msg)
		if err == nil {
			return true
		}
		if errors.Is(err, ErrMalformed) {
			log.Warn("dropping malformed message",
				slog.Int("partition", msg.Partition),
				slog.Int64("offset", msg.Offset),
				slog.Any("err", err),
			)
			return true
		}

		log.Warn("handle failed, retrying",
			slog.Int("partition", msg.Partition),
			slog.Int64("offset", msg.Offset),
			slog.Any("err", err),
		)
		select {
		case <-ctx.Done():
			log.Info("context canceled, stopping")
			return false
		case <-time.After(retryDelay):
		}
	}
}
