package consumer

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
)

type scriptedSource struct {
	msgs      []kafka.Message
	committed []int64
}

func (s *scriptedSource) FetchMessage(_ context.Context) (kafka.Message, error) {
	if len(s.msgs) == 0 {
		return kafka.Message{}, context.Canceled
	}
	msg := s.msgs[0]
	s.msgs = s.msgs[1:]
	return msg, nil
}

func (s *scriptedSource) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	for _, m := range msgs {
		s.committed = append(s.committed, m.Offset)
	}
	return nil
}

type scriptedHandler struct {
	errs    map[int64]error
	failFor map[int64]int
	handled []int64
}

func (h *scriptedHandler) Name() string { return "scripted" }

func (h *scriptedHandler) Handle(_ context.Context, msg kafka.Message) error {
	h.handled = append(h.handled, msg.Offset)
	if h.failFor[msg.Offset] > 0 {
		h.failFor[msg.Offset]--
		return errors.New("backend down")
	}
	return h.errs[msg.Offset]
}

func TestRunCommitsSuccessAndMalformed(t *testing.T) {
	source := &scriptedSource{msgs: []kafka.Message{
		{Offset: 1},
		{Offset: 2},
	}}
	handler := &scriptedHandler{errs: map[int64]error{
		2: fmt.Errorf("%w: unusable payload", ErrMalformed),
	}}

	Run(context.Background(), source, handler, discard())

	require.Equal(t, []int64{1, 2}, source.committed)
}

func TestRunRetriesTransientFailureInPlace(t *testing.T) {
	old := retryDelay
	retryDelay = time.Millisecond
	defer func() { retryDelay = old }()

	source := &scriptedSource{msgs: []kafka.Message{
		{Offset: 1},
		{Offset: 2},
	}}
	// Offset 1 fails twice before it clears. Committing offset 2 would mark
	// offset 1 consumed as well, so the loop must not reach it early.
	handler := &scriptedHandler{failFor: map[int64]int{1: 2}}

	Run(context.Background(), source, handler, discard())

	require.Equal(t, []int64{1, 1, 1, 2}, handler.handled)
	require.Equal(t, []int64{1, 2}, source.committed)
}

func TestRunStopsWhenCanceledMidRetry(t *testing.T) {
	old := retryDelay
	retryDelay = time.Minute
	defer func() { retryDelay = old }()

	ctx, cancel := context.WithCancel(context.Background())
	source := &scriptedSource{msgs: []kafka.Message{{Offset: 1}}}
	handler := &scriptedHandler{failFor: map[int64]int{1: 100}}

	done := make(chan struct{})
	go func() {
		Run(ctx, source, handler, discard())
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("run did not stop on cancel")
	}
	require.Empty(t, source.committed)
}

func TestRunStopsOnCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	source := &scriptedSource{}
	Run(ctx, source, &scriptedHandler{}, discard())
	require.Empty(t, source.committed)
}
