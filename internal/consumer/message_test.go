package consumer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/devpulse/devpulse/internal/models"
)

func TestParsePostRejectsGarbage(t *testing.T) {
	_, err := parsePost([]byte("not json"))
	require.ErrorIs(t, err, ErrMalformed)
}

func TestParsePostRequiresSourceAndTitle(t *testing.T) {
	_, err := parsePost([]byte(`{"title":"only a title"}`))
	require.ErrorIs(t, err, ErrMalformed)

	_, err = parsePost([]byte(`{"source":"hackernews"}`))
	require.ErrorIs(t, err, ErrMalformed)

	p, err := parsePost([]byte(`{"source":"hackernews","title":"A post"}`))
	require.NoError(t, err)
	require.Equal(t, "hackernews", p.Source)
	require.Equal(t, "A post", p.Title)
}

func TestBucketDateFallsBackToToday(t *testing.T) {
	p := rawPost{DateKST: "2026-03-10"}
	require.Equal(t, "2026-03-10", p.bucketDate())

	p = rawPost{}
	require.Equal(t, models.Today(), p.bucketDate())
}

func TestResolveOccurredAtPrefersPostedAt(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	p := rawPost{
		PostedAt:  []byte(`"2026-03-10T08:00:00Z"`),
		CreatedAt: []byte(`"2026-04-01T08:00:00Z"`),
		Time:      []byte(`1700000000`),
	}
	ts := resolveOccurredAt(p, now)
	require.Equal(t, time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC), ts)
}

func TestResolveOccurredAtFallsThroughChain(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	p := rawPost{CreatedAt: []byte(`"2026-04-01T08:00:00"`)}
	require.Equal(t, time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC), resolveOccurredAt(p, now))

	p = rawPost{Time: []byte(`1700000000`)}
	require.Equal(t, time.Unix(1700000000, 0).UTC(), resolveOccurredAt(p, now))

	// createdAt can also arrive as epoch seconds from older producers.
	p = rawPost{CreatedAt: []byte(`1700000000`)}
	require.Equal(t, time.Unix(1700000000, 0).UTC(), resolveOccurredAt(p, now))
}

func TestResolveOccurredAtDefaultsToNow(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	require.Equal(t, now, resolveOccurredAt(rawPost{}, now))
	require.Equal(t, now, resolveOccurredAt(rawPost{PostedAt: []byte(`"garbage"`)}, now))
	require.Equal(t, now, resolveOccurredAt(rawPost{Time: []byte(`0`)}, now))
}
