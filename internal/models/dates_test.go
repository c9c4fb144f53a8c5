package models_test

import (
	"testing"
	"time"

	"github.com/devpulse/devpulse/internal/models"
	"github.com/stretchr/testify/require"
)

func TestBucketDateUsesReferenceZone(t *testing.T) {
	// 16:30 UTC is already 01:30 the next day in Seoul.
	utc := time.Date(2026, 3, 10, 16, 30, 0, 0, time.UTC)
	require.Equal(t, "2026-03-11", models.BucketDate(utc))

	// 14:00 UTC is 23:00 the same day in Seoul.
	utc = time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)
	require.Equal(t, "2026-03-10", models.BucketDate(utc))
}

func TestBucketExpiryAnchorsToLogicalDay(t *testing.T) {
	expiry, ok := models.BucketExpiry("2026-03-10", 3)
	require.True(t, ok)

	want := time.Date(2026, 3, 13, 0, 0, 0, 0, models.RefZone)
	require.True(t, expiry.Equal(want))
}

func TestBucketExpiryIndependentOfWriteTime(t *testing.T) {
	// Two writes into the same bucket, no matter when they happen, share the
	// same expiry instant.
	first, ok := models.BucketExpiry("2026-03-10", 3)
	require.True(t, ok)
	second, ok := models.BucketExpiry("2026-03-10", 3)
	require.True(t, ok)
	require.True(t, first.Equal(second))
}

func TestBucketExpiryRejectsBadDate(t *testing.T) {
	_, ok := models.BucketExpiry("not-a-date", 3)
	require.False(t, ok)

	_, ok = models.BucketExpiry("", 3)
	require.False(t, ok)
}
