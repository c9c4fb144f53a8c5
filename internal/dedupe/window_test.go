package dedupe_test

import (
	"testing"
	"time"

	"github.com/devpulse/devpulse/internal/dedupe"
	"github.com/stretchr/testify/require"
)

func TestWindowSeenAfterMark(t *testing.T) {
	w := dedupe.NewWindow(10, time.Minute)
	require.False(t, w.Seen("alpha"))
	w.Mark("alpha")
	require.True(t, w.Seen("alpha"))
}

func TestWindowTTLExpiry(t *testing.T) {
	w := dedupe.NewWindow(10, 20*time.Millisecond)
	w.Mark("beta")
	require.True(t, w.Seen("beta"))
	time.Sleep(25 * time.Millisecond)
	require.False(t, w.Seen("beta"))
}

func TestWindowCapacityEvictsOldest(t *testing.T) {
	w := dedupe.NewWindow(1, time.Minute)
	w.Mark("first")
	w.Mark("second")
	require.False(t, w.Seen("first"))
	require.True(t, w.Seen("second"))
}
