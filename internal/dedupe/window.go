// Package dedupe keeps a process-local window of recently seen fingerprints.
// It is a fast path in front of the coordination store: a fingerprint this
// process already pushed through never needs another round trip. The store's
// conditional set stays the source of truth across processes.
package dedupe

import (
	"sync"
	"time"
)

type stamped struct {
	fp string
	at time.Time
}

// Window is a bounded TTL set of fingerprints.
type Window struct {
	mu    sync.Mutex
	seen  map[string]time.Time
	order []stamped
	cap   int
	ttl   time.Duration
}

// NewWindow creates a window with the provided capacity and ttl.
func NewWindow(capacity int, ttl time.Duration) *Window {
	if capacity <= 0 {
		capacity = 1
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Window{
		seen:  make(map[string]time.Time, capacity),
		order: make([]stamped, 0, capacity),
		cap:   capacity,
		ttl:   ttl,
	}
}

// Seen reports whether fp was marked inside the ttl window.
func (w *Window) Seen(fp string) bool {
	now := time.Now()

	w.mu.Lock()
	defer w.mu.Unlock()

	at, ok := w.seen[fp]
	return ok && now.Sub(at) <= w.ttl
}

// Mark records fp, evicting expired and overflow entries oldest-first.
func (w *Window) Mark(fp string) {
	now := time.Now()

	w.mu.Lock()
	defer w.mu.Unlock()

	w.seen[fp] = now
	w.order = append(w.order, stamped{fp: fp, at: now})

	cutoff := now.Add(-w.ttl)
	for len(w.order) > 0 && (len(w.seen) > w.cap || w.order[0].at.Before(cutoff)) {
		oldest := w.order[0]
		w.order = w.order[1:]
		if at, ok := w.seen[oldest.fp]; ok && at.Equal(oldest.at) {
			delete(w.seen, oldest.fp)
		}
	}
}
