// Package consumer implements the three independent subscribers of the
// raw-posts topic: persistence, indexing and counting. Each runs under its
// own consumer group and tolerates redelivery by making every effect
// idempotent.
package consumer

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/devpulse/devpulse/internal/models"
)

// ErrMalformed marks messages that can never be processed; they are dropped
// by the consumer that hit them, committed, and never retried.
var ErrMalformed = errors.New("malformed message")

// rawPost mirrors the raw-posts wire schema. Timestamp fields vary by
// producer revision, so they stay raw until resolution.
type rawPost struct {
	Source    string          `json:"source"`
	Title     string          `json:"title"`
	URL       string          `json:"url"`
	PostedAt  json.RawMessage `json:"postedAt"`
	CreatedAt json.RawMessage `json:"createdAt"`
	Time      json.RawMessage `json:"time"`
	DateKST   string          `json:"date_kst"`
	Keywords  []string        `json:"keywords"`
}

func parsePost(value []byte) (rawPost, error) {
	var p rawPost
	if err := json.Unmarshal(value, &p); err != nil {
		return p, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if p.Source == "" || p.Title == "" {
		return p, fmt.Errorf("%w: missing source or title", ErrMalformed)
	}
	return p, nil
}

// bucketDate returns the message's bucket date, falling back to today when
// the producer did not stamp one.
func (p rawPost) bucketDate() string {
	if p.DateKST != "" {
		return p.DateKST
	}
	return models.Today()
}

func (p rawPost) toPost() models.Post {
	return models.Post{
		Source: p.Source,
		Title:  p.Title,
		URL:    p.URL,
		// The relational row requires a bucket date even when the producer
		// did not stamp one.
		DateKST:  p.bucketDate(),
		Keywords: p.Keywords,
	}
}

// resolveOccurredAt walks the timestamp fields in priority order and returns
// the first one that parses; absent or unparseable fields fall through to
// now.
func resolveOccurredAt(p rawPost, now time.Time) time.Time {
	chain := []struct {
		raw   json.RawMessage
		parse func(json.RawMessage) (time.Time, bool)
	}{
		{p.PostedAt, parseISO},
		{p.CreatedAt, parseISO},
		{p.Time, parseEpochSeconds},
		{p.CreatedAt, parseEpochSeconds},
	}
	for _, step := range chain {
		if len(step.raw) == 0 {
			continue
		}
		if ts, ok := step.parse(step.raw); ok {
			return ts
		}
	}
	return now
}

var isoFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

func parseISO(raw json.RawMessage) (time.Time, bool) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil || s == "" {
		return time.Time{}, false
	}
	for _, f := range isoFormats {
		if ts, err := time.Parse(f, s); err == nil {
			return ts.UTC(), true
		}
	}
	return time.Time{}, false
}

func parseEpochSeconds(raw json.RawMessage) (time.Time, bool) {
	var n int64
	if err := json.Unmarshal(raw, &n); err != nil || n <= 0 {
		return time.Time{}, false
	}
	return time.Unix(n, 0).UTC(), true
}
