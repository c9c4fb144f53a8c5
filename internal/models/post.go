package models

import "time"

// Post is the canonical content item flowing through the pipeline: produced
// by a source adapter, published to the raw-posts topic, and reconstructed by
// each consumer. Immutable once published.
type Post struct {
	Source   string    `json:"source"`
	Title    string    `json:"title"`
	URL      string    `json:"url"`
	PostedAt time.Time `json:"postedAt,omitempty"`
	// DateKST is the collection bucket date (YYYY-MM-DD, Asia/Seoul),
	// stamped at publish time from the wall clock, never from PostedAt.
	DateKST  string   `json:"date_kst,omitempty"`
	Keywords []string `json:"keywords,omitempty"`
}

// PostDocument is the structure indexed into the raw-posts index.
type PostDocument struct {
	Source    string   `json:"source"`
	Title     string   `json:"title"`
	URL       string   `json:"url"`
	CreatedAt int64    `json:"createdAt"`
	DateKST   string   `json:"date_kst"`
	Keywords  []string `json:"keywords,omitempty"`
}

// KeywordStat is the rolling-window statistic for one keyword.
type KeywordStat struct {
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std"`
	Count  int64   `json:"count"`
}

// RankingEntry is a single row of a trend ranking response.
type RankingEntry struct {
	Keyword        string  `json:"keyword"`
	TodayCount     int     `json:"todayCount"`
	YesterdayCount int     `json:"yesterdayCount"`
	Score          float64 `json:"score"`
	Badge          string  `json:"badge,omitempty"`
}

// Badge values attached to ranking entries.
const (
	BadgeNew    = "New"
	BadgeSpike  = "Spike"
	BadgeRising = "Rising"
)
