package crawl

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/devpulse/devpulse/internal/models"
)

const (
	hnBaseURL    = "https://hacker-news.firebaseio.com/v0"
	hnAlgoliaURL = "https://hn.algolia.com/api/v1/search_by_date"
)

// HackerNews pulls top stories from the Firebase API and historical ranges
// from the Algolia search API.
type HackerNews struct {
	http *httpClient
	log  *slog.Logger
}

func NewHackerNews(log *slog.Logger) *HackerNews {
	return &HackerNews{http: newHTTPClient(10*time.Second, 5), log: log}
}

func (h *HackerNews) Name() string { return "hackernews" }

func (h *HackerNews) FetchRecent(ctx context.Context, limit int) ([]models.Post, error) {
	var ids []int64
	if err := h.http.getJSON(ctx, hnBaseURL+"/topstories.json", nil, &ids); err != nil {
		return nil, fmt.Errorf("hackernews top story ids: %w", err)
	}
	if len(ids) > limit {
		ids = ids[:limit]
	}

	posts := make([]models.Post, 0, len(ids))
	for _, id := range ids {
		var item struct {
			Title string `json:"title"`
			URL   string `json:"url"`
			Time  int64  `json:"time"`
		}
		if err := h.http.getJSON(ctx, fmt.Sprintf("%s/item/%d.json", hnBaseURL, id), nil, &item); err != nil {
			h.log.Warn("fetch story failed", slog.Int64("id", id), slog.Any("err", err))
			continue
		}
		if item.Title == "" {
			continue
		}
		posts = append(posts, models.Post{
			Source:   h.Name(),
			Title:    item.Title,
			URL:      item.URL,
			PostedAt: time.Unix(item.Time, 0).UTC(),
		})
	}
	return posts, nil
}

// FetchRange pages through Algolia one month at a time; a single window
// caps out at 1000 hits per page.
func (h *HackerNews) FetchRange(ctx context.Context, start, end time.Time) ([]models.Post, error) {
	var posts []models.Post
	for cursor := start; cursor.Before(end); cursor = cursor.AddDate(0, 1, 0) {
		next := cursor.AddDate(0, 1, 0)
		if next.After(end) {
			next = end
		}
		chunk, err := h.fetchAlgolia(ctx, cursor, next)
		if err != nil {
			return posts, err
		}
		posts = append(posts, chunk...)
	}
	h.log.Info("hackernews range fetched",
		slog.Int("count", len(posts)),
		slog.Time("start", start),
		slog.Time("end", end),
	)
	return posts, nil
}

func (h *HackerNews) fetchAlgolia(ctx context.Context, start, end time.Time) ([]models.Post, error) {
	filters := url.QueryEscape(fmt.Sprintf("created_at_i>=%d,created_at_i<=%d", start.Unix(), end.Unix()))

	var posts []models.Post
	for page := 0; ; page++ {
		reqURL := fmt.Sprintf("%s?tags=story&numericFilters=%s&hitsPerPage=1000&page=%d", hnAlgoliaURL, filters, page)

		var parsed struct {
			Hits []struct {
				Title     string    `json:"title"`
				URL       string    `json:"url"`
				CreatedAt time.Time `json:"created_at"`
			} `json:"hits"`
			Page    int `json:"page"`
			NbPages int `json:"nbPages"`
		}
		if err := h.http.getJSON(ctx, reqURL, nil, &parsed); err != nil {
			return posts, fmt.Errorf("hackernews algolia page %d: %w", page, err)
		}
		if len(parsed.Hits) == 0 {
			break
		}

		for _, hit := range parsed.Hits {
			posts = append(posts, models.Post{
				Source:   h.Name(),
				Title:    hit.Title,
				URL:      hit.URL,
				PostedAt: hit.CreatedAt.UTC(),
			})
		}

		if parsed.Page >= parsed.NbPages-1 {
			break
		}
	}
	return posts, nil
}
