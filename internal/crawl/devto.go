package crawl

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/devpulse/devpulse/internal/models"
)

const devtoAPIURL = "https://dev.to/api/articles"

// Devto pulls articles from the public dev.to REST API.
type Devto struct {
	http *httpClient
	log  *slog.Logger
}

func NewDevto(log *slog.Logger) *Devto {
	return &Devto{http: newHTTPClient(10*time.Second, 2), log: log}
}

func (d *Devto) Name() string { return "devto" }

type devtoArticle struct {
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	PublishedAt time.Time `json:"published_at"`
}

func (d *Devto) FetchRecent(ctx context.Context, limit int) ([]models.Post, error) {
	var posts []models.Post
	for page := 1; len(posts) < limit; page++ {
		articles, err := d.fetchPage(ctx, page)
		if err != nil {
			return posts, err
		}
		if len(articles) == 0 {
			break
		}
		for _, a := range articles {
			if len(posts) >= limit {
				break
			}
			posts = append(posts, d.toPost(a))
		}
	}
	return posts, nil
}

// FetchRange walks pages newest-first and stops at the first article older
// than start.
func (d *Devto) FetchRange(ctx context.Context, start, end time.Time) ([]models.Post, error) {
	var posts []models.Post
	for page := 1; ; page++ {
		articles, err := d.fetchPage(ctx, page)
		if err != nil {
			return posts, err
		}
		if len(articles) == 0 {
			break
		}

		reachedOld := false
		for _, a := range articles {
			if a.PublishedAt.Before(start) {
				reachedOld = true
				break
			}
			if !a.PublishedAt.After(end) {
				posts = append(posts, d.toPost(a))
			}
		}
		if reachedOld {
			break
		}
	}
	d.log.Info("devto range fetched",
		slog.Int("count", len(posts)),
		slog.Time("start", start),
		slog.Time("end", end),
	)
	return posts, nil
}

func (d *Devto) fetchPage(ctx context.Context, page int) ([]devtoArticle, error) {
	var articles []devtoArticle
	url := fmt.Sprintf("%s?page=%d&per_page=100", devtoAPIURL, page)
	if err := d.http.getJSON(ctx, url, nil, &articles); err != nil {
		return nil, fmt.Errorf("devto page %d: %w", page, err)
	}
	return articles, nil
}

func (d *Devto) toPost(a devtoArticle) models.Post {
	return models.Post{
		Source:   d.Name(),
		Title:    a.Title,
		URL:      a.URL,
		PostedAt: a.PublishedAt.UTC(),
	}
}
