package crawl

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/devpulse/devpulse/internal/models"
)

const githubTrendingURL = "https://github.com/trending"

// GitHubTrending scrapes the trending page. There is no API and no history,
// so FetchRange is unsupported.
type GitHubTrending struct {
	client *http.Client
	log    *slog.Logger
}

func NewGitHubTrending(log *slog.Logger) *GitHubTrending {
	return &GitHubTrending{
		client: &http.Client{Timeout: 15 * time.Second},
		log:    log,
	}
}

func (g *GitHubTrending) Name() string { return "github" }

func (g *GitHubTrending) FetchRecent(ctx context.Context, limit int) ([]models.Post, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, githubTrendingURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", defaultUserAgent)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch github trending: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("github trending status %d", resp.StatusCode)
	}

	posts, err := parseTrending(resp.Body, limit, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("parse github trending: %w", err)
	}
	return posts, nil
}

func parseTrending(r io.Reader, limit int, now time.Time) ([]models.Post, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, err
	}

	var posts []models.Post
	doc.Find("article.Box-row h2 a").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		href, ok := sel.Attr("href")
		if !ok {
			return true
		}
		repo := strings.Trim(strings.TrimSpace(href), "/")
		if repo == "" {
			return true
		}
		posts = append(posts, models.Post{
			Source:   "github",
			Title:    repo,
			URL:      "https://github.com/" + repo,
			PostedAt: now,
		})
		return len(posts) < limit
	})

	return posts, nil
}

func (g *GitHubTrending) FetchRange(_ context.Context, _, _ time.Time) ([]models.Post, error) {
	return nil, ErrRangeUnsupported
}
