package crawl

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/devpulse/devpulse/internal/models"
)

const (
	redditOAuthBase = "https://oauth.reddit.com"
	redditTokenURL  = "https://www.reddit.com/api/v1/access_token"

	// RedditRefreshTokenKey is where the out-of-band OAuth flow leaves the
	// renewable credential.
	RedditRefreshTokenKey = "reddit_refresh_token"
)

// TokenSource yields a bearer token for the Reddit API.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// CredentialStore is the slice of the coordination store the token source
// reads the stored refresh token from.
type CredentialStore interface {
	GetValue(ctx context.Context, key string) (string, error)
}

// RefreshTokenSource exchanges a stored refresh token for a short-lived
// access token on every call. The authorization-code flow that produced the
// refresh token lives outside this process.
type RefreshTokenSource struct {
	Creds        CredentialStore
	ClientID     string
	ClientSecret string
	UserAgent    string

	HTTP *http.Client
}

func (r *RefreshTokenSource) Token(ctx context.Context) (string, error) {
	refresh, err := r.Creds.GetValue(ctx, RedditRefreshTokenKey)
	if err != nil {
		return "", err
	}
	if refresh == "" {
		return "", fmt.Errorf("no %s stored; finish the OAuth flow first", RedditRefreshTokenKey)
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refresh)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, redditTokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	basic := base64.StdEncoding.EncodeToString([]byte(r.ClientID + ":" + r.ClientSecret))
	req.Header.Set("Authorization", "Basic "+basic)
	req.Header.Set("User-Agent", r.UserAgent)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	client := r.HTTP
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("reddit token exchange: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode/100 != 2 {
		return "", fmt.Errorf("reddit token exchange failed: status %d", resp.StatusCode)
	}

	var parsed struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil || parsed.AccessToken == "" {
		return "", fmt.Errorf("reddit token exchange: no access_token in response")
	}
	return parsed.AccessToken, nil
}

// Reddit pulls posts from r/programming through the OAuth API.
type Reddit struct {
	http      *httpClient
	tokens    TokenSource
	subreddit string
	log       *slog.Logger
}

func NewReddit(tokens TokenSource, log *slog.Logger) *Reddit {
	return &Reddit{
		http:      newHTTPClient(10*time.Second, 1),
		tokens:    tokens,
		subreddit: "programming",
		log:       log,
	}
}

func (r *Reddit) Name() string { return "reddit" }

type redditListing struct {
	Data struct {
		After    string `json:"after"`
		Children []struct {
			Data struct {
				Title      string  `json:"title"`
				Permalink  string  `json:"permalink"`
				CreatedUTC float64 `json:"created_utc"`
			} `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

func (r *Reddit) FetchRecent(ctx context.Context, limit int) ([]models.Post, error) {
	token, err := r.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}

	reqURL := fmt.Sprintf("%s/r/%s/top?raw_json=1&limit=%d&t=day", redditOAuthBase, r.subreddit, limit)
	var listing redditListing
	if err := r.http.getJSON(ctx, reqURL, r.headers(token), &listing); err != nil {
		return nil, fmt.Errorf("reddit top posts: %w", err)
	}

	posts := make([]models.Post, 0, len(listing.Data.Children))
	for _, child := range listing.Data.Children {
		if len(posts) >= limit {
			break
		}
		posts = append(posts, r.toPost(child.Data.Title, child.Data.Permalink, child.Data.CreatedUTC))
	}
	return posts, nil
}

// FetchRange pages /new until posts fall before start. The shared limiter
// keeps the pagination under the API rate limit.
func (r *Reddit) FetchRange(ctx context.Context, start, end time.Time) ([]models.Post, error) {
	token, err := r.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}

	var posts []models.Post
	after := ""
	for {
		reqURL := fmt.Sprintf("%s/r/%s/new?limit=100", redditOAuthBase, r.subreddit)
		if after != "" {
			reqURL += "&after=" + url.QueryEscape(after)
		}

		var listing redditListing
		if err := r.http.getJSON(ctx, reqURL, r.headers(token), &listing); err != nil {
			return posts, fmt.Errorf("reddit new posts: %w", err)
		}
		if len(listing.Data.Children) == 0 {
			break
		}

		reachedOld := false
		for _, child := range listing.Data.Children {
			created := time.Unix(int64(child.Data.CreatedUTC), 0).UTC()
			if created.Before(start) {
				reachedOld = true
				break
			}
			if !created.After(end) {
				posts = append(posts, r.toPost(child.Data.Title, child.Data.Permalink, child.Data.CreatedUTC))
			}
		}

		after = listing.Data.After
		if after == "" || reachedOld {
			break
		}
	}
	r.log.Info("reddit range fetched",
		slog.Int("count", len(posts)),
		slog.Time("start", start),
		slog.Time("end", end),
	)
	return posts, nil
}

func (r *Reddit) headers(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func (r *Reddit) toPost(title, permalink string, createdUTC float64) models.Post {
	return models.Post{
		Source:   r.Name(),
		Title:    title,
		URL:      "https://reddit.com" + permalink,
		PostedAt: time.Unix(int64(createdUTC), 0).UTC(),
	}
}
