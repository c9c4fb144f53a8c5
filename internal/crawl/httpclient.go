package crawl

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

const defaultUserAgent = "devpulse-crawler/1.0 (+https://github.com/devpulse/devpulse)"

// httpClient is the shared fetch helper for all adapters: pooled transport,
// request timeout, byte cap, and a per-client rate limiter so paginated
// range fetches stay polite.
type httpClient struct {
	client    *http.Client
	limiter   *rate.Limiter
	sizeCap   int64
	userAgent string
}

func newHTTPClient(timeout time.Duration, rps float64) *httpClient {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}
	if rps <= 0 {
		rps = 2
	}
	return &httpClient{
		client: &http.Client{
			Transport: transport,
			Timeout:   timeout,
		},
		limiter:   rate.NewLimiter(rate.Limit(rps), 1),
		sizeCap:   10 << 20,
		userAgent: defaultUserAgent,
	}
}

func (h *httpClient) get(ctx context.Context, url string, headers map[string]string) ([]byte, error) {
	if err := h.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", h.userAgent)
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("http status %d for %s", resp.StatusCode, url)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, h.sizeCap))
	if err != nil {
		return nil, err
	}
	return body, nil
}

func (h *httpClient) getJSON(ctx context.Context, url string, headers map[string]string, v any) error {
	body, err := h.get(ctx, url, headers)
	if err != nil {
		return err
	}
	if len(body) > 0 && body[0] == '<' {
		// Blocked or error pages come back as HTML with a 200.
		return fmt.Errorf("non-JSON response from %s", url)
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decode %s: %w", url, err)
	}
	return nil
}
