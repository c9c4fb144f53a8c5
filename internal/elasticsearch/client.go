// Package elasticsearch wraps go-elasticsearch with the handful of document
// operations the pipeline needs: idempotent post indexing, atomic keyword
// counter updates, stat upserts, bulk stat reads, and post search.
package elasticsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/devpulse/devpulse/internal/models"
)

// Client wraps an Elasticsearch connection plus the two index names the
// pipeline writes to.
type Client struct {
	es         *elasticsearch.Client
	postsIndex string
	statsIndex string
	log        *slog.Logger
}

// New instantiates the client.
func New(addr, postsIndex, statsIndex string, logger *slog.Logger) (*Client, error) {
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{addr},
	})
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
	}

	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Client{es: es, postsIndex: postsIndex, statsIndex: statsIndex, log: logger}, nil
}

// Ping checks if Elasticsearch is available.
func (c *Client) Ping(ctx context.Context) error {
	res, err := c.es.Ping(c.es.Ping.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("ping elasticsearch: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("elasticsearch ping failed: %s", res.Status())
	}
	return nil
}

// Health pings the cluster health endpoint.
func (c *Client) Health(ctx context.Context) error {
	res, err := c.es.Cluster.Health(c.es.Cluster.Health.WithContext(ctx))
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(res.Body)
		return fmt.Errorf("cluster health bad: %s", strings.TrimSpace(string(data)))
	}
	return nil
}

// IndexPost writes a post document under a deterministic id. Redelivery of
// the same post overwrites the same document instead of duplicating it.
func (c *Client) IndexPost(ctx context.Context, id string, doc models.PostDocument) error {
	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal doc: %w", err)
	}

	req := esapi.IndexRequest{
		Index:      c.postsIndex,
		DocumentID: id,
		Body:       bytes.NewReader(payload),
		Refresh:    "false",
	}

	res, err := req.Do(ctx, c.es)
	if err != nil {
		return fmt.Errorf("index post: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return fmt.Errorf("index post failed: %s", strings.TrimSpace(string(body)))
	}
	return nil
}

const bumpScript = `
if (ctx._source.total_count == null) { ctx._source.total_count = 0 }
ctx._source.total_count += params.inc;
if (ctx._source.sources == null) { ctx._source.sources = new HashMap() }
def s = params.source;
ctx._source.sources[s] = ctx._source.sources.containsKey(s)
	? ctx._source.sources[s] + params.inc
	: params.inc;
ctx._source.last_updated = params.now;
ctx._source.keyword = params.keyword;
`

// BumpKeywordCounters atomically increments a keyword's total and per-source
// counters via a scripted update. The upsert body creates the stat document
// on first sight; retry_on_conflict absorbs concurrent updates to the same
// keyword from other posts.
func (c *Client) BumpKeywordCounters(ctx context.Context, keyword, source string, now time.Time) error {
	nowMillis := now.UnixMilli()
	body := map[string]any{
		"script": map[string]any{
			"source": bumpScript,
			"lang":   "painless",
			"params": map[string]any{
				"inc":     1,
				"source":  source,
				"now":     nowMillis,
				"keyword": keyword,
			},
		},
		"upsert": map[string]any{
			"keyword":      keyword,
			"total_count":  1,
			"sources":      map[string]any{source: 1},
			"last_updated": nowMillis,
		},
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal stat update: %w", err)
	}

	retries := 3
	req := esapi.UpdateRequest{
		Index:           c.statsIndex,
		DocumentID:      keyword,
		Body:            bytes.NewReader(payload),
		RetryOnConflict: &retries,
	}

	res, err := req.Do(ctx, c.es)
	if err != nil {
		return fmt.Errorf("bump keyword counters: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		data, _ := io.ReadAll(res.Body)
		return fmt.Errorf("bump keyword counters failed: %s", strings.TrimSpace(string(data)))
	}
	return nil
}

// UpsertKeywordWindow writes the recomputed rolling-window statistics for a
// keyword, creating the document if it does not exist yet.
func (c *Client) UpsertKeywordWindow(ctx context.Context, keyword string, mean, stdDev float64, windowDays int, now time.Time) error {
	body := map[string]any{
		"doc": map[string]any{
			"mean_7d":      mean,
			"std_dev_7d":   stdDev,
			"window_days":  windowDays,
			"last_updated": now.UnixMilli(),
		},
		"doc_as_upsert": true,
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal window upsert: %w", err)
	}

	req := esapi.UpdateRequest{
		Index:      c.statsIndex,
		DocumentID: keyword,
		Body:       bytes.NewReader(payload),
	}

	res, err := req.Do(ctx, c.es)
	if err != nil {
		return fmt.Errorf("upsert keyword window: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		data, _ := io.ReadAll(res.Body)
		return fmt.Errorf("upsert keyword window failed: %s", strings.TrimSpace(string(data)))
	}
	return nil
}

// GetKeywordStats multi-gets stat documents for the given keywords in one
// round trip. Keywords with no document are simply absent from the result.
func (c *Client) GetKeywordStats(ctx context.Context, kws []string) (map[string]models.KeywordStat, error) {
	if len(kws) == 0 {
		return map[string]models.KeywordStat{}, nil
	}

	body := map[string]any{"ids": kws}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal mget body: %w", err)
	}

	req := esapi.MgetRequest{
		Index: c.statsIndex,
		Body:  bytes.NewReader(payload),
	}

	res, err := req.Do(ctx, c.es)
	if err != nil {
		return nil, fmt.Errorf("mget keyword stats: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		data, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("mget keyword stats failed: %s", strings.TrimSpace(string(data)))
	}

	var parsed struct {
		Docs []struct {
			ID     string `json:"_id"`
			Found  bool   `json:"found"`
			Source struct {
				Mean       float64 `json:"mean_7d"`
				StdDev     float64 `json:"std_dev_7d"`
				TotalCount int64   `json:"total_count"`
			} `json:"_source"`
		} `json:"docs"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode mget response: %w", err)
	}

	out := make(map[string]models.KeywordStat, len(parsed.Docs))
	for _, doc := range parsed.Docs {
		if !doc.Found {
			continue
		}
		count := doc.Source.TotalCount
		if count <= 0 {
			count = 1
		}
		out[doc.ID] = models.KeywordStat{
			Mean:   doc.Source.Mean,
			StdDev: doc.Source.StdDev,
			Count:  count,
		}
	}
	return out, nil
}

// SearchParams narrow a post search.
type SearchParams struct {
	Query  string
	Source string
	From   int
	Size   int
}

// SearchResult bundles hits and total count.
type SearchResult struct {
	Total int64                 `json:"total"`
	Items []models.PostDocument `json:"items"`
}

// SearchPosts runs a bool query over the posts index: title-weighted match
// plus an optional source filter, newest first.
func (c *Client) SearchPosts(ctx context.Context, params SearchParams) (*SearchResult, error) {
	if params.Size <= 0 {
		params.Size = 20
	}
	if params.Size > 200 {
		params.Size = 200
	}
	if params.From < 0 {
		params.From = 0
	}

	boolQuery := map[string]any{}
	if params.Query != "" {
		boolQuery["must"] = []map[string]any{
			{
				"multi_match": map[string]any{
					"query":  params.Query,
					"fields": []string{"title^2", "keywords"},
				},
			},
		}
	} else {
		boolQuery["must"] = []map[string]any{
			{"match_all": map[string]any{}},
		}
	}

	if params.Source != "" {
		boolQuery["filter"] = []map[string]any{
			{"term": map[string]any{"source": params.Source}},
		}
	}

	body := map[string]any{
		"from":             params.From,
		"size":             params.Size,
		"track_total_hits": true,
		"query":            map[string]any{"bool": boolQuery},
		"sort": []map[string]any{
			{"createdAt": map[string]any{"order": "desc"}},
		},
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal search body: %w", err)
	}

	res, err := c.es.Search(
		c.es.Search.WithContext(ctx),
		c.es.Search.WithIndex(c.postsIndex),
		c.es.Search.WithBody(bytes.NewReader(payload)),
	)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		data, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("search failed: %s", strings.TrimSpace(string(data)))
	}

	var parsed struct {
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
			Hits []struct {
				Source models.PostDocument `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	items := make([]models.PostDocument, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		items = append(items, hit.Source)
	}

	return &SearchResult{Total: parsed.Hits.Total.Value, Items: items}, nil
}

// DeletePostsOlderThan removes post documents whose createdAt is older than
// maxAge, in batches, until a batch comes back short.
func (c *Client) DeletePostsOlderThan(ctx context.Context, maxAge time.Duration, batchSize int) (int64, error) {
	if batchSize <= 0 {
		batchSize = 1000
	}

	cutoff := time.Now().Add(-maxAge).UnixMilli()
	totalDeleted := int64(0)

	for {
		body := map[string]any{
			"query": map[string]any{
				"range": map[string]any{
					"createdAt": map[string]any{"lte": cutoff},
				},
			},
		}

		payload, err := json.Marshal(body)
		if err != nil {
			return totalDeleted, fmt.Errorf("marshal delete body: %w", err)
		}

		res, err := c.es.DeleteByQuery(
			[]string{c.postsIndex},
			bytes.NewReader(payload),
			c.es.DeleteByQuery.WithContext(ctx),
			c.es.DeleteByQuery.WithWaitForCompletion(true),
			c.es.DeleteByQuery.WithConflicts("proceed"),
			c.es.DeleteByQuery.WithScrollSize(batchSize),
		)
		if err != nil {
			return totalDeleted, fmt.Errorf("delete by query: %w", err)
		}

		if res.IsError() {
			data, _ := io.ReadAll(res.Body)
			res.Body.Close()
			return totalDeleted, fmt.Errorf("delete by query failed: %s", strings.TrimSpace(string(data)))
		}

		var parsed struct {
			Deleted int64 `json:"deleted"`
		}
		if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
			res.Body.Close()
			return totalDeleted, fmt.Errorf("decode delete response: %w", err)
		}
		res.Body.Close()

		totalDeleted += parsed.Deleted

		if parsed.Deleted < int64(batchSize) {
			break
		}
	}

	return totalDeleted, nil
}
