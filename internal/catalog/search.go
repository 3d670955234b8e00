// Package catalog is the full-text wine search over the Elasticsearch catalog
// index. PostgreSQL stays the source of truth for stock; the index only helps
// the query agent find wines by loose descriptions.
package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"inventory-assistant/internal/common/logger"
)

var (
	ErrSearchQueryFailed = errors.New("SEARCH_QUERY_FAILED")
	ErrSearchTimeout     = errors.New("SEARCH_TIMEOUT")
	ErrIndexNotFound     = errors.New("INDEX_NOT_FOUND")
	ErrEmptyQuery        = errors.New("EMPTY_QUERY")
)

const (
	defaultLimit = 10
	maxLimit     = 50
)

// IndexMapping is the catalog index definition. Names and producers use the
// italian analyzer so "rossi" finds "Rosso".
const IndexMapping = `{
	"settings": {"number_of_shards": 1},
	"mappings": {
		"properties": {
			"id":       {"type": "keyword"},
			"name":     {"type": "text", "analyzer": "italian", "fields": {"raw": {"type": "keyword"}}},
			"producer": {"type": "text", "analyzer": "italian"},
			"vintage":  {"type": "integer"},
			"color":    {"type": "keyword"},
			"region":   {"type": "text"},
			"price":    {"type": "scaled_float", "scaling_factor": 100}
		}
	}
}`

// Entry is one indexed wine.
type Entry struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Producer string  `json:"producer,omitempty"`
	Vintage  int     `json:"vintage,omitempty"`
	Color    string  `json:"color,omitempty"`
	Region   string  `json:"region,omitempty"`
	Price    float64 `json:"price,omitempty"`
	Score    float64 `json:"-"`
}

type Result struct {
	Entries   []Entry
	TotalHits int64
	Took      int64 // milliseconds, as reported by the cluster
}

type Search struct {
	client *elasticsearch.Client
	index  string
	logger logger.Logger
}

func NewSearch(client *elasticsearch.Client, index string, log logger.Logger) *Search {
	if index == "" {
		index = "wines"
	}
	return &Search{
		client: client,
		index:  index,
		logger: logger.ForComponent(log, "catalog-search"),
	}
}

// Search runs a best_fields multi_match over the descriptive fields.
func (s *Search) Search(ctx context.Context, text string, limit int) (*Result, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyQuery
	}
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	body, err := json.Marshal(buildQuery(text))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSearchQueryFailed, err)
	}

	req := esapi.SearchRequest{
		Index: []string{s.index},
		Body:  bytes.NewReader(body),
		Size:  &limit,
	}
	res, err := req.Do(ctx, s.client)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, ErrSearchTimeout
		}
		return nil, fmt.Errorf("%w: %v", ErrSearchQueryFailed, err)
	}
	defer res.Body.Close()

	if res.StatusCode == 404 {
		return nil, fmt.Errorf("%w: %s", ErrIndexNotFound, s.index)
	}
	if res.IsError() {
		return nil, fmt.Errorf("%w: %s", ErrSearchQueryFailed, res.Status())
	}

	var parsed searchResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrSearchQueryFailed, err)
	}

	result := &Result{
		Entries:   make([]Entry, 0, len(parsed.Hits.Hits)),
		TotalHits: parsed.Hits.Total.Value,
		Took:      parsed.Took,
	}
	for _, hit := range parsed.Hits.Hits {
		e := hit.Source
		if e.ID == "" {
			e.ID = hit.ID
		}
		e.Score = hit.Score
		result.Entries = append(result.Entries, e)
	}

	s.logger.Debug("catalog search", map[string]interface{}{
		"query": text,
		"hits":  result.TotalHits,
		"took":  result.Took,
	})
	return result, nil
}

// Index upserts an entry under its id so the search stays in step with the
// catalog after additions.
func (s *Search) Index(ctx context.Context, e Entry) error {
	if e.ID == "" {
		return fmt.Errorf("%w: entry id is required", ErrSearchQueryFailed)
	}
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSearchQueryFailed, err)
	}

	req := esapi.IndexRequest{
		Index:      s.index,
		DocumentID: e.ID,
		Body:       bytes.NewReader(body),
		Refresh:    "true",
	}
	res, err := req.Do(ctx, s.client)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSearchQueryFailed, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("%w: index %s: %s", ErrSearchQueryFailed, e.ID, res.Status())
	}
	return nil
}

// Delete removes an entry; a missing document is not an error.
func (s *Search) Delete(ctx context.Context, id string) error {
	req := esapi.DeleteRequest{Index: s.index, DocumentID: id}
	res, err := req.Do(ctx, s.client)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSearchQueryFailed, err)
	}
	defer res.Body.Close()
	if res.IsError() && res.StatusCode != 404 {
		return fmt.Errorf("%w: delete %s: %s", ErrSearchQueryFailed, id, res.Status())
	}
	return nil
}

func buildQuery(text string) map[string]interface{} {
	return map[string]interface{}{
		"query": map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":     text,
				"fields":    []string{"name^3", "producer^2", "region", "color"},
				"type":      "best_fields",
				"fuzziness": "AUTO",
			},
		},
	}
}

type searchResponse struct {
	Took int64 `json:"took"`
	Hits struct {
		Total struct {
			Value int64 `json:"value"`
		} `json:"total"`
		Hits []struct {
			ID     string  `json:"_id"`
			Score  float64 `json:"_score"`
			Source Entry   `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}
