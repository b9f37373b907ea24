package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/elastic/go-elasticsearch/v9"

	"github.com/Skotchmaster/book_market/internal/models"
)

type ESConfig struct {
	URL      string
	User     string
	Password string
	Index    string
}

type ESIndex struct {
	client *elasticsearch.Client
	index  string
}

// NewESIndex connects and checks the cluster answers before returning.
func NewESIndex(ctx context.Context, cfg ESConfig) (*ESIndex, error) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{cfg.URL},
		Username:  cfg.User,
		Password:  cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("elasticsearch client: %w", err)
	}

	res, err := client.Info(client.Info.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("elasticsearch info: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("elasticsearch info: %s: %s", res.Status(), body)
	}

	return &ESIndex{client: client, index: cfg.Index}, nil
}

func (x *ESIndex) Enabled() bool { return true }

func (x *ESIndex) IndexItem(ctx context.Context, item models.Item) error {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(item); err != nil {
		return fmt.Errorf("encode item: %w", err)
	}

	res, err := x.client.Index(
		x.index,
		&buf,
		x.client.Index.WithContext(ctx),
		x.client.Index.WithDocumentID(strconv.FormatUint(uint64(item.ID), 10)),
	)
	if err != nil {
		return fmt.Errorf("index item %d: %w", item.ID, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("index item %d: %s", item.ID, res.Status())
	}
	return nil
}

func (x *ESIndex) Search(ctx context.Context, query string, from, size int) (int64, []models.Item, error) {
	body := map[string]any{
		"query": map[string]any{
			"match": map[string]any{
				"name": map[string]any{
					"query":     query,
					"fuzziness": "AUTO",
				},
			},
		},
		"from": from,
		"size": size,
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return 0, nil, fmt.Errorf("encode search: %w", err)
	}

	res, err := x.client.Search(
		x.client.Search.WithContext(ctx),
		x.client.Search.WithIndex(x.index),
		x.client.Search.WithBody(&buf),
	)
	if err != nil {
		return 0, nil, fmt.Errorf("search: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return 0, nil, fmt.Errorf("search: %s", res.Status())
	}

	var r struct {
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
			Hits []struct {
				Source models.Item `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return 0, nil, fmt.Errorf("decode search: %w", err)
	}

	items := make([]models.Item, len(r.Hits.Hits))
	for i, hit := range r.Hits.Hits {
		items[i] = hit.Source
	}
	return r.Hits.Total.Value, items, nil
}
