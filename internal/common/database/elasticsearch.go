// internal/common/database/elasticsearch.go
package database

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"franchise-ledger/internal/common/config"
)

// ElasticsearchClient serves the revenue search projection.
type ElasticsearchClient struct {
	Client   *elasticsearch.Client
	shards   int
	replicas int
}

func NewElasticsearch(cfg config.ElasticsearchConfig) (*ElasticsearchClient, error) {
	addresses := cfg.Addresses
	if len(addresses) == 0 && cfg.URL != "" {
		addresses = []string{cfg.URL}
	}
	if len(addresses) == 0 {
		return nil, fmt.Errorf("elasticsearch has no addresses")
	}

	esCfg := elasticsearch.Config{Addresses: addresses}
	if cfg.Username != "" {
		esCfg.Username = cfg.Username
		esCfg.Password = cfg.Password
	}

	es, err := elasticsearch.NewClient(esCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create elasticsearch client: %w", err)
	}
	return &ElasticsearchClient{Client: es, shards: cfg.Shards, replicas: cfg.Replicas}, nil
}

func (c *ElasticsearchClient) Ping(ctx context.Context) error {
	res, err := c.Client.Ping(c.Client.Ping.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("elasticsearch ping failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("elasticsearch ping error: %s", res.Status())
	}
	return nil
}

// revenueMapping keeps amounts as exact strings for display and adds a
// double sub-field for range queries and sums.
var revenueMapping = map[string]interface{}{
	"properties": map[string]interface{}{
		"id":                  map[string]string{"type": "keyword"},
		"walletTransactionId": map[string]string{"type": "keyword"},
		"franchiseId":         map[string]string{"type": "keyword"},
		"nativeCurrency":      map[string]string{"type": "keyword"},
		"reportingCurrency":   map[string]string{"type": "keyword"},
		"description":         map[string]string{"type": "text"},
		"recordedAt":          map[string]string{"type": "date"},
		"nativeAmount":        amountField,
		"reportingAmount":     amountField,
	},
}

var amountField = map[string]interface{}{
	"type": "keyword",
	"fields": map[string]interface{}{
		"value": map[string]string{"type": "double"},
	},
}

// EnsureIndex creates the revenue index with its mapping unless it already exists.
func (c *ElasticsearchClient) EnsureIndex(ctx context.Context, index string) error {
	exists, err := esapi.IndicesExistsRequest{Index: []string{index}}.Do(ctx, c.Client)
	if err != nil {
		return fmt.Errorf("check index %s: %w", index, err)
	}
	exists.Body.Close()
	if exists.StatusCode == http.StatusOK {
		return nil
	}

	settings := map[string]interface{}{}
	if c.shards > 0 {
		settings["number_of_shards"] = c.shards
	}
	if c.replicas >= 0 {
		settings["number_of_replicas"] = c.replicas
	}
	body, err := json.Marshal(map[string]interface{}{
		"settings": settings,
		"mappings": revenueMapping,
	})
	if err != nil {
		return fmt.Errorf("encode index %s: %w", index, err)
	}

	res, err := esapi.IndicesCreateRequest{Index: index, Body: bytes.NewReader(body)}.Do(ctx, c.Client)
	if err != nil {
		return fmt.Errorf("create index %s: %w", index, err)
	}
	defer res.Body.Close()

	if !res.IsError() {
		return nil
	}
	// a concurrent worker may have won the race
	var failure struct {
		Error struct {
			Type string `json:"type"`
		} `json:"error"`
	}
	if json.NewDecoder(res.Body).Decode(&failure) == nil && failure.Error.Type == "resource_already_exists_exception" {
		return nil
	}
	return fmt.Errorf("create index %s: %s", index, res.Status())
}
