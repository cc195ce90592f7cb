package settlement

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"franchise-ledger/internal/models"
)

// RevenueIndexer projects revenue ledger rows into a search index.
type RevenueIndexer interface {
	Index(ctx context.Context, rec *models.RevenueRecord) error
}

type ElasticsearchIndexer struct {
	client *elasticsearch.Client
	index  string
}

func NewElasticsearchIndexer(client *elasticsearch.Client, index string) *ElasticsearchIndexer {
	return &ElasticsearchIndexer{client: client, index: index}
}

// Index writes the record under its own id, so replays overwrite rather than duplicate.
func (i *ElasticsearchIndexer) Index(ctx context.Context, rec *models.RevenueRecord) error {
	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode revenue record: %w", err)
	}

	req := esapi.IndexRequest{
		Index:      i.index,
		DocumentID: rec.ID,
		Body:       bytes.NewReader(body),
	}
	res, err := req.Do(ctx, i.client)
	if err != nil {
		return fmt.Errorf("index revenue record: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("index revenue record: %s", res.Status())
	}
	return nil
}
