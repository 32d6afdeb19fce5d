package typesense

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/typesense/typesense-go/v2/typesense"
	"github.com/typesense/typesense-go/v2/typesense/api"
	"github.com/typesense/typesense-go/v2/typesense/api/pointer"

	"github.com/mytegroup/billtracker/pkg/config"
	"github.com/mytegroup/billtracker/pkg/retry"
)

const (
	BillsCollection = "bills"
)

// Client represents a Typesense client
type Client struct {
	client *typesense.Client
}

// NewClient creates a new Typesense client with exponential backoff retry
func NewClient(cfg *config.TypesenseConfig) (*Client, error) {
	client := typesense.NewClient(
		typesense.WithServer(cfg.URL),
		typesense.WithAPIKey(cfg.APIKey),
		typesense.WithConnectionTimeout(5*time.Second),
	)

	err := retry.DoWithLog(
		context.Background(),
		retry.DefaultConfig(),
		"Typesense",
		func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_, err := client.Health(ctx, 2*time.Second)
			return err
		},
		func(attempt int, err error, nextDelay time.Duration) {
			log.Warn().Err(err).Int("attempt", attempt).Dur("retry_in", nextDelay).Msg("Typesense connection attempt failed")
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Typesense after retries: %w", err)
	}

	log.Info().Str("url", cfg.URL).Msg("Successfully connected to Typesense")
	return &Client{client: client}, nil
}

// Client returns the underlying Typesense client
func (c *Client) Client() *typesense.Client {
	return c.client
}

// BillsSchema describes the bills collection
func BillsSchema() *api.CollectionSchema {
	return &api.CollectionSchema{
		Name: BillsCollection,
		Fields: []api.Field{
			{Name: "id", Type: "string"},
			{Name: "href", Type: "string", Index: pointer.False()},
			{Name: "bill_number", Type: "string"},
			{Name: "title", Type: "string"},
			{Name: "sponsor", Type: "string", Facet: pointer.True(), Optional: pointer.True()},
			{Name: "current_status", Type: "string", Facet: pointer.True(), Optional: pointer.True()},
			{Name: "parliament_session", Type: "string", Facet: pointer.True(), Optional: pointer.True()},
			{Name: "summary", Type: "string", Optional: pointer.True()},
			{Name: "topics", Type: "string[]", Facet: pointer.True(), Optional: pointer.True()},
			{Name: "enriched", Type: "bool"},
			{Name: "updated_at", Type: "int64"},
		},
		DefaultSortingField: pointer.String("updated_at"),
	}
}

// InitSchema ensures the bills collection exists. With reset an existing
// collection is dropped first.
func (c *Client) InitSchema(ctx context.Context, reset bool) error {
	collections, err := c.client.Collections().Retrieve(ctx)
	if err != nil {
		return fmt.Errorf("failed to retrieve collections: %w", err)
	}

	exists := false
	for _, col := range collections {
		if col.Name == BillsCollection {
			exists = true
			break
		}
	}

	if exists && reset {
		if _, err := c.client.Collection(BillsCollection).Delete(ctx); err != nil {
			return fmt.Errorf("failed to drop collection: %w", err)
		}
		log.Info().Str("collection", BillsCollection).Msg("Dropped Typesense collection")
		exists = false
	}
	if exists {
		log.Debug().Str("collection", BillsCollection).Msg("Typesense collection already exists")
		return nil
	}

	if _, err := c.client.Collections().Create(ctx, BillsSchema()); err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	log.Info().Str("collection", BillsCollection).Msg("Created Typesense collection")
	return nil
}

// UpsertBill indexes one bill document
func (c *Client) UpsertBill(ctx context.Context, document map[string]interface{}) error {
	_, err := c.client.Collection(BillsCollection).Documents().Upsert(ctx, document)
	return err
}

// SearchBills runs a search against the bills collection
func (c *Client) SearchBills(ctx context.Context, params *api.SearchCollectionParams) (*api.SearchResult, error) {
	return c.client.Collection(BillsCollection).Documents().Search(ctx, params)
}
