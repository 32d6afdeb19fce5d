package typesense

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mytegroup/billtracker/pkg/config"
)

func TestBillsSchema(t *testing.T) {
	schema := BillsSchema()
	assert.Equal(t, BillsCollection, schema.Name)
	require.NotNil(t, schema.DefaultSortingField)
	assert.Equal(t, "updated_at", *schema.DefaultSortingField)

	names := make([]string, 0, len(schema.Fields))
	for _, f := range schema.Fields {
		names = append(names, f.Name)
	}
	assert.Contains(t, names, "bill_number")
	assert.Contains(t, names, "topics")
}

func TestClient_Integration(t *testing.T) {
	url := os.Getenv("TYPESENSE_TEST_URL")
	if url == "" {
		t.Skip("TYPESENSE_TEST_URL not set")
	}

	client, err := NewClient(&config.TypesenseConfig{URL: url, APIKey: os.Getenv("TYPESENSE_TEST_API_KEY")})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, client.InitSchema(ctx, true))

	err = client.UpsertBill(ctx, map[string]interface{}{
		"id":          "c-12",
		"href":        "/bill/44-1/c-12",
		"bill_number": "C-12",
		"title":       "An Act respecting clean water",
		"enriched":    false,
		"updated_at":  time.Now().Unix(),
	})
	assert.NoError(t, err)
}
