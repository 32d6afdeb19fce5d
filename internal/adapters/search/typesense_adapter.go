package search

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/typesense/typesense-go/v2/typesense/api"
	"github.com/typesense/typesense-go/v2/typesense/api/pointer"
	"golang.org/x/sync/errgroup"

	"github.com/mytegroup/billtracker/internal/domain/entities"
	"github.com/mytegroup/billtracker/internal/domain/providers"
	apperrors "github.com/mytegroup/billtracker/pkg/errors"
)

const (
	defaultSearchLimit = 20
	maxSearchLimit     = 100
	indexConcurrency   = 8
	searchQueryBy      = "bill_number,title,summary,sponsor,topics"
)

// BillIndexClient is the subset of the Typesense client used by the adapter.
type BillIndexClient interface {
	InitSchema(ctx context.Context, reset bool) error
	UpsertBill(ctx context.Context, document map[string]interface{}) error
	SearchBills(ctx context.Context, params *api.SearchCollectionParams) (*api.SearchResult, error)
}

// TypesenseAdapter implements bill search using Typesense
type TypesenseAdapter struct {
	client BillIndexClient
	now    func() time.Time
}

// Ensure TypesenseAdapter implements BillSearchIndex
var _ providers.BillSearchIndex = (*TypesenseAdapter)(nil)

// NewTypesenseAdapter creates a new Typesense adapter
func NewTypesenseAdapter(client BillIndexClient) *TypesenseAdapter {
	return &TypesenseAdapter{client: client, now: time.Now}
}

// InitSchema ensures the bills collection exists
func (a *TypesenseAdapter) InitSchema(ctx context.Context, reset bool) error {
	if err := a.client.InitSchema(ctx, reset); err != nil {
		return apperrors.NewExternalError("failed to initialise search schema", err)
	}
	return nil
}

// Index upserts every bill. All bills are attempted; the first failure is returned.
func (a *TypesenseAdapter) Index(ctx context.Context, bills []*entities.BillRecord) error {
	now := a.now()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(indexConcurrency)

	indexed := 0
	for _, bill := range bills {
		doc := BuildBillDocument(bill, now)
		if doc == nil {
			continue
		}
		indexed++
		href := bill.Href
		g.Go(func() error {
			if err := a.client.UpsertBill(gctx, doc); err != nil {
				log.Warn().Err(err).Str("href", href).Msg("failed to index bill")
				return fmt.Errorf("index %s: %w", href, err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return apperrors.NewExternalError("failed to index bills", err)
	}
	log.Debug().Int("bills", indexed).Msg("bills indexed")
	return nil
}

// Search runs a full-text query over the indexed bills
func (a *TypesenseAdapter) Search(ctx context.Context, query string, limit int) ([]providers.BillSearchResult, error) {
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}

	q := query
	if q == "" {
		q = "*"
	}
	params := &api.SearchCollectionParams{
		Q:       pointer.String(q),
		QueryBy: pointer.String(searchQueryBy),
		PerPage: pointer.Int(limit),
	}

	result, err := a.client.SearchBills(ctx, params)
	if err != nil {
		return nil, apperrors.NewExternalError("failed to search bills", err)
	}
	return hitsToResults(result), nil
}

func hitsToResults(result *api.SearchResult) []providers.BillSearchResult {
	results := []providers.BillSearchResult{}
	if result == nil || result.Hits == nil {
		return results
	}

	for _, hit := range *result.Hits {
		if hit.Document == nil {
			continue
		}
		doc := *hit.Document
		href, _ := doc["href"].(string)
		if href == "" {
			continue
		}
		r := providers.BillSearchResult{Href: href}
		r.BillNumber, _ = doc["bill_number"].(string)
		r.Title, _ = doc["title"].(string)
		r.CurrentStatus, _ = doc["current_status"].(string)
		r.Sponsor, _ = doc["sponsor"].(string)
		if hit.TextMatch != nil {
			r.Score = float64(*hit.TextMatch)
		}
		results = append(results, r)
	}
	return results
}
