package providers

import (
	"context"

	"github.com/mytegroup/billtracker/internal/domain/entities"
)

// BillSearchResult is one ranked hit.
type BillSearchResult struct {
	Href          string  `json:"href"`
	BillNumber    string  `json:"bill_number"`
	Title         string  `json:"title"`
	CurrentStatus string  `json:"current_status"`
	Sponsor       string  `json:"sponsor"`
	Score         float64 `json:"score"`
}

// BillSearchIndex keeps a full-text index of stored bills.
type BillSearchIndex interface {
	InitSchema(ctx context.Context, reset bool) error
	Index(ctx context.Context, bills []*entities.BillRecord) error
	Search(ctx context.Context, query string, limit int) ([]BillSearchResult, error)
}
