package repositories

import (
	"context"

	"github.com/mytegroup/billtracker/internal/domain/entities"
)

// BillMutator receives the stored bills keyed by href and returns the records to merge back.
type BillMutator func(existing map[string]*entities.BillRecord) ([]*entities.BillRecord, error)

// BillStore defines the durable collection of bill records
type BillStore interface {
	// Load returns every stored bill keyed by href
	Load(ctx context.Context) (map[string]*entities.BillRecord, error)

	// List returns every stored bill in file order
	List(ctx context.Context) ([]*entities.BillRecord, error)

	// MergeAndSave merges updates into the stored set and writes it once
	MergeAndSave(ctx context.Context, updates []*entities.BillRecord) error

	// Update runs fn and merges its result under the same guard as the read
	Update(ctx context.Context, fn BillMutator) error
}
