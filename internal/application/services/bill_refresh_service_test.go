package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mytegroup/billtracker/internal/domain/entities"
	"github.com/mytegroup/billtracker/internal/domain/providers"
)

func TestBillRefreshService_Refresh_FlagsChanges(t *testing.T) {
	ctx := context.Background()

	stamped := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	a := newBill("https://example.org/bill/a", "C-100", 600)
	a.AIEnhancementDate = &stamped
	a.SetEnrichment(entities.FieldCommittees, entities.ListValue("Standing Committee on Justice"))
	b := newBill("https://example.org/bill/b", "C-101", 600)
	store := seededStore(t, a, b)

	scrapedA := newBill(a.Href, "C-100", 600)
	scrapedB := newBill(b.Href, "C-101", 600)
	scrapedB.CurrentStatus = "At third reading in the House of Commons"
	scrapedB.HouseSecondReading = entities.ReadingCompleted
	scrapedC := newBill("https://example.org/bill/c", "S-5", 40)

	svc := NewBillRefreshService(store)
	summary, err := svc.Refresh(ctx, []*entities.BillRecord{scrapedA, scrapedB, scrapedC})
	require.NoError(t, err)

	assert.Equal(t, 3, summary.TotalScraped)
	assert.Equal(t, 1, summary.New)
	assert.Equal(t, 1, summary.Changed)
	assert.Equal(t, 1, summary.Unchanged)
	assert.Equal(t, []string{scrapedC.Href}, summary.NewHrefs)
	assert.Equal(t, []string{b.Href}, summary.ChangedHrefs)

	stored, err := store.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, stored[a.Href].ChangeStatus)
	assert.False(t, *stored[a.Href].ChangeStatus)
	assert.True(t, *stored[b.Href].ChangeStatus)
	assert.True(t, *stored[scrapedC.Href].ChangeStatus)

	assert.Equal(t, "At third reading in the House of Commons", stored[b.Href].CurrentStatus)
	committees, ok := stored[a.Href].EnrichmentValue(entities.FieldCommittees)
	require.True(t, ok)
	assert.Equal(t, []string{"Standing Committee on Justice"}, committees.List)
	assert.True(t, stored[a.Href].AIEnhancementDate.Equal(stamped))
}

func TestBillRefreshService_Refresh_InvalidAndDuplicateRecords(t *testing.T) {
	ctx := context.Background()
	store := seededStore(t)

	first := newBill("https://example.org/bill/d", "C-200", 10)
	second := newBill("https://example.org/bill/d", "C-200", 10)
	second.Title = "An Act to amend the Criminal Code"

	svc := NewBillRefreshService(store)
	summary, err := svc.Refresh(ctx, []*entities.BillRecord{nil, {BillNumber: "C-201"}, first, second})
	require.NoError(t, err)

	assert.Equal(t, 4, summary.TotalScraped)
	assert.Equal(t, 2, summary.Invalid)
	assert.Equal(t, 1, summary.New)

	bills, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, bills, 1)
	assert.Equal(t, "An Act to amend the Criminal Code", bills[0].Title)
}

func TestBillRefreshService_Refresh_PublishesEvents(t *testing.T) {
	ctx := context.Background()
	existing := newBill("https://example.org/bill/e", "C-300", 10)
	store := seededStore(t, existing)

	changed := newBill(existing.Href, "C-300", 10)
	changed.RoyalAssent = entities.ReadingCompleted
	created := newBill("https://example.org/bill/f", "C-301", 10)

	bus := new(MockEventBus)
	bus.On("Publish", mock.Anything, providers.EventChannelBillUpdates, mock.MatchedBy(func(e *entities.BillEvent) bool {
		return e.EventType == entities.BillEventChanged && e.Href == existing.Href &&
			assert.ObjectsAreEqual([]string{"royal_assent"}, e.ChangedFields)
	})).Return(nil).Once()
	bus.On("Publish", mock.Anything, providers.EventChannelBillUpdates, mock.MatchedBy(func(e *entities.BillEvent) bool {
		return e.EventType == entities.BillEventCreated && e.Href == created.Href
	})).Return(assert.AnError).Once()

	svc := NewBillRefreshService(store)
	svc.SetEventBus(bus)

	summary, err := svc.Refresh(ctx, []*entities.BillRecord{changed, created})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Changed)
	assert.Equal(t, 1, summary.New)
	bus.AssertExpectations(t)
}

func TestRefreshThenEnrich_ShortBillIsSkipped(t *testing.T) {
	ctx := context.Background()
	store := seededStore(t)

	scraped := &entities.BillRecord{
		Href:          "x1",
		BillNumber:    "C-1",
		Title:         "An Act respecting the oath of allegiance",
		CurrentStatus: "Outside the Order of Precedence",
		BillContent:   entities.NoTextAvailable,
	}

	refresh, err := NewBillRefreshService(store).Refresh(ctx, []*entities.BillRecord{scraped})
	require.NoError(t, err)
	assert.Equal(t, 1, refresh.New)

	gen := new(MockTextGenerator)
	batch := NewBatchEnrichmentService(store, NewBillEnrichmentService(nil, gen, enrichmentConfig()), enrichmentConfig())
	summary, err := batch.Run(ctx, BatchOptions{})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Total)
	assert.Equal(t, 1, summary.Processed())
	assert.Equal(t, 0, summary.Enriched)
	assert.Equal(t, 1, summary.Skipped)
	gen.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything, mock.Anything, mock.Anything)

	stored, err := store.Load(ctx)
	require.NoError(t, err)
	bill := stored["x1"]
	require.NotNil(t, bill)
	assert.True(t, *bill.ChangeStatus)
	assert.False(t, bill.IsEnriched())
	assert.Empty(t, bill.Enrichment)
}
