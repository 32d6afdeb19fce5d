package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/mytegroup/billtracker/internal/application/services"
	"github.com/mytegroup/billtracker/internal/domain/entities"
	"github.com/mytegroup/billtracker/internal/domain/providers"
)

const defaultSearchLimit = 20

// BillQueryService defines the dashboard reads used by the handler.
type BillQueryService interface {
	List(ctx context.Context, filter services.BillFilter) ([]*entities.BillRecord, error)
	Get(ctx context.Context, href string) (*entities.BillRecord, error)
	Changed(ctx context.Context) ([]*entities.BillRecord, error)
	Aggregate(ctx context.Context, filter services.BillFilter) (*services.BillAggregates, error)
}

// EnrichmentRunner defines the batch operations used by the handler.
type EnrichmentRunner interface {
	Run(ctx context.Context, opts services.BatchOptions) (*services.BatchSummary, error)
	RunSingle(ctx context.Context, href string) (*services.EnrichmentOutcome, error)
}

// BillHandler serves the bill dashboard, search and enrichment routes.
type BillHandler struct {
	dashboard BillQueryService
	enricher  EnrichmentRunner
	search    providers.BillSearchIndex
}

// NewBillHandler creates a new bill handler. enricher and search may be nil,
// which turns their routes into 503 responses.
func NewBillHandler(dashboard BillQueryService, enricher EnrichmentRunner, search providers.BillSearchIndex) *BillHandler {
	return &BillHandler{dashboard: dashboard, enricher: enricher, search: search}
}

type billListResponse struct {
	Bills []*entities.BillRecord `json:"bills"`
	Count int                    `json:"count"`
}

func filterFromQuery(r *http.Request) services.BillFilter {
	q := r.URL.Query()
	return services.BillFilter{
		Status:  strings.TrimSpace(q.Get("status")),
		Sponsor: strings.TrimSpace(q.Get("sponsor")),
		Topic:   strings.TrimSpace(q.Get("topic")),
	}
}

// ListBills handles GET /api/bills
func (h *BillHandler) ListBills(w http.ResponseWriter, r *http.Request) {
	bills, err := h.dashboard.List(r.Context(), filterFromQuery(r))
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	if bills == nil {
		bills = []*entities.BillRecord{}
	}
	respondWithJSON(w, http.StatusOK, billListResponse{Bills: bills, Count: len(bills)})
}

// GetSummary handles GET /api/bills/summary
func (h *BillHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	aggregates, err := h.dashboard.Aggregate(r.Context(), filterFromQuery(r))
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, aggregates)
}

// ListChanged handles GET /api/bills/changed
func (h *BillHandler) ListChanged(w http.ResponseWriter, r *http.Request) {
	bills, err := h.dashboard.Changed(r.Context())
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	if bills == nil {
		bills = []*entities.BillRecord{}
	}
	respondWithJSON(w, http.StatusOK, billListResponse{Bills: bills, Count: len(bills)})
}

// GetBill handles GET /api/bills/detail?href=. Hrefs are URLs, so they travel
// in the query rather than the path.
func (h *BillHandler) GetBill(w http.ResponseWriter, r *http.Request) {
	href := strings.TrimSpace(r.URL.Query().Get("href"))
	if href == "" {
		respondWithError(w, http.StatusBadRequest, "href is required")
		return
	}

	bill, err := h.dashboard.Get(r.Context(), href)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, bill)
}

type searchResponse struct {
	Query   string                       `json:"query"`
	Results []providers.BillSearchResult `json:"results"`
	Count   int                          `json:"count"`
}

// SearchBills handles GET /api/bills/search
func (h *BillHandler) SearchBills(w http.ResponseWriter, r *http.Request) {
	if h.search == nil {
		respondWithError(w, http.StatusServiceUnavailable, "search is not configured")
		return
	}

	query := strings.TrimSpace(r.URL.Query().Get("q"))
	limit := defaultSearchLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			respondWithError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	results, err := h.search.Search(r.Context(), query, limit)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	if results == nil {
		results = []providers.BillSearchResult{}
	}
	respondWithJSON(w, http.StatusOK, searchResponse{Query: query, Results: results, Count: len(results)})
}

type enrichmentRequest struct {
	// All re-enriches bills that already carry enrichment.
	All   bool     `json:"all"`
	Href  string   `json:"href"`
	Hrefs []string `json:"hrefs"`
}

// RunEnrichment handles POST /api/enrichment/run. A single href runs one bill
// and returns its outcome; otherwise the batch summary is returned.
func (h *BillHandler) RunEnrichment(w http.ResponseWriter, r *http.Request) {
	if h.enricher == nil {
		respondWithError(w, http.StatusServiceUnavailable, "enrichment is not configured")
		return
	}

	var req enrichmentRequest
	if r.ContentLength != 0 {
		if !decodeJSON(w, r, &req) {
			return
		}
	}

	if href := strings.TrimSpace(req.Href); href != "" {
		outcome, err := h.enricher.RunSingle(r.Context(), href)
		if err != nil {
			respondWithAppError(w, r, err)
			return
		}
		respondWithJSON(w, http.StatusOK, outcome)
		return
	}

	opts := services.BatchOptions{Hrefs: req.Hrefs}
	if req.All {
		opts.SkipEnriched = entities.BoolPtr(false)
	}
	summary, err := h.enricher.Run(r.Context(), opts)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, summary)
}
