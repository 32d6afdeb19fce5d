package services

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/mytegroup/billtracker/internal/application/enrichment"
	"github.com/mytegroup/billtracker/internal/domain/entities"
	"github.com/mytegroup/billtracker/internal/domain/providers"
	"github.com/mytegroup/billtracker/internal/infrastructure/observability"
	"github.com/mytegroup/billtracker/pkg/config"
)

// EnrichmentStatus is the result of enriching one bill.
type EnrichmentStatus string

const (
	EnrichmentStatusEnriched EnrichmentStatus = "enriched"
	EnrichmentStatusSkipped  EnrichmentStatus = "skipped"
	EnrichmentStatusFailed   EnrichmentStatus = "failed"
)

// EnrichmentOutcome reports what happened to one bill. Bill is set only when
// Status is enriched.
type EnrichmentOutcome struct {
	Href         string                     `json:"href"`
	BillNumber   string                     `json:"bill_number"`
	Status       EnrichmentStatus           `json:"status"`
	Reason       string                     `json:"reason,omitempty"`
	FailedFields []entities.EnrichmentField `json:"failed_fields,omitempty"`
	// Degraded is set when every model-backed field fell back to its default.
	Degraded bool                 `json:"degraded,omitempty"`
	Bill     *entities.BillRecord `json:"-"`
}

// BillEnricher enriches a single bill.
type BillEnricher interface {
	Enrich(ctx context.Context, bill *entities.BillRecord) *EnrichmentOutcome
}

// BillEnrichmentService runs every registered enrichment for one bill.
type BillEnrichmentService struct {
	registry         *enrichment.Registry
	generator        providers.TextGenerator
	minContentLength int
	callTimeout      time.Duration
	now              func() time.Time
}

// NewBillEnrichmentService creates a new bill enrichment service
func NewBillEnrichmentService(registry *enrichment.Registry, generator providers.TextGenerator, cfg config.EnrichmentConfig) *BillEnrichmentService {
	if registry == nil {
		registry = enrichment.DefaultRegistry()
	}
	timeout := cfg.CallTimeout
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	return &BillEnrichmentService{
		registry:         registry,
		generator:        generator,
		minContentLength: cfg.MinContentLength,
		callTimeout:      timeout,
		now:              time.Now,
	}
}

// Enrich never returns an error: precondition failures and per-field failures
// are reported in the outcome. The input bill is not modified.
func (s *BillEnrichmentService) Enrich(ctx context.Context, bill *entities.BillRecord) *EnrichmentOutcome {
	if bill == nil {
		return &EnrichmentOutcome{Status: EnrichmentStatusFailed, Reason: "missing bill"}
	}

	outcome := &EnrichmentOutcome{Href: bill.Href, BillNumber: bill.BillNumber}
	switch {
	case bill.Href == "":
		outcome.Status = EnrichmentStatusFailed
		outcome.Reason = "missing href"
		return outcome
	case bill.BillNumber == "":
		outcome.Status = EnrichmentStatusFailed
		outcome.Reason = "missing bill_number"
		return outcome
	}

	if n := utf8.RuneCountInString(bill.BillContent); n <= s.minContentLength {
		outcome.Status = EnrichmentStatusSkipped
		outcome.Reason = fmt.Sprintf("bill content has %d characters, need more than %d", n, s.minContentLength)
		observability.RecordBillEnrichment(ctx, string(outcome.Status), 0)
		return outcome
	}

	ctx, span := observability.StartSpan(ctx, "enrichment.bill")
	defer span.End()
	observability.SetSpanAttributes(span,
		attribute.String("bill.href", bill.Href),
		attribute.String("bill.number", bill.BillNumber),
	)
	logger := observability.LoggerFromContext(ctx).With().
		Str("href", bill.Href).
		Str("bill_number", bill.BillNumber).
		Logger()

	start := s.now()
	result := bill.Clone()

	for _, d := range enrichment.Derivations() {
		value, err := derive(d, bill)
		if err != nil {
			logger.Error().Err(err).Str("field", string(d.Field)).Msg("derived field failed")
			outcome.FailedFields = append(outcome.FailedFields, d.Field)
			observability.RecordFieldFailure(ctx, string(d.Field))
		}
		result.SetEnrichment(d.Field, value)
	}

	functions := s.registry.Functions()
	values := make([]entities.FieldValue, len(functions))
	errs := make([]error, len(functions))

	var g errgroup.Group
	g.SetLimit(len(functions))
	for i, fn := range functions {
		g.Go(func() error {
			values[i], errs[i] = s.runField(ctx, fn, bill, start)
			return nil
		})
	}
	_ = g.Wait()

	modelFailures := 0
	for i, fn := range functions {
		result.SetEnrichment(fn.Field, values[i])
		if errs[i] != nil {
			modelFailures++
			outcome.FailedFields = append(outcome.FailedFields, fn.Field)
			observability.RecordFieldFailure(ctx, string(fn.Field))
			logger.Warn().Err(errs[i]).Str("field", string(fn.Field)).Msg("enrichment field fell back to default")
		}
	}

	duration := s.now().Sub(start)
	if len(functions) > 0 && modelFailures == len(functions) {
		outcome.Degraded = true
		outcome.Reason = "every enrichment call failed"
		observability.RecordError(span, fmt.Errorf("%s: %s", bill.Href, outcome.Reason))
	}

	stamped := s.now().UTC()
	result.AIEnhancementDate = &stamped

	outcome.Status = EnrichmentStatusEnriched
	outcome.Bill = result
	observability.RecordBillEnrichment(ctx, string(outcome.Status), duration)
	logger.Info().
		Int("failed_fields", len(outcome.FailedFields)).
		Bool("degraded", outcome.Degraded).
		Dur("duration", duration).
		Msg("bill enriched")
	return outcome
}

// runField performs one model-backed enrichment with its own deadline. A panic
// in the function is reported as a field failure.
func (s *BillEnrichmentService) runField(ctx context.Context, fn enrichment.Function, bill *entities.BillRecord, now time.Time) (value entities.FieldValue, err error) {
	defer func() {
		if r := recover(); r != nil {
			value = fn.Shape.Default()
			err = fmt.Errorf("enrichment %s panicked: %v", fn.Field, r)
		}
	}()

	callCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()

	callCtx, span := observability.StartSpan(callCtx, "enrichment.field")
	defer span.End()
	observability.SetSpanAttributes(span, attribute.String("enrichment.field", string(fn.Field)))

	value, err = fn.Run(callCtx, s.generator, bill, now)
	observability.RecordError(span, err)
	return value, err
}

func derive(d enrichment.Derivation, bill *entities.BillRecord) (value entities.FieldValue, err error) {
	defer func() {
		if r := recover(); r != nil {
			shape, _ := entities.ShapeOf(d.Field)
			value = shape.Default()
			err = fmt.Errorf("derive %s panicked: %v", d.Field, r)
		}
	}()
	return d.Derive(bill), nil
}
