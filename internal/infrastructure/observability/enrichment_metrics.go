package observability

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type enrichmentMetrics struct {
	bills         metric.Int64Counter
	fieldFailures metric.Int64Counter
	billDuration  metric.Float64Histogram
	batchDuration metric.Float64Histogram
}

var (
	enrichmentMetricsOnce sync.Once
	enrichmentInstruments *enrichmentMetrics
)

func ensureEnrichmentMetrics() *enrichmentMetrics {
	enrichmentMetricsOnce.Do(func() {
		meter := otel.Meter(instrumentationName + "/enrichment")

		bills, err := meter.Int64Counter(
			"enrichment.bills",
			metric.WithDescription("Bills processed by the enrichment orchestrator, by outcome"),
		)
		if err != nil {
			return
		}
		fieldFailures, err := meter.Int64Counter(
			"enrichment.field.failures",
			metric.WithDescription("Enrichment fields that fell back to their default value"),
		)
		if err != nil {
			return
		}
		billDuration, err := meter.Float64Histogram(
			"enrichment.bill.duration",
			metric.WithDescription("Time to enrich one bill in milliseconds"),
			metric.WithUnit("ms"),
		)
		if err != nil {
			return
		}
		batchDuration, err := meter.Float64Histogram(
			"enrichment.batch.duration",
			metric.WithDescription("Time to run one enrichment batch in milliseconds"),
			metric.WithUnit("ms"),
		)
		if err != nil {
			return
		}

		enrichmentInstruments = &enrichmentMetrics{
			bills:         bills,
			fieldFailures: fieldFailures,
			billDuration:  billDuration,
			batchDuration: batchDuration,
		}
	})
	return enrichmentInstruments
}

// RecordBillEnrichment records the outcome and duration of one bill.
func RecordBillEnrichment(ctx context.Context, status string, duration time.Duration) {
	m := ensureEnrichmentMetrics()
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("enrichment.status", status))
	m.bills.Add(ctx, 1, attrs)
	m.billDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
}

// RecordFieldFailure counts a field that was replaced by its default.
func RecordFieldFailure(ctx context.Context, field string) {
	m := ensureEnrichmentMetrics()
	if m == nil {
		return
	}
	m.fieldFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("enrichment.field", field)))
}

// RecordBatchDuration records how long a batch run took.
func RecordBatchDuration(ctx context.Context, duration time.Duration) {
	m := ensureEnrichmentMetrics()
	if m == nil {
		return
	}
	m.batchDuration.Record(ctx, float64(duration.Milliseconds()))
}
