package search

import (
	"time"

	"github.com/google/uuid"

	"github.com/mytegroup/billtracker/internal/domain/entities"
)

// MaxIndexedTopics bounds the topics stored per document.
const MaxIndexedTopics = 50

// DocumentID derives a stable Typesense id from a bill href.
func DocumentID(href string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(href)).String()
}

// BuildBillDocument flattens a bill into the bills collection schema
func BuildBillDocument(bill *entities.BillRecord, now time.Time) map[string]interface{} {
	if bill == nil || bill.Href == "" {
		return nil
	}

	topics := bill.Topics()
	if len(topics) > MaxIndexedTopics {
		topics = topics[:MaxIndexedTopics]
	}

	updatedAt := now.Unix()
	if bill.AIEnhancementDate != nil {
		updatedAt = bill.AIEnhancementDate.Unix()
	}

	doc := map[string]interface{}{
		"id":                 DocumentID(bill.Href),
		"href":               bill.Href,
		"bill_number":        bill.BillNumber,
		"title":              bill.Title,
		"sponsor":            bill.Sponsor,
		"current_status":     bill.CurrentStatus,
		"parliament_session": bill.ParliamentSession,
		"topics":             topics,
		"enriched":           bill.IsEnriched(),
		"updated_at":         updatedAt,
	}
	if v, ok := bill.EnrichmentValue(entities.FieldSummary); ok {
		if content := v.Get("content").Text; content != "" {
			doc["summary"] = content
		}
	}
	return doc
}
