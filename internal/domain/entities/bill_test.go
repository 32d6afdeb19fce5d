package entities

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleBill() *BillRecord {
	return &BillRecord{
		Href:               "https://www.parl.ca/legisinfo/en/bill/44-1/c-11",
		BillNumber:         "C-11",
		Title:              "Online Streaming Act",
		CurrentStatus:      "Royal assent received",
		HouseFirstReading:  ReadingCompleted,
		SenateFirstReading: ReadingCompleted,
		RoyalAssent:        ReadingCompleted,
		Sponsor:            "Minister of Canadian Heritage",
	}
}

func TestBillRecord_JSONRoundTrip(t *testing.T) {
	bill := sampleBill()
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	bill.AIEnhancementDate = &ts
	bill.ChangeStatus = BoolPtr(true)
	bill.SetEnrichment(FieldCommittees, ListValue("Heritage"))
	bill.Extra = map[string]json.RawMessage{"scraped_at": json.RawMessage(`"2024-02-01"`)}

	data, err := json.Marshal(bill)
	require.NoError(t, err)

	var flat map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &flat))
	assert.Equal(t, "C-11", flat["bill_number"])
	assert.Equal(t, []interface{}{"Heritage"}, flat["committees"])
	assert.Equal(t, "2024-02-01", flat["scraped_at"])
	assert.Equal(t, true, flat["change_status"])

	var decoded BillRecord
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, bill.Href, decoded.Href)
	assert.Equal(t, ReadingCompleted, decoded.RoyalAssent)
	assert.True(t, decoded.AIEnhancementDate.Equal(ts))
	assert.Equal(t, []string{"Heritage"}, decoded.Enrichment[FieldCommittees].List)
	assert.JSONEq(t, `"2024-02-01"`, string(decoded.Extra["scraped_at"]))
}

func TestBillRecord_UnmarshalKeepsMisshapenEnrichment(t *testing.T) {
	var bill BillRecord
	require.NoError(t, json.Unmarshal([]byte(`{"href":"h","committees":{"a":1}}`), &bill))

	_, ok := bill.EnrichmentValue(FieldCommittees)
	assert.False(t, ok)
	assert.JSONEq(t, `{"a":1}`, string(bill.Extra["committees"]))
}

func TestBillRecord_MergeFrom(t *testing.T) {
	bill := sampleBill()
	bill.SetEnrichment(FieldCommittees, ListValue("Heritage"))

	update := &BillRecord{
		Href:          "https://other",
		CurrentStatus: "In committee",
		ChangeStatus:  BoolPtr(false),
	}
	update.SetEnrichment(FieldAmendments, ListValue("A1"))

	bill.MergeFrom(update)

	assert.Equal(t, "https://www.parl.ca/legisinfo/en/bill/44-1/c-11", bill.Href)
	assert.Equal(t, "In committee", bill.CurrentStatus)
	assert.Equal(t, "Online Streaming Act", bill.Title)
	assert.False(t, *bill.ChangeStatus)
	assert.Contains(t, bill.Enrichment, FieldCommittees)
	assert.Contains(t, bill.Enrichment, FieldAmendments)
}

func TestBillRecord_ChangedFields(t *testing.T) {
	a := sampleBill()
	b := a.Clone()
	assert.Empty(t, a.ChangedFields(b))

	b.CurrentStatus = "Defeated"
	b.RoyalAssent = ReadingNotCompleted
	b.Sponsor = "someone else"
	assert.Equal(t, []string{"current_status", "royal_assent"}, a.ChangedFields(b))

	partial := &BillRecord{Href: a.Href, Title: a.Title}
	assert.Empty(t, a.ChangedFields(partial))
}

func TestBillRecord_CloneIsIndependent(t *testing.T) {
	a := sampleBill()
	a.ChangeStatus = BoolPtr(true)
	a.SetEnrichment(FieldAmendments, ListValue("x"))

	b := a.Clone()
	*b.ChangeStatus = false
	b.Enrichment[FieldAmendments].List[0] = "y"

	assert.True(t, *a.ChangeStatus)
	assert.Equal(t, "x", a.Enrichment[FieldAmendments].List[0])
}

func TestTrackedFields_Count(t *testing.T) {
	assert.Len(t, TrackedFields(), 12)
	assert.Len(t, sampleBill().TrackedValues(), 12)
}

func TestBillRecord_Topics(t *testing.T) {
	bill := sampleBill()
	bill.SetEnrichment(FieldCommittees, ListValue("Finance", "Heritage"))
	bill.SetEnrichment(FieldNamedEntities, RecordValue(map[string]FieldValue{
		"people":        ListValue(),
		"organizations": ListValue("finance", " CRTC ", ""),
		"locations":     ListValue(),
	}))

	assert.Equal(t, []string{"CRTC", "Finance", "Heritage"}, bill.Topics())
	assert.Empty(t, (&BillRecord{Href: "x"}).Topics())
}
