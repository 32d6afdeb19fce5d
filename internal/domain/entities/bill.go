package entities

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// ReadingStatus is the state of one legislative stage as published by the parliament site.
type ReadingStatus string

const (
	ReadingCompleted     ReadingStatus = "Completed"
	ReadingNotCompleted  ReadingStatus = "Not Completed"
	ReadingNotApplicable ReadingStatus = "Not Applicable"
)

// Valid reports whether s is one of the published values.
func (s ReadingStatus) Valid() bool {
	switch s {
	case ReadingCompleted, ReadingNotCompleted, ReadingNotApplicable:
		return true
	}
	return false
}

// Detail placeholders written by the scraper when a bill page has no value yet.
const (
	NoTextAvailable = "No Text Available Yet"
	NotAvailable    = "Not Available"
)

// BillRecord is one bill in the dataset. Href is the identity and never changes
// once a record exists; every other field is last-write-wins.
type BillRecord struct {
	Href                    string
	BillNumber              string
	Title                   string
	CurrentStatus           string
	LastMajorStageCompleted string
	ParliamentSession       string
	SenateFirstReading      ReadingStatus
	SenateSecondReading     ReadingStatus
	SenateThirdReading      ReadingStatus
	HouseFirstReading       ReadingStatus
	HouseSecondReading      ReadingStatus
	HouseThirdReading       ReadingStatus
	RoyalAssent             ReadingStatus

	Sponsor      string
	BillType     string
	BillContent  string
	ContactEmail string

	ChangeStatus      *bool
	AIEnhancementDate *time.Time
	Enrichment        map[EnrichmentField]FieldValue

	// Extra keeps keys this version does not model so a rewrite does not drop them.
	Extra map[string]json.RawMessage
}

// billFields mirrors the persisted keys of a bill.
type billFields struct {
	Href                    string        `json:"href"`
	BillNumber              string        `json:"bill_number,omitempty"`
	Title                   string        `json:"title,omitempty"`
	CurrentStatus           string        `json:"current_status,omitempty"`
	LastMajorStageCompleted string        `json:"last_major_stage_completed,omitempty"`
	ParliamentSession       string        `json:"parliament_session,omitempty"`
	SenateFirstReading      ReadingStatus `json:"senate_first_reading,omitempty"`
	SenateSecondReading     ReadingStatus `json:"senate_second_reading,omitempty"`
	SenateThirdReading      ReadingStatus `json:"senate_third_reading,omitempty"`
	HouseFirstReading       ReadingStatus `json:"house_first_reading,omitempty"`
	HouseSecondReading      ReadingStatus `json:"house_second_reading,omitempty"`
	HouseThirdReading       ReadingStatus `json:"house_third_reading,omitempty"`
	RoyalAssent             ReadingStatus `json:"royal_assent,omitempty"`
	Sponsor                 string        `json:"sponsor,omitempty"`
	BillType                string        `json:"bill_type,omitempty"`
	BillContent             string        `json:"bill_content,omitempty"`
	ContactEmail            string        `json:"contact_email,omitempty"`
	AIEnhancementDate       *time.Time    `json:"ai_enhancement_date,omitempty"`
	ChangeStatus            *bool         `json:"change_status,omitempty"`
}

var modeledKeys = map[string]struct{}{
	"href": {}, "bill_number": {}, "title": {}, "current_status": {},
	"last_major_stage_completed": {}, "parliament_session": {},
	"senate_first_reading": {}, "senate_second_reading": {}, "senate_third_reading": {},
	"house_first_reading": {}, "house_second_reading": {}, "house_third_reading": {},
	"royal_assent": {}, "sponsor": {}, "bill_type": {}, "bill_content": {},
	"contact_email": {}, "ai_enhancement_date": {}, "change_status": {},
}

func (b *BillRecord) fields() billFields {
	return billFields{
		Href:                    b.Href,
		BillNumber:              b.BillNumber,
		Title:                   b.Title,
		CurrentStatus:           b.CurrentStatus,
		LastMajorStageCompleted: b.LastMajorStageCompleted,
		ParliamentSession:       b.ParliamentSession,
		SenateFirstReading:      b.SenateFirstReading,
		SenateSecondReading:     b.SenateSecondReading,
		SenateThirdReading:      b.SenateThirdReading,
		HouseFirstReading:       b.HouseFirstReading,
		HouseSecondReading:      b.HouseSecondReading,
		HouseThirdReading:       b.HouseThirdReading,
		RoyalAssent:             b.RoyalAssent,
		Sponsor:                 b.Sponsor,
		BillType:                b.BillType,
		BillContent:             b.BillContent,
		ContactEmail:            b.ContactEmail,
		AIEnhancementDate:       b.AIEnhancementDate,
		ChangeStatus:            b.ChangeStatus,
	}
}

func (b *BillRecord) setFields(f billFields) {
	b.Href = f.Href
	b.BillNumber = f.BillNumber
	b.Title = f.Title
	b.CurrentStatus = f.CurrentStatus
	b.LastMajorStageCompleted = f.LastMajorStageCompleted
	b.ParliamentSession = f.ParliamentSession
	b.SenateFirstReading = f.SenateFirstReading
	b.SenateSecondReading = f.SenateSecondReading
	b.SenateThirdReading = f.SenateThirdReading
	b.HouseFirstReading = f.HouseFirstReading
	b.HouseSecondReading = f.HouseSecondReading
	b.HouseThirdReading = f.HouseThirdReading
	b.RoyalAssent = f.RoyalAssent
	b.Sponsor = f.Sponsor
	b.BillType = f.BillType
	b.BillContent = f.BillContent
	b.ContactEmail = f.ContactEmail
	b.AIEnhancementDate = f.AIEnhancementDate
	b.ChangeStatus = f.ChangeStatus
}

// MarshalJSON flattens enrichment fields and unmodeled keys into the bill object.
func (b BillRecord) MarshalJSON() ([]byte, error) {
	base, err := json.Marshal(b.fields())
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.Write(base[:len(base)-1])

	writeMember := func(key string, value []byte) error {
		k, err := json.Marshal(key)
		if err != nil {
			return err
		}
		buf.WriteByte(',')
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(value)
		return nil
	}

	for _, field := range AllEnrichmentFields() {
		v, ok := b.Enrichment[field]
		if !ok {
			continue
		}
		encoded, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", field, err)
		}
		if err := writeMember(string(field), encoded); err != nil {
			return nil, err
		}
	}

	extraKeys := make([]string, 0, len(b.Extra))
	for k := range b.Extra {
		if _, modeled := modeledKeys[k]; modeled {
			continue
		}
		if _, enriched := b.Enrichment[EnrichmentField(k)]; enriched {
			continue
		}
		extraKeys = append(extraKeys, k)
	}
	sort.Strings(extraKeys)
	for _, k := range extraKeys {
		if err := writeMember(k, b.Extra[k]); err != nil {
			return nil, err
		}
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a flat bill object. Enrichment members that do not fit
// their declared shape are kept verbatim in Extra.
func (b *BillRecord) UnmarshalJSON(data []byte) error {
	var f billFields
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*b = BillRecord{}
	b.setFields(f)

	for key, value := range raw {
		if _, modeled := modeledKeys[key]; modeled {
			continue
		}
		if shape, ok := ShapeOf(EnrichmentField(key)); ok {
			decoded, err := shape.Decode(value)
			if err == nil {
				b.SetEnrichment(EnrichmentField(key), decoded)
				continue
			}
		}
		if b.Extra == nil {
			b.Extra = make(map[string]json.RawMessage)
		}
		b.Extra[key] = append(json.RawMessage(nil), value...)
	}
	return nil
}

// Identity returns the canonical join key.
func (b *BillRecord) Identity() string {
	return b.Href
}

// IsEnriched reports whether an enrichment pass has completed for the bill.
func (b *BillRecord) IsEnriched() bool {
	return b.AIEnhancementDate != nil
}

// SetEnrichment stores a value for field.
func (b *BillRecord) SetEnrichment(field EnrichmentField, value FieldValue) {
	if b.Enrichment == nil {
		b.Enrichment = make(map[EnrichmentField]FieldValue)
	}
	b.Enrichment[field] = value
}

// EnrichmentValue returns the stored value for field.
func (b *BillRecord) EnrichmentValue(field EnrichmentField) (FieldValue, bool) {
	v, ok := b.Enrichment[field]
	return v, ok
}

// Clone returns a deep copy.
func (b *BillRecord) Clone() *BillRecord {
	out := *b
	if b.ChangeStatus != nil {
		v := *b.ChangeStatus
		out.ChangeStatus = &v
	}
	if b.AIEnhancementDate != nil {
		v := *b.AIEnhancementDate
		out.AIEnhancementDate = &v
	}
	out.Enrichment = nil
	for field, value := range b.Enrichment {
		out.SetEnrichment(field, value.Clone())
	}
	out.Extra = nil
	if b.Extra != nil {
		out.Extra = make(map[string]json.RawMessage, len(b.Extra))
		for k, v := range b.Extra {
			out.Extra[k] = append(json.RawMessage(nil), v...)
		}
	}
	return &out
}

// MergeFrom applies update onto b field by field. Empty strings and nil
// pointers in update leave b untouched; the identity is never rewritten.
func (b *BillRecord) MergeFrom(update *BillRecord) {
	if update == nil {
		return
	}
	if b.Href == "" {
		b.Href = update.Href
	}

	mergeString(&b.BillNumber, update.BillNumber)
	mergeString(&b.Title, update.Title)
	mergeString(&b.CurrentStatus, update.CurrentStatus)
	mergeString(&b.LastMajorStageCompleted, update.LastMajorStageCompleted)
	mergeString(&b.ParliamentSession, update.ParliamentSession)
	mergeReading(&b.SenateFirstReading, update.SenateFirstReading)
	mergeReading(&b.SenateSecondReading, update.SenateSecondReading)
	mergeReading(&b.SenateThirdReading, update.SenateThirdReading)
	mergeReading(&b.HouseFirstReading, update.HouseFirstReading)
	mergeReading(&b.HouseSecondReading, update.HouseSecondReading)
	mergeReading(&b.HouseThirdReading, update.HouseThirdReading)
	mergeReading(&b.RoyalAssent, update.RoyalAssent)
	mergeString(&b.Sponsor, update.Sponsor)
	mergeString(&b.BillType, update.BillType)
	mergeString(&b.BillContent, update.BillContent)
	mergeString(&b.ContactEmail, update.ContactEmail)

	if update.ChangeStatus != nil {
		v := *update.ChangeStatus
		b.ChangeStatus = &v
	}
	if update.AIEnhancementDate != nil {
		v := *update.AIEnhancementDate
		b.AIEnhancementDate = &v
	}
	for field, value := range update.Enrichment {
		b.SetEnrichment(field, value.Clone())
	}
	for k, v := range update.Extra {
		if b.Extra == nil {
			b.Extra = make(map[string]json.RawMessage)
		}
		b.Extra[k] = append(json.RawMessage(nil), v...)
	}
}

func mergeString(dst *string, src string) {
	if src != "" {
		*dst = src
	}
}

func mergeReading(dst *ReadingStatus, src ReadingStatus) {
	if src != "" {
		*dst = src
	}
}

// TrackedFields lists, in order, the scraped attributes compared by change tracking.
func TrackedFields() []string {
	return []string{
		"bill_number",
		"title",
		"current_status",
		"last_major_stage_completed",
		"parliament_session",
		"senate_first_reading",
		"senate_second_reading",
		"senate_third_reading",
		"house_first_reading",
		"house_second_reading",
		"house_third_reading",
		"royal_assent",
	}
}

// TrackedValues returns the tracked attributes keyed by persisted name.
func (b *BillRecord) TrackedValues() map[string]string {
	return map[string]string{
		"bill_number":                b.BillNumber,
		"title":                      b.Title,
		"current_status":             b.CurrentStatus,
		"last_major_stage_completed": b.LastMajorStageCompleted,
		"parliament_session":         b.ParliamentSession,
		"senate_first_reading":       string(b.SenateFirstReading),
		"senate_second_reading":      string(b.SenateSecondReading),
		"senate_third_reading":       string(b.SenateThirdReading),
		"house_first_reading":        string(b.HouseFirstReading),
		"house_second_reading":       string(b.HouseSecondReading),
		"house_third_reading":        string(b.HouseThirdReading),
		"royal_assent":               string(b.RoyalAssent),
	}
}

// ChangedFields returns the tracked attributes that other sets to a value
// different from b. Attributes left empty in other are not changes, matching
// MergeFrom, which ignores them.
func (b *BillRecord) ChangedFields(other *BillRecord) []string {
	mine := b.TrackedValues()
	theirs := other.TrackedValues()
	var changed []string
	for _, name := range TrackedFields() {
		if theirs[name] != "" && mine[name] != theirs[name] {
			changed = append(changed, name)
		}
	}
	return changed
}

// Topics joins the committees with the named organizations, deduplicated
// case-insensitively and sorted.
func (b *BillRecord) Topics() []string {
	var topics []string
	if v, ok := b.EnrichmentValue(FieldCommittees); ok {
		topics = append(topics, v.List...)
	}
	if v, ok := b.EnrichmentValue(FieldNamedEntities); ok {
		topics = append(topics, v.Get("organizations").List...)
	}

	seen := make(map[string]struct{}, len(topics))
	out := make([]string, 0, len(topics))
	for _, t := range topics {
		t = strings.TrimSpace(t)
		key := strings.ToLower(t)
		if t == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// BoolPtr returns a pointer to v.
func BoolPtr(v bool) *bool {
	return &v
}
