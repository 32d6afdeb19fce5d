package entities

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// EnrichmentField names one derived annotation on a bill.
type EnrichmentField string

const (
	FieldSummary             EnrichmentField = "summary"
	FieldNamedEntities       EnrichmentField = "named_entities"
	FieldCommittees          EnrichmentField = "committees"
	FieldBillImpact          EnrichmentField = "bill_impact"
	FieldAmendments          EnrichmentField = "amendments"
	FieldRelatedBills        EnrichmentField = "related_bills"
	FieldDebates             EnrichmentField = "debates"
	FieldPublicEngagement    EnrichmentField = "public_engagement"
	FieldStakeholderAnalysis EnrichmentField = "stakeholder_analysis"
	FieldFutureProjections   EnrichmentField = "future_projections"
	FieldBillProgress        EnrichmentField = "bill_progress"
	FieldSponsorProfile      EnrichmentField = "sponsor_profile"
)

// ModelFields are produced by a language model call.
func ModelFields() []EnrichmentField {
	return []EnrichmentField{
		FieldSummary,
		FieldNamedEntities,
		FieldCommittees,
		FieldBillImpact,
		FieldAmendments,
		FieldRelatedBills,
		FieldDebates,
		FieldPublicEngagement,
		FieldStakeholderAnalysis,
		FieldFutureProjections,
	}
}

// DerivedFields are copied from scraped attributes without an external call.
func DerivedFields() []EnrichmentField {
	return []EnrichmentField{FieldBillProgress, FieldSponsorProfile}
}

// AllEnrichmentFields returns the full fixed set in serialization order.
func AllEnrichmentFields() []EnrichmentField {
	return append(ModelFields(), DerivedFields()...)
}

// ValueKind tags the variant held by a FieldValue.
type ValueKind string

const (
	KindText   ValueKind = "text"
	KindList   ValueKind = "list"
	KindRecord ValueKind = "record"
)

// FieldValue is a tagged variant: text, list of text, or a record of named values.
type FieldValue struct {
	Kind   ValueKind
	Text   string
	List   []string
	Record map[string]FieldValue
}

// TextValue builds a text variant.
func TextValue(s string) FieldValue {
	return FieldValue{Kind: KindText, Text: s}
}

// ListValue builds a list variant. A nil slice becomes empty.
func ListValue(items ...string) FieldValue {
	if items == nil {
		items = []string{}
	}
	return FieldValue{Kind: KindList, List: items}
}

// RecordValue builds a record variant.
func RecordValue(fields map[string]FieldValue) FieldValue {
	if fields == nil {
		fields = map[string]FieldValue{}
	}
	return FieldValue{Kind: KindRecord, Record: fields}
}

// Get returns the named member of a record, or the zero value.
func (v FieldValue) Get(key string) FieldValue {
	if v.Kind != KindRecord {
		return FieldValue{}
	}
	return v.Record[key]
}

// IsEmpty reports whether the value carries no content at any depth.
func (v FieldValue) IsEmpty() bool {
	switch v.Kind {
	case KindText:
		return strings.TrimSpace(v.Text) == ""
	case KindList:
		return len(v.List) == 0
	case KindRecord:
		for _, member := range v.Record {
			if !member.IsEmpty() {
				return false
			}
		}
		return true
	}
	return true
}

// Clone returns a deep copy.
func (v FieldValue) Clone() FieldValue {
	out := FieldValue{Kind: v.Kind, Text: v.Text}
	if v.List != nil {
		out.List = append([]string(nil), v.List...)
	}
	if v.Record != nil {
		out.Record = make(map[string]FieldValue, len(v.Record))
		for k, member := range v.Record {
			out.Record[k] = member.Clone()
		}
	}
	return out
}

// MarshalJSON writes text as a string, lists as arrays and records as objects.
func (v FieldValue) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case KindText:
		return json.Marshal(v.Text)
	case KindList:
		if v.List == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.List)
	case KindRecord:
		if v.Record == nil {
			return []byte("{}"), nil
		}
		return json.Marshal(v.Record)
	case "":
		return []byte("null"), nil
	}
	return nil, fmt.Errorf("unknown value kind %q", v.Kind)
}

// UnmarshalJSON infers the variant from the JSON type.
func (v *FieldValue) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*v = FieldValue{}
		return nil
	}
	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*v = TextValue(s)
	case '[':
		var raw []json.RawMessage
		if err := json.Unmarshal(trimmed, &raw); err != nil {
			return err
		}
		items := make([]string, 0, len(raw))
		for _, item := range raw {
			s, err := scalarString(item)
			if err != nil {
				return err
			}
			items = append(items, s)
		}
		*v = ListValue(items...)
	case '{':
		var raw map[string]FieldValue
		if err := json.Unmarshal(trimmed, &raw); err != nil {
			return err
		}
		*v = RecordValue(raw)
	default:
		s, err := scalarString(trimmed)
		if err != nil {
			return err
		}
		*v = TextValue(s)
	}
	return nil
}

// Shape declares the structure a FieldValue must have.
type Shape struct {
	Kind ValueKind
	Keys []ShapeKey
}

// ShapeKey is one named member of a record shape.
type ShapeKey struct {
	Name  string
	Shape Shape
}

func TextShape() Shape { return Shape{Kind: KindText} }
func ListShape() Shape { return Shape{Kind: KindList} }

// RecordShape declares a record with exactly the given members.
func RecordShape(keys ...ShapeKey) Shape {
	return Shape{Kind: KindRecord, Keys: keys}
}

// Key pairs a member name with its shape.
func Key(name string, shape Shape) ShapeKey {
	return ShapeKey{Name: name, Shape: shape}
}

// TextKeys is shorthand for a run of text members.
func TextKeys(names ...string) []ShapeKey {
	keys := make([]ShapeKey, len(names))
	for i, n := range names {
		keys[i] = Key(n, TextShape())
	}
	return keys
}

// ListKeys is shorthand for a run of list members.
func ListKeys(names ...string) []ShapeKey {
	keys := make([]ShapeKey, len(names))
	for i, n := range names {
		keys[i] = Key(n, ListShape())
	}
	return keys
}

// KeyNames lists the member names of a record shape in declaration order.
func (s Shape) KeyNames() []string {
	names := make([]string, len(s.Keys))
	for i, k := range s.Keys {
		names[i] = k.Name
	}
	return names
}

// Default returns the structurally valid empty value for the shape.
func (s Shape) Default() FieldValue {
	switch s.Kind {
	case KindList:
		return ListValue()
	case KindRecord:
		rec := make(map[string]FieldValue, len(s.Keys))
		for _, k := range s.Keys {
			rec[k.Name] = k.Shape.Default()
		}
		return RecordValue(rec)
	default:
		return TextValue("")
	}
}

// Conforms reports whether v matches the shape exactly.
func (s Shape) Conforms(v FieldValue) bool {
	if v.Kind != s.Kind {
		return false
	}
	switch s.Kind {
	case KindList:
		return v.List != nil
	case KindRecord:
		if len(v.Record) != len(s.Keys) {
			return false
		}
		for _, k := range s.Keys {
			member, ok := v.Record[k.Name]
			if !ok || !k.Shape.Conforms(member) {
				return false
			}
		}
	}
	return true
}

// Normalize fills missing record members with defaults and drops unknown ones.
// It returns false when a member has an incompatible kind.
func (s Shape) Normalize(v FieldValue) (FieldValue, bool) {
	if v.Kind == "" {
		return s.Default(), true
	}
	switch s.Kind {
	case KindText:
		if v.Kind != KindText {
			return s.Default(), false
		}
		return v, true
	case KindList:
		if v.Kind == KindText {
			if strings.TrimSpace(v.Text) == "" {
				return ListValue(), true
			}
			return ListValue(strings.TrimSpace(v.Text)), true
		}
		if v.Kind != KindList {
			return s.Default(), false
		}
		return ListValue(v.List...), true
	case KindRecord:
		if v.Kind != KindRecord {
			return s.Default(), false
		}
		rec := make(map[string]FieldValue, len(s.Keys))
		for _, k := range s.Keys {
			member, ok := v.Record[k.Name]
			if !ok {
				rec[k.Name] = k.Shape.Default()
				continue
			}
			normalized, ok := k.Shape.Normalize(member)
			if !ok {
				return s.Default(), false
			}
			rec[k.Name] = normalized
		}
		return RecordValue(rec), true
	}
	return s.Default(), false
}

// Decode reads raw JSON into a value of this shape.
func (s Shape) Decode(raw json.RawMessage) (FieldValue, error) {
	var v FieldValue
	if err := json.Unmarshal(raw, &v); err != nil {
		return s.Default(), err
	}
	normalized, ok := s.Normalize(v)
	if !ok {
		return s.Default(), fmt.Errorf("value of kind %q does not match %s shape", v.Kind, s.Kind)
	}
	return normalized, nil
}

var (
	readingKeys = []string{
		"current_status",
		"last_major_stage_completed",
		"parliament_session",
		"house_first_reading",
		"house_second_reading",
		"house_third_reading",
		"senate_first_reading",
		"senate_second_reading",
		"senate_third_reading",
		"royal_assent",
	}

	fieldShapes = map[EnrichmentField]Shape{
		FieldSummary:             RecordShape(TextKeys("content", "format", "generated_on")...),
		FieldNamedEntities:       RecordShape(ListKeys("people", "organizations", "locations")...),
		FieldCommittees:          ListShape(),
		FieldBillImpact:          RecordShape(TextKeys("social", "economic", "legal")...),
		FieldAmendments:          ListShape(),
		FieldRelatedBills:        ListShape(),
		FieldDebates:             RecordShape(Key("summary", TextShape()), Key("key_arguments", ListShape())),
		FieldPublicEngagement:    RecordShape(Key("sentiment", TextShape()), Key("key_concerns", ListShape())),
		FieldStakeholderAnalysis: RecordShape(ListKeys("supporters", "opponents", "affected_groups")...),
		FieldFutureProjections:   RecordShape(TextKeys("short_term", "long_term")...),
		FieldBillProgress:        RecordShape(TextKeys(readingKeys...)...),
		FieldSponsorProfile:      RecordShape(TextKeys("sponsor", "bill_type", "contact_email")...),
	}
)

// ShapeOf returns the declared shape of an enrichment field.
func ShapeOf(field EnrichmentField) (Shape, bool) {
	s, ok := fieldShapes[field]
	return s, ok
}

// IsEnrichmentField reports whether name is one of the fixed enrichment fields.
func IsEnrichmentField(name string) bool {
	_, ok := fieldShapes[EnrichmentField(name)]
	return ok
}

func scalarString(raw json.RawMessage) (string, error) {
	var anyVal interface{}
	if err := json.Unmarshal(raw, &anyVal); err != nil {
		return "", err
	}
	switch t := anyVal.(type) {
	case string:
		return t, nil
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), nil
	case bool:
		return strconv.FormatBool(t), nil
	case nil:
		return "", nil
	default:
		return string(raw), nil
	}
}
