package enrichment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mytegroup/billtracker/internal/domain/entities"
	"github.com/mytegroup/billtracker/internal/domain/providers"
)

// ErrUnparsable is returned when a model response cannot be read into the field's shape.
var ErrUnparsable = errors.New("unparsable model response")

// Function is one model-backed enrichment: a fixed instruction pair, a prompt
// built from the bill, and a parser that turns the response into the field's shape.
type Function struct {
	Field     entities.EnrichmentField
	Shape     entities.Shape
	System    string
	Assistant string
	Prompt    func(bill *entities.BillRecord) string
	Parse     func(raw string, now time.Time) (entities.FieldValue, error)
}

// Run makes one generation call and parses the result. On any failure the
// returned value is the shape default, alongside the error.
func (f Function) Run(ctx context.Context, gen providers.TextGenerator, bill *entities.BillRecord, now time.Time) (entities.FieldValue, error) {
	raw, err := gen.Generate(ctx, f.System, f.Assistant, f.Prompt(bill))
	if err != nil {
		return f.Shape.Default(), fmt.Errorf("generate %s: %w", f.Field, err)
	}

	value, err := f.Parse(raw, now)
	if err != nil {
		return f.Shape.Default(), fmt.Errorf("parse %s: %w", f.Field, err)
	}
	if !f.Shape.Conforms(value) {
		return f.Shape.Default(), fmt.Errorf("parse %s: %w", f.Field, ErrUnparsable)
	}
	return value, nil
}

// Registry is the ordered set of model-backed functions.
type Registry struct {
	functions []Function
	byField   map[entities.EnrichmentField]int
}

// NewRegistry validates and orders fns. Each field may appear once and must
// have a declared shape.
func NewRegistry(fns ...Function) (*Registry, error) {
	r := &Registry{byField: make(map[entities.EnrichmentField]int, len(fns))}
	for _, fn := range fns {
		shape, ok := entities.ShapeOf(fn.Field)
		if !ok {
			return nil, fmt.Errorf("unknown enrichment field %q", fn.Field)
		}
		if _, dup := r.byField[fn.Field]; dup {
			return nil, fmt.Errorf("duplicate enrichment function for %q", fn.Field)
		}
		if fn.Prompt == nil || fn.Parse == nil {
			return nil, fmt.Errorf("enrichment function %q needs a prompt and a parser", fn.Field)
		}
		if fn.Shape.Kind == "" {
			fn.Shape = shape
		}
		r.byField[fn.Field] = len(r.functions)
		r.functions = append(r.functions, fn)
	}
	return r, nil
}

// Functions returns the registered functions in order.
func (r *Registry) Functions() []Function {
	out := make([]Function, len(r.functions))
	copy(out, r.functions)
	return out
}

// Len returns the number of registered functions.
func (r *Registry) Len() int {
	return len(r.functions)
}

// Lookup returns the function for field.
func (r *Registry) Lookup(field entities.EnrichmentField) (Function, bool) {
	i, ok := r.byField[field]
	if !ok {
		return Function{}, false
	}
	return r.functions[i], true
}

// DefaultRegistry returns the ten model-backed bill enrichments.
func DefaultRegistry() *Registry {
	r, err := NewRegistry(defaultFunctions()...)
	if err != nil {
		panic(err)
	}
	return r
}

func shapeOf(field entities.EnrichmentField) entities.Shape {
	s, _ := entities.ShapeOf(field)
	return s
}

func shaped(field entities.EnrichmentField) func(string, time.Time) (entities.FieldValue, error) {
	shape := shapeOf(field)
	parser := newShapeParser(shape)
	return func(raw string, _ time.Time) (entities.FieldValue, error) {
		return parser.Parse(raw)
	}
}

func defaultFunctions() []Function {
	return []Function{
		{
			Field:     entities.FieldSummary,
			Shape:     shapeOf(entities.FieldSummary),
			System:    summarySystemPrompt,
			Assistant: summaryAssistantPrompt,
			Prompt:    buildSummaryPrompt,
			Parse:     parseSummary,
		},
		{
			Field:     entities.FieldNamedEntities,
			Shape:     shapeOf(entities.FieldNamedEntities),
			System:    analystSystemPrompt,
			Assistant: labeledAnswerPrompt,
			Prompt:    taskPrompt(namedEntitiesTask),
			Parse:     shaped(entities.FieldNamedEntities),
		},
		{
			Field:     entities.FieldCommittees,
			Shape:     shapeOf(entities.FieldCommittees),
			System:    analystSystemPrompt,
			Assistant: listAnswerPrompt,
			Prompt:    taskPrompt(committeesTask),
			Parse:     shaped(entities.FieldCommittees),
		},
		{
			Field:     entities.FieldBillImpact,
			Shape:     shapeOf(entities.FieldBillImpact),
			System:    analystSystemPrompt,
			Assistant: labeledAnswerPrompt,
			Prompt:    taskPrompt(billImpactTask),
			Parse:     shaped(entities.FieldBillImpact),
		},
		{
			Field:     entities.FieldAmendments,
			Shape:     shapeOf(entities.FieldAmendments),
			System:    analystSystemPrompt,
			Assistant: listAnswerPrompt,
			Prompt:    taskPrompt(amendmentsTask),
			Parse:     shaped(entities.FieldAmendments),
		},
		{
			Field:     entities.FieldRelatedBills,
			Shape:     shapeOf(entities.FieldRelatedBills),
			System:    analystSystemPrompt,
			Assistant: listAnswerPrompt,
			Prompt:    taskPrompt(relatedBillsTask),
			Parse:     shaped(entities.FieldRelatedBills),
		},
		{
			Field:     entities.FieldDebates,
			Shape:     shapeOf(entities.FieldDebates),
			System:    analystSystemPrompt,
			Assistant: labeledAnswerPrompt,
			Prompt:    taskPrompt(debatesTask),
			Parse:     shaped(entities.FieldDebates),
		},
		{
			Field:     entities.FieldPublicEngagement,
			Shape:     shapeOf(entities.FieldPublicEngagement),
			System:    analystSystemPrompt,
			Assistant: labeledAnswerPrompt,
			Prompt:    taskPrompt(publicEngagementTask),
			Parse:     shaped(entities.FieldPublicEngagement),
		},
		{
			Field:     entities.FieldStakeholderAnalysis,
			Shape:     shapeOf(entities.FieldStakeholderAnalysis),
			System:    analystSystemPrompt,
			Assistant: labeledAnswerPrompt,
			Prompt:    taskPrompt(stakeholderTask),
			Parse:     shaped(entities.FieldStakeholderAnalysis),
		},
		{
			Field:     entities.FieldFutureProjections,
			Shape:     shapeOf(entities.FieldFutureProjections),
			System:    analystSystemPrompt,
			Assistant: labeledAnswerPrompt,
			Prompt:    taskPrompt(futureProjectionsTask),
			Parse:     shaped(entities.FieldFutureProjections),
		},
	}
}
