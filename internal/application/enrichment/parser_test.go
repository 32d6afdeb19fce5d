package enrichment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mytegroup/billtracker/internal/domain/entities"
)

func TestShapeParser_List(t *testing.T) {
	p := newShapeParser(entities.ListShape())

	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{"newlines", "Finance\nHealth", []string{"Finance", "Health"}},
		{"bullets and numbers", "- Finance\n* Health\n1. Justice\n2) Transport", []string{"Finance", "Health", "Justice", "Transport"}},
		{"commas and semicolons", "Finance, Health; Justice.", []string{"Finance", "Health", "Justice"}},
		{"json array", "```json\n[\"C-11\", \"S-210\"]\n```", []string{"C-11", "S-210"}},
		{"none", "None.", []string{}},
		{"duplicates", "Finance\nFinance", []string{"Finance"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := p.Parse(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, v.List)
		})
	}
}

func TestShapeParser_Record(t *testing.T) {
	shape, _ := entities.ShapeOf(entities.FieldFutureProjections)
	p := newShapeParser(shape)

	tests := []struct {
		name      string
		raw       string
		shortTerm string
		longTerm  string
	}{
		{"plain labels", "Short Term: Platforms negotiate deals.\nLong Term: Stable newsroom funding.", "Platforms negotiate deals.", "Stable newsroom funding."},
		{"markdown labels", "**Short-term:** More deals\n**Long-term** - Consolidation", "More deals", "Consolidation"},
		{"underscored keys", "short_term: a\nlong_term: b", "a", "b"},
		{"continuation lines", "Short Term:\nFirst effect\nLong Term: later", "First effect", "later"},
		{"json object", `{"short_term":"x","long_term":"y"}`, "x", "y"},
		{"missing key", "Long Term: only this", "", "only this"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := p.Parse(tt.raw)
			require.NoError(t, err)
			assert.True(t, shape.Conforms(v))
			assert.Equal(t, tt.shortTerm, v.Get("short_term").Text)
			assert.Equal(t, tt.longTerm, v.Get("long_term").Text)
		})
	}
}

func TestShapeParser_RecordWithoutLabels(t *testing.T) {
	shape, _ := entities.ShapeOf(entities.FieldNamedEntities)
	v, err := newShapeParser(shape).Parse("This bill mentions many things.")
	assert.ErrorIs(t, err, ErrUnparsable)
	assert.Equal(t, shape.Default(), v)
}

func TestShapeParser_Empty(t *testing.T) {
	_, err := newShapeParser(entities.ListShape()).Parse("   ")
	assert.ErrorIs(t, err, ErrUnparsable)
}

func TestCleanHTMLSummary(t *testing.T) {
	assert.Equal(t, "<p>x</p>", CleanHTMLSummary("Sure!\n```HTML\n<p>x</p>\n```\nDone"))
	assert.Equal(t, "<!DOCTYPE html><html></html>", CleanHTMLSummary("intro <!DOCTYPE html><html></html>  "))
	assert.Equal(t, "<p>y</p>", CleanHTMLSummary("  <p>y</p>\n"))
}
