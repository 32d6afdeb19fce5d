package enrichment

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mytegroup/billtracker/internal/domain/entities"
	"github.com/mytegroup/billtracker/internal/domain/providers"
)

type stubGenerator struct {
	response string
	err      error
	prompts  []string
}

func (s *stubGenerator) Generate(_ context.Context, _, _, prompt string) (string, error) {
	s.prompts = append(s.prompts, prompt)
	return s.response, s.err
}

func testBill() *entities.BillRecord {
	return &entities.BillRecord{
		Href:               "https://www.parl.ca/legisinfo/en/bill/44-1/c-18",
		BillNumber:         "C-18",
		Title:              "Online News Act",
		CurrentStatus:      "Royal assent received",
		HouseFirstReading:  entities.ReadingCompleted,
		SenateThirdReading: entities.ReadingCompleted,
		RoyalAssent:        entities.ReadingCompleted,
		Sponsor:            "Pablo Rodriguez",
		BillType:           "House Government Bill",
		BillContent:        strings.Repeat("An Act respecting online communications platforms. ", 40),
		ContactEmail:       "info@parl.gc.ca",
	}
}

func TestDefaultRegistry_CoversModelFields(t *testing.T) {
	r := DefaultRegistry()
	require.Equal(t, len(entities.ModelFields()), r.Len())
	for i, fn := range r.Functions() {
		assert.Equal(t, entities.ModelFields()[i], fn.Field)
		assert.True(t, fn.Shape.Conforms(fn.Shape.Default()))
		assert.NotEmpty(t, fn.System)
	}
}

func TestNewRegistry_RejectsDuplicatesAndUnknown(t *testing.T) {
	fn, ok := DefaultRegistry().Lookup(entities.FieldCommittees)
	require.True(t, ok)

	_, err := NewRegistry(fn, fn)
	assert.Error(t, err)

	fn.Field = "mood"
	_, err = NewRegistry(fn)
	assert.Error(t, err)
}

func TestFunction_Run_ParsesLabelledResponse(t *testing.T) {
	fn, _ := DefaultRegistry().Lookup(entities.FieldStakeholderAnalysis)
	gen := &stubGenerator{response: "Supporters: Canadian news publishers, journalists' unions\n" +
		"Opponents: Meta; Google\n" +
		"Affected Groups:\n- Local newsrooms\n- Digital platforms"}

	v, err := fn.Run(context.Background(), gen, testBill(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, []string{"Canadian news publishers", "journalists' unions"}, v.Get("supporters").List)
	assert.Equal(t, []string{"Meta", "Google"}, v.Get("opponents").List)
	assert.Equal(t, []string{"Local newsrooms", "Digital platforms"}, v.Get("affected_groups").List)
	require.Len(t, gen.prompts, 1)
	assert.Contains(t, gen.prompts[0], "Bill Number: C-18")
	assert.Contains(t, gen.prompts[0], "... (truncated)")
}

func TestFunction_Run_GenerationFailureReturnsDefault(t *testing.T) {
	fn, _ := DefaultRegistry().Lookup(entities.FieldDebates)
	gen := &stubGenerator{err: providers.ErrRateLimited}

	v, err := fn.Run(context.Background(), gen, testBill(), time.Now())
	assert.ErrorIs(t, err, providers.ErrRateLimited)
	assert.Equal(t, fn.Shape.Default(), v)
}

func TestFunction_Run_UnparsableReturnsDefault(t *testing.T) {
	fn, _ := DefaultRegistry().Lookup(entities.FieldBillImpact)
	gen := &stubGenerator{response: "I cannot help with that."}

	v, err := fn.Run(context.Background(), gen, testBill(), time.Now())
	assert.True(t, errors.Is(err, ErrUnparsable))
	assert.Equal(t, fn.Shape.Default(), v)
}

func TestFunction_Run_Summary(t *testing.T) {
	fn, _ := DefaultRegistry().Lookup(entities.FieldSummary)
	gen := &stubGenerator{response: "Here you go:\n```html\n<h1>C-18</h1>\n```"}
	now := time.Date(2024, 5, 6, 23, 0, 0, 0, time.UTC)

	v, err := fn.Run(context.Background(), gen, testBill(), now)
	require.NoError(t, err)
	assert.Equal(t, "<h1>C-18</h1>", v.Get("content").Text)
	assert.Equal(t, "html", v.Get("format").Text)
	assert.Equal(t, "2024-05-06", v.Get("generated_on").Text)
	assert.Contains(t, gen.prompts[0], "Summarize the following bill with structured HTML:")
}

func TestDerivations(t *testing.T) {
	bill := testBill()

	progress := DeriveBillProgress(bill)
	shape, _ := entities.ShapeOf(entities.FieldBillProgress)
	assert.True(t, shape.Conforms(progress))
	assert.Equal(t, "Royal assent received", progress.Get("current_status").Text)
	assert.Equal(t, "Completed", progress.Get("senate_third_reading").Text)

	profile := DeriveSponsorProfile(bill)
	shape, _ = entities.ShapeOf(entities.FieldSponsorProfile)
	assert.True(t, shape.Conforms(profile))
	assert.Equal(t, "Pablo Rodriguez", profile.Get("sponsor").Text)

	require.Len(t, Derivations(), 2)
}
