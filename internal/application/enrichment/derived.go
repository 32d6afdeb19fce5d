package enrichment

import (
	"github.com/mytegroup/billtracker/internal/domain/entities"
)

// Derivation computes a field directly from scraped attributes.
type Derivation struct {
	Field  entities.EnrichmentField
	Derive func(bill *entities.BillRecord) entities.FieldValue
}

// Derivations returns the deterministic fields in serialization order.
func Derivations() []Derivation {
	return []Derivation{
		{Field: entities.FieldBillProgress, Derive: DeriveBillProgress},
		{Field: entities.FieldSponsorProfile, Derive: DeriveSponsorProfile},
	}
}

// DeriveBillProgress copies the status and reading attributes.
func DeriveBillProgress(bill *entities.BillRecord) entities.FieldValue {
	return entities.RecordValue(map[string]entities.FieldValue{
		"current_status":             entities.TextValue(bill.CurrentStatus),
		"last_major_stage_completed": entities.TextValue(bill.LastMajorStageCompleted),
		"parliament_session":         entities.TextValue(bill.ParliamentSession),
		"house_first_reading":        entities.TextValue(string(bill.HouseFirstReading)),
		"house_second_reading":       entities.TextValue(string(bill.HouseSecondReading)),
		"house_third_reading":        entities.TextValue(string(bill.HouseThirdReading)),
		"senate_first_reading":       entities.TextValue(string(bill.SenateFirstReading)),
		"senate_second_reading":      entities.TextValue(string(bill.SenateSecondReading)),
		"senate_third_reading":       entities.TextValue(string(bill.SenateThirdReading)),
		"royal_assent":               entities.TextValue(string(bill.RoyalAssent)),
	})
}

// DeriveSponsorProfile copies the detail-page sponsor attributes.
func DeriveSponsorProfile(bill *entities.BillRecord) entities.FieldValue {
	return entities.RecordValue(map[string]entities.FieldValue{
		"sponsor":       entities.TextValue(bill.Sponsor),
		"bill_type":     entities.TextValue(bill.BillType),
		"contact_email": entities.TextValue(bill.ContactEmail),
	})
}
