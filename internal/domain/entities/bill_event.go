package entities

import (
	"time"

	"github.com/google/uuid"
)

// BillEventType represents the type of bill event
type BillEventType string

const (
	BillEventCreated          BillEventType = "bill_created"
	BillEventChanged          BillEventType = "bill_changed"
	BillEventEnriched         BillEventType = "bill_enriched"
	BillEventUserNotification BillEventType = "user_notification"
)

// BillEvent is published whenever a stored bill is inserted, modified or enriched.
type BillEvent struct {
	ID            string        `json:"id"`
	Href          string        `json:"href"`
	BillNumber    string        `json:"bill_number,omitempty"`
	Title         string        `json:"title,omitempty"`
	CurrentStatus string        `json:"current_status,omitempty"`
	EventType     BillEventType `json:"event_type"`
	ChangedFields []string      `json:"changed_fields,omitempty"`
	UserID        string        `json:"user_id,omitempty"`
	Message       string        `json:"message,omitempty"`
	Timestamp     time.Time     `json:"timestamp"`
}

// NewBillEvent creates an event describing bill.
func NewBillEvent(bill *BillRecord, eventType BillEventType, changedFields []string) *BillEvent {
	return &BillEvent{
		ID:            uuid.NewString(),
		Href:          bill.Href,
		BillNumber:    bill.BillNumber,
		Title:         bill.Title,
		CurrentStatus: bill.CurrentStatus,
		EventType:     eventType,
		ChangedFields: changedFields,
		Timestamp:     time.Now().UTC(),
	}
}

// NewUserNotificationEvent creates an in-app notification addressed to userID.
func NewUserNotificationEvent(userID, href, message string) *BillEvent {
	return &BillEvent{
		ID:        uuid.NewString(),
		Href:      href,
		EventType: BillEventUserNotification,
		UserID:    userID,
		Message:   message,
		Timestamp: time.Now().UTC(),
	}
}
