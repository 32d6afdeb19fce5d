package providers

import (
	"context"

	"github.com/mytegroup/billtracker/internal/domain/entities"
)

// EventBus defines the interface for publishing and subscribing to events
type EventBus interface {
	// Publish publishes an event to all subscribers
	Publish(ctx context.Context, channel string, event *entities.BillEvent) error

	// Subscribe subscribes to events on a channel
	Subscribe(ctx context.Context, channel string) (<-chan *entities.BillEvent, error)

	// Unsubscribe unsubscribes from a channel
	Unsubscribe(ctx context.Context, channel string) error

	// Close closes the event bus and all subscriptions
	Close() error
}

const (
	// EventChannelBillUpdates carries every bill_created, bill_changed and bill_enriched event
	EventChannelBillUpdates = "bills:updates"

	// EventChannelUserPrefix is the prefix for per-user in-app notification channels
	EventChannelUserPrefix = "user:"
)

// GetUserChannel returns the in-app notification channel for a user
func GetUserChannel(userID string) string {
	return EventChannelUserPrefix + userID
}
