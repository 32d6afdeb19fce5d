package repositories

import (
	"context"

	"github.com/mytegroup/billtracker/internal/domain/entities"
)

// SubscriptionRepository defines the interface for bill subscriptions and user preferences
type SubscriptionRepository interface {
	// Subscribe stores sub and reports false when the user already follows the bill
	Subscribe(ctx context.Context, sub *entities.Subscription) (bool, error)

	// Unsubscribe removes a subscription
	Unsubscribe(ctx context.Context, userID, billHref string) error

	// ListSubscribers returns the subscribers of a bill with their preferences
	ListSubscribers(ctx context.Context, billHref string) ([]*entities.Subscriber, error)

	// GetPreferences retrieves the notification preferences of a user
	GetPreferences(ctx context.Context, userID string) (*entities.NotificationPreference, error)

	// UpsertPreferences creates or replaces the notification preferences of a user
	UpsertPreferences(ctx context.Context, pref *entities.NotificationPreference) error
}

// NotificationDeliveryRepository records delivery outcomes.
type NotificationDeliveryRepository interface {
	Create(ctx context.Context, delivery *entities.NotificationDelivery) error
	ListByUser(ctx context.Context, userID string, limit int) ([]*entities.NotificationDelivery, error)
}
