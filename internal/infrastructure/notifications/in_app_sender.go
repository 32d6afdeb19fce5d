package notifications

import (
	"context"
	"fmt"

	"github.com/mytegroup/billtracker/internal/domain/entities"
	"github.com/mytegroup/billtracker/internal/domain/providers"
)

// InAppSender publishes notifications on the recipient's user channel.
// The recipient is the user id.
type InAppSender struct {
	bus providers.EventBus
}

var _ providers.NotificationSender = (*InAppSender)(nil)

// NewInAppSender creates a sender over bus
func NewInAppSender(bus providers.EventBus) *InAppSender {
	return &InAppSender{bus: bus}
}

func (s *InAppSender) Channel() entities.NotificationChannel {
	return entities.ChannelInApp
}

// Send publishes body; the subject becomes the first line of the message
func (s *InAppSender) Send(ctx context.Context, recipient, subject, body string) error {
	if recipient == "" {
		return fmt.Errorf("in-app recipient is empty")
	}
	message := body
	if subject != "" {
		message = subject + "\n" + body
	}
	event := entities.NewUserNotificationEvent(recipient, "", message)
	if err := s.bus.Publish(ctx, providers.GetUserChannel(recipient), event); err != nil {
		return fmt.Errorf("failed to publish in-app notification: %w", err)
	}
	return nil
}
