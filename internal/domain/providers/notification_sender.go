package providers

import (
	"context"

	"github.com/mytegroup/billtracker/internal/domain/entities"
)

// NotificationSender delivers a message on one channel.
type NotificationSender interface {
	Channel() entities.NotificationChannel
	Send(ctx context.Context, recipient, subject, body string) error
}
