package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/mytegroup/billtracker/internal/domain/entities"
	"github.com/mytegroup/billtracker/internal/domain/providers"
	"github.com/mytegroup/billtracker/internal/domain/repositories"
	"github.com/mytegroup/billtracker/internal/infrastructure/observability"
	"github.com/mytegroup/billtracker/pkg/config"
	"github.com/mytegroup/billtracker/pkg/retry"
)

// maxConcurrentDeliveries bounds the sends in flight for one bill event.
const maxConcurrentDeliveries = 8

// NotificationReport summarises the deliveries made for one bill event.
type NotificationReport struct {
	Subscribers int `json:"subscribers"`
	Sent        int `json:"sent"`
	Failed      int `json:"failed"`
}

// NotificationService delivers bill updates to subscribers on their enabled channels
type NotificationService struct {
	subscriptions repositories.SubscriptionRepository
	deliveries    repositories.NotificationDeliveryRepository
	senders       map[entities.NotificationChannel]providers.NotificationSender
	eventBus      providers.EventBus
	retryConfig   retry.Config
	ctx           context.Context
	cancel        context.CancelFunc
}

// NewNotificationService creates a new notification service. deliveries may be nil.
func NewNotificationService(
	subscriptions repositories.SubscriptionRepository,
	deliveries repositories.NotificationDeliveryRepository,
	cfg config.NotificationConfig,
	senders ...providers.NotificationSender,
) *NotificationService {
	ctx, cancel := context.WithCancel(context.Background())
	bySender := make(map[entities.NotificationChannel]providers.NotificationSender, len(senders))
	for _, s := range senders {
		if s != nil {
			bySender[s.Channel()] = s
		}
	}
	return &NotificationService{
		subscriptions: subscriptions,
		deliveries:    deliveries,
		senders:       bySender,
		retryConfig:   retry.Fixed(cfg.MaxRetries, cfg.RetryDelay),
		ctx:           ctx,
		cancel:        cancel,
	}
}

// SetEventBus sets the bus whose bill events trigger notifications.
func (n *NotificationService) SetEventBus(bus providers.EventBus) {
	n.eventBus = bus
}

// Start subscribes to bill updates and notifies subscribers of created and changed bills
func (n *NotificationService) Start() error {
	if n.eventBus == nil {
		return fmt.Errorf("notification service has no event bus")
	}
	eventChan, err := n.eventBus.Subscribe(n.ctx, providers.EventChannelBillUpdates)
	if err != nil {
		return fmt.Errorf("failed to subscribe to bill updates: %w", err)
	}

	go n.processEvents(eventChan)
	log.Info().Int("channels", len(n.senders)).Msg("Notification service started")
	return nil
}

// Stop stops the notification listener
func (n *NotificationService) Stop() {
	n.cancel()
	log.Info().Msg("Notification service stopped")
}

func (n *NotificationService) processEvents(eventChan <-chan *entities.BillEvent) {
	for {
		select {
		case <-n.ctx.Done():
			return
		case event, ok := <-eventChan:
			if !ok {
				return
			}
			if event == nil {
				continue
			}
			switch event.EventType {
			case entities.BillEventCreated, entities.BillEventChanged:
				if _, err := n.NotifyBillChange(n.ctx, event); err != nil {
					log.Error().Err(err).Str("href", event.Href).Msg("failed to notify subscribers")
				}
			}
		}
	}
}

// FormatBillUpdate renders the message sent to a subscriber of a changed bill.
func FormatBillUpdate(name, title, status, link string) string {
	if status == "" {
		status = "updated"
	}
	return fmt.Sprintf("Hello %s, the bill '%s' has been updated (%s). More details here: %s", name, title, status, link)
}

// NotifyBillChange sends the update to every subscriber of the event's bill on
// every channel the subscriber has enabled. A failed channel does not stop the others.
func (n *NotificationService) NotifyBillChange(ctx context.Context, event *entities.BillEvent) (*NotificationReport, error) {
	ctx, span := observability.StartSpan(ctx, "notifications.bill_change")
	defer span.End()

	subscribers, err := n.subscriptions.ListSubscribers(ctx, event.Href)
	if err != nil {
		observability.RecordError(span, err)
		return nil, fmt.Errorf("failed to list subscribers: %w", err)
	}

	title := event.Title
	if title == "" {
		title = event.BillNumber
	}
	subject := fmt.Sprintf("Update on bill %s", event.BillNumber)

	report := &NotificationReport{Subscribers: len(subscribers)}
	var mu sync.Mutex

	var g errgroup.Group
	g.SetLimit(maxConcurrentDeliveries)
	for _, sub := range subscribers {
		pref := sub.Preference
		body := FormatBillUpdate(pref.Name(), title, event.CurrentStatus, event.Href)
		for _, channel := range entities.NotificationChannels() {
			if !pref.Enabled(channel) {
				continue
			}
			sender, ok := n.senders[channel]
			if !ok {
				continue
			}
			recipient := pref.Recipient(channel)
			if recipient == "" {
				continue
			}
			g.Go(func() error {
				delivery := n.deliver(ctx, sender, sub.UserID, event.Href, recipient, subject, body)
				mu.Lock()
				defer mu.Unlock()
				if delivery.Status == entities.NotificationStatusSent {
					report.Sent++
				} else {
					report.Failed++
				}
				return nil
			})
		}
	}
	_ = g.Wait()

	log.Info().
		Str("href", event.Href).
		Int("subscribers", report.Subscribers).
		Int("sent", report.Sent).
		Int("failed", report.Failed).
		Msg("bill update notifications delivered")
	return report, nil
}

// SendToUser delivers a message to one user on every enabled channel.
func (n *NotificationService) SendToUser(ctx context.Context, pref *entities.NotificationPreference, billHref, subject, body string) *NotificationReport {
	report := &NotificationReport{Subscribers: 1}
	for _, channel := range entities.NotificationChannels() {
		sender, ok := n.senders[channel]
		if !ok || !pref.Enabled(channel) {
			continue
		}
		recipient := pref.Recipient(channel)
		if recipient == "" {
			continue
		}
		if n.deliver(ctx, sender, pref.UserID, billHref, recipient, subject, body).Status == entities.NotificationStatusSent {
			report.Sent++
		} else {
			report.Failed++
		}
	}
	return report
}

// deliver sends with retries and records the outcome.
func (n *NotificationService) deliver(ctx context.Context, sender providers.NotificationSender, userID, billHref, recipient, subject, body string) *entities.NotificationDelivery {
	attempts := 0
	sendErr := retry.DoWithLog(ctx, n.retryConfig, string(sender.Channel()), func() error {
		attempts++
		return sender.Send(ctx, recipient, subject, body)
	}, func(attempt int, err error, next time.Duration) {
		log.Warn().
			Err(err).
			Str("channel", string(sender.Channel())).
			Str("user_id", userID).
			Int("attempt", attempt).
			Dur("retry_in", next).
			Msg("notification attempt failed")
	})

	delivery := &entities.NotificationDelivery{
		ID:        uuid.New().String(),
		UserID:    userID,
		BillHref:  billHref,
		Channel:   sender.Channel(),
		Recipient: recipient,
		Status:    entities.NotificationStatusSent,
		Attempts:  attempts,
		CreatedAt: time.Now().UTC(),
	}
	if sendErr != nil {
		msg := sendErr.Error()
		delivery.Status = entities.NotificationStatusFailed
		delivery.ErrorMessage = &msg
		log.Error().Err(sendErr).Str("channel", string(sender.Channel())).Str("user_id", userID).Msg("notification delivery failed")
	}

	if n.deliveries != nil {
		// Record even when ctx is done so the failure is visible.
		if err := n.deliveries.Create(context.WithoutCancel(ctx), delivery); err != nil {
			log.Warn().Err(err).Str("delivery_id", delivery.ID).Msg("failed to record notification delivery")
		}
	}
	return delivery
}
