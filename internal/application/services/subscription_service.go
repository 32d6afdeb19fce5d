package services

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mytegroup/billtracker/internal/domain/entities"
	"github.com/mytegroup/billtracker/internal/domain/repositories"
	apperrors "github.com/mytegroup/billtracker/pkg/errors"
)

// SubscriptionService manages bill subscriptions and notification preferences
type SubscriptionService struct {
	repo     repositories.SubscriptionRepository
	store    repositories.BillStore
	notifier *NotificationService
}

// NewSubscriptionService creates a new subscription service. notifier may be
// nil, in which case no confirmation is sent.
func NewSubscriptionService(repo repositories.SubscriptionRepository, store repositories.BillStore, notifier *NotificationService) *SubscriptionService {
	return &SubscriptionService{repo: repo, store: store, notifier: notifier}
}

// SubscribeResult reports whether a new subscription was created.
type SubscribeResult struct {
	Subscription *entities.Subscription `json:"subscription"`
	Created      bool                   `json:"created"`
}

// Subscribe makes userID follow the bill. Subscribing twice is not an error and
// sends no second confirmation.
func (s *SubscriptionService) Subscribe(ctx context.Context, userID, billHref string) (*SubscribeResult, error) {
	userID = strings.TrimSpace(userID)
	billHref = strings.TrimSpace(billHref)
	if userID == "" || billHref == "" {
		return nil, apperrors.NewValidationError("user_id and bill_href are required")
	}

	bills, err := s.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load bills: %w", err)
	}
	bill, ok := bills[billHref]
	if !ok {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("bill %s not found", billHref))
	}

	sub := &entities.Subscription{
		ID:        uuid.New().String(),
		UserID:    userID,
		BillHref:  billHref,
		CreatedAt: time.Now().UTC(),
	}
	created, err := s.repo.Subscribe(ctx, sub)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe: %w", err)
	}

	if created && s.notifier != nil {
		pref, err := s.GetPreferences(ctx, userID)
		if err != nil {
			log.Warn().Err(err).Str("user_id", userID).Msg("skipping subscription confirmation")
		} else {
			s.notifier.SendToUser(ctx, pref, billHref,
				fmt.Sprintf("Subscribed to bill %s", bill.BillNumber),
				fmt.Sprintf("You have successfully subscribed to updates for bill %s.", bill.BillNumber))
		}
	}

	log.Info().Str("user_id", userID).Str("href", billHref).Bool("created", created).Msg("bill subscription")
	return &SubscribeResult{Subscription: sub, Created: created}, nil
}

// Unsubscribe stops userID following the bill.
func (s *SubscriptionService) Unsubscribe(ctx context.Context, userID, billHref string) error {
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(billHref) == "" {
		return apperrors.NewValidationError("user_id and bill_href are required")
	}
	return s.repo.Unsubscribe(ctx, userID, billHref)
}

// GetPreferences returns the user's preferences, or the all-channels default
// when none are stored.
func (s *SubscriptionService) GetPreferences(ctx context.Context, userID string) (*entities.NotificationPreference, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, apperrors.NewValidationError("user_id is required")
	}
	pref, err := s.repo.GetPreferences(ctx, userID)
	if apperrors.IsType(err, apperrors.ErrorTypeNotFound) {
		return entities.DefaultNotificationPreference(userID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get preferences: %w", err)
	}
	return pref, nil
}

// SetPreferences validates and stores the user's preferences.
func (s *SubscriptionService) SetPreferences(ctx context.Context, pref *entities.NotificationPreference) (*entities.NotificationPreference, error) {
	if pref == nil || strings.TrimSpace(pref.UserID) == "" {
		return nil, apperrors.NewValidationError("user_id is required")
	}
	if pref.Email != nil && *pref.Email != "" {
		if _, err := mail.ParseAddress(*pref.Email); err != nil {
			return nil, apperrors.NewValidationError(fmt.Sprintf("invalid email address %q", *pref.Email))
		}
	}
	if pref.EmailEnabled && (pref.Email == nil || *pref.Email == "") {
		return nil, apperrors.NewValidationError("email is required when email notifications are enabled")
	}
	if pref.SMSEnabled && (pref.Phone == nil || *pref.Phone == "") {
		return nil, apperrors.NewValidationError("phone is required when sms notifications are enabled")
	}

	now := time.Now().UTC()
	if pref.CreatedAt.IsZero() {
		pref.CreatedAt = now
	}
	pref.UpdatedAt = now
	if err := s.repo.UpsertPreferences(ctx, pref); err != nil {
		return nil, fmt.Errorf("failed to save preferences: %w", err)
	}
	return pref, nil
}
