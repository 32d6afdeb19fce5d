package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/mytegroup/billtracker/internal/domain/entities"
	"github.com/mytegroup/billtracker/internal/domain/repositories"
	"github.com/mytegroup/billtracker/internal/infrastructure/clients/postgres"
	apperrors "github.com/mytegroup/billtracker/pkg/errors"
)

// SubscriptionAdapter implements SubscriptionRepository over sqlx
type SubscriptionAdapter struct {
	db *sqlx.DB
}

// NewSubscriptionAdapter creates a new subscription adapter
func NewSubscriptionAdapter(client *postgres.Client) repositories.SubscriptionRepository {
	return &SubscriptionAdapter{db: client.SQLX()}
}

// Subscribe inserts the subscription unless the user already follows the bill
func (a *SubscriptionAdapter) Subscribe(ctx context.Context, sub *entities.Subscription) (bool, error) {
	query := `
		INSERT INTO bill_subscriptions (id, user_id, bill_href, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, bill_href) DO NOTHING
	`
	result, err := a.db.ExecContext(ctx, query, sub.ID, sub.UserID, sub.BillHref, sub.CreatedAt)
	if err != nil {
		return false, apperrors.NewInternalError("failed to create subscription", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, apperrors.NewInternalError("failed to read subscription result", err)
	}
	return rows > 0, nil
}

// Unsubscribe deletes a subscription
func (a *SubscriptionAdapter) Unsubscribe(ctx context.Context, userID, billHref string) error {
	result, err := a.db.ExecContext(ctx, `DELETE FROM bill_subscriptions WHERE user_id = $1 AND bill_href = $2`, userID, billHref)
	if err != nil {
		return apperrors.NewInternalError("failed to delete subscription", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewInternalError("failed to read subscription result", err)
	}
	if rows == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("user %s is not subscribed to %s", userID, billHref))
	}
	return nil
}

// subscriberRow is a subscription joined with optional preferences.
type subscriberRow struct {
	ID           string         `db:"id"`
	UserID       string         `db:"user_id"`
	BillHref     string         `db:"bill_href"`
	CreatedAt    sql.NullTime   `db:"created_at"`
	DisplayName  string         `db:"display_name"`
	Email        sql.NullString `db:"email"`
	Phone        sql.NullString `db:"phone"`
	EmailEnabled bool           `db:"email_enabled"`
	SMSEnabled   bool           `db:"sms_enabled"`
	InAppEnabled bool           `db:"in_app_enabled"`
}

// ListSubscribers returns every subscriber of a bill. Users without stored
// preferences get every channel enabled.
func (a *SubscriptionAdapter) ListSubscribers(ctx context.Context, billHref string) ([]*entities.Subscriber, error) {
	query := `
		SELECT s.id, s.user_id, s.bill_href, s.created_at,
		       COALESCE(p.display_name, '') AS display_name,
		       p.email, p.phone,
		       COALESCE(p.email_enabled, TRUE) AS email_enabled,
		       COALESCE(p.sms_enabled, TRUE) AS sms_enabled,
		       COALESCE(p.in_app_enabled, TRUE) AS in_app_enabled
		FROM bill_subscriptions s
		LEFT JOIN notification_preferences p ON p.user_id = s.user_id
		WHERE s.bill_href = $1
		ORDER BY s.created_at
	`
	var rows []subscriberRow
	if err := a.db.SelectContext(ctx, &rows, query, billHref); err != nil {
		return nil, apperrors.NewInternalError("failed to list subscribers", err)
	}

	subscribers := make([]*entities.Subscriber, 0, len(rows))
	for _, r := range rows {
		sub := &entities.Subscriber{
			Subscription: entities.Subscription{
				ID:        r.ID,
				UserID:    r.UserID,
				BillHref:  r.BillHref,
				CreatedAt: r.CreatedAt.Time,
			},
			Preference: entities.NotificationPreference{
				UserID:       r.UserID,
				DisplayName:  r.DisplayName,
				EmailEnabled: r.EmailEnabled,
				SMSEnabled:   r.SMSEnabled,
				InAppEnabled: r.InAppEnabled,
			},
		}
		if r.Email.Valid {
			sub.Preference.Email = &r.Email.String
		}
		if r.Phone.Valid {
			sub.Preference.Phone = &r.Phone.String
		}
		subscribers = append(subscribers, sub)
	}
	return subscribers, nil
}

// GetPreferences retrieves a user's notification preferences
func (a *SubscriptionAdapter) GetPreferences(ctx context.Context, userID string) (*entities.NotificationPreference, error) {
	var pref entities.NotificationPreference
	query := `
		SELECT user_id, display_name, email, phone, email_enabled, sms_enabled, in_app_enabled, created_at, updated_at
		FROM notification_preferences WHERE user_id = $1
	`
	if err := a.db.GetContext(ctx, &pref, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NewNotFoundError(fmt.Sprintf("no preferences for user %s", userID))
		}
		return nil, apperrors.NewInternalError("failed to get preferences", err)
	}
	return &pref, nil
}

// UpsertPreferences creates or replaces a user's notification preferences
func (a *SubscriptionAdapter) UpsertPreferences(ctx context.Context, pref *entities.NotificationPreference) error {
	query := `
		INSERT INTO notification_preferences
			(user_id, display_name, email, phone, email_enabled, sms_enabled, in_app_enabled, created_at, updated_at)
		VALUES (:user_id, :display_name, :email, :phone, :email_enabled, :sms_enabled, :in_app_enabled, :created_at, :updated_at)
		ON CONFLICT (user_id) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			email = EXCLUDED.email,
			phone = EXCLUDED.phone,
			email_enabled = EXCLUDED.email_enabled,
			sms_enabled = EXCLUDED.sms_enabled,
			in_app_enabled = EXCLUDED.in_app_enabled,
			updated_at = EXCLUDED.updated_at
	`
	if _, err := a.db.NamedExecContext(ctx, query, pref); err != nil {
		return apperrors.NewInternalError("failed to save preferences", err)
	}
	return nil
}
