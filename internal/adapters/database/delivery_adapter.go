package database

import (
	"context"
	"database/sql"

	"github.com/doug-martin/goqu/v9"

	"github.com/mytegroup/billtracker/internal/domain/entities"
	"github.com/mytegroup/billtracker/internal/domain/repositories"
	"github.com/mytegroup/billtracker/internal/infrastructure/clients/postgres"
	apperrors "github.com/mytegroup/billtracker/pkg/errors"
)

// DeliveryAdapter implements NotificationDeliveryRepository
type DeliveryAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewDeliveryAdapter creates a new notification delivery adapter
func NewDeliveryAdapter(client *postgres.Client) repositories.NotificationDeliveryRepository {
	return &DeliveryAdapter{
		client: client,
		db:     client.Goqu(),
	}
}

// Create records one delivery outcome
func (a *DeliveryAdapter) Create(ctx context.Context, delivery *entities.NotificationDelivery) error {
	record := goqu.Record{
		"id":            delivery.ID,
		"user_id":       delivery.UserID,
		"bill_href":     delivery.BillHref,
		"channel":       string(delivery.Channel),
		"recipient":     delivery.Recipient,
		"status":        string(delivery.Status),
		"attempts":      delivery.Attempts,
		"error_message": delivery.ErrorMessage,
		"created_at":    delivery.CreatedAt,
	}

	query, args, err := a.db.Insert("notification_deliveries").Rows(record).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build insert query", err)
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewInternalError("failed to record delivery", err)
	}
	return nil
}

// ListByUser returns the most recent deliveries to a user
func (a *DeliveryAdapter) ListByUser(ctx context.Context, userID string, limit int) ([]*entities.NotificationDelivery, error) {
	ds := a.db.Select(
		"id", "user_id", "bill_href", "channel", "recipient",
		"status", "attempts", "error_message", "created_at",
	).From("notification_deliveries").
		Where(goqu.Ex{"user_id": userID}).
		Order(goqu.I("created_at").Desc())
	if limit > 0 {
		ds = ds.Limit(uint(limit))
	}

	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build list query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list deliveries", err)
	}
	defer rows.Close()

	var deliveries []*entities.NotificationDelivery
	for rows.Next() {
		d := &entities.NotificationDelivery{}
		var channel, status string
		var errorMessage sql.NullString
		if err := rows.Scan(
			&d.ID, &d.UserID, &d.BillHref, &channel, &d.Recipient,
			&status, &d.Attempts, &errorMessage, &d.CreatedAt,
		); err != nil {
			return nil, apperrors.NewInternalError("failed to scan delivery", err)
		}
		d.Channel = entities.NotificationChannel(channel)
		d.Status = entities.NotificationStatus(status)
		if errorMessage.Valid {
			d.ErrorMessage = &errorMessage.String
		}
		deliveries = append(deliveries, d)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate deliveries", err)
	}
	return deliveries, nil
}
