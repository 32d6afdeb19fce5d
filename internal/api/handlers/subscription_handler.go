package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/mytegroup/billtracker/internal/application/services"
	"github.com/mytegroup/billtracker/internal/domain/entities"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// SubscriptionManager defines the subscription operations used by the handler.
type SubscriptionManager interface {
	Subscribe(ctx context.Context, userID, billHref string) (*services.SubscribeResult, error)
	Unsubscribe(ctx context.Context, userID, billHref string) error
	GetPreferences(ctx context.Context, userID string) (*entities.NotificationPreference, error)
	SetPreferences(ctx context.Context, pref *entities.NotificationPreference) (*entities.NotificationPreference, error)
}

// DeliveryHistory lists the notifications sent to a user.
type DeliveryHistory interface {
	ListByUser(ctx context.Context, userID string, limit int) ([]*entities.NotificationDelivery, error)
}

// SubscriptionHandler handles bill subscriptions and notification preferences.
type SubscriptionHandler struct {
	service SubscriptionManager
	history DeliveryHistory
}

// NewSubscriptionHandler creates a new subscription handler. history may be nil.
func NewSubscriptionHandler(service SubscriptionManager, history DeliveryHistory) *SubscriptionHandler {
	return &SubscriptionHandler{service: service, history: history}
}

type subscriptionRequest struct {
	UserID   string `json:"user_id"`
	BillHref string `json:"bill_href"`
}

// Subscribe handles POST /api/subscriptions. A repeated subscription answers
// 200 instead of 201.
func (h *SubscriptionHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	var req subscriptionRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.service.Subscribe(r.Context(), requestUserID(r, req.UserID), req.BillHref)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
	}
	respondWithJSON(w, status, result)
}

// Unsubscribe handles DELETE /api/subscriptions
func (h *SubscriptionHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	var req subscriptionRequest
	if r.ContentLength != 0 {
		if !decodeJSON(w, r, &req) {
			return
		}
	}
	if req.BillHref == "" {
		req.BillHref = r.URL.Query().Get("bill_href")
	}

	if err := h.service.Unsubscribe(r.Context(), requestUserID(r, req.UserID), req.BillHref); err != nil {
		respondWithAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetPreferences handles GET /api/users/{id}/preferences
func (h *SubscriptionHandler) GetPreferences(w http.ResponseWriter, r *http.Request) {
	pref, err := h.service.GetPreferences(r.Context(), r.PathValue("id"))
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, pref)
}

type preferencesRequest struct {
	DisplayName  string  `json:"display_name"`
	Email        *string `json:"email"`
	Phone        *string `json:"phone"`
	EmailEnabled bool    `json:"email_enabled"`
	SMSEnabled   bool    `json:"sms_enabled"`
	InAppEnabled bool    `json:"in_app_enabled"`
}

// UpdatePreferences handles PUT /api/users/{id}/preferences
func (h *SubscriptionHandler) UpdatePreferences(w http.ResponseWriter, r *http.Request) {
	var req preferencesRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	pref := &entities.NotificationPreference{
		UserID:       r.PathValue("id"),
		DisplayName:  strings.TrimSpace(req.DisplayName),
		Email:        trimmedPtr(req.Email),
		Phone:        trimmedPtr(req.Phone),
		EmailEnabled: req.EmailEnabled,
		SMSEnabled:   req.SMSEnabled,
		InAppEnabled: req.InAppEnabled,
	}

	saved, err := h.service.SetPreferences(r.Context(), pref)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, saved)
}

type deliveryListResponse struct {
	Notifications []*entities.NotificationDelivery `json:"notifications"`
	Count         int                              `json:"count"`
}

// ListNotifications handles GET /api/users/{id}/notifications
func (h *SubscriptionHandler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		respondWithError(w, http.StatusServiceUnavailable, "notification history is not configured")
		return
	}

	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			respondWithError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(parsed, maxHistoryLimit)
	}

	deliveries, err := h.history.ListByUser(r.Context(), r.PathValue("id"), limit)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	if deliveries == nil {
		deliveries = []*entities.NotificationDelivery{}
	}
	respondWithJSON(w, http.StatusOK, deliveryListResponse{Notifications: deliveries, Count: len(deliveries)})
}

func trimmedPtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
