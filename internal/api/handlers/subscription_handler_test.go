package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mytegroup/billtracker/internal/api/handlers"
	"github.com/mytegroup/billtracker/internal/application/services"
	"github.com/mytegroup/billtracker/internal/domain/entities"
	apperrors "github.com/mytegroup/billtracker/pkg/errors"
)

type MockSubscriptionManager struct {
	mock.Mock
}

func (m *MockSubscriptionManager) Subscribe(ctx context.Context, userID, billHref string) (*services.SubscribeResult, error) {
	args := m.Called(ctx, userID, billHref)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.SubscribeResult), args.Error(1)
}

func (m *MockSubscriptionManager) Unsubscribe(ctx context.Context, userID, billHref string) error {
	return m.Called(ctx, userID, billHref).Error(0)
}

func (m *MockSubscriptionManager) GetPreferences(ctx context.Context, userID string) (*entities.NotificationPreference, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.NotificationPreference), args.Error(1)
}

func (m *MockSubscriptionManager) SetPreferences(ctx context.Context, pref *entities.NotificationPreference) (*entities.NotificationPreference, error) {
	args := m.Called(ctx, pref)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.NotificationPreference), args.Error(1)
}

type stubDeliveryHistory struct {
	deliveries []*entities.NotificationDelivery
	gotUser    string
	gotLimit   int
}

func (s *stubDeliveryHistory) ListByUser(ctx context.Context, userID string, limit int) ([]*entities.NotificationDelivery, error) {
	s.gotUser = userID
	s.gotLimit = limit
	return s.deliveries, nil
}

func TestSubscriptionHandler_Subscribe(t *testing.T) {
	service := new(MockSubscriptionManager)
	handler := handlers.NewSubscriptionHandler(service, nil)

	service.On("Subscribe", mock.Anything, "u1", "h1").Return(&services.SubscribeResult{
		Subscription: &entities.Subscription{ID: "s1", UserID: "u1", BillHref: "h1"},
		Created:      true,
	}, nil).Once()
	service.On("Subscribe", mock.Anything, "u1", "h1").Return(&services.SubscribeResult{
		Subscription: &entities.Subscription{ID: "s1", UserID: "u1", BillHref: "h1"},
	}, nil).Once()

	body := `{"user_id":"u1","bill_href":"h1"}`
	w := httptest.NewRecorder()
	handler.Subscribe(w, httptest.NewRequest(http.MethodPost, "/api/subscriptions", strings.NewReader(body)))
	assert.Equal(t, http.StatusCreated, w.Code)

	w = httptest.NewRecorder()
	handler.Subscribe(w, httptest.NewRequest(http.MethodPost, "/api/subscriptions", strings.NewReader(body)))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"created":false`)
	service.AssertExpectations(t)
}

func TestSubscriptionHandler_Subscribe_UserFromHeader(t *testing.T) {
	service := new(MockSubscriptionManager)
	handler := handlers.NewSubscriptionHandler(service, nil)
	service.On("Subscribe", mock.Anything, "u-header", "h1").Return(nil, apperrors.NewNotFoundError("bill h1 not found"))

	req := httptest.NewRequest(http.MethodPost, "/api/subscriptions", strings.NewReader(`{"bill_href":"h1"}`))
	req.Header.Set("X-User-ID", "u-header")
	w := httptest.NewRecorder()
	handler.Subscribe(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	service.AssertExpectations(t)
}

func TestSubscriptionHandler_Unsubscribe(t *testing.T) {
	service := new(MockSubscriptionManager)
	handler := handlers.NewSubscriptionHandler(service, nil)
	service.On("Unsubscribe", mock.Anything, "u1", "h1").Return(nil)
	service.On("Unsubscribe", mock.Anything, "u1", "h2").Return(apperrors.NewNotFoundError("subscription not found"))

	w := httptest.NewRecorder()
	handler.Unsubscribe(w, httptest.NewRequest(http.MethodDelete, "/api/subscriptions", strings.NewReader(`{"user_id":"u1","bill_href":"h1"}`)))
	assert.Equal(t, http.StatusNoContent, w.Code)

	req := httptest.NewRequest(http.MethodDelete, "/api/subscriptions?bill_href=h2", nil)
	req.Header.Set("X-User-ID", "u1")
	w = httptest.NewRecorder()
	handler.Unsubscribe(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSubscriptionHandler_Preferences(t *testing.T) {
	service := new(MockSubscriptionManager)
	handler := handlers.NewSubscriptionHandler(service, nil)

	service.On("GetPreferences", mock.Anything, "u1").Return(entities.DefaultNotificationPreference("u1"), nil)
	service.On("SetPreferences", mock.Anything, mock.MatchedBy(func(p *entities.NotificationPreference) bool {
		return p.UserID == "u1" && p.Email != nil && *p.Email == "a@b.ca" && p.Phone == nil && p.EmailEnabled && !p.SMSEnabled
	})).Return(&entities.NotificationPreference{UserID: "u1", EmailEnabled: true}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/users/u1/preferences", nil)
	req.SetPathValue("id", "u1")
	w := httptest.NewRecorder()
	handler.GetPreferences(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	var pref entities.NotificationPreference
	require.NoError(t, json.NewDecoder(w.Body).Decode(&pref))
	assert.True(t, pref.InAppEnabled)

	req = httptest.NewRequest(http.MethodPut, "/api/users/u1/preferences",
		strings.NewReader(`{"email":" a@b.ca ","phone":"  ","email_enabled":true,"sms_enabled":false,"in_app_enabled":true}`))
	req.SetPathValue("id", "u1")
	w = httptest.NewRecorder()
	handler.UpdatePreferences(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	service.AssertExpectations(t)
}

func TestSubscriptionHandler_UpdatePreferences_Invalid(t *testing.T) {
	service := new(MockSubscriptionManager)
	handler := handlers.NewSubscriptionHandler(service, nil)
	service.On("SetPreferences", mock.Anything, mock.Anything).Return(nil, apperrors.NewValidationError("phone is required when sms notifications are enabled"))

	req := httptest.NewRequest(http.MethodPut, "/api/users/u1/preferences", strings.NewReader(`{"sms_enabled":true}`))
	req.SetPathValue("id", "u1")
	w := httptest.NewRecorder()
	handler.UpdatePreferences(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "phone is required")
}

func TestSubscriptionHandler_ListNotifications(t *testing.T) {
	history := &stubDeliveryHistory{deliveries: []*entities.NotificationDelivery{
		{ID: "d1", UserID: "u1", Channel: entities.ChannelEmail, Status: entities.NotificationStatusSent},
	}}
	handler := handlers.NewSubscriptionHandler(new(MockSubscriptionManager), history)

	req := httptest.NewRequest(http.MethodGet, "/api/users/u1/notifications?limit=1000", nil)
	req.SetPathValue("id", "u1")
	w := httptest.NewRecorder()
	handler.ListNotifications(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "u1", history.gotUser)
	assert.Equal(t, 200, history.gotLimit)
	assert.Contains(t, w.Body.String(), `"count":1`)
}
