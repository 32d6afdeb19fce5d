package services

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/mytegroup/billtracker/internal/domain/entities"
	"github.com/mytegroup/billtracker/internal/domain/providers"
)

type MockTextGenerator struct {
	mock.Mock
}

func (m *MockTextGenerator) Generate(ctx context.Context, system, assistant, prompt string) (string, error) {
	args := m.Called(ctx, system, assistant, prompt)
	return args.String(0), args.Error(1)
}

type MockEventBus struct {
	mock.Mock
}

func (m *MockEventBus) Publish(ctx context.Context, channel string, event *entities.BillEvent) error {
	args := m.Called(ctx, channel, event)
	return args.Error(0)
}

func (m *MockEventBus) Subscribe(ctx context.Context, channel string) (<-chan *entities.BillEvent, error) {
	args := m.Called(ctx, channel)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(<-chan *entities.BillEvent), args.Error(1)
}

func (m *MockEventBus) Unsubscribe(ctx context.Context, channel string) error {
	args := m.Called(ctx, channel)
	return args.Error(0)
}

func (m *MockEventBus) Close() error {
	args := m.Called()
	return args.Error(0)
}

type MockBillSearchIndex struct {
	mock.Mock
}

func (m *MockBillSearchIndex) InitSchema(ctx context.Context, reset bool) error {
	args := m.Called(ctx, reset)
	return args.Error(0)
}

func (m *MockBillSearchIndex) Index(ctx context.Context, bills []*entities.BillRecord) error {
	args := m.Called(ctx, bills)
	return args.Error(0)
}

func (m *MockBillSearchIndex) Search(ctx context.Context, query string, limit int) ([]providers.BillSearchResult, error) {
	args := m.Called(ctx, query, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]providers.BillSearchResult), args.Error(1)
}

type MockCacheProvider struct {
	mock.Mock
}

func (m *MockCacheProvider) Get(ctx context.Context, key string) ([]byte, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockCacheProvider) Set(ctx context.Context, key string, value []byte, expirationSeconds int) error {
	args := m.Called(ctx, key, value, expirationSeconds)
	return args.Error(0)
}

func (m *MockCacheProvider) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *MockCacheProvider) DeletePattern(ctx context.Context, pattern string) error {
	args := m.Called(ctx, pattern)
	return args.Error(0)
}

func (m *MockCacheProvider) Exists(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

type MockSubscriptionRepository struct {
	mock.Mock
}

func (m *MockSubscriptionRepository) Subscribe(ctx context.Context, sub *entities.Subscription) (bool, error) {
	args := m.Called(ctx, sub)
	return args.Bool(0), args.Error(1)
}

func (m *MockSubscriptionRepository) Unsubscribe(ctx context.Context, userID, billHref string) error {
	args := m.Called(ctx, userID, billHref)
	return args.Error(0)
}

func (m *MockSubscriptionRepository) ListSubscribers(ctx context.Context, billHref string) ([]*entities.Subscriber, error) {
	args := m.Called(ctx, billHref)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Subscriber), args.Error(1)
}

func (m *MockSubscriptionRepository) GetPreferences(ctx context.Context, userID string) (*entities.NotificationPreference, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.NotificationPreference), args.Error(1)
}

func (m *MockSubscriptionRepository) UpsertPreferences(ctx context.Context, pref *entities.NotificationPreference) error {
	args := m.Called(ctx, pref)
	return args.Error(0)
}

type MockDeliveryRepository struct {
	mock.Mock
}

func (m *MockDeliveryRepository) Create(ctx context.Context, delivery *entities.NotificationDelivery) error {
	args := m.Called(ctx, delivery)
	return args.Error(0)
}

func (m *MockDeliveryRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*entities.NotificationDelivery, error) {
	args := m.Called(ctx, userID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.NotificationDelivery), args.Error(1)
}

type MockNotificationSender struct {
	mock.Mock
	channel entities.NotificationChannel
}

func (m *MockNotificationSender) Channel() entities.NotificationChannel {
	return m.channel
}

func (m *MockNotificationSender) Send(ctx context.Context, recipient, subject, body string) error {
	args := m.Called(ctx, recipient, subject, body)
	return args.Error(0)
}

type MockDiscussionRepository struct {
	mock.Mock
}

func (m *MockDiscussionRepository) CreateThread(ctx context.Context, thread *entities.DiscussionThread) error {
	args := m.Called(ctx, thread)
	return args.Error(0)
}

func (m *MockDiscussionRepository) GetThread(ctx context.Context, id string) (*entities.DiscussionThread, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.DiscussionThread), args.Error(1)
}

func (m *MockDiscussionRepository) ListThreadsByBill(ctx context.Context, billHref string) ([]*entities.DiscussionThread, error) {
	args := m.Called(ctx, billHref)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.DiscussionThread), args.Error(1)
}

func (m *MockDiscussionRepository) CreateComment(ctx context.Context, comment *entities.Comment) error {
	args := m.Called(ctx, comment)
	return args.Error(0)
}

func (m *MockDiscussionRepository) GetComment(ctx context.Context, id string) (*entities.Comment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Comment), args.Error(1)
}

func (m *MockDiscussionRepository) ListComments(ctx context.Context, threadID string) ([]*entities.Comment, error) {
	args := m.Called(ctx, threadID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Comment), args.Error(1)
}

func (m *MockDiscussionRepository) GetReaction(ctx context.Context, commentID, userID string) (entities.ReactionKind, error) {
	args := m.Called(ctx, commentID, userID)
	return args.Get(0).(entities.ReactionKind), args.Error(1)
}

func (m *MockDiscussionRepository) SetReaction(ctx context.Context, commentID, userID string, kind, previous entities.ReactionKind) error {
	args := m.Called(ctx, commentID, userID, kind, previous)
	return args.Error(0)
}

func (m *MockDiscussionRepository) CreateReport(ctx context.Context, report *entities.CommentReport) error {
	args := m.Called(ctx, report)
	return args.Error(0)
}

func (m *MockDiscussionRepository) SaveSummary(ctx context.Context, summary *entities.ThreadSummary) error {
	args := m.Called(ctx, summary)
	return args.Error(0)
}

func (m *MockDiscussionRepository) GetSummary(ctx context.Context, threadID string) (*entities.ThreadSummary, error) {
	args := m.Called(ctx, threadID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.ThreadSummary), args.Error(1)
}
