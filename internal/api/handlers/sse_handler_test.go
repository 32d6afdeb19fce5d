package handlers_test

import (
	"bufio"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mytegroup/billtracker/internal/api/handlers"
	"github.com/mytegroup/billtracker/internal/domain/entities"
	"github.com/mytegroup/billtracker/internal/domain/providers"
)

type chanEventBus struct {
	mu         sync.Mutex
	subs       map[string][]chan *entities.BillEvent
	subscribed chan string
	failWith   error
}

func newChanEventBus() *chanEventBus {
	return &chanEventBus{
		subs:       make(map[string][]chan *entities.BillEvent),
		subscribed: make(chan string, 4),
	}
}

func (b *chanEventBus) Publish(ctx context.Context, channel string, event *entities.BillEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs[channel] {
		ch <- event
	}
	return nil
}

func (b *chanEventBus) Subscribe(ctx context.Context, channel string) (<-chan *entities.BillEvent, error) {
	if b.failWith != nil {
		return nil, b.failWith
	}
	b.mu.Lock()
	ch := make(chan *entities.BillEvent, 4)
	b.subs[channel] = append(b.subs[channel], ch)
	b.mu.Unlock()
	b.subscribed <- channel
	return ch, nil
}

func (b *chanEventBus) Unsubscribe(ctx context.Context, channel string) error { return nil }

func (b *chanEventBus) Close() error { return nil }

func readEventNamed(t *testing.T, scanner *bufio.Scanner, name string) string {
	t.Helper()
	for scanner.Scan() {
		if scanner.Text() != "event: "+name {
			continue
		}
		require.True(t, scanner.Scan())
		return strings.TrimPrefix(scanner.Text(), "data: ")
	}
	t.Fatalf("stream ended before event %q", name)
	return ""
}

func TestSSEHandler_StreamUserNotifications(t *testing.T) {
	bus := newChanEventBus()
	handler := handlers.NewSSEHandler(bus)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/users/{id}/stream", handler.StreamUserNotifications)
	server := httptest.NewServer(mux)
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL+"/api/users/u1/stream", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	assert.Equal(t, providers.GetUserChannel("u1"), <-bus.subscribed)

	scanner := bufio.NewScanner(resp.Body)
	assert.Contains(t, readEventNamed(t, scanner, "connected"), `"user_id":"u1"`)

	require.NoError(t, bus.Publish(ctx, providers.GetUserChannel("u1"), entities.NewUserNotificationEvent("u1", "h1", "Bill C-11 was updated")))
	data := readEventNamed(t, scanner, string(entities.BillEventUserNotification))
	assert.Contains(t, data, "Bill C-11 was updated")
	assert.Eventually(t, func() bool { return handler.ClientCount() == 1 }, time.Second, 10*time.Millisecond)
}

func TestSSEHandler_SubscribeFailure(t *testing.T) {
	bus := newChanEventBus()
	bus.failWith = errors.New("bus closed")
	handler := handlers.NewSSEHandler(bus)

	w := httptest.NewRecorder()
	handler.StreamBillUpdates(w, httptest.NewRequest(http.MethodGet, "/api/stream/bills", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, 0, handler.ClientCount())
}
