//go:build integration

package events

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mytegroup/billtracker/internal/domain/entities"
	"github.com/mytegroup/billtracker/internal/domain/providers"
	redisclient "github.com/mytegroup/billtracker/internal/infrastructure/clients/redis"
)

func TestRedisEventBus_PublishSubscribe(t *testing.T) {
	host := os.Getenv("TEST_REDIS_HOST")
	if host == "" {
		t.Skip("TEST_REDIS_HOST not set")
	}
	rdb := redis.NewClient(&redis.Options{Addr: host})
	bus := NewRedisEventBus(redisclient.NewClientFromRedis(rdb))
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := bus.Subscribe(ctx, providers.EventChannelBillUpdates)
	require.NoError(t, err)
	time.Sleep(100 * time.Millisecond)

	bill := &entities.BillRecord{Href: "/bill/44-1/c-9", BillNumber: "C-9"}
	require.NoError(t, bus.Publish(ctx, providers.EventChannelBillUpdates, entities.NewBillEvent(bill, entities.BillEventCreated, nil)))

	select {
	case event := <-events:
		assert.Equal(t, "/bill/44-1/c-9", event.Href)
		assert.Equal(t, entities.BillEventCreated, event.EventType)
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
	}
}
