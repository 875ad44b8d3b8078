package main

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mahaj/lionsphere/pkg/logging"
	"github.com/mahaj/lionsphere/pkg/metrics"
	"github.com/mahaj/lionsphere/pkg/model"
	"github.com/mahaj/lionsphere/pkg/notification"
	"github.com/mahaj/lionsphere/pkg/notification/notificationtest"
)

type fixture struct {
	consumer *Consumer
	store    *notificationtest.Store
	pub      *notificationtest.Publisher
	metrics  *metrics.Messaging
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	store := notificationtest.NewStore()
	pub := &notificationtest.Publisher{}
	m := metrics.NewMessaging(prometheus.NewRegistry())
	svc := notification.NewService(store, notification.NewRedisDeduper(rdb), pub, time.Minute, logging.Discard())
	return &fixture{consumer: NewConsumer(svc, m, logging.Discard()), store: store, pub: pub, metrics: m}
}

func (f *fixture) count(result string) float64 {
	return testutil.ToFloat64(f.metrics.Processed.WithLabelValues(result))
}

func encode(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func TestHandleCreatesAndPublishes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	trigger := model.NotificationTrigger{RecipientID: "alice", SenderID: "bob", Type: model.NotificationComment, PostID: "p1"}

	require.NoError(t, f.consumer.Handle(ctx, encode(t, trigger)))
	require.NoError(t, f.consumer.Handle(ctx, encode(t, trigger)))

	assert.Equal(t, 1.0, f.count("created"))
	assert.Equal(t, 1.0, f.count("duplicate"))
	require.Equal(t, 1, f.pub.Len())
	n := f.pub.Published[0].(*model.Notification)
	assert.Equal(t, "alice", n.RecipientID)
	assert.Equal(t, model.NotificationComment, n.Type)

	unread, err := f.store.UnreadCount(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(1), unread)
}

func TestHandleSkipsBadTriggers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.consumer.Handle(ctx, []byte("{broken")))
	require.NoError(t, f.consumer.Handle(ctx, encode(t, model.NotificationTrigger{RecipientID: "alice", SenderID: "bob", Type: "poke"})))
	require.NoError(t, f.consumer.Handle(ctx, encode(t, model.NotificationTrigger{RecipientID: "alice", SenderID: "alice", Type: model.NotificationFollow})))

	assert.Equal(t, 2.0, f.count("invalid"))
	assert.Equal(t, 1.0, f.count("self"))
	assert.Zero(t, f.pub.Len())
}

func TestHandleReturnsStoreFailures(t *testing.T) {
	f := newFixture(t)
	f.store.Err = errors.New("scylla down")
	trigger := model.NotificationTrigger{RecipientID: "alice", SenderID: "bob", Type: model.NotificationFollow}

	require.Error(t, f.consumer.Handle(context.Background(), encode(t, trigger)))
	assert.Equal(t, 1.0, f.count("error"))

	// the dedup claim was released, so a redelivery goes through
	f.store.Err = nil
	require.NoError(t, f.consumer.Handle(context.Background(), encode(t, trigger)))
	assert.Equal(t, 1.0, f.count("created"))
}
