package notification

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mahaj/lionsphere/pkg/apperr"
	"github.com/mahaj/lionsphere/pkg/logging"
	"github.com/mahaj/lionsphere/pkg/model"
	"github.com/mahaj/lionsphere/pkg/notification/notificationtest"
)

type fixture struct {
	svc   *Service
	store *notificationtest.Store
	pub   *notificationtest.Publisher
	mr    *miniredis.Miniredis
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	store := notificationtest.NewStore()
	pub := &notificationtest.Publisher{}
	svc := NewService(store, NewRedisDeduper(rdb), pub, time.Minute, logging.Discard())
	return &fixture{svc: svc, store: store, pub: pub, mr: mr}
}

var like = model.NotificationTrigger{
	RecipientID: "alice",
	SenderID:    "bob",
	Type:        model.NotificationLike,
	PostID:      "post1",
}

func TestCreate(t *testing.T) {
	f := newFixture(t)

	n, err := f.svc.Create(context.Background(), like)
	require.NoError(t, err)
	assert.Equal(t, "liked your post", n.Message)
	assert.False(t, n.Read)
	assert.NotEmpty(t, n.ID)

	list, err := f.svc.List(context.Background(), "alice", 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, n.ID, list[0].ID)
	assert.Equal(t, 1, f.pub.Len())
}

func TestCreateDedupWithinWindow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.Create(ctx, like)
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, like)
	assert.ErrorIs(t, err, ErrDuplicate)

	// another post is a different tuple
	other := like
	other.PostID = "post2"
	_, err = f.svc.Create(ctx, other)
	require.NoError(t, err)

	f.mr.FastForward(61 * time.Second)
	_, err = f.svc.Create(ctx, like)
	require.NoError(t, err)

	count, err := f.svc.UnreadCount(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
}

func TestCreateRejects(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		name string
		in   model.NotificationTrigger
		want error
	}{
		{"self", model.NotificationTrigger{RecipientID: "bob", SenderID: "bob", Type: model.NotificationFollow}, ErrSelf},
		{"type", model.NotificationTrigger{RecipientID: "alice", SenderID: "bob", Type: "poke"}, apperr.ErrInvalidNotificationType},
		{"post", model.NotificationTrigger{RecipientID: "alice", SenderID: "bob", Type: model.NotificationComment}, apperr.ErrNotificationNeedsPost},
		{"user", model.NotificationTrigger{RecipientID: "", SenderID: "bob", Type: model.NotificationFollow}, apperr.ErrInvalidUserID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Create(context.Background(), tt.in)
			assert.ErrorIs(t, err, tt.want)
		})
	}
	assert.Equal(t, 0, f.pub.Len())
}

func TestCreateReleasesClaimWhenStoreFails(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.store.Err = errors.New("scylla down")

	_, err := f.svc.Create(ctx, like)
	require.Error(t, err)
	assert.False(t, f.mr.Exists(DedupKey(like)))

	f.store.Err = nil
	_, err = f.svc.Create(ctx, like)
	assert.NoError(t, err)
}

func TestCreateSurvivesPublishFailure(t *testing.T) {
	f := newFixture(t)
	f.pub.Err = errors.New("kafka down")

	_, err := f.svc.Create(context.Background(), like)
	require.NoError(t, err)
}

func TestMarkRead(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	n, err := f.svc.Create(ctx, like)
	require.NoError(t, err)
	follow := model.NotificationTrigger{RecipientID: "alice", SenderID: "carol", Type: model.NotificationFollow}
	_, err = f.svc.Create(ctx, follow)
	require.NoError(t, err)

	require.NoError(t, f.svc.MarkRead(ctx, "alice", n.ID))
	count, _ := f.svc.UnreadCount(ctx, "alice")
	assert.Equal(t, int64(1), count)

	assert.ErrorIs(t, f.svc.MarkRead(ctx, "alice", "not-a-uuid"), apperr.ErrNotificationNotFound)
	assert.ErrorIs(t, f.svc.MarkRead(ctx, "bob", n.ID), apperr.ErrNotificationNotFound)

	marked, err := f.svc.MarkAllRead(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, marked)
	count, _ = f.svc.UnreadCount(ctx, "alice")
	assert.Equal(t, int64(0), count)
}

func TestReadOnlyService(t *testing.T) {
	ctx := context.Background()
	store := notificationtest.NewStore()
	writer := NewService(store, NewRedisDeduper(redis.NewClient(&redis.Options{Addr: miniredis.RunT(t).Addr()})), nil, time.Minute, logging.Discard())
	reader := NewService(store, nil, nil, time.Minute, logging.Discard())

	n, err := writer.Create(ctx, like)
	require.NoError(t, err)

	_, err = reader.Create(ctx, like)
	assert.ErrorIs(t, err, ErrReadOnly)
	assert.Equal(t, apperr.CodeFailedPrecondition, apperr.CodeOf(err))

	list, err := reader.List(ctx, "alice", 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, n.ID, list[0].ID)

	unread, err := reader.UnreadCount(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(1), unread)

	marked, err := reader.MarkAllRead(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, marked)
}
