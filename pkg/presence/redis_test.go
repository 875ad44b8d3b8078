package presence

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return mr, rdb
}

func members(t *testing.T, m *RedisMirror) []string {
	t.Helper()
	users, err := m.Members(context.Background())
	require.NoError(t, err)
	return users
}

func TestRedisMirror(t *testing.T) {
	ctx := context.Background()
	_, rdb := newRedis(t)
	m := NewRedisMirror(rdb, "g1")

	require.NoError(t, m.SetOnline(ctx, "alice"))
	require.NoError(t, m.SetOnline(ctx, "bob"))
	require.NoError(t, m.SetOffline(ctx, "alice"))

	assert.ElementsMatch(t, []string{"bob"}, members(t, m))

	online, err := m.IsOnline(ctx, "bob")
	require.NoError(t, err)
	assert.True(t, online)
	online, err = m.IsOnline(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, online)
}

func TestGatewaysDoNotClobberEachOther(t *testing.T) {
	ctx := context.Background()
	_, rdb := newRedis(t)
	g1 := NewRedisMirror(rdb, "g1")
	g2 := NewRedisMirror(rdb, "g2")
	reader := NewRedisMirror(rdb, "")

	require.NoError(t, g1.SetOnline(ctx, "alice"))
	require.NoError(t, g2.SetOnline(ctx, "bob"))
	assert.ElementsMatch(t, []string{"alice", "bob"}, members(t, reader))

	// a restarted gateway comes back under a new instance and leaves g1 alone
	require.NoError(t, g2.Close(ctx))
	g3 := NewRedisMirror(rdb, "g3")
	require.NoError(t, g3.SetOnline(ctx, "carol"))
	assert.ElementsMatch(t, []string{"alice", "carol"}, members(t, reader))

	online, err := reader.IsOnline(ctx, "bob")
	require.NoError(t, err)
	assert.False(t, online)

	assert.Error(t, reader.SetOnline(ctx, "dave"))
}

func TestCrashedGatewayExpires(t *testing.T) {
	ctx := context.Background()
	mr, rdb := newRedis(t)
	g1 := NewRedisMirror(rdb, "g1")
	g2 := NewRedisMirror(rdb, "g2")

	require.NoError(t, g1.SetOnline(ctx, "alice"))
	require.NoError(t, g2.SetOnline(ctx, "bob"))

	mr.FastForward(DefaultTTL / 2)
	require.NoError(t, g1.refresh(ctx))
	mr.FastForward(DefaultTTL/2 + time.Second)

	assert.ElementsMatch(t, []string{"alice"}, members(t, g1))
	index, err := mr.SMembers(GatewaysKey)
	require.NoError(t, err)
	assert.Equal(t, []string{"g1"}, index)
}

func TestMembersWithNoGateways(t *testing.T) {
	_, rdb := newRedis(t)
	assert.Empty(t, members(t, NewRedisMirror(rdb, "")))
}
