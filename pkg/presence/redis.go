package presence

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const (
	// GatewaysKey indexes the gateway instances that may hold online users.
	GatewaysKey = "presence:gateways"

	// DefaultTTL bounds how long the users of a gateway that died without
	// cleaning up stay listed.
	DefaultTTL = 30 * time.Second

	onlinePrefix = "presence:online:"
)

// OnlineKey is the Redis set of users connected to one gateway instance.
func OnlineKey(instance string) string {
	return onlinePrefix + instance
}

// Mirror publishes presence changes outside the gateway process.
type Mirror interface {
	SetOnline(ctx context.Context, userID string) error
	SetOffline(ctx context.Context, userID string) error
}

// RedisMirror keeps one set per gateway instance in sync with that gateway's
// table. Readers answer presence queries from the union of all live sets.
type RedisMirror struct {
	rdb      *redis.Client
	instance string
	ttl      time.Duration
}

// NewRedisMirror returns a mirror writing as instance. Read-only users such
// as the API pass an empty instance.
func NewRedisMirror(rdb *redis.Client, instance string) *RedisMirror {
	return &RedisMirror{rdb: rdb, instance: instance, ttl: DefaultTTL}
}

func (m *RedisMirror) writable() error {
	if m.instance == "" {
		return errors.New("presence mirror has no instance")
	}
	return nil
}

func (m *RedisMirror) SetOnline(ctx context.Context, userID string) error {
	if err := m.writable(); err != nil {
		return err
	}
	key := OnlineKey(m.instance)
	_, err := m.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.SAdd(ctx, key, userID)
		p.Expire(ctx, key, m.ttl)
		p.SAdd(ctx, GatewaysKey, m.instance)
		return nil
	})
	return errors.Wrapf(err, "presence online %s", userID)
}

func (m *RedisMirror) SetOffline(ctx context.Context, userID string) error {
	if err := m.writable(); err != nil {
		return err
	}
	return errors.Wrapf(m.rdb.SRem(ctx, OnlineKey(m.instance), userID).Err(), "presence offline %s", userID)
}

// refresh extends the instance's set and re-registers it in the index.
func (m *RedisMirror) refresh(ctx context.Context) error {
	_, err := m.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Expire(ctx, OnlineKey(m.instance), m.ttl)
		p.SAdd(ctx, GatewaysKey, m.instance)
		return nil
	})
	return errors.Wrap(err, "presence refresh")
}

// Keepalive refreshes the instance's TTL every interval until ctx is done.
func (m *RedisMirror) Keepalive(ctx context.Context, every time.Duration, onErr func(error)) {
	if m.writable() != nil {
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := m.refresh(ctx); err != nil && onErr != nil {
				onErr(err)
			}
		}
	}
}

// Close drops the instance's set on shutdown.
func (m *RedisMirror) Close(ctx context.Context) error {
	if err := m.writable(); err != nil {
		return err
	}
	_, err := m.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, OnlineKey(m.instance))
		p.SRem(ctx, GatewaysKey, m.instance)
		return nil
	})
	return errors.Wrap(err, "presence close")
}

// liveKeys returns the sets of every indexed instance that still exists and
// prunes index entries whose set expired or emptied.
func (m *RedisMirror) liveKeys(ctx context.Context) ([]string, error) {
	instances, err := m.rdb.SMembers(ctx, GatewaysKey).Result()
	if err != nil {
		return nil, errors.Wrap(err, "presence gateways")
	}
	if len(instances) == 0 {
		return nil, nil
	}

	exists := make([]*redis.IntCmd, len(instances))
	_, err = m.rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
		for i, inst := range instances {
			exists[i] = p.Exists(ctx, OnlineKey(inst))
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "presence gateways")
	}

	var keys []string
	var stale []any
	for i, inst := range instances {
		if exists[i].Val() > 0 {
			keys = append(keys, OnlineKey(inst))
		} else {
			stale = append(stale, inst)
		}
	}
	if len(stale) > 0 {
		if err := m.rdb.SRem(ctx, GatewaysKey, stale...).Err(); err != nil {
			return nil, errors.Wrap(err, "presence prune")
		}
	}
	return keys, nil
}

// Members returns every user online on any gateway.
func (m *RedisMirror) Members(ctx context.Context) ([]string, error) {
	keys, err := m.liveKeys(ctx)
	if err != nil || len(keys) == 0 {
		return nil, err
	}
	users, err := m.rdb.SUnion(ctx, keys...).Result()
	if err != nil {
		return nil, errors.Wrap(err, "presence members")
	}
	return users, nil
}

func (m *RedisMirror) IsOnline(ctx context.Context, userID string) (bool, error) {
	keys, err := m.liveKeys(ctx)
	if err != nil {
		return false, err
	}
	for _, key := range keys {
		ok, err := m.rdb.SIsMember(ctx, key, userID).Result()
		if err != nil {
			return false, errors.Wrapf(err, "presence lookup %s", userID)
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}
