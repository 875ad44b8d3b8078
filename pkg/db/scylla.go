package db

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/gocql/gocql"
	"github.com/pkg/errors"
)

type Session struct {
	*gocql.Session
}

// Option adjusts the cluster configuration before connecting.
type Option func(*gocql.ClusterConfig)

func NewSession(hosts []string, keyspace string, timeout time.Duration, opts ...Option) (*Session, error) {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	cluster := gocql.NewCluster(hosts...)
	cluster.Keyspace = keyspace
	cluster.Consistency = gocql.Quorum
	cluster.Timeout = timeout
	cluster.ConnectTimeout = timeout

	// Retry policy
	cluster.RetryPolicy = &gocql.ExponentialBackoffRetryPolicy{
		NumRetries: 3,
		Min:        100 * time.Millisecond,
		Max:        1 * time.Second,
	}
	for _, opt := range opts {
		opt(cluster)
	}

	session, err := cluster.CreateSession()
	if err != nil {
		return nil, errors.Wrapf(err, "connect scylla %v", hosts)
	}

	slog.Info("connected to ScyllaDB cluster", "hosts", hosts, "keyspace", keyspace)
	return &Session{Session: session}, nil
}

var tables = []string{
	`CREATE TABLE IF NOT EXISTS messages (
		conversation_id text,
		id bigint,
		sender_id text,
		text text,
		attachment_url text,
		reply_to bigint,
		read_by set<text>,
		deleted boolean,
		created_at timestamp,
		PRIMARY KEY (conversation_id, id)
	) WITH CLUSTERING ORDER BY (id DESC)`,
	`CREATE TABLE IF NOT EXISTS user_conversations (
		user_id text,
		conversation_id text,
		other_user_id text,
		last_message_id bigint,
		last_updated timestamp,
		PRIMARY KEY (user_id, conversation_id)
	)`,
	`CREATE TABLE IF NOT EXISTS conversation_counters (
		user_id text,
		conversation_id text,
		unread_count counter,
		PRIMARY KEY (user_id, conversation_id)
	)`,
	`CREATE TABLE IF NOT EXISTS users (
		user_id text PRIMARY KEY,
		username text,
		avatar_url text
	)`,
	`CREATE TABLE IF NOT EXISTS notifications (
		recipient_id text,
		id timeuuid,
		sender_id text,
		type text,
		post_id text,
		comment_id text,
		message text,
		read boolean,
		created_at timestamp,
		PRIMARY KEY (recipient_id, id)
	) WITH CLUSTERING ORDER BY (id DESC)`,
}

// Migrate creates the keyspace and every table. Schema creation belongs to a
// migration tool in production; scripts/migrate and the services call this
// on boot for single-node setups.
func Migrate(hosts []string, keyspace string, replication int, timeout time.Duration, opts ...Option) error {
	sys, err := NewSession(hosts, "system", timeout, opts...)
	if err != nil {
		return err
	}
	q := fmt.Sprintf(`CREATE KEYSPACE IF NOT EXISTS %s WITH REPLICATION = { 'class' : 'SimpleStrategy', 'replication_factor' : %d }`, keyspace, replication)
	err = sys.Query(q).Exec()
	sys.Close()
	if err != nil {
		return errors.Wrap(err, "create keyspace")
	}

	s, err := NewSession(hosts, keyspace, timeout, opts...)
	if err != nil {
		return err
	}
	defer s.Close()
	for _, stmt := range tables {
		if err := s.Query(stmt).Exec(); err != nil {
			return errors.Wrap(err, "create table")
		}
	}
	return nil
}

// Drop removes every table, for local resets.
func Drop(s *Session) error {
	for _, t := range []string{"messages", "user_conversations", "conversation_counters", "users", "notifications"} {
		if err := s.Query("DROP TABLE IF EXISTS " + t).Exec(); err != nil {
			return errors.Wrapf(err, "drop %s", t)
		}
	}
	return nil
}
