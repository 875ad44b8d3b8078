package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	HTTP          HTTP
	Log           Log
	Scylla        Scylla
	Redis         Redis
	Kafka         Kafka
	JWT           JWT
	Snowflake     Snowflake
	Notifications Notifications
	Chat          Chat
}

type HTTP struct {
	Addr string
}

type Log struct {
	Level  string
	Format string
	File   string
}

type Scylla struct {
	Hosts    []string
	Keyspace string
	Timeout  time.Duration
}

type Redis struct {
	Addr     string
	Password string
	DB       int
}

type Kafka struct {
	Brokers       []string
	TriggerTopic  string `mapstructure:"trigger_topic"`
	DeliveryTopic string `mapstructure:"delivery_topic"`
	GroupID       string `mapstructure:"group_id"`
}

type JWT struct {
	Secret string
	TTL    time.Duration
}

type Snowflake struct {
	Node int64
}

type Notifications struct {
	DedupWindow time.Duration `mapstructure:"dedup_window"`
}

type Chat struct {
	PageSize int `mapstructure:"page_size"`
}

// defaults per key; httpAddr differs per service.
func setDefaults(v *viper.Viper, httpAddr string) {
	v.SetDefault("http.addr", httpAddr)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.file", "")
	v.SetDefault("scylla.hosts", []string{"localhost:9042"})
	v.SetDefault("scylla.keyspace", "lionsphere")
	v.SetDefault("scylla.timeout", 5*time.Second)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("kafka.brokers", []string{"localhost:19092"})
	v.SetDefault("kafka.trigger_topic", "notification-triggers")
	v.SetDefault("kafka.delivery_topic", "notification-deliveries")
	v.SetDefault("kafka.group_id", "messaging-service-group")
	v.SetDefault("jwt.secret", "my_secret_key")
	v.SetDefault("jwt.ttl", 24*time.Hour)
	v.SetDefault("snowflake.node", 1)
	v.SetDefault("notifications.dedup_window", 60*time.Second)
	v.SetDefault("chat.page_size", 30)
}

// Load reads configuration for a service. The file is optional; environment
// variables prefixed with LIONSPHERE_ override it, and the bare KAFKA_BROKERS,
// REDIS_ADDR and SCYLLA_HOSTS variables are honoured as well.
func Load(file string, httpAddr string) (*Config, error) {
	v := viper.New()
	setDefaults(v, httpAddr)

	v.SetEnvPrefix("LIONSPHERE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.BindEnv("kafka.brokers", "LIONSPHERE_KAFKA_BROKERS", "KAFKA_BROKERS")
	v.BindEnv("redis.addr", "LIONSPHERE_REDIS_ADDR", "REDIS_ADDR")
	v.BindEnv("scylla.hosts", "LIONSPHERE_SCYLLA_HOSTS", "SCYLLA_HOSTS")

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); ok {
				return nil, errors.New("config file not found")
			}
			return nil, err
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, err
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) validate() error {
	if c.JWT.Secret == "" {
		return errors.New("jwt.secret must be set")
	}
	if c.Snowflake.Node < 0 || c.Snowflake.Node > 1023 {
		return errors.New("snowflake.node must be between 0 and 1023")
	}
	if c.Notifications.DedupWindow <= 0 {
		return errors.New("notifications.dedup_window must be positive")
	}
	if c.Chat.PageSize <= 0 {
		c.Chat.PageSize = 30
	}
	return nil
}
