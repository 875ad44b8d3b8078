package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/mahaj/lionsphere/pkg/auth"
	"github.com/mahaj/lionsphere/pkg/bus"
	"github.com/mahaj/lionsphere/pkg/chat"
	"github.com/mahaj/lionsphere/pkg/config"
	"github.com/mahaj/lionsphere/pkg/db"
	"github.com/mahaj/lionsphere/pkg/logging"
	"github.com/mahaj/lionsphere/pkg/metrics"
	"github.com/mahaj/lionsphere/pkg/notification"
	"github.com/mahaj/lionsphere/pkg/presence"
	"github.com/mahaj/lionsphere/pkg/snowflake"
)

func main() {
	var configFile string
	cmd := &cobra.Command{
		Use:          "api",
		Short:        "LionSphere HTTP API",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configFile, ":8081")
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg)
		},
	}
	cmd.Flags().StringVar(&configFile, "config", os.Getenv("LIONSPHERE_CONFIG"), "path to a YAML config file")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	log, closer, err := logging.New("api", cfg.Log)
	if err != nil {
		return err
	}
	defer closer.Close()

	session, err := db.NewSession(cfg.Scylla.Hosts, cfg.Scylla.Keyspace, cfg.Scylla.Timeout)
	if err != nil {
		return err
	}
	defer session.Close()

	rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
	defer rdb.Close()

	node, err := snowflake.NewNode(cfg.Snowflake.Node)
	if err != nil {
		return err
	}

	triggers := bus.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.TriggerTopic)
	defer triggers.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	srv := &Server{
		chat: chat.NewService(db.NewChatStore(session), node, log, cfg.Chat.PageSize),
		// no deduper or publisher: the API only reads notifications, creation
		// runs in the messaging worker
		notifications: notification.NewService(db.NewNotificationStore(session), nil, nil, cfg.Notifications.DedupWindow, log),
		triggers:      triggers,
		presence:      presence.NewRedisMirror(rdb, ""),
		issuer:        auth.NewIssuer(cfg.JWT.Secret, cfg.JWT.TTL),
		metrics:       metrics.NewAPI(reg),
		log:           log,
	}

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.Handle("/", srv.Routes())

	httpSrv := &http.Server{Addr: cfg.HTTP.Addr, Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		httpSrv.Shutdown(shutdownCtx)
	}()

	log.Info("API service starting", "addr", cfg.HTTP.Addr)
	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
