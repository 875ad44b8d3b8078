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
	"github.com/segmentio/kafka-go"
	"github.com/spf13/cobra"

	"github.com/mahaj/lionsphere/pkg/bus"
	"github.com/mahaj/lionsphere/pkg/config"
	"github.com/mahaj/lionsphere/pkg/db"
	"github.com/mahaj/lionsphere/pkg/logging"
	"github.com/mahaj/lionsphere/pkg/metrics"
	"github.com/mahaj/lionsphere/pkg/notification"
)

func main() {
	var (
		configFile string
		migrate    bool
	)
	cmd := &cobra.Command{
		Use:          "messaging",
		Short:        "LionSphere notification worker",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configFile, ":9091")
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg, migrate)
		},
	}
	cmd.Flags().StringVar(&configFile, "config", os.Getenv("LIONSPHERE_CONFIG"), "path to a YAML config file")
	cmd.Flags().BoolVar(&migrate, "migrate", true, "create the keyspace and tables on boot")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, migrate bool) error {
	log, closer, err := logging.New("messaging", cfg.Log)
	if err != nil {
		return err
	}
	defer closer.Close()

	if migrate {
		if err := db.Migrate(cfg.Scylla.Hosts, cfg.Scylla.Keyspace, 1, cfg.Scylla.Timeout); err != nil {
			return err
		}
	}
	session, err := db.NewSession(cfg.Scylla.Hosts, cfg.Scylla.Keyspace, cfg.Scylla.Timeout)
	if err != nil {
		return err
	}
	defer session.Close()

	rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
	defer rdb.Close()

	deliveries := bus.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.DeliveryTopic)
	defer deliveries.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	svc := notification.NewService(db.NewNotificationStore(session), notification.NewRedisDeduper(rdb), deliveries, cfg.Notifications.DedupWindow, log)
	consumer := NewConsumer(svc, metrics.NewMessaging(reg), log)

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	metricsSrv := &http.Server{Addr: cfg.HTTP.Addr, Handler: mux}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("metrics server failed", "err", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		metricsSrv.Shutdown(shutdownCtx)
	}()

	reader := bus.NewReader(cfg.Kafka.Brokers, cfg.Kafka.TriggerTopic, cfg.Kafka.GroupID, kafka.FirstOffset)
	defer reader.Close()

	log.Info("starting trigger consumer", "topic", cfg.Kafka.TriggerTopic, "group_id", cfg.Kafka.GroupID)
	bus.Consume(ctx, reader, consumer.Handle, time.Second, log)
	return nil
}
