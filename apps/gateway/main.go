package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"github.com/spf13/cobra"

	"github.com/mahaj/lionsphere/pkg/auth"
	"github.com/mahaj/lionsphere/pkg/bus"
	"github.com/mahaj/lionsphere/pkg/config"
	"github.com/mahaj/lionsphere/pkg/logging"
	"github.com/mahaj/lionsphere/pkg/metrics"
	"github.com/mahaj/lionsphere/pkg/model"
	"github.com/mahaj/lionsphere/pkg/presence"
	"github.com/mahaj/lionsphere/pkg/realtime"
)

func main() {
	var configFile string
	cmd := &cobra.Command{
		Use:          "gateway",
		Short:        "LionSphere realtime gateway",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configFile, ":8080")
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
	log, closer, err := logging.New("gateway", cfg.Log)
	if err != nil {
		return err
	}
	defer closer.Close()

	rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
	defer rdb.Close()
	// Every boot is a new instance; users held by a previous run expire with
	// its set.
	instance := uuid.NewString()
	mirror := presence.NewRedisMirror(rdb, instance)
	go mirror.Keepalive(ctx, presence.DefaultTTL/3, func(err error) {
		log.Warn("failed to refresh presence", "err", err)
	})
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := mirror.Close(closeCtx); err != nil {
			log.Warn("failed to clear presence", "err", err)
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	hub := realtime.NewHub(presence.NewTable[realtime.Conn](), mirror, metrics.NewGateway(reg), log)
	go hub.Run(ctx)

	// Unique group per instance so every gateway sees every delivery.
	reader := bus.NewReader(cfg.Kafka.Brokers, cfg.Kafka.DeliveryTopic, "gateway-group-"+instance, kafka.LastOffset)
	defer reader.Close()
	go bus.Consume(ctx, reader, func(_ context.Context, value []byte) error {
		var n model.Notification
		if err := json.Unmarshal(value, &n); err != nil {
			return err
		}
		hub.Deliver(&n)
		return nil
	}, time.Second, log)

	issuer := auth.NewIssuer(cfg.JWT.Secret, cfg.JWT.TTL)
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws", func(w http.ResponseWriter, r *http.Request) {
		realtime.ServeWs(hub, issuer, w, r)
	})
	mux.HandleFunc("GET /online", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string][]string{"users": hub.Online()})
	})
	mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	srv := &http.Server{Addr: cfg.HTTP.Addr, Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Info("gateway service starting", "addr", cfg.HTTP.Addr, "instance", instance)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
