package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/sushiko/orderflow/internal/notify/dispatcher"
	notifykafka "github.com/sushiko/orderflow/internal/notify/infrastructure/kafka"
	"github.com/sushiko/orderflow/internal/notify/infrastructure/ws"
	"github.com/sushiko/orderflow/internal/notify/registry"
	"github.com/sushiko/orderflow/pkg/idempotency"
	"github.com/sushiko/orderflow/pkg/logging"
	"github.com/sushiko/orderflow/pkg/shutdown"
	"github.com/sushiko/orderflow/pkg/tracing"
)

func main() {
	log := logging.New()

	ctx, cancel := shutdown.WithSignals(context.Background())
	defer cancel()

	kafkaBrokers := []string{env("KAFKA_ADDR", "localhost:9092")}
	redisAddr := env("REDIS_ADDR", "localhost:6379")
	otlpEndpoint := env("OTLP_ENDPOINT", "localhost:4317")
	httpAddr := env("HTTP_ADDR", ":8081")
	inTopic := env("IN_TOPIC", "order.status.events")

	tp, err := tracing.Init(ctx, "notify-service", otlpEndpoint, log)
	if err != nil {
		log.Error("otel init failed", "err", err)
		os.Exit(1)
	}
	defer func() { _ = tp.Shutdown(context.Background()) }()

	redisDB := redis.NewClient(&redis.Options{Addr: redisAddr})
	defer redisDB.Close()
	idem := idempotency.NewStore(redisDB, 10*time.Minute)

	reg := registry.New()
	hub := ws.NewHub(log, reg)
	disp := dispatcher.New(log, reg, hub)
	consumer := notifykafka.NewConsumer(log, kafkaBrokers, inTopic, "notify-service", disp, idem)

	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Get("/ws", hub.HandleWS)
	srv := &http.Server{
		Addr:        httpAddr,
		Handler:     r,
		ReadTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return consumer.Run(gctx)
	})
	g.Go(func() error {
		log.Info("http listening", "addr", httpAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		drainCtx, drainCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer drainCancel()
		return srv.Shutdown(drainCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("notify-service stopped with error", "err", err)
		os.Exit(1)
	}
	log.Info("notify-service shutdown complete")
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
