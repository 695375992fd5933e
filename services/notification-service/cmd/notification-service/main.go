package main

import (
	"context"
	"net/http"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/slotbookhq/slotbook/libs/config"
	"github.com/slotbookhq/slotbook/libs/db"
	"github.com/slotbookhq/slotbook/libs/httpx"
	"github.com/slotbookhq/slotbook/libs/kafkax"
	otelx "github.com/slotbookhq/slotbook/libs/otel"
	"github.com/slotbookhq/slotbook/libs/runtime"
	"github.com/slotbookhq/slotbook/services/notification-service/internal/consumer"
	"github.com/slotbookhq/slotbook/services/notification-service/internal/email"
	"github.com/slotbookhq/slotbook/services/notification-service/internal/inbox"
	"github.com/slotbookhq/slotbook/services/notification-service/internal/notify"
	"github.com/slotbookhq/slotbook/services/notification-service/internal/outbox"
	"github.com/slotbookhq/slotbook/services/notification-service/internal/storage"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	service := config.String("SERVICE_NAME", "notification-service")
	port, err := config.Port("PORT", "8081")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}

	pool, err := db.Open(ctx, dbURL)
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	inboxRepo := inbox.NewRepository(pool)
	notificationsRepo := storage.NewRepository(pool)
	outboxRepo := outbox.NewRepository(pool)
	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   config.String("KAFKA_BROKERS", ""),
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go outboxPublisher.Run(ctx)

	emailSender := email.NewSMTPSender(
		config.String("SMTP_HOST", "mailpit"),
		config.String("SMTP_PORT", "1025"),
		config.String("SMTP_FROM", "no-reply@slotbook.local"),
		config.String("SMTP_USERNAME", ""),
		config.String("SMTP_PASSWORD", ""),
	)
	notifier := notify.New(emailSender, notificationsRepo, notify.NewOutboxSink(pool, outboxRepo), logger)

	startConsumer := func(topic string) {
		if topic == "" {
			return
		}
		cfg := consumer.Config{
			Brokers: config.String("KAFKA_BROKERS", ""),
			GroupID: config.String("KAFKA_GROUP_ID", "notification-service"),
			Topic:   topic,
		}
		eventConsumer := consumer.New(logger, inboxRepo, cfg, func(ctx context.Context, msg kafka.Message) error {
			return notifier.HandleEvent(ctx, msg.Topic, msg.Value)
		})
		go eventConsumer.Run(ctx)
	}
	startConsumer(config.String("KAFKA_CONSUME_TOPIC", "booking.created.v1"))
	startConsumer(config.String("KAFKA_CONSUME_TOPIC_2", "booking.cancelled.v1"))

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(config.String("KAFKA_BROKERS", ""))},
	)
	handler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
	)
	handler = otelhttp.NewHandler(handler, "notification")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}
