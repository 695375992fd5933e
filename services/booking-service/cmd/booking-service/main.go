package main

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/slotbookhq/slotbook/libs/config"
	"github.com/slotbookhq/slotbook/libs/db"
	"github.com/slotbookhq/slotbook/libs/httpx"
	"github.com/slotbookhq/slotbook/libs/kafkax"
	otelx "github.com/slotbookhq/slotbook/libs/otel"
	"github.com/slotbookhq/slotbook/libs/runtime"
	"github.com/slotbookhq/slotbook/services/booking-service/internal/gcal"
	"github.com/slotbookhq/slotbook/services/booking-service/internal/handlers"
	"github.com/slotbookhq/slotbook/services/booking-service/internal/outbox"
	"github.com/slotbookhq/slotbook/services/booking-service/internal/schedule"
	"github.com/slotbookhq/slotbook/services/booking-service/internal/storage"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	service := config.String("SERVICE_NAME", "booking-service")
	port, err := config.Port("PORT", "8080")
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
	jwtSecret, err := config.RequiredString("JWT_SECRET")
	if err != nil {
		panic(err)
	}

	pool, err := db.Open(ctx, dbURL)
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	providers := storage.NewProviderRepository(pool)
	templates := storage.NewTemplateRepository(pool)
	types := storage.NewAppointmentTypeRepository(pool)
	appointments := storage.NewAppointmentRepository(pool)
	settings := storage.NewSettingsRepository(pool)
	calendars := storage.NewCalendarRepository(pool)
	outboxRepo := outbox.NewRepository(pool)

	clock := schedule.SystemClock{}
	calendarClient := gcal.NewClient(calendars,
		config.String("GOOGLE_CLIENT_ID", ""),
		config.String("GOOGLE_CLIENT_SECRET", ""))
	busy := schedule.NewBusyAggregator(appointments, calendarClient, clock, logger)
	generator := schedule.NewSlotGenerator(templates, busy, clock)
	validator := schedule.NewBookingValidator(generator, clock)
	templateService := schedule.NewTemplateService(templates)

	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   config.String("KAFKA_BROKERS", ""),
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go outboxPublisher.Run(ctx)

	authHandler := handlers.NewAuthHandler(providers, jwtSecret,
		config.Bool("REGISTRATION_ENABLED", true))
	templateHandler := handlers.NewTemplateHandler(templateService)
	typeHandler := handlers.NewAppointmentTypeHandler(types)
	settingsHandler := handlers.NewSettingsHandler(settings)
	calendarHandler := handlers.NewCalendarHandler(calendars)
	appointmentHandler := handlers.NewAppointmentHandler(pool, appointments, providers, types, outboxRepo, logger)
	publicHandler := handlers.NewPublicHandler(pool, providers, types, settings, appointments, outboxRepo, generator, validator, logger)

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(config.String("KAFKA_BROKERS", ""))},
	)

	mux.HandleFunc("/api/v1/auth/register", authHandler.Register)
	mux.HandleFunc("/api/v1/auth/login", authHandler.Login)

	authed := func(h http.HandlerFunc) http.Handler {
		return handlers.RequireAuth(jwtSecret, h)
	}
	mux.Handle("/api/v1/auth/me", authed(authHandler.Me))
	mux.Handle("/api/v1/templates", authed(routeByMethod(templateHandler.List, templateHandler.Create)))
	mux.Handle("PUT /api/v1/templates/{id}", authed(templateHandler.Update))
	mux.Handle("DELETE /api/v1/templates/{id}", authed(templateHandler.Delete))
	mux.Handle("/api/v1/appointment-types", authed(routeByMethod(typeHandler.List, typeHandler.Create)))
	mux.Handle("PUT /api/v1/appointment-types/{id}", authed(typeHandler.Update))
	mux.Handle("DELETE /api/v1/appointment-types/{id}", authed(typeHandler.Delete))
	mux.Handle("/api/v1/settings", authed(routeByMethod(settingsHandler.Get, settingsHandler.Update)))
	mux.Handle("/api/v1/calendar", authed(calendarHandler.Status))
	mux.Handle("/api/v1/calendar/connect", authed(calendarHandler.Connect))
	mux.Handle("/api/v1/calendar/disconnect", authed(calendarHandler.Disconnect))
	mux.Handle("POST /api/v1/calendar/checked", authed(calendarHandler.AddChecked))
	mux.Handle("DELETE /api/v1/calendar/checked", authed(calendarHandler.RemoveChecked))
	mux.Handle("/api/v1/appointments", authed(appointmentHandler.List))
	mux.Handle("POST /api/v1/appointments/{id}/cancel", authed(appointmentHandler.Cancel))

	// The public surface gets a Redis fixed-window limiter; everything
	// else sits behind auth.
	public := http.NewServeMux()
	public.HandleFunc("GET /api/v1/public/{provider}/appointment-types", publicHandler.Types)
	public.HandleFunc("GET /api/v1/public/{provider}/{type}/availability", publicHandler.Availability)
	public.HandleFunc("POST /api/v1/public/{provider}/{type}/book", publicHandler.Book)
	mux.Handle("/api/v1/public/", withPublicRateLimit(public, logger))

	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins: config.Strings("CORS_ALLOWED_ORIGINS"),
			AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Authorization", "Content-Type", httpx.RequestIDHeader},
			MaxAge:         10 * time.Minute,
		}),
		httpx.WithBodyLimit(1<<20),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "booking")

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
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

func routeByMethod(get, write http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			get(w, r)
			return
		}
		write(w, r)
	}
}

func withPublicRateLimit(next http.Handler, logger *slog.Logger) http.Handler {
	limit := config.Int("PUBLIC_RATE_LIMIT", 60)

	redisURL := config.String("REDIS_URL", "")
	if redisURL == "" {
		return httpx.NewRateLimiter(limit, time.Minute).Middleware()(next)
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		logger.Error("invalid REDIS_URL; falling back to in-memory rate limiting", "err", err)
		return httpx.NewRateLimiter(limit, time.Minute).Middleware()(next)
	}
	limiter := httpx.NewRedisRateLimiter(redis.NewClient(opts), limit, time.Minute, "rl:public")
	return limiter.Middleware(logger, true)(next)
}
