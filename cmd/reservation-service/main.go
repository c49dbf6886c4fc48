package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"hauntq/internal/callstate"
	"hauntq/internal/config"
	"hauntq/internal/httpapi"
	"hauntq/internal/hub"
	"hauntq/internal/logging"
	"hauntq/internal/models"
	"hauntq/internal/store"
	"hauntq/internal/store/memory"
	"hauntq/internal/store/postgres"
	"hauntq/internal/telemetry"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const serviceName = "reservation-service"

type backend interface {
	store.ReservationStore
	store.CallStateRepository
}

func main() {
	if err := config.LoadDotEnv(); err != nil {
		logrus.Fatalf("load .env: %v", err)
	}
	cfg := config.Load()
	logger := logging.New(cfg.LogLevel)

	shutdownTelemetry := telemetry.Setup(serviceName, logger)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTelemetry(ctx)
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	data, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		logger.WithField("driver", cfg.StoreDriver).Fatalf("store: %v", err)
	}
	defer closeStore()

	auth, err := httpapi.NewAuthenticator(httpapi.AuthOptions{
		Secret:       cfg.JWTSecret,
		TTL:          cfg.JWTTTL,
		Password:     cfg.AdminPassword,
		PasswordHash: cfg.AdminPasswordHash,
	})
	if err != nil {
		logger.Fatalf("admin auth: %v", err)
	}

	events := hub.New(logger)
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Fatalf("redis url: %v", err)
		}
		rdb := redis.NewClient(opts)
		defer rdb.Close()
		relay := hub.NewRedisRelay(rdb, "", events, logger)
		events.SetRelay(relay)
		go func() {
			if err := relay.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logging.LogError(logger, "main", "relay.Run", err, nil)
			}
		}()
	}

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      newServerHandler(cfg, data, auth, events, logger),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.WithFields(logrus.Fields{
			"addr":   server.Addr,
			"driver": cfg.StoreDriver,
			"tz":     cfg.EventTimezone,
		}).Info(serviceName + " listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("server error: %v", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logging.LogError(logger, "main", "server.Shutdown", err, nil)
	}
}

func openStore(ctx context.Context, cfg config.Config) (backend, func(), error) {
	switch cfg.StoreDriver {
	case config.DriverMemory:
		return memory.NewStore(), func() {}, nil
	case config.DriverPostgres:
		if cfg.DatabaseURL == "" {
			return nil, nil, errors.New("DB_DSN is required for the postgres driver")
		}
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return postgres.NewStore(pool, postgres.Options{}), pool.Close, nil
	default:
		return nil, nil, errors.New("unknown STORE_DRIVER " + cfg.StoreDriver)
	}
}

// newServerHandler wires the call-state service, API routes and realtime
// endpoint behind the middleware chain.
func newServerHandler(cfg config.Config, data backend, auth *httpapi.Authenticator, events *hub.Hub, logger *logrus.Logger) http.Handler {
	calls := callstate.NewService(data, callstate.Options{
		Location: cfg.Location(),
		OnChange: func(state models.CallState) {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := events.Publish(ctx, hub.EventCallState, state); err != nil {
				logging.LogError(logger, "main", "events.Publish", err, logrus.Fields{"type": hub.EventCallState})
			}
		},
	})

	snapshot := func(r *http.Request) ([]byte, error) {
		state, err := calls.Status(r.Context())
		if err != nil {
			return nil, err
		}
		return hub.Encode(hub.EventCallState, state, time.Now().UTC())
	}

	handler := httpapi.NewHandler(data, calls, auth, httpapi.Options{
		Publisher: events,
		Realtime:  events.Handler("/realtime", snapshot),
		Logger:    logger,
	})
	limiter := httpapi.NewRateLimiter(httpapi.RateLimitConfig{
		IPPerMinute:    cfg.RateLimitPerMinute,
		IPBurst:        cfg.RateLimitBurst,
		TrustForwarded: cfg.TrustProxyHeaders,
	})

	chain := httpapi.AuthMiddleware(auth, handler.Routes())
	chain = limiter.Middleware(chain)
	chain = httpapi.LoggingMiddleware(logger, chain)
	chain = httpapi.NewCORS(cfg.CORSAllowedOrigins).Handler(chain)
	return otelhttp.NewHandler(chain, serviceName)
}
