package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/timfee/scheduler/libs/auth"
	"github.com/timfee/scheduler/libs/db"
	"github.com/timfee/scheduler/libs/grpcx"
	"github.com/timfee/scheduler/libs/httpx"
	"github.com/timfee/scheduler/libs/kafkax"
	otelx "github.com/timfee/scheduler/libs/otel"
	"github.com/timfee/scheduler/libs/runtime"
	"github.com/timfee/scheduler/services/booking-service/internal/apptypes"
	"github.com/timfee/scheduler/services/booking-service/internal/booking"
	"github.com/timfee/scheduler/services/booking-service/internal/calendar"
	"github.com/timfee/scheduler/services/booking-service/internal/config"
	"github.com/timfee/scheduler/services/booking-service/internal/events"
	"github.com/timfee/scheduler/services/booking-service/internal/handlers"
	"github.com/timfee/scheduler/services/booking-service/internal/ratelimit"
	"github.com/timfee/scheduler/services/booking-service/internal/scheduling"
	"github.com/timfee/scheduler/services/booking-service/internal/storage"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(cfg.ServiceName, cfg.LogLevel)

	ctx, stop := runtime.SignalContext(context.Background())
	defer stop()

	otelCfg, err := otelx.ConfigFromEnv(cfg.ServiceName)
	if err != nil {
		panic(err)
	}
	otelShutdown, err := otelx.Setup(ctx, otelCfg)
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	var checks []runtime.ReadyCheck

	cal, types, closeStore, storeChecks, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("storage init failed", "err", err)
		panic(err)
	}
	defer closeStore()
	checks = append(checks, storeChecks...)

	days, err := scheduling.ParseDays(cfg.BusinessDays)
	if err != nil {
		panic(err)
	}
	hours, err := scheduling.NewWeekly(cfg.BusinessHours, days)
	if err != nil {
		panic(err)
	}

	var publisher booking.Publisher
	if cfg.KafkaBrokers != "" {
		writer := events.NewWriter(cfg.KafkaBrokers)
		defer func() {
			if err := writer.Close(); err != nil {
				logger.Warn("kafka writer close failed", "err", err)
			}
		}()
		publisher = events.NewKafkaPublisher(writer)
		checks = append(checks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(cfg.KafkaBrokers)})
	}

	ctrl := booking.NewController(booking.Deps{
		Calendar:  cal,
		Types:     types,
		Hours:     hours,
		Limiter:   ratelimit.NewCooldown(cfg.BookingCooldown),
		Publisher: publisher,
		Logger:    logger,
	}, booking.Config{
		LockWaitTimeout: cfg.LockWaitTimeout,
		ProviderTimeout: cfg.ProviderTimeout,
		Location:        cfg.MeetingLocation,
	})

	h := handlers.NewBookingHandler(handlers.BookingHandlerDeps{
		Booker:     ctrl,
		Calendar:   cal,
		Types:      types,
		Hours:      hours,
		Logger:     logger,
		RetryAfter: cfg.BookingCooldown,
	})

	ipLimiter, redisClose, redisCheck := newIPLimiter(cfg)
	defer redisClose()
	if redisCheck != nil {
		checks = append(checks, *redisCheck)
	}

	mux := runtime.NewBaseMuxWithReady(checks...)
	mux.HandleFunc("GET /api/v1/public/slots", h.Slots)
	mux.Handle("POST /api/v1/public/book",
		httpx.RateLimit(ipLimiter, logger, cfg.RateLimitFailOpen)(http.HandlerFunc(h.Book)))

	inflight := http.Handler(http.HandlerFunc(h.InFlight))
	if cfg.OperatorJWTSecret != "" {
		inflight = auth.RequireRole([]byte(cfg.OperatorJWTSecret), auth.RoleOperator, logger)(inflight)
	} else {
		logger.Warn("OPERATOR_JWT_SECRET not set; in-flight debug endpoint is unauthenticated")
	}
	mux.Handle("GET /debug/bookings/inflight", inflight)

	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins: cfg.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Content-Type", "Authorization", "X-Request-Id"},
			MaxAge:         10 * time.Minute,
		}),
		httpx.WithBodyLimit(int64(cfg.BodyLimitBytes)),
		httpx.WithTimeout(cfg.RequestTimeout),
	)

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           otelhttp.NewHandler(httpHandler, "booking"),
		ReadHeaderTimeout: 5 * time.Second,
	}

	grpcSrv, health := grpcx.NewServer()
	grpcLis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		panic(err)
	}
	health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	health.SetServingStatus(cfg.ServiceName, healthpb.HealthCheckResponse_SERVING)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		logger.Info("grpc server starting", "addr", grpcLis.Addr().String())
		return grpcSrv.Serve(grpcLis)
	})
	g.Go(func() error {
		<-gctx.Done()
		health.Shutdown()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("http server shutdown error", "err", err)
		}
		grpcSrv.GracefulStop()
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("server error", "err", err)
	}
	logger.Info("shutdown complete")
}

// openStore picks Postgres when DATABASE_URL is set and the in-memory
// calendar otherwise.
func openStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (calendar.Provider, apptypes.Lookup, func(), []runtime.ReadyCheck, error) {
	static, err := apptypes.ParseStatic(cfg.AppointmentTypes)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	if cfg.DatabaseURL == "" {
		logger.Warn("DATABASE_URL not set; appointments are kept in memory")
		return calendar.NewMemory(), static, func() {}, nil, nil
	}

	pool, err := db.Open(ctx, cfg.DatabaseURL, db.Options{})
	if err != nil {
		return nil, nil, nil, nil, err
	}
	if cfg.DBAutoMigrate {
		if err := storage.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, nil, nil, err
		}
	}

	types := storage.NewAppointmentTypeRepository(pool)
	for _, t := range static.All() {
		if err := types.Upsert(ctx, t); err != nil {
			pool.Close()
			return nil, nil, nil, nil, err
		}
	}
	checks := []runtime.ReadyCheck{{Name: "postgres", Check: db.ReadyCheck(pool)}}
	return storage.NewCalendarRepository(pool), types, pool.Close, checks, nil
}

// newIPLimiter shares the per-IP budget across replicas through Redis when
// REDIS_ADDR is set.
func newIPLimiter(cfg config.Config) (httpx.Limiter, func(), *runtime.ReadyCheck) {
	if cfg.RedisAddr == "" {
		return httpx.NewMemoryLimiter(cfg.IPRateLimit, cfg.IPRateWindow), func() {}, nil
	}
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
	limiter := httpx.NewRedisLimiter(rdb, cfg.IPRateLimit, cfg.IPRateWindow, cfg.ServiceName+":ip")
	check := &runtime.ReadyCheck{Name: "redis", Check: httpx.RedisReadyCheck(rdb)}
	return limiter, func() { _ = rdb.Close() }, check
}
