package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	eventapp "github.com/freightdesk/backend/internal/application/event"
	settlementapp "github.com/freightdesk/backend/internal/application/settlement"
	trackingapp "github.com/freightdesk/backend/internal/application/tracking"
	"github.com/freightdesk/backend/internal/application/transaction"
	"github.com/freightdesk/backend/internal/domain/shared"
	"github.com/freightdesk/backend/internal/domain/shared/valueobject"
	"github.com/freightdesk/backend/internal/infrastructure/cache"
	"github.com/freightdesk/backend/internal/infrastructure/config"
	"github.com/freightdesk/backend/internal/infrastructure/event"
	"github.com/freightdesk/backend/internal/infrastructure/lock"
	"github.com/freightdesk/backend/internal/infrastructure/logger"
	"github.com/freightdesk/backend/internal/infrastructure/persistence"
	"github.com/freightdesk/backend/internal/infrastructure/telemetry"
	"github.com/freightdesk/backend/internal/interfaces/http/handler"
	"github.com/freightdesk/backend/internal/interfaces/http/middleware"
	"github.com/freightdesk/backend/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	baseLog, err := logger.New(cfg.Log, cfg.App)
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}

	ctx := context.Background()

	logExporter, err := telemetry.NewLogExporter(ctx, cfg.Telemetry)
	if err != nil {
		baseLog.Fatal("Failed to initialize log exporter", zap.Error(err))
	}
	log := logExporter.Attach(baseLog)
	defer func() {
		_ = log.Sync()
		if err := logExporter.Shutdown(context.Background()); err != nil {
			baseLog.Error("Error shutting down log exporter", zap.Error(err))
		}
	}()

	log.Info("Starting freight back office",
		zap.String("version", version),
		zap.String("port", cfg.App.Port),
		zap.String("home_currency", cfg.Settlement.HomeCurrency),
	)

	tracerProvider, err := telemetry.NewTracerProvider(ctx, cfg.Telemetry, log)
	if err != nil {
		log.Fatal("Failed to initialize tracing", zap.Error(err))
	}
	defer func() {
		if err := tracerProvider.Shutdown(context.Background()); err != nil {
			log.Error("Error shutting down tracer provider", zap.Error(err))
		}
	}()

	meterProvider, err := telemetry.NewMeterProvider(ctx, cfg.Telemetry, log)
	if err != nil {
		log.Fatal("Failed to initialize metrics", zap.Error(err))
	}
	defer func() {
		if err := meterProvider.Shutdown(context.Background()); err != nil {
			log.Error("Error shutting down meter provider", zap.Error(err))
		}
	}()
	meter := meterProvider.Meter("freightdesk")

	profiler, err := telemetry.NewProfiler(cfg.Telemetry, log)
	if err != nil {
		log.Fatal("Failed to start profiler", zap.Error(err))
	}
	profiler.LinkSpans(tracerProvider)
	defer func() {
		if err := profiler.Stop(); err != nil {
			log.Error("Error stopping profiler", zap.Error(err))
		}
	}()

	db, err := persistence.NewDatabase(&cfg.Database, persistence.Options{
		Logger:        log,
		LogLevel:      cfg.Log.Level,
		SlowThreshold: cfg.Telemetry.DBSlowQueryThresh,
		LogFullSQL:    cfg.Telemetry.DBLogFullSQL,
	})
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	if err := telemetry.RegisterDBTracing(db.DB, cfg.Telemetry, log); err != nil {
		log.Warn("Database tracing unavailable", zap.Error(err))
	}
	log.Info("Database connected")

	var redisClient *redis.Client
	if cfg.Lock.Backend == config.LockBackendRedis {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Fatal("Failed to connect to redis", zap.Error(err))
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				log.Error("Error closing redis", zap.Error(err))
			}
		}()
	}
	locker, err := lock.New(cfg.Lock, redisClient)
	if err != nil {
		log.Fatal("Failed to initialize entity locks", zap.Error(err))
	}
	log.Info("Entity locks ready", zap.String("backend", cfg.Lock.Backend))

	homeCurrency, err := valueobject.ParseCurrency(cfg.Settlement.HomeCurrency)
	if err != nil {
		log.Fatal("Invalid home currency", zap.Error(err))
	}

	// Repositories and the transaction scope that writes outbox entries
	codec := event.NewCodec()
	event.RegisterFreightEvents(codec)

	shipmentRepo := persistence.NewGormShipmentRepository(db.DB)
	eventLog := persistence.NewGormOtifEventLog(db.DB)
	invoiceRepo := persistence.NewGormInvoiceRepository(db.DB)
	outboxRepo := persistence.NewGormOutboxRepository(db.DB)
	scope := persistence.NewGormTransactionScope(db.DB, codec, cfg.Event.MaxRetries)

	guard := transaction.NewGuard(locker, transaction.RetryPolicy{
		Attempts:       cfg.Lock.RetryAttempts,
		InitialBackoff: cfg.Lock.RetryBackoff,
		LockTTL:        cfg.Lock.TTL,
	})

	freightMetrics, err := telemetry.NewFreightMetrics(meter)
	if err != nil {
		log.Fatal("Failed to create freight metrics", zap.Error(err))
	}

	// Application services
	shipmentService := trackingapp.NewShipmentService(
		shipmentRepo, eventLog, invoiceRepo, scope, guard, shared.SystemClock, log.Named("tracking"))
	shipmentService.SetMetrics(freightMetrics)
	invoiceService := settlementapp.NewInvoiceService(
		invoiceRepo, shipmentRepo, scope, guard, valueobject.NewRateConverter(),
		homeCurrency, shared.SystemClock, log.Named("settlement"))
	outboxService := eventapp.NewOutboxService(outboxRepo, log.Named("outbox"))

	// Event bus and outbox delivery
	deliveryMarks, err := cache.NewIdempotencyStore(cfg.Lock, redisClient)
	if err != nil {
		log.Fatal("Failed to initialize idempotency store", zap.Error(err))
	}
	defer func() {
		_ = deliveryMarks.Close()
	}()

	eventBus := event.NewInMemoryEventBus(log)
	eventBus.Subscribe(event.NewIdempotentHandler("metrics",
		telemetry.NewMetricsHandler(freightMetrics), deliveryMarks, cfg.Event.DedupTTL, log))
	if err := eventBus.Start(ctx); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}
	defer func() {
		if err := eventBus.Stop(context.Background()); err != nil {
			log.Error("Error stopping event bus", zap.Error(err))
		}
	}()

	if cfg.Event.ProcessorEnabled {
		outboxProcessor := event.NewOutboxProcessor(outboxRepo, eventBus, codec, event.ProcessorConfigFrom(cfg.Event), log)
		if err := outboxProcessor.Start(ctx); err != nil {
			log.Fatal("Failed to start outbox processor", zap.Error(err))
		}
		defer func() {
			if err := outboxProcessor.Stop(context.Background()); err != nil {
				log.Error("Error stopping outbox processor", zap.Error(err))
			}
		}()
	}

	// HTTP handlers
	shipmentHandler := handler.NewShipmentHandler(shipmentService)
	invoiceHandler := handler.NewInvoiceHandler(invoiceService)
	outboxHandler := handler.NewOutboxHandler(outboxService)
	systemHandler := handler.NewSystemHandler(db, version)

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := middleware.SetupValidator(); err != nil {
		log.Fatal("Failed to register validators", zap.Error(err))
	}

	engine := gin.New()
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	httpMetrics, err := middleware.HTTPMetrics(meter)
	if err != nil {
		log.Fatal("Failed to create HTTP metrics", zap.Error(err))
	}

	// Middleware order:
	// 1. RequestID - Generate/propagate request ID
	// 2. Recovery - Catch panics
	// 3. Tracing - Open the server span
	// 4. Logger - Log requests
	// 5. Security, CORS and body limit
	// 6. Metrics - Count and time requests
	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(middleware.TracingWithConfig(middleware.TracingConfig{
		ServiceName: cfg.Telemetry.ServiceName,
		Enabled:     cfg.Telemetry.Enabled,
	}))
	engine.Use(middleware.SpanErrorMarker())
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.Secure())
	engine.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     cfg.HTTP.CORSAllowOrigins,
		AllowMethods:     cfg.HTTP.CORSAllowMethods,
		AllowHeaders:     cfg.HTTP.CORSAllowHeaders,
		ExposeHeaders:    []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))
	engine.Use(httpMetrics)

	engine.GET("/health", systemHandler.Health)

	// Every API route acts for a tenant and user
	r := router.New(engine, router.WithAPIVersion("v1"))
	r.Use(middleware.Actor(), middleware.TracingAttributeInjector())
	if cfg.HTTP.RateLimit > 0 {
		rateLimiter := middleware.NewRateLimiter(cfg.HTTP.RateLimit, cfg.HTTP.RateLimitWindow)
		defer rateLimiter.Stop()
		r.Use(middleware.RateLimit(rateLimiter))
		log.Info("Rate limiting enabled",
			zap.Int("requests", cfg.HTTP.RateLimit),
			zap.Duration("window", cfg.HTTP.RateLimitWindow),
		)
	}
	r.Register(router.ShipmentRoutes(shipmentHandler)).
		Register(router.InvoiceRoutes(invoiceHandler)).
		Register(router.OutboxRoutes(outboxHandler))
	r.Setup()
	log.Info("API mounted", zap.String("prefix", r.Prefix()), zap.Int("routes", len(r.Routes())))

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
		return
	}

	log.Info("Server exited gracefully")
}
