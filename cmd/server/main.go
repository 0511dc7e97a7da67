package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	leasingapp "github.com/fleetlease/backend/internal/application/leasing"
	"github.com/fleetlease/backend/internal/infrastructure/config"
	"github.com/fleetlease/backend/internal/infrastructure/event"
	"github.com/fleetlease/backend/internal/infrastructure/logger"
	"github.com/fleetlease/backend/internal/infrastructure/persistence"
	"github.com/fleetlease/backend/internal/infrastructure/telemetry"
	"github.com/fleetlease/backend/internal/interfaces/http/handler"
	"github.com/fleetlease/backend/internal/interfaces/http/middleware"
	"github.com/fleetlease/backend/internal/interfaces/http/router"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting FleetLease Billing",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Initialize tracing
	tracerProvider, err := telemetry.NewTracerProvider(context.Background(), telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracerProvider.Shutdown(ctx); err != nil {
			log.Error("Error shutting down tracer provider", zap.Error(err))
		}
	}()

	// Create GORM logger backed by zap
	gormLogLevel := logger.MapGormLogLevel(cfg.Log.Level)
	gormLog := logger.NewGormLogger(log, gormLogLevel)

	// Initialize database connection with custom logger
	db, err := persistence.NewDatabaseWithCustomLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	// Register database query tracing (otelgorm + slow query spans)
	dbTracing := telemetry.NewDBTracingPlugin(telemetry.DBTracingConfig{
		Enabled:         cfg.Telemetry.DBTraceEnabled,
		LogFullSQL:      cfg.Telemetry.DBLogFullSQL,
		SlowQueryThresh: cfg.Telemetry.DBSlowQueryThresh,
		DBSystem:        "postgresql",
	}, log)
	if err := dbTracing.RegisterOtelGorm(db.DB); err != nil {
		log.Fatal("Failed to register database tracing", zap.Error(err))
	}

	// Billing policy from config; the defaults encode UAE leasing practice.
	policy := leasingapp.DefaultBillingPolicy()
	if cfg.Billing.VATRate != "" {
		policy.VATRate = decimal.RequireFromString(cfg.Billing.VATRate)
	}
	if cfg.Billing.SettleEpsilon != "" {
		policy.SettleEpsilon = decimal.RequireFromString(cfg.Billing.SettleEpsilon)
	}
	if cfg.Billing.GraceDays > 0 {
		policy.GraceDays = cfg.Billing.GraceDays
	}

	// Initialize repositories
	chargeRepo := persistence.NewGormChargeRepository(db.DB)
	paymentRepo := persistence.NewGormPaymentRepository(db.DB, policy.SettleEpsilon)
	seqRepo := persistence.NewGormSequenceRepository(db.DB)

	// Initialize event bus and the audit stream
	eventBus := event.NewInMemoryEventBus(log)
	eventBus.Subscribe(leasingapp.NewBillingAuditLogger(log))

	if err := eventBus.Start(context.Background()); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}
	defer func() {
		if err := eventBus.Stop(context.Background()); err != nil {
			log.Error("Error stopping event bus", zap.Error(err))
		}
	}()

	// Initialize application services
	chargeService := leasingapp.NewChargeService(chargeRepo, eventBus)
	invoiceService := leasingapp.NewInvoiceService(chargeRepo, paymentRepo, seqRepo, eventBus, policy)
	paymentService := leasingapp.NewPaymentService(paymentRepo, chargeRepo, eventBus, policy)
	creditNoteService := leasingapp.NewCreditNoteService(chargeRepo, seqRepo, eventBus)
	statementService := leasingapp.NewStatementService(chargeRepo, paymentRepo, policy)

	// Initialize HTTP handlers
	chargeHandler := handler.NewChargeHandler(chargeService)
	invoiceHandler := handler.NewInvoiceHandler(invoiceService)
	paymentHandler := handler.NewPaymentHandler(paymentService)
	creditNoteHandler := handler.NewCreditNoteHandler(creditNoteService)
	statementHandler := handler.NewStatementHandler(statementService)

	// Set Gin mode based on environment
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Setup validation
	middleware.SetupValidator()

	// Initialize router with custom middleware
	engine := gin.New()

	// Configure trusted proxies
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	// Apply middleware stack in order:
	// 1. RequestID - Generate/propagate request ID
	// 2. Recovery - Catch panics
	// 3. Logger - Log requests
	// 4. Security - Add security headers
	// 5. CORS - Handle cross-origin requests
	// 6. BodyLimit - Limit request body size
	// 7. Actor - Resolve the acting staff member
	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.Secure())

	// Configure CORS from config
	corsConfig := middleware.CORSConfig{
		AllowOrigins:     cfg.HTTP.CORSAllowOrigins,
		AllowMethods:     cfg.HTTP.CORSAllowMethods,
		AllowHeaders:     cfg.HTTP.CORSAllowHeaders,
		ExposeHeaders:    []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	engine.Use(middleware.CORSWithConfig(corsConfig))

	// Body size limit
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))

	// Actor resolution from X-Actor-ID
	engine.Use(middleware.Actor())

	// Request tracing (if enabled)
	if cfg.Telemetry.Enabled {
		engine.Use(middleware.TracingWithConfig(middleware.TracingConfig{
			ServiceName: cfg.Telemetry.ServiceName,
			Enabled:     true,
		}))
		engine.Use(middleware.TracingAttributeInjector())
		engine.Use(middleware.SpanErrorMarker())
	}

	// Health check endpoint (outside API versioning)
	engine.GET("/health", healthHandler(db, log))

	// Setup API routes using router
	r := router.NewRouter(engine, router.WithAPIVersion("v1"))

	// Leasing domain: ledger, invoices, payments, statements
	leaseRoutes := router.NewDomainGroup("leases", "/leases")

	// Charge ledger routes
	leaseRoutes.POST("/:id/charges", chargeHandler.Add)
	leaseRoutes.GET("/:id/charges", chargeHandler.List)

	// Invoice routes
	leaseRoutes.POST("/:id/invoices", invoiceHandler.Generate)
	leaseRoutes.GET("/:id/invoices", invoiceHandler.List)

	// Payment routes
	leaseRoutes.POST("/:id/payments", paymentHandler.Record)
	leaseRoutes.GET("/:id/payments", paymentHandler.List)
	leaseRoutes.GET("/:id/payments/unallocated", paymentHandler.ListUnallocated)

	// Account views
	leaseRoutes.GET("/:id/statement", statementHandler.Statement)
	leaseRoutes.GET("/:id/billing-periods", statementHandler.BillingPeriods)

	// Charge routes addressed by charge ID
	chargeRoutes := router.NewDomainGroup("charges", "/charges")
	chargeRoutes.GET("/:id", chargeHandler.Get)
	chargeRoutes.PUT("/:id", chargeHandler.Edit)
	chargeRoutes.DELETE("/:id", chargeHandler.Delete)

	// Invoice routes addressed by invoice ID
	invoiceRoutes := router.NewDomainGroup("invoices", "/invoices")
	invoiceRoutes.GET("/next-number", invoiceHandler.PreviewNextNumber)
	invoiceRoutes.GET("/:id", invoiceHandler.Get)
	invoiceRoutes.POST("/:id/credit-notes", creditNoteHandler.Issue)

	// Payment routes addressed by payment ID
	paymentRoutes := router.NewDomainGroup("payments", "/payments")
	paymentRoutes.GET("/:id", paymentHandler.Get)
	paymentRoutes.POST("/:id/applications", paymentHandler.Apply)
	paymentRoutes.POST("/:id/allocate", paymentHandler.AllocateOldestFirst)

	// Credit note routes
	creditNoteRoutes := router.NewDomainGroup("credit-notes", "/credit-notes")
	creditNoteRoutes.GET("/next-number", creditNoteHandler.PreviewNextNumber)

	// Register all domain groups
	r.Register(leaseRoutes).
		Register(chargeRoutes).
		Register(invoiceRoutes).
		Register(paymentRoutes).
		Register(creditNoteRoutes)

	// System routes
	systemHandler := handler.NewSystemHandler()
	systemRoutes := router.NewDomainGroup("system", "/system")
	systemRoutes.GET("/info", systemHandler.GetSystemInfo)
	systemRoutes.GET("/ping", systemHandler.Ping)
	r.Register(systemRoutes)

	// Setup routes
	r.Setup()

	// Also keep a simple ping at root API level for basic health checks
	engine.GET("/api/v1/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	// Create HTTP server with config
	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// healthHandler returns a handler for health check endpoints
func healthHandler(db *persistence.Database, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			log.Warn("Health check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"time":     time.Now().Format(time.RFC3339),
				"database": "error",
			})
			return
		}
		body := gin.H{
			"status":   "healthy",
			"time":     time.Now().Format(time.RFC3339),
			"database": "ok",
		}
		if stats, err := db.Stats(); err == nil {
			body["db_pool"] = gin.H{
				"open":     stats.OpenConnections,
				"in_use":   stats.InUse,
				"idle":     stats.Idle,
				"waits":    stats.WaitCount,
				"max_open": stats.MaxOpenConnections,
			}
		}
		c.JSON(http.StatusOK, body)
	}
}
