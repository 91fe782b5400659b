package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/sbilibin2017/gw-settlement-ledger/internal/facades"
	"github.com/sbilibin2017/gw-settlement-ledger/internal/handlers"
	"github.com/sbilibin2017/gw-settlement-ledger/internal/jwt"
	"github.com/sbilibin2017/gw-settlement-ledger/internal/logger"
	"github.com/sbilibin2017/gw-settlement-ledger/internal/middlewares"
	"github.com/sbilibin2017/gw-settlement-ledger/internal/models"
	"github.com/sbilibin2017/gw-settlement-ledger/internal/queue"
	"github.com/sbilibin2017/gw-settlement-ledger/internal/repositories"
	"github.com/sbilibin2017/gw-settlement-ledger/internal/services"
	"github.com/sbilibin2017/gw-settlement-ledger/internal/storage"
)

// Build info variables, set via ldflags at build time.
var (
	buildVersion = "N/A" // Version of the service
	buildDate    = "N/A" // Build date
	buildCommit  = "N/A" // Git commit hash
)

// @title gw-settlement-ledger API
// @version 1.0.0
// @description Settlement ledger service: webhook intake, reserve-constrained batch settlement and clearing metrics
// @host localhost:8080
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	printBuildInfo()
	configPath := parseFlags()

	appHost, appPort, logLevel,
		dataDir, storeMaxBytes, backupRetentionHours,
		lockRetries, lockBackoffMs,
		drainIntervalMs, queueMaxAttempts,
		reserveTotal, feePercent,
		jwtSecret, jwtExpSecond,
		redisHost, redisPort, redisDB, redisPassword, idempotencyTTLSecond,
		kafkaBroker, kafkaTopic,
		err := parseConfig(configPath)
	if err != nil {
		log.Fatalf("failed to parse config: %v", err)
	}

	if err := run(context.Background(),
		appHost, appPort, logLevel,
		dataDir, storeMaxBytes, backupRetentionHours,
		lockRetries, lockBackoffMs,
		drainIntervalMs, queueMaxAttempts,
		reserveTotal, feePercent,
		jwtSecret, jwtExpSecond,
		redisHost, redisPort, redisDB, redisPassword, idempotencyTTLSecond,
		kafkaBroker, kafkaTopic,
	); err != nil {
		log.Fatalf("application stopped with error: %v", err)
	}
}

// printBuildInfo prints the build version, commit hash, and build date.
func printBuildInfo() {
	fmt.Printf("Starting service version %s, commit %s, build %s\n", buildVersion, buildCommit, buildDate)
}

// parseFlags parses command-line flags and returns the config file path.
func parseFlags() string {
	c := flag.String("c", "config.env", "Path to configuration file")
	flag.Parse()
	return *c
}

// parseConfig loads environment variables from a file and returns all
// application, storage, queue, reserve, JWT, Redis and Kafka configuration.
func parseConfig(path string) (
	appHost, appPort, logLevel string,
	dataDir string, storeMaxBytes int64, backupRetentionHours int,
	lockRetries, lockBackoffMs int,
	drainIntervalMs, queueMaxAttempts int,
	reserveTotal, feePercent float64,
	jwtSecretKey string, jwtExpSecond int,
	redisHost string, redisPort, redisDB int, redisPassword string, idempotencyTTLSecond int,
	kafkaBroker, kafkaTopic string,
	err error,
) {
	_ = godotenv.Load(path)

	getEnv := func(key, defaultValue string) string {
		if val, ok := os.LookupEnv(key); ok && val != "" {
			return val
		}
		return defaultValue
	}

	// Application config
	appHost = getEnv("APP_HOST", "localhost")
	appPort = getEnv("APP_PORT", "8080")
	logLevel = getEnv("APP_LOG_LEVEL", "info")

	// Storage config
	dataDir = getEnv("DATA_DIR", "data")
	if storeMaxBytes, err = strconv.ParseInt(getEnv("STORE_MAX_BYTES", "10485760"), 10, 64); err != nil {
		return
	}
	if backupRetentionHours, err = strconv.Atoi(getEnv("BACKUP_RETENTION_HOURS", "168")); err != nil {
		return
	}
	if lockRetries, err = strconv.Atoi(getEnv("LOCK_RETRIES", "10")); err != nil {
		return
	}
	if lockBackoffMs, err = strconv.Atoi(getEnv("LOCK_BACKOFF_MS", "50")); err != nil {
		return
	}

	// Queue config
	if drainIntervalMs, err = strconv.Atoi(getEnv("QUEUE_DRAIN_INTERVAL_MS", "1000")); err != nil {
		return
	}
	if queueMaxAttempts, err = strconv.Atoi(getEnv("QUEUE_MAX_ATTEMPTS", "3")); err != nil {
		return
	}

	// Reserve and fee config
	if reserveTotal, err = strconv.ParseFloat(getEnv("RESERVE_TOTAL", "1000000"), 64); err != nil {
		return
	}
	if feePercent, err = strconv.ParseFloat(getEnv("FEE_PERCENT", "0.02"), 64); err != nil {
		return
	}

	// JWT config
	jwtSecretKey = getEnv("JWT_SECRET_KEY", "my_super_secret_key")
	if jwtExpSecond, err = strconv.Atoi(getEnv("JWT_EXP_SECOND", "3600")); err != nil {
		return
	}

	// Redis config; empty host disables the redis idempotency cache
	redisHost = getEnv("REDIS_HOST", "")
	if redisPort, err = strconv.Atoi(getEnv("REDIS_PORT", "6379")); err != nil {
		return
	}
	if redisDB, err = strconv.Atoi(getEnv("REDIS_DB", "0")); err != nil {
		return
	}
	redisPassword = getEnv("REDIS_PASSWORD", "")
	if idempotencyTTLSecond, err = strconv.Atoi(getEnv("IDEMPOTENCY_TTL_SECOND", "86400")); err != nil {
		return
	}

	// Kafka config; empty broker disables event publishing
	kafkaBroker = getEnv("KAFKA_BROKER", "")
	kafkaTopic = getEnv("KAFKA_TOPIC", "ledger-events")

	return
}

// run initializes the logger, stores, repositories, services, drain loop and
// HTTP server, and handles graceful shutdown.
func run(ctx context.Context,
	appHost, appPort, logLevel string,
	dataDir string, storeMaxBytes int64, backupRetentionHours int,
	lockRetries, lockBackoffMs int,
	drainIntervalMs, queueMaxAttempts int,
	reserveTotal, feePercent float64,
	jwtSecretKey string, jwtExpSecond int,
	redisHost string, redisPort, redisDB int, redisPassword string, idempotencyTTLSecond int,
	kafkaBroker, kafkaTopic string,
) error {
	// Initialize logger
	if err := logger.Initialize(logLevel); err != nil {
		fmt.Println("failed to initialize logger:", err)
		return err
	}
	defer logger.Log.Sync()
	logger.Log.Infof("Logger initialized with level %s", logLevel)

	// Initialize stores, one per concern
	storeOpts := storage.Options{
		MaxBytes:    storeMaxBytes,
		LockRetries: uint64(lockRetries),
		LockBackoff: time.Duration(lockBackoffMs) * time.Millisecond,
	}

	txnStore, err := storage.New(filepath.Join(dataDir, "transactions"), "transactions",
		func() []models.Transaction { return []models.Transaction{} }, storeOpts)
	if err != nil {
		return fmt.Errorf("transaction store: %w", err)
	}
	reserveStore, err := storage.New(filepath.Join(dataDir, "reserve"), "reserve",
		func() models.ReservePool { return models.ReservePool{} }, storeOpts)
	if err != nil {
		return fmt.Errorf("reserve store: %w", err)
	}
	bankStore, err := storage.New(filepath.Join(dataDir, "banks"), "banks",
		func() []models.Bank { return []models.Bank{} }, storeOpts)
	if err != nil {
		return fmt.Errorf("bank store: %w", err)
	}
	auditStore, err := storage.New(filepath.Join(dataDir, "audit"), "audit",
		func() []models.AuditEntry { return []models.AuditEntry{} }, storeOpts)
	if err != nil {
		return fmt.Errorf("audit store: %w", err)
	}
	userStore, err := storage.New(filepath.Join(dataDir, "users"), "users",
		func() []models.User { return []models.User{} }, storeOpts)
	if err != nil {
		return fmt.Errorf("user store: %w", err)
	}

	// Connect to Redis when configured; fall back to the in-memory
	// idempotency cache otherwise
	var idempotencyCache services.IdempotencyCache = facades.NewMemoryIdempotencyCache()
	if redisHost != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     fmt.Sprintf("%s:%d", redisHost, redisPort),
			Password: redisPassword,
			DB:       redisDB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis connection error: %w", err)
		}
		defer rdb.Close()
		idempotencyCache = facades.NewIdempotencyCacheRepository(rdb, time.Duration(idempotencyTTLSecond)*time.Second)
		logger.Log.Infof("Idempotency cache backed by redis at %s:%d", redisHost, redisPort)
	}

	// Kafka writer when configured; event publishing is best-effort
	var kafkaWriter *kafka.Writer
	if kafkaBroker != "" {
		kafkaWriter = &kafka.Writer{
			Addr:     kafka.TCP(kafkaBroker),
			Topic:    kafkaTopic,
			Balancer: &kafka.LeastBytes{},
		}
		defer kafkaWriter.Close()
		logger.Log.Infof("Publishing ledger events to %s topic %s", kafkaBroker, kafkaTopic)
	}

	// Initialize JWT service
	tokener := jwt.New(
		jwt.WithSecretKey(jwtSecretKey),
		jwt.WithExpiration(time.Duration(jwtExpSecond)*time.Second),
	)

	// Initialize repositories
	txnRepo := repositories.NewTransactionRepository(txnStore)
	reserveRepo := repositories.NewReserveRepository(reserveStore, nil)
	bankRepo := repositories.NewBankRepository(bankStore)
	auditRepo := repositories.NewAuditRepository(auditStore, nil)
	userRepo := repositories.NewUserRepository(userStore, nil)

	// Seed the reserve pool and the bank registry
	if err := reserveRepo.Init(ctx, reserveTotal); err != nil {
		return fmt.Errorf("reserve init: %w", err)
	}
	if err := bankRepo.Seed(ctx, defaultBanks()); err != nil {
		return fmt.Errorf("bank seed: %w", err)
	}

	// Initialize services
	authService := services.NewAuthService(userRepo, userRepo, tokener)
	settlementService := services.NewSettlementService(txnRepo, reserveRepo, auditRepo, idempotencyCache, kafkaWriterOrNil(kafkaWriter), nil)
	ledgerService := services.NewLedgerService(txnRepo, feePercent)
	metricsService := services.NewMetricsService(txnRepo, reserveRepo, bankRepo, feePercent, nil)

	// Initialize the intake queue and its drain loop
	intakeQueue := queue.New()
	drainer := queue.NewDrainer(intakeQueue, txnRepo, auditRepo, drainerKafkaOrNil(kafkaWriter), queue.DrainerConfig{
		Interval:    time.Duration(drainIntervalMs) * time.Millisecond,
		MaxAttempts: queueMaxAttempts,
	})

	// Initialize handlers
	registerHandler := handlers.NewRegisterHandler(authService)
	loginHandler := handlers.NewLoginHandler(authService)
	webhookHandler := handlers.NewWebhookHandler(intakeQueue)
	settleHandler := handlers.NewSettleHandler(settlementService, tokener)
	pendingHandler := handlers.NewPendingHandler(ledgerService)
	transactionsHandler := handlers.NewTransactionsHandler(ledgerService)
	dashboardHandler := handlers.NewDashboardHandler(metricsService)

	// Request instrumentation
	httpMetrics := middlewares.NewHTTPMetrics(prometheus.DefaultRegisterer)

	// Setup router
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(middlewares.LoggingMiddleware)
	r.Use(httpMetrics.Middleware)

	r.Route("/api/v1", func(r chi.Router) {
		// Public routes
		r.Post("/webhook/transactions", webhookHandler)
		r.Post("/register", registerHandler)
		r.Post("/login", loginHandler)

		// Protected routes with JWT middleware
		r.Group(func(r chi.Router) {
			r.Use(middlewares.AuthMiddleware(tokener))
			r.Post("/settlements", settleHandler)
			r.Get("/transactions/pending", pendingHandler)
			r.Get("/transactions", transactionsHandler)
			r.Get("/dashboard", dashboardHandler)
		})
	})

	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL(fmt.Sprintf("http://%s:%s/swagger/doc.json", appHost, appPort)),
	))
	r.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%s", appHost, appPort),
		Handler: r,
	}

	// Graceful shutdown
	errChan := make(chan error, 1)
	ctxShutdown, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	// Drain loop and backup retention sweep run until shutdown
	go drainer.Run(ctxShutdown)
	go sweepBackupsLoop(ctxShutdown, txnStore, time.Duration(backupRetentionHours)*time.Hour)

	go func() {
		logger.Log.Infof("HTTP server listening on %s:%s", appHost, appPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("HTTP server failed: %w", err)
		}
	}()

	select {
	case <-ctxShutdown.Done():
		logger.Log.Info("Shutdown signal received, stopping HTTP server...")
	case serveErr := <-errChan:
		return serveErr
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.Errorw("HTTP server shutdown error", "error", err)
	}

	logger.Log.Info("HTTP server stopped gracefully")
	return nil
}

// kafkaWriterOrNil avoids wrapping a nil *kafka.Writer in a non-nil
// interface, which would defeat the services' nil checks.
func kafkaWriterOrNil(w *kafka.Writer) services.KafkaWriter {
	if w == nil {
		return nil
	}
	return w
}

func drainerKafkaOrNil(w *kafka.Writer) queue.KafkaWriter {
	if w == nil {
		return nil
	}
	return w
}

// defaultBanks seeds the registry on first start. The connection flag is
// surfaced on the dashboard's bank distribution.
func defaultBanks() []models.Bank {
	return []models.Bank{
		{Name: "First National Bank", Code: "FNB", Connected: true},
		{Name: "ABSA", Code: "ABSA", Connected: true},
		{Name: "Standard Bank", Code: "SBSA", Connected: true},
		{Name: "Nedbank", Code: "NED", Connected: true},
		{Name: "Capitec", Code: "CAP", Connected: false},
	}
}

// sweepBackupsLoop periodically removes transaction store backups older than
// the retention window.
func sweepBackupsLoop(ctx context.Context, store *storage.Store[[]models.Transaction], retention time.Duration) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := store.SweepBackups(ctx, retention)
			if err != nil {
				logger.Log.Errorw("backup sweep failed", "error", err)
				continue
			}
			if removed > 0 {
				logger.Log.Infow("backup sweep", "removed", removed)
			}
		}
	}
}
