package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"

	"github.com/sparksfinance/ledger-core/internal/handlers"
	"github.com/sparksfinance/ledger-core/internal/jwt"
	"github.com/sparksfinance/ledger-core/internal/logger"
	"github.com/sparksfinance/ledger-core/internal/middlewares"
	"github.com/sparksfinance/ledger-core/internal/repositories"
	"github.com/sparksfinance/ledger-core/internal/services"
	"github.com/sparksfinance/ledger-core/internal/tx"

	_ "github.com/jackc/pgx/v5/stdlib"
	httpSwagger "github.com/swaggo/http-swagger"
)

// Build info variables, set via ldflags at build time.
var (
	buildVersion = "N/A" // Version of the service
	buildDate    = "N/A" // Build date
	buildCommit  = "N/A" // Git commit hash
)

// @title ledger-core API
// @version 1.0.0
// @description Money-transfer ledger: accounts, atomic transfers, audit trail
// @host localhost:8080
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	printBuildInfo()
	configPath := parseFlags()

	cfg, err := parseConfig(configPath)
	if err != nil {
		log.Fatalf("failed to parse config: %v", err)
	}

	if err := run(context.Background(), cfg); err != nil {
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

// config holds all application settings loaded from the environment.
type config struct {
	AppHost  string
	AppPort  string
	LogLevel string

	PGHost         string
	PGPort         int
	PGUser         string
	PGPassword     string
	PGDB           string
	PGMaxOpenConns int
	PGMaxIdleConns int

	RedisHost         string
	RedisPort         int
	RedisDB           int
	RedisPassword     string
	RedisPoolSize     int
	RedisMinIdleConns int
	BalanceCacheTTL   time.Duration

	KafkaBroker string
	KafkaTopic  string

	JWTSecretKey string
	JWTExpSecond int
}

// parseConfig loads environment variables from a file and returns all
// application, database, Redis, Kafka, logging, and JWT configuration.
func parseConfig(path string) (*config, error) {
	_ = godotenv.Load(path)

	getEnv := func(key, defaultValue string) string {
		if val, ok := os.LookupEnv(key); ok && val != "" {
			return val
		}
		return defaultValue
	}

	getEnvInt := func(key string, defaultValue int) (int, error) {
		return strconv.Atoi(getEnv(key, strconv.Itoa(defaultValue)))
	}

	cfg := &config{
		AppHost:  getEnv("APP_HOST", "localhost"),
		AppPort:  getEnv("APP_PORT", "8080"),
		LogLevel: getEnv("APP_LOG_LEVEL", "info"),

		PGHost:     getEnv("POSTGRES_HOST", "localhost"),
		PGUser:     getEnv("POSTGRES_USER", "user"),
		PGPassword: getEnv("POSTGRES_PASSWORD", "password"),
		PGDB:       getEnv("POSTGRES_DB", "ledger"),

		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),

		KafkaBroker: getEnv("KAFKA_BROKER", "localhost:9092"),
		KafkaTopic:  getEnv("KAFKA_TOPIC", "transfers"),

		JWTSecretKey: getEnv("JWT_SECRET_KEY", "my_super_secret_key"),
	}

	var err error
	if cfg.PGPort, err = getEnvInt("POSTGRES_PORT", 5432); err != nil {
		return nil, err
	}
	if cfg.PGMaxOpenConns, err = getEnvInt("POSTGRES_MAX_OPEN_CONNS", 16); err != nil {
		return nil, err
	}
	if cfg.PGMaxIdleConns, err = getEnvInt("POSTGRES_MAX_IDLE_CONNS", 8); err != nil {
		return nil, err
	}
	if cfg.RedisPort, err = getEnvInt("REDIS_PORT", 6379); err != nil {
		return nil, err
	}
	if cfg.RedisDB, err = getEnvInt("REDIS_DB", 0); err != nil {
		return nil, err
	}
	if cfg.RedisPoolSize, err = getEnvInt("REDIS_POOL_SIZE", 10); err != nil {
		return nil, err
	}
	if cfg.RedisMinIdleConns, err = getEnvInt("REDIS_MIN_IDLE_CONNS", 2); err != nil {
		return nil, err
	}
	if cfg.JWTExpSecond, err = getEnvInt("JWT_EXP_SECOND", 3600); err != nil {
		return nil, err
	}

	cacheTTL, err := getEnvInt("BALANCE_CACHE_TTL_SECOND", 30)
	if err != nil {
		return nil, err
	}
	cfg.BalanceCacheTTL = time.Duration(cacheTTL) * time.Second

	return cfg, nil
}

// migrations bootstraps the schema on startup. Monetary columns are
// NUMERIC(12,2); accounts carry a CHECK so a negative balance can never
// commit even if a bug slips past the service layer.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS users (
		user_id UUID PRIMARY KEY,
		username VARCHAR(50) NOT NULL UNIQUE,
		email VARCHAR(100) NOT NULL UNIQUE,
		password_hash VARCHAR(255) NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE TABLE IF NOT EXISTS accounts (
		account_id UUID PRIMARY KEY,
		user_id UUID NOT NULL REFERENCES users(user_id),
		account_number VARCHAR(20) NOT NULL UNIQUE,
		balance NUMERIC(12,2) NOT NULL DEFAULT 0 CHECK (balance >= 0),
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		daily_transfer_limit NUMERIC(12,2) NOT NULL DEFAULT 100000,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (user_id)
	);`,
	`CREATE TABLE IF NOT EXISTS transactions (
		transaction_id UUID PRIMARY KEY,
		reference VARCHAR(50) NOT NULL UNIQUE,
		sender_account_id UUID NOT NULL REFERENCES accounts(account_id),
		receiver_account_id UUID NOT NULL REFERENCES accounts(account_id),
		amount NUMERIC(12,2) NOT NULL CHECK (amount > 0),
		status VARCHAR(20) NOT NULL,
		reason TEXT NOT NULL DEFAULT '',
		sender_balance_before NUMERIC(12,2),
		sender_balance_after NUMERIC(12,2),
		receiver_balance_before NUMERIC(12,2),
		receiver_balance_after NUMERIC(12,2),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_sender ON transactions (sender_account_id, created_at);`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_receiver ON transactions (receiver_account_id, created_at);`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_status ON transactions (status);`,
	`CREATE TABLE IF NOT EXISTS audit_logs (
		audit_id UUID PRIMARY KEY,
		actor UUID,
		action VARCHAR(50) NOT NULL,
		target VARCHAR(100) NOT NULL,
		detail TEXT NOT NULL DEFAULT '',
		ip_address VARCHAR(45) NOT NULL DEFAULT '',
		user_agent TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE INDEX IF NOT EXISTS idx_audit_logs_actor ON audit_logs (actor, created_at);`,
	`CREATE INDEX IF NOT EXISTS idx_audit_logs_created_at ON audit_logs (created_at);`,
}

func migrate(ctx context.Context, db *sqlx.DB) error {
	for _, m := range migrations {
		if _, err := db.ExecContext(ctx, m); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

// run initializes the logger, database, Redis, Kafka, and HTTP server.
// It sets up routes, applies middleware, and handles graceful shutdown.
func run(ctx context.Context, cfg *config) error {
	if err := logger.Initialize(cfg.LogLevel); err != nil {
		fmt.Println("failed to initialize logger:", err)
		return err
	}
	defer logger.Sync()
	logger.Log.Infof("Logger initialized with level %s", cfg.LogLevel)

	// Connect to PostgreSQL
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		cfg.PGUser, cfg.PGPassword, cfg.PGHost, cfg.PGPort, cfg.PGDB)
	logger.Log.Infof("Connecting to PostgreSQL at %s:%d", cfg.PGHost, cfg.PGPort)

	db, err := sqlx.ConnectContext(ctx, "pgx", dsn)
	if err != nil {
		logger.Log.Errorw("PostgreSQL connection error", "error", err)
		return err
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.PGMaxOpenConns)
	db.SetMaxIdleConns(cfg.PGMaxIdleConns)
	if err := db.PingContext(ctx); err != nil {
		logger.Log.Errorw("PostgreSQL ping failed", "error", err)
		return err
	}

	if err := migrate(ctx, db); err != nil {
		logger.Log.Errorw("schema migration failed", "error", err)
		return err
	}

	// Connect to Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", cfg.RedisHost, cfg.RedisPort),
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		PoolSize:     cfg.RedisPoolSize,
		MinIdleConns: cfg.RedisMinIdleConns,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Log.Errorw("Redis connection error", "error", err)
		return err
	}
	defer rdb.Close()

	// Kafka writer for transfer events
	kafkaWriter := &kafka.Writer{
		Addr:     kafka.TCP(cfg.KafkaBroker),
		Topic:    cfg.KafkaTopic,
		Balancer: &kafka.LeastBytes{},
	}
	defer kafkaWriter.Close()

	// Initialize JWT service
	jwtSvc := jwt.New(cfg.JWTSecretKey, time.Duration(cfg.JWTExpSecond)*time.Second)

	// Unit-of-work runner; repositories join the context-carried transaction
	runner := tx.NewRunner(db)

	// Initialize repositories
	userReadRepo := repositories.NewUserReadRepository(db)
	userWriteRepo := repositories.NewUserWriteRepository(db, tx.FromContext)
	accountReadRepo := repositories.NewAccountReadRepository(db)
	accountWriteRepo := repositories.NewAccountWriteRepository(db, tx.FromContext)
	txnWriteRepo := repositories.NewTransactionWriteRepository(db, tx.FromContext)
	txnReadRepo := repositories.NewTransactionReadRepository(db, tx.FromContext)
	auditWriteRepo := repositories.NewAuditWriteRepository(db, tx.FromContext)
	auditReadRepo := repositories.NewAuditReadRepository(db)
	balanceCache := repositories.NewBalanceCacheRepository(rdb, cfg.BalanceCacheTTL)

	// Initialize services
	auditService := services.NewAuditService(auditWriteRepo, auditReadRepo)
	authService := services.NewAuthService(runner, userReadRepo, userWriteRepo, jwtSvc, auditService)
	accountService := services.NewAccountService(runner, accountReadRepo, accountWriteRepo, balanceCache, auditService)
	transferService := services.NewTransferService(runner, accountWriteRepo, txnWriteRepo, txnReadRepo, auditService, balanceCache, kafkaWriter)

	// Setup router
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(middlewares.LoggingMiddleware(logger.Log))

	// Public routes
	r.Post("/register", handlers.NewRegisterHandler(authService))
	r.Post("/login", handlers.NewLoginHandler(authService))

	// Protected routes with JWT middleware
	r.Group(func(r chi.Router) {
		r.Use(middlewares.AuthMiddleware(jwtSvc))
		r.Post("/account", handlers.NewCreateAccountHandler(accountService, jwtSvc))
		r.Get("/balance", handlers.NewGetBalanceHandler(accountService, jwtSvc))
		r.Post("/account/deactivate", handlers.NewDeactivateAccountHandler(accountService, jwtSvc))
		r.Post("/account/limit", handlers.NewUpdateDailyLimitHandler(accountService, jwtSvc))
		r.Post("/transfer", handlers.NewTransferHandler(transferService, accountService, jwtSvc))
		r.Get("/transactions", handlers.NewTransactionsHandler(transferService, accountService, jwtSvc))
		r.Get("/statement", handlers.NewStatementHandler(transferService, accountService, jwtSvc))
		r.Get("/audit", handlers.NewAuditHandler(auditService, jwtSvc))
	})

	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL(fmt.Sprintf("http://%s:%s/swagger/doc.json", cfg.AppHost, cfg.AppPort)),
	))

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%s", cfg.AppHost, cfg.AppPort),
		Handler: r,
	}

	// Graceful shutdown
	errChan := make(chan error, 1)
	ctxShutdown, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	go func() {
		logger.Log.Infof("HTTP server listening on %s:%s", cfg.AppHost, cfg.AppPort)
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
