package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/kevin07696/nmi-gateway/internal/adapters/nmi"
	"github.com/kevin07696/nmi-gateway/internal/adapters/postgres"
	"github.com/kevin07696/nmi-gateway/internal/adapters/secrets"
	"github.com/kevin07696/nmi-gateway/internal/config"
	"github.com/kevin07696/nmi-gateway/internal/domain"
	"github.com/kevin07696/nmi-gateway/internal/domain/ports"
	paymentHandler "github.com/kevin07696/nmi-gateway/internal/handlers/payment"
	internalmw "github.com/kevin07696/nmi-gateway/internal/middleware"
	paymentService "github.com/kevin07696/nmi-gateway/internal/services/payment"
	"github.com/kevin07696/nmi-gateway/internal/services/retry"
	vaultService "github.com/kevin07696/nmi-gateway/internal/services/vault"
	"github.com/kevin07696/nmi-gateway/pkg/middleware"
	"github.com/kevin07696/nmi-gateway/pkg/observability"
	"github.com/kevin07696/nmi-gateway/pkg/shutdown"
)

// retryRetention keeps attempt counters long enough to cover the
// current throttle week plus a margin for audits.
const retryRetention = 28 * 24 * time.Hour

func main() {
	logger := initLogger()
	defer logger.Sync()

	logger.Info("Starting NMI gateway service",
		zap.String("version", "0.1.0"),
	)

	cfg, err := config.LoadFromEnv()
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	dbPool, err := initDatabase(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}

	logger.Info("Database connection established",
		zap.String("database", cfg.Database.Database),
	)

	gatewayCfg, err := buildGatewayConfig(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to resolve gateway credentials", zap.Error(err))
	}

	// Repositories
	db := postgres.NewDBExecutor(dbPool)
	tokenRepo := postgres.NewTokenRepository(db, logger)
	retryRepo := postgres.NewRetryRepository(db, logger)
	orderRepo := postgres.NewOrderRepository(db, logger)

	// Gateway client and services
	gateway := nmi.NewClient(gatewayCfg, &http.Client{}, logger)
	guard := retry.NewGuard(retryRepo, cfg.Gateway.MaxWeeklyRetries, logger)
	vaultSvc := vaultService.NewService(
		gateway,
		tokenRepo,
		guard,
		domain.Environment(cfg.Gateway.Environment),
		cfg.Gateway.AcceptedBrands,
		logger,
	)
	paymentSvc := paymentService.NewService(
		gateway,
		orderRepo,
		vaultSvc,
		guard,
		paymentService.Config{
			TransactionType:         domain.TransactionType(cfg.Gateway.TransactionType),
			ProcessorMode:           domain.ProcessorMode(cfg.Gateway.ProcessorMode),
			APIMethod:               domain.APIMethod(cfg.Gateway.APIMethod),
			RequireCSC:              cfg.Gateway.RequireCSC,
			DetailedDeclineMessages: cfg.Gateway.DetailedDeclineMessages,
			Tokenization:            cfg.Gateway.Tokenization,
		},
		logger,
	)

	// Handlers
	payments := paymentHandler.NewHandler(paymentSvc, logger)
	tokens := paymentHandler.NewTokenHandler(vaultSvc, logger)

	httpMux := http.NewServeMux()
	httpMux.HandleFunc("/api/v1/payments/charge", payments.Charge)
	httpMux.HandleFunc("/api/v1/payments/capture", payments.Capture)
	httpMux.HandleFunc("/api/v1/payments/refund", payments.Refund)
	httpMux.HandleFunc("/api/v1/payments/void", payments.Void)
	httpMux.HandleFunc("/api/v1/tokens", tokens.Tokens)
	httpMux.HandleFunc("/api/v1/tokens/", tokens.Token)

	// Rate limit per client IP, record request metrics, and drain
	// in-flight requests during shutdown
	rateLimiter := middleware.NewRateLimiter(10, 20)
	tracker := shutdown.NewRequestTracker(logger)
	secHeaders := internalmw.NewSecurityHeaders(cfg.Gateway.Environment != string(domain.EnvironmentProduction))
	handler := secHeaders.Middleware(
		rateLimiter.Middleware(
			observability.HTTPMetricsMiddleware(
				trackRequests(tracker, httpMux),
			),
		),
	)

	httpServer := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: handler,
	}

	// Metrics and health server
	healthChecker := observability.NewHealthChecker(dbPool)
	metricsServer := observability.StartMetricsServer(strconv.Itoa(cfg.Server.MetricsPort), healthChecker, logger)

	// Weekly attempt counters go dead once their week passes; sweep the
	// stale rows in the background.
	pruner := shutdown.NewPeriodicWorker("retry-pruner", time.Hour, logger)
	pruner.Start(func(ctx context.Context) {
		deleted, err := retryRepo.PruneStale(ctx, retryRetention)
		if err != nil {
			logger.Warn("Failed to prune stale retry counters", zap.Error(err))
			return
		}
		if deleted > 0 {
			logger.Info("Pruned stale retry counters", zap.Int64("deleted", deleted))
		}
	})

	go func() {
		logger.Info("HTTP server listening",
			zap.String("address", httpServer.Addr),
		)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to serve HTTP", zap.Error(err))
		}
	}()

	// Components shut down in reverse registration order: HTTP server
	// stops accepting first, in-flight requests drain, then the metrics
	// server, rate limiter, and database pool close.
	shutdownMgr := shutdown.NewManager(logger, 30*time.Second)
	shutdownMgr.RegisterNoErr("database-pool", dbPool.Close)
	shutdownMgr.RegisterNoErr("rate-limiter", rateLimiter.Shutdown)
	shutdownMgr.RegisterFunc("metrics-server", func() error {
		return observability.ShutdownMetricsServer(metricsServer)
	})
	shutdownMgr.Register("in-flight-requests", tracker.Shutdown)
	shutdownMgr.RegisterHTTPServer("http-server", httpServer)
	shutdownMgr.Register("retry-pruner", pruner.Shutdown)

	shutdownMgr.WaitForShutdown()

	logger.Info("Servers stopped")
}

// trackRequests rejects new requests once shutdown has begun and counts
// active ones so the shutdown manager can wait for them to finish.
func trackRequests(tracker *shutdown.RequestTracker, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !tracker.Add() {
			http.Error(w, "service is shutting down", http.StatusServiceUnavailable)
			return
		}
		defer tracker.Done()
		next.ServeHTTP(w, r)
	})
}

// initLogger initializes the logger
func initLogger() *zap.Logger {
	env := os.Getenv("ENVIRONMENT")

	if env == "production" {
		zapCfg := zap.NewProductionConfig()
		zapCfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
		logger, _ := zapCfg.Build()
		return logger
	}

	logger, _ := zap.NewDevelopment()
	return logger
}

// initDatabase initializes the PostgreSQL connection pool
func initDatabase(cfg *config.Config, logger *zap.Logger) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	poolConfig, err := pgxpool.ParseConfig(cfg.Database.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}

	poolConfig.MaxConns = cfg.Database.MaxConns
	poolConfig.MinConns = cfg.Database.MinConns

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}

// buildGatewayConfig assembles the NMI client config, pulling credentials
// from the configured secrets backend when secret names are set.
func buildGatewayConfig(cfg *config.Config, logger *zap.Logger) (*nmi.Config, error) {
	gatewayCfg := nmi.DefaultConfig(domain.Environment(cfg.Gateway.Environment))
	gatewayCfg.Username = cfg.Gateway.Username
	gatewayCfg.Password = cfg.Gateway.Password
	gatewayCfg.SecurityKey = cfg.Gateway.SecurityKey
	gatewayCfg.ProcessorMode = domain.ProcessorMode(cfg.Gateway.ProcessorMode)
	gatewayCfg.Currency = cfg.Gateway.Currency
	gatewayCfg.SendReceipt = cfg.Gateway.SendReceipt
	gatewayCfg.Timeout = cfg.Gateway.Timeout

	if cfg.Secrets.Provider == "env" {
		return gatewayCfg, nil
	}

	manager, err := initSecretManager(cfg, logger)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	resolve := func(current, secretName string) (string, error) {
		if current != "" || secretName == "" {
			return current, nil
		}
		return manager.GetSecret(ctx, secretName)
	}

	if gatewayCfg.SecurityKey, err = resolve(gatewayCfg.SecurityKey, cfg.Gateway.SecurityKeySecret); err != nil {
		return nil, err
	}
	if gatewayCfg.Username, err = resolve(gatewayCfg.Username, cfg.Gateway.UsernameSecret); err != nil {
		return nil, err
	}
	if gatewayCfg.Password, err = resolve(gatewayCfg.Password, cfg.Gateway.PasswordSecret); err != nil {
		return nil, err
	}

	if gatewayCfg.SecurityKey == "" && (gatewayCfg.Username == "" || gatewayCfg.Password == "") {
		return nil, domain.ErrCredentialsMissing
	}
	return gatewayCfg, nil
}

// initSecretManager selects the secrets backend
func initSecretManager(cfg *config.Config, logger *zap.Logger) (ports.SecretManager, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	switch cfg.Secrets.Provider {
	case "local":
		return secrets.NewLocalSecretManager(cfg.Secrets.LocalPath, logger), nil
	case "aws":
		awsCfg := secrets.DefaultAWSSecretsManagerConfig(cfg.Secrets.AWSRegion)
		awsCfg.Profile = cfg.Secrets.AWSProfile
		awsCfg.Endpoint = cfg.Secrets.AWSEndpoint
		return secrets.NewAWSSecretsManagerAdapter(ctx, awsCfg, logger)
	case "vault":
		vaultCfg := secrets.DefaultVaultConfig(cfg.Secrets.VaultAddress)
		vaultCfg.Token = cfg.Secrets.VaultToken
		vaultCfg.MountPath = cfg.Secrets.VaultMount
		return secrets.NewVaultAdapter(ctx, vaultCfg, logger)
	default:
		return nil, fmt.Errorf("unknown secrets provider: %s", cfg.Secrets.Provider)
	}
}
