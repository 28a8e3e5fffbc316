package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"auth-gateway/backend/internal/audit"
	auditrepo "auth-gateway/backend/internal/audit/repository"
	"auth-gateway/backend/internal/config"
	"auth-gateway/backend/internal/db"
	"auth-gateway/backend/internal/devotp"
	devotphandler "auth-gateway/backend/internal/devotp/handler"
	"auth-gateway/backend/internal/directory"
	identityservice "auth-gateway/backend/internal/identity/service"
	"auth-gateway/backend/internal/logging"
	"auth-gateway/backend/internal/notify"
	"auth-gateway/backend/internal/platform/ratelimiter"
	policyengine "auth-gateway/backend/internal/policy/engine"
	"auth-gateway/backend/internal/registration/store"
	"auth-gateway/backend/internal/security"
	"auth-gateway/backend/internal/server"
	"auth-gateway/backend/internal/server/interceptors"
	"auth-gateway/backend/internal/telemetry"
	telemetryotel "auth-gateway/backend/internal/telemetry/otel"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger := logging.New(os.Stdout, cfg.LogLevel)
	slog.SetDefault(logger)
	if err := cfg.ValidateServer(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	if err := run(cfg, logger); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	providers, err := telemetryotel.NewProviders(ctx, telemetryotel.Settings{
		Endpoint:    cfg.OTLPEndpoint,
		Insecure:    cfg.OTLPInsecure,
		ServiceName: "auth-gateway",
		Environment: cfg.Env,
	}, logger)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	providers.SetGlobal()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := providers.Shutdown(shutdownCtx); err != nil {
			logger.Warn("otel shutdown failed", "error", err)
		}
	}()
	metrics, err := telemetry.NewMetrics(providers.MeterProvider)
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	events := telemetryotel.NewEventEmitter(providers.LoggerProvider)

	var database *sql.DB
	if cfg.DatabaseURL != "" {
		database, err = db.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer database.Close()
	}

	pending, err := newPendingStore(cfg, database)
	if err != nil {
		return err
	}
	if interval := cfg.SweepInterval(); interval > 0 {
		go store.NewSweeper(pending, interval, logger).Run(ctx)
	}

	hasher := security.NewHasher(cfg.BcryptCost)
	tokens, err := security.LoadTokenProvider(security.KeyConfig{
		PrivateKeyPEM: cfg.JWTPrivateKey,
		PublicKeyPEM:  cfg.JWTPublicKey,
		Secret:        cfg.JWTSecret,
		Issuer:        cfg.JWTIssuer,
		Audience:      cfg.JWTAudience,
		TTL:           cfg.SessionTTL(),
	})
	if err != nil {
		return fmt.Errorf("session keys: %w", err)
	}

	policySrc, err := policyengine.LoadPolicyFile(cfg.RegistrationPolicyFile)
	if err != nil {
		return err
	}
	policy, err := policyengine.NewOPAEvaluator(ctx, policyengine.Options{
		Policy:         policySrc,
		BlockedDomains: cfg.BlockedDomainsList(),
		Logger:         logger,
	})
	if err != nil {
		return fmt.Errorf("registration policy: %w", err)
	}

	var devStore devotp.Store
	if cfg.DevOTPEnabled() {
		devStore = devotp.NewMemoryStore()
	}
	notifier, closeNotifier, err := newNotifier(cfg, devStore, logger)
	if err != nil {
		return err
	}
	defer closeNotifier()

	var auditRepo auditrepo.Repository
	if database != nil {
		auditRepo = auditrepo.NewPostgresRepository(database)
	}
	auditLogger := audit.NewLogger(auditRepo, events, interceptors.ClientIP, logger)

	authSvc := identityservice.NewAuthService(
		pending,
		directory.NewHTTPClient(cfg.DirectoryBaseURL, cfg.DirectoryTimeoutDuration(), cfg.DirectoryMaxAttempts),
		notifier,
		hasher,
		tokens,
		identityservice.Options{
			TTL:                  cfg.RegistrationTTL(),
			StrictDuplicateCheck: cfg.DirectoryStrictDuplicateCheck,
			Policy:               policy,
			RegisterLimiter:      ratelimiter.PerMinute(cfg.RegisterAttemptsPerMinute, cfg.RegisterAttemptBurst),
			ConfirmLimiter:       ratelimiter.PerMinute(cfg.ConfirmAttemptsPerMinute, cfg.ConfirmAttemptBurst),
			Audit:                auditLogger,
			Metrics:              metrics,
			Logger:               logger,
		},
	)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	deps := server.Deps{
		Auth:                authSvc,
		HealthPolicyChecker: policy,
		Events:              events,
		Logger:              logger,
	}
	if database != nil {
		deps.HealthPinger = database
	}
	if devStore != nil {
		deps.DevOTPHandler = devotphandler.New(devStore)
		logger.Warn("dev OTP endpoint enabled; codes are readable over HTTP")
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", cfg.HTTPAddr, "pending_store", cfg.PendingStore, "notify_mode", cfg.NotifyMode)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	time.Sleep(telemetry.ShutdownDrainDuration)
	logger.Info("HTTP server stopped")
	return nil
}

func newPendingStore(cfg *config.Config, database *sql.DB) (store.Store, error) {
	if cfg.PendingStore != config.PendingStorePostgres {
		return store.NewMemoryStore(), nil
	}
	sealer, err := security.NewSealer(cfg.PendingStoreSecret)
	if err != nil {
		return nil, fmt.Errorf("pending store: %w", err)
	}
	return store.NewPostgresStore(database, sealer), nil
}

func newNotifier(cfg *config.Config, devStore devotp.Store, logger *slog.Logger) (notify.Notifier, func(), error) {
	switch cfg.NotifyMode {
	case config.NotifyDev:
		if devStore == nil {
			return nil, nil, errors.New("NOTIFY_MODE=dev is not allowed in production")
		}
		return notify.NewDevNotifier(devStore, logger), func() {}, nil
	case config.NotifyKafka:
		d, err := notify.NewKafkaDispatcher(cfg.KafkaBrokersList(), cfg.OTPKafkaTopic)
		if err != nil {
			return nil, nil, err
		}
		return d, func() {
			if err := d.Close(); err != nil {
				logger.Warn("kafka dispatcher close failed", "error", err)
			}
		}, nil
	default:
		return notify.NewSMTPMailer(smtpConfig(cfg)), func() {}, nil
	}
}

func smtpConfig(cfg *config.Config) notify.SMTPConfig {
	return notify.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
	}
}
