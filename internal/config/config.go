// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Pending store backends.
const (
	PendingStoreMemory   = "memory"
	PendingStorePostgres = "postgres"
)

// Notification modes.
const (
	NotifySMTP  = "smtp"
	NotifyKafka = "kafka"
	NotifyDev   = "dev"
)

const minSecretLen = 32

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the HTTP server listens on (e.g. :8080).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// Env is the application environment; "production" forbids NOTIFY_MODE=dev.
	Env string `mapstructure:"APP_ENV"`
	// LogLevel is debug, info, warn or error.
	LogLevel string `mapstructure:"LOG_LEVEL"`

	// DirectoryBaseURL is the user-directory API root (e.g. http://localhost:8083/api).
	DirectoryBaseURL string `mapstructure:"DIRECTORY_BASE_URL"`
	// DirectoryTimeout is the per-attempt HTTP timeout (e.g. "5s").
	DirectoryTimeout string `mapstructure:"DIRECTORY_TIMEOUT"`
	// DirectoryMaxAttempts is the total attempts per directory call; 1 disables retry.
	DirectoryMaxAttempts int `mapstructure:"DIRECTORY_MAX_ATTEMPTS"`
	// DirectoryStrictDuplicateCheck makes register fail when the directory is
	// unavailable instead of proceeding as if the email were unknown.
	DirectoryStrictDuplicateCheck bool `mapstructure:"DIRECTORY_STRICT_DUPLICATE_CHECK"`

	// JWTSecret is the HS256 signing secret (at least 32 bytes).
	JWTSecret string `mapstructure:"JWT_SECRET"`
	// JWTPrivateKey is the PEM-encoded private key (RSA or ECDSA) or path to file; used with JWT_PUBLIC_KEY for RS256/ES256.
	JWTPrivateKey string `mapstructure:"JWT_PRIVATE_KEY"`
	// JWTPublicKey is the PEM-encoded public key or path to file; used with JWT_PRIVATE_KEY.
	JWTPublicKey string `mapstructure:"JWT_PUBLIC_KEY"`
	JWTIssuer    string `mapstructure:"JWT_ISSUER"`
	JWTAudience  string `mapstructure:"JWT_AUDIENCE"`
	// JWTSessionTTL is the session token lifetime (e.g. "24h").
	JWTSessionTTL string `mapstructure:"JWT_SESSION_TTL"`
	// BcryptCost is the bcrypt cost factor (4–31); default 12.
	BcryptCost int `mapstructure:"BCRYPT_COST"`

	// OTPTTL is the pending registration lifetime (e.g. "300s").
	OTPTTL string `mapstructure:"OTP_TTL"`
	// PendingStore is "memory" or "postgres".
	PendingStore string `mapstructure:"PENDING_STORE"`
	// PendingStoreSecret seals pending payloads at rest; required for postgres.
	PendingStoreSecret string `mapstructure:"PENDING_STORE_SECRET"`
	// PendingSweepInterval enables the expired-entry sweeper when > 0 (e.g. "1m").
	PendingSweepInterval string `mapstructure:"PENDING_SWEEP_INTERVAL"`
	// DatabaseURL is the Postgres DSN for the pending store and audit log.
	DatabaseURL string `mapstructure:"DATABASE_URL"`

	ConfirmAttemptsPerMinute  int `mapstructure:"CONFIRM_ATTEMPTS_PER_MINUTE"`
	ConfirmAttemptBurst       int `mapstructure:"CONFIRM_ATTEMPT_BURST"`
	RegisterAttemptsPerMinute int `mapstructure:"REGISTER_ATTEMPTS_PER_MINUTE"`
	RegisterAttemptBurst      int `mapstructure:"REGISTER_ATTEMPT_BURST"`

	// RegistrationPolicyFile optionally replaces the default Rego admission policy.
	RegistrationPolicyFile string `mapstructure:"REGISTRATION_POLICY_FILE"`
	// BlockedEmailDomains is a comma-separated list exposed to the policy as data.
	BlockedEmailDomains string `mapstructure:"BLOCKED_EMAIL_DOMAINS"`

	// NotifyMode is smtp, kafka or dev.
	NotifyMode   string `mapstructure:"NOTIFY_MODE"`
	SMTPHost     string `mapstructure:"SMTP_HOST"`
	SMTPPort     int    `mapstructure:"SMTP_PORT"`
	SMTPUsername string `mapstructure:"SMTP_USERNAME"`
	SMTPPassword string `mapstructure:"SMTP_PASSWORD"`
	SMTPFrom     string `mapstructure:"SMTP_FROM"`

	// KafkaBrokers is a comma-separated list of broker addresses (e.g. "localhost:9092").
	KafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	// OTPKafkaTopic carries queued code deliveries.
	OTPKafkaTopic string `mapstructure:"OTP_KAFKA_TOPIC"`
	// KafkaGroupID is the consumer group of the mail worker.
	KafkaGroupID string `mapstructure:"KAFKA_GROUP_ID"`
	// Worker-only: Loki URL for delivery logs (e.g. http://localhost:3100).
	LokiURL string `mapstructure:"LOKI_URL"`
	// LokiTenantID is sent as X-Scope-OrgID when Loki runs multi-tenant.
	LokiTenantID string `mapstructure:"LOKI_TENANT_ID"`

	// OTLPEndpoint enables OpenTelemetry export when set (host:port or URL).
	OTLPEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTLPInsecure bool   `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Only settings shared by every
// binary are validated here; see ValidateServer and ValidateWorker.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("APP_ENV", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DIRECTORY_BASE_URL", "http://localhost:8083/api")
	v.SetDefault("DIRECTORY_TIMEOUT", "5s")
	v.SetDefault("DIRECTORY_MAX_ATTEMPTS", 1)
	v.SetDefault("DIRECTORY_STRICT_DUPLICATE_CHECK", false)
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("JWT_PRIVATE_KEY", "")
	v.SetDefault("JWT_PUBLIC_KEY", "")
	v.SetDefault("JWT_ISSUER", "auth-gateway")
	v.SetDefault("JWT_AUDIENCE", "auth-gateway-clients")
	v.SetDefault("JWT_SESSION_TTL", "24h")
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("OTP_TTL", "300s")
	v.SetDefault("PENDING_STORE", PendingStoreMemory)
	v.SetDefault("PENDING_STORE_SECRET", "")
	v.SetDefault("PENDING_SWEEP_INTERVAL", "0")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("CONFIRM_ATTEMPTS_PER_MINUTE", 5)
	v.SetDefault("CONFIRM_ATTEMPT_BURST", 5)
	v.SetDefault("REGISTER_ATTEMPTS_PER_MINUTE", 3)
	v.SetDefault("REGISTER_ATTEMPT_BURST", 3)
	v.SetDefault("REGISTRATION_POLICY_FILE", "")
	v.SetDefault("BLOCKED_EMAIL_DOMAINS", "")
	v.SetDefault("NOTIFY_MODE", NotifySMTP)
	v.SetDefault("SMTP_HOST", "")
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("SMTP_USERNAME", "")
	v.SetDefault("SMTP_PASSWORD", "")
	v.SetDefault("SMTP_FROM", "")
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("OTP_KAFKA_TOPIC", "auth-otp-dispatch")
	v.SetDefault("KAFKA_GROUP_ID", "auth-otp-mailer")
	v.SetDefault("LOKI_URL", "")
	v.SetDefault("LOKI_TENANT_ID", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	cfg.NotifyMode = strings.ToLower(strings.TrimSpace(cfg.NotifyMode))
	cfg.PendingStore = strings.ToLower(strings.TrimSpace(cfg.PendingStore))

	switch cfg.NotifyMode {
	case NotifySMTP, NotifyKafka, NotifyDev:
	default:
		return nil, fmt.Errorf("config: NOTIFY_MODE must be smtp, kafka or dev, got %q", cfg.NotifyMode)
	}
	if cfg.NotifyMode == NotifyDev && cfg.IsProduction() {
		return nil, errors.New("config: NOTIFY_MODE=dev must not be used when APP_ENV=production")
	}

	switch cfg.PendingStore {
	case PendingStoreMemory, PendingStorePostgres:
	default:
		return nil, fmt.Errorf("config: PENDING_STORE must be memory or postgres, got %q", cfg.PendingStore)
	}

	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = 12
	}
	if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		return nil, errors.New("config: BCRYPT_COST must be between 4 and 31")
	}
	if cfg.DirectoryMaxAttempts < 1 {
		cfg.DirectoryMaxAttempts = 1
	}

	return &cfg, nil
}

// ValidateServer checks the settings cmd/server needs.
func (c *Config) ValidateServer() error {
	if c.HTTPAddr == "" {
		return errors.New("config: HTTP_ADDR must be set")
	}
	u, err := url.Parse(c.DirectoryBaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return errors.New("config: DIRECTORY_BASE_URL must be an absolute URL")
	}

	hasPriv, hasPub := c.JWTPrivateKey != "", c.JWTPublicKey != ""
	switch {
	case hasPriv != hasPub:
		return errors.New("config: JWT_PRIVATE_KEY and JWT_PUBLIC_KEY must be set together")
	case !hasPriv && c.JWTSecret == "":
		return errors.New("config: JWT_SECRET or JWT_PRIVATE_KEY/JWT_PUBLIC_KEY must be set")
	case !hasPriv && len(c.JWTSecret) < minSecretLen:
		return fmt.Errorf("config: JWT_SECRET must be at least %d bytes", minSecretLen)
	}

	if c.PendingStore == PendingStorePostgres {
		if c.DatabaseURL == "" {
			return errors.New("config: DATABASE_URL must be set when PENDING_STORE=postgres")
		}
		if len(c.PendingStoreSecret) < minSecretLen {
			return fmt.Errorf("config: PENDING_STORE_SECRET must be at least %d bytes when PENDING_STORE=postgres", minSecretLen)
		}
	}

	switch c.NotifyMode {
	case NotifySMTP:
		if c.SMTPHost == "" || c.SMTPFrom == "" {
			return errors.New("config: SMTP_HOST and SMTP_FROM must be set when NOTIFY_MODE=smtp")
		}
	case NotifyKafka:
		if len(c.KafkaBrokersList()) == 0 {
			return errors.New("config: KAFKA_BROKERS must be set when NOTIFY_MODE=kafka")
		}
	}
	return nil
}

// ValidateWorker checks the settings cmd/worker needs.
func (c *Config) ValidateWorker() error {
	if len(c.KafkaBrokersList()) == 0 {
		return errors.New("config: KAFKA_BROKERS is required for the worker")
	}
	if c.SMTPHost == "" || c.SMTPFrom == "" {
		return errors.New("config: SMTP_HOST and SMTP_FROM are required for the worker")
	}
	return nil
}

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Env), "production")
}

// DevOTPEnabled reports whether the dev OTP endpoint should be served.
func (c *Config) DevOTPEnabled() bool {
	return c.NotifyMode == NotifyDev && !c.IsProduction()
}

// SessionTTL parses JWTSessionTTL. Returns 24h if unset or invalid.
func (c *Config) SessionTTL() time.Duration {
	return parsePositive(c.JWTSessionTTL, 24*time.Hour)
}

// RegistrationTTL parses OTPTTL. Returns 300s if unset or invalid.
func (c *Config) RegistrationTTL() time.Duration {
	return parsePositive(c.OTPTTL, 300*time.Second)
}

// DirectoryTimeoutDuration parses DirectoryTimeout. Returns 5s if unset or invalid.
func (c *Config) DirectoryTimeoutDuration() time.Duration {
	return parsePositive(c.DirectoryTimeout, 5*time.Second)
}

// SweepInterval parses PendingSweepInterval. Returns 0 (disabled) if unset or invalid.
func (c *Config) SweepInterval() time.Duration {
	return parsePositive(c.PendingSweepInterval, 0)
}

// KafkaBrokersList returns Kafka broker addresses from the comma-separated config.
func (c *Config) KafkaBrokersList() []string {
	if c == nil {
		return nil
	}
	return splitList(c.KafkaBrokers)
}

// BlockedDomainsList returns the blocked email domains, lower-cased.
func (c *Config) BlockedDomainsList() []string {
	if c == nil {
		return nil
	}
	out := splitList(c.BlockedEmailDomains)
	for i := range out {
		out[i] = strings.ToLower(out[i])
	}
	return out
}

func parsePositive(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
