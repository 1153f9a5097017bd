// Package config assembles the typed application configuration from the
// environment (see env.GetEnv) and validates it once at startup.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/ManuelReschke/CogniFox/internal/pkg/env"
)

const (
	IdentityProviderFirebase = "firebase"
	IdentityProviderJWT      = "jwt"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Cache    CacheConfig
	Stripe   StripeConfig
	Identity IdentityConfig
	Guard    GuardConfig
	Mail     MailConfig
}

type AppConfig struct {
	Host       string `validate:"required"`
	Port       string `validate:"required,numeric"`
	PublicURL  string `validate:"omitempty,url"`
	CORSOrigin string

	// ProxyHeader names the header carrying the client address set by the
	// reverse proxy. It is honored only for requests from TrustedProxies;
	// empty means the socket address is used.
	ProxyHeader    string
	TrustedProxies []string `validate:"required_with=ProxyHeader,dive,ip|cidr"`

	// MetricsUser and MetricsPassword protect /metrics with basic auth when
	// both are set.
	MetricsUser     string
	MetricsPassword string
}

type DatabaseConfig struct {
	User     string
	Password string
	Host     string `validate:"required"`
	Port     string `validate:"required,numeric"`
	Name     string `validate:"required"`
}

type CacheConfig struct {
	Host        string `validate:"required"`
	Port        string `validate:"required,numeric"`
	Password    string
	StatusTTL   time.Duration `validate:"gte=0"`
	LimiterDB   int           `validate:"gte=0,lte=15"`
	LimiterMax  int           `validate:"gte=1"`
	LimiterSpan time.Duration `validate:"gt=0"`
}

// StripeConfig holds the opaque processor settings. TrialDays 0 disables the
// trial period on new checkout sessions.
type StripeConfig struct {
	SecretKey     string `validate:"required"`
	WebhookSecret string `validate:"required"`
	PriceID       string `validate:"required"`
	SuccessURL    string `validate:"required,url"`
	CancelURL     string `validate:"required,url"`
	TrialDays     int64  `validate:"gte=0,lte=730"`
}

type IdentityConfig struct {
	Provider        string `validate:"oneof=firebase jwt"`
	CredentialsFile string `validate:"required_if=Provider firebase"`
	ProjectID       string
	JWTSecret       string `validate:"required_if=Provider jwt"`
}

// MailConfig is the SMTP relay for billing notifications. An empty Host
// disables mail.
type MailConfig struct {
	Host     string
	Port     string `validate:"omitempty,numeric"`
	Username string
	Password string
	Sender   string `validate:"omitempty,email"`
}

type GuardConfig struct {
	Interval    time.Duration `validate:"gt=0"`
	MaxAttempts int           `validate:"gte=1"`
}

// Load reads the configuration from the environment and validates it.
func Load() (*Config, error) {
	publicURL := strings.TrimRight(env.GetEnv("PUBLIC_DOMAIN", ""), "/")

	cfg := &Config{
		App: AppConfig{
			Host:       env.GetEnv("APP_HOST", "localhost"),
			Port:       env.GetEnv("APP_PORT", "4000"),
			PublicURL:  publicURL,
			CORSOrigin: env.GetEnv("FRONTEND_ORIGIN", "*"),

			ProxyHeader:    strings.TrimSpace(env.GetEnv("PROXY_HEADER", "")),
			TrustedProxies: listEnv("TRUSTED_PROXIES"),

			MetricsUser:     env.GetEnv("METRICS_USER", ""),
			MetricsPassword: env.GetEnv("METRICS_PASSWORD", ""),
		},
		Database: LoadDatabase(),
		Cache: CacheConfig{
			Host:        env.GetEnv("CACHE_HOST", "localhost"),
			Port:        env.GetEnv("CACHE_PORT", "6379"),
			Password:    env.GetEnv("CACHE_PASSWORD", ""),
			StatusTTL:   durationEnv("CACHE_STATUS_TTL", 5*time.Second),
			LimiterDB:   intEnv("CACHE_LIMITER_DB", 1),
			LimiterMax:  intEnv("API_RATE_LIMIT_MAX", 60),
			LimiterSpan: durationEnv("API_RATE_LIMIT_WINDOW", time.Minute),
		},
		Stripe: StripeConfig{
			SecretKey:     strings.TrimSpace(env.GetEnv("STRIPE_SECRET_KEY", "")),
			WebhookSecret: strings.TrimSpace(env.GetEnv("STRIPE_WEBHOOK_SECRET", "")),
			PriceID:       strings.TrimSpace(env.GetEnv("STRIPE_PRICE_ID", "")),
			SuccessURL:    defaultURL(env.GetEnv("STRIPE_SUCCESS_URL", ""), publicURL, "/checkout/return?session_id={CHECKOUT_SESSION_ID}"),
			CancelURL:     defaultURL(env.GetEnv("STRIPE_CANCEL_URL", ""), publicURL, "/"),
			TrialDays:     int64(intEnv("STRIPE_TRIAL_DAYS", 7)),
		},
		Identity: IdentityConfig{
			Provider:        strings.ToLower(env.GetEnv("IDENTITY_PROVIDER", IdentityProviderFirebase)),
			CredentialsFile: env.GetEnv("FIREBASE_CREDENTIALS", ""),
			ProjectID:       env.GetEnv("FIREBASE_PROJECT_ID", ""),
			JWTSecret:       env.GetEnv("IDENTITY_JWT_SECRET", ""),
		},
		Guard: GuardConfig{
			Interval:    durationEnv("PAYMENT_POLL_INTERVAL", 2*time.Second),
			MaxAttempts: intEnv("PAYMENT_POLL_ATTEMPTS", 10),
		},
		Mail: MailConfig{
			Host:     env.GetEnv("SMTP_HOST", ""),
			Port:     env.GetEnv("SMTP_PORT", "587"),
			Username: env.GetEnv("SMTP_USERNAME", ""),
			Password: env.GetEnv("SMTP_PASSWORD", ""),
			Sender:   env.GetEnv("SMTP_SENDER", ""),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDatabase reads only the database settings. cmd/migrate uses it so that
// schema changes do not require processor or identity credentials.
func LoadDatabase() DatabaseConfig {
	return DatabaseConfig{
		User:     env.GetEnv("DB_USER", ""),
		Password: env.GetEnv("DB_PASSWORD", ""),
		Host:     env.GetEnv("DB_HOST", "127.0.0.1"),
		Port:     env.GetEnv("DB_PORT", "3306"),
		Name:     env.GetEnv("DB_NAME", "cognifox_db"),
	}
}

func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// ListenAddr is the host:port the HTTP server binds to.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%s", c.App.Host, c.App.Port)
}

// MySQLDSN builds the gorm/mysql data source name.
func (c DatabaseConfig) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		c.User, c.Password, c.Host, c.Port, c.Name)
}

// MigrateURL builds the golang-migrate database URL.
func (c DatabaseConfig) MigrateURL() string {
	return fmt.Sprintf("mysql://%s:%s@tcp(%s:%s)/%s?multiStatements=true",
		c.User, c.Password, c.Host, c.Port, c.Name)
}

func defaultURL(v, base, path string) string {
	v = strings.TrimSpace(v)
	if v != "" || base == "" {
		return v
	}
	return base + path
}

func listEnv(key string) []string {
	var out []string
	for _, v := range strings.Split(env.GetEnv(key, ""), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func intEnv(key string, def int) int {
	raw := strings.TrimSpace(env.GetEnv(key, ""))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

func durationEnv(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(env.GetEnv(key, ""))
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return def
	}
	return d
}
