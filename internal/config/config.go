package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultAppName           = "WalletLedger"
	defaultAppEnv            = "development"
	defaultPort              = "8080"
	defaultLogLevel          = "info"
	defaultShutdownDelay     = 10 * time.Second
	defaultIdempotencyTTL    = 24 * time.Hour
	defaultGatewayTimeout    = 10 * time.Second
	defaultStateTTL          = 10 * time.Minute
	defaultRedisTimeout      = 3 * time.Second
	defaultCallbackPerMinute = 10
	defaultDeferredTypes     = "PIX_DEPOSIT,PIX_WITHDRAWAL"
	defaultRabbitExchange    = "wallet_events"
	devJWTSecret             = "dev-only-secret"
	redacted                 = "[redacted]"
)

// Gateway configures the external payment gateway (Stripe Connect style).
type Gateway struct {
	BaseURL      string
	AuthorizeURL string
	ClientID     string
	ClientSecret string
	Scope        string
	RedirectURL  string
	ReturnURL    string
	Timeout      time.Duration
	StateTTL     time.Duration
	// Static switches to the offline exchanger that approves every code.
	Static bool
}

// Config captures application runtime configuration loaded from environment variables.
type Config struct {
	AppName           string
	AppEnv            string
	Port              string
	LogLevel          string
	DatabaseURL       string
	RedisURL          string
	RabbitMQURL       string
	RabbitMQExchange  string
	Migrate           bool
	ShutdownPeriod    time.Duration
	IdempotencyTTL    time.Duration
	JWTSecret         string
	TokenKey          string
	DeferredTypes     []string
	CallbackRateLimit int
	DBMaxConns        int
	RedisTimeout      time.Duration
	Gateway           Gateway
}

// Load reads an optional .env file, then the environment, and populates a
// Config instance. Variables already set in the environment win over .env.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := Config{
		AppName:          getEnv("APP_NAME", defaultAppName),
		AppEnv:           getEnv("APP_ENV", defaultAppEnv),
		Port:             getEnv("PORT", defaultPort),
		LogLevel:         strings.ToLower(getEnv("LOG_LEVEL", defaultLogLevel)),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		RedisURL:         os.Getenv("REDIS_URL"),
		RabbitMQURL:      os.Getenv("RABBITMQ_URL"),
		RabbitMQExchange: getEnv("RABBITMQ_EXCHANGE", defaultRabbitExchange),
		JWTSecret:        os.Getenv("JWT_SECRET"),
		TokenKey:         os.Getenv("TOKEN_ENCRYPTION_KEY"),
		DeferredTypes:    splitList(getEnv("DEFERRED_SETTLEMENT_TYPES", defaultDeferredTypes)),
		Gateway: Gateway{
			BaseURL:      getEnv("GATEWAY_BASE_URL", "https://connect.stripe.com"),
			AuthorizeURL: getEnv("GATEWAY_AUTHORIZE_URL", "https://connect.stripe.com/oauth/authorize"),
			ClientID:     os.Getenv("GATEWAY_CLIENT_ID"),
			ClientSecret: os.Getenv("GATEWAY_CLIENT_SECRET"),
			Scope:        getEnv("GATEWAY_SCOPE", "read_write"),
			RedirectURL:  os.Getenv("GATEWAY_REDIRECT_URL"),
			ReturnURL:    getEnv("GATEWAY_RETURN_URL", "/"),
		},
	}

	var err error
	if cfg.Migrate, err = boolEnv("APP_MIGRATE", false); err != nil {
		return Config{}, err
	}
	if cfg.Gateway.Static, err = boolEnv("GATEWAY_STATIC", cfg.IsDev()); err != nil {
		return Config{}, err
	}
	if cfg.ShutdownPeriod, err = durationEnv("SHUTDOWN_TIMEOUT", defaultShutdownDelay); err != nil {
		return Config{}, err
	}
	if cfg.IdempotencyTTL, err = durationEnv("IDEMPOTENCY_TTL", defaultIdempotencyTTL); err != nil {
		return Config{}, err
	}
	if cfg.Gateway.Timeout, err = durationEnv("GATEWAY_TIMEOUT", defaultGatewayTimeout); err != nil {
		return Config{}, err
	}
	if cfg.Gateway.StateTTL, err = durationEnv("GATEWAY_STATE_TTL", defaultStateTTL); err != nil {
		return Config{}, err
	}
	if cfg.DBMaxConns, err = intEnv("DB_MAX_CONNS", 0); err != nil {
		return Config{}, err
	}
	if cfg.RedisTimeout, err = durationEnv("REDIS_TIMEOUT", defaultRedisTimeout); err != nil {
		return Config{}, err
	}
	if cfg.CallbackRateLimit, err = intEnv("CALLBACK_RATE_LIMIT_PER_MINUTE", defaultCallbackPerMinute); err != nil {
		return Config{}, err
	}

	if err := cfg.finish(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// finish fills development defaults and rejects incomplete production setups.
func (c *Config) finish() error {
	if c.IsDev() {
		if c.JWTSecret == "" {
			c.JWTSecret = devJWTSecret
		}
		if c.TokenKey == "" {
			key := make([]byte, 32)
			if _, err := rand.Read(key); err != nil {
				return fmt.Errorf("generate development token key: %w", err)
			}
			c.TokenKey = hex.EncodeToString(key)
		}
		return nil
	}

	var missing []string
	for name, value := range map[string]string{
		"DATABASE_URL":         c.DatabaseURL,
		"REDIS_URL":            c.RedisURL,
		"JWT_SECRET":           c.JWTSecret,
		"TOKEN_ENCRYPTION_KEY": c.TokenKey,
	} {
		if value == "" {
			missing = append(missing, name)
		}
	}
	if !c.Gateway.Static {
		if c.Gateway.ClientID == "" {
			missing = append(missing, "GATEWAY_CLIENT_ID")
		}
		if c.Gateway.ClientSecret == "" {
			missing = append(missing, "GATEWAY_CLIENT_SECRET")
		}
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return fmt.Errorf("%s must be set when APP_ENV=%s", strings.Join(missing, ", "), c.AppEnv)
	}
	return nil
}

// IsDev reports whether the app runs in a development environment, where
// Postgres and Redis are optional.
func (c Config) IsDev() bool {
	switch strings.ToLower(c.AppEnv) {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

// LogValue keeps credentials out of logs.
func (c Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("app", c.AppName),
		slog.String("env", c.AppEnv),
		slog.String("port", c.Port),
		slog.String("log_level", c.LogLevel),
		slog.String("database_url", redactURL(c.DatabaseURL)),
		slog.String("redis_url", redactURL(c.RedisURL)),
		slog.String("rabbitmq_url", redactURL(c.RabbitMQURL)),
		slog.Bool("migrate", c.Migrate),
		slog.Any("deferred_types", c.DeferredTypes),
		slog.String("jwt_secret", redactSecret(c.JWTSecret)),
		slog.String("token_key", redactSecret(c.TokenKey)),
		slog.Group("gateway",
			slog.String("base_url", c.Gateway.BaseURL),
			slog.String("client_id", c.Gateway.ClientID),
			slog.String("client_secret", redactSecret(c.Gateway.ClientSecret)),
			slog.Duration("timeout", c.Gateway.Timeout),
			slog.Bool("static", c.Gateway.Static),
		),
	)
}

func redactSecret(s string) string {
	if s == "" {
		return ""
	}
	return redacted
}

// redactURL drops the userinfo part of connection strings.
func redactURL(raw string) string {
	at := strings.LastIndex(raw, "@")
	scheme := strings.Index(raw, "://")
	if at < 0 || scheme < 0 || at < scheme {
		return raw
	}
	return raw[:scheme+3] + redacted + raw[at:]
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// durationEnv reads KEY as a Go duration ("90s") or KEY_SECONDS as an integer.
func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	if v := os.Getenv(key + "_SECONDS"); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s_SECONDS: %w", key, err)
		}
		return time.Duration(seconds) * time.Second, nil
	}
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", key, err)
		}
		return d, nil
	}
	return fallback, nil
}

func intEnv(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func boolEnv(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

// splitList parses a comma separated list. "none" yields an empty, non-nil list.
func splitList(s string) []string {
	out := []string{}
	if strings.EqualFold(strings.TrimSpace(s), "none") {
		return out
	}
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, strings.ToUpper(part))
		}
	}
	return out
}
