package config

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv string
	Port   string

	StoreBackend        string
	DatabaseURL         string
	DB                  DBConfig
	SQLitePath          string
	StoreConnectTimeout time.Duration

	AppPassword     string
	AppPasswordHash string
	SessionSecret   string
	SessionTTL      time.Duration
	CookieName      string
	CookieDomain    string
	CookieSecure    bool
	CookieSameSite  http.SameSite
	CSRFEnabled     bool

	CORSAllowedOrigins []string
	RedisURL           string
	SummaryCacheTTL    time.Duration

	LoginRateLimitMax    int
	LoginRateLimitWindow time.Duration
	HTTPBodyLimitBytes   int64

	Obs ObsConfig
}

// DBConfig holds discrete Postgres connection settings used when
// DATABASE_URL is absent.
type DBConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

// ObsConfig groups logging, metrics and tracing switches.
type ObsConfig struct {
	LogFormat        string
	LogLevel         string
	MetricsNamespace string
	MetricsBuckets   string
	EnablePrometheus bool
	EnableTracing    bool
	OTLPEndpoint     string
	TracingExporter  string
	SamplingRatio    float64
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	cfg, err := LoadStore()
	if err != nil {
		return nil, err
	}
	if cfg.AppPassword == "" && cfg.AppPasswordHash == "" {
		return nil, errors.New("APP_PASSWORD or APP_PASSWORD_HASH is required")
	}
	return cfg, nil
}

// LoadStore reads the same settings as Load without requiring the login
// secret. Command line tools that only touch the store use it.
func LoadStore() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:              valueOrDefault(k.String("APP_ENV"), "development"),
		Port:                valueOrDefault(k.String("PORT"), "8080"),
		StoreBackend:        strings.ToLower(valueOrDefault(k.String("STORE_BACKEND"), "auto")),
		DatabaseURL:         strings.TrimSpace(k.String("DATABASE_URL")),
		SQLitePath:          valueOrDefault(k.String("SQLITE_PATH"), "offset_orders.db"),
		StoreConnectTimeout: parseDuration(k.String("STORE_CONNECT_TIMEOUT"), "5s"),
		DB: DBConfig{
			Host:     strings.TrimSpace(k.String("DB_HOST")),
			Port:     valueOrDefault(k.String("DB_PORT"), "6543"),
			User:     valueOrDefault(k.String("DB_USER"), "postgres"),
			Password: k.String("DB_PASS"),
			Name:     valueOrDefault(k.String("DB_NAME"), "postgres"),
			SSLMode:  valueOrDefault(k.String("DB_SSLMODE"), "require"),
		},

		AppPassword:     strings.TrimSpace(k.String("APP_PASSWORD")),
		AppPasswordHash: strings.TrimSpace(k.String("APP_PASSWORD_HASH")),
		SessionSecret:   strings.TrimSpace(k.String("SESSION_SECRET")),
		SessionTTL:      parseDuration(k.String("SESSION_TTL"), "12h"),
		CookieName:      valueOrDefault(k.String("SESSION_COOKIE_NAME"), "offset_session"),
		CookieDomain:    strings.TrimSpace(k.String("SESSION_COOKIE_DOMAIN")),
		CookieSecure:    parseBool(k.String("SESSION_COOKIE_SECURE"), false),
		CookieSameSite:  parseSameSite(k.String("SESSION_COOKIE_SAMESITE")),
		CSRFEnabled:     parseBool(k.String("SESSION_COOKIE_CSRF"), true),

		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),
		RedisURL:           strings.TrimSpace(k.String("REDIS_URL")),
		SummaryCacheTTL:    parseDuration(k.String("SUMMARY_CACHE_TTL"), "1m"),

		LoginRateLimitMax:    parseInt(k.String("LOGIN_RATE_LIMIT_MAX"), 10),
		LoginRateLimitWindow: parseDuration(k.String("LOGIN_RATE_LIMIT_WINDOW"), "1m"),
		HTTPBodyLimitBytes:   int64(parseInt(k.String("HTTP_BODY_LIMIT_BYTES"), 1<<20)),

		Obs: ObsConfig{
			LogFormat:        valueOrDefault(k.String("OBS_LOG_FORMAT"), "json"),
			LogLevel:         valueOrDefault(k.String("OBS_LOG_LEVEL"), "info"),
			MetricsNamespace: valueOrDefault(k.String("OBS_METRICS_NAMESPACE"), "offset"),
			MetricsBuckets:   strings.TrimSpace(k.String("OBS_METRICS_BUCKETS_MS")),
			EnablePrometheus: parseBool(k.String("OBS_ENABLE_PROMETHEUS"), true),
			EnableTracing:    parseBool(k.String("OBS_ENABLE_TRACING"), false),
			OTLPEndpoint:     strings.TrimSpace(k.String("OBS_OTLP_ENDPOINT")),
			TracingExporter:  valueOrDefault(k.String("OBS_TRACING_EXPORTER"), "otlp"),
			SamplingRatio:    parseFloat(k.String("OBS_TRACING_SAMPLING_RATIO"), 1.0),
		},
	}

	if cfg.CookieSameSite == http.SameSiteDefaultMode {
		cfg.CookieSameSite = http.SameSiteLaxMode
	}

	switch cfg.StoreBackend {
	case "auto", "postgres", "sqlite":
	default:
		return nil, fmt.Errorf("STORE_BACKEND must be auto, postgres or sqlite, got %q", cfg.StoreBackend)
	}

	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

// PostgresDSN prefers DATABASE_URL and otherwise assembles a URL from the
// DB_* settings. It returns "" when neither names a host.
func (c *Config) PostgresDSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	if c.DB.Host == "" {
		return ""
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.DB.User, c.DB.Password),
		Host:     net.JoinHostPort(c.DB.Host, c.DB.Port),
		Path:     "/" + c.DB.Name,
		RawQuery: url.Values{"sslmode": {c.DB.SSLMode}}.Encode(),
	}
	return u.String()
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		return trimmed
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseBool(value string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "t", "true", "yes", "on":
		return true
	case "0", "f", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func parseInt(value string, fallback int) int {
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return parsed
}

func parseFloat(value string, fallback float64) float64 {
	parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func parseSameSite(value string) http.SameSite {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	case "lax":
		return http.SameSiteLaxMode
	default:
		return http.SameSiteDefaultMode
	}
}

// MustLoad behaves like Load but panics on error. Useful for tests and command entrypoints.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
