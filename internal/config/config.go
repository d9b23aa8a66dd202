package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App       AppConfig
	Postgres  PostgresConfig
	Redis     RedisConfig
	Logger    LoggerConfig
	Auth      AuthConfig
	Cognito   CognitoConfig
	RateLimit RateLimitConfig
	CORS      CORSConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32

	// StatementTimeoutMS caps each credential-store query server side.
	StatementTimeoutMS int
	ApplicationName    string
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	JWTSecret             string
	Algorithm             string
	AccessTokenTTLMinutes int
	RefreshTokenTTLDays   int
	PasswordHashSchemes   []string
	BcryptCost            int
	HashConcurrency       int
	EnableLocalAuth       bool
	EnableFederatedAuth   bool
	PublicRoutes          []string
}

// CognitoConfig identifies the federated user pool.
type CognitoConfig struct {
	Region          string
	UserPoolID      string
	ClientID        string
	ClientSecret    string
	JWKSCacheTTLMin int
}

// RateLimitConfig bounds requests per client within a fixed window.
type RateLimitConfig struct {
	Requests      int
	WindowSeconds int
}

// CORSConfig lists allowed browser origins.
type CORSConfig struct {
	AllowedOrigins []string
}

// DefaultPublicRoutes are path prefixes served without authentication.
var DefaultPublicRoutes = []string{
	"/health",
	"/metrics",
	"/auth/login",
	"/auth/refresh",
	"/auth/logout",
	"/docs",
	"/redoc",
	"/openapi.json",
}

var validEnvironments = map[string]struct{}{
	"development": {},
	"testing":     {},
	"staging":     {},
	"production":  {},
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "druginsight-api"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "127.0.0.1"),
			Port:                  getEnv("APP_PORT", "8000"),
			Version:               getEnv("APP_VERSION", "0.1.0"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:                os.Getenv("POSTGRES_DSN"),
			MaxConns:           int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:           int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:      getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec:     int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec:     int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
			StatementTimeoutMS: getEnvAsInt("POSTGRES_STATEMENT_TIMEOUT_MS", 5000),
			ApplicationName:    getEnv("APP_NAME", "druginsight-api"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret-key-change-in-production-INSECURE"),
			Algorithm:             getEnv("AUTH_JWT_ALGORITHM", "HS256"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 30),
			RefreshTokenTTLDays:   getEnvAsInt("AUTH_REFRESH_TOKEN_TTL_DAYS", 7),
			PasswordHashSchemes:   getEnvAsList("AUTH_PASSWORD_HASH_SCHEMES", []string{"bcrypt"}),
			BcryptCost:            getEnvAsInt("AUTH_BCRYPT_COST", 12),
			HashConcurrency:       getEnvAsInt("AUTH_HASH_CONCURRENCY", runtime.NumCPU()),
			EnableLocalAuth:       getEnvAsBool("AUTH_ENABLE_LOCAL", true),
			EnableFederatedAuth:   getEnvAsBool("AUTH_ENABLE_COGNITO", false),
			PublicRoutes:          getEnvAsList("AUTH_PUBLIC_ROUTES", DefaultPublicRoutes),
		},
		Cognito: CognitoConfig{
			Region:          getEnv("AWS_REGION", "us-east-1"),
			UserPoolID:      os.Getenv("AWS_COGNITO_USER_POOL_ID"),
			ClientID:        os.Getenv("AWS_COGNITO_CLIENT_ID"),
			ClientSecret:    os.Getenv("AWS_COGNITO_CLIENT_SECRET"),
			JWKSCacheTTLMin: getEnvAsInt("AWS_COGNITO_JWKS_CACHE_TTL_MINUTES", 60),
		},
		RateLimit: RateLimitConfig{
			Requests:      getEnvAsInt("RATE_LIMIT_REQUESTS", 100),
			WindowSeconds: getEnvAsInt("RATE_LIMIT_WINDOW_SECONDS", 60),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000", "http://localhost:8000"}),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate normalizes feature flags and rejects unsafe production settings.
func (c *Config) Validate() error {
	if _, ok := validEnvironments[c.App.Env]; !ok {
		return fmt.Errorf("invalid APP_ENV %q: must be one of development, testing, staging, production", c.App.Env)
	}

	// Federated auth needs both identifiers; silently fall back otherwise.
	if c.Auth.EnableFederatedAuth && (c.Cognito.UserPoolID == "" || c.Cognito.ClientID == "") {
		c.Auth.EnableFederatedAuth = false
	}

	if c.App.Env == "production" {
		secret := c.Auth.JWTSecret
		if strings.Contains(secret, "dev-secret") || strings.Contains(secret, "INSECURE") {
			return errors.New("insecure AUTH_JWT_SECRET in production environment")
		}
		if len(secret) < 32 {
			return errors.New("AUTH_JWT_SECRET must be at least 32 characters in production")
		}
	}

	if len(c.Auth.PasswordHashSchemes) == 0 {
		return errors.New("AUTH_PASSWORD_HASH_SCHEMES must list at least one scheme")
	}
	return nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// AccessTokenTTL returns the access token lifetime.
func (a AuthConfig) AccessTokenTTL() time.Duration {
	if a.AccessTokenTTLMinutes <= 0 {
		return 30 * time.Minute
	}
	return time.Duration(a.AccessTokenTTLMinutes) * time.Minute
}

// RefreshTokenTTL returns the refresh token lifetime.
func (a AuthConfig) RefreshTokenTTL() time.Duration {
	if a.RefreshTokenTTLDays <= 0 {
		return 7 * 24 * time.Hour
	}
	return time.Duration(a.RefreshTokenTTLDays) * 24 * time.Hour
}

// Issuer returns the user pool issuer URL.
func (c CognitoConfig) Issuer() string {
	return fmt.Sprintf("https://cognito-idp.%s.amazonaws.com/%s", c.Region, c.UserPoolID)
}

// JWKSURL returns the user pool's published key set location.
func (c CognitoConfig) JWKSURL() string {
	return c.Issuer() + "/.well-known/jwks.json"
}

// JWKSCacheTTL returns how long fetched keys are trusted before refresh.
func (c CognitoConfig) JWKSCacheTTL() time.Duration {
	if c.JWKSCacheTTLMin <= 0 {
		return time.Hour
	}
	return time.Duration(c.JWKSCacheTTLMin) * time.Minute
}

// Window returns the rate limit window.
func (r RateLimitConfig) Window() time.Duration {
	if r.WindowSeconds <= 0 {
		return time.Minute
	}
	return time.Duration(r.WindowSeconds) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsList(key string, fallback []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return append([]string(nil), fallback...)
	}
	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
