package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Documented sign-in limiter defaults. Five failed attempts inside a
// fifteen-minute window trigger a fifteen-minute block.
const (
	DefaultMaxLoginAttempts   = 5
	DefaultLoginAttemptWindow = 15 * time.Minute
	DefaultLoginBlockDuration = 15 * time.Minute
)

// Attempt window store drivers selectable via LIMITER_STORE.
const (
	StoreDriverMemory   = "memory"
	StoreDriverPostgres = "postgres"
	StoreDriverRedis    = "redis"
)

// Identity backend modes selectable via IDENTITY_MODE.
const (
	IdentityModeUpstream = "upstream"
	IdentityModeStatic   = "static"
)

type Config struct {
	Database DatabaseConfig
	Redis    RedisConfig
	Server   ServerConfig
	Auth     AuthConfig
	Limiter  LimiterConfig
	Identity IdentityConfig
}

type DatabaseConfig struct {
	Host              string
	Port              int
	User              string
	Password          string
	Name              string
	SSLMode           string
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type ServerConfig struct {
	Port           string
	Env            string
	LogLevel       string
	AllowedOrigins []string
	TrustedProxies []string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
}

type AuthConfig struct {
	JWTSecret       string
	SessionExpiry   time.Duration
	CookieDomain    string
	CookieSecure    bool
	CookieSameSite  string
	MinFailureDelay time.Duration
	FailureJitter   time.Duration
}

// LimiterConfig holds the sign-in attempt limiter knobs. The defaults are
// the documented product behavior; the env vars exist for tests and for
// tenants that need a different posture.
type LimiterConfig struct {
	StoreDriver    string
	MaxAttempts    int
	WindowDuration time.Duration
	BlockDuration  time.Duration
	SweepInterval  time.Duration
}

type IdentityConfig struct {
	Mode               string
	UpstreamURL        string
	RequestTimeout     time.Duration
	StaticEmail        string
	StaticPasswordHash string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	jwtSecret := getEnv("JWT_SECRET", "")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	env := getEnv("ENV", "development")

	cfg := &Config{
		Database: DatabaseConfig{
			Host:              getEnv("DB_HOST", "localhost"),
			Port:              getEnvAsInt("DB_PORT", 5432),
			User:              getEnv("DB_USER", "postgres"),
			Password:          getEnv("DB_PASSWORD", ""),
			Name:              getEnv("DB_NAME", "rzgateway"),
			SSLMode:           getEnv("DB_SSLMODE", "disable"),
			MaxConns:          int32(getEnvAsInt("DB_MAX_CONNS", 25)),
			MinConns:          int32(getEnvAsInt("DB_MIN_CONNS", 5)),
			MaxConnLifetime:   getEnvAsDuration("DB_MAX_CONN_LIFETIME", 5*time.Minute),
			MaxConnIdleTime:   getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 1*time.Minute),
			HealthCheckPeriod: getEnvAsDuration("DB_HEALTH_CHECK_PERIOD", 1*time.Minute),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			Env:            env,
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			AllowedOrigins: parseAllowedOrigins(env),
			TrustedProxies: parseTrustedProxies(),
			ReadTimeout:    getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:   getEnvAsDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:    getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
		},
		Auth: AuthConfig{
			JWTSecret:       jwtSecret,
			SessionExpiry:   getEnvAsDuration("SESSION_EXPIRY", 12*time.Hour),
			CookieDomain:    getEnv("COOKIE_DOMAIN", ""),
			CookieSecure:    getEnvAsBool("COOKIE_SECURE", env == "production"),
			CookieSameSite:  getEnv("COOKIE_SAMESITE", "strict"),
			MinFailureDelay: getEnvAsDuration("MIN_FAILURE_DELAY", 200*time.Millisecond),
			FailureJitter:   getEnvAsDuration("FAILURE_DELAY_JITTER", 150*time.Millisecond),
		},
		Limiter: LimiterConfig{
			StoreDriver:    getEnv("LIMITER_STORE", StoreDriverPostgres),
			MaxAttempts:    getEnvAsInt("LOGIN_MAX_ATTEMPTS", DefaultMaxLoginAttempts),
			WindowDuration: getEnvAsDuration("LOGIN_ATTEMPT_WINDOW", DefaultLoginAttemptWindow),
			BlockDuration:  getEnvAsDuration("LOGIN_BLOCK_DURATION", DefaultLoginBlockDuration),
			SweepInterval:  getEnvAsDuration("WINDOW_SWEEP_INTERVAL", 5*time.Minute),
		},
		Identity: IdentityConfig{
			Mode:               getEnv("IDENTITY_MODE", IdentityModeUpstream),
			UpstreamURL:        getEnv("IDENTITY_URL", ""),
			RequestTimeout:     getEnvAsDuration("IDENTITY_TIMEOUT", 10*time.Second),
			StaticEmail:        getEnv("STATIC_AUTH_EMAIL", ""),
			StaticPasswordHash: getEnv("STATIC_AUTH_PASSWORD_HASH", ""),
		},
	}

	if err := validateJWTSecret(jwtSecret, env); err != nil {
		return nil, err
	}

	if err := cfg.Limiter.validate(); err != nil {
		return nil, err
	}

	if cfg.Limiter.StoreDriver == StoreDriverPostgres && cfg.Database.Password == "" {
		return nil, fmt.Errorf("DB_PASSWORD is required when LIMITER_STORE is postgres")
	}

	if err := cfg.Identity.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *LimiterConfig) validate() error {
	switch c.StoreDriver {
	case StoreDriverMemory, StoreDriverPostgres, StoreDriverRedis:
	default:
		return fmt.Errorf("LIMITER_STORE must be one of memory, postgres, redis (got %q)", c.StoreDriver)
	}

	if c.MaxAttempts < 1 {
		return fmt.Errorf("LOGIN_MAX_ATTEMPTS must be at least 1 (got %d)", c.MaxAttempts)
	}
	if c.WindowDuration <= 0 {
		return fmt.Errorf("LOGIN_ATTEMPT_WINDOW must be positive (got %s)", c.WindowDuration)
	}
	if c.BlockDuration <= 0 {
		return fmt.Errorf("LOGIN_BLOCK_DURATION must be positive (got %s)", c.BlockDuration)
	}

	return nil
}

func (c *IdentityConfig) validate() error {
	switch c.Mode {
	case IdentityModeUpstream:
		if c.UpstreamURL == "" {
			return fmt.Errorf("IDENTITY_URL is required when IDENTITY_MODE is upstream")
		}
	case IdentityModeStatic:
		if c.StaticEmail == "" || c.StaticPasswordHash == "" {
			return fmt.Errorf("STATIC_AUTH_EMAIL and STATIC_AUTH_PASSWORD_HASH are required when IDENTITY_MODE is static")
		}
	default:
		return fmt.Errorf("IDENTITY_MODE must be upstream or static (got %q)", c.Mode)
	}

	return nil
}

// validateJWTSecret enforces minimum security standards for the session
// signing secret
func validateJWTSecret(secret, env string) error {
	// Minimum length based on environment
	minLength := 16 // Development minimum
	if env == "production" {
		minLength = 32 // Production requires stronger secret (256 bits)
	}

	if len(secret) < minLength {
		return fmt.Errorf("JWT_SECRET must be at least %d characters in %s environment (got %d)",
			minLength, env, len(secret))
	}

	// Check against common weak secrets
	weakSecrets := []string{
		"secret", "test", "password", "12345", "changeme",
		"admin", "root", "default", "example",
	}

	secretLower := strings.ToLower(secret)
	for _, weak := range weakSecrets {
		if secretLower == weak {
			return fmt.Errorf("JWT_SECRET cannot be a common weak value")
		}
	}

	return nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultVal
}

func parseAllowedOrigins(env string) []string {
	if env == "production" {
		originsStr := getEnv("ALLOWED_ORIGINS", "")
		if originsStr == "" {
			return []string{} // Default to no origins in production
		}
		origins := strings.Split(originsStr, ",")
		for i, origin := range origins {
			origins[i] = strings.TrimSpace(origin)
		}
		return origins
	}

	// Development: allow localhost variants
	return []string{
		"http://localhost:3000",
		"http://localhost:8080",
		"http://localhost:5173", // Vite default
		"http://localhost:3001",
		"http://127.0.0.1:3000",
		"http://127.0.0.1:8080",
		"http://127.0.0.1:5173",
		"http://127.0.0.1:3001",
	}
}

func parseTrustedProxies() []string {
	proxiesStr := getEnv("TRUSTED_PROXIES", "")
	if proxiesStr == "" {
		return nil
	}
	proxies := strings.Split(proxiesStr, ",")
	for i, proxy := range proxies {
		proxies[i] = strings.TrimSpace(proxy)
	}
	return proxies
}
