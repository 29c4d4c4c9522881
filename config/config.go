package config

import (
	"context"
	"fmt"
	"net/netip"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store drivers understood by the repository layer
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Throttle backends
const (
	ThrottleBackendMemory = "memory"
	ThrottleBackendRedis  = "redis"
)

// minSigningKeyLength is the smallest HS256 key accepted, in bytes.
const minSigningKeyLength = 32

// Config represents the complete application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Security      SecurityConfig
	Throttle      ThrottleConfig
	Redis         RedisConfig
	Audit         AuditConfig
	CORS          CORSConfig
	Observability ObservabilityConfig
	Environment   string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
	TLS             struct {
		Enabled  bool
		CertFile string
		KeyFile  string
	}

	// TrustedProxies are the peers whose X-Forwarded-For / X-Real-IP
	// headers are believed. Empty means the socket address is the client.
	TrustedProxies []netip.Prefix
}

// DatabaseConfig holds relational store configuration.
// When ConnectionString (from DATABASE_URL) is set, it takes precedence over individual fields.
type DatabaseConfig struct {
	Driver           string // postgres or sqlite
	ConnectionString string // From DATABASE_URL when set
	Host             string
	Port             int
	User             string
	Password         string
	Database         string
	SSLMode          string
	SQLitePath       string
	MaxOpenConns     int
	MaxIdleConns     int
	ConnMaxLifetime  time.Duration
	AutoMigrate      bool
}

// SecurityConfig holds credential and token settings. It is loaded once and
// handed to the token service and hasher constructors.
type SecurityConfig struct {
	SigningKey        string
	Issuer            string
	TokenTTL          time.Duration
	Argon2Memory      uint32 // KiB
	Argon2Iterations  uint32
	Argon2Parallelism uint8
	PasswordMinLength int
	AllowSignUp       bool
}

// ThrottleConfig holds sign-in throttling configuration
type ThrottleConfig struct {
	Enabled     bool
	Backend     string
	MaxAttempts int
	Window      time.Duration
}

// RedisConfig holds Redis connection settings for the shared throttle backend
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// AuditConfig holds audit worker pool settings
type AuditConfig struct {
	Enabled    bool
	Workers    int
	BufferSize int
}

// CORSConfig holds allowed browser origins
type CORSConfig struct {
	AllowedOrigins []string
}

// ObservabilityConfig holds monitoring and logging configuration
type ObservabilityConfig struct {
	LogLevel       string
	LogFormat      string // json or console
	MetricsEnabled bool
	MetricsPort    int
}

// New creates a new Config instance by loading environment variables
func New(ctx context.Context) (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load(".env")

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getPort(),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			RequestTimeout:  getEnvAsDuration("SERVER_REQUEST_TIMEOUT", 30*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			TLS: struct {
				Enabled  bool
				CertFile string
				KeyFile  string
			}{
				Enabled:  getEnvAsBool("TLS_ENABLED", false),
				CertFile: getEnv("TLS_CERT_FILE", "certs/cert.pem"),
				KeyFile:  getEnv("TLS_KEY_FILE", "certs/key.pem"),
			},
		},
		Database: loadDatabaseConfig(),
		Security: SecurityConfig{
			SigningKey:        getEnv("TOKEN_SIGNING_KEY", ""),
			Issuer:            getEnv("TOKEN_ISSUER", "authd"),
			TokenTTL:          getEnvAsDuration("TOKEN_TTL", 15*time.Minute),
			Argon2Memory:      uint32(getEnvAsInt("ARGON2_MEMORY_KIB", 64*1024)),
			Argon2Iterations:  uint32(getEnvAsInt("ARGON2_ITERATIONS", 3)),
			Argon2Parallelism: uint8(getEnvAsInt("ARGON2_PARALLELISM", 1)),
			PasswordMinLength: getEnvAsInt("PASSWORD_MIN_LENGTH", 8),
			AllowSignUp:       getEnvAsBool("ALLOW_SIGN_UP", false),
		},
		Throttle: ThrottleConfig{
			Enabled:     getEnvAsBool("THROTTLE_ENABLED", true),
			Backend:     getEnv("THROTTLE_BACKEND", ThrottleBackendMemory),
			MaxAttempts: getEnvAsInt("THROTTLE_MAX_ATTEMPTS", 10),
			Window:      getEnvAsDuration("THROTTLE_WINDOW", time.Minute),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Audit: AuditConfig{
			Enabled:    getEnvAsBool("AUDIT_ENABLED", true),
			Workers:    getEnvAsInt("AUDIT_WORKERS", 2),
			BufferSize: getEnvAsInt("AUDIT_BUFFER_SIZE", 1000),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:*"}),
		},
		Observability: ObservabilityConfig{
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			LogFormat:      getEnv("LOG_FORMAT", "json"),
			MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
			MetricsPort:    getEnvAsInt("METRICS_PORT", 9090),
		},
	}

	proxies, err := parseTrustedProxies(getEnvAsList("TRUSTED_PROXIES", nil))
	if err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	cfg.Server.TrustedProxies = proxies

	// Development runs without a key get a fixed one so the binary starts.
	if cfg.Security.SigningKey == "" && cfg.IsDevelopment() {
		cfg.Security.SigningKey = developmentSigningKey
	}

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

const developmentSigningKey = "authd-development-signing-key-do-not-use"

// Validate checks if all required configuration fields are set
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverPostgres:
		if c.Database.ConnectionString == "" && c.Database.Host == "" {
			return fmt.Errorf("database configuration required: set DATABASE_URL or DB_HOST")
		}
		if c.Database.ConnectionString == "" {
			if c.Database.User == "" {
				return fmt.Errorf("database user is required")
			}
			if c.Database.Database == "" {
				return fmt.Errorf("database name is required")
			}
		}
	case DriverSQLite:
		if c.Database.ConnectionString == "" && c.Database.SQLitePath == "" {
			return fmt.Errorf("sqlite path is required: set SQLITE_PATH or DATABASE_URL")
		}
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}

	// Token validation
	if c.Security.SigningKey == "" {
		return fmt.Errorf("token signing key is required: set TOKEN_SIGNING_KEY")
	}
	if len(c.Security.SigningKey) < minSigningKeyLength {
		return fmt.Errorf("token signing key must be at least %d bytes", minSigningKeyLength)
	}
	if c.IsProduction() && c.Security.SigningKey == developmentSigningKey {
		return fmt.Errorf("development signing key cannot be used in production")
	}
	if c.Security.TokenTTL <= 0 {
		return fmt.Errorf("token TTL must be positive")
	}
	if c.Security.Argon2Memory == 0 || c.Security.Argon2Iterations == 0 || c.Security.Argon2Parallelism == 0 {
		return fmt.Errorf("argon2 parameters must be positive")
	}

	// Throttle validation
	if c.Throttle.Enabled {
		if c.Throttle.Backend != ThrottleBackendMemory && c.Throttle.Backend != ThrottleBackendRedis {
			return fmt.Errorf("unsupported throttle backend %q", c.Throttle.Backend)
		}
		if c.Throttle.MaxAttempts <= 0 || c.Throttle.Window <= 0 {
			return fmt.Errorf("throttle max attempts and window must be positive")
		}
	}

	// Observability validation
	if c.Observability.LogLevel == "" {
		return fmt.Errorf("log level is required")
	}

	return nil
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "dev"
}

// DSN returns the driver-specific connection string.
// Uses ConnectionString (from DATABASE_URL) when set; otherwise builds from individual fields.
func (c *DatabaseConfig) DSN() string {
	if c.ConnectionString != "" {
		return c.ConnectionString
	}
	if c.Driver == DriverSQLite {
		return c.SQLitePath
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// LogString returns a safe string for logging (no password). Parses ConnectionString when set.
func (c *DatabaseConfig) LogString() string {
	if c.Driver == DriverSQLite {
		return fmt.Sprintf("driver=sqlite path=%s", c.DSN())
	}
	if c.ConnectionString != "" {
		u, err := url.Parse(c.ConnectionString)
		if err == nil && u.Host != "" {
			port := u.Port()
			if port == "" {
				port = "5432"
			}
			db := strings.TrimPrefix(u.Path, "/")
			return fmt.Sprintf("host=%s port=%s database=%s", u.Hostname(), port, db)
		}
		return "host=<from DATABASE_URL>"
	}
	return fmt.Sprintf("host=%s port=%d database=%s", c.Host, c.Port, c.Database)
}

// loadDatabaseConfig loads database config from DATABASE_URL or DB_* env vars
func loadDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Driver:           strings.ToLower(getEnv("DB_DRIVER", DriverPostgres)),
		ConnectionString: getEnv("DATABASE_URL", ""),
		Host:             getEnv("DB_HOST", "localhost"),
		Port:             getEnvAsInt("DB_PORT", 5432),
		User:             getEnv("DB_USER", "authd"),
		Password:         getEnv("DB_PASSWORD", "authd"),
		Database:         getEnv("DB_NAME", "authd"),
		SSLMode:          getEnv("DB_SSLMODE", "disable"),
		SQLitePath:       getEnv("SQLITE_PATH", "authd.db"),
		MaxOpenConns:     getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
		MaxIdleConns:     getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
		ConnMaxLifetime:  getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		AutoMigrate:      getEnvAsBool("DB_AUTO_MIGRATE", false),
	}
}

// Address returns the HTTP server address
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Helper functions

// getPort returns the server port from PORT or SERVER_PORT env vars (default: 8080)
func getPort() int {
	if value := os.Getenv("PORT"); value != "" {
		if p, err := strconv.Atoi(value); err == nil {
			return p
		}
	}
	if value := os.Getenv("SERVER_PORT"); value != "" {
		if p, err := strconv.Atoi(value); err == nil {
			return p
		}
	}
	return 8080
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// parseTrustedProxies accepts CIDR prefixes and bare addresses
func parseTrustedProxies(values []string) ([]netip.Prefix, error) {
	var out []netip.Prefix
	for _, v := range values {
		if strings.Contains(v, "/") {
			p, err := netip.ParsePrefix(v)
			if err != nil {
				return nil, fmt.Errorf("invalid trusted proxy %q: %w", v, err)
			}
			out = append(out, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(v)
		if err != nil {
			return nil, fmt.Errorf("invalid trusted proxy %q: %w", v, err)
		}
		addr = addr.Unmap()
		out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return out, nil
}

func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
