// Package config handles loading application configuration from environment
// variables. All config is centralized here so no other package reads env
// vars directly. Sensible defaults are provided for development.
package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
)

// Config holds all application configuration. Populated from environment
// variables at startup. Passed to other packages via dependency injection.
type Config struct {
	// Env is the runtime environment: "development" or "production".
	Env string

	// Port is the HTTP listen port (default: 8080).
	Port int

	// BaseURL is the public-facing URL of the admin panel.
	BaseURL string

	// LogLevel controls log verbosity: "debug", "info", "warn", "error".
	LogLevel string

	// MigrationsPath is the directory holding golang-migrate SQL files.
	MigrationsPath string

	// Database holds MariaDB connection settings.
	Database DatabaseConfig

	// Redis holds Redis connection settings. Redis backs the job queue.
	Redis RedisConfig

	// Upload holds media upload limits and the on-disk upload root.
	Upload UploadConfig

	// Queue holds the derivative job queue retry policy.
	Queue QueueConfig

	// Worker holds derivative worker pool settings.
	Worker WorkerConfig
}

// DatabaseConfig holds MariaDB connection parameters. Individual fields
// (Host, User, Password, Name) are read from separate env vars so
// container orchestrators can manage each independently.
// If DATABASE_URL is set, it takes precedence over the individual fields.
type DatabaseConfig struct {
	// Host is the MariaDB address in host:port format (default: "localhost:3306").
	// If no port is specified, 3306 is appended automatically.
	Host string

	User     string
	Password string
	Name     string

	// dsnOverride is set when DATABASE_URL is provided, bypassing individual fields.
	dsnOverride string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// MySQLConfig returns the driver configuration for this database. When
// DATABASE_URL is set it is parsed as a go-sql-driver/mysql DSN
// (user:pass@tcp(host:3306)/name?params); otherwise the individual fields
// are used.
//
// ClientFoundRows and ParseTime are forced on in both cases. With
// ClientFoundRows an UPDATE that writes identical values still reports the
// row as affected, so a redelivered derivative job is not mistaken for a
// deleted record.
func (d DatabaseConfig) MySQLConfig() (*mysql.Config, error) {
	var cfg *mysql.Config
	if d.dsnOverride != "" {
		parsed, err := mysql.ParseDSN(d.dsnOverride)
		if err != nil {
			return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
		}
		cfg = parsed
	} else {
		cfg = mysql.NewConfig()
		cfg.User = d.User
		cfg.Passwd = d.Password
		cfg.Net = "tcp"
		cfg.Addr = ensurePort(d.Host, "3306")
		cfg.DBName = d.Name
	}
	cfg.ParseTime = true
	cfg.ClientFoundRows = true
	return cfg, nil
}

// DSN returns MySQLConfig formatted as a connection string, or an empty
// string when DATABASE_URL cannot be parsed. Load rejects that case, so a
// loaded Config always yields a usable DSN.
func (d DatabaseConfig) DSN() string {
	cfg, err := d.MySQLConfig()
	if err != nil {
		return ""
	}
	return cfg.FormatDSN()
}

// ensurePort appends the default port if the host string doesn't include one.
func ensurePort(host, defaultPort string) string {
	_, _, err := net.SplitHostPort(host)
	if err != nil {
		return net.JoinHostPort(host, defaultPort)
	}
	return host
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	// URL is the Redis connection URL (e.g., "redis://localhost:6379").
	URL string
}

// UploadConfig holds media upload settings.
type UploadConfig struct {
	// Root is the directory that maps to the public /uploads/ URL prefix.
	// Product media lives under {Root}/products/{productID}/{variant}/.
	Root string

	// MaxImageSize is the per-file ceiling for image/* uploads in bytes.
	MaxImageSize int64

	// MaxVideoSize is the per-file ceiling for video/* uploads in bytes.
	MaxVideoSize int64

	// MaxFilesPerRequest caps new media files in a single create/edit request.
	MaxFilesPerRequest int

	// MaxRequestSize caps the whole multipart request body.
	MaxRequestSize int64

	// RateLimitPerMinute caps upload requests per client IP.
	RateLimitPerMinute int
}

// QueueConfig holds the retry policy attached to every derivative job.
type QueueConfig struct {
	// Name is the asynq queue derivative jobs are placed on.
	Name string

	// MaxAttempts is the total number of deliveries before a job is archived.
	MaxAttempts int

	// InitialBackoff is the delay before the first redelivery. Each later
	// redelivery doubles it, up to MaxBackoff.
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// WorkerConfig holds derivative worker settings.
type WorkerConfig struct {
	// Concurrency is the number of jobs processed in parallel per worker process.
	Concurrency int

	// ShutdownTimeout bounds how long Stop waits for in-flight jobs.
	ShutdownTimeout time.Duration

	// JobTimeout bounds a single delivery. Zero disables the per-job timeout.
	JobTimeout time.Duration

	// Embedded runs a worker inside the server process (development only).
	Embedded bool

	// MetricsPort is where the standalone worker exposes /metrics.
	MetricsPort int
}

// Load reads configuration from environment variables with sensible defaults.
// A .env file in the working directory is applied first if present; real
// environment variables always win over it.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Env:            getEnv("ENV", "development"),
		Port:           getEnvInt("PORT", 8080),
		BaseURL:        getEnv("BASE_URL", "http://localhost:8080"),
		LogLevel:       getEnv("LOG_LEVEL", "debug"),
		MigrationsPath: getEnv("MIGRATIONS_PATH", "db/migrations"),

		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost:3306"),
			User:            getEnv("DB_USER", "catalog"),
			Password:        getEnv("DB_PASSWORD", "catalog"),
			Name:            getEnv("DB_NAME", "catalog"),
			dsnOverride:     getEnv("DATABASE_URL", ""),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		},

		Redis: RedisConfig{
			URL: getEnv("REDIS_URL", "redis://localhost:6379"),
		},

		Upload: UploadConfig{
			Root:               getEnv("UPLOAD_ROOT", "./public/uploads"),
			MaxImageSize:       getEnvInt64("MAX_IMAGE_SIZE", 10*1024*1024),
			MaxVideoSize:       getEnvInt64("MAX_VIDEO_SIZE", 100*1024*1024),
			MaxFilesPerRequest: getEnvInt("MAX_MEDIA_PER_REQUEST", 15),
			MaxRequestSize:     getEnvInt64("MAX_REQUEST_SIZE", 200*1024*1024),
			RateLimitPerMinute: getEnvInt("UPLOAD_RATE_LIMIT", 30),
		},

		Queue: QueueConfig{
			Name:           getEnv("QUEUE_NAME", "media"),
			MaxAttempts:    getEnvInt("QUEUE_MAX_ATTEMPTS", 5),
			InitialBackoff: getEnvDuration("QUEUE_INITIAL_BACKOFF", 2*time.Second),
			MaxBackoff:     getEnvDuration("QUEUE_MAX_BACKOFF", time.Minute),
		},

		Worker: WorkerConfig{
			Concurrency:     getEnvInt("WORKER_CONCURRENCY", 4),
			ShutdownTimeout: getEnvDuration("WORKER_SHUTDOWN_TIMEOUT", 30*time.Second),
			JobTimeout:      getEnvDuration("WORKER_JOB_TIMEOUT", 2*time.Minute),
			Embedded:        getEnvBool("WORKER_EMBEDDED", false),
			MetricsPort:     getEnvInt("WORKER_METRICS_PORT", 9091),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate rejects settings that would break the pipeline's invariants.
func (c *Config) validate() error {
	if _, err := c.Database.MySQLConfig(); err != nil {
		return err
	}
	if c.Upload.Root == "" {
		return fmt.Errorf("UPLOAD_ROOT must not be empty")
	}
	if c.Upload.MaxImageSize <= 0 || c.Upload.MaxVideoSize <= 0 {
		return fmt.Errorf("MAX_IMAGE_SIZE and MAX_VIDEO_SIZE must be positive")
	}
	if c.Upload.MaxImageSize > c.Upload.MaxVideoSize {
		return fmt.Errorf("MAX_IMAGE_SIZE (%d) must not exceed MAX_VIDEO_SIZE (%d)",
			c.Upload.MaxImageSize, c.Upload.MaxVideoSize)
	}
	if c.Upload.MaxFilesPerRequest <= 0 {
		return fmt.Errorf("MAX_MEDIA_PER_REQUEST must be positive")
	}
	if c.Upload.MaxRequestSize < c.Upload.MaxVideoSize {
		return fmt.Errorf("MAX_REQUEST_SIZE (%d) must be at least MAX_VIDEO_SIZE (%d)",
			c.Upload.MaxRequestSize, c.Upload.MaxVideoSize)
	}
	if c.Upload.RateLimitPerMinute <= 0 {
		return fmt.Errorf("UPLOAD_RATE_LIMIT must be positive")
	}
	if c.Queue.MaxAttempts < 1 || c.Queue.MaxAttempts > 10 {
		return fmt.Errorf("QUEUE_MAX_ATTEMPTS must be between 1 and 10 (got %d)", c.Queue.MaxAttempts)
	}
	if c.Queue.InitialBackoff <= 0 {
		return fmt.Errorf("QUEUE_INITIAL_BACKOFF must be positive")
	}
	if c.Queue.MaxBackoff < c.Queue.InitialBackoff {
		c.Queue.MaxBackoff = c.Queue.InitialBackoff
	}
	if c.Worker.Concurrency <= 0 {
		return fmt.Errorf("WORKER_CONCURRENCY must be positive")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	env := strings.ToLower(c.Env)
	return env == "development" || env == "dev"
}

// --- Helper functions for reading environment variables ---

func getEnv(key, defaultVal string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvInt64(key string, defaultVal int64) int64 {
	if val, ok := os.LookupEnv(key); ok {
		if i, err := strconv.ParseInt(val, 10, 64); err == nil {
			return i
		}
	}
	return defaultVal
}

// getEnvDuration reads a duration env var (e.g., "2s") or returns the default.
func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}
