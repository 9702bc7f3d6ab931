// Package config loads application settings from environment variables.
// Every field carries its env name and default in struct tags; Load fills
// the struct and Validate reports every problem at once so a misconfigured
// deployment fails on startup.
package config

import (
	"strconv"
	"time"

	"github.com/JonMunkholm/hrpipe/internal/hr"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Import     ImportConfig
	Attendance AttendanceConfig
	Leave      LeaveConfig
	Storage    StorageConfig
	Auth       AuthConfig
	Rate       RateLimitConfig
	CORS       CORSConfig
	Retention  RetentionConfig
	Logging    LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`
	Port int    `env:"SERVER_PORT" default:"8080"`

	ReadTimeout  time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"0s"`
	IdleTimeout  time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout bounds graceful shutdown, including import drain.
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is applied by middleware to non-import routes.
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`

	// TrustedProxies lists CIDRs whose X-Real-IP / X-Forwarded-For headers
	// are believed.
	TrustedProxies []string `env:"TRUSTED_PROXIES"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// URL accepts DATABASE_URL or DB_URL.
	URL string `env:"DATABASE_URL" envAlt:"DB_URL" required:"true"`

	MaxConns        int           `env:"DB_MAX_CONNS" default:"20"`
	MinConns        int           `env:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// ImportConfig holds bulk import settings.
type ImportConfig struct {
	// MaxFileSize is the largest accepted upload in bytes (default: 50MB)
	MaxFileSize int64 `env:"IMPORT_MAX_FILE_SIZE" default:"52428800"`

	// MaxConcurrent bounds imports running at the same time
	MaxConcurrent int `env:"IMPORT_MAX_CONCURRENT" default:"4"`

	// MaxWaitTime is how long a request waits for an import slot
	MaxWaitTime time.Duration `env:"IMPORT_MAX_WAIT_TIME" default:"30s"`

	// Timeout bounds a single import run
	Timeout time.Duration `env:"IMPORT_TIMEOUT" default:"15m"`

	// Delimiter separates fields; a single character, "tab" for \t
	Delimiter string `env:"IMPORT_DELIMITER" default:","`

	// StaffUpsertByEmail makes staff import update rows matching personal_email
	// instead of always inserting.
	StaffUpsertByEmail bool `env:"IMPORT_STAFF_UPSERT_BY_EMAIL" default:"false"`
}

// AttendanceConfig holds the shift used to derive late, overtime and
// early-leave minutes on import.
type AttendanceConfig struct {
	ShiftStart   string `env:"ATTENDANCE_SHIFT_START" default:"09:00"`
	ShiftEnd     string `env:"ATTENDANCE_SHIFT_END" default:"17:00"`
	GraceMinutes int    `env:"ATTENDANCE_GRACE_MINUTES" default:"0"`
}

// LeaveConfig holds leave accounting settings.
type LeaveConfig struct {
	// AccountingYear pins the year leave balances are computed for.
	// Zero means the current calendar year at request time.
	AccountingYear int `env:"LEAVE_ACCOUNTING_YEAR" default:"0"`
}

// StorageConfig selects where uploaded import files are kept.
type StorageConfig struct {
	// Backend is "local" or "s3"
	Backend  string `env:"STORAGE_BACKEND" default:"local"`
	LocalDir string `env:"STORAGE_LOCAL_DIR" default:"./data/imports"`

	S3Bucket    string `env:"S3_BUCKET"`
	S3Region    string `env:"S3_REGION" default:"auto"`
	S3Endpoint  string `env:"S3_ENDPOINT"`
	S3AccessKey string `env:"S3_ACCESS_KEY_ID"`
	S3SecretKey string `env:"S3_SECRET_ACCESS_KEY"`
	S3Prefix    string `env:"S3_PREFIX" default:"imports"`
}

// AuthConfig holds bearer token verification settings.
type AuthConfig struct {
	// Required rejects unauthenticated API calls. With it off every request
	// runs as an anonymous admin, which is only meant for local use.
	Required bool `env:"AUTH_REQUIRED" default:"true"`

	JWTSecret string `env:"JWT_SECRET"`
	Issuer    string `env:"JWT_ISSUER"`
}

// RateLimitConfig holds per-IP rate limiting settings.
type RateLimitConfig struct {
	Enabled           bool `env:"RATE_LIMIT_ENABLED" default:"true"`
	RequestsPerMinute int  `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"120"`

	// ImportLimit is requests per minute for import endpoints
	ImportLimit int `env:"RATE_LIMIT_IMPORT" default:"10"`
}

// CORSConfig holds cross-origin settings.
type CORSConfig struct {
	AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
}

// RetentionConfig holds import job cleanup settings.
type RetentionConfig struct {
	// JobRetentionDays is how long completed jobs are kept (default: 90)
	JobRetentionDays int `env:"JOB_RETENTION_DAYS" default:"90"`

	// Schedule is a cron spec for the cleanup run
	Schedule string `env:"JOB_RETENTION_SCHEDULE" default:"@daily"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is text or json
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

// DelimiterRune returns the configured field delimiter.
func (c *ImportConfig) DelimiterRune() rune {
	switch c.Delimiter {
	case "tab", `\t`:
		return '\t'
	case "":
		return ','
	}
	return []rune(c.Delimiter)[0]
}

// Shift returns the configured working window. Values are checked by
// Validate, so parse failures here leave the bound invalid.
func (c *AttendanceConfig) Shift() hr.Shift {
	start, _ := hr.ParseClockTime(c.ShiftStart)
	end, _ := hr.ParseClockTime(c.ShiftEnd)
	return hr.Shift{Start: start, End: end, GraceMinutes: c.GraceMinutes}
}
