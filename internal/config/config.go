// Package config provides centralized configuration management for the notebook server.
// It loads configuration from CLI flags and environment variables (optionally
// seeded from a .env file), validates it, and provides sensible defaults.
//
// CLI flags select development substitutes (--no-upload, --memory, --test).
// Environment variables provide secrets and service configuration.
package config

import (
	"errors"
	"flag"
	"fmt"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kuitang/notebook/internal/db"
	"github.com/kuitang/notebook/internal/obs"
	"github.com/kuitang/notebook/internal/pgdb"
	"github.com/kuitang/notebook/internal/ratelimit"
	"github.com/kuitang/notebook/internal/upload"
)

const (
	defaultPort         = "5000"
	defaultDatabasePath = "./data/notebook.db"
	defaultS3Region     = "auto"
)

// Config holds all application configuration.
type Config struct {
	// Server settings
	ListenAddr         string
	CORSAllowedOrigins []string
	LogLevel           string
	ShutdownTimeout    time.Duration
	TrustedProxies     []string // TRUSTED_PROXIES; addresses or CIDRs whose X-Forwarded-For is honored

	// Database
	DatabaseURL  string // DATABASE_URL; a postgres:// URL selects PostgreSQL
	DatabasePath string // DATABASE_PATH; SQLite file used otherwise
	DatabaseKey  string // DATABASE_KEY; optional 64 hex characters (SQLCipher)

	// Rate limiting
	RateLimitConfig ratelimit.Config

	// Development substitutes (controlled by CLI flags, not env vars)
	NoUpload bool // If true, always use placeholder upload URLs (--no-upload)
	InMemory bool // If true, use an in-memory SQLite store (--memory)

	// Uploads
	MaxUploadBytes int64

	// Object storage (AWS_ names so any S3-compatible provider's standard env works)
	AWSEndpointS3      string // AWS_ENDPOINT_URL_S3
	AWSRegion          string // AWS_REGION
	AWSAccessKeyID     string // AWS_ACCESS_KEY_ID
	AWSSecretAccessKey string // AWS_SECRET_ACCESS_KEY
	AWSBucketName      string // BUCKET_NAME
	AWSPublicURL       string // S3_PUBLIC_URL
}

// ValidationError represents a configuration validation error with multiple issues.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("configuration validation failed:\n  - %s", strings.Join(e.Errors, "\n  - "))
}

// ParseFlags parses CLI flags and returns them. Call before LoadConfig.
// This registers and parses --no-upload, --memory, --test, and --addr flags.
func ParseFlags() (noUpload, inMemory bool, addr string) {
	var testMode bool
	flag.BoolVar(&noUpload, "no-upload", false, "Return placeholder image URLs instead of uploading")
	flag.BoolVar(&inMemory, "memory", false, "Use an in-memory SQLite database")
	flag.BoolVar(&testMode, "test", false, "Shorthand for --no-upload --memory")
	flag.StringVar(&addr, "addr", "", "Listen address (default :5000, overrides LISTEN_ADDR and PORT)")
	flag.Parse()

	if testMode {
		noUpload = true
		inMemory = true
	}

	return noUpload, inMemory, addr
}

// LoadDotEnv loads variables from a .env file in the working directory when
// one exists. Variables already set in the environment win.
func LoadDotEnv() {
	_ = godotenv.Load()
}

// LoadConfig loads configuration from environment variables and CLI flag values.
// The addr flag overrides LISTEN_ADDR and PORT if non-empty.
func LoadConfig(noUpload, inMemory bool, addr string) (*Config, error) {
	cfg := &Config{}

	// CLI flag values
	cfg.NoUpload = noUpload
	cfg.InMemory = inMemory

	// Server settings
	cfg.ListenAddr = getEnvOrDefault("LISTEN_ADDR", ":"+getEnvOrDefault("PORT", defaultPort))
	if addr != "" {
		cfg.ListenAddr = addr
	}
	cfg.CORSAllowedOrigins = splitList(getEnvOrDefault("CORS_ALLOWED_ORIGINS", "*"))
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")
	cfg.ShutdownTimeout = parseDurationOrDefault("SHUTDOWN_TIMEOUT", 10*time.Second)
	cfg.TrustedProxies = splitList(getEnvOrDefault("TRUSTED_PROXIES", ""))

	// Database
	cfg.DatabaseURL = getEnvOrDefault("DATABASE_URL", "")
	cfg.DatabasePath = getEnvOrDefault("DATABASE_PATH", defaultDatabasePath)
	cfg.DatabaseKey = getEnvOrDefault("DATABASE_KEY", "")

	// Rate limiting
	cfg.RateLimitConfig = ratelimit.Config{
		RPS:             parseFloat64OrDefault("RATE_LIMIT_RPS", ratelimit.DefaultConfig.RPS),
		Burst:           parseIntOrDefault("RATE_LIMIT_BURST", ratelimit.DefaultConfig.Burst),
		CleanupInterval: parseDurationOrDefault("RATE_LIMIT_CLEANUP_INTERVAL", ratelimit.DefaultConfig.CleanupInterval),
	}

	// Uploads
	cfg.MaxUploadBytes = int64(parseIntOrDefault("MAX_UPLOAD_BYTES", int(upload.DefaultMaxBytes)))

	// Object storage
	cfg.AWSEndpointS3 = getEnvOrDefault("AWS_ENDPOINT_URL_S3", "")
	cfg.AWSRegion = getEnvOrDefault("AWS_REGION", defaultS3Region)
	cfg.AWSAccessKeyID = getEnvOrDefault("AWS_ACCESS_KEY_ID", "")
	cfg.AWSSecretAccessKey = getEnvOrDefault("AWS_SECRET_ACCESS_KEY", "")
	cfg.AWSBucketName = getEnvOrDefault("BUCKET_NAME", "")
	cfg.AWSPublicURL = getEnvOrDefault("S3_PUBLIC_URL", "")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that the configuration is usable.
// Missing object storage credentials are not an error: uploads fall back to
// placeholder URLs.
func (c *Config) Validate() error {
	var errs []string

	if c.ListenAddr == "" {
		errs = append(errs, "LISTEN_ADDR must not be empty")
	}
	if _, err := obs.ParseTrustedProxies(c.TrustedProxies); err != nil {
		errs = append(errs, fmt.Sprintf("TRUSTED_PROXIES is invalid: %v", err))
	}

	// Database
	if c.DatabaseURL != "" && !pgdb.IsPostgresURL(c.DatabaseURL) {
		errs = append(errs, "DATABASE_URL must be a postgres:// or postgresql:// URL")
	}
	if c.DatabaseURL == "" && !c.InMemory && c.DatabasePath == "" {
		errs = append(errs, "DATABASE_PATH is required (set env var or use --memory)")
	}
	if _, err := db.DecodeKey(c.DatabaseKey); err != nil {
		errs = append(errs, fmt.Sprintf("DATABASE_KEY is invalid: %v (generate with: openssl rand -hex 32)", err))
	}

	// Rate limiting
	if c.RateLimitConfig.RPS <= 0 {
		errs = append(errs, "RATE_LIMIT_RPS must be positive")
	}
	if c.RateLimitConfig.Burst <= 0 {
		errs = append(errs, "RATE_LIMIT_BURST must be positive")
	}
	if c.RateLimitConfig.CleanupInterval <= 0 {
		errs = append(errs, "RATE_LIMIT_CLEANUP_INTERVAL must be positive")
	}

	// Uploads
	if c.MaxUploadBytes <= 0 {
		errs = append(errs, "MAX_UPLOAD_BYTES must be positive")
	}

	if len(errs) > 0 {
		return &ValidationError{Errors: errs}
	}

	return nil
}

// UsePostgres reports whether the PostgreSQL store is selected.
func (c *Config) UsePostgres() bool {
	return !c.InMemory && c.DatabaseURL != ""
}

// TrustedProxyPrefixes returns the parsed TRUSTED_PROXIES ranges. Entries
// that do not parse are skipped; Validate reports them.
func (c *Config) TrustedProxyPrefixes() []netip.Prefix {
	var prefixes []netip.Prefix
	for _, v := range c.TrustedProxies {
		if p, err := obs.ParseTrustedProxies([]string{v}); err == nil {
			prefixes = append(prefixes, p...)
		}
	}
	return prefixes
}

// UploadConfig returns the upload gateway configuration.
func (c *Config) UploadConfig() upload.Config {
	return upload.Config{
		BucketName:       c.AWSBucketName,
		AccessKeyID:      c.AWSAccessKeyID,
		SecretAccessKey:  c.AWSSecretAccessKey,
		Endpoint:         c.AWSEndpointS3,
		Region:           c.AWSRegion,
		PublicURL:        c.AWSPublicURL,
		ForcePlaceholder: c.NoUpload,
		MaxBytes:         c.MaxUploadBytes,
	}
}

// PrintStartupSummary prints a human-readable summary of the configuration to stderr.
func (c *Config) PrintStartupSummary() {
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "notebook server starting...")

	// Database
	switch {
	case c.InMemory:
		fmt.Fprintln(os.Stderr, "  Database: SQLite in memory (--memory)")
	case c.UsePostgres():
		fmt.Fprintln(os.Stderr, "  Database: PostgreSQL (DATABASE_URL)")
	case c.DatabaseKey != "":
		fmt.Fprintf(os.Stderr, "  Database: SQLCipher (%s)\n", c.DatabasePath)
	default:
		fmt.Fprintf(os.Stderr, "  Database: SQLite (%s)\n", c.DatabasePath)
	}

	// Uploads
	uploadCfg := c.UploadConfig()
	switch {
	case c.NoUpload:
		fmt.Fprintln(os.Stderr, "  Uploads:  Placeholder URLs (--no-upload)")
	case !uploadCfg.Configured():
		fmt.Fprintln(os.Stderr, "  Uploads:  Placeholder URLs (object storage not configured)")
	case c.AWSEndpointS3 != "":
		fmt.Fprintf(os.Stderr, "  Uploads:  S3 bucket %s (endpoint: %s)\n", c.AWSBucketName, c.AWSEndpointS3)
	default:
		fmt.Fprintf(os.Stderr, "  Uploads:  S3 bucket %s\n", c.AWSBucketName)
	}

	fmt.Fprintf(os.Stderr, "  Limits:   %.0f rps, burst %d, max upload %d bytes\n",
		c.RateLimitConfig.RPS, c.RateLimitConfig.Burst, c.MaxUploadBytes)
	fmt.Fprintf(os.Stderr, "  CORS:     %s\n", strings.Join(c.CORSAllowedOrigins, ", "))
	if len(c.TrustedProxies) > 0 {
		fmt.Fprintf(os.Stderr, "  Proxies:  %s\n", strings.Join(c.TrustedProxies, ", "))
	} else {
		fmt.Fprintln(os.Stderr, "  Proxies:  none (clients keyed by remote address)")
	}
	fmt.Fprintf(os.Stderr, "  Listen:   %s\n", c.ListenAddr)
	fmt.Fprintln(os.Stderr, "")
}

// Helper functions for parsing environment variables

func getEnvOrDefault(key, defaultValue string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	return value
}

func parseIntOrDefault(key string, defaultValue int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func parseFloat64OrDefault(key string, defaultValue float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func parseDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// MustLoadConfig loads configuration and panics if validation fails.
// Use this in main() when you want the application to fail fast on bad config.
func MustLoadConfig(noUpload, inMemory bool, addr string) *Config {
	cfg, err := LoadConfig(noUpload, inMemory, addr)
	if err != nil {
		var validationErr *ValidationError
		if errors.As(err, &validationErr) {
			panic(fmt.Sprintf("Configuration validation failed:\n  - %s", strings.Join(validationErr.Errors, "\n  - ")))
		}
		panic(fmt.Sprintf("Failed to load configuration: %v", err))
	}
	return cfg
}
