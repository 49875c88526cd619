// Package config handles application configuration and environment loading.
package config

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// AuthConfig holds authentication and identity provider configuration.
type AuthConfig struct {
	// OIDC / JWKS configuration
	IssuerURL      string        // OIDC issuer URL (e.g., https://login.microsoftonline.com/{tenant}/v2.0)
	JWKSURL        string        // Override JWKS URL (if no .well-known discovery)
	JWTSecret      string        // HS256 shared secret for local/dev JWT auth
	Audience       string        // Required JWT audience claim
	AllowedIssuers []string      // Accepted issuers (defaults to [IssuerURL])
	JWKSCacheTTL   time.Duration // JWKS cache duration (default: 1h)

	// API key settings
	APIKeyEnabled bool   // Enable API key auth (default: true)
	APIKeyHeader  string // Header name for API keys (default: X-API-Key)

	// Principal mapping
	NameClaim   string   // JWT claim for principal name (default: "email")
	AdminClaims []string // principal names granted admin from JWT auth
}

// OIDCEnabled returns true when an external identity provider is configured.
func (a *AuthConfig) OIDCEnabled() bool {
	return a.IssuerURL != "" || a.JWKSURL != ""
}

// Validate checks that the auth configuration is internally consistent.
func (a *AuthConfig) Validate() error {
	if a.IssuerURL == "" && a.JWKSURL == "" && a.JWTSecret == "" {
		return fmt.Errorf("at least one of AUTH_ISSUER_URL, AUTH_JWKS_URL or JWT_SECRET must be set")
	}
	if a.IssuerURL != "" && a.Audience == "" {
		return fmt.Errorf("AUTH_AUDIENCE is required when AUTH_ISSUER_URL is set")
	}
	return nil
}

// Config holds the configuration for the HTTP API, the DuckDB engine and
// optional object-store credentials.
type Config struct {
	// S3 fields are optional — nil when not configured.
	S3KeyID    *string
	S3Secret   *string
	S3Endpoint *string
	S3Region   *string
	S3URLStyle string // "path" or "vhost" (default "path" when an endpoint is set)

	// GCS interoperability (HMAC) credentials — optional. The credentials
	// file serves the SDK client; HMAC keys serve the DuckDB secret.
	GCSKeyID           string
	GCSSecret          string
	GCSCredentialsFile string

	// Azure blob credentials — optional. A connection string wins over
	// account name + key.
	AzureAccountName      string
	AzureAccountKey       string
	AzureConnectionString string

	MetaDBPath        string // path to SQLite metadata file (control plane)
	ListenAddr        string // HTTP listen address (default ":8080")
	TLSCertFile       string // TLS certificate file path (optional)
	TLSKeyFile        string // TLS private key file path (optional)
	AllowInsecureHTTP bool   // allow non-TLS listener in production (for trusted TLS termination)
	LogLevel          string // log level: debug, info, warn, error (default "info")
	Env               string // environment: "development" (default) or "production"

	// DuckDB engine settings.
	DuckDBMemoryLimit string // e.g. "2GB" — empty leaves the DuckDB default
	DuckDBThreads     int    // 0 leaves the DuckDB default

	// Dataset registry settings.
	DatasetsDir        string // directory of declarative dataset manifests applied at boot (optional)
	RefreshConcurrency int    // bounded parallelism for file discovery/stat (default 8)

	// Rate limiting
	RateLimitRPS   float64 // sustained requests per second (default 100)
	RateLimitBurst int     // burst capacity (default 200)

	// CORS
	CORSAllowedOrigins []string // allowed origins for CORS (default: ["*"])

	// Auth holds identity provider and authentication configuration.
	Auth AuthConfig

	// Optional surfaces.
	UIEnabled        bool // serve the read-only HTML pages (default true)
	SchedulerEnabled bool // run cron-scheduled dataset refreshes (default true)

	// Warnings collects non-fatal warnings generated during config loading.
	// These are logged by the caller after the logger is initialised.
	Warnings []string
}

// SlogLevel maps the LogLevel string to an slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// IsProduction returns true when the server is running in production mode.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// HasS3Config returns true if all required S3 fields are set.
func (c *Config) HasS3Config() bool {
	return c.S3KeyID != nil && c.S3Secret != nil && c.S3Region != nil
}

// HasGCSConfig returns true when GCS HMAC credentials are set.
func (c *Config) HasGCSConfig() bool {
	return c.GCSKeyID != "" && c.GCSSecret != ""
}

// HasAzureConfig returns true when any Azure credential is set.
func (c *Config) HasAzureConfig() bool {
	return c.AzureConnectionString != "" || (c.AzureAccountName != "" && c.AzureAccountKey != "")
}

// LoadFromEnv loads configuration from environment variables.
// Object-store variables are optional — the app can start without them.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		MetaDBPath:            os.Getenv("META_DB_PATH"),
		ListenAddr:            os.Getenv("LISTEN_ADDR"),
		TLSCertFile:           os.Getenv("TLS_CERT_FILE"),
		TLSKeyFile:            os.Getenv("TLS_KEY_FILE"),
		LogLevel:              os.Getenv("LOG_LEVEL"),
		Env:                   os.Getenv("ENV"),
		DuckDBMemoryLimit:     os.Getenv("DUCKDB_MEMORY_LIMIT"),
		DatasetsDir:           os.Getenv("DATASETS_DIR"),
		S3URLStyle:            os.Getenv("S3_URL_STYLE"),
		GCSKeyID:              os.Getenv("GCS_KEY_ID"),
		GCSSecret:             os.Getenv("GCS_SECRET"),
		GCSCredentialsFile:    os.Getenv("GCS_CREDENTIALS_FILE"),
		AzureAccountName:      os.Getenv("AZURE_ACCOUNT_NAME"),
		AzureAccountKey:       os.Getenv("AZURE_ACCOUNT_KEY"),
		AzureConnectionString: os.Getenv("AZURE_CONNECTION_STRING"),
		UIEnabled:             parseBoolEnvDefault("UI_ENABLED", true),
		SchedulerEnabled:      parseBoolEnvDefault("SCHEDULER_ENABLED", true),
	}

	if v := os.Getenv("DUCKDB_THREADS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.DuckDBThreads = n
		}
	}
	if v := os.Getenv("REFRESH_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RefreshConcurrency = n
		}
	}

	// Rate limiting
	if v := os.Getenv("RATE_LIMIT_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.RateLimitRPS = f
		}
	}
	if v := os.Getenv("RATE_LIMIT_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RateLimitBurst = n
		}
	}

	// S3 fields are optional — only set if present
	if v := os.Getenv("S3_KEY_ID"); v != "" {
		cfg.S3KeyID = &v
	}
	if v := os.Getenv("S3_SECRET"); v != "" {
		cfg.S3Secret = &v
	}
	if v := os.Getenv("S3_ENDPOINT"); v != "" {
		cfg.S3Endpoint = &v
	}
	if v := os.Getenv("S3_REGION"); v != "" {
		cfg.S3Region = &v
	}

	// CORS
	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		origins := strings.Split(v, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
		cfg.CORSAllowedOrigins = compactNonEmpty(origins)
	}
	if strings.EqualFold(os.Getenv("ALLOW_INSECURE_HTTP"), "true") {
		cfg.AllowInsecureHTTP = true
	}

	// Auth config
	cfg.Auth = AuthConfig{
		IssuerURL:     os.Getenv("AUTH_ISSUER_URL"),
		JWKSURL:       os.Getenv("AUTH_JWKS_URL"),
		JWTSecret:     os.Getenv("JWT_SECRET"),
		Audience:      os.Getenv("AUTH_AUDIENCE"),
		APIKeyEnabled: true,
		APIKeyHeader:  os.Getenv("AUTH_API_KEY_HEADER"),
		NameClaim:     os.Getenv("AUTH_NAME_CLAIM"),
	}

	if v := os.Getenv("AUTH_ALLOWED_ISSUERS"); v != "" {
		cfg.Auth.AllowedIssuers = strings.Split(v, ",")
	}
	if v := os.Getenv("AUTH_ADMIN_CLAIMS"); v != "" {
		admins := strings.Split(v, ",")
		for i := range admins {
			admins[i] = strings.TrimSpace(admins[i])
		}
		cfg.Auth.AdminClaims = compactNonEmpty(admins)
	}
	if v := os.Getenv("AUTH_JWKS_CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Auth.JWKSCacheTTL = d
		}
	}
	if os.Getenv("AUTH_API_KEY_ENABLED") == "false" {
		cfg.Auth.APIKeyEnabled = false
	}

	// Auth config defaults
	if cfg.Auth.JWKSCacheTTL == 0 {
		cfg.Auth.JWKSCacheTTL = time.Hour
	}
	if cfg.Auth.APIKeyHeader == "" {
		cfg.Auth.APIKeyHeader = "X-API-Key"
	}
	if cfg.Auth.NameClaim == "" {
		cfg.Auth.NameClaim = "email"
	}

	// Defaults
	if cfg.MetaDBPath == "" {
		cfg.MetaDBPath = "quarry_meta.sqlite"
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
	if (cfg.TLSCertFile == "") != (cfg.TLSKeyFile == "") {
		return nil, fmt.Errorf("both TLS_CERT_FILE and TLS_KEY_FILE must be set together")
	}
	if cfg.S3Endpoint != nil && cfg.S3URLStyle == "" {
		cfg.S3URLStyle = "path"
	}
	if !cfg.Auth.OIDCEnabled() && cfg.Auth.JWTSecret == "" {
		cfg.Warnings = append(cfg.Warnings, "no JWT verifier configured — set AUTH_ISSUER_URL, AUTH_JWKS_URL or JWT_SECRET")
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.RefreshConcurrency <= 0 {
		cfg.RefreshConcurrency = 8
	}
	if cfg.RateLimitRPS == 0 {
		cfg.RateLimitRPS = 100
	}
	if cfg.RateLimitBurst == 0 {
		cfg.RateLimitBurst = 200
	}
	if len(cfg.CORSAllowedOrigins) == 0 {
		cfg.CORSAllowedOrigins = []string{"*"}
	}

	// Production mode: insecure defaults are fatal errors.
	if cfg.IsProduction() {
		if !cfg.Auth.OIDCEnabled() {
			return nil, fmt.Errorf("OIDC must be configured in production (set AUTH_ISSUER_URL or AUTH_JWKS_URL)")
		}
		if cfg.Auth.JWTSecret != "" {
			return nil, fmt.Errorf("JWT_SECRET (HS256 dev tokens) is not allowed in production (ENV=production)")
		}
		if len(cfg.CORSAllowedOrigins) == 1 && cfg.CORSAllowedOrigins[0] == "*" {
			return nil, fmt.Errorf("CORS wildcard (*) is not allowed in production (ENV=production)")
		}
		if cfg.TLSCertFile == "" && !cfg.AllowInsecureHTTP {
			return nil, fmt.Errorf("TLS_CERT_FILE/TLS_KEY_FILE must be set in production unless ALLOW_INSECURE_HTTP=true")
		}
	}

	return cfg, nil
}

func parseBoolEnvDefault(key string, defaultVal bool) bool {
	v := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	if v == "" {
		return defaultVal
	}
	if v == "0" || v == "false" || v == "no" || v == "off" {
		return false
	}
	if v == "1" || v == "true" || v == "yes" || v == "on" {
		return true
	}
	return defaultVal
}

func compactNonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

// LoadDotEnv reads a .env file and sets any variables not already in the environment.
// Lines must be in KEY=VALUE format. Comments (#) and blank lines are skipped.
func LoadDotEnv(path string) error {
	f, err := os.Open(path) //nolint:gosec // path is caller-controlled
	if err != nil {
		if os.IsNotExist(err) {
			return nil // .env not found is not an error
		}
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		value = stripQuotes(value)
		// Only set if not already in the environment (env vars take precedence)
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("setenv %s: %w", key, err)
			}
		}
	}
	return scanner.Err()
}

// stripQuotes removes surrounding double or single quotes from a value.
// Only strips if both the first and last characters are matching quotes.
func stripQuotes(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
