// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes server timeouts,
// logging, rate limiting, the job scheduler, the artifact cache and its
// optional backing store, and observability.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// Artifact store backends.
const (
	StoreNone   = "none"
	StoreSQLite = "sqlite"
	StoreRedis  = "redis"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "gridfinity-server")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// JobsConfig sizes the asynchronous job scheduler.
type JobsConfig struct {
	Workers int           // GRID_WORKER_POOL_SIZE
	Timeout time.Duration // GRID_JOB_TIMEOUT, per generation
	MaxAge  time.Duration // GRID_JOB_MAX_AGE, 0 keeps terminal jobs forever
	// MaxCount caps retained jobs; the oldest terminal jobs go first.
	MaxCount int // GRID_JOB_MAX_COUNT, 0 = unbounded
}

// AdmissionConfig bounds job submissions per client.
type AdmissionConfig struct {
	Enabled    bool // GRID_RATE_LIMIT_ENABLED
	PerMinute  int  // GRID_RATE_LIMIT_PER_IP_PER_MINUTE
	Concurrent int  // GRID_RATE_LIMIT_CONCURRENT_JOBS
	Daily      int  // GRID_RATE_LIMIT_DAILY_TOTAL
}

// CacheConfig selects the artifact cache size and backing store.
type CacheConfig struct {
	MaxEntries int           // GRID_CACHE_MAX_ENTRIES, 0 = unbounded
	Store      string        // GRID_ARTIFACT_STORE: none|sqlite|redis
	DBPath     string        // GRID_ARTIFACT_DB_PATH
	RedisAddr  string        // GRID_REDIS_ADDR
	RedisTTL   time.Duration // GRID_REDIS_TTL, 0 = no expiry
	// GenerateTimeout bounds one shared generation regardless of which
	// callers are waiting on it.
	GenerateTimeout time.Duration // GRID_GENERATE_TIMEOUT, 0 = unbounded
}

// GeneratorConfig configures the geometry backend.
type GeneratorConfig struct {
	// Command is the CAD backend command line. Empty selects the built-in
	// preview generator.
	Command     string        // GRID_GENERATOR_COMMAND
	SyncTimeout time.Duration // GRID_SYNC_TIMEOUT, bounds synchronous downloads
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // must outlast GRID_SYNC_TIMEOUT
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	MaxBodyBytes      int64         // request body cap
	GinMode           string        // debug|release|test

	// Logging / Docs
	LogLevel       string // debug|info|warn|error|fatal|panic
	LogPretty      bool   // pretty console logs in dev
	SwaggerEnabled bool   // enable Swagger UI route
	APIBasePath    string // base path for API routes
	GzipEnabled    bool   // compress STL and JSON responses

	// Rate limiting (edge token bucket, all routes)
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Idempotency
	IdempotencyTTL time.Duration // how long a given Idempotency-Key is honored

	// Domain
	Jobs      JobsConfig
	Admission AdmissionConfig
	Cache     CacheConfig
	Generator GeneratorConfig

	// Observability
	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		// Server
		Port:              getenv("PORT", "8000"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 150*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		MaxBodyBytes:      int64(getint("MAX_BODY_BYTES", 1<<20)),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging / Docs
		LogLevel:       strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:      getbool("LOG_PRETTY", false),
		SwaggerEnabled: getbool("SWAGGER_ENABLED", false),
		APIBasePath:    normalizeBasePath(getenv("API_BASE_PATH", "/api")),
		GzipEnabled:    getbool("GZIP_ENABLED", true),

		// Rate limiting
		RateRPS:   getfloat("RATE_RPS", 5.0),
		RateBurst: getint("RATE_BURST", 10),

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		// Idempotency
		IdempotencyTTL: getdur("IDEMPOTENCY_TTL", 24*time.Hour),

		// Domain
		Jobs: JobsConfig{
			Workers:  getint("GRID_WORKER_POOL_SIZE", 2),
			Timeout:  getdur("GRID_JOB_TIMEOUT", 5*time.Minute),
			MaxAge:   getdur("GRID_JOB_MAX_AGE", time.Hour),
			MaxCount: getint("GRID_JOB_MAX_COUNT", 200),
		},
		Admission: AdmissionConfig{
			Enabled:    getbool("GRID_RATE_LIMIT_ENABLED", true),
			PerMinute:  getint("GRID_RATE_LIMIT_PER_IP_PER_MINUTE", 10),
			Concurrent: getint("GRID_RATE_LIMIT_CONCURRENT_JOBS", 4),
			Daily:      getint("GRID_RATE_LIMIT_DAILY_TOTAL", 500),
		},
		Cache: CacheConfig{
			MaxEntries: getint("GRID_CACHE_MAX_ENTRIES", 0),
			Store:      strings.ToLower(getenv("GRID_ARTIFACT_STORE", StoreNone)),
			DBPath:     getenv("GRID_ARTIFACT_DB_PATH", "artifacts.db"),
			RedisAddr:  getenv("GRID_REDIS_ADDR", "localhost:6379"),
			RedisTTL:   getdur("GRID_REDIS_TTL", 7*24*time.Hour),

			GenerateTimeout: getdur("GRID_GENERATE_TIMEOUT", 5*time.Minute),
		},
		Generator: GeneratorConfig{
			Command:     strings.TrimSpace(getenv("GRID_GENERATOR_COMMAND", "")),
			SyncTimeout: getdur("GRID_SYNC_TIMEOUT", 2*time.Minute),
		},

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "gridfinity-server"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	if cfg.MaxBodyBytes <= 0 {
		return cfg, errors.New("MAX_BODY_BYTES must be > 0")
	}
	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return cfg, errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.IdempotencyTTL <= 0 {
		return cfg, errors.New("IDEMPOTENCY_TTL must be > 0")
	}
	if cfg.Jobs.Workers < 1 {
		return cfg, errors.New("GRID_WORKER_POOL_SIZE must be >= 1")
	}
	if cfg.Jobs.Timeout < 0 || cfg.Jobs.MaxAge < 0 {
		return cfg, errors.New("GRID_JOB_TIMEOUT and GRID_JOB_MAX_AGE must be >= 0")
	}
	if cfg.Jobs.MaxCount < 0 {
		return cfg, errors.New("GRID_JOB_MAX_COUNT must be >= 0")
	}
	if cfg.Admission.PerMinute < 0 || cfg.Admission.Concurrent < 0 || cfg.Admission.Daily < 0 {
		return cfg, errors.New("GRID_RATE_LIMIT_* values must be >= 0")
	}
	if cfg.Cache.MaxEntries < 0 {
		return cfg, errors.New("GRID_CACHE_MAX_ENTRIES must be >= 0")
	}
	switch cfg.Cache.Store {
	case StoreNone:
	case StoreSQLite:
		if strings.TrimSpace(cfg.Cache.DBPath) == "" {
			return cfg, errors.New("GRID_ARTIFACT_DB_PATH must not be empty")
		}
	case StoreRedis:
		if strings.TrimSpace(cfg.Cache.RedisAddr) == "" {
			return cfg, errors.New("GRID_REDIS_ADDR must not be empty")
		}
	default:
		return cfg, errors.New("GRID_ARTIFACT_STORE must be one of: none, sqlite, redis")
	}
	if cfg.Cache.RedisTTL < 0 {
		return cfg, errors.New("GRID_REDIS_TTL must be >= 0")
	}
	if cfg.Cache.GenerateTimeout < 0 {
		return cfg, errors.New("GRID_GENERATE_TIMEOUT must be >= 0")
	}
	if cfg.Generator.SyncTimeout < 0 {
		return cfg, errors.New("GRID_SYNC_TIMEOUT must be >= 0")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// ---- helpers (no external deps) ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// normalizeBasePath ensures leading '/' and strips trailing '/' (except root).
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	return p
}
