// Package config loads application settings from environment variables,
// applies defaults, and validates the result. Settings cover the HTTP server,
// logging, storage, the retrieval pipeline, bulk import pacing, rate limiting,
// and observability.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// StorageConfig selects the persistence collaborator.
type StorageConfig struct {
	Driver        string // sqlite|memory
	DBPath        string // SQLite file; also holds chats when Driver is memory
	KnowledgePath string // optional .json/.yaml/.toml dictionary pack
}

// RetrievalConfig tunes chunking, signatures and scoring.
type RetrievalConfig struct {
	ChunkSize       int
	ShingleSize     int
	SignatureSize   int
	DefaultTopK     int
	ShortlistFactor int
	ApproxCeiling   int64
	ApproxThreshold float64
	ApproxTopN      int
	ApproxScore     float64
}

// ImportConfig paces bulk imports.
type ImportConfig struct {
	BatchSize  int
	BatchDelay time.Duration
	MaxBytes   int64
}

// SecurityConfig controls response hardening headers.
type SecurityConfig struct {
	HSTS       bool          // SECURITY_HSTS; only sent on HTTPS requests
	HSTSMaxAge time.Duration // SECURITY_HSTS_MAX_AGE
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 20s
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test

	// Logging / Docs
	LogLevel       string // debug|info|warn|error|fatal|panic
	LogPretty      bool   // pretty console logs in dev
	SwaggerEnabled bool   // enable Swagger UI route
	APIBasePath    string // base path for API routes

	Storage   StorageConfig
	Retrieval RetrievalConfig
	Import    ImportConfig

	// Rate limiting
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	CORS     CORSConfig
	Security SecurityConfig

	// Observability
	OTEL OTELConfig
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		// Server
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 60*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging / Docs
		LogLevel:       strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:      getbool("LOG_PRETTY", false),
		SwaggerEnabled: getbool("SWAGGER_ENABLED", false),
		APIBasePath:    normalizeBasePath(getenv("API_BASE_PATH", "/api/v1")),

		Storage: StorageConfig{
			Driver:        strings.ToLower(getenv("STORE_DRIVER", "sqlite")),
			DBPath:        getenv("DB_PATH", "kb.db"),
			KnowledgePath: getenv("KNOWLEDGE_PATH", ""),
		},
		Retrieval: RetrievalConfig{
			ChunkSize:       getint("CHUNK_SIZE", 200),
			ShingleSize:     getint("SHINGLE_SIZE", 5),
			SignatureSize:   getint("SIGNATURE_SIZE", 128),
			DefaultTopK:     getint("DEFAULT_TOP_K", 6),
			ShortlistFactor: getint("SHORTLIST_FACTOR", 8),
			ApproxCeiling:   int64(getint("APPROX_CEILING", 5000)),
			ApproxThreshold: getfloat("APPROX_THRESHOLD", 0.18),
			ApproxTopN:      getint("APPROX_TOP_N", 6),
			ApproxScore:     getfloat("APPROX_SCORE", 50),
		},
		Import: ImportConfig{
			BatchSize:  getint("IMPORT_BATCH_SIZE", 150),
			BatchDelay: getdur("IMPORT_BATCH_DELAY", 30*time.Millisecond),
			MaxBytes:   int64(getint("MAX_IMPORT_BYTES", 64<<20)),
		},

		// Rate limiting
		RateRPS:   getfloat("RATE_RPS", 5.0),
		RateBurst: getint("RATE_BURST", 10),

		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			HSTS:       getbool("SECURITY_HSTS", false),
			HSTSMaxAge: getdur("SECURITY_HSTS_MAX_AGE", 180*24*time.Hour),
		},

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "aru-kb"),
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
	if cfg.Storage.Driver == "mem" {
		cfg.Storage.Driver = "memory"
	}

	return cfg, cfg.Validate()
}

// Validate reports the first invalid setting.
func (cfg Config) Validate() error {
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return errors.New("MAX_HEADER_BYTES must be > 0")
	}

	switch cfg.Storage.Driver {
	case "sqlite", "memory":
	default:
		return errors.New("STORE_DRIVER must be one of: sqlite, memory")
	}
	if strings.TrimSpace(cfg.Storage.DBPath) == "" {
		return errors.New("DB_PATH must not be empty")
	}

	r := cfg.Retrieval
	if r.ChunkSize < 1 {
		return errors.New("CHUNK_SIZE must be >= 1")
	}
	if r.ShingleSize < 1 {
		return errors.New("SHINGLE_SIZE must be >= 1")
	}
	if r.SignatureSize < 1 {
		return errors.New("SIGNATURE_SIZE must be >= 1")
	}
	if r.DefaultTopK < 1 || r.ShortlistFactor < 1 || r.ApproxTopN < 1 {
		return errors.New("DEFAULT_TOP_K, SHORTLIST_FACTOR and APPROX_TOP_N must be >= 1")
	}
	// The retrieval service reads zero as "unset", so zero is rejected here.
	if r.ApproxCeiling < 1 {
		return errors.New("APPROX_CEILING must be >= 1")
	}
	if r.ApproxThreshold <= 0 || r.ApproxThreshold > 1 {
		return errors.New("APPROX_THRESHOLD must be in (0, 1]")
	}
	if r.ApproxScore <= 0 {
		return errors.New("APPROX_SCORE must be > 0")
	}

	if cfg.Import.BatchSize < 1 {
		return errors.New("IMPORT_BATCH_SIZE must be >= 1")
	}
	if cfg.Import.BatchDelay < 0 {
		return errors.New("IMPORT_BATCH_DELAY must be >= 0")
	}
	if cfg.Import.MaxBytes <= 0 {
		return errors.New("MAX_IMPORT_BYTES must be > 0")
	}

	if cfg.RateRPS < 0 {
		return errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return errors.New("RATE_BURST must be >= 1")
	}
	if cfg.Security.HSTS && cfg.Security.HSTSMaxAge <= 0 {
		return errors.New("SECURITY_HSTS_MAX_AGE must be positive when SECURITY_HSTS is on")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}
	return nil
}

// ---- helpers ----

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
