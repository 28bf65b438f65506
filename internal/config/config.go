package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env         string
	ListenAddr  string
	MetricsAddr string
	DatabaseURL string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Remote API consumed by the pipeline (audits + CRM endpoints).
	APIBaseURL string

	AnalysisWorkers int
	FetchTimeout    time.Duration

	// Unified audit polling policy shared by every call site.
	AuditPollInterval    time.Duration
	AuditPollMaxAttempts int

	// Optional wappalyzer fingerprint pass appended after the rule engine.
	FingerprintEnrichment bool

	LogFile  string
	LogLevel string
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if out, err := strconv.Atoi(v); err == nil {
			return out
		}
	}
	return def
}

func getenvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if out, err := time.ParseDuration(v); err == nil {
			return out
		}
	}
	return def
}

func getenvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if out, err := strconv.ParseBool(v); err == nil {
			return out
		}
	}
	return def
}

func Load() (Config, error) {
	// Local runs keep settings in a .env file; absence is fine.
	_ = godotenv.Load()

	cfg := Config{
		Env:                   getenv("APP_ENV", "development"),
		ListenAddr:            getenv("LISTEN_ADDR", ":8080"),
		MetricsAddr:           getenv("METRICS_ADDR", ""),
		DatabaseURL:           os.Getenv("DATABASE_URL"),
		RedisAddr:             getenv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:         os.Getenv("REDIS_PASSWORD"),
		RedisDB:               getenvInt("REDIS_DB", 0),
		APIBaseURL:            os.Getenv("API_BASE_URL"),
		AnalysisWorkers:       getenvInt("ANALYSIS_WORKERS", 0),
		FetchTimeout:          getenvDuration("FETCH_TIMEOUT", 10*time.Second),
		AuditPollInterval:     getenvDuration("AUDIT_POLL_INTERVAL", 2*time.Second),
		AuditPollMaxAttempts:  getenvInt("AUDIT_POLL_MAX_ATTEMPTS", 30),
		FingerprintEnrichment: getenvBool("FINGERPRINT_ENRICHMENT", false),
		LogFile:               getenv("LOG_FILE", ""),
		LogLevel:              getenv("LOG_LEVEL", "info"),
	}
	if cfg.DatabaseURL == "" {
		// Not fatal for early local runs; warn via error value so callers can decide.
		return cfg, fmt.Errorf("DATABASE_URL not set")
	}
	if cfg.APIBaseURL == "" {
		return cfg, fmt.Errorf("API_BASE_URL not set")
	}
	return cfg, nil
}
