package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// Ledger storage backends.
const (
	BackendFile = "file"
	BackendGCS  = "gcs"
)

// Table sources for the extractor.
const (
	TableSourceLayout = "layout"
	TableSourceGemini = "gemini"
)

// AppConfig holds all configuration for the service and the CLI.
// The values are loaded from environment variables, optionally via a .env file.
type AppConfig struct {
	// Core settings
	Port     string
	LogLevel string

	// Ledger persistence
	LedgerBackend         string
	LedgerPath            string
	GCSBucket             string
	GCSLedgerObject       string
	GoogleCredentialsFile string

	// Upload history
	HistoryDBPath string

	// Upload handling
	MaxUploadSizeBytes  int64
	UploadRatePerMinute int
	ViewCacheTTL        time.Duration
	WorkerCount         int

	// Extraction
	TableSource string
	GeminiModel string

	// Tagging rules in the "+keyword=tag;keyword=tag" form, empty for defaults
	TagRules string

	// Exports
	BigQueryProject string
	BigQueryDataset string
	BigQueryTable   string
	NotionToken     string
	NotionDBID      string
}

// Load reads configuration from the environment. A .env file in the current
// or parent directory is loaded first when present.
func Load(log zerolog.Logger) *AppConfig {
	errEnv := godotenv.Load()
	if errEnv != nil {
		errEnv = godotenv.Load("../.env")
	}
	if errEnv != nil {
		if os.IsNotExist(errEnv) {
			log.Debug().Msg("No .env file found, relying on OS environment variables")
		} else {
			log.Warn().Err(errEnv).Msg("Error loading .env file, relying on OS environment variables")
		}
	} else {
		log.Debug().Msg(".env file loaded")
	}

	e := envReader{log: log}

	cfg := &AppConfig{
		Port:     e.get("PORT", "8080"),
		LogLevel: e.get("LOG_LEVEL", "info"),

		LedgerBackend:         strings.ToLower(e.get("LEDGER_BACKEND", BackendFile)),
		LedgerPath:            e.get("LEDGER_PATH", "transactions_store.json"),
		GCSBucket:             e.get("GCS_BUCKET", ""),
		GCSLedgerObject:       e.get("GCS_LEDGER_OBJECT", "ledger/transactions_store.json"),
		GoogleCredentialsFile: e.get("GOOGLE_CREDENTIALS_FILE", ""),

		HistoryDBPath: e.get("HISTORY_DB_PATH", "upload_history.db"),

		MaxUploadSizeBytes:  e.getInt64("MAX_UPLOAD_SIZE_BYTES", 10*1024*1024),
		UploadRatePerMinute: e.getInt("UPLOAD_RATE_PER_MINUTE", 30),
		ViewCacheTTL:        e.getDuration("VIEW_CACHE_TTL", 5*time.Minute),
		WorkerCount:         e.getInt("WORKER_COUNT", 1),

		TableSource: strings.ToLower(e.get("TABLE_SOURCE", TableSourceLayout)),
		GeminiModel: e.get("GEMINI_MODEL", "gemini-2.5-flash"),

		TagRules: e.get("TAG_RULES", ""),

		BigQueryProject: e.get("BIGQUERY_PROJECT", ""),
		BigQueryDataset: e.get("BIGQUERY_DATASET", "finance"),
		BigQueryTable:   e.get("BIGQUERY_TABLE", "ledger_transactions"),
		NotionToken:     e.get("NOTION_TOKEN", ""),
		NotionDBID:      e.get("NOTION_DB_ID", ""),
	}

	if cfg.LedgerBackend != BackendFile && cfg.LedgerBackend != BackendGCS {
		log.Warn().Str("backend", cfg.LedgerBackend).Msg("Unknown LEDGER_BACKEND, using file")
		cfg.LedgerBackend = BackendFile
	}
	if cfg.TableSource != TableSourceLayout && cfg.TableSource != TableSourceGemini {
		log.Warn().Str("table_source", cfg.TableSource).Msg("Unknown TABLE_SOURCE, using layout")
		cfg.TableSource = TableSourceLayout
	}
	if cfg.WorkerCount < 1 {
		cfg.WorkerCount = 1
	}

	log.Info().
		Str("port", cfg.Port).
		Str("log_level", cfg.LogLevel).
		Str("ledger_backend", cfg.LedgerBackend).
		Str("table_source", cfg.TableSource).
		Msg("Configuration loaded")

	return cfg
}

type envReader struct {
	log zerolog.Logger
}

// get retrieves an environment variable or returns a fallback value.
func (e envReader) get(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	e.log.Debug().Str("key", key).Str("default", fallback).Msg("Environment variable not set, using default")
	return fallback
}

func (e envReader) getInt(key string, fallback int) int {
	valueStr, ok := os.LookupEnv(key)
	if !ok || valueStr == "" {
		return fallback
	}
	if value, err := strconv.Atoi(strings.TrimSpace(valueStr)); err == nil {
		return value
	}
	e.log.Warn().Str("key", key).Str("value", valueStr).Int("default", fallback).Msg("Invalid integer value, using default")
	return fallback
}

func (e envReader) getInt64(key string, fallback int64) int64 {
	valueStr, ok := os.LookupEnv(key)
	if !ok || valueStr == "" {
		return fallback
	}
	if value, err := strconv.ParseInt(strings.TrimSpace(valueStr), 10, 64); err == nil {
		return value
	}
	e.log.Warn().Str("key", key).Str("value", valueStr).Int64("default", fallback).Msg("Invalid integer value, using default")
	return fallback
}

func (e envReader) getDuration(key string, fallback time.Duration) time.Duration {
	valueStr, ok := os.LookupEnv(key)
	if !ok || valueStr == "" {
		return fallback
	}
	if value, err := time.ParseDuration(strings.TrimSpace(valueStr)); err == nil {
		return value
	}
	e.log.Warn().Str("key", key).Str("value", valueStr).Dur("default", fallback).Msg("Invalid duration value, using default")
	return fallback
}
