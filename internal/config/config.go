package config

import (
	"fmt"
	"net/netip"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"gastos/internal/log"
)

type Config struct {
	// HTTP Server
	Port               string
	RateLimitPerMinute int
	// Comma-separated IPs or CIDRs whose X-Forwarded-For is believed
	TrustedProxies string

	// Data backend
	DataBackend  string
	SQLiteDBPath string
	SeedFile     string

	// AMQP (empty URL disables messaging)
	AMQPURL          string
	AMQPExchange     string
	AMQPChangesQueue string
	AMQPSummaryQueue string

	// Projection worker
	ProjectionSchedule      string
	ProjectionHorizonMonths int
	TimeZone                string

	// Report cache
	ReportCacheSize int
	ReportCacheTTL  time.Duration

	LogLevel string

	// Directory for worker xlsx exports (empty disables them)
	ExportDir string

	// Google Sheets export (optional)
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountFile string
	GoogleServiceAccountJSON string
}

var validBackends = []string{"memory", "sqlite"}

func Load() *Config {
	cfg := &Config{
		Port:               getEnv("PORT", "8081"),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 120),
		TrustedProxies:     getEnv("TRUSTED_PROXIES", ""),

		DataBackend:  getEnv("DATA_BACKEND", "memory"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/gastos.db"),
		SeedFile:     getEnv("SEED_FILE", ""),

		AMQPURL:          getEnv("AMQP_URL", ""),
		AMQPExchange:     getEnv("AMQP_EXCHANGE", "gastos"),
		AMQPChangesQueue: getEnv("AMQP_CHANGES_QUEUE", "expenses_changed"),
		AMQPSummaryQueue: getEnv("AMQP_SUMMARY_QUEUE", "projection_summary"),

		ProjectionSchedule:      getEnv("PROJECTION_SCHEDULE", "0 6 * * *"),
		ProjectionHorizonMonths: getEnvInt("PROJECTION_HORIZON_MONTHS", 3),
		TimeZone:                getEnv("TIMEZONE", "UTC"),

		ReportCacheSize: getEnvInt("REPORT_CACHE_SIZE", 100),
		ReportCacheTTL:  getEnvDuration("REPORT_CACHE_TTL", 5*time.Minute),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		ExportDir: getEnv("EXPORT_DIR", ""),

		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:          getEnv("GOOGLE_SHEET_NAME", "Proyeccion"),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", getEnv("GOOGLE_APPLICATION_CREDENTIALS", "")),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
	}

	return cfg
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.RateLimitPerMinute < 0 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be 0 (disabled) or positive", c.RateLimitPerMinute))
	}

	if _, err := log.ParseTrustedProxies(c.TrustedProxies); err != nil {
		errors = append(errors, err.Error())
	}

	if !slices.Contains(validBackends, c.DataBackend) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	if c.DataBackend == "sqlite" {
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else {
			dir := filepath.Dir(c.SQLiteDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
					}
				}
			}
		}
	}

	if c.SeedFile != "" {
		if _, err := os.Stat(c.SeedFile); os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("seed file does not exist: %s", c.SeedFile))
		}
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPChangesQueue == "" || c.AMQPSummaryQueue == "" {
			errors = append(errors, "AMQP queue names cannot be empty when AMQP URL is provided")
		} else if c.AMQPChangesQueue == c.AMQPSummaryQueue {
			errors = append(errors, "AMQP changes and summary queues must differ")
		}
	}

	if _, err := cron.ParseStandard(c.ProjectionSchedule); err != nil {
		errors = append(errors, fmt.Sprintf("invalid projection schedule '%s': %v", c.ProjectionSchedule, err))
	}

	if c.ProjectionHorizonMonths < 1 || c.ProjectionHorizonMonths > 24 {
		errors = append(errors, fmt.Sprintf("invalid projection horizon %d: must be between 1 and 24 months", c.ProjectionHorizonMonths))
	}

	if _, err := time.LoadLocation(c.TimeZone); err != nil {
		errors = append(errors, fmt.Sprintf("invalid time zone '%s': %v", c.TimeZone, err))
	}

	if c.ReportCacheSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid report cache size %d: must be at least 1", c.ReportCacheSize))
	}
	if c.ReportCacheTTL < time.Second {
		errors = append(errors, fmt.Sprintf("invalid report cache TTL %v: must be at least 1 second", c.ReportCacheTTL))
	}

	if c.ExportDir != "" {
		if info, err := os.Stat(c.ExportDir); os.IsNotExist(err) {
			if err := os.MkdirAll(c.ExportDir, 0755); err != nil {
				errors = append(errors, fmt.Sprintf("cannot create export directory '%s': %v", c.ExportDir, err))
			}
		} else if err == nil && !info.IsDir() {
			errors = append(errors, fmt.Sprintf("export path is not a directory: %s", c.ExportDir))
		}
	}

	if c.GoogleSpreadsheetID != "" {
		if c.GoogleSheetName == "" {
			errors = append(errors, "Google Sheet name is required when a spreadsheet ID is set")
		}
		if c.GoogleServiceAccountFile == "" && c.GoogleServiceAccountJSON == "" {
			errors = append(errors, "either GOOGLE_SERVICE_ACCOUNT_FILE or GOOGLE_SERVICE_ACCOUNT_JSON must be provided for sheets export")
		}
		if c.GoogleServiceAccountFile != "" {
			if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
			}
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// Location returns the configured time zone, or UTC when it cannot be loaded.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// TrustedProxyPrefixes parses TrustedProxies. Validate reports bad entries.
func (c *Config) TrustedProxyPrefixes() []netip.Prefix {
	prefixes, _ := log.ParseTrustedProxies(c.TrustedProxies)
	return prefixes
}

// SheetsEnabled reports whether report export to Google Sheets is configured.
func (c *Config) SheetsEnabled() bool {
	return c.GoogleSpreadsheetID != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
