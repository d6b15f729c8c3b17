package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

type Config struct {
	// HTTP server
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// Database
	SQLiteDBPath string

	// Manager capability, a bcrypt hash of the shared secret. Empty
	// disables the manager endpoints entirely.
	ManagerPasswordHash string

	// Google Sheets export, optional
	GoogleSpreadsheetID   string
	GoogleSheetName       string
	GoogleCredentialsJSON string
	GoogleCredentialsFile string
}

func Load() *Config {
	return &Config{
		Port:         getEnv("PORT", "8081"),
		ReadTimeout:  getEnvDuration("HTTP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout: getEnvDuration("HTTP_WRITE_TIMEOUT", 30*time.Second),
		IdleTimeout:  getEnvDuration("HTTP_IDLE_TIMEOUT", 60*time.Second),

		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/masareef.db"),

		ManagerPasswordHash: getEnv("MANAGER_PASSWORD_HASH", ""),

		GoogleSpreadsheetID:   getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:       getEnv("GOOGLE_SHEET_NAME", "Expenses"),
		GoogleCredentialsJSON: getEnv("GOOGLE_CREDENTIALS_JSON", ""),
		GoogleCredentialsFile: getEnv("GOOGLE_CREDENTIALS_FILE", ""),
	}
}

// Validate returns an error describing every invalid setting at once.
func (c *Config) Validate() error {
	var errs []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errs = append(errs, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errs = append(errs, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.SQLiteDBPath == "" {
		errs = append(errs, "SQLite database path cannot be empty")
	}

	if c.ManagerPasswordHash != "" {
		// Reject malformed hashes at startup instead of on first use.
		if _, err := bcrypt.Cost([]byte(c.ManagerPasswordHash)); err != nil {
			errs = append(errs, fmt.Sprintf("invalid manager password hash: %v", err))
		}
	}

	if c.SheetsExportEnabled() {
		if c.GoogleSheetName == "" {
			errs = append(errs, "Google sheet name is required when a spreadsheet id is set")
		}
		if c.GoogleCredentialsJSON == "" && c.GoogleCredentialsFile == "" {
			errs = append(errs, "either GOOGLE_CREDENTIALS_JSON or GOOGLE_CREDENTIALS_FILE must be provided for the sheets export")
		}
		if c.GoogleCredentialsFile != "" {
			if _, err := os.Stat(c.GoogleCredentialsFile); os.IsNotExist(err) {
				errs = append(errs, fmt.Sprintf("Google credentials file does not exist: %s", c.GoogleCredentialsFile))
			}
		}
	}

	for _, d := range []struct {
		name string
		v    time.Duration
	}{
		{"read timeout", c.ReadTimeout},
		{"write timeout", c.WriteTimeout},
		{"idle timeout", c.IdleTimeout},
	} {
		if d.v < time.Second {
			errs = append(errs, fmt.Sprintf("invalid %s %v: must be at least 1 second", d.name, d.v))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errs, "\n- "))
	}
	return nil
}

// SheetsExportEnabled reports whether a spreadsheet target is set.
func (c *Config) SheetsExportEnabled() bool {
	return c.GoogleSpreadsheetID != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
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
