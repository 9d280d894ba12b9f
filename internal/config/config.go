package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

const (
	BackendSQLite = "sqlite"
	BackendXLSX   = "xlsx"
	BackendSheets = "sheets"
)

type Config struct {
	StoreBackend string `validate:"oneof=sqlite xlsx sheets"`
	DBPath       string `validate:"required"`
	XLSXPath     string `validate:"required_if=StoreBackend xlsx"`
	OutputDir    string

	SheetID   string `validate:"required_if=StoreBackend sheets"`
	SheetName string `validate:"required"`

	GoogleClientID        string
	GoogleClientSecret    string
	GoogleRedirectURI     string
	GoogleRefreshToken    string
	GoogleCredentialsFile string

	SheetsRequestsPerSecond int `validate:"min=0"`

	HTTPAddr           string `validate:"required"`
	HTTPReadTimeoutSec int    `validate:"min=1"`
	MaxBodyBytes       int64  `validate:"min=1024"`

	AnonEmailDomain string `validate:"required"`
	DisplayZone     string
	LockStore       bool
	RetentionDays   int `validate:"min=1"`

	LogLevel  string
	LogFormat string `validate:"oneof=console json"`
}

func Load() (Config, error) {
	_ = godotenv.Load()

	cwd, err := os.Getwd()
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		StoreBackend: strings.ToLower(getEnv("STORE_BACKEND", BackendSQLite)),
		DBPath:       getEnv("DB_PATH", filepath.Join(cwd, "data", "app.db")),
		XLSXPath:     getEnv("XLSX_PATH", filepath.Join(cwd, "data", "search_tracking.xlsx")),
		OutputDir:    getEnv("OUTPUT_DIR", filepath.Join(cwd, "out")),

		SheetID:   getEnv("SHEET_ID", ""),
		SheetName: getEnv("SHEET_NAME", "SearchTracking"),

		GoogleClientID:        getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret:    getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleRedirectURI:     getEnv("GOOGLE_REDIRECT_URI", "https://developers.google.com/oauthplayground"),
		GoogleRefreshToken:    getEnv("GOOGLE_REFRESH_TOKEN", ""),
		GoogleCredentialsFile: getEnv("GOOGLE_CREDENTIALS_FILE", ""),

		SheetsRequestsPerSecond: getEnvInt("SHEETS_RPS", 5),

		HTTPAddr:           getEnv("HTTP_ADDR", ":8080"),
		HTTPReadTimeoutSec: getEnvInt("HTTP_READ_TIMEOUT_SEC", 30),
		MaxBodyBytes:       int64(getEnvInt("HTTP_MAX_BODY_BYTES", 10<<20)),

		AnonEmailDomain: getEnv("ANON_EMAIL_DOMAIN", "example.com"),
		DisplayZone:     getEnv("DISPLAY_ZONE", "America/Lima"),
		LockStore:       getEnvBool("LOCK_STORE", true),
		RetentionDays:   getEnvInt("RETENTION_DAYS", 90),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: strings.ToLower(getEnv("LOG_FORMAT", "console")),
	}

	return cfg, nil
}

var validate = validator.New()

func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func (c Config) Require(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("missing required env var: %s", name)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := strings.ToLower(strings.TrimSpace(getEnv(key, "")))
	if value == "" {
		return fallback
	}
	if value == "1" || value == "true" || value == "yes" || value == "on" {
		return true
	}
	if value == "0" || value == "false" || value == "no" || value == "off" {
		return false
	}
	return fallback
}
