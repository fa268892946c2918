// Package config reads process settings from the environment, loading a
// .env file first when one exists.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Addr    string
	TLSCert string
	TLSKey  string

	// TokenKey signs session tokens. Empty disables authentication.
	TokenKey string
	// OperatorLogin and OperatorHash are the operator's login name and the
	// bcrypt hash of their password.
	OperatorLogin string
	OperatorHash  string

	DatabaseURL string

	RateLimit float64 // requests per second per client
	RateBurst int

	LogLevel  string
	LogFormat string

	BatchWorkers int
	TablesFile   string
	ReportAuthor string
}

// Load reads .env (if present) and the environment. Variables already set
// in the environment win over the file.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}

	c := Config{
		Addr:          GetEnv("KERF_ADDR", ":8080"),
		TLSCert:       GetEnv("KERF_TLS_CERT", ""),
		TLSKey:        GetEnv("KERF_TLS_KEY", ""),
		TokenKey:      GetEnv("TOKEN_KEY", ""),
		OperatorLogin: GetEnv("KERF_OPERATOR_LOGIN", "operator"),
		OperatorHash:  GetEnv("KERF_OPERATOR_HASH", ""),
		DatabaseURL:   GetEnv("DATABASE_URL", ""),
		RateLimit:     GetEnvFloat("KERF_RATE_LIMIT", 5),
		RateBurst:     GetEnvInt("KERF_RATE_BURST", 10),
		LogLevel:      GetEnv("KERF_LOG_LEVEL", "info"),
		LogFormat:     GetEnv("KERF_LOG_FORMAT", "json"),
		BatchWorkers:  GetEnvInt("KERF_BATCH_WORKERS", 4),
		TablesFile:    GetEnv("KERF_TABLES_FILE", ""),
		ReportAuthor:  GetEnv("KERF_REPORT_AUTHOR", "Kerf"),
	}
	return c, c.Validate()
}

// Validate checks combinations that cannot work.
func (c Config) Validate() error {
	if (c.TLSCert == "") != (c.TLSKey == "") {
		return errors.New("KERF_TLS_CERT and KERF_TLS_KEY must be set together")
	}
	if c.OperatorHash != "" && c.TokenKey == "" {
		return errors.New("KERF_OPERATOR_HASH requires TOKEN_KEY")
	}
	if c.OperatorHash != "" && strings.TrimSpace(c.OperatorLogin) == "" {
		return errors.New("KERF_OPERATOR_LOGIN must not be empty")
	}
	if c.RateLimit <= 0 || c.RateBurst < 1 {
		return fmt.Errorf("invalid rate limit %g/s burst %d", c.RateLimit, c.RateBurst)
	}
	if c.BatchWorkers < 1 {
		return fmt.Errorf("KERF_BATCH_WORKERS must be at least 1, got %d", c.BatchWorkers)
	}
	switch strings.ToLower(c.LogFormat) {
	case "json", "text":
	default:
		return fmt.Errorf("unknown KERF_LOG_FORMAT %q", c.LogFormat)
	}
	return nil
}

// AuthEnabled reports whether protected routes require a session token.
func (c Config) AuthEnabled() bool { return c.TokenKey != "" }

func GetEnv(key, defaultVal string) string {
	if val, exists := os.LookupEnv(key); exists {
		return val
	}
	return defaultVal
}

func GetEnvInt(key string, defaultVal int) int {
	if val, exists := os.LookupEnv(key); exists {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func GetEnvFloat(key string, defaultVal float64) float64 {
	if val, exists := os.LookupEnv(key); exists {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}
