// Package config loads runtime settings from the environment and an optional
// .env file.
package config

import (
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// DevJWTSecret is the signing key used when JWT_SECRET is unset. It is
// refused in production.
const DevJWTSecret = "fallback-secret-key-for-dev-only"

// Supported database drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config holds application configuration
type Config struct {
	Env      string
	LogLevel string

	// Server
	Port string

	// Database
	DBDriver   string
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string
	SQLitePath string

	// JWT
	JWTSecret       string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	// Global categories inserted at startup when missing.
	DefaultCategories []string

	// Origins allowed by the CORS middleware; "*" allows any.
	CORSAllowedOrigins []string
}

var defaults = map[string]any{
	"ENV":                  "development",
	"LOG_LEVEL":            "",
	"PORT":                 "8080",
	"DB_DRIVER":            DriverPostgres,
	"DB_HOST":              "localhost",
	"DB_PORT":              "5432",
	"DB_USER":              "pocketbook",
	"DB_PASSWORD":          "pocketbook",
	"DB_NAME":              "pocketbook",
	"DB_SSLMODE":           "disable",
	"SQLITE_PATH":          "pocketbook.db",
	"JWT_SECRET":           DevJWTSecret,
	"ACCESS_TOKEN_TTL":     "15m",
	"REFRESH_TOKEN_TTL":    "168h",
	"DEFAULT_CATEGORIES":   "Food,Transport,Rent,Utilities,Health,Entertainment,Salary,Other",
	"CORS_ALLOWED_ORIGINS": "*",
}

// Load reads configuration from environment variables, after loading a .env
// file from the working directory if one exists.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found")
	}
	return fromViper(newViper())
}

func newViper() *viper.Viper {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()
	return v
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Env:        v.GetString("ENV"),
		LogLevel:   v.GetString("LOG_LEVEL"),
		Port:       v.GetString("PORT"),
		DBDriver:   strings.ToLower(v.GetString("DB_DRIVER")),
		DBHost:     v.GetString("DB_HOST"),
		DBPort:     v.GetString("DB_PORT"),
		DBUser:     v.GetString("DB_USER"),
		DBPassword: v.GetString("DB_PASSWORD"),
		DBName:     v.GetString("DB_NAME"),
		DBSSLMode:  v.GetString("DB_SSLMODE"),
		SQLitePath: v.GetString("SQLITE_PATH"),
		JWTSecret:  v.GetString("JWT_SECRET"),
	}

	var err error
	if cfg.AccessTokenTTL, err = parseDuration(v, "ACCESS_TOKEN_TTL"); err != nil {
		return nil, err
	}
	if cfg.RefreshTokenTTL, err = parseDuration(v, "REFRESH_TOKEN_TTL"); err != nil {
		return nil, err
	}

	cfg.DefaultCategories = splitList(v.GetString("DEFAULT_CATEGORIES"))
	cfg.CORSAllowedOrigins = splitList(v.GetString("CORS_ALLOWED_ORIGINS"))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the configuration can be used to start the server.
func (c *Config) Validate() error {
	port, err := strconv.Atoi(c.Port)
	if err != nil {
		return fmt.Errorf("invalid port '%s': must be a number", c.Port)
	}
	if port < 1 || port > 65535 {
		return fmt.Errorf("invalid port %d: must be between 1 and 65535", port)
	}

	switch c.DBDriver {
	case DriverPostgres:
	case DriverSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required when DB_DRIVER is sqlite")
		}
	default:
		return fmt.Errorf("unsupported DB_DRIVER '%s': use postgres or sqlite", c.DBDriver)
	}

	if c.AccessTokenTTL <= 0 || c.RefreshTokenTTL <= 0 {
		return fmt.Errorf("token lifetimes must be positive")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET must not be empty")
	}
	if c.IsProduction() && c.JWTSecret == DevJWTSecret {
		return fmt.Errorf("JWT_SECRET must be set in production")
	}
	return nil
}

// IsProduction reports whether ENV is production.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func parseDuration(v *viper.Viper, key string) (time.Duration, error) {
	raw := v.GetString(key)
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value '%s': %w", key, raw, err)
	}
	return d, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
