package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const PROD_STRING = "prod"

const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// Config holds all application configuration loaded from environment.
type Config struct {
	IsProduction      bool
	ProdOrigins       []string
	HTTPAddr          string
	Storage           string
	DBDSN             string
	JWTSecret         string
	JWTAccessTokenTTL time.Duration
	BusinessLocation  *time.Location
	InitHorizonDays   int
	TxMaxAttempts     int
	LockTimeout       time.Duration
	RedisURL          string
	CacheTTL          time.Duration
	RetentionInterval time.Duration
	RetentionDays     int
	OTelEndpoint      string
}

// source resolves a key from the environment first, then the config file.
type source struct {
	file map[string]string
}

// Load loads configuration from .env (optional), the YAML file at path
// (optional) and environment variables, in increasing precedence.
func Load(path string) (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("failed to load .env file: %v", err)
	}

	src := source{}
	if path != "" {
		file, err := readFile(path)
		if err != nil {
			return nil, err
		}
		src.file = file
	}
	return src.load()
}

// readFile reads a flat YAML mapping of setting names to values.
// Names are matched case-insensitively against the environment keys.
func readFile(path string) (map[string]string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file %q: %w", path, err)
	}
	raw := map[string]any{}
	if err := yaml.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("parse config file %q: %w", path, err)
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		switch v := v.(type) {
		case nil:
		case []any:
			parts := make([]string, len(v))
			for i, p := range v {
				parts[i] = fmt.Sprint(p)
			}
			out[strings.ToUpper(k)] = strings.Join(parts, ",")
		default:
			out[strings.ToUpper(k)] = fmt.Sprint(v)
		}
	}
	return out, nil
}

func (s source) load() (*Config, error) {
	cfg := &Config{}
	var err error

	// Application environment (default: dev)
	cfg.IsProduction = s.get("APP_ENV", "dev") == PROD_STRING

	// Production origins, comma separated (default: empty)
	cfg.ProdOrigins = splitList(s.get("PROD_ORIGINS", ""))

	// HTTP listen address (default: :8080)
	cfg.HTTPAddr = s.get("HTTP_ADDR", ":8080")

	// Storage backend (default: postgres)
	cfg.Storage = s.get("STORAGE", StoragePostgres)
	switch cfg.Storage {
	case StoragePostgres:
		// Database DSN is required for postgres storage
		cfg.DBDSN = s.get("DB_DSN", "")
		if cfg.DBDSN == "" {
			return nil, fmt.Errorf("DB_DSN is required")
		}
	case StorageMemory:
	default:
		return nil, fmt.Errorf("invalid STORAGE %q: want %s or %s", cfg.Storage, StoragePostgres, StorageMemory)
	}

	// JWT secret is required for verifying tokens
	cfg.JWTSecret = s.get("JWT_SECRET", "")
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	if cfg.JWTAccessTokenTTL, err = s.getDuration("JWT_ACCESS_TOKEN_TTL", 15*time.Minute); err != nil {
		return nil, err
	}

	// Business time zone decides what "today" is (default: UTC)
	tz := s.get("BUSINESS_TZ", "UTC")
	if cfg.BusinessLocation, err = time.LoadLocation(tz); err != nil {
		return nil, fmt.Errorf("invalid BUSINESS_TZ: %w", err)
	}

	if cfg.InitHorizonDays, err = s.getInt("INIT_HORIZON_DAYS", 90); err != nil {
		return nil, err
	}
	if cfg.InitHorizonDays < 1 {
		return nil, fmt.Errorf("INIT_HORIZON_DAYS must be positive")
	}

	if cfg.TxMaxAttempts, err = s.getInt("TX_MAX_ATTEMPTS", 3); err != nil {
		return nil, err
	}
	if cfg.TxMaxAttempts < 1 {
		return nil, fmt.Errorf("TX_MAX_ATTEMPTS must be positive")
	}

	if cfg.LockTimeout, err = s.getDuration("LOCK_TIMEOUT", 2*time.Second); err != nil {
		return nil, err
	}

	// Redis is optional; without it the availability cache is in process
	cfg.RedisURL = s.get("REDIS_URL", "")
	if cfg.CacheTTL, err = s.getDuration("CACHE_TTL", 30*time.Second); err != nil {
		return nil, err
	}

	// Zero disables the periodic retention sweep
	if cfg.RetentionInterval, err = s.getDuration("RETENTION_INTERVAL", 0); err != nil {
		return nil, err
	}
	if cfg.RetentionDays, err = s.getInt("RETENTION_DAYS", 30); err != nil {
		return nil, err
	}
	if cfg.RetentionDays < 0 {
		return nil, fmt.Errorf("RETENTION_DAYS cannot be negative")
	}

	// Tracing export is off unless an endpoint is given
	cfg.OTelEndpoint = s.get("OTEL_EXPORTER_ENDPOINT", "")

	return cfg, nil
}

// get returns the value of the environment variable if set, then the
// config file value, otherwise the provided default value.
func (s source) get(key, defaultValue string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	if v, ok := s.file[key]; ok {
		return v
	}
	return defaultValue
}

// getInt retrieves a setting as an integer.
// It returns an error if the setting is present but not a valid integer.
func (s source) getInt(key string, defaultValue int) (int, error) {
	valStr := s.get(key, "")
	if valStr == "" {
		return defaultValue, nil
	}

	val, err := strconv.Atoi(valStr)
	if err != nil {
		return 0, fmt.Errorf("env %s value %q is not a valid integer: %w", key, valStr, err)
	}
	return val, nil
}

// getDuration parses a setting as time.Duration (e.g. "15m", "1h").
func (s source) getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	valStr := s.get(key, "")
	if valStr == "" {
		return defaultValue, nil
	}

	val, err := time.ParseDuration(valStr)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return val, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
