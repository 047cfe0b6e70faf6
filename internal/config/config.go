package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	DatabaseURL string
	DBTimeZone  string
	DBEncoding  string

	AccessSecret    string
	AccessTokenTTL  time.Duration
	RefreshSecret   string
	RefreshTokenTTL time.Duration

	BlacklistStore         string
	RedisAddr              string
	RedisPassword          string
	BlacklistSweepInterval time.Duration

	LogLevel string
	LogDev   bool
	LogFile  string
}

// Load reads .env (best-effort) and the process environment. Every
// required value must be present and well formed.
func Load() (Config, error) {
	_ = godotenv.Load()
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a lookup function so tests need not touch
// the real environment.
func FromEnv(getenv func(string) string) (Config, error) {
	var problems []string
	required := func(key string) string {
		v := strings.TrimSpace(getenv(key))
		if v == "" {
			problems = append(problems, key+" is required")
		}
		return v
	}
	duration := func(key string, fallback time.Duration, mustExist bool) time.Duration {
		raw := strings.TrimSpace(getenv(key))
		if raw == "" {
			if mustExist {
				problems = append(problems, key+" is required")
			}
			return fallback
		}
		d, err := parseDuration(raw)
		if err != nil || d <= 0 {
			problems = append(problems, key+" must be a positive duration")
			return fallback
		}
		return d
	}

	cfg := Config{
		Port:                   required("PORT"),
		DatabaseURL:            required("DATABASE_URL"),
		DBTimeZone:             getenv("DATABASE_TIMEZONE"),
		DBEncoding:             getenv("DATABASE_CLIENT_ENCODING"),
		AccessSecret:           required("JWT_SECRET"),
		AccessTokenTTL:         duration("JWT_EXPIRES_IN", 24*time.Hour, true),
		RefreshSecret:          required("JWT_REFRESH_SECRET"),
		RefreshTokenTTL:        duration("JWT_REFRESH_EXPIRES_IN", 7*24*time.Hour, true),
		BlacklistStore:         strings.ToLower(strings.TrimSpace(getenv("BLACKLIST_STORE"))),
		RedisAddr:              getenv("REDIS_ADDR"),
		RedisPassword:          getenv("REDIS_PASSWORD"),
		BlacklistSweepInterval: duration("BLACKLIST_SWEEP_INTERVAL", 15*time.Minute, false),
		LogLevel:               getenv("LOG_LEVEL"),
		LogDev:                 getenv("LOG_DEV") == "1",
		LogFile:                getenv("LOG_FILE"),
	}

	if cfg.Port != "" {
		if p, err := strconv.Atoi(cfg.Port); err != nil || p <= 0 || p > 65535 {
			problems = append(problems, "PORT must be a valid TCP port")
		}
	}
	switch cfg.BlacklistStore {
	case "":
		cfg.BlacklistStore = "memory"
		if cfg.RedisAddr != "" {
			cfg.BlacklistStore = "redis"
		}
	case "memory", "postgres":
	case "redis":
		if cfg.RedisAddr == "" {
			problems = append(problems, "REDIS_ADDR is required when BLACKLIST_STORE=redis")
		}
	default:
		problems = append(problems, "BLACKLIST_STORE must be memory, redis or postgres")
	}
	if cfg.AccessSecret != "" && cfg.AccessSecret == cfg.RefreshSecret {
		problems = append(problems, "JWT_REFRESH_SECRET must differ from JWT_SECRET")
	}

	if len(problems) > 0 {
		return Config{}, fmt.Errorf("invalid configuration: %w", errors.New(strings.Join(problems, "; ")))
	}
	return cfg, nil
}

// Addr is the listen address for the HTTP server.
func (c Config) Addr() string {
	return "0.0.0.0:" + c.Port
}

// parseDuration accepts Go durations ("24h"), plain seconds ("3600") and the
// day suffix used by older deployments ("7d").
func parseDuration(raw string) (time.Duration, error) {
	if strings.HasSuffix(raw, "d") {
		days, err := strconv.Atoi(strings.TrimSuffix(raw, "d"))
		if err != nil {
			return 0, err
		}
		return time.Duration(days) * 24 * time.Hour, nil
	}
	if seconds, err := strconv.Atoi(raw); err == nil {
		return time.Duration(seconds) * time.Second, nil
	}
	return time.ParseDuration(raw)
}
