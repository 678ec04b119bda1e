package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppEnv         string
	HTTPAddr       string
	MigrationsPath string
	LogLevel       string

	// Hosted Postgres convenience:
	// - DATABASE_URL: runtime connection (often a pooler)
	// - DIRECT_URL: direct connection for migrations
	DatabaseURL string
	DirectURL   string

	DB DBConfig

	// RedisURL enables the stage catalog cache. Empty disables it.
	RedisURL      string
	StageCacheTTL time.Duration

	// AMQPURL enables integration event publishing. Empty falls back to a no-op publisher.
	AMQPURL string

	Auth AuthConfig

	// FrontendOrigins is the CORS allowlist for the case-management frontend.
	FrontendOrigins []string

	// AgencyLocation is the zone used for date-only effective dates ("today" is agency-local).
	AgencyLocation *time.Location

	// Client settings used by cmd/dev/stagectl.
	APIURL   string
	APIToken string
}

type DBConfig struct {
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	SSLMode  string
}

type AuthConfig struct {
	// TokenSecret signs staff session JWTs (HS256).
	TokenSecret string
	Audience    string
}

func (c Config) IsProd() bool {
	return c.AppEnv == "prod"
}

func Load() Config {
	// Convenience for local dev: load variables from .env if present.
	// In production, rely on real environment variables.
	_ = godotenv.Load()

	// Cloud Run sets PORT. Prefer it when HTTP_ADDR isn't explicitly set.
	httpAddr := os.Getenv("HTTP_ADDR")
	if httpAddr == "" {
		if port := os.Getenv("PORT"); port != "" {
			httpAddr = ":" + port
		} else {
			httpAddr = ":8081"
		}
	}

	return Config{
		AppEnv:         env("APP_ENV", "dev"),
		HTTPAddr:       httpAddr,
		MigrationsPath: os.Getenv("MIGRATIONS_PATH"),
		LogLevel:       env("LOG_LEVEL", "info"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		DirectURL:      os.Getenv("DIRECT_URL"),
		DB: DBConfig{
			Host:     env("DB_HOST", "localhost"),
			Port:     env("DB_PORT", "5432"),
			Name:     env("DB_NAME", "caseflow"),
			User:     env("DB_USER", "caseflow"),
			Password: env("DB_PASSWORD", "caseflow"),
			SSLMode:  env("DB_SSLMODE", "disable"),
		},
		RedisURL:      os.Getenv("REDIS_URL"),
		StageCacheTTL: envDuration("STAGE_CACHE_TTL", 5*time.Minute),
		AMQPURL:       os.Getenv("AMQP_URL"),
		Auth: AuthConfig{
			TokenSecret: os.Getenv("AUTH_TOKEN_SECRET"),
			Audience:    env("AUTH_AUDIENCE", "caseflow"),
		},
		FrontendOrigins: envList("FRONTEND_ORIGINS", "http://localhost:5173,http://localhost:4173"),
		AgencyLocation:  envLocation("AGENCY_TIMEZONE", time.UTC),
		APIURL:          env("CASEFLOW_API_URL", "http://localhost:8081"),
		APIToken:        os.Getenv("CASEFLOW_API_TOKEN"),
	}
}

func env(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func envList(key, fallbackCSV string) []string {
	v := os.Getenv(key)
	if v == "" {
		v = fallbackCSV
	}
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func envDuration(key string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(key))
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func envLocation(key string, fallback *time.Location) *time.Location {
	name := os.Getenv(key)
	if name == "" {
		return fallback
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return fallback
	}
	return loc
}
