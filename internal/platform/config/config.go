package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Addr                     string
	DatabaseURL              string
	JWTSecret                string
	Environment              string
	TokenTTL                 time.Duration
	SeedAdminEmail           string
	SeedAdminPassword        string
	RunMigrations            bool
	RunSeed                  bool
	RatingRedBelow           float64
	RatingGreenFrom          float64
	PercentageCap            float64
	AllowResubmission        bool
	SummaryReconcileInterval time.Duration
	MaxBodyBytes             int64
	RateLimitPerMinute       int
	EmailEnabled             bool
	EmailFrom                string
	SMTPHost                 string
	SMTPPort                 int
	SMTPUser                 string
	SMTPPassword             string
	SMTPUseTLS               bool
}

func Load() Config {
	// .env is optional; deployments normally set the environment directly.
	_ = godotenv.Load()

	return Config{
		Addr:                     getEnv("APP_ADDR", ":8080"),
		DatabaseURL:              getEnv("DATABASE_URL", ""),
		JWTSecret:                getEnv("JWT_SECRET", ""),
		Environment:              getEnv("APP_ENV", "development"),
		TokenTTL:                 getEnvDuration("TOKEN_TTL", 12*time.Hour),
		SeedAdminEmail:           getEnv("SEED_ADMIN_EMAIL", ""),
		SeedAdminPassword:        getEnv("SEED_ADMIN_PASSWORD", ""),
		RunMigrations:            getEnvBool("RUN_MIGRATIONS", true),
		RunSeed:                  getEnvBool("RUN_SEED", true),
		RatingRedBelow:           getEnvFloat("KPI_RATING_RED_BELOW", 70),
		RatingGreenFrom:          getEnvFloat("KPI_RATING_GREEN_FROM", 90),
		PercentageCap:            getEnvFloat("KPI_PERCENTAGE_CAP", 0),
		AllowResubmission:        getEnvBool("KPI_ALLOW_RESUBMISSION", false),
		SummaryReconcileInterval: getEnvDuration("SUMMARY_RECONCILE_INTERVAL", 6*time.Hour),
		MaxBodyBytes:             getEnvInt64("MAX_BODY_BYTES", 1<<20),
		RateLimitPerMinute:       int(getEnvInt64("RATE_LIMIT_PER_MINUTE", 300)),
		EmailEnabled:             getEnvBool("EMAIL_ENABLED", false),
		EmailFrom:                getEnv("EMAIL_FROM", "kpitrack@localhost"),
		SMTPHost:                 getEnv("SMTP_HOST", ""),
		SMTPPort:                 int(getEnvInt64("SMTP_PORT", 587)),
		SMTPUser:                 getEnv("SMTP_USER", ""),
		SMTPPassword:             getEnv("SMTP_PASSWORD", ""),
		SMTPUseTLS:               getEnvBool("SMTP_USE_TLS", true),
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvInt64(key string, fallback int64) int64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.Environment == "production" {
		if strings.TrimSpace(c.JWTSecret) == "" {
			return fmt.Errorf("JWT_SECRET must be set to a strong value in production")
		}
		if c.RunSeed && strings.TrimSpace(c.SeedAdminPassword) == "" {
			return fmt.Errorf("SEED_ADMIN_PASSWORD must be changed or RUN_SEED disabled in production")
		}
	}
	if c.RatingRedBelow < 0 || c.RatingGreenFrom < c.RatingRedBelow {
		return fmt.Errorf("rating thresholds must satisfy 0 <= KPI_RATING_RED_BELOW <= KPI_RATING_GREEN_FROM")
	}
	if c.PercentageCap < 0 {
		return fmt.Errorf("KPI_PERCENTAGE_CAP must be zero (uncapped) or positive")
	}
	return nil
}
