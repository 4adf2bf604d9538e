package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shenikar/incident_dispatch_system/internal/models"
)

// Config - структура для хранения конфигурации приложения
type Config struct {
	DatabaseURL string `env:"DATABASE_URL"`
	HTTPPort    string `env:"HTTP_PORT" envDefault:"8080"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// Redis Config
	RedisAddr string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPass string `env:"REDIS_PASSWORD"`
	RedisDB   int    `env:"REDIS_DB" envDefault:"0"`

	// Correlation policy: окно и радиус дедупликации событий.
	// Значения по умолчанию - проектное решение, не реконструкция поведения.
	CorrelationWindow       time.Duration `env:"CORRELATION_WINDOW" envDefault:"15m"`
	CorrelationRadiusMeters float64       `env:"CORRELATION_RADIUS_METERS" envDefault:"500"`

	// SLA policy: целевое время до первого назначения по серьёзности
	SLATargets         map[models.Severity]time.Duration
	SweepInterval      time.Duration `env:"SLA_SWEEP_INTERVAL" envDefault:"30s"`
	SweepTimeout       time.Duration `env:"SLA_SWEEP_TIMEOUT" envDefault:"10s"`
	NearBreachFraction float64       `env:"SLA_NEAR_BREACH_FRACTION" envDefault:"0.8"`

	// Dispatch policy
	DispatchMaxRetries int           `env:"DISPATCH_MAX_RETRIES" envDefault:"5"`
	DispatchBaseDelay  time.Duration `env:"DISPATCH_BASE_DELAY" envDefault:"2s"`
	DispatchTimeout    time.Duration `env:"DISPATCH_TIMEOUT" envDefault:"5s"`
	UnitSpeedMPS       float64       `env:"UNIT_SPEED_MPS" envDefault:"12"`

	// Webhook Config (доставка уведомлений)
	WebhookURL        string        `env:"WEBHOOK_URL"`
	WebhookSecret     string        `env:"WEBHOOK_SECRET"`
	WebhookTimeout    time.Duration `env:"WEBHOOK_TIMEOUT" envDefault:"5s"`
	WebhookMaxRetries int           `env:"WEBHOOK_MAX_RETRIES" envDefault:"3"`
	WebhookBaseDelay  time.Duration `env:"WEBHOOK_BASE_DELAY" envDefault:"1s"`

	// Внешние коллабораторы
	IdentityServiceURL string        `env:"IDENTITY_SERVICE_URL"`
	IdentityTimeout    time.Duration `env:"IDENTITY_TIMEOUT" envDefault:"2s"`
	ScorerURL          string        `env:"SCORER_URL"`
	ScorerTimeout      time.Duration `env:"SCORER_TIMEOUT" envDefault:"2s"`

	// API Keys for authentication
	APIKeys []string `env:"API_KEYS"`
}

// LoadConfig загружает конфигурацию из переменных окружения и .env файла
func LoadConfig() (*Config, error) {
	// Загрузка переменных окружения из .env файла (если есть)
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("ошибка загрузки файла .env: %w", err)
	}

	cfg := &Config{
		DatabaseURL:             os.Getenv("DATABASE_URL"),
		HTTPPort:                getEnv("HTTP_PORT", "8080"),
		LogLevel:                getEnv("LOG_LEVEL", "info"),
		RedisAddr:               getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPass:               os.Getenv("REDIS_PASSWORD"),
		RedisDB:                 getEnvAsInt("REDIS_DB", 0),
		CorrelationWindow:       getEnvAsDuration("CORRELATION_WINDOW", 15*time.Minute),
		CorrelationRadiusMeters: getEnvAsFloat("CORRELATION_RADIUS_METERS", 500),
		SLATargets: map[models.Severity]time.Duration{
			models.SeverityLow:      getEnvAsDuration("SLA_TARGET_LOW", 60*time.Minute),
			models.SeverityMedium:   getEnvAsDuration("SLA_TARGET_MEDIUM", 30*time.Minute),
			models.SeverityHigh:     getEnvAsDuration("SLA_TARGET_HIGH", 10*time.Minute),
			models.SeverityCritical: getEnvAsDuration("SLA_TARGET_CRITICAL", 5*time.Minute),
		},
		SweepInterval:      getEnvAsDuration("SLA_SWEEP_INTERVAL", 30*time.Second),
		SweepTimeout:       getEnvAsDuration("SLA_SWEEP_TIMEOUT", 10*time.Second),
		NearBreachFraction: getEnvAsFloat("SLA_NEAR_BREACH_FRACTION", 0.8),
		DispatchMaxRetries: getEnvAsInt("DISPATCH_MAX_RETRIES", 5),
		DispatchBaseDelay:  getEnvAsDuration("DISPATCH_BASE_DELAY", 2*time.Second),
		DispatchTimeout:    getEnvAsDuration("DISPATCH_TIMEOUT", 5*time.Second),
		UnitSpeedMPS:       getEnvAsFloat("UNIT_SPEED_MPS", 12),
		WebhookURL:         os.Getenv("WEBHOOK_URL"),
		WebhookSecret:      os.Getenv("WEBHOOK_SECRET"),
		WebhookTimeout:     getEnvAsDuration("WEBHOOK_TIMEOUT", 5*time.Second),
		WebhookMaxRetries:  getEnvAsInt("WEBHOOK_MAX_RETRIES", 3),
		WebhookBaseDelay:   getEnvAsDuration("WEBHOOK_BASE_DELAY", time.Second),
		IdentityServiceURL: os.Getenv("IDENTITY_SERVICE_URL"),
		IdentityTimeout:    getEnvAsDuration("IDENTITY_TIMEOUT", 2*time.Second),
		ScorerURL:          os.Getenv("SCORER_URL"),
		ScorerTimeout:      getEnvAsDuration("SCORER_TIMEOUT", 2*time.Second),
	}

	// Загрузка API ключей
	apiKeysStr := os.Getenv("API_KEYS")
	if apiKeysStr != "" {
		cfg.APIKeys = strings.Split(apiKeysStr, ",")
		for i, key := range cfg.APIKeys {
			cfg.APIKeys[i] = strings.TrimSpace(key)
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is required")
	}

	return cfg, nil
}

// SLATarget возвращает целевое время SLA для серьёзности
func (c *Config) SLATarget(sev models.Severity) time.Duration {
	if d, ok := c.SLATargets[sev]; ok {
		return d
	}
	return c.SLATargets[models.SeverityLow]
}

// getEnv возвращает значение переменной окружения или значение по умолчанию
func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvAsInt возвращает значение переменной окружения как int или значение по умолчанию
func getEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvAsFloat возвращает значение переменной окружения как float64 или значение по умолчанию
func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// getEnvAsDuration возвращает значение переменной окружения как time.Duration или значение по умолчанию
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if durationValue, err := time.ParseDuration(value); err == nil {
			return durationValue
		}
	}
	return defaultValue
}
