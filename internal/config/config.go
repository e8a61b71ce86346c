package config

import (
	"time"

	"github.com/cleanmatch/service-booking/internal/gateway"
	"github.com/cleanmatch/service-booking/internal/platform/config"
)

// ServiceConfig holds all configuration for the booking service.
type ServiceConfig struct {
	Port           string
	AppEnv         string
	DBConfig       config.DatabaseConfig
	JWTConfig      config.JWTConfig
	KafkaConfig    config.KafkaConfig
	RedisConfig    config.RedisConfig
	PaymentConfig  gateway.Config
	LockTTL        time.Duration
	RatingStrategy string
	MigrationsDir  string
}

// Load reads configuration from environment variables.
func Load() (*ServiceConfig, error) {
	v, err := config.Load("BOOKING")
	if err != nil {
		return nil, err
	}
	v.SetDefault("DB_NAME", "cleanmatch_booking")
	v.SetDefault("PAYMENT_BASE_URL", "http://localhost:8090")
	v.SetDefault("RATING_STRATEGY", "scan")
	v.SetDefault("MIGRATIONS_DIR", "migrations")

	return &ServiceConfig{
		Port:        config.GetServicePort(v, "SERVICE_PORT"),
		AppEnv:      config.GetAppEnv(v),
		DBConfig:    config.LoadDatabaseConfig(v, "DB_NAME"),
		JWTConfig:   config.LoadJWTConfig(v),
		KafkaConfig: config.LoadKafkaConfig(v),
		RedisConfig: config.LoadRedisConfig(v),
		PaymentConfig: gateway.Config{
			BaseURL: v.GetString("PAYMENT_BASE_URL"),
			APIKey:  v.GetString("PAYMENT_API_KEY"),
			Timeout: config.GetDuration(v, "PAYMENT_TIMEOUT", 15*time.Second),
		},
		LockTTL:        config.GetDuration(v, "LOCK_TTL", 30*time.Second),
		RatingStrategy: v.GetString("RATING_STRATEGY"),
		MigrationsDir:  v.GetString("MIGRATIONS_DIR"),
	}, nil
}
