package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App       AppConfig
	DB        DBConfig
	Redis     RedisConfig
	Log       LogConfig
	Audit     AuditConfig
	RateLimit RateLimitConfig
}

type AppConfig struct {
	Port    string
	BaseURL string // публичный адрес, из него строятся маскированные ссылки
	// DisplayTZ часовой пояс продукта: в нём считается граница дня expires_at
	// и форматируются отображаемые метки времени. Хранение всегда в UTC.
	DisplayTZ string
}

type DBConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
}

type RedisConfig struct {
	Host string
	Port string
}

type LogConfig struct {
	// File путь для ротируемого файла логов; пустая строка — только stderr
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

type AuditConfig struct {
	Workers    int
	BufferSize int
}

type RateLimitConfig struct {
	RequestsPerSecond float64
	BurstSize         int
}

func Load() (*Config, error) {
	viper.SetConfigFile(".env")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	cfg.App.Port = viper.GetString("APP_PORT")
	cfg.App.BaseURL = viper.GetString("BASE_URL")
	if cfg.App.BaseURL == "" {
		cfg.App.BaseURL = "http://localhost:" + cfg.App.Port
	}
	cfg.App.DisplayTZ = viper.GetString("DISPLAY_TZ")
	if cfg.App.DisplayTZ == "" {
		cfg.App.DisplayTZ = "America/Bogota"
	}

	cfg.DB.Host = viper.GetString("DB_HOST")
	cfg.DB.Port = viper.GetString("DB_PORT")
	cfg.DB.User = viper.GetString("DB_USER")
	cfg.DB.Password = viper.GetString("DB_PASSWORD")
	cfg.DB.Name = viper.GetString("DB_NAME")
	cfg.Redis.Host = viper.GetString("REDIS_HOST")
	cfg.Redis.Port = viper.GetString("REDIS_PORT")

	cfg.Log.File = viper.GetString("LOG_FILE")
	cfg.Log.MaxSizeMB = viper.GetInt("LOG_MAX_SIZE_MB")
	if cfg.Log.MaxSizeMB == 0 {
		cfg.Log.MaxSizeMB = 100
	}
	cfg.Log.MaxBackups = viper.GetInt("LOG_MAX_BACKUPS")
	if cfg.Log.MaxBackups == 0 {
		cfg.Log.MaxBackups = 5
	}
	cfg.Log.MaxAgeDays = viper.GetInt("LOG_MAX_AGE_DAYS")
	if cfg.Log.MaxAgeDays == 0 {
		cfg.Log.MaxAgeDays = 30
	}

	cfg.Audit.Workers = viper.GetInt("AUDIT_WORKERS")
	if cfg.Audit.Workers == 0 {
		cfg.Audit.Workers = 3
	}
	cfg.Audit.BufferSize = viper.GetInt("AUDIT_BUFFER")
	if cfg.Audit.BufferSize == 0 {
		cfg.Audit.BufferSize = 1000
	}

	cfg.RateLimit.RequestsPerSecond = viper.GetFloat64("RATE_LIMIT_RPS")
	if cfg.RateLimit.RequestsPerSecond == 0 {
		cfg.RateLimit.RequestsPerSecond = 50
	}
	cfg.RateLimit.BurstSize = viper.GetInt("RATE_LIMIT_BURST")
	if cfg.RateLimit.BurstSize == 0 {
		cfg.RateLimit.BurstSize = 100
	}

	return &cfg, nil
}

// Location загружает часовой пояс отображения
func (c AppConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.DisplayTZ)
	if err != nil {
		return nil, fmt.Errorf("invalid DISPLAY_TZ %q: %w", c.DisplayTZ, err)
	}
	return loc, nil
}
