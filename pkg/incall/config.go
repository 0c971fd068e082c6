package incall

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config конфигурация in-call приложения из окружения
type Config struct {
	// LogLevel уровень логирования: trace, debug, info, warn, error
	LogLevel string `env:"INCALL_LOG_LEVEL" envDefault:"info"`

	// BlockQueryTimeout предел ожидания проверки заблокированного номера
	BlockQueryTimeout time.Duration `env:"INCALL_BLOCK_QUERY_TIMEOUT" envDefault:"1s"`

	// VideoPauseEnabled включает контроллер паузы видео
	VideoPauseEnabled bool `env:"INCALL_VIDEO_PAUSE_ENABLED" envDefault:"false"`

	// MetricsEnabled включает сбор Prometheus метрик
	MetricsEnabled bool `env:"INCALL_METRICS_ENABLED" envDefault:"true"`

	// MetricsNamespace префикс Prometheus метрик
	MetricsNamespace string `env:"INCALL_METRICS_NAMESPACE" envDefault:"incall"`

	// MetricsAddr адрес HTTP-эндпоинта /metrics
	MetricsAddr string `env:"INCALL_METRICS_ADDR" envDefault:":9091"`
}

// LoadConfig читает конфигурацию из .env файла (если есть) и окружения
func LoadConfig() (*Config, error) {
	// Отсутствие .env не ошибка: окружение имеет приоритет
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("ошибка чтения конфигурации: %w", err)
	}
	return cfg, nil
}

// DefaultConfig возвращает конфигурацию по умолчанию без чтения окружения
func DefaultConfig() *Config {
	return &Config{
		LogLevel:          "info",
		BlockQueryTimeout: time.Second,
		VideoPauseEnabled: false,
		MetricsEnabled:    true,
		MetricsNamespace:  "incall",
		MetricsAddr:       ":9091",
	}
}
