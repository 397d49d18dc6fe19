// internal/utils/logger/config.go
package logger

import (
	"fmt"
	"strings"

	"go.uber.org/zap/zapcore"
)

// Config описывает вывод логов: консоль всегда, JSON-файл с ротацией опционально
type Config struct {
	Level       string `mapstructure:"level"` // debug | info | warn | error; пусто = по режиму
	LogFile     string `mapstructure:"file"`  // пустая строка отключает файл
	MaxSize     int    `mapstructure:"max_size"`
	MaxAge      int    `mapstructure:"max_age"`
	MaxBackups  int    `mapstructure:"max_backups"`
	Compress    bool   `mapstructure:"compress"`
	Development bool   `mapstructure:"development"`
}

// DefaultConfig возвращает конфигурацию сервиса по умолчанию
func DefaultConfig() *Config {
	return &Config{
		LogFile:    "logs/token-scanner.log",
		MaxSize:    50, // MB
		MaxAge:     14, // дни
		MaxBackups: 5,
		Compress:   true,
	}
}

// ZapLevel resolves Level; an empty level means debug in development and info otherwise.
func (c *Config) ZapLevel() (zapcore.Level, error) {
	name := strings.TrimSpace(strings.ToLower(c.Level))
	if name == "" {
		if c.Development {
			return zapcore.DebugLevel, nil
		}
		return zapcore.InfoLevel, nil
	}
	lvl, err := zapcore.ParseLevel(name)
	if err != nil {
		return zapcore.InfoLevel, fmt.Errorf("log level %q: %w", c.Level, err)
	}
	return lvl, nil
}

// Validate checks rotation limits when file output is enabled.
func (c *Config) Validate() error {
	if _, err := c.ZapLevel(); err != nil {
		return err
	}
	if c.LogFile == "" {
		return nil
	}
	if c.MaxSize <= 0 || c.MaxAge < 0 || c.MaxBackups < 0 {
		return fmt.Errorf("log rotation: max_size must be positive, max_age and max_backups non-negative")
	}
	return nil
}
