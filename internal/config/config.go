package config

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config содержит всю конфигурацию приложения
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Security  SecurityConfig
	Sync      SyncConfig
	PriceFeed PriceFeedConfig
	Logging   LoggingConfig
}

// ServerConfig - настройки HTTP сервера
type ServerConfig struct {
	Port     int
	Host     string
	UseHTTPS bool
	CertFile string
	KeyFile  string
}

// DatabaseConfig - настройки подключения к БД
type DatabaseConfig struct {
	Driver   string
	Host     string
	Port     int
	Name     string
	User     string
	Password string
	SSLMode  string
}

// RedisConfig - настройки подключения к redis (кэш снапшотов портфелей)
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// SecurityConfig - настройки безопасности
type SecurityConfig struct {
	// EncryptionKey - 32-байтный ключ AES-256 для шифрования API ключей.
	// В ENCRYPTION_KEY принимается сырая 32-символьная строка,
	// hex (64 символа) или base64.
	EncryptionKey []byte

	// APITokenHash - bcrypt-хэш статического API токена.
	// Пустой хэш отключает аутентификацию (локальное развертывание).
	APITokenHash string
}

// SyncConfig - настройки оркестратора синхронизации
type SyncConfig struct {
	// Интервал фоновой синхронизации всех активных записей
	Interval time.Duration

	// Таймаут синхронизации одной учётной записи
	Timeout time.Duration

	// Лимиты запросов по биржам. У каждой биржи свой лимит приватного API,
	// поэтому значения фиксированы конфигурацией на биржу.
	ExchangeRates map[string]ExchangeRateConfig
}

// ExchangeRateConfig - лимит запросов к одной бирже:
// запросов в секунду и ёмкость burst
type ExchangeRateConfig struct {
	Rate  float64
	Burst float64
}

// Консервативные лимиты приватных API. Kraken заметно строже остальных.
// Переопределяются через EXCHANGE_RATE_LIMIT_<EXCHANGE> /
// EXCHANGE_RATE_BURST_<EXCHANGE> (например EXCHANGE_RATE_LIMIT_KRAKEN).
var defaultExchangeRates = map[string]ExchangeRateConfig{
	"binance":  {Rate: 10, Burst: 20},
	"coinbase": {Rate: 5, Burst: 10},
	"kraken":   {Rate: 1, Burst: 3},
	"okx":      {Rate: 5, Burst: 10},
	"bybit":    {Rate: 5, Burst: 10},
}

// PriceFeedConfig - настройки ценового фида CoinGecko
type PriceFeedConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// LoggingConfig - настройки логирования
type LoggingConfig struct {
	Level string
}

// Load загружает конфигурацию из переменных окружения
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:     getEnvAsInt("SERVER_PORT", 8080),
			Host:     getEnv("SERVER_HOST", "0.0.0.0"),
			UseHTTPS: getEnvAsBool("USE_HTTPS", false),
			CertFile: getEnv("CERT_FILE", ""),
			KeyFile:  getEnv("KEY_FILE", ""),
		},
		Database: DatabaseConfig{
			Driver:   getEnv("DB_DRIVER", "postgres"),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			Name:     getEnv("DB_NAME", "cryptofolio"),
			User:     getEnv("DB_USER", "user"),
			Password: getEnv("DB_PASSWORD", "password"),
			SSLMode:  getEnv("DB_SSL_MODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Security: SecurityConfig{
			APITokenHash: getEnv("API_TOKEN_HASH", ""),
		},
		Sync: SyncConfig{
			Interval:      getEnvAsDuration("SYNC_INTERVAL", 15*time.Minute),
			Timeout:       getEnvAsDuration("SYNC_TIMEOUT", 2*time.Minute),
			ExchangeRates: loadExchangeRates(),
		},
		PriceFeed: PriceFeedConfig{
			BaseURL: getEnv("PRICEFEED_BASE_URL", "https://api.coingecko.com/api/v3"),
			APIKey:  getEnv("PRICEFEED_API_KEY", ""),
			Timeout: getEnvAsDuration("PRICEFEED_TIMEOUT", 10*time.Second),
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}

	key, err := decodeEncryptionKey(os.Getenv("ENCRYPTION_KEY"))
	if err != nil {
		return nil, err
	}
	cfg.Security.EncryptionKey = key

	if err := cfg.validateRanges(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadExchangeRates собирает лимиты по биржам из значений по умолчанию
// и переменных окружения вида EXCHANGE_RATE_LIMIT_KRAKEN
func loadExchangeRates() map[string]ExchangeRateConfig {
	rates := make(map[string]ExchangeRateConfig, len(defaultExchangeRates))
	for exchangeID, def := range defaultExchangeRates {
		suffix := strings.ToUpper(exchangeID)
		rates[exchangeID] = ExchangeRateConfig{
			Rate:  getEnvAsFloat("EXCHANGE_RATE_LIMIT_"+suffix, def.Rate),
			Burst: getEnvAsFloat("EXCHANGE_RATE_BURST_"+suffix, def.Burst),
		}
	}
	return rates
}

// decodeEncryptionKey принимает ключ в сыром, hex или base64 виде
// и всегда возвращает ровно 32 байта
func decodeEncryptionKey(raw string) ([]byte, error) {
	if raw == "" {
		return nil, fmt.Errorf("ENCRYPTION_KEY is required for encrypting API keys")
	}

	if len(raw) == 32 {
		return []byte(raw), nil
	}

	if len(raw) == 64 {
		if key, err := hex.DecodeString(raw); err == nil {
			return key, nil
		}
	}

	if key, err := base64.StdEncoding.DecodeString(raw); err == nil && len(key) == 32 {
		return key, nil
	}

	return nil, fmt.Errorf("ENCRYPTION_KEY must decode to exactly 32 bytes for AES-256")
}

// validateRanges проверяет числовые диапазоны параметров
func (c *Config) validateRanges() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("DB_PORT must be between 1 and 65535, got %d", c.Database.Port)
	}

	if c.Sync.Interval < time.Minute {
		return fmt.Errorf("SYNC_INTERVAL must be at least 1m, got %v", c.Sync.Interval)
	}

	if c.Sync.Timeout <= 0 {
		return fmt.Errorf("SYNC_TIMEOUT must be positive, got %v", c.Sync.Timeout)
	}

	for exchangeID, limit := range c.Sync.ExchangeRates {
		if limit.Rate <= 0 {
			return fmt.Errorf("EXCHANGE_RATE_LIMIT_%s must be positive, got %v",
				strings.ToUpper(exchangeID), limit.Rate)
		}
		if limit.Burst <= 0 {
			return fmt.Errorf("EXCHANGE_RATE_BURST_%s must be positive, got %v",
				strings.ToUpper(exchangeID), limit.Burst)
		}
	}

	if c.PriceFeed.Timeout <= 0 {
		return fmt.Errorf("PRICEFEED_TIMEOUT must be positive, got %v", c.PriceFeed.Timeout)
	}

	return nil
}

// DSN возвращает строку подключения к базе данных
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// DSNWithoutPassword возвращает строку подключения без пароля (для логирования)
func (d DatabaseConfig) DSNWithoutPassword() string {
	return fmt.Sprintf("host=%s port=%d user=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Name, d.SSLMode)
}

// Вспомогательные функции для чтения переменных окружения

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
