package utils

// logger.go - настройка логирования
//
// Структурированное логирование через zap (uber-go/zap).
// Все компоненты получают Logger интерфейс, а не конкретный тип,
// чтобы тесты могли подставить NopLogger.
//
// ВАЖНО: в логи никогда не попадают API ключи, секреты и passphrase.
// Сервисы логируют только идентификаторы (credentialID, exchangeID).

import (
	"errors"
	"fmt"
	"syscall"

	"go.uber.org/zap"
)

// Logger - интерфейс структурированного логгера
type Logger interface {
	With(args ...interface{}) Logger

	Debugf(template string, args ...interface{})
	Infof(template string, args ...interface{})
	Warnf(template string, args ...interface{})
	Errorf(template string, args ...interface{})
	Fatalf(template string, args ...interface{})

	Sync() error
}

// LogLevel - уровень логирования
type LogLevel int

const (
	Debug LogLevel = iota
	Info
	Warn
	Error
)

// ParseLogLevel преобразует строку из конфигурации в LogLevel.
// Неизвестное значение трактуется как Info.
func ParseLogLevel(s string) LogLevel {
	switch s {
	case "debug":
		return Debug
	case "warn":
		return Warn
	case "error":
		return Error
	default:
		return Info
	}
}

// ZapLogger - реализация Logger поверх zap.SugaredLogger
type ZapLogger struct {
	logger *zap.SugaredLogger
}

// NewZapLogger создаёт production zap logger с выводом в stdout.
// Возвращает logger, функцию для финального Sync и ошибку инициализации.
func NewZapLogger(level LogLevel) (*ZapLogger, func(), error) {
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{"stdout"}
	cfg.ErrorOutputPaths = []string{"stdout"}

	switch level {
	case Debug:
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case Info:
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case Warn:
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case Error:
		cfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	}

	l, err := cfg.Build()
	if err != nil {
		return nil, nil, fmt.Errorf("can't init logger: %w", err)
	}

	logger := &ZapLogger{logger: l.Sugar()}

	// Sync на stdout возвращает EBADF/ENOTTY в некоторых окружениях - это не ошибка
	syncFunc := func() {
		if err := logger.Sync(); err != nil && !errors.Is(err, syscall.EBADF) && !errors.Is(err, syscall.ENOTTY) {
			logger.Errorf("can't sync logger: %s", err)
		}
	}

	return logger, syncFunc, nil
}

func (l *ZapLogger) With(args ...interface{}) Logger {
	return &ZapLogger{logger: l.logger.With(args...)}
}

func (l *ZapLogger) Debugf(template string, args ...interface{}) {
	l.logger.Debugf(template, args...)
}

func (l *ZapLogger) Infof(template string, args ...interface{}) {
	l.logger.Infof(template, args...)
}

func (l *ZapLogger) Warnf(template string, args ...interface{}) {
	l.logger.Warnf(template, args...)
}

func (l *ZapLogger) Errorf(template string, args ...interface{}) {
	l.logger.Errorf(template, args...)
}

func (l *ZapLogger) Fatalf(template string, args ...interface{}) {
	l.logger.Fatalf(template, args...)
}

func (l *ZapLogger) Sync() error {
	return l.logger.Sync()
}

// NopLogger - no-op реализация для тестов
type NopLogger struct{}

func NewNopLogger() *NopLogger { return &NopLogger{} }

func (n *NopLogger) With(args ...interface{}) Logger             { return n }
func (n *NopLogger) Debugf(template string, args ...interface{}) {}
func (n *NopLogger) Infof(template string, args ...interface{})  {}
func (n *NopLogger) Warnf(template string, args ...interface{})  {}
func (n *NopLogger) Errorf(template string, args ...interface{}) {}
func (n *NopLogger) Fatalf(template string, args ...interface{}) {}
func (n *NopLogger) Sync() error                                 { return nil }
