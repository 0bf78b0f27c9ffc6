package utils

// validator.go - валидация входных данных
//
// Проверка параметров, приходящих из HTTP API, до того как они
// дойдут до хранилища или адаптеров бирж.
//
// Функции:
// - ValidateExchangeID: идентификатор поддерживаемой биржи
// - ValidateSymbol: формат торгового символа (BTCUSDT, BTC-USDT)
// - NormalizeSymbol: приведение символа к каноническому виду
// - ValidateAPIKey: базовая проверка API ключа
// - ValidateUserID: идентификатор пользователя
//
// Возвращают error с описанием проблемы или nil

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	ErrEmptySymbol     = errors.New("symbol is empty")
	ErrInvalidSymbol   = errors.New("invalid symbol format")
	ErrEmptyAPIKey     = errors.New("api key is empty")
	ErrEmptyUserID     = errors.New("user id is empty")
	ErrUnknownExchange = errors.New("unknown exchange")
)

// SupportedExchanges - биржи, для которых есть адаптер
var SupportedExchanges = []string{"binance", "coinbase", "kraken", "okx", "bybit"}

// symbolPattern: буквы и цифры с опциональными разделителями -, _, /
var symbolPattern = regexp.MustCompile(`^[A-Za-z0-9]+([-_/][A-Za-z0-9]+)*$`)

const (
	minSymbolLength = 2
	maxSymbolLength = 30
	minAPIKeyLength = 8
	maxAPIKeyLength = 256
)

// ValidateExchangeID проверяет, что идентификатор биржи поддерживается.
// Сравнение регистронезависимое: "Binance" и "binance" эквивалентны.
func ValidateExchangeID(exchangeID string) error {
	id := strings.ToLower(strings.TrimSpace(exchangeID))
	if id == "" {
		return ErrUnknownExchange
	}
	for _, supported := range SupportedExchanges {
		if id == supported {
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrUnknownExchange, exchangeID)
}

// NormalizeExchangeID приводит идентификатор биржи к каноническому виду
func NormalizeExchangeID(exchangeID string) string {
	return strings.ToLower(strings.TrimSpace(exchangeID))
}

// ValidateSymbol проверяет формат торгового символа.
// Допускаются буквы, цифры и разделители -, _, / (BTCUSDT, BTC-USDT, btc/usdt).
func ValidateSymbol(symbol string) error {
	if symbol == "" {
		return ErrEmptySymbol
	}
	if len(symbol) < minSymbolLength || len(symbol) > maxSymbolLength {
		return fmt.Errorf("%w: length must be %d-%d characters", ErrInvalidSymbol, minSymbolLength, maxSymbolLength)
	}
	if !symbolPattern.MatchString(symbol) {
		return fmt.Errorf("%w: %q", ErrInvalidSymbol, symbol)
	}
	return nil
}

// NormalizeSymbol приводит символ к каноническому виду:
// верхний регистр, без разделителей (btc-usdt -> BTCUSDT)
func NormalizeSymbol(symbol string) string {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	s = strings.NewReplacer("-", "", "_", "", "/", "").Replace(s)
	return s
}

// ValidateAPIKey выполняет базовую проверку API ключа.
// Формат ключей у каждой биржи свой, поэтому проверяется только
// разумная длина и отсутствие пробельных символов.
func ValidateAPIKey(apiKey string) error {
	if apiKey == "" {
		return ErrEmptyAPIKey
	}
	if len(apiKey) < minAPIKeyLength {
		return fmt.Errorf("api key too short: minimum %d characters", minAPIKeyLength)
	}
	if len(apiKey) > maxAPIKeyLength {
		return fmt.Errorf("api key too long: maximum %d characters", maxAPIKeyLength)
	}
	if strings.ContainsAny(apiKey, " \t\n\r") {
		return errors.New("api key contains whitespace")
	}
	return nil
}

// ValidateUserID проверяет идентификатор пользователя
func ValidateUserID(userID string) error {
	if strings.TrimSpace(userID) == "" {
		return ErrEmptyUserID
	}
	return nil
}
