// Package exchange предоставляет унифицированный интерфейс адаптеров
// для read-only доступа к аккаунтам на поддерживаемых биржах.
package exchange

import (
	"context"
	"errors"
	"time"

	jsoniter "github.com/json-iterator/go"

	"cryptofolio/internal/models"
)

// Биржевые API отдают большие JSON ответы (история сделок, балансы
// по сотням монет), jsoniter разбирает их заметно быстрее encoding/json.
var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrNotSupported возвращается операциями, которых нет у конкретной биржи
// (например, фьючерсные позиции на spot-only аккаунте).
var ErrNotSupported = errors.New("operation not supported by exchange")

// Adapter определяет унифицированный интерфейс адаптера биржи.
//
// Адаптер создаётся фабрикой с уже расшифрованными учётными данными
// и не хранит ничего, кроме них: всё состояние синхронизации живёт
// в оркестраторе. Все операции строго read-only.
type Adapter interface {
	// ID возвращает идентификатор биржи ("binance", "kraken", ...)
	ID() string

	// TestConnection проверяет валидность учётных данных дешёвым
	// приватным запросом. Используется при добавлении ключей.
	TestConnection(ctx context.Context) error

	// GetBalances возвращает ненулевые балансы аккаунта.
	// Названия активов приводятся к каноническим тикерам (BTC, ETH).
	GetBalances(ctx context.Context) ([]models.ExchangeBalance, error)

	// GetTrades возвращает историю сделок по указанным символам
	// начиная с момента since. Пустой список символов - пустой результат:
	// большинство бирж не умеют отдавать сделки сразу по всем парам.
	GetTrades(ctx context.Context, symbols []string, since time.Time) ([]models.ExchangeTrade, error)

	// GetPositions возвращает открытые деривативные позиции.
	// Биржи без деривативного API возвращают ErrNotSupported.
	GetPositions(ctx context.Context) ([]models.ExchangePosition, error)
}

// APIError представляет ошибку, возвращённую API биржи
type APIError struct {
	Exchange string
	Code     string
	Message  string
	Err      error
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return e.Exchange + " [" + e.Code + "]: " + e.Message
	}
	return e.Exchange + ": " + e.Message
}

// Unwrap возвращает исходную ошибку для errors.Is() и errors.As()
func (e *APIError) Unwrap() error {
	return e.Err
}
