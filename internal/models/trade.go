package models

import "time"

// Стороны сделок
const (
	TradeSideBuy  = "buy"
	TradeSideSell = "sell"
)

// ExchangeTrade - одно исполнение (fill) на бирже.
// ID уникален в пределах биржи; Timestamp - биржевое время сделки,
// а не время импорта.
type ExchangeTrade struct {
	ID          string    `json:"id"`
	Symbol      string    `json:"symbol"`
	Side        string    `json:"side"`
	Price       float64   `json:"price"`
	Quantity    float64   `json:"quantity"`
	Fee         float64   `json:"fee"`
	FeeCurrency string    `json:"fee_currency"`
	Timestamp   time.Time `json:"timestamp"`
	OrderID     string    `json:"order_id,omitempty"`
}

// SyncResult - результат одной попытки синхронизации.
// Error заполнен тогда и только тогда, когда Success=false.
// Частичный провал при SyncAll - ожидаемый исход, а не исключение:
// по одному SyncResult на каждую учётную запись.
type SyncResult struct {
	Success      bool              `json:"success"`
	CredentialID string            `json:"credential_id"`
	ExchangeID   string            `json:"exchange_id"`
	Balances     []ExchangeBalance `json:"balances,omitempty"`
	TradeCount   int               `json:"trade_count,omitempty"`
	Error        string            `json:"error,omitempty"`
	SyncedAt     time.Time         `json:"synced_at"`
}
