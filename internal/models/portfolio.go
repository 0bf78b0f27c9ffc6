package models

import "time"

// ExchangeBalance - один актив на одной бирже после нормализации адаптером.
// Инвариант: Total = Free + Locked. UsdValue заполняется на этапе
// агрегации, адаптеры его не трогают.
type ExchangeBalance struct {
	Asset    string  `json:"asset"`
	Free     float64 `json:"free"`
	Locked   float64 `json:"locked"`
	Total    float64 `json:"total"`
	UsdValue float64 `json:"usd_value,omitempty"`
}

// ExchangePosition - деривативная позиция (только для бирж с фьючерсами).
type ExchangePosition struct {
	Symbol        string  `json:"symbol"`
	Side          string  `json:"side"` // long / short
	Size          float64 `json:"size"`
	EntryPrice    float64 `json:"entry_price"`
	MarkPrice     float64 `json:"mark_price"`
	UnrealizedPnl float64 `json:"unrealized_pnl"`
	Leverage      int     `json:"leverage"`
	MarginType    string  `json:"margin_type,omitempty"` // cross / isolated
}

// Стороны позиций
const (
	SideLong  = "long"
	SideShort = "short"
)

// ExchangePortfolio - полный снимок одной биржи.
// Снимок производный: кэшируется и целиком заменяется при каждой успешной
// синхронизации, частично никогда не мутируется.
// Инвариант: TotalUsdValue = сумма UsdValue всех балансов.
type ExchangePortfolio struct {
	CredentialID  string             `json:"credential_id"`
	ExchangeID    string             `json:"exchange_id"`
	Balances      []ExchangeBalance  `json:"balances"`
	Positions     []ExchangePosition `json:"positions,omitempty"`
	TotalUsdValue float64            `json:"total_usd_value"`
	Degraded      bool               `json:"degraded,omitempty"` // часть активов оценена в 0 из-за недоступности цен
	LastUpdated   time.Time          `json:"last_updated"`
}

// AggregatedPortfolio - объединённый портфель пользователя по всем биржам.
type AggregatedPortfolio struct {
	UserID      string              `json:"user_id"`
	TotalValue  float64             `json:"total_value"`
	Exchanges   []ExchangePortfolio `json:"exchanges"`
	AllBalances []ExchangeBalance   `json:"all_balances"` // слиты по активу, отсортированы по убыванию UsdValue
	Degraded    bool                `json:"degraded,omitempty"`
	UpdatedAt   time.Time           `json:"updated_at"`
}
