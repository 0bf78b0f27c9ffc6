package exchange

import (
	"fmt"
	"net/http"
	"strings"

	"cryptofolio/internal/models"
)

// SupportedExchanges - список поддерживаемых бирж
var SupportedExchanges = []string{
	"binance",
	"coinbase",
	"kraken",
	"okx",
	"bybit",
}

// Option настраивает адаптер при создании.
// WithBaseURL используется в тестах для подмены API биржи на httptest сервер.
type Option func(*adapterOptions)

type adapterOptions struct {
	baseURL string
	client  *http.Client
}

// WithBaseURL подменяет базовый URL API биржи
func WithBaseURL(baseURL string) Option {
	return func(o *adapterOptions) {
		o.baseURL = strings.TrimSuffix(baseURL, "/")
	}
}

// WithHTTPClient подменяет HTTP клиент
func WithHTTPClient(client *http.Client) Option {
	return func(o *adapterOptions) {
		o.client = client
	}
}

func applyOptions(defaultBaseURL string, opts []Option) adapterOptions {
	o := adapterOptions{
		baseURL: defaultBaseURL,
		client:  GetGlobalHTTPClient(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// NewAdapter создаёт адаптер биржи по идентификатору.
// Учётные данные передаются уже расшифрованными - адаптер их не хранит
// нигде, кроме собственной памяти, и никуда не логирует.
func NewAdapter(exchangeID string, creds models.ExchangeCredentials, opts ...Option) (Adapter, error) {
	switch strings.ToLower(exchangeID) {
	case "binance":
		return NewBinance(creds, opts...), nil
	case "coinbase":
		return NewCoinbase(creds, opts...), nil
	case "kraken":
		return NewKraken(creds, opts...), nil
	case "okx":
		return NewOKX(creds, opts...), nil
	case "bybit":
		return NewBybit(creds, opts...), nil
	default:
		return nil, fmt.Errorf("unsupported exchange: %s", exchangeID)
	}
}

// IsSupported проверяет, поддерживается ли биржа
func IsSupported(exchangeID string) bool {
	exchangeID = strings.ToLower(exchangeID)
	for _, supported := range SupportedExchanges {
		if exchangeID == supported {
			return true
		}
	}
	return false
}
