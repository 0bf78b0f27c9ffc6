// Package pricefeed получает спотовые USD цены активов из внешнего фида.
package pricefeed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"

	"cryptofolio/pkg/retry"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const defaultBaseURL = "https://api.coingecko.com/api/v3"

// Config - настройки клиента ценового фида
type Config struct {
	BaseURL string        // default: публичный CoinGecko API
	APIKey  string        // опциональный ключ (x-cg-demo-api-key)
	Timeout time.Duration // default: 10s
}

// Client - клиент CoinGecko simple/price API.
//
// Все запрошенные активы уходят одним batch запросом: эндпоинт
// принимает список id через запятую. Активы, неизвестные фиду,
// просто отсутствуют в ответе - клиент не считает это ошибкой.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewClient создаёт клиент ценового фида
func NewClient(cfg Config) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: timeout},
	}
}

// coinIDs - соответствие тикера и идентификатора CoinGecko.
// Тикер не уникален глобально, поэтому соответствие фиксируется
// на самые ликвидные монеты.
var coinIDs = map[string]string{
	"BTC":   "bitcoin",
	"ETH":   "ethereum",
	"USDT":  "tether",
	"USDC":  "usd-coin",
	"BNB":   "binancecoin",
	"XRP":   "ripple",
	"SOL":   "solana",
	"ADA":   "cardano",
	"DOGE":  "dogecoin",
	"DOT":   "polkadot",
	"MATIC": "matic-network",
	"LTC":   "litecoin",
	"TRX":   "tron",
	"AVAX":  "avalanche-2",
	"LINK":  "chainlink",
	"ATOM":  "cosmos",
	"XLM":   "stellar",
	"XMR":   "monero",
	"ETC":   "ethereum-classic",
	"NEAR":  "near",
	"APT":   "aptos",
	"ARB":   "arbitrum",
	"OP":    "optimism",
	"UNI":   "uniswap",
	"AAVE":  "aave",
	"LDO":   "lido-dao",
	"ZEC":   "zcash",
	"DAI":   "dai",
	"BUSD":  "binance-usd",
	"SHIB":  "shiba-inu",
	"FIL":   "filecoin",
	"ALGO":  "algorand",
}

// GetPrices возвращает USD цены для указанных тикеров одним запросом.
//
// Результат содержит только активы, известные фиду: отсутствие цены
// не ошибка, вызывающий сам решает, что делать с пробелами.
// Сетевые сбои повторяются с backoff, HTTP 4xx - нет.
func (c *Client) GetPrices(ctx context.Context, assets []string) (map[string]float64, error) {
	if len(assets) == 0 {
		return map[string]float64{}, nil
	}

	// Собираем id и обратное соответствие id -> тикер
	idToAsset := make(map[string]string, len(assets))
	ids := make([]string, 0, len(assets))
	for _, asset := range assets {
		id, ok := coinIDs[strings.ToUpper(asset)]
		if !ok {
			continue
		}
		if _, dup := idToAsset[id]; dup {
			continue
		}
		idToAsset[id] = strings.ToUpper(asset)
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return map[string]float64{}, nil
	}

	query := url.Values{}
	query.Set("ids", strings.Join(ids, ","))
	query.Set("vs_currencies", "usd")
	reqURL := c.baseURL + "/simple/price?" + query.Encode()

	body, err := retry.DoWithResult(ctx, func() ([]byte, error) {
		return c.fetch(ctx, reqURL)
	}, withRetryPolicy())
	if err != nil {
		return nil, err
	}

	// Ответ: {"bitcoin": {"usd": 43000.5}, ...}
	var resp map[string]map[string]float64
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("pricefeed: decode response: %w", err)
	}

	prices := make(map[string]float64, len(resp))
	for id, quote := range resp {
		asset, ok := idToAsset[id]
		if !ok {
			continue
		}
		if usd, ok := quote["usd"]; ok {
			prices[asset] = usd
		}
	}

	return prices, nil
}

func (c *Client) fetch(ctx context.Context, reqURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, retry.Permanent(err)
	}
	if c.apiKey != "" {
		req.Header.Set("x-cg-demo-api-key", c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return body, nil
	case resp.StatusCode == http.StatusTooManyRequests:
		// 429 стоит повторить после backoff
		return nil, fmt.Errorf("pricefeed: rate limited (status %d)", resp.StatusCode)
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return nil, retry.Permanent(fmt.Errorf("pricefeed: request rejected (status %d)", resp.StatusCode))
	default:
		return nil, fmt.Errorf("pricefeed: unexpected status %d", resp.StatusCode)
	}
}

func withRetryPolicy() retry.Config {
	cfg := retry.PriceFeedConfig()
	cfg.RetryIf = retry.NotPermanent
	return cfg
}

// KnownAsset сообщает, умеет ли фид оценивать актив
func KnownAsset(asset string) bool {
	_, ok := coinIDs[strings.ToUpper(asset)]
	return ok
}
