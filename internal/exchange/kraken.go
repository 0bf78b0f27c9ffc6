package exchange

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"cryptofolio/internal/exchange/sign"
	"cryptofolio/internal/models"
)

const krakenBaseURL = "https://api.kraken.com"

// Kraken реализует интерфейс Adapter для биржи Kraken.
//
// Особенности API:
//   - все приватные запросы идут POST'ом с form-encoded телом и nonce
//   - ответ завёрнут в {"error": [...], "result": {...}}
//   - активы с историческими префиксами X/Z (XXBT, ZUSD) и суффиксами
//     стейкинга (.S), которые нужно нормализовать
//   - Balance отдаёт только суммарный баланс без разделения free/locked
type Kraken struct {
	creds   models.ExchangeCredentials
	baseURL string
	client  *http.Client
}

// NewKraken создаёт адаптер Kraken
func NewKraken(creds models.ExchangeCredentials, opts ...Option) *Kraken {
	o := applyOptions(krakenBaseURL, opts)
	return &Kraken{
		creds:   creds,
		baseURL: o.baseURL,
		client:  o.client,
	}
}

func (k *Kraken) ID() string {
	return "kraken"
}

// doPrivate выполняет подписанный POST запрос к приватному Kraken API
func (k *Kraken) doPrivate(ctx context.Context, path string, params url.Values) ([]byte, error) {
	if params == nil {
		params = url.Values{}
	}
	nonce := strconv.FormatInt(time.Now().UnixMilli(), 10)
	params.Set("nonce", nonce)
	body := params.Encode()

	signature, err := sign.Kraken(k.creds.APISecret, path, nonce, body)
	if err != nil {
		return nil, &APIError{Exchange: "kraken", Message: "invalid secret", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, k.baseURL+path, strings.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("API-Key", k.creds.APIKey)
	req.Header.Set("API-Sign", signature)

	resp, err := k.client.Do(req)
	if err != nil {
		return nil, &APIError{Exchange: "kraken", Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	// Kraken всегда отвечает 200, ошибки лежат в error массиве
	var envelope struct {
		Error []string `json:"error"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("kraken: decode response envelope: %w", err)
	}
	if len(envelope.Error) > 0 {
		return nil, &APIError{
			Exchange: "kraken",
			Code:     envelope.Error[0],
			Message:  strings.Join(envelope.Error, "; "),
		}
	}

	return raw, nil
}

func (k *Kraken) TestConnection(ctx context.Context) error {
	_, err := k.doPrivate(ctx, "/0/private/Balance", nil)
	return err
}

// GetBalances возвращает балансы аккаунта.
// Kraken не разделяет свободные и заблокированные средства в Balance,
// поэтому весь баланс считается свободным.
func (k *Kraken) GetBalances(ctx context.Context) ([]models.ExchangeBalance, error) {
	raw, err := k.doPrivate(ctx, "/0/private/Balance", nil)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Result map[string]string `json:"result"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("kraken: decode balance response: %w", err)
	}

	balances := make([]models.ExchangeBalance, 0, len(resp.Result))
	for asset, amountStr := range resp.Result {
		amount, _ := strconv.ParseFloat(amountStr, 64)
		if amount == 0 {
			continue
		}

		balances = append(balances, models.ExchangeBalance{
			Asset:  normalizeKrakenAsset(asset),
			Free:   amount,
			Locked: 0,
			Total:  amount,
		})
	}

	return balances, nil
}

func (k *Kraken) GetTrades(ctx context.Context, symbols []string, since time.Time) ([]models.ExchangeTrade, error) {
	if len(symbols) == 0 {
		return nil, nil
	}

	params := url.Values{}
	if !since.IsZero() {
		params.Set("start", strconv.FormatInt(since.Unix(), 10))
	}

	// TradesHistory отдаёт сделки по всем парам сразу, фильтруем по запрошенным
	raw, err := k.doPrivate(ctx, "/0/private/TradesHistory", params)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Result struct {
			Trades map[string]struct {
				OrderTxID string  `json:"ordertxid"`
				Pair      string  `json:"pair"`
				Time      float64 `json:"time"`
				Type      string  `json:"type"`
				Price     string  `json:"price"`
				Fee       string  `json:"fee"`
				Vol       string  `json:"vol"`
			} `json:"trades"`
		} `json:"result"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("kraken: decode trades response: %w", err)
	}

	wanted := make(map[string]bool, len(symbols))
	for _, s := range symbols {
		wanted[strings.ToUpper(s)] = true
	}

	var trades []models.ExchangeTrade
	for txid, item := range resp.Result.Trades {
		pair := normalizeKrakenPair(item.Pair)
		if !wanted[pair] {
			continue
		}

		price, _ := strconv.ParseFloat(item.Price, 64)
		vol, _ := strconv.ParseFloat(item.Vol, 64)
		fee, _ := strconv.ParseFloat(item.Fee, 64)

		side := models.TradeSideSell
		if item.Type == "buy" {
			side = models.TradeSideBuy
		}

		sec, frac := int64(item.Time), item.Time-float64(int64(item.Time))

		trades = append(trades, models.ExchangeTrade{
			ID:          txid,
			Symbol:      pair,
			Side:        side,
			Price:       price,
			Quantity:    vol,
			Fee:         fee,
			FeeCurrency: quoteCurrency(pair),
			Timestamp:   time.Unix(sec, int64(frac*1e9)).UTC(),
			OrderID:     item.OrderTxID,
		})
	}

	return trades, nil
}

// GetPositions: spot API Kraken деривативных позиций не отдаёт
// (фьючерсы живут на отдельном домене futures.kraken.com)
func (k *Kraken) GetPositions(ctx context.Context) ([]models.ExchangePosition, error) {
	return nil, ErrNotSupported
}

// krakenAssetAliases - исторические имена активов Kraken.
// Префикс X обозначает криптовалюту, Z - фиат; XBT - биткоин.
var krakenAssetAliases = map[string]string{
	"XXBT": "BTC",
	"XBT":  "BTC",
	"XETH": "ETH",
	"XXRP": "XRP",
	"XLTC": "LTC",
	"XXLM": "XLM",
	"XXMR": "XMR",
	"XZEC": "ZEC",
	"XXDG": "DOGE",
	"XDG":  "DOGE",
	"ZUSD": "USD",
	"ZEUR": "EUR",
	"ZGBP": "GBP",
	"ZJPY": "JPY",
	"ZCAD": "CAD",
	"ZAUD": "AUD",
}

// normalizeKrakenAsset приводит актив Kraken к каноническому тикеру:
// XXBT -> BTC, ZUSD -> USD, ETH2.S -> ETH2 (суффикс стейкинга)
func normalizeKrakenAsset(asset string) string {
	// Суффиксы .S (staked), .F (flexible earn), .M (opt-in rewards)
	if idx := strings.IndexByte(asset, '.'); idx > 0 {
		asset = asset[:idx]
	}
	if canonical, ok := krakenAssetAliases[asset]; ok {
		return canonical
	}
	return asset
}

// normalizeKrakenPair приводит пару Kraken к каноническому виду:
// XXBTZUSD -> BTCUSD, XBTUSDT -> BTCUSDT. Пары без алиасов
// возвращаются как есть.
func normalizeKrakenPair(pair string) string {
	// Старые пары имеют вид X<base>Z<quote> с 4-символьными частями
	if len(pair) == 8 && pair[0] == 'X' && pair[4] == 'Z' {
		base := normalizeKrakenAsset(pair[:4])
		quote := normalizeKrakenAsset(pair[4:])
		return base + quote
	}

	pair = strings.ToUpper(pair)

	// Современные пары склеены без префиксов, но XBT и XDG Kraken
	// сохраняет и в них
	if strings.HasPrefix(pair, "XBT") {
		return "BTC" + pair[3:]
	}
	if strings.HasPrefix(pair, "XDG") {
		return "DOGE" + pair[3:]
	}

	return pair
}

// quoteCurrency извлекает валюту котировки из символа для поля fee currency.
// Kraken берёт комиссию в валюте котировки.
func quoteCurrency(pair string) string {
	for _, quote := range []string{"USDT", "USDC", "USD", "EUR", "GBP", "BTC", "ETH"} {
		if strings.HasSuffix(pair, quote) && len(pair) > len(quote) {
			return quote
		}
	}
	return ""
}
