package exchange

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"cryptofolio/internal/exchange/sign"
	"cryptofolio/internal/models"
)

const (
	binanceBaseURL    = "https://api.binance.com"
	binanceRecvWindow = "5000"
)

// Binance реализует интерфейс Adapter для биржи Binance.
// Используется spot API v3: балансы через /api/v3/account,
// история сделок через /api/v3/myTrades (по одному символу за запрос).
type Binance struct {
	creds   models.ExchangeCredentials
	baseURL string
	client  *http.Client
}

// NewBinance создаёт адаптер Binance
func NewBinance(creds models.ExchangeCredentials, opts ...Option) *Binance {
	o := applyOptions(binanceBaseURL, opts)
	return &Binance{
		creds:   creds,
		baseURL: o.baseURL,
		client:  o.client,
	}
}

func (b *Binance) ID() string {
	return "binance"
}

// doSigned выполняет подписанный GET запрос к Binance API.
// Подпись - HMAC-SHA256 от query string, добавляется параметром signature.
func (b *Binance) doSigned(ctx context.Context, endpoint string, params map[string]string) ([]byte, error) {
	if params == nil {
		params = make(map[string]string)
	}
	params["timestamp"] = strconv.FormatInt(time.Now().UnixMilli(), 10)
	params["recvWindow"] = binanceRecvWindow

	query := sign.BinanceQuery(params)
	signature := sign.Binance(b.creds.APISecret, query)
	reqURL := b.baseURL + endpoint + "?" + query + "&signature=" + signature

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-MBX-APIKEY", b.creds.APIKey)

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, &APIError{Exchange: "binance", Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		// Binance возвращает {"code": -1022, "msg": "..."} при ошибке
		var apiErr struct {
			Code int    `json:"code"`
			Msg  string `json:"msg"`
		}
		if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Msg != "" {
			return nil, &APIError{
				Exchange: "binance",
				Code:     strconv.Itoa(apiErr.Code),
				Message:  apiErr.Msg,
			}
		}
		return nil, &APIError{
			Exchange: "binance",
			Code:     strconv.Itoa(resp.StatusCode),
			Message:  "unexpected status " + resp.Status,
		}
	}

	return body, nil
}

func (b *Binance) TestConnection(ctx context.Context) error {
	_, err := b.doSigned(ctx, "/api/v3/account", nil)
	return err
}

func (b *Binance) GetBalances(ctx context.Context) ([]models.ExchangeBalance, error) {
	body, err := b.doSigned(ctx, "/api/v3/account", nil)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Balances []struct {
			Asset  string `json:"asset"`
			Free   string `json:"free"`
			Locked string `json:"locked"`
		} `json:"balances"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("binance: decode account response: %w", err)
	}

	balances := make([]models.ExchangeBalance, 0, len(resp.Balances))
	for _, item := range resp.Balances {
		free, _ := strconv.ParseFloat(item.Free, 64)
		locked, _ := strconv.ParseFloat(item.Locked, 64)
		total := free + locked
		if total == 0 {
			continue
		}

		balances = append(balances, models.ExchangeBalance{
			Asset:  normalizeBinanceAsset(item.Asset),
			Free:   free,
			Locked: locked,
			Total:  total,
		})
	}

	return balances, nil
}

func (b *Binance) GetTrades(ctx context.Context, symbols []string, since time.Time) ([]models.ExchangeTrade, error) {
	var trades []models.ExchangeTrade

	// myTrades отдаёт сделки только по одному символу за запрос
	for _, symbol := range symbols {
		params := map[string]string{
			"symbol": strings.ToUpper(symbol),
			"limit":  "1000",
		}
		if !since.IsZero() {
			params["startTime"] = strconv.FormatInt(since.UnixMilli(), 10)
		}

		body, err := b.doSigned(ctx, "/api/v3/myTrades", params)
		if err != nil {
			return nil, err
		}

		var resp []struct {
			ID              int64  `json:"id"`
			OrderID         int64  `json:"orderId"`
			Symbol          string `json:"symbol"`
			Price           string `json:"price"`
			Qty             string `json:"qty"`
			Commission      string `json:"commission"`
			CommissionAsset string `json:"commissionAsset"`
			Time            int64  `json:"time"`
			IsBuyer         bool   `json:"isBuyer"`
		}
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, fmt.Errorf("binance: decode trades response: %w", err)
		}

		for _, item := range resp {
			price, _ := strconv.ParseFloat(item.Price, 64)
			qty, _ := strconv.ParseFloat(item.Qty, 64)
			fee, _ := strconv.ParseFloat(item.Commission, 64)

			side := models.TradeSideSell
			if item.IsBuyer {
				side = models.TradeSideBuy
			}

			trades = append(trades, models.ExchangeTrade{
				ID:          strconv.FormatInt(item.ID, 10),
				Symbol:      item.Symbol,
				Side:        side,
				Price:       price,
				Quantity:    qty,
				Fee:         fee,
				FeeCurrency: item.CommissionAsset,
				Timestamp:   time.UnixMilli(item.Time).UTC(),
				OrderID:     strconv.FormatInt(item.OrderID, 10),
			})
		}
	}

	return trades, nil
}

// GetPositions: у spot аккаунта Binance деривативных позиций нет
func (b *Binance) GetPositions(ctx context.Context) ([]models.ExchangePosition, error) {
	return nil, ErrNotSupported
}

// normalizeBinanceAsset убирает префикс LD у активов в Binance Earn
// (LDBTC - это тот же BTC, размещённый в flexible savings).
// Остаток короче двух символов не трогаем, чтобы не искалечить
// настоящие тикеры вроде LDO.
func normalizeBinanceAsset(asset string) string {
	if strings.HasPrefix(asset, "LD") && len(asset) >= 4 {
		return asset[2:]
	}
	return asset
}
