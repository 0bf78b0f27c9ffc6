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

const okxBaseURL = "https://www.okx.com"

// OKX реализует интерфейс Adapter для OKX API v5.
//
// OKX требует passphrase в дополнение к ключу и секрету, timestamp
// в ISO-8601 с миллисекундами, а в подпись входит path ВМЕСТЕ с query.
type OKX struct {
	creds   models.ExchangeCredentials
	baseURL string
	client  *http.Client
}

// NewOKX создаёт адаптер OKX
func NewOKX(creds models.ExchangeCredentials, opts ...Option) *OKX {
	o := applyOptions(okxBaseURL, opts)
	return &OKX{
		creds:   creds,
		baseURL: o.baseURL,
		client:  o.client,
	}
}

func (o *OKX) ID() string {
	return "okx"
}

// doSigned выполняет подписанный GET запрос к OKX API v5
func (o *OKX) doSigned(ctx context.Context, path string, query url.Values) ([]byte, error) {
	requestPath := path
	if len(query) > 0 {
		requestPath += "?" + query.Encode()
	}

	timestamp := time.Now().UTC().Format("2006-01-02T15:04:05.000Z")
	signature := sign.OKX(o.creds.APISecret, timestamp, http.MethodGet, requestPath, "")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.baseURL+requestPath, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("OK-ACCESS-KEY", o.creds.APIKey)
	req.Header.Set("OK-ACCESS-SIGN", signature)
	req.Header.Set("OK-ACCESS-TIMESTAMP", timestamp)
	req.Header.Set("OK-ACCESS-PASSPHRASE", o.creds.Passphrase)

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, &APIError{Exchange: "okx", Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	// OKX кладёт код ошибки в тело: code != "0" означает отказ
	var envelope struct {
		Code string `json:"code"`
		Msg  string `json:"msg"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("okx: decode response envelope: %w", err)
	}
	if envelope.Code != "0" {
		return nil, &APIError{
			Exchange: "okx",
			Code:     envelope.Code,
			Message:  envelope.Msg,
		}
	}

	return body, nil
}

func (o *OKX) TestConnection(ctx context.Context) error {
	_, err := o.doSigned(ctx, "/api/v5/account/balance", nil)
	return err
}

func (o *OKX) GetBalances(ctx context.Context) ([]models.ExchangeBalance, error) {
	body, err := o.doSigned(ctx, "/api/v5/account/balance", nil)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Data []struct {
			Details []struct {
				Ccy       string `json:"ccy"`
				AvailBal  string `json:"availBal"`
				FrozenBal string `json:"frozenBal"`
			} `json:"details"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("okx: decode balance response: %w", err)
	}

	var balances []models.ExchangeBalance
	for _, account := range resp.Data {
		for _, detail := range account.Details {
			free, _ := strconv.ParseFloat(detail.AvailBal, 64)
			locked, _ := strconv.ParseFloat(detail.FrozenBal, 64)
			total := free + locked
			if total == 0 {
				continue
			}

			balances = append(balances, models.ExchangeBalance{
				Asset:  detail.Ccy,
				Free:   free,
				Locked: locked,
				Total:  total,
			})
		}
	}

	return balances, nil
}

func (o *OKX) GetTrades(ctx context.Context, symbols []string, since time.Time) ([]models.ExchangeTrade, error) {
	var trades []models.ExchangeTrade

	for _, symbol := range symbols {
		query := url.Values{}
		query.Set("instType", "SPOT")
		query.Set("instId", normalizeOKXInstID(symbol))
		if !since.IsZero() {
			query.Set("begin", strconv.FormatInt(since.UnixMilli(), 10))
		}

		body, err := o.doSigned(ctx, "/api/v5/trade/fills-history", query)
		if err != nil {
			return nil, err
		}

		var resp struct {
			Data []struct {
				TradeID string `json:"tradeId"`
				OrdID   string `json:"ordId"`
				InstID  string `json:"instId"`
				Side    string `json:"side"`
				FillPx  string `json:"fillPx"`
				FillSz  string `json:"fillSz"`
				Fee     string `json:"fee"`
				FeeCcy  string `json:"feeCcy"`
				TS      string `json:"ts"`
			} `json:"data"`
		}
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, fmt.Errorf("okx: decode fills response: %w", err)
		}

		for _, fill := range resp.Data {
			price, _ := strconv.ParseFloat(fill.FillPx, 64)
			size, _ := strconv.ParseFloat(fill.FillSz, 64)
			// OKX отдаёт комиссию отрицательным числом
			fee, _ := strconv.ParseFloat(fill.Fee, 64)
			if fee < 0 {
				fee = -fee
			}
			ts, _ := strconv.ParseInt(fill.TS, 10, 64)

			side := models.TradeSideSell
			if fill.Side == "buy" {
				side = models.TradeSideBuy
			}

			trades = append(trades, models.ExchangeTrade{
				ID:          fill.TradeID,
				Symbol:      fill.InstID,
				Side:        side,
				Price:       price,
				Quantity:    size,
				Fee:         fee,
				FeeCurrency: fill.FeeCcy,
				Timestamp:   time.UnixMilli(ts).UTC(),
				OrderID:     fill.OrdID,
			})
		}
	}

	return trades, nil
}

func (o *OKX) GetPositions(ctx context.Context) ([]models.ExchangePosition, error) {
	body, err := o.doSigned(ctx, "/api/v5/account/positions", nil)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Data []struct {
			InstID  string `json:"instId"`
			PosSide string `json:"posSide"`
			Pos     string `json:"pos"`
			AvgPx   string `json:"avgPx"`
			MarkPx  string `json:"markPx"`
			Upl     string `json:"upl"`
			Lever   string `json:"lever"`
			MgnMode string `json:"mgnMode"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("okx: decode positions response: %w", err)
	}

	var positions []models.ExchangePosition
	for _, item := range resp.Data {
		size, _ := strconv.ParseFloat(item.Pos, 64)
		if size == 0 {
			continue
		}

		entry, _ := strconv.ParseFloat(item.AvgPx, 64)
		mark, _ := strconv.ParseFloat(item.MarkPx, 64)
		upl, _ := strconv.ParseFloat(item.Upl, 64)
		leverage, _ := strconv.ParseFloat(item.Lever, 64)

		// В net режиме posSide = "net", направление определяет знак pos
		side := models.SideLong
		if item.PosSide == "short" || (item.PosSide == "net" && size < 0) {
			side = models.SideShort
		}
		if size < 0 {
			size = -size
		}

		positions = append(positions, models.ExchangePosition{
			Symbol:        item.InstID,
			Side:          side,
			Size:          size,
			EntryPrice:    entry,
			MarkPrice:     mark,
			UnrealizedPnl: upl,
			Leverage:      int(leverage),
			MarginType:    item.MgnMode,
		})
	}

	return positions, nil
}

// normalizeOKXInstID приводит символ к формату OKX (BTC-USDT).
// Символы без дефиса разбиваются по известным валютам котировки.
func normalizeOKXInstID(symbol string) string {
	if strings.Contains(symbol, "-") {
		return strings.ToUpper(symbol)
	}
	upper := strings.ToUpper(symbol)
	for _, quote := range []string{"USDT", "USDC", "USD", "BTC", "ETH"} {
		if strings.HasSuffix(upper, quote) && len(upper) > len(quote) {
			return upper[:len(upper)-len(quote)] + "-" + quote
		}
	}
	return upper
}
