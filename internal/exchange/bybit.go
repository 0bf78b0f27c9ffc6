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

const (
	bybitBaseURL    = "https://api.bybit.com"
	bybitRecvWindow = "5000"
)

// Bybit реализует интерфейс Adapter для Bybit API v5.
// Балансы берутся с UNIFIED аккаунта, сделки из execution list,
// позиции из деривативного position list (category=linear).
type Bybit struct {
	creds   models.ExchangeCredentials
	baseURL string
	client  *http.Client
}

// NewBybit создаёт адаптер Bybit
func NewBybit(creds models.ExchangeCredentials, opts ...Option) *Bybit {
	o := applyOptions(bybitBaseURL, opts)
	return &Bybit{
		creds:   creds,
		baseURL: o.baseURL,
		client:  o.client,
	}
}

func (b *Bybit) ID() string {
	return "bybit"
}

// doSigned выполняет подписанный GET запрос к Bybit API v5.
// Подпись передаётся в заголовках X-BAPI-*.
func (b *Bybit) doSigned(ctx context.Context, endpoint string, query url.Values) ([]byte, error) {
	encoded := query.Encode()
	reqURL := b.baseURL + endpoint
	if encoded != "" {
		reqURL += "?" + encoded
	}

	timestamp := strconv.FormatInt(time.Now().UnixMilli(), 10)
	signature := sign.Bybit(b.creds.APISecret, timestamp, b.creds.APIKey, bybitRecvWindow, encoded)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-BAPI-API-KEY", b.creds.APIKey)
	req.Header.Set("X-BAPI-SIGN", signature)
	req.Header.Set("X-BAPI-TIMESTAMP", timestamp)
	req.Header.Set("X-BAPI-RECV-WINDOW", bybitRecvWindow)

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, &APIError{Exchange: "bybit", Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var baseResp struct {
		RetCode int    `json:"retCode"`
		RetMsg  string `json:"retMsg"`
	}
	if err := json.Unmarshal(body, &baseResp); err != nil {
		return nil, fmt.Errorf("bybit: decode response envelope: %w", err)
	}
	if baseResp.RetCode != 0 {
		return nil, &APIError{
			Exchange: "bybit",
			Code:     strconv.Itoa(baseResp.RetCode),
			Message:  baseResp.RetMsg,
		}
	}

	return body, nil
}

func (b *Bybit) TestConnection(ctx context.Context) error {
	query := url.Values{}
	query.Set("accountType", "UNIFIED")
	_, err := b.doSigned(ctx, "/v5/account/wallet-balance", query)
	return err
}

func (b *Bybit) GetBalances(ctx context.Context) ([]models.ExchangeBalance, error) {
	query := url.Values{}
	query.Set("accountType", "UNIFIED")

	body, err := b.doSigned(ctx, "/v5/account/wallet-balance", query)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Result struct {
			List []struct {
				Coin []struct {
					Coin          string `json:"coin"`
					WalletBalance string `json:"walletBalance"`
					Locked        string `json:"locked"`
				} `json:"coin"`
			} `json:"list"`
		} `json:"result"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("bybit: decode wallet balance response: %w", err)
	}

	var balances []models.ExchangeBalance
	for _, account := range resp.Result.List {
		for _, coin := range account.Coin {
			total, _ := strconv.ParseFloat(coin.WalletBalance, 64)
			if total == 0 {
				continue
			}
			locked, _ := strconv.ParseFloat(coin.Locked, 64)
			free := total - locked
			if free < 0 {
				free = 0
			}

			balances = append(balances, models.ExchangeBalance{
				Asset:  coin.Coin,
				Free:   free,
				Locked: locked,
				Total:  total,
			})
		}
	}

	return balances, nil
}

func (b *Bybit) GetTrades(ctx context.Context, symbols []string, since time.Time) ([]models.ExchangeTrade, error) {
	var trades []models.ExchangeTrade

	for _, symbol := range symbols {
		query := url.Values{}
		query.Set("category", "spot")
		query.Set("symbol", strings.ToUpper(symbol))
		query.Set("limit", "100")
		if !since.IsZero() {
			query.Set("startTime", strconv.FormatInt(since.UnixMilli(), 10))
		}

		body, err := b.doSigned(ctx, "/v5/execution/list", query)
		if err != nil {
			return nil, err
		}

		var resp struct {
			Result struct {
				List []struct {
					ExecID      string `json:"execId"`
					OrderID     string `json:"orderId"`
					Symbol      string `json:"symbol"`
					Side        string `json:"side"`
					ExecPrice   string `json:"execPrice"`
					ExecQty     string `json:"execQty"`
					ExecFee     string `json:"execFee"`
					FeeCurrency string `json:"feeCurrency"`
					ExecTime    string `json:"execTime"`
				} `json:"list"`
			} `json:"result"`
		}
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, fmt.Errorf("bybit: decode execution list response: %w", err)
		}

		for _, item := range resp.Result.List {
			price, _ := strconv.ParseFloat(item.ExecPrice, 64)
			qty, _ := strconv.ParseFloat(item.ExecQty, 64)
			fee, _ := strconv.ParseFloat(item.ExecFee, 64)
			ts, _ := strconv.ParseInt(item.ExecTime, 10, 64)

			side := models.TradeSideSell
			if item.Side == "Buy" {
				side = models.TradeSideBuy
			}

			feeCurrency := item.FeeCurrency
			if feeCurrency == "" {
				feeCurrency = quoteCurrency(item.Symbol)
			}

			trades = append(trades, models.ExchangeTrade{
				ID:          item.ExecID,
				Symbol:      item.Symbol,
				Side:        side,
				Price:       price,
				Quantity:    qty,
				Fee:         fee,
				FeeCurrency: feeCurrency,
				Timestamp:   time.UnixMilli(ts).UTC(),
				OrderID:     item.OrderID,
			})
		}
	}

	return trades, nil
}

func (b *Bybit) GetPositions(ctx context.Context) ([]models.ExchangePosition, error) {
	query := url.Values{}
	query.Set("category", "linear")
	query.Set("settleCoin", "USDT")

	body, err := b.doSigned(ctx, "/v5/position/list", query)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Result struct {
			List []struct {
				Symbol        string `json:"symbol"`
				Side          string `json:"side"`
				Size          string `json:"size"`
				AvgPrice      string `json:"avgPrice"`
				MarkPrice     string `json:"markPrice"`
				UnrealisedPnl string `json:"unrealisedPnl"`
				Leverage      string `json:"leverage"`
				TradeMode     int    `json:"tradeMode"`
			} `json:"list"`
		} `json:"result"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("bybit: decode position list response: %w", err)
	}

	var positions []models.ExchangePosition
	for _, item := range resp.Result.List {
		size, _ := strconv.ParseFloat(item.Size, 64)
		if size == 0 {
			continue
		}

		entry, _ := strconv.ParseFloat(item.AvgPrice, 64)
		mark, _ := strconv.ParseFloat(item.MarkPrice, 64)
		pnl, _ := strconv.ParseFloat(item.UnrealisedPnl, 64)
		leverage, _ := strconv.ParseFloat(item.Leverage, 64)

		// Bybit обозначает направление позиции стороной входа
		side := models.SideLong
		if item.Side == "Sell" {
			side = models.SideShort
		}

		marginType := "cross"
		if item.TradeMode == 1 {
			marginType = "isolated"
		}

		positions = append(positions, models.ExchangePosition{
			Symbol:        item.Symbol,
			Side:          side,
			Size:          size,
			EntryPrice:    entry,
			MarkPrice:     mark,
			UnrealizedPnl: pnl,
			Leverage:      int(leverage),
			MarginType:    marginType,
		})
	}

	return positions, nil
}
