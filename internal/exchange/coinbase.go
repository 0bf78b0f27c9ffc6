package exchange

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"cryptofolio/internal/exchange/sign"
	"cryptofolio/internal/models"
)

const coinbaseBaseURL = "https://api.coinbase.com"

// Coinbase реализует интерфейс Adapter для Coinbase Advanced Trade API v3.
// Балансы - /api/v3/brokerage/accounts, сделки - /api/v3/brokerage/orders/historical/fills.
type Coinbase struct {
	creds   models.ExchangeCredentials
	baseURL string
	client  *http.Client
}

// NewCoinbase создаёт адаптер Coinbase
func NewCoinbase(creds models.ExchangeCredentials, opts ...Option) *Coinbase {
	o := applyOptions(coinbaseBaseURL, opts)
	return &Coinbase{
		creds:   creds,
		baseURL: o.baseURL,
		client:  o.client,
	}
}

func (c *Coinbase) ID() string {
	return "coinbase"
}

// doSigned выполняет подписанный GET запрос.
// В подпись входит path БЕЗ query string, timestamp в unix секундах.
func (c *Coinbase) doSigned(ctx context.Context, path string, query url.Values) ([]byte, error) {
	timestamp := strconv.FormatInt(time.Now().Unix(), 10)
	signature := sign.Coinbase(c.creds.APISecret, timestamp, http.MethodGet, path, "")

	reqURL := c.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("CB-ACCESS-KEY", c.creds.APIKey)
	req.Header.Set("CB-ACCESS-SIGN", signature)
	req.Header.Set("CB-ACCESS-TIMESTAMP", timestamp)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &APIError{Exchange: "coinbase", Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error   string `json:"error"`
			Message string `json:"message"`
		}
		if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Message != "" {
			return nil, &APIError{
				Exchange: "coinbase",
				Code:     apiErr.Error,
				Message:  apiErr.Message,
			}
		}
		return nil, &APIError{
			Exchange: "coinbase",
			Code:     strconv.Itoa(resp.StatusCode),
			Message:  "unexpected status " + resp.Status,
		}
	}

	return body, nil
}

func (c *Coinbase) TestConnection(ctx context.Context) error {
	query := url.Values{}
	query.Set("limit", "1")
	_, err := c.doSigned(ctx, "/api/v3/brokerage/accounts", query)
	return err
}

func (c *Coinbase) GetBalances(ctx context.Context) ([]models.ExchangeBalance, error) {
	var balances []models.ExchangeBalance
	cursor := ""

	// accounts отдаётся страницами по 250
	for {
		query := url.Values{}
		query.Set("limit", "250")
		if cursor != "" {
			query.Set("cursor", cursor)
		}

		body, err := c.doSigned(ctx, "/api/v3/brokerage/accounts", query)
		if err != nil {
			return nil, err
		}

		var resp struct {
			Accounts []struct {
				Currency         string `json:"currency"`
				AvailableBalance struct {
					Value string `json:"value"`
				} `json:"available_balance"`
				Hold struct {
					Value string `json:"value"`
				} `json:"hold"`
			} `json:"accounts"`
			HasNext bool   `json:"has_next"`
			Cursor  string `json:"cursor"`
		}
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, fmt.Errorf("coinbase: decode accounts response: %w", err)
		}

		for _, acc := range resp.Accounts {
			free, _ := strconv.ParseFloat(acc.AvailableBalance.Value, 64)
			locked, _ := strconv.ParseFloat(acc.Hold.Value, 64)
			total := free + locked
			if total == 0 {
				continue
			}

			balances = append(balances, models.ExchangeBalance{
				Asset:  acc.Currency,
				Free:   free,
				Locked: locked,
				Total:  total,
			})
		}

		if !resp.HasNext || resp.Cursor == "" {
			break
		}
		cursor = resp.Cursor
	}

	return balances, nil
}

func (c *Coinbase) GetTrades(ctx context.Context, symbols []string, since time.Time) ([]models.ExchangeTrade, error) {
	var trades []models.ExchangeTrade

	// fills фильтруются по одному product_id за запрос
	for _, symbol := range symbols {
		query := url.Values{}
		query.Set("product_id", symbol)
		query.Set("limit", "100")
		if !since.IsZero() {
			query.Set("start_sequence_timestamp", since.UTC().Format(time.RFC3339))
		}

		body, err := c.doSigned(ctx, "/api/v3/brokerage/orders/historical/fills", query)
		if err != nil {
			return nil, err
		}

		var resp struct {
			Fills []struct {
				EntryID    string    `json:"entry_id"`
				OrderID    string    `json:"order_id"`
				ProductID  string    `json:"product_id"`
				Side       string    `json:"side"`
				Price      string    `json:"price"`
				Size       string    `json:"size"`
				Commission string    `json:"commission"`
				TradeTime  time.Time `json:"trade_time"`
			} `json:"fills"`
		}
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, fmt.Errorf("coinbase: decode fills response: %w", err)
		}

		for _, fill := range resp.Fills {
			price, _ := strconv.ParseFloat(fill.Price, 64)
			size, _ := strconv.ParseFloat(fill.Size, 64)
			fee, _ := strconv.ParseFloat(fill.Commission, 64)

			side := models.TradeSideSell
			if fill.Side == "BUY" {
				side = models.TradeSideBuy
			}

			trades = append(trades, models.ExchangeTrade{
				ID:          fill.EntryID,
				Symbol:      fill.ProductID,
				Side:        side,
				Price:       price,
				Quantity:    size,
				Fee:         fee,
				FeeCurrency: quoteCurrency(fill.ProductID),
				Timestamp:   fill.TradeTime.UTC(),
				OrderID:     fill.OrderID,
			})
		}
	}

	return trades, nil
}

// GetPositions: brokerage API деривативных позиций не отдаёт
func (c *Coinbase) GetPositions(ctx context.Context) ([]models.ExchangePosition, error) {
	return nil, ErrNotSupported
}
