package service

import (
	"context"
	"sort"
	"strings"

	"cryptofolio/internal/models"
	"cryptofolio/pkg/utils"
)

// stablecoins оцениваются в 1 USD без обращения к фиду.
// Фиатный USD приравнен сюда же: оценка портфеля ведётся в долларах.
var stablecoins = map[string]bool{
	"USD":  true,
	"USDT": true,
	"USDC": true,
	"BUSD": true,
	"DAI":  true,
	"TUSD": true,
	"USDP": true,
	"GUSD": true,
}

// PriceService - резолвер USD цен для оценки балансов.
type PriceService struct {
	source PriceSource
	logger utils.Logger
}

// NewPriceService создает резолвер цен
func NewPriceService(source PriceSource, logger utils.Logger) *PriceService {
	return &PriceService{source: source, logger: logger}
}

// Resolve возвращает USD цены для списка активов.
//
// Стейблкоины получают цену 1.0 сразу, остальные уходят в фид одним
// batch запросом. Активы без цены отсутствуют в результате - это
// сигнал degraded оценки, а не ошибка. Ошибка возвращается только
// при полном отказе фида.
func (p *PriceService) Resolve(ctx context.Context, assets []string) (map[string]float64, error) {
	prices := make(map[string]float64, len(assets))
	var unknown []string

	for _, asset := range assets {
		upper := strings.ToUpper(asset)
		if _, done := prices[upper]; done {
			continue
		}
		if stablecoins[upper] {
			prices[upper] = 1.0
			continue
		}
		unknown = append(unknown, upper)
	}

	if len(unknown) == 0 {
		return prices, nil
	}

	fetched, err := p.source.GetPrices(ctx, unknown)
	if err != nil {
		// Стейблкоины уже оценены - отдаём их, помечая провал фида
		p.logger.Warnf("price feed unavailable: %s", err)
		return prices, err
	}

	for asset, price := range fetched {
		prices[strings.ToUpper(asset)] = price
	}

	return prices, nil
}

// Value оценивает балансы в USD.
//
// Возвращает балансы с заполненным UsdValue, суммарную стоимость и
// флаг degraded: true, если хотя бы один актив остался без цены
// (его вклад в сумму - ноль, количество сохранено).
func (p *PriceService) Value(ctx context.Context, balances []models.ExchangeBalance) ([]models.ExchangeBalance, float64, bool) {
	if len(balances) == 0 {
		return nil, 0, false
	}

	assets := make([]string, 0, len(balances))
	for _, b := range balances {
		assets = append(assets, b.Asset)
	}

	prices, err := p.Resolve(ctx, assets)
	degraded := err != nil

	valued := make([]models.ExchangeBalance, len(balances))
	total := 0.0
	for i, b := range balances {
		price, ok := prices[strings.ToUpper(b.Asset)]
		if !ok {
			degraded = true
		}

		b.UsdValue = b.Total * price // price = 0 для неоценённых
		valued[i] = b
		total += b.UsdValue
	}

	// Дорогие активы сверху
	sort.SliceStable(valued, func(i, j int) bool {
		return valued[i].UsdValue > valued[j].UsdValue
	})

	return valued, total, degraded
}
