package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"cryptofolio/internal/models"
	"cryptofolio/pkg/utils"
)

// PortfolioService - агрегация снапшотов портфелей по пользователю.
// Работает только с кэшем снапшотов: синхронизация с биржами -
// обязанность SyncService, здесь никаких сетевых вызовов нет.
type PortfolioService struct {
	cache  PortfolioCacheInterface
	trades TradeRepositoryInterface
	logger utils.Logger
}

// NewPortfolioService создает сервис портфелей
func NewPortfolioService(cache PortfolioCacheInterface, trades TradeRepositoryInterface, logger utils.Logger) *PortfolioService {
	return &PortfolioService{cache: cache, trades: trades, logger: logger}
}

// GetExchange возвращает снапшот одной учётной записи
func (p *PortfolioService) GetExchange(ctx context.Context, credentialID string) (*models.ExchangePortfolio, error) {
	return p.cache.Get(ctx, credentialID)
}

// GetAggregated собирает объединённый портфель пользователя.
//
// Инварианты агрегата:
//   - TotalValue = сумма TotalUsdValue всех бирж
//   - AllBalances слиты по активу и отсортированы по убыванию UsdValue
//   - Degraded = true, если хоть одна биржа degraded
//
// Пользователь без снапшотов получает пустой агрегат, а не ошибку.
func (p *PortfolioService) GetAggregated(ctx context.Context, userID string) (*models.AggregatedPortfolio, error) {
	snapshots, err := p.cache.GetByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	aggregated := &models.AggregatedPortfolio{
		UserID:    userID,
		UpdatedAt: time.Now().UTC(),
	}
	if len(snapshots) == 0 {
		return aggregated, nil
	}

	// Детерминированный порядок бирж в ответе
	sort.Slice(snapshots, func(i, j int) bool {
		if snapshots[i].ExchangeID != snapshots[j].ExchangeID {
			return snapshots[i].ExchangeID < snapshots[j].ExchangeID
		}
		return snapshots[i].CredentialID < snapshots[j].CredentialID
	})

	merged := make(map[string]*models.ExchangeBalance)
	for _, snapshot := range snapshots {
		aggregated.Exchanges = append(aggregated.Exchanges, *snapshot)
		aggregated.TotalValue += snapshot.TotalUsdValue
		aggregated.Degraded = aggregated.Degraded || snapshot.Degraded

		for _, balance := range snapshot.Balances {
			asset := strings.ToUpper(balance.Asset)
			if existing, ok := merged[asset]; ok {
				existing.Free += balance.Free
				existing.Locked += balance.Locked
				existing.Total += balance.Total
				existing.UsdValue += balance.UsdValue
			} else {
				b := balance
				b.Asset = asset
				merged[asset] = &b
			}
		}
	}

	aggregated.AllBalances = make([]models.ExchangeBalance, 0, len(merged))
	for _, balance := range merged {
		aggregated.AllBalances = append(aggregated.AllBalances, *balance)
	}
	sort.SliceStable(aggregated.AllBalances, func(i, j int) bool {
		if aggregated.AllBalances[i].UsdValue != aggregated.AllBalances[j].UsdValue {
			return aggregated.AllBalances[i].UsdValue > aggregated.AllBalances[j].UsdValue
		}
		return aggregated.AllBalances[i].Asset < aggregated.AllBalances[j].Asset
	})

	return aggregated, nil
}

// GetTrades возвращает сохранённую историю сделок записи
func (p *PortfolioService) GetTrades(ctx context.Context, credentialID string, since time.Time, limit int) ([]models.ExchangeTrade, error) {
	if limit <= 0 || limit > 1000 {
		limit = 1000
	}
	return p.trades.GetByCredential(credentialID, since, limit)
}

// Forget удаляет снапшот и историю сделок учётной записи.
// Вызывается при удалении самой записи из Vault.
func (p *PortfolioService) Forget(ctx context.Context, userID, credentialID string) error {
	if err := p.trades.DeleteByCredential(credentialID); err != nil {
		return err
	}
	if err := p.cache.Delete(ctx, userID, credentialID); err != nil {
		p.logger.Warnf("credential %s: snapshot delete failed: %s", credentialID, err)
	}
	return nil
}
