package service

import (
	"context"
	"time"

	"cryptofolio/internal/exchange"
	"cryptofolio/internal/models"
)

// CredentialRepositoryInterface определяет интерфейс репозитория учётных данных
type CredentialRepositoryInterface interface {
	Create(cred *models.EncryptedCredentials) error
	GetByID(id string) (*models.EncryptedCredentials, error)
	GetByUser(userID string) ([]*models.EncryptedCredentials, error)
	GetSyncable() ([]*models.EncryptedCredentials, error)
	UpdateSyncStatus(id, status, errorMessage string, syncedAt time.Time) error
	SetDisabled(id string, disabled bool) error
	Delete(id string) error
}

// TradeRepositoryInterface определяет интерфейс репозитория сделок
type TradeRepositoryInterface interface {
	SaveAll(credentialID, exchangeID string, trades []models.ExchangeTrade) (int, error)
	GetByCredential(credentialID string, since time.Time, limit int) ([]models.ExchangeTrade, error)
	LastTradeTime(credentialID string) (time.Time, error)
	DeleteByCredential(credentialID string) error
}

// PortfolioCacheInterface определяет интерфейс хранилища снапшотов портфелей
type PortfolioCacheInterface interface {
	Save(ctx context.Context, userID string, portfolio *models.ExchangePortfolio) error
	Get(ctx context.Context, credentialID string) (*models.ExchangePortfolio, error)
	GetByUser(ctx context.Context, userID string) ([]*models.ExchangePortfolio, error)
	Delete(ctx context.Context, userID, credentialID string) error
}

// PriceSource определяет интерфейс внешнего ценового фида
type PriceSource interface {
	GetPrices(ctx context.Context, assets []string) (map[string]float64, error)
}

// AdapterFactory создаёт адаптер биржи из расшифрованных учётных данных.
// В тестах подменяется фабрикой фейковых адаптеров.
type AdapterFactory func(exchangeID string, creds models.ExchangeCredentials) (exchange.Adapter, error)

// Notifier рассылает события синхронизации подписчикам (WebSocket дашборда).
// Реализация не должна блокировать вызывающего.
type Notifier interface {
	NotifySyncResult(userID string, result *models.SyncResult)
	NotifyPortfolio(userID string, portfolio *models.ExchangePortfolio)
}

// VaultServiceInterface определяет интерфейс хранилища ключей для API handlers
type VaultServiceInterface interface {
	Add(ctx context.Context, userID, exchangeID string, creds models.ExchangeCredentials) (*models.EncryptedCredentials, error)
	List(ctx context.Context, userID string) ([]*models.EncryptedCredentials, error)
	SetDisabled(ctx context.Context, credentialID string, disabled bool) error
	Delete(ctx context.Context, credentialID string) error
}

var _ VaultServiceInterface = (*VaultService)(nil)

// SyncServiceInterface определяет интерфейс оркестратора синхронизации
type SyncServiceInterface interface {
	Sync(ctx context.Context, credentialID string) (*models.SyncResult, error)
	SyncAll(ctx context.Context, userID string) ([]*models.SyncResult, error)
	ImportTrades(ctx context.Context, credentialID string, symbols []string, since time.Time) (int, error)
}

var _ SyncServiceInterface = (*SyncService)(nil)

// PortfolioServiceInterface определяет интерфейс чтения портфелей
type PortfolioServiceInterface interface {
	GetExchange(ctx context.Context, credentialID string) (*models.ExchangePortfolio, error)
	GetAggregated(ctx context.Context, userID string) (*models.AggregatedPortfolio, error)
	GetTrades(ctx context.Context, credentialID string, since time.Time, limit int) ([]models.ExchangeTrade, error)
	Forget(ctx context.Context, userID, credentialID string) error
}

var _ PortfolioServiceInterface = (*PortfolioService)(nil)

// NopNotifier - заглушка для конфигураций без WebSocket
type NopNotifier struct{}

func (NopNotifier) NotifySyncResult(userID string, result *models.SyncResult) {}

func (NopNotifier) NotifyPortfolio(userID string, portfolio *models.ExchangePortfolio) {}
