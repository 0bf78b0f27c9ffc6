package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"cryptofolio/internal/exchange"
	"cryptofolio/internal/models"
	"cryptofolio/pkg/ratelimit"
	"cryptofolio/pkg/utils"
)

// DefaultSyncTimeout ограничивает синхронизацию одной учётной записи
const DefaultSyncTimeout = 2 * time.Minute

// SyncService - оркестратор синхронизации аккаунтов.
//
// Жизненный цикл одной синхронизации:
//
//	расшифровка ключей -> rate limit -> балансы -> сделки -> позиции ->
//	оценка в USD -> снапшот в KV -> статус в БД -> уведомление
//
// Провал любой биржи изолирован: SyncAll продолжает остальные записи
// и отдаёт по SyncResult на каждую.
type SyncService struct {
	vault    *VaultService
	creds    CredentialRepositoryInterface
	trades   TradeRepositoryInterface
	cache    PortfolioCacheInterface
	prices   *PriceService
	factory  AdapterFactory
	limiter  *ratelimit.MultiLimiter
	notifier Notifier
	metrics  *Metrics
	logger   utils.Logger
	timeout  time.Duration
}

// SyncConfig - зависимости оркестратора
type SyncConfig struct {
	Vault       *VaultService
	Credentials CredentialRepositoryInterface
	Trades      TradeRepositoryInterface
	Cache       PortfolioCacheInterface
	Prices      *PriceService
	Factory     AdapterFactory
	Limiter     *ratelimit.MultiLimiter
	Notifier    Notifier
	Metrics     *Metrics
	Logger      utils.Logger
	Timeout     time.Duration
}

// NewSyncService создает оркестратор синхронизации
func NewSyncService(cfg SyncConfig) *SyncService {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultSyncTimeout
	}
	notifier := cfg.Notifier
	if notifier == nil {
		notifier = NopNotifier{}
	}
	limiter := cfg.Limiter
	if limiter == nil {
		limiter = ratelimit.NewMultiLimiter()
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = NopMetrics()
	}

	return &SyncService{
		vault:    cfg.Vault,
		creds:    cfg.Credentials,
		trades:   cfg.Trades,
		cache:    cfg.Cache,
		prices:   cfg.Prices,
		factory:  cfg.Factory,
		limiter:  limiter,
		notifier: notifier,
		metrics:  metrics,
		logger:   cfg.Logger,
		timeout:  timeout,
	}
}

// Sync синхронизирует одну учётную запись.
//
// SyncResult возвращается и при провале - с заполненным Error.
// Ошибка из сигнатуры означает только невозможность начать работу
// (запись не найдена или отключена).
func (s *SyncService) Sync(ctx context.Context, credentialID string) (*models.SyncResult, error) {
	record, err := s.creds.GetByID(credentialID)
	if err != nil {
		return nil, mapRepoErr(err)
	}
	if record.IsDisabled() {
		return nil, ErrCredentialDisabled
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	started := time.Now()
	result := s.syncRecord(ctx, record)
	s.metrics.SyncDuration.WithLabelValues(record.ExchangeID).Observe(time.Since(started).Seconds())

	// last_sync_at отмечает каждую попытку, успех различается по статусу
	syncedAt := time.Now().UTC()
	if result.Success {
		s.metrics.SyncTotal.WithLabelValues(record.ExchangeID, "success").Inc()
		if err := s.creds.UpdateSyncStatus(record.ID, models.SyncStatusActive, "", syncedAt); err != nil {
			s.logger.Errorf("credential %s: update status failed: %s", record.ID, err)
		}
	} else {
		s.metrics.SyncTotal.WithLabelValues(record.ExchangeID, "error").Inc()
		s.logger.Warnf("credential %s: sync failed: %s", record.ID, result.Error)
		if err := s.creds.UpdateSyncStatus(record.ID, models.SyncStatusError, result.Error, syncedAt); err != nil {
			s.logger.Errorf("credential %s: update status failed: %s", record.ID, err)
		}
	}

	s.notifier.NotifySyncResult(record.UserID, result)
	return result, nil
}

// syncRecord выполняет сам цикл синхронизации, не трогая статусы
func (s *SyncService) syncRecord(ctx context.Context, record *models.EncryptedCredentials) *models.SyncResult {
	result := &models.SyncResult{
		CredentialID: record.ID,
		ExchangeID:   record.ExchangeID,
		SyncedAt:     time.Now().UTC(),
	}

	creds, err := s.vault.Get(ctx, record.ID)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	if creds == nil {
		// Шифротекст не расшифровался - детали уже в логах Vault
		result.Error = "credentials cannot be decrypted"
		return result
	}

	adapter, err := s.factory(record.ExchangeID, *creds)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	if err := s.limiter.Wait(ctx, record.ExchangeID); err != nil {
		result.Error = "rate limit wait: " + err.Error()
		return result
	}

	balances, err := adapter.GetBalances(ctx)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	// Сделки тянем инкрементально от последней сохранённой
	since, err := s.trades.LastTradeTime(record.ID)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	if err := s.limiter.Wait(ctx, record.ExchangeID); err != nil {
		result.Error = "rate limit wait: " + err.Error()
		return result
	}

	trades, err := adapter.GetTrades(ctx, tradeSymbols(balances), since)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	saved, err := s.trades.SaveAll(record.ID, record.ExchangeID, trades)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	if saved > 0 {
		s.metrics.TradesSaved.WithLabelValues(record.ExchangeID).Add(float64(saved))
	}

	// Позиции есть не у всех бирж - ErrNotSupported не провал
	positions, err := adapter.GetPositions(ctx)
	if err != nil && !errors.Is(err, exchange.ErrNotSupported) {
		result.Error = err.Error()
		return result
	}

	valued, total, degraded := s.prices.Value(ctx, balances)

	portfolio := &models.ExchangePortfolio{
		CredentialID:  record.ID,
		ExchangeID:    record.ExchangeID,
		Balances:      valued,
		Positions:     positions,
		TotalUsdValue: total,
		Degraded:      degraded,
		LastUpdated:   time.Now().UTC(),
	}

	if err := s.cache.Save(ctx, record.UserID, portfolio); err != nil {
		result.Error = "save snapshot: " + err.Error()
		return result
	}

	s.metrics.PortfolioUSD.WithLabelValues(record.ExchangeID, record.ID).Set(total)
	s.notifier.NotifyPortfolio(record.UserID, portfolio)

	result.Success = true
	result.Balances = valued
	result.TradeCount = saved
	return result
}

// ImportTrades выполняет точечный импорт истории сделок без полного цикла
// синхронизации. Пустой список symbols означает "вывести пары из балансов".
// Возвращает количество новых (не дублей) сделок.
func (s *SyncService) ImportTrades(ctx context.Context, credentialID string, symbols []string, since time.Time) (int, error) {
	record, err := s.creds.GetByID(credentialID)
	if err != nil {
		return 0, mapRepoErr(err)
	}
	if record.IsDisabled() {
		return 0, ErrCredentialDisabled
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	creds, err := s.vault.Get(ctx, record.ID)
	if err != nil {
		return 0, err
	}
	if creds == nil {
		return 0, errors.New("credentials cannot be decrypted")
	}

	adapter, err := s.factory(record.ExchangeID, *creds)
	if err != nil {
		return 0, err
	}

	if len(symbols) == 0 {
		if err := s.limiter.Wait(ctx, record.ExchangeID); err != nil {
			return 0, err
		}
		balances, err := adapter.GetBalances(ctx)
		if err != nil {
			return 0, err
		}
		symbols = tradeSymbols(balances)
	}

	if err := s.limiter.Wait(ctx, record.ExchangeID); err != nil {
		return 0, err
	}
	trades, err := adapter.GetTrades(ctx, symbols, since)
	if err != nil {
		return 0, err
	}

	saved, err := s.trades.SaveAll(record.ID, record.ExchangeID, trades)
	if err != nil {
		return 0, err
	}
	if saved > 0 {
		s.metrics.TradesSaved.WithLabelValues(record.ExchangeID).Add(float64(saved))
	}
	return saved, nil
}

// SyncAll синхронизирует все записи пользователя параллельно.
// Disabled записи пропускаются. Порядок результатов соответствует
// порядку записей пользователя.
func (s *SyncService) SyncAll(ctx context.Context, userID string) ([]*models.SyncResult, error) {
	records, err := s.creds.GetByUser(userID)
	if err != nil {
		return nil, err
	}

	var active []*models.EncryptedCredentials
	for _, record := range records {
		if !record.IsDisabled() {
			active = append(active, record)
		}
	}
	if len(active) == 0 {
		return nil, nil
	}

	results := make([]*models.SyncResult, len(active))
	var wg sync.WaitGroup

	for i, record := range active {
		wg.Add(1)
		go func(i int, credentialID string) {
			defer wg.Done()

			result, err := s.Sync(ctx, credentialID)
			if err != nil {
				// Запись исчезла или отключена между выборкой и запуском
				result = &models.SyncResult{
					CredentialID: credentialID,
					Error:        err.Error(),
					SyncedAt:     time.Now().UTC(),
				}
			}
			results[i] = result
		}(i, record.ID)
	}

	wg.Wait()
	return results, nil
}

// RunPeriodic запускает фоновую синхронизацию всех активных записей
// с заданным интервалом. Блокирует до отмены контекста.
func (s *SyncService) RunPeriodic(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 15 * time.Minute
	}

	s.logger.Infof("periodic sync started: interval=%s", interval)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Infof("periodic sync stopped")
			return
		case <-ticker.C:
			s.syncAllSyncable(ctx)
		}
	}
}

func (s *SyncService) syncAllSyncable(ctx context.Context) {
	records, err := s.creds.GetSyncable()
	if err != nil {
		s.logger.Errorf("periodic sync: load credentials: %s", err)
		return
	}

	for _, record := range records {
		if ctx.Err() != nil {
			return
		}
		if _, err := s.Sync(ctx, record.ID); err != nil {
			s.logger.Warnf("periodic sync: credential %s: %s", record.ID, err)
		}
	}
}

// tradeSymbols выводит список торговых пар для импорта сделок из балансов:
// по паре к USDT на каждый нестейбловый актив. Биржи не умеют отдавать
// историю "по всем парам сразу", а балансы - лучшая эвристика того,
// чем аккаунт торговал.
func tradeSymbols(balances []models.ExchangeBalance) []string {
	var symbols []string
	for _, b := range balances {
		asset := strings.ToUpper(b.Asset)
		if stablecoins[asset] {
			continue
		}
		symbols = append(symbols, asset+"USDT")
	}
	return symbols
}
