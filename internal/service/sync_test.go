package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"cryptofolio/internal/models"
	"cryptofolio/pkg/utils"
)

func newTestSync(t *testing.T, repo *MockCredentialRepository, adapter *fakeAdapter, prices map[string]float64) (*SyncService, *MockPortfolioCache, *MockTradeRepository, *recordingNotifier) {
	t.Helper()

	vault := newTestVault(t, repo, adapter)
	cache := NewMockPortfolioCache()
	trades := NewMockTradeRepository()
	notifier := &recordingNotifier{}

	svc := NewSyncService(SyncConfig{
		Vault:       vault,
		Credentials: repo,
		Trades:      trades,
		Cache:       cache,
		Prices:      NewPriceService(NewMockPriceSource(prices), utils.NewNopLogger()),
		Factory:     fakeFactory(adapter),
		Notifier:    notifier,
		Logger:      utils.NewNopLogger(),
	})
	return svc, cache, trades, notifier
}

func seedCredential(t *testing.T, repo *MockCredentialRepository, vault *VaultService, userID, exchangeID string) string {
	t.Helper()
	record, err := vault.Add(context.Background(), userID, exchangeID, models.ExchangeCredentials{
		APIKey:    "seeded-api-key-123",
		APISecret: "seeded-secret",
	})
	if err != nil {
		t.Fatalf("seed credential: %v", err)
	}
	return record.ID
}

// TestSyncSuccess проверяет полный успешный цикл синхронизации
func TestSyncSuccess(t *testing.T) {
	repo := NewMockCredentialRepository()
	adapter := &fakeAdapter{
		balances: []models.ExchangeBalance{
			{Asset: "BTC", Free: 1, Total: 1},
			{Asset: "USDT", Free: 100, Total: 100},
		},
		trades: []models.ExchangeTrade{
			{ID: "t-1", Symbol: "BTCUSDT", Side: models.TradeSideBuy, Price: 40000, Quantity: 1, Timestamp: time.Now()},
		},
	}
	svc, cache, trades, notifier := newTestSync(t, repo, adapter, map[string]float64{"BTC": 40000})
	credentialID := seedCredential(t, repo, svc.vault, "user-1", "binance")

	result, err := svc.Sync(context.Background(), credentialID)
	if err != nil {
		t.Fatalf("Sync failed: %v", err)
	}

	if !result.Success || result.Error != "" {
		t.Fatalf("expected success, got %+v", result)
	}
	if result.TradeCount != 1 {
		t.Errorf("trade count = %d, want 1", result.TradeCount)
	}

	// Снапшот сохранён и оценён
	snapshot, err := cache.Get(context.Background(), credentialID)
	if err != nil {
		t.Fatalf("snapshot missing: %v", err)
	}
	if snapshot.TotalUsdValue != 40000+100 {
		t.Errorf("snapshot total = %f, want 40100", snapshot.TotalUsdValue)
	}
	if snapshot.Degraded {
		t.Error("snapshot should not be degraded")
	}

	// Сделки сохранены
	saved, _ := trades.GetByCredential(credentialID, time.Time{}, 0)
	if len(saved) != 1 {
		t.Errorf("expected 1 saved trade, got %d", len(saved))
	}

	// Статус обновлён
	record, _ := repo.GetByID(credentialID)
	if record.SyncStatus != models.SyncStatusActive || record.LastSyncAt == nil {
		t.Errorf("status not updated: %+v", record)
	}

	// Уведомления отправлены
	if len(notifier.results) != 1 || len(notifier.portfolios) != 1 {
		t.Errorf("notifications: %d results, %d portfolios, want 1/1", len(notifier.results), len(notifier.portfolios))
	}
}

// TestSyncExchangeFailure проверяет перевод записи в статус error
func TestSyncExchangeFailure(t *testing.T) {
	repo := NewMockCredentialRepository()
	adapter := &fakeAdapter{}
	svc, _, _, _ := newTestSync(t, repo, adapter, nil)
	credentialID := seedCredential(t, repo, svc.vault, "user-1", "kraken")

	// Ломаем биржу после успешного добавления
	adapter.balancesErr = errors.New("503 service unavailable")

	result, err := svc.Sync(context.Background(), credentialID)
	if err != nil {
		t.Fatalf("Sync returned error instead of failed result: %v", err)
	}

	if result.Success {
		t.Fatal("expected failed result")
	}
	if result.Error == "" {
		t.Error("failed result must carry an error message")
	}

	record, _ := repo.GetByID(credentialID)
	if record.SyncStatus != models.SyncStatusError {
		t.Errorf("sync status = %q, want error", record.SyncStatus)
	}
	if record.ErrorMessage == "" {
		t.Error("error message must be persisted")
	}
	// Время попытки отмечается и при провале
	if record.LastSyncAt == nil {
		t.Error("LastSyncAt must be stamped after a failed sync")
	}
}

// TestSyncDisabled проверяет отказ синхронизировать отключённую запись
func TestSyncDisabled(t *testing.T) {
	repo := NewMockCredentialRepository()
	adapter := &fakeAdapter{}
	svc, _, _, _ := newTestSync(t, repo, adapter, nil)
	credentialID := seedCredential(t, repo, svc.vault, "user-1", "binance")

	if err := repo.SetDisabled(credentialID, true); err != nil {
		t.Fatalf("SetDisabled failed: %v", err)
	}

	if _, err := svc.Sync(context.Background(), credentialID); !errors.Is(err, ErrCredentialDisabled) {
		t.Errorf("expected ErrCredentialDisabled, got %v", err)
	}
}

// TestSyncCorruptCredentials проверяет провал без паники на битом шифротексте
func TestSyncCorruptCredentials(t *testing.T) {
	repo := NewMockCredentialRepository()
	adapter := &fakeAdapter{}
	svc, _, _, _ := newTestSync(t, repo, adapter, nil)

	record := &models.EncryptedCredentials{
		UserID:     "user-1",
		ExchangeID: "binance",
		Ciphertext: "Y29ycnVwdA==",
		IV:         "AAAAAAAAAAAAAAAA",
	}
	if err := repo.Create(record); err != nil {
		t.Fatalf("seed record: %v", err)
	}

	result, err := svc.Sync(context.Background(), record.ID)
	if err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	if result.Success {
		t.Fatal("corrupt credentials must fail the sync")
	}
	if result.Error != "credentials cannot be decrypted" {
		t.Errorf("unexpected error message: %q", result.Error)
	}
}

// TestSyncAllPartialFailure проверяет изоляцию провалов:
// одна сломанная биржа не мешает остальным
func TestSyncAllPartialFailure(t *testing.T) {
	repo := NewMockCredentialRepository()
	adapter := &fakeAdapter{
		balances: []models.ExchangeBalance{{Asset: "USDT", Free: 100, Total: 100}},
	}
	svc, _, _, _ := newTestSync(t, repo, adapter, nil)

	okID := seedCredential(t, repo, svc.vault, "user-1", "binance")
	badID := seedCredential(t, repo, svc.vault, "user-1", "kraken")
	disabledID := seedCredential(t, repo, svc.vault, "user-1", "bybit")
	if err := repo.SetDisabled(disabledID, true); err != nil {
		t.Fatalf("SetDisabled failed: %v", err)
	}

	// kraken ломается на уровне расшифровки: портим шифротекст записи
	if record, _ := repo.GetByID(badID); record != nil {
		repo.mu.Lock()
		repo.records[badID].Ciphertext = "Y29ycnVwdA=="
		repo.mu.Unlock()
	}

	results, err := svc.SyncAll(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("SyncAll failed: %v", err)
	}

	// Disabled запись пропущена
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}

	byID := make(map[string]*models.SyncResult)
	for _, r := range results {
		byID[r.CredentialID] = r
	}

	if !byID[okID].Success {
		t.Errorf("healthy credential must sync: %+v", byID[okID])
	}
	if byID[badID].Success {
		t.Errorf("corrupt credential must fail: %+v", byID[badID])
	}
}

// TestSyncNotFound проверяет ошибку для несуществующей записи
func TestSyncNotFound(t *testing.T) {
	repo := NewMockCredentialRepository()
	svc, _, _, _ := newTestSync(t, repo, &fakeAdapter{}, nil)

	if _, err := svc.Sync(context.Background(), "missing"); !errors.Is(err, ErrCredentialNotFound) {
		t.Errorf("expected ErrCredentialNotFound, got %v", err)
	}
}

// TestImportTrades проверяет точечный импорт истории сделок
func TestImportTrades(t *testing.T) {
	repo := NewMockCredentialRepository()
	adapter := &fakeAdapter{
		trades: []models.ExchangeTrade{
			{ID: "t-1", Symbol: "BTCUSDT", Side: models.TradeSideBuy, Price: 40000, Quantity: 1, Timestamp: time.Now()},
			{ID: "t-2", Symbol: "BTCUSDT", Side: models.TradeSideSell, Price: 41000, Quantity: 1, Timestamp: time.Now()},
		},
	}
	svc, _, trades, _ := newTestSync(t, repo, adapter, nil)
	credentialID := seedCredential(t, repo, svc.vault, "user-1", "binance")

	imported, err := svc.ImportTrades(context.Background(), credentialID, []string{"BTCUSDT"}, time.Time{})
	if err != nil {
		t.Fatalf("ImportTrades failed: %v", err)
	}
	if imported != 2 {
		t.Errorf("imported = %d, want 2", imported)
	}

	// Повторный импорт не создаёт дублей
	imported, err = svc.ImportTrades(context.Background(), credentialID, []string{"BTCUSDT"}, time.Time{})
	if err != nil {
		t.Fatalf("second ImportTrades failed: %v", err)
	}
	if imported != 0 {
		t.Errorf("re-import created %d duplicates", imported)
	}

	saved, _ := trades.GetByCredential(credentialID, time.Time{}, 0)
	if len(saved) != 2 {
		t.Errorf("expected 2 saved trades, got %d", len(saved))
	}
}

// TestImportTradesDisabled проверяет отказ импортировать в отключённую запись
func TestImportTradesDisabled(t *testing.T) {
	repo := NewMockCredentialRepository()
	svc, _, _, _ := newTestSync(t, repo, &fakeAdapter{}, nil)
	credentialID := seedCredential(t, repo, svc.vault, "user-1", "binance")

	if err := repo.SetDisabled(credentialID, true); err != nil {
		t.Fatalf("SetDisabled failed: %v", err)
	}

	if _, err := svc.ImportTrades(context.Background(), credentialID, nil, time.Time{}); !errors.Is(err, ErrCredentialDisabled) {
		t.Errorf("expected ErrCredentialDisabled, got %v", err)
	}
}

// TestTradeSymbols проверяет выведение пар из балансов
func TestTradeSymbols(t *testing.T) {
	balances := []models.ExchangeBalance{
		{Asset: "BTC"},
		{Asset: "ETH"},
		{Asset: "USDT"}, // стейблкоин - пары не даёт
	}

	symbols := tradeSymbols(balances)
	if len(symbols) != 2 || symbols[0] != "BTCUSDT" || symbols[1] != "ETHUSDT" {
		t.Errorf("tradeSymbols = %v, want [BTCUSDT ETHUSDT]", symbols)
	}
}
