package handlers

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"cryptofolio/internal/models"
	"cryptofolio/internal/repository"
	"cryptofolio/internal/service"
)

// ErrMockExchange общая ошибка биржи для тестов
var ErrMockExchange = errors.New("mock exchange error")

// ============ Mock Vault Service ============

// MockVaultService мок для VaultServiceInterface
type MockVaultService struct {
	mu      sync.Mutex
	records map[string]*models.EncryptedCredentials
	nextID  int

	addErr    error
	listErr   error
	deleteErr error
}

// NewMockVaultService создает новый мок хранилища ключей
func NewMockVaultService() *MockVaultService {
	return &MockVaultService{
		records: make(map[string]*models.EncryptedCredentials),
		nextID:  1,
	}
}

func (m *MockVaultService) Add(ctx context.Context, userID, exchangeID string, creds models.ExchangeCredentials) (*models.EncryptedCredentials, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.addErr != nil {
		return nil, m.addErr
	}
	if userID == "" || creds.APIKey == "" {
		return nil, errors.New("invalid input")
	}
	if exchangeID == "okx" && creds.Passphrase == "" {
		return nil, service.ErrPassphraseRequired
	}

	record := &models.EncryptedCredentials{
		ID:         fmt.Sprintf("cred-%d", m.nextID),
		UserID:     userID,
		ExchangeID: exchangeID,
		SyncStatus: models.SyncStatusActive,
		CreatedAt:  time.Now().UTC(),
	}
	m.nextID++
	m.records[record.ID] = record
	return record.Redacted(), nil
}

func (m *MockVaultService) List(ctx context.Context, userID string) ([]*models.EncryptedCredentials, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.listErr != nil {
		return nil, m.listErr
	}
	var result []*models.EncryptedCredentials
	for _, record := range m.records {
		if record.UserID == userID {
			result = append(result, record.Redacted())
		}
	}
	return result, nil
}

func (m *MockVaultService) SetDisabled(ctx context.Context, credentialID string, disabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	record, ok := m.records[credentialID]
	if !ok {
		return service.ErrCredentialNotFound
	}
	if disabled {
		record.SyncStatus = models.SyncStatusDisabled
	} else {
		record.SyncStatus = models.SyncStatusActive
	}
	return nil
}

func (m *MockVaultService) Delete(ctx context.Context, credentialID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.deleteErr != nil {
		return m.deleteErr
	}
	if _, ok := m.records[credentialID]; !ok {
		return service.ErrCredentialNotFound
	}
	delete(m.records, credentialID)
	return nil
}

// ============ Mock Sync Service ============

// MockSyncService мок для SyncServiceInterface
type MockSyncService struct {
	mu sync.Mutex

	syncResult *models.SyncResult
	syncErr    error
	allResults []*models.SyncResult
	allErr     error
	imported   int
	importErr  error

	lastSymbols []string
	lastSince   time.Time
}

func (m *MockSyncService) Sync(ctx context.Context, credentialID string) (*models.SyncResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.syncErr != nil {
		return nil, m.syncErr
	}
	return m.syncResult, nil
}

func (m *MockSyncService) SyncAll(ctx context.Context, userID string) ([]*models.SyncResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.allErr != nil {
		return nil, m.allErr
	}
	return m.allResults, nil
}

func (m *MockSyncService) ImportTrades(ctx context.Context, credentialID string, symbols []string, since time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastSymbols = symbols
	m.lastSince = since
	if m.importErr != nil {
		return 0, m.importErr
	}
	return m.imported, nil
}

// ============ Mock Portfolio Service ============

// MockPortfolioService мок для PortfolioServiceInterface
type MockPortfolioService struct {
	mu sync.Mutex

	snapshots  map[string]*models.ExchangePortfolio
	aggregated *models.AggregatedPortfolio
	trades     []models.ExchangeTrade

	aggregateErr error
	tradesErr    error
	forgetErr    error
	forgotten    []string
}

// NewMockPortfolioService создает новый мок сервиса портфелей
func NewMockPortfolioService() *MockPortfolioService {
	return &MockPortfolioService{snapshots: make(map[string]*models.ExchangePortfolio)}
}

func (m *MockPortfolioService) GetExchange(ctx context.Context, credentialID string) (*models.ExchangePortfolio, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	snapshot, ok := m.snapshots[credentialID]
	if !ok {
		return nil, repository.ErrSnapshotNotFound
	}
	return snapshot, nil
}

func (m *MockPortfolioService) GetAggregated(ctx context.Context, userID string) (*models.AggregatedPortfolio, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.aggregateErr != nil {
		return nil, m.aggregateErr
	}
	if m.aggregated != nil {
		return m.aggregated, nil
	}
	return &models.AggregatedPortfolio{UserID: userID, UpdatedAt: time.Now().UTC()}, nil
}

func (m *MockPortfolioService) GetTrades(ctx context.Context, credentialID string, since time.Time, limit int) ([]models.ExchangeTrade, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tradesErr != nil {
		return nil, m.tradesErr
	}
	if limit > 0 && len(m.trades) > limit {
		return m.trades[:limit], nil
	}
	return m.trades, nil
}

func (m *MockPortfolioService) Forget(ctx context.Context, userID, credentialID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.forgetErr != nil {
		return m.forgetErr
	}
	m.forgotten = append(m.forgotten, credentialID)
	return nil
}
