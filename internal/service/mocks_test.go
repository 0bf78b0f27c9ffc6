package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"cryptofolio/internal/exchange"
	"cryptofolio/internal/models"
	"cryptofolio/internal/repository"
)

// ============ Mock CredentialRepository ============

type MockCredentialRepository struct {
	mu      sync.Mutex
	records map[string]*models.EncryptedCredentials
	nextID  int

	createErr error
	getErr    error
	updateErr error
}

func NewMockCredentialRepository() *MockCredentialRepository {
	return &MockCredentialRepository{
		records: make(map[string]*models.EncryptedCredentials),
		nextID:  1,
	}
}

func (m *MockCredentialRepository) Create(cred *models.EncryptedCredentials) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	if cred.ID == "" {
		cred.ID = fmt.Sprintf("cred-%d", m.nextID)
		m.nextID++
	}
	if cred.SyncStatus == "" {
		cred.SyncStatus = models.SyncStatusActive
	}
	now := time.Now().UTC()
	cred.CreatedAt = now
	cred.UpdatedAt = now
	copied := *cred
	m.records[cred.ID] = &copied
	return nil
}

func (m *MockCredentialRepository) GetByID(id string) (*models.EncryptedCredentials, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	record, ok := m.records[id]
	if !ok {
		return nil, repository.ErrCredentialNotFound
	}
	copied := *record
	return &copied, nil
}

func (m *MockCredentialRepository) GetByUser(userID string) ([]*models.EncryptedCredentials, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	var result []*models.EncryptedCredentials
	for _, record := range m.records {
		if record.UserID == userID {
			copied := *record
			result = append(result, &copied)
		}
	}
	return result, nil
}

func (m *MockCredentialRepository) GetSyncable() ([]*models.EncryptedCredentials, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*models.EncryptedCredentials
	for _, record := range m.records {
		if record.SyncStatus != models.SyncStatusDisabled {
			copied := *record
			result = append(result, &copied)
		}
	}
	return result, nil
}

func (m *MockCredentialRepository) UpdateSyncStatus(id, status, errorMessage string, syncedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return m.updateErr
	}
	record, ok := m.records[id]
	if !ok {
		return repository.ErrCredentialNotFound
	}
	record.SyncStatus = status
	record.ErrorMessage = errorMessage
	record.LastSyncAt = &syncedAt
	record.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *MockCredentialRepository) SetDisabled(id string, disabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.records[id]
	if !ok {
		return repository.ErrCredentialNotFound
	}
	if disabled {
		record.SyncStatus = models.SyncStatusDisabled
	} else {
		record.SyncStatus = models.SyncStatusActive
	}
	return nil
}

func (m *MockCredentialRepository) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[id]; !ok {
		return repository.ErrCredentialNotFound
	}
	delete(m.records, id)
	return nil
}

// ============ Mock TradeRepository ============

type MockTradeRepository struct {
	mu     sync.Mutex
	trades map[string][]models.ExchangeTrade // credentialID -> trades

	saveErr error
}

func NewMockTradeRepository() *MockTradeRepository {
	return &MockTradeRepository{trades: make(map[string][]models.ExchangeTrade)}
}

func (m *MockTradeRepository) SaveAll(credentialID, exchangeID string, trades []models.ExchangeTrade) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return 0, m.saveErr
	}

	known := make(map[string]bool)
	for _, t := range m.trades[credentialID] {
		known[t.ID] = true
	}

	inserted := 0
	for _, t := range trades {
		if known[t.ID] {
			continue
		}
		m.trades[credentialID] = append(m.trades[credentialID], t)
		inserted++
	}
	return inserted, nil
}

func (m *MockTradeRepository) GetByCredential(credentialID string, since time.Time, limit int) ([]models.ExchangeTrade, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []models.ExchangeTrade
	for _, t := range m.trades[credentialID] {
		if !t.Timestamp.Before(since) {
			result = append(result, t)
		}
	}
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (m *MockTradeRepository) LastTradeTime(credentialID string) (time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var last time.Time
	for _, t := range m.trades[credentialID] {
		if t.Timestamp.After(last) {
			last = t.Timestamp
		}
	}
	return last, nil
}

func (m *MockTradeRepository) DeleteByCredential(credentialID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.trades, credentialID)
	return nil
}

// ============ Mock PortfolioCache ============

type MockPortfolioCache struct {
	mu        sync.Mutex
	snapshots map[string]*models.ExchangePortfolio // credentialID -> snapshot
	userIndex map[string][]string                  // userID -> credentialIDs

	saveErr error
	getErr  error
}

func NewMockPortfolioCache() *MockPortfolioCache {
	return &MockPortfolioCache{
		snapshots: make(map[string]*models.ExchangePortfolio),
		userIndex: make(map[string][]string),
	}
}

func (m *MockPortfolioCache) Save(ctx context.Context, userID string, portfolio *models.ExchangePortfolio) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	if _, exists := m.snapshots[portfolio.CredentialID]; !exists {
		m.userIndex[userID] = append(m.userIndex[userID], portfolio.CredentialID)
	}
	copied := *portfolio
	m.snapshots[portfolio.CredentialID] = &copied
	return nil
}

func (m *MockPortfolioCache) Get(ctx context.Context, credentialID string) (*models.ExchangePortfolio, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	snapshot, ok := m.snapshots[credentialID]
	if !ok {
		return nil, repository.ErrSnapshotNotFound
	}
	copied := *snapshot
	return &copied, nil
}

func (m *MockPortfolioCache) GetByUser(ctx context.Context, userID string) ([]*models.ExchangePortfolio, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	var result []*models.ExchangePortfolio
	for _, credentialID := range m.userIndex[userID] {
		if snapshot, ok := m.snapshots[credentialID]; ok {
			copied := *snapshot
			result = append(result, &copied)
		}
	}
	return result, nil
}

func (m *MockPortfolioCache) Delete(ctx context.Context, userID, credentialID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.snapshots, credentialID)
	return nil
}

// ============ Mock PriceSource ============

type MockPriceSource struct {
	prices map[string]float64
	err    error
	calls  int
	mu     sync.Mutex
}

func NewMockPriceSource(prices map[string]float64) *MockPriceSource {
	return &MockPriceSource{prices: prices}
}

func (m *MockPriceSource) GetPrices(ctx context.Context, assets []string) (map[string]float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	result := make(map[string]float64)
	for _, asset := range assets {
		if price, ok := m.prices[asset]; ok {
			result[asset] = price
		}
	}
	return result, nil
}

func (m *MockPriceSource) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// ============ Fake Adapter ============

type fakeAdapter struct {
	id        string
	balances  []models.ExchangeBalance
	trades    []models.ExchangeTrade
	positions []models.ExchangePosition

	connErr      error
	balancesErr  error
	tradesErr    error
	positionsErr error
}

func (f *fakeAdapter) ID() string { return f.id }

func (f *fakeAdapter) TestConnection(ctx context.Context) error { return f.connErr }

func (f *fakeAdapter) GetBalances(ctx context.Context) ([]models.ExchangeBalance, error) {
	return f.balances, f.balancesErr
}

func (f *fakeAdapter) GetTrades(ctx context.Context, symbols []string, since time.Time) ([]models.ExchangeTrade, error) {
	return f.trades, f.tradesErr
}

func (f *fakeAdapter) GetPositions(ctx context.Context) ([]models.ExchangePosition, error) {
	if f.positionsErr != nil {
		return nil, f.positionsErr
	}
	if f.positions == nil {
		return nil, exchange.ErrNotSupported
	}
	return f.positions, nil
}

// fakeFactory возвращает один и тот же адаптер для любой биржи
func fakeFactory(adapter *fakeAdapter) AdapterFactory {
	return func(exchangeID string, creds models.ExchangeCredentials) (exchange.Adapter, error) {
		adapter.id = exchangeID
		return adapter, nil
	}
}

// ============ Recording Notifier ============

type recordingNotifier struct {
	mu         sync.Mutex
	results    []*models.SyncResult
	portfolios []*models.ExchangePortfolio
}

func (r *recordingNotifier) NotifySyncResult(userID string, result *models.SyncResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, result)
}

func (r *recordingNotifier) NotifyPortfolio(userID string, portfolio *models.ExchangePortfolio) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.portfolios = append(r.portfolios, portfolio)
}
