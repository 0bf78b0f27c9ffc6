package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"cryptofolio/internal/models"
	"cryptofolio/internal/service"

	"github.com/gorilla/mux"
)

// ============ SyncHandler Tests ============

func TestSyncHandler_SyncCredential(t *testing.T) {
	t.Run("returns sync result", func(t *testing.T) {
		mockSync := &MockSyncService{
			syncResult: &models.SyncResult{
				Success:      true,
				CredentialID: "cred-1",
				ExchangeID:   "binance",
				TradeCount:   3,
			},
		}
		handler := NewSyncHandler(mockSync)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/credentials/cred-1/sync", nil)
		req = mux.SetURLVars(req, map[string]string{"id": "cred-1"})
		w := httptest.NewRecorder()

		handler.SyncCredential(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
		}

		var response struct {
			Data models.SyncResult `json:"data"`
		}
		if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if !response.Data.Success || response.Data.TradeCount != 3 {
			t.Errorf("unexpected result: %+v", response.Data)
		}
	})

	t.Run("failed sync still returns 200", func(t *testing.T) {
		mockSync := &MockSyncService{
			syncResult: &models.SyncResult{
				Success:      false,
				CredentialID: "cred-1",
				Error:        "503 service unavailable",
			},
		}
		handler := NewSyncHandler(mockSync)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/credentials/cred-1/sync", nil)
		req = mux.SetURLVars(req, map[string]string{"id": "cred-1"})
		w := httptest.NewRecorder()

		handler.SyncCredential(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("expected status %d, got %d", http.StatusOK, w.Code)
		}
	})

	t.Run("returns 404 for unknown credential", func(t *testing.T) {
		mockSync := &MockSyncService{syncErr: service.ErrCredentialNotFound}
		handler := NewSyncHandler(mockSync)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/credentials/missing/sync", nil)
		req = mux.SetURLVars(req, map[string]string{"id": "missing"})
		w := httptest.NewRecorder()

		handler.SyncCredential(w, req)

		if w.Code != http.StatusNotFound {
			t.Errorf("expected status %d, got %d", http.StatusNotFound, w.Code)
		}
	})

	t.Run("returns 409 for disabled credential", func(t *testing.T) {
		mockSync := &MockSyncService{syncErr: service.ErrCredentialDisabled}
		handler := NewSyncHandler(mockSync)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/credentials/cred-1/sync", nil)
		req = mux.SetURLVars(req, map[string]string{"id": "cred-1"})
		w := httptest.NewRecorder()

		handler.SyncCredential(w, req)

		if w.Code != http.StatusConflict {
			t.Errorf("expected status %d, got %d", http.StatusConflict, w.Code)
		}
	})
}

func TestSyncHandler_SyncAll(t *testing.T) {
	t.Run("returns per-credential results", func(t *testing.T) {
		mockSync := &MockSyncService{
			allResults: []*models.SyncResult{
				{Success: true, CredentialID: "cred-1"},
				{Success: false, CredentialID: "cred-2", Error: "timeout"},
			},
		}
		handler := NewSyncHandler(mockSync)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/sync?user_id=user-1", nil)
		w := httptest.NewRecorder()

		handler.SyncAll(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
		}

		var response struct {
			Data []models.SyncResult `json:"data"`
		}
		if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if len(response.Data) != 2 {
			t.Errorf("expected 2 results, got %d", len(response.Data))
		}
	})

	t.Run("returns 400 without user id", func(t *testing.T) {
		handler := NewSyncHandler(&MockSyncService{})

		req := httptest.NewRequest(http.MethodPost, "/api/v1/sync", nil)
		w := httptest.NewRecorder()

		handler.SyncAll(w, req)

		if w.Code != http.StatusBadRequest {
			t.Errorf("expected status %d, got %d", http.StatusBadRequest, w.Code)
		}
	})
}

func TestSyncHandler_ImportTrades(t *testing.T) {
	t.Run("imports with explicit symbols and since", func(t *testing.T) {
		mockSync := &MockSyncService{imported: 7}
		handler := NewSyncHandler(mockSync)

		body := `{"symbols":["BTCUSDT","ETHUSDT"],"since":"2026-01-01T00:00:00Z"}`
		req := httptest.NewRequest(http.MethodPost, "/api/v1/credentials/cred-1/trades/import", strings.NewReader(body))
		req = mux.SetURLVars(req, map[string]string{"id": "cred-1"})
		w := httptest.NewRecorder()

		handler.ImportTrades(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
		}
		if len(mockSync.lastSymbols) != 2 {
			t.Errorf("symbols not passed through: %v", mockSync.lastSymbols)
		}
		want := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		if !mockSync.lastSince.Equal(want) {
			t.Errorf("since = %v, want %v", mockSync.lastSince, want)
		}
		if !strings.Contains(w.Body.String(), `"imported":7`) {
			t.Errorf("expected imported count in response, got %s", w.Body.String())
		}
	})

	t.Run("empty body means derive symbols", func(t *testing.T) {
		mockSync := &MockSyncService{imported: 0}
		handler := NewSyncHandler(mockSync)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/credentials/cred-1/trades/import", nil)
		req = mux.SetURLVars(req, map[string]string{"id": "cred-1"})
		w := httptest.NewRecorder()

		handler.ImportTrades(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
		}
		if len(mockSync.lastSymbols) != 0 {
			t.Errorf("expected no symbols, got %v", mockSync.lastSymbols)
		}
	})

	t.Run("returns 400 on bad since", func(t *testing.T) {
		handler := NewSyncHandler(&MockSyncService{})

		body := `{"since":"yesterday"}`
		req := httptest.NewRequest(http.MethodPost, "/api/v1/credentials/cred-1/trades/import", strings.NewReader(body))
		req = mux.SetURLVars(req, map[string]string{"id": "cred-1"})
		w := httptest.NewRecorder()

		handler.ImportTrades(w, req)

		if w.Code != http.StatusBadRequest {
			t.Errorf("expected status %d, got %d", http.StatusBadRequest, w.Code)
		}
	})

	t.Run("returns 502 on exchange failure", func(t *testing.T) {
		handler := NewSyncHandler(&MockSyncService{importErr: ErrMockExchange})

		req := httptest.NewRequest(http.MethodPost, "/api/v1/credentials/cred-1/trades/import", nil)
		req = mux.SetURLVars(req, map[string]string{"id": "cred-1"})
		w := httptest.NewRecorder()

		handler.ImportTrades(w, req)

		if w.Code != http.StatusBadGateway {
			t.Errorf("expected status %d, got %d", http.StatusBadGateway, w.Code)
		}
	})
}
