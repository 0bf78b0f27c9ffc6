package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"cryptofolio/internal/service"

	"github.com/gorilla/mux"
)

// SyncHandler отвечает за запуск синхронизации и импорт сделок
//
// Endpoints:
// - POST /api/v1/sync                              - синхронизация всех записей пользователя
// - POST /api/v1/credentials/{id}/sync             - синхронизация одной записи
// - POST /api/v1/credentials/{id}/trades/import    - точечный импорт истории сделок
type SyncHandler struct {
	syncService service.SyncServiceInterface
}

// NewSyncHandler создает новый SyncHandler с внедрением зависимостей
func NewSyncHandler(syncService service.SyncServiceInterface) *SyncHandler {
	return &SyncHandler{syncService: syncService}
}

// ImportTradesRequest структура запроса на импорт сделок
type ImportTradesRequest struct {
	Symbols []string `json:"symbols,omitempty"` // пусто - вывести из балансов
	Since   string   `json:"since,omitempty"`   // RFC3339, пусто - вся история
}

// ImportTradesResponse результат импорта
type ImportTradesResponse struct {
	Imported int `json:"imported"`
}

// SyncCredential синхронизирует одну учётную запись
// POST /api/v1/credentials/{id}/sync
//
// Ответ 200 приходит и при провале синхронизации - с заполненным
// полем error в SyncResult. 4xx означает, что синхронизация не началась.
func (h *SyncHandler) SyncCredential(w http.ResponseWriter, r *http.Request) {
	if h.syncService == nil {
		respondError(w, http.StatusInternalServerError, "sync service unavailable", "SERVICE_UNAVAILABLE")
		return
	}

	credentialID := mux.Vars(r)["id"]

	result, err := h.syncService.Sync(r.Context(), credentialID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrCredentialNotFound):
			respondError(w, http.StatusNotFound, "credential not found", "NOT_FOUND")
		case errors.Is(err, service.ErrCredentialDisabled):
			respondError(w, http.StatusConflict, "credential is disabled", "DISABLED")
		default:
			respondError(w, http.StatusInternalServerError, err.Error(), "SYNC_FAILED")
		}
		return
	}

	respondJSON(w, http.StatusOK, SuccessResponse{Data: result})
}

// SyncAll синхронизирует все активные записи пользователя
// POST /api/v1/sync
func (h *SyncHandler) SyncAll(w http.ResponseWriter, r *http.Request) {
	if h.syncService == nil {
		respondError(w, http.StatusInternalServerError, "sync service unavailable", "SERVICE_UNAVAILABLE")
		return
	}

	userID := userIDFromRequest(r)
	if userID == "" {
		respondError(w, http.StatusBadRequest, "user id is required", "MISSING_USER_ID")
		return
	}

	results, err := h.syncService.SyncAll(r.Context(), userID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error(), "SYNC_FAILED")
		return
	}

	respondJSON(w, http.StatusOK, SuccessResponse{Data: results})
}

// ImportTrades запускает импорт истории сделок по заданным парам
// POST /api/v1/credentials/{id}/trades/import
func (h *SyncHandler) ImportTrades(w http.ResponseWriter, r *http.Request) {
	if h.syncService == nil {
		respondError(w, http.StatusInternalServerError, "sync service unavailable", "SERVICE_UNAVAILABLE")
		return
	}

	credentialID := mux.Vars(r)["id"]

	var req ImportTradesRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid request body", "INVALID_JSON")
			return
		}
	}

	var since time.Time
	if req.Since != "" {
		parsed, err := time.Parse(time.RFC3339, req.Since)
		if err != nil {
			respondError(w, http.StatusBadRequest, "since must be RFC3339", "INVALID_SINCE")
			return
		}
		since = parsed
	}

	imported, err := h.syncService.ImportTrades(r.Context(), credentialID, req.Symbols, since)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrCredentialNotFound):
			respondError(w, http.StatusNotFound, "credential not found", "NOT_FOUND")
		case errors.Is(err, service.ErrCredentialDisabled):
			respondError(w, http.StatusConflict, "credential is disabled", "DISABLED")
		default:
			respondError(w, http.StatusBadGateway, err.Error(), "IMPORT_FAILED")
		}
		return
	}

	respondJSON(w, http.StatusOK, SuccessResponse{
		Message: "trades imported",
		Data:    ImportTradesResponse{Imported: imported},
	})
}
