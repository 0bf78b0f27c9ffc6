package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"cryptofolio/internal/models"
	"cryptofolio/internal/repository"
	"cryptofolio/internal/service"

	"github.com/gorilla/mux"
)

// CredentialHandler отвечает за управление учётными записями бирж
//
// Endpoints:
// - POST /api/v1/credentials                  - добавление ключей биржи
// - GET /api/v1/credentials                   - список записей пользователя
// - DELETE /api/v1/credentials/{id}           - удаление записи
// - POST /api/v1/credentials/{id}/disable     - отключение синхронизации
// - POST /api/v1/credentials/{id}/enable      - включение синхронизации
type CredentialHandler struct {
	vaultService     service.VaultServiceInterface
	portfolioService service.PortfolioServiceInterface
}

// NewCredentialHandler создает новый CredentialHandler с внедрением зависимостей
func NewCredentialHandler(vaultService service.VaultServiceInterface, portfolioService service.PortfolioServiceInterface) *CredentialHandler {
	return &CredentialHandler{
		vaultService:     vaultService,
		portfolioService: portfolioService,
	}
}

// AddCredentialRequest структура запроса на добавление ключей
type AddCredentialRequest struct {
	Exchange   string `json:"exchange"`             // binance, coinbase, kraken, okx, bybit
	APIKey     string `json:"api_key"`              // публичный API ключ
	APISecret  string `json:"api_secret"`           // секретный ключ
	Passphrase string `json:"passphrase,omitempty"` // обязателен для okx
	Subaccount string `json:"subaccount,omitempty"`
}

// AddCredential добавляет ключи биржи в зашифрованное хранилище
// POST /api/v1/credentials
//
// Перед сохранением выполняется тестовый запрос к бирже:
// невалидные ключи не сохраняются.
func (h *CredentialHandler) AddCredential(w http.ResponseWriter, r *http.Request) {
	if h.vaultService == nil {
		respondError(w, http.StatusInternalServerError, "vault service unavailable", "SERVICE_UNAVAILABLE")
		return
	}

	userID := userIDFromRequest(r)
	if userID == "" {
		respondError(w, http.StatusBadRequest, "user id is required", "MISSING_USER_ID")
		return
	}

	var req AddCredentialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", "INVALID_JSON")
		return
	}

	record, err := h.vaultService.Add(r.Context(), userID, req.Exchange, models.ExchangeCredentials{
		APIKey:     req.APIKey,
		APISecret:  req.APISecret,
		Passphrase: req.Passphrase,
		Subaccount: req.Subaccount,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrConnectionTestFail):
			respondError(w, http.StatusUnprocessableEntity, err.Error(), "CONNECTION_TEST_FAILED")
		case errors.Is(err, service.ErrPassphraseRequired):
			respondError(w, http.StatusBadRequest, err.Error(), "PASSPHRASE_REQUIRED")
		case errors.Is(err, repository.ErrCredentialExists):
			respondError(w, http.StatusConflict, "credentials for this exchange already exist", "ALREADY_EXISTS")
		default:
			respondError(w, http.StatusBadRequest, err.Error(), "VALIDATION_FAILED")
		}
		return
	}

	respondJSON(w, http.StatusCreated, SuccessResponse{
		Message: "credentials added",
		Data:    record,
	})
}

// ListCredentials возвращает записи пользователя без секретного материала
// GET /api/v1/credentials
func (h *CredentialHandler) ListCredentials(w http.ResponseWriter, r *http.Request) {
	if h.vaultService == nil {
		respondError(w, http.StatusInternalServerError, "vault service unavailable", "SERVICE_UNAVAILABLE")
		return
	}

	userID := userIDFromRequest(r)
	if userID == "" {
		respondError(w, http.StatusBadRequest, "user id is required", "MISSING_USER_ID")
		return
	}

	records, err := h.vaultService.List(r.Context(), userID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error(), "LIST_FAILED")
		return
	}
	if records == nil {
		records = []*models.EncryptedCredentials{}
	}

	respondJSON(w, http.StatusOK, SuccessResponse{Data: records})
}

// DeleteCredential удаляет запись вместе со снапшотом и историей сделок
// DELETE /api/v1/credentials/{id}
func (h *CredentialHandler) DeleteCredential(w http.ResponseWriter, r *http.Request) {
	if h.vaultService == nil {
		respondError(w, http.StatusInternalServerError, "vault service unavailable", "SERVICE_UNAVAILABLE")
		return
	}

	credentialID := mux.Vars(r)["id"]

	if err := h.vaultService.Delete(r.Context(), credentialID); err != nil {
		if errors.Is(err, service.ErrCredentialNotFound) {
			respondError(w, http.StatusNotFound, "credential not found", "NOT_FOUND")
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error(), "DELETE_FAILED")
		return
	}

	if h.portfolioService != nil {
		if err := h.portfolioService.Forget(r.Context(), userIDFromRequest(r), credentialID); err != nil {
			respondError(w, http.StatusInternalServerError, err.Error(), "CLEANUP_FAILED")
			return
		}
	}

	respondJSON(w, http.StatusOK, SuccessResponse{Message: "credential deleted"})
}

// DisableCredential отключает синхронизацию записи
// POST /api/v1/credentials/{id}/disable
func (h *CredentialHandler) DisableCredential(w http.ResponseWriter, r *http.Request) {
	h.setDisabled(w, r, true, "credential disabled")
}

// EnableCredential включает синхронизацию записи
// POST /api/v1/credentials/{id}/enable
func (h *CredentialHandler) EnableCredential(w http.ResponseWriter, r *http.Request) {
	h.setDisabled(w, r, false, "credential enabled")
}

func (h *CredentialHandler) setDisabled(w http.ResponseWriter, r *http.Request, disabled bool, message string) {
	if h.vaultService == nil {
		respondError(w, http.StatusInternalServerError, "vault service unavailable", "SERVICE_UNAVAILABLE")
		return
	}

	credentialID := mux.Vars(r)["id"]

	if err := h.vaultService.SetDisabled(r.Context(), credentialID, disabled); err != nil {
		if errors.Is(err, service.ErrCredentialNotFound) {
			respondError(w, http.StatusNotFound, "credential not found", "NOT_FOUND")
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error(), "UPDATE_FAILED")
		return
	}

	respondJSON(w, http.StatusOK, SuccessResponse{Message: message})
}
