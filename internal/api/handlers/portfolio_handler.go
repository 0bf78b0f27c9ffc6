package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"cryptofolio/internal/models"
	"cryptofolio/internal/repository"
	"cryptofolio/internal/service"

	"github.com/gorilla/mux"
)

// PortfolioHandler отвечает за чтение портфелей и истории сделок
//
// Endpoints:
// - GET /api/v1/portfolio                      - агрегированный портфель пользователя
// - GET /api/v1/credentials/{id}/portfolio     - снапшот одной биржи
// - GET /api/v1/credentials/{id}/trades        - сохранённая история сделок
type PortfolioHandler struct {
	portfolioService service.PortfolioServiceInterface
}

// NewPortfolioHandler создает новый PortfolioHandler с внедрением зависимостей
func NewPortfolioHandler(portfolioService service.PortfolioServiceInterface) *PortfolioHandler {
	return &PortfolioHandler{portfolioService: portfolioService}
}

// GetAggregated возвращает объединённый портфель пользователя
// GET /api/v1/portfolio
//
// Пользователь без единого снапшота получает пустой агрегат, не 404.
func (h *PortfolioHandler) GetAggregated(w http.ResponseWriter, r *http.Request) {
	if h.portfolioService == nil {
		respondError(w, http.StatusInternalServerError, "portfolio service unavailable", "SERVICE_UNAVAILABLE")
		return
	}

	userID := userIDFromRequest(r)
	if userID == "" {
		respondError(w, http.StatusBadRequest, "user id is required", "MISSING_USER_ID")
		return
	}

	aggregated, err := h.portfolioService.GetAggregated(r.Context(), userID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error(), "AGGREGATE_FAILED")
		return
	}

	respondJSON(w, http.StatusOK, SuccessResponse{Data: aggregated})
}

// GetExchange возвращает снапшот портфеля одной учётной записи
// GET /api/v1/credentials/{id}/portfolio
func (h *PortfolioHandler) GetExchange(w http.ResponseWriter, r *http.Request) {
	if h.portfolioService == nil {
		respondError(w, http.StatusInternalServerError, "portfolio service unavailable", "SERVICE_UNAVAILABLE")
		return
	}

	credentialID := mux.Vars(r)["id"]

	snapshot, err := h.portfolioService.GetExchange(r.Context(), credentialID)
	if err != nil {
		if errors.Is(err, repository.ErrSnapshotNotFound) {
			respondError(w, http.StatusNotFound, "no snapshot for this credential yet", "NOT_FOUND")
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error(), "SNAPSHOT_FAILED")
		return
	}

	respondJSON(w, http.StatusOK, SuccessResponse{Data: snapshot})
}

// GetTrades возвращает сохранённую историю сделок записи
// GET /api/v1/credentials/{id}/trades?since=RFC3339&limit=N
func (h *PortfolioHandler) GetTrades(w http.ResponseWriter, r *http.Request) {
	if h.portfolioService == nil {
		respondError(w, http.StatusInternalServerError, "portfolio service unavailable", "SERVICE_UNAVAILABLE")
		return
	}

	credentialID := mux.Vars(r)["id"]
	query := r.URL.Query()

	var since time.Time
	if raw := query.Get("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "since must be RFC3339", "INVALID_SINCE")
			return
		}
		since = parsed
	}

	limit := 0
	if raw := query.Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			respondError(w, http.StatusBadRequest, "limit must be a non-negative integer", "INVALID_LIMIT")
			return
		}
		limit = parsed
	}

	trades, err := h.portfolioService.GetTrades(r.Context(), credentialID, since, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error(), "TRADES_FAILED")
		return
	}
	if trades == nil {
		trades = []models.ExchangeTrade{}
	}

	respondJSON(w, http.StatusOK, SuccessResponse{Data: trades})
}
