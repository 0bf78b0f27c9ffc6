package api

import (
	"context"
	"net/http"
	"time"

	"cryptofolio/internal/api/handlers"
	"cryptofolio/internal/api/middleware"
	"cryptofolio/internal/service"
	"cryptofolio/internal/websocket"
	"cryptofolio/pkg/utils"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Dependencies содержит все зависимости для API handlers
type Dependencies struct {
	VaultService     service.VaultServiceInterface
	SyncService      service.SyncServiceInterface
	PortfolioService service.PortfolioServiceInterface
	Hub              *websocket.Hub
	Logger           utils.Logger

	// bcrypt-хэш статического API токена; пустой - auth выключен
	APITokenHash string

	// Реестр prometheus метрик для /metrics; nil - endpoint не регистрируется
	Registry *prometheus.Registry

	// Проверка живости зависимостей (postgres, redis) для /health
	HealthCheck func(ctx context.Context) error
}

// SetupRoutes настраивает все HTTP маршруты приложения
//
// Структура маршрутов:
//
// /api/v1/
//
//	├── /credentials/
//	│   ├── POST / - добавление ключей биржи
//	│   ├── GET / - список записей пользователя
//	│   ├── DELETE /{id} - удаление записи
//	│   ├── POST /{id}/disable - отключение синхронизации
//	│   ├── POST /{id}/enable - включение синхронизации
//	│   ├── POST /{id}/sync - синхронизация записи
//	│   ├── GET /{id}/portfolio - снапшот портфеля биржи
//	│   ├── GET /{id}/trades - история сделок
//	│   └── POST /{id}/trades/import - импорт истории сделок
//	├── POST /sync - синхронизация всех записей пользователя
//	└── GET /portfolio - агрегированный портфель
//
// /ws/
//
//	└── /stream - WebSocket для real-time обновлений
//
// /metrics - prometheus метрики
// /health - проверка живости
//
// Middleware применяется в следующем порядке:
// 1. Recovery (для всех маршрутов)
// 2. Logging (для всех маршрутов)
// 3. CORS (для всех маршрутов)
// 4. Auth (только для /api/v1)
func SetupRoutes(deps *Dependencies) *mux.Router {
	router := mux.NewRouter()

	logger := utils.Logger(utils.NewNopLogger())
	if deps != nil && deps.Logger != nil {
		logger = deps.Logger
	}

	// Глобальные middleware (применяются ко всем маршрутам)
	router.Use(middleware.Recovery(logger))
	router.Use(middleware.Logging(logger))
	router.Use(middleware.CORS)

	// Создание handlers с внедрением зависимостей
	var credentialHandler *handlers.CredentialHandler
	if deps != nil && deps.VaultService != nil {
		credentialHandler = handlers.NewCredentialHandler(deps.VaultService, deps.PortfolioService)
	}

	var syncHandler *handlers.SyncHandler
	if deps != nil && deps.SyncService != nil {
		syncHandler = handlers.NewSyncHandler(deps.SyncService)
	}

	var portfolioHandler *handlers.PortfolioHandler
	if deps != nil && deps.PortfolioService != nil {
		portfolioHandler = handlers.NewPortfolioHandler(deps.PortfolioService)
	}

	// API v1 routes
	api := router.PathPrefix("/api/v1").Subrouter()
	if deps != nil {
		api.Use(middleware.Auth(deps.APITokenHash))
	}

	// Credential routes
	if credentialHandler != nil {
		api.HandleFunc("/credentials", credentialHandler.AddCredential).Methods("POST")
		api.HandleFunc("/credentials", credentialHandler.ListCredentials).Methods("GET")
		api.HandleFunc("/credentials/{id}", credentialHandler.DeleteCredential).Methods("DELETE")
		api.HandleFunc("/credentials/{id}/disable", credentialHandler.DisableCredential).Methods("POST")
		api.HandleFunc("/credentials/{id}/enable", credentialHandler.EnableCredential).Methods("POST")
	}

	// Sync routes
	if syncHandler != nil {
		api.HandleFunc("/sync", syncHandler.SyncAll).Methods("POST")
		api.HandleFunc("/credentials/{id}/sync", syncHandler.SyncCredential).Methods("POST")
		api.HandleFunc("/credentials/{id}/trades/import", syncHandler.ImportTrades).Methods("POST")
	}

	// Portfolio routes
	if portfolioHandler != nil {
		api.HandleFunc("/portfolio", portfolioHandler.GetAggregated).Methods("GET")
		api.HandleFunc("/credentials/{id}/portfolio", portfolioHandler.GetExchange).Methods("GET")
		api.HandleFunc("/credentials/{id}/trades", portfolioHandler.GetTrades).Methods("GET")
	}

	// WebSocket route
	if deps != nil && deps.Hub != nil {
		hub := deps.Hub
		router.HandleFunc("/ws/stream", func(w http.ResponseWriter, r *http.Request) {
			websocket.ServeWS(hub, w, r)
		})
	}

	// Prometheus metrics endpoint
	if deps != nil && deps.Registry != nil {
		router.Handle("/metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}))
	}

	// Health check endpoint
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if deps != nil && deps.HealthCheck != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
			defer cancel()
			if err := deps.HealthCheck(ctx); err != nil {
				http.Error(w, err.Error(), http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods("GET")

	return router
}
