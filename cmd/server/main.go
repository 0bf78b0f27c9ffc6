package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cryptofolio/internal/api"
	"cryptofolio/internal/config"
	"cryptofolio/internal/exchange"
	"cryptofolio/internal/models"
	"cryptofolio/internal/pricefeed"
	"cryptofolio/internal/repository"
	"cryptofolio/internal/service"
	"cryptofolio/internal/websocket"
	"cryptofolio/pkg/ratelimit"
	"cryptofolio/pkg/utils"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	_ "github.com/lib/pq"
)

func main() {
	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, syncLogs, err := utils.NewZapLogger(utils.ParseLogLevel(cfg.Logging.Level))
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer syncLogs()

	// Инициализация базы данных
	db, err := initDatabase(cfg)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	logger.Infof("Connected to database: %s", cfg.Database.DSNWithoutPassword())

	// Инициализация redis (кэш снапшотов портфелей)
	redisClient := repository.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	defer redisClient.Close()

	// Инициализация репозиториев
	credentialRepo := repository.NewCredentialRepository(db)
	tradeRepo := repository.NewTradeRepository(db)
	portfolioCache := repository.NewPortfolioCache(redisClient)

	{
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := portfolioCache.Ping(ctx); err != nil {
			cancel()
			logger.Fatalf("Failed to ping redis: %v", err)
		}
		cancel()
	}
	logger.Infof("Connected to redis: %s", cfg.Redis.Addr)

	// Фабрика адаптеров бирж
	factory := func(exchangeID string, creds models.ExchangeCredentials) (exchange.Adapter, error) {
		return exchange.NewAdapter(exchangeID, creds)
	}

	// Инициализация сервисов
	vault, err := service.NewVaultService(credentialRepo, cfg.Security.EncryptionKey, factory, logger)
	if err != nil {
		logger.Fatalf("Failed to init vault: %v", err)
	}

	priceClient := pricefeed.NewClient(pricefeed.Config{
		BaseURL: cfg.PriceFeed.BaseURL,
		APIKey:  cfg.PriceFeed.APIKey,
		Timeout: cfg.PriceFeed.Timeout,
	})
	priceService := service.NewPriceService(priceClient, logger)

	// Один token bucket на биржу, лимиты у бирж разные
	limiter := ratelimit.NewMultiLimiter()
	for exchangeID, limit := range cfg.Sync.ExchangeRates {
		limiter.Add(exchangeID, limit.Rate, limit.Burst)
	}

	// Prometheus метрики
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := service.NewMetrics(registry)

	// WebSocket hub
	hub := websocket.NewHub(logger)
	hubDone := make(chan struct{})
	go hub.Run(hubDone)

	syncService := service.NewSyncService(service.SyncConfig{
		Vault:       vault,
		Credentials: credentialRepo,
		Trades:      tradeRepo,
		Cache:       portfolioCache,
		Prices:      priceService,
		Factory:     factory,
		Limiter:     limiter,
		Notifier:    hub,
		Metrics:     metrics,
		Logger:      logger,
		Timeout:     cfg.Sync.Timeout,
	})

	portfolioService := service.NewPortfolioService(portfolioCache, tradeRepo, logger)

	// Фоновая синхронизация всех активных записей
	syncCtx, stopSync := context.WithCancel(context.Background())
	go syncService.RunPeriodic(syncCtx, cfg.Sync.Interval)

	// Настройка зависимостей для API
	deps := &api.Dependencies{
		VaultService:     vault,
		SyncService:      syncService,
		PortfolioService: portfolioService,
		Hub:              hub,
		Logger:           logger,
		APITokenHash:     cfg.Security.APITokenHash,
		Registry:         registry,
		HealthCheck: func(ctx context.Context) error {
			if err := db.PingContext(ctx); err != nil {
				return fmt.Errorf("postgres: %w", err)
			}
			if err := portfolioCache.Ping(ctx); err != nil {
				return fmt.Errorf("redis: %w", err)
			}
			return nil
		},
	}

	router := api.SetupRoutes(deps)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Запуск сервера в отдельной горутине
	go func() {
		logger.Infof("Starting server on %s", server.Addr)
		if cfg.Server.UseHTTPS {
			if err := server.ListenAndServeTLS(cfg.Server.CertFile, cfg.Server.KeyFile); err != nil && err != http.ErrServerClosed {
				logger.Fatalf("Server failed: %v", err)
			}
		} else {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Fatalf("Server failed: %v", err)
			}
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Infof("Shutting down server...")

	stopSync()
	close(hubDone)
	exchange.CloseGlobalClient()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Fatalf("Server forced to shutdown: %v", err)
	}

	logger.Infof("Server exited")
}

// initDatabase создает подключение к базе данных
func initDatabase(cfg *config.Config) (*sql.DB, error) {
	db, err := sql.Open(cfg.Database.Driver, cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Настройка пула соединений
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}
