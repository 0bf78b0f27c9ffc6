package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	jsoniter "github.com/json-iterator/go"

	"cryptofolio/internal/models"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrSnapshotNotFound возвращается, когда для записи ещё нет снапшота
var ErrSnapshotNotFound = errors.New("portfolio snapshot not found")

// PortfolioCache - durable key-value хранилище снапшотов портфелей в Redis.
//
// Схема ключей:
//
//	portfolio:{credentialID}   - JSON снапшот ExchangePortfolio
//	portfolio:user:{userID}    - set идентификаторов записей пользователя
//
// Снапшот на запись ровно один: каждая синхронизация замещает предыдущий.
// TTL не ставится - устаревший снапшот полезнее отсутствующего,
// возраст виден по полю last_updated.
type PortfolioCache struct {
	client *redis.Client
}

// NewPortfolioCache создает хранилище поверх существующего клиента
func NewPortfolioCache(client *redis.Client) *PortfolioCache {
	return &PortfolioCache{client: client}
}

// NewRedisClient создает redis клиент с настройками пула
func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,

		PoolSize:     10,
		MinIdleConns: 2,

		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
}

func snapshotKey(credentialID string) string {
	return "portfolio:" + credentialID
}

func userIndexKey(userID string) string {
	return "portfolio:user:" + userID
}

// Save сохраняет снапшот портфеля и добавляет запись в индекс пользователя
func (pc *PortfolioCache) Save(ctx context.Context, userID string, portfolio *models.ExchangePortfolio) error {
	payload, err := json.Marshal(portfolio)
	if err != nil {
		return fmt.Errorf("marshal portfolio snapshot: %w", err)
	}

	pipe := pc.client.TxPipeline()
	pipe.Set(ctx, snapshotKey(portfolio.CredentialID), payload, 0)
	pipe.SAdd(ctx, userIndexKey(userID), portfolio.CredentialID)
	_, err = pipe.Exec(ctx)
	return err
}

// Get возвращает снапшот по записи учётных данных
func (pc *PortfolioCache) Get(ctx context.Context, credentialID string) (*models.ExchangePortfolio, error) {
	payload, err := pc.client.Get(ctx, snapshotKey(credentialID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSnapshotNotFound
		}
		return nil, err
	}

	var portfolio models.ExchangePortfolio
	if err := json.Unmarshal(payload, &portfolio); err != nil {
		return nil, fmt.Errorf("unmarshal portfolio snapshot: %w", err)
	}

	return &portfolio, nil
}

// GetByUser возвращает все снапшоты пользователя.
// Записи без снапшота (ещё не синхронизировались) пропускаются.
func (pc *PortfolioCache) GetByUser(ctx context.Context, userID string) ([]*models.ExchangePortfolio, error) {
	credentialIDs, err := pc.client.SMembers(ctx, userIndexKey(userID)).Result()
	if err != nil {
		return nil, err
	}
	if len(credentialIDs) == 0 {
		return nil, nil
	}

	keys := make([]string, len(credentialIDs))
	for i, id := range credentialIDs {
		keys[i] = snapshotKey(id)
	}

	values, err := pc.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	portfolios := make([]*models.ExchangePortfolio, 0, len(values))
	for _, value := range values {
		raw, ok := value.(string)
		if !ok {
			continue // ключ отсутствует
		}

		var portfolio models.ExchangePortfolio
		if err := json.Unmarshal([]byte(raw), &portfolio); err != nil {
			return nil, fmt.Errorf("unmarshal portfolio snapshot: %w", err)
		}
		portfolios = append(portfolios, &portfolio)
	}

	return portfolios, nil
}

// Delete удаляет снапшот и убирает запись из индекса пользователя
func (pc *PortfolioCache) Delete(ctx context.Context, userID, credentialID string) error {
	pipe := pc.client.TxPipeline()
	pipe.Del(ctx, snapshotKey(credentialID))
	pipe.SRem(ctx, userIndexKey(userID), credentialID)
	_, err := pipe.Exec(ctx)
	return err
}

// Ping проверяет доступность Redis (используется health check'ом)
func (pc *PortfolioCache) Ping(ctx context.Context) error {
	return pc.client.Ping(ctx).Err()
}
