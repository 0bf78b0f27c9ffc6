package ratelimit

import (
	"context"
	"sync"
	"time"
)

// RateLimiter - Token Bucket rate limiter для контроля частоты запросов к API бирж.
//
// Ведро наполняется токенами с постоянной скоростью (rate токенов/сек),
// ёмкость ограничена burst, каждый запрос потребляет один токен.
// Burst позволяет короткие всплески (например, импорт истории сделок
// по нескольким символам подряд), постоянный поток сглаживается.
//
// Лимиты задаются конфигурацией на биржу: Kraken публично требует
// ~1 req/sec для приватных эндпоинтов, Binance допускает ~10 req/sec.
type RateLimiter struct {
	rate       float64 // токенов в секунду
	burst      float64 // ёмкость ведра
	tokens     float64 // текущее количество токенов
	lastRefill time.Time
	mu         sync.Mutex
}

// NewRateLimiter создаёт rate limiter с заданной скоростью и burst.
// При rate <= 0 используется 10 req/sec, при burst <= 0 ёмкость
// устанавливается в удвоенный rate. Burst меньше rate допустим:
// такое ведро принудительно растягивает запросы во времени.
func NewRateLimiter(rate, burst float64) *RateLimiter {
	if rate <= 0 {
		rate = 10
	}
	if burst <= 0 {
		burst = rate * 2
	}

	return &RateLimiter{
		rate:       rate,
		burst:      burst,
		tokens:     burst, // начинаем с полным ведром
		lastRefill: time.Now(),
	}
}

// refill пополняет токены на основе прошедшего времени.
// Вызывается под lock'ом.
func (rl *RateLimiter) refill() {
	now := time.Now()
	elapsed := now.Sub(rl.lastRefill).Seconds()

	rl.tokens += elapsed * rl.rate
	if rl.tokens > rl.burst {
		rl.tokens = rl.burst
	}

	rl.lastRefill = now
}

// Wait блокирует до получения токена или отмены контекста.
// Оркестратор вызывает Wait перед каждым запросом к бирже, поэтому
// таймаут синхронизации (через ctx) ограничивает и время ожидания лимита.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	for {
		rl.mu.Lock()
		rl.refill()

		if rl.tokens >= 1 {
			rl.tokens--
			rl.mu.Unlock()
			return nil
		}

		// Время до появления следующего токена
		waitTime := time.Duration((1 - rl.tokens) / rl.rate * float64(time.Second))
		rl.mu.Unlock()

		select {
		case <-time.After(waitTime):
			continue
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Allow проверяет доступность токена без блокировки.
func (rl *RateLimiter) Allow() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.refill()

	if rl.tokens >= 1 {
		rl.tokens--
		return true
	}

	return false
}

// Tokens возвращает текущее количество доступных токенов.
// Используется для мониторинга и в тестах.
func (rl *RateLimiter) Tokens() float64 {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.refill()
	return rl.tokens
}

// Rate возвращает скорость пополнения (токенов/сек)
func (rl *RateLimiter) Rate() float64 {
	return rl.rate
}

// Burst возвращает ёмкость ведра
func (rl *RateLimiter) Burst() float64 {
	return rl.burst
}

// MultiLimiter хранит по одному rate limiter'у на идентификатор биржи.
// Лимиты у бирж разные, а запросы к разным биржам друг друга не ждут.
type MultiLimiter struct {
	limiters map[string]*RateLimiter
	mu       sync.RWMutex
}

// NewMultiLimiter создаёт пустой MultiLimiter
func NewMultiLimiter() *MultiLimiter {
	return &MultiLimiter{
		limiters: make(map[string]*RateLimiter),
	}
}

// Add регистрирует лимит для биржи
func (ml *MultiLimiter) Add(exchangeID string, rate, burst float64) {
	ml.mu.Lock()
	defer ml.mu.Unlock()
	ml.limiters[exchangeID] = NewRateLimiter(rate, burst)
}

// Wait ожидает токен для указанной биржи.
// Для биржи без зарегистрированного лимита возвращает nil сразу.
func (ml *MultiLimiter) Wait(ctx context.Context, exchangeID string) error {
	ml.mu.RLock()
	limiter, ok := ml.limiters[exchangeID]
	ml.mu.RUnlock()

	if !ok {
		return nil
	}

	return limiter.Wait(ctx)
}

// Allow проверяет доступность токена для биржи без блокировки
func (ml *MultiLimiter) Allow(exchangeID string) bool {
	ml.mu.RLock()
	limiter, ok := ml.limiters[exchangeID]
	ml.mu.RUnlock()

	if !ok {
		return true
	}

	return limiter.Allow()
}

// Get возвращает limiter для биржи (nil, если не зарегистрирован)
func (ml *MultiLimiter) Get(exchangeID string) *RateLimiter {
	ml.mu.RLock()
	defer ml.mu.RUnlock()
	return ml.limiters[exchangeID]
}
