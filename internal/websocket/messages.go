package websocket

import (
	"time"

	"cryptofolio/internal/models"
)

// MessageType определяет тип WebSocket сообщения
type MessageType string

// Типы WebSocket сообщений
const (
	// MessageTypeSyncResult - итог синхронизации одной учётной записи.
	// Отправляется после каждой ручной и фоновой синхронизации.
	MessageTypeSyncResult MessageType = "syncResult"

	// MessageTypePortfolioUpdate - свежий снапшот портфеля биржи.
	// Отправляется после успешной синхронизации, дашборд не опрашивает API.
	MessageTypePortfolioUpdate MessageType = "portfolioUpdate"
)

// SyncResultMessage - сообщение об итоге синхронизации
type SyncResultMessage struct {
	Type      MessageType        `json:"type"`
	UserID    string             `json:"user_id"`
	Timestamp time.Time          `json:"timestamp"`
	Data      *models.SyncResult `json:"data"`
}

// PortfolioUpdateMessage - сообщение со свежим снапшотом портфеля
type PortfolioUpdateMessage struct {
	Type      MessageType               `json:"type"`
	UserID    string                    `json:"user_id"`
	Timestamp time.Time                 `json:"timestamp"`
	Data      *models.ExchangePortfolio `json:"data"`
}
