package websocket

import (
	"bytes"
	"encoding/json"
	"sync"
	"time"

	"cryptofolio/internal/models"
	"cryptofolio/internal/service"
	"cryptofolio/pkg/utils"
)

// jsonBufferPool убирает аллокации буфера на каждый Broadcast
var jsonBufferPool = sync.Pool{
	New: func() interface{} {
		return bytes.NewBuffer(make([]byte, 0, 512))
	},
}

// Hub управляет всеми активными WebSocket соединениями.
//
// Центральный менеджер broadcast сообщений подключенным клиентам
// дашборда. Реализует service.Notifier: оркестратор синхронизации
// шлёт сюда итоги синков и свежие снапшоты портфелей.
//
// Использование:
//  1. Создать hub: hub := NewHub(logger)
//  2. Запустить в горутине: go hub.Run(ctx)
//  3. Передать в SyncConfig.Notifier
type Hub struct {
	clients map[*Client]bool

	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client

	logger utils.Logger
	mu     sync.RWMutex
}

var _ service.Notifier = (*Hub)(nil)

// NewHub создает новый Hub
func NewHub(logger utils.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		logger:     logger,
	}
}

// Run запускает главный цикл Hub.
// Должен запускаться в отдельной горутине, блокирует до отмены контекста.
func (h *Hub) Run(done <-chan struct{}) {
	for {
		select {
		case <-done:
			h.closeAll()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.Debugf("websocket client connected, total=%d", total)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.Debugf("websocket client disconnected, total=%d", total)

		case message := <-h.broadcast:
			// Копируем список под коротким RLock, шлём без блокировки
			h.mu.RLock()
			clients := make([]*Client, 0, len(h.clients))
			for client := range h.clients {
				clients = append(clients, client)
			}
			h.mu.RUnlock()

			var toRemove []*Client
			for _, client := range clients {
				select {
				case client.send <- message:
				default:
					// Клиент не успевает читать - отключаем
					toRemove = append(toRemove, client)
				}
			}

			if len(toRemove) > 0 {
				h.mu.Lock()
				for _, client := range toRemove {
					if _, ok := h.clients[client]; ok {
						delete(h.clients, client)
						close(client.send)
					}
				}
				h.mu.Unlock()
				h.logger.Warnf("removed %d slow websocket clients", len(toRemove))
			}
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		delete(h.clients, client)
		close(client.send)
	}
}

// ClientCount возвращает число подключенных клиентов
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast сериализует сообщение и отправляет его всем клиентам
func (h *Hub) Broadcast(message interface{}) {
	buf := jsonBufferPool.Get().(*bytes.Buffer)
	buf.Reset()

	if err := json.NewEncoder(buf).Encode(message); err != nil {
		h.logger.Errorf("broadcast marshal: %s", err)
		jsonBufferPool.Put(buf)
		return
	}

	// Encode добавляет trailing newline
	data := buf.Bytes()
	if len(data) > 0 && data[len(data)-1] == '\n' {
		data = data[:len(data)-1]
	}

	msgCopy := make([]byte, len(data))
	copy(msgCopy, data)
	jsonBufferPool.Put(buf)

	select {
	case h.broadcast <- msgCopy:
	default:
		h.logger.Warnf("broadcast channel full, message dropped")
	}
}

// NotifySyncResult отправляет итог синхронизации (service.Notifier)
func (h *Hub) NotifySyncResult(userID string, result *models.SyncResult) {
	h.Broadcast(&SyncResultMessage{
		Type:      MessageTypeSyncResult,
		UserID:    userID,
		Timestamp: time.Now().UTC(),
		Data:      result,
	})
}

// NotifyPortfolio отправляет свежий снапшот портфеля (service.Notifier)
func (h *Hub) NotifyPortfolio(userID string, portfolio *models.ExchangePortfolio) {
	h.Broadcast(&PortfolioUpdateMessage{
		Type:      MessageTypePortfolioUpdate,
		UserID:    userID,
		Timestamp: time.Now().UTC(),
		Data:      portfolio,
	})
}
