package models

import "time"

// Статусы синхронизации учётной записи биржи.
// disabled - терминальный статус, устанавливается только пользователем
// и никогда не выставляется автоматически при ошибках.
const (
	SyncStatusActive   = "active"
	SyncStatusError    = "error"
	SyncStatusDisabled = "disabled"
)

// ExchangeCredentials - расшифрованные API ключи одной биржи.
// Никогда не сериализуются на диск и не попадают в логи в открытом виде:
// за пределами Vault существуют только в памяти на время запроса.
type ExchangeCredentials struct {
	APIKey     string `json:"api_key"`
	APISecret  string `json:"api_secret"`
	Passphrase string `json:"passphrase,omitempty"` // требуется для OKX
	Subaccount string `json:"subaccount,omitempty"`
}

// EncryptedCredentials - запись хранилища с зашифрованными ключами.
// Ciphertext содержит AES-256-GCM шифротекст с аутентификационным тегом
// в конце; IV уникален для каждой записи.
type EncryptedCredentials struct {
	ID           string     `json:"id" db:"id"`
	UserID       string     `json:"user_id" db:"user_id"`
	ExchangeID   string     `json:"exchange_id" db:"exchange_id"` // binance, coinbase, kraken, okx, bybit
	Ciphertext   string     `json:"-" db:"ciphertext"`            // base64, не возвращается в JSON
	IV           string     `json:"-" db:"iv"`                    // base64, не возвращается в JSON
	SyncStatus   string     `json:"sync_status" db:"sync_status"`
	ErrorMessage string     `json:"error_message,omitempty" db:"error_message"`
	LastSyncAt   *time.Time `json:"last_sync_at,omitempty" db:"last_sync_at"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at" db:"updated_at"`
}

// Redacted возвращает копию записи без шифротекста и IV.
// Используется во всех листинговых операциях: секретный материал
// не должен покидать Vault через выборку списка.
func (c *EncryptedCredentials) Redacted() *EncryptedCredentials {
	return &EncryptedCredentials{
		ID:           c.ID,
		UserID:       c.UserID,
		ExchangeID:   c.ExchangeID,
		SyncStatus:   c.SyncStatus,
		ErrorMessage: c.ErrorMessage,
		LastSyncAt:   c.LastSyncAt,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
	}
}

// IsDisabled сообщает, исключена ли запись из синхронизации.
func (c *EncryptedCredentials) IsDisabled() bool {
	return c.SyncStatus == SyncStatusDisabled
}
