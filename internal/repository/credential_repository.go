package repository

import (
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"cryptofolio/internal/models"
)

// Ошибки репозитория учётных данных
var (
	ErrCredentialNotFound = errors.New("credential not found")
	ErrCredentialExists   = errors.New("credential already exists")
)

// CredentialRepository - работа с таблицей exchange_credentials.
//
// В таблице хранится ТОЛЬКО зашифрованный блоб: plaintext ключей
// не попадает ни в БД, ни в логи, ни в SQL параметры.
type CredentialRepository struct {
	db *sql.DB
}

// NewCredentialRepository создает новый экземпляр репозитория
func NewCredentialRepository(db *sql.DB) *CredentialRepository {
	return &CredentialRepository{db: db}
}

// Create сохраняет новую зашифрованную запись.
// ID генерируется здесь (uuid), чтобы вызывающий мог сразу его использовать.
func (r *CredentialRepository) Create(cred *models.EncryptedCredentials) error {
	query := `
		INSERT INTO exchange_credentials (id, user_id, exchange_id, ciphertext, iv, sync_status, error_message, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	now := time.Now().UTC()
	if cred.ID == "" {
		cred.ID = uuid.NewString()
	}
	if cred.SyncStatus == "" {
		cred.SyncStatus = models.SyncStatusActive
	}
	cred.CreatedAt = now
	cred.UpdatedAt = now

	_, err := r.db.Exec(
		query,
		cred.ID,
		cred.UserID,
		cred.ExchangeID,
		cred.Ciphertext,
		cred.IV,
		cred.SyncStatus,
		cred.ErrorMessage,
		cred.CreatedAt,
		cred.UpdatedAt,
	)

	if err != nil {
		if isUniqueViolation(err) {
			return ErrCredentialExists
		}
		return err
	}

	return nil
}

// GetByID возвращает запись по ID
func (r *CredentialRepository) GetByID(id string) (*models.EncryptedCredentials, error) {
	query := `
		SELECT id, user_id, exchange_id, ciphertext, iv, sync_status, error_message, last_sync_at, created_at, updated_at
		FROM exchange_credentials
		WHERE id = $1`

	return r.scanOne(r.db.QueryRow(query, id))
}

// GetByUser возвращает все записи пользователя
func (r *CredentialRepository) GetByUser(userID string) ([]*models.EncryptedCredentials, error) {
	query := `
		SELECT id, user_id, exchange_id, ciphertext, iv, sync_status, error_message, last_sync_at, created_at, updated_at
		FROM exchange_credentials
		WHERE user_id = $1
		ORDER BY created_at DESC`

	return r.scanMany(query, userID)
}

// GetSyncable возвращает записи, которые участвуют в периодической
// синхронизации (статус отличен от disabled)
func (r *CredentialRepository) GetSyncable() ([]*models.EncryptedCredentials, error) {
	query := `
		SELECT id, user_id, exchange_id, ciphertext, iv, sync_status, error_message, last_sync_at, created_at, updated_at
		FROM exchange_credentials
		WHERE sync_status != $1
		ORDER BY created_at DESC`

	return r.scanMany(query, models.SyncStatusDisabled)
}

// UpdateSyncStatus обновляет статус синхронизации после попытки.
// Время попытки проставляется всегда, и при успехе, и при провале:
// свежесть данных видна по sync_status и error_message.
func (r *CredentialRepository) UpdateSyncStatus(id, status, errorMessage string, syncedAt time.Time) error {
	query := `
		UPDATE exchange_credentials
		SET sync_status = $1, error_message = $2, last_sync_at = $3, updated_at = $4
		WHERE id = $5`

	result, err := r.db.Exec(query, status, errorMessage, syncedAt, time.Now().UTC(), id)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrCredentialNotFound
	}

	return nil
}

// SetDisabled переключает статус disabled (пауза синхронизации)
func (r *CredentialRepository) SetDisabled(id string, disabled bool) error {
	status := models.SyncStatusActive
	if disabled {
		status = models.SyncStatusDisabled
	}

	query := `
		UPDATE exchange_credentials
		SET sync_status = $1, updated_at = $2
		WHERE id = $3`

	result, err := r.db.Exec(query, status, time.Now().UTC(), id)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrCredentialNotFound
	}

	return nil
}

// Delete удаляет запись вместе с привязанными сделками (FK ON DELETE CASCADE)
func (r *CredentialRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM exchange_credentials WHERE id = $1`, id)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrCredentialNotFound
	}

	return nil
}

func (r *CredentialRepository) scanOne(row *sql.Row) (*models.EncryptedCredentials, error) {
	cred := &models.EncryptedCredentials{}
	err := row.Scan(
		&cred.ID,
		&cred.UserID,
		&cred.ExchangeID,
		&cred.Ciphertext,
		&cred.IV,
		&cred.SyncStatus,
		&cred.ErrorMessage,
		&cred.LastSyncAt,
		&cred.CreatedAt,
		&cred.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCredentialNotFound
		}
		return nil, err
	}

	return cred, nil
}

func (r *CredentialRepository) scanMany(query string, args ...interface{}) ([]*models.EncryptedCredentials, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var creds []*models.EncryptedCredentials
	for rows.Next() {
		cred := &models.EncryptedCredentials{}
		err := rows.Scan(
			&cred.ID,
			&cred.UserID,
			&cred.ExchangeID,
			&cred.Ciphertext,
			&cred.IV,
			&cred.SyncStatus,
			&cred.ErrorMessage,
			&cred.LastSyncAt,
			&cred.CreatedAt,
			&cred.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		creds = append(creds, cred)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return creds, nil
}

// isUniqueViolation определяет нарушение уникального ограничения postgres
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "duplicate key value violates unique constraint")
}
