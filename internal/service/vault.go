package service

import (
	"context"
	"errors"
	"fmt"

	"cryptofolio/internal/models"
	"cryptofolio/pkg/crypto"
	"cryptofolio/pkg/utils"
)

// Ошибки хранилища учётных данных
var (
	ErrCredentialNotFound = errors.New("credential not found")
	ErrCredentialDisabled = errors.New("credential is disabled")
	ErrConnectionTestFail = errors.New("exchange rejected the credentials")
	ErrPassphraseRequired = errors.New("passphrase is required for this exchange")
)

// VaultService - хранилище API ключей бирж.
//
// Ключи шифруются AES-256-GCM сразу при добавлении и существуют
// в открытом виде только в памяти на время операции. Ключ шифрования
// один на процесс и приходит из конфигурации.
type VaultService struct {
	repo          CredentialRepositoryInterface
	encryptionKey []byte
	factory       AdapterFactory
	logger        utils.Logger
}

// NewVaultService создает сервис хранилища ключей.
// encryptionKey обязан быть 32 байта, проверяется при старте процесса.
func NewVaultService(repo CredentialRepositoryInterface, encryptionKey []byte, factory AdapterFactory, logger utils.Logger) (*VaultService, error) {
	if err := crypto.ValidateKey(encryptionKey); err != nil {
		return nil, fmt.Errorf("vault: %w", err)
	}
	return &VaultService{
		repo:          repo,
		encryptionKey: encryptionKey,
		factory:       factory,
		logger:        logger,
	}, nil
}

// Add валидирует, проверяет и сохраняет новые учётные данные.
//
// Перед сохранением делается тестовый запрос к бирже: битые ключи
// не попадают в хранилище. Возвращается запись без секретного материала.
func (v *VaultService) Add(ctx context.Context, userID, exchangeID string, creds models.ExchangeCredentials) (*models.EncryptedCredentials, error) {
	if err := utils.ValidateUserID(userID); err != nil {
		return nil, err
	}
	if err := utils.ValidateExchangeID(exchangeID); err != nil {
		return nil, err
	}
	if err := utils.ValidateAPIKey(creds.APIKey); err != nil {
		return nil, err
	}
	if creds.APISecret == "" {
		return nil, errors.New("api secret is empty")
	}
	exchangeID = utils.NormalizeExchangeID(exchangeID)
	if exchangeID == "okx" && creds.Passphrase == "" {
		return nil, ErrPassphraseRequired
	}

	// Проверяем ключи тестовым запросом до записи в БД
	adapter, err := v.factory(exchangeID, creds)
	if err != nil {
		return nil, err
	}
	if err := adapter.TestConnection(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectionTestFail, err)
	}

	payload, err := json.Marshal(creds)
	if err != nil {
		return nil, fmt.Errorf("marshal credentials: %w", err)
	}

	ciphertext, iv, err := crypto.Encrypt(string(payload), v.encryptionKey)
	if err != nil {
		return nil, fmt.Errorf("encrypt credentials: %w", err)
	}

	record := &models.EncryptedCredentials{
		UserID:     userID,
		ExchangeID: exchangeID,
		Ciphertext: ciphertext,
		IV:         iv,
		SyncStatus: models.SyncStatusActive,
	}
	if err := v.repo.Create(record); err != nil {
		return nil, err
	}

	v.logger.Infof("credential added: id=%s exchange=%s user=%s", record.ID, exchangeID, userID)
	return record.Redacted(), nil
}

// Get возвращает расшифрованные учётные данные записи.
//
// Повреждённый шифротекст (смена ключа шифрования, порча данных) -
// это nil без ошибки: вызывающий трактует его как "ключей нет",
// а инцидент остаётся в логах. Паниковать или отдавать ошибку наружу
// нельзя - иначе одна битая запись валит листинги и синхронизацию.
func (v *VaultService) Get(ctx context.Context, credentialID string) (*models.ExchangeCredentials, error) {
	record, err := v.repo.GetByID(credentialID)
	if err != nil {
		return nil, mapRepoErr(err)
	}

	plaintext, err := crypto.Decrypt(record.Ciphertext, record.IV, v.encryptionKey)
	if err != nil {
		v.logger.Errorf("credential %s: decrypt failed: %s", credentialID, err)
		return nil, nil
	}

	var creds models.ExchangeCredentials
	if err := json.Unmarshal([]byte(plaintext), &creds); err != nil {
		v.logger.Errorf("credential %s: corrupt plaintext payload: %s", credentialID, err)
		return nil, nil
	}

	return &creds, nil
}

// GetRecord возвращает запись без расшифровки (метаданные + шифротекст)
func (v *VaultService) GetRecord(ctx context.Context, credentialID string) (*models.EncryptedCredentials, error) {
	record, err := v.repo.GetByID(credentialID)
	if err != nil {
		return nil, mapRepoErr(err)
	}
	return record, nil
}

// List возвращает записи пользователя без секретного материала
func (v *VaultService) List(ctx context.Context, userID string) ([]*models.EncryptedCredentials, error) {
	records, err := v.repo.GetByUser(userID)
	if err != nil {
		return nil, err
	}

	redacted := make([]*models.EncryptedCredentials, len(records))
	for i, record := range records {
		redacted[i] = record.Redacted()
	}
	return redacted, nil
}

// SetDisabled включает/выключает участие записи в синхронизации
func (v *VaultService) SetDisabled(ctx context.Context, credentialID string, disabled bool) error {
	if err := v.repo.SetDisabled(credentialID, disabled); err != nil {
		return mapRepoErr(err)
	}
	v.logger.Infof("credential %s: disabled=%t", credentialID, disabled)
	return nil
}

// Delete удаляет запись вместе с шифротекстом
func (v *VaultService) Delete(ctx context.Context, credentialID string) error {
	if err := v.repo.Delete(credentialID); err != nil {
		return mapRepoErr(err)
	}
	v.logger.Infof("credential %s: deleted", credentialID)
	return nil
}
