package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"io"
)

// Ошибки шифрования
var (
	ErrInvalidKeyLength  = errors.New("encryption key must be exactly 32 bytes for AES-256")
	ErrInvalidCiphertext = errors.New("invalid ciphertext")
	ErrInvalidIV         = errors.New("invalid initialization vector")
	ErrDecryptionFailed  = errors.New("decryption failed: authentication error")
)

// KeyLength - длина ключа AES-256 в байтах
const KeyLength = 32

// Encrypt шифрует plaintext с использованием AES-256-GCM.
// Для каждого вызова генерируется случайный IV (nonce).
// Аутентификационный тег GCM добавляется в конец шифротекста,
// поэтому подмена данных обнаруживается по самому хранимому блобу.
//
// Возвращает base64-encoded шифротекст и IV отдельными значениями -
// в таком виде они и хранятся в записи EncryptedCredentials.
func Encrypt(plaintext string, key []byte) (ciphertext, iv string, err error) {
	if len(key) != KeyLength {
		return "", "", ErrInvalidKeyLength
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", "", err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", "", err
	}

	// Случайный nonce для каждой записи
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", "", err
	}

	// GCM добавляет аутентификационный тег в конец автоматически
	sealed := gcm.Seal(nil, nonce, []byte(plaintext), nil)

	return base64.StdEncoding.EncodeToString(sealed), base64.StdEncoding.EncodeToString(nonce), nil
}

// Decrypt расшифровывает пару (ciphertext, iv), полученную из Encrypt.
// Возвращает ErrDecryptionFailed при любом нарушении аутентификации:
// неверный ключ, подменённый шифротекст или чужой IV.
func Decrypt(ciphertext, iv string, key []byte) (string, error) {
	if len(key) != KeyLength {
		return "", ErrInvalidKeyLength
	}

	sealed, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", ErrInvalidCiphertext
	}

	nonce, err := base64.StdEncoding.DecodeString(iv)
	if err != nil {
		return "", ErrInvalidIV
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	if len(nonce) != gcm.NonceSize() {
		return "", ErrInvalidIV
	}

	// Шифротекст обязан вмещать хотя бы аутентификационный тег
	if len(sealed) < gcm.Overhead() {
		return "", ErrInvalidCiphertext
	}

	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", ErrDecryptionFailed
	}

	return string(plaintext), nil
}

// GenerateKey генерирует криптографически стойкий случайный ключ (32 байта для AES-256)
func GenerateKey() ([]byte, error) {
	key := make([]byte, KeyLength)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, err
	}
	return key, nil
}

// ValidateKey проверяет, что ключ имеет правильную длину
func ValidateKey(key []byte) error {
	if len(key) != KeyLength {
		return ErrInvalidKeyLength
	}
	return nil
}
