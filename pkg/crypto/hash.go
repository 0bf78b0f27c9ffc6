package crypto

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// Ошибки хеширования
var (
	ErrEmptyToken    = errors.New("token cannot be empty")
	ErrTokenMismatch = errors.New("token does not match hash")
	ErrInvalidHash   = errors.New("invalid token hash format")
	ErrTokenTooLong  = errors.New("token exceeds maximum length of 72 bytes")
)

// DefaultCost - стоимость хеширования по умолчанию.
// API токен проверяется один раз на запрос, высокая стоимость допустима.
const DefaultCost = 12

// MaxTokenLength - максимальная длина входа для bcrypt (72 байта)
const MaxTokenLength = 72

// HashToken хеширует API токен дашборда с использованием bcrypt.
// Salt генерируется автоматически; в конфигурации сервера хранится хеш,
// а не сам токен.
func HashToken(token string) (string, error) {
	if token == "" {
		return "", ErrEmptyToken
	}

	if len(token) > MaxTokenLength {
		return "", ErrTokenTooLong
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(token), DefaultCost)
	if err != nil {
		return "", err
	}

	return string(hash), nil
}

// VerifyToken проверяет соответствие токена хешу.
// Сравнение constant-time для защиты от timing attacks.
func VerifyToken(token, hash string) error {
	if token == "" {
		return ErrEmptyToken
	}

	if hash == "" {
		return ErrInvalidHash
	}

	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(token))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrTokenMismatch
		}
		return ErrInvalidHash
	}

	return nil
}

// TokenMatches проверяет соответствие токена хешу и возвращает bool.
// Удобная обёртка для middleware.
func TokenMatches(token, hash string) bool {
	return VerifyToken(token, hash) == nil
}
