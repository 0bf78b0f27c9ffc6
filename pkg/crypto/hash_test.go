package crypto

import "testing"

// TestHashAndVerifyToken проверяет базовый цикл хеширования токена
func TestHashAndVerifyToken(t *testing.T) {
	token := "dashboard-api-token-123"

	hash, err := HashToken(token)
	if err != nil {
		t.Fatalf("HashToken failed: %v", err)
	}

	if hash == token {
		t.Error("hash should not equal token")
	}

	if err := VerifyToken(token, hash); err != nil {
		t.Errorf("VerifyToken with correct token: unexpected error %v", err)
	}

	if err := VerifyToken("wrong-token", hash); err != ErrTokenMismatch {
		t.Errorf("VerifyToken with wrong token: got %v, want %v", err, ErrTokenMismatch)
	}
}

// TestHashTokenValidation проверяет граничные случаи входа
func TestHashTokenValidation(t *testing.T) {
	if _, err := HashToken(""); err != ErrEmptyToken {
		t.Errorf("HashToken(empty): got %v, want %v", err, ErrEmptyToken)
	}

	long := make([]byte, MaxTokenLength+1)
	for i := range long {
		long[i] = 'a'
	}
	if _, err := HashToken(string(long)); err != ErrTokenTooLong {
		t.Errorf("HashToken(too long): got %v, want %v", err, ErrTokenTooLong)
	}
}

// TestVerifyTokenInvalidHash проверяет обработку битого хеша
func TestVerifyTokenInvalidHash(t *testing.T) {
	if err := VerifyToken("token", ""); err != ErrInvalidHash {
		t.Errorf("VerifyToken(empty hash): got %v, want %v", err, ErrInvalidHash)
	}
	if err := VerifyToken("token", "not-a-bcrypt-hash"); err != ErrInvalidHash {
		t.Errorf("VerifyToken(garbage hash): got %v, want %v", err, ErrInvalidHash)
	}
}

// TestTokenMatches проверяет bool-обёртку
func TestTokenMatches(t *testing.T) {
	hash, _ := HashToken("tok")
	if !TokenMatches("tok", hash) {
		t.Error("TokenMatches should return true for correct token")
	}
	if TokenMatches("other", hash) {
		t.Error("TokenMatches should return false for wrong token")
	}
}
