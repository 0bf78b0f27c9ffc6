package middleware

import (
	"net/http"
	"strings"

	"cryptofolio/pkg/crypto"

	"github.com/gorilla/mux"
)

// Auth проверяет статический API токен из заголовка Authorization.
//
// Токен сравнивается с bcrypt-хэшем из конфигурации (API_TOKEN_HASH),
// сам токен сервер не хранит. Пустой хэш отключает проверку -
// режим локального развертывания без аутентификации.
func Auth(tokenHash string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if tokenHash == "" {
				next.ServeHTTP(w, r)
				return
			}

			token := bearerToken(r)
			if token == "" {
				unauthorized(w, "missing bearer token")
				return
			}
			if !crypto.TokenMatches(token, tokenHash) {
				unauthorized(w, "invalid token")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":"` + message + `","code":"UNAUTHORIZED"}`))
}
