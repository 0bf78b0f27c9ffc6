package middleware

import (
	"net/http"
	"runtime/debug"

	"cryptofolio/pkg/utils"

	"github.com/gorilla/mux"
)

// Recovery перехватывает panic в handlers и не даёт упасть всему серверу.
// Логирует ошибку со stack trace и возвращает клиенту 500.
func Recovery(logger utils.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					logger.Errorf("panic: %v\n%s", err, debug.Stack())

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					w.Write([]byte(`{"error":"internal server error","code":"PANIC"}`))
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
