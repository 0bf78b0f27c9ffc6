package middleware

import (
	"net/http"
	"time"

	"cryptofolio/pkg/utils"

	"github.com/gorilla/mux"
)

// responseWriter оборачивает http.ResponseWriter чтобы захватить
// статус код и размер ответа
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    int64
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.written += int64(n)
	return n, err
}

// Logging логирует все входящие HTTP запросы.
//
// Формат: METHOD /path - status - duration - client_ip - size
func Logging(logger utils.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			wrapped := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(wrapped, r)

			logger.Infof("%s %s - %d - %v - %s - %d bytes",
				r.Method,
				r.URL.Path,
				wrapped.statusCode,
				time.Since(start),
				r.RemoteAddr,
				wrapped.written,
			)
		})
	}
}
