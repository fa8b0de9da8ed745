package middleware

import (
	"accountsvc/internal/logger"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Logging пишет одну строку на запрос. request_id и email администратора
// подтягиваются из контекста через logger.WithCtx.
func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		lrw := &loggingResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(lrw, r)

		fields := []zap.Field{
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", lrw.statusCode),
			zap.Int("bytes", lrw.written),
			zap.Duration("duration", time.Since(start)),
			zap.String("ip", clientIP(r)),
		}

		// email кладёт RequireAdmin во внутренний контекст, снаружи его нет
		if lrw.authEmail != "" {
			fields = append(fields, zap.String("auth_email", lrw.authEmail))
		}

		logger.WithCtx(r.Context()).Info("HTTP-запрос", fields...)
	})
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode  int
	written     int
	wroteHeader bool
	authEmail   string
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	if !lrw.wroteHeader {
		lrw.statusCode = code
		lrw.wroteHeader = true
	}
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Write(b []byte) (int, error) {
	lrw.wroteHeader = true
	n, err := lrw.ResponseWriter.Write(b)
	lrw.written += n
	return n, err
}

// rememberEmail отдаёт email наверх в Logging, если запрос прошёл через него.
func rememberEmail(w http.ResponseWriter, email string) {
	if lrw, ok := w.(*loggingResponseWriter); ok {
		lrw.authEmail = email
	}
}
