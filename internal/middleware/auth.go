package middleware

import (
	"accountsvc/internal/logger"
	"accountsvc/internal/models"
	"accountsvc/internal/reqctx"
	"accountsvc/internal/utils/helpers"
	"context"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// AdminAuthenticator: проверка bearer-токена администратора.
type AdminAuthenticator interface {
	Authenticate(ctx context.Context, token string) (*models.Account, error)
}

// RequireAdmin пропускает только запросы с токеном существующего администратора.
func RequireAdmin(admins AdminAuthenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			token, ok := bearerToken(r)
			if !ok {
				logger.WithCtx(r.Context()).Warn("RequireAdmin: отсутствует токен", zap.String("path", r.URL.Path))
				helpers.Error(w, http.StatusUnauthorized, "Unauthorized Access!")
				return
			}

			admin, err := admins.Authenticate(r.Context(), token)
			switch {
			case err == nil:
			case errors.Is(err, models.ErrInvalidToken):
				logger.WithCtx(r.Context()).Warn("RequireAdmin: неверный токен", zap.Error(err))
				helpers.Error(w, http.StatusForbidden, "Invalid token")
				return
			case errors.Is(err, models.ErrNotFound):
				logger.WithCtx(r.Context()).Warn("RequireAdmin: администратор не найден", zap.Error(err))
				helpers.Error(w, http.StatusUnauthorized, "No valid admin exists with the given token!")
				return
			default:
				logger.WithCtx(r.Context()).Error("RequireAdmin: ошибка проверки токена", zap.Error(err))
				helpers.Error(w, http.StatusInternalServerError, "Internal server error")
				return
			}

			rememberEmail(w, admin.Email)
			ctx := reqctx.WithAccountEmail(r.Context(), admin.Email)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	if len(h) < 7 || !strings.EqualFold(h[:7], "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(h[7:])
	return token, token != ""
}
