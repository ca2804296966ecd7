package middleware

import (
	"context"
	"net/http"

	"github.com/negspace-imaging/auth-service/internal/models"
	"github.com/negspace-imaging/auth-service/internal/service"
	"github.com/negspace-imaging/auth-service/internal/transport/http/apierrors"
)

// TokenVerifier проверяет access-токен; реализуется сервисным слоем.
type TokenVerifier interface {
	VerifyToken(ctx context.Context, accessToken string) (*models.TokenPayload, error)
}

// RequireAuth закрывает маршрут: требует валидный bearer access-токен
// (извлечённый AuthBearer) и кладёт *models.TokenPayload в контекст
// по ключу CtxIdentity.
func RequireAuth(verifier TokenVerifier) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := BearerToken(r.Context())
			if !ok {
				apierrors.WriteError(w, r, service.ErrInvalidToken)
				return
			}

			payload, err := verifier.VerifyToken(r.Context(), token)
			if err != nil {
				apierrors.WriteError(w, r, err)
				return
			}

			ctx := context.WithValue(r.Context(), CtxIdentity, payload)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Identity достаёт payload аутентифицированного пользователя из контекста.
func Identity(ctx context.Context) (*models.TokenPayload, bool) {
	v := ctx.Value(CtxIdentity)
	if v == nil {
		return nil, false
	}

	payload, ok := v.(*models.TokenPayload)
	return payload, ok && payload != nil
}
