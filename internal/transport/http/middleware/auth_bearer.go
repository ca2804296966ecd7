package middleware

import (
	"context"
	"net/http"
	"strings"
)

// AuthBearer извлекает Bearer-токен из Authorization и кладёт "сырой" токен
// в контекст по ключу CtxAuthToken. Сам токен здесь не проверяется —
// это делает RequireAuth на защищённых маршрутах.
func AuthBearer() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")

			if auth != "" {
				const prefix = "Bearer "
				if strings.HasPrefix(auth, prefix) && len(auth) > len(prefix) {
					token := strings.TrimSpace(auth[len(prefix):])

					if token != "" {
						ctx := context.WithValue(r.Context(), CtxAuthToken, token)
						r = r.WithContext(ctx)
					}
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// BearerToken достаёт токен, положенный AuthBearer, из контекста.
func BearerToken(ctx context.Context) (string, bool) {
	v := ctx.Value(CtxAuthToken)
	if v == nil {
		return "", false
	}

	token, ok := v.(string)
	return token, ok && token != ""
}
