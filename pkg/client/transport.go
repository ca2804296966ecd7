package client

import (
	"net/http"
	"strings"
)

// Transport — конвейер исходящих запросов (http.RoundTripper):
//
//   - фаза запроса: подставляет Authorization: Bearer для всех вызовов,
//     кроме самих auth-эндпоинтов (login/register/refresh);
//   - фаза ответа: 401 передаёт координатору и после успешного refresh
//     повторяет запрос ровно один раз с новым токеном; повторный 401
//     отдаётся как есть — ретраи ограничены одним циклом обновления;
//   - 401 от самого /auth/refresh никогда не запускает новый refresh
//     (обязательная защита от рекурсии).
type Transport struct {
	base  http.RoundTripper
	store *TokenStore
	coord *coordinator
}

var _ http.RoundTripper = (*Transport)(nil)

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if isAuthEndpoint(req.URL.Path) {
		return t.base.RoundTrip(req)
	}

	authed := req
	if token := t.store.Access(); token != "" {
		authed = withBearer(req, token)
	}

	resp, err := t.base.RoundTrip(authed)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}

	// Повтор возможен только если тело запроса восстановимо.
	if req.Body != nil && req.GetBody == nil {
		return resp, nil
	}

	// Оригинальный 401 больше не нужен.
	drainBody(resp)

	token, err := t.coord.Await(req.Context())
	if err != nil {
		return nil, err
	}

	retry, err := rewind(req)
	if err != nil {
		return nil, err
	}

	return t.base.RoundTrip(withBearer(retry, token))
}

// isAuthEndpoint отсекает пути, которым bearer не подставляется и для
// которых 401 не считается поводом для refresh.
func isAuthEndpoint(path string) bool {
	for _, suffix := range []string{"/auth/register", "/auth/login", "/auth/refresh"} {
		if strings.HasSuffix(path, suffix) {
			return true
		}
	}

	return false
}

// withBearer возвращает копию запроса с заголовком Authorization.
// Исходный запрос не мутируется (контракт RoundTripper).
func withBearer(req *http.Request, token string) *http.Request {
	clone := req.Clone(req.Context())
	clone.Header.Set("Authorization", "Bearer "+token)
	return clone
}

// rewind готовит запрос к повторной отправке, восстанавливая тело.
func rewind(req *http.Request) (*http.Request, error) {
	clone := req.Clone(req.Context())
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		clone.Body = body
	}

	return clone, nil
}

func drainBody(resp *http.Response) {
	if resp.Body != nil {
		_ = resp.Body.Close()
	}
}
