// handlers содержит реализацию REST-эндпоинтов auth-сервиса.
// Здесь выполняется только маппинг данных и ошибок доменного слоя (service)
// в HTTP. Вся валидация и бизнес-логика находятся в пакете service.
//
// Принципы:
//   - Контекст запроса прокидывается в сервис без потерь;
//   - Ошибки сервиса транслируются в статусы через apierrors
//     (ValidationError -> 400, credentials/token -> 401, conflict -> 409,
//     rate limit -> 429, прочее -> 500 c единым безопасным сообщением);
//   - Для 500 наружу не утекают детали внутренних ошибок; подробности
//     попадают в логи и Sentry внутри apierrors.WriteError.
package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/negspace-imaging/auth-service/internal/service"
)

const maxJSONBodyBytes = 1 << 20

// Handlers агрегирует зависимости эндпоинтов.
type Handlers struct {
	service *service.Service
}

func New(s *service.Service) *Handlers {
	return &Handlers{service: s}
}

// Service отдаёт сервисный слой (нужен роутеру для RequireAuth).
func (h *Handlers) Service() *service.Service { return h.service }

// writeJSON — единый ответ JSON с нужным Content-Type.
// Ошибки выводим через apierrors.WriteError.
func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

// decodeStrict — строгий JSON-декодер: запрещаем неизвестные поля
// и ограничиваем размер тела.
func decodeStrict(w http.ResponseWriter, r *http.Request, value any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(value)
}

// clientIP достаёт адрес клиента с учётом прокси (X-Forwarded-For).
func clientIP(r *http.Request) string {
	xff := strings.TrimSpace(r.Header.Get("X-Forwarded-For"))
	if xff != "" {
		parts := strings.Split(xff, ",")
		if ip := strings.TrimSpace(parts[0]); ip != "" {
			return ip
		}
	}

	return r.RemoteAddr
}
