// apierrors стандартизирует ответы об ошибках HTTP-слоя.
// На вход — ошибка доменного слоя (service), на выход:
//   - корректный HTTP-статус;
//   - краткое безопасное message без утечки деталей.
//
// Ожидаемые (типизированные) ошибки не логируются как инциденты; любая
// прочая ошибка считается внутренней: детали уходят в лог и Sentry,
// клиент получает опаковый 500.
package apierrors

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/getsentry/sentry-go"

	"github.com/negspace-imaging/auth-service/internal/pkg/log"
	"github.com/negspace-imaging/auth-service/internal/service"
)

// ErrMalformedBody — тело запроса не разобралось как ожидаемый JSON.
// Транспортная ошибка уровня хендлера: HTTP 400.
var ErrMalformedBody = errors.New("malformed request body")

// APIError — единый формат для фронта.
// Code — короткий стабильный код для машиночитаемой обработки на FE.
// Message — безопасное человекочитаемое описание.
// RequestID — прокидывается из X-Request-Id, если есть (для трассировки).
type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// ErrorResponse — корневой объект в ответе.
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// ToHTTP конвертирует ошибку доменного слоя в HTTP-статус и унифицированный
// ответ для фронта.
//
// Маппинг:
//   - ErrInvalidEmail/ErrWeakPassword/ErrEmptyPassword/ErrEmptyName -> 400;
//   - ErrInvalidCredentials -> 401 c единым сообщением (не раскрываем,
//     существует ли email);
//   - ErrInvalidToken/ErrTokenExpired/ErrTokenRevoked -> 401 (детали различий
//     остаются в логах сервиса);
//   - ErrEmailTaken -> 409;
//   - ErrRateLimited -> 429 (Retry-After добавляет WriteError);
//   - прочее -> 500/internal без деталей.
func ToHTTP(err error) (int, ErrorResponse) {
	status, code, msg := base(err)

	return status, ErrorResponse{
		Error: APIError{
			Code:    code,
			Message: msg,
		},
	}
}

// WriteError — хелпер для HTTP-хендлеров.
// Пишет корректный статус/тело, добавляет request_id из заголовка и
// Retry-After для rate limit; неожиданные ошибки логирует и шлёт в Sentry.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status, resp := ToHTTP(err)

	if status == http.StatusInternalServerError {
		log.From(r.Context()).Error("internal_error",
			slog.String("path", r.URL.Path),
			slog.String("err", errString(err)),
		)
		sentry.CaptureException(err)
	}

	var rl *service.RateLimitedError
	if errors.As(err, &rl) {
		secs := int(rl.RetryAfter.Seconds())
		if secs < 1 {
			secs = 1
		}
		w.Header().Set("Retry-After", strconv.Itoa(secs))
	}

	// Прокидываем request_id для фронта, чтобы он мог репортить баги с привязкой.
	if rid := r.Header.Get("X-Request-Id"); rid != "" {
		resp.Error.RequestID = rid
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

func base(err error) (int, string, string) {
	switch {
	case errors.Is(err, ErrMalformedBody):
		return http.StatusBadRequest, "invalid_argument", "malformed request body"

	case errors.Is(err, service.ErrInvalidEmail),
		errors.Is(err, service.ErrWeakPassword),
		errors.Is(err, service.ErrEmptyPassword),
		errors.Is(err, service.ErrEmptyName):
		return http.StatusBadRequest, "invalid_argument", safeMessage(err)

	case errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid_credentials", "invalid email or password"

	case errors.Is(err, service.ErrTokenExpired):
		return http.StatusUnauthorized, "token_expired", "token expired"

	case errors.Is(err, service.ErrInvalidToken),
		errors.Is(err, service.ErrTokenRevoked):
		// revoked и invalid наружу не различаем; детали — в логах сервиса.
		return http.StatusUnauthorized, "unauthenticated", "invalid token"

	case errors.Is(err, service.ErrEmailTaken):
		return http.StatusConflict, "already_exists", "email already taken"

	case errors.Is(err, service.ErrRateLimited):
		return http.StatusTooManyRequests, "rate_limited", "too many login attempts, try again later"

	default:
		return http.StatusInternalServerError, "internal", "internal error"
	}
}

// safeMessage отдаёт текст сентинела без операционных префиксов.
func safeMessage(err error) string {
	for _, sentinel := range []error{
		service.ErrInvalidEmail,
		service.ErrWeakPassword,
		service.ErrEmptyPassword,
		service.ErrEmptyName,
	} {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}

	return "invalid argument"
}

func errString(err error) string {
	if err == nil {
		return "<nil>"
	}

	return err.Error()
}
