package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// ErrSessionExpired — терминальная ошибка клиента: refresh не удался,
// токены сброшены, пользователю нужно войти заново.
var ErrSessionExpired = errors.New("session expired")

// APIError — нормализованная ошибка сервера в едином формате.
// Любой не-2xx ответ (кроме перехваченного 401) приходит вызывающему
// в этом виде; сырые сетевые/транспортные ошибки наружу не протекают
// иначе как ErrSessionExpired.
type APIError struct {
	Status    int
	Code      string
	Message   string
	RequestID string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error %d (%s): %s", e.Status, e.Code, e.Message)
	}

	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

// wire-формат тела ошибки сервера: {"error":{code,message,request_id}}.
type errorBody struct {
	Error struct {
		Code      string `json:"code"`
		Message   string `json:"message"`
		RequestID string `json:"request_id"`
	} `json:"error"`
}

// normalizeError читает тело не-2xx ответа и собирает APIError.
// Непарсящееся тело не считается ошибкой — остаёмся со статусом.
func normalizeError(resp *http.Response) *APIError {
	apiErr := &APIError{
		Status:  resp.StatusCode,
		Message: http.StatusText(resp.StatusCode),
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return apiErr
	}

	var body errorBody
	if err := json.Unmarshal(raw, &body); err == nil && body.Error.Message != "" {
		apiErr.Code = body.Error.Code
		apiErr.Message = body.Error.Message
		apiErr.RequestID = body.Error.RequestID
	}

	return apiErr
}
