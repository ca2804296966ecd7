package handlers

import (
	"net/http"
	"time"

	"github.com/negspace-imaging/auth-service/internal/models"
	"github.com/negspace-imaging/auth-service/internal/transport/http/apierrors"
	"github.com/negspace-imaging/auth-service/internal/transport/http/middleware"
)

type registerRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// authResponse — ответ register/login: пара токенов + проекция пользователя.
type authResponse struct {
	AccessToken  string          `json:"accessToken"`
	RefreshToken string          `json:"refreshToken"`
	User         models.UserInfo `json:"user"`
}

// refreshResponse — ответ refresh: только новый access-токен.
type refreshResponse struct {
	AccessToken string `json:"accessToken"`
	ExpiresIn   int64  `json:"expiresIn"`
}

type verifyResponse struct {
	Valid     bool      `json:"valid"`
	UserID    string    `json:"userId"`
	Email     string    `json:"email"`
	Roles     []string  `json:"roles"`
	Timestamp time.Time `json:"timestamp"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// Register — POST /auth/register. Успех: 201 + authResponse.
func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	var in registerRequest
	if err := decodeStrict(w, r, &in); err != nil {
		apierrors.WriteError(w, r, apierrors.ErrMalformedBody)
		return
	}

	res, err := h.service.Register(r.Context(), in.Email, in.Password, in.FirstName, in.LastName)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, authResponse{
		AccessToken:  res.Tokens.AccessToken,
		RefreshToken: res.Tokens.RefreshToken,
		User:         res.User,
	})
}

// Login — POST /auth/login. Успех: 200 + authResponse.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var in loginRequest
	if err := decodeStrict(w, r, &in); err != nil {
		apierrors.WriteError(w, r, apierrors.ErrMalformedBody)
		return
	}

	res, err := h.service.Login(r.Context(), in.Email, in.Password, clientIP(r))
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, authResponse{
		AccessToken:  res.Tokens.AccessToken,
		RefreshToken: res.Tokens.RefreshToken,
		User:         res.User,
	})
}

// Refresh — POST /auth/refresh. Успех: 200 + новый access-токен.
// Refresh-токен не ротируется, клиент продолжает пользоваться прежним.
func (h *Handlers) Refresh(w http.ResponseWriter, r *http.Request) {
	var in refreshRequest
	if err := decodeStrict(w, r, &in); err != nil {
		apierrors.WriteError(w, r, apierrors.ErrMalformedBody)
		return
	}

	access, err := h.service.Refresh(r.Context(), in.RefreshToken)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	expiresIn := int64(time.Until(access.ExpiresAt).Seconds())
	if expiresIn < 0 {
		expiresIn = 0
	}

	writeJSON(w, http.StatusOK, refreshResponse{
		AccessToken: access.Token,
		ExpiresIn:   expiresIn,
	})
}

// Logout — POST /auth/logout (Bearer). Идемпотентен. Успех: 200 + message.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.Identity(r.Context())
	if !ok {
		// RequireAuth стоит раньше; сюда попадаем только при ошибке сборки роутера.
		apierrors.WriteError(w, r, apierrors.ErrMalformedBody)
		return
	}

	if err := h.service.Logout(r.Context(), identity.UserID); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Message: "logged out"})
}

// Verify — GET /auth/verify (Bearer). Отдаёт claims проверенного токена.
func (h *Handlers) Verify(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.Identity(r.Context())
	if !ok {
		apierrors.WriteError(w, r, apierrors.ErrMalformedBody)
		return
	}

	writeJSON(w, http.StatusOK, verifyResponse{
		Valid:     true,
		UserID:    identity.UserID.String(),
		Email:     identity.Email,
		Roles:     identity.Roles,
		Timestamp: time.Now().UTC(),
	})
}
