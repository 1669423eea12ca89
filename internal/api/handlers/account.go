package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/book-expert/audiobook-service/internal/api/apierrors"
	"github.com/book-expert/audiobook-service/internal/auth"
	"github.com/book-expert/audiobook-service/internal/repository"
	"github.com/book-expert/audiobook-service/internal/service"
)

// minPasswordLength is the minimal accepted password size.
const minPasswordLength = 8

type registerRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Register handles POST /api/v1/auth/register.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest

	err := decodeJSON(r, &req)
	if err != nil {
		apierrors.ValidationError(w, "malformed request body")

		return
	}

	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	req.Username = strings.TrimSpace(req.Username)

	if req.Email == "" || !strings.Contains(req.Email, "@") {
		apierrors.ValidationError(w, "a valid email is required")

		return
	}

	if req.Username == "" {
		apierrors.ValidationError(w, "username is required")

		return
	}

	if len(req.Password) < minPasswordLength {
		apierrors.ValidationError(w, "password must be at least 8 characters")

		return
	}

	user, registerErr := h.accounts.Register(r.Context(), req.Email, req.Username, req.Password)
	if registerErr != nil {
		if errors.Is(registerErr, repository.ErrConflict) {
			apierrors.Conflict(w, "email or username already registered")

			return
		}

		h.log.Error("Registration failed: %v", registerErr)
		apierrors.InternalError(w)

		return
	}

	writeJSON(w, http.StatusCreated, user)
}

// Login handles POST /api/v1/auth/login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest

	err := decodeJSON(r, &req)
	if err != nil {
		apierrors.ValidationError(w, "malformed request body")

		return
	}

	pair, loginErr := h.accounts.Login(r.Context(), strings.TrimSpace(strings.ToLower(req.Email)), req.Password)
	if loginErr != nil {
		switch {
		case errors.Is(loginErr, auth.ErrInvalidCredentials):
			apierrors.Unauthorized(w, "invalid email or password")
		case errors.Is(loginErr, service.ErrAccountDisabled):
			apierrors.Forbidden(w, "account is disabled")
		default:
			h.log.Error("Login failed: %v", loginErr)
			apierrors.InternalError(w)
		}

		return
	}

	writeJSON(w, http.StatusOK, pair)
}

// Refresh handles POST /api/v1/auth/refresh.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest

	err := decodeJSON(r, &req)
	if err != nil || req.RefreshToken == "" {
		apierrors.ValidationError(w, "refresh_token is required")

		return
	}

	pair, refreshErr := h.accounts.Refresh(r.Context(), req.RefreshToken)
	if refreshErr != nil {
		switch {
		case errors.Is(refreshErr, auth.ErrInvalidToken),
			errors.Is(refreshErr, auth.ErrWrongTokenType),
			errors.Is(refreshErr, auth.ErrInvalidCredentials):
			apierrors.Unauthorized(w, "invalid refresh token")
		case errors.Is(refreshErr, service.ErrAccountDisabled):
			apierrors.Forbidden(w, "account is disabled")
		default:
			h.log.Error("Token refresh failed: %v", refreshErr)
			apierrors.InternalError(w)
		}

		return
	}

	writeJSON(w, http.StatusOK, pair)
}
