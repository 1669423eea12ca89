// Package handlers implements the HTTP endpoints of the audiobook API.
package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/book-expert/logger"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/book-expert/audiobook-service/internal/api/apierrors"
	"github.com/book-expert/audiobook-service/internal/api/middleware"
	"github.com/book-expert/audiobook-service/internal/service"
)

// Pagination defaults and bounds.
const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

// Handler bundles the services behind the HTTP endpoints.
type Handler struct {
	accounts *service.AccountService
	books    *service.BookService
	audio    *service.AudioService
	log      *logger.Logger
}

// NewHandler creates the API handler.
func NewHandler(
	accounts *service.AccountService,
	books *service.BookService,
	audio *service.AudioService,
	log *logger.Logger,
) *Handler {
	return &Handler{accounts: accounts, books: books, audio: audio, log: log}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func decodeJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	err := decoder.Decode(dst)
	if err != nil {
		return fmt.Errorf("failed to decode request body: %w", err)
	}

	return nil
}

// pathID parses the named UUID path parameter.
func pathID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid %s: %w", name, err)
	}

	return id, nil
}

// pagination parses limit/offset query parameters with sane bounds.
func pagination(r *http.Request) (limit, offset int) {
	limit = defaultPageLimit

	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err == nil && parsed > 0 {
			limit = parsed
		}
	}

	if limit > maxPageLimit {
		limit = maxPageLimit
	}

	if raw := r.URL.Query().Get("offset"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	return limit, offset
}

// authedUser extracts the authenticated user or writes a 401.
func authedUser(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		apierrors.Unauthorized(w, "authentication required")
	}

	return userID, ok
}
