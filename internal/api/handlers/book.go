package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/book-expert/audiobook-service/internal/api/apierrors"
	"github.com/book-expert/audiobook-service/internal/core"
	"github.com/book-expert/audiobook-service/internal/extract"
	"github.com/book-expert/audiobook-service/internal/repository"
	"github.com/book-expert/audiobook-service/internal/service"
)

// multipartMemoryLimit bounds the in-memory part of multipart parsing;
// larger bodies spill to disk.
const multipartMemoryLimit = 8 << 20

type bookListResponse struct {
	Books []*core.Book `json:"books"`
	Total int          `json:"total"`
}

// UploadBook handles POST /api/v1/books. The document arrives as the
// multipart field "file"; title, author and language are optional fields.
func (h *Handler) UploadBook(w http.ResponseWriter, r *http.Request) {
	userID, ok := authedUser(w, r)
	if !ok {
		return
	}

	err := r.ParseMultipartForm(multipartMemoryLimit)
	if err != nil {
		apierrors.ValidationError(w, "expected a multipart form with a file field")

		return
	}

	file, header, formErr := r.FormFile("file")
	if formErr != nil {
		apierrors.ValidationError(w, "missing file field")

		return
	}

	defer func() {
		closeErr := file.Close()
		if closeErr != nil {
			h.log.Warn("Failed to close uploaded file: %v", closeErr)
		}
	}()

	data, readErr := io.ReadAll(file)
	if readErr != nil {
		h.log.Error("Failed to read uploaded file: %v", readErr)
		apierrors.InternalError(w)

		return
	}

	book, uploadErr := h.books.Upload(r.Context(), userID, service.UploadRequest{
		Filename: header.Filename,
		Title:    r.FormValue("title"),
		Author:   r.FormValue("author"),
		Language: r.FormValue("language"),
		Data:     data,
	})
	if uploadErr != nil {
		h.writeUploadError(w, uploadErr)

		return
	}

	writeJSON(w, http.StatusCreated, book)
}

func (h *Handler) writeUploadError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrFileTooLarge):
		apierrors.FileTooLarge(w, "uploaded file exceeds the size limit")
	case errors.Is(err, service.ErrExtensionNotAllowed),
		errors.Is(err, extract.ErrUnsupportedFormat):
		apierrors.ValidationError(w, "unsupported file type")
	case errors.Is(err, extract.ErrEmptyDocument),
		errors.Is(err, extract.ErrNotUTF8):
		apierrors.ValidationError(w, err.Error())
	default:
		h.log.Error("Book upload failed: %v", err)
		apierrors.InternalError(w)
	}
}

// ListBooks handles GET /api/v1/books.
func (h *Handler) ListBooks(w http.ResponseWriter, r *http.Request) {
	userID, ok := authedUser(w, r)
	if !ok {
		return
	}

	limit, offset := pagination(r)

	books, total, err := h.books.List(r.Context(), userID, limit, offset)
	if err != nil {
		h.log.Error("Failed to list books: %v", err)
		apierrors.InternalError(w)

		return
	}

	if books == nil {
		books = []*core.Book{}
	}

	writeJSON(w, http.StatusOK, bookListResponse{Books: books, Total: total})
}

// GetBook handles GET /api/v1/books/{bookID}.
func (h *Handler) GetBook(w http.ResponseWriter, r *http.Request) {
	userID, ok := authedUser(w, r)
	if !ok {
		return
	}

	bookID, err := pathID(r, "bookID")
	if err != nil {
		apierrors.ValidationError(w, "invalid book id")

		return
	}

	book, getErr := h.books.Get(r.Context(), userID, bookID)
	if getErr != nil {
		h.writeOwnershipError(w, getErr, "book not found")

		return
	}

	writeJSON(w, http.StatusOK, book)
}

// DeleteBook handles DELETE /api/v1/books/{bookID}.
func (h *Handler) DeleteBook(w http.ResponseWriter, r *http.Request) {
	userID, ok := authedUser(w, r)
	if !ok {
		return
	}

	bookID, err := pathID(r, "bookID")
	if err != nil {
		apierrors.ValidationError(w, "invalid book id")

		return
	}

	deleteErr := h.books.Delete(r.Context(), userID, bookID)
	if deleteErr != nil {
		h.writeOwnershipError(w, deleteErr, "book not found")

		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// writeOwnershipError maps the shared outcomes of owner-scoped lookups.
// Another user's resource answers exactly like an absent one, so callers
// cannot probe for the existence of ids they do not own.
func (h *Handler) writeOwnershipError(w http.ResponseWriter, err error, notFoundMsg string) {
	switch {
	case errors.Is(err, repository.ErrNotFound),
		errors.Is(err, service.ErrForbidden):
		apierrors.NotFound(w, notFoundMsg)
	default:
		h.log.Error("Request failed: %v", err)
		apierrors.InternalError(w)
	}
}
