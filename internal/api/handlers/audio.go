package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/book-expert/audiobook-service/internal/api/apierrors"
	"github.com/book-expert/audiobook-service/internal/core"
	"github.com/book-expert/audiobook-service/internal/repository"
	"github.com/book-expert/audiobook-service/internal/service"
	"github.com/book-expert/audiobook-service/internal/token"
)

type jobListResponse struct {
	Jobs  []*core.AudioJob `json:"jobs"`
	Total int              `json:"total"`
}

type jobStatusResponse struct {
	ID           string  `json:"id"`
	Status       string  `json:"status"`
	Progress     int     `json:"progress"`
	ErrorMessage string  `json:"error_message,omitempty"`
	Duration     float64 `json:"duration,omitempty"`
}

// Generate handles POST /api/v1/audio/generate.
func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	userID, ok := authedUser(w, r)
	if !ok {
		return
	}

	var req service.GenerateRequest

	err := decodeJSON(r, &req)
	if err != nil {
		apierrors.ValidationError(w, "malformed request body")

		return
	}

	job, genErr := h.audio.Generate(r.Context(), userID, req)
	if genErr != nil {
		h.writeGenerateError(w, genErr)

		return
	}

	writeJSON(w, http.StatusAccepted, job)
}

func (h *Handler) writeGenerateError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, repository.ErrNotFound),
		errors.Is(err, service.ErrForbidden):
		apierrors.NotFound(w, "book not found")
	case errors.Is(err, service.ErrBookNotReady):
		apierrors.NotReady(w, "book has no extracted text to narrate")
	case errors.Is(err, core.ErrLanguageEmpty), errors.Is(err, core.ErrSpeedRange):
		apierrors.ValidationError(w, err.Error())
	default:
		h.log.Error("Job submission failed: %v", err)
		apierrors.InternalError(w)
	}
}

// ListJobs handles GET /api/v1/audio.
func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request) {
	userID, ok := authedUser(w, r)
	if !ok {
		return
	}

	limit, offset := pagination(r)

	jobs, total, err := h.audio.List(r.Context(), userID, limit, offset)
	if err != nil {
		h.log.Error("Failed to list jobs: %v", err)
		apierrors.InternalError(w)

		return
	}

	if jobs == nil {
		jobs = []*core.AudioJob{}
	}

	writeJSON(w, http.StatusOK, jobListResponse{Jobs: jobs, Total: total})
}

// GetJob handles GET /api/v1/audio/{jobID}.
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	job, ok := h.ownedJob(w, r)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, job)
}

// JobStatus handles GET /api/v1/audio/{jobID}/status. It is the cheap
// polling endpoint behind progress bars.
func (h *Handler) JobStatus(w http.ResponseWriter, r *http.Request) {
	job, ok := h.ownedJob(w, r)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, jobStatusResponse{
		ID:           job.ID.String(),
		Status:       string(job.Status),
		Progress:     job.Progress,
		ErrorMessage: job.ErrorMessage,
		Duration:     job.Duration,
	})
}

// DeleteJob handles DELETE /api/v1/audio/{jobID}.
func (h *Handler) DeleteJob(w http.ResponseWriter, r *http.Request) {
	userID, ok := authedUser(w, r)
	if !ok {
		return
	}

	jobID, err := pathID(r, "jobID")
	if err != nil {
		apierrors.ValidationError(w, "invalid job id")

		return
	}

	deleteErr := h.audio.Delete(r.Context(), userID, jobID)
	if deleteErr != nil {
		h.writeOwnershipError(w, deleteErr, "job not found")

		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// IssueDownloadToken handles POST /api/v1/audio/{jobID}/download-token.
func (h *Handler) IssueDownloadToken(w http.ResponseWriter, r *http.Request) {
	userID, ok := authedUser(w, r)
	if !ok {
		return
	}

	jobID, err := pathID(r, "jobID")
	if err != nil {
		apierrors.ValidationError(w, "invalid job id")

		return
	}

	grant, issueErr := h.audio.IssueDownloadToken(r.Context(), userID, jobID)
	if issueErr != nil {
		if errors.Is(issueErr, service.ErrJobNotCompleted) {
			apierrors.NotReady(w, "narration is not ready yet")

			return
		}

		h.writeOwnershipError(w, issueErr, "job not found")

		return
	}

	writeJSON(w, http.StatusOK, grant)
}

// Download handles GET /api/v1/audio/{jobID}/download. The artifact is
// released either to its owner's session or to the bearer of a valid
// download token passed in the "token" query parameter.
func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	jobID, err := pathID(r, "jobID")
	if err != nil {
		apierrors.ValidationError(w, "invalid job id")

		return
	}

	var (
		data []byte
		job  *core.AudioJob
	)

	if capability := r.URL.Query().Get("token"); capability != "" {
		data, job, err = h.audio.DownloadWithToken(r.Context(), jobID, capability)
	} else {
		userID, ok := authedUser(w, r)
		if !ok {
			return
		}

		data, job, err = h.audio.Download(r.Context(), userID, jobID)
	}

	if err != nil {
		h.writeDownloadError(w, err)

		return
	}

	w.Header().Set("Content-Type", "audio/wav")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", job.Filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (h *Handler) writeDownloadError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, token.ErrTokenExpired),
		errors.Is(err, token.ErrBadSignature),
		errors.Is(err, token.ErrMalformedToken):
		apierrors.Unauthorized(w, "invalid or expired download token")
	case errors.Is(err, service.ErrTokenMismatch):
		apierrors.Forbidden(w, "download token does not match this resource")
	case errors.Is(err, service.ErrJobNotCompleted):
		apierrors.NotReady(w, "narration is not ready yet")
	case errors.Is(err, repository.ErrNotFound),
		errors.Is(err, service.ErrForbidden):
		apierrors.NotFound(w, "job not found")
	default:
		h.log.Error("Download failed: %v", err)
		apierrors.InternalError(w)
	}
}

// ownedJob loads the path job for the authenticated user, writing the
// error response on failure.
func (h *Handler) ownedJob(w http.ResponseWriter, r *http.Request) (*core.AudioJob, bool) {
	userID, ok := authedUser(w, r)
	if !ok {
		return nil, false
	}

	jobID, err := pathID(r, "jobID")
	if err != nil {
		apierrors.ValidationError(w, "invalid job id")

		return nil, false
	}

	job, getErr := h.audio.Get(r.Context(), userID, jobID)
	if getErr != nil {
		h.writeOwnershipError(w, getErr, "job not found")

		return nil, false
	}

	return job, true
}
