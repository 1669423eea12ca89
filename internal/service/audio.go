package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/book-expert/logger"
	"github.com/google/uuid"

	"github.com/book-expert/audiobook-service/internal/config"
	"github.com/book-expert/audiobook-service/internal/core"
	"github.com/book-expert/audiobook-service/internal/repository"
	"github.com/book-expert/audiobook-service/internal/token"
)

// terminalCacheSize bounds the in-memory cache of finished job records.
const terminalCacheSize = 1024

// GenerateRequest carries the synthesis settings of a new job. Zero values
// fall back to the configured defaults.
type GenerateRequest struct {
	BookID   uuid.UUID `json:"book_id"`
	Language string    `json:"language"`
	Voice    string    `json:"voice"`
	Speed    float64   `json:"speed"`
}

// AudioService owns the audio job lifecycle outside the worker: submission,
// retrieval, deletion and download authorization.
type AudioService struct {
	jobs        repository.AudioJobRepository
	books       repository.BookRepository
	store       core.BlobStore
	dispatcher  JobDispatcher
	issuer      *token.Issuer
	cache       *jobCache
	ttsCfg      config.TTSConfig
	downloadTTL time.Duration
	log         *logger.Logger
}

// NewAudioService creates the audio service.
func NewAudioService(
	jobs repository.AudioJobRepository,
	books repository.BookRepository,
	store core.BlobStore,
	dispatcher JobDispatcher,
	issuer *token.Issuer,
	cfg *config.Config,
	log *logger.Logger,
) (*AudioService, error) {
	cache, err := newJobCache(terminalCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create job cache: %w", err)
	}

	return &AudioService{
		jobs:        jobs,
		books:       books,
		store:       store,
		dispatcher:  dispatcher,
		issuer:      issuer,
		cache:       cache,
		ttsCfg:      cfg.TTS,
		downloadTTL: time.Duration(cfg.Auth.DownloadTokenExpireMinutes) * time.Minute,
		log:         log,
	}, nil
}

// Generate validates a submission, creates the pending job record and
// dispatches it to the work queue. Every precondition failure is reported
// synchronously; nothing is enqueued unless the record exists.
func (s *AudioService) Generate(ctx context.Context, userID uuid.UUID, req GenerateRequest) (*core.AudioJob, error) {
	params := s.applyDefaults(req)

	validationErr := params.Validate()
	if validationErr != nil {
		return nil, validationErr
	}

	book, err := s.ownedBook(ctx, userID, req.BookID)
	if err != nil {
		return nil, err
	}

	if book.Status != core.BookStatusReady || strings.TrimSpace(book.Content) == "" {
		return nil, ErrBookNotReady
	}

	job := &core.AudioJob{
		ID:       uuid.New(),
		UserID:   userID,
		BookID:   book.ID,
		Filename: narrationFilename(book.Title),
		Format:   "wav",
		Status:   core.JobStatusPending,
		Progress: 0,
		Language: params.Language,
		Voice:    params.Voice,
		Speed:    params.Speed,
	}

	createErr := s.jobs.Create(ctx, job)
	if createErr != nil {
		return nil, fmt.Errorf("failed to create job record: %w", createErr)
	}

	dispatchErr := s.dispatcher.Dispatch(ctx, job.ID)
	if dispatchErr != nil {
		failErr := s.jobs.MarkFailed(ctx, job.ID, "failed to enqueue job")
		if failErr != nil {
			s.log.Error("Failed to mark undispatched job %s failed: %v", job.ID, failErr)
		}

		return nil, fmt.Errorf("failed to dispatch job %s: %w", job.ID, dispatchErr)
	}

	jobsSubmittedTotal.Inc()
	s.log.Info("Submitted job %s for book %s (user %s)", job.ID, book.ID, userID)

	return job, nil
}

// Get returns a job record after an ownership check. Terminal records are
// served from the cache.
func (s *AudioService) Get(ctx context.Context, userID, jobID uuid.UUID) (*core.AudioJob, error) {
	if job, ok := s.cache.get(jobID); ok {
		if job.UserID != userID {
			return nil, ErrForbidden
		}

		return job, nil
	}

	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to load job: %w", err)
	}

	if job.UserID != userID {
		return nil, ErrForbidden
	}

	s.cache.put(job)

	return job, nil
}

// List returns a page of the user's jobs plus the total count.
func (s *AudioService) List(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*core.AudioJob, int, error) {
	jobs, err := s.jobs.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list jobs: %w", err)
	}

	total, err := s.jobs.CountByUser(ctx, userID)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count jobs: %w", err)
	}

	return jobs, total, nil
}

// Delete removes a job record and its stored artifact.
func (s *AudioService) Delete(ctx context.Context, userID, jobID uuid.UUID) error {
	job, err := s.Get(ctx, userID, jobID)
	if err != nil {
		return err
	}

	if job.FilePath != "" {
		blobErr := s.store.Delete(ctx, job.FilePath)
		if blobErr != nil {
			s.log.Warn("Failed to delete artifact of job %s: %v", jobID, blobErr)
		}
	}

	deleteErr := s.jobs.Delete(ctx, jobID)
	if deleteErr != nil {
		return fmt.Errorf("failed to delete job: %w", deleteErr)
	}

	s.cache.remove(jobID)

	return nil
}

// DownloadGrant is a minted capability token together with its validity
// window, ready to hand back to the caller.
type DownloadGrant struct {
	Token            string    `json:"token"`
	ExpiresInMinutes int       `json:"expires_in_minutes"`
	ExpiresAt        time.Time `json:"expires_at"`
}

// IssueDownloadToken mints a short-lived capability for downloading the
// finished narration without session credentials.
func (s *AudioService) IssueDownloadToken(ctx context.Context, userID, jobID uuid.UUID) (*DownloadGrant, error) {
	job, err := s.Get(ctx, userID, jobID)
	if err != nil {
		return nil, err
	}

	if job.Status != core.JobStatusCompleted {
		return nil, ErrJobNotCompleted
	}

	return &DownloadGrant{
		Token:            s.issuer.Issue(jobID, userID, s.downloadTTL),
		ExpiresInMinutes: int(s.downloadTTL / time.Minute),
		ExpiresAt:        time.Now().UTC().Add(s.downloadTTL),
	}, nil
}

// Download returns the narration artifact for its owner and records the
// download.
func (s *AudioService) Download(ctx context.Context, userID, jobID uuid.UUID) ([]byte, *core.AudioJob, error) {
	job, err := s.Get(ctx, userID, jobID)
	if err != nil {
		return nil, nil, err
	}

	return s.fetchArtifact(ctx, job)
}

// DownloadWithToken returns the narration artifact to a bearer of a valid
// download capability. The token must name this exact job.
func (s *AudioService) DownloadWithToken(ctx context.Context, jobID uuid.UUID, capability string) ([]byte, *core.AudioJob, error) {
	resourceID, ownerID, err := s.issuer.Verify(capability)
	if err != nil {
		return nil, nil, err
	}

	if resourceID != jobID {
		return nil, nil, ErrTokenMismatch
	}

	job, getErr := s.Get(ctx, ownerID, jobID)
	if getErr != nil {
		return nil, nil, getErr
	}

	return s.fetchArtifact(ctx, job)
}

func (s *AudioService) fetchArtifact(ctx context.Context, job *core.AudioJob) ([]byte, *core.AudioJob, error) {
	if job.Status != core.JobStatusCompleted || job.FilePath == "" {
		return nil, nil, ErrJobNotCompleted
	}

	data, err := s.store.Get(ctx, job.FilePath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to fetch artifact of job %s: %w", job.ID, err)
	}

	recordErr := s.jobs.RecordDownload(ctx, job.ID)
	if recordErr != nil {
		s.log.Warn("Failed to record download of job %s: %v", job.ID, recordErr)
	} else {
		// The cached copy now has a stale counter; drop it.
		s.cache.remove(job.ID)
	}

	downloadsTotal.Inc()

	return data, job, nil
}

// ownedBook loads a book and enforces ownership.
func (s *AudioService) ownedBook(ctx context.Context, userID, bookID uuid.UUID) (*core.Book, error) {
	book, err := s.books.GetByID(ctx, bookID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, repository.ErrNotFound
		}

		return nil, fmt.Errorf("failed to load book: %w", err)
	}

	if book.UserID != userID {
		return nil, ErrForbidden
	}

	return book, nil
}

func (s *AudioService) applyDefaults(req GenerateRequest) core.SynthesisParams {
	params := core.SynthesisParams{
		Language: req.Language,
		Voice:    req.Voice,
		Speed:    req.Speed,
	}

	if params.Language == "" {
		params.Language = s.ttsCfg.DefaultLanguage
	}

	if params.Voice == "" {
		params.Voice = s.ttsCfg.DefaultVoice
	}

	if params.Speed == 0 {
		params.Speed = s.ttsCfg.DefaultSpeed
	}

	return params
}

// narrationFilename derives the artifact filename shown to the user.
func narrationFilename(title string) string {
	base := strings.TrimSpace(title)
	if base == "" {
		base = "narration"
	}

	return base + ".wav"
}
