package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/book-expert/logger"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/book-expert/audiobook-service/internal/api/handlers"
	"github.com/book-expert/audiobook-service/internal/auth"
	"github.com/book-expert/audiobook-service/internal/config"
	"github.com/book-expert/audiobook-service/internal/core"
	"github.com/book-expert/audiobook-service/internal/extract"
	"github.com/book-expert/audiobook-service/internal/repository"
	"github.com/book-expert/audiobook-service/internal/server"
	"github.com/book-expert/audiobook-service/internal/service"
	"github.com/book-expert/audiobook-service/internal/token"
)

// In-memory repositories backing the API under test.

type memUsers struct {
	mu    sync.Mutex
	users map[uuid.UUID]*core.User
}

func newMemUsers() *memUsers {
	return &memUsers{users: make(map[uuid.UUID]*core.User)}
}

func (m *memUsers) Create(_ context.Context, user *core.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.users {
		if existing.Email == user.Email || existing.Username == user.Username {
			return repository.ErrConflict
		}
	}

	user.CreatedAt = time.Now()
	m.users[user.ID] = user

	return nil
}

func (m *memUsers) GetByID(_ context.Context, id uuid.UUID) (*core.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}

	return user, nil
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (*core.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, user := range m.users {
		if user.Email == email {
			return user, nil
		}
	}

	return nil, repository.ErrNotFound
}

func (m *memUsers) GetByUsername(_ context.Context, username string) (*core.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, user := range m.users {
		if user.Username == username {
			return user, nil
		}
	}

	return nil, repository.ErrNotFound
}

type memBooks struct {
	mu    sync.Mutex
	books map[uuid.UUID]*core.Book
}

func newMemBooks() *memBooks {
	return &memBooks{books: make(map[uuid.UUID]*core.Book)}
}

func (m *memBooks) Create(_ context.Context, book *core.Book) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	book.CreatedAt = time.Now()
	m.books[book.ID] = book

	return nil
}

func (m *memBooks) GetByID(_ context.Context, id uuid.UUID) (*core.Book, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	book, ok := m.books[id]
	if !ok {
		return nil, repository.ErrNotFound
	}

	return book, nil
}

func (m *memBooks) ListByUser(_ context.Context, userID uuid.UUID, _, _ int) ([]*core.Book, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var books []*core.Book

	for _, book := range m.books {
		if book.UserID == userID {
			books = append(books, book)
		}
	}

	return books, nil
}

func (m *memBooks) CountByUser(ctx context.Context, userID uuid.UUID) (int, error) {
	books, _ := m.ListByUser(ctx, userID, 0, 0)

	return len(books), nil
}

func (m *memBooks) MarkReady(_ context.Context, _ uuid.UUID, _ string, _, _ int) error {
	return nil
}

func (m *memBooks) MarkError(_ context.Context, _ uuid.UUID, _ string) error { return nil }

func (m *memBooks) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.books[id]; !ok {
		return repository.ErrNotFound
	}

	delete(m.books, id)

	return nil
}

type memJobs struct {
	mu   sync.Mutex
	jobs map[uuid.UUID]*core.AudioJob
}

func newMemJobs() *memJobs {
	return &memJobs{jobs: make(map[uuid.UUID]*core.AudioJob)}
}

func (m *memJobs) Create(_ context.Context, job *core.AudioJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	job.CreatedAt = time.Now()
	job.UpdatedAt = time.Now()
	m.jobs[job.ID] = job

	return nil
}

func (m *memJobs) GetByID(_ context.Context, id uuid.UUID) (*core.AudioJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[id]
	if !ok {
		return nil, repository.ErrNotFound
	}

	copied := *job

	return &copied, nil
}

func (m *memJobs) ListByUser(_ context.Context, userID uuid.UUID, _, _ int) ([]*core.AudioJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var jobs []*core.AudioJob

	for _, job := range m.jobs {
		if job.UserID == userID {
			copied := *job
			jobs = append(jobs, &copied)
		}
	}

	return jobs, nil
}

func (m *memJobs) CountByUser(ctx context.Context, userID uuid.UUID) (int, error) {
	jobs, _ := m.ListByUser(ctx, userID, 0, 0)

	return len(jobs), nil
}

func (m *memJobs) MarkProcessing(_ context.Context, _ uuid.UUID) error { return nil }

func (m *memJobs) UpdateProgress(_ context.Context, _ uuid.UUID, _ int) error { return nil }

func (m *memJobs) MarkCompleted(_ context.Context, id uuid.UUID, filePath string, fileSize int64, duration float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[id]
	if !ok {
		return repository.ErrNotFound
	}

	now := time.Now()
	job.Status = core.JobStatusCompleted
	job.Progress = 100
	job.FilePath = filePath
	job.FileSize = fileSize
	job.Duration = duration
	job.CompletedAt = &now

	return nil
}

func (m *memJobs) MarkFailed(_ context.Context, id uuid.UUID, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[id]
	if !ok {
		return repository.ErrNotFound
	}

	job.Status = core.JobStatusFailed
	job.ErrorMessage = message

	return nil
}

func (m *memJobs) RecordDownload(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[id]
	if !ok {
		return repository.ErrNotFound
	}

	job.IsDownloaded = true
	job.DownloadCount++

	return nil
}

func (m *memJobs) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.jobs[id]; !ok {
		return repository.ErrNotFound
	}

	delete(m.jobs, id)

	return nil
}

type memStore struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

func newMemStore() *memStore {
	return &memStore{blobs: make(map[string][]byte)}
}

func (s *memStore) Put(_ context.Context, key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.blobs[key] = data

	return nil
}

func (s *memStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, ok := s.blobs[key]
	if !ok {
		return nil, errors.New("blob not found")
	}

	return data, nil
}

func (s *memStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.blobs, key)

	return nil
}

type memDispatcher struct {
	mu         sync.Mutex
	dispatched []uuid.UUID
}

func (d *memDispatcher) Dispatch(_ context.Context, jobID uuid.UUID) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.dispatched = append(d.dispatched, jobID)

	return nil
}

type okPinger struct{}

func (okPinger) Ping(_ context.Context) error { return nil }

type apiFixture struct {
	ts         *httptest.Server
	jobs       *memJobs
	store      *memStore
	dispatcher *memDispatcher
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	log, err := logger.New(t.TempDir(), "api-test.log")
	require.NoError(t, err)

	cfg := &config.Config{
		Auth: config.AuthConfig{
			SecretKey:                  "api-test-secret",
			AccessTokenExpireMinutes:   30,
			RefreshTokenExpireDays:     7,
			DownloadTokenExpireMinutes: 15,
		},
		TTS: config.TTSConfig{
			DefaultLanguage: "en",
			DefaultVoice:    "standard",
			DefaultSpeed:    1.0,
		},
		Upload: config.UploadConfig{
			MaxUploadBytes:    1 << 20,
			MaxTextChars:      100000,
			AllowedExtensions: []string{"txt", "md"},
		},
	}

	jobs := newMemJobs()
	store := newMemStore()
	dispatcher := &memDispatcher{}
	books := newMemBooks()
	tokens := auth.NewManager(cfg.Auth)
	issuer := token.NewIssuer(cfg.Auth.SecretKey)

	accountService := service.NewAccountService(newMemUsers(), tokens, log)
	bookService := service.NewBookService(books, store, extract.NewExtractor(cfg.Upload.MaxTextChars), cfg.Upload, log)

	audioService, err := service.NewAudioService(jobs, books, store, dispatcher, issuer, cfg, log)
	require.NoError(t, err)

	handler := handlers.NewHandler(accountService, bookService, audioService, log)
	router := server.NewRouter(handler, tokens, okPinger{}, log)

	ts := httptest.NewServer(router)
	t.Cleanup(ts.Close)

	return &apiFixture{ts: ts, jobs: jobs, store: store, dispatcher: dispatcher}
}

func (f *apiFixture) request(t *testing.T, method, path, accessToken string, body any) *http.Response {
	t.Helper()

	var reader *bytes.Reader

	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)

		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(context.Background(), method, f.ts.URL+path, reader)
	require.NoError(t, err)

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)

	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()

	defer func() { _ = resp.Body.Close() }()

	var out T

	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))

	return out
}

// registerAndLogin creates an account and returns its access token.
func (f *apiFixture) registerAndLogin(t *testing.T, email, username string) string {
	t.Helper()

	resp := f.request(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"email":    email,
		"username": username,
		"password": "hunter2hunter2",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	_ = resp.Body.Close()

	resp = f.request(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email":    email,
		"password": "hunter2hunter2",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	pair := decodeBody[auth.TokenPair](t, resp)
	require.NotEmpty(t, pair.AccessToken)

	return pair.AccessToken
}

// uploadBook uploads a small text document and returns the created book.
func (f *apiFixture) uploadBook(t *testing.T, accessToken string) *core.Book {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", "moby-dick.txt")
	require.NoError(t, err)

	_, err = part.Write([]byte("Call me Ishmael. Some years ago, never mind how long."))
	require.NoError(t, err)
	require.NoError(t, writer.WriteField("title", "Moby Dick"))
	require.NoError(t, writer.Close())

	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, f.ts.URL+"/api/v1/books/", &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	book := decodeBody[*core.Book](t, resp)

	return book
}

func TestAuthFlow(t *testing.T) {
	t.Parallel()

	fixture := newAPIFixture(t)

	accessToken := fixture.registerAndLogin(t, "ahab@pequod.sea", "ahab")
	require.NotEmpty(t, accessToken)

	// Duplicate registration conflicts.
	resp := fixture.request(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"email":    "ahab@pequod.sea",
		"username": "ahab",
		"password": "hunter2hunter2",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	_ = resp.Body.Close()

	// Wrong password is unauthorized.
	resp = fixture.request(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email":    "ahab@pequod.sea",
		"password": "wrong password",
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	_ = resp.Body.Close()

	// Protected routes reject anonymous requests.
	resp = fixture.request(t, http.MethodGet, "/api/v1/books/", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	_ = resp.Body.Close()
}

func TestBookUploadAndGeneration(t *testing.T) {
	t.Parallel()

	fixture := newAPIFixture(t)
	accessToken := fixture.registerAndLogin(t, "ishmael@pequod.sea", "ishmael")
	book := fixture.uploadBook(t, accessToken)

	assert.Equal(t, "Moby Dick", book.Title)
	assert.Equal(t, core.BookStatusReady, book.Status)

	// Submit a generation job.
	resp := fixture.request(t, http.MethodPost, "/api/v1/audio/generate", accessToken, map[string]any{
		"book_id": book.ID,
	})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	job := decodeBody[*core.AudioJob](t, resp)
	assert.Equal(t, core.JobStatusPending, job.Status)
	assert.Equal(t, 0, job.Progress)
	require.Len(t, fixture.dispatcher.dispatched, 1)

	// Poll status.
	resp = fixture.request(t, http.MethodGet, "/api/v1/audio/"+job.ID.String()+"/status", accessToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	status := decodeBody[map[string]any](t, resp)
	assert.Equal(t, "pending", status["status"])

	// Another user's view of the job is identical to a job that does not
	// exist at all, so ids cannot be probed for existence.
	otherToken := fixture.registerAndLogin(t, "queequeg@pequod.sea", "queequeg")
	resp = fixture.request(t, http.MethodGet, "/api/v1/audio/"+job.ID.String(), otherToken, nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	foreignBody := decodeBody[map[string]any](t, resp)

	resp = fixture.request(t, http.MethodGet, "/api/v1/audio/"+uuid.NewString(), otherToken, nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	absentBody := decodeBody[map[string]any](t, resp)
	assert.Equal(t, absentBody, foreignBody)
}

func TestDownloadFlow(t *testing.T) {
	t.Parallel()

	fixture := newAPIFixture(t)
	accessToken := fixture.registerAndLogin(t, "starbuck@pequod.sea", "starbuck")
	book := fixture.uploadBook(t, accessToken)

	resp := fixture.request(t, http.MethodPost, "/api/v1/audio/generate", accessToken, map[string]any{
		"book_id": book.ID,
	})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	job := decodeBody[*core.AudioJob](t, resp)

	// Download before completion is rejected.
	resp = fixture.request(t, http.MethodGet, "/api/v1/audio/"+job.ID.String()+"/download", accessToken, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	_ = resp.Body.Close()

	// Simulate the worker finishing the job.
	artifactKey := fmt.Sprintf("users/%s/audio/%s.wav", job.UserID, job.ID)
	require.NoError(t, fixture.store.Put(context.Background(), artifactKey, []byte("RIFF-ish bytes")))
	require.NoError(t, fixture.jobs.MarkCompleted(context.Background(), job.ID, artifactKey, 14, 1.5))

	// Owner download works with session credentials.
	resp = fixture.request(t, http.MethodGet, "/api/v1/audio/"+job.ID.String()+"/download", accessToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "audio/wav", resp.Header.Get("Content-Type"))
	_ = resp.Body.Close()

	// Capability download works without any session.
	resp = fixture.request(t, http.MethodPost, "/api/v1/audio/"+job.ID.String()+"/download-token", accessToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	grant := decodeBody[service.DownloadGrant](t, resp)
	require.NotEmpty(t, grant.Token)
	require.Positive(t, grant.ExpiresInMinutes)

	resp = fixture.request(t, http.MethodGet,
		"/api/v1/audio/"+job.ID.String()+"/download?token="+grant.Token, "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()

	// A garbage token is rejected.
	resp = fixture.request(t, http.MethodGet,
		"/api/v1/audio/"+job.ID.String()+"/download?token=not-a-token", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	_ = resp.Body.Close()

	// Both downloads were counted.
	stored, err := fixture.jobs.GetByID(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.DownloadCount)
}

func TestHealthAndMetricsEndpoints(t *testing.T) {
	t.Parallel()

	fixture := newAPIFixture(t)

	resp := fixture.request(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()

	resp = fixture.request(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()
}
