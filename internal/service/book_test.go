package service_test

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/book-expert/audiobook-service/internal/config"
	"github.com/book-expert/audiobook-service/internal/core"
	"github.com/book-expert/audiobook-service/internal/extract"
	"github.com/book-expert/audiobook-service/internal/repository"
	"github.com/book-expert/audiobook-service/internal/service"
)

func newBookFixture(t *testing.T) (*service.BookService, *fakeBooks, *fakeStore) {
	t.Helper()

	books := newFakeBooks()
	store := newFakeStore()

	uploadCfg := config.UploadConfig{
		MaxUploadBytes:    1 << 20,
		MaxTextChars:      100000,
		AllowedExtensions: []string{"txt", "md"},
	}

	svc := service.NewBookService(books, store, extract.NewExtractor(uploadCfg.MaxTextChars), uploadCfg, testLogger(t))

	return svc, books, store
}

func TestUploadCreatesReadyBook(t *testing.T) {
	t.Parallel()

	svc, books, store := newBookFixture(t)
	userID := uuid.New()

	book, err := svc.Upload(context.Background(), userID, service.UploadRequest{
		Filename: "moby-dick.txt",
		Title:    "Moby Dick",
		Author:   "Herman Melville",
		Language: "en",
		Data:     []byte("Call me Ishmael. Some years ago."),
	})
	require.NoError(t, err)

	assert.Equal(t, core.BookStatusReady, book.Status)
	assert.Equal(t, "Moby Dick", book.Title)
	assert.Equal(t, "txt", book.FileType)
	assert.Equal(t, 6, book.WordCount)
	assert.NotEmpty(t, book.Content)

	// The record is persisted and the original file stored.
	stored, err := books.GetByID(context.Background(), book.ID)
	require.NoError(t, err)
	assert.Equal(t, book.ID, stored.ID)

	data, err := store.Get(context.Background(), book.FilePath)
	require.NoError(t, err)
	assert.Equal(t, book.FileSize, int64(len(data)))
}

func TestUploadDerivesTitleFromFilename(t *testing.T) {
	t.Parallel()

	svc, _, _ := newBookFixture(t)

	book, err := svc.Upload(context.Background(), uuid.New(), service.UploadRequest{
		Filename: "great-expectations.txt",
		Data:     []byte("My father's family name being Pirrip."),
	})
	require.NoError(t, err)
	assert.Equal(t, "great-expectations", book.Title)
}

func TestUploadRejections(t *testing.T) {
	t.Parallel()

	svc, books, store := newBookFixture(t)
	ctx := context.Background()
	userID := uuid.New()

	_, err := svc.Upload(ctx, userID, service.UploadRequest{
		Filename: "huge.txt",
		Data:     []byte(strings.Repeat("a", (1<<20)+1)),
	})
	require.ErrorIs(t, err, service.ErrFileTooLarge)

	_, err = svc.Upload(ctx, userID, service.UploadRequest{
		Filename: "book.pdf",
		Data:     []byte("%PDF-1.4"),
	})
	require.ErrorIs(t, err, service.ErrExtensionNotAllowed)

	_, err = svc.Upload(ctx, userID, service.UploadRequest{
		Filename: "blank.txt",
		Data:     []byte("   "),
	})
	require.ErrorIs(t, err, extract.ErrEmptyDocument)

	// Rejected uploads leave nothing behind.
	assert.Empty(t, books.books)
	assert.Empty(t, store.blobs)
}

func TestBookDeleteEnforcesOwnership(t *testing.T) {
	t.Parallel()

	svc, books, _ := newBookFixture(t)
	ctx := context.Background()
	userID := uuid.New()

	book, err := svc.Upload(ctx, userID, service.UploadRequest{
		Filename: "moby-dick.txt",
		Data:     []byte("Call me Ishmael."),
	})
	require.NoError(t, err)

	err = svc.Delete(ctx, uuid.New(), book.ID)
	require.ErrorIs(t, err, service.ErrForbidden)

	require.NoError(t, svc.Delete(ctx, userID, book.ID))

	_, err = books.GetByID(ctx, book.ID)
	require.ErrorIs(t, err, repository.ErrNotFound)
}
