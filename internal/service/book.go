package service

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/book-expert/logger"
	"github.com/google/uuid"

	"github.com/book-expert/audiobook-service/internal/config"
	"github.com/book-expert/audiobook-service/internal/core"
	"github.com/book-expert/audiobook-service/internal/extract"
	"github.com/book-expert/audiobook-service/internal/repository"
)

// UploadRequest carries the metadata of a book upload.
type UploadRequest struct {
	Filename string
	Title    string
	Author   string
	Language string
	Data     []byte
}

// BookService owns the book upload pipeline and book retrieval.
type BookService struct {
	books     repository.BookRepository
	store     core.BlobStore
	extractor *extract.Extractor
	cfg       config.UploadConfig
	log       *logger.Logger
}

// NewBookService creates the book service.
func NewBookService(
	books repository.BookRepository,
	store core.BlobStore,
	extractor *extract.Extractor,
	cfg config.UploadConfig,
	log *logger.Logger,
) *BookService {
	return &BookService{
		books:     books,
		store:     store,
		extractor: extractor,
		cfg:       cfg,
		log:       log,
	}
}

// Upload validates an uploaded document, extracts its text, stores the
// original file and creates the book record. Rejections happen before
// anything is persisted.
func (s *BookService) Upload(ctx context.Context, userID uuid.UUID, req UploadRequest) (*core.Book, error) {
	if s.cfg.MaxUploadBytes > 0 && int64(len(req.Data)) > s.cfg.MaxUploadBytes {
		return nil, fmt.Errorf("%w: %d bytes", ErrFileTooLarge, len(req.Data))
	}

	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(req.Filename)), ".")
	if !s.extensionAllowed(ext) {
		return nil, fmt.Errorf("%w: .%s", ErrExtensionNotAllowed, ext)
	}

	result, err := s.extractor.Extract(req.Filename, req.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to extract text: %w", err)
	}

	book := &core.Book{
		ID:             uuid.New(),
		UserID:         userID,
		Title:          bookTitle(req),
		Author:         req.Author,
		Language:       req.Language,
		Filename:       req.Filename,
		FilePath:       uploadKey(userID, req.Filename),
		FileSize:       int64(len(req.Data)),
		FileType:       ext,
		Content:        result.Text,
		WordCount:      result.WordCount,
		CharacterCount: result.CharCount,
		Status:         core.BookStatusReady,
	}

	putErr := s.store.Put(ctx, book.FilePath, req.Data)
	if putErr != nil {
		return nil, fmt.Errorf("failed to store uploaded file: %w", putErr)
	}

	createErr := s.books.Create(ctx, book)
	if createErr != nil {
		return nil, fmt.Errorf("failed to create book record: %w", createErr)
	}

	booksUploadedTotal.Inc()
	s.log.Info("Uploaded book %s: %q, %d words (user %s)", book.ID, book.Title, book.WordCount, userID)

	return book, nil
}

// Get returns a book after an ownership check.
func (s *BookService) Get(ctx context.Context, userID, bookID uuid.UUID) (*core.Book, error) {
	book, err := s.books.GetByID(ctx, bookID)
	if err != nil {
		return nil, err
	}

	if book.UserID != userID {
		return nil, ErrForbidden
	}

	return book, nil
}

// List returns a page of the user's books plus the total count.
func (s *BookService) List(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*core.Book, int, error) {
	books, err := s.books.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list books: %w", err)
	}

	total, err := s.books.CountByUser(ctx, userID)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count books: %w", err)
	}

	return books, total, nil
}

// Delete removes a book, its stored file and, through the schema's cascade,
// all jobs generated from it.
func (s *BookService) Delete(ctx context.Context, userID, bookID uuid.UUID) error {
	book, err := s.Get(ctx, userID, bookID)
	if err != nil {
		return err
	}

	if book.FilePath != "" {
		blobErr := s.store.Delete(ctx, book.FilePath)
		if blobErr != nil {
			s.log.Warn("Failed to delete uploaded file of book %s: %v", bookID, blobErr)
		}
	}

	deleteErr := s.books.Delete(ctx, bookID)
	if deleteErr != nil {
		return fmt.Errorf("failed to delete book: %w", deleteErr)
	}

	return nil
}

func (s *BookService) extensionAllowed(ext string) bool {
	for _, allowed := range s.cfg.AllowedExtensions {
		if strings.EqualFold(strings.TrimPrefix(allowed, "."), ext) {
			return true
		}
	}

	return false
}

func bookTitle(req UploadRequest) string {
	title := strings.TrimSpace(req.Title)
	if title != "" {
		return title
	}

	base := filepath.Base(req.Filename)

	return strings.TrimSuffix(base, filepath.Ext(base))
}

func uploadKey(userID uuid.UUID, filename string) string {
	return fmt.Sprintf("users/%s/books/%s-%s", userID, uuid.NewString(), filepath.Base(filename))
}
