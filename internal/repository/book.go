package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/book-expert/audiobook-service/internal/core"
)

// BookRepository is the persistence interface for uploaded books.
type BookRepository interface {
	Create(ctx context.Context, book *core.Book) error
	GetByID(ctx context.Context, id uuid.UUID) (*core.Book, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*core.Book, error)
	CountByUser(ctx context.Context, userID uuid.UUID) (int, error)
	MarkReady(ctx context.Context, id uuid.UUID, content string, wordCount, charCount int) error
	MarkError(ctx context.Context, id uuid.UUID, message string) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type bookRepo struct {
	db DBTX
}

// NewBookRepository creates the PostgreSQL-backed book repository.
func NewBookRepository(db DBTX) BookRepository {
	return &bookRepo{db: db}
}

const bookColumns = `id, user_id, title, author, language, filename, file_path,
	file_size, file_type, content, word_count, character_count, status,
	error_message, created_at, processed_at`

func scanBook(row pgx.Row) (*core.Book, error) {
	book := &core.Book{}

	err := row.Scan(
		&book.ID, &book.UserID, &book.Title, &book.Author, &book.Language,
		&book.Filename, &book.FilePath, &book.FileSize, &book.FileType,
		&book.Content, &book.WordCount, &book.CharacterCount,
		&book.Status, &book.ErrorMessage, &book.CreatedAt, &book.ProcessedAt,
	)

	return book, err
}

func (r *bookRepo) Create(ctx context.Context, book *core.Book) error {
	query := `
		INSERT INTO books (id, user_id, title, author, language, filename,
			file_path, file_size, file_type, content, word_count,
			character_count, status, error_message)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING created_at`

	err := r.db.QueryRow(ctx, query,
		book.ID, book.UserID, book.Title, book.Author, book.Language,
		book.Filename, book.FilePath, book.FileSize, book.FileType,
		book.Content, book.WordCount, book.CharacterCount,
		book.Status, book.ErrorMessage,
	).Scan(&book.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create book: %w", err)
	}

	return nil
}

func (r *bookRepo) GetByID(ctx context.Context, id uuid.UUID) (*core.Book, error) {
	query := fmt.Sprintf(`SELECT %s FROM books WHERE id = $1`, bookColumns)

	book, err := scanBook(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("failed to get book: %w", err)
	}

	return book, nil
}

func (r *bookRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*core.Book, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM books
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`, bookColumns)

	rows, err := r.db.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list books: %w", err)
	}
	defer rows.Close()

	var books []*core.Book

	for rows.Next() {
		book, scanErr := scanBook(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan book row: %w", scanErr)
		}

		books = append(books, book)
	}

	rowsErr := rows.Err()
	if rowsErr != nil {
		return nil, fmt.Errorf("failed to iterate book rows: %w", rowsErr)
	}

	return books, nil
}

func (r *bookRepo) CountByUser(ctx context.Context, userID uuid.UUID) (int, error) {
	var count int

	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM books WHERE user_id = $1`, userID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count books: %w", err)
	}

	return count, nil
}

func (r *bookRepo) MarkReady(ctx context.Context, id uuid.UUID, content string, wordCount, charCount int) error {
	query := `
		UPDATE books
		SET status = 'ready', content = $2, word_count = $3,
			character_count = $4, error_message = '', processed_at = now()
		WHERE id = $1`

	tag, err := r.db.Exec(ctx, query, id, content, wordCount, charCount)
	if err != nil {
		return fmt.Errorf("failed to mark book ready: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

func (r *bookRepo) MarkError(ctx context.Context, id uuid.UUID, message string) error {
	query := `
		UPDATE books
		SET status = 'error', error_message = $2, processed_at = now()
		WHERE id = $1`

	tag, err := r.db.Exec(ctx, query, id, message)
	if err != nil {
		return fmt.Errorf("failed to mark book errored: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

func (r *bookRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM books WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete book: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}
