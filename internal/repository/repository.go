// Package repository provides the PostgreSQL data access layer. All queries
// are plain SQL through pgx, without an ORM.
package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Repository layer errors.
var (
	// ErrNotFound indicates that the requested record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrConflict indicates a uniqueness conflict with an existing record.
	ErrConflict = errors.New("record already exists")
	// ErrTerminalState indicates an attempted transition out of a
	// terminal job state.
	ErrTerminalState = errors.New("job is already in a terminal state")
)

// uniqueViolationCode is the PostgreSQL error code for unique_violation.
const uniqueViolationCode = "23505"

// DBTX is the query interface satisfied by both *pgxpool.Pool and pgx.Tx,
// so repositories work inside and outside transactions.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == uniqueViolationCode
	}

	return false
}
