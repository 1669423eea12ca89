package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/book-expert/logger"
	"github.com/google/uuid"

	"github.com/book-expert/audiobook-service/internal/auth"
	"github.com/book-expert/audiobook-service/internal/core"
	"github.com/book-expert/audiobook-service/internal/repository"
)

// ErrAccountDisabled indicates a login attempt against a deactivated
// account.
var ErrAccountDisabled = errors.New("account is disabled")

// AccountService owns registration and session management.
type AccountService struct {
	users  repository.UserRepository
	tokens *auth.Manager
	log    *logger.Logger
}

// NewAccountService creates the account service.
func NewAccountService(users repository.UserRepository, tokens *auth.Manager, log *logger.Logger) *AccountService {
	return &AccountService{users: users, tokens: tokens, log: log}
}

// Register creates a new active account with a hashed password.
func (s *AccountService) Register(ctx context.Context, email, username, password string) (*core.User, error) {
	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}

	user := &core.User{
		ID:           uuid.New(),
		Email:        email,
		Username:     username,
		PasswordHash: hash,
		IsActive:     true,
	}

	createErr := s.users.Create(ctx, user)
	if createErr != nil {
		return nil, fmt.Errorf("failed to create user: %w", createErr)
	}

	s.log.Info("Registered user %s (%s)", user.ID, user.Username)

	return user, nil
}

// Login verifies credentials and issues a session token pair. A missing
// account and a wrong password are indistinguishable to the caller.
func (s *AccountService) Login(ctx context.Context, email, password string) (auth.TokenPair, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return auth.TokenPair{}, auth.ErrInvalidCredentials
		}

		return auth.TokenPair{}, fmt.Errorf("failed to look up user: %w", err)
	}

	checkErr := auth.CheckPassword(user.PasswordHash, password)
	if checkErr != nil {
		return auth.TokenPair{}, auth.ErrInvalidCredentials
	}

	if !user.IsActive {
		return auth.TokenPair{}, ErrAccountDisabled
	}

	return s.tokens.IssuePair(user.ID)
}

// Refresh exchanges a valid refresh token for a fresh token pair.
func (s *AccountService) Refresh(ctx context.Context, refreshToken string) (auth.TokenPair, error) {
	userID, err := s.tokens.Verify(refreshToken, auth.TokenTypeRefresh)
	if err != nil {
		return auth.TokenPair{}, err
	}

	user, getErr := s.users.GetByID(ctx, userID)
	if getErr != nil {
		if errors.Is(getErr, repository.ErrNotFound) {
			return auth.TokenPair{}, auth.ErrInvalidCredentials
		}

		return auth.TokenPair{}, fmt.Errorf("failed to look up user: %w", getErr)
	}

	if !user.IsActive {
		return auth.TokenPair{}, ErrAccountDisabled
	}

	return s.tokens.IssuePair(user.ID)
}
