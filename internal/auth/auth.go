// Package auth provides password hashing and JWT session tokens for the
// audiobook-service API.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/book-expert/audiobook-service/internal/config"
)

// Token types carried in the "type" claim, so a refresh token can never be
// used as an access token and vice versa.
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// Authentication errors.
var (
	// ErrInvalidToken indicates a token that failed parsing or
	// signature/expiry validation.
	ErrInvalidToken = errors.New("invalid token")
	// ErrWrongTokenType indicates a valid token presented in the wrong
	// role.
	ErrWrongTokenType = errors.New("wrong token type")
	// ErrInvalidCredentials indicates a password mismatch.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Claims are the JWT claims issued by the service.
type Claims struct {
	jwt.RegisteredClaims

	TokenType string `json:"type"`
}

// TokenPair is an access/refresh token pair returned on login.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

// Manager issues and verifies HS256 session tokens.
type Manager struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewManager creates a token manager from the auth configuration.
func NewManager(cfg config.AuthConfig) *Manager {
	return &Manager{
		secret:     []byte(cfg.SecretKey),
		accessTTL:  time.Duration(cfg.AccessTokenExpireMinutes) * time.Minute,
		refreshTTL: time.Duration(cfg.RefreshTokenExpireDays) * 24 * time.Hour,
		now:        time.Now,
	}
}

// NewManagerWithClock creates a token manager with a custom time source
// for tests.
func NewManagerWithClock(cfg config.AuthConfig, now func() time.Time) *Manager {
	manager := NewManager(cfg)
	manager.now = now

	return manager
}

// HashPassword hashes a plaintext password with bcrypt.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}

	return string(hash), nil
}

// CheckPassword compares a plaintext password against its bcrypt hash.
func CheckPassword(hash, password string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if err != nil {
		return ErrInvalidCredentials
	}

	return nil
}

// IssuePair issues a fresh access/refresh token pair for the user.
func (m *Manager) IssuePair(userID uuid.UUID) (TokenPair, error) {
	access, err := m.issue(userID, TokenTypeAccess, m.accessTTL)
	if err != nil {
		return TokenPair{}, err
	}

	refresh, err := m.issue(userID, TokenTypeRefresh, m.refreshTTL)
	if err != nil {
		return TokenPair{}, err
	}

	return TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "bearer",
		ExpiresIn:    int64(m.accessTTL.Seconds()),
	}, nil
}

func (m *Manager) issue(userID uuid.UUID, tokenType string, ttl time.Duration) (string, error) {
	now := m.now()

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		TokenType: tokenType,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign %s token: %w", tokenType, err)
	}

	return signed, nil
}

// Verify parses a token, checks its signature and expiry, and ensures it
// carries the expected type. It returns the authenticated user ID.
func (m *Manager) Verify(tokenString, wantType string) (uuid.UUID, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(_ *jwt.Token) (any, error) { return m.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil || !token.Valid {
		return uuid.Nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	if claims.TokenType != wantType {
		return uuid.Nil, fmt.Errorf("%w: got %q, want %q", ErrWrongTokenType, claims.TokenType, wantType)
	}

	userID, parseErr := uuid.Parse(claims.Subject)
	if parseErr != nil {
		return uuid.Nil, fmt.Errorf("%w: bad subject: %w", ErrInvalidToken, parseErr)
	}

	return userID, nil
}
