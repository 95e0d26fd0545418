package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrInvalidCredentials covers both unknown email and wrong password, so
	// responses never reveal which check failed.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrRefreshTokenInvalid means the presented token failed signature or
	// expiry verification.
	ErrRefreshTokenInvalid = errors.New("invalid or expired refresh token")
	// ErrRefreshTokenUnknown means the token verified but has no matching
	// stored record for its claimed user: revoked, or signed for someone else.
	ErrRefreshTokenUnknown = errors.New("refresh token not recognized")
)

// Store is the persistence port of the session manager. *Repository is the
// production implementation.
type Store interface {
	CreateUser(ctx context.Context, user User) error
	GetUserByEmail(ctx context.Context, email string) (User, error)
	GetUserByID(ctx context.Context, id string) (User, error)
	UpdateUserName(ctx context.Context, id, fullName string) (User, error)
	LatestRefreshToken(ctx context.Context, userID string) (RefreshTokenRecord, error)
	CreateRefreshToken(ctx context.Context, userID, token string) error
	FindRefreshToken(ctx context.Context, token, userID string) (RefreshTokenRecord, error)
	DeleteRefreshTokens(ctx context.Context, userID string) error
	DeleteRefreshTokenByValue(ctx context.Context, token string) error
}

// Service implements the register/login/refresh/logout flows. There is no
// session object; session state is implicit in the user row and its refresh
// token rows.
type Service struct {
	store  Store
	tokens *TokenManager
}

func NewService(store Store, tokens *TokenManager) *Service {
	return &Service{store: store, tokens: tokens}
}

func (s *Service) Register(ctx context.Context, email, password, fullName string) (AuthResult, error) {
	email = normalizeEmail(email)

	_, err := s.store.GetUserByEmail(ctx, email)
	if err == nil {
		return AuthResult{}, ErrEmailTaken
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return AuthResult{}, err
	}

	hash, err := HashPassword(password)
	if err != nil {
		return AuthResult{}, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return AuthResult{}, fmt.Errorf("generate user id: %w", err)
	}

	user := User{
		ID:           id.String(),
		Email:        email,
		PasswordHash: hash,
		FullName:     strings.TrimSpace(fullName),
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		return AuthResult{}, err
	}

	access, err := s.tokens.IssueAccess(user.ID)
	if err != nil {
		return AuthResult{}, err
	}
	refresh, err := s.issueAndStoreRefresh(ctx, user.ID)
	if err != nil {
		return AuthResult{}, err
	}

	user.PasswordHash = ""
	return AuthResult{User: user, AccessToken: access, RefreshToken: refresh}, nil
}

func (s *Service) Login(ctx context.Context, email, password string) (AuthResult, error) {
	email = normalizeEmail(email)

	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return AuthResult{}, ErrInvalidCredentials
		}
		return AuthResult{}, err
	}

	ok, err := VerifyPassword(password, user.PasswordHash)
	if err != nil {
		return AuthResult{}, err
	}
	if !ok {
		return AuthResult{}, ErrInvalidCredentials
	}

	refresh, err := s.reuseOrIssueRefresh(ctx, user.ID)
	if err != nil {
		return AuthResult{}, err
	}

	access, err := s.tokens.IssueAccess(user.ID)
	if err != nil {
		return AuthResult{}, err
	}

	user.PasswordHash = ""
	return AuthResult{User: user, AccessToken: access, RefreshToken: refresh}, nil
}

// reuseOrIssueRefresh keeps handing out the latest stored refresh token while
// it still verifies, so repeated logins do not churn tokens. A stored token
// that no longer verifies triggers a full purge of the user's tokens before a
// new one is issued.
func (s *Service) reuseOrIssueRefresh(ctx context.Context, userID string) (string, error) {
	record, err := s.store.LatestRefreshToken(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return s.issueAndStoreRefresh(ctx, userID)
		}
		return "", err
	}

	if _, err := s.tokens.VerifyRefresh(record.Token); err == nil {
		return record.Token, nil
	}

	if err := s.store.DeleteRefreshTokens(ctx, userID); err != nil {
		return "", err
	}

	return s.issueAndStoreRefresh(ctx, userID)
}

func (s *Service) issueAndStoreRefresh(ctx context.Context, userID string) (string, error) {
	refresh, err := s.tokens.IssueRefresh(userID)
	if err != nil {
		return "", err
	}
	if err := s.store.CreateRefreshToken(ctx, userID, refresh); err != nil {
		return "", err
	}

	return refresh, nil
}

// RefreshAccess exchanges a valid, still-stored refresh token for a new
// access token. The refresh token itself is not rotated.
func (s *Service) RefreshAccess(ctx context.Context, refreshToken string) (string, error) {
	userID, err := s.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		return "", ErrRefreshTokenInvalid
	}

	if _, err := s.store.FindRefreshToken(ctx, refreshToken, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrRefreshTokenUnknown
		}
		return "", err
	}

	return s.tokens.IssueAccess(userID)
}

// Logout deletes the stored record matching the token value. Unknown tokens
// and empty input are silently accepted, so the operation is idempotent.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	if strings.TrimSpace(refreshToken) == "" {
		return nil
	}

	return s.store.DeleteRefreshTokenByValue(ctx, refreshToken)
}

func (s *Service) UpdateProfile(ctx context.Context, userID, fullName string) (User, error) {
	return s.store.UpdateUserName(ctx, userID, strings.TrimSpace(fullName))
}

// Emails are stored lowercase so uniqueness does not depend on the database
// collation.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
