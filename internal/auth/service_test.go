package auth

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeStore is an in-memory Store; refresh token records are kept in
// insertion order, so the last matching record is the latest.
type fakeStore struct {
	usersByID map[string]User
	tokens    []RefreshTokenRecord
	seq       int
}

func newFakeStore() *fakeStore {
	return &fakeStore{usersByID: map[string]User{}}
}

func (s *fakeStore) CreateUser(_ context.Context, user User) error {
	for _, existing := range s.usersByID {
		if existing.Email == user.Email {
			return ErrEmailTaken
		}
	}
	s.usersByID[user.ID] = user
	return nil
}

func (s *fakeStore) GetUserByEmail(_ context.Context, email string) (User, error) {
	for _, user := range s.usersByID {
		if user.Email == email {
			return user, nil
		}
	}
	return User{}, sql.ErrNoRows
}

func (s *fakeStore) GetUserByID(_ context.Context, id string) (User, error) {
	user, ok := s.usersByID[id]
	if !ok {
		return User{}, sql.ErrNoRows
	}
	return user, nil
}

func (s *fakeStore) UpdateUserName(_ context.Context, id, fullName string) (User, error) {
	user, ok := s.usersByID[id]
	if !ok {
		return User{}, sql.ErrNoRows
	}
	user.FullName = fullName
	s.usersByID[id] = user
	user.PasswordHash = ""
	return user, nil
}

func (s *fakeStore) LatestRefreshToken(_ context.Context, userID string) (RefreshTokenRecord, error) {
	for i := len(s.tokens) - 1; i >= 0; i-- {
		if s.tokens[i].UserID == userID {
			return s.tokens[i], nil
		}
	}
	return RefreshTokenRecord{}, sql.ErrNoRows
}

func (s *fakeStore) CreateRefreshToken(_ context.Context, userID, token string) error {
	s.seq++
	s.tokens = append(s.tokens, RefreshTokenRecord{
		ID:     fmt.Sprintf("rt-%d", s.seq),
		UserID: userID,
		Token:  token,
	})
	return nil
}

func (s *fakeStore) FindRefreshToken(_ context.Context, token, userID string) (RefreshTokenRecord, error) {
	for _, record := range s.tokens {
		if record.Token == token && record.UserID == userID {
			return record, nil
		}
	}
	return RefreshTokenRecord{}, sql.ErrNoRows
}

func (s *fakeStore) DeleteRefreshTokens(_ context.Context, userID string) error {
	kept := s.tokens[:0]
	for _, record := range s.tokens {
		if record.UserID != userID {
			kept = append(kept, record)
		}
	}
	s.tokens = kept
	return nil
}

func (s *fakeStore) DeleteRefreshTokenByValue(_ context.Context, token string) error {
	kept := s.tokens[:0]
	for _, record := range s.tokens {
		if record.Token != token {
			kept = append(kept, record)
		}
	}
	s.tokens = kept
	return nil
}

func (s *fakeStore) tokenCount(userID string) int {
	count := 0
	for _, record := range s.tokens {
		if record.UserID == userID {
			count++
		}
	}
	return count
}

func newTestService() (*Service, *fakeStore, *TokenManager) {
	store := newFakeStore()
	tokens := NewTokenManager("access-secret", "refresh-secret")
	return NewService(store, tokens), store, tokens
}

func TestRegister(t *testing.T) {
	service, store, tokens := newTestService()
	ctx := context.Background()

	result, err := service.Register(ctx, "A@X.com", "secret1", "A")
	require.NoError(t, err)

	require.Equal(t, "a@x.com", result.User.Email, "email is normalized to lowercase")
	require.Equal(t, "A", result.User.FullName)
	require.NotEmpty(t, result.User.ID)
	require.Empty(t, result.User.PasswordHash)

	userID, err := tokens.VerifyAccess(result.AccessToken)
	require.NoError(t, err)
	require.Equal(t, result.User.ID, userID)

	userID, err = tokens.VerifyRefresh(result.RefreshToken)
	require.NoError(t, err)
	require.Equal(t, result.User.ID, userID)

	// refresh token is persisted verbatim
	_, err = store.FindRefreshToken(ctx, result.RefreshToken, result.User.ID)
	require.NoError(t, err)

	// stored user keeps a hash that matches the password
	stored, err := store.GetUserByID(ctx, result.User.ID)
	require.NoError(t, err)
	ok, err := VerifyPassword("secret1", stored.PasswordHash)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	service, store, _ := newTestService()
	ctx := context.Background()

	_, err := service.Register(ctx, "a@x.com", "secret1", "A")
	require.NoError(t, err)

	_, err = service.Register(ctx, "a@x.com", "other-pass", "B")
	require.ErrorIs(t, err, ErrEmailTaken)
	require.Len(t, store.usersByID, 1)
}

func TestRegisterDuplicateEmailDifferentCase(t *testing.T) {
	service, _, _ := newTestService()
	ctx := context.Background()

	_, err := service.Register(ctx, "a@x.com", "secret1", "A")
	require.NoError(t, err)

	_, err = service.Register(ctx, "A@X.COM", "secret1", "A")
	require.ErrorIs(t, err, ErrEmailTaken)
}

func TestLogin(t *testing.T) {
	service, _, tokens := newTestService()
	ctx := context.Background()

	registered, err := service.Register(ctx, "a@x.com", "secret1", "A")
	require.NoError(t, err)

	result, err := service.Login(ctx, "a@x.com", "secret1")
	require.NoError(t, err)
	require.Equal(t, registered.User.ID, result.User.ID)
	require.Empty(t, result.User.PasswordHash)

	userID, err := tokens.VerifyAccess(result.AccessToken)
	require.NoError(t, err)
	require.Equal(t, result.User.ID, userID)
}

// Unknown email and wrong password must be indistinguishable.
func TestLoginInvalidCredentials(t *testing.T) {
	service, _, _ := newTestService()
	ctx := context.Background()

	_, err := service.Register(ctx, "a@x.com", "secret1", "A")
	require.NoError(t, err)

	_, wrongPassErr := service.Login(ctx, "a@x.com", "wrong")
	require.ErrorIs(t, wrongPassErr, ErrInvalidCredentials)

	_, unknownEmailErr := service.Login(ctx, "nope@x.com", "x")
	require.ErrorIs(t, unknownEmailErr, ErrInvalidCredentials)

	require.Equal(t, wrongPassErr.Error(), unknownEmailErr.Error())
}

// Two consecutive logins reuse the stored refresh token instead of rotating.
func TestLoginReusesValidRefreshToken(t *testing.T) {
	service, store, _ := newTestService()
	ctx := context.Background()

	registered, err := service.Register(ctx, "a@x.com", "secret1", "A")
	require.NoError(t, err)

	first, err := service.Login(ctx, "a@x.com", "secret1")
	require.NoError(t, err)
	second, err := service.Login(ctx, "a@x.com", "secret1")
	require.NoError(t, err)

	require.Equal(t, registered.RefreshToken, first.RefreshToken)
	require.Equal(t, first.RefreshToken, second.RefreshToken)
	require.Equal(t, 1, store.tokenCount(registered.User.ID))

	// access tokens are never cached
	require.NotEmpty(t, first.AccessToken)
	require.NotEmpty(t, second.AccessToken)
}

// A stored token that no longer verifies triggers a purge of all the user's
// tokens and a fresh issue.
func TestLoginReplacesUnverifiableRefreshToken(t *testing.T) {
	service, store, tokens := newTestService()
	ctx := context.Background()

	registered, err := service.Register(ctx, "a@x.com", "secret1", "A")
	require.NoError(t, err)

	// simulate a token minted under a rotated-away secret
	foreign := NewTokenManager("old-access", "old-refresh")
	stale, err := foreign.IssueRefresh(registered.User.ID)
	require.NoError(t, err)
	require.NoError(t, store.CreateRefreshToken(ctx, registered.User.ID, stale))
	require.Equal(t, 2, store.tokenCount(registered.User.ID))

	result, err := service.Login(ctx, "a@x.com", "secret1")
	require.NoError(t, err)

	require.NotEqual(t, stale, result.RefreshToken)
	require.Equal(t, 1, store.tokenCount(registered.User.ID))

	userID, err := tokens.VerifyRefresh(result.RefreshToken)
	require.NoError(t, err)
	require.Equal(t, registered.User.ID, userID)
}

func TestRefreshAccess(t *testing.T) {
	service, _, tokens := newTestService()
	ctx := context.Background()

	registered, err := service.Register(ctx, "a@x.com", "secret1", "A")
	require.NoError(t, err)

	access, err := service.RefreshAccess(ctx, registered.RefreshToken)
	require.NoError(t, err)

	userID, err := tokens.VerifyAccess(access)
	require.NoError(t, err)
	require.Equal(t, registered.User.ID, userID)
}

func TestRefreshAccessUnverifiableToken(t *testing.T) {
	service, _, _ := newTestService()

	_, err := service.RefreshAccess(context.Background(), "not.a.jwt")
	require.ErrorIs(t, err, ErrRefreshTokenInvalid)
}

// A well-signed refresh token with no stored record for its claimed user is
// rejected, even though it verifies.
func TestRefreshAccessRevokedToken(t *testing.T) {
	service, _, tokens := newTestService()
	ctx := context.Background()

	_, err := service.Register(ctx, "a@x.com", "secret1", "A")
	require.NoError(t, err)

	unstored, err := tokens.IssueRefresh("some-other-user")
	require.NoError(t, err)

	_, err = service.RefreshAccess(ctx, unstored)
	require.ErrorIs(t, err, ErrRefreshTokenUnknown)
}

func TestLogoutIdempotent(t *testing.T) {
	service, store, _ := newTestService()
	ctx := context.Background()

	registered, err := service.Register(ctx, "a@x.com", "secret1", "A")
	require.NoError(t, err)

	require.NoError(t, service.Logout(ctx, registered.RefreshToken))
	require.Equal(t, 0, store.tokenCount(registered.User.ID))

	// second logout with the same token, and one with no token at all
	require.NoError(t, service.Logout(ctx, registered.RefreshToken))
	require.NoError(t, service.Logout(ctx, ""))
}

func TestRefreshAccessAfterLogout(t *testing.T) {
	service, _, _ := newTestService()
	ctx := context.Background()

	registered, err := service.Register(ctx, "a@x.com", "secret1", "A")
	require.NoError(t, err)

	require.NoError(t, service.Logout(ctx, registered.RefreshToken))

	_, err = service.RefreshAccess(ctx, registered.RefreshToken)
	require.ErrorIs(t, err, ErrRefreshTokenUnknown)
}

func TestUpdateProfile(t *testing.T) {
	service, _, _ := newTestService()
	ctx := context.Background()

	registered, err := service.Register(ctx, "a@x.com", "secret1", "A")
	require.NoError(t, err)

	updated, err := service.UpdateProfile(ctx, registered.User.ID, "  New Name  ")
	require.NoError(t, err)
	require.Equal(t, "New Name", updated.FullName)

	_, err = service.UpdateProfile(ctx, "missing-user", "Name")
	require.ErrorIs(t, err, sql.ErrNoRows)
}
