package auth

import "time"

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	FullName     string    `json:"full_name"`
	CreatedAt    time.Time `json:"created_at"`
}

// RefreshTokenRecord is the stored counterpart of an issued refresh token.
// The signed token is persisted verbatim; presence in the store is what makes
// logout and revocation meaningful.
type RefreshTokenRecord struct {
	ID        string
	UserID    string
	Token     string
	CreatedAt time.Time
}

type AuthResult struct {
	User         User   `json:"user"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}
