package auth

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/getsentry/sentry-go"
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"

	"expense-tracker/internal/respond"
)

const maxJSONBodyBytes = 1 << 20

type Handler struct {
	service *Service
	dev     bool
}

// NewHandler builds the auth HTTP surface. When dev is true, 500 responses
// include the underlying error string in the errors field.
func NewHandler(service *Service, dev bool) *Handler {
	return &Handler{service: service, dev: dev}
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
}

func (r registerRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		// upper bound is bcrypt's input limit; longer passwords would fail
		// at hashing time after passing validation
		validation.Field(&r.Password, validation.Required, validation.Length(6, maxPasswordBytes)),
		validation.Field(&r.FullName, validation.Required),
	)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r loginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required),
	)
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type updateProfileRequest struct {
	FullName string `json:"full_name"`
}

func (r updateProfileRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.FullName, validation.Required),
	)
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var body registerRequest
	if !decodeJSON(w, r, &body) {
		return
	}
	body.Email = strings.TrimSpace(body.Email)
	body.FullName = strings.TrimSpace(body.FullName)
	if err := body.Validate(); err != nil {
		respond.ErrorDetail(w, http.StatusBadRequest, "Validation failed", err)
		return
	}

	result, err := h.service.Register(r.Context(), body.Email, body.Password, body.FullName)
	if err != nil {
		if errors.Is(err, ErrEmailTaken) {
			respond.Error(w, http.StatusConflict, "User with this email already exists")
			return
		}
		h.internalError(w, err, "Registration failed")
		return
	}

	respond.Success(w, http.StatusCreated, "User registered successfully", result)
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var body loginRequest
	if !decodeJSON(w, r, &body) {
		return
	}
	body.Email = strings.TrimSpace(body.Email)
	if err := body.Validate(); err != nil {
		respond.ErrorDetail(w, http.StatusBadRequest, "Validation failed", err)
		return
	}

	result, err := h.service.Login(r.Context(), body.Email, body.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			respond.Error(w, http.StatusUnauthorized, "Invalid email or password")
			return
		}
		h.internalError(w, err, "Login failed")
		return
	}

	respond.Success(w, http.StatusOK, "Login successful", result)
}

func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var body refreshRequest
	if !decodeJSON(w, r, &body) {
		return
	}

	body.RefreshToken = strings.TrimSpace(body.RefreshToken)
	if body.RefreshToken == "" {
		respond.Error(w, http.StatusBadRequest, "Refresh token is required")
		return
	}

	access, err := h.service.RefreshAccess(r.Context(), body.RefreshToken)
	if err != nil {
		switch {
		case errors.Is(err, ErrRefreshTokenInvalid):
			respond.Error(w, http.StatusUnauthorized, "Invalid or expired refresh token")
		case errors.Is(err, ErrRefreshTokenUnknown):
			respond.Error(w, http.StatusUnauthorized, "Invalid refresh token")
		default:
			h.internalError(w, err, "Token refresh failed")
		}
		return
	}

	respond.Success(w, http.StatusOK, "Token refreshed successfully", map[string]string{
		"accessToken": access,
	})
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	// Logout succeeds with or without a token, so a missing or malformed
	// body is not an error.
	var body refreshRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)
	_ = json.NewDecoder(r.Body).Decode(&body)

	if err := h.service.Logout(r.Context(), body.RefreshToken); err != nil {
		h.internalError(w, err, "Logout failed")
		return
	}

	respond.Success(w, http.StatusOK, "Logout successful", nil)
}

func (h *Handler) Profile(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		respond.Error(w, http.StatusUnauthorized, "Access token is required")
		return
	}

	respond.Success(w, http.StatusOK, "Profile fetched successfully", map[string]any{
		"user": user,
	})
}

func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		respond.Error(w, http.StatusUnauthorized, "Access token is required")
		return
	}

	var body updateProfileRequest
	if !decodeJSON(w, r, &body) {
		return
	}
	body.FullName = strings.TrimSpace(body.FullName)
	if err := body.Validate(); err != nil {
		respond.ErrorDetail(w, http.StatusBadRequest, "Validation failed", err)
		return
	}

	updated, err := h.service.UpdateProfile(r.Context(), user.ID, body.FullName)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respond.Error(w, http.StatusNotFound, "User not found")
			return
		}
		h.internalError(w, err, "Failed to update profile")
		return
	}

	respond.Success(w, http.StatusOK, "Profile updated successfully", map[string]any{
		"user": updated,
	})
}

func (h *Handler) internalError(w http.ResponseWriter, err error, message string) {
	sentry.CaptureException(err)
	if h.dev {
		respond.ErrorDetail(w, http.StatusInternalServerError, message, err.Error())
		return
	}
	respond.Error(w, http.StatusInternalServerError, message)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		respond.Error(w, http.StatusBadRequest, "Invalid JSON body")
		return false
	}

	return true
}
