package dto

import "time"

// RegisterRequest payload for new identities.
type RegisterRequest struct {
	Name          string `json:"name"`
	Email         string `json:"email"`
	Password      string `json:"password"`
	AccountTypeID *int64 `json:"account_type_id"`
}

// LoginRequest payload for login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// IdentityResponse is the public view of an identity.
type IdentityResponse struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	AccountTypeID *int64    `json:"account_type_id"`
	CreatedAt     time.Time `json:"created_at"`
}

// TokenResponse carries an issued bearer token. ExpiresAt is null for tokens without expiry.
type TokenResponse struct {
	Token     string  `json:"token"`
	TokenType string  `json:"token_type"`
	ExpiresAt *string `json:"expires_at"`
}

// AuthResponse standard response for register and login.
type AuthResponse struct {
	User IdentityResponse `json:"user"`
	TokenResponse
}

// ProfileResponse describes the caller with its grants.
type ProfileResponse struct {
	User        IdentityResponse `json:"user"`
	Roles       []string         `json:"roles"`
	Permissions []string         `json:"permissions"`
}

// ISOTime formats t as ISO-8601 in UTC, or nil for a missing time.
func ISOTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}
