package models

import "time"

// LoginRequest is the body of POST /auth/login/
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterRequest is the body of POST /auth/register/
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Credential is the session credential issued on login or registration
type Credential struct {
	Token  string `json:"token"`
	UserID string `json:"user_id,omitempty"`
	Email  string `json:"email,omitempty"`
}

// APIKey is the key material returned by /auth/api-key/
type APIKey struct {
	Key       string    `json:"api_key"`
	CreatedAt time.Time `json:"created_at,omitzero"`
}
