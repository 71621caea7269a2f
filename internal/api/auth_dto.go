package api

import "time"

// MeResponse describes the identity carried by the bearer token.
type MeResponse struct {
	UserID  string `json:"user_id"`
	Role    string `json:"role"`
	IsStaff bool   `json:"is_staff"`
}

// TokenResponse is returned by the development token command.
type TokenResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}
