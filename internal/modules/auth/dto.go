package auth

import "authgate/internal/domain"

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=6,bcryptlen"`
	Nickname string `json:"nickname" validate:"omitempty,min=2,max=32"`
	Account  string `json:"account" validate:"omitempty,account"`
	Name     string `json:"name" validate:"omitempty,max=64"`
	Lastname string `json:"lastname" validate:"omitempty,max=64"`
	Lang     string `json:"lang" validate:"omitempty,max=8"`
}

// TokenPair is what the transport attaches to a successful response.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// AuthResult is returned by Login, Register and Refresh.
type AuthResult struct {
	User   domain.PublicProfile
	Tokens TokenPair
}

// Identity is the minimal identity Check resolves from an access token.
type Identity struct {
	UserID int64           `json:"id"`
	Role   domain.UserRole `json:"role"`
}

// AuthResponse carries the profile fields at the top level, next to the
// tokens in header mode.
type AuthResponse struct {
	domain.PublicProfile
	Token        string `json:"token,omitempty"`
	RefreshToken string `json:"rt,omitempty"`
}

type EmailExistsResponse struct {
	Exists bool `json:"exists"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type RevokeSessionsResponse struct {
	Revoked int64 `json:"revoked"`
}
