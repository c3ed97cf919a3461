package domain

import "time"

type UserRole string

const (
	RoleUser  UserRole = "user"
	RoleAdmin UserRole = "admin"
)

// User is the account that owns every session issued for it.
//
// AuthReset is the per-account kill switch. While it is set every access and
// refresh token of the user is rejected. AuthResetAt keeps the moment of the
// last reset even after the flag is cleared, so tokens issued before it never
// become valid again.
type User struct {
	ID               int64      `json:"id"`
	Email            string     `json:"email"`
	PasswordHash     string     `json:"-"`
	Role             UserRole   `json:"role"`
	Nickname         string     `json:"nickname,omitempty"`
	Account          string     `json:"account,omitempty"`
	AccountPublicKey string     `json:"account_public_key,omitempty"`
	Name             string     `json:"name,omitempty"`
	Lastname         string     `json:"lastname,omitempty"`
	Lang             string     `json:"lang"`
	Active           bool       `json:"active"`
	Deleted          bool       `json:"-"`
	DeletedAt        *time.Time `json:"-"`
	AuthReset        bool       `json:"-"`
	AuthResetAt      *time.Time `json:"-"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// PublicProfile is the part of a user that is safe to return to clients.
type PublicProfile struct {
	ID               int64    `json:"id"`
	Email            string   `json:"email"`
	Role             UserRole `json:"role"`
	Nickname         string   `json:"nickname,omitempty"`
	Account          string   `json:"account,omitempty"`
	AccountPublicKey string   `json:"account_public_key,omitempty"`
	Name             string   `json:"name,omitempty"`
	Lastname         string   `json:"lastname,omitempty"`
	Lang             string   `json:"lang"`
}

func (u *User) Public() PublicProfile {
	return PublicProfile{
		ID:               u.ID,
		Email:            u.Email,
		Role:             u.Role,
		Nickname:         u.Nickname,
		Account:          u.Account,
		AccountPublicKey: u.AccountPublicKey,
		Name:             u.Name,
		Lastname:         u.Lastname,
		Lang:             u.Lang,
	}
}

// IssuedBeforeReset reports whether a token issued at iat predates the last
// reset of the account. JWT issued-at has second precision, so a token issued
// in the same second as the reset counts as older.
func (u *User) IssuedBeforeReset(iat time.Time) bool {
	if u.AuthResetAt == nil {
		return false
	}
	return !iat.After(u.AuthResetAt.Truncate(time.Second))
}

// AccountKeys is returned by the ledger when an external account is provisioned.
type AccountKeys struct {
	Account   string
	PublicKey string
}
