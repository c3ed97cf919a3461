package domain

import "time"

// RefreshTokenRecord backs exactly one outstanding refresh token.
//
// Records are single-use: rotation deletes the redeemed record and appends a
// new one. A signed refresh token whose record is gone is a replay.
type RefreshTokenRecord struct {
	ID        string    `json:"id"`
	UserID    int64     `json:"user_id"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (t *RefreshTokenRecord) IsExpired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}
