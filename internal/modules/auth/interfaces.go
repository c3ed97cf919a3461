package auth

import (
	"context"
	"time"

	"authgate/internal/domain"
	"authgate/internal/pkg/jwt"
)

// UserStore is the User persistence the state machine needs. Soft-deleted
// users are invisible to every method except GetDeletedByEmail.
type UserStore interface {
	Create(ctx context.Context, u *domain.User, beforeCommit func(ctx context.Context, u *domain.User) error) error
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetDeletedByEmail(ctx context.Context, email string) (*domain.User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	ExistsByNickname(ctx context.Context, nickname string) (bool, error)
	ExistsByAccount(ctx context.Context, account string) (bool, error)
}

// SessionStore holds per-user RefreshTokenRecords. Rotate must let exactly one of
// two racing calls for the same record succeed; the other gets domain.ErrNotFound.
// StartSession must not clear a reset raised after resetCutoff.
type SessionStore interface {
	StartSession(ctx context.Context, userID int64, rec *domain.RefreshTokenRecord, maxSessions int, resetCutoff time.Time) error
	Find(ctx context.Context, userID int64, id string) (*domain.RefreshTokenRecord, error)
	Rotate(ctx context.Context, userID int64, oldID string, next *domain.RefreshTokenRecord) error
	Remove(ctx context.Context, userID int64, id string) error
	RemoveAll(ctx context.Context, userID int64) (int64, error)
	Reset(ctx context.Context, userID int64, at time.Time) error
}

type TokenCodec interface {
	IssueAccess(userID int64, role string) (string, error)
	IssueRefresh(userID int64, recordID string) (string, error)
	Verify(token string, want jwt.Purpose) (*jwt.Claims, error)
	TTL(p jwt.Purpose) time.Duration
}

type PasswordHasher interface {
	Hash(ctx context.Context, plain string) (string, error)
	Compare(ctx context.Context, digest, plain string) (bool, error)
}

// Provisioner creates the external ledger account named at registration.
type Provisioner interface {
	CreateAccount(ctx context.Context, account string) (domain.AccountKeys, error)
}

// RateLimiter guards EmailExists against enumeration. An error means the
// limiter itself is unavailable; the check then proceeds unthrottled.
type RateLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}
