package domain

import "errors"

// Persistence sentinels returned by the repositories.
var (
	ErrNotFound          = errors.New("record not found")
	ErrDuplicateEmail    = errors.New("duplicate email")
	ErrDuplicateNickname = errors.New("duplicate nickname")
	ErrDuplicateAccount  = errors.New("duplicate account")
	// ErrResetLocked: the account was reset after the session's cutoff.
	ErrResetLocked = errors.New("account reset within lockout")
)
