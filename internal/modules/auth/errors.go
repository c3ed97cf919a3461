package auth

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"net/http"
)

var (
	ErrMissingCredentials  = errors.New("missing credentials")
	ErrInvalidEmail        = errors.New("invalid email")
	ErrInvalidPassword     = errors.New("invalid password")
	ErrInactiveAccount     = errors.New("inactive account")
	ErrAuthReset           = errors.New("auth reset")
	ErrRefreshTokenReused  = errors.New("refresh token reused")
	ErrDeletedAccount      = errors.New("deleted account")
	ErrRefreshTokenExpired = errors.New("refresh token expired")
	ErrAccountExists       = errors.New("account already exists")
	ErrNicknameExists      = errors.New("nickname already exists")
	ErrEmailExists         = errors.New("email already exists")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrNotFound            = errors.New("not found")
	ErrTooManyRequests     = errors.New("too many requests")
)

// Numeric codes carried in the {error: code} payload.
const (
	CodeMalformedBody            = 200
	CodeMissingRequiredParameter = 201
	CodeInvalidFormat            = 210
	CodeMissingCredentials       = 300
	CodeInvalidEmail             = 301
	CodeInvalidPassword          = 302
	CodeInactiveAccount          = 303
	CodeAuthReset                = 305
	CodeRefreshTokenReused       = 306
	CodeDeletedAccount           = 307
	CodeRefreshTokenExpired      = 310
	CodeAccountExists            = 350
	CodeNicknameExists           = 351
	CodeEmailExists              = 352
	CodeUnauthorized             = 401
	CodeForbidden                = 403
	CodeNotFound                 = 404
	CodeTooManyRequests          = 429
	CodeInternal                 = 500
	CodeUnavailable              = 503
)

// ValidationError is a field-scoped input problem.
type ValidationError struct {
	Code  int
	Field string
}

func (e *ValidationError) Error() string {
	if e.Code == CodeMissingRequiredParameter {
		return fmt.Sprintf("missing required parameter %q", e.Field)
	}
	return fmt.Sprintf("invalid format of %q", e.Field)
}

func missingParam(field string) error {
	return &ValidationError{Code: CodeMissingRequiredParameter, Field: field}
}

func invalidFormat(field string) error {
	return &ValidationError{Code: CodeInvalidFormat, Field: field}
}

// DependencyError wraps a failure of the store, hasher, codec or ledger.
// Retryable is set for timeouts and connection failures.
type DependencyError struct {
	Op        string
	Retryable bool
	Err       error
}

func (e *DependencyError) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *DependencyError) Unwrap() error { return e.Err }

func dependency(op string, err error) *DependencyError {
	var dep *DependencyError
	if errors.As(err, &dep) {
		return dep
	}
	return &DependencyError{Op: op, Retryable: isRetryable(err), Err: err}
}

func isRetryable(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, driver.ErrBadConn) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var r interface{ Retryable() bool }
	return errors.As(err, &r) && r.Retryable()
}

type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindCredential
	KindAccountState
	KindConflict
	KindToken
	KindReplay
	KindNotFound
	KindRateLimited
	KindDependency
)

type errorClass struct {
	kind   Kind
	code   int
	status int
}

var classes = []struct {
	err error
	errorClass
}{
	{ErrMissingCredentials, errorClass{KindValidation, CodeMissingCredentials, http.StatusBadRequest}},
	{ErrInvalidEmail, errorClass{KindCredential, CodeInvalidEmail, http.StatusBadRequest}},
	{ErrInvalidPassword, errorClass{KindCredential, CodeInvalidPassword, http.StatusBadRequest}},
	{ErrInactiveAccount, errorClass{KindAccountState, CodeInactiveAccount, http.StatusUnauthorized}},
	{ErrAuthReset, errorClass{KindAccountState, CodeAuthReset, http.StatusUnauthorized}},
	{ErrDeletedAccount, errorClass{KindAccountState, CodeDeletedAccount, http.StatusBadRequest}},
	{ErrRefreshTokenReused, errorClass{KindReplay, CodeRefreshTokenReused, http.StatusUnauthorized}},
	{ErrRefreshTokenExpired, errorClass{KindToken, CodeRefreshTokenExpired, http.StatusUnauthorized}},
	{ErrUnauthorized, errorClass{KindToken, CodeUnauthorized, http.StatusUnauthorized}},
	{ErrAccountExists, errorClass{KindConflict, CodeAccountExists, http.StatusConflict}},
	{ErrNicknameExists, errorClass{KindConflict, CodeNicknameExists, http.StatusConflict}},
	{ErrEmailExists, errorClass{KindConflict, CodeEmailExists, http.StatusConflict}},
	{ErrNotFound, errorClass{KindNotFound, CodeNotFound, http.StatusNotFound}},
	{ErrTooManyRequests, errorClass{KindRateLimited, CodeTooManyRequests, http.StatusTooManyRequests}},
}

func classify(err error) errorClass {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return errorClass{KindValidation, verr.Code, http.StatusBadRequest}
	}
	for _, c := range classes {
		if errors.Is(err, c.err) {
			return c.errorClass
		}
	}
	var dep *DependencyError
	if errors.As(err, &dep) && dep.Retryable {
		return errorClass{KindDependency, CodeUnavailable, http.StatusServiceUnavailable}
	}
	if dep != nil {
		return errorClass{KindDependency, CodeInternal, http.StatusInternalServerError}
	}
	return errorClass{KindUnknown, CodeInternal, http.StatusInternalServerError}
}

// KindOf places err in the error taxonomy.
func KindOf(err error) Kind { return classify(err).kind }

// HTTPError returns the status, payload code and optional field for err.
func HTTPError(err error) (status, code int, field string) {
	c := classify(err)
	var verr *ValidationError
	if errors.As(err, &verr) {
		field = verr.Field
	}
	return c.status, c.code, field
}
