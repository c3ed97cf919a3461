package auth

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"time"

	"authgate/internal/domain"
	"authgate/internal/pkg/jwt"
	"authgate/internal/pkg/validator"

	"github.com/google/uuid"
)

const (
	defaultOperationTimeout = 5 * time.Second
	defaultProvisionTimeout = 10 * time.Second
)

type Config struct {
	OperationTimeout time.Duration
	ProvisionTimeout time.Duration
	// ResetLockout is how long Login stays refused after a reset. Anything
	// below one second is raised to one second so that tokens issued by the
	// unlocking login are strictly newer than the reset watermark.
	ResetLockout      time.Duration
	LogoutAllSessions bool
	// MaxSessions caps live refresh records per user; 0 means unlimited.
	MaxSessions    int
	SupportedLangs []string
	DefaultLang    string
}

// Service is the auth state machine. It keeps no session state in memory:
// records and the reset flag live on the persisted user.
type Service struct {
	users       UserStore
	sessions    SessionStore
	tokens      TokenCodec
	hasher      PasswordHasher
	provisioner Provisioner
	limiter     RateLimiter
	cfg         Config
	now         func() time.Time
	newID       func() string
	log         *slog.Logger
}

func NewService(
	users UserStore,
	sessions SessionStore,
	tokens TokenCodec,
	hasher PasswordHasher,
	provisioner Provisioner,
	cfg Config,
) *Service {
	if cfg.OperationTimeout <= 0 {
		cfg.OperationTimeout = defaultOperationTimeout
	}
	if cfg.ProvisionTimeout <= 0 {
		cfg.ProvisionTimeout = defaultProvisionTimeout
	}
	if len(cfg.SupportedLangs) == 0 {
		cfg.SupportedLangs = []string{"en", "it"}
	}
	if cfg.DefaultLang == "" {
		cfg.DefaultLang = cfg.SupportedLangs[0]
	}
	return &Service{
		users:       users,
		sessions:    sessions,
		tokens:      tokens,
		hasher:      hasher,
		provisioner: provisioner,
		cfg:         cfg,
		now:         time.Now,
		newID:       uuid.NewString,
		log:         slog.Default(),
	}
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) WithLogger(l *slog.Logger) *Service {
	s.log = l
	return s
}

// WithRateLimiter enables the EmailExists limiter.
func (s *Service) WithRateLimiter(l RateLimiter) *Service {
	s.limiter = l
	return s
}

// Login authenticates by email and password and starts a new session.
func (s *Service) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, ErrMissingCredentials
	}

	u, err := call(ctx, s, "users.get_by_email", func(ctx context.Context) (*domain.User, error) {
		return s.users.GetByEmail(ctx, email)
	})
	if errors.Is(err, domain.ErrNotFound) {
		return nil, s.loginUnknown(ctx, email, password)
	}
	if err != nil {
		return nil, err
	}

	ok, err := s.comparePassword(ctx, u.PasswordHash, password)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidPassword
	}
	if !u.Active {
		return nil, ErrInactiveAccount
	}
	if u.AuthReset && s.resetLocked(u) {
		s.log.WarnContext(ctx, "login refused: account reset", "user_id", u.ID)
		return nil, ErrAuthReset
	}
	return s.startSession(ctx, u)
}

// loginUnknown tells a soft-deleted account apart from an unknown email,
// but only to a caller who knows the password.
func (s *Service) loginUnknown(ctx context.Context, email, password string) error {
	deleted, err := call(ctx, s, "users.get_deleted_by_email", func(ctx context.Context) (*domain.User, error) {
		return s.users.GetDeletedByEmail(ctx, email)
	})
	if errors.Is(err, domain.ErrNotFound) {
		return ErrInvalidEmail
	}
	if err != nil {
		return err
	}
	ok, err := s.comparePassword(ctx, deleted.PasswordHash, password)
	if err != nil {
		return err
	}
	if ok {
		return ErrDeletedAccount
	}
	return ErrInvalidEmail
}

func (s *Service) resetLocked(u *domain.User) bool {
	if u.AuthResetAt == nil {
		return false
	}
	return s.now().Before(u.AuthResetAt.Add(s.resetLockout()))
}

// resetLockout is never below one second so that tokens issued by the
// unlocking login are strictly newer than the reset watermark.
func (s *Service) resetLockout() time.Duration {
	return max(s.cfg.ResetLockout, time.Second)
}

// Register validates the request, creates the user (provisioning its ledger
// account in the same transaction) and starts its first session.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*AuthResult, error) {
	req.Email = normalizeEmail(req.Email)
	req.Nickname = strings.TrimSpace(req.Nickname)
	req.Account = strings.TrimSpace(req.Account)
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	conflicts := []struct {
		op       string
		value    string
		exists   func(context.Context, string) (bool, error)
		conflict error
	}{
		{"users.exists_by_email", req.Email, s.users.ExistsByEmail, ErrEmailExists},
		{"users.exists_by_nickname", req.Nickname, s.users.ExistsByNickname, ErrNicknameExists},
		{"users.exists_by_account", req.Account, s.users.ExistsByAccount, ErrAccountExists},
	}
	for _, c := range conflicts {
		if c.value == "" {
			continue
		}
		taken, err := call(ctx, s, c.op, func(ctx context.Context) (bool, error) {
			return c.exists(ctx, c.value)
		})
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, c.conflict
		}
	}

	digest, err := call(ctx, s, "password.hash", func(ctx context.Context) (string, error) {
		return s.hasher.Hash(ctx, req.Password)
	})
	if err != nil {
		return nil, err
	}

	u := &domain.User{
		Email:        req.Email,
		PasswordHash: digest,
		Role:         domain.RoleUser,
		Nickname:     req.Nickname,
		Account:      req.Account,
		Name:         strings.TrimSpace(req.Name),
		Lastname:     strings.TrimSpace(req.Lastname),
		Lang:         s.lang(req.Lang),
		Active:       true,
	}

	timeout := s.cfg.OperationTimeout
	provision := s.provisionFor(req.Account)
	if provision != nil {
		timeout += s.cfg.ProvisionTimeout
	}
	_, err = callWithin(ctx, s, "users.create", timeout, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.users.Create(ctx, u, provision)
	})
	switch {
	case errors.Is(err, domain.ErrDuplicateEmail):
		return nil, ErrEmailExists
	case errors.Is(err, domain.ErrDuplicateNickname):
		return nil, ErrNicknameExists
	case errors.Is(err, domain.ErrDuplicateAccount):
		return nil, ErrAccountExists
	case err != nil:
		return nil, err
	}

	s.log.InfoContext(ctx, "user registered", "user_id", u.ID, "account", u.Account)
	return s.startSession(ctx, u)
}

func validateRequest(req RegisterRequest) error {
	err := validator.Validate(req)
	if err == nil {
		return nil
	}
	var fe *validator.FieldError
	if !errors.As(err, &fe) {
		return err
	}
	if fe.Missing() {
		return missingParam(fe.Field)
	}
	return invalidFormat(fe.Field)
}

// provisionFor returns the hook run inside the user-create transaction, or
// nil when there is nothing to provision.
func (s *Service) provisionFor(account string) func(context.Context, *domain.User) error {
	if account == "" || s.provisioner == nil {
		return nil
	}
	return func(ctx context.Context, u *domain.User) error {
		ctx, cancel := context.WithTimeout(ctx, s.cfg.ProvisionTimeout)
		defer cancel()

		keys, err := s.provisioner.CreateAccount(ctx, account)
		if err != nil {
			return dependency("ledger.create_account", err)
		}
		u.AccountPublicKey = keys.PublicKey
		return nil
	}
}

func (s *Service) lang(requested string) string {
	l := strings.ToLower(strings.TrimSpace(requested))
	if slices.Contains(s.cfg.SupportedLangs, l) {
		return l
	}
	return s.cfg.DefaultLang
}

// Check resolves the identity behind an access token.
func (s *Service) Check(ctx context.Context, accessToken string) (*Identity, error) {
	claims, err := s.tokens.Verify(accessToken, jwt.PurposeAccess)
	if err != nil {
		return nil, ErrUnauthorized
	}
	u, err := s.activeUser(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}
	if u.AuthReset {
		return nil, ErrAuthReset
	}
	if u.IssuedBeforeReset(claims.IssuedAtTime()) {
		return nil, ErrUnauthorized
	}
	return &Identity{UserID: u.ID, Role: u.Role}, nil
}

// Refresh redeems a refresh token for a new token pair. A signed, unexpired
// token whose record is gone is a replay: the account is reset.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*AuthResult, error) {
	claims, err := s.tokens.Verify(refreshToken, jwt.PurposeRefresh)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired) && claims != nil:
		s.dropRecord(ctx, claims.UserID, claims.RecordID)
		return nil, ErrRefreshTokenExpired
	case err != nil:
		return nil, ErrUnauthorized
	}

	u, err := s.activeUser(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}
	if u.AuthReset {
		return nil, ErrAuthReset
	}
	if u.IssuedBeforeReset(claims.IssuedAtTime()) {
		return nil, ErrUnauthorized
	}

	rec, err := call(ctx, s, "sessions.find", func(ctx context.Context) (*domain.RefreshTokenRecord, error) {
		return s.sessions.Find(ctx, u.ID, claims.RecordID)
	})
	if errors.Is(err, domain.ErrNotFound) {
		return nil, s.replayDetected(ctx, u.ID, claims.RecordID)
	}
	if err != nil {
		return nil, err
	}

	if rec.IsExpired(s.now()) {
		err := exec(ctx, s, "sessions.remove", func(ctx context.Context) error {
			return s.sessions.Remove(ctx, u.ID, rec.ID)
		})
		if err != nil {
			return nil, err
		}
		return nil, ErrRefreshTokenExpired
	}

	next := s.newRecord(u.ID)
	pair, err := s.issue(ctx, u, next.ID)
	if err != nil {
		return nil, err
	}
	err = exec(ctx, s, "sessions.rotate", func(ctx context.Context) error {
		return s.sessions.Rotate(ctx, u.ID, rec.ID, next)
	})
	if errors.Is(err, domain.ErrNotFound) {
		// lost the race against a concurrent redemption of the same record
		return nil, s.replayDetected(ctx, u.ID, rec.ID)
	}
	if err != nil {
		return nil, err
	}
	return &AuthResult{User: u.Public(), Tokens: pair}, nil
}

func (s *Service) replayDetected(ctx context.Context, userID int64, recordID string) error {
	s.log.WarnContext(ctx, "refresh token reuse detected", "user_id", userID, "record_id", recordID)

	at := s.now()
	err := exec(ctx, s, "sessions.reset", func(ctx context.Context) error {
		return s.sessions.Reset(ctx, userID, at)
	})
	if errors.Is(err, domain.ErrNotFound) {
		return ErrUnauthorized
	}
	if err != nil {
		return err
	}
	return ErrRefreshTokenReused
}

func (s *Service) dropRecord(ctx context.Context, userID int64, recordID string) {
	err := exec(ctx, s, "sessions.remove", func(ctx context.Context) error {
		return s.sessions.Remove(ctx, userID, recordID)
	})
	if err != nil {
		s.log.WarnContext(ctx, "expired record not removed", "user_id", userID, "record_id", recordID, "error", err)
	}
}

// Logout accepts either token. A refresh token ends its own session (or all
// of them with LogoutAllSessions); an access token ends every session.
func (s *Service) Logout(ctx context.Context, token string) error {
	if token == "" {
		return ErrUnauthorized
	}

	claims, err := s.tokens.Verify(token, jwt.PurposeRefresh)
	if errors.Is(err, jwt.ErrWrongPurpose) {
		claims, err = s.tokens.Verify(token, jwt.PurposeAccess)
		if err != nil {
			return ErrUnauthorized
		}
		return s.removeAll(ctx, claims.UserID)
	}
	if err != nil && !(errors.Is(err, jwt.ErrTokenExpired) && claims != nil) {
		return ErrUnauthorized
	}

	if s.cfg.LogoutAllSessions {
		return s.removeAll(ctx, claims.UserID)
	}
	return exec(ctx, s, "sessions.remove", func(ctx context.Context) error {
		return s.sessions.Remove(ctx, claims.UserID, claims.RecordID)
	})
}

func (s *Service) removeAll(ctx context.Context, userID int64) error {
	_, err := call(ctx, s, "sessions.remove_all", func(ctx context.Context) (int64, error) {
		return s.sessions.RemoveAll(ctx, userID)
	})
	return err
}

// EmailExists reports whether a live account uses email. Inactive accounts
// count as existing. clientKey identifies the caller for the limiter.
func (s *Service) EmailExists(ctx context.Context, email, clientKey string) (bool, error) {
	email = normalizeEmail(email)
	if email == "" {
		return false, missingParam("email")
	}
	if !validator.IsEmail(email) {
		return false, invalidFormat("email")
	}

	if s.limiter != nil {
		allowed, err := s.limiter.Allow(ctx, "email_check:"+clientKey)
		switch {
		case err != nil:
			s.log.WarnContext(ctx, "email check limiter unavailable", "error", err)
		case !allowed:
			return false, ErrTooManyRequests
		}
	}

	return call(ctx, s, "users.exists_by_email", func(ctx context.Context) (bool, error) {
		return s.users.ExistsByEmail(ctx, email)
	})
}

// RevokeSessions is the forced global logout: every record of the user is
// dropped, the reset flag is left alone.
func (s *Service) RevokeSessions(ctx context.Context, userID int64) (int64, error) {
	if _, err := s.GetProfile(ctx, userID); err != nil {
		return 0, err
	}
	n, err := call(ctx, s, "sessions.remove_all", func(ctx context.Context) (int64, error) {
		return s.sessions.RemoveAll(ctx, userID)
	})
	if err != nil {
		return 0, err
	}
	s.log.InfoContext(ctx, "sessions revoked", "user_id", userID, "count", n)
	return n, nil
}

func (s *Service) GetProfile(ctx context.Context, userID int64) (*domain.PublicProfile, error) {
	u, err := call(ctx, s, "users.get_by_id", func(ctx context.Context) (*domain.User, error) {
		return s.users.GetByID(ctx, userID)
	})
	if errors.Is(err, domain.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	p := u.Public()
	return &p, nil
}

func (s *Service) activeUser(ctx context.Context, id int64) (*domain.User, error) {
	u, err := call(ctx, s, "users.get_by_id", func(ctx context.Context) (*domain.User, error) {
		return s.users.GetByID(ctx, id)
	})
	if errors.Is(err, domain.ErrNotFound) {
		return nil, ErrUnauthorized
	}
	if err != nil {
		return nil, err
	}
	if !u.Active {
		return nil, ErrUnauthorized
	}
	return u, nil
}

// startSession appends a fresh record (clearing the reset flag) and issues
// the token pair bound to it.
func (s *Service) startSession(ctx context.Context, u *domain.User) (*AuthResult, error) {
	rec := s.newRecord(u.ID)
	pair, err := s.issue(ctx, u, rec.ID)
	if err != nil {
		return nil, err
	}

	err = exec(ctx, s, "sessions.start", func(ctx context.Context) error {
		return s.sessions.StartSession(ctx, u.ID, rec, s.cfg.MaxSessions, s.now().Add(-s.resetLockout()))
	})
	if errors.Is(err, domain.ErrNotFound) {
		return nil, ErrUnauthorized
	}
	if errors.Is(err, domain.ErrResetLocked) {
		s.log.WarnContext(ctx, "login refused: account reset", "user_id", u.ID)
		return nil, ErrAuthReset
	}
	if err != nil {
		return nil, err
	}
	u.AuthReset = false
	return &AuthResult{User: u.Public(), Tokens: pair}, nil
}

func (s *Service) newRecord(userID int64) *domain.RefreshTokenRecord {
	now := s.now()
	return &domain.RefreshTokenRecord{
		ID:        s.newID(),
		UserID:    userID,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.tokens.TTL(jwt.PurposeRefresh)),
	}
}

func (s *Service) issue(ctx context.Context, u *domain.User, recordID string) (TokenPair, error) {
	access, err := s.tokens.IssueAccess(u.ID, string(u.Role))
	if err != nil {
		return TokenPair{}, s.dependencyFailure(ctx, "tokens.sign_access", err)
	}
	refresh, err := s.tokens.IssueRefresh(u.ID, recordID)
	if err != nil {
		return TokenPair{}, s.dependencyFailure(ctx, "tokens.sign_refresh", err)
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (s *Service) comparePassword(ctx context.Context, digest, plain string) (bool, error) {
	return call(ctx, s, "password.compare", func(ctx context.Context) (bool, error) {
		return s.hasher.Compare(ctx, digest, plain)
	})
}

func (s *Service) dependencyFailure(ctx context.Context, op string, err error) error {
	dep := dependency(op, err)
	s.log.ErrorContext(ctx, "dependency failure", "op", dep.Op, "retryable", dep.Retryable, "error", dep.Err)
	return dep
}

// call runs fn under the operation timeout. Persistence sentinels pass
// through unchanged; anything else becomes a *DependencyError.
func call[T any](ctx context.Context, s *Service, op string, fn func(context.Context) (T, error)) (T, error) {
	return callWithin(ctx, s, op, s.cfg.OperationTimeout, fn)
}

func callWithin[T any](ctx context.Context, s *Service, op string, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	v, err := fn(ctx)
	if err == nil || isStoreSentinel(err) {
		return v, err
	}
	return v, s.dependencyFailure(ctx, op, err)
}

func exec(ctx context.Context, s *Service, op string, fn func(context.Context) error) error {
	_, err := call(ctx, s, op, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

func isStoreSentinel(err error) bool {
	return errors.Is(err, domain.ErrNotFound) ||
		errors.Is(err, domain.ErrDuplicateEmail) ||
		errors.Is(err, domain.ErrDuplicateNickname) ||
		errors.Is(err, domain.ErrDuplicateAccount) ||
		errors.Is(err, domain.ErrResetLocked)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
