package auth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"authgate/internal/domain"
	"authgate/internal/pkg/jwt"
	"authgate/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestLogin_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("missing credentials", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.Login(ctx, "", "")
		assert.ErrorIs(t, err, ErrMissingCredentials)
		_, err = f.svc.Login(ctx, "test@meblabs.com", "")
		assert.ErrorIs(t, err, ErrMissingCredentials)
	})

	t.Run("unknown email", func(t *testing.T) {
		f := newFixture(t)
		f.seedUser(t, true, false)
		_, err := f.svc.Login(ctx, "wrong@meblabs.com", testPassword)
		assert.ErrorIs(t, err, ErrInvalidEmail)
	})

	t.Run("wrong password", func(t *testing.T) {
		f := newFixture(t)
		f.seedUser(t, true, false)
		_, err := f.svc.Login(ctx, "test@meblabs.com", "wrongpassword")
		assert.ErrorIs(t, err, ErrInvalidPassword)
	})

	t.Run("inactive account", func(t *testing.T) {
		f := newFixture(t)
		f.seedUser(t, false, false)
		_, err := f.svc.Login(ctx, "test@meblabs.com", testPassword)
		assert.ErrorIs(t, err, ErrInactiveAccount)
	})

	t.Run("deleted account", func(t *testing.T) {
		f := newFixture(t)
		f.seedUser(t, true, true)
		_, err := f.svc.Login(ctx, "test@meblabs.com", testPassword)
		assert.ErrorIs(t, err, ErrDeletedAccount)

		// without the password a deleted account looks like an unknown one
		_, err = f.svc.Login(ctx, "test@meblabs.com", "guess")
		assert.ErrorIs(t, err, ErrInvalidEmail)
	})
}

func TestLogin_StartsOneSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.seedUser(t, true, false)

	res, err := f.svc.Login(ctx, "  TEST@meblabs.com ", testPassword)
	require.NoError(t, err)
	assert.NotEmpty(t, res.Tokens.AccessToken)
	assert.NotEmpty(t, res.Tokens.RefreshToken)
	assert.Equal(t, u.ID, res.User.ID)
	assert.Equal(t, "John", res.User.Name)
	assert.Len(t, f.records(t, u.ID), 1)

	_, err = f.svc.Login(ctx, "test@meblabs.com", testPassword)
	require.NoError(t, err)
	assert.Len(t, f.records(t, u.ID), 2, "each login adds a record")

	claims, err := f.codec.Verify(res.Tokens.RefreshToken, jwt.PurposeRefresh)
	require.NoError(t, err)
	found := false
	for _, rec := range f.records(t, u.ID) {
		found = found || rec.ID == claims.RecordID
	}
	assert.True(t, found, "refresh token is bound to a stored record")
}

func TestLogin_MaxSessionsDropsOldest(t *testing.T) {
	f := newFixture(t, func(c *Config) { c.MaxSessions = 2 })
	ctx := context.Background()
	u := f.seedUser(t, true, false)

	first, err := f.svc.Login(ctx, "test@meblabs.com", testPassword)
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		f.clock.Advance(time.Minute)
		_, err := f.svc.Login(ctx, "test@meblabs.com", testPassword)
		require.NoError(t, err)
	}
	assert.Len(t, f.records(t, u.ID), 2)

	_, err = f.svc.Refresh(ctx, first.Tokens.RefreshToken)
	assert.ErrorIs(t, err, ErrRefreshTokenReused, "a pruned record counts as redeemed")
}

func TestCheck(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.seedUser(t, true, false)

	res, err := f.svc.Login(ctx, "test@meblabs.com", testPassword)
	require.NoError(t, err)

	id, err := f.svc.Check(ctx, res.Tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, u.ID, id.UserID)
	assert.Equal(t, domain.RoleUser, id.Role)

	_, err = f.svc.Check(ctx, res.Tokens.RefreshToken)
	assert.ErrorIs(t, err, ErrUnauthorized, "refresh token is not an access token")

	_, err = f.svc.Check(ctx, "garbage")
	assert.ErrorIs(t, err, ErrUnauthorized)

	ghost, err := f.codec.IssueAccess(9999, "user")
	require.NoError(t, err)
	_, err = f.svc.Check(ctx, ghost)
	assert.ErrorIs(t, err, ErrUnauthorized)

	require.NoError(t, f.users.SetActive(ctx, u.ID, false))
	_, err = f.svc.Check(ctx, res.Tokens.AccessToken)
	assert.ErrorIs(t, err, ErrUnauthorized, "inactive user")

	require.NoError(t, f.users.SetActive(ctx, u.ID, true))
	require.NoError(t, f.users.SoftDelete(ctx, u.ID))
	_, err = f.svc.Check(ctx, res.Tokens.AccessToken)
	assert.ErrorIs(t, err, ErrUnauthorized, "deleted user")
}

func TestCheck_ExpiredAccessToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedUser(t, true, false)

	res, err := f.svc.Login(ctx, "test@meblabs.com", testPassword)
	require.NoError(t, err)

	f.clock.Advance(time.Hour)
	_, err = f.svc.Check(ctx, res.Tokens.AccessToken)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestRefresh_Rotates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.seedUser(t, true, false)

	login, err := f.svc.Login(ctx, "test@meblabs.com", testPassword)
	require.NoError(t, err)
	before := f.records(t, u.ID)
	require.Len(t, before, 1)

	f.clock.Advance(time.Second)
	res, err := f.svc.Refresh(ctx, login.Tokens.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, login.Tokens.RefreshToken, res.Tokens.RefreshToken)

	after := f.records(t, u.ID)
	require.Len(t, after, 1)
	assert.NotEqual(t, before[0].ID, after[0].ID, "old record deleted, new one stored")

	_, err = f.svc.Check(ctx, res.Tokens.AccessToken)
	assert.NoError(t, err)
}

func TestRefresh_ExpiredRecord(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.seedUser(t, true, false)

	login, err := f.svc.Login(ctx, "test@meblabs.com", testPassword)
	require.NoError(t, err)
	rec := f.records(t, u.ID)[0]
	require.NoError(t, f.sessions.SetExpiry(ctx, u.ID, rec.ID, f.clock.Now().Add(-time.Second)))

	_, err = f.svc.Refresh(ctx, login.Tokens.RefreshToken)
	assert.ErrorIs(t, err, ErrRefreshTokenExpired)
	assert.Empty(t, f.records(t, u.ID))
	assert.False(t, f.reload(t, u.ID).AuthReset, "expiry is not a replay")
}

func TestRefresh_ExpiredToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.seedUser(t, true, false)

	login, err := f.svc.Login(ctx, "test@meblabs.com", testPassword)
	require.NoError(t, err)

	f.clock.Advance(7*24*time.Hour + time.Second)
	_, err = f.svc.Refresh(ctx, login.Tokens.RefreshToken)
	assert.ErrorIs(t, err, ErrRefreshTokenExpired)
	assert.Empty(t, f.records(t, u.ID))
}

func TestRefresh_InvalidTokens(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedUser(t, true, false)

	login, err := f.svc.Login(ctx, "test@meblabs.com", testPassword)
	require.NoError(t, err)

	_, err = f.svc.Refresh(ctx, login.Tokens.AccessToken)
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = f.svc.Refresh(ctx, "")
	assert.ErrorIs(t, err, ErrUnauthorized)

	ghost, err := f.codec.IssueRefresh(4242, "no-such-record")
	require.NoError(t, err)
	_, err = f.svc.Refresh(ctx, ghost)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestRefresh_ReuseResetsAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.seedUser(t, true, false)

	login, err := f.svc.Login(ctx, "test@meblabs.com", testPassword)
	require.NoError(t, err)

	_, err = f.svc.Refresh(ctx, login.Tokens.RefreshToken)
	require.NoError(t, err)

	_, err = f.svc.Refresh(ctx, login.Tokens.RefreshToken)
	assert.ErrorIs(t, err, ErrRefreshTokenReused)
	assert.Equal(t, KindReplay, KindOf(err))

	reset := f.reload(t, u.ID)
	assert.True(t, reset.AuthReset)
	assert.Empty(t, f.records(t, u.ID))

	_, err = f.svc.Check(ctx, login.Tokens.AccessToken)
	assert.ErrorIs(t, err, ErrAuthReset, "unexpired access token is dead after reset")

	_, err = f.svc.Login(ctx, "test@meblabs.com", testPassword)
	assert.ErrorIs(t, err, ErrAuthReset, "login refused during lockout")

	_, err = f.svc.Refresh(ctx, login.Tokens.RefreshToken)
	assert.ErrorIs(t, err, ErrAuthReset, "reset wins before record lookup")
}

func TestLogin_ClearsResetAfterLockout(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.seedUser(t, true, false)

	stale, err := f.svc.Login(ctx, "test@meblabs.com", testPassword)
	require.NoError(t, err)
	require.NoError(t, f.sessions.Reset(ctx, u.ID, f.clock.Now()))

	f.clock.Advance(15 * time.Minute)
	fresh, err := f.svc.Login(ctx, "test@meblabs.com", testPassword)
	require.NoError(t, err)
	assert.False(t, f.reload(t, u.ID).AuthReset)

	_, err = f.svc.Check(ctx, fresh.Tokens.AccessToken)
	assert.NoError(t, err)
	_, err = f.svc.Refresh(ctx, fresh.Tokens.RefreshToken)
	assert.NoError(t, err)

	// tokens from before the reset stay dead once the flag is cleared
	_, err = f.svc.Check(ctx, stale.Tokens.AccessToken)
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = f.svc.Refresh(ctx, stale.Tokens.RefreshToken)
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.False(t, f.reload(t, u.ID).AuthReset, "a stale token does not trigger another reset")
}

func TestLogin_ZeroLockoutStillOutlivesResetSecond(t *testing.T) {
	f := newFixture(t, func(c *Config) { c.ResetLockout = 0 })
	ctx := context.Background()
	u := f.seedUser(t, true, false)

	require.NoError(t, f.sessions.Reset(ctx, u.ID, f.clock.Now()))
	_, err := f.svc.Login(ctx, "test@meblabs.com", testPassword)
	assert.ErrorIs(t, err, ErrAuthReset)

	f.clock.Advance(time.Second)
	res, err := f.svc.Login(ctx, "test@meblabs.com", testPassword)
	require.NoError(t, err)
	_, err = f.svc.Check(ctx, res.Tokens.AccessToken)
	assert.NoError(t, err)
}

// resetOnStart raises a reset right before the session is stored, as a
// replay on another device committing between Login's read and its write.
type resetOnStart struct {
	*repository.RefreshTokenRepository
	at func() time.Time
}

func (r resetOnStart) StartSession(ctx context.Context, userID int64, rec *domain.RefreshTokenRecord, maxSessions int, cutoff time.Time) error {
	if err := r.Reset(ctx, userID, r.at()); err != nil {
		return err
	}
	return r.RefreshTokenRepository.StartSession(ctx, userID, rec, maxSessions, cutoff)
}

func TestLogin_RacingResetIsNotCleared(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.seedUser(t, true, false)

	svc := NewService(f.users, resetOnStart{f.sessions, f.clock.Now}, f.codec, f.hasher, f.ledger, Config{
		ResetLockout: 15 * time.Minute,
	}).WithClock(f.clock.Now).WithLogger(f.svc.log)

	_, err := svc.Login(ctx, "test@meblabs.com", testPassword)
	assert.ErrorIs(t, err, ErrAuthReset)

	got := f.reload(t, u.ID)
	assert.True(t, got.AuthReset)
	assert.Empty(t, f.records(t, u.ID))
}

func TestRefresh_ConcurrentRedemptionHasSingleWinner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.seedUser(t, true, false)

	login, err := f.svc.Login(ctx, "test@meblabs.com", testPassword)
	require.NoError(t, err)

	const n = 10
	var wg sync.WaitGroup
	errs := make(chan error, n)
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := f.svc.Refresh(ctx, login.Tokens.RefreshToken)
			errs <- err
		}()
	}
	close(start)
	wg.Wait()
	close(errs)

	wins := 0
	for err := range errs {
		if err == nil {
			wins++
			continue
		}
		if !errors.Is(err, ErrRefreshTokenReused) && !errors.Is(err, ErrAuthReset) {
			t.Errorf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, wins)

	after := f.reload(t, u.ID)
	assert.True(t, after.AuthReset)
	assert.Empty(t, f.records(t, u.ID))
}

func TestRegister(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.ledger.On("CreateAccount", mock.Anything, "johndoe12345").
		Return(domain.AccountKeys{Account: "johndoe12345", PublicKey: "PUB_ED25519_abc"}, nil).Once()

	res, err := f.svc.Register(ctx, RegisterRequest{
		Email:    "New@Example.com",
		Password: "secret1",
		Nickname: "Johnny",
		Account:  "johndoe12345",
		Name:     "John",
		Lang:     "it",
	})
	require.NoError(t, err)
	f.ledger.AssertExpectations(t)

	assert.Equal(t, "new@example.com", res.User.Email)
	assert.Equal(t, "it", res.User.Lang)
	assert.Equal(t, "PUB_ED25519_abc", res.User.AccountPublicKey)
	assert.Len(t, f.records(t, res.User.ID), 1)

	stored := f.reload(t, res.User.ID)
	assert.True(t, stored.Active)
	assert.Equal(t, "PUB_ED25519_abc", stored.AccountPublicKey)

	_, err = f.svc.Check(ctx, res.Tokens.AccessToken)
	assert.NoError(t, err)
}

func TestRegister_LangFallback(t *testing.T) {
	f := newFixture(t)
	res, err := f.svc.Register(context.Background(), RegisterRequest{
		Email: "a@example.com", Password: "secret1", Lang: "xx",
	})
	require.NoError(t, err)
	assert.Equal(t, "en", res.User.Lang)
	f.ledger.AssertNotCalled(t, "CreateAccount", mock.Anything, mock.Anything)
}

func TestRegister_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cases := []struct {
		name  string
		req   RegisterRequest
		code  int
		field string
	}{
		{"missing email", RegisterRequest{Password: "secret1"}, CodeMissingRequiredParameter, "email"},
		{"missing password", RegisterRequest{Email: "a@example.com"}, CodeMissingRequiredParameter, "password"},
		{"bad email", RegisterRequest{Email: "not-an-email", Password: "secret1"}, CodeInvalidFormat, "email"},
		{"bad account", RegisterRequest{Email: "a@example.com", Password: "secret1", Account: "Bad_Account"}, CodeInvalidFormat, "account"},
		{"short password", RegisterRequest{Email: "a@example.com", Password: "123"}, CodeInvalidFormat, "password"},
		{"password over 72 bytes", RegisterRequest{Email: "x@example.com", Password: strings.Repeat("é", 40)}, CodeInvalidFormat, "password"},
		{"missing reported before format", RegisterRequest{Email: "not-an-email"}, CodeMissingRequiredParameter, "password"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Register(ctx, tc.req)
			var verr *ValidationError
			require.True(t, errors.As(err, &verr), "got %v", err)
			assert.Equal(t, tc.code, verr.Code)
			assert.Equal(t, tc.field, verr.Field)
		})
	}
	f.ledger.AssertNotCalled(t, "CreateAccount", mock.Anything, mock.Anything)
}

func TestRegister_ConflictPriority(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.ledger.On("CreateAccount", mock.Anything, "taken1").
		Return(domain.AccountKeys{Account: "taken1", PublicKey: "PUB"}, nil).Once()
	_, err := f.svc.Register(ctx, RegisterRequest{
		Email: "first@example.com", Password: "secret1", Nickname: "Taken", Account: "taken1",
	})
	require.NoError(t, err)

	_, err = f.svc.Register(ctx, RegisterRequest{
		Email: "first@example.com", Password: "secret1", Nickname: "Other", Account: "other1",
	})
	assert.ErrorIs(t, err, ErrEmailExists, "email wins even if nickname and account differ")

	_, err = f.svc.Register(ctx, RegisterRequest{
		Email: "second@example.com", Password: "secret1", Nickname: "tAKEN", Account: "taken1",
	})
	assert.ErrorIs(t, err, ErrNicknameExists, "nickname is checked before account")

	_, err = f.svc.Register(ctx, RegisterRequest{
		Email: "second@example.com", Password: "secret1", Account: "taken1",
	})
	assert.ErrorIs(t, err, ErrAccountExists)
	f.ledger.AssertExpectations(t)
}

func TestRegister_DeletedEmailIsFree(t *testing.T) {
	f := newFixture(t)
	old := f.seedUser(t, true, true)

	res, err := f.svc.Register(context.Background(), RegisterRequest{
		Email: "test@meblabs.com", Password: "secret1",
	})
	require.NoError(t, err)
	assert.NotEqual(t, old.ID, res.User.ID)
}

func TestRegister_ProvisioningFailureCreatesNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.ledger.On("CreateAccount", mock.Anything, "ledgerdown1").
		Return(domain.AccountKeys{}, errors.New("ledger said no")).Once()

	_, err := f.svc.Register(ctx, RegisterRequest{
		Email: "x@example.com", Password: "secret1", Account: "ledgerdown1",
	})
	var dep *DependencyError
	require.True(t, errors.As(err, &dep))
	assert.Equal(t, "ledger.create_account", dep.Op)
	assert.False(t, dep.Retryable)

	n, err := f.users.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	exists, err := f.svc.EmailExists(ctx, "x@example.com", "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestLogout(t *testing.T) {
	ctx := context.Background()

	t.Run("refresh token ends its own session", func(t *testing.T) {
		f := newFixture(t)
		u := f.seedUser(t, true, false)
		a, err := f.svc.Login(ctx, "test@meblabs.com", testPassword)
		require.NoError(t, err)
		_, err = f.svc.Login(ctx, "test@meblabs.com", testPassword)
		require.NoError(t, err)

		require.NoError(t, f.svc.Logout(ctx, a.Tokens.RefreshToken))
		assert.Len(t, f.records(t, u.ID), 1)
		assert.False(t, f.reload(t, u.ID).AuthReset)

		// the logged-out token is now a dead token
		_, err = f.svc.Refresh(ctx, a.Tokens.RefreshToken)
		assert.ErrorIs(t, err, ErrRefreshTokenReused)
	})

	t.Run("access token ends every session", func(t *testing.T) {
		f := newFixture(t)
		u := f.seedUser(t, true, false)
		a, err := f.svc.Login(ctx, "test@meblabs.com", testPassword)
		require.NoError(t, err)
		_, err = f.svc.Login(ctx, "test@meblabs.com", testPassword)
		require.NoError(t, err)

		require.NoError(t, f.svc.Logout(ctx, a.Tokens.AccessToken))
		assert.Empty(t, f.records(t, u.ID))
		assert.False(t, f.reload(t, u.ID).AuthReset)
	})

	t.Run("all sessions policy", func(t *testing.T) {
		f := newFixture(t, func(c *Config) { c.LogoutAllSessions = true })
		u := f.seedUser(t, true, false)
		a, err := f.svc.Login(ctx, "test@meblabs.com", testPassword)
		require.NoError(t, err)
		_, err = f.svc.Login(ctx, "test@meblabs.com", testPassword)
		require.NoError(t, err)

		require.NoError(t, f.svc.Logout(ctx, a.Tokens.RefreshToken))
		assert.Empty(t, f.records(t, u.ID))
	})

	t.Run("no token", func(t *testing.T) {
		f := newFixture(t)
		assert.ErrorIs(t, f.svc.Logout(ctx, ""), ErrUnauthorized)
		assert.ErrorIs(t, f.svc.Logout(ctx, "junk"), ErrUnauthorized)
	})
}

func TestEmailExists(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedUser(t, true, false)

	ok, err := f.svc.EmailExists(ctx, "TEST@meblabs.com", "ip")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = f.svc.EmailExists(ctx, "nobody@meblabs.com", "ip")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = f.svc.EmailExists(ctx, "nope", "ip")
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, CodeInvalidFormat, verr.Code)
}

func TestEmailExists_RateLimited(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	limiter := &mockLimiter{}
	f.svc.WithRateLimiter(limiter)

	limiter.On("Allow", mock.Anything, "email_check:1.2.3.4").Return(false, nil).Once()
	_, err := f.svc.EmailExists(ctx, "a@example.com", "1.2.3.4")
	assert.ErrorIs(t, err, ErrTooManyRequests)

	limiter.On("Allow", mock.Anything, "email_check:1.2.3.4").Return(false, errors.New("redis down")).Once()
	ok, err := f.svc.EmailExists(ctx, "a@example.com", "1.2.3.4")
	require.NoError(t, err, "limiter outage fails open")
	assert.False(t, ok)

	limiter.AssertExpectations(t)
}

func TestRevokeSessions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.seedUser(t, true, false)

	a, err := f.svc.Login(ctx, "test@meblabs.com", testPassword)
	require.NoError(t, err)
	_, err = f.svc.Login(ctx, "test@meblabs.com", testPassword)
	require.NoError(t, err)

	n, err := f.svc.RevokeSessions(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Empty(t, f.records(t, u.ID))
	assert.False(t, f.reload(t, u.ID).AuthReset, "forced logout is not a reset")

	_, err = f.svc.Refresh(ctx, a.Tokens.RefreshToken)
	assert.ErrorIs(t, err, ErrRefreshTokenReused)

	_, err = f.svc.RevokeSessions(ctx, 777)
	assert.ErrorIs(t, err, ErrNotFound)
}

type blockingHasher struct{}

func (blockingHasher) Hash(ctx context.Context, _ string) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func (blockingHasher) Compare(ctx context.Context, _, _ string) (bool, error) {
	<-ctx.Done()
	return false, ctx.Err()
}

func TestOperationTimeoutIsRetryable(t *testing.T) {
	f := newFixture(t)
	f.seedUser(t, true, false)
	f.svc.hasher = blockingHasher{}
	f.svc.cfg.OperationTimeout = 20 * time.Millisecond

	_, err := f.svc.Login(context.Background(), "test@meblabs.com", testPassword)
	var dep *DependencyError
	require.True(t, errors.As(err, &dep))
	assert.Equal(t, "password.compare", dep.Op)
	assert.True(t, dep.Retryable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
