package auth

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"authgate/internal/database"
	"authgate/internal/domain"
	"authgate/internal/pkg/jwt"
	"authgate/internal/pkg/password"
	"authgate/internal/repository"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const (
	testSecret   = "test-secret-0123456789-abcdefghij"
	testPassword = "testtest"
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type mockProvisioner struct {
	mock.Mock
}

func (m *mockProvisioner) CreateAccount(ctx context.Context, account string) (domain.AccountKeys, error) {
	args := m.Called(ctx, account)
	return args.Get(0).(domain.AccountKeys), args.Error(1)
}

type mockLimiter struct {
	mock.Mock
}

func (m *mockLimiter) Allow(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

type fixture struct {
	svc      *Service
	users    *repository.UserRepository
	sessions *repository.RefreshTokenRepository
	codec    *jwt.Service
	hasher   *password.Hasher
	ledger   *mockProvisioner
	clock    *testClock
}

func newFixture(t *testing.T, tune ...func(*Config)) *fixture {
	t.Helper()

	db, err := database.Connect(":memory:")
	require.NoError(t, err)
	require.NoError(t, repository.AutoMigrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	clock := &testClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	codec, err := jwt.New(jwt.Config{
		Secret:     testSecret,
		Issuer:     "authgate-test",
		AccessTTL:  time.Hour,
		RefreshTTL: 7 * 24 * time.Hour,
	})
	require.NoError(t, err)
	codec.WithClock(clock.Now)

	hasher, err := password.NewHasher(bcrypt.MinCost)
	require.NoError(t, err)

	cfg := Config{
		OperationTimeout: 5 * time.Second,
		ResetLockout:     15 * time.Minute,
		SupportedLangs:   []string{"en", "it"},
		DefaultLang:      "en",
	}
	for _, fn := range tune {
		fn(&cfg)
	}

	users := repository.NewUserRepository(db)
	sessions := repository.NewRefreshTokenRepository(db)
	ledger := &mockProvisioner{}
	svc := NewService(users, sessions, codec, hasher, ledger, cfg).
		WithClock(clock.Now).
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))

	return &fixture{
		svc:      svc,
		users:    users,
		sessions: sessions,
		codec:    codec,
		hasher:   hasher,
		ledger:   ledger,
		clock:    clock,
	}
}

// seedUser mirrors the fixture user of the HTTP scenarios.
func (f *fixture) seedUser(t *testing.T, active, deleted bool) *domain.User {
	t.Helper()
	ctx := context.Background()

	digest, err := f.hasher.Hash(ctx, testPassword)
	require.NoError(t, err)
	u := &domain.User{
		Email:        "test@meblabs.com",
		PasswordHash: digest,
		Name:         "John",
		Lastname:     "Doe",
		Lang:         "en",
		Active:       active,
	}
	require.NoError(t, f.users.Create(ctx, u, nil))
	if deleted {
		require.NoError(t, f.users.SoftDelete(ctx, u.ID))
	}
	return u
}

func (f *fixture) records(t *testing.T, userID int64) []domain.RefreshTokenRecord {
	t.Helper()
	recs, err := f.sessions.List(context.Background(), userID)
	require.NoError(t, err)
	return recs
}

func (f *fixture) reload(t *testing.T, userID int64) *domain.User {
	t.Helper()
	u, err := f.users.GetByID(context.Background(), userID)
	require.NoError(t, err)
	return u
}
