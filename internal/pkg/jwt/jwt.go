package jwt

import (
	"errors"
	"fmt"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

// Purpose is signed into every token so an access token is never accepted
// where a refresh token is required, and vice versa.
type Purpose string

const (
	PurposeAccess  Purpose = "access"
	PurposeRefresh Purpose = "refresh"
)

var (
	ErrMisconfigured  = errors.New("jwt: signing key misconfigured")
	ErrTokenExpired   = errors.New("jwt: token expired")
	ErrTokenMalformed = errors.New("jwt: token malformed")
	ErrTokenSignature = errors.New("jwt: bad signature")
	ErrWrongPurpose   = errors.New("jwt: wrong token purpose")
)

const minSecretLen = 16

type Config struct {
	Secret     string
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

type Service struct {
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

type Claims struct {
	UserID   int64   `json:"uid"`
	RecordID string  `json:"rid,omitempty"`
	Purpose  Purpose `json:"pur"`
	Role     string  `json:"role,omitempty"`
	jwtlib.RegisteredClaims
}

// IssuedAtTime returns the iat claim or the zero time.
func (c *Claims) IssuedAtTime() time.Time {
	if c.IssuedAt == nil {
		return time.Time{}
	}
	return c.IssuedAt.Time
}

// New fails when the key or a TTL is unusable; callers treat that as fatal.
func New(cfg Config) (*Service, error) {
	if len(cfg.Secret) < minSecretLen {
		return nil, fmt.Errorf("%w: secret shorter than %d bytes", ErrMisconfigured, minSecretLen)
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, fmt.Errorf("%w: ttl must be positive", ErrMisconfigured)
	}
	return &Service{
		secret:     []byte(cfg.Secret),
		issuer:     cfg.Issuer,
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		now:        time.Now,
	}, nil
}

// WithClock replaces the time source used for issuing and verifying.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) TTL(p Purpose) time.Duration {
	if p == PurposeRefresh {
		return s.refreshTTL
	}
	return s.accessTTL
}

func (s *Service) IssueAccess(userID int64, role string) (string, error) {
	return s.sign(Claims{UserID: userID, Purpose: PurposeAccess, Role: role})
}

// IssueRefresh binds the token to the session record recordID.
func (s *Service) IssueRefresh(userID int64, recordID string) (string, error) {
	return s.sign(Claims{UserID: userID, RecordID: recordID, Purpose: PurposeRefresh})
}

func (s *Service) sign(claims Claims) (string, error) {
	now := s.now()
	claims.RegisteredClaims = jwtlib.RegisteredClaims{
		Issuer:    s.issuer,
		Subject:   fmt.Sprint(claims.UserID),
		IssuedAt:  jwtlib.NewNumericDate(now),
		ExpiresAt: jwtlib.NewNumericDate(now.Add(s.TTL(claims.Purpose))),
	}
	if claims.Purpose == PurposeRefresh {
		claims.ID = claims.RecordID
	}

	signed, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMisconfigured, err)
	}
	return signed, nil
}

// Verify checks signature, expiry and purpose. Expiry is enforced from
// iat plus the TTL of the expected purpose, whatever exp the token carries.
// On ErrTokenExpired the returned claims are authentic and may be used to
// clean up server-side state.
func (s *Service) Verify(token string, want Purpose) (*Claims, error) {
	opts := []jwtlib.ParserOption{
		jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Alg()}),
		jwtlib.WithTimeFunc(s.now),
		jwtlib.WithIssuedAt(),
		jwtlib.WithExpirationRequired(),
	}
	if s.issuer != "" {
		opts = append(opts, jwtlib.WithIssuer(s.issuer))
	}

	claims := &Claims{}
	_, err := jwtlib.ParseWithClaims(token, claims, func(*jwtlib.Token) (any, error) {
		return s.secret, nil
	}, opts...)

	switch {
	case err == nil:
	case errors.Is(err, jwtlib.ErrTokenExpired):
		if claims.Purpose != want {
			return nil, ErrWrongPurpose
		}
		return claims, ErrTokenExpired
	case errors.Is(err, jwtlib.ErrTokenSignatureInvalid):
		return nil, ErrTokenSignature
	default:
		return nil, ErrTokenMalformed
	}

	if claims.Purpose != want {
		return nil, ErrWrongPurpose
	}
	if claims.UserID <= 0 || claims.IssuedAt == nil {
		return nil, ErrTokenMalformed
	}
	if want == PurposeRefresh && claims.RecordID == "" {
		return nil, ErrTokenMalformed
	}
	if !s.now().Before(claims.IssuedAt.Add(s.TTL(want))) {
		return claims, ErrTokenExpired
	}
	return claims, nil
}
