package auth

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// TransportMode is a deployment choice: every request of a running server
// carries its tokens the same way.
type TransportMode string

const (
	TransportHeader TransportMode = "header"
	TransportCookie TransportMode = "cookie"
)

type CookieOptions struct {
	AccessName  string
	RefreshName string
	Path        string
	Domain      string
	Secure      bool
	SameSite    http.SameSite
}

// Transport moves tokens between HTTP requests/responses and the state
// machine. It knows nothing about what the tokens mean.
type Transport struct {
	mode       TransportMode
	cookies    CookieOptions
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func NewTransport(mode TransportMode, cookies CookieOptions, accessTTL, refreshTTL time.Duration) *Transport {
	if cookies.AccessName == "" {
		cookies.AccessName = "token"
	}
	if cookies.RefreshName == "" {
		cookies.RefreshName = "rt"
	}
	if cookies.Path == "" {
		cookies.Path = "/"
	}
	if mode != TransportCookie {
		mode = TransportHeader
	}
	return &Transport{mode: mode, cookies: cookies, accessTTL: accessTTL, refreshTTL: refreshTTL}
}

func (t *Transport) AccessToken(c *gin.Context) string {
	if t.mode == TransportCookie {
		return cookie(c, t.cookies.AccessName)
	}
	return bearer(c)
}

func (t *Transport) RefreshToken(c *gin.Context) string {
	if t.mode == TransportCookie {
		return cookie(c, t.cookies.RefreshName)
	}
	return bearer(c)
}

// LogoutToken prefers the refresh token so logout can end just that session.
func (t *Transport) LogoutToken(c *gin.Context) string {
	if t.mode == TransportCookie {
		if rt := cookie(c, t.cookies.RefreshName); rt != "" {
			return rt
		}
		return cookie(c, t.cookies.AccessName)
	}
	return bearer(c)
}

// Attach sets the cookies in cookie mode, or puts the tokens in the body.
func (t *Transport) Attach(c *gin.Context, res *AuthResult) AuthResponse {
	if t.mode == TransportCookie {
		t.setCookie(c, t.cookies.AccessName, res.Tokens.AccessToken, t.accessTTL)
		t.setCookie(c, t.cookies.RefreshName, res.Tokens.RefreshToken, t.refreshTTL)
		return AuthResponse{PublicProfile: res.User}
	}
	return AuthResponse{
		PublicProfile: res.User,
		Token:         res.Tokens.AccessToken,
		RefreshToken:  res.Tokens.RefreshToken,
	}
}

// Clear expires both cookies. Header clients drop their tokens themselves.
func (t *Transport) Clear(c *gin.Context) {
	if t.mode != TransportCookie {
		return
	}
	c.SetSameSite(t.cookies.SameSite)
	c.SetCookie(t.cookies.AccessName, "", -1, t.cookies.Path, t.cookies.Domain, t.cookies.Secure, true)
	c.SetCookie(t.cookies.RefreshName, "", -1, t.cookies.Path, t.cookies.Domain, t.cookies.Secure, true)
}

func (t *Transport) setCookie(c *gin.Context, name, value string, ttl time.Duration) {
	c.SetSameSite(t.cookies.SameSite)
	c.SetCookie(name, value, int(ttl.Seconds()), t.cookies.Path, t.cookies.Domain, t.cookies.Secure, true)
}

// bearer extracts the token of an "Authorization: bearer <token>" header.
// The scheme is matched case-insensitively.
func bearer(c *gin.Context) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(c.GetHeader("Authorization")), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func cookie(c *gin.Context, name string) string {
	v, err := c.Cookie(name)
	if err != nil {
		return ""
	}
	return v
}

func ParseSameSite(mode string) http.SameSite {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}
