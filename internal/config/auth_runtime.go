package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultHTTPAddr         = ":8080"
	defaultDatabaseURL      = "authgate.db"
	defaultJWTAccessTTL     = "15m"
	defaultRefreshTTL       = "168h"
	defaultJWTIssuer        = "authgate"
	defaultJWTSecret        = "change-me-jwt-secret"
	defaultTransport        = "header"
	defaultAccessCookie     = "token"
	defaultRefreshCookie    = "rt"
	defaultCookieSecure     = "false"
	defaultCookieSameSite   = "Lax"
	defaultCookiePath       = "/"
	defaultOperationTimeout = "5s"
	defaultResetLockout     = "15m"
	defaultLogoutAll        = "false"
	defaultSupportedLangs   = "en,it"
	defaultLang             = "en"
	defaultLedgerTimeout    = "10s"
	defaultEmailCheckLimit  = "20"
	defaultEmailCheckWindow = "1m"
	defaultLogLevel         = "info"
	defaultLogFormat        = "text"

	minProdSecretLen = 32
)

type AuthRuntimeConfig struct {
	AppEnv      string
	HTTPAddr    string
	DatabaseURL string

	JWTSecret    string
	JWTIssuer    string
	JWTAccessTTL time.Duration
	RefreshTTL   time.Duration

	Transport         string
	AccessCookieName  string
	RefreshCookieName string
	CookieSecure      bool
	CookieSameSite    string
	CookiePath        string
	CookieDomain      string

	BcryptCost        int
	OperationTimeout  time.Duration
	AuthResetLockout  time.Duration
	LogoutAllSessions bool
	MaxSessions       int
	SupportedLangs    []string
	DefaultLang       string

	LedgerURL     string
	LedgerTimeout time.Duration

	RedisURL         string
	EmailCheckLimit  int
	EmailCheckWindow time.Duration

	LogLevel           string
	LogFormat          string
	CORSAllowedOrigins []string
}

func LoadAuthRuntimeConfig() (*AuthRuntimeConfig, error) {
	cfg := &AuthRuntimeConfig{}
	appEnv := strings.TrimSpace(os.Getenv("APP_ENV"))
	if appEnv == "" {
		appEnv = strings.TrimSpace(os.Getenv("ENV"))
	}
	if appEnv == "" {
		appEnv = "dev"
	}
	cfg.AppEnv = strings.ToLower(appEnv)

	cfg.HTTPAddr = strings.TrimSpace(getEnv("HTTP_ADDR", defaultHTTPAddr))
	cfg.DatabaseURL = strings.TrimSpace(getEnv("DATABASE_URL", defaultDatabaseURL))
	cfg.JWTSecret = strings.TrimSpace(getEnv("JWT_SECRET", defaultJWTSecret))
	cfg.JWTIssuer = strings.TrimSpace(getEnv("JWT_ISSUER", defaultJWTIssuer))

	var err error
	if cfg.JWTAccessTTL, err = parseDurationEnv("JWT_ACCESS_TTL", defaultJWTAccessTTL); err != nil {
		return nil, err
	}
	if cfg.RefreshTTL, err = parseDurationEnv("REFRESH_TTL", defaultRefreshTTL); err != nil {
		return nil, err
	}
	if cfg.OperationTimeout, err = parseDurationEnv("OPERATION_TIMEOUT", defaultOperationTimeout); err != nil {
		return nil, err
	}
	if cfg.AuthResetLockout, err = parseDurationEnv("AUTH_RESET_LOCKOUT", defaultResetLockout); err != nil {
		return nil, err
	}
	if cfg.LedgerTimeout, err = parseDurationEnv("LEDGER_TIMEOUT", defaultLedgerTimeout); err != nil {
		return nil, err
	}
	if cfg.EmailCheckWindow, err = parseDurationEnv("EMAIL_CHECK_WINDOW", defaultEmailCheckWindow); err != nil {
		return nil, err
	}

	if cfg.BcryptCost, err = parseIntEnv("BCRYPT_COST", "0"); err != nil {
		return nil, err
	}
	if cfg.MaxSessions, err = parseIntEnv("MAX_SESSIONS", "0"); err != nil {
		return nil, err
	}
	if cfg.EmailCheckLimit, err = parseIntEnv("EMAIL_CHECK_LIMIT", defaultEmailCheckLimit); err != nil {
		return nil, err
	}

	cfg.Transport = strings.ToLower(strings.TrimSpace(getEnv("AUTH_TRANSPORT", defaultTransport)))
	cfg.AccessCookieName = strings.TrimSpace(getEnv("ACCESS_COOKIE_NAME", defaultAccessCookie))
	cfg.RefreshCookieName = strings.TrimSpace(getEnv("REFRESH_COOKIE_NAME", defaultRefreshCookie))
	cfg.CookieSecure = parseBoolEnv("COOKIE_SECURE", defaultCookieSecure)
	cfg.CookieSameSite = strings.TrimSpace(getEnv("COOKIE_SAMESITE", defaultCookieSameSite))
	cfg.CookiePath = strings.TrimSpace(getEnv("COOKIE_PATH", defaultCookiePath))
	cfg.CookieDomain = strings.TrimSpace(os.Getenv("COOKIE_DOMAIN"))

	cfg.LogoutAllSessions = parseBoolEnv("LOGOUT_ALL_SESSIONS", defaultLogoutAll)
	cfg.SupportedLangs = parseListEnv("SUPPORTED_LANGS", defaultSupportedLangs)
	cfg.DefaultLang = strings.ToLower(strings.TrimSpace(getEnv("DEFAULT_LANG", defaultLang)))

	cfg.LedgerURL = strings.TrimSpace(os.Getenv("LEDGER_URL"))
	cfg.RedisURL = strings.TrimSpace(os.Getenv("REDIS_URL"))

	cfg.LogLevel = strings.ToLower(strings.TrimSpace(getEnv("LOG_LEVEL", defaultLogLevel)))
	cfg.LogFormat = strings.ToLower(strings.TrimSpace(getEnv("LOG_FORMAT", defaultLogFormat)))
	cfg.CORSAllowedOrigins = parseListEnv("CORS_ALLOWED_ORIGINS", "")

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	slog.Debug("auth runtime config loaded",
		"env", cfg.AppEnv,
		"transport", cfg.Transport,
		"cookie_secure", cfg.CookieSecure,
		"cookie_same_site", cfg.CookieSameSite,
		"cookie_path", cfg.CookiePath,
	)

	return cfg, nil
}

// IsProduction сообщает, запущен ли сервис в prod/release окружении.
func (c *AuthRuntimeConfig) IsProduction() bool {
	return isProdLike(c.AppEnv)
}

// SlogLevel переводит LOG_LEVEL в уровень slog.
func (c *AuthRuntimeConfig) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func validateConfig(cfg *AuthRuntimeConfig) error {
	if cfg.JWTAccessTTL <= 0 {
		return fmt.Errorf("JWT_ACCESS_TTL must be > 0")
	}
	if cfg.RefreshTTL <= 0 {
		return fmt.Errorf("REFRESH_TTL must be > 0")
	}
	if cfg.RefreshTTL <= cfg.JWTAccessTTL {
		return fmt.Errorf("REFRESH_TTL must be greater than JWT_ACCESS_TTL")
	}
	if cfg.OperationTimeout <= 0 {
		return fmt.Errorf("OPERATION_TIMEOUT must be > 0")
	}
	if cfg.AuthResetLockout < 0 {
		return fmt.Errorf("AUTH_RESET_LOCKOUT must be >= 0")
	}
	if cfg.LedgerTimeout <= 0 {
		return fmt.Errorf("LEDGER_TIMEOUT must be > 0")
	}
	if cfg.MaxSessions < 0 {
		return fmt.Errorf("MAX_SESSIONS must be >= 0")
	}
	if cfg.EmailCheckLimit < 0 {
		return fmt.Errorf("EMAIL_CHECK_LIMIT must be >= 0")
	}
	if cfg.EmailCheckLimit > 0 && cfg.EmailCheckWindow <= 0 {
		return fmt.Errorf("EMAIL_CHECK_WINDOW must be > 0")
	}
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL must not be empty")
	}
	if cfg.Transport != "header" && cfg.Transport != "cookie" {
		return fmt.Errorf("AUTH_TRANSPORT must be one of: header, cookie")
	}
	if len(cfg.SupportedLangs) == 0 {
		return fmt.Errorf("SUPPORTED_LANGS must not be empty")
	}
	if !contains(cfg.SupportedLangs, cfg.DefaultLang) {
		return fmt.Errorf("DEFAULT_LANG %q is not in SUPPORTED_LANGS", cfg.DefaultLang)
	}
	if cfg.CookiePath == "" {
		return fmt.Errorf("COOKIE_PATH must not be empty")
	}
	if cfg.AccessCookieName == "" || cfg.RefreshCookieName == "" {
		return fmt.Errorf("cookie names must not be empty")
	}
	if cfg.AccessCookieName == cfg.RefreshCookieName {
		return fmt.Errorf("ACCESS_COOKIE_NAME and REFRESH_COOKIE_NAME must differ")
	}
	sameSite := strings.ToLower(cfg.CookieSameSite)
	if sameSite != "lax" && sameSite != "none" && sameSite != "strict" {
		return fmt.Errorf("COOKIE_SAMESITE must be one of: Lax, None, Strict")
	}
	if sameSite == "none" && !cfg.CookieSecure {
		return fmt.Errorf("COOKIE_SECURE must be true when COOKIE_SAMESITE=None")
	}
	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		return fmt.Errorf("LOG_FORMAT must be one of: text, json")
	}

	if isProdLike(cfg.AppEnv) {
		if isEmptyOrDefault(cfg.JWTSecret, defaultJWTSecret) {
			return fmt.Errorf("in prod/release JWT_SECRET must be set and not default")
		}
		if len(cfg.JWTSecret) < minProdSecretLen {
			return fmt.Errorf("in prod/release JWT_SECRET must be at least %d bytes", minProdSecretLen)
		}
		if cfg.Transport == "cookie" && !cfg.CookieSecure {
			return fmt.Errorf("in prod/release COOKIE_SECURE must be true for cookie transport")
		}
	}

	return nil
}

func isProdLike(env string) bool {
	env = strings.ToLower(strings.TrimSpace(env))
	return env == "prod" || env == "production" || env == "release"
}

func isEmptyOrDefault(v, def string) bool {
	trimmed := strings.TrimSpace(v)
	return trimmed == "" || trimmed == def
}

func parseDurationEnv(name, fallback string) (time.Duration, error) {
	value := strings.TrimSpace(getEnv(name, fallback))
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", name, value, err)
	}
	return d, nil
}

func parseIntEnv(name, fallback string) (int, error) {
	value := strings.TrimSpace(getEnv(name, fallback))
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", name, value, err)
	}
	return n, nil
}

func parseBoolEnv(name, fallback string) bool {
	value := strings.ToLower(strings.TrimSpace(getEnv(name, fallback)))
	return value == "1" || value == "true" || value == "yes" || value == "on"
}

func parseListEnv(name, fallback string) []string {
	var out []string
	for _, part := range strings.Split(getEnv(name, fallback), ",") {
		if part = strings.ToLower(strings.TrimSpace(part)); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func getEnv(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}
