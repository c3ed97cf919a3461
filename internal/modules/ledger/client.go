// Package ledger provisions the external account a user may name at
// registration and returns the keys bound to it.
package ledger

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"authgate/internal/domain"
)

const defaultTimeout = 10 * time.Second

var ErrAccountTaken = errors.New("ledger: account already exists")

// StatusError is a non-success answer from the ledger API.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("ledger: status %d: %s", e.Status, e.Message)
}

// Retryable is consulted by callers that distinguish transient failures.
func (e *StatusError) Retryable() bool {
	return e.Status >= http.StatusInternalServerError || e.Status == http.StatusTooManyRequests
}

type Config struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Client talks to the ledger's account API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func New(cfg Config) *Client {
	client := cfg.HTTPClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		client = &http.Client{Timeout: timeout}
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: client,
	}
}

type createAccountRequest struct {
	Account string `json:"account"`
}

type createAccountResponse struct {
	Account   string `json:"account"`
	PublicKey string `json:"public_key"`
	Error     string `json:"error,omitempty"`
}

// CreateAccount is not retried here; a failure aborts the registration.
func (c *Client) CreateAccount(ctx context.Context, account string) (domain.AccountKeys, error) {
	payload, err := json.Marshal(createAccountRequest{Account: account})
	if err != nil {
		return domain.AccountKeys{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/accounts", bytes.NewReader(payload))
	if err != nil {
		return domain.AccountKeys{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.AccountKeys{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return domain.AccountKeys{}, err
	}

	var out createAccountResponse
	decodeErr := json.Unmarshal(body, &out)

	switch {
	case resp.StatusCode == http.StatusConflict:
		return domain.AccountKeys{}, ErrAccountTaken
	case resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated:
		msg := out.Error
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return domain.AccountKeys{}, &StatusError{Status: resp.StatusCode, Message: msg}
	case decodeErr != nil:
		return domain.AccountKeys{}, fmt.Errorf("ledger: decode response: %w", decodeErr)
	case out.PublicKey == "":
		return domain.AccountKeys{}, errors.New("ledger: response without public key")
	}

	if out.Account == "" {
		out.Account = account
	}
	return domain.AccountKeys{Account: out.Account, PublicKey: out.PublicKey}, nil
}

// DevProvisioner stands in for the ledger in development: it generates an
// ed25519 key locally and records nothing remotely.
type DevProvisioner struct {
	log *slog.Logger
}

func NewDevProvisioner(log *slog.Logger) *DevProvisioner {
	if log == nil {
		log = slog.Default()
	}
	return &DevProvisioner{log: log}
}

func (p *DevProvisioner) CreateAccount(ctx context.Context, account string) (domain.AccountKeys, error) {
	if err := ctx.Err(); err != nil {
		return domain.AccountKeys{}, err
	}
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return domain.AccountKeys{}, err
	}
	key := "PUB_ED25519_" + base64.RawURLEncoding.EncodeToString(pub)
	p.log.DebugContext(ctx, "dev ledger account created", "account", account)
	return domain.AccountKeys{Account: account, PublicKey: key}, nil
}
