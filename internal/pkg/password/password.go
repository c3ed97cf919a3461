package password

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

var ErrInvalidCost = errors.New("password: invalid bcrypt cost")

// Hasher hashes and verifies passwords with bcrypt. Both operations run on a
// separate goroutine so a context deadline returns promptly even while the
// hash is still being computed.
type Hasher struct {
	cost int
}

// NewHasher returns a Hasher; cost 0 selects bcrypt.DefaultCost.
func NewHasher(cost int) (*Hasher, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("%w: %d", ErrInvalidCost, cost)
	}
	return &Hasher{cost: cost}, nil
}

func (h *Hasher) Hash(ctx context.Context, plain string) (string, error) {
	type result struct {
		digest []byte
		err    error
	}
	ch := make(chan result, 1)
	go func() {
		d, err := bcrypt.GenerateFromPassword([]byte(plain), h.cost)
		ch <- result{d, err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r := <-ch:
		if r.err != nil {
			return "", r.err
		}
		return string(r.digest), nil
	}
}

// Compare reports whether plain matches digest. A mismatch is (false, nil);
// errors are reserved for a malformed digest or a context deadline.
func (h *Hasher) Compare(ctx context.Context, digest, plain string) (bool, error) {
	ch := make(chan error, 1)
	go func() {
		ch <- bcrypt.CompareHashAndPassword([]byte(digest), []byte(plain))
	}()

	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case err := <-ch:
		switch {
		case err == nil:
			return true, nil
		case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
			return false, nil
		default:
			return false, err
		}
	}
}
