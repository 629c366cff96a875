// Package secrets hashes and verifies user passwords.
//
// Hashes are opaque strings. Callers never compare them directly; they go
// through Hasher.Verify, which takes constant time in the secret.
package secrets

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// MaxSecretBytes is the longest secret bcrypt can hash.
const MaxSecretBytes = 72

var (
	// ErrMismatch is returned by Verify when the secret does not match.
	ErrMismatch = errors.New("secret does not match hash")

	// ErrTooLong is returned by Hash when the secret exceeds MaxSecretBytes.
	ErrTooLong = fmt.Errorf("secret longer than %d bytes", MaxSecretBytes)
)

// Hasher turns secrets into opaque hashes and checks them.
type Hasher interface {
	Hash(secret string) (string, error)
	Verify(hash, secret string) error
}

// Bcrypt is a Hasher backed by golang.org/x/crypto/bcrypt.
type Bcrypt struct {
	Cost int
}

// NewBcrypt returns a Bcrypt hasher. A cost of 0 selects bcrypt.DefaultCost.
func NewBcrypt(cost int) (Bcrypt, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return Bcrypt{}, fmt.Errorf("bcrypt cost %d outside [%d, %d]", cost, bcrypt.MinCost, bcrypt.MaxCost)
	}
	return Bcrypt{Cost: cost}, nil
}

func (b Bcrypt) cost() int {
	if b.Cost == 0 {
		return bcrypt.DefaultCost
	}
	return b.Cost
}

// Hash returns the bcrypt hash of secret.
func (b Bcrypt) Hash(secret string) (string, error) {
	if len(secret) > MaxSecretBytes {
		return "", ErrTooLong
	}
	h, err := bcrypt.GenerateFromPassword([]byte(secret), b.cost())
	if err != nil {
		return "", fmt.Errorf("hash secret: %w", err)
	}
	return string(h), nil
}

// Verify returns nil when secret matches hash and ErrMismatch when it does
// not. A malformed hash is reported as a mismatch as well.
func (b Bcrypt) Verify(hash, secret string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret))
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", ErrMismatch, err)
}
