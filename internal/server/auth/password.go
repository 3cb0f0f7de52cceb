package auth

import (
	"errors"
	"fmt"

	"github.com/innocode-solutions/abp-5dsm-sub002/internal/common"
	"golang.org/x/crypto/bcrypt"
)

// MinCost is the lowest bcrypt cost the hasher will use.
const MinCost = 12

// MaxPasswordBytes is the longest password bcrypt takes into account.
const MaxPasswordBytes = 72

var ErrPasswordTooLong = fmt.Errorf("%w: password longer than %d bytes", common.ErrValidation, MaxPasswordBytes)

// PasswordHasher hashes and verifies passwords. Verify never errors: any
// mismatch, including a malformed stored hash, is simply false.
type PasswordHasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, hash string) bool
}

type BcryptHasher struct {
	cost int
}

// NewBcryptHasher returns a hasher using cost, raised to MinCost if lower.
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost < MinCost {
		cost = MinCost
	}
	return &BcryptHasher{cost: cost}
}

func (h *BcryptHasher) Cost() int { return h.cost }

func (h *BcryptHasher) Hash(plaintext string) (string, error) {
	if len(plaintext) > MaxPasswordBytes {
		return "", ErrPasswordTooLong
	}
	b, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(b), nil
}

func (h *BcryptHasher) Verify(plaintext, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext))
	return err == nil
}

// IsTooLong reports whether err came from an over-long password.
func IsTooLong(err error) bool {
	return errors.Is(err, ErrPasswordTooLong) || errors.Is(err, bcrypt.ErrPasswordTooLong)
}
