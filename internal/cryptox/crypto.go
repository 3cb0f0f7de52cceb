// Package cryptox contains the small cryptographic helpers used for
// one-time codes: uniform random digits and keyed digests that can be
// stored and compared without keeping the code itself.
package cryptox

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"io"
	"math/big"
	"strings"
)

var errNonPositiveLength = errors.New("length must be positive")

// RandomDigits returns n decimal digits drawn uniformly from crypto/rand.
// Leading zeros are kept, so "000123" is a valid six digit result.
func RandomDigits(n int) (string, error) {
	return randomDigits(rand.Reader, n)
}

func randomDigits(r io.Reader, n int) (string, error) {
	if n <= 0 {
		return "", errNonPositiveLength
	}

	ten := big.NewInt(10)
	var b strings.Builder
	b.Grow(n)
	for i := 0; i < n; i++ {
		d, err := rand.Int(r, ten)
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + d.Int64()))
	}
	return b.String(), nil
}

// KeyedDigest returns hex(HMAC-SHA256(key, part1 \x00 part2 ...)).
// Binding the digest to a subject (e.g. a user id) means equal codes issued
// to different users never share a digest.
func KeyedDigest(key []byte, parts ...string) string {
	mac := hmac.New(sha256.New, key)
	for i, p := range parts {
		if i > 0 {
			mac.Write([]byte{0})
		}
		mac.Write([]byte(p))
	}
	return hex.EncodeToString(mac.Sum(nil))
}

// EqualDigest compares two digests in constant time.
func EqualDigest(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
