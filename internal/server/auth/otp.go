package auth

import (
	"github.com/innocode-solutions/abp-5dsm-sub002/internal/cryptox"
)

// DefaultCodeLength is the number of digits in a reset code.
const DefaultCodeLength = 6

const resetPurpose = "password-reset"

// CodeGenerator issues numeric one-time codes and the digests stored in
// their place.
type CodeGenerator struct {
	key    []byte
	length int
}

func NewCodeGenerator(key []byte, length int) *CodeGenerator {
	if length <= 0 {
		length = DefaultCodeLength
	}
	return &CodeGenerator{key: key, length: length}
}

func (g *CodeGenerator) Length() int { return g.length }

// Generate returns a fresh code drawn from crypto/rand.
func (g *CodeGenerator) Generate() (string, error) {
	return cryptox.RandomDigits(g.length)
}

// Digest binds code to subject (the user id).
func (g *CodeGenerator) Digest(subject, code string) string {
	return cryptox.KeyedDigest(g.key, resetPurpose, subject, code)
}

// Matches compares a candidate code with a stored digest in constant time.
func (g *CodeGenerator) Matches(subject, code, digest string) bool {
	return cryptox.EqualDigest(g.Digest(subject, code), digest)
}
