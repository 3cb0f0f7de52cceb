// Package auth holds the authentication core: password hashing, bearer
// tokens, role-based authorization and one-time reset codes.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/innocode-solutions/abp-5dsm-sub002/internal/common"
	"github.com/innocode-solutions/abp-5dsm-sub002/internal/server/models"
)

// DefaultTokenTTL is used when the issuer is built with a non-positive TTL.
const DefaultTokenTTL = time.Hour

// Claims carried by an access token. The user id travels as "sub".
type Claims struct {
	jwt.RegisteredClaims
	Role  models.Role `json:"role"`
	Email string      `json:"email"`
}

func (c *Claims) UserID() string { return c.Subject }

// Identity returns the caller identity described by the claims.
func (c *Claims) Identity() Identity {
	return Identity{UserID: c.Subject, Role: c.Role, Email: c.Email}
}

// TokenIssuer signs and verifies HS256 access tokens.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	leeway time.Duration
	now    func() time.Time
}

func NewTokenIssuer(secret []byte, ttl, leeway time.Duration) *TokenIssuer {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenIssuer{secret: secret, ttl: ttl, leeway: leeway, now: time.Now}
}

// WithClock replaces the time source. Intended for tests.
func (i *TokenIssuer) WithClock(now func() time.Time) *TokenIssuer {
	i.now = now
	return i
}

func (i *TokenIssuer) TTL() time.Duration { return i.ttl }

// Issue returns a signed token for the user and its expiry instant.
func (i *TokenIssuer) Issue(userID string, role models.Role, email string) (string, time.Time, error) {
	now := i.now()
	expiresAt := now.Add(i.ttl)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Role:  role,
		Email: email,
	})

	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// Verify checks signature and expiry and returns the claims. Failures are
// one of common.ErrTokenMalformed, common.ErrTokenSignatureInvalid or
// common.ErrTokenExpired.
func (i *TokenIssuer) Verify(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, common.ErrTokenMissing
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (any, error) { return i.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(i.leeway),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return nil, classify(err)
	}

	if claims.Subject == "" || !claims.Role.Valid() {
		return nil, common.ErrTokenMalformed
	}
	return claims, nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return common.ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return common.ErrTokenSignatureInvalid
	default:
		return common.ErrTokenMalformed
	}
}
