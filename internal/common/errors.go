// Package common defines shared constants and sentinel errors used across
// the server layers. Callers should use errors.Is to match these values.
package common

import (
	"errors"
	"fmt"
)

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")

	// Service-level errors.
	ErrorInternal = errors.New("internal error")

	// Error taxonomy surfaced to callers.
	ErrValidation         = errors.New("validation error")
	ErrUnauthenticated    = errors.New("unauthenticated")
	ErrForbidden          = errors.New("forbidden")
	ErrConflict           = errors.New("conflict")
	ErrNotFound           = errors.New("resource not found")
	ErrTransient          = errors.New("dependency temporarily unavailable")
	ErrTooManyRequests    = errors.New("too many requests")
	ErrInvalidCredentials = fmt.Errorf("%w: invalid email or password", ErrUnauthenticated)

	// Token errors. All of them are authentication failures.
	ErrTokenMissing          = fmt.Errorf("%w: missing token", ErrUnauthenticated)
	ErrTokenMalformed        = fmt.Errorf("%w: malformed token", ErrUnauthenticated)
	ErrTokenSignatureInvalid = fmt.Errorf("%w: invalid token signature", ErrUnauthenticated)
	ErrTokenExpired          = fmt.Errorf("%w: token expired", ErrUnauthenticated)

	// Password reset code errors.
	ErrCodeInvalid = fmt.Errorf("%w: invalid reset code", ErrValidation)
	ErrCodeExpired = fmt.Errorf("%w: reset code expired", ErrValidation)
)
