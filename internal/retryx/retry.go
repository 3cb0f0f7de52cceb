// Package retryx retries idempotent operations that failed for transient
// reasons: timeouts, dropped connections, unavailable dependencies.
package retryx

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/innocode-solutions/abp-5dsm-sub002/internal/common"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sethvargo/go-retry"
)

// DefaultBackoff is the pause before the single retry.
const DefaultBackoff = 100 * time.Millisecond

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, common.ErrTransient) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if pgconn.Timeout(err) || pgconn.SafeToRetry(err) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// Mark wraps err in common.ErrTransient when it is transient, so callers
// that do not retry still report it as a dependency failure.
func Mark(err error) error {
	if err == nil || errors.Is(err, common.ErrTransient) || !IsTransient(err) {
		return err
	}
	return fmt.Errorf("%w: %w", common.ErrTransient, err)
}

// Once runs fn and, if it fails transiently, runs it one more time after
// backoff. A failure that is still transient is returned wrapped in
// common.ErrTransient; other failures are returned as they are.
func Once(ctx context.Context, backoff time.Duration, fn func(ctx context.Context) error) error {
	if backoff <= 0 {
		backoff = DefaultBackoff
	}
	b := retry.WithMaxRetries(1, retry.NewConstant(backoff))

	err := retry.Do(ctx, b, func(ctx context.Context) error {
		if err := fn(ctx); err != nil {
			if IsTransient(err) {
				return retry.RetryableError(err)
			}
			return err
		}
		return nil
	})

	return Mark(err)
}
