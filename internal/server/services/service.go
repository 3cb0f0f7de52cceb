// Package services contains server-side business logic: accounts and
// credentials, the password reset flow and the prediction pass-through.
package services

import (
	"context"
	"time"

	"github.com/innocode-solutions/abp-5dsm-sub002/internal/logging"
	"github.com/innocode-solutions/abp-5dsm-sub002/internal/retryx"
	"github.com/innocode-solutions/abp-5dsm-sub002/internal/server/models"
	"github.com/innocode-solutions/abp-5dsm-sub002/internal/server/ratelimit"
	"github.com/innocode-solutions/abp-5dsm-sub002/internal/server/repositories/repomanager"
)

// withTimeout bounds a call to a database or downstream service.
func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

func rateLimitKey(action, email string) string {
	return action + ":" + email
}

// allow fails open when the limiter backend is unavailable.
func allow(ctx context.Context, l ratelimit.Limiter, logger logging.Logger, key string) bool {
	ok, err := l.Allow(ctx, key)
	if err != nil {
		logger.Warn(ctx, "rate limiter unavailable", "error", err)
		return true
	}
	return ok
}

// findUserByEmail is an idempotent lookup, retried once on transient errors.
func findUserByEmail(ctx context.Context, m repomanager.RepositoryManager, timeout time.Duration, email string) (*models.User, error) {
	var user *models.User
	err := retryx.Once(ctx, 0, func(ctx context.Context) error {
		dbCtx, cancel := withTimeout(ctx, timeout)
		defer cancel()

		var err error
		user, err = m.Users(m.DB()).GetByEmail(dbCtx, email)
		return err
	})
	return user, err
}
