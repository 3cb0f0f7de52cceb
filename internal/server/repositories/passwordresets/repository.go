// Package passwordresets stores one-time password reset codes.
package passwordresets

import (
	"context"
	"time"

	"github.com/innocode-solutions/abp-5dsm-sub002/internal/server/models"
)

// Repository persists reset codes. "Outstanding" means neither consumed nor
// superseded; expiry is judged by the caller.
type Repository interface {
	Create(ctx context.Context, reset *models.PasswordReset) error
	// FindOutstanding returns the newest outstanding reset of the user or
	// common.ErrorNotFound.
	FindOutstanding(ctx context.Context, userID string) (*models.PasswordReset, error)
	SupersedeOutstanding(ctx context.Context, userID string, at time.Time) (int64, error)
	// MarkConsumed flips an outstanding reset to consumed. A reset that was
	// consumed or superseded meanwhile yields common.ErrorNotFound.
	MarkConsumed(ctx context.Context, id string, at time.Time) error
	// RecordFailedAttempt counts a wrong guess against an outstanding reset
	// and supersedes it once limit guesses have failed. It returns the new
	// count, or common.ErrorNotFound when the reset is no longer outstanding.
	RecordFailedAttempt(ctx context.Context, id string, limit int, at time.Time) (int, error)
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}
