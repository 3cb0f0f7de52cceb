package users

import (
	"context"
	"time"

	"github.com/innocode-solutions/abp-5dsm-sub002/internal/server/models"
)

// Repository is the credential store. Lookups of a missing user return
// common.ErrorNotFound; creating a duplicate email returns
// common.ErrorAlreadyExists.
type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	UpdatePassword(ctx context.Context, id string, passwordHash string, at time.Time) error
	// LockForUpdate serializes concurrent writers of the same user inside a
	// transaction.
	LockForUpdate(ctx context.Context, id string) error
}
