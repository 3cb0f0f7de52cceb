package passwordresets

import (
	"context"
	"testing"
	"time"

	"github.com/innocode-solutions/abp-5dsm-sub002/internal/common"
	"github.com/innocode-solutions/abp-5dsm-sub002/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRepository_Lifecycle(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	now := time.Now()

	first := &models.PasswordReset{UserID: "u-1", CodeHash: "a", CreatedAt: now, ExpiresAt: now.Add(time.Minute)}
	require.NoError(t, repo.Create(ctx, first))

	dup := &models.PasswordReset{UserID: "u-1", CodeHash: "b", CreatedAt: now}
	require.ErrorIs(t, repo.Create(ctx, dup), common.ErrorAlreadyExists, "one outstanding code per user")

	n, err := repo.SupersedeOutstanding(ctx, "u-1", now)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	second := &models.PasswordReset{UserID: "u-1", CodeHash: "b", CreatedAt: now.Add(time.Second), ExpiresAt: now.Add(time.Hour)}
	require.NoError(t, repo.Create(ctx, second))

	got, err := repo.FindOutstanding(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, second.ID, got.ID)

	require.ErrorIs(t, repo.MarkConsumed(ctx, first.ID, now), common.ErrorNotFound, "superseded cannot be consumed")
	require.NoError(t, repo.MarkConsumed(ctx, second.ID, now))
	require.ErrorIs(t, repo.MarkConsumed(ctx, second.ID, now), common.ErrorNotFound, "consumed only once")

	_, err = repo.FindOutstanding(ctx, "u-1")
	require.ErrorIs(t, err, common.ErrorNotFound)

	deleted, err := repo.DeleteExpired(ctx, now.Add(30*time.Minute))
	require.NoError(t, err)
	assert.EqualValues(t, 1, deleted)
}

func TestMemoryRepository_RecordFailedAttempt(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	now := time.Now()

	reset := &models.PasswordReset{UserID: "u-1", CodeHash: "a", CreatedAt: now, ExpiresAt: now.Add(time.Minute)}
	require.NoError(t, repo.Create(ctx, reset))

	for want := 1; want < 3; want++ {
		n, err := repo.RecordFailedAttempt(ctx, reset.ID, 3, now)
		require.NoError(t, err)
		assert.Equal(t, want, n)
	}
	got, err := repo.FindOutstanding(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, 2, got.FailedAttempts)

	n, err := repo.RecordFailedAttempt(ctx, reset.ID, 3, now)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	_, err = repo.FindOutstanding(ctx, "u-1")
	require.ErrorIs(t, err, common.ErrorNotFound, "withdrawn at the limit")

	_, err = repo.RecordFailedAttempt(ctx, reset.ID, 3, now)
	require.ErrorIs(t, err, common.ErrorNotFound)
}
