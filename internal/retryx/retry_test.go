package retryx

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/innocode-solutions/abp-5dsm-sub002/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestIsTransient(t *testing.T) {
	t.Parallel()

	assert.False(t, IsTransient(nil))
	assert.False(t, IsTransient(errors.New("syntax error")))
	assert.False(t, IsTransient(common.ErrNotFound))
	assert.True(t, IsTransient(context.DeadlineExceeded))
	assert.True(t, IsTransient(fmt.Errorf("db error: %w", context.DeadlineExceeded)))
	assert.True(t, IsTransient(timeoutErr{}))
	assert.True(t, IsTransient(fmt.Errorf("%w: smtp", common.ErrTransient)))
}

func TestOnce_SucceedsFirstTime(t *testing.T) {
	calls := 0
	err := Once(context.Background(), time.Millisecond, func(context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestOnce_RetriesTransientOnce(t *testing.T) {
	calls := 0
	err := Once(context.Background(), time.Millisecond, func(context.Context) error {
		calls++
		if calls == 1 {
			return timeoutErr{}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestOnce_GivesUpAfterSecondTransientFailure(t *testing.T) {
	calls := 0
	err := Once(context.Background(), time.Millisecond, func(context.Context) error {
		calls++
		return timeoutErr{}
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrTransient)
	assert.Equal(t, 2, calls)
}

func TestOnce_DoesNotRetryPermanentErrors(t *testing.T) {
	calls := 0
	err := Once(context.Background(), time.Millisecond, func(context.Context) error {
		calls++
		return common.ErrNotFound
	})
	require.ErrorIs(t, err, common.ErrNotFound)
	assert.NotErrorIs(t, err, common.ErrTransient)
	assert.Equal(t, 1, calls)
}

func TestMark(t *testing.T) {
	t.Parallel()

	assert.NoError(t, Mark(nil))

	plain := errors.New("syntax error")
	assert.Same(t, plain, Mark(plain))

	marked := Mark(fmt.Errorf("insert user: %w", context.DeadlineExceeded))
	assert.ErrorIs(t, marked, common.ErrTransient)
	assert.ErrorIs(t, marked, context.DeadlineExceeded)

	already := fmt.Errorf("%w: smtp", common.ErrTransient)
	assert.Same(t, already, Mark(already))
}
