package passwordresets

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/innocode-solutions/abp-5dsm-sub002/internal/common"
	"github.com/innocode-solutions/abp-5dsm-sub002/internal/server/models"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgresRepository(db), mock
}

const (
	insertQ    = `(?s)^INSERT\s+INTO\s+password_resets\s*\(id,\s*user_id,\s*code_hash,\s*expires_at,\s*created_at\)\s*VALUES\s*\(\$1,\s*\$2,\s*\$3,\s*\$4,\s*\$5\)\s*$`
	findQ      = `(?s)^SELECT\s+id,\s*user_id,\s*code_hash,\s*expires_at,\s*created_at,\s*failed_attempts\s+FROM\s+password_resets\s+WHERE\s+user_id\s*=\s*\$1\s+AND\s+consumed_at\s+IS\s+NULL\s+AND\s+superseded_at\s+IS\s+NULL\s+ORDER\s+BY\s+created_at\s+DESC\s+LIMIT\s+1\s*$`
	supersedeQ = `(?s)^UPDATE\s+password_resets\s+SET\s+superseded_at\s*=\s*\$2\s+WHERE\s+user_id\s*=\s*\$1\s+AND\s+consumed_at\s+IS\s+NULL\s+AND\s+superseded_at\s+IS\s+NULL\s*$`
	consumeQ   = `(?s)^UPDATE\s+password_resets\s+SET\s+consumed_at\s*=\s*\$2\s+WHERE\s+id\s*=\s*\$1\s+AND\s+consumed_at\s+IS\s+NULL\s+AND\s+superseded_at\s+IS\s+NULL\s*$`
	failedQ    = `(?s)^UPDATE\s+password_resets\s+SET\s+failed_attempts\s*=\s*failed_attempts\s*\+\s*1,\s*superseded_at\s*=\s*CASE\s+WHEN\s+failed_attempts\s*\+\s*1\s*>=\s*\$2\s+THEN\s+\$3\s+ELSE\s+superseded_at\s+END\s+WHERE\s+id\s*=\s*\$1\s+AND\s+consumed_at\s+IS\s+NULL\s+AND\s+superseded_at\s+IS\s+NULL\s+RETURNING\s+failed_attempts\s*$`
	deleteQ    = `(?s)^DELETE\s+FROM\s+password_resets\s+WHERE\s+expires_at\s*<\s*\$1\s*$`
)

func TestCreate(t *testing.T) {
	now := time.Now()
	reset := &models.PasswordReset{ID: "r-1", UserID: "u-1", CodeHash: "digest", ExpiresAt: now.Add(15 * time.Minute), CreatedAt: now}

	t.Run("ok", func(t *testing.T) {
		repo, mock := newRepoWithMock(t)
		mock.ExpectExec(insertQ).
			WithArgs("r-1", "u-1", "digest", reset.ExpiresAt, now).
			WillReturnResult(sqlmock.NewResult(0, 1))
		require.NoError(t, repo.Create(context.Background(), reset))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("generates id", func(t *testing.T) {
		repo, mock := newRepoWithMock(t)
		mock.ExpectExec(insertQ).WillReturnResult(sqlmock.NewResult(0, 1))
		r := &models.PasswordReset{UserID: "u-1"}
		require.NoError(t, repo.Create(context.Background(), r))
		assert.NotEmpty(t, r.ID)
	})

	t.Run("outstanding already exists", func(t *testing.T) {
		repo, mock := newRepoWithMock(t)
		mock.ExpectExec(insertQ).WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation})
		require.ErrorIs(t, repo.Create(context.Background(), reset), common.ErrorAlreadyExists)
	})

	t.Run("db error", func(t *testing.T) {
		repo, mock := newRepoWithMock(t)
		mock.ExpectExec(insertQ).WillReturnError(errors.New("db down"))
		err := repo.Create(context.Background(), reset)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "db error")
	})
}

func TestFindOutstanding(t *testing.T) {
	now := time.Now()

	t.Run("found", func(t *testing.T) {
		repo, mock := newRepoWithMock(t)
		mock.ExpectQuery(findQ).WithArgs("u-1").WillReturnRows(
			sqlmock.NewRows([]string{"id", "user_id", "code_hash", "expires_at", "created_at", "failed_attempts"}).
				AddRow("r-2", "u-1", "digest", now.Add(time.Minute), now, 2))

		got, err := repo.FindOutstanding(context.Background(), "u-1")
		require.NoError(t, err)
		assert.Equal(t, "r-2", got.ID)
		assert.Equal(t, "digest", got.CodeHash)
		assert.Nil(t, got.ConsumedAt)
		assert.Equal(t, 2, got.FailedAttempts)
	})

	t.Run("none", func(t *testing.T) {
		repo, mock := newRepoWithMock(t)
		mock.ExpectQuery(findQ).WithArgs("u-1").WillReturnError(sql.ErrNoRows)
		_, err := repo.FindOutstanding(context.Background(), "u-1")
		require.ErrorIs(t, err, common.ErrorNotFound)
	})
}

func TestSupersedeOutstanding(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	at := time.Now()
	mock.ExpectExec(supersedeQ).WithArgs("u-1", at).WillReturnResult(sqlmock.NewResult(0, 2))

	n, err := repo.SupersedeOutstanding(context.Background(), "u-1", at)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
}

func TestRecordFailedAttempt(t *testing.T) {
	at := time.Now()

	t.Run("counted", func(t *testing.T) {
		repo, mock := newRepoWithMock(t)
		mock.ExpectQuery(failedQ).WithArgs("r-1", 5, at).
			WillReturnRows(sqlmock.NewRows([]string{"failed_attempts"}).AddRow(3))

		n, err := repo.RecordFailedAttempt(context.Background(), "r-1", 5, at)
		require.NoError(t, err)
		assert.Equal(t, 3, n)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("no longer outstanding", func(t *testing.T) {
		repo, mock := newRepoWithMock(t)
		mock.ExpectQuery(failedQ).WithArgs("r-1", 5, at).WillReturnError(sql.ErrNoRows)

		_, err := repo.RecordFailedAttempt(context.Background(), "r-1", 5, at)
		require.ErrorIs(t, err, common.ErrorNotFound)
	})

	t.Run("db error", func(t *testing.T) {
		repo, mock := newRepoWithMock(t)
		mock.ExpectQuery(failedQ).WillReturnError(errors.New("db down"))

		_, err := repo.RecordFailedAttempt(context.Background(), "r-1", 5, at)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "db error")
	})
}

func TestMarkConsumed(t *testing.T) {
	at := time.Now()

	t.Run("consumed", func(t *testing.T) {
		repo, mock := newRepoWithMock(t)
		mock.ExpectExec(consumeQ).WithArgs("r-1", at).WillReturnResult(sqlmock.NewResult(0, 1))
		require.NoError(t, repo.MarkConsumed(context.Background(), "r-1", at))
	})

	t.Run("lost the race", func(t *testing.T) {
		repo, mock := newRepoWithMock(t)
		mock.ExpectExec(consumeQ).WithArgs("r-1", at).WillReturnResult(sqlmock.NewResult(0, 0))
		require.ErrorIs(t, repo.MarkConsumed(context.Background(), "r-1", at), common.ErrorNotFound)
	})

	t.Run("db error", func(t *testing.T) {
		repo, mock := newRepoWithMock(t)
		mock.ExpectExec(consumeQ).WillReturnError(errors.New("boom"))
		require.Error(t, repo.MarkConsumed(context.Background(), "r-1", at))
	})
}

func TestDeleteExpired(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	before := time.Now()
	mock.ExpectExec(deleteQ).WithArgs(before).WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := repo.DeleteExpired(context.Background(), before)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
}
