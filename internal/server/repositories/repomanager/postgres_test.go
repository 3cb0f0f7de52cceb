package repomanager

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/innocode-solutions/abp-5dsm-sub002/internal/dbx"
	"github.com/innocode-solutions/abp-5dsm-sub002/internal/server/repositories/passwordresets"
	"github.com/innocode-solutions/abp-5dsm-sub002/internal/server/repositories/users"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return db, mock
}

func TestNewPostgresRepositoryManager(t *testing.T) {
	db, _ := newDB(t)
	defer db.Close()

	m, err := NewPostgresRepositoryManager(db)
	require.NoError(t, err)
	var _ RepositoryManager = m

	_, err = NewPostgresRepositoryManager(nil)
	require.Error(t, err)
}

func TestFactories_ReturnConcreteRepos(t *testing.T) {
	db, _ := newDB(t)
	defer db.Close()

	m := &PostgresRepositoryManager{db: db}

	var _ users.Repository = m.Users(db)
	var _ passwordresets.Repository = m.PasswordResets(db)
	assert.IsType(t, &users.PostgresRepository{}, m.Users(db))
	assert.IsType(t, &passwordresets.PostgresRepository{}, m.PasswordResets(db))
	assert.Equal(t, db, m.DB())
}

func TestWithTx_CommitsThroughManager(t *testing.T) {
	db, mock := newDB(t)
	defer db.Close()
	mock.ExpectBegin()
	mock.ExpectCommit()

	m := &PostgresRepositoryManager{db: db}
	err := m.WithTx(context.Background(), func(ctx context.Context, tx dbx.DBTX) error {
		if tx == nil {
			return errors.New("nil tx")
		}
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPingAndClose(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	mock.ExpectPing()
	mock.ExpectClose()

	m := &PostgresRepositoryManager{db: db}
	require.NoError(t, m.Ping(context.Background()))
	require.NoError(t, m.Close())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRunMigrations_Success(t *testing.T) {
	db, _ := newDB(t)
	defer db.Close()

	orig := gooseUpContext
	gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		if dir != "." {
			return errors.New("unexpected dir")
		}
		if len(opts) != 0 {
			return errors.New("unexpected opts")
		}
		return nil
	}
	defer func() { gooseUpContext = orig }()

	m := &PostgresRepositoryManager{db: db}
	if err := m.RunMigrations(context.Background()); err != nil {
		t.Fatalf("RunMigrations error: %v", err)
	}
}

func TestRunMigrations_Error(t *testing.T) {
	db, _ := newDB(t)
	defer db.Close()

	orig := gooseUpContext
	gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		return errors.New("boom")
	}
	defer func() { gooseUpContext = orig }()

	m := &PostgresRepositoryManager{db: db}
	if err := m.RunMigrations(context.Background()); err == nil || err.Error() != "boom" {
		t.Fatalf("expected boom, got %v", err)
	}
}

func TestInMemoryRepositoryManager(t *testing.T) {
	m := NewInMemoryRepositoryManager()
	var _ RepositoryManager = m

	ctx := context.Background()
	require.NoError(t, m.RunMigrations(ctx))
	require.NoError(t, m.Ping(ctx))
	assert.Same(t, m.Users(nil), m.Users(m.DB()), "one shared store")

	boom := errors.New("boom")
	err := m.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error { return boom })
	require.ErrorIs(t, err, boom)
	require.NoError(t, m.Close())
}
