// Package repomanager vends repositories bound to a database handle and
// owns the transaction boundary and schema migrations.
package repomanager

import (
	"context"

	"github.com/innocode-solutions/abp-5dsm-sub002/internal/dbx"
	"github.com/innocode-solutions/abp-5dsm-sub002/internal/server/repositories/passwordresets"
	"github.com/innocode-solutions/abp-5dsm-sub002/internal/server/repositories/users"
)

type RepositoryManager interface {
	RunMigrations(ctx context.Context) error
	Ping(ctx context.Context) error
	// DB is the non-transactional handle for single-statement work.
	DB() dbx.DBTX
	WithTx(ctx context.Context, fn dbx.TxFunc) error
	Users(db dbx.DBTX) users.Repository
	PasswordResets(db dbx.DBTX) passwordresets.Repository
	Close() error
}
