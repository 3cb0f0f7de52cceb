package repomanager

import (
	"context"
	"sync"

	"github.com/innocode-solutions/abp-5dsm-sub002/internal/dbx"
	"github.com/innocode-solutions/abp-5dsm-sub002/internal/server/repositories/passwordresets"
	"github.com/innocode-solutions/abp-5dsm-sub002/internal/server/repositories/users"
)

// InMemoryRepositoryManager serves process-local repositories. Transactions
// are serialized but not rolled back on error.
type InMemoryRepositoryManager struct {
	txMu   sync.Mutex
	users  *users.MemoryRepository
	resets *passwordresets.MemoryRepository
}

func NewInMemoryRepositoryManager() *InMemoryRepositoryManager {
	return &InMemoryRepositoryManager{
		users:  users.NewMemoryRepository(),
		resets: passwordresets.NewMemoryRepository(),
	}
}

func (m *InMemoryRepositoryManager) RunMigrations(context.Context) error { return nil }
func (m *InMemoryRepositoryManager) Ping(context.Context) error          { return nil }
func (m *InMemoryRepositoryManager) DB() dbx.DBTX                        { return nil }
func (m *InMemoryRepositoryManager) Close() error                        { return nil }

func (m *InMemoryRepositoryManager) WithTx(ctx context.Context, fn dbx.TxFunc) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()
	return fn(ctx, nil)
}

func (m *InMemoryRepositoryManager) Users(dbx.DBTX) users.Repository {
	return m.users
}

func (m *InMemoryRepositoryManager) PasswordResets(dbx.DBTX) passwordresets.Repository {
	return m.resets
}
