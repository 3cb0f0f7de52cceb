package repomanager

import (
	"context"
	"fmt"

	"github.com/innocode-solutions/abp-5dsm-sub002/internal/server/config"
)

// Open returns the in-memory manager for config.MemoryDSN and a
// PostgreSQL-backed one for anything else.
func Open(ctx context.Context, dsn string) (RepositoryManager, error) {
	if dsn == config.MemoryDSN {
		return NewInMemoryRepositoryManager(), nil
	}

	db, err := OpenPostgres(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	return NewPostgresRepositoryManager(db)
}
