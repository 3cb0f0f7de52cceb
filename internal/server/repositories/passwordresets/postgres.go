package passwordresets

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/innocode-solutions/abp-5dsm-sub002/internal/common"
	"github.com/innocode-solutions/abp-5dsm-sub002/internal/dbx"
	"github.com/innocode-solutions/abp-5dsm-sub002/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, reset *models.PasswordReset) error {
	if reset.ID == "" {
		reset.ID = uuid.NewString()
	}

	query :=
		`INSERT INTO password_resets (id, user_id, code_hash, expires_at, created_at)
		 VALUES ($1, $2, $3, $4, $5)
		 `

	_, err := r.db.ExecContext(ctx, query, reset.ID, reset.UserID, reset.CodeHash, reset.ExpiresAt, reset.CreatedAt)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return common.ErrorAlreadyExists
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) FindOutstanding(ctx context.Context, userID string) (*models.PasswordReset, error) {
	query :=
		`SELECT id, user_id, code_hash, expires_at, created_at, failed_attempts FROM password_resets
		 WHERE user_id = $1 AND consumed_at IS NULL AND superseded_at IS NULL
		 ORDER BY created_at DESC
		 LIMIT 1
		 `

	reset := &models.PasswordReset{}
	err := r.db.QueryRowContext(ctx, query, userID).
		Scan(&reset.ID, &reset.UserID, &reset.CodeHash, &reset.ExpiresAt, &reset.CreatedAt, &reset.FailedAttempts)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return reset, nil
}

func (r *PostgresRepository) SupersedeOutstanding(ctx context.Context, userID string, at time.Time) (int64, error) {
	query :=
		`UPDATE password_resets SET superseded_at = $2
		 WHERE user_id = $1 AND consumed_at IS NULL AND superseded_at IS NULL
		 `

	res, err := r.db.ExecContext(ctx, query, userID, at)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

func (r *PostgresRepository) MarkConsumed(ctx context.Context, id string, at time.Time) error {
	query :=
		`UPDATE password_resets SET consumed_at = $2
		 WHERE id = $1 AND consumed_at IS NULL AND superseded_at IS NULL
		 `

	res, err := r.db.ExecContext(ctx, query, id, at)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *PostgresRepository) RecordFailedAttempt(ctx context.Context, id string, limit int, at time.Time) (int, error) {
	query :=
		`UPDATE password_resets
		 SET failed_attempts = failed_attempts + 1,
		     superseded_at = CASE WHEN failed_attempts + 1 >= $2 THEN $3 ELSE superseded_at END
		 WHERE id = $1 AND consumed_at IS NULL AND superseded_at IS NULL
		 RETURNING failed_attempts
		 `

	var n int
	err := r.db.QueryRowContext(ctx, query, id, limit, at).Scan(&n)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, common.ErrorNotFound
		}
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

func (r *PostgresRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	query :=
		`DELETE FROM password_resets
		 WHERE expires_at < $1
		 `

	res, err := r.db.ExecContext(ctx, query, before)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}
