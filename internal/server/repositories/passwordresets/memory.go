package passwordresets

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/innocode-solutions/abp-5dsm-sub002/internal/common"
	"github.com/innocode-solutions/abp-5dsm-sub002/internal/server/models"
)

// MemoryRepository keeps reset codes in process memory.
type MemoryRepository struct {
	mu     sync.Mutex
	resets []models.PasswordReset
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

func (r *MemoryRepository) Create(_ context.Context, reset *models.PasswordReset) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.resets {
		if existing.UserID == reset.UserID && outstanding(existing) {
			return common.ErrorAlreadyExists
		}
	}
	if reset.ID == "" {
		reset.ID = uuid.NewString()
	}
	r.resets = append(r.resets, *reset)
	return nil
}

func (r *MemoryRepository) FindOutstanding(_ context.Context, userID string) (*models.PasswordReset, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var found *models.PasswordReset
	for i := range r.resets {
		rs := r.resets[i]
		if rs.UserID != userID || !outstanding(rs) {
			continue
		}
		if found == nil || rs.CreatedAt.After(found.CreatedAt) {
			found = &rs
		}
	}
	if found == nil {
		return nil, common.ErrorNotFound
	}
	return found, nil
}

func (r *MemoryRepository) SupersedeOutstanding(_ context.Context, userID string, at time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for i := range r.resets {
		if r.resets[i].UserID == userID && outstanding(r.resets[i]) {
			t := at
			r.resets[i].SupersededAt = &t
			n++
		}
	}
	return n, nil
}

func (r *MemoryRepository) MarkConsumed(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.resets {
		if r.resets[i].ID == id && outstanding(r.resets[i]) {
			t := at
			r.resets[i].ConsumedAt = &t
			return nil
		}
	}
	return common.ErrorNotFound
}

func (r *MemoryRepository) RecordFailedAttempt(_ context.Context, id string, limit int, at time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.resets {
		rs := &r.resets[i]
		if rs.ID != id || !outstanding(*rs) {
			continue
		}
		rs.FailedAttempts++
		if rs.FailedAttempts >= limit {
			t := at
			rs.SupersededAt = &t
		}
		return rs.FailedAttempts, nil
	}
	return 0, common.ErrorNotFound
}

func (r *MemoryRepository) DeleteExpired(_ context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.resets[:0]
	var n int64
	for _, rs := range r.resets {
		if rs.ExpiresAt.Before(before) {
			n++
			continue
		}
		kept = append(kept, rs)
	}
	r.resets = kept
	return n, nil
}

func outstanding(r models.PasswordReset) bool {
	return r.ConsumedAt == nil && r.SupersededAt == nil
}
