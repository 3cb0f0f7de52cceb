package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/innocode-solutions/abp-5dsm-sub002/internal/common"
	"github.com/innocode-solutions/abp-5dsm-sub002/internal/dbx"
	"github.com/innocode-solutions/abp-5dsm-sub002/internal/logging"
	"github.com/innocode-solutions/abp-5dsm-sub002/internal/retryx"
	"github.com/innocode-solutions/abp-5dsm-sub002/internal/server/auth"
	"github.com/innocode-solutions/abp-5dsm-sub002/internal/server/config"
	"github.com/innocode-solutions/abp-5dsm-sub002/internal/server/mail"
	"github.com/innocode-solutions/abp-5dsm-sub002/internal/server/metrics"
	"github.com/innocode-solutions/abp-5dsm-sub002/internal/server/models"
	"github.com/innocode-solutions/abp-5dsm-sub002/internal/server/ratelimit"
	"github.com/innocode-solutions/abp-5dsm-sub002/internal/server/repositories/repomanager"
	"github.com/samber/oops"
)

const (
	forgotAction = "forgot-password"
	redeemAction = "reset-password"
)

// ResetRequestResult reports what RequestReset did. Callers facing the
// public API must not reveal it.
type ResetRequestResult struct {
	Issued    bool
	Delivered bool
	// DeliveryErr is set when a code was stored but the email failed.
	DeliveryErr error
}

// PasswordResetService issues and redeems one-time reset codes.
type PasswordResetService struct {
	repomanager repomanager.RepositoryManager
	hasher      auth.PasswordHasher
	codes       *auth.CodeGenerator
	mailer      mail.Mailer
	limiter     ratelimit.Limiter
	metrics     *metrics.Metrics
	logger      logging.Logger
	validity    time.Duration
	maxAttempts int
	dbTimeout   time.Duration
	now         func() time.Time
}

func NewPasswordResetService(
	m repomanager.RepositoryManager,
	cfg *config.Config,
	hasher auth.PasswordHasher,
	mailer mail.Mailer,
	limiter ratelimit.Limiter,
	mx *metrics.Metrics,
	logger logging.Logger,
) *PasswordResetService {
	if limiter == nil {
		limiter = ratelimit.NopLimiter{}
	}
	return &PasswordResetService{
		repomanager: m,
		hasher:      hasher,
		codes:       auth.NewCodeGenerator([]byte(cfg.SecretKey), cfg.ResetCodeLength),
		mailer:      mailer,
		limiter:     limiter,
		metrics:     mx,
		logger:      logger.With("service", "password-reset"),
		validity:    cfg.ResetCodeValidityDuration,
		maxAttempts: cfg.ResetCodeMaxAttempts,
		dbTimeout:   cfg.DBTimeout,
		now:         time.Now,
	}
}

// RequestReset issues a new code for the account registered under email and
// mails it. An unknown email succeeds without side effects. A failed
// delivery keeps the stored code and is reported in the result.
func (s *PasswordResetService) RequestReset(ctx context.Context, email string) (ResetRequestResult, error) {
	email = models.NormalizeEmail(email)
	if email == "" {
		return ResetRequestResult{}, fmt.Errorf("%w: email is required", common.ErrValidation)
	}

	if !allow(ctx, s.limiter, s.logger, rateLimitKey(forgotAction, email)) {
		s.metrics.ResetRequest(metrics.ResultLimited)
		return ResetRequestResult{}, common.ErrTooManyRequests
	}

	user, err := findUserByEmail(ctx, s.repomanager, s.dbTimeout, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.metrics.ResetRequest(metrics.ResultInvalid)
			return ResetRequestResult{}, nil
		}
		s.metrics.ResetRequest(metrics.ResultFailure)
		return ResetRequestResult{}, oops.Code("RESET_REQUEST_FAILED").With("operation", "GetByEmail").Wrap(err)
	}

	code, err := s.codes.Generate()
	if err != nil {
		s.metrics.ResetRequest(metrics.ResultFailure)
		return ResetRequestResult{}, oops.Code("RESET_REQUEST_FAILED").With("operation", "Generate").Wrap(err)
	}

	now := s.now().UTC()
	reset := &models.PasswordReset{
		UserID:    user.ID,
		CodeHash:  s.codes.Digest(user.ID, code),
		ExpiresAt: now.Add(s.validity),
		CreatedAt: now,
	}

	dbCtx, cancel := withTimeout(ctx, s.dbTimeout)
	defer cancel()

	err = s.repomanager.WithTx(dbCtx, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.Users(tx).LockForUpdate(ctx, user.ID); err != nil {
			return fmt.Errorf("lock user: %w", err)
		}
		resets := s.repomanager.PasswordResets(tx)
		if _, err := resets.SupersedeOutstanding(ctx, user.ID, now); err != nil {
			return fmt.Errorf("supersede reset codes: %w", err)
		}
		if err := resets.Create(ctx, reset); err != nil {
			return fmt.Errorf("create reset code: %w", err)
		}
		return nil
	})
	if err != nil {
		s.metrics.ResetRequest(metrics.ResultFailure)
		return ResetRequestResult{}, oops.Code("RESET_REQUEST_FAILED").With("user_id", user.ID).Wrap(retryx.Mark(err))
	}
	s.metrics.ResetRequest(metrics.ResultSuccess)

	result := ResetRequestResult{Issued: true}
	if err := s.deliver(ctx, user.Email, code, now, reset.ExpiresAt); err != nil {
		logging.LogError(ctx, s.logger, "reset code delivery failed", err, "user_id", user.ID)
		s.metrics.MailDelivery(metrics.ResultFailure)
		result.DeliveryErr = err
		return result, nil
	}

	s.metrics.MailDelivery(metrics.ResultSuccess)
	result.Delivered = true
	s.logger.Info(ctx, "reset code issued", "user_id", user.ID, "expires_at", reset.ExpiresAt)
	return result, nil
}

func (s *PasswordResetService) deliver(ctx context.Context, to, code string, issuedAt, expiresAt time.Time) error {
	msg, err := mail.PasswordResetMessage(to, code, issuedAt, expiresAt)
	if err != nil {
		return oops.Code("RESET_MAIL_FAILED").With("operation", "render").Wrap(err)
	}
	err = retryx.Once(ctx, 0, func(ctx context.Context) error {
		return s.mailer.Send(ctx, msg)
	})
	if err != nil {
		return oops.Code("RESET_MAIL_FAILED").With("operation", "send").Wrap(err)
	}
	return nil
}

// RedeemReset sets a new password if code is the outstanding, unexpired
// code of the account. Unknown email, no outstanding code or a wrong code
// yield common.ErrCodeInvalid; a matching code past its expiry yields
// common.ErrCodeExpired.
func (s *PasswordResetService) RedeemReset(ctx context.Context, email, code, newPassword string) error {
	email = models.NormalizeEmail(email)
	key := rateLimitKey(redeemAction, email)

	if !allow(ctx, s.limiter, s.logger, key) {
		s.metrics.ResetRedemption(metrics.ResultLimited)
		return common.ErrTooManyRequests
	}

	err := s.redeem(ctx, email, code, newPassword)
	switch {
	case err == nil:
		s.metrics.ResetRedemption(metrics.ResultSuccess)
		if err := s.limiter.Reset(ctx, key); err != nil {
			s.logger.Warn(ctx, "rate limit reset failed", "error", err)
		}
	case errors.Is(err, common.ErrCodeExpired):
		s.metrics.ResetRedemption(metrics.ResultExpired)
	case errors.Is(err, common.ErrCodeInvalid):
		s.metrics.ResetRedemption(metrics.ResultInvalid)
	default:
		s.metrics.ResetRedemption(metrics.ResultFailure)
	}
	return err
}

func (s *PasswordResetService) redeem(ctx context.Context, email, code, newPassword string) error {
	if email == "" || code == "" {
		return common.ErrCodeInvalid
	}

	user, err := findUserByEmail(ctx, s.repomanager, s.dbTimeout, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrCodeInvalid
		}
		return oops.Code("RESET_REDEEM_FAILED").With("operation", "GetByEmail").Wrap(err)
	}

	var pending *models.PasswordReset
	err = retryx.Once(ctx, 0, func(ctx context.Context) error {
		dbCtx, cancel := withTimeout(ctx, s.dbTimeout)
		defer cancel()

		var err error
		pending, err = s.repomanager.PasswordResets(s.repomanager.DB()).FindOutstanding(dbCtx, user.ID)
		return err
	})
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrCodeInvalid
		}
		return oops.Code("RESET_REDEEM_FAILED").With("operation", "FindOutstanding").Wrap(err)
	}

	now := s.now().UTC()
	if !s.codes.Matches(user.ID, code, pending.CodeHash) {
		if err := s.recordMismatch(ctx, pending, now); err != nil {
			return err
		}
		return common.ErrCodeInvalid
	}

	if pending.State(now) == models.ResetExpired {
		return common.ErrCodeExpired
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		if auth.IsTooLong(err) {
			return auth.ErrPasswordTooLong
		}
		return oops.Code("RESET_REDEEM_FAILED").With("operation", "Hash").Wrap(err)
	}

	dbCtx, cancel := withTimeout(ctx, s.dbTimeout)
	defer cancel()

	err = s.repomanager.WithTx(dbCtx, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.PasswordResets(tx).MarkConsumed(ctx, pending.ID, now); err != nil {
			return err
		}
		return s.repomanager.Users(tx).UpdatePassword(ctx, user.ID, hash, now)
	})
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			// consumed or superseded by a concurrent request
			return common.ErrCodeInvalid
		}
		return oops.Code("RESET_REDEEM_FAILED").With("user_id", user.ID).Wrap(retryx.Mark(err))
	}

	s.logger.Info(ctx, "password reset", "user_id", user.ID)
	return nil
}

// recordMismatch counts a wrong code against pending. The code is withdrawn
// once maxAttempts guesses have failed.
func (s *PasswordResetService) recordMismatch(ctx context.Context, pending *models.PasswordReset, now time.Time) error {
	if s.maxAttempts <= 0 {
		return nil
	}

	dbCtx, cancel := withTimeout(ctx, s.dbTimeout)
	defer cancel()

	n, err := s.repomanager.PasswordResets(s.repomanager.DB()).RecordFailedAttempt(dbCtx, pending.ID, s.maxAttempts, now)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil
		}
		return oops.Code("RESET_REDEEM_FAILED").With("operation", "RecordFailedAttempt").Wrap(retryx.Mark(err))
	}
	if n >= s.maxAttempts {
		s.logger.Warn(ctx, "reset code withdrawn after failed attempts", "user_id", pending.UserID, "attempts", n)
	}
	return nil
}

// PurgeExpired deletes reset codes that expired before now minus retention.
func (s *PasswordResetService) PurgeExpired(ctx context.Context, retention time.Duration) (int64, error) {
	dbCtx, cancel := withTimeout(ctx, s.dbTimeout)
	defer cancel()

	n, err := s.repomanager.PasswordResets(s.repomanager.DB()).DeleteExpired(dbCtx, s.now().UTC().Add(-retention))
	if err != nil {
		return 0, oops.Code("RESET_PURGE_FAILED").Wrap(retryx.Mark(err))
	}
	s.metrics.ResetCodesPurged(n)
	return n, nil
}
