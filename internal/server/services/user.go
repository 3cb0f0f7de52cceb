package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/innocode-solutions/abp-5dsm-sub002/internal/common"
	"github.com/innocode-solutions/abp-5dsm-sub002/internal/dbx"
	"github.com/innocode-solutions/abp-5dsm-sub002/internal/logging"
	"github.com/innocode-solutions/abp-5dsm-sub002/internal/retryx"
	"github.com/innocode-solutions/abp-5dsm-sub002/internal/sanitize"
	"github.com/innocode-solutions/abp-5dsm-sub002/internal/server/auth"
	"github.com/innocode-solutions/abp-5dsm-sub002/internal/server/config"
	"github.com/innocode-solutions/abp-5dsm-sub002/internal/server/metrics"
	"github.com/innocode-solutions/abp-5dsm-sub002/internal/server/models"
	"github.com/innocode-solutions/abp-5dsm-sub002/internal/server/ratelimit"
	"github.com/innocode-solutions/abp-5dsm-sub002/internal/server/repositories/repomanager"
	"github.com/samber/oops"
)

const loginAction = "login"

// dummyPassword is hashed once and verified against when the email is
// unknown, so a miss costs as much as a wrong password.
const dummyPassword = "dummy-password-for-timing"

// RegisterInput is a validated registration request.
type RegisterInput struct {
	Email    string
	Password string
	Name     string
	Role     models.Role
}

// LoginResult is returned on successful authentication.
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	ExpiresIn time.Duration
	User      *models.User
}

// UserService registers accounts, authenticates them and manages passwords.
type UserService struct {
	repomanager repomanager.RepositoryManager
	hasher      auth.PasswordHasher
	tokens      *auth.TokenIssuer
	limiter     ratelimit.Limiter
	metrics     *metrics.Metrics
	logger      logging.Logger
	strict      bool
	dbTimeout   time.Duration
	now         func() time.Time

	dummyOnce sync.Once
	dummyHash string
}

func NewUserService(
	m repomanager.RepositoryManager,
	cfg *config.Config,
	hasher auth.PasswordHasher,
	tokens *auth.TokenIssuer,
	limiter ratelimit.Limiter,
	mx *metrics.Metrics,
	logger logging.Logger,
) *UserService {
	if limiter == nil {
		limiter = ratelimit.NopLimiter{}
	}
	return &UserService{
		repomanager: m,
		hasher:      hasher,
		tokens:      tokens,
		limiter:     limiter,
		metrics:     mx,
		logger:      logger.With("service", "users"),
		strict:      cfg.StrictValidation,
		dbTimeout:   cfg.DBTimeout,
		now:         time.Now,
	}
}

// Register creates an account. The name is sanitized; with strict
// validation a name that sanitizing would change is rejected instead.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	user, err := s.register(ctx, in)
	if err != nil {
		s.metrics.Registration(metrics.ResultFailure)
		return nil, err
	}
	s.metrics.Registration(metrics.ResultSuccess)
	return user, nil
}

func (s *UserService) register(ctx context.Context, in RegisterInput) (*models.User, error) {
	email := models.NormalizeEmail(in.Email)
	if email == "" {
		return nil, fmt.Errorf("%w: email is required", common.ErrValidation)
	}

	role := in.Role
	if role == "" {
		role = models.RoleStudent
	}
	if !role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", common.ErrValidation, in.Role)
	}

	name, changed := sanitize.Clean(in.Name)
	if changed && s.strict {
		return nil, fmt.Errorf("%w: name contains markup or disallowed characters", common.ErrValidation)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		if auth.IsTooLong(err) {
			return nil, auth.ErrPasswordTooLong
		}
		return nil, oops.Code("AUTH_REGISTER_FAILED").With("operation", "Hash").Wrap(err)
	}

	now := s.now().UTC()
	user := &models.User{
		Email:        email,
		PasswordHash: hash,
		Name:         name,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	dbCtx, cancel := withTimeout(ctx, s.dbTimeout)
	defer cancel()

	created, err := s.repomanager.Users(s.repomanager.DB()).Create(dbCtx, user)
	if err != nil {
		if errors.Is(err, common.ErrorAlreadyExists) {
			return nil, fmt.Errorf("%w: email already registered", common.ErrConflict)
		}
		return nil, oops.Code("AUTH_REGISTER_FAILED").With("operation", "Create").Wrap(retryx.Mark(err))
	}

	return created, nil
}

// Login checks credentials and issues an access token. Unknown emails and
// wrong passwords both yield common.ErrInvalidCredentials.
func (s *UserService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = models.NormalizeEmail(email)
	key := rateLimitKey(loginAction, email)

	if !allow(ctx, s.limiter, s.logger, key) {
		s.metrics.Login(metrics.ResultLimited)
		return nil, common.ErrTooManyRequests
	}

	user, err := findUserByEmail(ctx, s.repomanager, s.dbTimeout, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.hasher.Verify(password, s.getDummyHash())
			s.metrics.Login(metrics.ResultFailure)
			return nil, common.ErrInvalidCredentials
		}
		s.metrics.Login(metrics.ResultFailure)
		return nil, oops.Code("AUTH_LOGIN_FAILED").With("operation", "GetByEmail").Wrap(err)
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		s.metrics.Login(metrics.ResultFailure)
		return nil, common.ErrInvalidCredentials
	}

	token, expiresAt, err := s.tokens.Issue(user.ID, user.Role, user.Email)
	if err != nil {
		s.metrics.Login(metrics.ResultFailure)
		return nil, oops.Code("AUTH_LOGIN_FAILED").With("operation", "Issue").Wrap(err)
	}

	if err := s.limiter.Reset(ctx, key); err != nil {
		s.logger.Warn(ctx, "rate limit reset failed", "error", err)
	}
	s.metrics.Login(metrics.ResultSuccess)

	return &LoginResult{
		Token:     token,
		ExpiresAt: expiresAt,
		ExpiresIn: s.tokens.TTL(),
		User:      user,
	}, nil
}

// GetByID returns the user or common.ErrNotFound.
func (s *UserService) GetByID(ctx context.Context, id string) (*models.User, error) {
	var user *models.User
	err := retryx.Once(ctx, 0, func(ctx context.Context) error {
		dbCtx, cancel := withTimeout(ctx, s.dbTimeout)
		defer cancel()

		var err error
		user, err = s.repomanager.Users(s.repomanager.DB()).GetByID(dbCtx, id)
		return err
	})
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, fmt.Errorf("%w: user %s", common.ErrNotFound, id)
		}
		return nil, oops.Code("USER_LOOKUP_FAILED").With("operation", "GetByID").With("user_id", id).Wrap(err)
	}
	return user, nil
}

// ChangePassword replaces the password of an authenticated user after
// checking the current one. Outstanding reset codes are superseded.
func (s *UserService) ChangePassword(ctx context.Context, userID, current, next string) error {
	user, err := s.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return common.ErrInvalidCredentials
		}
		return err
	}

	if !s.hasher.Verify(current, user.PasswordHash) {
		return common.ErrInvalidCredentials
	}

	hash, err := s.hasher.Hash(next)
	if err != nil {
		if auth.IsTooLong(err) {
			return auth.ErrPasswordTooLong
		}
		return oops.Code("AUTH_PASSWORD_CHANGE_FAILED").With("operation", "Hash").Wrap(err)
	}

	dbCtx, cancel := withTimeout(ctx, s.dbTimeout)
	defer cancel()

	now := s.now().UTC()
	err = s.repomanager.WithTx(dbCtx, func(ctx context.Context, tx dbx.DBTX) error {
		users := s.repomanager.Users(tx)
		if err := users.LockForUpdate(ctx, user.ID); err != nil {
			return fmt.Errorf("lock user: %w", err)
		}
		if err := users.UpdatePassword(ctx, user.ID, hash, now); err != nil {
			return fmt.Errorf("update password: %w", err)
		}
		if _, err := s.repomanager.PasswordResets(tx).SupersedeOutstanding(ctx, user.ID, now); err != nil {
			return fmt.Errorf("supersede reset codes: %w", err)
		}
		return nil
	})
	if err != nil {
		return oops.Code("AUTH_PASSWORD_CHANGE_FAILED").With("user_id", user.ID).Wrap(retryx.Mark(err))
	}

	s.logger.Info(ctx, "password changed", "user_id", user.ID)
	return nil
}

func (s *UserService) getDummyHash() string {
	s.dummyOnce.Do(func() {
		h, err := s.hasher.Hash(dummyPassword)
		if err != nil {
			s.logger.Error(context.Background(), "dummy hash", "error", err)
			return
		}
		s.dummyHash = h
	})
	return s.dummyHash
}
