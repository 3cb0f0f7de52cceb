package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/innocode-solutions/abp-5dsm-sub002/internal/dbx"
	"github.com/innocode-solutions/abp-5dsm-sub002/internal/logging"
	"github.com/innocode-solutions/abp-5dsm-sub002/internal/server/auth"
	"github.com/innocode-solutions/abp-5dsm-sub002/internal/server/config"
	"github.com/innocode-solutions/abp-5dsm-sub002/internal/server/mail"
	"github.com/innocode-solutions/abp-5dsm-sub002/internal/server/metrics"
	"github.com/innocode-solutions/abp-5dsm-sub002/internal/server/models"
	"github.com/innocode-solutions/abp-5dsm-sub002/internal/server/repositories/passwordresets"
	"github.com/innocode-solutions/abp-5dsm-sub002/internal/server/repositories/repomanager"
	usersrepo "github.com/innocode-solutions/abp-5dsm-sub002/internal/server/repositories/users"
	"github.com/prometheus/client_golang/prometheus"
)

// --- helpers ---

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.SecretKey = "test-secret"
	return cfg
}

// fakeHasher avoids bcrypt cost in tests.
type fakeHasher struct {
	mu       sync.Mutex
	verifies int
}

func (h *fakeHasher) Hash(p string) (string, error) {
	if len(p) > auth.MaxPasswordBytes {
		return "", auth.ErrPasswordTooLong
	}
	return "hashed:" + p, nil
}

func (h *fakeHasher) Verify(p, hash string) bool {
	h.mu.Lock()
	h.verifies++
	h.mu.Unlock()
	return strings.HasPrefix(hash, "hashed:") && hash == "hashed:"+p
}

func (h *fakeHasher) Verifies() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.verifies
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []mail.Message
	err  error
	// fails is the number of leading calls that return err.
	fails int
	calls int
}

func (m *fakeMailer) Send(_ context.Context, msg mail.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil && (m.fails == 0 || m.calls <= m.fails) {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *fakeMailer) Last() (mail.Message, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return mail.Message{}, false
	}
	return m.sent[len(m.sent)-1], true
}

type fakeLimiter struct {
	allow  bool
	err    error
	resets []string
}

func (l *fakeLimiter) Allow(context.Context, string) (bool, error) { return l.allow, l.err }

func (l *fakeLimiter) Reset(_ context.Context, key string) error {
	l.resets = append(l.resets, key)
	return nil
}

// failingUsers fails every call with err.
type failingUsers struct {
	err error
}

func (f *failingUsers) Create(context.Context, *models.User) (*models.User, error) { return nil, f.err }
func (f *failingUsers) GetByEmail(context.Context, string) (*models.User, error)   { return nil, f.err }
func (f *failingUsers) GetByID(context.Context, string) (*models.User, error)      { return nil, f.err }
func (f *failingUsers) UpdatePassword(context.Context, string, string, time.Time) error {
	return f.err
}
func (f *failingUsers) LockForUpdate(context.Context, string) error { return f.err }

// failingWrites serves reads from the wrapped repository and fails every
// write with err.
type failingWrites struct {
	usersrepo.Repository
	err error
}

func (f *failingWrites) Create(context.Context, *models.User) (*models.User, error) {
	return nil, f.err
}
func (f *failingWrites) UpdatePassword(context.Context, string, string, time.Time) error {
	return f.err
}
func (f *failingWrites) LockForUpdate(context.Context, string) error { return f.err }

// fakeRepoManager overrides the users repository of an in-memory manager.
type fakeRepoManager struct {
	*repomanager.InMemoryRepositoryManager
	users  usersrepo.Repository
	resets passwordresets.Repository
	calls  int
}

func (m *fakeRepoManager) Users(db dbx.DBTX) usersrepo.Repository {
	m.calls++
	if m.users != nil {
		return m.users
	}
	return m.InMemoryRepositoryManager.Users(db)
}

func (m *fakeRepoManager) PasswordResets(db dbx.DBTX) passwordresets.Repository {
	if m.resets != nil {
		return m.resets
	}
	return m.InMemoryRepositoryManager.PasswordResets(db)
}

// uncountedResets fails to record wrong guesses.
type uncountedResets struct {
	passwordresets.Repository
	err error
}

func (u *uncountedResets) RecordFailedAttempt(context.Context, string, int, time.Time) (int, error) {
	return 0, u.err
}

var errBoom = errors.New("boom")

type fixture struct {
	cfg     *config.Config
	rm      *repomanager.InMemoryRepositoryManager
	hasher  *fakeHasher
	tokens  *auth.TokenIssuer
	mailer  *fakeMailer
	metrics *metrics.Metrics
	users   *UserService
	resets  *PasswordResetService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		cfg:     testConfig(),
		rm:      repomanager.NewInMemoryRepositoryManager(),
		hasher:  &fakeHasher{},
		mailer:  &fakeMailer{},
		metrics: metrics.New(prometheus.NewRegistry()),
	}
	f.tokens = auth.NewTokenIssuer([]byte(f.cfg.SecretKey), f.cfg.AccessTokenValidityDuration, 0)
	f.users = NewUserService(f.rm, f.cfg, f.hasher, f.tokens, nil, f.metrics, logging.NewNopLogger())
	f.resets = NewPasswordResetService(f.rm, f.cfg, f.hasher, f.mailer, nil, f.metrics, logging.NewNopLogger())
	return f
}

func (f *fixture) register(t *testing.T, email, password string, role models.Role) *models.User {
	t.Helper()
	u, err := f.users.Register(context.Background(), RegisterInput{Email: email, Password: password, Name: "Test", Role: role})
	if err != nil {
		t.Fatalf("register %s: %v", email, err)
	}
	return u
}
