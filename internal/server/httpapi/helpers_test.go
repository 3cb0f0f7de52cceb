package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/innocode-solutions/abp-5dsm-sub002/internal/dbx"
	"github.com/innocode-solutions/abp-5dsm-sub002/internal/logging"
	"github.com/innocode-solutions/abp-5dsm-sub002/internal/server/auth"
	"github.com/innocode-solutions/abp-5dsm-sub002/internal/server/config"
	"github.com/innocode-solutions/abp-5dsm-sub002/internal/server/mail"
	"github.com/innocode-solutions/abp-5dsm-sub002/internal/server/metrics"
	"github.com/innocode-solutions/abp-5dsm-sub002/internal/server/models"
	"github.com/innocode-solutions/abp-5dsm-sub002/internal/server/repositories/repomanager"
	usersrepo "github.com/innocode-solutions/abp-5dsm-sub002/internal/server/repositories/users"
	"github.com/innocode-solutions/abp-5dsm-sub002/internal/server/services"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

// plainHasher keeps handler tests fast; bcrypt is covered in package auth.
type plainHasher struct{}

func (plainHasher) Hash(p string) (string, error) {
	if len(p) > auth.MaxPasswordBytes {
		return "", auth.ErrPasswordTooLong
	}
	return "plain$" + p, nil
}

func (plainHasher) Verify(p, hash string) bool { return hash == "plain$"+p }

type captureMailer struct {
	mu   sync.Mutex
	sent []mail.Message
}

func (m *captureMailer) Send(_ context.Context, msg mail.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return nil
}

var codeRe = regexp.MustCompile(`\b(\d{6})\b`)

func (m *captureMailer) lastCode(t *testing.T) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.sent, "no mail sent")
	match := codeRe.FindStringSubmatch(m.sent[len(m.sent)-1].Text)
	require.Len(t, match, 2)
	return match[1]
}

type fakePredictor struct {
	out json.RawMessage
	err error
	got json.RawMessage
}

func (p *fakePredictor) Predict(_ context.Context, payload json.RawMessage) (json.RawMessage, error) {
	p.got = payload
	return p.out, p.err
}

// timeoutWrites fails user writes the way a database past its deadline does.
type timeoutWrites struct {
	usersrepo.Repository
}

func (timeoutWrites) Create(context.Context, *models.User) (*models.User, error) {
	return nil, fmt.Errorf("db error: %w", context.DeadlineExceeded)
}

type timeoutWritesManager struct {
	*repomanager.InMemoryRepositoryManager
}

func (m timeoutWritesManager) Users(db dbx.DBTX) usersrepo.Repository {
	return timeoutWrites{Repository: m.InMemoryRepositoryManager.Users(db)}
}

type testEnv struct {
	cfg       *config.Config
	rm        *repomanager.InMemoryRepositoryManager
	tokens    *auth.TokenIssuer
	mailer    *captureMailer
	predictor *fakePredictor
	users     *services.UserService
	handler   http.Handler
	healthErr error
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithRepos(t, nil)
}

// newTestEnvWithRepos lets wrap replace the repository manager the services
// see; env.rm stays the underlying store.
func newTestEnvWithRepos(t *testing.T, wrap func(*repomanager.InMemoryRepositoryManager) repomanager.RepositoryManager) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.SecretKey = "handler-test-secret"

	env := &testEnv{
		cfg:       cfg,
		rm:        repomanager.NewInMemoryRepositoryManager(),
		mailer:    &captureMailer{},
		predictor: &fakePredictor{out: json.RawMessage(`{"risk":0.3}`)},
	}
	env.tokens = auth.NewTokenIssuer([]byte(cfg.SecretKey), cfg.AccessTokenValidityDuration, 0)

	var repos repomanager.RepositoryManager = env.rm
	if wrap != nil {
		repos = wrap(env.rm)
	}

	logger := logging.NewNopLogger()
	mx := metrics.New(prometheus.NewRegistry())
	env.users = services.NewUserService(repos, cfg, plainHasher{}, env.tokens, nil, mx, logger)
	resets := services.NewPasswordResetService(repos, cfg, plainHasher{}, env.mailer, nil, mx, logger)

	health := func(ctx context.Context) error { return env.healthErr }
	env.handler = NewAPI(env.users, resets, env.predictor, env.tokens, health, mx, logger).Routes()
	return env
}

func (e *testEnv) do(t *testing.T, method, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

// seed creates a user directly through the service, bypassing the
// self-registration role restriction.
func (e *testEnv) seed(t *testing.T, email string, role models.Role) *models.User {
	t.Helper()
	u, err := e.users.Register(context.Background(), services.RegisterInput{
		Email:    email,
		Password: "S3cure!pass",
		Name:     "Seeded",
		Role:     role,
	})
	require.NoError(t, err)
	return u
}

func (e *testEnv) login(t *testing.T, email, password string) string {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/auth/login", `{"email":"`+email+`","password":"`+password+`"}`, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp loginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Token
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return resp
}

func newRecorder(env *testEnv, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	return rec
}
