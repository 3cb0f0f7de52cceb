// Package httpapi exposes the server over HTTP/JSON using gin.
package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/innocode-solutions/abp-5dsm-sub002/internal/logging"
	"github.com/innocode-solutions/abp-5dsm-sub002/internal/server/auth"
	"github.com/innocode-solutions/abp-5dsm-sub002/internal/server/metrics"
	"github.com/innocode-solutions/abp-5dsm-sub002/internal/server/models"
	"github.com/innocode-solutions/abp-5dsm-sub002/internal/server/services"
)

type UserService interface {
	Register(ctx context.Context, in services.RegisterInput) (*models.User, error)
	Login(ctx context.Context, email, password string) (*services.LoginResult, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	ChangePassword(ctx context.Context, userID, current, next string) error
}

type PasswordResetService interface {
	RequestReset(ctx context.Context, email string) (services.ResetRequestResult, error)
	RedeemReset(ctx context.Context, email, code, newPassword string) error
}

type Predictor interface {
	Predict(ctx context.Context, payload json.RawMessage) (json.RawMessage, error)
}

// HealthFunc reports whether the storage backend is reachable.
type HealthFunc func(ctx context.Context) error

// API holds the HTTP handlers and the collaborators they call.
type API struct {
	users       UserService
	resets      PasswordResetService
	predictions Predictor
	tokens      *auth.TokenIssuer
	health      HealthFunc
	metrics     *metrics.Metrics
	logger      logging.Logger
}

func NewAPI(
	users UserService,
	resets PasswordResetService,
	predictions Predictor,
	tokens *auth.TokenIssuer,
	health HealthFunc,
	mx *metrics.Metrics,
	logger logging.Logger,
) *API {
	return &API{
		users:       users,
		resets:      resets,
		predictions: predictions,
		tokens:      tokens,
		health:      health,
		metrics:     mx,
		logger:      logger.With("module", "http_api"),
	}
}

// Routes builds the gin engine with every endpoint and middleware attached.
func (a *API) Routes() *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(
		RequestID(),
		a.recovery(),
		RequestLogger(a.logger),
		Metrics(a.metrics),
	)

	r.NoRoute(func(c *gin.Context) {
		writeJSONError(c, http.StatusNotFound, codeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		writeJSONError(c, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
	})

	r.GET("/healthz", a.Health)
	r.GET("/metrics", gin.WrapH(a.metrics.Handler()))

	requireAuth := RequireAuth(a.tokens, a.logger)

	authGroup := r.Group("/auth")
	authGroup.POST("/register", a.Register)
	authGroup.POST("/login", a.Login)
	authGroup.POST("/forgot-password", a.ForgotPassword)
	authGroup.POST("/reset-password", a.ResetPassword)
	authGroup.GET("/me", requireAuth, a.Me)
	authGroup.PUT("/password", requireAuth, a.ChangePassword)

	r.GET("/dashboard/professors/:professorId",
		requireAuth,
		RequireOwner("professorId", models.RoleProfessor, models.RoleAdmin),
		a.ProfessorDashboard,
	)
	r.GET("/users/:id", requireAuth, RequireRoles(models.RoleAdmin), a.GetUser)
	r.POST("/predictions", requireAuth, RequireRoles(models.RoleProfessor, models.RoleAdmin), a.Predict)

	return r
}

func (a *API) recovery() gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(io.Discard, func(c *gin.Context, rec any) {
		a.logger.Error(c.Request.Context(), "panic in handler", "panic", rec, "route", c.FullPath())
		writeJSONError(c, http.StatusInternalServerError, codeInternal, "internal error")
	})
}
