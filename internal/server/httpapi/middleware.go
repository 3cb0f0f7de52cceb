package httpapi

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/innocode-solutions/abp-5dsm-sub002/internal/common"
	"github.com/innocode-solutions/abp-5dsm-sub002/internal/logging"
	"github.com/innocode-solutions/abp-5dsm-sub002/internal/server/auth"
	"github.com/innocode-solutions/abp-5dsm-sub002/internal/server/metrics"
	"github.com/innocode-solutions/abp-5dsm-sub002/internal/server/models"
)

const requestIDKey = "request_id"

// maxRequestIDLength bounds a client supplied request id.
const maxRequestIDLength = 64

// RequestID tags each request with the incoming X-Request-ID or a new UUID
// and echoes it on the response.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(common.RequestIDHeaderName))
		if id == "" || len(id) > maxRequestIDLength {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(common.RequestIDHeaderName, id)
		c.Next()
	}
}

// RequestLogger logs one line per request. Bodies are never logged.
func RequestLogger(logger logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		args := []any{
			"method", c.Request.Method,
			"route", routeOf(c),
			"status", c.Writer.Status(),
			"latency", time.Since(start).String(),
			"client_ip", c.ClientIP(),
			"request_id", c.GetString(requestIDKey),
		}
		if id, ok := auth.IdentityFromContext(c.Request.Context()); ok {
			args = append(args, "user_id", id.UserID)
		}
		logger.Info(c.Request.Context(), "http request", args...)
	}
}

// Metrics records request counts and latency per route template.
func Metrics(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		m.ObserveHTTP(c.Request.Method, routeOf(c), c.Writer.Status(), time.Since(start))
	}
}

// RequireAuth admits requests carrying a valid bearer token and attaches the
// caller identity to the request context. Anything else is a 401.
func RequireAuth(tokens *auth.TokenIssuer, logger logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := bearerToken(c.GetHeader(common.AuthorizationHeaderName))
		if err != nil {
			abortWithError(c, err)
			return
		}

		claims, err := tokens.Verify(token)
		if err != nil {
			logger.Debug(c.Request.Context(), "token rejected", "error", err, "request_id", c.GetString(requestIDKey))
			abortWithError(c, err)
			return
		}

		c.Request = c.Request.WithContext(auth.WithIdentity(c.Request.Context(), claims.Identity()))
		c.Next()
	}
}

func bearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", common.ErrTokenMissing
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, common.BearerScheme) {
		return "", common.ErrTokenMalformed
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", common.ErrTokenMissing
	}
	return token, nil
}

// RequireRoles admits authenticated callers holding one of roles.
func RequireRoles(roles ...models.Role) gin.HandlerFunc {
	return guard(roles, "")
}

// RequireOwner additionally restricts non-admin callers to the resource
// whose owner id is the path parameter param.
func RequireOwner(param string, roles ...models.Role) gin.HandlerFunc {
	return guard(roles, param)
}

func guard(roles []models.Role, ownerParam string) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := auth.IdentityFromContext(c.Request.Context())
		if !ok {
			abortWithError(c, common.ErrTokenMissing)
			return
		}

		policy := auth.Policy{Roles: roles}
		if ownerParam != "" {
			policy.OwnerID = c.Param(ownerParam)
			if policy.OwnerID == "" {
				abortWithError(c, common.ErrForbidden)
				return
			}
		}
		if !auth.Authorize(identity, policy).Allowed() {
			abortWithError(c, common.ErrForbidden)
			return
		}
		c.Next()
	}
}

func abortWithError(c *gin.Context, err error) {
	status, code, msg := classify(err)
	writeJSONError(c, status, code, msg)
}

func routeOf(c *gin.Context) string {
	if r := c.FullPath(); r != "" {
		return r
	}
	return "unmatched"
}
