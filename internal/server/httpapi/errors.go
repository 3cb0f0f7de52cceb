package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/innocode-solutions/abp-5dsm-sub002/internal/common"
	"github.com/innocode-solutions/abp-5dsm-sub002/internal/logging"
	"github.com/innocode-solutions/abp-5dsm-sub002/internal/retryx"
)

// Machine-readable codes carried in error bodies.
const (
	codeValidation         = "ValidationError"
	codeCodeInvalid        = "CodeInvalid"
	codeCodeExpired        = "CodeExpired"
	codeInvalidCredentials = "InvalidCredentials"
	codeTokenExpired       = "TokenExpired"
	codeUnauthenticated    = "Unauthenticated"
	codeForbidden          = "Forbidden"
	codeNotFound           = "NotFound"
	codeConflict           = "Conflict"
	codeTooManyRequests    = "TooManyRequests"
	codeUnavailable        = "ServiceUnavailable"
	codeMethodNotAllowed   = "MethodNotAllowed"
	codeInternal           = "InternalError"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// classify maps err onto a status, a code and a message safe to show.
func classify(err error) (int, string, string) {
	switch {
	case errors.Is(err, common.ErrCodeInvalid):
		return http.StatusBadRequest, codeCodeInvalid, "invalid or already used reset code"
	case errors.Is(err, common.ErrCodeExpired):
		return http.StatusBadRequest, codeCodeExpired, "reset code has expired"
	case errors.Is(err, common.ErrValidation):
		return http.StatusBadRequest, codeValidation, err.Error()
	case errors.Is(err, common.ErrInvalidCredentials):
		return http.StatusUnauthorized, codeInvalidCredentials, "invalid email or password"
	case errors.Is(err, common.ErrTokenExpired):
		return http.StatusUnauthorized, codeTokenExpired, "token expired"
	case errors.Is(err, common.ErrTokenMissing):
		return http.StatusUnauthorized, codeUnauthenticated, "missing bearer token"
	case errors.Is(err, common.ErrUnauthenticated):
		return http.StatusUnauthorized, codeUnauthenticated, "invalid token"
	case errors.Is(err, common.ErrForbidden):
		return http.StatusForbidden, codeForbidden, "insufficient permissions"
	case errors.Is(err, common.ErrNotFound):
		return http.StatusNotFound, codeNotFound, "not found"
	case errors.Is(err, common.ErrConflict):
		return http.StatusConflict, codeConflict, "email already registered"
	case errors.Is(err, common.ErrTooManyRequests):
		return http.StatusTooManyRequests, codeTooManyRequests, "too many attempts, try again later"
	case errors.Is(err, common.ErrTransient), retryx.IsTransient(err):
		return http.StatusServiceUnavailable, codeUnavailable, "service temporarily unavailable"
	default:
		return http.StatusInternalServerError, codeInternal, "internal error"
	}
}

// writeError renders err and stops the chain. Server-side failures are
// logged with their oops code and context.
func (a *API) writeError(c *gin.Context, err error) {
	status, code, msg := classify(err)
	if status >= http.StatusInternalServerError {
		logging.LogError(c.Request.Context(), a.logger, "request failed", err,
			"route", c.FullPath(), "request_id", c.GetString(requestIDKey))
	}
	writeJSONError(c, status, code, msg)
}

func writeJSONError(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, errorResponse{Error: msg, Code: code})
}
