package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/innocode-solutions/abp-5dsm-sub002/internal/common"
	"github.com/innocode-solutions/abp-5dsm-sub002/internal/logging"
	"github.com/innocode-solutions/abp-5dsm-sub002/internal/server/auth"
	"github.com/innocode-solutions/abp-5dsm-sub002/internal/server/models"
	"github.com/innocode-solutions/abp-5dsm-sub002/internal/server/services"
)

// forgotPasswordMessage is returned whether or not the account exists.
const forgotPasswordMessage = "If an account exists for this email, a reset code has been sent."

func (a *API) Register(c *gin.Context) {
	var req registerRequest
	if err := bindStrict(c, &req); err != nil {
		a.writeError(c, err)
		return
	}

	user, err := a.users.Register(c.Request.Context(), services.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
		Role:     models.Role(req.Role),
	})
	if err != nil {
		a.writeError(c, err)
		return
	}

	a.logger.Info(c.Request.Context(), "user registered", "user_id", user.ID, "role", user.Role)
	c.JSON(http.StatusCreated, newUserResponse(user))
}

func (a *API) Login(c *gin.Context) {
	var req loginRequest
	if err := bindStrict(c, &req); err != nil {
		a.writeError(c, err)
		return
	}

	res, err := a.users.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		a.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, loginResponse{
		Token:     res.Token,
		ExpiresIn: int64(res.ExpiresIn / time.Second),
		ExpiresAt: res.ExpiresAt,
		User:      newUserResponse(res.User),
	})
}

func (a *API) Me(c *gin.Context) {
	identity, _ := auth.IdentityFromContext(c.Request.Context())

	user, err := a.users.GetByID(c.Request.Context(), identity.UserID)
	if err != nil {
		// the token outlived its account
		if errors.Is(err, common.ErrNotFound) {
			err = common.ErrTokenMalformed
		}
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newUserResponse(user))
}

// ForgotPassword answers uniformly so callers cannot probe for accounts.
// Only a malformed body or rate limiting change the response.
func (a *API) ForgotPassword(c *gin.Context) {
	var req forgotPasswordRequest
	if err := bindStrict(c, &req); err != nil {
		a.writeError(c, err)
		return
	}

	ctx := c.Request.Context()
	_, err := a.resets.RequestReset(ctx, req.Email)
	switch {
	case err == nil:
	case errors.Is(err, common.ErrTooManyRequests), errors.Is(err, common.ErrValidation):
		a.writeError(c, err)
		return
	default:
		logging.LogError(ctx, a.logger, "password reset request failed", err, "request_id", c.GetString(requestIDKey))
	}

	c.JSON(http.StatusOK, messageResponse{Message: forgotPasswordMessage})
}

func (a *API) ResetPassword(c *gin.Context) {
	var req resetPasswordRequest
	if err := bindStrict(c, &req); err != nil {
		a.writeError(c, err)
		return
	}

	if err := a.resets.RedeemReset(c.Request.Context(), req.Email, req.Code, req.NewPassword); err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, messageResponse{Message: "password updated"})
}

func (a *API) ChangePassword(c *gin.Context) {
	var req changePasswordRequest
	if err := bindStrict(c, &req); err != nil {
		a.writeError(c, err)
		return
	}

	identity, _ := auth.IdentityFromContext(c.Request.Context())
	if err := a.users.ChangePassword(c.Request.Context(), identity.UserID, req.CurrentPassword, req.NewPassword); err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, messageResponse{Message: "password updated"})
}

// ProfessorDashboard returns the dashboard envelope of a professor. Access
// is checked by RequireOwner before this runs.
func (a *API) ProfessorDashboard(c *gin.Context) {
	user, err := a.users.GetByID(c.Request.Context(), c.Param("professorId"))
	if err != nil {
		a.writeError(c, err)
		return
	}
	if user.Role != models.RoleProfessor {
		a.writeError(c, common.ErrNotFound)
		return
	}

	c.JSON(http.StatusOK, dashboardResponse{
		Professor:   newUserResponse(user),
		GeneratedAt: time.Now().UTC(),
	})
}

func (a *API) GetUser(c *gin.Context) {
	user, err := a.users.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newUserResponse(user))
}

// Predict forwards the JSON body to the prediction service and relays its
// answer.
func (a *API) Predict(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes))
	if err != nil || !json.Valid(body) {
		a.writeError(c, fmt.Errorf("%w: body must be a JSON document", common.ErrValidation))
		return
	}

	out, err := a.predictions.Predict(c.Request.Context(), body)
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", out)
}

func (a *API) Health(c *gin.Context) {
	if a.health != nil {
		if err := a.health(c.Request.Context()); err != nil {
			a.logger.Warn(c.Request.Context(), "health check failed", "error", err)
			c.JSON(http.StatusServiceUnavailable, healthResponse{Status: "unavailable"})
			return
		}
	}
	c.JSON(http.StatusOK, healthResponse{Status: "ok"})
}
