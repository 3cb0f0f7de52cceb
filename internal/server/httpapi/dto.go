package httpapi

import (
	"time"

	"github.com/innocode-solutions/abp-5dsm-sub002/internal/server/models"
)

type registerRequest struct {
	Email    string `json:"email" binding:"required,email,max=254"`
	Password string `json:"password" binding:"required,min=8,max=72"`
	Name     string `json:"name" binding:"max=100"`
	// ADMIN accounts are provisioned out of band.
	Role string `json:"role" binding:"omitempty,oneof=STUDENT PROFESSOR"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email,max=254"`
	Password string `json:"password" binding:"required,max=72"`
}

type forgotPasswordRequest struct {
	Email string `json:"email" binding:"required,email,max=254"`
}

type resetPasswordRequest struct {
	Email       string `json:"email" binding:"required,email,max=254"`
	Code        string `json:"code" binding:"required,max=32"`
	NewPassword string `json:"newPassword" binding:"required,min=8,max=72"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" binding:"required,max=72"`
	NewPassword     string `json:"newPassword" binding:"required,min=8,max=72"`
}

type userResponse struct {
	ID        string      `json:"id"`
	Email     string      `json:"email"`
	Name      string      `json:"name"`
	Role      models.Role `json:"role"`
	CreatedAt time.Time   `json:"createdAt"`
}

func newUserResponse(u *models.User) userResponse {
	return userResponse{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
	}
}

type loginResponse struct {
	Token     string       `json:"token"`
	ExpiresIn int64        `json:"expiresIn"`
	ExpiresAt time.Time    `json:"expiresAt"`
	User      userResponse `json:"user"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type dashboardResponse struct {
	Professor   userResponse `json:"professor"`
	GeneratedAt time.Time    `json:"generatedAt"`
}

type healthResponse struct {
	Status string `json:"status"`
}
