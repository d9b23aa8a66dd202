package dto

import (
	"time"

	"github.com/spec-kit/druginsight-api/internal/domain"
)

// UserProfileResponse is the public view of an account.
type UserProfileResponse struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	FirstName    string     `json:"first_name"`
	LastName     string     `json:"last_name"`
	Organization *string    `json:"organization"`
	Role         string     `json:"role"`
	IsActive     bool       `json:"is_active"`
	IsVerified   bool       `json:"is_verified"`
	LastLogin    *time.Time `json:"last_login,omitempty"`
	CreatedAt    *time.Time `json:"created_at,omitempty"`
	UpdatedAt    *time.Time `json:"updated_at,omitempty"`
}

// NewUserProfileResponse maps a user; zero timestamps are omitted.
func NewUserProfileResponse(u *domain.User) UserProfileResponse {
	resp := UserProfileResponse{
		ID:           u.ID,
		Email:        u.Email,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		Organization: u.Organization,
		Role:         u.Role,
		IsActive:     u.IsActive,
		IsVerified:   u.IsVerified,
		LastLogin:    u.LastLogin,
	}
	if !u.CreatedAt.IsZero() {
		resp.CreatedAt = &u.CreatedAt
	}
	if !u.UpdatedAt.IsZero() {
		resp.UpdatedAt = &u.UpdatedAt
	}
	return resp
}

// UpdateProfileRequest payload for PATCH /users/profile.
type UpdateProfileRequest struct {
	FirstName    *string `json:"first_name" validate:"omitempty,min=1,max=100"`
	LastName     *string `json:"last_name" validate:"omitempty,min=1,max=100"`
	Organization *string `json:"organization" validate:"omitempty,max=200"`
}

// ChangePasswordRequest payload for POST /users/password.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8,max=256"`
}
