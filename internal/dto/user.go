package dto

import (
	"time"

	"github.com/moritani/inventory-api/internal/models"
)

// UserDTO represents a user in API responses
type UserDTO struct {
	ID          uint64 `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email,omitempty"`
}

// TokenPairDTO represents issued session tokens. The refresh fields are
// pointers so responses that only carry a fresh access token omit them.
type TokenPairDTO struct {
	AccessToken      string     `json:"access_token"`
	AccessExpiresAt  time.Time  `json:"access_expires_at"`
	RefreshToken     string     `json:"refresh_token,omitempty"`
	RefreshExpiresAt *time.Time `json:"refresh_expires_at,omitempty"`
}

// SessionDTO is the login and register response: the user plus tokens
type SessionDTO struct {
	User   UserDTO      `json:"user"`
	Tokens TokenPairDTO `json:"tokens"`
}

// ToUserDTO converts a User model to UserDTO. The email is only included
// for the account owner's own views.
func ToUserDTO(user models.User, includeEmail bool) UserDTO {
	dto := UserDTO{
		ID:          user.ID,
		Username:    user.Username,
		DisplayName: user.DisplayName,
	}
	if includeEmail {
		dto.Email = user.Email
	}
	return dto
}
