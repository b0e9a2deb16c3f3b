package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/moritani/inventory-api/internal/constants"
	"github.com/moritani/inventory-api/internal/dto"
	apierrors "github.com/moritani/inventory-api/internal/errors"
	"github.com/moritani/inventory-api/internal/middleware"
	"github.com/moritani/inventory-api/internal/services"
)

// AuthHandler coordinates authentication-related HTTP handlers.
type AuthHandler struct {
	authService *services.AuthService
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authService *services.AuthService) *AuthHandler {
	return &AuthHandler{
		authService: authService,
	}
}

// Register creates a new account and opens a session for it.
func (h *AuthHandler) Register(c *gin.Context) {
	type RegisterRequest struct {
		Username    string `json:"username" binding:"required,min=3,max=50"`
		DisplayName string `json:"display_name"`
		Email       string `json:"email" binding:"required,email"`
		Password    string `json:"password" binding:"required"`
	}

	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	user, pair, err := h.authService.Register(services.RegisterInput{
		Username:    req.Username,
		DisplayName: req.DisplayName,
		Email:       req.Email,
		Password:    req.Password,
	})
	if err != nil {
		respondAuthError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.SessionDTO{
		User:   dto.ToUserDTO(*user, true),
		Tokens: toTokenPairDTO(pair),
	})
}

// Login verifies credentials and opens a session, replacing any previous
// refresh token the account held.
func (h *AuthHandler) Login(c *gin.Context) {
	type LoginRequest struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}

	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	user, pair, err := h.authService.Login(req.Username, req.Password)
	if err != nil {
		respondAuthError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.SessionDTO{
		User:   dto.ToUserDTO(*user, true),
		Tokens: toTokenPairDTO(pair),
	})
}

// Refresh exchanges a live refresh token for a fresh access token.
func (h *AuthHandler) Refresh(c *gin.Context) {
	type RefreshRequest struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}

	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	accessToken, expiresAt, err := h.authService.Refresh(req.RefreshToken)
	if err != nil {
		respondAuthError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.TokenPairDTO{
		AccessToken:     accessToken,
		AccessExpiresAt: expiresAt,
	})
}

// Logout invalidates the caller's refresh token. Safe to call twice.
func (h *AuthHandler) Logout(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "Not authenticated")
		return
	}

	if err := h.authService.Logout(userID); err != nil {
		respondAuthError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Logged out successfully",
	})
}

// GetCurrentUser returns the authenticated user.
func (h *AuthHandler) GetCurrentUser(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "Not authenticated")
		return
	}

	user, err := h.authService.GetUser(userID)
	if err != nil {
		respondAuthError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToUserDTO(*user, true))
}

func toTokenPairDTO(pair *services.TokenPair) dto.TokenPairDTO {
	return dto.TokenPairDTO{
		AccessToken:      pair.AccessToken,
		AccessExpiresAt:  pair.AccessExpiresAt,
		RefreshToken:     pair.RefreshToken,
		RefreshExpiresAt: &pair.RefreshExpiresAt,
	}
}

func respondAuthError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrPasswordTooShort):
		apierrors.BadRequest(c, fmt.Sprintf("Password must be at least %d characters", constants.MinPasswordLength))
	case errors.Is(err, services.ErrEmailTaken):
		apierrors.Conflict(c, apierrors.ErrCodeEmailTaken, err.Error())
	case errors.Is(err, services.ErrUsernameTaken):
		apierrors.Conflict(c, apierrors.ErrCodeUsernameTaken, err.Error())
	case errors.Is(err, services.ErrInvalidCredentials):
		apierrors.RespondWithCode(c, http.StatusUnauthorized, apierrors.ErrCodeInvalidCredentials, err.Error())
	case errors.Is(err, services.ErrRefreshTokenExpired):
		apierrors.RespondWithCode(c, http.StatusUnauthorized, apierrors.ErrCodeRefreshTokenExpired, err.Error())
	case errors.Is(err, services.ErrRefreshSuperseded):
		apierrors.RespondWithCode(c, http.StatusUnauthorized, apierrors.ErrCodeTokenSuperseded, err.Error())
	case errors.Is(err, services.ErrRefreshTokenInvalid):
		apierrors.Unauthorized(c, err.Error())
	case errors.Is(err, services.ErrUserNotFound):
		apierrors.NotFound(c, err.Error())
	case errors.Is(err, services.ErrFailedToHashPassword):
		apierrors.InternalError(c, err.Error())
	default:
		apierrors.InternalError(c, "Internal server error")
	}
}
