package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	apierrors "github.com/moritani/inventory-api/internal/errors"
	"github.com/moritani/inventory-api/internal/middleware"
	"github.com/moritani/inventory-api/internal/services"
)

// UserHandler serves account maintenance endpoints.
type UserHandler struct {
	verificationService *services.VerificationService
}

func NewUserHandler(verificationService *services.VerificationService) *UserHandler {
	return &UserHandler{
		verificationService: verificationService,
	}
}

// RequestEmailChange starts an email change by sending a one-time code to
// the new address. The current email stays active until confirmation.
func (h *UserHandler) RequestEmailChange(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "Not authenticated")
		return
	}

	type EmailChangeRequest struct {
		NewEmail string `json:"new_email" binding:"required,email"`
	}

	var req EmailChangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	if err := h.verificationService.RequestEmailChange(c.Request.Context(), userID, req.NewEmail); err != nil {
		respondVerificationError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"message": "Verification code sent",
	})
}

// ConfirmEmailChange completes an email change with the one-time code.
func (h *UserHandler) ConfirmEmailChange(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "Not authenticated")
		return
	}

	type ConfirmRequest struct {
		Code string `json:"code" binding:"required,len=6"`
	}

	var req ConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	if err := h.verificationService.ConfirmEmailChange(c.Request.Context(), userID, req.Code); err != nil {
		respondVerificationError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Email updated",
	})
}

func respondVerificationError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidEmail):
		apierrors.BadRequest(c, err.Error())
	case errors.Is(err, services.ErrEmailTaken):
		apierrors.Conflict(c, apierrors.ErrCodeEmailTaken, err.Error())
	case errors.Is(err, services.ErrVerificationFailed):
		apierrors.BadRequest(c, err.Error())
	case errors.Is(err, services.ErrUserNotFound):
		apierrors.NotFound(c, err.Error())
	default:
		apierrors.InternalError(c, "Internal server error")
	}
}
