package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/moritani/inventory-api/internal/dto"
	apierrors "github.com/moritani/inventory-api/internal/errors"
	"github.com/moritani/inventory-api/internal/services"
)

// SharedHandler serves unauthenticated reads of publicly shared categories.
type SharedHandler struct {
	categoryService *services.CategoryService
	itemService     *services.ItemService
}

func NewSharedHandler(categoryService *services.CategoryService, itemService *services.ItemService) *SharedHandler {
	return &SharedHandler{
		categoryService: categoryService,
		itemService:     itemService,
	}
}

// GetSharedCategory resolves a share token to a read-only view of the
// category and its items. Revoked and unknown tokens both 404.
func (h *SharedHandler) GetSharedCategory(c *gin.Context) {
	token := c.Param("token")

	category, err := h.categoryService.GetByShareToken(token)
	if err != nil {
		if errors.Is(err, services.ErrCategoryNotFound) {
			apierrors.NotFound(c, "Shared category not found")
			return
		}
		apierrors.InternalError(c, "Internal server error")
		return
	}

	items, err := h.itemService.ListShared(category)
	if err != nil {
		apierrors.InternalError(c, "Internal server error")
		return
	}

	c.JSON(http.StatusOK, dto.ToSharedCategoryDTO(*category, items))
}
