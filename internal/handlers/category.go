package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/moritani/inventory-api/internal/dto"
	apierrors "github.com/moritani/inventory-api/internal/errors"
	"github.com/moritani/inventory-api/internal/middleware"
	"github.com/moritani/inventory-api/internal/models"
	"github.com/moritani/inventory-api/internal/permissions"
	"github.com/moritani/inventory-api/internal/services"
)

// CategoryHandler serves category endpoints within the resolved workspace.
type CategoryHandler struct {
	categoryService *services.CategoryService
}

func NewCategoryHandler(categoryService *services.CategoryService) *CategoryHandler {
	return &CategoryHandler{
		categoryService: categoryService,
	}
}

// categoryRequest carries the writable category fields shared by create
// and update.
type categoryRequest struct {
	Name        string  `json:"name" binding:"required"`
	Description string  `json:"description"`
	Public      bool    `json:"public"`
	ManagerID   *uint64 `json:"manager_id"`
}

// CreateCategory creates a category owned by the caller.
func (h *CategoryHandler) CreateCategory(c *gin.Context) {
	member, exists := middleware.GetMember(c)
	if !exists {
		apierrors.Unauthorized(c, "Not authenticated")
		return
	}

	var req categoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	category, err := h.categoryService.Create(member, services.CategoryInput{
		Name:        req.Name,
		Description: req.Description,
		Public:      req.Public,
		ManagerID:   req.ManagerID,
	})
	if err != nil {
		respondCategoryError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.ToCategoryDTO(*category, permissions.LevelAdmin, true))
}

// ListCategories lists the categories the caller can at least view.
func (h *CategoryHandler) ListCategories(c *gin.Context) {
	member, exists := middleware.GetMember(c)
	if !exists {
		apierrors.Unauthorized(c, "Not authenticated")
		return
	}

	categories, err := h.categoryService.List(member)
	if err != nil {
		respondCategoryError(c, err)
		return
	}

	out := make([]dto.CategoryDTO, len(categories))
	for i, category := range categories {
		out[i] = dto.ToCategoryDTO(category, permissions.LevelNone, false)
	}

	c.JSON(http.StatusOK, gin.H{"categories": out})
}

// GetCategory returns one category with the caller's effective level.
func (h *CategoryHandler) GetCategory(c *gin.Context) {
	member, exists := middleware.GetMember(c)
	if !exists {
		apierrors.Unauthorized(c, "Not authenticated")
		return
	}

	categoryID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	category, level, err := h.categoryService.Get(member, categoryID)
	if err != nil {
		respondCategoryError(c, err)
		return
	}

	manageable := permissions.CanManageCategory(member.Role, category, member.UserID)
	c.JSON(http.StatusOK, dto.ToCategoryDTO(*category, level, manageable))
}

// UpdateCategory edits a category.
func (h *CategoryHandler) UpdateCategory(c *gin.Context) {
	member, exists := middleware.GetMember(c)
	if !exists {
		apierrors.Unauthorized(c, "Not authenticated")
		return
	}

	categoryID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req categoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	category, err := h.categoryService.Update(member, categoryID, services.CategoryInput{
		Name:        req.Name,
		Description: req.Description,
		Public:      req.Public,
		ManagerID:   req.ManagerID,
	})
	if err != nil {
		respondCategoryError(c, err)
		return
	}

	manageable := permissions.CanManageCategory(member.Role, category, member.UserID)
	c.JSON(http.StatusOK, dto.ToCategoryDTO(*category, permissions.LevelNone, manageable))
}

// DeleteCategory removes a category with its items and grants.
func (h *CategoryHandler) DeleteCategory(c *gin.Context) {
	member, exists := middleware.GetMember(c)
	if !exists {
		apierrors.Unauthorized(c, "Not authenticated")
		return
	}

	categoryID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.categoryService.Delete(member, categoryID); err != nil {
		respondCategoryError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Category deleted"})
}

// ListGrants lists a category's permission grants.
func (h *CategoryHandler) ListGrants(c *gin.Context) {
	member, exists := middleware.GetMember(c)
	if !exists {
		apierrors.Unauthorized(c, "Not authenticated")
		return
	}

	categoryID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	grants, err := h.categoryService.ListGrants(member, categoryID)
	if err != nil {
		respondCategoryError(c, err)
		return
	}

	out := make([]dto.CategoryGrantDTO, len(grants))
	for i, grant := range grants {
		out[i] = dto.ToCategoryGrantDTO(grant)
	}

	c.JSON(http.StatusOK, gin.H{"permissions": out})
}

// Grant creates or replaces a user's grant on a category.
func (h *CategoryHandler) Grant(c *gin.Context) {
	member, exists := middleware.GetMember(c)
	if !exists {
		apierrors.Unauthorized(c, "Not authenticated")
		return
	}

	categoryID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	type GrantRequest struct {
		Username string                 `json:"username" binding:"required"`
		Level    models.PermissionLevel `json:"level" binding:"required"`
	}

	var req GrantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	grant, err := h.categoryService.Grant(member, categoryID, req.Username, req.Level)
	if err != nil {
		respondCategoryError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.ToCategoryGrantDTO(*grant))
}

// Revoke removes a user's grant on a category.
func (h *CategoryHandler) Revoke(c *gin.Context) {
	member, exists := middleware.GetMember(c)
	if !exists {
		apierrors.Unauthorized(c, "Not authenticated")
		return
	}

	categoryID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	targetID, ok := parseIDParam(c, "user_id")
	if !ok {
		return
	}

	if err := h.categoryService.Revoke(member, categoryID, targetID); err != nil {
		respondCategoryError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Permission revoked"})
}

// Share enables public sharing, minting a fresh token on every call.
func (h *CategoryHandler) Share(c *gin.Context) {
	member, exists := middleware.GetMember(c)
	if !exists {
		apierrors.Unauthorized(c, "Not authenticated")
		return
	}

	categoryID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	category, err := h.categoryService.EnableShare(member, categoryID)
	if err != nil {
		respondCategoryError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"share_token": category.ShareToken})
}

// Unshare disables public sharing.
func (h *CategoryHandler) Unshare(c *gin.Context) {
	member, exists := middleware.GetMember(c)
	if !exists {
		apierrors.Unauthorized(c, "Not authenticated")
		return
	}

	categoryID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.categoryService.DisableShare(member, categoryID); err != nil {
		respondCategoryError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Sharing disabled"})
}

func respondCategoryError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidCategoryName),
		errors.Is(err, services.ErrInvalidGrantLevel),
		errors.Is(err, services.ErrGrantToOwner),
		errors.Is(err, services.ErrShareNotEnabled):
		apierrors.BadRequest(c, err.Error())
	case errors.Is(err, services.ErrCategoryNotFound),
		errors.Is(err, services.ErrGrantNotFound),
		errors.Is(err, services.ErrUserNotFound):
		apierrors.NotFound(c, err.Error())
	case errors.Is(err, services.ErrCategoryForbidden):
		apierrors.Forbidden(c, err.Error())
	default:
		apierrors.InternalError(c, "Internal server error")
	}
}
