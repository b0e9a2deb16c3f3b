package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/moritani/inventory-api/internal/dto"
	apierrors "github.com/moritani/inventory-api/internal/errors"
	"github.com/moritani/inventory-api/internal/middleware"
	"github.com/moritani/inventory-api/internal/services"
)

// ItemHandler serves item and usage-ledger endpoints within the resolved
// workspace.
type ItemHandler struct {
	itemService *services.ItemService
}

func NewItemHandler(itemService *services.ItemService) *ItemHandler {
	return &ItemHandler{
		itemService: itemService,
	}
}

// itemRequest carries the writable item fields shared by create and update.
type itemRequest struct {
	CategoryID   uint64     `json:"category_id"`
	Name         string     `json:"name" binding:"required"`
	Quantity     int64      `json:"quantity"`
	Price        *float64   `json:"price"`
	PurchaseDate *time.Time `json:"purchase_date"`
	ExpiryDate   *time.Time `json:"expiry_date"`
}

// quantityRequest carries a use or restock amount.
type quantityRequest struct {
	Quantity int64  `json:"quantity" binding:"required,gt=0"`
	Note     string `json:"note"`
}

// CreateItem inserts an item into a category the caller can edit.
func (h *ItemHandler) CreateItem(c *gin.Context) {
	member, exists := middleware.GetMember(c)
	if !exists {
		apierrors.Unauthorized(c, "Not authenticated")
		return
	}

	var req itemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}
	if req.CategoryID == 0 {
		apierrors.BadRequest(c, "category_id is required")
		return
	}

	item, err := h.itemService.Create(member, req.CategoryID, services.ItemInput{
		Name:         req.Name,
		Quantity:     req.Quantity,
		Price:        req.Price,
		PurchaseDate: req.PurchaseDate,
		ExpiryDate:   req.ExpiryDate,
	})
	if err != nil {
		respondItemError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.ToItemDTO(*item))
}

// ListItems lists the items of a category the caller can view.
func (h *ItemHandler) ListItems(c *gin.Context) {
	member, exists := middleware.GetMember(c)
	if !exists {
		apierrors.Unauthorized(c, "Not authenticated")
		return
	}

	categoryID, ok := parseQueryID(c, "category_id")
	if !ok {
		return
	}

	items, err := h.itemService.List(member, categoryID)
	if err != nil {
		respondItemError(c, err)
		return
	}

	out := make([]dto.ItemDTO, len(items))
	for i, item := range items {
		out[i] = dto.ToItemDTO(item)
	}

	c.JSON(http.StatusOK, gin.H{"items": out})
}

// GetItem returns one item.
func (h *ItemHandler) GetItem(c *gin.Context) {
	member, exists := middleware.GetMember(c)
	if !exists {
		apierrors.Unauthorized(c, "Not authenticated")
		return
	}

	itemID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	item, err := h.itemService.Get(member, itemID)
	if err != nil {
		respondItemError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToItemDTO(*item))
}

// UpdateItem edits item fields; a direct quantity change is reconciled
// into the usage ledger.
func (h *ItemHandler) UpdateItem(c *gin.Context) {
	member, exists := middleware.GetMember(c)
	if !exists {
		apierrors.Unauthorized(c, "Not authenticated")
		return
	}

	itemID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req itemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	item, err := h.itemService.Update(member, itemID, services.ItemInput{
		Name:         req.Name,
		Quantity:     req.Quantity,
		Price:        req.Price,
		PurchaseDate: req.PurchaseDate,
		ExpiryDate:   req.ExpiryDate,
	})
	if err != nil {
		respondItemError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToItemDTO(*item))
}

// DeleteItem removes an item and its ledger.
func (h *ItemHandler) DeleteItem(c *gin.Context) {
	member, exists := middleware.GetMember(c)
	if !exists {
		apierrors.Unauthorized(c, "Not authenticated")
		return
	}

	itemID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.itemService.Delete(member, itemID); err != nil {
		respondItemError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Item deleted"})
}

// UseItem consumes stock. Concurrent uses cannot oversell; the loser gets
// an INSUFFICIENT_QUANTITY conflict.
func (h *ItemHandler) UseItem(c *gin.Context) {
	member, exists := middleware.GetMember(c)
	if !exists {
		apierrors.Unauthorized(c, "Not authenticated")
		return
	}

	itemID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req quantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	item, err := h.itemService.Use(member, itemID, req.Quantity, req.Note)
	if err != nil {
		respondItemError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToItemDTO(*item))
}

// RestockItem adds stock.
func (h *ItemHandler) RestockItem(c *gin.Context) {
	member, exists := middleware.GetMember(c)
	if !exists {
		apierrors.Unauthorized(c, "Not authenticated")
		return
	}

	itemID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req quantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	item, err := h.itemService.Restock(member, itemID, req.Quantity, req.Note)
	if err != nil {
		respondItemError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToItemDTO(*item))
}

// ListUsage returns an item's ledger entries, oldest first.
func (h *ItemHandler) ListUsage(c *gin.Context) {
	member, exists := middleware.GetMember(c)
	if !exists {
		apierrors.Unauthorized(c, "Not authenticated")
		return
	}

	itemID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	records, err := h.itemService.ListUsage(member, itemID)
	if err != nil {
		respondItemError(c, err)
		return
	}

	out := make([]dto.UsageRecordDTO, len(records))
	for i, record := range records {
		out[i] = dto.ToUsageRecordDTO(record)
	}

	c.JSON(http.StatusOK, gin.H{"usage": out})
}

func parseQueryID(c *gin.Context, name string) (uint64, bool) {
	value := c.Query(name)
	if value == "" {
		apierrors.BadRequest(c, name+" is required")
		return 0, false
	}
	id, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		apierrors.BadRequest(c, "Invalid "+name)
		return 0, false
	}
	return id, true
}

func respondItemError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidItemName),
		errors.Is(err, services.ErrInvalidQuantity),
		errors.Is(err, services.ErrNegativeQuantity):
		apierrors.BadRequest(c, err.Error())
	case errors.Is(err, services.ErrItemNotFound),
		errors.Is(err, services.ErrCategoryNotFound):
		apierrors.NotFound(c, err.Error())
	case errors.Is(err, services.ErrCategoryForbidden):
		apierrors.Forbidden(c, err.Error())
	case errors.Is(err, services.ErrInsufficientQuantity):
		apierrors.Conflict(c, apierrors.ErrCodeInsufficientQuantity, err.Error())
	case errors.Is(err, services.ErrItemConflict):
		apierrors.Conflict(c, apierrors.ErrCodeConflict, err.Error())
	default:
		apierrors.InternalError(c, "Internal server error")
	}
}
