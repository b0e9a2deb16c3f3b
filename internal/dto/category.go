package dto

import (
	"time"

	"github.com/moritani/inventory-api/internal/models"
	"github.com/moritani/inventory-api/internal/permissions"
)

// CategoryDTO represents a category in API responses
type CategoryDTO struct {
	ID          uint64    `json:"id"`
	WorkspaceID uint64    `json:"workspace_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Public      bool      `json:"public"`
	OwnerID     uint64    `json:"owner_id"`
	ManagerID   *uint64   `json:"manager_id"`
	ShareToken  *string   `json:"share_token,omitempty"`
	YourLevel   string    `json:"your_level,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Owner       *UserDTO  `json:"owner,omitempty"`
}

// CategoryGrantDTO represents a permission grant on a category
type CategoryGrantDTO struct {
	CategoryID uint64                 `json:"category_id"`
	UserID     uint64                 `json:"user_id"`
	Level      models.PermissionLevel `json:"level"`
	User       *UserDTO               `json:"user,omitempty"`
}

// SharedCategoryDTO represents a publicly shared category and its items.
// It deliberately omits workspace and owner identifiers.
type SharedCategoryDTO struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Items       []ItemDTO `json:"items"`
}

// ToCategoryDTO converts a Category model to CategoryDTO. The share token
// is only included for callers who can manage the category.
func ToCategoryDTO(category models.Category, level permissions.Level, includeShareToken bool) CategoryDTO {
	dto := CategoryDTO{
		ID:          category.ID,
		WorkspaceID: category.WorkspaceID,
		Name:        category.Name,
		Description: category.Description,
		Public:      category.Public,
		OwnerID:     category.OwnerID,
		ManagerID:   category.ManagerID,
		CreatedAt:   category.CreatedAt,
		UpdatedAt:   category.UpdatedAt,
	}
	if level != permissions.LevelNone {
		dto.YourLevel = level.String()
	}
	if includeShareToken {
		dto.ShareToken = category.ShareToken
	}
	if category.Owner.ID != 0 {
		owner := ToUserDTO(category.Owner, false)
		dto.Owner = &owner
	}
	return dto
}

// ToCategoryGrantDTO converts a grant to DTO
func ToCategoryGrantDTO(grant models.CategoryPermission) CategoryGrantDTO {
	dto := CategoryGrantDTO{
		CategoryID: grant.CategoryID,
		UserID:     grant.UserID,
		Level:      grant.Level,
	}
	if grant.User.ID != 0 {
		user := ToUserDTO(grant.User, false)
		dto.User = &user
	}
	return dto
}

// ToSharedCategoryDTO converts a shared category and its items to DTO
func ToSharedCategoryDTO(category models.Category, items []models.Item) SharedCategoryDTO {
	itemDTOs := make([]ItemDTO, len(items))
	for i, item := range items {
		itemDTOs[i] = ToItemDTO(item)
	}
	return SharedCategoryDTO{
		Name:        category.Name,
		Description: category.Description,
		Items:       itemDTOs,
	}
}
