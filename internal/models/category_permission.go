package models

import "time"

// PermissionLevel is the explicit access level a grant confers on a category.
type PermissionLevel string

const (
	PermissionView  PermissionLevel = "view"
	PermissionEdit  PermissionLevel = "edit"
	PermissionAdmin PermissionLevel = "admin"
)

// CategoryPermission grants one user an explicit level on one category,
// independent of their workspace role. At most one grant per (category, user).
type CategoryPermission struct {
	CategoryID uint64          `gorm:"primarykey" json:"category_id"`
	UserID     uint64          `gorm:"primarykey" json:"user_id"`
	Level      PermissionLevel `gorm:"type:varchar(20);not null" json:"level"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`

	// Relations
	Category Category `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
	User     User     `gorm:"foreignKey:UserID" json:"user,omitempty"`
}
