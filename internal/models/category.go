package models

import (
	"time"

	"gorm.io/gorm"
)

type Category struct {
	ID          uint64 `gorm:"primarykey" json:"id"`
	WorkspaceID uint64 `gorm:"not null;index" json:"workspace_id"`
	OwnerID     uint64 `gorm:"not null" json:"owner_id"`
	// ManagerID is informational only and confers no access rights.
	ManagerID   *uint64        `json:"manager_id,omitempty"`
	Name        string         `gorm:"type:varchar(255);not null" json:"name"`
	Description string         `gorm:"type:text" json:"description"`
	Public      bool           `gorm:"not null;default:false" json:"public"`
	ShareToken  *string        `gorm:"type:varchar(64);uniqueIndex" json:"share_token,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`

	// Relations
	Workspace Workspace            `gorm:"foreignKey:WorkspaceID" json:"workspace,omitempty"`
	Owner     User                 `gorm:"foreignKey:OwnerID" json:"owner,omitempty"`
	Manager   *User                `gorm:"foreignKey:ManagerID" json:"manager,omitempty"`
	Items     []Item               `gorm:"foreignKey:CategoryID" json:"items,omitempty"`
	Grants    []CategoryPermission `gorm:"foreignKey:CategoryID" json:"grants,omitempty"`
}
