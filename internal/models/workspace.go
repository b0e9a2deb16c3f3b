package models

import (
	"time"

	"gorm.io/gorm"
)

type PlanTier string

const (
	PlanFree     PlanTier = "free"
	PlanPro      PlanTier = "pro"
	PlanBusiness PlanTier = "business"
)

type Workspace struct {
	ID        uint64         `gorm:"primarykey" json:"id"`
	Name      string         `gorm:"type:varchar(255);not null" json:"name"`
	Plan      PlanTier       `gorm:"type:varchar(20);not null;default:'free'" json:"plan"`
	Archived  bool           `gorm:"not null;default:false" json:"archived"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	// Relations
	Members    []WorkspaceMember `gorm:"foreignKey:WorkspaceID" json:"members,omitempty"`
	Categories []Category        `gorm:"foreignKey:WorkspaceID" json:"categories,omitempty"`
}
