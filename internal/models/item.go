package models

import (
	"time"

	"gorm.io/gorm"
)

type Item struct {
	ID         uint64 `gorm:"primarykey" json:"id"`
	CategoryID uint64 `gorm:"not null;index" json:"category_id"`
	// WorkspaceID is denormalized from the category so every item query can
	// be scoped by tenant without a join.
	WorkspaceID  uint64         `gorm:"not null;index" json:"workspace_id"`
	Name         string         `gorm:"type:varchar(255);not null" json:"name"`
	Quantity     int64          `gorm:"not null;default:0" json:"quantity"`
	Price        *float64       `json:"price,omitempty"`
	PurchaseDate *time.Time     `json:"purchase_date,omitempty"`
	ExpiryDate   *time.Time     `json:"expiry_date,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`

	// Relations
	Category     Category      `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
	UsageRecords []UsageRecord `gorm:"foreignKey:ItemID" json:"usage_records,omitempty"`
}
