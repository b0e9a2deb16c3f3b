package models

import "time"

type UsageType string

const (
	UsageIn  UsageType = "in"
	UsageOut UsageType = "out"
)

// UsageRecord is an append-only ledger entry for an item's quantity. The
// running sum of Delta over an item's records always equals its current
// quantity; no record is ever updated or deleted.
type UsageRecord struct {
	ID          uint64    `gorm:"primarykey" json:"id"`
	ItemID      uint64    `gorm:"not null;index" json:"item_id"`
	WorkspaceID uint64    `gorm:"not null;index" json:"workspace_id"`
	UserID      uint64    `gorm:"not null" json:"user_id"`
	Type        UsageType `gorm:"type:varchar(10);not null" json:"type"`
	Delta       int64     `gorm:"not null" json:"delta"`
	Note        string    `gorm:"type:varchar(255)" json:"note"`
	CreatedAt   time.Time `json:"created_at"`

	// Relations
	Item Item `gorm:"foreignKey:ItemID" json:"item,omitempty"`
	User User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}
