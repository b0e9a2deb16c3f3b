package models

import (
	"time"

	"gorm.io/gorm"
)

type User struct {
	ID           uint64 `gorm:"primarykey" json:"id"`
	Username     string `gorm:"type:varchar(50);uniqueIndex;not null" json:"username"`
	DisplayName  string `gorm:"type:varchar(100);not null" json:"display_name"`
	Email        string `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	PasswordHash string `gorm:"type:varchar(255);not null" json:"-"`
	IsAdmin      bool   `gorm:"not null;default:false" json:"is_admin"`
	NotifyEmail  bool   `gorm:"not null;default:true" json:"notify_email"`
	NotifyPush   bool   `gorm:"not null;default:true" json:"notify_push"`
	// Hash of the single live refresh token. Empty means logged out.
	RefreshTokenHash string         `gorm:"type:varchar(64)" json:"-"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"-"`

	// Relations
	Memberships     []WorkspaceMember    `gorm:"foreignKey:UserID" json:"-"`
	OwnedCategories []Category           `gorm:"foreignKey:OwnerID" json:"-"`
	Grants          []CategoryPermission `gorm:"foreignKey:UserID" json:"-"`
}
