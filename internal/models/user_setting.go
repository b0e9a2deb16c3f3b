package models

import "time"

// Setting keys used by the application.
const (
	SettingActiveWorkspace = "active_workspace"
)

// UserSetting is a per-user key-value row written with an upsert, so each
// (user, key) pair holds at most one value.
type UserSetting struct {
	UserID    uint64    `gorm:"primarykey" json:"user_id"`
	Key       string    `gorm:"primarykey;type:varchar(64)" json:"key"`
	Value     string    `gorm:"type:varchar(255);not null" json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}
