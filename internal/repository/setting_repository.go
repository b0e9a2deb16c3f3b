package repository

import (
	"github.com/moritani/inventory-api/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormSettingRepository is a GORM implementation of SettingRepository
type GormSettingRepository struct {
	db *gorm.DB
}

// NewSettingRepository creates a new SettingRepository
func NewSettingRepository(db *gorm.DB) SettingRepository {
	return &GormSettingRepository{db: db}
}

// Upsert writes the value for (user, key), replacing any previous one
func (r *GormSettingRepository) Upsert(setting *models.UserSetting) error {
	return r.db.
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).
		Create(setting).Error
}

// Find reads the value for (user, key)
func (r *GormSettingRepository) Find(userID uint64, key string) (*models.UserSetting, error) {
	var setting models.UserSetting
	if err := r.db.Where("user_id = ? AND `key` = ?", userID, key).
		First(&setting).Error; err != nil {
		return nil, err
	}
	return &setting, nil
}

// Delete removes the value for (user, key)
func (r *GormSettingRepository) Delete(userID uint64, key string) error {
	return r.db.Where("user_id = ? AND `key` = ?", userID, key).
		Delete(&models.UserSetting{}).Error
}
