package repository

import (
	"github.com/moritani/inventory-api/internal/models"
	"gorm.io/gorm"
)

// GormUserRepository is a GORM implementation of UserRepository
type GormUserRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new UserRepository
func NewUserRepository(db *gorm.DB) UserRepository {
	return &GormUserRepository{db: db}
}

// Create creates a new user
func (r *GormUserRepository) Create(user *models.User) error {
	return r.db.Create(user).Error
}

// FindByID finds a user by ID
func (r *GormUserRepository) FindByID(id uint64) (*models.User, error) {
	var user models.User
	if err := r.db.First(&user, id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByUsername finds a user by username
func (r *GormUserRepository) FindByUsername(username string) (*models.User, error) {
	var user models.User
	if err := r.db.Where("username = ?", username).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByEmail finds a user by email
func (r *GormUserRepository) FindByEmail(email string) (*models.User, error) {
	var user models.User
	if err := r.db.Where("email = ?", email).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// Update updates a user
func (r *GormUserRepository) Update(user *models.User) error {
	return r.db.Save(user).Error
}

// SetRefreshTokenHash stores the fingerprint of the live refresh token
func (r *GormUserRepository) SetRefreshTokenHash(userID uint64, hash string) error {
	return r.db.Model(&models.User{}).
		Where("id = ?", userID).
		Update("refresh_token_hash", hash).Error
}

// ClearRefreshTokenHash removes the stored fingerprint
func (r *GormUserRepository) ClearRefreshTokenHash(userID uint64) error {
	return r.db.Model(&models.User{}).
		Where("id = ?", userID).
		Update("refresh_token_hash", "").Error
}

// Delete removes a user and cascades to their owned categories, the items
// and ledgers inside them, their grants, memberships and settings.
func (r *GormUserRepository) Delete(id uint64) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		var categoryIDs []uint64
		if err := tx.Model(&models.Category{}).
			Where("owner_id = ?", id).
			Pluck("id", &categoryIDs).Error; err != nil {
			return err
		}

		if len(categoryIDs) > 0 {
			if err := tx.Where("item_id IN (?)",
				tx.Model(&models.Item{}).Select("id").Where("category_id IN ?", categoryIDs),
			).Delete(&models.UsageRecord{}).Error; err != nil {
				return err
			}
			if err := tx.Where("category_id IN ?", categoryIDs).Delete(&models.Item{}).Error; err != nil {
				return err
			}
			if err := tx.Where("category_id IN ?", categoryIDs).Delete(&models.CategoryPermission{}).Error; err != nil {
				return err
			}
			if err := tx.Where("id IN ?", categoryIDs).Delete(&models.Category{}).Error; err != nil {
				return err
			}
		}

		if err := tx.Where("user_id = ?", id).Delete(&models.CategoryPermission{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", id).Delete(&models.WorkspaceMember{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", id).Delete(&models.UserSetting{}).Error; err != nil {
			return err
		}

		return tx.Delete(&models.User{}, id).Error
	})
}
