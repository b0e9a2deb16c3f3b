package repository

import (
	"github.com/moritani/inventory-api/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormCategoryRepository is a GORM implementation of CategoryRepository
type GormCategoryRepository struct {
	db *gorm.DB
}

// NewCategoryRepository creates a new CategoryRepository
func NewCategoryRepository(db *gorm.DB) CategoryRepository {
	return &GormCategoryRepository{db: db}
}

// Create creates a new category
func (r *GormCategoryRepository) Create(category *models.Category) error {
	return r.db.Create(category).Error
}

// FindByID finds a category within a workspace
func (r *GormCategoryRepository) FindByID(workspaceID, id uint64) (*models.Category, error) {
	var category models.Category
	if err := r.db.Where("workspace_id = ?", workspaceID).
		First(&category, id).Error; err != nil {
		return nil, err
	}
	return &category, nil
}

// FindByShareToken finds a category by its public share token
func (r *GormCategoryRepository) FindByShareToken(token string) (*models.Category, error) {
	var category models.Category
	if err := r.db.Where("share_token = ?", token).
		First(&category).Error; err != nil {
		return nil, err
	}
	return &category, nil
}

// List lists the categories of a workspace
func (r *GormCategoryRepository) List(workspaceID uint64) ([]models.Category, error) {
	var categories []models.Category
	if err := r.db.Where("workspace_id = ?", workspaceID).
		Order("name ASC").
		Find(&categories).Error; err != nil {
		return nil, err
	}
	return categories, nil
}

// Update updates a category
func (r *GormCategoryRepository) Update(category *models.Category) error {
	return r.db.Save(category).Error
}

// Delete removes a category with its items, ledger entries and grants
func (r *GormCategoryRepository) Delete(workspaceID, id uint64) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		var category models.Category
		if err := tx.Where("workspace_id = ?", workspaceID).
			First(&category, id).Error; err != nil {
			return err
		}

		if err := tx.Where("item_id IN (?)",
			tx.Model(&models.Item{}).Select("id").Where("category_id = ?", id),
		).Delete(&models.UsageRecord{}).Error; err != nil {
			return err
		}
		if err := tx.Where("category_id = ?", id).Delete(&models.Item{}).Error; err != nil {
			return err
		}
		if err := tx.Where("category_id = ?", id).Delete(&models.CategoryPermission{}).Error; err != nil {
			return err
		}

		return tx.Delete(&category).Error
	})
}

// UpsertGrant creates or replaces the grant for (category, user)
func (r *GormCategoryRepository) UpsertGrant(grant *models.CategoryPermission) error {
	return r.db.
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "category_id"}, {Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"level", "updated_at"}),
		}).
		Create(grant).Error
}

// RemoveGrant removes the grant for (category, user)
func (r *GormCategoryRepository) RemoveGrant(categoryID, userID uint64) error {
	return r.db.Where("category_id = ? AND user_id = ?", categoryID, userID).
		Delete(&models.CategoryPermission{}).Error
}

// FindGrant finds the grant for (category, user)
func (r *GormCategoryRepository) FindGrant(categoryID, userID uint64) (*models.CategoryPermission, error) {
	var grant models.CategoryPermission
	if err := r.db.Where("category_id = ? AND user_id = ?", categoryID, userID).
		First(&grant).Error; err != nil {
		return nil, err
	}
	return &grant, nil
}

// ListGrants lists all grants on a category
func (r *GormCategoryRepository) ListGrants(categoryID uint64) ([]models.CategoryPermission, error) {
	var grants []models.CategoryPermission
	if err := r.db.Preload("User").
		Where("category_id = ?", categoryID).
		Find(&grants).Error; err != nil {
		return nil, err
	}
	return grants, nil
}
