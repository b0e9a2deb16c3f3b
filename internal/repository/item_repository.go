package repository

import (
	"errors"

	"github.com/moritani/inventory-api/internal/models"
	"gorm.io/gorm"
)

// GormItemRepository is a GORM implementation of ItemRepository
type GormItemRepository struct {
	db *gorm.DB
}

// NewItemRepository creates a new ItemRepository
func NewItemRepository(db *gorm.DB) ItemRepository {
	return &GormItemRepository{db: db}
}

// Create inserts the item and its opening ledger entry atomically
func (r *GormItemRepository) Create(item *models.Item, record *models.UsageRecord) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(item).Error; err != nil {
			return err
		}
		if record != nil {
			record.ItemID = item.ID
			if err := tx.Create(record).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// FindByID finds an item within a workspace
func (r *GormItemRepository) FindByID(workspaceID, id uint64) (*models.Item, error) {
	var item models.Item
	if err := r.db.Where("workspace_id = ?", workspaceID).
		First(&item, id).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

// ListByCategory lists the items of a category within a workspace
func (r *GormItemRepository) ListByCategory(workspaceID, categoryID uint64) ([]models.Item, error) {
	var items []models.Item
	if err := r.db.Where("workspace_id = ? AND category_id = ?", workspaceID, categoryID).
		Order("name ASC").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// Update saves the item and, when the quantity changed, the compensating
// ledger entry in the same transaction. The WHERE clause pins the quantity
// the caller read, so a concurrent quantity change makes the update miss
// instead of silently overwriting it; zero rows affected is disambiguated
// with a re-read, like ApplyDelta.
func (r *GormItemRepository) Update(item *models.Item, record *models.UsageRecord, readQuantity int64) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Item{}).
			Where("id = ? AND workspace_id = ? AND quantity = ?", item.ID, item.WorkspaceID, readQuantity).
			Updates(map[string]any{
				"name":          item.Name,
				"quantity":      item.Quantity,
				"price":         item.Price,
				"purchase_date": item.PurchaseDate,
				"expiry_date":   item.ExpiryDate,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var current models.Item
			if err := tx.Where("workspace_id = ?", item.WorkspaceID).
				First(&current, item.ID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return gorm.ErrRecordNotFound
				}
				return err
			}
			return ErrStaleItem
		}

		if record != nil {
			if err := tx.Create(record).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// Delete removes an item and its ledger entries
func (r *GormItemRepository) Delete(workspaceID, id uint64) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		var item models.Item
		if err := tx.Where("workspace_id = ?", workspaceID).
			First(&item, id).Error; err != nil {
			return err
		}
		if err := tx.Where("item_id = ?", id).Delete(&models.UsageRecord{}).Error; err != nil {
			return err
		}
		return tx.Delete(&item).Error
	})
}

// ApplyDelta adjusts the quantity with a conditional update and appends the
// ledger entry in the same transaction. The guard `quantity + delta >= 0`
// runs inside the UPDATE itself, so concurrent decrements serialize at the
// storage layer and can never interleave between check and write. Zero rows
// affected means either the item is gone or the decrement would overdraw;
// a re-read inside the transaction distinguishes the two.
func (r *GormItemRepository) ApplyDelta(workspaceID, itemID uint64, record *models.UsageRecord) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Item{}).
			Where("id = ? AND workspace_id = ? AND quantity + ? >= 0", itemID, workspaceID, record.Delta).
			Update("quantity", gorm.Expr("quantity + ?", record.Delta))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var item models.Item
			if err := tx.Where("workspace_id = ?", workspaceID).
				First(&item, itemID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return gorm.ErrRecordNotFound
				}
				return err
			}
			return ErrInsufficientQuantity
		}

		record.ItemID = itemID
		return tx.Create(record).Error
	})
}

// ListUsage lists an item's ledger entries, oldest first
func (r *GormItemRepository) ListUsage(workspaceID, itemID uint64) ([]models.UsageRecord, error) {
	var records []models.UsageRecord
	if err := r.db.Where("workspace_id = ? AND item_id = ?", workspaceID, itemID).
		Order("id ASC").
		Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// SumDeltas sums the ledger deltas for an item
func (r *GormItemRepository) SumDeltas(itemID uint64) (int64, error) {
	var sum *int64
	err := r.db.Model(&models.UsageRecord{}).
		Select("SUM(delta)").
		Where("item_id = ?", itemID).
		Scan(&sum).Error
	if err != nil {
		return 0, err
	}
	if sum == nil {
		return 0, nil
	}
	return *sum, nil
}
