package dto

import (
	"time"

	"github.com/moritani/inventory-api/internal/models"
)

// ItemDTO represents an item in API responses
type ItemDTO struct {
	ID           uint64     `json:"id"`
	CategoryID   uint64     `json:"category_id"`
	Name         string     `json:"name"`
	Quantity     int64      `json:"quantity"`
	Price        *float64   `json:"price"`
	PurchaseDate *time.Time `json:"purchase_date"`
	ExpiryDate   *time.Time `json:"expiry_date"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// UsageRecordDTO represents one ledger entry in API responses
type UsageRecordDTO struct {
	ID        uint64           `json:"id"`
	ItemID    uint64           `json:"item_id"`
	UserID    uint64           `json:"user_id"`
	Type      models.UsageType `json:"type"`
	Delta     int64            `json:"delta"`
	Note      string           `json:"note,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}

// ToItemDTO converts an Item model to ItemDTO
func ToItemDTO(item models.Item) ItemDTO {
	return ItemDTO{
		ID:           item.ID,
		CategoryID:   item.CategoryID,
		Name:         item.Name,
		Quantity:     item.Quantity,
		Price:        item.Price,
		PurchaseDate: item.PurchaseDate,
		ExpiryDate:   item.ExpiryDate,
		CreatedAt:    item.CreatedAt,
		UpdatedAt:    item.UpdatedAt,
	}
}

// ToUsageRecordDTO converts a UsageRecord model to UsageRecordDTO
func ToUsageRecordDTO(record models.UsageRecord) UsageRecordDTO {
	return UsageRecordDTO{
		ID:        record.ID,
		ItemID:    record.ItemID,
		UserID:    record.UserID,
		Type:      record.Type,
		Delta:     record.Delta,
		Note:      record.Note,
		CreatedAt: record.CreatedAt,
	}
}
