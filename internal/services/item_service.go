package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/moritani/inventory-api/internal/models"
	"github.com/moritani/inventory-api/internal/permissions"
	"github.com/moritani/inventory-api/internal/repository"
)

var (
	ErrItemNotFound         = errors.New("item not found")
	ErrInvalidItemName      = errors.New("item name cannot be empty")
	ErrInvalidQuantity      = errors.New("quantity must be positive")
	ErrNegativeQuantity     = errors.New("quantity cannot be negative")
	ErrInsufficientQuantity = errors.New("not enough quantity in stock")
	ErrItemConflict         = errors.New("item is being modified concurrently, try again")
)

// updateAttempts bounds the re-read-and-retry loop on concurrent edits.
const updateAttempts = 3

// ItemService manages items and their usage ledger. Access is derived from
// the containing category: viewing an item needs view on the category,
// changing it needs edit. Every quantity change appends a ledger entry in
// the same transaction, so the ledger always sums to the stored quantity.
type ItemService struct {
	itemRepo   repository.ItemRepository
	categories *CategoryService
}

func NewItemService(itemRepo repository.ItemRepository, categories *CategoryService) *ItemService {
	return &ItemService{itemRepo: itemRepo, categories: categories}
}

// ItemInput carries the writable item fields.
type ItemInput struct {
	Name         string
	Quantity     int64
	Price        *float64
	PurchaseDate *time.Time
	ExpiryDate   *time.Time
}

// Create inserts an item into a category the caller can edit. A non-zero
// starting quantity gets an opening ledger entry.
func (s *ItemService) Create(member *models.WorkspaceMember, categoryID uint64, input ItemInput) (*models.Item, error) {
	if _, _, err := s.categories.require(member, categoryID, permissions.LevelEdit); err != nil {
		return nil, mapCategoryErr(err)
	}
	if strings.TrimSpace(input.Name) == "" {
		return nil, ErrInvalidItemName
	}
	if input.Quantity < 0 {
		return nil, ErrNegativeQuantity
	}

	item := &models.Item{
		CategoryID:   categoryID,
		WorkspaceID:  member.WorkspaceID,
		Name:         strings.TrimSpace(input.Name),
		Quantity:     input.Quantity,
		Price:        input.Price,
		PurchaseDate: input.PurchaseDate,
		ExpiryDate:   input.ExpiryDate,
	}

	var record *models.UsageRecord
	if input.Quantity > 0 {
		record = &models.UsageRecord{
			WorkspaceID: member.WorkspaceID,
			UserID:      member.UserID,
			Type:        models.UsageIn,
			Delta:       input.Quantity,
			Note:        "initial stock",
		}
	}

	if err := s.itemRepo.Create(item, record); err != nil {
		return nil, fmt.Errorf("failed to create item: %w", err)
	}
	return item, nil
}

// List returns the items of a category the caller can view.
func (s *ItemService) List(member *models.WorkspaceMember, categoryID uint64) ([]models.Item, error) {
	if _, _, err := s.categories.require(member, categoryID, permissions.LevelView); err != nil {
		return nil, mapCategoryErr(err)
	}
	items, err := s.itemRepo.ListByCategory(member.WorkspaceID, categoryID)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	return items, nil
}

// ListShared returns the items of an already-resolved shared category.
// The share token is the authorization; callers resolve it first.
func (s *ItemService) ListShared(category *models.Category) ([]models.Item, error) {
	items, err := s.itemRepo.ListByCategory(category.WorkspaceID, category.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	return items, nil
}

// Get returns an item the caller can at least view.
func (s *ItemService) Get(member *models.WorkspaceMember, itemID uint64) (*models.Item, error) {
	item, _, err := s.require(member, itemID, permissions.LevelView)
	return item, err
}

// Update edits item fields. A direct quantity edit is reconciled into the
// ledger with a compensating entry so the ledger keeps summing to the
// stored quantity. The write is guarded by the quantity read here; when a
// concurrent change wins the race, the edit is recomputed against a fresh
// read instead of overwriting it.
func (s *ItemService) Update(member *models.WorkspaceMember, itemID uint64, input ItemInput) (*models.Item, error) {
	if strings.TrimSpace(input.Name) == "" {
		return nil, ErrInvalidItemName
	}
	if input.Quantity < 0 {
		return nil, ErrNegativeQuantity
	}

	for attempt := 0; attempt < updateAttempts; attempt++ {
		item, _, err := s.require(member, itemID, permissions.LevelEdit)
		if err != nil {
			return nil, err
		}
		readQuantity := item.Quantity

		var record *models.UsageRecord
		if delta := input.Quantity - readQuantity; delta != 0 {
			usageType := models.UsageIn
			if delta < 0 {
				usageType = models.UsageOut
			}
			record = &models.UsageRecord{
				ItemID:      item.ID,
				WorkspaceID: member.WorkspaceID,
				UserID:      member.UserID,
				Type:        usageType,
				Delta:       delta,
				Note:        "quantity adjustment",
			}
		}

		item.Name = strings.TrimSpace(input.Name)
		item.Quantity = input.Quantity
		item.Price = input.Price
		item.PurchaseDate = input.PurchaseDate
		item.ExpiryDate = input.ExpiryDate

		err = s.itemRepo.Update(item, record, readQuantity)
		if errors.Is(err, repository.ErrStaleItem) {
			continue
		}
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrItemNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("failed to update item: %w", err)
		}
		return item, nil
	}
	return nil, ErrItemConflict
}

// Delete removes an item and its ledger. Requires edit on the category.
func (s *ItemService) Delete(member *models.WorkspaceMember, itemID uint64) error {
	if _, _, err := s.require(member, itemID, permissions.LevelEdit); err != nil {
		return err
	}
	if err := s.itemRepo.Delete(member.WorkspaceID, itemID); err != nil {
		return fmt.Errorf("failed to delete item: %w", err)
	}
	return nil
}

// Use consumes quantity units of an item. The decrement is conditional at
// the database, so two concurrent uses can never drive the quantity
// negative; the loser gets ErrInsufficientQuantity and no ledger entry.
func (s *ItemService) Use(member *models.WorkspaceMember, itemID uint64, quantity int64, note string) (*models.Item, error) {
	return s.applyDelta(member, itemID, -quantity, models.UsageOut, note)
}

// Restock adds quantity units to an item.
func (s *ItemService) Restock(member *models.WorkspaceMember, itemID uint64, quantity int64, note string) (*models.Item, error) {
	return s.applyDelta(member, itemID, quantity, models.UsageIn, note)
}

func (s *ItemService) applyDelta(member *models.WorkspaceMember, itemID uint64, delta int64, usageType models.UsageType, note string) (*models.Item, error) {
	if delta == 0 {
		return nil, ErrInvalidQuantity
	}
	if usageType == models.UsageOut && delta > 0 || usageType == models.UsageIn && delta < 0 {
		return nil, ErrInvalidQuantity
	}

	if _, _, err := s.require(member, itemID, permissions.LevelEdit); err != nil {
		return nil, err
	}

	record := &models.UsageRecord{
		WorkspaceID: member.WorkspaceID,
		UserID:      member.UserID,
		Type:        usageType,
		Delta:       delta,
		Note:        note,
	}
	if err := s.itemRepo.ApplyDelta(member.WorkspaceID, itemID, record); err != nil {
		switch {
		case errors.Is(err, repository.ErrInsufficientQuantity):
			return nil, ErrInsufficientQuantity
		case errors.Is(err, gorm.ErrRecordNotFound):
			return nil, ErrItemNotFound
		default:
			return nil, fmt.Errorf("failed to apply quantity change: %w", err)
		}
	}

	item, err := s.itemRepo.FindByID(member.WorkspaceID, itemID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload item: %w", err)
	}
	return item, nil
}

// ListUsage returns an item's ledger entries, oldest first. Requires view.
func (s *ItemService) ListUsage(member *models.WorkspaceMember, itemID uint64) ([]models.UsageRecord, error) {
	if _, _, err := s.require(member, itemID, permissions.LevelView); err != nil {
		return nil, err
	}
	records, err := s.itemRepo.ListUsage(member.WorkspaceID, itemID)
	if err != nil {
		return nil, fmt.Errorf("failed to list usage records: %w", err)
	}
	return records, nil
}

// require loads an item and enforces a minimum level on its category. An
// item the caller cannot see at all, including one in another workspace,
// reads as not found.
func (s *ItemService) require(member *models.WorkspaceMember, itemID uint64, required permissions.Level) (*models.Item, permissions.Level, error) {
	item, err := s.itemRepo.FindByID(member.WorkspaceID, itemID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, permissions.LevelNone, ErrItemNotFound
		}
		return nil, permissions.LevelNone, fmt.Errorf("failed to find item: %w", err)
	}

	_, level, err := s.categories.require(member, item.CategoryID, required)
	if err != nil {
		return nil, level, mapCategoryErr(err)
	}
	return item, level, nil
}

// mapCategoryErr keeps an invisible category's items invisible too.
func mapCategoryErr(err error) error {
	if errors.Is(err, ErrCategoryNotFound) {
		return ErrItemNotFound
	}
	return err
}
