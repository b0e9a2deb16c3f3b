package services

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/moritani/inventory-api/internal/models"
	"github.com/moritani/inventory-api/internal/repository"
)

type itemTestEnv struct {
	categoryTestEnv
	svc      *ItemService
	itemRepo repository.ItemRepository
	category *models.Category
}

func setupItemTestEnv(t *testing.T) itemTestEnv {
	t.Helper()

	catEnv := setupCategoryTestEnv(t)
	itemRepo := repository.NewItemRepository(catEnv.db)
	svc := NewItemService(itemRepo, catEnv.svc)

	category, err := catEnv.svc.Create(catEnv.owner, CategoryInput{Name: "Spices"})
	require.NoError(t, err)

	return itemTestEnv{
		categoryTestEnv: catEnv,
		svc:             svc,
		itemRepo:        itemRepo,
		category:        category,
	}
}

func (env itemTestEnv) createItem(t *testing.T, name string, quantity int64) *models.Item {
	t.Helper()

	item, err := env.svc.Create(env.owner, env.category.ID, ItemInput{Name: name, Quantity: quantity})
	require.NoError(t, err)
	return item
}

func TestItemService_CreateWritesOpeningLedgerEntry(t *testing.T) {
	env := setupItemTestEnv(t)
	item := env.createItem(t, "Paprika", 10)

	records, err := env.svc.ListUsage(env.owner, item.ID)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, models.UsageIn, records[0].Type)
	require.Equal(t, int64(10), records[0].Delta)

	// Zero-quantity items start with an empty ledger.
	empty := env.createItem(t, "Saffron", 0)
	records, err = env.svc.ListUsage(env.owner, empty.ID)
	require.NoError(t, err)
	require.Empty(t, records)
}

func TestItemService_UseAndRestock(t *testing.T) {
	env := setupItemTestEnv(t)
	item := env.createItem(t, "Paprika", 10)

	item, err := env.svc.Use(env.owner, item.ID, 3, "dinner")
	require.NoError(t, err)
	require.Equal(t, int64(7), item.Quantity)

	item, err = env.svc.Restock(env.owner, item.ID, 5, "")
	require.NoError(t, err)
	require.Equal(t, int64(12), item.Quantity)

	// The ledger always sums to the stored quantity.
	sum, err := env.itemRepo.SumDeltas(item.ID)
	require.NoError(t, err)
	require.Equal(t, item.Quantity, sum)
}

func TestItemService_UseBeyondStock(t *testing.T) {
	env := setupItemTestEnv(t)
	item := env.createItem(t, "Paprika", 2)

	_, err := env.svc.Use(env.owner, item.ID, 3, "")
	require.ErrorIs(t, err, ErrInsufficientQuantity)

	// The failed use left no trace: quantity unchanged, no ledger entry.
	item, getErr := env.svc.Get(env.owner, item.ID)
	require.NoError(t, getErr)
	require.Equal(t, int64(2), item.Quantity)

	records, err := env.svc.ListUsage(env.owner, item.ID)
	require.NoError(t, err)
	require.Len(t, records, 1)

	// Draining to exactly zero is allowed.
	item, err = env.svc.Use(env.owner, item.ID, 2, "")
	require.NoError(t, err)
	require.Equal(t, int64(0), item.Quantity)
}

func TestItemService_UseRejectsNonPositiveQuantity(t *testing.T) {
	env := setupItemTestEnv(t)
	item := env.createItem(t, "Paprika", 5)

	_, err := env.svc.Use(env.owner, item.ID, 0, "")
	require.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = env.svc.Use(env.owner, item.ID, -1, "")
	require.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestItemService_DirectQuantityEditReconcilesLedger(t *testing.T) {
	env := setupItemTestEnv(t)
	item := env.createItem(t, "Paprika", 10)

	item, err := env.svc.Update(env.owner, item.ID, ItemInput{Name: "Paprika", Quantity: 4})
	require.NoError(t, err)
	require.Equal(t, int64(4), item.Quantity)

	records, err := env.svc.ListUsage(env.owner, item.ID)
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, models.UsageOut, records[1].Type)
	require.Equal(t, int64(-6), records[1].Delta)

	sum, err := env.itemRepo.SumDeltas(item.ID)
	require.NoError(t, err)
	require.Equal(t, item.Quantity, sum)
}

// racingItemRepo loses the first guarded update to a simulated concurrent
// writer, then delegates to the real repository.
type racingItemRepo struct {
	repository.ItemRepository
	rival func()
	fired bool
}

func (r *racingItemRepo) Update(item *models.Item, record *models.UsageRecord, readQuantity int64) error {
	if !r.fired {
		r.fired = true
		r.rival()
		return repository.ErrStaleItem
	}
	return r.ItemRepository.Update(item, record, readQuantity)
}

type alwaysStaleItemRepo struct {
	repository.ItemRepository
}

func (r *alwaysStaleItemRepo) Update(*models.Item, *models.UsageRecord, int64) error {
	return repository.ErrStaleItem
}

func TestItemService_UpdateRetriesOnConcurrentQuantityChange(t *testing.T) {
	env := setupItemTestEnv(t)
	item := env.createItem(t, "Paprika", 10)

	// Another editor writes 10 -> 4 between our read and our write.
	rival := func() {
		fresh, err := env.itemRepo.FindByID(env.ws.ID, item.ID)
		require.NoError(t, err)
		fresh.Quantity = 4
		require.NoError(t, env.itemRepo.Update(fresh, &models.UsageRecord{
			ItemID:      item.ID,
			WorkspaceID: env.ws.ID,
			UserID:      env.owner.UserID,
			Type:        models.UsageOut,
			Delta:       -6,
			Note:        "quantity adjustment",
		}, 10))
	}
	svc := NewItemService(&racingItemRepo{ItemRepository: env.itemRepo, rival: rival}, env.categoryTestEnv.svc)

	updated, err := svc.Update(env.owner, item.ID, ItemInput{Name: "Paprika", Quantity: 8})
	require.NoError(t, err)
	require.Equal(t, int64(8), updated.Quantity)

	// The retry recomputed its delta against the rival's write, so the
	// ledger still sums to the stored quantity: +10 -6 +4.
	records, err := env.svc.ListUsage(env.owner, item.ID)
	require.NoError(t, err)
	require.Len(t, records, 3)
	require.Equal(t, int64(4), records[2].Delta)

	sum, err := env.itemRepo.SumDeltas(item.ID)
	require.NoError(t, err)
	require.Equal(t, updated.Quantity, sum)
}

func TestItemService_UpdateGivesUpAfterRepeatedConflicts(t *testing.T) {
	env := setupItemTestEnv(t)
	item := env.createItem(t, "Paprika", 10)

	svc := NewItemService(&alwaysStaleItemRepo{env.itemRepo}, env.categoryTestEnv.svc)

	_, err := svc.Update(env.owner, item.ID, ItemInput{Name: "Paprika", Quantity: 8})
	require.ErrorIs(t, err, ErrItemConflict)
}

func TestItemService_StaleGuardLeavesRowAndLedgerUntouched(t *testing.T) {
	env := setupItemTestEnv(t)
	item := env.createItem(t, "Paprika", 10)

	// A write based on a quantity nobody holds anymore misses the guard.
	stale := *item
	stale.Quantity = 3
	err := env.itemRepo.Update(&stale, &models.UsageRecord{
		ItemID:      item.ID,
		WorkspaceID: env.ws.ID,
		UserID:      env.owner.UserID,
		Type:        models.UsageOut,
		Delta:       -7,
	}, 6)
	require.ErrorIs(t, err, repository.ErrStaleItem)

	current, err := env.itemRepo.FindByID(env.ws.ID, item.ID)
	require.NoError(t, err)
	require.Equal(t, int64(10), current.Quantity)

	records, err := env.svc.ListUsage(env.owner, item.ID)
	require.NoError(t, err)
	require.Len(t, records, 1)
}

func TestItemService_PermissionsFollowCategory(t *testing.T) {
	env := setupItemTestEnv(t)
	item := env.createItem(t, "Paprika", 10)

	// No grant: the item is invisible.
	_, err := env.svc.Get(env.member, item.ID)
	require.ErrorIs(t, err, ErrItemNotFound)

	// A view grant shows the item but blocks consumption.
	_, err = env.categoryTestEnv.svc.Grant(env.owner, env.category.ID, "member", models.PermissionView)
	require.NoError(t, err)

	_, err = env.svc.Get(env.member, item.ID)
	require.NoError(t, err)

	_, err = env.svc.Use(env.member, item.ID, 1, "")
	require.ErrorIs(t, err, ErrCategoryForbidden)

	// Edit unlocks consumption.
	_, err = env.categoryTestEnv.svc.Grant(env.owner, env.category.ID, "member", models.PermissionEdit)
	require.NoError(t, err)

	_, err = env.svc.Use(env.member, item.ID, 1, "")
	require.NoError(t, err)
}

func TestItemService_TenantScoping(t *testing.T) {
	env := setupItemTestEnv(t)
	item := env.createItem(t, "Paprika", 10)

	// The same user working in another workspace cannot reach the item,
	// and the failure reads as not found.
	otherWS := createTestWorkspace(t, env.db, "Garage", env.owner.UserID)
	otherMember := findTestMember(t, env.db, otherWS.ID, env.owner.UserID)

	_, err := env.svc.Get(otherMember, item.ID)
	require.ErrorIs(t, err, ErrItemNotFound)

	_, err = env.svc.Use(otherMember, item.ID, 1, "")
	require.ErrorIs(t, err, ErrItemNotFound)
}

// Two tenants with identical category and item names, driven from parallel
// goroutines. Every operation must stay inside its own workspace.
func TestItemService_ConcurrentTenantsStayIsolated(t *testing.T) {
	env := setupItemTestEnv(t)

	sqlDB, err := env.db.DB()
	require.NoError(t, err)
	// One connection keeps every goroutine on the same in-memory database.
	sqlDB.SetMaxOpenConns(1)

	// A second workspace mirroring the first: same names, same shape.
	otherUser := createTestUser(t, env.db, "rival")
	otherWS := createTestWorkspace(t, env.db, "Kitchen", otherUser.ID)
	otherMember := findTestMember(t, env.db, otherWS.ID, otherUser.ID)

	otherCategory, err := env.categoryTestEnv.svc.Create(otherMember, CategoryInput{Name: "Spices"})
	require.NoError(t, err)

	itemA := env.createItem(t, "Paprika", 100)
	itemB, err := env.svc.Create(otherMember, otherCategory.ID, ItemInput{Name: "Paprika", Quantity: 100})
	require.NoError(t, err)

	const uses = 20
	errs := make(chan error, 8*uses)
	var wg sync.WaitGroup

	consume := func(member *models.WorkspaceMember, itemID uint64) {
		defer wg.Done()
		for i := 0; i < uses; i++ {
			if _, err := env.svc.Use(member, itemID, 1, ""); err != nil {
				errs <- err
			}
		}
	}
	probeForeign := func(member *models.WorkspaceMember, foreignID uint64) {
		defer wg.Done()
		for i := 0; i < uses; i++ {
			if _, err := env.svc.Get(member, foreignID); !errors.Is(err, ErrItemNotFound) {
				errs <- fmt.Errorf("foreign item resolved across workspaces: %v", err)
			}
		}
	}

	listOwn := func(member *models.WorkspaceMember) {
		defer wg.Done()
		for i := 0; i < uses; i++ {
			categories, err := env.categoryTestEnv.svc.List(member)
			if err != nil {
				errs <- err
				continue
			}
			for _, c := range categories {
				if c.WorkspaceID != member.WorkspaceID {
					errs <- fmt.Errorf("category %d leaked into workspace %d", c.ID, member.WorkspaceID)
				}
			}
		}
	}

	wg.Add(6)
	go consume(env.owner, itemA.ID)
	go consume(otherMember, itemB.ID)
	go probeForeign(env.owner, itemB.ID)
	go probeForeign(otherMember, itemA.ID)
	go listOwn(env.owner)
	go listOwn(otherMember)
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}

	for _, target := range []struct {
		workspaceID uint64
		itemID      uint64
	}{
		{env.ws.ID, itemA.ID},
		{otherWS.ID, itemB.ID},
	} {
		item, err := env.itemRepo.FindByID(target.workspaceID, target.itemID)
		require.NoError(t, err)
		require.Equal(t, int64(100-uses), item.Quantity)

		sum, err := env.itemRepo.SumDeltas(target.itemID)
		require.NoError(t, err)
		require.Equal(t, item.Quantity, sum)
	}
}

func TestItemService_ListOrderedByName(t *testing.T) {
	env := setupItemTestEnv(t)
	env.createItem(t, "Turmeric", 1)
	env.createItem(t, "Basil", 1)

	items, err := env.svc.List(env.owner, env.category.ID)
	require.NoError(t, err)
	require.Len(t, items, 2)
	require.Equal(t, "Basil", items[0].Name)
	require.Equal(t, "Turmeric", items[1].Name)
}
