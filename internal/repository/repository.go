package repository

import "github.com/moritani/inventory-api/internal/models"

// UserRepository defines the interface for user data access
type UserRepository interface {
	// Create creates a new user
	Create(user *models.User) error

	// FindByID finds a user by ID
	FindByID(id uint64) (*models.User, error)

	// FindByUsername finds a user by username
	FindByUsername(username string) (*models.User, error)

	// FindByEmail finds a user by email
	FindByEmail(email string) (*models.User, error)

	// Update updates a user
	Update(user *models.User) error

	// SetRefreshTokenHash stores the fingerprint of the single live refresh
	// token, replacing whatever was there before.
	SetRefreshTokenHash(userID uint64, hash string) error

	// ClearRefreshTokenHash removes the stored fingerprint. Clearing an
	// already-empty value is not an error.
	ClearRefreshTokenHash(userID uint64) error

	// Delete removes a user together with their owned categories and all
	// dependent rows, atomically.
	Delete(id uint64) error
}

// WorkspaceRepository defines the interface for workspace data access
type WorkspaceRepository interface {
	// CreateWithOwner creates a workspace and its first owner membership in
	// one transaction; a workspace row never survives without a member.
	CreateWithOwner(ws *models.Workspace, ownerID uint64) error

	// FindByID finds a workspace by ID
	FindByID(id uint64) (*models.Workspace, error)

	// Update updates a workspace
	Update(ws *models.Workspace) error

	// Delete removes a workspace and all rows scoped to it
	Delete(id uint64) error

	// AddMember adds a member to a workspace
	AddMember(member *models.WorkspaceMember) error

	// UpdateMemberRole changes a member's role
	UpdateMemberRole(workspaceID, userID uint64, role models.WorkspaceRole) error

	// RemoveMember removes a member from a workspace
	RemoveMember(workspaceID, userID uint64) error

	// FindMember finds a specific workspace member
	FindMember(workspaceID, userID uint64) (*models.WorkspaceMember, error)

	// ListMembers lists all members of a workspace
	ListMembers(workspaceID uint64) ([]models.WorkspaceMember, error)

	// ListMembershipsByUser lists a user's memberships with workspaces
	// preloaded, ordered by workspace name for display stability.
	ListMembershipsByUser(userID uint64) ([]models.WorkspaceMember, error)

	// CountOwners counts owner-role members of a workspace
	CountOwners(workspaceID uint64) (int64, error)
}

// CategoryRepository defines the interface for category data access. Every
// lookup except FindByShareToken is scoped by workspace id.
type CategoryRepository interface {
	// Create creates a new category
	Create(category *models.Category) error

	// FindByID finds a category within a workspace
	FindByID(workspaceID, id uint64) (*models.Category, error)

	// FindByShareToken finds a category by its public share token
	FindByShareToken(token string) (*models.Category, error)

	// List lists the categories of a workspace
	List(workspaceID uint64) ([]models.Category, error)

	// Update updates a category
	Update(category *models.Category) error

	// Delete removes a category with its items, usage records and grants
	Delete(workspaceID, id uint64) error

	// UpsertGrant creates or replaces the grant for (category, user)
	UpsertGrant(grant *models.CategoryPermission) error

	// RemoveGrant removes the grant for (category, user)
	RemoveGrant(categoryID, userID uint64) error

	// FindGrant finds the grant for (category, user)
	FindGrant(categoryID, userID uint64) (*models.CategoryPermission, error)

	// ListGrants lists all grants on a category
	ListGrants(categoryID uint64) ([]models.CategoryPermission, error)
}

// ItemRepository defines the interface for item and usage-ledger access.
// Quantity changes go through transactions that write the matching ledger
// entry, so the ledger sum always equals the stored quantity.
type ItemRepository interface {
	// Create inserts an item and its initial ledger entry atomically
	Create(item *models.Item, record *models.UsageRecord) error

	// FindByID finds an item within a workspace
	FindByID(workspaceID, id uint64) (*models.Item, error)

	// ListByCategory lists the items of a category within a workspace
	ListByCategory(workspaceID, categoryID uint64) ([]models.Item, error)

	// Update saves item fields and, when the quantity changed, the
	// compensating ledger entry, atomically. The write is guarded by
	// readQuantity, the quantity the caller based its edit on; a mismatch
	// returns ErrStaleItem and leaves the row and ledger untouched
	Update(item *models.Item, record *models.UsageRecord, readQuantity int64) error

	// Delete removes an item and its ledger
	Delete(workspaceID, id uint64) error

	// ApplyDelta adjusts the quantity by record.Delta with a conditional
	// update and appends the ledger entry in the same transaction. Returns
	// ErrInsufficientQuantity when the decrement would go negative.
	ApplyDelta(workspaceID, itemID uint64, record *models.UsageRecord) error

	// ListUsage lists an item's ledger entries, oldest first
	ListUsage(workspaceID, itemID uint64) ([]models.UsageRecord, error)

	// SumDeltas sums the ledger deltas for an item
	SumDeltas(itemID uint64) (int64, error)
}

// SettingRepository defines the interface for the per-user settings store
type SettingRepository interface {
	// Upsert writes the value for (user, key), replacing any previous one
	Upsert(setting *models.UserSetting) error

	// Find reads the value for (user, key)
	Find(userID uint64, key string) (*models.UserSetting, error)

	// Delete removes the value for (user, key)
	Delete(userID uint64, key string) error
}
