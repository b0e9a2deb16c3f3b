package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/moritani/inventory-api/internal/models"
	"github.com/moritani/inventory-api/internal/permissions"
	"github.com/moritani/inventory-api/internal/repository"
)

var (
	ErrCategoryNotFound    = errors.New("category not found")
	ErrCategoryForbidden   = errors.New("insufficient permission on category")
	ErrInvalidCategoryName = errors.New("category name cannot be empty")
	ErrInvalidGrantLevel   = errors.New("invalid permission level")
	ErrGrantNotFound       = errors.New("permission grant not found")
	ErrGrantToOwner        = errors.New("the category owner does not need a grant")
	ErrShareNotEnabled     = errors.New("category is not shared")
)

// CategoryService gates all access to categories. Callers that hold no
// effective level on a category get ErrCategoryNotFound rather than
// ErrCategoryForbidden, so they cannot confirm the category exists;
// forbidden is reserved for callers who can already see the resource.
type CategoryService struct {
	categoryRepo repository.CategoryRepository
	userRepo     repository.UserRepository
}

func NewCategoryService(categoryRepo repository.CategoryRepository, userRepo repository.UserRepository) *CategoryService {
	return &CategoryService{categoryRepo: categoryRepo, userRepo: userRepo}
}

// CategoryInput carries the writable category fields.
type CategoryInput struct {
	Name        string
	Description string
	Public      bool
	ManagerID   *uint64
}

// Create creates a category owned by the caller. Workspace viewers cannot
// create categories even if they hold edit grants elsewhere.
func (s *CategoryService) Create(member *models.WorkspaceMember, input CategoryInput) (*models.Category, error) {
	if !permissions.CanCreateCategory(member.Role) {
		return nil, ErrCategoryForbidden
	}
	if strings.TrimSpace(input.Name) == "" {
		return nil, ErrInvalidCategoryName
	}

	category := &models.Category{
		WorkspaceID: member.WorkspaceID,
		OwnerID:     member.UserID,
		ManagerID:   input.ManagerID,
		Name:        strings.TrimSpace(input.Name),
		Description: input.Description,
		Public:      input.Public,
	}
	if err := s.categoryRepo.Create(category); err != nil {
		return nil, fmt.Errorf("failed to create category: %w", err)
	}
	return category, nil
}

// List returns the workspace's categories the caller can at least view.
func (s *CategoryService) List(member *models.WorkspaceMember) ([]models.Category, error) {
	categories, err := s.categoryRepo.List(member.WorkspaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}

	visible := make([]models.Category, 0, len(categories))
	for i := range categories {
		level, err := s.resolve(member.UserID, &categories[i])
		if err != nil {
			return nil, err
		}
		if level.AtLeast(permissions.LevelView) {
			visible = append(visible, categories[i])
		}
	}
	return visible, nil
}

// Get returns a category the caller can at least view, together with the
// caller's effective level on it.
func (s *CategoryService) Get(member *models.WorkspaceMember, categoryID uint64) (*models.Category, permissions.Level, error) {
	return s.require(member, categoryID, permissions.LevelView)
}

// Update edits a category. Name, description and public flag are content
// and need an edit-level grant; changing the manager is structural and
// needs management rights, which reach categories the caller cannot view.
func (s *CategoryService) Update(member *models.WorkspaceMember, categoryID uint64, input CategoryInput) (*models.Category, error) {
	category, err := s.find(member.WorkspaceID, categoryID)
	if err != nil {
		return nil, err
	}

	level, err := s.resolve(member.UserID, category)
	if err != nil {
		return nil, err
	}
	canManage := permissions.CanManageCategory(member.Role, category, member.UserID)
	if level == permissions.LevelNone && !canManage {
		return nil, ErrCategoryNotFound
	}

	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, ErrInvalidCategoryName
	}

	if !sameManager(category.ManagerID, input.ManagerID) {
		if !canManage {
			return nil, ErrCategoryForbidden
		}
		category.ManagerID = input.ManagerID
	}

	if name != category.Name || input.Description != category.Description || input.Public != category.Public {
		if !level.AtLeast(permissions.LevelEdit) {
			return nil, ErrCategoryForbidden
		}
		category.Name = name
		category.Description = input.Description
		category.Public = input.Public
	}

	if err := s.categoryRepo.Update(category); err != nil {
		return nil, fmt.Errorf("failed to update category: %w", err)
	}
	return category, nil
}

// Delete removes a category with everything in it. Structural: workspace
// admins delete any category, members only their own.
func (s *CategoryService) Delete(member *models.WorkspaceMember, categoryID uint64) error {
	if _, err := s.manageable(member, categoryID); err != nil {
		return err
	}

	if err := s.categoryRepo.Delete(member.WorkspaceID, categoryID); err != nil {
		return fmt.Errorf("failed to delete category: %w", err)
	}
	return nil
}

// ListGrants lists a category's permission grants. Management rights
// required.
func (s *CategoryService) ListGrants(member *models.WorkspaceMember, categoryID uint64) ([]models.CategoryPermission, error) {
	if _, err := s.manageable(member, categoryID); err != nil {
		return nil, err
	}
	grants, err := s.categoryRepo.ListGrants(categoryID)
	if err != nil {
		return nil, fmt.Errorf("failed to list grants: %w", err)
	}
	return grants, nil
}

// Grant creates or replaces a user's grant on a category. Management
// rights required; granting to the owner is rejected since ownership
// already confers admin.
func (s *CategoryService) Grant(member *models.WorkspaceMember, categoryID uint64, username string, level models.PermissionLevel) (*models.CategoryPermission, error) {
	if permissions.GrantLevel(level) == permissions.LevelNone {
		return nil, ErrInvalidGrantLevel
	}

	category, err := s.manageable(member, categoryID)
	if err != nil {
		return nil, err
	}

	user, err := s.userRepo.FindByUsername(strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user.ID == category.OwnerID {
		return nil, ErrGrantToOwner
	}

	grant := &models.CategoryPermission{
		CategoryID: categoryID,
		UserID:     user.ID,
		Level:      level,
	}
	if err := s.categoryRepo.UpsertGrant(grant); err != nil {
		return nil, fmt.Errorf("failed to save grant: %w", err)
	}
	return grant, nil
}

// Revoke removes a user's grant on a category. Management rights required.
func (s *CategoryService) Revoke(member *models.WorkspaceMember, categoryID, userID uint64) error {
	if _, err := s.manageable(member, categoryID); err != nil {
		return err
	}
	if _, err := s.categoryRepo.FindGrant(categoryID, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrGrantNotFound
		}
		return fmt.Errorf("failed to find grant: %w", err)
	}
	if err := s.categoryRepo.RemoveGrant(categoryID, userID); err != nil {
		return fmt.Errorf("failed to remove grant: %w", err)
	}
	return nil
}

// EnableShare puts a share token on the category, minting a fresh one on
// every call so a leaked link can be rotated by re-enabling.
func (s *CategoryService) EnableShare(member *models.WorkspaceMember, categoryID uint64) (*models.Category, error) {
	category, err := s.manageable(member, categoryID)
	if err != nil {
		return nil, err
	}

	token := uuid.NewString()
	category.ShareToken = &token
	if err := s.categoryRepo.Update(category); err != nil {
		return nil, fmt.Errorf("failed to enable sharing: %w", err)
	}
	return category, nil
}

// DisableShare removes the share token; the old link stops resolving.
func (s *CategoryService) DisableShare(member *models.WorkspaceMember, categoryID uint64) error {
	category, err := s.manageable(member, categoryID)
	if err != nil {
		return err
	}
	if category.ShareToken == nil {
		return ErrShareNotEnabled
	}

	category.ShareToken = nil
	if err := s.categoryRepo.Update(category); err != nil {
		return fmt.Errorf("failed to disable sharing: %w", err)
	}
	return nil
}

// GetByShareToken resolves a share link without authentication. Unknown
// tokens and revoked tokens both come back as not found.
func (s *CategoryService) GetByShareToken(token string) (*models.Category, error) {
	category, err := s.categoryRepo.FindByShareToken(token)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCategoryNotFound
		}
		return nil, fmt.Errorf("failed to resolve share token: %w", err)
	}
	return category, nil
}

// find loads a category scoped to the workspace, shaping a missing row as
// ErrCategoryNotFound.
func (s *CategoryService) find(workspaceID, categoryID uint64) (*models.Category, error) {
	category, err := s.categoryRepo.FindByID(workspaceID, categoryID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCategoryNotFound
		}
		return nil, fmt.Errorf("failed to find category: %w", err)
	}
	return category, nil
}

// require loads a category and enforces a minimum effective level. No
// access at all reads as not found.
func (s *CategoryService) require(member *models.WorkspaceMember, categoryID uint64, required permissions.Level) (*models.Category, permissions.Level, error) {
	category, err := s.find(member.WorkspaceID, categoryID)
	if err != nil {
		return nil, permissions.LevelNone, err
	}

	level, err := s.resolve(member.UserID, category)
	if err != nil {
		return nil, permissions.LevelNone, err
	}
	if level == permissions.LevelNone {
		return nil, permissions.LevelNone, ErrCategoryNotFound
	}
	if !level.AtLeast(required) {
		return nil, level, ErrCategoryForbidden
	}
	return category, level, nil
}

// manageable loads a category and enforces structural management rights.
// Management comes from the workspace role alone, so admins and owners
// reach categories they hold no grant on and cannot view. Callers with
// neither management rights nor view read the category as not found.
func (s *CategoryService) manageable(member *models.WorkspaceMember, categoryID uint64) (*models.Category, error) {
	category, err := s.find(member.WorkspaceID, categoryID)
	if err != nil {
		return nil, err
	}

	if permissions.CanManageCategory(member.Role, category, member.UserID) {
		return category, nil
	}

	level, err := s.resolve(member.UserID, category)
	if err != nil {
		return nil, err
	}
	if level == permissions.LevelNone {
		return nil, ErrCategoryNotFound
	}
	return nil, ErrCategoryForbidden
}

func (s *CategoryService) resolve(userID uint64, category *models.Category) (permissions.Level, error) {
	grant, err := s.categoryRepo.FindGrant(category.ID, userID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return permissions.LevelNone, fmt.Errorf("failed to find grant: %w", err)
		}
		grant = nil
	}
	return permissions.Resolve(userID, category, grant), nil
}

func sameManager(a, b *uint64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
