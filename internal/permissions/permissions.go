// Package permissions computes effective access on categories. It is pure:
// callers fetch the rows, this package applies the rules. Two independent
// tiers exist and must not be conflated: the category tier decides
// read/write access to a category's contents (ownership, explicit grant,
// public flag), while the workspace tier decides structural management
// (creating, deleting, reconfiguring categories and their grants).
package permissions

import "github.com/moritani/inventory-api/internal/models"

// Level is the effective capability on a single category.
type Level int

const (
	LevelNone Level = iota
	LevelView
	LevelEdit
	LevelAdmin
)

func (l Level) String() string {
	switch l {
	case LevelView:
		return "view"
	case LevelEdit:
		return "edit"
	case LevelAdmin:
		return "admin"
	default:
		return "none"
	}
}

// AtLeast reports whether l grants the capability of required.
func (l Level) AtLeast(required Level) bool {
	return l >= required
}

// GrantLevel converts a stored grant level to a Level. Unknown values map
// to none.
func GrantLevel(level models.PermissionLevel) Level {
	switch level {
	case models.PermissionView:
		return LevelView
	case models.PermissionEdit:
		return LevelEdit
	case models.PermissionAdmin:
		return LevelAdmin
	default:
		return LevelNone
	}
}

// Resolve computes the caller's effective level on a category. First match
// wins: ownership, then an explicit grant, then public visibility. A grant
// never lowers what the public flag already allows.
func Resolve(userID uint64, category *models.Category, grant *models.CategoryPermission) Level {
	if category == nil {
		return LevelNone
	}
	if category.OwnerID == userID {
		return LevelAdmin
	}
	if grant != nil && grant.CategoryID == category.ID && grant.UserID == userID {
		level := GrantLevel(grant.Level)
		if category.Public && level < LevelView {
			return LevelView
		}
		return level
	}
	if category.Public {
		return LevelView
	}
	return LevelNone
}

// roleRank orders workspace roles by privilege. Unknown roles rank zero and
// fail every check.
var roleRank = map[models.WorkspaceRole]int{
	models.RoleViewer: 1,
	models.RoleMember: 2,
	models.RoleAdmin:  3,
	models.RoleOwner:  4,
}

// RoleAtLeast reports whether role meets the required workspace role.
func RoleAtLeast(role, required models.WorkspaceRole) bool {
	return roleRank[role] >= roleRank[required]
}

// CanCreateCategory reports whether a workspace role may create categories.
// Viewers may not, regardless of any category-level grants they hold.
func CanCreateCategory(role models.WorkspaceRole) bool {
	return RoleAtLeast(role, models.RoleMember)
}

// CanManageCategory reports whether the caller may perform structural
// management on a category: deleting it, reassigning its owner or manager,
// or editing its permission grants. Workspace admins and owners manage any
// category in the workspace; members manage only categories they own.
func CanManageCategory(role models.WorkspaceRole, category *models.Category, userID uint64) bool {
	if category == nil {
		return false
	}
	if RoleAtLeast(role, models.RoleAdmin) {
		return true
	}
	return RoleAtLeast(role, models.RoleMember) && category.OwnerID == userID
}
