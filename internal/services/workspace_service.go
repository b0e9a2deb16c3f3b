package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/moritani/inventory-api/internal/cache"
	"github.com/moritani/inventory-api/internal/models"
	"github.com/moritani/inventory-api/internal/permissions"
	"github.com/moritani/inventory-api/internal/queue"
	"github.com/moritani/inventory-api/internal/repository"
)

var (
	ErrWorkspaceNotFound    = errors.New("workspace not found")
	ErrInvalidWorkspaceName = errors.New("workspace name cannot be empty")
	ErrNotWorkspaceMember   = errors.New("user is not a member of the workspace")
	ErrWorkspaceForbidden   = errors.New("workspace role does not allow this action")
	ErrAlreadyMember        = errors.New("user is already a member of this workspace")
	ErrMemberNotFound       = errors.New("workspace member not found")
	ErrLastOwner            = errors.New("a workspace must retain at least one owner")
	ErrInvalidRole          = errors.New("invalid workspace role")
	ErrNoWorkspace          = errors.New("no workspace selected")
)

const workspaceListTTL = 5 * time.Minute

// WorkspaceService is the tenant directory: which workspaces a user belongs
// to, with what role, and which one is currently active for them.
type WorkspaceService struct {
	wsRepo      repository.WorkspaceRepository
	userRepo    repository.UserRepository
	settingRepo repository.SettingRepository
	rdb         *redis.Client
	notifier    queue.Notifier
}

// NewWorkspaceService creates a new WorkspaceService. rdb may be nil, which
// disables the membership-list cache, and notifier may be nil, which
// disables invite notifications (tests run without Redis and RabbitMQ).
func NewWorkspaceService(wsRepo repository.WorkspaceRepository, userRepo repository.UserRepository, settingRepo repository.SettingRepository, rdb *redis.Client, notifier queue.Notifier) *WorkspaceService {
	return &WorkspaceService{
		wsRepo:      wsRepo,
		userRepo:    userRepo,
		settingRepo: settingRepo,
		rdb:         rdb,
		notifier:    notifier,
	}
}

// Create creates a workspace whose first member is the creator with role
// owner. The two inserts share a transaction, so a failure on the
// membership rolls the workspace back.
func (s *WorkspaceService) Create(name string, plan models.PlanTier, ownerID uint64) (*models.Workspace, error) {
	if strings.TrimSpace(name) == "" {
		return nil, ErrInvalidWorkspaceName
	}
	if plan == "" {
		plan = models.PlanFree
	}

	ws := &models.Workspace{
		Name: strings.TrimSpace(name),
		Plan: plan,
	}

	if err := s.wsRepo.CreateWithOwner(ws, ownerID); err != nil {
		return nil, fmt.Errorf("failed to create workspace: %w", err)
	}

	s.invalidateList(ownerID)
	return ws, nil
}

// List returns the user's memberships with workspaces preloaded, ordered by
// workspace name. Non-forced calls reuse a cached copy when one is present;
// force always goes to the database and refreshes the cache.
func (s *WorkspaceService) List(ctx context.Context, userID uint64, force bool) ([]models.WorkspaceMember, error) {
	key := workspaceListKey(userID)

	if !force && s.rdb != nil {
		var cached []models.WorkspaceMember
		if ok, err := cache.Get(ctx, s.rdb, key, &cached); err == nil && ok {
			return cached, nil
		}
	}

	memberships, err := s.wsRepo.ListMembershipsByUser(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list workspaces: %w", err)
	}

	if s.rdb != nil {
		if err := cache.Set(ctx, s.rdb, key, memberships, workspaceListTTL); err != nil {
			logrus.WithError(err).Warn("workspace list cache write failed")
		}
	}
	return memberships, nil
}

// Get returns a workspace and the caller's membership in it. Non-members
// get ErrWorkspaceNotFound rather than a forbidden error, so they cannot
// learn the workspace exists.
func (s *WorkspaceService) Get(workspaceID, userID uint64) (*models.Workspace, *models.WorkspaceMember, error) {
	ws, err := s.wsRepo.FindByID(workspaceID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrWorkspaceNotFound
		}
		return nil, nil, fmt.Errorf("failed to find workspace: %w", err)
	}

	member, err := s.wsRepo.FindMember(workspaceID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrWorkspaceNotFound
		}
		return nil, nil, fmt.Errorf("failed to find membership: %w", err)
	}

	return ws, member, nil
}

// ListMembers returns a workspace's members with users preloaded. Any
// member can see the roster.
func (s *WorkspaceService) ListMembers(workspaceID, actorID uint64) ([]models.WorkspaceMember, error) {
	if _, _, err := s.Get(workspaceID, actorID); err != nil {
		return nil, err
	}
	members, err := s.wsRepo.ListMembers(workspaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	return members, nil
}

// Rename updates a workspace's name. Requires role admin or above.
func (s *WorkspaceService) Rename(workspaceID, actorID uint64, name string) (*models.Workspace, error) {
	if strings.TrimSpace(name) == "" {
		return nil, ErrInvalidWorkspaceName
	}

	ws, member, err := s.Get(workspaceID, actorID)
	if err != nil {
		return nil, err
	}
	if !permissions.RoleAtLeast(member.Role, models.RoleAdmin) {
		return nil, ErrWorkspaceForbidden
	}

	ws.Name = strings.TrimSpace(name)
	if err := s.wsRepo.Update(ws); err != nil {
		return nil, fmt.Errorf("failed to update workspace: %w", err)
	}
	return ws, nil
}

// SetArchived flips the archived flag. Requires role owner.
func (s *WorkspaceService) SetArchived(workspaceID, actorID uint64, archived bool) (*models.Workspace, error) {
	ws, member, err := s.Get(workspaceID, actorID)
	if err != nil {
		return nil, err
	}
	if !permissions.RoleAtLeast(member.Role, models.RoleOwner) {
		return nil, ErrWorkspaceForbidden
	}

	ws.Archived = archived
	if err := s.wsRepo.Update(ws); err != nil {
		return nil, fmt.Errorf("failed to update workspace: %w", err)
	}
	return ws, nil
}

// Delete removes a workspace and everything in it. Requires role owner.
func (s *WorkspaceService) Delete(workspaceID, actorID uint64) error {
	_, member, err := s.Get(workspaceID, actorID)
	if err != nil {
		return err
	}
	if !permissions.RoleAtLeast(member.Role, models.RoleOwner) {
		return ErrWorkspaceForbidden
	}

	members, err := s.wsRepo.ListMembers(workspaceID)
	if err != nil {
		return fmt.Errorf("failed to list members: %w", err)
	}

	if err := s.wsRepo.Delete(workspaceID); err != nil {
		return fmt.Errorf("failed to delete workspace: %w", err)
	}

	for _, m := range members {
		s.invalidateList(m.UserID)
	}
	return nil
}

// AddMember adds a user to the workspace by username. Requires role admin
// or above; only owners may hand out the owner role. The invited user gets
// a best-effort notification unless they opted out of email.
func (s *WorkspaceService) AddMember(ctx context.Context, workspaceID, actorID uint64, username string, role models.WorkspaceRole) (*models.WorkspaceMember, error) {
	if !validRole(role) {
		return nil, ErrInvalidRole
	}

	ws, actor, err := s.Get(workspaceID, actorID)
	if err != nil {
		return nil, err
	}
	if !permissions.RoleAtLeast(actor.Role, models.RoleAdmin) {
		return nil, ErrWorkspaceForbidden
	}
	if role == models.RoleOwner && actor.Role != models.RoleOwner {
		return nil, ErrWorkspaceForbidden
	}

	user, err := s.userRepo.FindByUsername(strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	if _, err := s.wsRepo.FindMember(workspaceID, user.ID); err == nil {
		return nil, ErrAlreadyMember
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to verify membership: %w", err)
	}

	member := &models.WorkspaceMember{
		WorkspaceID: workspaceID,
		UserID:      user.ID,
		Role:        role,
		JoinedAt:    time.Now(),
	}
	if err := s.wsRepo.AddMember(member); err != nil {
		return nil, fmt.Errorf("failed to add member: %w", err)
	}

	s.invalidateList(user.ID)

	if s.notifier != nil && user.NotifyEmail {
		err := s.notifier.Send(ctx, queue.KindWorkspaceInvite, user.Email, map[string]any{
			"workspace": ws.Name,
			"role":      string(role),
		})
		if err != nil {
			logrus.WithError(err).WithField("user_id", user.ID).Warn("failed to send workspace invite notification")
		}
	}

	return member, nil
}

// ChangeRole updates a member's role. Requires role admin or above; roles
// touching ownership (promoting to owner, demoting an owner) require the
// owner role, and demoting the last owner is rejected.
func (s *WorkspaceService) ChangeRole(workspaceID, actorID, targetID uint64, role models.WorkspaceRole) error {
	if !validRole(role) {
		return ErrInvalidRole
	}

	_, actor, err := s.Get(workspaceID, actorID)
	if err != nil {
		return err
	}
	if !permissions.RoleAtLeast(actor.Role, models.RoleAdmin) {
		return ErrWorkspaceForbidden
	}

	target, err := s.wsRepo.FindMember(workspaceID, targetID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrMemberNotFound
		}
		return fmt.Errorf("failed to find member: %w", err)
	}

	if (target.Role == models.RoleOwner || role == models.RoleOwner) && actor.Role != models.RoleOwner {
		return ErrWorkspaceForbidden
	}

	if target.Role == models.RoleOwner && role != models.RoleOwner {
		owners, err := s.wsRepo.CountOwners(workspaceID)
		if err != nil {
			return fmt.Errorf("failed to count owners: %w", err)
		}
		if owners <= 1 {
			return ErrLastOwner
		}
	}

	if err := s.wsRepo.UpdateMemberRole(workspaceID, targetID, role); err != nil {
		return fmt.Errorf("failed to update role: %w", err)
	}

	s.invalidateList(targetID)
	return nil
}

// RemoveMember removes a member. Members may remove themselves; otherwise
// role admin or above is required, and owners can only be removed by an
// owner. Removing the last owner is rejected.
func (s *WorkspaceService) RemoveMember(workspaceID, actorID, targetID uint64) error {
	_, actor, err := s.Get(workspaceID, actorID)
	if err != nil {
		return err
	}
	if actorID != targetID && !permissions.RoleAtLeast(actor.Role, models.RoleAdmin) {
		return ErrWorkspaceForbidden
	}

	target, err := s.wsRepo.FindMember(workspaceID, targetID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrMemberNotFound
		}
		return fmt.Errorf("failed to find member: %w", err)
	}

	if target.Role == models.RoleOwner {
		if actor.Role != models.RoleOwner {
			return ErrWorkspaceForbidden
		}
		owners, err := s.wsRepo.CountOwners(workspaceID)
		if err != nil {
			return fmt.Errorf("failed to count owners: %w", err)
		}
		if owners <= 1 {
			return ErrLastOwner
		}
	}

	if err := s.wsRepo.RemoveMember(workspaceID, targetID); err != nil {
		return fmt.Errorf("failed to remove member: %w", err)
	}

	// Drop a stale active-workspace pointer right away rather than waiting
	// for the next ResolveActive fallback.
	if setting, err := s.settingRepo.Find(targetID, models.SettingActiveWorkspace); err == nil {
		if setting.Value == strconv.FormatUint(workspaceID, 10) {
			_ = s.settingRepo.Delete(targetID, models.SettingActiveWorkspace)
		}
	}

	s.invalidateList(targetID)
	return nil
}

// SetActive persists the user's active workspace. Selecting the workspace
// that is already active is a no-op so downstream refetch cascades are not
// triggered. Non-members cannot select a workspace.
func (s *WorkspaceService) SetActive(userID, workspaceID uint64) error {
	if _, err := s.wsRepo.FindMember(workspaceID, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrWorkspaceNotFound
		}
		return fmt.Errorf("failed to verify membership: %w", err)
	}

	value := strconv.FormatUint(workspaceID, 10)
	if setting, err := s.settingRepo.Find(userID, models.SettingActiveWorkspace); err == nil && setting.Value == value {
		return nil
	}

	if err := s.settingRepo.Upsert(&models.UserSetting{
		UserID: userID,
		Key:    models.SettingActiveWorkspace,
		Value:  value,
	}); err != nil {
		return fmt.Errorf("failed to persist active workspace: %w", err)
	}
	return nil
}

// ResolveActive returns the user's active workspace and membership. A
// stored pointer that no longer resolves to a live membership is cleared
// and the first membership (by workspace name) becomes active instead.
// ErrNoWorkspace means the user belongs to no workspace at all.
func (s *WorkspaceService) ResolveActive(userID uint64) (*models.Workspace, *models.WorkspaceMember, error) {
	if setting, err := s.settingRepo.Find(userID, models.SettingActiveWorkspace); err == nil {
		if id, parseErr := strconv.ParseUint(setting.Value, 10, 64); parseErr == nil {
			ws, member, getErr := s.Get(id, userID)
			if getErr == nil {
				return ws, member, nil
			}
			if !errors.Is(getErr, ErrWorkspaceNotFound) {
				return nil, nil, getErr
			}
		}
		// Stale or unparseable pointer: clear it and fall through.
		_ = s.settingRepo.Delete(userID, models.SettingActiveWorkspace)
	}

	memberships, err := s.wsRepo.ListMembershipsByUser(userID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list workspaces: %w", err)
	}
	if len(memberships) == 0 {
		return nil, nil, ErrNoWorkspace
	}

	member := memberships[0]
	if err := s.SetActive(userID, member.WorkspaceID); err != nil {
		return nil, nil, err
	}
	ws := member.Workspace
	return &ws, &member, nil
}

func (s *WorkspaceService) invalidateList(userID uint64) {
	if s.rdb == nil {
		return
	}
	if err := cache.Delete(context.Background(), s.rdb, workspaceListKey(userID)); err != nil {
		logrus.WithError(err).Warn("workspace list cache invalidation failed")
	}
}

func workspaceListKey(userID uint64) string {
	return "workspaces:user:" + strconv.FormatUint(userID, 10)
}

func validRole(role models.WorkspaceRole) bool {
	switch role {
	case models.RoleOwner, models.RoleAdmin, models.RoleMember, models.RoleViewer:
		return true
	default:
		return false
	}
}
