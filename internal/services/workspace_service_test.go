package services

import (
	"context"
	"errors"
	"strconv"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/moritani/inventory-api/internal/models"
	"github.com/moritani/inventory-api/internal/queue"
	"github.com/moritani/inventory-api/internal/repository"
)

func setupWorkspaceService(t *testing.T) (*WorkspaceService, *gorm.DB) {
	t.Helper()

	db := setupTestDB(t)
	svc := NewWorkspaceService(
		repository.NewWorkspaceRepository(db),
		repository.NewUserRepository(db),
		repository.NewSettingRepository(db),
		nil, // no cache in tests
		nil, // no notifications in tests
	)
	return svc, db
}

func TestWorkspaceService_CreateMakesCreatorOwner(t *testing.T) {
	svc, db := setupWorkspaceService(t)
	owner := createTestUser(t, db, "owner")

	ws, err := svc.Create("Kitchen", "", owner.ID)
	require.NoError(t, err)
	require.Equal(t, models.PlanFree, ws.Plan)

	member := findTestMember(t, db, ws.ID, owner.ID)
	require.Equal(t, models.RoleOwner, member.Role)
}

func TestWorkspaceService_GetHidesExistenceFromNonMembers(t *testing.T) {
	svc, db := setupWorkspaceService(t)
	owner := createTestUser(t, db, "owner")
	outsider := createTestUser(t, db, "outsider")
	ws := createTestWorkspace(t, db, "Kitchen", owner.ID)

	_, _, err := svc.Get(ws.ID, outsider.ID)
	require.ErrorIs(t, err, ErrWorkspaceNotFound)
}

func TestWorkspaceService_ListOrderedByName(t *testing.T) {
	svc, db := setupWorkspaceService(t)
	user := createTestUser(t, db, "user")
	createTestWorkspace(t, db, "Pantry", user.ID)
	createTestWorkspace(t, db, "Attic", user.ID)
	createTestWorkspace(t, db, "Kitchen", user.ID)

	memberships, err := svc.List(context.Background(), user.ID, false)
	require.NoError(t, err)
	require.Len(t, memberships, 3)
	require.Equal(t, "Attic", memberships[0].Workspace.Name)
	require.Equal(t, "Kitchen", memberships[1].Workspace.Name)
	require.Equal(t, "Pantry", memberships[2].Workspace.Name)
}

func TestWorkspaceService_AddMember(t *testing.T) {
	svc, db := setupWorkspaceService(t)
	owner := createTestUser(t, db, "owner")
	invitee := createTestUser(t, db, "invitee")
	ws := createTestWorkspace(t, db, "Kitchen", owner.ID)

	member, err := svc.AddMember(context.Background(), ws.ID, owner.ID, "invitee", models.RoleMember)
	require.NoError(t, err)
	require.Equal(t, invitee.ID, member.UserID)

	_, err = svc.AddMember(context.Background(), ws.ID, owner.ID, "invitee", models.RoleMember)
	require.ErrorIs(t, err, ErrAlreadyMember)

	_, err = svc.AddMember(context.Background(), ws.ID, owner.ID, "nobody", models.RoleMember)
	require.ErrorIs(t, err, ErrUserNotFound)
}

func TestWorkspaceService_AddMemberSendsInvite(t *testing.T) {
	db := setupTestDB(t)
	notifier := &recordingNotifier{}
	svc := NewWorkspaceService(
		repository.NewWorkspaceRepository(db),
		repository.NewUserRepository(db),
		repository.NewSettingRepository(db),
		nil,
		notifier,
	)
	owner := createTestUser(t, db, "owner")
	createTestUser(t, db, "invitee")
	ws := createTestWorkspace(t, db, "Kitchen", owner.ID)

	_, err := svc.AddMember(context.Background(), ws.ID, owner.ID, "invitee", models.RoleMember)
	require.NoError(t, err)
	require.Len(t, notifier.sent, 1)
	require.Equal(t, queue.KindWorkspaceInvite, notifier.sent[0].Kind)
	require.Equal(t, "invitee@example.com", notifier.sent[0].Recipient)
	require.Equal(t, "Kitchen", notifier.sent[0].Payload["workspace"])
	require.Equal(t, "member", notifier.sent[0].Payload["role"])

	// An opted-out invitee still joins, without a notification.
	quiet := createTestUser(t, db, "quiet")
	require.NoError(t, db.Model(quiet).Update("notify_email", false).Error)
	_, err = svc.AddMember(context.Background(), ws.ID, owner.ID, "quiet", models.RoleMember)
	require.NoError(t, err)
	require.Len(t, notifier.sent, 1)

	// A broken broker never blocks the membership itself.
	notifier.failErr = errors.New("broker down")
	createTestUser(t, db, "late")
	member, err := svc.AddMember(context.Background(), ws.ID, owner.ID, "late", models.RoleMember)
	require.NoError(t, err)
	require.NotZero(t, member.UserID)
}

func TestWorkspaceService_OnlyOwnerHandsOutOwnership(t *testing.T) {
	svc, db := setupWorkspaceService(t)
	owner := createTestUser(t, db, "owner")
	admin := createTestUser(t, db, "admin")
	createTestUser(t, db, "newcomer")
	ws := createTestWorkspace(t, db, "Kitchen", owner.ID)
	addTestMember(t, db, ws.ID, admin.ID, models.RoleAdmin)

	_, err := svc.AddMember(context.Background(), ws.ID, admin.ID, "newcomer", models.RoleOwner)
	require.ErrorIs(t, err, ErrWorkspaceForbidden)

	_, err = svc.AddMember(context.Background(), ws.ID, owner.ID, "newcomer", models.RoleOwner)
	require.NoError(t, err)
}

func TestWorkspaceService_LastOwnerCannotBeDemoted(t *testing.T) {
	svc, db := setupWorkspaceService(t)
	owner := createTestUser(t, db, "owner")
	ws := createTestWorkspace(t, db, "Kitchen", owner.ID)

	err := svc.ChangeRole(ws.ID, owner.ID, owner.ID, models.RoleMember)
	require.ErrorIs(t, err, ErrLastOwner)

	// With a second owner aboard, stepping down is fine.
	second := createTestUser(t, db, "second")
	addTestMember(t, db, ws.ID, second.ID, models.RoleOwner)

	require.NoError(t, svc.ChangeRole(ws.ID, owner.ID, owner.ID, models.RoleMember))
}

func TestWorkspaceService_LastOwnerCannotBeRemoved(t *testing.T) {
	svc, db := setupWorkspaceService(t)
	owner := createTestUser(t, db, "owner")
	ws := createTestWorkspace(t, db, "Kitchen", owner.ID)

	err := svc.RemoveMember(ws.ID, owner.ID, owner.ID)
	require.ErrorIs(t, err, ErrLastOwner)
}

func TestWorkspaceService_MemberCanLeave(t *testing.T) {
	svc, db := setupWorkspaceService(t)
	owner := createTestUser(t, db, "owner")
	member := createTestUser(t, db, "member")
	ws := createTestWorkspace(t, db, "Kitchen", owner.ID)
	addTestMember(t, db, ws.ID, member.ID, models.RoleMember)

	require.NoError(t, svc.RemoveMember(ws.ID, member.ID, member.ID))

	_, _, err := svc.Get(ws.ID, member.ID)
	require.ErrorIs(t, err, ErrWorkspaceNotFound)
}

func TestWorkspaceService_SetActiveRejectsNonMember(t *testing.T) {
	svc, db := setupWorkspaceService(t)
	owner := createTestUser(t, db, "owner")
	outsider := createTestUser(t, db, "outsider")
	ws := createTestWorkspace(t, db, "Kitchen", owner.ID)

	err := svc.SetActive(outsider.ID, ws.ID)
	require.ErrorIs(t, err, ErrWorkspaceNotFound)
}

func TestWorkspaceService_ResolveActive(t *testing.T) {
	svc, db := setupWorkspaceService(t)
	user := createTestUser(t, db, "user")
	first := createTestWorkspace(t, db, "Attic", user.ID)
	second := createTestWorkspace(t, db, "Kitchen", user.ID)

	require.NoError(t, svc.SetActive(user.ID, second.ID))

	ws, member, err := svc.ResolveActive(user.ID)
	require.NoError(t, err)
	require.Equal(t, second.ID, ws.ID)
	require.Equal(t, models.RoleOwner, member.Role)
	_ = first
}

func TestWorkspaceService_ResolveActiveFallsBackWhenStale(t *testing.T) {
	svc, db := setupWorkspaceService(t)
	user := createTestUser(t, db, "user")
	other := createTestUser(t, db, "other")
	kept := createTestWorkspace(t, db, "Attic", user.ID)
	lost := createTestWorkspace(t, db, "Kitchen", other.ID)
	addTestMember(t, db, lost.ID, user.ID, models.RoleMember)

	require.NoError(t, svc.SetActive(user.ID, lost.ID))

	// Removal from the active workspace leaves the stored pointer stale.
	require.NoError(t, svc.RemoveMember(lost.ID, other.ID, user.ID))

	ws, _, err := svc.ResolveActive(user.ID)
	require.NoError(t, err)
	require.Equal(t, kept.ID, ws.ID)

	// The fallback choice was persisted.
	var setting models.UserSetting
	require.NoError(t, db.Where("user_id = ? AND `key` = ?", user.ID, models.SettingActiveWorkspace).First(&setting).Error)
	require.Equal(t, strconv.FormatUint(kept.ID, 10), setting.Value)
}

func TestWorkspaceService_ResolveActiveNoMemberships(t *testing.T) {
	svc, db := setupWorkspaceService(t)
	user := createTestUser(t, db, "user")

	_, _, err := svc.ResolveActive(user.ID)
	require.ErrorIs(t, err, ErrNoWorkspace)
}

func TestWorkspaceService_ListCacheAndForce(t *testing.T) {
	db := setupTestDB(t)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	svc := NewWorkspaceService(
		repository.NewWorkspaceRepository(db),
		repository.NewUserRepository(db),
		repository.NewSettingRepository(db),
		rdb,
		nil,
	)
	ctx := context.Background()

	owner := createTestUser(t, db, "owner")
	user := createTestUser(t, db, "user")
	createTestWorkspace(t, db, "Attic", user.ID)

	memberships, err := svc.List(ctx, user.ID, false)
	require.NoError(t, err)
	require.Len(t, memberships, 1)

	// A membership created behind the service's back is not visible
	// through the cache...
	ws := createTestWorkspace(t, db, "Kitchen", owner.ID)
	addTestMember(t, db, ws.ID, user.ID, models.RoleMember)

	memberships, err = svc.List(ctx, user.ID, false)
	require.NoError(t, err)
	require.Len(t, memberships, 1)

	// ...until the caller forces a refetch.
	memberships, err = svc.List(ctx, user.ID, true)
	require.NoError(t, err)
	require.Len(t, memberships, 2)

	// Membership changes through the service invalidate the cache.
	require.NoError(t, svc.RemoveMember(ws.ID, owner.ID, user.ID))

	memberships, err = svc.List(ctx, user.ID, false)
	require.NoError(t, err)
	require.Len(t, memberships, 1)
}

func TestWorkspaceService_DeleteRequiresOwner(t *testing.T) {
	svc, db := setupWorkspaceService(t)
	owner := createTestUser(t, db, "owner")
	admin := createTestUser(t, db, "admin")
	ws := createTestWorkspace(t, db, "Kitchen", owner.ID)
	addTestMember(t, db, ws.ID, admin.ID, models.RoleAdmin)

	require.ErrorIs(t, svc.Delete(ws.ID, admin.ID), ErrWorkspaceForbidden)
	require.NoError(t, svc.Delete(ws.ID, owner.ID))

	_, _, err := svc.Get(ws.ID, owner.ID)
	require.ErrorIs(t, err, ErrWorkspaceNotFound)
}
