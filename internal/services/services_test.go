package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/moritani/inventory-api/internal/database"
	"github.com/moritani/inventory-api/internal/models"
	"github.com/moritani/inventory-api/internal/repository"
	"github.com/moritani/inventory-api/internal/token"
)

// setupTestDB opens an in-memory database with the full schema.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	err = db.AutoMigrate(
		&models.User{},
		&models.Workspace{},
		&models.WorkspaceMember{},
		&models.Category{},
		&models.CategoryPermission{},
		&models.Item{},
		&models.UsageRecord{},
		&models.UserSetting{},
	)
	require.NoError(t, err)

	database.SetDB(db)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() {
		sqlDB.Close()
	})

	return db
}

func testCodec() *token.Codec {
	return token.NewCodec("test-secret", 15*time.Minute, time.Hour)
}

func createTestUser(t *testing.T, db *gorm.DB, username string) *models.User {
	t.Helper()

	user := &models.User{
		Username:     username,
		DisplayName:  username,
		Email:        username + "@example.com",
		PasswordHash: "x",
		NotifyEmail:  true,
		NotifyPush:   true,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func createTestWorkspace(t *testing.T, db *gorm.DB, name string, ownerID uint64) *models.Workspace {
	t.Helper()

	ws := &models.Workspace{Name: name, Plan: models.PlanFree}
	require.NoError(t, repository.NewWorkspaceRepository(db).CreateWithOwner(ws, ownerID))
	return ws
}

func addTestMember(t *testing.T, db *gorm.DB, workspaceID, userID uint64, role models.WorkspaceRole) *models.WorkspaceMember {
	t.Helper()

	member := &models.WorkspaceMember{
		WorkspaceID: workspaceID,
		UserID:      userID,
		Role:        role,
		JoinedAt:    time.Now(),
	}
	require.NoError(t, db.Create(member).Error)
	return member
}

func findTestMember(t *testing.T, db *gorm.DB, workspaceID, userID uint64) *models.WorkspaceMember {
	t.Helper()

	var member models.WorkspaceMember
	require.NoError(t, db.Where("workspace_id = ? AND user_id = ?", workspaceID, userID).First(&member).Error)
	return &member
}
