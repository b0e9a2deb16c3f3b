package services

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/moritani/inventory-api/internal/queue"
	"github.com/moritani/inventory-api/internal/repository"
)

// recordingNotifier captures sent notifications; failErr makes Send fail.
type recordingNotifier struct {
	sent    []queue.Notification
	failErr error
}

func (n *recordingNotifier) Send(_ context.Context, kind, recipient string, payload map[string]any) error {
	if n.failErr != nil {
		return n.failErr
	}
	n.sent = append(n.sent, queue.Notification{Kind: kind, Recipient: recipient, Payload: payload})
	return nil
}

func setupVerificationTestEnv(t *testing.T) (*VerificationService, *recordingNotifier, *miniredis.Miniredis, *gorm.DB) {
	t.Helper()

	db := setupTestDB(t)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	notifier := &recordingNotifier{}
	svc := NewVerificationService(repository.NewUserRepository(db), rdb, notifier)
	return svc, notifier, mr, db
}

func TestVerificationService_EmailChangeFlow(t *testing.T) {
	svc, notifier, _, db := setupVerificationTestEnv(t)
	user := createTestUser(t, db, "alice")
	ctx := context.Background()

	require.NoError(t, svc.RequestEmailChange(ctx, user.ID, "New@Example.com"))
	require.Len(t, notifier.sent, 1)
	require.Equal(t, queue.KindEmailChangeCode, notifier.sent[0].Kind)
	require.Equal(t, "new@example.com", notifier.sent[0].Recipient)

	code, ok := notifier.sent[0].Payload["code"].(string)
	require.True(t, ok)
	require.Len(t, code, 6)

	require.NoError(t, svc.ConfirmEmailChange(ctx, user.ID, code))

	updated, err := repository.NewUserRepository(db).FindByID(user.ID)
	require.NoError(t, err)
	require.Equal(t, "new@example.com", updated.Email)

	// The code is single-use.
	err = svc.ConfirmEmailChange(ctx, user.ID, code)
	require.ErrorIs(t, err, ErrVerificationFailed)
}

func TestVerificationService_WrongCode(t *testing.T) {
	svc, notifier, _, db := setupVerificationTestEnv(t)
	user := createTestUser(t, db, "alice")
	ctx := context.Background()

	require.NoError(t, svc.RequestEmailChange(ctx, user.ID, "new@example.com"))
	code := notifier.sent[0].Payload["code"].(string)

	wrong := "000000"
	if wrong == code {
		wrong = "000001"
	}
	require.ErrorIs(t, svc.ConfirmEmailChange(ctx, user.ID, wrong), ErrVerificationFailed)

	// A wrong guess does not burn the code.
	require.NoError(t, svc.ConfirmEmailChange(ctx, user.ID, code))
}

func TestVerificationService_CodeExpires(t *testing.T) {
	svc, notifier, mr, db := setupVerificationTestEnv(t)
	user := createTestUser(t, db, "alice")
	ctx := context.Background()

	require.NoError(t, svc.RequestEmailChange(ctx, user.ID, "new@example.com"))
	code := notifier.sent[0].Payload["code"].(string)

	mr.FastForward(emailChangeTTL + 1)

	require.ErrorIs(t, svc.ConfirmEmailChange(ctx, user.ID, code), ErrVerificationFailed)
}

func TestVerificationService_NewRequestReplacesCode(t *testing.T) {
	svc, notifier, _, db := setupVerificationTestEnv(t)
	user := createTestUser(t, db, "alice")
	ctx := context.Background()

	require.NoError(t, svc.RequestEmailChange(ctx, user.ID, "first@example.com"))
	require.NoError(t, svc.RequestEmailChange(ctx, user.ID, "second@example.com"))
	require.Len(t, notifier.sent, 2)

	firstCode := notifier.sent[0].Payload["code"].(string)
	secondCode := notifier.sent[1].Payload["code"].(string)

	if firstCode != secondCode {
		require.ErrorIs(t, svc.ConfirmEmailChange(ctx, user.ID, firstCode), ErrVerificationFailed)
	}
	require.NoError(t, svc.ConfirmEmailChange(ctx, user.ID, secondCode))

	updated, err := repository.NewUserRepository(db).FindByID(user.ID)
	require.NoError(t, err)
	require.Equal(t, "second@example.com", updated.Email)
}

func TestVerificationService_TakenEmailRejected(t *testing.T) {
	svc, _, _, db := setupVerificationTestEnv(t)
	user := createTestUser(t, db, "alice")
	createTestUser(t, db, "bob") // bob@example.com

	err := svc.RequestEmailChange(context.Background(), user.ID, "bob@example.com")
	require.ErrorIs(t, err, ErrEmailTaken)
}

func TestVerificationService_QueueFailureKeepsCodeValid(t *testing.T) {
	svc, notifier, mr, db := setupVerificationTestEnv(t)
	user := createTestUser(t, db, "alice")
	notifier.failErr = errors.New("broker down")

	// Delivery is best effort: the request succeeds and the code is stored.
	require.NoError(t, svc.RequestEmailChange(context.Background(), user.ID, "new@example.com"))
	require.True(t, mr.Exists(emailChangeKey(user.ID)))
}
