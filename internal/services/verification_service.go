package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/moritani/inventory-api/internal/queue"
	"github.com/moritani/inventory-api/internal/repository"
)

var (
	ErrInvalidEmail       = errors.New("invalid email address")
	ErrVerificationFailed = errors.New("verification code is invalid or expired")
)

const emailChangeTTL = 5 * time.Minute

// VerificationService handles email changes through one-time codes. A code
// lives in Redis under a per-user key for five minutes; issuing a new code
// overwrites the previous one, and a successful confirmation deletes the
// key so the code cannot be replayed.
type VerificationService struct {
	userRepo repository.UserRepository
	rdb      *redis.Client
	notifier queue.Notifier
}

func NewVerificationService(userRepo repository.UserRepository, rdb *redis.Client, notifier queue.Notifier) *VerificationService {
	return &VerificationService{userRepo: userRepo, rdb: rdb, notifier: notifier}
}

// RequestEmailChange issues a six-digit code for changing the user's email
// and hands it to the notification queue addressed to the NEW address, so
// confirming proves the user controls that mailbox. Delivery is best
// effort; a queue failure is logged but the code stays valid.
func (s *VerificationService) RequestEmailChange(ctx context.Context, userID uint64, newEmail string) error {
	newEmail = strings.ToLower(strings.TrimSpace(newEmail))
	if newEmail == "" || !strings.Contains(newEmail, "@") {
		return ErrInvalidEmail
	}

	if _, err := s.userRepo.FindByEmail(newEmail); err == nil {
		return ErrEmailTaken
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("failed to check email: %w", err)
	}

	code, err := generateCode()
	if err != nil {
		return fmt.Errorf("failed to generate code: %w", err)
	}

	payload := code + ":" + newEmail
	if err := s.rdb.Set(ctx, emailChangeKey(userID), payload, emailChangeTTL).Err(); err != nil {
		return fmt.Errorf("failed to store verification code: %w", err)
	}

	if err := s.notifier.Send(ctx, queue.KindEmailChangeCode, newEmail, map[string]any{
		"code":       code,
		"expires_in": int(emailChangeTTL.Seconds()),
	}); err != nil {
		logrus.WithError(err).WithField("user_id", userID).Warn("failed to queue email change code")
	}
	return nil
}

// ConfirmEmailChange checks the submitted code against the stored one and,
// on match, moves the account to the new address and burns the code. A
// wrong code, an expired code and a never-requested change all fail the
// same way.
func (s *VerificationService) ConfirmEmailChange(ctx context.Context, userID uint64, code string) error {
	key := emailChangeKey(userID)

	stored, err := s.rdb.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrVerificationFailed
		}
		return fmt.Errorf("failed to read verification code: %w", err)
	}

	wantCode, newEmail, ok := strings.Cut(stored, ":")
	if !ok || strings.TrimSpace(code) != wantCode {
		return ErrVerificationFailed
	}

	user, err := s.userRepo.FindByID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to find user: %w", err)
	}

	// The address may have been taken since the code was issued.
	if existing, err := s.userRepo.FindByEmail(newEmail); err == nil && existing.ID != userID {
		return ErrEmailTaken
	} else if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("failed to check email: %w", err)
	}

	user.Email = newEmail
	if err := s.userRepo.Update(user); err != nil {
		return fmt.Errorf("failed to update email: %w", err)
	}

	if err := s.rdb.Del(ctx, key).Err(); err != nil {
		logrus.WithError(err).WithField("user_id", userID).Warn("failed to burn verification code")
	}
	return nil
}

func emailChangeKey(userID uint64) string {
	return "email_change:" + strconv.FormatUint(userID, 10)
}

func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
