package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/moritani/inventory-api/internal/constants"
	"github.com/moritani/inventory-api/internal/models"
	"github.com/moritani/inventory-api/internal/repository"
	"github.com/moritani/inventory-api/internal/token"
)

var (
	// ErrInvalidCredentials covers both unknown username and wrong password,
	// so a caller cannot probe which usernames exist.
	ErrInvalidCredentials   = errors.New("invalid username or password")
	ErrEmailTaken           = errors.New("email already in use")
	ErrUsernameTaken        = errors.New("username already exists")
	ErrPasswordTooShort     = errors.New("password too short")
	ErrUserNotFound         = errors.New("user not found")
	ErrRefreshTokenExpired  = errors.New("refresh token expired")
	ErrRefreshTokenInvalid  = errors.New("refresh token invalid")
	ErrRefreshSuperseded    = errors.New("refresh token superseded")
	ErrFailedToHashPassword = errors.New("failed to hash password")
)

// AuthService owns the session lifecycle: credential verification, token
// issuance, refresh-token rotation and logout.
type AuthService struct {
	userRepo   repository.UserRepository
	codec      *token.Codec
	bcryptCost int
}

// NewAuthService creates a new AuthService.
func NewAuthService(userRepo repository.UserRepository, codec *token.Codec, bcryptCost int) *AuthService {
	if bcryptCost < bcrypt.MinCost {
		bcryptCost = bcrypt.DefaultCost
	}
	return &AuthService{
		userRepo:   userRepo,
		codec:      codec,
		bcryptCost: bcryptCost,
	}
}

// TokenPair is the result of a successful login or registration.
type TokenPair struct {
	AccessToken      string    `json:"access_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshToken     string    `json:"refresh_token"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

// RegisterInput represents the required information to create a new user.
type RegisterInput struct {
	Username    string
	DisplayName string
	Email       string
	Password    string
}

// Register creates a user and opens a session for them.
func (s *AuthService) Register(input RegisterInput) (*models.User, *TokenPair, error) {
	username := strings.TrimSpace(input.Username)
	if username == "" {
		return nil, nil, fmt.Errorf("username is required")
	}
	if len(input.Password) < constants.MinPasswordLength {
		return nil, nil, ErrPasswordTooShort
	}
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" {
		return nil, nil, fmt.Errorf("email is required")
	}

	if _, err := s.userRepo.FindByEmail(email); err == nil {
		return nil, nil, ErrEmailTaken
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, fmt.Errorf("failed to check email: %w", err)
	}
	if _, err := s.userRepo.FindByUsername(username); err == nil {
		return nil, nil, ErrUsernameTaken
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, fmt.Errorf("failed to check username: %w", err)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.Password), s.bcryptCost)
	if err != nil {
		return nil, nil, ErrFailedToHashPassword
	}

	displayName := strings.TrimSpace(input.DisplayName)
	if displayName == "" {
		displayName = username
	}

	user := &models.User{
		Username:     username,
		DisplayName:  displayName,
		Email:        email,
		PasswordHash: string(hashedPassword),
		NotifyEmail:  true,
		NotifyPush:   true,
	}

	if err := s.userRepo.Create(user); err != nil {
		return nil, nil, fmt.Errorf("failed to create user: %w", err)
	}

	pair, err := s.openSession(user)
	if err != nil {
		return nil, nil, err
	}
	return user, pair, nil
}

// Login verifies credentials and opens a session. Issuing the new refresh
// token overwrites the previous one, which is the single mechanism for
// "log out everywhere".
func (s *AuthService) Login(username, password string) (*models.User, *TokenPair, error) {
	user, err := s.userRepo.FindByUsername(strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, fmt.Errorf("failed to find user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, nil, ErrInvalidCredentials
	}

	pair, err := s.openSession(user)
	if err != nil {
		return nil, nil, err
	}
	return user, pair, nil
}

// Refresh exchanges a live refresh token for a fresh access token. The
// refresh token itself is not rotated here; rotation happens only on login.
// A token that verifies but no longer matches the persisted fingerprint has
// been superseded by a later login and must force re-authentication.
func (s *AuthService) Refresh(refreshToken string) (string, time.Time, error) {
	claims, err := s.codec.ParseRefreshToken(refreshToken)
	if err != nil {
		if errors.Is(err, token.ErrExpired) {
			return "", time.Time{}, ErrRefreshTokenExpired
		}
		return "", time.Time{}, ErrRefreshTokenInvalid
	}

	user, err := s.userRepo.FindByID(claims.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", time.Time{}, ErrRefreshSuperseded
		}
		return "", time.Time{}, fmt.Errorf("failed to find user: %w", err)
	}

	if user.RefreshTokenHash == "" || user.RefreshTokenHash != token.Fingerprint(refreshToken) {
		return "", time.Time{}, ErrRefreshSuperseded
	}

	access, expiresAt, err := s.codec.IssueAccessToken(user)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to issue access token: %w", err)
	}
	return access, expiresAt, nil
}

// Logout clears the persisted refresh token. Calling it for a user who is
// already logged out is a no-op.
func (s *AuthService) Logout(userID uint64) error {
	if err := s.userRepo.ClearRefreshTokenHash(userID); err != nil {
		return fmt.Errorf("failed to clear refresh token: %w", err)
	}
	return nil
}

// GetUser retrieves a user by ID.
func (s *AuthService) GetUser(id uint64) (*models.User, error) {
	user, err := s.userRepo.FindByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return user, nil
}

func (s *AuthService) openSession(user *models.User) (*TokenPair, error) {
	access, accessExp, err := s.codec.IssueAccessToken(user)
	if err != nil {
		return nil, fmt.Errorf("failed to issue access token: %w", err)
	}
	refresh, refreshExp, err := s.codec.IssueRefreshToken(user)
	if err != nil {
		return nil, fmt.Errorf("failed to issue refresh token: %w", err)
	}

	if err := s.userRepo.SetRefreshTokenHash(user.ID, token.Fingerprint(refresh)); err != nil {
		return nil, fmt.Errorf("failed to persist refresh token: %w", err)
	}

	return &TokenPair{
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refresh,
		RefreshExpiresAt: refreshExp,
	}, nil
}
