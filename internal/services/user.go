package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"diaryhub-backend/internal/models"
	"diaryhub-backend/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

// UserStore persists users
type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	UsernamesByIDs(ctx context.Context, ids []string) (map[string]string, error)
	Delete(ctx context.Context, id string) error
}

// OwnedDiaries is the part of DiaryStore the account cascade needs
type OwnedDiaries interface {
	ListAllByOwner(ctx context.Context, ownerID string) ([]*models.Diary, error)
	DeleteByOwner(ctx context.Context, ownerID string) (int64, error)
}

// UserCache fronts username lookups. A nil cache disables caching.
type UserCache interface {
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	SetUser(ctx context.Context, u *models.User) error
	Usernames(ctx context.Context, ids []string) (map[string]string, []string, error)
	SetUsernames(ctx context.Context, names map[string]string) error
	Invalidate(ctx context.Context, u *models.User) error
}

// bcrypt ignores everything past this many bytes
const maxPasswordBytes = 72

type credentials struct {
	Username string `json:"username" validate:"required,max=50"`
	Password string `json:"password" validate:"required"`
}

// UserService handles user-related business logic
type UserService struct {
	users       UserStore
	diaries     OwnedDiaries
	attachments *Attachments
	cache       UserCache
	jwtSecret   string
	tokenTTL    time.Duration
	now         func() time.Time
}

// NewUserService creates a new user service
func NewUserService(
	users UserStore,
	diaries OwnedDiaries,
	attachments *Attachments,
	cache UserCache,
	jwtSecret string,
	ttlDays int,
) *UserService {
	return &UserService{
		users:       users,
		diaries:     diaries,
		attachments: attachments,
		cache:       cache,
		jwtSecret:   jwtSecret,
		tokenTTL:    time.Duration(ttlDays) * 24 * time.Hour,
		now:         time.Now,
	}
}

// GenerateJWT generates a JWT token for a user
func (s *UserService) GenerateJWT(userID string) (string, error) {
	now := s.now()
	claims := jwt.MapClaims{
		"user_id": userID,
		"exp":     now.Add(s.tokenTTL).Unix(),
		"iat":     now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return tokenString, nil
}

// ValidateJWT validates a JWT token and returns the user ID
func (s *UserService) ValidateJWT(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.jwtSecret), nil
	})

	if err != nil {
		return "", fmt.Errorf("failed to parse token: %w", err)
	}

	if !token.Valid {
		return "", fmt.Errorf("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("invalid token claims")
	}

	userID, ok := claims["user_id"].(string)
	if !ok || userID == "" {
		return "", fmt.Errorf("user_id not found in token")
	}

	return userID, nil
}

// Signup creates a user with a bcrypt password hash
func (s *UserService) Signup(ctx context.Context, username, password string) (*models.User, error) {
	in := credentials{Username: cleanText(username), Password: password}
	if err := checkStruct(in); err != nil {
		return nil, err
	}
	if len(in.Password) > maxPasswordBytes {
		return nil, validationError(fmt.Sprintf("password must be at most %d bytes", maxPasswordBytes))
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, internalError("failed to hash password", err)
	}

	user := &models.User{
		ID:           uuid.New().String(),
		Username:     in.Username,
		PasswordHash: string(hash),
		CreatedAt:    s.now(),
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, newError(KindConflict, "username already exists", err)
		}
		return nil, internalError("failed to create user", err)
	}

	return user, nil
}

// Login checks the password and issues a token
func (s *UserService) Login(ctx context.Context, username, password string) (string, error) {
	username = cleanText(username)
	if username == "" || password == "" {
		return "", validationError("username and password are required")
	}

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return "", storeError(err, "user not found", "failed to get user")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", newError(KindUnauthorized, "wrong password", nil)
	}

	token, err := s.GenerateJWT(user.ID)
	if err != nil {
		return "", internalError("failed to generate token", err)
	}
	return token, nil
}

// DeleteAccount removes the user and everything they own: every image of every
// diary is released, then the diaries are deleted, then the user. It stops at
// the first failure so the user row is never deleted while diaries remain.
func (s *UserService) DeleteAccount(ctx context.Context, userID string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return storeError(err, "user not found", "failed to get user")
	}

	diaries, err := s.diaries.ListAllByOwner(ctx, userID)
	if err != nil {
		return internalError("failed to list diaries", err)
	}

	for _, d := range diaries {
		if err := s.attachments.ReleaseAll(ctx, d.Images); err != nil {
			return err
		}
	}

	removed, err := s.diaries.DeleteByOwner(ctx, userID)
	if err != nil {
		return internalError("failed to delete diaries", err)
	}

	if err := s.users.Delete(ctx, userID); err != nil {
		return storeError(err, "user not found", "failed to delete user")
	}

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, user); err != nil {
			log.Warn().Err(err).Str("user_id", userID).Msg("Failed to invalidate user cache")
		}
	}

	log.Info().
		Str("user_id", userID).
		Int64("diaries", removed).
		Msg("Account deleted")

	return nil
}

// GetByUsername looks a user up by name, consulting the cache first
func (s *UserService) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	if s.cache != nil {
		cached, err := s.cache.GetByUsername(ctx, username)
		if err != nil {
			log.Warn().Err(err).Str("username", username).Msg("User cache lookup failed")
		}
		if cached != nil {
			return cached, nil
		}
	}

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.SetUser(ctx, user); err != nil {
			log.Warn().Err(err).Str("username", username).Msg("Failed to cache user")
		}
	}
	return user, nil
}

// Usernames maps user ids to usernames. Unknown ids are left out.
func (s *UserService) Usernames(ctx context.Context, ids []string) (map[string]string, error) {
	if len(ids) == 0 {
		return map[string]string{}, nil
	}
	if s.cache == nil {
		return s.users.UsernamesByIDs(ctx, ids)
	}

	names, missing, err := s.cache.Usernames(ctx, ids)
	if err != nil {
		log.Warn().Err(err).Msg("User cache lookup failed")
		names, missing = map[string]string{}, ids
	}
	if len(missing) == 0 {
		return names, nil
	}

	fetched, err := s.users.UsernamesByIDs(ctx, missing)
	if err != nil {
		return nil, err
	}
	for id, name := range fetched {
		names[id] = name
	}

	if err := s.cache.SetUsernames(ctx, fetched); err != nil {
		log.Warn().Err(err).Msg("Failed to cache usernames")
	}
	return names, nil
}
