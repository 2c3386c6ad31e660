package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/interfix/helpdesk/internal/auth"
	"github.com/interfix/helpdesk/internal/config"
	"github.com/interfix/helpdesk/internal/domain"
	"github.com/interfix/helpdesk/internal/repository"
	apperrors "github.com/interfix/helpdesk/pkg/util/errorutil"
)

// AuthService coordinates login and user lookups.
type AuthService struct {
	users     repository.UserRepository
	tokenMgr  *auth.TokenManager
	passwords auth.Passwords
	logger    *zap.Logger
}

// AuthDependencies encapsulates repo requirements for auth service.
type AuthDependencies struct {
	UserRepo     repository.UserRepository
	TokenManager *auth.TokenManager
	Logger       *zap.Logger
}

// NewAuthService builds the service.
func NewAuthService(cfg config.Config, deps AuthDependencies) *AuthService {
	tokens := deps.TokenManager
	if tokens == nil {
		tokens = auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		users:     deps.UserRepo,
		tokenMgr:  tokens,
		passwords: auth.NewPasswords(cfg.Auth.BcryptCost),
		logger:    logger.Named("auth"),
	}
}

// Login authenticates a user by email and password.
func (s *AuthService) Login(ctx context.Context, email, password string) (*domain.User, string, time.Time, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, "", time.Time{}, apperrors.NewValidationError("email and password are required", nil)
	}
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, "", time.Time{}, apperrors.NewUnauthorized("invalid credentials")
		}
		return nil, "", time.Time{}, err
	}
	if !user.Active {
		return nil, "", time.Time{}, apperrors.NewUnauthorized("user inactive")
	}
	ok, stale := s.passwords.Verify(user.PasswordHash, password)
	if !ok {
		return nil, "", time.Time{}, apperrors.NewUnauthorized("invalid credentials")
	}
	if stale {
		s.rehash(ctx, user, password)
	}
	token, exp, err := s.tokenMgr.GenerateToken(user)
	if err != nil {
		return nil, "", time.Time{}, err
	}
	s.logger.Info("user signed in", zap.Int64("user_id", user.ID), zap.String("role", string(user.Role)))
	return user, token, exp, nil
}

// Register creates an account. Used by the seed command and admins.
func (s *AuthService) Register(ctx context.Context, name, email, password string, role domain.UserRole) (*domain.User, error) {
	name, email = strings.TrimSpace(name), strings.ToLower(strings.TrimSpace(email))
	if name == "" || email == "" || password == "" {
		return nil, apperrors.NewValidationError("name, email and password are required", nil)
	}
	if role == "" {
		role = domain.UserRoleUser
	}
	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, apperrors.NewConflict("email already registered", map[string]any{"email": email})
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	hash, err := s.passwords.Hash(password)
	if errors.Is(err, auth.ErrPasswordTooShort) {
		return nil, apperrors.NewValidationError("password too short", map[string]any{
			"fields": map[string]any{"password": fmt.Sprintf("must be at least %d characters", auth.MinPasswordLength)},
		})
	}
	if err != nil {
		return nil, err
	}
	user := &domain.User{Name: name, Email: email, PasswordHash: hash, Role: role, Active: true}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// rehash upgrades a hash produced at an old bcrypt cost. Failure keeps the old hash.
func (s *AuthService) rehash(ctx context.Context, user *domain.User, password string) {
	cost, _ := bcrypt.Cost([]byte(user.PasswordHash))
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.passwords.Cost())
	if err != nil {
		s.logger.Warn("password rehash failed", zap.Int64("user_id", user.ID), zap.Error(err))
		return
	}
	user.PasswordHash = string(hash)
	if err := s.users.Update(ctx, user); err != nil {
		s.logger.Warn("password rehash not stored", zap.Int64("user_id", user.ID), zap.Error(err))
		return
	}
	s.logger.Info("password hash upgraded", zap.Int64("user_id", user.ID),
		zap.Int("from_cost", cost), zap.Int("to_cost", s.passwords.Cost()))
}

// LookupByEmail backs the directory endpoint used to resolve reporter ids.
func (s *AuthService) LookupByEmail(ctx context.Context, email string) (*domain.User, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, apperrors.NewValidationError("email is required", nil)
	}
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("user", nil)
		}
		return nil, err
	}
	return user, nil
}
