package services

import (
	"context"
	"strings"
	"time"

	"github.com/screenfund/backend/internal/apperr"
	"github.com/screenfund/backend/internal/auth"
	"github.com/screenfund/backend/internal/models"
	"github.com/screenfund/backend/internal/repository"
)

type TokenPair struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

type UserService struct {
	store  repository.Store
	tokens *auth.TokenManager
}

func NewUserService(store repository.Store, tokens *auth.TokenManager) *UserService {
	return &UserService{store: store, tokens: tokens}
}

func (s *UserService) Register(ctx context.Context, email, password, role string, centerID *string) (models.User, error) {
	u := models.User{Email: strings.ToLower(strings.TrimSpace(email)), Role: role, CenterID: centerID}
	if err := u.Validate(); err != nil {
		return models.User{}, apperr.Validation("user", err.Error())
	}
	if len(password) < 8 {
		return models.User{}, apperr.Validation("password", "must be at least 8 characters")
	}
	if _, err := s.store.Users().GetByEmail(ctx, u.Email); err == nil {
		return models.User{}, apperr.Conflict("email already registered")
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return models.User{}, err
	}
	return s.store.Users().Create(ctx, u.Email, hash, u.Role, u.CenterID)
}

func (s *UserService) Login(ctx context.Context, email, password string) (TokenPair, error) {
	u, err := s.store.Users().GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return TokenPair{}, apperr.Validation("credentials", "invalid email or password")
	}
	if auth.VerifyPassword(password, u.PasswordHash) != nil {
		return TokenPair{}, apperr.Validation("credentials", "invalid email or password")
	}
	return s.issue(u)
}

func (s *UserService) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	claims, err := s.tokens.ParseRefresh(refreshToken)
	if err != nil {
		return TokenPair{}, apperr.Validation("refresh_token", "invalid or expired")
	}
	u, err := s.store.Users().GetByID(ctx, claims.UserID)
	if err != nil {
		return TokenPair{}, err
	}
	return s.issue(u)
}

func (s *UserService) issue(u models.User) (TokenPair, error) {
	access, refresh, exp, err := s.tokens.GeneratePair(u.ID, u.Role, u.CenterID)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh, ExpiresAt: exp}, nil
}
