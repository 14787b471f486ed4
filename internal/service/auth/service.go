package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/clinicore/clinic-api/internal/model"
	"github.com/clinicore/clinic-api/internal/repository"
	"github.com/clinicore/clinic-api/pkg/auth"
	"github.com/clinicore/clinic-api/pkg/errors"
	"github.com/clinicore/clinic-api/pkg/security"
)

// Service handles authentication: credential checks and token issuance.
type Service struct {
	users  repository.UserRepository
	tokens auth.JWTService
	hasher security.PasswordHasher
}

func NewService(users repository.UserRepository, tokens auth.JWTService, hasher security.PasswordHasher) *Service {
	return &Service{
		users:  users,
		tokens: tokens,
		hasher: hasher,
	}
}

func (s *Service) Login(ctx context.Context, req *model.LoginRequest) (*model.TokenResponse, error) {
	user, err := s.users.GetByEmail(ctx, req.Email)
	if err != nil {
		return nil, errors.Unauthorized(fmt.Errorf("invalid credentials"))
	}
	if user.Status != model.UserStatusActive {
		return nil, errors.Unauthorized(fmt.Errorf("account is %s", user.Status))
	}
	if err := s.hasher.Compare(user.PasswordHash, req.Password); err != nil {
		return nil, errors.Unauthorized(fmt.Errorf("invalid credentials"))
	}

	access, err := s.tokens.GenerateAccessToken(user)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}
	refresh, err := s.tokens.GenerateRefreshToken(user)
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	now := time.Now()
	user.LastLoginAt = &now
	if err := s.users.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to record login: %w", err)
	}

	return &model.TokenResponse{
		AccessToken:  access,
		RefreshToken: refresh,
	}, nil
}

func (s *Service) Refresh(ctx context.Context, refreshToken string) (*model.TokenResponse, error) {
	claims, err := s.tokens.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, errors.Unauthorized(err)
	}

	user, err := s.users.Get(ctx, claims.UserID)
	if err != nil {
		return nil, errors.Unauthorized(fmt.Errorf("user no longer exists"))
	}

	access, err := s.tokens.GenerateAccessToken(user)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}
	refresh, err := s.tokens.GenerateRefreshToken(user)
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	return &model.TokenResponse{
		AccessToken:  access,
		RefreshToken: refresh,
	}, nil
}

// ValidateToken parses and checks an access token.
func (s *Service) ValidateToken(token string) (*model.TokenClaims, error) {
	return s.tokens.ValidateToken(token)
}
