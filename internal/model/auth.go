package model

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// TokenClaims are the JWT claims issued at login.
type TokenClaims struct {
	UserID          uuid.UUID  `json:"user_id"`
	Email           string     `json:"email"`
	IsAdmin         bool       `json:"is_admin"`
	DefaultClinicID *uuid.UUID `json:"default_clinic_id,omitempty"`
	jwt.RegisteredClaims
}
