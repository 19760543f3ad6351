// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package sec provides cryptographic primitives and token management.
//
// # Architecture
//
// This package isolates security-sensitive code (hashing, JWT signing, reset
// token binding) from the domain logic. Services receive these primitives
// through constructor injection.
package sec

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AuthClaims represents the payload embedded inside a JWT access token.
//
// The subject carries the user id, the jti is unique per issued token and
// Roles holds one entry per assigned role.
type AuthClaims struct {
	jwt.RegisteredClaims

	Roles []string `json:"role,omitempty"`
}

// UserID returns the subject of the token.
func (claims *AuthClaims) UserID() string {
	return claims.Subject
}

// HasRole reports whether the claims carry the named role (case-insensitive).
func (claims *AuthClaims) HasRole(role string) bool {
	for _, held := range claims.Roles {
		if strings.EqualFold(held, role) {
			return true
		}
	}
	return false
}

// Token is a signed access token and the instant it stops being valid.
type Token struct {
	Value     string
	ExpiresAt time.Time
}

// TokenConfig is the immutable configuration of a [TokenService].
type TokenConfig struct {
	Secret   string
	Issuer   string
	Lifetime time.Duration
}

// TokenService issues and verifies HS256 access tokens.
type TokenService struct {
	secret   []byte
	issuer   string
	lifetime time.Duration
	now      func() time.Time
	newID    func() string
}

// NewTokenService validates cfg and returns a ready [TokenService].
func NewTokenService(cfg TokenConfig) (*TokenService, error) {
	switch {
	case cfg.Secret == "":
		return nil, errors.New("sec: jwt secret is not configured")
	case cfg.Issuer == "":
		return nil, errors.New("sec: jwt issuer is not configured")
	case cfg.Lifetime <= 0:
		return nil, errors.New("sec: jwt lifetime must be positive")
	}

	return &TokenService{
		secret:   []byte(cfg.Secret),
		issuer:   cfg.Issuer,
		lifetime: cfg.Lifetime,
		now:      time.Now,
		newID:    uuid.NewString,
	}, nil
}

// WithClock returns a copy of the service that reads time from now.
func (service *TokenService) WithClock(now func() time.Time) *TokenService {
	clone := *service
	clone.now = now
	return &clone
}

/*
Generate signs a new access token for the user and role set.

Parameters:
  - userID: string (Non-empty subject)
  - roles: []string (May be empty)

Returns:
  - Token: Signed token and its expiry
  - error: Empty subject or signing failures
*/
func (service *TokenService) Generate(userID string, roles []string) (Token, error) {
	if userID == "" {
		return Token{}, errors.New("sec: token subject must not be empty")
	}

	issuedAt := service.now()
	expiresAt := issuedAt.Add(service.lifetime)

	claims := AuthClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ID:        service.newID(),
			Issuer:    service.issuer,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Roles: append([]string(nil), roles...),
	}

	signedToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(service.secret)
	if err != nil {
		return Token{}, fmt.Errorf("sec: failed to sign token: %w", err)
	}

	return Token{Value: signedToken, ExpiresAt: expiresAt}, nil
}

// VerifyToken checks the signature, issuer and lifetime of a JWT string.
func (service *TokenService) VerifyToken(tokenString string) (*AuthClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &AuthClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("sec: unexpected signing method: %v", token.Header["alg"])
		}
		return service.secret, nil
	},
		jwt.WithIssuer(service.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(service.now),
	)
	if err != nil {
		return nil, fmt.Errorf("sec: invalid token: %w", err)
	}

	claims, ok := token.Claims.(*AuthClaims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, errors.New("sec: invalid token claims")
	}

	return claims, nil
}
