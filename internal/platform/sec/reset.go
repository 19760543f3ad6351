// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package sec

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// resetAudience scopes reset tokens so they are never accepted as access tokens.
const resetAudience = "password-reset"

// ErrResetTokenInvalid is returned for tampered, expired, foreign or replayed reset tokens.
var ErrResetTokenInvalid = errors.New("sec: invalid password reset token")

type resetClaims struct {
	jwt.RegisteredClaims

	// Stamp fingerprints the password hash the token was issued against.
	Stamp string `json:"stp"`
}

// ResetTokenProvider issues password reset tokens bound to a user's current
// password hash. Tokens are not stored. Redeeming one changes the hash, which
// changes the stamp, so a token cannot be replayed.
type ResetTokenProvider struct {
	key      []byte
	lifetime time.Duration
	now      func() time.Time
}

// NewResetTokenProvider derives a dedicated signing key from secret.
func NewResetTokenProvider(secret string, lifetime time.Duration) (*ResetTokenProvider, error) {
	if secret == "" {
		return nil, errors.New("sec: reset token secret is not configured")
	}
	if lifetime <= 0 {
		return nil, errors.New("sec: reset token lifetime must be positive")
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(resetAudience))

	return &ResetTokenProvider{
		key:      mac.Sum(nil),
		lifetime: lifetime,
		now:      time.Now,
	}, nil
}

// WithClock returns a copy of the provider that reads time from now.
func (provider *ResetTokenProvider) WithClock(now func() time.Time) *ResetTokenProvider {
	clone := *provider
	clone.now = now
	return &clone
}

/*
Generate issues a reset token for the user's current credential state.

Parameters:
  - userID: string
  - passwordHash: string (Hash stored at generation time)

Returns:
  - string: Opaque token
  - error: Signing failures
*/
func (provider *ResetTokenProvider) Generate(userID, passwordHash string) (string, error) {
	issuedAt := provider.now()
	claims := resetClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Audience:  jwt.ClaimStrings{resetAudience},
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(provider.lifetime)),
		},
		Stamp: provider.stamp(passwordHash),
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(provider.key)
	if err != nil {
		return "", fmt.Errorf("sec: failed to sign reset token: %w", err)
	}
	return token, nil
}

// Validate re-derives validity from the token and the user's state at redemption time.
func (provider *ResetTokenProvider) Validate(token, userID, passwordHash string) error {
	claims := &resetClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrResetTokenInvalid
		}
		return provider.key, nil
	},
		jwt.WithAudience(resetAudience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(provider.now),
	)
	if err != nil || !parsed.Valid {
		return ErrResetTokenInvalid
	}

	if claims.Subject != userID {
		return ErrResetTokenInvalid
	}

	if !hmac.Equal([]byte(claims.Stamp), []byte(provider.stamp(passwordHash))) {
		return ErrResetTokenInvalid
	}

	return nil
}

// stamp fingerprints a password hash with a keyed MAC so the token payload
// reveals nothing about the hash.
func (provider *ResetTokenProvider) stamp(passwordHash string) string {
	mac := hmac.New(sha256.New, provider.key)
	mac.Write([]byte(passwordHash))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
