// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package sec

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

// # Contracts

// Hasher produces and verifies opaque password hashes.
type Hasher interface {
	// Hash returns an encoded hash for a new or changed password.
	Hash(password string) (string, error)

	// Verify reports whether password matches the stored hash.
	Verify(hash, password string) bool
}

// Supported algorithm names for [NewHasher].
const (
	AlgorithmBcrypt   = "bcrypt"
	AlgorithmArgon2id = "argon2id"
)

// argon2id parameters (RFC 9106 second recommended option).
const (
	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
	argonKeyLen  = 32
	argonSaltLen = 16
	argonPrefix  = "$argon2id$"
)

var errMalformedHash = errors.New("sec: malformed argon2id hash")

// NewHasher returns a [Hasher] that hashes with the named algorithm and
// verifies hashes produced by either supported algorithm, so switching the
// configured algorithm does not lock out existing accounts.
func NewHasher(algorithm string) (Hasher, error) {
	switch algorithm {
	case AlgorithmBcrypt:
		return &dispatchHasher{primary: BcryptHasher{Cost: bcrypt.DefaultCost}}, nil
	case AlgorithmArgon2id:
		return &dispatchHasher{primary: Argon2Hasher{}}, nil
	default:
		return nil, fmt.Errorf("sec: unknown password hasher %q", algorithm)
	}
}

type dispatchHasher struct {
	primary Hasher
}

func (hasher *dispatchHasher) Hash(password string) (string, error) {
	return hasher.primary.Hash(password)
}

func (hasher *dispatchHasher) Verify(hash, password string) bool {
	if strings.HasPrefix(hash, argonPrefix) {
		return Argon2Hasher{}.Verify(hash, password)
	}
	return BcryptHasher{}.Verify(hash, password)
}

// # Bcrypt

// MaxPasswordBytes is the longest input bcrypt accepts.
const MaxPasswordBytes = 72

// BcryptHasher hashes passwords with bcrypt.
type BcryptHasher struct {
	Cost int
}

// Hash hashes a plain-text password using the bcrypt algorithm.
func (hasher BcryptHasher) Hash(password string) (string, error) {
	cost := hasher.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}

	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("sec: failed to hash password: %w", err)
	}
	return string(hashedBytes), nil
}

// Verify compares a plain-text password with its bcrypt hash.
func (hasher BcryptHasher) Verify(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// # Argon2id

// Argon2Hasher hashes passwords with argon2id and encodes them in PHC format.
type Argon2Hasher struct{}

// Hash derives an argon2id key with a random salt.
func (Argon2Hasher) Hash(password string) (string, error) {
	salt := make([]byte, argonSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("sec: failed to read salt: %w", err)
	}

	key := argon2.IDKey([]byte(password), salt, argonTime, argonMemory, argonThreads, argonKeyLen)

	return fmt.Sprintf("%sv=%d$m=%d,t=%d,p=%d$%s$%s",
		argonPrefix,
		argon2.Version,
		argonMemory, argonTime, argonThreads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify recomputes the key with the encoded parameters and compares in constant time.
func (Argon2Hasher) Verify(hash, password string) bool {
	params, salt, key, err := decodeArgon2(hash)
	if err != nil {
		return false
	}

	candidate := argon2.IDKey([]byte(password), salt, params.time, params.memory, params.threads, uint32(len(key)))
	return subtle.ConstantTimeCompare(candidate, key) == 1
}

type argonParams struct {
	memory  uint32
	time    uint32
	threads uint8
}

func decodeArgon2(hash string) (argonParams, []byte, []byte, error) {
	var params argonParams

	// "", "argon2id", "v=19", "m=..,t=..,p=..", salt, key
	parts := strings.Split(hash, "$")
	if len(parts) != 6 {
		return params, nil, nil, errMalformedHash
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return params, nil, nil, errMalformedHash
	}

	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &params.memory, &params.time, &params.threads); err != nil {
		return params, nil, nil, errMalformedHash
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return params, nil, nil, errMalformedHash
	}

	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(key) == 0 {
		return params, nil, nil, errMalformedHash
	}

	return params, salt, key, nil
}
