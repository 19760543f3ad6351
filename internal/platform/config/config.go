// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package config handles application-wide settings and environment parsing.

It leverages 'caarlos0/env' to map OS environment variables into a strongly-typed
Go struct and validates it eagerly, so a missing signing secret, issuer or token
lifetime stops the process at startup instead of failing the first request.

Usage:

	cfg, err := config.Load()
	if err != nil {
	    log.Fatal(err)
	}

Architecture:

  - Immutability: Once loaded, configuration is read-only.
  - DI-Friendly: Passed to core components (DB, Redis, token issuer) via constructors.
  - Zero Hidden State: No global variables are used to store config.
*/
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// # Enumerations

const (
	// ResetTransportEmail sends reset tokens through the mail collaborator.
	ResetTransportEmail = "email"
	// ResetTransportResponse returns reset tokens in the forgot-password response.
	ResetTransportResponse = "response"

	HasherBcrypt   = "bcrypt"
	HasherArgon2id = "argon2id"

	// dbPasswordPlaceholder is replaced in DATABASE_URL by DB_PASSWORD.
	dbPasswordPlaceholder = "%DB_PASSWORD%"

	// minSecretLength is the minimum HS256 key size in bytes.
	minSecretLength = 32
)

// # Configuration Schema

// Config holds all runtime configuration for the Piggybank API server.
type Config struct {

	// Server settings
	ServerPort  string `env:"SERVER_PORT"  envDefault:"8080"`
	Environment string `env:"ENVIRONMENT"  envDefault:"development"`
	Debug       bool   `env:"DEBUG"        envDefault:"false"`

	// Relational Database (PostgreSQL)
	DatabaseURL string `env:"DATABASE_URL,required"`
	DBPassword  string `env:"DB_PASSWORD"`

	// MigrationPath is the filesystem path to the SQL migrations directory.
	MigrationPath string `env:"MIGRATION_PATH" envDefault:"./data/migrations"`

	// Key-Value Cache (Redis)
	RedisURL string `env:"REDIS_URL,required"`

	// JWT holds the access token settings.
	JWT JWTConfig `envPrefix:"JWT_"`

	// Password reset
	ResetTokenLifetime  time.Duration `env:"RESET_TOKEN_LIFETIME"  envDefault:"1h"`
	ResetTokenTransport string        `env:"RESET_TOKEN_TRANSPORT" envDefault:"email"`

	// PasswordHasher selects the hashing algorithm for new hashes.
	PasswordHasher string `env:"PASSWORD_HASHER" envDefault:"bcrypt"`

	// SMTP holds the outbound mail settings.
	SMTP SMTPConfig `envPrefix:"SMTP_"`

	// Auth endpoint throttling (Redis fixed window per client IP)
	AuthThrottleLimit  int           `env:"AUTH_THROTTLE_LIMIT"  envDefault:"10"`
	AuthThrottleWindow time.Duration `env:"AUTH_THROTTLE_WINDOW" envDefault:"1m"`

	// Cross-Origin Resource Sharing
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:","`

	// SeedDefaultUsers creates the development admin and user accounts.
	SeedDefaultUsers bool `env:"SEED_DEFAULT_USERS" envDefault:"false"`
}

// JWTConfig holds the shared secret, issuer and lifetime of access tokens.
type JWTConfig struct {
	Secret           string `env:"SECRET,required"`
	Issuer           string `env:"ISSUER,required"`
	ExpiresInMinutes int    `env:"EXPIRES_IN_MINUTES,required"`
}

// SMTPConfig holds the outbound mail server settings.
type SMTPConfig struct {
	Host      string `env:"HOST"`
	Port      int    `env:"PORT"       envDefault:"587"`
	Username  string `env:"USERNAME"`
	Password  string `env:"PASSWORD"`
	EnableSSL bool   `env:"ENABLE_SSL" envDefault:"true"`
	From      string `env:"FROM"`
}

// # Configuration Loading

// Load parses environment variables into a [Config] struct and validates it.
func Load() (*Config, error) {
	return parse(env.Options{})
}

// LoadFromMap parses the given key/value pairs instead of the process environment.
func LoadFromMap(environment map[string]string) (*Config, error) {
	return parse(env.Options{Environment: environment})
}

func parse(options env.Options) (*Config, error) {

	// Initialize an empty config struct
	cfg := &Config{}

	// This will fail if any field marked with 'required' is missing.
	if err := env.ParseWithOptions(cfg, options); err != nil {
		return nil, fmt.Errorf("config: failed to parse environment variables: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	cfg.DatabaseURL = strings.ReplaceAll(cfg.DatabaseURL, dbPasswordPlaceholder, cfg.DBPassword)

	return cfg, nil
}

// Validate checks cross-field rules that struct tags cannot express.
func (c *Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.JWT.Secret) == "" {
		errs = append(errs, errors.New("JWT_SECRET must not be blank"))
	} else if len(c.JWT.Secret) < minSecretLength {
		errs = append(errs, fmt.Errorf("JWT_SECRET must be at least %d bytes", minSecretLength))
	}

	if strings.TrimSpace(c.JWT.Issuer) == "" {
		errs = append(errs, errors.New("JWT_ISSUER must not be blank"))
	}

	if c.JWT.ExpiresInMinutes <= 0 {
		errs = append(errs, errors.New("JWT_EXPIRES_IN_MINUTES must be a positive number"))
	}

	if c.ResetTokenLifetime <= 0 {
		errs = append(errs, errors.New("RESET_TOKEN_LIFETIME must be positive"))
	}

	switch c.ResetTokenTransport {
	case ResetTransportResponse:
	case ResetTransportEmail:
		if c.SMTP.Host == "" && !c.IsDevelopment() {
			errs = append(errs, errors.New("SMTP_HOST is required when RESET_TOKEN_TRANSPORT=email"))
		}
	default:
		errs = append(errs, fmt.Errorf("RESET_TOKEN_TRANSPORT must be %q or %q", ResetTransportEmail, ResetTransportResponse))
	}

	if c.PasswordHasher != HasherBcrypt && c.PasswordHasher != HasherArgon2id {
		errs = append(errs, fmt.Errorf("PASSWORD_HASHER must be %q or %q", HasherBcrypt, HasherArgon2id))
	}

	if strings.Contains(c.DatabaseURL, dbPasswordPlaceholder) && c.DBPassword == "" {
		errs = append(errs, errors.New("DB_PASSWORD is required by the DATABASE_URL placeholder"))
	}

	if c.AuthThrottleLimit <= 0 || c.AuthThrottleWindow <= 0 {
		errs = append(errs, errors.New("AUTH_THROTTLE_LIMIT and AUTH_THROTTLE_WINDOW must be positive"))
	}

	// Default users carry published passwords.
	if c.SeedDefaultUsers && c.IsProduction() {
		errs = append(errs, errors.New("SEED_DEFAULT_USERS must be false in production"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: invalid configuration: %w", errors.Join(errs...))
	}

	return nil
}

// TokenLifetime returns the access token lifetime as a duration.
func (c *Config) TokenLifetime() time.Duration {
	return time.Duration(c.JWT.ExpiresInMinutes) * time.Minute
}

// UsesSMTP reports whether reset mail goes through the SMTP relay. Response
// transport, and email transport without a host in development, log instead.
func (c *Config) UsesSMTP() bool {
	return c.ResetTokenTransport == ResetTransportEmail && c.SMTP.Host != ""
}

// IsDevelopment reports whether the server is running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction reports whether the server is running in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
