// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package identity

import (
	"fmt"
	"net/mail"
	"strings"
	"unicode"

	"github.com/taibuivan/piggybank/internal/platform/sec"
)

// # Password Policy

// PasswordPolicy lists the rules a new password must meet. MaxBytes bounds
// the UTF-8 length and zero disables that check.
type PasswordPolicy struct {
	MinLength              int
	MaxBytes               int
	RequireDigit           bool
	RequireLowercase       bool
	RequireUppercase       bool
	RequireNonAlphanumeric bool
}

// DefaultPasswordPolicy requires six characters mixing digits and both cases.
var DefaultPasswordPolicy = PasswordPolicy{
	MinLength:        6,
	MaxBytes:         sec.MaxPasswordBytes,
	RequireDigit:     true,
	RequireLowercase: true,
	RequireUppercase: true,
}

// Validate returns every rule the password breaks.
func (policy PasswordPolicy) Validate(password string) []ResultError {
	var failures []ResultError

	if len([]rune(password)) < policy.MinLength {
		failures = append(failures, ResultError{
			Code:        CodePasswordTooShort,
			Description: fmt.Sprintf("Passwords must be at least %d characters.", policy.MinLength),
		})
	}

	if policy.MaxBytes > 0 && len(password) > policy.MaxBytes {
		failures = append(failures, ResultError{
			Code:        CodePasswordTooLong,
			Description: fmt.Sprintf("Passwords must be at most %d bytes.", policy.MaxBytes),
		})
	}

	var hasDigit, hasLower, hasUpper, hasOther bool
	for _, r := range password {
		switch {
		case r >= '0' && r <= '9':
			hasDigit = true
		case r >= 'a' && r <= 'z':
			hasLower = true
		case r >= 'A' && r <= 'Z':
			hasUpper = true
		case !unicode.IsLetter(r) && !unicode.IsDigit(r):
			hasOther = true
		}
	}

	if policy.RequireDigit && !hasDigit {
		failures = append(failures, ResultError{Code: CodePasswordRequiresDigit, Description: "Passwords must have at least one digit ('0'-'9')."})
	}
	if policy.RequireLowercase && !hasLower {
		failures = append(failures, ResultError{Code: CodePasswordRequiresLower, Description: "Passwords must have at least one lowercase ('a'-'z')."})
	}
	if policy.RequireUppercase && !hasUpper {
		failures = append(failures, ResultError{Code: CodePasswordRequiresUpper, Description: "Passwords must have at least one uppercase ('A'-'Z')."})
	}
	if policy.RequireNonAlphanumeric && !hasOther {
		failures = append(failures, ResultError{Code: CodePasswordRequiresNonAlpha, Description: "Passwords must have at least one non alphanumeric character."})
	}

	return failures
}

// # Account Validation

// allowedUserNameCharacters excludes "@" so that login can tell usernames from emails.
const allowedUserNameCharacters = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789-._+"

// validateAccount checks the username and email shape.
func validateAccount(user *User) []ResultError {
	var failures []ResultError

	username := strings.TrimSpace(user.Username)
	if username == "" || strings.Trim(username, allowedUserNameCharacters) != "" {
		failures = append(failures, errInvalidUserName(user.Username))
	}

	email := strings.TrimSpace(user.Email)
	if address, err := mail.ParseAddress(email); err != nil || address.Address != email {
		failures = append(failures, errInvalidEmail(user.Email))
	}

	return failures
}
