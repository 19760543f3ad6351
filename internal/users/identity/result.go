// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package identity

import (
	"fmt"

	"github.com/taibuivan/piggybank/internal/platform/apperr"
)

// # Result Codes

const (
	CodeDuplicateUserName        = "DuplicateUserName"
	CodeDuplicateEmail           = "DuplicateEmail"
	CodeInvalidUserName          = "InvalidUserName"
	CodeInvalidEmail             = "InvalidEmail"
	CodeInvalidRoleName          = "InvalidRoleName"
	CodeDuplicateRoleName        = "DuplicateRoleName"
	CodePasswordTooShort         = "PasswordTooShort"
	CodePasswordTooLong          = "PasswordTooLong"
	CodePasswordRequiresDigit    = "PasswordRequiresDigit"
	CodePasswordRequiresLower    = "PasswordRequiresLower"
	CodePasswordRequiresUpper    = "PasswordRequiresUpper"
	CodePasswordRequiresNonAlpha = "PasswordRequiresNonAlphanumeric"
	CodePasswordMismatch         = "PasswordMismatch"
	CodeInvalidToken             = "InvalidToken"
	CodeUserNotFound             = "UserNotFound"
	CodeNoNewPassword            = "NoNewPassword"
)

// ResultError is one human-readable reason for a failed operation.
type ResultError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// Result reports the outcome of a store mutation.
// Expected business failures are carried here, never as raised errors.
type Result struct {
	Succeeded bool
	Errors    []ResultError
}

// Success returns a succeeded [Result].
func Success() Result {
	return Result{Succeeded: true}
}

// Failed returns a failed [Result] with the given reasons.
func Failed(errors ...ResultError) Result {
	return Result{Succeeded: false, Errors: errors}
}

// Err converts a failed result into an [apperr.ValidationError] titled message.
// It returns nil for a succeeded result.
func (result Result) Err(message string) error {
	if result.Succeeded {
		return nil
	}

	details := make([]apperr.FieldError, 0, len(result.Errors))
	for _, resultError := range result.Errors {
		details = append(details, apperr.FieldError{Field: resultError.Code, Message: resultError.Description})
	}
	return apperr.ValidationError(message, details...)
}

// # Well-Known Failures

func errDuplicateUserName(username string) ResultError {
	return ResultError{Code: CodeDuplicateUserName, Description: fmt.Sprintf("Username '%s' is already taken.", username)}
}

func errDuplicateEmail(email string) ResultError {
	return ResultError{Code: CodeDuplicateEmail, Description: fmt.Sprintf("Email '%s' is already taken.", email)}
}

func errInvalidUserName(username string) ResultError {
	return ResultError{Code: CodeInvalidUserName, Description: fmt.Sprintf("Username '%s' is invalid, can only contain letters or digits.", username)}
}

func errInvalidEmail(email string) ResultError {
	return ResultError{Code: CodeInvalidEmail, Description: fmt.Sprintf("Email '%s' is invalid.", email)}
}

func errInvalidRoleName(role string) ResultError {
	return ResultError{Code: CodeInvalidRoleName, Description: fmt.Sprintf("Role '%s' does not exist.", role)}
}

func errPasswordMismatch() ResultError {
	return ResultError{Code: CodePasswordMismatch, Description: "Incorrect password."}
}

func errInvalidToken() ResultError {
	return ResultError{Code: CodeInvalidToken, Description: "Invalid token."}
}

// ErrNoNewPassword is the failure for an empty replacement password.
func ErrNoNewPassword() ResultError {
	return ResultError{Code: CodeNoNewPassword, Description: "No new password."}
}

// ErrUserNotFound is the failure for operations on a missing account.
func ErrUserNotFound() ResultError {
	return ResultError{Code: CodeUserNotFound, Description: "User not found."}
}
