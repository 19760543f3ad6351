// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

// # Response Messages

const (
	msgAuthenticationFailed = "Authentication failed."
	msgUserNotFound         = "User not found."
	msgRegisterFailure      = "Register failed."
	msgUserCreateSuccess    = "User created with success."
	msgUserUpdateSuccess    = "User updated with success."
	msgUserUpdateFailure    = "User update failure."
	msgUserDeleteSuccess    = "User deleted with success."
	msgUserDeleteFailure    = "User delete failure."
	msgChangePasswordOK     = "Changed password with success."
	msgChangePasswordFailed = "Change password failure."
	msgResetPasswordOK      = "Reseted password with success."
	msgResetPasswordFailed  = "Reset password failure."
	msgResetEmailSent       = "If the address is registered, a password reset email has been sent."
	msgLogoutSuccessful     = "Logout successful. Please remove the token from your client storage."
)

// # Boundary Rules

const (
	// minPasswordLength is checked before the identity password policy runs.
	minPasswordLength = 6
)

// # Throttled Routes

const (
	routeLogin          = "login"
	routeForgotPassword = "forgot-password"
	routeResetPassword  = "reset-password"
)

// # Reset Email

const (
	resetEmailSubject = "Reset your Piggybank password"
	resetEmailBody    = `Hello %s,

A password reset was requested for your account. Use the token below to choose
a new password. It stops working once your password changes.

%s

If you did not request this, you can ignore this email.
`
)
