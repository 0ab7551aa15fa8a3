package auth

import "errors"

// Error is an authentication failure with a stable code that pages and the
// API map to a readable message.
type Error struct {
	Code string
}

func (e *Error) Error() string { return e.Code }

var (
	ErrEmailInUse       = &Error{Code: "auth/email-already-in-use"}
	ErrInvalidEmail     = &Error{Code: "auth/invalid-email"}
	ErrWeakPassword     = &Error{Code: "auth/weak-password"}
	ErrUserNotFound     = &Error{Code: "auth/user-not-found"}
	ErrWrongPassword    = &Error{Code: "auth/wrong-password"}
	ErrTooManyRequests  = &Error{Code: "auth/too-many-requests"}
	ErrInvalidAccessKey = &Error{Code: "auth/invalid-access-key"}
	ErrInvalidRole      = &Error{Code: "auth/invalid-role"}
	ErrMissingName      = &Error{Code: "auth/missing-name"}
	ErrInvalidToken     = &Error{Code: "auth/invalid-token"}
	ErrUserDisabled     = &Error{Code: "auth/user-disabled"}
	ErrProviderDisabled = &Error{Code: "auth/operation-not-allowed"}
)

var ErrUnavailable = errors.New("user store is not configured")

var messages = map[string]string{
	ErrEmailInUse.Code:       "An account with this email already exists.",
	ErrInvalidEmail.Code:     "Please enter a valid email address.",
	ErrWeakPassword.Code:     "Password must be at least 6 characters long.",
	ErrUserNotFound.Code:     "No account found with this email address.",
	ErrWrongPassword.Code:    "Incorrect password. Please try again.",
	ErrTooManyRequests.Code:  "Too many failed attempts. Please try again later.",
	ErrInvalidAccessKey.Code: "Invalid access key. Please contact the system administrator.",
	ErrInvalidRole.Code:      "Please choose a valid role.",
	ErrMissingName.Code:      "Please enter your full name.",
	ErrInvalidToken.Code:     "Your session has expired. Please sign in again.",
	ErrUserDisabled.Code:     "This account has been disabled.",
	ErrProviderDisabled.Code: "This sign-in method is not enabled.",
}

// Code returns the auth code carried by err, or "" when err is not an auth failure.
func Code(err error) string {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code
	}
	return ""
}

// MessageFor maps err to a user-facing message. Unmapped errors get fallback.
func MessageFor(err error, fallback string) string {
	if msg, ok := messages[Code(err)]; ok {
		return msg
	}
	return fallback
}
