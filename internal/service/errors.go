// Package service holds the account flows (registration, login, email
// verification, password reset) and user management on top of the
// credential store.  Handlers translate the sentinel errors below into HTTP
// statuses; anything else is an infrastructure failure.
package service

import "errors"

var (
	ErrDuplicateAccount   = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrAccountNotFound    = errors.New("user with given email does not exist")
	ErrInvalidToken       = errors.New("invalid or expired verification token")
	ErrInvalidResetLink   = errors.New("invalid link")

	// ErrNotificationTimeout is returned when a mail that the caller must
	// receive (first verification mail, reset link) could not be queued.
	ErrNotificationTimeout = errors.New("notification could not be sent, try again later")

	ErrForbidden    = errors.New("forbidden")
	ErrInvalidInput = errors.New("invalid input")
)
