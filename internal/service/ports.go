package service

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"unicode/utf8"

	"github.com/iliyamo/storefront-api/internal/model"
)

// AccountStore is the persistence contract of the auth flows.  Lookups
// return repository.ErrNotFound for missing rows.  The Consume* methods
// must clear the token only if it still matches, and report whether they
// did.
type AccountStore interface {
	Create(ctx context.Context, a model.Account) (uint64, error)
	GetByEmail(ctx context.Context, email string) (model.Account, error)
	GetByID(ctx context.Context, id uint64) (model.Account, error)
	GetByVerificationToken(ctx context.Context, token string) (model.Account, error)
	SetVerificationToken(ctx context.Context, id uint64, token string) error
	ConsumeVerificationToken(ctx context.Context, id uint64, token string) (bool, error)
	SetResetToken(ctx context.Context, id uint64, token string) error
	ConsumeResetToken(ctx context.Context, id uint64, token, passwordHash string) (bool, error)
}

// UserStore is what UserService needs on top of lookups.
type UserStore interface {
	GetByID(ctx context.Context, id uint64) (model.Account, error)
	List(ctx context.Context) ([]model.Account, error)
	UpdateProfile(ctx context.Context, id uint64, userName, passwordHash *string) error
	Delete(ctx context.Context, id uint64) error
}

// Notifier queues outbound mail.  A returned error means the message was
// not accepted for delivery.
type Notifier interface {
	SendVerifyEmail(ctx context.Context, to, link string) error
	SendLoginNotice(ctx context.Context, to string) error
	SendResetPassword(ctx context.Context, to, link string) error
}

// Links builds the URLs embedded in outbound mail.  Domain is the public
// base URL of this API; ClientDomain is the frontend that hosts the reset
// form.
type Links struct {
	Domain       string
	ClientDomain string
}

func (l Links) VerifyEmail(token string) string {
	return strings.TrimRight(l.Domain, "/") + "/api/users/verify-email/" + token
}

func (l Links) ResetPassword(id uint64, token string) string {
	return fmt.Sprintf("%s/reset-password/%d/%s", strings.TrimRight(l.ClientDomain, "/"), id, token)
}

// Message is the body of every non-token response.
type Message struct {
	Message string `json:"message"`
}

const (
	minPasswordLen = 6
	maxEmailLen    = 250
	minUserNameLen = 2
	maxUserNameLen = 150
)

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrInvalidInput}, args...)...)
}

func validateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return invalid("email is required")
	}
	if len(email) > maxEmailLen {
		return invalid("email must be at most %d characters", maxEmailLen)
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return invalid("email must be a valid address")
	}
	return nil
}

func validatePassword(pw string) error {
	if utf8.RuneCountInString(pw) < minPasswordLen {
		return invalid("password must be at least %d characters", minPasswordLen)
	}
	return nil
}

func validateUserName(name string) error {
	n := utf8.RuneCountInString(strings.TrimSpace(name))
	if n < minUserNameLen || n > maxUserNameLen {
		return invalid("username must be between %d and %d characters", minUserNameLen, maxUserNameLen)
	}
	return nil
}
