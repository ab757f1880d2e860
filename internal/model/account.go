package model

import "time"

// AccountState is the verification lifecycle of an account.
type AccountState string

const (
	StatePendingVerification AccountState = "pending_verification"
	StateVerified            AccountState = "verified"
)

// Account mirrors a row of the `users` table.  The password hash and both
// single-use tokens are never serialized; handlers expose accounts through
// this struct's JSON form directly.
//
// Fields:
//  ID                 – primary key, immutable.
//  UserName           – optional display name.
//  Email              – unique, stored lower-cased.
//  PasswordHash       – bcrypt digest.
//  Role               – admin or normal_user.
//  IsVerified         – set once the verification link was followed.
//  VerificationToken  – present while the account is unverified.
//  ResetPasswordToken – present during an active reset window.
type Account struct {
	ID                 uint64    `json:"id"`
	UserName           string    `json:"userName,omitempty"`
	Email              string    `json:"email"`
	PasswordHash       string    `json:"-"`
	Role               Role      `json:"role"`
	IsVerified         bool      `json:"isAccountVerified"`
	VerificationToken  *string   `json:"-"`
	ResetPasswordToken *string   `json:"-"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

// State derives the verification state from IsVerified.
func (a Account) State() AccountState {
	if a.IsVerified {
		return StateVerified
	}
	return StatePendingVerification
}

// ResetPending reports whether a password reset token is outstanding.
func (a Account) ResetPending() bool {
	return a.ResetPasswordToken != nil && *a.ResetPasswordToken != ""
}
