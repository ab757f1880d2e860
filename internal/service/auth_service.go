package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/samber/oops"
	"go.uber.org/zap"

	"github.com/iliyamo/storefront-api/internal/metrics"
	"github.com/iliyamo/storefront-api/internal/model"
	"github.com/iliyamo/storefront-api/internal/repository"
	"github.com/iliyamo/storefront-api/internal/utils"
)

const (
	msgRegistered    = "User registered successfully, please verify your email"
	msgPleaseVerify  = "Your email is not verified. A verification link has been sent (if possible)."
	msgResetSent     = "Password reset link sent to your email, please check your inbox!"
	msgValidLink     = "valid link"
	msgPasswordReset = "password reset successfully, please log in"
	msgVerified      = "Your email has been verified, please log in to your account"
)

// RegisterInput carries the fields of a registration request.  UserName is
// optional.
type RegisterInput struct {
	Email    string
	Password string
	UserName string
}

// LoginResult is either a session (Token set) or, for an account that has
// not verified its email yet, a prompt to do so (Pending set, no token).
type LoginResult struct {
	Token     string    `json:"accessToken,omitempty"`
	ExpiresAt time.Time `json:"expiresAt,omitzero"`
	Pending   bool      `json:"-"`
	Message   string    `json:"message,omitempty"`
}

// AuthService runs the account lifecycle: Unregistered -> PendingVerification
// -> Verified, plus the independent reset-password window.  It is the only
// writer of the verification flag and both single-use tokens.
type AuthService struct {
	store    AccountStore
	hasher   *utils.PasswordHasher
	signer   *utils.TokenSigner
	notifier Notifier
	links    Links
	log      *zap.Logger

	dummyOnce sync.Once
	dummyHash string
}

func NewAuthService(store AccountStore, hasher *utils.PasswordHasher, signer *utils.TokenSigner,
	notifier Notifier, links Links, log *zap.Logger) *AuthService {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthService{
		store:    store,
		hasher:   hasher,
		signer:   signer,
		notifier: notifier,
		links:    links,
		log:      log.Named("auth"),
	}
}

func infraErr(err error, op string, kv ...any) error {
	return oops.In("auth").With(kv...).Wrapf(err, "%s", op)
}

// Register creates a PendingVerification account and queues the
// verification mail.  If that mail cannot be queued the account still
// exists and ErrNotificationTimeout is returned; logging in later resends
// the link.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (Message, error) {
	email := repository.NormalizeEmail(in.Email)
	if err := validateEmail(email); err != nil {
		return Message{}, err
	}
	if err := validatePassword(in.Password); err != nil {
		return Message{}, err
	}
	userName := strings.TrimSpace(in.UserName)
	if userName != "" {
		if err := validateUserName(userName); err != nil {
			return Message{}, err
		}
	}

	switch _, err := s.store.GetByEmail(ctx, email); {
	case err == nil:
		metrics.RecordAuthEvent("register", "duplicate")
		return Message{}, ErrDuplicateAccount
	case !errors.Is(err, repository.ErrNotFound):
		return Message{}, infraErr(err, "lookup account", "email", email)
	}

	hash, err := s.hasher.Hash(in.Password)
	if errors.Is(err, utils.ErrPasswordTooLong) {
		return Message{}, invalid("password is too long")
	}
	if err != nil {
		return Message{}, infraErr(err, "hash password")
	}
	token, err := utils.GenerateSecureToken()
	if err != nil {
		return Message{}, infraErr(err, "generate verification token")
	}

	id, err := s.store.Create(ctx, model.Account{
		UserName:          userName,
		Email:             email,
		PasswordHash:      hash,
		Role:              model.RoleNormalUser,
		VerificationToken: &token,
	})
	if errors.Is(err, repository.ErrEmailExists) {
		// lost a race with a concurrent registration of the same address
		metrics.RecordAuthEvent("register", "duplicate")
		return Message{}, ErrDuplicateAccount
	}
	if err != nil {
		return Message{}, infraErr(err, "create account", "email", email)
	}
	s.log.Info("account registered", zap.Uint64("account_id", id))

	err = s.notifier.SendVerifyEmail(ctx, email, s.links.VerifyEmail(token))
	metrics.RecordNotification("verify_email", err)
	if err != nil {
		s.log.Warn("verification mail not queued", zap.Uint64("account_id", id), zap.Error(err))
		metrics.RecordAuthEvent("register", "notification_failed")
		return Message{}, ErrNotificationTimeout
	}
	metrics.RecordAuthEvent("register", "success")
	return Message{Message: msgRegistered}, nil
}

// dummyDigest is verified against when the email is unknown so that both
// failure paths of Login cost one bcrypt comparison.
func (s *AuthService) dummyDigest() string {
	s.dummyOnce.Do(func() {
		h, err := s.hasher.Hash("storefront-dummy-password")
		if err != nil {
			s.log.Warn("dummy digest unavailable", zap.Error(err))
			return
		}
		s.dummyHash = h
	})
	return s.dummyHash
}

// Login checks the credentials.  A PendingVerification account never gets
// a session token: its verification token is (re)created if missing and the
// link resent on a best-effort basis.  Verified accounts get a login notice,
// also best-effort, and a signed session token.
func (s *AuthService) Login(ctx context.Context, email, password string) (LoginResult, error) {
	email = repository.NormalizeEmail(email)

	acc, err := s.store.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		s.hasher.Verify(password, s.dummyDigest())
		metrics.RecordAuthEvent("login", "invalid_credentials")
		return LoginResult{}, ErrInvalidCredentials
	}
	if err != nil {
		return LoginResult{}, infraErr(err, "lookup account", "email", email)
	}
	if !s.hasher.Verify(password, acc.PasswordHash) {
		metrics.RecordAuthEvent("login", "invalid_credentials")
		return LoginResult{}, ErrInvalidCredentials
	}

	if acc.State() == model.StatePendingVerification {
		token := ""
		if acc.VerificationToken != nil {
			token = *acc.VerificationToken
		}
		if token == "" {
			if token, err = utils.GenerateSecureToken(); err != nil {
				return LoginResult{}, infraErr(err, "generate verification token")
			}
			if err := s.store.SetVerificationToken(ctx, acc.ID, token); err != nil {
				return LoginResult{}, infraErr(err, "store verification token", "account_id", acc.ID)
			}
		}
		err := s.notifier.SendVerifyEmail(ctx, acc.Email, s.links.VerifyEmail(token))
		metrics.RecordNotification("verify_email", err)
		if err != nil {
			s.log.Warn("verification mail resend failed", zap.Uint64("account_id", acc.ID), zap.Error(err))
		}
		metrics.RecordAuthEvent("login", "pending_verification")
		return LoginResult{Pending: true, Message: msgPleaseVerify}, nil
	}

	err = s.notifier.SendLoginNotice(ctx, acc.Email)
	metrics.RecordNotification("login_notice", err)
	if err != nil {
		s.log.Warn("login notice failed", zap.Uint64("account_id", acc.ID), zap.Error(err))
	}

	tok, err := s.signer.Sign(acc.ID, acc.Role)
	if err != nil {
		return LoginResult{}, infraErr(err, "sign session", "account_id", acc.ID)
	}
	metrics.RecordAuthEvent("login", "success")
	return LoginResult{Token: tok.Token, ExpiresAt: tok.ExpiresAt}, nil
}

// RequestPasswordReset opens a reset window for email, replacing any earlier
// reset token, and mails the link.  Unknown addresses yield
// ErrAccountNotFound.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) (Message, error) {
	email = repository.NormalizeEmail(email)
	if err := validateEmail(email); err != nil {
		return Message{}, err
	}

	acc, err := s.store.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		metrics.RecordAuthEvent("forgot_password", "not_found")
		return Message{}, ErrAccountNotFound
	}
	if err != nil {
		return Message{}, infraErr(err, "lookup account", "email", email)
	}

	token, err := utils.GenerateSecureToken()
	if err != nil {
		return Message{}, infraErr(err, "generate reset token")
	}
	if err := s.store.SetResetToken(ctx, acc.ID, token); err != nil {
		return Message{}, infraErr(err, "store reset token", "account_id", acc.ID)
	}

	err = s.notifier.SendResetPassword(ctx, acc.Email, s.links.ResetPassword(acc.ID, token))
	metrics.RecordNotification("reset_password", err)
	if err != nil {
		s.log.Warn("reset mail not queued", zap.Uint64("account_id", acc.ID), zap.Error(err))
		metrics.RecordAuthEvent("forgot_password", "notification_failed")
		return Message{}, ErrNotificationTimeout
	}
	metrics.RecordAuthEvent("forgot_password", "success")
	return Message{Message: msgResetSent}, nil
}

// checkReset loads id and confirms token matches its live reset token.
func (s *AuthService) checkReset(ctx context.Context, id uint64, token string) (model.Account, error) {
	acc, err := s.store.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return model.Account{}, ErrInvalidResetLink
	}
	if err != nil {
		return model.Account{}, infraErr(err, "lookup account", "account_id", id)
	}
	if !acc.ResetPending() || !utils.TokensEqual(*acc.ResetPasswordToken, token) {
		return model.Account{}, ErrInvalidResetLink
	}
	return acc, nil
}

// CheckResetLink tells the reset form whether {id, token} is still usable.
// It does not consume the token.
func (s *AuthService) CheckResetLink(ctx context.Context, id uint64, token string) (Message, error) {
	if _, err := s.checkReset(ctx, id, token); err != nil {
		return Message{}, err
	}
	return Message{Message: msgValidLink}, nil
}

// ResetPassword replaces the password and closes the reset window in one
// store operation.  A second use of the same link, or a concurrent one that
// loses, gets ErrInvalidResetLink.
func (s *AuthService) ResetPassword(ctx context.Context, id uint64, token, newPassword string) (Message, error) {
	if err := validatePassword(newPassword); err != nil {
		return Message{}, err
	}
	if _, err := s.checkReset(ctx, id, token); err != nil {
		metrics.RecordAuthEvent("reset_password", "invalid_link")
		return Message{}, err
	}

	hash, err := s.hasher.Hash(newPassword)
	if errors.Is(err, utils.ErrPasswordTooLong) {
		return Message{}, invalid("password is too long")
	}
	if err != nil {
		return Message{}, infraErr(err, "hash password")
	}

	ok, err := s.store.ConsumeResetToken(ctx, id, token, hash)
	if err != nil {
		return Message{}, infraErr(err, "consume reset token", "account_id", id)
	}
	if !ok {
		metrics.RecordAuthEvent("reset_password", "invalid_link")
		return Message{}, ErrInvalidResetLink
	}
	s.log.Info("password reset", zap.Uint64("account_id", id))
	metrics.RecordAuthEvent("reset_password", "success")
	return Message{Message: msgPasswordReset}, nil
}

// VerifyEmail moves the account holding token to Verified and clears the
// token.
func (s *AuthService) VerifyEmail(ctx context.Context, token string) (Message, error) {
	acc, err := s.store.GetByVerificationToken(ctx, token)
	if errors.Is(err, repository.ErrNotFound) {
		metrics.RecordAuthEvent("verify_email", "invalid_token")
		return Message{}, ErrInvalidToken
	}
	if err != nil {
		return Message{}, infraErr(err, "lookup verification token")
	}

	ok, err := s.store.ConsumeVerificationToken(ctx, acc.ID, token)
	if err != nil {
		return Message{}, infraErr(err, "consume verification token", "account_id", acc.ID)
	}
	if !ok {
		metrics.RecordAuthEvent("verify_email", "invalid_token")
		return Message{}, ErrInvalidToken
	}
	s.log.Info("email verified", zap.Uint64("account_id", acc.ID))
	metrics.RecordAuthEvent("verify_email", "success")
	return Message{Message: msgVerified}, nil
}
