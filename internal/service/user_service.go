package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/iliyamo/storefront-api/internal/model"
	"github.com/iliyamo/storefront-api/internal/repository"
	"github.com/iliyamo/storefront-api/internal/utils"
)

// UpdateInput changes the caller's own profile.  Nil fields are left as
// they are.
type UpdateInput struct {
	UserName *string
	Password *string
}

// UserService manages existing accounts.  It never touches the verification
// flag or the single-use tokens.
type UserService struct {
	store  UserStore
	hasher *utils.PasswordHasher
	log    *zap.Logger
}

func NewUserService(store UserStore, hasher *utils.PasswordHasher, log *zap.Logger) *UserService {
	if log == nil {
		log = zap.NewNop()
	}
	return &UserService{store: store, hasher: hasher, log: log.Named("users")}
}

// Current returns the account with id.
func (s *UserService) Current(ctx context.Context, id uint64) (model.Account, error) {
	acc, err := s.store.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return model.Account{}, ErrAccountNotFound
	}
	if err != nil {
		return model.Account{}, infraErr(err, "lookup account", "account_id", id)
	}
	return acc, nil
}

// List returns every account.
func (s *UserService) List(ctx context.Context) ([]model.Account, error) {
	out, err := s.store.List(ctx)
	if err != nil {
		return nil, infraErr(err, "list accounts")
	}
	return out, nil
}

// Update applies in to account id and returns the stored result.
func (s *UserService) Update(ctx context.Context, id uint64, in UpdateInput) (model.Account, error) {
	var name, hash *string
	if in.UserName != nil {
		n := strings.TrimSpace(*in.UserName)
		if err := validateUserName(n); err != nil {
			return model.Account{}, err
		}
		name = &n
	}
	if in.Password != nil {
		if err := validatePassword(*in.Password); err != nil {
			return model.Account{}, err
		}
		h, err := s.hasher.Hash(*in.Password)
		if errors.Is(err, utils.ErrPasswordTooLong) {
			return model.Account{}, invalid("password is too long")
		}
		if err != nil {
			return model.Account{}, infraErr(err, "hash password")
		}
		hash = &h
	}

	err := s.store.UpdateProfile(ctx, id, name, hash)
	if errors.Is(err, repository.ErrNotFound) {
		return model.Account{}, ErrAccountNotFound
	}
	if err != nil {
		return model.Account{}, infraErr(err, "update account", "account_id", id)
	}
	return s.Current(ctx, id)
}

// Delete removes targetID.  Callers may delete themselves; admins may
// delete anyone.
func (s *UserService) Delete(ctx context.Context, targetID, callerID uint64, callerRole model.Role) (Message, error) {
	if targetID != callerID && callerRole != model.RoleAdmin {
		return Message{}, ErrForbidden
	}
	err := s.store.Delete(ctx, targetID)
	if errors.Is(err, repository.ErrNotFound) {
		return Message{}, ErrAccountNotFound
	}
	if err != nil {
		return Message{}, infraErr(err, "delete account", "account_id", targetID)
	}
	s.log.Info("account deleted", zap.Uint64("account_id", targetID), zap.Uint64("by", callerID))
	return Message{Message: "User has been deleted"}, nil
}
