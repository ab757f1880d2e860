package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/iliyamo/storefront-api/internal/model"
)

// AccountRepo is the credential store: the only place account state,
// verification tokens and reset tokens are persisted.  Token consumption is
// done with conditional UPDATEs so that concurrent requests racing on the
// same token cannot both succeed.
type AccountRepo struct{ DB *sql.DB }

func NewAccountRepo(db *sql.DB) *AccountRepo { return &AccountRepo{DB: db} }

const accountColumns = "id,user_name,email,password_hash,role,is_verified,verification_token,reset_password_token,created_at,updated_at"

// NormalizeEmail lower-cases and trims an address so lookups are
// case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (model.Account, error) {
	var (
		a         model.Account
		userName  sql.NullString
		role      string
		verifyTok sql.NullString
		resetTok  sql.NullString
	)
	err := row.Scan(&a.ID, &userName, &a.Email, &a.PasswordHash, &role, &a.IsVerified,
		&verifyTok, &resetTok, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Account{}, ErrNotFound
	}
	if err != nil {
		return model.Account{}, err
	}
	a.UserName = userName.String
	a.Role = model.Role(role)
	if verifyTok.Valid {
		a.VerificationToken = &verifyTok.String
	}
	if resetTok.Valid {
		a.ResetPasswordToken = &resetTok.String
	}
	return a, nil
}

func nullString(p *string) sql.NullString {
	if p == nil || *p == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}

// Create inserts the account and returns its ID.  A duplicate email yields
// ErrEmailExists.
func (r *AccountRepo) Create(ctx context.Context, a model.Account) (uint64, error) {
	role := a.Role
	if !role.Valid() {
		role = model.RoleNormalUser
	}
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (user_name, email, password_hash, role, is_verified, verification_token) VALUES (?,?,?,?,?,?)",
		nullString(&a.UserName), NormalizeEmail(a.Email), a.PasswordHash, string(role), a.IsVerified, nullString(a.VerificationToken))
	if err != nil {
		if isDuplicateKey(err) {
			return 0, ErrEmailExists
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByEmail fetches an account by normalized email.
func (r *AccountRepo) GetByEmail(ctx context.Context, email string) (model.Account, error) {
	return scanAccount(r.DB.QueryRowContext(ctx,
		"SELECT "+accountColumns+" FROM users WHERE email=? LIMIT 1", NormalizeEmail(email)))
}

// GetByID fetches an account by id.
func (r *AccountRepo) GetByID(ctx context.Context, id uint64) (model.Account, error) {
	return scanAccount(r.DB.QueryRowContext(ctx,
		"SELECT "+accountColumns+" FROM users WHERE id=? LIMIT 1", id))
}

// GetByVerificationToken fetches the account currently holding token.
func (r *AccountRepo) GetByVerificationToken(ctx context.Context, token string) (model.Account, error) {
	if token == "" {
		return model.Account{}, ErrNotFound
	}
	return scanAccount(r.DB.QueryRowContext(ctx,
		"SELECT "+accountColumns+" FROM users WHERE verification_token=? LIMIT 1", token))
}

// List returns all accounts ordered by id.
func (r *AccountRepo) List(ctx context.Context) ([]model.Account, error) {
	rows, err := r.DB.QueryContext(ctx, "SELECT "+accountColumns+" FROM users ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Account{}
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// SetVerificationToken stores a fresh verification token for an unverified
// account.
func (r *AccountRepo) SetVerificationToken(ctx context.Context, id uint64, token string) error {
	return r.execOne(ctx,
		"UPDATE users SET verification_token=? WHERE id=? AND is_verified=0", token, id)
}

// ConsumeVerificationToken marks the account verified and clears the token,
// but only if the stored token still equals token.  It reports false when
// another request consumed it first.
func (r *AccountRepo) ConsumeVerificationToken(ctx context.Context, id uint64, token string) (bool, error) {
	return r.compareAndClear(ctx,
		"UPDATE users SET is_verified=1, verification_token=NULL WHERE id=? AND verification_token=?",
		id, token)
}

// SetResetToken opens a reset window by storing token, replacing any
// previous one.
func (r *AccountRepo) SetResetToken(ctx context.Context, id uint64, token string) error {
	return r.execOne(ctx, "UPDATE users SET reset_password_token=? WHERE id=?", token, id)
}

// ConsumeResetToken stores passwordHash and clears the reset token in one
// statement, guarded on the stored token still equalling token.
func (r *AccountRepo) ConsumeResetToken(ctx context.Context, id uint64, token, passwordHash string) (bool, error) {
	return r.compareAndClear(ctx,
		"UPDATE users SET password_hash=?, reset_password_token=NULL WHERE id=? AND reset_password_token=?",
		passwordHash, id, token)
}

// UpdateProfile changes the display name and/or password hash.  Nil
// arguments leave the column untouched.
func (r *AccountRepo) UpdateProfile(ctx context.Context, id uint64, userName, passwordHash *string) error {
	sets := []string{}
	args := []any{}
	if userName != nil {
		sets = append(sets, "user_name=?")
		args = append(args, *userName)
	}
	if passwordHash != nil {
		sets = append(sets, "password_hash=?")
		args = append(args, *passwordHash)
	}
	if len(sets) == 0 {
		return nil
	}
	args = append(args, id)
	return r.execOne(ctx, "UPDATE users SET "+strings.Join(sets, ", ")+" WHERE id=?", args...)
}

// Delete removes the account.
func (r *AccountRepo) Delete(ctx context.Context, id uint64) error {
	return r.execOne(ctx, "DELETE FROM users WHERE id=?", id)
}

// execOne runs an UPDATE/DELETE and maps zero affected rows to
// ErrNotFound.  The DSN sets clientFoundRows so an UPDATE that matches a row
// without changing it still counts as one.
func (r *AccountRepo) execOne(ctx context.Context, query string, args ...any) error {
	res, err := r.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *AccountRepo) compareAndClear(ctx context.Context, query string, args ...any) (bool, error) {
	res, err := r.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
