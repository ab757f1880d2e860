package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/iliyamo/storefront-api/internal/model"
)

// ProductFilter narrows List.  A nil bound is ignored; Title matches as a
// case-insensitive substring.
type ProductFilter struct {
	Title    string
	MinPrice *float64
	MaxPrice *float64
}

// ProductRepo encapsulates queries on the products table.
type ProductRepo struct {
	db *sql.DB
}

func NewProductRepo(db *sql.DB) *ProductRepo {
	return &ProductRepo{db: db}
}

const productColumns = "id, title, description, price, user_id, created_at, updated_at"

func scanProduct(row rowScanner) (model.Product, error) {
	var (
		p      model.Product
		userID sql.NullInt64
	)
	err := row.Scan(&p.ID, &p.Title, &p.Description, &p.Price, &userID, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Product{}, ErrNotFound
	}
	if err != nil {
		return model.Product{}, err
	}
	// creator may have been deleted (ON DELETE SET NULL)
	if userID.Valid {
		p.UserID = uint64(userID.Int64)
	}
	return p, nil
}

// List returns products matching f, newest first.
func (r *ProductRepo) List(ctx context.Context, f ProductFilter) ([]model.Product, error) {
	where := []string{}
	args := []any{}
	if t := strings.TrimSpace(f.Title); t != "" {
		where = append(where, "title LIKE ?")
		args = append(args, "%"+strings.ToLower(t)+"%")
	}
	if f.MinPrice != nil {
		where = append(where, "price >= ?")
		args = append(args, *f.MinPrice)
	}
	if f.MaxPrice != nil {
		where = append(where, "price <= ?")
		args = append(args, *f.MaxPrice)
	}

	q := "SELECT " + productColumns + " FROM products"
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY id DESC"

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// GetByID fetches one product or ErrNotFound.
func (r *ProductRepo) GetByID(ctx context.Context, id uint64) (model.Product, error) {
	return scanProduct(r.db.QueryRowContext(ctx,
		"SELECT "+productColumns+" FROM products WHERE id = ?", id))
}

// Create inserts p and returns the stored row.  Titles are stored
// lower-cased so the title filter can match without collation tricks.
func (r *ProductRepo) Create(ctx context.Context, p model.Product) (model.Product, error) {
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO products (title, description, price, user_id) VALUES (?, ?, ?, ?)",
		strings.ToLower(strings.TrimSpace(p.Title)), p.Description, p.Price,
		sql.NullInt64{Int64: int64(p.UserID), Valid: p.UserID != 0})
	if err != nil {
		return model.Product{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.Product{}, err
	}
	return r.GetByID(ctx, uint64(id))
}

// Update overwrites title, description and price.
func (r *ProductRepo) Update(ctx context.Context, p model.Product) (model.Product, error) {
	if _, err := r.GetByID(ctx, p.ID); err != nil {
		return model.Product{}, err
	}
	if _, err := r.db.ExecContext(ctx,
		"UPDATE products SET title = ?, description = ?, price = ? WHERE id = ?",
		strings.ToLower(strings.TrimSpace(p.Title)), p.Description, p.Price, p.ID); err != nil {
		return model.Product{}, err
	}
	return r.GetByID(ctx, p.ID)
}

// Delete removes a product; its reviews cascade.
func (r *ProductRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM products WHERE id = ?", id)
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
