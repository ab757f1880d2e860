package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/storefront-api/internal/model"
)

// ReviewRepo encapsulates queries on the reviews table.  Ownership checks
// live in the handler; the repository only reports what exists.
type ReviewRepo struct {
	db *sql.DB
}

func NewReviewRepo(db *sql.DB) *ReviewRepo {
	return &ReviewRepo{db: db}
}

const reviewColumns = "id, product_id, user_id, rating, comment, created_at, updated_at"

func scanReview(row rowScanner) (model.Review, error) {
	var rv model.Review
	err := row.Scan(&rv.ID, &rv.ProductID, &rv.UserID, &rv.Rating, &rv.Comment, &rv.CreatedAt, &rv.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Review{}, ErrNotFound
	}
	return rv, err
}

// Create inserts a review for an existing product.  A missing product is
// reported as ErrNotFound.
func (r *ReviewRepo) Create(ctx context.Context, rv model.Review) (model.Review, error) {
	var exists int
	err := r.db.QueryRowContext(ctx, "SELECT 1 FROM products WHERE id = ?", rv.ProductID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Review{}, ErrNotFound
	}
	if err != nil {
		return model.Review{}, err
	}

	res, err := r.db.ExecContext(ctx,
		"INSERT INTO reviews (product_id, user_id, rating, comment) VALUES (?, ?, ?, ?)",
		rv.ProductID, rv.UserID, rv.Rating, rv.Comment)
	if err != nil {
		return model.Review{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.Review{}, err
	}
	return r.GetByID(ctx, uint64(id))
}

// List returns every review, newest first.
func (r *ReviewRepo) List(ctx context.Context) ([]model.Review, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+reviewColumns+" FROM reviews ORDER BY id DESC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Review{}
	for rows.Next() {
		rv, err := scanReview(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rv)
	}
	return out, rows.Err()
}

// GetByID fetches one review or ErrNotFound.
func (r *ReviewRepo) GetByID(ctx context.Context, id uint64) (model.Review, error) {
	return scanReview(r.db.QueryRowContext(ctx,
		"SELECT "+reviewColumns+" FROM reviews WHERE id = ?", id))
}

// Update overwrites rating and comment.
func (r *ReviewRepo) Update(ctx context.Context, rv model.Review) (model.Review, error) {
	if _, err := r.GetByID(ctx, rv.ID); err != nil {
		return model.Review{}, err
	}
	if _, err := r.db.ExecContext(ctx,
		"UPDATE reviews SET rating = ?, comment = ? WHERE id = ?", rv.Rating, rv.Comment, rv.ID); err != nil {
		return model.Review{}, err
	}
	return r.GetByID(ctx, rv.ID)
}

// Delete removes a review.
func (r *ReviewRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM reviews WHERE id = ?", id)
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
