package handler

import (
	"context"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/storefront-api/internal/middleware"
	"github.com/iliyamo/storefront-api/internal/model"
	"github.com/iliyamo/storefront-api/internal/repository"
)

// ReviewStore is implemented by *repository.ReviewRepo.
type ReviewStore interface {
	Create(ctx context.Context, rv model.Review) (model.Review, error)
	List(ctx context.Context) ([]model.Review, error)
	GetByID(ctx context.Context, id uint64) (model.Review, error)
	Update(ctx context.Context, rv model.Review) (model.Review, error)
	Delete(ctx context.Context, id uint64) error
}

// ReviewHandler serves /api/reviews.  Updates and deletes are limited to
// the author and admins.
type ReviewHandler struct {
	Reviews ReviewStore
	Purge   func(ctx context.Context) error
	Log     *zap.Logger
}

func NewReviewHandler(reviews ReviewStore, purge func(ctx context.Context) error, log *zap.Logger) *ReviewHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &ReviewHandler{Reviews: reviews, Purge: purge, Log: log}
}

type reviewReq struct {
	Rating  *int    `json:"rating"`
	Comment *string `json:"comment"`
}

func (r reviewReq) validate(partial bool) string {
	if r.Rating == nil && !partial {
		return "rating is required"
	}
	if r.Rating != nil && (*r.Rating < 1 || *r.Rating > 5) {
		return "rating must be between 1 and 5"
	}
	if r.Comment == nil && !partial {
		return "comment is required"
	}
	if r.Comment != nil && utf8.RuneCountInString(strings.TrimSpace(*r.Comment)) < 2 {
		return "comment must be at least 2 characters"
	}
	return ""
}

func (h *ReviewHandler) purge(ctx context.Context) {
	if h.Purge == nil {
		return
	}
	if err := h.Purge(ctx); err != nil {
		h.Log.Warn("cache purge failed", zap.Error(err))
	}
}

// Create: POST /api/reviews/:productId
func (h *ReviewHandler) Create(c echo.Context) error {
	me, ok := middleware.IdentityFrom(c)
	if !ok {
		return noIdentity(c)
	}
	productID, ok := parseID(c, "productId")
	if !ok {
		return badRequest(c, "invalid product id")
	}
	var req reviewReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if msg := req.validate(false); msg != "" {
		return badRequest(c, msg)
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	rv, err := h.Reviews.Create(ctx, model.Review{
		ProductID: productID,
		UserID:    me.ID,
		Rating:    *req.Rating,
		Comment:   strings.TrimSpace(*req.Comment),
	})
	if err != nil {
		return respondError(c, h.Log, err)
	}
	h.purge(ctx)
	return c.JSON(http.StatusCreated, rv)
}

// List: GET /api/reviews (admin)
func (h *ReviewHandler) List(c echo.Context) error {
	ctx, cancel := withTimeout(c)
	defer cancel()

	out, err := h.Reviews.List(ctx)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, out)
}

// Get: GET /api/reviews/:id
func (h *ReviewHandler) Get(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	rv, err := h.Reviews.GetByID(ctx, id)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, rv)
}

// owned loads review id and checks the caller may modify it.
func (h *ReviewHandler) owned(ctx context.Context, c echo.Context, id uint64) (model.Review, error) {
	me, ok := middleware.IdentityFrom(c)
	if !ok {
		return model.Review{}, repository.ErrForbidden
	}
	rv, err := h.Reviews.GetByID(ctx, id)
	if err != nil {
		return model.Review{}, err
	}
	if rv.UserID != me.ID && !me.IsAdmin() {
		return model.Review{}, repository.ErrForbidden
	}
	return rv, nil
}

// Update: PUT /api/reviews/:id (author or admin)
func (h *ReviewHandler) Update(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}
	var req reviewReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if msg := req.validate(true); msg != "" {
		return badRequest(c, msg)
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	rv, err := h.owned(ctx, c, id)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	if req.Rating != nil {
		rv.Rating = *req.Rating
	}
	if req.Comment != nil {
		rv.Comment = strings.TrimSpace(*req.Comment)
	}
	rv, err = h.Reviews.Update(ctx, rv)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	h.purge(ctx)
	return c.JSON(http.StatusOK, rv)
}

// Delete: DELETE /api/reviews/:id (author or admin)
func (h *ReviewHandler) Delete(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	if _, err := h.owned(ctx, c, id); err != nil {
		return respondError(c, h.Log, err)
	}
	if err := h.Reviews.Delete(ctx, id); err != nil {
		return respondError(c, h.Log, err)
	}
	h.purge(ctx)
	return c.JSON(http.StatusOK, echo.Map{"message": "review has been deleted"})
}
