package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/storefront-api/internal/middleware"
	"github.com/iliyamo/storefront-api/internal/model"
	"github.com/iliyamo/storefront-api/internal/repository"
)

// ProductStore is implemented by *repository.ProductRepo.
type ProductStore interface {
	List(ctx context.Context, f repository.ProductFilter) ([]model.Product, error)
	GetByID(ctx context.Context, id uint64) (model.Product, error)
	Create(ctx context.Context, p model.Product) (model.Product, error)
	Update(ctx context.Context, p model.Product) (model.Product, error)
	Delete(ctx context.Context, id uint64) error
}

// ProductHandler serves /api/products.  Purge, when set, drops cached
// public reads after every successful write.
type ProductHandler struct {
	Products ProductStore
	Purge    func(ctx context.Context) error
	Log      *zap.Logger
}

func NewProductHandler(products ProductStore, purge func(ctx context.Context) error, log *zap.Logger) *ProductHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &ProductHandler{Products: products, Purge: purge, Log: log}
}

type createProductReq struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Price       *float64 `json:"price"`
}

type updateProductReq struct {
	Title       *string  `json:"title"`
	Description *string  `json:"description"`
	Price       *float64 `json:"price"`
}

func validTitle(t string, lo, hi int) bool {
	n := utf8.RuneCountInString(strings.TrimSpace(t))
	return n >= lo && n <= hi
}

func validDescription(d string) bool {
	return utf8.RuneCountInString(strings.TrimSpace(d)) >= 5
}

func (h *ProductHandler) purge(ctx context.Context) {
	if h.Purge == nil {
		return
	}
	if err := h.Purge(ctx); err != nil {
		h.Log.Warn("cache purge failed", zap.Error(err))
	}
}

func parsePrice(raw string) (*float64, bool) {
	if raw == "" {
		return nil, true
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < 0 {
		return nil, false
	}
	return &v, true
}

// List: GET /api/products?title=&minPrice=&maxPrice=
func (h *ProductHandler) List(c echo.Context) error {
	minPrice, ok := parsePrice(c.QueryParam("minPrice"))
	if !ok {
		return badRequest(c, "minPrice must be a non-negative number")
	}
	maxPrice, ok := parsePrice(c.QueryParam("maxPrice"))
	if !ok {
		return badRequest(c, "maxPrice must be a non-negative number")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	out, err := h.Products.List(ctx, repository.ProductFilter{
		Title:    c.QueryParam("title"),
		MinPrice: minPrice,
		MaxPrice: maxPrice,
	})
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, out)
}

// Get: GET /api/products/:id
func (h *ProductHandler) Get(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	p, err := h.Products.GetByID(ctx, id)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, p)
}

// Create: POST /api/products (admin)
func (h *ProductHandler) Create(c echo.Context) error {
	me, ok := middleware.IdentityFrom(c)
	if !ok {
		return noIdentity(c)
	}
	var req createProductReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if !validTitle(req.Title, 3, 50) {
		return badRequest(c, "Title must be between 3 and 50 characters long")
	}
	if !validDescription(req.Description) {
		return badRequest(c, "description must be at least 5 characters")
	}
	if req.Price == nil || *req.Price < 0 {
		return badRequest(c, "Price must be a positive number")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	p, err := h.Products.Create(ctx, model.Product{
		Title:       req.Title,
		Description: strings.TrimSpace(req.Description),
		Price:       *req.Price,
		UserID:      me.ID,
	})
	if err != nil {
		return respondError(c, h.Log, err)
	}
	h.purge(ctx)
	return c.JSON(http.StatusCreated, p)
}

// Update: PUT /api/products/:id (admin).  Absent fields keep their value.
func (h *ProductHandler) Update(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}
	var req updateProductReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if req.Title != nil && !validTitle(*req.Title, 2, 150) {
		return badRequest(c, "title must be between 2 and 150 characters")
	}
	if req.Description != nil && !validDescription(*req.Description) {
		return badRequest(c, "description must be at least 5 characters")
	}
	if req.Price != nil && *req.Price < 0 {
		return badRequest(c, "price should not be less than zero")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	p, err := h.Products.GetByID(ctx, id)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	if req.Title != nil {
		p.Title = *req.Title
	}
	if req.Description != nil {
		p.Description = strings.TrimSpace(*req.Description)
	}
	if req.Price != nil {
		p.Price = *req.Price
	}
	p, err = h.Products.Update(ctx, p)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	h.purge(ctx)
	return c.JSON(http.StatusOK, p)
}

// Delete: DELETE /api/products/:id (admin)
func (h *ProductHandler) Delete(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	if err := h.Products.Delete(ctx, id); err != nil {
		return respondError(c, h.Log, err)
	}
	h.purge(ctx)
	return c.JSON(http.StatusOK, echo.Map{"message": "product was deleted"})
}
