// Package router registers the HTTP routes and the role policy that guards
// them.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/iliyamo/storefront-api/internal/handler"
	"github.com/iliyamo/storefront-api/internal/middleware"
	"github.com/iliyamo/storefront-api/internal/model"
)

// Operation identifiers checked by the guard.
const (
	OpUsersCurrent = "users.current"
	OpUsersList    = "users.list"
	OpUsersUpdate  = "users.update"
	OpUsersDelete  = "users.delete"

	OpProductsCreate = "products.create"
	OpProductsUpdate = "products.update"
	OpProductsDelete = "products.delete"

	OpReviewsCreate = "reviews.create"
	OpReviewsList   = "reviews.list"
	OpReviewsUpdate = "reviews.update"
	OpReviewsDelete = "reviews.delete"
)

// Policy returns the role sets for every guarded operation.
func Policy() middleware.Policy {
	admin := model.NewRoleSet(model.RoleAdmin)
	anyone := model.NewRoleSet(model.RoleAdmin, model.RoleNormalUser)
	return middleware.Policy{
		OpUsersCurrent: anyone,
		OpUsersList:    admin,
		OpUsersUpdate:  anyone,
		OpUsersDelete:  anyone,

		OpProductsCreate: admin,
		OpProductsUpdate: admin,
		OpProductsDelete: admin,

		OpReviewsCreate: anyone,
		OpReviewsList:   admin,
		OpReviewsUpdate: anyone,
		OpReviewsDelete: anyone,
	}
}

// Deps carries everything RegisterRoutes mounts.  Cache may be nil.
type Deps struct {
	Guard    *middleware.Guard
	Cache    echo.MiddlewareFunc
	DB       handler.Pinger
	Auth     *handler.AuthHandler
	Users    *handler.UserHandler
	Products *handler.ProductHandler
	Reviews  *handler.ReviewHandler
}

// RegisterRoutes mounts probes, metrics and the /api tree on e.
func RegisterRoutes(e *echo.Echo, d Deps) {
	e.GET("/healthz", handler.Health)
	if d.DB != nil {
		e.GET("/readyz", handler.Ready(d.DB))
	}
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	cache := d.Cache
	if cache == nil {
		cache = func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	api := e.Group("/api")
	g := d.Guard.Require

	// account lifecycle, no session required
	users := api.Group("/users")
	users.POST("/auth/register", d.Auth.Register)
	users.POST("/auth/login", d.Auth.Login)
	users.GET("/verify-email/:token", d.Auth.VerifyEmail)
	users.POST("/forgot-password", d.Auth.ForgotPassword)
	users.GET("/reset-password/:id/:token", d.Auth.CheckResetLink)
	users.POST("/reset-password", d.Auth.ResetPassword)

	users.GET("/current-user", d.Users.CurrentUser, g(OpUsersCurrent))
	users.GET("", d.Users.List, g(OpUsersList))
	users.PUT("", d.Users.Update, g(OpUsersUpdate))
	users.DELETE("/:id", d.Users.Delete, g(OpUsersDelete))

	products := api.Group("/products")
	products.GET("", d.Products.List, cache)
	products.GET("/:id", d.Products.Get, cache)
	products.POST("", d.Products.Create, g(OpProductsCreate))
	products.PUT("/:id", d.Products.Update, g(OpProductsUpdate))
	products.DELETE("/:id", d.Products.Delete, g(OpProductsDelete))

	reviews := api.Group("/reviews")
	reviews.POST("/:productId", d.Reviews.Create, g(OpReviewsCreate))
	reviews.GET("", d.Reviews.List, g(OpReviewsList))
	reviews.GET("/:id", d.Reviews.Get, cache)
	reviews.PUT("/:id", d.Reviews.Update, g(OpReviewsUpdate))
	reviews.DELETE("/:id", d.Reviews.Delete, g(OpReviewsDelete))
}
