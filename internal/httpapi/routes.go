package httpapi

import (
	"github.com/gin-gonic/gin"

	"storefront-backend/internal/models"
)

type Handlers struct {
	Products *ProductHandler
	Auth     *AuthHandler
	Cart     *CartHandler
}

// Register mounts the JSON API under /api. The scope middleware must already
// be installed on r.
func (h *Handlers) Register(r gin.IRouter) {
	staff := RequireRole(models.RoleAdmin, models.RoleModerator)
	admin := RequireRole(models.RoleAdmin)

	api := r.Group("/api")

	products := api.Group("/products")
	{
		products.GET("", h.Products.List)
		products.GET("/featured", h.Products.Featured)
		products.GET("/category/:category", h.Products.ByCategory)
		products.GET("/:id", h.Products.Get)
		products.POST("", staff, h.Products.Create)
		products.PUT("/:id", staff, h.Products.Update)
		products.DELETE("/:id", admin, h.Products.Delete)
		products.POST("/:id/images", staff, h.Products.UploadImage)
	}
	api.GET("/admin/products/export", admin, h.Products.Export)

	authGroup := api.Group("/auth")
	{
		authGroup.POST("/register", h.Auth.Register)
		authGroup.POST("/login", h.Auth.Login)
		authGroup.POST("/logout", h.Auth.Logout)
		authGroup.POST("/firebase", h.Auth.FirebaseLogin)
		authGroup.GET("/me", RequireUser(), h.Auth.Me)
	}
	api.GET("/users/:id", RequireUser(), h.Auth.Profile)

	cartGroup := api.Group("/cart", RequireUser())
	{
		cartGroup.GET("", h.Cart.Get)
		cartGroup.POST("", h.Cart.Add)
		cartGroup.DELETE("", h.Cart.Clear)
		cartGroup.PUT("/items/:itemId", h.Cart.SetQuantity)
		cartGroup.DELETE("/items/:itemId", h.Cart.Remove)
		cartGroup.GET("/contains/:productId", h.Cart.Contains)
	}

	api.GET("/theme", GetTheme)
	api.PUT("/theme", SetTheme)
	api.POST("/theme/toggle", ToggleTheme)
}
