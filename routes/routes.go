package routes

import (
	"newsdesk_backend/controllers"
	"newsdesk_backend/middleware"

	"github.com/gin-gonic/gin"
)

// Dependencies are the wired handlers and guards of the API
type Dependencies struct {
	Market        *controllers.MarketController
	JWTSecret     string
	PublicLimiter *middleware.RateLimiter
}

// SetupRoutes sets up all API routes
func SetupRoutes(router *gin.Engine, deps Dependencies) {
	api := router.Group("/api/v1")

	// Public market data
	public := api.Group("")
	if deps.PublicLimiter != nil {
		public.Use(deps.PublicLimiter.Middleware())
	}
	deps.Market.RegisterPublicRoutes(public)

	authed := api.Group("", middleware.JWTAuthMiddleware(deps.JWTSecret), middleware.AdminRoleMiddleware())
	{
		// Scraper callback
		deps.Market.RegisterIngestRoute(authed)

		// Refresh engine controls
		deps.Market.RegisterAdminRoutes(authed.Group("/admin"))
	}
}
