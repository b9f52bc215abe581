package routes

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"storefront-identity/internal/config"
	"storefront-identity/internal/delivery/http/handler"
	"storefront-identity/internal/logger"
	"storefront-identity/internal/middleware"
	"storefront-identity/internal/usecase/user"
)

// HealthChecker reports whether the backing store is reachable.
type HealthChecker interface {
	Health() error
}

// SetupRoutes builds the HTTP surface. ctx bounds background middleware work.
func SetupRoutes(ctx context.Context, cfg *config.Config, userService *user.Service, store HealthChecker) *gin.Engine {
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Add middleware in order: recovery, request ID, logging, security headers, CORS, request size limit, general rate limit
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggingMiddleware())
	router.Use(middleware.SecurityHeadersMiddleware())
	router.Use(middleware.CORSMiddleware(&cfg.CORS))
	router.Use(middleware.RequestSizeLimitMiddleware(middleware.DefaultMaxRequestSize))
	router.Use(middleware.RateLimitMiddleware(ctx, cfg.RateLimit.GeneralRPS, cfg.RateLimit.GeneralBurst))

	router.GET("/health", func(c *gin.Context) {
		if store != nil {
			if err := store.Health(); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{
					"status":  "unhealthy",
					"message": "Database connection failed",
				})
				return
			}
		}

		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"message": "Service is running",
		})
	})

	userHandler := handler.NewUserHandler(userService)

	v1 := router.Group("/api/v1")
	{
		userHandler.RegisterRoutes(v1)

		protected := v1.Group("")
		protected.Use(middleware.AuthMiddleware(userService))
		{
			userHandler.RegisterProfileRoutes(protected)

			admin := protected.Group("/admin")
			admin.Use(middleware.AdminOnly())
			{
				userHandler.RegisterAdminRoutes(admin)
			}
		}
	}

	logger.Info("All routes initialized")
	return router
}
