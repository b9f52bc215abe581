package middleware

import (
	"slices"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"storefront-identity/internal/config"
	"storefront-identity/internal/logger"
)

const wildcardOrigin = "*"

// CORSMiddleware builds the cross-origin policy for the storefront frontend.
// Without configured origins no CORS headers are written, so browsers keep
// the same-origin default. A "*" entry allows any origin but never with
// credentials. The request ID header is always exposed.
func CORSMiddleware(cfg *config.CORSConfig) gin.HandlerFunc {
	if len(cfg.AllowedOrigins) == 0 {
		logger.Warn("No CORS origins configured, cross-origin requests will be refused by browsers")
		return func(c *gin.Context) { c.Next() }
	}

	corsConfig := cors.Config{
		AllowMethods:     cfg.AllowedMethods,
		AllowHeaders:     cfg.AllowedHeaders,
		ExposeHeaders:    cfg.ExposedHeaders,
		AllowCredentials: cfg.AllowCredentials,
		MaxAge:           cfg.MaxAge,
	}
	if !slices.Contains(corsConfig.ExposeHeaders, RequestIDHeader) {
		corsConfig.ExposeHeaders = append(slices.Clone(corsConfig.ExposeHeaders), RequestIDHeader)
	}

	if slices.Contains(cfg.AllowedOrigins, wildcardOrigin) {
		if cfg.AllowCredentials {
			logger.Warn("CORS wildcard origin ignores allow-credentials")
		}
		corsConfig.AllowAllOrigins = true
		corsConfig.AllowCredentials = false
	} else {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	}

	logger.Debug("CORS policy configured",
		zap.Strings("origins", cfg.AllowedOrigins),
		zap.Duration("max_age", cfg.MaxAge),
	)

	return cors.New(corsConfig)
}
