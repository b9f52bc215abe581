package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"storefront-identity/internal/logger"
)

// LoggingMiddleware logs HTTP requests and responses with structured logging.
// Matched routes are logged by template so path tokens never reach the log.
func LoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		method := c.Request.Method
		ip := c.ClientIP()
		userAgent := c.Request.UserAgent()

		log := logger.WithRequestID(GetRequestID(c))

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		fields := []zap.Field{
			zap.String("method", method),
			zap.String("route", path),
			zap.String("ip", ip),
			zap.String("user_agent", userAgent),
			zap.Int("status_code", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		}
		if identity, ok := CurrentIdentity(c); ok {
			fields = append(fields, zap.String("user_id", identity.UserID.String()))
		}
		if errorMessage := c.Errors.ByType(gin.ErrorTypePrivate).String(); errorMessage != "" {
			fields = append(fields, zap.String("error", errorMessage))
		}

		statusCode := c.Writer.Status()
		switch {
		case statusCode >= 500:
			log.Error("Request completed with server error", fields...)
		case statusCode >= 400:
			log.Warn("Request completed with client error", fields...)
		default:
			log.Info("Request completed successfully", fields...)
		}
	}
}
