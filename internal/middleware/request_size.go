package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"storefront-identity/internal/logger"
	"storefront-identity/pkg/utils"
)

// DefaultMaxRequestSize caps identity payloads. The largest body is a
// registration with name, phone and address, well under a kilobyte.
const DefaultMaxRequestSize int64 = 64 << 10

// RequestSizeLimitMiddleware rejects declared bodies over maxSize and caps
// streamed ones so binding fails once the limit is read.
func RequestSizeLimitMiddleware(maxSize int64) gin.HandlerFunc {
	if maxSize <= 0 {
		maxSize = DefaultMaxRequestSize
	}

	return func(c *gin.Context) {
		if c.Request.Body == nil || c.Request.Body == http.NoBody {
			c.Next()
			return
		}

		if c.Request.ContentLength > maxSize {
			logger.WithRequestID(GetRequestID(c)).Warn("Request body too large",
				zap.String("route", c.FullPath()),
				zap.Int64("content_length", c.Request.ContentLength),
				zap.Int64("limit", maxSize),
			)
			utils.ErrorResponse(c, http.StatusRequestEntityTooLarge, "Request body too large")
			c.Abort()
			return
		}

		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSize)
		c.Next()
	}
}
