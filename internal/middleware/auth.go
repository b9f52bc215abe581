package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"storefront-identity/internal/logger"
	"storefront-identity/internal/usecase/user"
	"storefront-identity/pkg/utils"
)

const (
	UserIDKey = "userID"
	RoleKey   = "role"
)

// TokenVerifier authenticates a raw bearer token.
type TokenVerifier interface {
	VerifyToken(token string) (*user.Identity, error)
}

func AuthMiddleware(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			utils.ErrorResponse(c, http.StatusUnauthorized, "Authorization header required")
			c.Abort()
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
			utils.ErrorResponse(c, http.StatusUnauthorized, "Invalid authorization header format")
			c.Abort()
			return
		}

		identity, err := verifier.VerifyToken(parts[1])
		if err != nil {
			logger.WithRequestID(GetRequestID(c)).Debug("Token rejected", zap.Error(err))
			utils.ErrorResponse(c, http.StatusUnauthorized, "Invalid or expired token")
			c.Abort()
			return
		}

		c.Set(UserIDKey, identity.UserID)
		c.Set(RoleKey, identity.Role)

		c.Next()
	}
}

// CurrentIdentity returns the identity stored by AuthMiddleware.
func CurrentIdentity(c *gin.Context) (user.Identity, bool) {
	rawID, ok := c.Get(UserIDKey)
	if !ok {
		return user.Identity{}, false
	}
	userID, ok := rawID.(uuid.UUID)
	if !ok {
		return user.Identity{}, false
	}
	return user.Identity{UserID: userID, Role: c.GetString(RoleKey)}, true
}
