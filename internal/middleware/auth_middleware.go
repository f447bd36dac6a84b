package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/ArowuTest/ecell-newsletter-backend/internal/config"
	"github.com/ArowuTest/ecell-newsletter-backend/pkg/jwt"
	"github.com/ArowuTest/ecell-newsletter-backend/pkg/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Context keys set by JWTAuthMiddleware.
const (
	UserIDKey    = "userID"
	UserEmailKey = "userEmail"
	UserRoleKey  = "userRole"
)

// JWTAuthMiddleware creates a gin middleware for JWT authentication.
// Tokens are HMAC-signed and carry sub, email and role claims.
func JWTAuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	log := logger.Named("auth")
	tokens, err := jwt.NewTokenService(cfg.JWT.Secret, "")
	if err != nil {
		log.Error("JWT secret is not configured; admin routes will reject every request")
		return func(c *gin.Context) {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "Authentication is not configured"})
		}
	}

	return func(c *gin.Context) {
		const bearerSchema = "Bearer "
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header is required"})
			return
		}
		if !strings.HasPrefix(authHeader, bearerSchema) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header must start with Bearer "})
			return
		}

		claims, err := tokens.Parse(strings.TrimSpace(authHeader[len(bearerSchema):]))
		if err != nil {
			log.Debug("token rejected", logger.RequestID(c.GetString(RequestIDKey)), logger.Err(err))
			if errors.Is(err, jwt.ErrTokenExpired) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Token has expired"})
			} else {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			}
			return
		}

		c.Set(UserIDKey, claims.Subject)
		c.Set(UserEmailKey, claims.Email)
		c.Set(UserRoleKey, claims.Role)
		c.Next()
	}
}

// RequireRole allows the request only when the authenticated role is one of roles.
func RequireRole(roles ...string) gin.HandlerFunc {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(c *gin.Context) {
		role := c.GetString(UserRoleKey)
		if !allowed[role] {
			logger.Named("auth").Warn("role not permitted",
				zap.String("role", role),
				logger.Path(c.Request.URL.Path),
				logger.RequestID(c.GetString(RequestIDKey)),
			)
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Insufficient permissions"})
			return
		}
		c.Next()
	}
}

// Actor names the authenticated admin for audit fields, preferring the email.
func Actor(c *gin.Context) string {
	if email := c.GetString(UserEmailKey); email != "" {
		return email
	}
	return c.GetString(UserIDKey)
}
