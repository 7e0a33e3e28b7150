package middlewares

import (
	"net/http"
	"strings"

	authUtils "smrms-be/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	// AuthCookie carries the session token for browser clients.
	AuthCookie = "auth_token"

	ctxClaims = "claims"
	ctxUserID = "user_id"
)

// AuthMiddleware accepts a token from the Authorization header or the
// auth_token cookie and stores its claims on the context.
func AuthMiddleware(secret string, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := strings.TrimSpace(c.GetHeader("Authorization"))
		if strings.HasPrefix(tokenString, "Bearer ") {
			tokenString = strings.TrimSpace(tokenString[7:])
		}
		if tokenString == "" {
			if cookie, err := c.Cookie(AuthCookie); err == nil {
				tokenString = cookie
			}
		}
		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "No authorization token provided"})
			return
		}

		claims, err := authUtils.ParseToken(tokenString, secret)
		if err != nil {
			log.Debug("token validation failed", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization token"})
			return
		}

		c.Set(ctxClaims, claims)
		c.Set(ctxUserID, claims.UserID)
		c.Next()
	}
}

// ClaimsFrom returns the claims AuthMiddleware stored, if any.
func ClaimsFrom(c *gin.Context) (*authUtils.Claims, bool) {
	v, ok := c.Get(ctxClaims)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*authUtils.Claims)
	return claims, ok
}

// RequireRole lets the request through when the caller holds any of roles.
// It must run after AuthMiddleware.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := ClaimsFrom(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		if !claims.HasRole(roles...) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "insufficient role"})
			return
		}
		c.Next()
	}
}
