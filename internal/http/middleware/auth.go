// README: JWT auth middleware; resolves the request actor (id + role) into the gin context.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"unipool/internal/types"
)

const (
	ctxKeyUID  = "uid"
	ctxKeyRole = "role"
)

// Auth validates the Bearer token and stores the caller's identity. The core
// trusts this identity; role checks happen per route via RequireRole.
func Auth(secret string) gin.HandlerFunc {
	key := []byte(secret)
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" || !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		raw := strings.TrimPrefix(header, "Bearer ")

		claims := jwt.MapClaims{}
		token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return key, nil
		})
		if err != nil || !token.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		sub, _ := claims["sub"].(string)
		if sub == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "token missing subject"})
			return
		}
		role, _ := claims["role"].(string)

		c.Set(ctxKeyUID, sub)
		c.Set(ctxKeyRole, role)
		c.Next()
	}
}

// RequireRole gates a route group on an exact role match.
func RequireRole(role types.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		if CallerRole(c) != role {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "insufficient role"})
			return
		}
		c.Next()
	}
}

// CallerUID returns the authenticated actor id set by Auth.
func CallerUID(c *gin.Context) types.ID {
	return types.ID(c.GetString(ctxKeyUID))
}

// CallerRole returns the authenticated actor role set by Auth.
func CallerRole(c *gin.Context) types.Role {
	return types.Role(c.GetString(ctxKeyRole))
}
