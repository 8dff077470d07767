// Package middleware holds the gin middleware for the returns API.
package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	ctxUserIDKey = "user_id"
	ctxRoleKey   = "user_role"
)

// Roles understood by the returns API.
const (
	RoleCustomer         = "customer"
	RoleFulfillmentStaff = "fulfillment_staff"
	RoleFulfillmentAdmin = "fulfillment_admin"
	RoleSuperAdmin       = "super_admin"
)

// Auth validates the bearer token and stores the caller's identity and
// role on the request context.
func Auth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if len(authHeader) < 7 || !strings.EqualFold(authHeader[:7], "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"message": "Missing token",
			})
			return
		}
		tokenStr := authHeader[7:]

		token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return []byte(secret), nil
		})
		if err != nil || !token.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"message": "Invalid token",
			})
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"message": "Invalid claims",
			})
			return
		}

		if id, ok := claims["user_id"].(string); ok {
			c.Set(ctxUserIDKey, id)
		}
		if role, ok := claims["role"].(string); ok {
			c.Set(ctxRoleKey, role)
		}
		c.Next()
	}
}

// RequireRole rejects callers whose role is not in the allowed set.
// Super admins pass every guard.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := Role(c)
		if role == RoleSuperAdmin {
			c.Next()
			return
		}
		for _, allowed := range roles {
			if role == allowed {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
			"success": false,
			"message": "Insufficient permissions",
		})
	}
}

// UserID returns the authenticated caller's id, or "" when the request
// was not authenticated.
func UserID(c *gin.Context) string {
	return c.GetString(ctxUserIDKey)
}

// Role returns the authenticated caller's role.
func Role(c *gin.Context) string {
	return c.GetString(ctxRoleKey)
}
