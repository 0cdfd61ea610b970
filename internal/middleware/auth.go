package middleware

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/thainvbka/sports-booking-platform-sub000/pkg/response"
)

// Context keys set by Auth for downstream handlers.
const (
	ContextUserID = "user_id"
	ContextRole   = "role"
)

// Roles carried in the token.
const (
	RolePlayer = "player"
	RoleOwner  = "owner"
)

// AuthConfig holds token verification settings
type AuthConfig struct {
	Secret string
	Issuer string
}

// Auth verifies the Bearer token and stores the caller's identity in the
// request context. Tokens are HMAC-signed by the identity service; this
// engine only verifies.
func Auth(cfg *AuthConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Unauthorized(c, "Authorization header is required")
			c.Abort()
			return
		}

		tokenString, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			response.Unauthorized(c, "Authorization header must be a Bearer token")
			c.Abort()
			return
		}

		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return []byte(cfg.Secret), nil
		}, jwt.WithIssuer(cfg.Issuer))
		if err != nil {
			msg := "Token is invalid"
			if errors.Is(err, jwt.ErrTokenExpired) {
				msg = "Token has expired"
			}
			response.Unauthorized(c, msg)
			c.Abort()
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok || !token.Valid {
			response.Unauthorized(c, "Token claims are malformed")
			c.Abort()
			return
		}

		sub, _ := claims["sub"].(string)
		if sub == "" {
			response.Unauthorized(c, "Token has no subject")
			c.Abort()
			return
		}
		role, _ := claims["role"].(string)
		if role == "" {
			role = RolePlayer
		}

		c.Set(ContextUserID, sub)
		c.Set(ContextRole, role)
		c.Next()
	}
}

// RequireRole gates a route group to one role.
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(ContextRole) != role {
			response.Forbidden(c, "Insufficient role for this operation")
			c.Abort()
			return
		}
		c.Next()
	}
}

// UserID reads the authenticated caller's id from the context.
func UserID(c *gin.Context) string {
	return c.GetString(ContextUserID)
}
