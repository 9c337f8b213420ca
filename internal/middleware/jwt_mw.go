package middleware

import (
	"errors"
	"net/http"
	"strings"

	"patapesa/internal/model"
	"patapesa/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// Context keys set by JWTAuthMiddleware
const (
	AuthUserKey     = "authUser"
	AuthUsernameKey = "authUsername"
	AuthRoleKey     = "authRole"
)

var (
	errMissingHeader = errors.New("Authorization header required")
	errHeaderFormat  = errors.New("Invalid authorization header format")
)

// bearerToken extracts <token> from "Bearer <token>"; the scheme is case-insensitive.
func bearerToken(header string) (string, error) {
	if header == "" {
		return "", errMissingHeader
	}
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	token = strings.TrimSpace(token)
	if !ok || !strings.EqualFold(scheme, "bearer") || token == "" || strings.ContainsAny(token, " \t") {
		return "", errHeaderFormat
	}
	return token, nil
}

func abortUnauthorized(c *gin.Context, message string) {
	c.Header("WWW-Authenticate", `Bearer realm="patapesa"`)
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"status": model.StatusError, "message": message})
}

// JWTAuthMiddleware rejects requests without a valid session token and
// exposes the token's user, username and role to later handlers.
func JWTAuthMiddleware(jwtUtil *utils.JWTUtil) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := bearerToken(c.GetHeader("Authorization"))
		if err != nil {
			abortUnauthorized(c, err.Error())
			return
		}

		claims, err := jwtUtil.ValidateToken(token)
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			abortUnauthorized(c, "Token expired, please log in again")
			return
		case err != nil:
			abortUnauthorized(c, "Invalid token")
			return
		}

		c.Set(AuthUserKey, claims.UserID)
		c.Set(AuthUsernameKey, claims.Username)
		c.Set(AuthRoleKey, claims.Role)
		c.Next()
	}
}

// AuthUserID returns the user id set by JWTAuthMiddleware.
func AuthUserID(c *gin.Context) (string, bool) {
	id := c.GetString(AuthUserKey)
	return id, id != ""
}

func AuthRole(c *gin.Context) string {
	return c.GetString(AuthRoleKey)
}
