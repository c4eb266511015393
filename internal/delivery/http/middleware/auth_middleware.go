package middleware

import (
	"net/http"
	"strings"

	"customer/internal/domain/service"

	"github.com/labstack/echo/v4"
)

const claimsContextKey = "claims"

// AuthMiddleware provides middleware for JWT authentication and
// scope-based authorization.
type AuthMiddleware struct {
	tokenSvc service.TokenService
}

// NewAuthMiddleware is the constructor for AuthMiddleware.
func NewAuthMiddleware(tokenSvc service.TokenService) *AuthMiddleware {
	return &AuthMiddleware{tokenSvc: tokenSvc}
}

// Authenticate validates the bearer token and stores the caller's claims on
// the request context for RequireScope and handlers.
func (m *AuthMiddleware) Authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		authHeader := c.Request().Header.Get("Authorization")
		if authHeader == "" {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Authorization header is missing"})
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Invalid token format, must be Bearer token"})
		}

		claims, err := m.tokenSvc.ValidateToken(tokenString)
		if err != nil {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Invalid or expired token"})
		}

		c.Set(claimsContextKey, claims)

		return next(c)
	}
}

// RequireScope is a middleware factory that checks the caller was granted a
// capability. It must be used AFTER the Authenticate middleware.
func (m *AuthMiddleware) RequireScope(requiredScope string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			claims, ok := c.Get(claimsContextKey).(*service.TokenClaims)
			if !ok {
				return c.JSON(http.StatusForbidden, map[string]string{"error": "Permission denied: claims missing"})
			}

			if !claims.HasScope(requiredScope) {
				return c.JSON(http.StatusForbidden, map[string]string{"error": "Permission denied: require '" + requiredScope + "' scope"})
			}

			return next(c)
		}
	}
}
