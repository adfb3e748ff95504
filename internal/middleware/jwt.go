package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/agrilink/agrilink-api/internal/utils"
)

// JWTAuth returns an Echo middleware that validates a Bearer access token and
// injects its claims into the request context under "user_id", "contact" and
// "role". Authenticated identity is always threaded through these explicit
// context keys; handlers never re-parse the token. The expired case gets its
// own message so clients know to refresh rather than re-login.
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			raw := strings.TrimPrefix(auth, "Bearer ")

			claims, err := utils.VerifyAccessToken(secret, raw)
			if err != nil {
				if errors.Is(err, utils.ErrTokenExpired) {
					return c.JSON(http.StatusUnauthorized, echo.Map{"error": "access token expired"})
				}
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid access token"})
			}

			c.Set("user_id", claims.UserID)
			c.Set("contact", claims.Contact)
			c.Set("role", claims.Role)
			return next(c)
		}
	}
}
