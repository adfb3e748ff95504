package middleware

import "github.com/labstack/echo/v4"

// currentUserID returns the authenticated user's id from context, or "anon"
// for unauthenticated requests. Used to build rate-limit keys.
func currentUserID(c echo.Context) string {
	if v, ok := c.Get("user_id").(string); ok && v != "" {
		return v
	}
	return "anon"
}
